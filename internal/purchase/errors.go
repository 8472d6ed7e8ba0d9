package purchase

import "errors"

var (
	ErrAlreadyInProgress   = errors.New("a purchase for this listing is already in progress")
	ErrShippingNotSelected = errors.New("please select a shipping method")
	ErrSelfPurchase        = errors.New("you cannot purchase your own field")
	ErrInsufficientFunds   = errors.New("insufficient coins for this purchase")
	ErrInvalidQuantity     = errors.New("quantity must be at least 1 and no more than the available area")
	ErrBuyerRequired       = errors.New("buyer identity is required")
	ErrPersistenceFailure  = errors.New("failed to save purchase")
)
