package models

type Role string

const (
	RoleBuyer  Role = "buyer"
	RoleFarmer Role = "farmer"
)

// Identity is the caller on whose behalf an operation runs.
type Identity struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Role Role   `json:"role,omitempty"`
}

// Wallet is a user's coin balance.
type Wallet struct {
	UserID string `json:"user_id"`
	Coins  int64  `json:"coins"`
}
