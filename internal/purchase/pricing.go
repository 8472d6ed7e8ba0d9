package purchase

import (
	"github.com/shopspring/decimal"
)

// Quote is the cost of buying a quantity of a listing.
type Quote struct {
	TotalCost     decimal.Decimal
	RequiredCoins int64
}

// NewQuote prices quantity m² at unitPrice. Coins are whole units worth
// coinValue each, rounded up.
func NewQuote(unitPrice decimal.Decimal, quantity float64, coinValue decimal.Decimal) Quote {
	total := unitPrice.Mul(decimal.NewFromFloat(quantity))
	var coins int64
	if coinValue.IsPositive() {
		coins = total.Div(coinValue).Ceil().IntPart()
	}
	return Quote{TotalCost: total, RequiredCoins: coins}
}

// Affordable reports whether availableCoins cover the total cost.
func (q Quote) Affordable(availableCoins int64, coinValue decimal.Decimal) bool {
	return !decimal.NewFromInt(availableCoins).Mul(coinValue).LessThan(q.TotalCost)
}

// MonthlyRent spreads total over the rental term, rounded to whole units.
func MonthlyRent(total decimal.Decimal, termMonths int) decimal.Decimal {
	if termMonths <= 0 {
		return total.Round(0)
	}
	return total.Div(decimal.NewFromInt(int64(termMonths))).Round(0)
}
