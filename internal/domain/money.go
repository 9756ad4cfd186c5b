package domain

import "github.com/shopspring/decimal"

const (
	// PriceScale максимум знаков после запятой в цене
	PriceScale = 2
	// PriceIntDigits максимум знаков в целой части цены
	PriceIntDigits = 12
)

var priceLimit = decimal.New(1, PriceIntDigits)

func init() {
	// prices and totals are JSON numbers on the wire
	decimal.MarshalJSONWithoutQuotes = true
}

// ValidPrice цена неотрицательна и укладывается в PriceIntDigits.PriceScale знаков.
// Такие значения без потерь хранятся в decimal128, в том числе после умножения на количество.
func ValidPrice(d decimal.Decimal) bool {
	return !d.IsNegative() && d.LessThan(priceLimit) && d.Equal(d.Round(PriceScale))
}
