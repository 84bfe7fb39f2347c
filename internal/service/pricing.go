package service

import (
	"github.com/shopspring/decimal"

	"github.com/xiaot623/treeleaf/internal/domain"
)

// stakeFraction is the share of the product price one attempt costs.
var stakeFraction = decimal.New(1, -1)

// PackagePrice returns the price of a package in cents: floor(price × 0.10) for a
// single attempt, and three times that for the four-attempt package.
func PackagePrice(productPrice int64, pkg domain.PackageType) int64 {
	single := decimal.NewFromInt(productPrice).Mul(stakeFraction).Floor()
	return single.Mul(decimal.NewFromInt(pkg.PriceMultiplier())).IntPart()
}
