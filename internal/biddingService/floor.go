package bidding

import (
	model "auction-ledger/internal/models"

	"github.com/shopspring/decimal"
)

const monetaryPrecision int32 = 4 // amounts are kept to 0.0001

// NormalizeAmount rounds an amount to monetaryPrecision so stored values compare exactly.
func NormalizeAmount(amount decimal.Decimal) decimal.Decimal {
	return amount.Round(monetaryPrecision)
}

// BidMeetsFloor returns true if amount meets or exceeds floor at monetaryPrecision.
func BidMeetsFloor(amount, floor decimal.Decimal) bool {
	return NormalizeAmount(amount).GreaterThanOrEqual(NormalizeAmount(floor))
}

// NextFloor returns the minimum acceptable amount for the next bid on auction.
// highest is the current leading bid, or nil if none exists.
func NextFloor(auction model.Auction, highest *model.Bid) decimal.Decimal {
	if highest == nil {
		return auction.StartingPrice
	}
	return highest.Amount.Add(auction.MinIncrement)
}
