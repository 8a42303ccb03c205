package audit

import (
	"testing"

	"auction-ledger/internal/models"

	"github.com/peterldowns/testy/check"
	"github.com/shopspring/decimal"
)

func TestComputeBidHash_Deterministic(t *testing.T) {
	bid := models.Bid{AuctionID: "a1", Sequence: 0, Bidder: "alice", Amount: decimal.NewFromInt(100), Timestamp: 10}

	h1 := ComputeBidHash("a1", bid)
	h2 := ComputeBidHash("a1", bid)

	check.Equal(t, h1, h2)
	check.Equal(t, 64, len(h1))
}

func TestComputeBidHash_AmountFormatting(t *testing.T) {
	// 100, 100.0 and 100.0000 must hash identically
	a := models.Bid{AuctionID: "a1", Bidder: "alice", Amount: decimal.NewFromInt(100), Timestamp: 10}
	b := a
	b.Amount = decimal.RequireFromString("100.0")
	c := a
	c.Amount = decimal.RequireFromString("100.0000")

	check.Equal(t, ComputeBidHash("p", a), ComputeBidHash("p", b))
	check.Equal(t, ComputeBidHash("p", a), ComputeBidHash("p", c))
}

func TestComputeBidHash_FieldSensitivity(t *testing.T) {
	base := models.Bid{AuctionID: "a1", Sequence: 1, Bidder: "alice", Amount: decimal.NewFromInt(100), Timestamp: 10}
	baseHash := ComputeBidHash("prev", base)

	check.NotEqual(t, baseHash, ComputeBidHash("other-prev", base))

	changed := base
	changed.Bidder = "bob"
	check.NotEqual(t, baseHash, ComputeBidHash("prev", changed))

	changed = base
	changed.Amount = decimal.RequireFromString("100.0001")
	check.NotEqual(t, baseHash, ComputeBidHash("prev", changed))

	changed = base
	changed.Sequence = 2
	check.NotEqual(t, baseHash, ComputeBidHash("prev", changed))

	changed = base
	changed.Timestamp = 11
	check.NotEqual(t, baseHash, ComputeBidHash("prev", changed))
}

func TestPrevHash(t *testing.T) {
	check.Equal(t, "a1", PrevHash("a1", nil))
	check.Equal(t, "abc", PrevHash("a1", &models.Bid{Hash: "abc"}))
}
