package audit

import (
	"errors"
	"testing"

	"auction-ledger/internal/models"

	"github.com/peterldowns/testy/check"
	"github.com/shopspring/decimal"
)

// buildChain creates a valid hash-linked log with the given amounts
func buildChain(auctionID string, amounts ...int64) []models.Bid {
	bids := make([]models.Bid, 0, len(amounts))
	var last *models.Bid
	for i, amount := range amounts {
		bid := models.Bid{
			AuctionID: auctionID,
			Sequence:  uint64(i),
			Bidder:    "bidder",
			Amount:    decimal.NewFromInt(amount),
			Timestamp: int64(100 + i),
		}
		bid.Hash = ComputeBidHash(PrevHash(auctionID, last), bid)
		bids = append(bids, bid)
		last = &bids[len(bids)-1]
	}
	return bids
}

func TestVerifyChain_Valid(t *testing.T) {
	check.NoError(t, VerifyChain("a1", buildChain("a1", 100, 110, 130)))
	check.NoError(t, VerifyChain("a1", nil))
}

func TestVerifyChain_Tampered(t *testing.T) {
	bids := buildChain("a1", 100, 110, 130)
	bids[1].Amount = decimal.NewFromInt(500)

	err := VerifyChain("a1", bids)
	check.Error(t, err)
	check.True(t, errors.Is(err, ErrChainBroken))
}

func TestVerifyChain_Gap(t *testing.T) {
	bids := buildChain("a1", 100, 110, 130)
	bids = append(bids[:1], bids[2:]...)

	err := VerifyChain("a1", bids)
	check.True(t, errors.Is(err, ErrChainBroken))
}

func TestVerifyChain_ForeignBid(t *testing.T) {
	bids := buildChain("a1", 100)
	bids[0].AuctionID = "a2"

	err := VerifyChain("a1", bids)
	check.True(t, errors.Is(err, ErrChainBroken))
}

func TestReplayHighest(t *testing.T) {
	check.Nil(t, ReplayHighest(nil))

	highest := ReplayHighest(buildChain("a1", 100, 110, 130))
	check.NotNil(t, highest)
	check.Equal(t, uint64(2), highest.Sequence)
	check.True(t, highest.Amount.Equal(decimal.NewFromInt(130)))
}

func TestReplay(t *testing.T) {
	bids := buildChain("a1", 100, 110, 130)

	t.Run("consistent", func(t *testing.T) {
		report := Replay(models.Auction{AuctionID: "a1", HighestBidSeq: models.SeqPtr(2)}, bids)
		check.True(t, report.ChainValid)
		check.True(t, report.Consistent)
		check.Equal(t, 3, report.BidCount)
		check.Equal(t, "", report.Error)
	})

	t.Run("no_bids", func(t *testing.T) {
		report := Replay(models.Auction{AuctionID: "a1"}, nil)
		check.True(t, report.ChainValid)
		check.True(t, report.Consistent)
		check.Nil(t, report.ReplayHighest)
	})

	t.Run("stale_pointer", func(t *testing.T) {
		report := Replay(models.Auction{AuctionID: "a1", HighestBidSeq: models.SeqPtr(1)}, bids)
		check.True(t, report.ChainValid)
		check.False(t, report.Consistent)
		check.NotEqual(t, "", report.Error)
	})

	t.Run("missing_pointer", func(t *testing.T) {
		report := Replay(models.Auction{AuctionID: "a1"}, bids)
		check.False(t, report.Consistent)
	})

	t.Run("broken_chain", func(t *testing.T) {
		tampered := append([]models.Bid(nil), bids...)
		tampered[0].Bidder = "mallory"
		report := Replay(models.Auction{AuctionID: "a1", HighestBidSeq: models.SeqPtr(2)}, tampered)
		check.False(t, report.ChainValid)
		check.False(t, report.Consistent)
		check.Nil(t, report.ReplayHighest)
	})
}
