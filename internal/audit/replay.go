package audit

import (
	"fmt"

	"auction-ledger/internal/models"
)

// Report summarizes a replay of an auction's bid log.
type Report struct {
	AuctionID     string      `json:"auction_id"`
	BidCount      int         `json:"bid_count"`
	ChainValid    bool        `json:"chain_valid"`
	ReplayHighest *models.Bid `json:"replay_highest,omitempty"`
	StoredHighest *uint64     `json:"stored_highest_seq,omitempty"`
	Consistent    bool        `json:"consistent"`
	Error         string      `json:"error,omitempty"`
}

// VerifyChain checks that bids are dense, ascending from sequence 0, belong to auctionID,
// and that every hash links to its predecessor.
func VerifyChain(auctionID string, bids []models.Bid) error {
	prev := GenesisHash(auctionID)
	for i, bid := range bids {
		if bid.AuctionID != auctionID {
			return fmt.Errorf("%w: bid %d belongs to auction %s", ErrChainBroken, i, bid.AuctionID)
		}
		if bid.Sequence != uint64(i) {
			return fmt.Errorf("%w: expected sequence %d, got %d", ErrChainBroken, i, bid.Sequence)
		}
		if want := ComputeBidHash(prev, bid); bid.Hash != want {
			return fmt.Errorf("%w: hash mismatch at sequence %d", ErrChainBroken, bid.Sequence)
		}
		prev = bid.Hash
	}
	return nil
}

// ReplayHighest returns the bid with the largest amount, or nil for an empty log.
// Earlier bids win equal amounts, though admission rules make ties impossible.
func ReplayHighest(bids []models.Bid) *models.Bid {
	if len(bids) == 0 {
		return nil
	}
	best := bids[0]
	for _, b := range bids[1:] {
		if b.Amount.GreaterThan(best.Amount) {
			best = b
		}
	}
	return &best
}

// Replay verifies the chain of bids and compares the recomputed leader with the auction's stored pointer.
func Replay(auction models.Auction, bids []models.Bid) Report {
	report := Report{
		AuctionID:     auction.AuctionID,
		BidCount:      len(bids),
		StoredHighest: auction.HighestBidSeq,
	}

	if err := VerifyChain(auction.AuctionID, bids); err != nil {
		report.Error = err.Error()
		return report
	}
	report.ChainValid = true

	report.ReplayHighest = ReplayHighest(bids)
	switch {
	case report.ReplayHighest == nil && auction.HighestBidSeq == nil:
		report.Consistent = true
	case report.ReplayHighest != nil && auction.HighestBidSeq != nil:
		report.Consistent = report.ReplayHighest.Sequence == *auction.HighestBidSeq
	}
	if !report.Consistent {
		report.Error = "stored highest bid does not match replay"
	}
	return report
}
