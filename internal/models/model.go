package models

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// AuctionState is the lifecycle state of an auction
type AuctionState string

const (
	StateActive AuctionState = "active"
	StateEnded  AuctionState = "ended"
	StateClosed AuctionState = "closed"
)

// Auction represents a single listed item with its bidding window and rules
type Auction struct {
	AuctionID     string          `json:"auction_id"`
	Seller        string          `json:"seller"`
	ItemMetadata  json.RawMessage `json:"item_metadata,omitempty"`
	StartingPrice decimal.Decimal `json:"starting_price"`
	MinIncrement  decimal.Decimal `json:"min_increment"`
	EndTime       int64           `json:"end_time"`
	State         AuctionState    `json:"state"`
	HighestBidSeq *uint64         `json:"highest_bid_seq,omitempty"`
	CreatedAt     int64           `json:"created_at"`
	WinnerSeq     *uint64         `json:"winner_seq,omitempty"`
	ClosedAt      *int64          `json:"closed_at,omitempty"`
}

// Bid represents an accepted offer against an auction. Sequence doubles as the bid id.
type Bid struct {
	AuctionID string          `json:"auction_id"`
	Sequence  uint64          `json:"sequence"`
	Bidder    string          `json:"bidder"`
	Amount    decimal.Decimal `json:"amount"`
	Timestamp int64           `json:"timestamp"`
	Hash      string          `json:"hash"`
}

// HasBids reports whether the auction has a leading bid
func (a Auction) HasBids() bool {
	return a.HighestBidSeq != nil
}

// Clone returns a copy that shares no pointers or slices with a
func (a Auction) Clone() Auction {
	out := a
	if a.ItemMetadata != nil {
		out.ItemMetadata = append(json.RawMessage(nil), a.ItemMetadata...)
	}
	out.HighestBidSeq = cloneUint(a.HighestBidSeq)
	out.WinnerSeq = cloneUint(a.WinnerSeq)
	if a.ClosedAt != nil {
		v := *a.ClosedAt
		out.ClosedAt = &v
	}
	return out
}

// SeqPtr returns a pointer to a copy of seq
func SeqPtr(seq uint64) *uint64 {
	return &seq
}

func cloneUint(p *uint64) *uint64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
