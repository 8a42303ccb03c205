package repository

import (
	"auction-ledger/internal/biddingerrors"
	model "auction-ledger/internal/models"
	"context"
	"fmt"
	"sort"
	"sync"
)

// AuctionDB defines the auction and bid storage interface for the auction system
type AuctionDB interface {
	CreateAuction(ctx context.Context, auction model.Auction) error
	GetAuction(ctx context.Context, auctionID string) (model.Auction, error)
	UpdateAuction(ctx context.Context, auction model.Auction, from model.AuctionState) error
	AppendBid(ctx context.Context, auction model.Auction, bid model.Bid) (model.Bid, error)
	GetBid(ctx context.Context, auctionID string, seq uint64) (model.Bid, error)
	ListBids(ctx context.Context, auctionID string) ([]model.Bid, error)
	ListAuctionsBySeller(ctx context.Context, seller string) ([]model.Auction, error)
	ListAuctionsByBidder(ctx context.Context, bidder string) ([]model.Auction, error)
}

// MemoryRepo is a concurrency-safe in-memory implementation of AuctionDB
type MemoryRepo struct {
	mu             sync.RWMutex
	auctions       map[string]model.Auction // key: auctionID -> value: auction
	bids           map[string][]model.Bid   // key: auctionID -> value: bids in sequence order
	sellerAuctions map[string][]string      // key: seller -> value: auctionIDs in listing order
	bidderAuctions map[string][]string      // key: bidder -> value: auctionIDs the bidder has bid on
}

// NewMemoryRepo creates a new in-memory repository instance
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		auctions:       make(map[string]model.Auction),
		bids:           make(map[string][]model.Bid),
		sellerAuctions: make(map[string][]string),
		bidderAuctions: make(map[string][]string),
	}
}

// CreateAuction stores a newly listed auction
func (r *MemoryRepo) CreateAuction(ctx context.Context, auction model.Auction) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.auctions[auction.AuctionID]; ok {
		return fmt.Errorf("create auction %s: %w", auction.AuctionID, biddingerrors.ErrAlreadyExists)
	}

	r.auctions[auction.AuctionID] = auction.Clone()
	r.sellerAuctions[auction.Seller] = append(r.sellerAuctions[auction.Seller], auction.AuctionID)
	return nil
}

// GetAuction returns a snapshot of an auction
func (r *MemoryRepo) GetAuction(ctx context.Context, auctionID string) (model.Auction, error) {
	if err := ctx.Err(); err != nil {
		return model.Auction{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	auction, ok := r.auctions[auctionID]
	if !ok {
		return model.Auction{}, fmt.Errorf("get auction %s: %w", auctionID, biddingerrors.ErrAuctionNotFound)
	}
	return auction.Clone(), nil
}

// UpdateAuction replaces the stored auction record, provided it is still in state from
func (r *MemoryRepo) UpdateAuction(ctx context.Context, auction model.Auction, from model.AuctionState) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.auctions[auction.AuctionID]
	if !ok {
		return fmt.Errorf("update auction %s: %w", auction.AuctionID, biddingerrors.ErrAuctionNotFound)
	}
	if stored.State != from {
		return StateMismatch(auction.AuctionID, from, stored.State)
	}
	r.auctions[auction.AuctionID] = auction.Clone()
	return nil
}

// AppendBid appends bid to an active auction's log and moves its highest-bid pointer in one step.
// The bid's sequence must equal the current number of bids.
func (r *MemoryRepo) AppendBid(ctx context.Context, auction model.Auction, bid model.Bid) (model.Bid, error) {
	if err := ctx.Err(); err != nil {
		return model.Bid{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.auctions[bid.AuctionID]
	if !ok || auction.AuctionID != bid.AuctionID {
		return model.Bid{}, fmt.Errorf("append bid for auction %s: %w", bid.AuctionID, biddingerrors.ErrAuctionNotFound)
	}
	if stored.State != model.StateActive {
		return model.Bid{}, fmt.Errorf("append bid for auction %s: %w - stored state is %s",
			bid.AuctionID, biddingerrors.ErrAuctionNotActive, stored.State)
	}

	if next := uint64(len(r.bids[bid.AuctionID])); bid.Sequence != next {
		return model.Bid{}, fmt.Errorf("append bid for auction %s: %w - expected sequence %d, got %d",
			bid.AuctionID, biddingerrors.ErrSequenceConflict, next, bid.Sequence)
	}

	r.bids[bid.AuctionID] = append(r.bids[bid.AuctionID], bid)
	stored.HighestBidSeq = model.SeqPtr(bid.Sequence)
	r.auctions[bid.AuctionID] = stored

	for _, id := range r.bidderAuctions[bid.Bidder] {
		if id == bid.AuctionID {
			return bid, nil
		}
	}
	r.bidderAuctions[bid.Bidder] = append(r.bidderAuctions[bid.Bidder], bid.AuctionID)

	return bid, nil
}

// GetBid returns a single bid by sequence number
func (r *MemoryRepo) GetBid(ctx context.Context, auctionID string, seq uint64) (model.Bid, error) {
	if err := ctx.Err(); err != nil {
		return model.Bid{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	bids := r.bids[auctionID]
	if seq >= uint64(len(bids)) {
		return model.Bid{}, fmt.Errorf("get bid %d for auction %s: %w", seq, auctionID, biddingerrors.ErrBidNotFound)
	}
	return bids[seq], nil
}

// ListBids returns all bids for an auction in ascending sequence order
func (r *MemoryRepo) ListBids(ctx context.Context, auctionID string) ([]model.Bid, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	if _, ok := r.auctions[auctionID]; !ok {
		return nil, fmt.Errorf("list bids for auction %s: %w", auctionID, biddingerrors.ErrAuctionNotFound)
	}
	return append([]model.Bid{}, r.bids[auctionID]...), nil
}

// ListAuctionsBySeller returns all auctions listed by seller, oldest first
func (r *MemoryRepo) ListAuctionsBySeller(ctx context.Context, seller string) ([]model.Auction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.collect(r.sellerAuctions[seller]), nil
}

// ListAuctionsByBidder returns all auctions a bidder has placed bids on
func (r *MemoryRepo) ListAuctionsByBidder(ctx context.Context, bidder string) ([]model.Auction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.collect(r.bidderAuctions[bidder]), nil
}

// StateMismatch reports a conditional update whose expected prior state is no longer stored
func StateMismatch(auctionID string, expected, stored model.AuctionState) error {
	if stored == model.StateClosed {
		return fmt.Errorf("update auction %s: %w - expected state %s", auctionID, biddingerrors.ErrAuctionAlreadyClosed, expected)
	}
	return fmt.Errorf("update auction %s: %w - expected state %s, stored %s",
		auctionID, biddingerrors.ErrStateConflict, expected, stored)
}

// collect must be called with r.mu held
func (r *MemoryRepo) collect(ids []string) []model.Auction {
	auctions := make([]model.Auction, 0, len(ids))
	for _, id := range ids {
		if auction, ok := r.auctions[id]; ok {
			auctions = append(auctions, auction.Clone())
		}
	}
	sort.SliceStable(auctions, func(i, j int) bool {
		if auctions[i].CreatedAt != auctions[j].CreatedAt {
			return auctions[i].CreatedAt < auctions[j].CreatedAt
		}
		return auctions[i].AuctionID < auctions[j].AuctionID
	})
	return auctions
}
