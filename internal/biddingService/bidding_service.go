package bidding

import (
	"auction-ledger/internal/audit"
	"auction-ledger/internal/biddingerrors"
	"auction-ledger/internal/guard"
	"auction-ledger/internal/models"
	"auction-ledger/internal/repository"
	"auction-ledger/utils"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ListAuctionParams holds the seller-supplied terms of a new auction
type ListAuctionParams struct {
	Seller        string
	ItemMetadata  json.RawMessage
	StartingPrice decimal.Decimal
	MinIncrement  decimal.Decimal
	EndTime       int64
}

// AuctionDetail is an auction snapshot with its leading and winning bids resolved
type AuctionDetail struct {
	models.Auction
	HighestBid *models.Bid `json:"highest_bid,omitempty"`
	Winner     *models.Bid `json:"winner,omitempty"`
}

// AuctionService owns the auction lifecycle: listing, bid admission, ending and closing.
// Mutations of one auction are serialized; different auctions proceed independently.
type AuctionService struct {
	repo  repository.AuctionDB
	guard guard.Guard
	locks *keyedMutex
}

// NewAuctionService creates a new AuctionService instance
func NewAuctionService(repo repository.AuctionDB, g guard.Guard) *AuctionService {
	return &AuctionService{
		repo:  repo,
		guard: g,
		locks: newKeyedMutex(),
	}
}

// ListAuction validates the listing terms and creates a new active auction
func (s *AuctionService) ListAuction(ctx context.Context, params ListAuctionParams, now int64) (models.Auction, error) {
	if err := validateListing(params, now); err != nil {
		return models.Auction{}, err
	}

	auction := models.Auction{
		AuctionID:     utils.GenerateID(),
		Seller:        strings.TrimSpace(params.Seller),
		StartingPrice: NormalizeAmount(params.StartingPrice),
		MinIncrement:  NormalizeAmount(params.MinIncrement),
		EndTime:       params.EndTime,
		State:         models.StateActive,
		CreatedAt:     now,
	}
	if len(params.ItemMetadata) > 0 {
		auction.ItemMetadata = append(json.RawMessage(nil), params.ItemMetadata...)
	}

	if err := s.repo.CreateAuction(ctx, auction); err != nil {
		return models.Auction{}, fmt.Errorf("service: failed to create auction for seller %s: %w", auction.Seller, err)
	}
	return auction, nil
}

// validateListing rejects malformed listing input before any state change
func validateListing(params ListAuctionParams, now int64) error {
	if strings.TrimSpace(params.Seller) == "" {
		return fmt.Errorf("service: %w - missing seller", biddingerrors.ErrInvalidParameters)
	}
	if !NormalizeAmount(params.StartingPrice).IsPositive() {
		return fmt.Errorf("service: %w - starting price must be positive", biddingerrors.ErrInvalidParameters)
	}
	if !NormalizeAmount(params.MinIncrement).IsPositive() {
		return fmt.Errorf("service: %w - min increment must be positive", biddingerrors.ErrInvalidParameters)
	}
	if params.EndTime <= now {
		return fmt.Errorf("service: %w - end time %d is not after %d", biddingerrors.ErrInvalidParameters, params.EndTime, now)
	}
	if len(params.ItemMetadata) > 0 && !json.Valid(params.ItemMetadata) {
		return fmt.Errorf("service: %w - item metadata is not valid JSON", biddingerrors.ErrInvalidParameters)
	}
	return nil
}

// PlaceBid validates and records a bid on an auction
func (s *AuctionService) PlaceBid(ctx context.Context, auctionID, bidder string, amount decimal.Decimal, now int64) (models.Bid, error) {
	unlock := s.locks.Lock(auctionID)
	defer unlock()

	auction, err := s.repo.GetAuction(ctx, auctionID)
	if err != nil {
		return models.Bid{}, fmt.Errorf("service: failed to load auction %s: %w", auctionID, err)
	}

	if err := s.observeEnd(ctx, &auction, now); err != nil {
		return models.Bid{}, err
	}
	if auction.State != models.StateActive {
		return models.Bid{}, fmt.Errorf("service: %w - auction %s is %s", biddingerrors.ErrAuctionNotActive, auctionID, auction.State)
	}

	if err := s.guard.Require(bidder, guard.CanBid, auction); err != nil {
		return models.Bid{}, fmt.Errorf("service: bid on auction %s: %w", auctionID, err)
	}

	highest, err := s.highestBid(ctx, auction)
	if err != nil {
		return models.Bid{}, err
	}

	amount = NormalizeAmount(amount)
	floor := NextFloor(auction, highest)
	if !BidMeetsFloor(amount, floor) {
		utils.Debug("bid below floor", map[string]any{
			"auction_id": auctionID,
			"bidder":     bidder,
			"amount":     amount.String(),
			"floor":      floor.String(),
		})
		return models.Bid{}, fmt.Errorf("service: %w - minimum acceptable bid is %s", biddingerrors.ErrBidTooLow, floor.String())
	}

	// every accepted bid becomes the leader, so the leader is also the last bid in the log
	var seq uint64
	if highest != nil {
		seq = highest.Sequence + 1
	}

	bid := models.Bid{
		AuctionID: auctionID,
		Sequence:  seq,
		Bidder:    strings.TrimSpace(bidder),
		Amount:    amount,
		Timestamp: now,
	}
	bid.Hash = audit.ComputeBidHash(audit.PrevHash(auctionID, highest), bid)

	updated := auction.Clone()
	updated.HighestBidSeq = models.SeqPtr(seq)

	stored, err := s.repo.AppendBid(ctx, updated, bid)
	if err != nil {
		return models.Bid{}, fmt.Errorf("service: failed to record bid for auction %s by %s: %w", auctionID, bidder, err)
	}
	return stored, nil
}

// MarkEnded moves an auction whose end time has passed from Active to Ended.
// Calling it on an already ended auction is a no-op.
func (s *AuctionService) MarkEnded(ctx context.Context, auctionID string, now int64) (models.Auction, error) {
	unlock := s.locks.Lock(auctionID)
	defer unlock()

	auction, err := s.repo.GetAuction(ctx, auctionID)
	if err != nil {
		return models.Auction{}, fmt.Errorf("service: failed to load auction %s: %w", auctionID, err)
	}

	switch auction.State {
	case models.StateClosed:
		return models.Auction{}, fmt.Errorf("service: %w - auction %s", biddingerrors.ErrAuctionAlreadyClosed, auctionID)
	case models.StateEnded:
		return auction, nil
	}

	if now < auction.EndTime {
		return models.Auction{}, fmt.Errorf("service: %w - auction %s ends at %d", biddingerrors.ErrAuctionNotEnded, auctionID, auction.EndTime)
	}
	if err := s.observeEnd(ctx, &auction, now); err != nil {
		return models.Auction{}, err
	}
	return auction, nil
}

// Close finalizes an ended auction on behalf of its seller and returns the winning bid,
// or nil if the auction received no bids.
func (s *AuctionService) Close(ctx context.Context, auctionID, caller string, now int64) (*models.Bid, error) {
	unlock := s.locks.Lock(auctionID)
	defer unlock()

	auction, err := s.repo.GetAuction(ctx, auctionID)
	if err != nil {
		return nil, fmt.Errorf("service: failed to load auction %s: %w", auctionID, err)
	}

	if err := s.observeEnd(ctx, &auction, now); err != nil {
		return nil, err
	}
	if auction.State == models.StateClosed {
		return nil, fmt.Errorf("service: %w - auction %s", biddingerrors.ErrAuctionAlreadyClosed, auctionID)
	}
	if err := s.guard.Require(caller, guard.CanClose, auction); err != nil {
		return nil, fmt.Errorf("service: close auction %s: %w", auctionID, err)
	}
	if auction.State != models.StateEnded {
		return nil, fmt.Errorf("service: %w - auction %s ends at %d", biddingerrors.ErrAuctionNotEnded, auctionID, auction.EndTime)
	}

	winner, err := s.highestBid(ctx, auction)
	if err != nil {
		return nil, err
	}

	closed := auction.Clone()
	closed.State = models.StateClosed
	closed.WinnerSeq = closed.HighestBidSeq
	if closed.WinnerSeq != nil {
		closed.WinnerSeq = models.SeqPtr(*closed.WinnerSeq)
	}
	closed.ClosedAt = &now

	if err := s.repo.UpdateAuction(ctx, closed, models.StateEnded); err != nil {
		return nil, fmt.Errorf("service: failed to close auction %s: %w", auctionID, err)
	}
	return winner, nil
}

// GetAuction returns a snapshot of an auction
func (s *AuctionService) GetAuction(ctx context.Context, auctionID string) (models.Auction, error) {
	auction, err := s.repo.GetAuction(ctx, auctionID)
	if err != nil {
		return models.Auction{}, fmt.Errorf("service: failed to get auction %s: %w", auctionID, err)
	}
	return auction, nil
}

// GetAuctionDetail returns an auction snapshot with its leading bid and winner resolved
func (s *AuctionService) GetAuctionDetail(ctx context.Context, auctionID string) (AuctionDetail, error) {
	auction, err := s.GetAuction(ctx, auctionID)
	if err != nil {
		return AuctionDetail{}, err
	}

	detail := AuctionDetail{Auction: auction}
	if detail.HighestBid, err = s.highestBid(ctx, auction); err != nil {
		return AuctionDetail{}, err
	}
	if auction.WinnerSeq != nil {
		winner, err := s.repo.GetBid(ctx, auctionID, *auction.WinnerSeq)
		if err != nil {
			return AuctionDetail{}, fmt.Errorf("service: failed to load winner of auction %s: %w", auctionID, err)
		}
		detail.Winner = &winner
	}
	return detail, nil
}

// GetBids returns all bids for an auction in sequence order
func (s *AuctionService) GetBids(ctx context.Context, auctionID string) ([]models.Bid, error) {
	bids, err := s.repo.ListBids(ctx, auctionID)
	if err != nil {
		return nil, fmt.Errorf("service: failed to get bids for auction %s: %w", auctionID, err)
	}
	return bids, nil
}

// GetAuctionsBySeller returns all auctions listed by a seller
func (s *AuctionService) GetAuctionsBySeller(ctx context.Context, seller string) ([]models.Auction, error) {
	if strings.TrimSpace(seller) == "" {
		return nil, fmt.Errorf("service: %w - empty seller", biddingerrors.ErrInvalidParameters)
	}

	auctions, err := s.repo.ListAuctionsBySeller(ctx, seller)
	if err != nil {
		return nil, fmt.Errorf("service: failed to get auctions for seller %s: %w", seller, err)
	}
	return auctions, nil
}

// GetAuctionsByBidder returns all auctions a bidder has placed bids on
func (s *AuctionService) GetAuctionsByBidder(ctx context.Context, bidder string) ([]models.Auction, error) {
	if strings.TrimSpace(bidder) == "" {
		return nil, fmt.Errorf("service: %w - empty bidder", biddingerrors.ErrInvalidParameters)
	}

	auctions, err := s.repo.ListAuctionsByBidder(ctx, bidder)
	if err != nil {
		return nil, fmt.Errorf("service: failed to get auctions for bidder %s: %w", bidder, err)
	}
	return auctions, nil
}

// Audit replays an auction's bid log and checks it against the stored highest-bid pointer
func (s *AuctionService) Audit(ctx context.Context, auctionID string) (audit.Report, error) {
	// hold the lock so the pointer and the log are read from the same point in history
	unlock := s.locks.Lock(auctionID)
	defer unlock()

	auction, err := s.repo.GetAuction(ctx, auctionID)
	if err != nil {
		return audit.Report{}, fmt.Errorf("service: failed to load auction %s: %w", auctionID, err)
	}
	bids, err := s.repo.ListBids(ctx, auctionID)
	if err != nil {
		return audit.Report{}, fmt.Errorf("service: failed to get bids for auction %s: %w", auctionID, err)
	}
	return audit.Replay(auction, bids), nil
}

// observeEnd persists the Active -> Ended transition once now has reached the end time.
// The caller must hold the auction's lock. If another writer on the same store moved the
// auction first, auction is reloaded so the caller sees the stored state.
func (s *AuctionService) observeEnd(ctx context.Context, auction *models.Auction, now int64) error {
	if auction.State != models.StateActive || now < auction.EndTime {
		return nil
	}

	ended := auction.Clone()
	ended.State = models.StateEnded
	err := s.repo.UpdateAuction(ctx, ended, models.StateActive)
	if errors.Is(err, biddingerrors.ErrStateConflict) || errors.Is(err, biddingerrors.ErrAuctionAlreadyClosed) {
		stored, loadErr := s.repo.GetAuction(ctx, auction.AuctionID)
		if loadErr != nil {
			return fmt.Errorf("service: failed to reload auction %s: %w", auction.AuctionID, loadErr)
		}
		*auction = stored
		return nil
	}
	if err != nil {
		return fmt.Errorf("service: failed to end auction %s: %w", auction.AuctionID, err)
	}
	*auction = ended

	utils.Info("auction ended", map[string]any{
		"auction_id": auction.AuctionID,
		"end_time":   auction.EndTime,
		"now":        now,
	})
	return nil
}

// highestBid loads the bid referenced by the auction's highest-bid pointer
func (s *AuctionService) highestBid(ctx context.Context, auction models.Auction) (*models.Bid, error) {
	if !auction.HasBids() {
		return nil, nil
	}
	bid, err := s.repo.GetBid(ctx, auction.AuctionID, *auction.HighestBidSeq)
	if err != nil {
		return nil, fmt.Errorf("service: failed to load highest bid of auction %s: %w", auction.AuctionID, err)
	}
	return &bid, nil
}
