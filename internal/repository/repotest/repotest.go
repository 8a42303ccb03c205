// Package repotest holds a conformance suite that every AuctionDB implementation must pass.
package repotest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"

	"auction-ledger/internal/biddingerrors"
	model "auction-ledger/internal/models"
	"auction-ledger/internal/repository"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

// NewAuction builds an active auction with sensible defaults
func NewAuction(auctionID, seller string, createdAt int64) model.Auction {
	return model.Auction{
		AuctionID:     auctionID,
		Seller:        seller,
		ItemMetadata:  json.RawMessage(`{"title":"` + auctionID + `"}`),
		StartingPrice: decimal.NewFromInt(100),
		MinIncrement:  decimal.NewFromInt(10),
		EndTime:       createdAt + 3600,
		State:         model.StateActive,
		CreatedAt:     createdAt,
	}
}

// NewBid builds a bid for auctionID at seq
func NewBid(auctionID string, seq uint64, bidder string, amount int64) model.Bid {
	return model.Bid{
		AuctionID: auctionID,
		Sequence:  seq,
		Bidder:    bidder,
		Amount:    decimal.NewFromInt(amount),
		Timestamp: int64(1000 + seq),
		Hash:      fmt.Sprintf("hash-%s-%d", auctionID, seq),
	}
}

// Run exercises an AuctionDB implementation. newStore must return an empty store.
func Run(t *testing.T, newStore func(t *testing.T) repository.AuctionDB) {
	t.Run("create_and_get", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		auction := NewAuction("auction1", "seller1", 100)
		require.NoError(t, store.CreateAuction(ctx, auction))

		got, err := store.GetAuction(ctx, "auction1")
		require.NoError(t, err)
		requireAuctionEqual(t, auction, got)

		err = store.CreateAuction(ctx, auction)
		require.True(t, errors.Is(err, biddingerrors.ErrAlreadyExists), "expected already exists, got: %v", err)
	})

	t.Run("get_missing", func(t *testing.T) {
		store := newStore(t)

		_, err := store.GetAuction(context.Background(), "missing")
		require.True(t, errors.Is(err, biddingerrors.ErrAuctionNotFound), "expected not found, got: %v", err)
	})

	t.Run("update_auction", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		auction := NewAuction("auction1", "seller1", 100)
		require.NoError(t, store.CreateAuction(ctx, auction))

		closedAt := int64(5000)
		auction.State = model.StateClosed
		auction.ClosedAt = &closedAt
		require.NoError(t, store.UpdateAuction(ctx, auction, model.StateActive))

		got, err := store.GetAuction(ctx, "auction1")
		require.NoError(t, err)
		require.Equal(t, model.StateClosed, got.State)
		require.NotNil(t, got.ClosedAt)
		require.Equal(t, closedAt, *got.ClosedAt)
		require.Nil(t, got.WinnerSeq)

		err = store.UpdateAuction(ctx, NewAuction("missing", "seller1", 100), model.StateActive)
		require.True(t, errors.Is(err, biddingerrors.ErrAuctionNotFound), "expected not found, got: %v", err)
	})

	t.Run("update_auction_requires_expected_state", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		auction := NewAuction("auction1", "seller1", 100)
		require.NoError(t, store.CreateAuction(ctx, auction))

		ended := auction.Clone()
		ended.State = model.StateEnded
		require.NoError(t, store.UpdateAuction(ctx, ended, model.StateActive))

		// a second writer still holding the active snapshot loses
		err := store.UpdateAuction(ctx, ended, model.StateActive)
		require.True(t, errors.Is(err, biddingerrors.ErrStateConflict), "expected state conflict, got: %v", err)

		closedAt := int64(5000)
		closed := ended.Clone()
		closed.State = model.StateClosed
		closed.ClosedAt = &closedAt
		require.NoError(t, store.UpdateAuction(ctx, closed, model.StateEnded))

		// stale writers cannot reopen or re-close a closed auction
		err = store.UpdateAuction(ctx, auction, model.StateActive)
		require.True(t, errors.Is(err, biddingerrors.ErrAuctionAlreadyClosed), "expected already closed, got: %v", err)
		err = store.UpdateAuction(ctx, closed, model.StateEnded)
		require.True(t, errors.Is(err, biddingerrors.ErrAuctionAlreadyClosed), "expected already closed, got: %v", err)

		got, err := store.GetAuction(ctx, "auction1")
		require.NoError(t, err)
		requireAuctionEqual(t, closed, got)
	})

	t.Run("append_and_list_bids", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		auction := NewAuction("auction1", "seller1", 100)
		require.NoError(t, store.CreateAuction(ctx, auction))

		var want []model.Bid
		for i, amount := range []int64{100, 110, 125} {
			bid := NewBid("auction1", uint64(i), fmt.Sprintf("bidder%d", i), amount)
			auction.HighestBidSeq = model.SeqPtr(uint64(i))
			got, err := store.AppendBid(ctx, auction, bid)
			require.NoError(t, err)
			requireBidEqual(t, bid, got)
			want = append(want, bid)
		}

		bids, err := store.ListBids(ctx, "auction1")
		require.NoError(t, err)
		require.Len(t, bids, len(want))
		for i := range want {
			requireBidEqual(t, want[i], bids[i])
		}

		got, err := store.GetAuction(ctx, "auction1")
		require.NoError(t, err)
		require.NotNil(t, got.HighestBidSeq)
		require.Equal(t, uint64(2), *got.HighestBidSeq)

		bid, err := store.GetBid(ctx, "auction1", 1)
		require.NoError(t, err)
		requireBidEqual(t, want[1], bid)

		_, err = store.GetBid(ctx, "auction1", 3)
		require.True(t, errors.Is(err, biddingerrors.ErrBidNotFound), "expected bid not found, got: %v", err)
	})

	t.Run("list_bids_is_a_copy", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		auction := NewAuction("auction1", "seller1", 100)
		require.NoError(t, store.CreateAuction(ctx, auction))
		auction.HighestBidSeq = model.SeqPtr(0)
		_, err := store.AppendBid(ctx, auction, NewBid("auction1", 0, "bidder", 100))
		require.NoError(t, err)

		bids, err := store.ListBids(ctx, "auction1")
		require.NoError(t, err)
		bids[0].Bidder = "mallory"

		again, err := store.ListBids(ctx, "auction1")
		require.NoError(t, err)
		require.Equal(t, "bidder", again[0].Bidder)
	})

	t.Run("list_bids_empty_and_missing", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		require.NoError(t, store.CreateAuction(ctx, NewAuction("auction1", "seller1", 100)))

		bids, err := store.ListBids(ctx, "auction1")
		require.NoError(t, err)
		require.Empty(t, bids)

		_, err = store.ListBids(ctx, "missing")
		require.True(t, errors.Is(err, biddingerrors.ErrAuctionNotFound), "expected not found, got: %v", err)
	})

	t.Run("append_bid_sequence_conflict", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		auction := NewAuction("auction1", "seller1", 100)
		require.NoError(t, store.CreateAuction(ctx, auction))

		// gap
		_, err := store.AppendBid(ctx, auction, NewBid("auction1", 1, "bidder", 100))
		require.True(t, errors.Is(err, biddingerrors.ErrSequenceConflict), "expected sequence conflict, got: %v", err)

		auction.HighestBidSeq = model.SeqPtr(0)
		_, err = store.AppendBid(ctx, auction, NewBid("auction1", 0, "bidder", 100))
		require.NoError(t, err)

		// duplicate
		_, err = store.AppendBid(ctx, auction, NewBid("auction1", 0, "bidder", 200))
		require.True(t, errors.Is(err, biddingerrors.ErrSequenceConflict), "expected sequence conflict, got: %v", err)

		bids, err := store.ListBids(ctx, "auction1")
		require.NoError(t, err)
		require.Len(t, bids, 1)
		require.True(t, bids[0].Amount.Equal(decimal.NewFromInt(100)))
	})

	t.Run("append_bid_after_close_rejected", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		auction := NewAuction("auction1", "seller1", 100)
		require.NoError(t, store.CreateAuction(ctx, auction))
		auction.HighestBidSeq = model.SeqPtr(0)
		_, err := store.AppendBid(ctx, auction, NewBid("auction1", 0, "bidder1", 100))
		require.NoError(t, err)

		// the bidder's snapshot was taken while the auction was still active
		stale := auction.Clone()

		ended := auction.Clone()
		ended.State = model.StateEnded
		require.NoError(t, store.UpdateAuction(ctx, ended, model.StateActive))
		closedAt := int64(5000)
		closed := ended.Clone()
		closed.State = model.StateClosed
		closed.WinnerSeq = model.SeqPtr(0)
		closed.ClosedAt = &closedAt
		require.NoError(t, store.UpdateAuction(ctx, closed, model.StateEnded))

		stale.HighestBidSeq = model.SeqPtr(1)
		_, err = store.AppendBid(ctx, stale, NewBid("auction1", 1, "bidder2", 200))
		require.True(t, errors.Is(err, biddingerrors.ErrAuctionNotActive), "expected not active, got: %v", err)

		got, err := store.GetAuction(ctx, "auction1")
		require.NoError(t, err)
		requireAuctionEqual(t, closed, got)

		bids, err := store.ListBids(ctx, "auction1")
		require.NoError(t, err)
		require.Len(t, bids, 1)
	})

	t.Run("append_bid_missing_auction", func(t *testing.T) {
		store := newStore(t)

		auction := NewAuction("missing", "seller1", 100)
		_, err := store.AppendBid(context.Background(), auction, NewBid("missing", 0, "bidder", 100))
		require.Error(t, err)
	})

	t.Run("list_by_seller_and_bidder", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		a1 := NewAuction("auction1", "seller1", 100)
		a2 := NewAuction("auction2", "seller1", 200)
		a3 := NewAuction("auction3", "seller2", 300)
		for _, a := range []model.Auction{a2, a1, a3} {
			require.NoError(t, store.CreateAuction(ctx, a))
		}

		a1.HighestBidSeq = model.SeqPtr(0)
		_, err := store.AppendBid(ctx, a1, NewBid("auction1", 0, "bidder1", 100))
		require.NoError(t, err)
		a1.HighestBidSeq = model.SeqPtr(1)
		_, err = store.AppendBid(ctx, a1, NewBid("auction1", 1, "bidder1", 110))
		require.NoError(t, err)
		a3.HighestBidSeq = model.SeqPtr(0)
		_, err = store.AppendBid(ctx, a3, NewBid("auction3", 0, "bidder1", 100))
		require.NoError(t, err)

		bySeller, err := store.ListAuctionsBySeller(ctx, "seller1")
		require.NoError(t, err)
		require.Equal(t, []string{"auction1", "auction2"}, auctionIDs(bySeller))

		byBidder, err := store.ListAuctionsByBidder(ctx, "bidder1")
		require.NoError(t, err)
		require.Equal(t, []string{"auction1", "auction3"}, auctionIDs(byBidder))

		none, err := store.ListAuctionsBySeller(ctx, "nobody")
		require.NoError(t, err)
		require.Empty(t, none)

		none, err = store.ListAuctionsByBidder(ctx, "nobody")
		require.NoError(t, err)
		require.Empty(t, none)
	})

	t.Run("concurrent_appends_on_distinct_auctions", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		const n = 20
		for i := 0; i < n; i++ {
			require.NoError(t, store.CreateAuction(ctx, NewAuction(fmt.Sprintf("auction-%d", i), "seller", int64(i))))
		}

		var wg sync.WaitGroup
		errs := make(chan error, n)
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				id := fmt.Sprintf("auction-%d", i)
				auction := NewAuction(id, "seller", int64(i))
				auction.HighestBidSeq = model.SeqPtr(0)
				_, err := store.AppendBid(ctx, auction, NewBid(id, 0, fmt.Sprintf("bidder-%d", i), 100))
				errs <- err
			}(i)
		}
		wg.Wait()
		close(errs)

		for err := range errs {
			require.NoError(t, err)
		}
		for i := 0; i < n; i++ {
			bids, err := store.ListBids(ctx, fmt.Sprintf("auction-%d", i))
			require.NoError(t, err)
			require.Len(t, bids, 1)
		}
	})
}

func auctionIDs(auctions []model.Auction) []string {
	ids := make([]string, 0, len(auctions))
	for _, a := range auctions {
		ids = append(ids, a.AuctionID)
	}
	return ids
}

func requireAuctionEqual(t *testing.T, want, got model.Auction) {
	t.Helper()
	require.Equal(t, want.AuctionID, got.AuctionID)
	require.Equal(t, want.Seller, got.Seller)
	require.JSONEq(t, string(want.ItemMetadata), string(got.ItemMetadata))
	require.True(t, want.StartingPrice.Equal(got.StartingPrice), "starting price: want %s, got %s", want.StartingPrice, got.StartingPrice)
	require.True(t, want.MinIncrement.Equal(got.MinIncrement), "min increment: want %s, got %s", want.MinIncrement, got.MinIncrement)
	require.Equal(t, want.EndTime, got.EndTime)
	require.Equal(t, want.State, got.State)
	require.Equal(t, want.HighestBidSeq, got.HighestBidSeq)
	require.Equal(t, want.CreatedAt, got.CreatedAt)
	require.Equal(t, want.WinnerSeq, got.WinnerSeq)
	require.Equal(t, want.ClosedAt, got.ClosedAt)
}

func requireBidEqual(t *testing.T, want, got model.Bid) {
	t.Helper()
	require.Equal(t, want.AuctionID, got.AuctionID)
	require.Equal(t, want.Sequence, got.Sequence)
	require.Equal(t, want.Bidder, got.Bidder)
	require.True(t, want.Amount.Equal(got.Amount), "amount: want %s, got %s", want.Amount, got.Amount)
	require.Equal(t, want.Timestamp, got.Timestamp)
	require.Equal(t, want.Hash, got.Hash)
}
