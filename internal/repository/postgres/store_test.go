package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"testing"

	model "auction-ledger/internal/models"
	"auction-ledger/internal/repository"
	"auction-ledger/internal/repository/repotest"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const testDSNEnv = "AUCTION_POSTGRES_TEST_DSN"

func TestStore_Conformance(t *testing.T) {
	dsn := os.Getenv(testDSNEnv)
	if dsn == "" {
		t.Skipf("%s not set", testDSNEnv)
	}

	store, err := Open(context.Background(), dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	repotest.Run(t, func(t *testing.T) repository.AuctionDB {
		require.NoError(t, store.db.Exec("TRUNCATE TABLE bids, auctions").Error)
		return store
	})
}

func TestOpen_RequiresDSN(t *testing.T) {
	_, err := Open(context.Background(), "")
	require.Error(t, err)
}

func TestAuctionModel_RoundTrip(t *testing.T) {
	closedAt := int64(500)
	auction := model.Auction{
		AuctionID:     "auction1",
		Seller:        "seller1",
		ItemMetadata:  json.RawMessage(`{"title":"lamp"}`),
		StartingPrice: decimal.RequireFromString("100.50"),
		MinIncrement:  decimal.NewFromInt(5),
		EndTime:       400,
		State:         model.StateClosed,
		HighestBidSeq: model.SeqPtr(3),
		CreatedAt:     100,
		WinnerSeq:     model.SeqPtr(3),
		ClosedAt:      &closedAt,
	}

	row := auctionModelFromEntity(auction)
	require.Equal(t, "closed", row.State)
	require.NotNil(t, row.HighestBidSeq)
	require.Equal(t, int64(3), *row.HighestBidSeq)

	require.Equal(t, auction, row.toEntity())
}

func TestAuctionModel_NoBids(t *testing.T) {
	auction := model.Auction{AuctionID: "auction1", Seller: "seller1", State: model.StateActive}

	got := auctionModelFromEntity(auction).toEntity()
	require.Nil(t, got.HighestBidSeq)
	require.Nil(t, got.WinnerSeq)
	require.Nil(t, got.ClosedAt)
	require.Nil(t, got.ItemMetadata)
}

func TestBidModel_RoundTrip(t *testing.T) {
	bid := model.Bid{
		AuctionID: "auction1",
		Sequence:  7,
		Bidder:    "bidder1",
		Amount:    decimal.RequireFromString("120.25"),
		Timestamp: 300,
		Hash:      "abc",
	}
	require.Equal(t, bid, bidModelFromEntity(bid).toEntity())
}

func TestIsUniqueViolation(t *testing.T) {
	require.True(t, isUniqueViolation(&pgconn.PgError{Code: "23505"}))
	require.True(t, isUniqueViolation(fmt.Errorf("wrapped: %w", &pgconn.PgError{Code: "23505"})))
	require.False(t, isUniqueViolation(&pgconn.PgError{Code: "23503"}))
	require.True(t, isUniqueViolation(gorm.ErrDuplicatedKey))
	require.False(t, isUniqueViolation(errors.New("boom")))
}
