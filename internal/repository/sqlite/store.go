// Package sqlite provides a SQLite-backed auction registry.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"auction-ledger/internal/biddingerrors"
	model "auction-ledger/internal/models"
	"auction-ledger/internal/repository"
	"auction-ledger/internal/repository/sqlite/migrations"

	"github.com/shopspring/decimal"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"
)

const auctionColumns = `auction_id, seller, item_metadata, starting_price, min_increment,
	end_time, state, highest_bid_seq, created_at, winner_seq, closed_at`

const bidColumns = `auction_id, seq, bidder, amount, ts, hash`

// Store persists auctions and bids in SQLite.
type Store struct {
	sqlDB *sql.DB
}

var _ repository.AuctionDB = (*Store)(nil)

// Open opens a SQLite auction store and applies embedded migrations.
func Open(ctx context.Context, path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := filepath.Clean(path) + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_txlock=immediate"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// a single connection serializes writers; per-auction ordering is enforced above this layer
	sqlDB.SetMaxOpenConns(1)

	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := applyMigrations(ctx, sqlDB, migrations.FS); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// CreateAuction inserts one auction record.
func (s *Store) CreateAuction(ctx context.Context, auction model.Auction) error {
	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO auctions (`+auctionColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		auction.AuctionID,
		auction.Seller,
		[]byte(auction.ItemMetadata),
		auction.StartingPrice.String(),
		auction.MinIncrement.String(),
		auction.EndTime,
		string(auction.State),
		nullSeq(auction.HighestBidSeq),
		auction.CreatedAt,
		nullSeq(auction.WinnerSeq),
		nullInt(auction.ClosedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("create auction %s: %w", auction.AuctionID, biddingerrors.ErrAlreadyExists)
		}
		return fmt.Errorf("create auction %s: %w", auction.AuctionID, err)
	}
	return nil
}

// GetAuction returns one auction by id.
func (s *Store) GetAuction(ctx context.Context, auctionID string) (model.Auction, error) {
	row := s.sqlDB.QueryRowContext(ctx,
		`SELECT `+auctionColumns+` FROM auctions WHERE auction_id = ?`, auctionID)
	auction, err := scanAuction(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Auction{}, fmt.Errorf("get auction %s: %w", auctionID, biddingerrors.ErrAuctionNotFound)
		}
		return model.Auction{}, fmt.Errorf("get auction %s: %w", auctionID, err)
	}
	return auction, nil
}

// UpdateAuction writes the mutable auction fields if the stored state is still from.
func (s *Store) UpdateAuction(ctx context.Context, auction model.Auction, from model.AuctionState) error {
	res, err := s.sqlDB.ExecContext(ctx,
		`UPDATE auctions
		    SET state = ?, highest_bid_seq = ?, winner_seq = ?, closed_at = ?
		  WHERE auction_id = ? AND state = ?`,
		string(auction.State),
		nullSeq(auction.HighestBidSeq),
		nullSeq(auction.WinnerSeq),
		nullInt(auction.ClosedAt),
		auction.AuctionID,
		string(from),
	)
	if err != nil {
		return fmt.Errorf("update auction %s: %w", auction.AuctionID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update auction %s: %w", auction.AuctionID, err)
	}
	if n > 0 {
		return nil
	}

	var stored string
	err = s.sqlDB.QueryRowContext(ctx, `SELECT state FROM auctions WHERE auction_id = ?`, auction.AuctionID).Scan(&stored)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("update auction %s: %w", auction.AuctionID, biddingerrors.ErrAuctionNotFound)
	}
	if err != nil {
		return fmt.Errorf("update auction %s: %w", auction.AuctionID, err)
	}
	return repository.StateMismatch(auction.AuctionID, from, model.AuctionState(stored))
}

// AppendBid inserts bid into an active auction and moves its highest-bid pointer in one transaction.
func (s *Store) AppendBid(ctx context.Context, auction model.Auction, bid model.Bid) (model.Bid, error) {
	if auction.AuctionID != bid.AuctionID {
		return model.Bid{}, fmt.Errorf("append bid for auction %s: %w", bid.AuctionID, biddingerrors.ErrAuctionNotFound)
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return model.Bid{}, fmt.Errorf("append bid: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var state string
	if err := tx.QueryRowContext(ctx, `SELECT state FROM auctions WHERE auction_id = ?`, bid.AuctionID).Scan(&state); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Bid{}, fmt.Errorf("append bid for auction %s: %w", bid.AuctionID, biddingerrors.ErrAuctionNotFound)
		}
		return model.Bid{}, fmt.Errorf("append bid: load state: %w", err)
	}
	if model.AuctionState(state) != model.StateActive {
		return model.Bid{}, fmt.Errorf("append bid for auction %s: %w - stored state is %s",
			bid.AuctionID, biddingerrors.ErrAuctionNotActive, state)
	}

	var count uint64
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM bids WHERE auction_id = ?`, bid.AuctionID).Scan(&count); err != nil {
		return model.Bid{}, fmt.Errorf("append bid: count: %w", err)
	}
	if bid.Sequence != count {
		return model.Bid{}, fmt.Errorf("append bid for auction %s: %w - expected sequence %d, got %d",
			bid.AuctionID, biddingerrors.ErrSequenceConflict, count, bid.Sequence)
	}

	res, err := tx.ExecContext(ctx,
		`UPDATE auctions SET highest_bid_seq = ? WHERE auction_id = ? AND state = ?`,
		int64(bid.Sequence), bid.AuctionID, string(model.StateActive),
	)
	if err != nil {
		return model.Bid{}, fmt.Errorf("append bid for auction %s: move highest bid: %w", bid.AuctionID, err)
	}
	if n, err := res.RowsAffected(); err != nil || n == 0 {
		return model.Bid{}, fmt.Errorf("append bid for auction %s: %w", bid.AuctionID, biddingerrors.ErrAuctionNotActive)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO bids (`+bidColumns+`) VALUES (?, ?, ?, ?, ?, ?)`,
		bid.AuctionID, int64(bid.Sequence), bid.Bidder, bid.Amount.String(), bid.Timestamp, bid.Hash,
	); err != nil {
		if isUniqueViolation(err) {
			return model.Bid{}, fmt.Errorf("append bid for auction %s: %w", bid.AuctionID, biddingerrors.ErrSequenceConflict)
		}
		return model.Bid{}, fmt.Errorf("append bid for auction %s: %w", bid.AuctionID, err)
	}

	if err := tx.Commit(); err != nil {
		return model.Bid{}, fmt.Errorf("append bid: commit: %w", err)
	}
	return bid, nil
}

// GetBid returns one bid by sequence number.
func (s *Store) GetBid(ctx context.Context, auctionID string, seq uint64) (model.Bid, error) {
	row := s.sqlDB.QueryRowContext(ctx,
		`SELECT `+bidColumns+` FROM bids WHERE auction_id = ? AND seq = ?`, auctionID, int64(seq))
	bid, err := scanBid(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Bid{}, fmt.Errorf("get bid %d for auction %s: %w", seq, auctionID, biddingerrors.ErrBidNotFound)
		}
		return model.Bid{}, fmt.Errorf("get bid %d for auction %s: %w", seq, auctionID, err)
	}
	return bid, nil
}

// ListBids returns the bids of an auction in ascending sequence order.
func (s *Store) ListBids(ctx context.Context, auctionID string) ([]model.Bid, error) {
	if _, err := s.GetAuction(ctx, auctionID); err != nil {
		return nil, fmt.Errorf("list bids: %w", err)
	}

	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT `+bidColumns+` FROM bids WHERE auction_id = ? ORDER BY seq ASC`, auctionID)
	if err != nil {
		return nil, fmt.Errorf("list bids for auction %s: %w", auctionID, err)
	}
	defer rows.Close()

	bids := []model.Bid{}
	for rows.Next() {
		bid, err := scanBid(rows)
		if err != nil {
			return nil, fmt.Errorf("list bids for auction %s: %w", auctionID, err)
		}
		bids = append(bids, bid)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list bids for auction %s: %w", auctionID, err)
	}
	return bids, nil
}

// ListAuctionsBySeller returns the auctions listed by seller, oldest first.
func (s *Store) ListAuctionsBySeller(ctx context.Context, seller string) ([]model.Auction, error) {
	return s.queryAuctions(ctx,
		`SELECT `+auctionColumns+` FROM auctions WHERE seller = ? ORDER BY created_at ASC, auction_id ASC`, seller)
}

// ListAuctionsByBidder returns the auctions bidder has bid on, oldest first.
func (s *Store) ListAuctionsByBidder(ctx context.Context, bidder string) ([]model.Auction, error) {
	return s.queryAuctions(ctx,
		`SELECT `+auctionColumns+` FROM auctions
		  WHERE auction_id IN (SELECT DISTINCT auction_id FROM bids WHERE bidder = ?)
		  ORDER BY created_at ASC, auction_id ASC`, bidder)
}

func (s *Store) queryAuctions(ctx context.Context, query string, args ...any) ([]model.Auction, error) {
	rows, err := s.sqlDB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list auctions: %w", err)
	}
	defer rows.Close()

	auctions := []model.Auction{}
	for rows.Next() {
		auction, err := scanAuction(rows)
		if err != nil {
			return nil, fmt.Errorf("list auctions: %w", err)
		}
		auctions = append(auctions, auction)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list auctions: %w", err)
	}
	return auctions, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAuction(row scanner) (model.Auction, error) {
	var (
		auction       model.Auction
		metadata      []byte
		startingPrice string
		minIncrement  string
		state         string
		highest       sql.NullInt64
		winner        sql.NullInt64
		closedAt      sql.NullInt64
	)
	if err := row.Scan(
		&auction.AuctionID,
		&auction.Seller,
		&metadata,
		&startingPrice,
		&minIncrement,
		&auction.EndTime,
		&state,
		&highest,
		&auction.CreatedAt,
		&winner,
		&closedAt,
	); err != nil {
		return model.Auction{}, err
	}

	var err error
	if auction.StartingPrice, err = decimal.NewFromString(startingPrice); err != nil {
		return model.Auction{}, fmt.Errorf("parse starting price: %w", err)
	}
	if auction.MinIncrement, err = decimal.NewFromString(minIncrement); err != nil {
		return model.Auction{}, fmt.Errorf("parse min increment: %w", err)
	}
	if len(metadata) > 0 {
		auction.ItemMetadata = json.RawMessage(metadata)
	}
	auction.State = model.AuctionState(state)
	auction.HighestBidSeq = seqFromNull(highest)
	auction.WinnerSeq = seqFromNull(winner)
	if closedAt.Valid {
		v := closedAt.Int64
		auction.ClosedAt = &v
	}
	return auction, nil
}

func scanBid(row scanner) (model.Bid, error) {
	var (
		bid    model.Bid
		seq    int64
		amount string
	)
	if err := row.Scan(&bid.AuctionID, &seq, &bid.Bidder, &amount, &bid.Timestamp, &bid.Hash); err != nil {
		return model.Bid{}, err
	}
	parsed, err := decimal.NewFromString(amount)
	if err != nil {
		return model.Bid{}, fmt.Errorf("parse bid amount: %w", err)
	}
	bid.Sequence = uint64(seq)
	bid.Amount = parsed
	return bid, nil
}

func nullSeq(p *uint64) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*p), Valid: true}
}

func nullInt(p *int64) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *p, Valid: true}
}

func seqFromNull(v sql.NullInt64) *uint64 {
	if !v.Valid {
		return nil
	}
	return model.SeqPtr(uint64(v.Int64))
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}
