// Package postgres provides a Postgres-backed auction registry built on gorm.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"auction-ledger/internal/biddingerrors"
	model "auction-ledger/internal/models"
	"auction-ledger/internal/repository"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

type auctionModel struct {
	AuctionID     string          `gorm:"column:auction_id;primaryKey"`
	Seller        string          `gorm:"column:seller;not null;index:idx_auctions_seller,priority:1"`
	ItemMetadata  []byte          `gorm:"column:item_metadata;type:bytea"`
	StartingPrice decimal.Decimal `gorm:"column:starting_price;type:numeric;not null"`
	MinIncrement  decimal.Decimal `gorm:"column:min_increment;type:numeric;not null"`
	EndTime       int64           `gorm:"column:end_time;not null"`
	State         string          `gorm:"column:state;not null"`
	HighestBidSeq *int64          `gorm:"column:highest_bid_seq"`
	CreatedAt     int64           `gorm:"column:created_at;not null;autoCreateTime:false;index:idx_auctions_seller,priority:2"`
	WinnerSeq     *int64          `gorm:"column:winner_seq"`
	ClosedAt      *int64          `gorm:"column:closed_at"`
}

func (auctionModel) TableName() string { return "auctions" }

type bidModel struct {
	AuctionID string          `gorm:"column:auction_id;primaryKey"`
	Seq       int64           `gorm:"column:seq;primaryKey;autoIncrement:false"`
	Bidder    string          `gorm:"column:bidder;not null;index:idx_bids_bidder"`
	Amount    decimal.Decimal `gorm:"column:amount;type:numeric;not null"`
	Ts        int64           `gorm:"column:ts;not null"`
	Hash      string          `gorm:"column:hash;not null"`
}

func (bidModel) TableName() string { return "bids" }

// Store persists auctions and bids in Postgres.
type Store struct {
	db *gorm.DB
}

var _ repository.AuctionDB = (*Store)(nil)

// Open connects to Postgres, verifies the connection and migrates the schema.
func Open(ctx context.Context, dsn string) (*Store, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, errors.New("postgres dsn is required")
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("open gorm postgres: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("resolve postgres sql db handle: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(pingCtx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	if err := db.WithContext(ctx).AutoMigrate(&auctionModel{}, &bidModel{}); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("migrate postgres schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *Store) CreateAuction(ctx context.Context, auction model.Auction) error {
	row := auctionModelFromEntity(auction)
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("create auction %s: %w", auction.AuctionID, biddingerrors.ErrAlreadyExists)
		}
		return fmt.Errorf("create auction %s: %w", auction.AuctionID, err)
	}
	return nil
}

func (s *Store) GetAuction(ctx context.Context, auctionID string) (model.Auction, error) {
	var row auctionModel
	err := s.db.WithContext(ctx).Where("auction_id = ?", auctionID).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return model.Auction{}, fmt.Errorf("get auction %s: %w", auctionID, biddingerrors.ErrAuctionNotFound)
		}
		return model.Auction{}, fmt.Errorf("get auction %s: %w", auctionID, err)
	}
	return row.toEntity(), nil
}

// UpdateAuction writes the mutable fields only while the stored state is still from.
func (s *Store) UpdateAuction(ctx context.Context, auction model.Auction, from model.AuctionState) error {
	db := s.db.WithContext(ctx)
	row := auctionModelFromEntity(auction)
	res := db.Model(&auctionModel{}).
		Where("auction_id = ? AND state = ?", auction.AuctionID, string(from)).
		Updates(map[string]any{
			"state":           row.State,
			"highest_bid_seq": row.HighestBidSeq,
			"winner_seq":      row.WinnerSeq,
			"closed_at":       row.ClosedAt,
		})
	if res.Error != nil {
		return fmt.Errorf("update auction %s: %w", auction.AuctionID, res.Error)
	}
	if res.RowsAffected > 0 {
		return nil
	}

	var stored auctionModel
	if err := db.Select("state").Where("auction_id = ?", auction.AuctionID).First(&stored).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("update auction %s: %w", auction.AuctionID, biddingerrors.ErrAuctionNotFound)
		}
		return fmt.Errorf("update auction %s: %w", auction.AuctionID, err)
	}
	return repository.StateMismatch(auction.AuctionID, from, model.AuctionState(stored.State))
}

// AppendBid locks the auction row, requires it to be active and the sequence to be next,
// then writes the bid and moves the highest-bid pointer.
func (s *Store) AppendBid(ctx context.Context, auction model.Auction, bid model.Bid) (model.Bid, error) {
	if auction.AuctionID != bid.AuctionID {
		return model.Bid{}, fmt.Errorf("append bid for auction %s: %w", bid.AuctionID, biddingerrors.ErrAuctionNotFound)
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var locked auctionModel
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("auction_id = ?", bid.AuctionID).
			First(&locked).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("append bid for auction %s: %w", bid.AuctionID, biddingerrors.ErrAuctionNotFound)
			}
			return fmt.Errorf("append bid: lock auction: %w", err)
		}
		if model.AuctionState(locked.State) != model.StateActive {
			return fmt.Errorf("append bid for auction %s: %w - stored state is %s",
				bid.AuctionID, biddingerrors.ErrAuctionNotActive, locked.State)
		}

		var count int64
		if err := tx.Model(&bidModel{}).Where("auction_id = ?", bid.AuctionID).Count(&count).Error; err != nil {
			return fmt.Errorf("append bid: count: %w", err)
		}
		if bid.Sequence != uint64(count) {
			return fmt.Errorf("append bid for auction %s: %w - expected sequence %d, got %d",
				bid.AuctionID, biddingerrors.ErrSequenceConflict, count, bid.Sequence)
		}

		row := bidModelFromEntity(bid)
		if err := tx.Create(&row).Error; err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("append bid for auction %s: %w", bid.AuctionID, biddingerrors.ErrSequenceConflict)
			}
			return fmt.Errorf("append bid for auction %s: %w", bid.AuctionID, err)
		}
		seq := int64(bid.Sequence)
		return tx.Model(&auctionModel{}).
			Where("auction_id = ?", bid.AuctionID).
			Update("highest_bid_seq", &seq).Error
	})
	if err != nil {
		return model.Bid{}, err
	}
	return bid, nil
}

func (s *Store) GetBid(ctx context.Context, auctionID string, seq uint64) (model.Bid, error) {
	var row bidModel
	err := s.db.WithContext(ctx).
		Where("auction_id = ? AND seq = ?", auctionID, int64(seq)).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return model.Bid{}, fmt.Errorf("get bid %d for auction %s: %w", seq, auctionID, biddingerrors.ErrBidNotFound)
		}
		return model.Bid{}, fmt.Errorf("get bid %d for auction %s: %w", seq, auctionID, err)
	}
	return row.toEntity(), nil
}

func (s *Store) ListBids(ctx context.Context, auctionID string) ([]model.Bid, error) {
	if _, err := s.GetAuction(ctx, auctionID); err != nil {
		return nil, fmt.Errorf("list bids: %w", err)
	}

	var rows []bidModel
	if err := s.db.WithContext(ctx).
		Where("auction_id = ?", auctionID).
		Order("seq ASC").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list bids for auction %s: %w", auctionID, err)
	}

	bids := make([]model.Bid, 0, len(rows))
	for _, row := range rows {
		bids = append(bids, row.toEntity())
	}
	return bids, nil
}

func (s *Store) ListAuctionsBySeller(ctx context.Context, seller string) ([]model.Auction, error) {
	var rows []auctionModel
	if err := s.db.WithContext(ctx).
		Where("seller = ?", seller).
		Order("created_at ASC, auction_id ASC").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list auctions for seller %s: %w", seller, err)
	}
	return toEntities(rows), nil
}

func (s *Store) ListAuctionsByBidder(ctx context.Context, bidder string) ([]model.Auction, error) {
	var rows []auctionModel
	sub := s.db.Model(&bidModel{}).Distinct("auction_id").Where("bidder = ?", bidder)
	if err := s.db.WithContext(ctx).
		Where("auction_id IN (?)", sub).
		Order("created_at ASC, auction_id ASC").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list auctions for bidder %s: %w", bidder, err)
	}
	return toEntities(rows), nil
}

func auctionModelFromEntity(a model.Auction) auctionModel {
	return auctionModel{
		AuctionID:     a.AuctionID,
		Seller:        a.Seller,
		ItemMetadata:  []byte(a.ItemMetadata),
		StartingPrice: a.StartingPrice,
		MinIncrement:  a.MinIncrement,
		EndTime:       a.EndTime,
		State:         string(a.State),
		HighestBidSeq: seqToInt(a.HighestBidSeq),
		CreatedAt:     a.CreatedAt,
		WinnerSeq:     seqToInt(a.WinnerSeq),
		ClosedAt:      copyInt(a.ClosedAt),
	}
}

func (m auctionModel) toEntity() model.Auction {
	a := model.Auction{
		AuctionID:     m.AuctionID,
		Seller:        m.Seller,
		StartingPrice: m.StartingPrice,
		MinIncrement:  m.MinIncrement,
		EndTime:       m.EndTime,
		State:         model.AuctionState(m.State),
		HighestBidSeq: intToSeq(m.HighestBidSeq),
		CreatedAt:     m.CreatedAt,
		WinnerSeq:     intToSeq(m.WinnerSeq),
		ClosedAt:      copyInt(m.ClosedAt),
	}
	if len(m.ItemMetadata) > 0 {
		a.ItemMetadata = json.RawMessage(append([]byte(nil), m.ItemMetadata...))
	}
	return a
}

func bidModelFromEntity(b model.Bid) bidModel {
	return bidModel{
		AuctionID: b.AuctionID,
		Seq:       int64(b.Sequence),
		Bidder:    b.Bidder,
		Amount:    b.Amount,
		Ts:        b.Timestamp,
		Hash:      b.Hash,
	}
}

func (m bidModel) toEntity() model.Bid {
	return model.Bid{
		AuctionID: m.AuctionID,
		Sequence:  uint64(m.Seq),
		Bidder:    m.Bidder,
		Amount:    m.Amount,
		Timestamp: m.Ts,
		Hash:      m.Hash,
	}
}

func toEntities(rows []auctionModel) []model.Auction {
	out := make([]model.Auction, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toEntity())
	}
	return out
}

func seqToInt(p *uint64) *int64 {
	if p == nil {
		return nil
	}
	v := int64(*p)
	return &v
}

func intToSeq(p *int64) *uint64 {
	if p == nil {
		return nil
	}
	return model.SeqPtr(uint64(*p))
}

func copyInt(p *int64) *int64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return errors.Is(err, gorm.ErrDuplicatedKey)
}
