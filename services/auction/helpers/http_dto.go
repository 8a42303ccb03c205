package helpers

import (
	"encoding/json"

	model "auction-ledger/internal/models"

	"github.com/shopspring/decimal"
)

// Request/Response DTOs. Amounts accept JSON numbers or strings.
type ListAuctionRequest struct {
	ItemMetadata  json.RawMessage  `json:"item_metadata"`
	StartingPrice *decimal.Decimal `json:"starting_price" binding:"required"`
	MinIncrement  *decimal.Decimal `json:"min_increment" binding:"required"`
	EndTime       int64            `json:"end_time" binding:"required,gt=0"`
}

type PlaceBidRequest struct {
	Amount *decimal.Decimal `json:"amount" binding:"required"`
}

type CloseAuctionResponse struct {
	AuctionID string     `json:"auction_id"`
	Winner    *model.Bid `json:"winner"`
}

type AuctionListResponse struct {
	Auctions []model.Auction `json:"auctions"`
	Count    int             `json:"count"`
}
