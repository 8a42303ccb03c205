package handler

import (
	"context"
	"fmt"
	"net/http"

	"auction-ledger/internal/audit"
	"auction-ledger/internal/auth"
	bidding "auction-ledger/internal/biddingService"
	"auction-ledger/internal/biddingerrors"
	"auction-ledger/internal/clock"
	model "auction-ledger/internal/models"
	"auction-ledger/services/auction/helpers"
	"auction-ledger/utils"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type AuctionServiceInterface interface {
	ListAuction(ctx context.Context, params bidding.ListAuctionParams, now int64) (model.Auction, error)
	PlaceBid(ctx context.Context, auctionID, bidder string, amount decimal.Decimal, now int64) (model.Bid, error)
	MarkEnded(ctx context.Context, auctionID string, now int64) (model.Auction, error)
	Close(ctx context.Context, auctionID, caller string, now int64) (*model.Bid, error)
	GetAuctionDetail(ctx context.Context, auctionID string) (bidding.AuctionDetail, error)
	GetBids(ctx context.Context, auctionID string) ([]model.Bid, error)
	GetAuctionsBySeller(ctx context.Context, seller string) ([]model.Auction, error)
	GetAuctionsByBidder(ctx context.Context, bidder string) ([]model.Auction, error)
	Audit(ctx context.Context, auctionID string) (audit.Report, error)
}

type AuctionHandler struct {
	service AuctionServiceInterface
	clock   clock.Clock
}

// NewAuctionHandler wires the handler to a service; now is always read from clk, never from the request
func NewAuctionHandler(service AuctionServiceInterface, clk clock.Clock) *AuctionHandler {
	return &AuctionHandler{service: service, clock: clk}
}

// ListAuctionHandler handles POST /auctions. The authenticated principal becomes the seller.
func (h *AuctionHandler) ListAuctionHandler(c *gin.Context) {
	seller, ok := h.principal(c, "ListAuctionHandler")
	if !ok {
		return
	}

	var req helpers.ListAuctionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		helpers.HandleBindError(c, "ListAuctionHandler", err)
		return
	}

	auction, err := h.service.ListAuction(c.Request.Context(), bidding.ListAuctionParams{
		Seller:        seller,
		ItemMetadata:  req.ItemMetadata,
		StartingPrice: *req.StartingPrice,
		MinIncrement:  *req.MinIncrement,
		EndTime:       req.EndTime,
	}, h.clock.Now())
	if err != nil {
		helpers.RespondError(c, "ListAuctionHandler", err, map[string]any{"seller": seller})
		return
	}

	utils.JSONResponse(c, http.StatusCreated, auction, "auction listed successfully")
	helpers.LogSuccess("ListAuctionHandler", "auction listed successfully", map[string]any{
		"auction_id":     auction.AuctionID,
		"seller":         seller,
		"starting_price": auction.StartingPrice.String(),
		"end_time":       auction.EndTime,
	})
}

// GetAuctionHandler handles GET /auctions/:auction_id
func (h *AuctionHandler) GetAuctionHandler(c *gin.Context) {
	auctionID, ok := auctionIDParam(c, "GetAuctionHandler")
	if !ok {
		return
	}

	detail, err := h.service.GetAuctionDetail(c.Request.Context(), auctionID)
	if err != nil {
		helpers.RespondError(c, "GetAuctionHandler", err, map[string]any{"auction_id": auctionID})
		return
	}

	utils.JSONResponse(c, http.StatusOK, detail, "auction retrieved successfully")
	helpers.LogSuccess("GetAuctionHandler", "auction retrieved successfully", map[string]any{
		"auction_id": auctionID,
		"state":      detail.State,
	})
}

// GetBidsHandler handles GET /auctions/:auction_id/bids
func (h *AuctionHandler) GetBidsHandler(c *gin.Context) {
	auctionID, ok := auctionIDParam(c, "GetBidsHandler")
	if !ok {
		return
	}

	bids, err := h.service.GetBids(c.Request.Context(), auctionID)
	if err != nil {
		helpers.RespondError(c, "GetBidsHandler", err, map[string]any{"auction_id": auctionID})
		return
	}
	if bids == nil {
		bids = []model.Bid{}
	}

	utils.JSONResponse(c, http.StatusOK, bids, "bids retrieved successfully")
	helpers.LogSuccess("GetBidsHandler", "bids retrieved successfully", map[string]any{
		"auction_id": auctionID,
		"count":      len(bids),
	})
}

// PlaceBidHandler handles POST /auctions/:auction_id/bids. The authenticated principal is the bidder.
func (h *AuctionHandler) PlaceBidHandler(c *gin.Context) {
	bidder, ok := h.principal(c, "PlaceBidHandler")
	if !ok {
		return
	}
	auctionID, ok := auctionIDParam(c, "PlaceBidHandler")
	if !ok {
		return
	}

	var req helpers.PlaceBidRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		helpers.HandleBindError(c, "PlaceBidHandler", err)
		return
	}

	bid, err := h.service.PlaceBid(c.Request.Context(), auctionID, bidder, *req.Amount, h.clock.Now())
	if err != nil {
		helpers.RespondError(c, "PlaceBidHandler", err, map[string]any{
			"auction_id": auctionID,
			"bidder":     bidder,
			"amount":     req.Amount.String(),
		})
		return
	}

	utils.JSONResponse(c, http.StatusCreated, bid, "bid recorded successfully")
	helpers.LogSuccess("PlaceBidHandler", "bid recorded successfully", map[string]any{
		"auction_id": auctionID,
		"sequence":   bid.Sequence,
		"bidder":     bidder,
		"amount":     bid.Amount.String(),
	})
}

// MarkEndedHandler handles POST /auctions/:auction_id/end
func (h *AuctionHandler) MarkEndedHandler(c *gin.Context) {
	auctionID, ok := auctionIDParam(c, "MarkEndedHandler")
	if !ok {
		return
	}

	auction, err := h.service.MarkEnded(c.Request.Context(), auctionID, h.clock.Now())
	if err != nil {
		helpers.RespondError(c, "MarkEndedHandler", err, map[string]any{"auction_id": auctionID})
		return
	}

	utils.JSONResponse(c, http.StatusOK, auction, "auction ended")
	helpers.LogSuccess("MarkEndedHandler", "auction ended", map[string]any{"auction_id": auctionID})
}

// CloseAuctionHandler handles POST /auctions/:auction_id/close. Only the seller may close.
func (h *AuctionHandler) CloseAuctionHandler(c *gin.Context) {
	caller, ok := h.principal(c, "CloseAuctionHandler")
	if !ok {
		return
	}
	auctionID, ok := auctionIDParam(c, "CloseAuctionHandler")
	if !ok {
		return
	}

	winner, err := h.service.Close(c.Request.Context(), auctionID, caller, h.clock.Now())
	if err != nil {
		helpers.RespondError(c, "CloseAuctionHandler", err, map[string]any{
			"auction_id": auctionID,
			"caller":     caller,
		})
		return
	}

	message := "auction closed with no bids"
	fields := map[string]any{"auction_id": auctionID}
	if winner != nil {
		message = "auction closed successfully"
		fields["winner"] = winner.Bidder
		fields["amount"] = winner.Amount.String()
	}

	utils.JSONResponse(c, http.StatusOK, helpers.CloseAuctionResponse{AuctionID: auctionID, Winner: winner}, message)
	helpers.LogSuccess("CloseAuctionHandler", message, fields)
}

// AuditHandler handles GET /auctions/:auction_id/audit
func (h *AuctionHandler) AuditHandler(c *gin.Context) {
	auctionID, ok := auctionIDParam(c, "AuditHandler")
	if !ok {
		return
	}

	report, err := h.service.Audit(c.Request.Context(), auctionID)
	if err != nil {
		helpers.RespondError(c, "AuditHandler", err, map[string]any{"auction_id": auctionID})
		return
	}

	if !report.Consistent {
		utils.Error("AuditHandler: bid log inconsistent", map[string]any{
			"auction_id":  auctionID,
			"chain_valid": report.ChainValid,
			"error":       report.Error,
		})
	}

	utils.JSONResponse(c, http.StatusOK, report, "audit completed")
	helpers.LogSuccess("AuditHandler", "audit completed", map[string]any{
		"auction_id": auctionID,
		"bid_count":  report.BidCount,
		"consistent": report.Consistent,
	})
}

// GetAuctionsBySellerHandler handles GET /sellers/:seller/auctions
func (h *AuctionHandler) GetAuctionsBySellerHandler(c *gin.Context) {
	seller := c.Param("seller")
	auctions, err := h.service.GetAuctionsBySeller(c.Request.Context(), seller)
	if err != nil {
		helpers.RespondError(c, "GetAuctionsBySellerHandler", err, map[string]any{"seller": seller})
		return
	}
	respondAuctionList(c, "GetAuctionsBySellerHandler", auctions, map[string]any{"seller": seller})
}

// GetAuctionsByBidderHandler handles GET /bidders/:bidder/auctions
func (h *AuctionHandler) GetAuctionsByBidderHandler(c *gin.Context) {
	bidder := c.Param("bidder")
	auctions, err := h.service.GetAuctionsByBidder(c.Request.Context(), bidder)
	if err != nil {
		helpers.RespondError(c, "GetAuctionsByBidderHandler", err, map[string]any{"bidder": bidder})
		return
	}
	respondAuctionList(c, "GetAuctionsByBidderHandler", auctions, map[string]any{"bidder": bidder})
}

func respondAuctionList(c *gin.Context, handlerName string, auctions []model.Auction, fields map[string]any) {
	if auctions == nil {
		auctions = []model.Auction{}
	}
	utils.JSONResponse(c, http.StatusOK, helpers.AuctionListResponse{Auctions: auctions, Count: len(auctions)}, "auctions retrieved successfully")
	fields["count"] = len(auctions)
	helpers.LogSuccess(handlerName, "auctions retrieved successfully", fields)
}

// principal returns the identity stored by the auth middleware, responding 401 when absent
func (h *AuctionHandler) principal(c *gin.Context, handlerName string) (string, bool) {
	principal := c.GetString(auth.ContextKey)
	if principal == "" {
		helpers.RespondError(c, handlerName, fmt.Errorf("handler: %w - no principal on request", auth.ErrUnauthenticated), nil)
		return "", false
	}
	return principal, true
}

// auctionIDParam reads :auction_id. Ids that could never have been issued are reported as not found.
func auctionIDParam(c *gin.Context, handlerName string) (string, bool) {
	auctionID := c.Param("auction_id")
	if !utils.ValidID(auctionID) {
		helpers.RespondError(c, handlerName, fmt.Errorf("handler: %w - malformed auction id %q", biddingerrors.ErrAuctionNotFound, auctionID), nil)
		return "", false
	}
	return auctionID, true
}
