package server

import (
	"auction-ledger/internal/auth"
	"auction-ledger/internal/clock"
	"auction-ledger/services/auction/handler"
	"auction-ledger/utils"
	"net/http"

	"github.com/gin-gonic/gin"
)

// SetupRouter configures all Gin routes for the application.
// Reads are public; listing, bidding and closing require an authenticated principal.
func SetupRouter(service handler.AuctionServiceInterface, authenticator auth.Authenticator, clk clock.Clock) *gin.Engine {
	router := gin.New() // New router without default middleware for full control over middleware and logging

	router.Use(gin.Recovery())          // recover from panics
	router.Use(RequestLoggerMiddleware) // custom request logging

	auctionHandler := handler.NewAuctionHandler(service, clk)
	requireAuth := AuthMiddleware(authenticator)

	router.GET("/healthz", func(c *gin.Context) {
		utils.JSONResponse(c, http.StatusOK, gin.H{"time": clk.Now()}, "ok")
	})

	auctions := router.Group("/auctions")
	{
		auctions.POST("", requireAuth, auctionHandler.ListAuctionHandler)
		auctions.GET("/:auction_id", auctionHandler.GetAuctionHandler)
		auctions.GET("/:auction_id/bids", auctionHandler.GetBidsHandler)
		auctions.POST("/:auction_id/bids", requireAuth, auctionHandler.PlaceBidHandler)
		auctions.POST("/:auction_id/end", auctionHandler.MarkEndedHandler)
		auctions.POST("/:auction_id/close", requireAuth, auctionHandler.CloseAuctionHandler)
		auctions.GET("/:auction_id/audit", auctionHandler.AuditHandler)
	}

	sellers := router.Group("/sellers")
	{
		sellers.GET("/:seller/auctions", auctionHandler.GetAuctionsBySellerHandler)
	}

	bidders := router.Group("/bidders")
	{
		bidders.GET("/:bidder/auctions", auctionHandler.GetAuctionsByBidderHandler)
	}

	return router
}
