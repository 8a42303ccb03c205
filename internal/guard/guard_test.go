package guard

import (
	"errors"
	"testing"

	"auction-ledger/internal/biddingerrors"
	"auction-ledger/internal/models"

	"github.com/stretchr/testify/require"
)

func TestGuard_Require(t *testing.T) {
	t.Parallel()

	auction := models.Auction{AuctionID: "auction1", Seller: "seller"}

	tests := []struct {
		name       string
		guard      Guard
		principal  string
		capability Capability
		wantError  bool
	}{
		{name: "bidder_can_bid", principal: "bidder", capability: CanBid},
		{name: "seller_cannot_bid_by_default", principal: "seller", capability: CanBid, wantError: true},
		{name: "seller_can_bid_when_allowed", guard: Guard{AllowSellerBids: true}, principal: "seller", capability: CanBid},
		{name: "empty_principal_cannot_bid", principal: "", capability: CanBid, wantError: true},
		{name: "blank_principal_cannot_bid", principal: "   ", capability: CanBid, wantError: true},
		{name: "seller_can_close", principal: "seller", capability: CanClose},
		{name: "bidder_cannot_close", principal: "bidder", capability: CanClose, wantError: true},
		{name: "seller_prefix_cannot_close", principal: "seller2", capability: CanClose, wantError: true},
		{name: "empty_principal_cannot_close", principal: "", capability: CanClose, wantError: true},
		{name: "unknown_capability", principal: "seller", capability: Capability(99), wantError: true},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			err := tc.guard.Require(tc.principal, tc.capability, auction)
			if tc.wantError {
				require.Error(t, err)
				require.True(t, errors.Is(err, biddingerrors.ErrUnauthorized), "expected unauthorized, got: %v", err)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestCapability_String(t *testing.T) {
	t.Parallel()

	require.Equal(t, "can_bid", CanBid.String())
	require.Equal(t, "can_close", CanClose.String())
	require.Equal(t, "capability(7)", Capability(7).String())
}
