package guard

import (
	"fmt"
	"strings"

	"auction-ledger/internal/biddingerrors"
	"auction-ledger/internal/models"
)

// Capability is a permission checked against a caller's identity
type Capability int

const (
	CanBid Capability = iota + 1
	CanClose
)

func (c Capability) String() string {
	switch c {
	case CanBid:
		return "can_bid"
	case CanClose:
		return "can_close"
	default:
		return fmt.Sprintf("capability(%d)", int(c))
	}
}

// Guard decides whether a principal may perform a privileged action on an auction.
// It holds no mutable state.
type Guard struct {
	// AllowSellerBids lets the seller bid on their own auction
	AllowSellerBids bool
}

// Require returns nil if principal holds capability on auction, otherwise an error wrapping ErrUnauthorized
func (g Guard) Require(principal string, capability Capability, auction models.Auction) error {
	principal = strings.TrimSpace(principal)
	if principal == "" {
		return fmt.Errorf("guard: %w - missing principal for %s", biddingerrors.ErrUnauthorized, capability)
	}

	switch capability {
	case CanBid:
		if !g.AllowSellerBids && principal == auction.Seller {
			return fmt.Errorf("guard: %w - seller %s cannot bid on own auction", biddingerrors.ErrUnauthorized, principal)
		}
		return nil
	case CanClose:
		if principal != auction.Seller {
			return fmt.Errorf("guard: %w - only the seller may close auction %s", biddingerrors.ErrUnauthorized, auction.AuctionID)
		}
		return nil
	default:
		return fmt.Errorf("guard: %w - unknown %s", biddingerrors.ErrUnauthorized, capability)
	}
}
