// Package audit makes an auction's bid log tamper-evident and replayable.
//
// Every accepted bid carries a hash that commits to the previous bid's hash,
// so the whole log of an auction forms a chain rooted at the auction id.
// Anyone holding the ordered bid list can recompute the chain and the
// leading bid without trusting the stored highest-bid pointer.
package audit

import (
	"crypto/sha256"
	"errors"
	"fmt"

	"auction-ledger/internal/models"
)

// hashPrecision fixes the amount formatting so that equal amounts always hash equally
// regardless of how the decimal was constructed.
const hashPrecision int32 = 4

// ErrChainBroken is returned when a bid log fails verification
var ErrChainBroken = errors.New("bid chain broken")

// GenesisHash returns the previous-hash value used for the first bid of an auction.
func GenesisHash(auctionID string) string {
	return auctionID
}

// ComputeBidHash computes the chain link for bid.
//
// Formula: SHA256(prev_hash + "|" + auction_id + "|" + seq + "|" + bidder + "|" + amount(4dp) + "|" + timestamp)
func ComputeBidHash(prevHash string, bid models.Bid) string {
	data := fmt.Sprintf("%s|%s|%d|%s|%s|%d",
		prevHash,
		bid.AuctionID,
		bid.Sequence,
		bid.Bidder,
		bid.Amount.StringFixed(hashPrecision),
		bid.Timestamp,
	)
	hash := sha256.Sum256([]byte(data))
	return fmt.Sprintf("%x", hash)
}

// PrevHash returns the hash the next bid must chain from, given the current last bid (nil if none).
func PrevHash(auctionID string, last *models.Bid) string {
	if last == nil {
		return GenesisHash(auctionID)
	}
	return last.Hash
}
