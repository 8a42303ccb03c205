package biddingerrors

import "errors"

// Repository-level errors
var (
	ErrAuctionNotFound  = errors.New("auction not found")
	ErrBidNotFound      = errors.New("bid not found")
	ErrAlreadyExists    = errors.New("auction already exists")
	ErrSequenceConflict = errors.New("bid sequence conflict")
	ErrStateConflict    = errors.New("auction state changed concurrently")
)

// business logic errors
var (
	ErrInvalidParameters    = errors.New("invalid parameters")
	ErrAuctionNotActive     = errors.New("auction not active")
	ErrAuctionNotEnded      = errors.New("auction not ended")
	ErrAuctionAlreadyClosed = errors.New("auction already closed")
	ErrBidTooLow            = errors.New("bid amount too low")
	ErrUnauthorized         = errors.New("unauthorized")
)
