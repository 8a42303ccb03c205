package helpers

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"auction-ledger/internal/auth"
	"auction-ledger/internal/biddingerrors"

	"github.com/stretchr/testify/require"
)

func TestMapErrorToHTTP(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{biddingerrors.ErrInvalidParameters, http.StatusBadRequest},
		{biddingerrors.ErrAuctionNotFound, http.StatusNotFound},
		{biddingerrors.ErrAuctionNotActive, http.StatusConflict},
		{biddingerrors.ErrAuctionNotEnded, http.StatusConflict},
		{biddingerrors.ErrAuctionAlreadyClosed, http.StatusConflict},
		{biddingerrors.ErrBidTooLow, http.StatusConflict},
		{biddingerrors.ErrSequenceConflict, http.StatusConflict},
		{biddingerrors.ErrStateConflict, http.StatusConflict},
		{biddingerrors.ErrUnauthorized, http.StatusForbidden},
		{auth.ErrUnauthenticated, http.StatusUnauthorized},
		{errors.New("disk full"), http.StatusInternalServerError},
	}

	for _, tc := range tests {
		t.Run(tc.err.Error(), func(t *testing.T) {
			status, message := MapErrorToHTTP(fmt.Errorf("service: wrapped: %w", tc.err))
			require.Equal(t, tc.status, status)
			require.NotEmpty(t, message)
		})
	}
}
