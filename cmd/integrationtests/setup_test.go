package integrationtests

import (
	"auction-ledger/internal/auth"
	bidding "auction-ledger/internal/biddingService"
	"auction-ledger/internal/clock"
	"auction-ledger/internal/guard"
	"auction-ledger/internal/repository"
	"auction-ledger/internal/repository/sqlite"
	"auction-ledger/internal/server"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

const startTime = int64(1_700_000_000)

// testEnv is a router over a real service, driven by a manual clock
type testEnv struct {
	router *gin.Engine
	clock  *clock.ManualClock
}

// SetupTestRouter initializes the router with an in-memory repository for integration testing.
func SetupTestRouter(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnv(repository.NewMemoryRepo())
}

// SetupSQLiteRouter initializes the router over a fresh on-disk sqlite store.
func SetupSQLiteRouter(t *testing.T) *testEnv {
	t.Helper()
	store, err := sqlite.Open(context.Background(), filepath.Join(t.TempDir(), "auctions.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return newTestEnv(store)
}

func newTestEnv(repo repository.AuctionDB) *testEnv {
	gin.SetMode(gin.TestMode)
	clk := clock.NewManualClock(startTime)
	service := bidding.NewAuctionService(repo, guard.Guard{})
	return &testEnv{
		router: server.SetupRouter(service, auth.HeaderAuthenticator{}, clk),
		clock:  clk,
	}
}

// ExecuteRequestAndParse executes an HTTP request as principal and returns the envelope's data.
// An empty principal sends no identity.
func (e *testEnv) ExecuteRequestAndParse(t *testing.T, method, url, principal string, body any) (any, *httptest.ResponseRecorder) {
	t.Helper()

	var reqBody []byte
	var err error
	switch v := body.(type) {
	case nil:
	case []byte:
		reqBody = v
	default:
		reqBody, err = json.Marshal(v)
		if err != nil {
			t.Fatalf("failed to marshal body: %v", err)
		}
	}

	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, url, bytes.NewReader(reqBody))
	req.Header.Set("Content-Type", "application/json")
	if principal != "" {
		req.Header.Set(auth.PrincipalHeader, principal)
	}
	e.router.ServeHTTP(w, req)

	var resp map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	return resp["data"], w
}

// listAuction creates an auction as seller and returns its id
func (e *testEnv) listAuction(t *testing.T, seller string, startingPrice, minIncrement, duration int64) string {
	t.Helper()
	data, w := e.ExecuteRequestAndParse(t, http.MethodPost, "/auctions", seller, map[string]any{
		"item_metadata":  map[string]any{"title": "vintage lamp", "condition": "used"},
		"starting_price": startingPrice,
		"min_increment":  minIncrement,
		"end_time":       e.clock.Now() + duration,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return data.(map[string]any)["auction_id"].(string)
}
