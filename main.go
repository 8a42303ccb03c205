package main

import (
	"auction-ledger/internal/auth"
	bidding "auction-ledger/internal/biddingService"
	"auction-ledger/internal/clock"
	"auction-ledger/internal/config"
	"auction-ledger/internal/guard"
	"auction-ledger/internal/repository"
	"auction-ledger/internal/repository/postgres"
	"auction-ledger/internal/repository/sqlite"
	"auction-ledger/internal/server"
	"auction-ledger/utils"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}
	if err := utils.SetLevel(cfg.LogLevel); err != nil {
		utils.Fatal("failed to set log level", map[string]any{"error": err.Error()})
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	repo, closeRepo, err := openStore(ctx, cfg)
	if err != nil {
		utils.Fatal("failed to open auction store", map[string]any{"store": cfg.Store, "error": err.Error()})
	}
	defer closeRepo()

	authenticator, err := cfg.Authenticator()
	if err != nil {
		utils.Fatal("failed to configure authentication", map[string]any{"mode": cfg.AuthMode, "error": err.Error()})
	}

	if cfg.TrustsClientPrincipal() {
		utils.Warn("header auth mode trusts the client-supplied principal; set AUCTION_AUTH_MODE=jwt unless a gateway authenticates callers", map[string]any{
			"header": auth.PrincipalHeader,
		})
	}

	auctionSvc := bidding.NewAuctionService(repo, guard.Guard{AllowSellerBids: cfg.AllowSellerBids})
	router := server.SetupRouter(auctionSvc, authenticator, clock.SystemClock{})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			utils.Error("graceful shutdown failed", map[string]any{"error": err.Error()})
		}
	}()

	utils.Info("starting auction server", map[string]any{
		"port":      cfg.Port,
		"store":     cfg.Store,
		"auth_mode": cfg.AuthMode,
	})
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		utils.Fatal("server stopped", map[string]any{"error": err.Error()})
	}
	utils.Info("auction server stopped", nil)
}

// openStore returns the configured AuctionDB and a function that releases it
func openStore(ctx context.Context, cfg config.Config) (repository.AuctionDB, func(), error) {
	switch cfg.Store {
	case config.StoreSQLite:
		store, err := sqlite.Open(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return store, func() { _ = store.Close() }, nil
	case config.StorePostgres:
		store, err := postgres.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, nil, err
		}
		return store, func() { _ = store.Close() }, nil
	default:
		return repository.NewMemoryRepo(), func() {}, nil
	}
}
