package repository_test

import (
	"testing"

	"auction-ledger/internal/repository"
	"auction-ledger/internal/repository/repotest"
)

func TestMemoryRepo_Conformance(t *testing.T) {
	repotest.Run(t, func(t *testing.T) repository.AuctionDB {
		return repository.NewMemoryRepo()
	})
}
