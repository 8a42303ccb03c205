package bidding

import (
	"context"
	"sync"
	"testing"

	"auction-ledger/internal/biddingerrors"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestKeyedMutex_ReleasesEntries(t *testing.T) {
	k := newKeyedMutex()

	var wg sync.WaitGroup
	counter := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := k.Lock("auction1")
			counter++
			unlock()
		}()
	}
	wg.Wait()

	require.Equal(t, 50, counter)
	require.Zero(t, k.size())
}

func TestKeyedMutex_HeldEntrySurvivesOtherUnlocks(t *testing.T) {
	k := newKeyedMutex()

	unlockA := k.Lock("a")
	unlockB := k.Lock("b")
	require.Equal(t, 2, k.size())

	unlockB()
	require.Equal(t, 1, k.size())

	acquired := make(chan struct{})
	go func() {
		unlock := k.Lock("a")
		close(acquired)
		unlock()
	}()

	select {
	case <-acquired:
		t.Fatal("second holder acquired a held lock")
	default:
	}

	unlockA()
	<-acquired
	require.Zero(t, k.size())
}

// Calls on ids that were never listed must not leave lock entries behind
func TestAuctionService_UnknownIDsLeaveNoLocks(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	for i := 0; i < 1000; i++ {
		id := uuid.NewString()
		_, err := svc.PlaceBid(ctx, id, "bidder", d(100), listedAt)
		requireErrorIs(t, err, biddingerrors.ErrAuctionNotFound)
		_, err = svc.MarkEnded(ctx, id, endsAt)
		requireErrorIs(t, err, biddingerrors.ErrAuctionNotFound)
		_, err = svc.Close(ctx, id, "seller", endsAt)
		requireErrorIs(t, err, biddingerrors.ErrAuctionNotFound)
	}

	require.Zero(t, svc.locks.size())
}
