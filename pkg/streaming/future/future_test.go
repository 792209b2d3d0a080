package future

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/vnykmshr/sinkflow/internal/testutil"
)

func TestResolve(t *testing.T) {
	f := New()
	testutil.AssertEqual(t, f.Pending(), true)

	testutil.AssertEqual(t, f.Resolve(), true)
	testutil.AssertEqual(t, f.Settled(), true)
	testutil.AssertNoError(t, f.Err())

	select {
	case <-f.Done():
	default:
		t.Fatal("Done should be closed after Resolve")
	}
}

func TestReject(t *testing.T) {
	boom := errors.New("boom")
	f := New()
	testutil.AssertEqual(t, f.Reject(boom), true)
	testutil.AssertEqual(t, f.Err(), boom)

	ctx, cancel := testutil.WithTimeout(t)
	defer cancel()
	testutil.AssertEqual(t, f.Wait(ctx), boom)
}

func TestFirstSettlementWins(t *testing.T) {
	boom := errors.New("boom")

	f := New()
	f.Resolve()
	testutil.AssertEqual(t, f.Reject(boom), false)
	testutil.AssertNoError(t, f.Err())

	g := New()
	g.Reject(boom)
	testutil.AssertEqual(t, g.Resolve(), false)
	testutil.AssertEqual(t, g.Reject(errors.New("other")), false)
	testutil.AssertEqual(t, g.Err(), boom)
}

func TestRejectNil(t *testing.T) {
	f := Rejected(nil)
	testutil.AssertEqual(t, errors.Is(f.Err(), ErrNilReason), true)
}

func TestPresettled(t *testing.T) {
	testutil.AssertEqual(t, Resolved().Settled(), true)
	testutil.AssertNoError(t, Resolved().Err())

	boom := errors.New("boom")
	testutil.AssertEqual(t, Rejected(boom).Err(), boom)
}

func TestWaitContextCanceled(t *testing.T) {
	f := New()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err := f.Wait(ctx)
	testutil.AssertEqual(t, errors.Is(err, context.DeadlineExceeded), true)
	testutil.AssertEqual(t, f.Pending(), true)
}

func TestConcurrentSettlement(t *testing.T) {
	f := New()
	var wins int32
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			var won bool
			if i%2 == 0 {
				won = f.Resolve()
			} else {
				won = f.Reject(errors.New("loser"))
			}
			if won {
				atomic.AddInt32(&wins, 1)
			}
		}(i)
	}

	wg.Wait()
	testutil.AssertEqual(t, atomic.LoadInt32(&wins), int32(1))
}

func TestManyWaiters(t *testing.T) {
	f := New()
	ctx, cancel := testutil.WithTimeout(t)
	defer cancel()

	var wg sync.WaitGroup
	errs := make(chan error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- f.Wait(ctx)
		}()
	}

	f.Resolve()
	wg.Wait()
	close(errs)
	for err := range errs {
		testutil.AssertNoError(t, err)
	}
}
