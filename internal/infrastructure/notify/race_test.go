package notify

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

// blockUntilCancelled records that it observed cancellation before
// returning its error.
func blockUntilCancelled(exited *atomic.Bool, err error) func(context.Context) (string, error) {
	return func(ctx context.Context) (string, error) {
		<-ctx.Done()
		exited.Store(true)
		return "loser", err
	}
}

func TestRaceFirst_AWinsAndBIsCancelled(t *testing.T) {
	var bExited atomic.Bool

	res, err := RaceFirst(context.Background(),
		func(ctx context.Context) (int, error) { return 42, nil },
		blockUntilCancelled(&bExited, errors.New("cancelled loser")),
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Winner != WinnerA || res.A != 42 {
		t.Errorf("expected A to win with 42, got %+v", res)
	}
	if res.B != "" {
		t.Errorf("loser value must not leak into result, got %q", res.B)
	}
	if !bExited.Load() {
		t.Error("loser must have returned before RaceFirst returned")
	}
}

func TestRaceFirst_BWinsAndAIsCancelled(t *testing.T) {
	var aExited atomic.Bool

	res, err := RaceFirst(context.Background(),
		blockUntilCancelled(&aExited, nil),
		func(ctx context.Context) ([]byte, error) { return []byte("hi"), nil },
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Winner != WinnerB || string(res.B) != "hi" {
		t.Errorf("expected B to win, got %+v", res)
	}
	if !aExited.Load() {
		t.Error("loser must have returned before RaceFirst returned")
	}
}

func TestRaceFirst_WinnerErrorPropagates(t *testing.T) {
	boom := errors.New("peer closed")
	var aExited atomic.Bool

	res, err := RaceFirst(context.Background(),
		blockUntilCancelled(&aExited, nil),
		func(ctx context.Context) (struct{}, error) { return struct{}{}, boom },
	)
	if !errors.Is(err, boom) {
		t.Fatalf("expected winner error, got %v", err)
	}
	if res.Winner != WinnerB {
		t.Errorf("expected B to be reported as winner, got %v", res.Winner)
	}
}

func TestRaceFirst_LoserErrorIsSwallowed(t *testing.T) {
	var bExited atomic.Bool

	_, err := RaceFirst(context.Background(),
		func(ctx context.Context) (int, error) {
			time.Sleep(10 * time.Millisecond)
			return 1, nil
		},
		blockUntilCancelled(&bExited, errors.New("should not surface")),
	)
	if err != nil {
		t.Fatalf("loser error leaked: %v", err)
	}
}

func TestRaceFirst_ParentCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var aExited, bExited atomic.Bool

	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err := RaceFirst(ctx,
		func(ctx context.Context) (string, error) {
			<-ctx.Done()
			aExited.Store(true)
			return "", ctx.Err()
		},
		func(ctx context.Context) (string, error) {
			<-ctx.Done()
			bExited.Store(true)
			return "", ctx.Err()
		},
	)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if !aExited.Load() || !bExited.Load() {
		t.Error("both branches must have returned")
	}
}

func TestRaceFirst_WithNotifier(t *testing.T) {
	n := NewNotifier()
	disconnect := make(chan struct{})

	go func() {
		time.Sleep(10 * time.Millisecond)
		n.MarkChanged("T1")
	}()

	res, err := RaceFirst(context.Background(),
		func(ctx context.Context) (struct{}, error) {
			return struct{}{}, n.WaitForChange(ctx, "T1")
		},
		func(ctx context.Context) ([]byte, error) {
			select {
			case <-disconnect:
				return nil, errors.New("disconnected")
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		},
	)
	if err != nil || res.Winner != WinnerA {
		t.Fatalf("expected change to win, got %+v, %v", res, err)
	}

	// Now the disconnect wins; the cancelled change wait must not drain a
	// later mark.
	close(disconnect)
	res, err = RaceFirst(context.Background(),
		func(ctx context.Context) (struct{}, error) {
			return struct{}{}, n.WaitForChange(ctx, "T1")
		},
		func(ctx context.Context) ([]byte, error) {
			<-disconnect
			return nil, errors.New("disconnected")
		},
	)
	if err == nil || res.Winner != WinnerB {
		t.Fatalf("expected disconnect to win with error, got %+v, %v", res, err)
	}

	n.MarkChanged("T1")
	if !n.IsPending("T1") {
		t.Error("loser wait must not consume later marks")
	}
}
