package notify

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Winner tags which operation finished first in RaceFirst.
type Winner int

const (
	WinnerA Winner = iota + 1
	WinnerB
)

func (w Winner) String() string {
	switch w {
	case WinnerA:
		return "a"
	case WinnerB:
		return "b"
	default:
		return "none"
	}
}

// RaceResult carries the winner's value. Only the field matching Winner is
// meaningful.
type RaceResult[A, B any] struct {
	Winner Winner
	A      A
	B      B
}

type outcome[A, B any] struct {
	result RaceResult[A, B]
	err    error
}

// RaceFirst runs a and b concurrently with a shared child context and returns
// as soon as one of them finishes. The other is cancelled through that
// context and RaceFirst waits for it to return before returning itself, so
// no goroutine outlives the call. The winner's error is returned; the
// loser's result and error are discarded.
//
// Both operations must return promptly once their context is cancelled.
func RaceFirst[A, B any](
	ctx context.Context,
	a func(context.Context) (A, error),
	b func(context.Context) (B, error),
) (RaceResult[A, B], error) {
	rctx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make(chan outcome[A, B], 2)

	var eg errgroup.Group
	eg.Go(func() error {
		v, err := a(rctx)
		results <- outcome[A, B]{result: RaceResult[A, B]{Winner: WinnerA, A: v}, err: err}
		return nil
	})
	eg.Go(func() error {
		v, err := b(rctx)
		results <- outcome[A, B]{result: RaceResult[A, B]{Winner: WinnerB, B: v}, err: err}
		return nil
	})

	first := <-results
	cancel()
	_ = eg.Wait()

	return first.result, first.err
}
