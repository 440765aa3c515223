package index

import (
	"errors"
	"fmt"
)

// ErrInconsistent is returned when the forward and reverse orderings of an
// index disagree.
var ErrInconsistent = errors.New("forward and reverse orderings differ")

// CheckConsistency walks both orderings of idx and checks that every
// forward pair has its reverse pair and the other way round.
func CheckConsistency[K, ID any](idx Index[K, ID]) error {
	fwd, err := idx.ForwardCursor()
	if err != nil {
		return err
	}
	defer fwd.Close()

	forward := 0
	for {
		ok, err := fwd.Next()
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		e, err := fwd.Get()
		if err != nil {
			return err
		}
		found, err := idx.HasReverse(e.ID(), e.Key())
		if err != nil {
			return err
		}
		if !found {
			return fmt.Errorf("%w: forward pair (%v, %v) has no reverse pair", ErrInconsistent, e.Key(), e.ID())
		}
		forward++
	}

	rev, err := idx.ReverseCursor()
	if err != nil {
		return err
	}
	defer rev.Close()

	reverse := 0
	for {
		ok, err := rev.Next()
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		e, err := rev.Get()
		if err != nil {
			return err
		}
		found, err := idx.Has(e.Key(), e.ID())
		if err != nil {
			return err
		}
		if !found {
			return fmt.Errorf("%w: reverse pair (%v, %v) has no forward pair", ErrInconsistent, e.ID(), e.Key())
		}
		reverse++
	}

	if forward != reverse {
		return fmt.Errorf("%w: %d forward pairs, %d reverse pairs", ErrInconsistent, forward, reverse)
	}
	return nil
}
