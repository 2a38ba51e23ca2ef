package main

import (
	"errors"
	"math/rand"
	"testing"
	"time"
)

var errTest = errors.New("op failed")

func TestPercentile(t *testing.T) {
	samples := []time.Duration{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	if got := percentile(samples, 50); got != 5 {
		t.Fatalf("p50 = %v, want 5", got)
	}
	if got := percentile(samples, 100); got != 10 {
		t.Fatalf("p100 = %v, want 10", got)
	}
	if got := percentile(nil, 50); got != 0 {
		t.Fatalf("empty = %v, want 0", got)
	}
}

func TestRunPhaseCountsFailures(t *testing.T) {
	stats := runPhase(100, 4, 31, func(_ *rand.Rand, i int) error {
		if i%10 == 0 {
			return errTest
		}
		return nil
	})
	if stats.ops != 100 {
		t.Fatalf("ops = %d, want 100", stats.ops)
	}
	if stats.failures != 10 {
		t.Fatalf("failures = %d, want 10", stats.failures)
	}
}
