package i2c

import (
	"context"
	"testing"
	"time"
)

func TestEnumerateBuses_NoPanicOnMissingDevNodes(t *testing.T) {
	// /dev/i2c-* is very unlikely to exist in a test sandbox; this only
	// exercises that the scan doesn't panic and returns a (possibly empty)
	// slice rather than erroring.
	buses := EnumerateBuses()
	if buses == nil {
		return
	}
	for _, b := range buses {
		if b < 0 || b >= 32 {
			t.Fatalf("bus number %d outside scanned range", b)
		}
	}
}

func TestSleep_RespectsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	sleep(ctx, 5*time.Second)
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Fatalf("sleep did not return promptly on cancelled context, took %s", elapsed)
	}
}
