//go:build !integration

package main

import (
	"context"
	"testing"
	"time"
)

func TestAwaitDone(t *testing.T) {
	t.Run("should wait for a slow drain to finish", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()

		done := make(chan struct{})
		drained := make(chan struct{})
		go func() {
			time.Sleep(30 * time.Millisecond)
			close(drained)
			close(done)
		}()

		if !awaitDone(ctx, done) {
			t.Fatal("expected done before deadline")
		}
		select {
		case <-drained:
		default:
			t.Error("awaitDone returned before the drain completed")
		}
	})

	t.Run("should give up at the deadline", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()

		start := time.Now()
		if awaitDone(ctx, make(chan struct{})) {
			t.Fatal("expected deadline to win")
		}
		if time.Since(start) < 15*time.Millisecond {
			t.Error("returned before the deadline")
		}
	})
}
