//go:build !integration

package worker

import (
	"context"
	"errors"
	"io"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestPool(t *testing.T) {
	logger := zerolog.New(io.Discard)

	t.Run("should run every submitted task before Stop returns", func(t *testing.T) {
		p := NewPool(3, &logger)
		p.Start(context.Background())

		var n atomic.Int32
		for i := 0; i < 10; i++ {
			err := p.SubmitWait(context.Background(), func(ctx context.Context) error {
				n.Add(1)
				if n.Load()%2 == 0 {
					return errors.New("even")
				}
				return nil
			})
			if err != nil {
				t.Fatalf("SubmitWait failed: %v", err)
			}
		}
		p.Stop()
		if got := n.Load(); got != 10 {
			t.Errorf("expected 10 runs, got %d", got)
		}
	})

	t.Run("should report a full queue", func(t *testing.T) {
		p := NewPool(1, &logger)
		block := func(ctx context.Context) error { time.Sleep(time.Hour); return nil }
		var err error
		for i := 0; i < 10 && err == nil; i++ {
			err = p.Submit(block)
		}
		if !errors.Is(err, ErrQueueFull) {
			t.Errorf("expected ErrQueueFull, got %v", err)
		}
	})

	t.Run("SubmitWait gives up with the context", func(t *testing.T) {
		p := NewPool(1, &logger)
		for p.Submit(func(context.Context) error { return nil }) == nil {
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()
		if err := p.SubmitWait(ctx, func(context.Context) error { return nil }); !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("expected deadline exceeded, got %v", err)
		}
	})

	t.Run("nil task is rejected", func(t *testing.T) {
		p := NewPool(1, &logger)
		if err := p.Submit(nil); err == nil {
			t.Error("expected an error")
		}
	})
}
