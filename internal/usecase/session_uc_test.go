//go:build !integration

package usecase_test

import (
	"context"
	"errors"
	"testing"

	"streamer-live-bot/internal/domain"
	"streamer-live-bot/internal/infra/db/memory"
	"streamer-live-bot/internal/usecase"
)

func TestSessionUseCase(t *testing.T) {
	ctx := context.Background()

	t.Run("Start registers once and follows the chat id", func(t *testing.T) {
		store := memory.NewStore()
		uc := usecase.NewSessionUseCase(store, store, newTestLogger())

		sess, created, err := uc.Start(ctx, 42, 42)
		if err != nil {
			t.Fatalf("Start failed: %v", err)
		}
		if !created || !sess.NotificationsEnabled {
			t.Errorf("expected a new session with notifications on, got created=%v %+v", created, sess)
		}

		sess, created, err = uc.Start(ctx, 42, -7)
		if err != nil {
			t.Fatalf("second Start failed: %v", err)
		}
		if created {
			t.Error("second Start must not report created")
		}
		if sess.ChatID != -7 {
			t.Errorf("expected chat id -7, got %d", sess.ChatID)
		}
		if n, _ := uc.Count(ctx); n != 1 {
			t.Errorf("expected 1 user, got %d", n)
		}
	})

	t.Run("Start rejects a zero telegram id", func(t *testing.T) {
		store := memory.NewStore()
		uc := usecase.NewSessionUseCase(store, store, newTestLogger())
		if _, _, err := uc.Start(ctx, 0, 1); !errors.Is(err, domain.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})

	t.Run("ToggleNotifications flips and persists", func(t *testing.T) {
		store := memory.NewStore()
		uc := usecase.NewSessionUseCase(store, store, newTestLogger())

		on, err := uc.ToggleNotifications(ctx, 9, 9)
		if err != nil || on {
			t.Fatalf("first toggle = %v, %v; want false", on, err)
		}
		on, _ = uc.ToggleNotifications(ctx, 9, 9)
		if !on {
			t.Error("second toggle should enable again")
		}
		sess, err := uc.Get(ctx, 9)
		if err != nil || !sess.NotificationsEnabled {
			t.Errorf("Get = %+v, %v", sess, err)
		}
	})

	t.Run("Get on an unknown user is not found", func(t *testing.T) {
		store := memory.NewStore()
		uc := usecase.NewSessionUseCase(store, store, newTestLogger())
		if _, err := uc.Get(ctx, 5); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})
}
