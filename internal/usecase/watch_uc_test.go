//go:build !integration

package usecase_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"streamer-live-bot/internal/domain"
	"streamer-live-bot/internal/domain/model"
	"streamer-live-bot/internal/domain/ports/repository"
)

func TestWatchUseCase_AddStreamer(t *testing.T) {
	ctx := context.Background()

	t.Run("should create a workflow and record it", func(t *testing.T) {
		f := newWatchFixture()

		res, err := f.uc.AddStreamer(ctx, 42, 4242, "@ares")
		if err != nil {
			t.Fatalf("AddStreamer failed: %v", err)
		}
		if res.Handle != "ares" || res.WorkflowID != "wf-1" {
			t.Errorf("unexpected result %+v", res)
		}

		spec, ok := f.gw.Spec("wf-1")
		if !ok {
			t.Fatal("remote workflow missing")
		}
		if spec.Nodes[1].Parameters["chat_id"] != "4242" {
			t.Errorf("workflow should target chat 4242, got %q", spec.Nodes[1].Parameters["chat_id"])
		}
		id, found, _ := f.store.GetWorkflowID(ctx, repository.NoTX, 42, "ares")
		if !found || id != "wf-1" {
			t.Errorf("expected wf-1 recorded, got %q found=%v", id, found)
		}
		if _, err := f.store.FindUser(ctx, repository.NoTX, 42); err != nil {
			t.Errorf("user should have been registered: %v", err)
		}
	})

	t.Run("should refuse a second add of the same handle without a remote call", func(t *testing.T) {
		f := newWatchFixture()
		if _, err := f.uc.AddStreamer(ctx, 1, 1, "ares"); err != nil {
			t.Fatalf("first add failed: %v", err)
		}

		_, err := f.uc.AddStreamer(ctx, 1, 1, "@ares")
		var dup *domain.DuplicateError
		if !errors.As(err, &dup) || dup.Handle != "ares" {
			t.Fatalf("expected DuplicateError, got %v", err)
		}
		if f.gw.CreateCalls != 1 {
			t.Errorf("expected 1 create call, got %d", f.gw.CreateCalls)
		}
		handles, _ := f.store.ListWatchedStreamers(ctx, repository.NoTX, 1)
		if len(handles) != 1 {
			t.Errorf("expected one entry, got %v", handles)
		}
	})

	t.Run("should keep handles case sensitive", func(t *testing.T) {
		f := newWatchFixture()
		_, _ = f.uc.AddStreamer(ctx, 1, 1, "Ares")
		if _, err := f.uc.AddStreamer(ctx, 1, 1, "ares"); err != nil {
			t.Errorf("different case should be a different handle: %v", err)
		}
	})

	t.Run("should reject invalid handles before any call", func(t *testing.T) {
		cases := map[string]string{
			"empty":      "",
			"only at":    "@",
			"too short":  "a",
			"too long":   strings.Repeat("a", 31),
			"whitespace": "bad handle",
			"symbol":     "x!y",
			"dot":        "a.b",
		}
		for name, raw := range cases {
			t.Run(name, func(t *testing.T) {
				f := newWatchFixture()
				_, err := f.uc.AddStreamer(ctx, 1, 1, raw)
				var ve *domain.ValidationError
				if !errors.As(err, &ve) {
					t.Fatalf("expected ValidationError for %q, got %v", raw, err)
				}
				if f.gw.CreateCalls != 0 {
					t.Errorf("gateway should not be called, got %d creates", f.gw.CreateCalls)
				}
			})
		}
	})

	t.Run("should accept boundary lengths", func(t *testing.T) {
		f := newWatchFixture()
		for _, h := range []string{"ab", strings.Repeat("z", 30), "a-b_c9"} {
			if _, err := f.uc.AddStreamer(ctx, 1, 1, h); err != nil {
				t.Errorf("handle %q rejected: %v", h, err)
			}
		}
	})

	t.Run("should leave nothing behind when the run step fails", func(t *testing.T) {
		f := newWatchFixture()
		f.gw.FailRun = func(string) error {
			return &domain.GatewayError{Kind: domain.GatewayRejected, Op: "run", Message: "engine unavailable"}
		}

		_, err := f.uc.AddStreamer(ctx, 1, 1, "ares")
		if !domain.IsGatewayKind(err, domain.GatewayRejected) {
			t.Fatalf("expected a rejected gateway error, got %v", err)
		}
		if f.gw.Count() != 0 {
			t.Errorf("expected no remote workflows, got %d", f.gw.Count())
		}
		handles, _ := f.store.ListWatchedStreamers(ctx, repository.NoTX, 1)
		if len(handles) != 0 {
			t.Errorf("expected an empty watchlist, got %v", handles)
		}
	})

	t.Run("should delete the remote workflow when saving fails", func(t *testing.T) {
		f := newWatchFixture()
		f.repo.RecordWorkflowFunc = func(ctx context.Context, tx repository.Tx, tgID int64, handle, workflowID string) error {
			return &domain.StorageError{Op: "record workflow", Err: errors.New("disk full")}
		}

		_, err := f.uc.AddStreamer(ctx, 1, 1, "ares")
		var se *domain.StorageError
		if !errors.As(err, &se) {
			t.Fatalf("expected StorageError, got %v", err)
		}
		if f.gw.Count() != 0 || f.gw.DeleteCalls != 1 {
			t.Errorf("expected the orphan deleted, count=%d deletes=%d", f.gw.Count(), f.gw.DeleteCalls)
		}
		handles, _ := f.store.ListWatchedStreamers(ctx, repository.NoTX, 1)
		if len(handles) != 0 {
			t.Errorf("watch entry should be rolled back, got %v", handles)
		}
	})

	t.Run("should surface storage failures on the duplicate check", func(t *testing.T) {
		f := newWatchFixture()
		f.repo.ListWatchedStreamersFunc = func(ctx context.Context, tx repository.Tx, tgID int64) ([]string, error) {
			return nil, &domain.StorageError{Op: "list streamers", Err: errors.New("conn reset")}
		}
		_, err := f.uc.AddStreamer(ctx, 1, 1, "ares")
		var se *domain.StorageError
		if !errors.As(err, &se) {
			t.Fatalf("expected StorageError, got %v", err)
		}
		if f.gw.CreateCalls != 0 {
			t.Error("gateway should not be called")
		}
	})

	t.Run("should let exactly one of many concurrent adds win", func(t *testing.T) {
		f := newWatchFixture()
		var wg sync.WaitGroup
		var mu sync.Mutex
		wins := 0
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, err := f.uc.AddStreamer(ctx, 1, 1, "ares"); err == nil {
					mu.Lock()
					wins++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()
		if wins != 1 || f.gw.Count() != 1 {
			t.Errorf("expected one winner and one workflow, got wins=%d workflows=%d", wins, f.gw.Count())
		}
	})
}

func TestWatchUseCase_RemoveStreamer(t *testing.T) {
	ctx := context.Background()

	t.Run("should remove only the exact handle", func(t *testing.T) {
		f := newWatchFixture()
		_, _ = f.uc.AddStreamer(ctx, 1, 1, "A")
		_, _ = f.uc.AddStreamer(ctx, 1, 1, "Ares")

		res, err := f.uc.RemoveStreamer(ctx, 1, "A")
		if err != nil {
			t.Fatalf("RemoveStreamer failed: %v", err)
		}
		if res.Handle != "A" || res.WorkflowID != "wf-1" || res.RemoteErr != nil {
			t.Errorf("unexpected result %+v", res)
		}
		handles, _ := f.store.ListWatchedStreamers(ctx, repository.NoTX, 1)
		if fmt.Sprint(handles) != "[Ares]" {
			t.Errorf("expected [Ares], got %v", handles)
		}
		if _, ok := f.gw.Spec("wf-2"); !ok {
			t.Error("Ares workflow must survive")
		}
		if _, ok := f.gw.Spec("wf-1"); ok {
			t.Error("A workflow should be deleted")
		}
	})

	t.Run("should report not found for an unwatched handle", func(t *testing.T) {
		f := newWatchFixture()
		if _, err := f.uc.RemoveStreamer(ctx, 1, "ghost"); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
		if f.gw.DeleteCalls != 0 {
			t.Error("no remote call expected")
		}
	})

	t.Run("should drop local records even when the remote delete fails", func(t *testing.T) {
		f := newWatchFixture()
		_, _ = f.uc.AddStreamer(ctx, 1, 1, "ares")
		f.gw.FailDelete = func(string) error {
			return &domain.GatewayError{Kind: domain.GatewayNetwork, Op: "delete", Message: "timeout"}
		}

		res, err := f.uc.RemoveStreamer(ctx, 1, "ares")
		if err != nil {
			t.Fatalf("RemoveStreamer failed: %v", err)
		}
		if !domain.IsGatewayKind(res.RemoteErr, domain.GatewayNetwork) {
			t.Errorf("expected remote error to be reported, got %v", res.RemoteErr)
		}
		handles, _ := f.store.ListWatchedStreamers(ctx, repository.NoTX, 1)
		if len(handles) != 0 {
			t.Errorf("expected local entry gone, got %v", handles)
		}
	})

	t.Run("should treat a workflow already gone remotely as success", func(t *testing.T) {
		f := newWatchFixture()
		_, _ = f.uc.AddStreamer(ctx, 1, 1, "ares")
		_ = f.gw.Delete(ctx, "wf-1")

		res, err := f.uc.RemoveStreamer(ctx, 1, "ares")
		if err != nil || res.RemoteErr != nil {
			t.Fatalf("expected clean removal, got %+v, %v", res, err)
		}
	})
}

func TestWatchUseCase_DeleteWorkflow(t *testing.T) {
	ctx := context.Background()
	f := newWatchFixture()
	_, _ = f.uc.AddStreamer(ctx, 1, 1, "ares")
	_, _ = f.uc.AddStreamer(ctx, 2, 2, "zeus")

	if _, err := f.uc.DeleteWorkflow(ctx, 1, "wf-2"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("another user's workflow must not be deletable, got %v", err)
	}
	if f.gw.Count() != 2 {
		t.Fatalf("nothing should be deleted yet, got %d workflows", f.gw.Count())
	}

	res, err := f.uc.DeleteWorkflow(ctx, 1, "wf-1")
	if err != nil {
		t.Fatalf("DeleteWorkflow failed: %v", err)
	}
	if res.Handle != "ares" {
		t.Errorf("expected handle ares, got %q", res.Handle)
	}
	if _, err := f.uc.DeleteWorkflow(ctx, 1, ""); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument for an empty id, got %v", err)
	}
}

func TestWatchUseCase_ListPage(t *testing.T) {
	ctx := context.Background()
	f := newWatchFixture()
	for i := 0; i < 17; i++ {
		if _, err := f.uc.AddStreamer(ctx, 1, 1, fmt.Sprintf("s%02d", i)); err != nil {
			t.Fatalf("add %d failed: %v", i, err)
		}
	}

	t.Run("first page", func(t *testing.T) {
		p, err := f.uc.ListPage(ctx, 1, 0)
		if err != nil {
			t.Fatalf("ListPage failed: %v", err)
		}
		if len(p.Items) != 8 || p.TotalPages != 3 || p.Total != 17 || p.HasPrev || !p.HasNext {
			t.Errorf("unexpected page %+v", p)
		}
		if p.Items[0].Handle != "s00" || !p.Items[0].Live() {
			t.Errorf("unexpected first item %+v", p.Items[0])
		}
	})

	t.Run("middle page", func(t *testing.T) {
		p, err := f.uc.ListPage(ctx, 1, 1)
		if err != nil {
			t.Fatalf("ListPage failed: %v", err)
		}
		if p.Page != 1 || len(p.Items) != 8 || !p.HasPrev || !p.HasNext {
			t.Errorf("unexpected page %+v", p)
		}
		if p.Items[0].Handle != "s08" || p.Items[7].Handle != "s15" {
			t.Errorf("expected s08..s15, got %s..%s", p.Items[0].Handle, p.Items[7].Handle)
		}
	})

	t.Run("last page", func(t *testing.T) {
		p, _ := f.uc.ListPage(ctx, 1, 2)
		if len(p.Items) != 1 || p.Items[0].Handle != "s16" || !p.HasPrev || p.HasNext {
			t.Errorf("unexpected page %+v", p)
		}
	})

	t.Run("out of range pages are clamped", func(t *testing.T) {
		p, _ := f.uc.ListPage(ctx, 1, 9)
		if p.Page != 2 || len(p.Items) != 1 {
			t.Errorf("expected clamp to page 2, got %+v", p)
		}
		p, _ = f.uc.ListPage(ctx, 1, -3)
		if p.Page != 0 {
			t.Errorf("expected page 0, got %d", p.Page)
		}
	})

	t.Run("remote states are merged", func(t *testing.T) {
		f.gw.SetState("wf-1", string(model.WorkflowInactive), nil)
		_ = f.gw.Delete(ctx, "wf-2")
		p, _ := f.uc.ListPage(ctx, 1, 0)
		if p.Items[0].RemoteState != "inactive" || p.Items[0].Live() {
			t.Errorf("expected s00 inactive, got %+v", p.Items[0])
		}
		if p.Items[1].RemoteState != "missing" {
			t.Errorf("expected s01 missing, got %+v", p.Items[1])
		}
	})

	t.Run("gateway failure falls back to local status", func(t *testing.T) {
		f.gw.FailList = func() error {
			return &domain.GatewayError{Kind: domain.GatewayNetwork, Op: "list", Message: "timeout"}
		}
		defer func() { f.gw.FailList = nil }()
		p, err := f.uc.ListPage(ctx, 1, 0)
		if err != nil {
			t.Fatalf("ListPage should not fail: %v", err)
		}
		if !p.Stale || p.Items[0].RemoteState != "" || !p.Items[0].Live() {
			t.Errorf("expected stale page with local status, got %+v / %+v", p, p.Items[0])
		}
	})

	t.Run("empty watchlist", func(t *testing.T) {
		p, err := f.uc.ListPage(ctx, 99, 0)
		if err != nil || p.Total != 0 || p.TotalPages != 0 || len(p.Items) != 0 {
			t.Errorf("unexpected empty page %+v, %v", p, err)
		}
	})
}

func TestWatchUseCase_DeleteAll(t *testing.T) {
	ctx := context.Background()

	seed := func(t *testing.T, f *watchFixture, handles ...string) {
		t.Helper()
		for _, h := range handles {
			if _, err := f.uc.AddStreamer(ctx, 1, 1, h); err != nil {
				t.Fatalf("add %s failed: %v", h, err)
			}
		}
	}

	t.Run("nothing to delete", func(t *testing.T) {
		f := newWatchFixture()
		n, err := f.uc.RequestDeleteAll(ctx, 1)
		if err != nil || n != 0 {
			t.Errorf("expected 0, got %d, %v", n, err)
		}
		if _, err := f.uc.ConfirmDeleteAll(ctx, 1); !errors.Is(err, domain.ErrConfirmationExpired) {
			t.Errorf("confirm without request should expire, got %v", err)
		}
	})

	t.Run("confirm removes everything", func(t *testing.T) {
		f := newWatchFixture()
		seed(t, f, "a1", "b2", "c3")

		n, err := f.uc.RequestDeleteAll(ctx, 1)
		if err != nil || n != 3 {
			t.Fatalf("RequestDeleteAll = %d, %v", n, err)
		}
		res, err := f.uc.ConfirmDeleteAll(ctx, 1)
		if err != nil {
			t.Fatalf("ConfirmDeleteAll failed: %v", err)
		}
		if res.Removed != 3 || res.RemoteDeleted != 3 || len(res.RemoteFailed) != 0 {
			t.Errorf("unexpected result %+v", res)
		}
		if f.gw.Count() != 0 {
			t.Errorf("expected no remote workflows, got %d", f.gw.Count())
		}
		if _, err := f.uc.ConfirmDeleteAll(ctx, 1); !errors.Is(err, domain.ErrConfirmationExpired) {
			t.Errorf("a second confirm should expire, got %v", err)
		}
	})

	t.Run("cancel keeps everything", func(t *testing.T) {
		f := newWatchFixture()
		seed(t, f, "a1", "b2")
		_, _ = f.uc.RequestDeleteAll(ctx, 1)
		if err := f.uc.CancelDeleteAll(ctx, 1); err != nil {
			t.Fatalf("CancelDeleteAll failed: %v", err)
		}
		if _, err := f.uc.ConfirmDeleteAll(ctx, 1); !errors.Is(err, domain.ErrConfirmationExpired) {
			t.Errorf("confirm after cancel should expire, got %v", err)
		}
		if f.gw.Count() != 2 {
			t.Errorf("expected workflows kept, got %d", f.gw.Count())
		}
	})

	t.Run("remote failures are reported but locals go", func(t *testing.T) {
		f := newWatchFixture()
		seed(t, f, "a1", "b2", "c3")
		f.gw.FailDelete = func(id string) error {
			if id == "wf-2" {
				return &domain.GatewayError{Kind: domain.GatewayRejected, Op: "delete", Message: "locked"}
			}
			return nil
		}
		_, _ = f.uc.RequestDeleteAll(ctx, 1)
		res, err := f.uc.ConfirmDeleteAll(ctx, 1)
		if err != nil {
			t.Fatalf("ConfirmDeleteAll failed: %v", err)
		}
		if res.Removed != 3 || fmt.Sprint(res.RemoteFailed) != "[wf-2]" {
			t.Errorf("unexpected result %+v", res)
		}
		handles, _ := f.store.ListWatchedStreamers(ctx, repository.NoTX, 1)
		if len(handles) != 0 {
			t.Errorf("expected empty watchlist, got %v", handles)
		}
	})
}

func TestWatchUseCase_AwaitHandle(t *testing.T) {
	ctx := context.Background()
	f := newWatchFixture()

	if f.uc.TakeAwaitingHandle(ctx, 1) {
		t.Fatal("nothing should be pending")
	}
	if err := f.uc.AwaitHandle(ctx, 1); err != nil {
		t.Fatalf("AwaitHandle failed: %v", err)
	}
	if !f.uc.TakeAwaitingHandle(ctx, 1) {
		t.Error("expected the mark to be taken")
	}
	if f.uc.TakeAwaitingHandle(ctx, 1) {
		t.Error("the mark should be cleared after the first take")
	}
}
