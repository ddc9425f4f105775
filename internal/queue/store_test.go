package queue_test

import (
	"context"
	"testing"
	"time"

	"courier/internal/queue"
	"courier/internal/testsupport"
)

func pendingItem(id string, kind queue.Kind) *queue.Item {
	return &queue.Item{
		ID:          id,
		Kind:        kind,
		CreatedAt:   time.Now().UTC(),
		MaxAttempts: 3,
		Status:      queue.StatusPending,
		Priority:    queue.DefaultPriority(kind),
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	items := []*queue.Item{
		pendingItem("1-a", queue.KindRouteStart),
		pendingItem("2-b", queue.KindDeliveryEvidence),
	}
	items[1].Payload = []byte(`{"photo":"YWJj"}`)
	items[1].Attempts = 1
	items[1].LastError = "put: connection refused"

	if err := store.Save(ctx, items); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, reset, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if reset != 0 {
		t.Fatalf("expected no in-flight resets, got %d", reset)
	}
	if len(loaded) != 2 {
		t.Fatalf("expected 2 items, got %d", len(loaded))
	}
	if loaded[0].ID != "1-a" || loaded[1].ID != "2-b" {
		t.Fatalf("snapshot order not preserved: %s, %s", loaded[0].ID, loaded[1].ID)
	}
	if loaded[1].Attempts != 1 || loaded[1].LastError == "" {
		t.Fatalf("attempt bookkeeping lost: %+v", loaded[1])
	}
	if string(loaded[1].Payload) != `{"photo":"YWJj"}` {
		t.Fatalf("payload lost: %s", loaded[1].Payload)
	}
}

func TestLoadResetsInFlightToPending(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	stranded := pendingItem("1-a", queue.KindDeliveryStatus)
	stranded.Status = queue.StatusInFlight
	stranded.Attempts = 1
	done := pendingItem("2-b", queue.KindDeliveryStatus)
	done.Status = queue.StatusCompleted

	if err := store.Save(ctx, []*queue.Item{stranded, done}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, reset, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if reset != 1 {
		t.Fatalf("expected 1 in-flight reset, got %d", reset)
	}
	if loaded[0].Status != queue.StatusPending {
		t.Fatalf("in-flight item must load as pending, got %s", loaded[0].Status)
	}
	if loaded[0].Attempts != 1 {
		t.Fatalf("attempts must survive the reset, got %d", loaded[0].Attempts)
	}
	if loaded[1].Status != queue.StatusCompleted {
		t.Fatalf("completed item must stay completed, got %s", loaded[1].Status)
	}
}

func TestLoadEmptyDatabase(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	items, reset, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if items != nil || reset != 0 {
		t.Fatalf("expected empty load, got %d items, %d reset", len(items), reset)
	}
}

func TestSaveReplacesSnapshot(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	if err := store.Save(ctx, []*queue.Item{pendingItem("1-a", queue.KindRouteStart)}); err != nil {
		t.Fatalf("first Save failed: %v", err)
	}
	if err := store.Save(ctx, []*queue.Item{pendingItem("2-b", queue.KindRouteStop)}); err != nil {
		t.Fatalf("second Save failed: %v", err)
	}

	loaded, _, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(loaded) != 1 || loaded[0].ID != "2-b" {
		t.Fatalf("expected snapshot replacement, got %+v", loaded)
	}
}

func TestClearRemovesSnapshot(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	if err := store.Save(ctx, []*queue.Item{pendingItem("1-a", queue.KindRouteStart)}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if err := store.Clear(ctx); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	items, _, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if items != nil {
		t.Fatalf("expected empty queue after clear, got %d items", len(items))
	}
}

func TestReopenPreservesSnapshot(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	if err := store.Save(ctx, []*queue.Item{pendingItem("1-a", queue.KindDeliveryEvidence)}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	reopened, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer reopened.Close()

	items, _, err := reopened.Load(ctx)
	if err != nil {
		t.Fatalf("Load after reopen failed: %v", err)
	}
	if len(items) != 1 || items[0].ID != "1-a" {
		t.Fatalf("snapshot lost across reopen: %+v", items)
	}
}

func TestCheckHealth(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	if err := store.Save(ctx, []*queue.Item{pendingItem("1-a", queue.KindRouteStart)}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	health, err := store.CheckHealth(ctx)
	if err != nil {
		t.Fatalf("CheckHealth failed: %v", err)
	}
	if !health.DatabaseExists || !health.DatabaseReadable {
		t.Fatalf("expected readable database: %+v", health)
	}
	if !health.SnapshotExists || health.SnapshotBytes == 0 {
		t.Fatalf("expected snapshot diagnostics: %+v", health)
	}
	if health.FreeDiskBytes == 0 {
		t.Fatalf("expected free disk reading: %+v", health)
	}
}
