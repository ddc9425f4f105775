package engine_test

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"courier/internal/engine"
	"courier/internal/netmon"
	"courier/internal/queue"
	"courier/internal/remote"
	"courier/internal/testsupport"
	"courier/internal/transcode"
)

func TestEvidenceUploadFlow(t *testing.T) {
	var (
		mu       sync.Mutex
		requests []string
		uploaded []byte
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		requests = append(requests, r.Method+" "+r.URL.Path)
		if r.Method == http.MethodPut {
			uploaded = body
		}
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	cfg := testsupport.NewConfig(t, testsupport.WithBackendURL(server.URL))
	cfg.Transcode.MaxWidth = 400
	store := testsupport.MustOpenStore(t, cfg)
	monitor := netmon.NewManualMonitor(false)

	handlers := engine.DefaultHandlers(transcode.New(cfg, nil), remote.New(cfg, nil))
	eng, err := engine.New(cfg, store, monitor, handlers, nil, engine.WithNotifier(&fakeNotifier{}))
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}

	photo := testsupport.JPEGBytes(t, 1200, 900)
	payload, err := json.Marshal(map[string]any{
		"photo":  photo,
		"record": map[string]string{"note": "left at door"},
	})
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}

	ctx := context.Background()
	id, err := eng.Enqueue(ctx, engine.EnqueueRequest{
		Kind:        queue.KindDeliveryEvidence,
		Payload:     payload,
		Destination: server.URL + "/signed/evidence.jpg",
		RouteID:     "route-1",
		VisitIndex:  2,
	})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	monitor.SetOnline(true)
	eng.Process(ctx)

	status, ok := eng.Status(id)
	if !ok || status.Status != queue.StatusCompleted {
		t.Fatalf("expected completed evidence item, got %+v", status)
	}

	mu.Lock()
	defer mu.Unlock()
	want := []string{
		"PUT /signed/evidence.jpg",
		"POST /driver/evidence/delivery",
	}
	if len(requests) != len(want) {
		t.Fatalf("expected requests %v, got %v", want, requests)
	}
	for i := range want {
		if requests[i] != want[i] {
			t.Fatalf("request %d: expected %q, got %q", i, want[i], requests[i])
		}
	}

	img, format, err := image.Decode(bytes.NewReader(uploaded))
	if err != nil {
		t.Fatalf("decode uploaded photo: %v", err)
	}
	if format != "jpeg" {
		t.Fatalf("expected jpeg upload, got %q", format)
	}
	if img.Bounds().Dx() != 400 {
		t.Fatalf("expected photo downscaled to 400px, got %d", img.Bounds().Dx())
	}
}

func TestEvidenceWithCorruptPhotoBurnsAttempts(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("no request expected for undecodable photo, got %s %s", r.Method, r.URL.Path)
	}))
	defer server.Close()

	cfg := testsupport.NewConfig(t, testsupport.WithBackendURL(server.URL))
	store := testsupport.MustOpenStore(t, cfg)
	monitor := netmon.NewManualMonitor(true)

	handlers := engine.DefaultHandlers(transcode.New(cfg, nil), remote.New(cfg, nil))
	eng, err := engine.New(cfg, store, monitor, handlers, nil, engine.WithNotifier(&fakeNotifier{}))
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}

	payload, _ := json.Marshal(map[string]any{"photo": []byte("not a photo")})
	ctx := context.Background()
	id, err := eng.Enqueue(ctx, engine.EnqueueRequest{
		Kind:        queue.KindNonDeliveryEvidence,
		Payload:     payload,
		Destination: server.URL + "/signed/evidence.jpg",
		MaxAttempts: 2,
	})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	// A corrupt photo consumes the same retry budget as a network failure.
	eng.Process(ctx)
	status, _ := eng.Status(id)
	if status.Status != queue.StatusPending || status.Attempts != 1 {
		t.Fatalf("expected one consumed attempt, got %+v", status)
	}

	eng.Process(ctx)
	status, _ = eng.Status(id)
	if status.Status != queue.StatusFailed || status.Attempts != 2 {
		t.Fatalf("expected failed after exhausting attempts, got %+v", status)
	}
	if status.LastError == "" {
		t.Fatal("expected decode failure recorded as last error")
	}
}
