package notify_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"courier/internal/notify"
	"courier/internal/testsupport"
)

func TestNewServiceReturnsNoopWhenTopicMissing(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Notifications.NtfyTopic = ""

	svc := notify.NewService(cfg)
	if err := svc.NotifyItemFailed(context.Background(), "delivery-evidence-upload", "item-1", "boom"); err != nil {
		t.Fatalf("expected noop notifier to return nil, got %v", err)
	}
}

func TestNtfyServiceFormatsFailure(t *testing.T) {
	var captured struct {
		title    string
		tags     string
		priority string
		body     string
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("unexpected method: %s", r.Method)
		}
		captured.title = r.Header.Get("Title")
		captured.tags = r.Header.Get("Tags")
		captured.priority = r.Header.Get("Priority")
		body, err := io.ReadAll(r.Body)
		if err != nil {
			t.Errorf("read body: %v", err)
		}
		captured.body = string(body)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	cfg := testsupport.NewConfig(t)
	cfg.Notifications.NtfyTopic = server.URL
	cfg.Notifications.Failures = true

	svc := notify.NewService(cfg)
	err := svc.NotifyItemFailed(context.Background(), "delivery-evidence-upload", "1700000000000-abcd1234", "upload rejected with status 403")
	if err != nil {
		t.Fatalf("notification returned error: %v", err)
	}

	if captured.title != "Courier - Upload Failed" {
		t.Fatalf("unexpected title %q", captured.title)
	}
	if captured.tags != "courier,queue,failed" {
		t.Fatalf("unexpected tags %q", captured.tags)
	}
	if captured.priority != "high" {
		t.Fatalf("unexpected priority %q", captured.priority)
	}
	want := "❌ delivery-evidence-upload exhausted its retries: upload rejected with status 403\nItem: 1700000000000-abcd1234"
	if captured.body != want {
		t.Fatalf("unexpected body %q", captured.body)
	}
}

func TestNtfyServiceFormatsQueueDrained(t *testing.T) {
	var body string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		body = string(data)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	cfg := testsupport.NewConfig(t)
	cfg.Notifications.NtfyTopic = server.URL
	cfg.Notifications.QueueDrained = true

	svc := notify.NewService(cfg)
	if err := svc.NotifyQueueDrained(context.Background(), 4, 1, 90*time.Second); err != nil {
		t.Fatalf("notification returned error: %v", err)
	}
	if body != "Queue drained: 4 uploaded, 1 failed in 1m30s" {
		t.Fatalf("unexpected body %q", body)
	}
}

func TestNtfyServiceSuppressesDisabledEvents(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected call for suppressed event: %s", r.URL.String())
	}))
	defer server.Close()

	cfg := testsupport.NewConfig(t)
	cfg.Notifications.NtfyTopic = server.URL
	cfg.Notifications.Failures = false
	cfg.Notifications.QueueDrained = false

	svc := notify.NewService(cfg)
	if err := svc.NotifyItemFailed(context.Background(), "route-start", "item-2", "boom"); err != nil {
		t.Fatalf("expected suppressed failure event to return nil, got %v", err)
	}
	if err := svc.NotifyQueueDrained(context.Background(), 1, 0, time.Second); err != nil {
		t.Fatalf("expected suppressed drain event to return nil, got %v", err)
	}
}

func TestNtfyServiceSurfacesServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "topic quota exceeded", http.StatusTooManyRequests)
	}))
	defer server.Close()

	cfg := testsupport.NewConfig(t)
	cfg.Notifications.NtfyTopic = server.URL

	svc := notify.NewService(cfg)
	if err := svc.TestNotification(context.Background()); err == nil {
		t.Fatal("expected error from rejected notification")
	}
}
