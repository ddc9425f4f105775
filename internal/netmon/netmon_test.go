package netmon_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"courier/internal/logging"
	"courier/internal/netmon"
	"courier/internal/testsupport"
)

func TestProbeMonitorSeedsInitialState(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	cfg := testsupport.NewConfig(t, testsupport.WithBackendURL(server.URL))
	monitor := netmon.NewProbeMonitor(cfg, logging.NewNop())

	if !monitor.Online() {
		t.Fatal("expected monitor to start online when the probe endpoint responds")
	}
}

func TestProbeMonitorStartsOfflineWhenUnreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	cfg := testsupport.NewConfig(t, testsupport.WithBackendURL(server.URL))
	monitor := netmon.NewProbeMonitor(cfg, logging.NewNop())

	if monitor.Online() {
		t.Fatal("expected monitor to start offline when the probe endpoint is unreachable")
	}
}

func TestProbeMonitorErrorStatusCountsAsOnline(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	cfg := testsupport.NewConfig(t, testsupport.WithBackendURL(server.URL))
	monitor := netmon.NewProbeMonitor(cfg, logging.NewNop())

	if !monitor.Online() {
		t.Fatal("expected any HTTP response to count as online")
	}
}

func TestProbeMonitorPublishesTransitionOnRefresh(t *testing.T) {
	var reachable atomic.Bool
	reachable.Store(true)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !reachable.Load() {
			hj, ok := w.(http.Hijacker)
			if !ok {
				t.Error("test server does not support hijacking")
				return
			}
			conn, _, err := hj.Hijack()
			if err != nil {
				t.Errorf("hijack request: %v", err)
				return
			}
			conn.Close()
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	cfg := testsupport.NewConfig(t, testsupport.WithBackendURL(server.URL))
	monitor := netmon.NewProbeMonitor(cfg, logging.NewNop())
	if !monitor.Online() {
		t.Fatal("expected monitor to start online")
	}

	transitions := make(chan bool, 4)
	unsubscribe := monitor.Subscribe(func(online bool) {
		transitions <- online
	})
	defer unsubscribe()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := monitor.Start(ctx); err != nil {
		t.Fatalf("start monitor: %v", err)
	}
	defer monitor.Stop()

	reachable.Store(false)
	monitor.Refresh()

	select {
	case online := <-transitions:
		if online {
			t.Fatal("expected an offline transition")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for offline transition")
	}
	if monitor.Online() {
		t.Fatal("expected monitor to report offline after the transition")
	}

	reachable.Store(true)
	monitor.Refresh()

	select {
	case online := <-transitions:
		if !online {
			t.Fatal("expected an online transition")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for online transition")
	}
}

func TestProbeMonitorStopIsIdempotent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	cfg := testsupport.NewConfig(t, testsupport.WithBackendURL(server.URL))
	monitor := netmon.NewProbeMonitor(cfg, logging.NewNop())

	ctx := context.Background()
	if err := monitor.Start(ctx); err != nil {
		t.Fatalf("start monitor: %v", err)
	}
	if err := monitor.Start(ctx); err != nil {
		t.Fatalf("second start should be a no-op: %v", err)
	}
	monitor.Stop()
	monitor.Stop()
}

func TestManualMonitorPublishesOnlyOnTransitions(t *testing.T) {
	monitor := netmon.NewManualMonitor(false)
	if monitor.Online() {
		t.Fatal("expected manual monitor to start offline")
	}

	var events []bool
	unsubscribe := monitor.Subscribe(func(online bool) {
		events = append(events, online)
	})
	defer unsubscribe()

	monitor.SetOnline(false)
	monitor.SetOnline(true)
	monitor.SetOnline(true)
	monitor.SetOnline(false)

	if len(events) != 2 {
		t.Fatalf("expected 2 transitions, got %d: %v", len(events), events)
	}
	if !events[0] || events[1] {
		t.Fatalf("unexpected transition order: %v", events)
	}
	if monitor.Online() {
		t.Fatal("expected manual monitor to end offline")
	}
}
