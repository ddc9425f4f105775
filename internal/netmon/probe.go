package netmon

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"courier/internal/config"
	"courier/internal/logging"
	"courier/internal/progress"
)

// ProbeMonitor determines connectivity by issuing lightweight HTTP requests
// against a probe endpoint. Construction performs one synchronous probe so
// the initial state is known before the engine first consults it.
type ProbeMonitor struct {
	url      string
	interval time.Duration
	client   *http.Client
	logger   *slog.Logger
	pub      *progress.Publisher[bool]

	online  atomic.Bool
	refresh chan struct{}

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewProbeMonitor builds a probe monitor from configuration and seeds the
// initial connectivity state with a synchronous probe.
func NewProbeMonitor(cfg *config.Config, logger *slog.Logger) *ProbeMonitor {
	m := &ProbeMonitor{
		url:      cfg.Network.ProbeURL,
		interval: time.Duration(cfg.Network.ProbeInterval) * time.Second,
		client:   &http.Client{Timeout: time.Duration(cfg.Network.ProbeTimeout) * time.Second},
		logger:   logging.NewComponentLogger(logger, "netmon"),
		pub:      progress.NewPublisher[bool](),
		refresh:  make(chan struct{}, 1),
	}
	m.online.Store(m.probe(context.Background()))
	return m
}

// Online reports the last observed connectivity state.
func (m *ProbeMonitor) Online() bool {
	return m.online.Load()
}

// Subscribe registers a transition listener.
func (m *ProbeMonitor) Subscribe(fn func(bool)) func() {
	return m.pub.Subscribe(fn)
}

// Refresh requests an immediate re-probe outside the regular interval.
// Non-blocking; coalesces with an already-pending refresh.
func (m *ProbeMonitor) Refresh() {
	select {
	case m.refresh <- struct{}{}:
	default:
	}
}

// Start launches the periodic probe loop.
func (m *ProbeMonitor) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return nil
	}

	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true
	m.wg.Add(1)
	go m.loop(runCtx)

	m.logger.Info("network monitor started",
		logging.String(logging.FieldEventType, "netmon_started"),
		logging.String("probe_url", m.url),
		logging.Duration("interval", m.interval),
	)
	return nil
}

// Stop terminates the probe loop and waits for it to exit.
func (m *ProbeMonitor) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	m.running = false
	m.cancel = nil
	m.mu.Unlock()

	cancel()
	m.wg.Wait()

	m.logger.Info("network monitor stopped",
		logging.String(logging.FieldEventType, "netmon_stopped"),
	)
}

func (m *ProbeMonitor) loop(ctx context.Context) {
	defer m.wg.Done()

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-m.refresh:
		}
		m.observe(m.probe(ctx))
	}
}

func (m *ProbeMonitor) observe(online bool) {
	previous := m.online.Swap(online)
	if previous == online {
		return
	}
	if online {
		m.logger.Info("connectivity restored",
			logging.String(logging.FieldEventType, "network_online"),
		)
	} else {
		m.logger.Warn("connectivity lost",
			logging.String(logging.FieldEventType, "network_offline"),
			logging.String(logging.FieldImpact, "queue processing paused"),
		)
	}
	m.pub.Publish(online)
}

// probe issues one HEAD request. Any HTTP response counts as online; only a
// transport-level failure indicates the network is unreachable.
func (m *ProbeMonitor) probe(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, m.url, nil)
	if err != nil {
		return false
	}
	resp, err := m.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return true
}
