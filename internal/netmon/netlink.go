package netmon

import (
	"context"
	"log/slog"
	"sync"

	"github.com/pilebones/go-udev/netlink"

	"courier/internal/logging"
)

// NetlinkWatcher listens for kernel udev events on the net subsystem and
// forces an immediate re-probe when an interface changes state. Without it
// the monitor only notices transitions on the next probe tick, which delays
// queue resumption after the device regains a link.
type NetlinkWatcher struct {
	logger  *slog.Logger
	monitor *ProbeMonitor

	mu      sync.Mutex
	conn    *netlink.UEventConn
	quit    chan struct{}
	running bool
}

// NewNetlinkWatcher creates a watcher that nudges the given probe monitor.
func NewNetlinkWatcher(monitor *ProbeMonitor, logger *slog.Logger) *NetlinkWatcher {
	if monitor == nil {
		return nil
	}
	return &NetlinkWatcher{
		logger:  logging.NewComponentLogger(logger, "netlink-watcher"),
		monitor: monitor,
	}
}

// Start begins listening for udev netlink events.
func (w *NetlinkWatcher) Start(ctx context.Context) error {
	if w == nil {
		return nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return nil
	}

	conn := new(netlink.UEventConn)
	if err := conn.Connect(netlink.UdevEvent); err != nil {
		w.logger.Warn("failed to connect to netlink socket; connectivity changes rely on the probe interval",
			logging.Error(err),
			logging.String(logging.FieldEventType, "netlink_connect_failed"),
			logging.String(logging.FieldErrorHint, "ensure the process may access netlink sockets"),
			logging.String(logging.FieldImpact, "slower reaction to interface changes"),
		)
		return nil // Non-fatal - the probe loop still detects transitions
	}

	w.conn = conn
	w.quit = make(chan struct{})
	w.running = true

	// Pass quit channel to the goroutine to avoid reading w.quit without lock
	quit := w.quit
	go w.watchLoop(ctx, quit)

	w.logger.Info("netlink watcher started",
		logging.String(logging.FieldEventType, "netlink_watcher_started"),
	)
	return nil
}

// Stop shuts down the netlink watcher.
func (w *NetlinkWatcher) Stop() {
	if w == nil {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.running {
		return
	}

	if w.quit != nil {
		close(w.quit)
		w.quit = nil
	}
	if w.conn != nil {
		_ = w.conn.Close()
		w.conn = nil
	}
	w.running = false

	w.logger.Info("netlink watcher stopped",
		logging.String(logging.FieldEventType, "netlink_watcher_stopped"),
	)
}

// Running reports whether the watcher is active.
func (w *NetlinkWatcher) Running() bool {
	if w == nil {
		return false
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

func (w *NetlinkWatcher) watchLoop(ctx context.Context, quit <-chan struct{}) {
	events := make(chan netlink.UEvent)
	errs := make(chan error)

	w.mu.Lock()
	conn := w.conn
	w.mu.Unlock()
	if conn == nil {
		return
	}

	monitorQuit := conn.Monitor(events, errs, w.buildMatcher())

	for {
		select {
		case <-ctx.Done():
			close(monitorQuit)
			return
		case <-quit:
			close(monitorQuit)
			return
		case uevent := <-events:
			w.handleEvent(uevent)
		case err := <-errs:
			w.logger.Warn("netlink watcher error",
				logging.Error(err),
				logging.String(logging.FieldEventType, "netlink_watcher_error"),
				logging.String(logging.FieldErrorHint, "check kernel netlink subsystem"),
			)
		}
	}
}

// buildMatcher matches interface lifecycle events: SUBSYSTEM=net, ACTION=add|remove|change|move.
func (w *NetlinkWatcher) buildMatcher() netlink.Matcher {
	action := "add|remove|change|move"
	rules := &netlink.RuleDefinitions{}
	rules.AddRule(netlink.RuleDefinition{
		Action: &action,
		Env: map[string]string{
			"SUBSYSTEM": "net",
		},
	})
	return rules
}

func (w *NetlinkWatcher) handleEvent(uevent netlink.UEvent) {
	iface := uevent.Env["INTERFACE"]
	w.logger.Debug("interface event",
		logging.String("action", string(uevent.Action)),
		logging.String("interface", iface),
	)
	w.monitor.Refresh()
}
