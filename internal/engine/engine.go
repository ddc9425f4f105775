package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"courier/internal/config"
	"courier/internal/logging"
	"courier/internal/netmon"
	"courier/internal/notify"
	"courier/internal/progress"
	"courier/internal/queue"
)

// HandlerFunc performs the remote operation for one item. The item is a
// private copy; handlers must not assume mutations are visible to the engine.
type HandlerFunc func(ctx context.Context, item *queue.Item) error

// Handlers maps item kinds to their remote operations.
type Handlers map[queue.Kind]HandlerFunc

// ItemStatus is the UI-facing view of one queue item.
type ItemStatus struct {
	ID          string
	Kind        queue.Kind
	Status      queue.Status
	Progress    int
	Attempts    int
	MaxAttempts int
	Priority    int
	CreatedAt   time.Time
	LastError   string
}

// Engine owns the durable upload queue: it accepts items, persists every
// mutation, and replays pending work against the backend whenever the
// network monitor reports connectivity.
type Engine struct {
	cfg      *config.Config
	store    *queue.Store
	monitor  netmon.Monitor
	handlers Handlers
	notifier notify.Service
	logger   *slog.Logger
	pub      *progress.Publisher[[]ItemStatus]

	priorityOrder bool
	clock         func() time.Time

	pollInterval time.Duration
	settleDelay  time.Duration
	retention    time.Duration

	lockPath string
	lock     *flock.Flock

	mu    sync.Mutex
	items []*queue.Item

	// single-flight: at most one processing pass at a time
	passMu sync.Mutex
	inPass bool

	lifecycleMu sync.Mutex
	running     bool
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	unsubscribe func()
	settleTimer *time.Timer

	trigger chan struct{}
}

// Option configures optional Engine behavior.
type Option func(*Engine)

// WithNotifier overrides the push-notification service (used in tests).
func WithNotifier(notifier notify.Service) Option {
	return func(e *Engine) {
		if notifier != nil {
			e.notifier = notifier
		}
	}
}

// WithClock overrides the engine time source (used in tests).
func WithClock(clock func() time.Time) Option {
	return func(e *Engine) {
		if clock != nil {
			e.clock = clock
		}
	}
}

// WithFIFOOrder disables priority ordering; items are served strictly in
// arrival order.
func WithFIFOOrder() Option {
	return func(e *Engine) { e.priorityOrder = false }
}

// WithSettleDelay overrides the delay between an online transition and the
// triggered pass.
func WithSettleDelay(d time.Duration) Option {
	return func(e *Engine) { e.settleDelay = d }
}

// New constructs an engine and loads the persisted snapshot. Items left
// in-flight by a crash come back as pending; the repaired snapshot is
// persisted immediately so a second crash cannot resurrect the stale state.
func New(cfg *config.Config, store *queue.Store, monitor netmon.Monitor, handlers Handlers, logger *slog.Logger, opts ...Option) (*Engine, error) {
	if cfg == nil || store == nil || monitor == nil {
		return nil, errors.New("engine requires config, store, and network monitor")
	}
	if len(handlers) == 0 {
		return nil, errors.New("engine requires at least one kind handler")
	}

	lockPath := filepath.Join(cfg.Paths.DataDir, "courier.lock")
	e := &Engine{
		cfg:           cfg,
		store:         store,
		monitor:       monitor,
		handlers:      handlers,
		notifier:      notify.NewService(cfg),
		logger:        logging.NewComponentLogger(logger, "engine"),
		pub:           progress.NewPublisher[[]ItemStatus](),
		priorityOrder: true,
		clock:         time.Now,
		pollInterval:  time.Duration(cfg.Queue.PollInterval) * time.Second,
		settleDelay:   time.Duration(cfg.Queue.OnlineSettleDelay) * time.Second,
		retention:     time.Duration(cfg.Queue.CompletedRetention) * time.Second,
		lockPath:      lockPath,
		lock:          flock.New(lockPath),
		trigger:       make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(e)
	}

	items, reset, err := store.Load(context.Background())
	if err != nil {
		return nil, fmt.Errorf("load queue snapshot: %w", err)
	}
	e.items = items
	if reset > 0 {
		if err := store.Save(context.Background(), items); err != nil {
			return nil, fmt.Errorf("persist repaired snapshot: %w", err)
		}
		e.logger.Info("recovered interrupted items",
			logging.Int("count", reset),
			logging.String(logging.FieldEventType, "queue_recovered"),
		)
	}
	return e, nil
}

// Start acquires the single-instance lock and launches the background
// trigger loop. The engine reacts to online transitions, the poll ticker,
// and manual triggers until ctx is cancelled or Stop is called.
func (e *Engine) Start(ctx context.Context) error {
	e.lifecycleMu.Lock()
	defer e.lifecycleMu.Unlock()

	if e.running {
		return errors.New("engine already running")
	}

	ok, err := e.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire queue lock: %w", err)
	}
	if !ok {
		return errors.New("another courier instance owns the queue")
	}

	runCtx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	e.running = true

	e.unsubscribe = e.monitor.Subscribe(func(online bool) {
		e.onNetworkTransition(online)
	})

	e.wg.Add(1)
	go e.loop(runCtx)

	e.logger.Info("engine started",
		logging.String(logging.FieldEventType, "engine_started"),
		logging.String("lock", e.lockPath),
		logging.Bool("online", e.monitor.Online()),
	)
	return nil
}

// Stop terminates background processing, waits for an in-progress pass to
// finish, and releases the instance lock.
func (e *Engine) Stop() {
	e.lifecycleMu.Lock()
	if !e.running {
		e.lifecycleMu.Unlock()
		return
	}
	cancel := e.cancel
	unsubscribe := e.unsubscribe
	timer := e.settleTimer
	e.running = false
	e.cancel = nil
	e.unsubscribe = nil
	e.settleTimer = nil
	e.lifecycleMu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
	if timer != nil {
		timer.Stop()
	}
	cancel()
	e.wg.Wait()

	if err := e.lock.Unlock(); err != nil {
		e.logger.Warn("failed to release queue lock",
			logging.Error(err),
			logging.String("lock", e.lockPath),
		)
	}
	e.logger.Info("engine stopped",
		logging.String(logging.FieldEventType, "engine_stopped"),
	)
}

// Trigger requests a processing pass outside the regular schedule.
// Non-blocking; coalesces with an already-pending trigger.
func (e *Engine) Trigger() {
	select {
	case e.trigger <- struct{}{}:
	default:
	}
}

// OnProgress subscribes to queue status updates. The listener receives the
// full status snapshot after every mutation; the returned function cancels
// the subscription.
func (e *Engine) OnProgress(fn func([]ItemStatus)) func() {
	return e.pub.Subscribe(fn)
}

// OnNetworkChange subscribes to connectivity transitions.
func (e *Engine) OnNetworkChange(fn func(online bool)) func() {
	return e.monitor.Subscribe(fn)
}

// Online reports the monitor's current connectivity view.
func (e *Engine) Online() bool {
	return e.monitor.Online()
}

func (e *Engine) loop(ctx context.Context) {
	defer e.wg.Done()

	ticker := time.NewTicker(e.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-e.trigger:
		}
		e.runPass(ctx)
	}
}

// onNetworkTransition schedules a pass after the settle delay when the
// network comes back. The delay lets flaky links stabilize before the queue
// starts burning retry attempts.
func (e *Engine) onNetworkTransition(online bool) {
	if !online {
		return
	}

	e.lifecycleMu.Lock()
	defer e.lifecycleMu.Unlock()
	if !e.running {
		return
	}
	if e.settleTimer != nil {
		e.settleTimer.Stop()
	}
	if e.settleDelay <= 0 {
		e.Trigger()
		return
	}
	e.settleTimer = time.AfterFunc(e.settleDelay, e.Trigger)
}
