package notifier

import (
	"context"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

const (
	defaultInterval = 120 * time.Second
	defaultTimeout  = 15 * time.Second
)

// Result is what one background refresh reports back.
type Result struct {
	RoleChanged bool
	OldRole     string
	NewRole     string
	Err         error
}

// RefreshFunc performs one background refresh. It must never panic; failures
// are carried in [Result.Err].
type RefreshFunc func(ctx context.Context) Result

// Config sizes the notifier schedule.
//
// Config instances are intended to be configured during initialization and then
// treated as immutable unless documented otherwise.
type Config struct {
	Interval time.Duration
	Timeout  time.Duration
}

// Notifier periodically invokes a refresh function and surfaces role changes
// to the registered handler.
type Notifier struct {
	refresh  RefreshFunc
	onChange func(oldRole, newRole string)
	log      logrus.FieldLogger
	timeout  time.Duration

	cron     *cron.Cron
	schedule cron.Schedule
	inFlight atomic.Bool
	skipped  atomic.Uint64

	mu      sync.Mutex
	entryID cron.EntryID
	running bool
}

// New creates a notifier. onChange may be nil; log may be nil to disable
// logging. The notifier is idle until [Notifier.Start].
func New(cfg Config, refresh RefreshFunc, onChange func(oldRole, newRole string), log logrus.FieldLogger) *Notifier {
	if cfg.Interval <= 0 {
		cfg.Interval = defaultInterval
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if log == nil {
		logger := logrus.New()
		logger.SetOutput(io.Discard)
		log = logger
	}

	return &Notifier{
		refresh:  refresh,
		onChange: onChange,
		log:      log,
		timeout:  cfg.Timeout,
		cron:     cron.New(),
		schedule: cron.Every(cfg.Interval),
	}
}

// Start begins the periodic schedule. Calling Start on a running notifier is
// a no-op; a stopped notifier can be started again, which is what lets a
// logout-then-login resume background refreshes.
func (n *Notifier) Start() {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.running {
		return
	}
	n.entryID = n.cron.Schedule(n.schedule, n)
	n.cron.Start()
	n.running = true
}

// Stop cancels the schedule. A tick already in flight is allowed to settle;
// no further ticks fire until the next Start. Safe to call more than once and
// on a never-started notifier.
func (n *Notifier) Stop() {
	n.mu.Lock()
	defer n.mu.Unlock()

	if !n.running {
		return
	}
	n.cron.Remove(n.entryID)
	n.cron.Stop()
	n.running = false
}

// Skipped reports ticks dropped because a previous refresh had not settled.
func (n *Notifier) Skipped() uint64 {
	return n.skipped.Load()
}

// Run executes one tick. It implements [cron.Job] and is also the test entry
// point. Overlapping invocations are dropped via the in-flight flag.
func (n *Notifier) Run() {
	if !n.inFlight.CompareAndSwap(false, true) {
		n.skipped.Add(1)
		n.log.Debug("background refresh tick skipped, previous still in flight")
		return
	}
	defer n.inFlight.Store(false)

	ctx, cancel := context.WithTimeout(context.Background(), n.timeout)
	defer cancel()

	result := n.refresh(ctx)
	if result.Err != nil {
		n.log.WithError(result.Err).Debug("background refresh failed")
		return
	}
	if result.RoleChanged && n.onChange != nil {
		n.onChange(result.OldRole, result.NewRole)
	}
}
