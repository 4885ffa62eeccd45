package sessionkit

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	internalevents "github.com/mindwell-app/sessionkit/internal/events"
	"github.com/mindwell-app/sessionkit/notifier"
	"github.com/mindwell-app/sessionkit/store"
	"github.com/mindwell-app/sessionkit/transport"
)

// Builder assembles a [Coordinator]. Construction is allocation-only; no I/O
// happens until the first Coordinator method call.
//
// Builder instances are intended to be configured during initialization and
// then treated as immutable unless documented otherwise.
type Builder struct {
	config     Config
	store      store.Store
	httpClient *http.Client
	sink       EventSink
	logger     logrus.FieldLogger
	roleChange func(oldRole, newRole string)

	built bool
}

// New creates a Builder with [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

// WithConfig replaces the configuration wholesale.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cfg
	return b
}

// WithBaseURL sets the backend origin without replacing the rest of the
// configuration.
func (b *Builder) WithBaseURL(baseURL string) *Builder {
	b.config.HTTP.BaseURL = baseURL
	return b
}

// WithStore injects the persistence backend. Defaults to an in-process
// [store.Memory]; use [store.NewRedis] when session state must survive the
// process.
func (b *Builder) WithStore(s store.Store) *Builder {
	b.store = s
	return b
}

// WithHTTPClient injects the underlying *http.Client, e.g. to add a custom
// transport or test dialer.
func (b *Builder) WithHTTPClient(client *http.Client) *Builder {
	b.httpClient = client
	return b
}

// WithEventSink injects the lifecycle event consumer.
func (b *Builder) WithEventSink(sink EventSink) *Builder {
	b.sink = sink
	return b
}

// WithLogger injects the logger. Defaults to a discard logger.
func (b *Builder) WithLogger(logger logrus.FieldLogger) *Builder {
	b.logger = logger
	return b
}

// WithRoleChangeHandler registers the callback the background notifier
// invokes when a role change is detected.
func (b *Builder) WithRoleChangeHandler(handler func(oldRole, newRole string)) *Builder {
	b.roleChange = handler
	return b
}

// WithMetricsEnabled toggles the in-process counters.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// Build validates the configuration and wires the coordinator, transport,
// event dispatcher, and background notifier together.
func (b *Builder) Build() (*Coordinator, error) {
	if b.built {
		return nil, ErrBuilderReused
	}

	b.config.normalize()
	if err := b.config.validate(); err != nil {
		return nil, err
	}

	logger := b.logger
	if logger == nil {
		discard := logrus.New()
		discard.SetOutput(io.Discard)
		logger = discard
	}

	st := b.store
	if st == nil {
		st = store.NewMemory()
	}

	client := transport.NewClient(transport.Config{
		BaseURL:   b.config.HTTP.BaseURL,
		Timeout:   b.config.HTTP.Timeout,
		UserAgent: b.config.HTTP.UserAgent,
	}, st, b.httpClient, logger)

	coordinator := &Coordinator{
		config:  b.config,
		store:   st,
		client:  client,
		metrics: NewMetrics(b.config.Metrics),
		log:     logger,
		state:   StateAnonymous,
		now:     time.Now,
	}

	coordinator.events = internalevents.NewDispatcher(internalevents.DispatcherConfig{
		Enabled:    b.config.Events.Enabled,
		BufferSize: b.config.Events.BufferSize,
		DropIfFull: b.config.Events.DropIfFull,
	}, b.sink)

	// The transport asks the coordinator for a new credential on 401/403;
	// the coordinator's own refresh requests run with NoRetry, so the wiring
	// is cyclic in data flow but bounded in control flow.
	client.SetRefresher(coordinator)

	if b.config.Notifier.Enabled {
		coordinator.notifier = notifier.New(
			notifier.Config{Interval: b.config.Notifier.Interval},
			func(ctx context.Context) notifier.Result {
				outcome := coordinator.Refresh(ctx, TriggerBackground)
				return notifier.Result{
					RoleChanged: outcome.RoleChanged,
					OldRole:     outcome.OldRole,
					NewRole:     outcome.NewRole,
					Err:         outcome.Err,
				}
			},
			b.roleChange,
			logger,
		)
	}

	b.built = true
	return coordinator, nil
}
