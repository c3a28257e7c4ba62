package activity

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/ecclesia-hub/admin-client/internal/session"
)

// DefaultSweepInterval is how often liveness is checked while attached.
const DefaultSweepInterval = 60 * time.Second

// Credentials is the part of the credential store the monitor drives.
type Credentials interface {
	Touch(ctx context.Context)
	IsLive(ctx context.Context) bool
}

// Session is the part of the session container the monitor follows.
type Session interface {
	Subscribe(fn func(session.State)) (unsubscribe func())
	Expire(ctx context.Context) error
}

// Config tunes the monitor.
type Config struct {
	// SweepInterval is the period of the liveness check.
	SweepInterval time.Duration
	// TouchInterval is the minimum gap between two activity writes. Zero
	// writes on every signal.
	TouchInterval time.Duration
}

// Monitor keeps the credential's activity time current and expires the
// session once it has been idle too long. It only listens to the bus and
// runs its sweep while a user is signed in.
type Monitor struct {
	bus     *Bus
	creds   Credentials
	session Session
	cfg     Config
	logger  *slog.Logger
	limiter *rate.Limiter

	attached atomic.Bool
}

// NewMonitor creates a Monitor. Call Run to start it.
func NewMonitor(bus *Bus, creds Credentials, sess Session, cfg Config, logger *slog.Logger) *Monitor {
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = DefaultSweepInterval
	}
	m := &Monitor{
		bus:     bus,
		creds:   creds,
		session: sess,
		cfg:     cfg,
		logger:  logger,
	}
	if cfg.TouchInterval > 0 {
		m.limiter = rate.NewLimiter(rate.Every(cfg.TouchInterval), 1)
	}
	return m
}

// Attached reports whether the monitor is currently listening.
func (m *Monitor) Attached() bool {
	return m.attached.Load()
}

// Run follows the session until ctx is done. Listener and ticker are
// released on every exit path.
func (m *Monitor) Run(ctx context.Context) error {
	// Holds only the latest authentication flag. Deliveries are serialized
	// by the session, so drain-then-send never blocks.
	updates := make(chan bool, 1)
	unsubscribe := m.session.Subscribe(func(st session.State) {
		select {
		case <-updates:
		default:
		}
		updates <- st.IsAuthenticated()
	})
	defer unsubscribe()

	var (
		ticker *time.Ticker
		tick   <-chan time.Time
		remove func()
	)
	detach := func() {
		if ticker == nil {
			return
		}
		remove()
		ticker.Stop()
		m.attached.Store(false)
		ticker, tick, remove = nil, nil, nil
		m.logger.DebugContext(ctx, "activity monitor detached")
	}
	defer detach()

	for {
		select {
		case <-ctx.Done():
			return nil
		case authenticated := <-updates:
			switch {
			case authenticated && ticker == nil:
				ticker = time.NewTicker(m.cfg.SweepInterval)
				tick = ticker.C
				remove = m.bus.Listen(m.onSignal)
				m.attached.Store(true)
				m.logger.DebugContext(ctx, "activity monitor attached",
					slog.Duration("sweep_interval", m.cfg.SweepInterval),
				)
			case !authenticated:
				detach()
			}
		case <-tick:
			m.sweep(ctx)
		}
	}
}

func (m *Monitor) onSignal(ctx context.Context, s Signal) {
	if !m.attached.Load() {
		return
	}
	SignalsTotal.WithLabelValues(string(s)).Inc()
	if m.limiter != nil && !m.limiter.Allow() {
		return
	}
	m.creds.Touch(ctx)
}

func (m *Monitor) sweep(ctx context.Context) {
	if m.creds.IsLive(ctx) {
		Sweeps.WithLabelValues("live").Inc()
		return
	}
	Sweeps.WithLabelValues("expired").Inc()
	m.logger.InfoContext(ctx, "session idle past the inactivity ceiling, signing out")
	if err := m.session.Expire(ctx); err != nil {
		m.logger.ErrorContext(ctx, "failed to expire session", slog.String("error", err.Error()))
	}
}
