package database

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"go.mongodb.org/mongo-driver/event"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/logimax/logimax-api/internal/logger"
)

// Connection states.
const (
	StateDisconnected int32 = iota
	StateConnecting
	StateConnected
)

const (
	serverSelectionTimeout = 5 * time.Second
	socketTimeout          = 45 * time.Second
	pingTimeout            = 5 * time.Second
	backoffMultiplier      = 2.0
)

// Client is the subset of the driver client the manager supervises.
// *mongo.Client satisfies it; tests substitute a fake.
type Client interface {
	Ping(ctx context.Context, rp *readpref.ReadPref) error
	Disconnect(ctx context.Context) error
}

// Dialer opens a new client. The provided monitor must be installed on the
// connection so heartbeat events reach the manager.
type Dialer func(ctx context.Context, monitor *event.ServerMonitor) (Client, error)

// Config holds the retry parameters for connection supervision.
type Config struct {
	URI         string
	MaxAttempts int           // bounded initial-connect budget
	BaseDelay   time.Duration // first retry delay
	MaxDelay    time.Duration // backoff cap
}

// Manager owns the single long-lived document-store connection shared by all
// request handlers. The initial connect is bounded; after the first success
// heartbeat failures trigger an unbounded reconnect supervision loop.
type Manager struct {
	cfg  Config
	dial Dialer

	mu     sync.Mutex
	client Client

	state     atomic.Int32
	reconnect chan struct{}
	done      chan struct{}
	closeOnce sync.Once
	watchOnce sync.Once
}

// NewManager creates a manager that dials the configured MongoDB URI.
func NewManager(cfg Config) *Manager {
	m := newManager(cfg)
	m.dial = m.mongoDialer
	return m
}

// NewManagerWithDialer creates a manager with a custom dialer, so tests can
// substitute a fake client instead of a real deployment.
func NewManagerWithDialer(cfg Config, dial Dialer) *Manager {
	m := newManager(cfg)
	m.dial = dial
	return m
}

func newManager(cfg Config) *Manager {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = 5 * time.Second
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = 30 * time.Second
	}
	return &Manager{
		cfg:       cfg,
		reconnect: make(chan struct{}, 1),
		done:      make(chan struct{}),
	}
}

func (m *Manager) mongoDialer(ctx context.Context, monitor *event.ServerMonitor) (Client, error) {
	opts := options.Client().
		ApplyURI(m.cfg.URI).
		SetServerSelectionTimeout(serverSelectionTimeout).
		SetSocketTimeout(socketTimeout).
		SetServerMonitor(monitor)

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, err
	}

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}

	return client, nil
}

// Connect performs the bounded initial connection cycle. On success it
// installs the heartbeat observers and starts the reconnect supervision
// goroutine. On exhausting the attempt budget it returns an error; the
// caller treats that as fatal.
func (m *Manager) Connect(ctx context.Context) error {
	m.state.Store(StateConnecting)

	delay := m.cfg.BaseDelay
	var lastErr error

	for attempt := 1; attempt <= m.cfg.MaxAttempts; attempt++ {
		client, err := m.dial(ctx, m.monitor())
		if err == nil {
			m.mu.Lock()
			m.client = client
			m.mu.Unlock()
			m.state.Store(StateConnected)
			logger.Log.Infow("database connected", "attempt", attempt)

			m.watchOnce.Do(func() { go m.supervise() })
			return nil
		}

		lastErr = err
		logger.Log.Errorw("database connection attempt failed",
			"attempt", attempt, "max_attempts", m.cfg.MaxAttempts, "error", err)

		if attempt == m.cfg.MaxAttempts {
			break
		}
		if !m.sleep(ctx, jitter(delay)) {
			m.state.Store(StateDisconnected)
			return ctx.Err()
		}
		delay = nextDelay(delay, m.cfg.MaxDelay)
	}

	m.state.Store(StateDisconnected)
	return fmt.Errorf("database connect: max attempts reached: %w", lastErr)
}

// monitor builds the heartbeat observers. A failed heartbeat marks the
// connection down and schedules exactly one reconnect cycle; a succeeded
// heartbeat restores liveness when the driver heals on its own.
func (m *Manager) monitor() *event.ServerMonitor {
	return &event.ServerMonitor{
		ServerHeartbeatFailed: func(e *event.ServerHeartbeatFailedEvent) {
			m.notifyDown(e.Failure)
		},
		ServerHeartbeatSucceeded: func(e *event.ServerHeartbeatSucceededEvent) {
			if m.state.CompareAndSwap(StateDisconnected, StateConnected) {
				logger.Log.Infow("database heartbeat restored")
			}
		},
	}
}

func (m *Manager) notifyDown(cause error) {
	if !m.state.CompareAndSwap(StateConnected, StateDisconnected) {
		return
	}
	logger.Log.Errorw("database connection lost, scheduling reconnect", "error", cause)
	select {
	case m.reconnect <- struct{}{}:
	default:
	}
}

// supervise runs for the rest of the process lifetime. Each signal on the
// reconnect channel starts one re-establishment cycle; the heartbeat
// observers stay installed on the client, so supervision is unbounded
// overall.
func (m *Manager) supervise() {
	for {
		select {
		case <-m.done:
			return
		case <-m.reconnect:
		}
		m.reestablish()
	}
}

// reestablish retries until the connection is live again or the manager is
// closed. Retries use capped exponential backoff with jitter so a mass
// reconnect cannot hammer the store.
func (m *Manager) reestablish() {
	delay := m.cfg.BaseDelay

	for attempt := 1; ; attempt++ {
		select {
		case <-m.done:
			return
		default:
		}

		if m.tryRestore() {
			m.state.Store(StateConnected)
			logger.Log.Infow("database reconnected", "attempt", attempt)
			return
		}

		logger.Log.Errorw("database reconnect attempt failed",
			"attempt", attempt, "next_delay", delay)
		if !m.sleepDone(jitter(delay)) {
			return
		}
		delay = nextDelay(delay, m.cfg.MaxDelay)
	}
}

// tryRestore pings the existing client. The driver keeps retrying the
// transport underneath, so the ping succeeds as soon as the store is
// reachable again. The client is never replaced after Connect: database and
// collection handles derived from it must stay valid for the process
// lifetime.
func (m *Manager) tryRestore() bool {
	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()

	m.mu.Lock()
	current := m.client
	m.mu.Unlock()

	if current == nil {
		return false
	}
	return current.Ping(ctx, readpref.Primary()) == nil
}

// IsConnected reports current liveness; the gating middleware and the
// health endpoint read this.
func (m *Manager) IsConnected() bool {
	return m.state.Load() == StateConnected
}

// StateString returns the liveness state for the health endpoint.
func (m *Manager) StateString() string {
	if m.IsConnected() {
		return "connected"
	}
	return "disconnected"
}

// Ping checks the store end to end, independent of the cached flag.
func (m *Manager) Ping(ctx context.Context) error {
	m.mu.Lock()
	client := m.client
	m.mu.Unlock()
	if client == nil {
		return fmt.Errorf("database: not connected")
	}
	return client.Ping(ctx, readpref.Primary())
}

// Database returns a handle to the named database when the manager was
// dialed with the real driver. It is nil under a fake dialer.
func (m *Manager) Database(name string) *mongo.Database {
	m.mu.Lock()
	defer m.mu.Unlock()
	if mc, ok := m.client.(*mongo.Client); ok {
		return mc.Database(name)
	}
	return nil
}

// Close stops supervision and disconnects the client.
func (m *Manager) Close(ctx context.Context) error {
	m.closeOnce.Do(func() { close(m.done) })
	m.state.Store(StateDisconnected)

	m.mu.Lock()
	client := m.client
	m.client = nil
	m.mu.Unlock()

	if client == nil {
		return nil
	}
	return client.Disconnect(ctx)
}

// sleep waits for d or until ctx is done; it reports whether the full wait
// elapsed.
func (m *Manager) sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	case <-m.done:
		return false
	}
}

func (m *Manager) sleepDone(d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-m.done:
		return false
	}
}

func nextDelay(current, max time.Duration) time.Duration {
	next := time.Duration(float64(current) * backoffMultiplier)
	if next > max {
		next = max
	}
	return next
}

// jitter spreads a delay over [d/2, d) so simultaneous reconnects desynchronize.
func jitter(d time.Duration) time.Duration {
	if d <= 1 {
		return d
	}
	half := d / 2
	return half + time.Duration(rand.Int63n(int64(half)))
}
