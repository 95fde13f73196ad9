package connection

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// Manager owns the push channel and keeps it open.
type Manager interface {
	// Start begins the connect/reconnect loop. It returns immediately.
	Start(ctx context.Context) error

	// Stop closes the channel and stops reconnecting.
	Stop(ctx context.Context) error

	// Messages returns channel of raw messages for Message Router.
	Messages() <-chan RawMessage

	// States returns channel of state transitions.
	States() <-chan StateChange

	// State returns the current state.
	State() State

	// IsConnected reports whether the channel is open.
	IsConnected() bool

	// Stats returns current connection statistics.
	Stats() ManagerStats
}

// ClientFactory builds the Client for one connection attempt.
type ClientFactory func(cfg ClientConfig, logger *slog.Logger) Client

// manager implements the Manager interface.
type manager struct {
	cfg       ManagerConfig
	newClient ClientFactory
	logger    *slog.Logger

	// Output channels
	router chan RawMessage
	states chan StateChange

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu    sync.RWMutex
	state State
	stats ManagerStats
}

// NewManager creates a new Connection Manager.
func NewManager(cfg ManagerConfig, logger *slog.Logger) Manager {
	return newManager(cfg, NewClient, logger)
}

// NewManagerWithFactory creates a Connection Manager that builds its
// clients with factory.
func NewManagerWithFactory(cfg ManagerConfig, factory ClientFactory, logger *slog.Logger) Manager {
	return newManager(cfg, factory, logger)
}

func newManager(cfg ManagerConfig, factory ClientFactory, logger *slog.Logger) *manager {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MessageBufferSize < 1 {
		cfg.MessageBufferSize = 1
	}
	if cfg.StateBufferSize < 1 {
		cfg.StateBufferSize = 1
	}

	return &manager{
		cfg:       cfg,
		newClient: factory,
		logger:    logger,
		router:    make(chan RawMessage, cfg.MessageBufferSize),
		states:    make(chan StateChange, cfg.StateBufferSize),
		state:     StateDisconnected,
	}
}

// Start begins the connection manager.
func (m *manager) Start(ctx context.Context) error {
	m.ctx, m.cancel = context.WithCancel(ctx)

	m.wg.Add(1)
	go m.run()

	m.logger.Info("connection manager started",
		"url", m.cfg.URL,
		"reconnect_delay", m.cfg.Policy.Delay,
		"max_attempts", m.cfg.Policy.MaxAttempts,
	)

	return nil
}

// Stop gracefully shuts down.
func (m *manager) Stop(ctx context.Context) error {
	m.logger.Info("stopping connection manager")

	if m.cancel != nil {
		m.cancel()
	}

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		m.logger.Warn("shutdown timeout, leaving channels open")
		return ctx.Err()
	}

	close(m.router)
	close(m.states)

	m.logger.Info("connection manager stopped")
	return nil
}

// Messages returns the output channel for Message Router.
func (m *manager) Messages() <-chan RawMessage {
	return m.router
}

// States returns the state transition channel.
func (m *manager) States() <-chan StateChange {
	return m.states
}

// State returns the current state.
func (m *manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// IsConnected reports whether the channel is open.
func (m *manager) IsConnected() bool {
	return m.State() == StateConnected
}

// Stats returns current statistics.
func (m *manager) Stats() ManagerStats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	stats := m.stats
	stats.State = m.state
	return stats
}

// run is the connect/reconnect loop. Exactly one attempt is scheduled per
// disconnect; nothing cancels a pending retry except shutdown.
func (m *manager) run() {
	defer m.wg.Done()

	failures := 0
	session := 0

	for {
		attempt := failures + 1
		m.setState(StateConnecting, attempt, nil)

		clientCfg := m.cfg.Client
		clientCfg.URL = m.cfg.URL
		clientCfg.Token = m.cfg.Token
		clientCfg.ClientID = m.cfg.ClientID
		client := m.newClient(clientCfg, m.logger.With("attempt", attempt))

		m.mu.Lock()
		m.stats.Attempts++
		m.mu.Unlock()

		err := client.Connect(m.ctx)
		if err == nil {
			session++
			failures = 0

			m.mu.Lock()
			m.stats.Connects++
			m.mu.Unlock()

			m.setState(StateConnected, 0, nil)
			m.logger.Info("push channel connected", "session", session)

			err = m.pump(client, session)
			client.Close()

			if m.ctx.Err() != nil {
				m.setState(StateDisconnected, 0, nil)
				return
			}

			m.mu.Lock()
			m.stats.Drops++
			m.mu.Unlock()
		} else {
			client.Close()
			if m.ctx.Err() != nil {
				m.setState(StateDisconnected, attempt, nil)
				return
			}
		}

		failures++
		m.setState(StateDisconnected, failures, err)

		wait, ok := m.cfg.Policy.Next(failures)
		if !ok {
			m.logger.Error("giving up on push channel",
				"attempts", failures-1,
				"error", ErrRetriesExhausted,
			)
			m.emit(StateChange{
				From:    StateDisconnected,
				To:      StateDisconnected,
				Attempt: failures,
				Err:     ErrRetriesExhausted,
				At:      time.Now(),
			})
			return
		}

		m.logger.Info("push channel disconnected, scheduling reconnect",
			"retry", failures,
			"wait", wait,
			"error", err,
		)

		timer := time.NewTimer(wait)
		select {
		case <-m.ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// pump forwards messages from client until it fails or the manager stops.
func (m *manager) pump(client Client, session int) error {
	for {
		select {
		case <-m.ctx.Done():
			return m.ctx.Err()

		case err := <-client.Errors():
			// Deliver whatever was read before the failure.
			m.drain(client, session)
			if err == nil {
				err = errors.New("connection closed")
			}
			return err

		case msg := <-client.Messages():
			if !m.forward(msg, session) {
				return m.ctx.Err()
			}
		}
	}
}

// drain forwards messages still buffered in client.
func (m *manager) drain(client Client, session int) {
	for {
		select {
		case msg := <-client.Messages():
			if !m.forward(msg, session) {
				return
			}
		default:
			return
		}
	}
}

func (m *manager) forward(msg TimestampedMessage, session int) bool {
	raw := RawMessage{
		Data:       msg.Data,
		Session:    session,
		ReceivedAt: msg.ReceivedAt,
	}

	m.mu.Lock()
	m.stats.Received++
	m.mu.Unlock()

	select {
	case m.router <- raw:
		return true
	case <-m.ctx.Done():
		return false
	}
}

// setState records a transition and publishes it.
func (m *manager) setState(to State, attempt int, cause error) {
	m.mu.Lock()
	from := m.state
	m.state = to
	m.mu.Unlock()

	if from == to {
		return
	}

	m.emit(StateChange{
		From:    from,
		To:      to,
		Attempt: attempt,
		Err:     cause,
		At:      time.Now(),
	})
}

func (m *manager) emit(change StateChange) {
	select {
	case m.states <- change:
	default:
		m.logger.Warn("state buffer full, dropping transition",
			"from", change.From,
			"to", change.To,
		)
	}
}
