package playback

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"github.com/jmylchreest/playarr/internal/observability"
	"github.com/jmylchreest/playarr/internal/platform"
)

// SessionFactory creates an idle session for an identity.
type SessionFactory func(id platform.Identity) (*Session, error)

type managedSession struct {
	session *Session
	ready   chan struct{}
	err     error
}

func (e *managedSession) done() bool {
	select {
	case <-e.ready:
		return true
	default:
		return false
	}
}

// Manager keeps at most one running session per identity. Sessions are
// started with the manager's context, so they outlive the request that
// created them.
type Manager struct {
	ctx     context.Context
	factory SessionFactory
	logger  *slog.Logger

	mu       sync.Mutex
	sessions map[platform.Identity]*managedSession
}

// NewManager creates a manager whose sessions run until ctx is cancelled or
// they are stopped.
func NewManager(ctx context.Context, factory SessionFactory, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		ctx:      ctx,
		factory:  factory,
		logger:   observability.WithComponent(logger, "session_manager"),
		sessions: make(map[platform.Identity]*managedSession),
	}
}

// Acquire returns the running session for id, starting one if needed.
// Concurrent callers for the same identity share a single start. A session
// that ended (stopped or unavailable) is replaced.
func (m *Manager) Acquire(ctx context.Context, id platform.Identity) (*Session, error) {
	m.mu.Lock()
	entry, ok := m.sessions[id]
	var ended *Session
	if ok && entry.done() && entry.err == nil && entry.session.State().IsTerminal() {
		delete(m.sessions, id)
		ended = entry.session
		ok = false
	}
	if ok {
		m.mu.Unlock()
		return m.wait(ctx, entry)
	}

	session, err := m.factory(id)
	if err != nil {
		m.mu.Unlock()
		if ended != nil {
			ended.Stop()
		}
		return nil, err
	}
	entry = &managedSession{session: session, ready: make(chan struct{})}
	m.sessions[id] = entry
	m.mu.Unlock()

	if ended != nil {
		m.logger.InfoContext(ctx, "replacing ended session",
			slog.String("channel", id.String()),
			slog.String("session_id", ended.ID()),
			slog.String("state", ended.State().String()),
		)
		ended.Stop()
	}

	m.logger.DebugContext(ctx, "starting session",
		slog.String("channel", id.String()),
		slog.String("session_id", session.ID()),
	)

	entry.err = session.Start(m.ctx)
	close(entry.ready)

	if entry.err != nil {
		// A session waiting for an integrity remediation is kept so the
		// challenge is reported once and not re-triggered by every request.
		// Stop clears it.
		if platform.IsIntegrityChallenge(entry.err) {
			return nil, entry.err
		}
		m.mu.Lock()
		if m.sessions[id] == entry {
			delete(m.sessions, id)
		}
		m.mu.Unlock()
		session.Stop()
		return nil, entry.err
	}
	return session, nil
}

func (m *Manager) wait(ctx context.Context, entry *managedSession) (*Session, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-entry.ready:
	}
	if entry.err != nil {
		return nil, entry.err
	}
	return entry.session, nil
}

// Get returns the session for id once its start has finished. This includes
// a session held in the integrity state.
func (m *Manager) Get(id platform.Identity) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.sessions[id]
	if !ok || !entry.done() {
		return nil, false
	}
	return entry.session, true
}

// Stop stops and forgets the session for id. It reports whether one existed.
func (m *Manager) Stop(id platform.Identity) bool {
	m.mu.Lock()
	entry, ok := m.sessions[id]
	if ok && entry.done() {
		delete(m.sessions, id)
	}
	m.mu.Unlock()

	if !ok || !entry.done() {
		return false
	}
	entry.session.Stop()
	return true
}

// StopAll stops every session.
func (m *Manager) StopAll() {
	m.mu.Lock()
	entries := make([]*managedSession, 0, len(m.sessions))
	for id, entry := range m.sessions {
		entries = append(entries, entry)
		delete(m.sessions, id)
	}
	m.mu.Unlock()

	for _, entry := range entries {
		<-entry.ready
		entry.session.Stop()
	}
}

// List returns the status of every session whose start has finished,
// ordered by channel.
func (m *Manager) List() []Status {
	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, entry := range m.sessions {
		if entry.done() {
			sessions = append(sessions, entry.session)
		}
	}
	m.mu.Unlock()

	statuses := make([]Status, 0, len(sessions))
	for _, s := range sessions {
		statuses = append(statuses, s.Status())
	}
	sort.Slice(statuses, func(i, j int) bool { return statuses[i].Channel < statuses[j].Channel })
	return statuses
}
