package session

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/alem-hub/advising-hub/config"
	"github.com/alem-hub/advising-hub/internal/domain/shared"
	"github.com/alem-hub/advising-hub/internal/domain/table"
	"github.com/alem-hub/advising-hub/pkg/logger"
	"github.com/alem-hub/advising-hub/pkg/timeutil"
)

// SourceBuilder turns a view into a data source. Implemented by
// datasource.Factory.
type SourceBuilder interface {
	Build(v config.ViewConfig) (table.Source, error)
}

// ErrTooManySessions is returned by Open when the session limit is reached.
var ErrTooManySessions = shared.NewDomainError("session", "Open", shared.ErrInvalidState, "too many open sessions")

type deps struct {
	log         *logger.Logger
	bus         shared.EventPublisher
	clock       timeutil.Clock
	loadTimeout time.Duration
}

// Option configures a Manager.
type Option func(*Manager)

// WithEventPublisher publishes session events to bus.
func WithEventPublisher(bus shared.EventPublisher) Option {
	return func(m *Manager) { m.deps.bus = bus }
}

// WithClock replaces the clock used for idle tracking.
func WithClock(c timeutil.Clock) Option {
	return func(m *Manager) {
		if c != nil {
			m.deps.clock = c
		}
	}
}

// WithLoadTimeout bounds every dataset load.
func WithLoadTimeout(d time.Duration) Option {
	return func(m *Manager) { m.deps.loadTimeout = d }
}

// WithBulkHandler registers the handler for action.
func WithBulkHandler(action shared.BulkAction, h BulkHandler) Option {
	return func(m *Manager) { m.bulk[action] = h }
}

// Manager owns all open sessions.
type Manager struct {
	catalog *config.ViewCatalog
	sources SourceBuilder
	cfg     config.SessionConfig
	deps    deps
	bulk    map[shared.BulkAction]BulkHandler

	mu       sync.RWMutex
	sessions map[shared.SessionID]*Session
}

// NewManager creates a session manager. Export is always available;
// notify-advisor logs only unless a handler is registered.
func NewManager(catalog *config.ViewCatalog, sources SourceBuilder, cfg config.SessionConfig, log *logger.Logger, opts ...Option) *Manager {
	if log == nil {
		log = logger.Nop()
	}
	m := &Manager{
		catalog:  catalog,
		sources:  sources,
		cfg:      cfg,
		deps:     deps{log: log.Named("session"), clock: timeutil.NewSystemClock("UTC")},
		bulk:     make(map[shared.BulkAction]BulkHandler),
		sessions: make(map[shared.SessionID]*Session),
	}
	m.bulk[shared.BulkActionNotifyAdvisor] = NotifyAdvisor(nil, m.deps.log)
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Views lists the catalog.
func (m *Manager) Views() []config.ViewConfig {
	return m.catalog.Views
}

// Open starts a session on the named view. The first load is already running
// when Open returns.
func (m *Manager) Open(view string) (*Session, error) {
	v, ok := m.catalog.Find(view)
	if !ok {
		return nil, shared.ErrViewNotFound
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cfg.MaxSessions > 0 && len(m.sessions) >= m.cfg.MaxSessions {
		return nil, ErrTooManySessions
	}

	src, err := m.sources.Build(v)
	if err != nil {
		return nil, err
	}

	id := shared.NewSessionID()
	s, err := newSession(id, v, src, m.deps)
	if err != nil {
		return nil, err
	}
	m.sessions[id] = s

	m.deps.log.Info("session opened", logger.SessionID(id.String()), logger.View(v.Name))
	m.publish(shared.NewSessionLifecycleEvent(shared.EventSessionOpened, id.String(), v.Name))
	return s, nil
}

// Get returns an open session.
func (m *Manager) Get(id shared.SessionID) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[id]
	if !ok {
		return nil, shared.ErrSessionNotFound
	}
	return s, nil
}

// Close stops and forgets a session.
func (m *Manager) Close(id shared.SessionID) error {
	s, err := m.remove(id)
	if err != nil {
		return err
	}
	s.Close()
	m.deps.log.Info("session closed", logger.SessionID(id.String()))
	m.publish(shared.NewSessionLifecycleEvent(shared.EventSessionClosed, id.String(), s.view.Name))
	return nil
}

func (m *Manager) remove(id shared.SessionID) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok {
		return nil, shared.ErrSessionNotFound
	}
	delete(m.sessions, id)
	return s, nil
}

// Len returns the number of open sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// RunBulk runs action over the session's selection. It fails with
// shared.ErrNoSelection when bulk actions are disabled.
func (m *Manager) RunBulk(ctx context.Context, id shared.SessionID, action string) (BulkResult, error) {
	a, err := shared.ParseBulkAction(action)
	if err != nil {
		return BulkResult{}, err
	}
	s, err := m.Get(id)
	if err != nil {
		return BulkResult{}, err
	}

	h, ok := m.bulk[a]
	if !ok && a == shared.BulkActionExport {
		h = ExportCSV(s.view.IDField)
	} else if !ok {
		return BulkResult{}, shared.ErrUnknownAction
	}

	rows, ids, err := s.selected(ctx)
	if err != nil {
		return BulkResult{}, err
	}

	res, err := h.Run(ctx, BulkRequest{SessionID: id, View: s.view.Name, Action: a, Rows: rows, RowIDs: ids})
	if err != nil {
		return BulkResult{}, err
	}
	m.publish(shared.NewBulkActionRunEvent(id.String(), s.view.Name, a.String(), ids))
	return res, nil
}

// Reap closes sessions idle for longer than the configured TTL and returns
// how many it closed.
func (m *Manager) Reap() int {
	cutoff := m.deps.clock.Now().Add(-m.cfg.IdleTTL)

	m.mu.Lock()
	var expired []*Session
	for id, s := range m.sessions {
		if s.LastActive().Before(cutoff) {
			expired = append(expired, s)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for _, s := range expired {
		s.Close()
		m.deps.log.Info("session expired", logger.SessionID(s.id.String()), logger.View(s.view.Name))
		m.publish(shared.NewSessionLifecycleEvent(shared.EventSessionExpired, s.id.String(), s.view.Name))
	}
	return len(expired)
}

// Shutdown closes every session.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	all := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		all = append(all, s)
	}
	m.sessions = make(map[shared.SessionID]*Session)
	m.mu.Unlock()

	for _, s := range all {
		s.Close()
	}
}

// IDs returns the open session IDs, sorted.
func (m *Manager) IDs() []shared.SessionID {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]shared.SessionID, 0, len(m.sessions))
	for id := range m.sessions {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (m *Manager) publish(e shared.Event) {
	if m.deps.bus == nil {
		return
	}
	if err := m.deps.bus.Publish(e); err != nil {
		m.deps.log.Warn("event publish failed", logger.String("event", string(e.EventType())), logger.Err(err))
	}
}
