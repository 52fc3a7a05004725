// Package session runs table controllers for API clients. Every session owns
// one controller and one goroutine; all reads and writes of the controller
// happen on that goroutine, and load outcomes re-enter it as messages.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/alem-hub/advising-hub/config"
	"github.com/alem-hub/advising-hub/internal/domain/shared"
	"github.com/alem-hub/advising-hub/internal/domain/table"
	"github.com/alem-hub/advising-hub/pkg/logger"
	"github.com/alem-hub/advising-hub/pkg/timeutil"
)

// Snapshot is what clients see after every operation.
type Snapshot struct {
	ID      shared.SessionID `json:"id"`
	View    string           `json:"view"`
	Title   string           `json:"title"`
	State   table.State      `json:"state"`
	Summary table.Summary    `json:"summary"`
}

type command struct {
	fn    func(*table.Controller) error
	reply chan error
}

// Session is one client's view of one table.
type Session struct {
	id     shared.SessionID
	view   config.ViewConfig
	src    table.Source
	ctrl   *table.Controller
	log    *logger.Logger
	bus    shared.EventPublisher
	clock  timeutil.Clock
	loadTO time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	cmds   chan command
	loads  chan table.Outcome
	done   chan struct{}

	// loop-owned
	loadStarted time.Time
	waiters     []chan struct{}

	mu         sync.Mutex
	lastActive time.Time
}

// newSession builds the controller for view and starts the loop. The first
// load begins immediately.
func newSession(id shared.SessionID, view config.ViewConfig, src table.Source, deps deps) (*Session, error) {
	scope, err := table.ParseSelectAllScope(view.SelectAll)
	if err != nil {
		return nil, err
	}
	selectable := table.AlwaysSelectable
	if view.SelectableField != "" {
		selectable = table.BoolField(view.SelectableField)
	}

	ctrl := table.NewController(
		table.WithName(view.Name),
		table.WithPageSize(view.PageSize),
		table.WithRowID(table.FieldID(view.IDField)),
		table.WithSelectable(selectable),
		table.WithSelectAllScope(scope),
	)

	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		id:         id,
		view:       view,
		src:        src,
		ctrl:       ctrl,
		log:        deps.log.With(logger.SessionID(id.String()), logger.View(view.Name)),
		bus:        deps.bus,
		clock:      deps.clock,
		loadTO:     deps.loadTimeout,
		ctx:        ctx,
		cancel:     cancel,
		cmds:       make(chan command),
		loads:      make(chan table.Outcome),
		done:       make(chan struct{}),
		lastActive: deps.clock.Now(),
	}

	s.beginLoad(s.src)
	go s.loop()
	return s, nil
}

// ID returns the session ID.
func (s *Session) ID() shared.SessionID { return s.id }

// View returns the view configuration the session was opened with.
func (s *Session) View() config.ViewConfig { return s.view }

// LastActive returns when a client last touched the session.
func (s *Session) LastActive() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActive
}

func (s *Session) touch() {
	s.mu.Lock()
	s.lastActive = s.clock.Now()
	s.mu.Unlock()
}

// ══════════════════════════════════════════════════════════════════════════════
// EVENT LOOP
// ══════════════════════════════════════════════════════════════════════════════

func (s *Session) loop() {
	defer close(s.done)
	defer s.releaseWaiters()

	for {
		select {
		case <-s.ctx.Done():
			return

		case cmd := <-s.cmds:
			cmd.reply <- cmd.fn(s.ctrl)

		case o := <-s.loads:
			s.settle(o)

		case err := <-s.ctrl.Errors():
			s.log.Error("dataset load failed", logger.Err(err))
		}
	}
}

// beginLoad must run on the loop goroutine (or before it starts).
func (s *Session) beginLoad(src table.Source) {
	gen := s.ctrl.BeginLoad()
	s.loadStarted = time.Now()
	s.log.Debug("load started", logger.Generation(gen))

	ctx := s.ctx
	cancel := context.CancelFunc(func() {})
	if s.loadTO > 0 {
		ctx, cancel = context.WithTimeout(s.ctx, s.loadTO)
	}
	table.Run(ctx, src, gen, func(o table.Outcome) {
		defer cancel()
		select {
		case s.loads <- o:
		case <-s.ctx.Done():
		}
	})
}

func (s *Session) settle(o table.Outcome) {
	if err := s.ctrl.CompleteLoad(o); err != nil {
		s.log.Debug("stale load discarded",
			logger.Generation(o.Generation),
			logger.Uint64("current_generation", s.ctrl.State().Generation),
		)
		return
	}

	latency := time.Since(s.loadStarted)
	if o.Err != nil {
		s.publish(shared.NewLoadFailedEvent(s.id.String(), s.view.Name, o.Generation, o.Err.Error()))
	} else {
		s.log.Info("dataset loaded",
			logger.Generation(o.Generation),
			logger.RowCount(len(o.Rows)),
			logger.Latency(latency),
		)
		s.publish(shared.NewLoadCompletedEvent(s.id.String(), s.view.Name, o.Generation, len(o.Rows), latency))
	}
	s.releaseWaiters()
}

func (s *Session) releaseWaiters() {
	for _, w := range s.waiters {
		close(w)
	}
	s.waiters = nil
}

func (s *Session) publish(e shared.Event) {
	if s.bus == nil {
		return
	}
	if err := s.bus.Publish(e); err != nil {
		s.log.Warn("event publish failed", logger.String("event", string(e.EventType())), logger.Err(err))
	}
}

// do runs fn on the loop goroutine and waits for it.
func (s *Session) do(ctx context.Context, fn func(*table.Controller) error) error {
	cmd := command{fn: fn, reply: make(chan error, 1)}
	select {
	case s.cmds <- cmd:
	case <-s.done:
		return shared.ErrSessionClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	s.touch()

	select {
	case err := <-cmd.reply:
		return err
	case <-s.done:
		return shared.ErrSessionClosed
	}
}

// snapshotAfter runs fn and returns the resulting snapshot. The snapshot is
// taken even when fn fails, so callers can show the state that rejected them.
func (s *Session) snapshotAfter(ctx context.Context, fn func(*table.Controller) error) (Snapshot, error) {
	var snap Snapshot
	var opErr error
	err := s.do(ctx, func(c *table.Controller) error {
		opErr = fn(c)
		snap = s.snapshot(c)
		return nil
	})
	if err != nil {
		return Snapshot{}, err
	}
	return snap, opErr
}

func (s *Session) snapshot(c *table.Controller) Snapshot {
	st := c.State()
	return Snapshot{
		ID:      s.id,
		View:    s.view.Name,
		Title:   s.view.Title,
		State:   st,
		Summary: table.Summarize(st),
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// OPERATIONS
// ══════════════════════════════════════════════════════════════════════════════

// Snapshot returns the current state.
func (s *Session) Snapshot(ctx context.Context) (Snapshot, error) {
	return s.snapshotAfter(ctx, func(*table.Controller) error { return nil })
}

// SetPage moves to page. Out-of-range pages are clamped and logged.
func (s *Session) SetPage(ctx context.Context, page int) (Snapshot, error) {
	return s.snapshotAfter(ctx, func(c *table.Controller) error {
		err := c.OnPageChange(page)
		var pe *shared.InvalidPageError
		if errors.As(err, &pe) {
			s.log.Debug("page clamped",
				logger.Page(pe.Requested),
				logger.Int("clamped", pe.Clamped),
				logger.Int("total_pages", pe.TotalPages),
			)
			return nil
		}
		return err
	})
}

// Select replaces the selection with event, reconciled against the dataset.
func (s *Session) Select(ctx context.Context, event any) (Snapshot, error) {
	return s.snapshotAfter(ctx, func(c *table.Controller) error {
		return c.OnSelectionChange(event)
	})
}

// SelectAll applies the view's select-all policy.
func (s *Session) SelectAll(ctx context.Context) (Snapshot, error) {
	return s.snapshotAfter(ctx, func(c *table.Controller) error {
		return c.SelectAll()
	})
}

// ClearSelection empties the selection.
func (s *Session) ClearSelection(ctx context.Context) (Snapshot, error) {
	return s.snapshotAfter(ctx, func(c *table.Controller) error {
		return c.ClearSelection()
	})
}

// Reload drops the dataset and starts a new load generation. The new load
// reads past any dataset cache.
func (s *Session) Reload(ctx context.Context) (Snapshot, error) {
	return s.snapshotAfter(ctx, func(*table.Controller) error {
		s.beginLoad(table.Fresh(s.src))
		return nil
	})
}

// WaitReady blocks until the current load settles.
func (s *Session) WaitReady(ctx context.Context) (Snapshot, error) {
	var wait chan struct{}
	err := s.do(ctx, func(c *table.Controller) error {
		wait = make(chan struct{})
		if c.Status() != table.StatusPending {
			close(wait)
			return nil
		}
		s.waiters = append(s.waiters, wait)
		return nil
	})
	if err != nil {
		return Snapshot{}, err
	}

	select {
	case <-wait:
	case <-ctx.Done():
		return Snapshot{}, ctx.Err()
	}
	return s.Snapshot(ctx)
}

// selected returns a copy of the selected rows, or an error when bulk actions
// are disabled.
func (s *Session) selected(ctx context.Context) (table.Dataset, []string, error) {
	var rows table.Dataset
	var ids []string
	err := s.do(ctx, func(c *table.Controller) error {
		if c.Status() == table.StatusPending {
			return shared.ErrLoadPending
		}
		if !c.CanRunBulkAction() {
			return shared.ErrNoSelection
		}
		for _, r := range c.SelectedRows() {
			cp := make(table.Row, len(r))
			for k, v := range r {
				cp[k] = v
			}
			rows = append(rows, cp)
		}
		for _, id := range c.State().Selection.IDs() {
			ids = append(ids, string(id))
		}
		return nil
	})
	return rows, ids, err
}

// Close stops the loop. In-flight loads are cancelled through the session
// context. Close is idempotent.
func (s *Session) Close() {
	s.cancel()
	<-s.done
}

// Done is closed once the loop has exited.
func (s *Session) Done() <-chan struct{} { return s.done }
