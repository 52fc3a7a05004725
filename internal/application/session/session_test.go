package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/advising-hub/config"
	"github.com/alem-hub/advising-hub/internal/domain/shared"
	"github.com/alem-hub/advising-hub/internal/domain/table"
	"github.com/alem-hub/advising-hub/internal/infrastructure/datasource"
	"github.com/alem-hub/advising-hub/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// FIXTURES
// ══════════════════════════════════════════════════════════════════════════════

func studentRows(n int) table.Dataset {
	rows := make(table.Dataset, n)
	for i := range n {
		id := i + 1
		rows[i] = table.Row{
			"id":         float64(id),
			"name":       "student",
			"selectable": id != 7 && id != 18,
		}
	}
	return rows
}

type builderFunc func(v config.ViewConfig) (table.Source, error)

func (f builderFunc) Build(v config.ViewConfig) (table.Source, error) { return f(v) }

func staticBuilder(rows table.Dataset, err error) builderFunc {
	return func(config.ViewConfig) (table.Source, error) {
		return table.SourceFunc(func(context.Context) (table.Dataset, error) { return rows, err }), nil
	}
}

func catalog(selectAll string) *config.ViewCatalog {
	return &config.ViewCatalog{Views: []config.ViewConfig{{
		Name:            "students",
		Title:           "Students",
		IDField:         "id",
		SelectableField: "selectable",
		PageSize:        10,
		SelectAll:       selectAll,
		Source:          config.SourceConfig{Kind: config.SourceStatic, Fixture: "students.json"},
	}}}
}

func sessionConfig() config.SessionConfig {
	return config.SessionConfig{IdleTTL: time.Minute, ReapInterval: time.Minute, MaxSessions: 4}
}

type recordingBus struct {
	mu     sync.Mutex
	events []shared.Event
}

func (b *recordingBus) Publish(e shared.Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, e)
	return nil
}

func (b *recordingBus) types() []shared.EventType {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]shared.EventType, len(b.events))
	for i, e := range b.events {
		out[i] = e.EventType()
	}
	return out
}

func openReady(t *testing.T, m *Manager) *Session {
	t.Helper()
	s, err := m.Open("students")
	require.NoError(t, err)
	t.Cleanup(s.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err = s.WaitReady(ctx)
	require.NoError(t, err)
	return s
}

// ══════════════════════════════════════════════════════════════════════════════
// SESSION
// ══════════════════════════════════════════════════════════════════════════════

func TestSession_PagingAndSelection(t *testing.T) {
	ctx := context.Background()
	m := NewManager(catalog("page"), staticBuilder(studentRows(25), nil), sessionConfig(), nil)
	s := openReady(t, m)

	snap, err := s.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, table.StatusReadyPopulated, snap.State.Status)
	assert.Equal(t, "1-10 of 25", snap.Summary.DisplayRange)
	assert.False(t, snap.Summary.BulkActionsEnabled)

	snap, err = s.SetPage(ctx, 3)
	require.NoError(t, err)
	assert.Len(t, snap.State.VisibleRows, 5)
	assert.Equal(t, "21-25 of 25", snap.Summary.DisplayRange)

	snap, err = s.SetPage(ctx, 99)
	require.NoError(t, err, "clamped pages are not an error for clients")
	assert.Equal(t, 3, snap.State.PageNumber)

	snap, err = s.Select(ctx, []any{"1", "7", "ghost", float64(21)})
	require.NoError(t, err)
	assert.Equal(t, []table.RowID{"1", "21"}, snap.State.Selection.IDs())
	assert.Equal(t, 3, snap.State.PageNumber, "selection leaves the page alone")
	assert.True(t, snap.Summary.BulkActionsEnabled)

	snap, err = s.ClearSelection(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, snap.Summary.SelectedCount)
}

func TestSession_SelectAllScopes(t *testing.T) {
	ctx := context.Background()

	page := openReady(t, NewManager(catalog("page"), staticBuilder(studentRows(25), nil), sessionConfig(), nil))
	_, err := page.SetPage(ctx, 2)
	require.NoError(t, err)
	snap, err := page.SelectAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 9, snap.Summary.SelectedCount, "rows 11-20 minus unselectable 18")

	all := openReady(t, NewManager(catalog("dataset"), staticBuilder(studentRows(25), nil), sessionConfig(), nil))
	snap, err = all.SelectAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 23, snap.Summary.SelectedCount)
}

func TestSession_EventsDroppedWhilePending(t *testing.T) {
	ctx := context.Background()
	release := make(chan struct{})
	builder := builderFunc(func(config.ViewConfig) (table.Source, error) {
		return table.SourceFunc(func(ctx context.Context) (table.Dataset, error) {
			select {
			case <-release:
				return studentRows(3), nil
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}), nil
	})

	m := NewManager(catalog("page"), builder, sessionConfig(), nil)
	s, err := m.Open("students")
	require.NoError(t, err)
	defer s.Close()

	snap, err := s.SetPage(ctx, 2)
	assert.ErrorIs(t, err, shared.ErrLoadPending)
	assert.Equal(t, table.StatusPending, snap.State.Status)
	assert.Equal(t, "0-0 of 0", snap.Summary.DisplayRange)

	_, err = s.Select(ctx, []string{"1"})
	assert.ErrorIs(t, err, shared.ErrLoadPending)

	_, err = m.RunBulk(ctx, s.ID(), "export")
	assert.ErrorIs(t, err, shared.ErrLoadPending)

	close(release)
	snap, err = s.WaitReady(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, snap.State.TotalCount)
	assert.Equal(t, 0, snap.Summary.SelectedCount)
}

func TestSession_ReloadDiscardsStaleLoad(t *testing.T) {
	ctx := context.Background()
	releaseFirst := make(chan struct{})
	firstStarted := make(chan struct{})
	firstDone := make(chan struct{})
	var calls atomic.Int32

	builder := builderFunc(func(config.ViewConfig) (table.Source, error) {
		return table.SourceFunc(func(context.Context) (table.Dataset, error) {
			if calls.Add(1) == 1 {
				defer close(firstDone)
				close(firstStarted)
				<-releaseFirst
				return studentRows(3), nil
			}
			return studentRows(12), nil
		}), nil
	})

	bus := &recordingBus{}
	m := NewManager(catalog("page"), builder, sessionConfig(), nil, WithEventPublisher(bus))
	s, err := m.Open("students")
	require.NoError(t, err)
	defer s.Close()
	<-firstStarted

	snap, err := s.Reload(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), snap.State.Generation)

	snap, err = s.WaitReady(ctx)
	require.NoError(t, err)
	assert.Equal(t, 12, snap.State.TotalCount)

	close(releaseFirst)
	<-firstDone
	time.Sleep(20 * time.Millisecond)

	snap, err = s.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, 12, snap.State.TotalCount)
	assert.Equal(t, table.StatusReadyPopulated, snap.State.Status)

	loads := 0
	for _, typ := range bus.types() {
		if typ == shared.EventLoadCompleted {
			loads++
		}
	}
	assert.Equal(t, 1, loads)
}

type mapCache struct {
	mu   sync.Mutex
	rows map[string]table.Dataset
}

func (c *mapCache) GetDataset(_ context.Context, key string) (table.Dataset, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	rows, ok := c.rows[key]
	return rows, ok, nil
}

func (c *mapCache) SetDataset(_ context.Context, key string, rows table.Dataset, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rows[key] = rows
	return nil
}

func (c *mapCache) Invalidate(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.rows, key)
	return nil
}

func TestSession_ReloadReadsPastDatasetCache(t *testing.T) {
	ctx := context.Background()
	var size, calls atomic.Int32
	size.Store(1)
	origin := table.SourceFunc(func(context.Context) (table.Dataset, error) {
		calls.Add(1)
		return studentRows(int(size.Load())), nil
	})
	cache := &mapCache{rows: map[string]table.Dataset{}}
	builder := builderFunc(func(v config.ViewConfig) (table.Source, error) {
		return datasource.NewCached(origin, cache, v.Name, time.Minute, nil), nil
	})

	m := NewManager(catalog("page"), builder, sessionConfig(), nil)
	s := openReady(t, m)

	snap, err := s.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, snap.State.TotalCount)

	size.Store(3)

	// A second session on the same view is served from the cache.
	other := openReady(t, m)
	snap, err = other.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, snap.State.TotalCount)
	assert.Equal(t, int32(1), calls.Load())

	_, err = s.Reload(ctx)
	require.NoError(t, err)
	snap, err = s.WaitReady(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, snap.State.TotalCount)
	assert.Equal(t, int32(2), calls.Load())

	// The refreshed rows are what the cache now holds.
	third := openReady(t, m)
	snap, err = third.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, snap.State.TotalCount)
}

func TestSession_FetchErrorSettlesEmpty(t *testing.T) {
	bus := &recordingBus{}
	m := NewManager(catalog("page"), staticBuilder(nil, errors.New("registrar offline")), sessionConfig(), nil,
		WithEventPublisher(bus))
	s := openReady(t, m)

	snap, err := s.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, table.StatusReadyEmpty, snap.State.Status)
	assert.Contains(t, snap.State.LastError, "registrar offline")
	assert.Equal(t, "0-0 of 0", snap.Summary.DisplayRange)
	assert.Contains(t, bus.types(), shared.EventLoadFailed)
}

func TestSession_ClosedSession(t *testing.T) {
	m := NewManager(catalog("page"), staticBuilder(studentRows(2), nil), sessionConfig(), nil)
	s := openReady(t, m)
	s.Close()

	_, err := s.Snapshot(context.Background())
	assert.ErrorIs(t, err, shared.ErrSessionClosed)
	_, err = s.SetPage(context.Background(), 1)
	assert.ErrorIs(t, err, shared.ErrSessionClosed)
}

// ══════════════════════════════════════════════════════════════════════════════
// BULK ACTIONS
// ══════════════════════════════════════════════════════════════════════════════

type recordingStore struct {
	view string
	ids  []string
	err  error
}

func (r *recordingStore) RecordNotifications(_ context.Context, _, view string, ids []string) error {
	r.view, r.ids = view, ids
	return r.err
}

func TestManager_RunBulk(t *testing.T) {
	ctx := context.Background()
	store := &recordingStore{}
	bus := &recordingBus{}
	m := NewManager(catalog("page"), staticBuilder(studentRows(25), nil), sessionConfig(), nil,
		WithEventPublisher(bus),
		WithBulkHandler(shared.BulkActionNotifyAdvisor, NotifyAdvisor(store, nil)))
	s := openReady(t, m)

	_, err := m.RunBulk(ctx, s.ID(), "export")
	assert.ErrorIs(t, err, shared.ErrNoSelection)

	_, err = s.Select(ctx, []string{"2", "1"})
	require.NoError(t, err)

	res, err := m.RunBulk(ctx, s.ID(), "export")
	require.NoError(t, err)
	assert.Equal(t, 2, res.Affected)
	assert.Equal(t, "text/csv", res.ContentType)
	lines := strings.Split(strings.TrimSpace(res.Body), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "id,name,selectable", lines[0])
	assert.Equal(t, "1,student,true", lines[1])

	res, err = m.RunBulk(ctx, s.ID(), "notify-advisor")
	require.NoError(t, err)
	assert.Equal(t, 2, res.Affected)
	assert.Equal(t, "students", store.view)
	assert.ElementsMatch(t, []string{"1", "2"}, store.ids)
	assert.Contains(t, bus.types(), shared.EventBulkActionRun)

	_, err = m.RunBulk(ctx, s.ID(), "delete-everything")
	assert.ErrorIs(t, err, shared.ErrUnknownAction)

	store.err = errors.New("db down")
	_, err = m.RunBulk(ctx, s.ID(), "notify-advisor")
	assert.ErrorIs(t, err, shared.ErrExternalService)
}

// ══════════════════════════════════════════════════════════════════════════════
// MANAGER
// ══════════════════════════════════════════════════════════════════════════════

func TestManager_OpenGetClose(t *testing.T) {
	bus := &recordingBus{}
	m := NewManager(catalog("page"), staticBuilder(studentRows(1), nil), sessionConfig(), nil, WithEventPublisher(bus))

	_, err := m.Open("dorms")
	assert.True(t, shared.IsNotFound(err))

	s, err := m.Open("students")
	require.NoError(t, err)

	got, err := m.Get(s.ID())
	require.NoError(t, err)
	assert.Same(t, s, got)
	assert.Equal(t, 1, m.Len())
	assert.Equal(t, []shared.SessionID{s.ID()}, m.IDs())

	require.NoError(t, m.Close(s.ID()))
	_, err = m.Get(s.ID())
	assert.ErrorIs(t, err, shared.ErrSessionNotFound)
	assert.ErrorIs(t, m.Close(s.ID()), shared.ErrSessionNotFound)

	types := bus.types()
	assert.Contains(t, types, shared.EventSessionOpened)
	assert.Contains(t, types, shared.EventSessionClosed)
}

func TestManager_MaxSessions(t *testing.T) {
	cfg := sessionConfig()
	cfg.MaxSessions = 1
	m := NewManager(catalog("page"), staticBuilder(studentRows(1), nil), cfg, nil)
	defer m.Shutdown()

	_, err := m.Open("students")
	require.NoError(t, err)
	_, err = m.Open("students")
	assert.ErrorIs(t, err, ErrTooManySessions)
}

func TestManager_ReapIdle(t *testing.T) {
	clock := timeutil.NewFixedClock(time.Date(2025, 9, 1, 9, 0, 0, 0, time.UTC), nil)
	m := NewManager(catalog("page"), staticBuilder(studentRows(1), nil), sessionConfig(), nil, WithClock(clock))

	idle, err := m.Open("students")
	require.NoError(t, err)

	clock.Advance(45 * time.Second)
	busy, err := m.Open("students")
	require.NoError(t, err)
	defer busy.Close()

	clock.Advance(30 * time.Second)
	assert.Equal(t, 1, m.Reap())
	assert.Equal(t, 1, m.Len())

	select {
	case <-idle.Done():
	case <-time.After(time.Second):
		t.Fatal("reaped session still running")
	}

	_, err = m.Get(busy.ID())
	assert.NoError(t, err)
}

func TestManager_ShutdownClosesEverySession(t *testing.T) {
	m := NewManager(catalog("page"), staticBuilder(studentRows(1), nil), sessionConfig(), nil)
	a, err := m.Open("students")
	require.NoError(t, err)
	b, err := m.Open("students")
	require.NoError(t, err)

	m.Shutdown()

	assert.Equal(t, 0, m.Len())
	<-a.Done()
	<-b.Done()
}
