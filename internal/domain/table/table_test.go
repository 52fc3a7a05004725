package table

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/alem-hub/advising-hub/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// students builds n rows with float64 ids 1..n, the way encoding/json decodes them.
func students(n int) Dataset {
	ds := make(Dataset, n)
	for i := range ds {
		ds[i] = Row{"id": float64(i + 1), "name": fmt.Sprintf("Student %d", i+1)}
	}
	return ds
}

func ids(ds Dataset) []RowID {
	return IDs(ds, FieldID("id"))
}

func loaded(t *testing.T, ds Dataset, opts ...Option) *Controller {
	t.Helper()
	c := NewController(opts...)
	gen := c.BeginLoad()
	require.NoError(t, c.CompleteLoad(Outcome{Generation: gen, Rows: ds}))
	return c
}

// ─────────────────────────────────────────────────────────────────────────────
// Page-slice engine
// ─────────────────────────────────────────────────────────────────────────────

func TestSlice_PartitionsDataset(t *testing.T) {
	for _, n := range []int{0, 1, 9, 10, 11, 25, 100} {
		for _, size := range []int{1, 3, 10, 30} {
			ds := students(n)
			_, total := Slice(ds, 1, size)

			seen := []RowID{}
			for p := 1; p <= total; p++ {
				rows, _ := Slice(ds, p, size)
				seen = append(seen, ids(rows)...)
			}
			assert.Equal(t, ids(ds), seen, "n=%d size=%d", n, size)
		}
	}
}

func TestSlice_Edges(t *testing.T) {
	ds := students(25)

	rows, total := Slice(ds, 3, 10)
	assert.Equal(t, 3, total)
	assert.Equal(t, []RowID{"21", "22", "23", "24", "25"}, ids(rows))

	rows, _ = Slice(ds, 4, 10)
	assert.Empty(t, rows)
	assert.NotNil(t, rows)

	rows, _ = Slice(ds, 0, 10)
	assert.Empty(t, rows)

	_, total = Slice(nil, 1, 10)
	assert.Equal(t, 1, total)

	rows, total = Slice(ds, 1, 0)
	assert.Len(t, rows, DefaultPageSize)
	assert.Equal(t, 3, total)
}

func TestSlice_WindowCannotClobberNextPage(t *testing.T) {
	ds := students(20)
	page1, _ := Slice(ds, 1, 10)
	_ = append(page1, Row{"id": "intruder"})
	assert.Equal(t, float64(11), ds[10]["id"])
}

func TestClampPage(t *testing.T) {
	p, err := ClampPage(2, 3)
	assert.NoError(t, err)
	assert.Equal(t, 2, p)

	p, err = ClampPage(7, 3)
	assert.Equal(t, 3, p)
	var ipe *shared.InvalidPageError
	require.ErrorAs(t, err, &ipe)
	assert.Equal(t, 7, ipe.Requested)

	p, err = ClampPage(-1, 3)
	assert.Equal(t, 1, p)
	assert.ErrorIs(t, err, shared.ErrValueOutOfRange)

	p, _ = ClampPage(5, 0)
	assert.Equal(t, 1, p)
}

// ─────────────────────────────────────────────────────────────────────────────
// Selection model
// ─────────────────────────────────────────────────────────────────────────────

func TestNormalizeEvent(t *testing.T) {
	tests := []struct {
		name   string
		event  any
		want   []RowID
		unread bool
	}{
		{name: "nil", event: nil, want: nil},
		{name: "row ids", event: []RowID{"a", "b"}, want: []RowID{"a", "b"}},
		{name: "strings", event: []string{"a"}, want: []RowID{"a"}},
		{name: "mixed any", event: []any{"a", float64(3), true, nil, 4}, want: []RowID{"a", "3", "4"}},
		{name: "bool map", event: map[string]bool{"b": true, "a": true, "c": false}, want: []RowID{"a", "b"}},
		{name: "any map", event: map[string]any{"x": true, "y": "yes"}, want: []RowID{"x"}},
		{name: "single", event: "z", want: []RowID{"z"}},
		{name: "selection", event: NewSelection("q", "r"), want: []RowID{"q", "r"}},
		{name: "struct", event: struct{}{}, unread: true},
		{name: "int slice", event: []int{1, 2}, unread: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := NormalizeEvent(tt.event)
			assert.Equal(t, !tt.unread, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestReconcile_UnreadableEventKeepsSelection(t *testing.T) {
	idx := BuildIndex(students(3), FieldID("id"))
	current := NewSelection("1", "3")

	got := Reconcile(current, struct{ IDs []string }{IDs: []string{"2"}}, idx, nil)
	assert.Equal(t, []RowID{"1", "3"}, got.IDs())

	// nil is readable and clears.
	assert.Zero(t, Reconcile(current, nil, idx, nil).Len())
}

func TestReconcile_FiltersUnknownAndUnselectable(t *testing.T) {
	ds := Dataset{
		{"id": "a"},
		{"id": "b", "locked": true},
		{"id": "c"},
	}
	idx := BuildIndex(ds, FieldID("id"))
	notLocked := func(r Row) bool { return r["locked"] != true }

	got := Reconcile(Selection{}, []string{"a", "b", "ghost", "a"}, idx, notLocked)
	assert.Equal(t, []RowID{"a"}, got.IDs())
}

func TestReconcile_ReturnsCurrentWhenUnchanged(t *testing.T) {
	idx := BuildIndex(students(3), FieldID("id"))
	current := NewSelection("1", "2")

	same := Reconcile(current, []string{"2", "1"}, idx, nil)
	assert.True(t, same.Equal(current))

	next := Reconcile(current, []string{"3"}, idx, nil)
	assert.Equal(t, []RowID{"3"}, next.IDs())
	assert.Equal(t, []RowID{"1", "2"}, current.IDs(), "current must not change")
}

func TestBoolField(t *testing.T) {
	sel := BoolField("selectable")
	assert.True(t, sel(Row{}))
	assert.True(t, sel(Row{"selectable": "no"}))
	assert.False(t, sel(Row{"selectable": false}))
}

// ─────────────────────────────────────────────────────────────────────────────
// Loading gate
// ─────────────────────────────────────────────────────────────────────────────

func TestGate_FailurePublishesOnce(t *testing.T) {
	g := NewGate("credits")
	gen := g.Begin()

	rows, err := g.Settle(Outcome{Generation: gen, Err: errors.New("502")})
	assert.Empty(t, rows)
	assert.True(t, shared.IsFetchError(err))
	assert.Equal(t, LoadReady, g.State())

	select {
	case e := <-g.Errors():
		assert.True(t, shared.IsFetchError(e))
	default:
		t.Fatal("expected a fetch error on the channel")
	}

	_, err = g.Settle(Outcome{Generation: gen, Err: errors.New("again")})
	assert.ErrorIs(t, err, shared.ErrStaleLoad)
	assert.Len(t, g.Errors(), 0)
}

func TestGate_SettleBeforeBeginIsStale(t *testing.T) {
	g := NewGate("x")
	_, err := g.Settle(Outcome{})
	assert.ErrorIs(t, err, shared.ErrStaleLoad)
}

func TestRun_DeliversOutcome(t *testing.T) {
	done := make(chan Outcome, 1)
	src := SourceFunc(func(context.Context) (Dataset, error) { return students(2), nil })
	Run(context.Background(), src, 7, func(o Outcome) { done <- o })

	select {
	case o := <-done:
		assert.Equal(t, uint64(7), o.Generation)
		assert.Len(t, o.Rows, 2)
	case <-time.After(time.Second):
		t.Fatal("outcome not delivered")
	}
}

func TestRun_RecoversPanickingSource(t *testing.T) {
	done := make(chan Outcome, 1)
	src := SourceFunc(func(context.Context) (Dataset, error) { panic("boom") })
	Run(context.Background(), src, 1, func(o Outcome) { done <- o })

	o := <-done
	assert.ErrorContains(t, o.Err, "boom")
}

// ─────────────────────────────────────────────────────────────────────────────
// Controller
// ─────────────────────────────────────────────────────────────────────────────

func TestController_ConcreteScenario(t *testing.T) {
	c := loaded(t, students(25), WithPageSize(10), WithRowID(FieldID("id")))

	require.NoError(t, c.OnPageChange(3))
	st := c.State()
	assert.Equal(t, StatusReadyPopulated, st.Status)
	assert.Equal(t, []RowID{"21", "22", "23", "24", "25"}, ids(st.VisibleRows))
	assert.Equal(t, 3, st.TotalPages)
	assert.Equal(t, "21-25 of 25", c.Summary().DisplayRange)

	require.NoError(t, c.SelectAll())
	require.NoError(t, c.OnPageChange(1))

	sum := c.Summary()
	assert.Equal(t, 5, sum.SelectedCount)
	assert.Equal(t, "1-10 of 25", sum.DisplayRange)
	for _, id := range ids(c.VisibleRows()) {
		assert.False(t, c.State().Selection.Has(id), "row %s on page 1 must be unselected", id)
	}
}

func TestController_PageChangeIdempotent(t *testing.T) {
	c := loaded(t, students(25))
	require.NoError(t, c.OnSelectionChange([]string{"3"}))
	require.NoError(t, c.OnPageChange(2))
	before := c.State()

	require.NoError(t, c.OnPageChange(2))
	after := c.State()
	assert.Equal(t, ids(before.VisibleRows), ids(after.VisibleRows))
	assert.True(t, before.Selection.Equal(after.Selection))
}

func TestController_SelectionPersistsAcrossPages(t *testing.T) {
	c := loaded(t, students(25))
	require.NoError(t, c.OnSelectionChange([]any{float64(4)}))

	require.NoError(t, c.OnPageChange(2))
	require.NoError(t, c.OnPageChange(1))
	assert.True(t, c.State().Selection.Has("4"))
}

func TestController_UnselectableNeverSelected(t *testing.T) {
	ds := students(6)
	ds[1]["enrolled"] = false
	ds[4]["enrolled"] = false
	c := loaded(t, ds, WithSelectable(BoolField("enrolled")), WithSelectAllScope(ScopeDataset))

	events := []any{
		[]string{"2", "5"},
		map[string]bool{"1": true, "2": true},
		"5",
		NewSelection("2", "3", "5"),
	}
	for _, ev := range events {
		require.NoError(t, c.OnSelectionChange(ev))
		assert.False(t, c.State().Selection.Has("2"))
		assert.False(t, c.State().Selection.Has("5"))
	}

	require.NoError(t, c.SelectAll())
	assert.Equal(t, []RowID{"1", "3", "4", "6"}, c.State().Selection.IDs())
}

func TestController_ReloadResets(t *testing.T) {
	c := loaded(t, students(25))
	require.NoError(t, c.OnSelectionChange([]string{"1", "2"}))
	require.NoError(t, c.OnPageChange(3))

	gen := c.Reload()
	st := c.State()
	assert.Equal(t, StatusPending, st.Status)
	assert.Equal(t, 0, st.Selection.Len())
	assert.Equal(t, 1, st.PageNumber)

	require.NoError(t, c.CompleteLoad(Outcome{Generation: gen, Rows: students(25)}))
	st = c.State()
	assert.Equal(t, 0, st.Selection.Len())
	assert.Equal(t, 1, st.PageNumber)
}

func TestController_StaleLoadDiscarded(t *testing.T) {
	c := NewController()
	g1 := c.BeginLoad()
	g2 := c.BeginLoad()

	require.NoError(t, c.CompleteLoad(Outcome{Generation: g2, Rows: students(3)}))
	err := c.CompleteLoad(Outcome{Generation: g1, Rows: students(40)})
	assert.ErrorIs(t, err, shared.ErrStaleLoad)
	assert.Equal(t, 3, c.State().TotalCount)

	// G1 resolving first must not settle the controller either.
	c2 := NewController()
	h1 := c2.BeginLoad()
	h2 := c2.BeginLoad()
	assert.ErrorIs(t, c2.CompleteLoad(Outcome{Generation: h1, Rows: students(40)}), shared.ErrStaleLoad)
	assert.Equal(t, StatusPending, c2.Status())
	require.NoError(t, c2.CompleteLoad(Outcome{Generation: h2}))
	assert.Equal(t, StatusReadyEmpty, c2.Status())
}

func TestController_EventsDroppedWhilePending(t *testing.T) {
	c := NewController()
	c.BeginLoad()

	assert.ErrorIs(t, c.OnPageChange(2), shared.ErrLoadPending)
	assert.ErrorIs(t, c.OnSelectionChange([]string{"1"}), shared.ErrLoadPending)
	assert.ErrorIs(t, c.SelectAll(), shared.ErrLoadPending)
	assert.Equal(t, 1, c.State().PageNumber)
	assert.False(t, c.CanRunBulkAction())
}

func TestController_FetchErrorSettlesEmpty(t *testing.T) {
	c := loaded(t, students(12))
	require.NoError(t, c.OnSelectionChange([]string{"1"}))

	gen := c.Reload()
	require.NoError(t, c.CompleteLoad(Outcome{Generation: gen, Err: errors.New("timeout")}))

	st := c.State()
	assert.Equal(t, StatusReadyEmpty, st.Status)
	assert.Equal(t, 0, st.Selection.Len())
	assert.Contains(t, st.LastError, "timeout")
	assert.Equal(t, "0-0 of 0", c.Summary().DisplayRange)

	select {
	case err := <-c.Errors():
		assert.True(t, shared.IsFetchError(err))
	default:
		t.Fatal("fetch error not published")
	}
}

func TestController_ClampsOutOfRangePage(t *testing.T) {
	c := loaded(t, students(25))

	err := c.OnPageChange(99)
	assert.ErrorIs(t, err, shared.ErrValueOutOfRange)
	assert.Equal(t, 3, c.State().PageNumber)

	_ = c.OnPageChange(-4)
	assert.Equal(t, 1, c.State().PageNumber)
}

func TestController_BulkGatingAndSelectedRows(t *testing.T) {
	c := loaded(t, students(25))
	assert.False(t, c.CanRunBulkAction())

	require.NoError(t, c.OnSelectionChange([]string{"20", "2"}))
	assert.True(t, c.CanRunBulkAction())
	assert.True(t, c.Summary().BulkActionsEnabled)
	assert.Equal(t, []RowID{"2", "20"}, ids(c.SelectedRows()))

	require.NoError(t, c.ClearSelection())
	assert.False(t, c.CanRunBulkAction())
}

func TestController_PageScopeSelectAllMerges(t *testing.T) {
	c := loaded(t, students(25))
	require.NoError(t, c.SelectAll())
	require.NoError(t, c.OnPageChange(3))
	require.NoError(t, c.SelectAll())
	assert.Equal(t, 15, c.Summary().SelectedCount)
}

func TestParseSelectAllScope(t *testing.T) {
	s, err := ParseSelectAllScope("Dataset")
	require.NoError(t, err)
	assert.Equal(t, ScopeDataset, s)

	s, err = ParseSelectAllScope("")
	require.NoError(t, err)
	assert.Equal(t, ScopePage, s)

	_, err = ParseSelectAllScope("sideways")
	assert.True(t, shared.IsValidation(err))
}

func TestDisplayRange(t *testing.T) {
	assert.Equal(t, "0-0 of 0", DisplayRange(1, 10, 0))
	assert.Equal(t, "1-10 of 25", DisplayRange(1, 10, 25))
	assert.Equal(t, "11-20 of 25", DisplayRange(2, 10, 25))
	assert.Equal(t, "1-1 of 1", DisplayRange(1, 10, 1))
}
