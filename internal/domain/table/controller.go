package table

import (
	"errors"
	"fmt"
	"strings"

	"github.com/alem-hub/advising-hub/internal/domain/shared"
)

// Status is the controller state.
type Status int

const (
	StatusPending Status = iota
	StatusReadyEmpty
	StatusReadyPopulated
)

func (s Status) String() string {
	switch s {
	case StatusReadyEmpty:
		return "ready-empty"
	case StatusReadyPopulated:
		return "ready-populated"
	default:
		return "pending"
	}
}

// MarshalText encodes the status by name.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// SelectAllScope decides what "select all" covers. Views disagree on this,
// so it is configured per view.
type SelectAllScope int

const (
	// ScopePage adds the rows of the current page to the selection.
	ScopePage SelectAllScope = iota
	// ScopeDataset selects every selectable row of the dataset.
	ScopeDataset
)

func (s SelectAllScope) String() string {
	if s == ScopeDataset {
		return "dataset"
	}
	return "page"
}

// ParseSelectAllScope parses "page" or "dataset".
func ParseSelectAllScope(s string) (SelectAllScope, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "page":
		return ScopePage, nil
	case "dataset", "all":
		return ScopeDataset, nil
	default:
		return ScopePage, shared.NewDomainError("table", "ParseScope", shared.ErrInvalidInput,
			fmt.Sprintf("unknown select-all scope %q", s))
	}
}

// Options configures a Controller.
type Options struct {
	Name           string
	PageSize       int
	RowID          RowIDFunc
	Selectable     SelectableFunc
	SelectAllScope SelectAllScope
}

// Option is a functional option for NewController.
type Option func(*Options)

// WithName labels the controller; the name shows up in fetch errors.
func WithName(name string) Option {
	return func(o *Options) { o.Name = name }
}

// WithPageSize sets the page size. Non-positive values keep the default.
func WithPageSize(n int) Option {
	return func(o *Options) {
		if n > 0 {
			o.PageSize = n
		}
	}
}

// WithRowID sets the row identity accessor.
func WithRowID(fn RowIDFunc) Option {
	return func(o *Options) {
		if fn != nil {
			o.RowID = fn
		}
	}
}

// WithSelectable sets the selectability predicate.
func WithSelectable(fn SelectableFunc) Option {
	return func(o *Options) {
		if fn != nil {
			o.Selectable = fn
		}
	}
}

// WithSelectAllScope sets the select-all policy.
func WithSelectAllScope(scope SelectAllScope) Option {
	return func(o *Options) { o.SelectAllScope = scope }
}

// State is a snapshot of the controller for the presentation layer.
type State struct {
	Status      Status    `json:"status"`
	VisibleRows Dataset   `json:"visible_rows"`
	Selection   Selection `json:"selection"`
	PageNumber  int       `json:"page_number"`
	PageSize    int       `json:"page_size"`
	TotalPages  int       `json:"total_pages"`
	TotalCount  int       `json:"total_count"`
	Generation  uint64    `json:"generation"`
	LastError   string    `json:"last_error,omitempty"`
}

// Controller is the table state machine:
//
//	Pending --load ok, 0 rows--> Ready-Empty
//	Pending --load ok, n rows--> Ready-Populated
//	Pending --load failed------> Ready-Empty (error published once)
//	Ready-* --page/selection---> Ready-* (same status)
//	any     --reload-----------> Pending (page 1, empty selection)
//
// Page and selection events received while Pending are dropped.
type Controller struct {
	opts Options
	gate *Gate

	status    Status
	dataset   Dataset
	index     Index
	page      int
	selection Selection
	lastErr   error
}

// NewController creates a controller in the Pending state.
func NewController(opts ...Option) *Controller {
	o := Options{
		Name:       "table",
		PageSize:   DefaultPageSize,
		RowID:      FieldID(DefaultIDField),
		Selectable: AlwaysSelectable,
	}
	for _, opt := range opts {
		opt(&o)
	}

	return &Controller{
		opts:   o,
		gate:   NewGate(o.Name),
		status: StatusPending,
		page:   1,
	}
}

// Options returns the effective options.
func (c *Controller) Options() Options { return c.opts }

// BeginLoad starts a new load generation. The dataset is dropped, the page
// resets to 1 and the selection to empty.
func (c *Controller) BeginLoad() uint64 {
	gen := c.gate.Begin()
	c.status = StatusPending
	c.dataset = nil
	c.index = nil
	c.page = 1
	c.selection = Selection{}
	c.lastErr = nil
	return gen
}

// Reload is BeginLoad under the name the presentation layer uses.
func (c *Controller) Reload() uint64 { return c.BeginLoad() }

// CompleteLoad applies a load outcome. It returns shared.ErrStaleLoad when the
// outcome belongs to a superseded generation and nil otherwise; fetch
// failures are reported through Errors and LastError, not the return value.
func (c *Controller) CompleteLoad(o Outcome) error {
	rows, err := c.gate.Settle(o)
	if errors.Is(err, shared.ErrStaleLoad) {
		return err
	}

	c.dataset = rows
	c.index = BuildIndex(rows, c.opts.RowID)
	c.page = 1
	c.selection = Selection{}
	c.lastErr = err

	if len(rows) == 0 {
		c.status = StatusReadyEmpty
	} else {
		c.status = StatusReadyPopulated
	}
	return nil
}

// Errors exposes the loading gate's fetch error channel.
func (c *Controller) Errors() <-chan error { return c.gate.Errors() }

// Status returns the current status.
func (c *Controller) Status() Status { return c.status }

// OnPageChange moves to page, clamped to [1, totalPages]. While Pending the
// event is dropped and shared.ErrLoadPending is returned. A clamped request
// returns *shared.InvalidPageError for logging; the page has still moved.
// Selection is untouched.
func (c *Controller) OnPageChange(page int) error {
	if c.status == StatusPending {
		return shared.ErrLoadPending
	}
	clamped, err := ClampPage(page, TotalPages(len(c.dataset), c.opts.PageSize))
	c.page = clamped
	return err
}

// OnSelectionChange reconciles event into the selection. The page is
// untouched. While Pending the event is dropped.
func (c *Controller) OnSelectionChange(event any) error {
	if c.status == StatusPending {
		return shared.ErrLoadPending
	}
	c.selection = Reconcile(c.selection, event, c.index, c.opts.Selectable)
	return nil
}

// SelectAll selects according to the configured scope. With ScopePage the
// current page's rows are added to the existing selection; with ScopeDataset
// every row is selected.
func (c *Controller) SelectAll() error {
	if c.status == StatusPending {
		return shared.ErrLoadPending
	}
	var ids []RowID
	switch c.opts.SelectAllScope {
	case ScopeDataset:
		ids = IDs(c.dataset, c.opts.RowID)
	default:
		visible, _ := Slice(c.dataset, c.page, c.opts.PageSize)
		ids = c.selection.Union(IDs(visible, c.opts.RowID)...).IDs()
	}
	return c.OnSelectionChange(ids)
}

// ClearSelection empties the selection.
func (c *Controller) ClearSelection() error {
	return c.OnSelectionChange(nil)
}

// VisibleRows returns the current page window.
func (c *Controller) VisibleRows() Dataset {
	rows, _ := Slice(c.dataset, c.page, c.opts.PageSize)
	return rows
}

// SelectedRows returns the selected rows in dataset order.
func (c *Controller) SelectedRows() Dataset {
	out := make(Dataset, 0, c.selection.Len())
	if c.selection.Len() == 0 {
		return out
	}
	seen := make(map[RowID]struct{}, c.selection.Len())
	for _, r := range c.dataset {
		id := c.opts.RowID(r)
		if !c.selection.Has(id) {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, r)
	}
	return out
}

// CanRunBulkAction reports whether bulk actions are enabled: the dataset is
// loaded and at least one row is selected.
func (c *Controller) CanRunBulkAction() bool {
	return c.status == StatusReadyPopulated && c.selection.Len() > 0
}

// State returns a snapshot of the controller.
func (c *Controller) State() State {
	visible, total := Slice(c.dataset, c.page, c.opts.PageSize)
	st := State{
		Status:      c.status,
		VisibleRows: visible,
		Selection:   c.selection,
		PageNumber:  c.page,
		PageSize:    c.opts.PageSize,
		TotalPages:  total,
		TotalCount:  len(c.dataset),
		Generation:  c.gate.Generation(),
	}
	if c.lastErr != nil {
		st.LastError = c.lastErr.Error()
	}
	return st
}

// Summary derives the footer view from the current state.
func (c *Controller) Summary() Summary {
	return Summarize(c.State())
}
