package table

import (
	"context"
	"fmt"

	"github.com/alem-hub/advising-hub/internal/domain/shared"
)

// LoadingState is the lifecycle of one dataset load.
type LoadingState int

const (
	LoadPending LoadingState = iota
	LoadReady
)

func (s LoadingState) String() string {
	if s == LoadReady {
		return "ready"
	}
	return "pending"
}

// Source produces a dataset. Implementations own timeouts and retries.
type Source interface {
	Load(ctx context.Context) (Dataset, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context) (Dataset, error)

// Load calls f.
func (f SourceFunc) Load(ctx context.Context) (Dataset, error) { return f(ctx) }

// Refresher is a Source with a cache in front of it. Refresh reads through to
// the origin and replaces whatever the cache held.
type Refresher interface {
	Source
	Refresh(ctx context.Context) (Dataset, error)
}

// Fresh returns a Source that bypasses src's cache when it has one.
func Fresh(src Source) Source {
	if r, ok := src.(Refresher); ok {
		return SourceFunc(r.Refresh)
	}
	return src
}

// Outcome is the result of one load, tagged with the generation it belongs to.
type Outcome struct {
	Generation uint64
	Rows       Dataset
	Err        error
}

// errBuffer bounds the number of undelivered fetch errors kept on the channel.
const errBuffer = 8

// Gate tracks the pending/ready lifecycle of dataset loads. Each Begin starts
// a new generation; Settle only accepts the outcome of the latest one, and
// only once.
type Gate struct {
	name       string
	generation uint64
	state      LoadingState
	errs       chan error
}

// NewGate creates a gate in the pending state with no load started.
func NewGate(name string) *Gate {
	return &Gate{
		name:  name,
		state: LoadPending,
		errs:  make(chan error, errBuffer),
	}
}

// Begin starts a new load generation and re-enters Pending. Any load still in
// flight is superseded.
func (g *Gate) Begin() uint64 {
	g.generation++
	g.state = LoadPending
	return g.generation
}

// Generation returns the latest generation handed out by Begin.
func (g *Gate) Generation() uint64 { return g.generation }

// State returns the loading state.
func (g *Gate) State() LoadingState { return g.state }

// Errors delivers each fetch failure once. Failures are dropped if nobody
// drains the channel and it is full.
func (g *Gate) Errors() <-chan error { return g.errs }

// Settle applies an outcome. Superseded or already-settled generations return
// shared.ErrStaleLoad and change nothing. A failed load moves the gate to
// Ready with an empty dataset, publishes a *shared.FetchError on Errors, and
// returns the same error.
func (g *Gate) Settle(o Outcome) (Dataset, error) {
	if g.generation == 0 || o.Generation != g.generation || g.state == LoadReady {
		return nil, shared.ErrStaleLoad
	}
	g.state = LoadReady

	if o.Err != nil {
		fe := &shared.FetchError{Source: g.name, Generation: o.Generation, Err: o.Err}
		select {
		case g.errs <- fe:
		default:
		}
		return Dataset{}, fe
	}
	if o.Rows == nil {
		return Dataset{}, nil
	}
	return o.Rows, nil
}

// Run fetches from src on its own goroutine and hands the outcome to deliver.
// Superseding a load does not cancel its fetch; the stale outcome is simply
// rejected by Settle. A panicking source is reported as a failed load.
func Run(ctx context.Context, src Source, gen uint64, deliver func(Outcome)) {
	go func() {
		var out Outcome
		defer func() {
			if r := recover(); r != nil {
				out = Outcome{Generation: gen, Err: fmt.Errorf("source panic: %v", r)}
			}
			deliver(out)
		}()
		rows, err := src.Load(ctx)
		out = Outcome{Generation: gen, Rows: rows, Err: err}
	}()
}
