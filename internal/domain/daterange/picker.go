// Package daterange implements the date-range picker used to filter advising
// records by date.
package daterange

import (
	"time"

	"github.com/alem-hub/advising-hub/pkg/timeutil"
)

// Phase is how much of the range has been chosen.
type Phase int

const (
	PhaseEmpty Phase = iota
	PhaseStartOnly
	PhaseComplete
)

func (p Phase) String() string {
	switch p {
	case PhaseStartOnly:
		return "start-only"
	case PhaseComplete:
		return "complete"
	default:
		return "empty"
	}
}

// MarshalText encodes the phase by name.
func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// Range is a closed interval. End is never before Start.
type Range struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Picker tracks a range selection. Closing the picker with only a start
// chosen fills in the end as max(start, now) in the clock's zone.
type Picker struct {
	clock timeutil.Clock
	phase Phase
	start time.Time
	end   time.Time
}

// NewPicker creates an empty picker reading "now" from clock.
func NewPicker(clock timeutil.Clock) *Picker {
	return &Picker{clock: clock}
}

// Phase returns the current phase.
func (p *Picker) Phase() Phase { return p.phase }

// Pick records a click on day t. The first pick sets the start, the second
// completes the range (swapping if it lands before the start), and a pick on
// a complete range starts over.
func (p *Picker) Pick(t time.Time) {
	t = t.In(p.clock.Location())

	switch p.phase {
	case PhaseStartOnly:
		if t.Before(p.start) {
			p.start, p.end = t, p.start
		} else {
			p.end = t
		}
		p.phase = PhaseComplete
	default:
		p.start = t
		p.end = time.Time{}
		p.phase = PhaseStartOnly
	}
}

// Close dismisses the picker and returns the chosen range. A start-only
// selection is completed with max(start, now). ok is false when nothing was
// picked.
func (p *Picker) Close() (r Range, ok bool) {
	switch p.phase {
	case PhaseEmpty:
		return Range{}, false
	case PhaseStartOnly:
		p.end = timeutil.Max(p.start, p.clock.Now())
		p.phase = PhaseComplete
	}
	return Range{Start: p.start, End: p.end}, true
}

// Range returns the range if it is complete.
func (p *Picker) Range() (Range, bool) {
	if p.phase != PhaseComplete {
		return Range{}, false
	}
	return Range{Start: p.start, End: p.end}, true
}

// Start returns the chosen start, if any.
func (p *Picker) Start() (time.Time, bool) {
	return p.start, p.phase != PhaseEmpty
}

// Reset clears the selection.
func (p *Picker) Reset() {
	*p = Picker{clock: p.clock}
}
