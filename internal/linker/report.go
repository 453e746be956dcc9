package linker

import (
	"time"

	"github.com/plexlinker/plexlinker/internal/rules"
)

// OutcomeKind classifies the result of one show target.
type OutcomeKind string

const (
	OutcomeLinked  OutcomeKind = "linked"
	OutcomeSkipped OutcomeKind = "skipped"
	OutcomeError   OutcomeKind = "error"
)

// Outcome is the result of linking one movie into one show.
type Outcome struct {
	Movie       string      `json:"movie"`
	Show        string      `json:"show"`
	Kind        OutcomeKind `json:"kind"`
	Reason      string      `json:"reason,omitempty"`
	Destination string      `json:"destination,omitempty"`
	// RescanFailed is set when the link was made but the show service
	// could not be told to rescan.
	RescanFailed bool `json:"rescanFailed,omitempty"`
}

func linked(dest string) Outcome {
	return Outcome{Kind: OutcomeLinked, Destination: dest}
}

func skipped(reason string) Outcome {
	return Outcome{Kind: OutcomeSkipped, Reason: reason}
}

func failed(err error) Outcome {
	return Outcome{Kind: OutcomeError, Reason: err.Error()}
}

// PassReport summarizes one reconciliation pass. It is meant for logging and
// display.
type PassReport struct {
	ID            string             `json:"id"`
	StartedAt     time.Time          `json:"startedAt"`
	FinishedAt    time.Time          `json:"finishedAt"`
	Skipped       bool               `json:"skipped"`
	SkipReason    string             `json:"skipReason,omitempty"`
	Pruned        int                `json:"pruned"`
	Rules         int                `json:"rules"`
	InvalidRules  int                `json:"invalidRules"`
	Matched       int                `json:"matched"`
	MoviesSkipped int                `json:"moviesSkipped"`
	ShowsSkipped  int                `json:"showsSkipped"`
	Linked        int                `json:"linked"`
	Errors        int                `json:"errors"`
	RescanFailed  int                `json:"rescanFailed"`
	Outcomes      []Outcome          `json:"outcomes"`
	Resolved      []rules.Resolution `json:"resolved,omitempty"`
}

// Duration returns how long the pass took.
func (r *PassReport) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

func (r *PassReport) record(o Outcome) {
	switch o.Kind {
	case OutcomeLinked:
		r.Linked++
	case OutcomeSkipped:
		r.ShowsSkipped++
	case OutcomeError:
		r.Errors++
	}
	if o.RescanFailed {
		r.RescanFailed++
	}
	r.Outcomes = append(r.Outcomes, o)
}
