// Package report tallies reconciliation outcomes for one session.
package report

import (
	"fmt"
	"io"
	"sync"
	"text/tabwriter"
	"time"

	"github.com/HefnerLance/bubble-mongo-linker/pkg/model"

	"github.com/google/uuid"
)

const Failed = "failed"

// Buckets lists every tally bucket in report order.
var Buckets = []string{
	string(model.MatchDuplicate),
	string(model.MatchDirectID),
	string(model.MatchFallback),
	string(model.MatchUnmatched),
	string(model.StatusSkipped),
	string(model.StatusNotFound),
	Failed,
}

// Tally is safe for concurrent use by the worker pool.
type Tally struct {
	mu        sync.Mutex
	sessionID string
	startedAt time.Time
	counts    map[string]int64
	now       func() time.Time
}

func New(sessionID string) *Tally {
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	t := &Tally{
		sessionID: sessionID,
		counts:    make(map[string]int64, len(Buckets)),
		now:       time.Now,
	}
	t.startedAt = t.now()
	return t
}

func (t *Tally) SessionID() string {
	return t.sessionID
}

// Record adds one completed reconciliation. A nil outcome counts as failed.
func (t *Tally) Record(outcome *model.Outcome) {
	label := Failed
	if outcome != nil {
		label = outcome.Label()
	}
	t.mu.Lock()
	t.counts[label]++
	t.mu.Unlock()
}

func (t *Tally) RecordFailure() {
	t.Record(nil)
}

type Summary struct {
	SessionID string           `json:"session_id"`
	StartedAt time.Time        `json:"started_at"`
	Elapsed   string           `json:"elapsed"`
	Total     int64            `json:"total"`
	Counts    map[string]int64 `json:"counts"`
}

func (t *Tally) Snapshot() Summary {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := Summary{
		SessionID: t.sessionID,
		StartedAt: t.startedAt,
		Elapsed:   t.now().Sub(t.startedAt).Round(time.Millisecond).String(),
		Counts:    make(map[string]int64, len(Buckets)),
	}
	for _, b := range Buckets {
		s.Counts[b] = t.counts[b]
		s.Total += t.counts[b]
	}
	return s
}

// Print writes the summary as an aligned table.
func (t *Tally) Print(w io.Writer) error {
	s := t.Snapshot()

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "session\t%s\n", s.SessionID)
	fmt.Fprintf(tw, "elapsed\t%s\n", s.Elapsed)
	for _, b := range Buckets {
		fmt.Fprintf(tw, "%s\t%d\n", b, s.Counts[b])
	}
	fmt.Fprintf(tw, "total\t%d\n", s.Total)
	return tw.Flush()
}
