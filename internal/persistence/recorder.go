package persistence

import (
	"log/slog"

	"github.com/talgya/damage-control/internal/engine"
)

// Recorder writes a session's tick reports into one run.
type Recorder struct {
	db    *DB
	RunID string

	// Sample every Every ticks, and whenever the informed count changes.
	Every uint64

	lastInformed int
	failures     int
}

// NewRecorder starts a run for w and returns a recorder for it.
func NewRecorder(db *DB, w *engine.World, every uint64) (*Recorder, error) {
	id, err := db.BeginRun(w.Seed(), w.Population(), len(w.Connections()), w.Fact())
	if err != nil {
		return nil, err
	}
	if err := db.SaveMeta("last_run", id); err != nil {
		return nil, err
	}
	r := &Recorder{db: db, RunID: id, Every: every, lastInformed: -1}
	return r, nil
}

// Record stores rep. Write errors are logged, not returned, so a failing
// disk never stops the simulation.
func (r *Recorder) Record(rep engine.TickReport) {
	if err := r.db.SaveEvents(r.RunID, rep.Events); err != nil {
		r.fail("save events", err)
	}
	if rep.Informed != r.lastInformed || (r.Every > 0 && rep.Tick%r.Every == 0) || rep.Done {
		s := Sample{
			Tick:          rep.Tick,
			Informed:      rep.Informed,
			Influence:     rep.Influence,
			ActiveActions: rep.ActiveActions,
		}
		if err := r.db.SaveSample(r.RunID, s); err != nil {
			r.fail("save sample", err)
			return
		}
		r.lastInformed = rep.Informed
	}
}

// Finish marks the run complete.
func (r *Recorder) Finish(tick uint64, informed int) error {
	if r.failures > 0 {
		slog.Warn("run recorded with write failures", "run", r.RunID, "failures", r.failures)
	}
	return r.db.FinishRun(r.RunID, tick, informed)
}

func (r *Recorder) fail(what string, err error) {
	r.failures++
	if r.failures <= 3 {
		slog.Error("recorder write failed", "run", r.RunID, "op", what, "error", err)
	}
}
