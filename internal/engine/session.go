package engine

import (
	"fmt"
	"sync"

	"github.com/talgya/damage-control/internal/world"
)

// Recent news kept for late subscribers and the news endpoint.
const recentEvents = 200

// Subscriber channel depth. Slow subscribers miss reports rather than
// stalling the tick loop.
const subscriberBuffer = 64

// TickReport summarises one update.
type TickReport struct {
	Tick          uint64  `json:"tick"`
	Informed      int     `json:"informed"`
	Population    int     `json:"population"`
	Influence     float64 `json:"influence"`
	ActiveActions int     `json:"active_actions"`
	Done          bool    `json:"done"`
	Events        []Event `json:"events,omitempty"`
}

// Status is the headline state of a session.
type Status struct {
	Tick       uint64  `json:"tick"`
	Seed       int64   `json:"seed"`
	Fact       string  `json:"fact"`
	Informed   int     `json:"informed"`
	Population int     `json:"population"`
	Influence  float64 `json:"influence"`
	Actions    int     `json:"active_actions"`
	Selecting  string  `json:"selecting,omitempty"`
	Done       bool    `json:"done"`
}

// Session serialises access to a World from the tick driver and API
// handlers, owns the influence ledger and fans tick reports out to
// subscribers.
type Session struct {
	mu        sync.Mutex
	world     *World
	influence *Influence
	recent    []Event

	// OnTick, if set, is called with every report while the session lock
	// is held. The run recorder hooks in here.
	OnTick func(TickReport)

	subMu   sync.Mutex
	subs    map[int]chan TickReport
	nextSub int
}

// NewSession wraps w. influence should be the ledger w was built with.
func NewSession(w *World, influence *Influence) *Session {
	return &Session{
		world:     w,
		influence: influence,
		subs:      make(map[int]chan TickReport),
	}
}

// Step advances the world one tick and publishes the report.
func (s *Session) Step() TickReport {
	s.mu.Lock()
	if s.influence != nil {
		s.influence.Grow()
	}
	events := s.world.Update()
	s.recent = append(s.recent, events...)
	if over := len(s.recent) - recentEvents; over > 0 {
		s.recent = append(s.recent[:0], s.recent[over:]...)
	}
	rep := s.report(events)
	if s.OnTick != nil {
		s.OnTick(rep)
	}
	s.mu.Unlock()

	s.publish(rep)
	return rep
}

func (s *Session) report(events []Event) TickReport {
	rep := TickReport{
		Tick:          s.world.tick,
		Informed:      s.world.informed,
		Population:    len(s.world.people),
		ActiveActions: len(s.world.actions),
		Done:          s.world.Done(),
		Events:        events,
	}
	if s.influence != nil {
		rep.Influence = s.influence.Points
	}
	return rep
}

// Status returns the headline state.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := Status{
		Tick:       s.world.tick,
		Seed:       s.world.seed,
		Fact:       s.world.fact,
		Informed:   s.world.informed,
		Population: len(s.world.people),
		Actions:    len(s.world.actions),
		Done:       s.world.Done(),
	}
	if s.influence != nil {
		st.Influence = s.influence.Points
	}
	if def, ok := s.world.Selecting(); ok {
		st.Selecting = def.ID
	}
	return st
}

// Snapshot returns the drawable state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.world.Snapshot()
}

// Recent returns up to n of the latest events, oldest first.
func (s *Session) Recent(n int) []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	n = max(n, 0)
	start := max(0, len(s.recent)-n)
	return append([]Event(nil), s.recent[start:]...)
}

// Pick returns the entity under pos.
func (s *Session) Pick(pos world.Point, kinds PickKinds) (Entity, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.world.EntityNear(pos, kinds)
}

// StartAction starts catalog action id against t. Start news is kept with
// the next tick's events. Any pending selection is left as it was.
func (s *Session) StartAction(id string, t Target) (ActionView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	def, ok := s.world.cfg.Action(id)
	if !ok {
		return ActionView{}, fmt.Errorf("%w: %q", ErrUnknownAction, id)
	}
	a, err := s.world.StartAction(def, t)
	if err != nil {
		return ActionView{}, err
	}
	return viewAction(a, a.Duration), nil
}

// With runs fn with exclusive access to the world.
func (s *Session) With(fn func(w *World)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.world)
}

// Subscribe returns a channel receiving every subsequent tick report.
func (s *Session) Subscribe() (int, <-chan TickReport) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	id := s.nextSub
	s.nextSub++
	ch := make(chan TickReport, subscriberBuffer)
	s.subs[id] = ch
	return id, ch
}

// Unsubscribe closes and forgets subscription id.
func (s *Session) Unsubscribe(id int) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	if ch, ok := s.subs[id]; ok {
		close(ch)
		delete(s.subs, id)
	}
}

func (s *Session) publish(rep TickReport) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- rep:
		default:
		}
	}
}
