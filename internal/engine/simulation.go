// Package engine runs the rumour simulation: people, the connections between
// them, the actions that disable methods, and the World that updates all of
// them once per tick.
package engine

import (
	"fmt"
	"log/slog"
	"math"
	mrand "math/rand/v2"

	"github.com/talgya/damage-control/internal/config"
	"github.com/talgya/damage-control/internal/entropy"
	"github.com/talgya/damage-control/internal/world"
)

// Event categories.
const (
	CategoryRumor       = "rumor"
	CategoryActionStart = "action_start"
	CategoryActionEnd   = "action_end"
)

// Event is a line of news produced by an update.
type Event struct {
	Tick        uint64 `json:"tick"`
	Description string `json:"description"`
	Category    string `json:"category"`
}

// Ledger pays for actions.
type Ledger interface {
	CanAfford(cost float64) bool
	Spend(cost float64)
}

type running struct {
	action *Action
	left   int
}

// World holds the complete simulation state. It is not safe for concurrent
// use; Session serialises access.
type World struct {
	cfg    *config.Config
	seed   int64
	fact   string
	source int

	people []*Person
	conns  []*Connection
	areas  []world.Area
	dists  map[world.PairKey]float64

	actions    []running
	nextAction ActionID
	selecting  *config.ActionDef

	events     []Event
	informed   int
	milestones int
	tick       uint64

	rng    *mrand.Rand
	ledger Ledger
}

// New generates a world from cfg. ledger may be nil, in which case actions
// are free.
func New(cfg *config.Config, ledger Ledger) (*World, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	layout, err := world.Generate(cfg.Gen, cfg.Methods)
	if err != nil {
		return nil, err
	}
	return FromLayout(cfg, layout, ledger)
}

// FromLayout builds a world from an already generated layout. The source
// person learns the rumour immediately and starts sending at tick 0.
func FromLayout(cfg *config.Config, layout *world.Layout, ledger Ledger) (*World, error) {
	if len(layout.People) == 0 {
		return nil, fmt.Errorf("%w: layout has no people", config.ErrInvalidGen)
	}
	if layout.Source < 0 || layout.Source >= len(layout.People) {
		return nil, fmt.Errorf("%w: source %d out of range", config.ErrInvalidGen, layout.Source)
	}
	if cfg.DayTicks <= 0 {
		return nil, fmt.Errorf("%w: day_ticks must be positive", config.ErrInvalidGen)
	}

	w := &World{
		cfg:    cfg,
		seed:   layout.Seed,
		source: layout.Source,
		areas:  layout.Areas,
		dists:  layout.Distances,
		rng:    entropy.New(layout.Seed, entropy.StreamSim),
		ledger: ledger,
	}
	if w.dists == nil {
		w.dists = make(map[world.PairKey]float64)
	}

	w.people = make([]*Person, len(layout.People))
	for i, ps := range layout.People {
		w.people[i] = newPerson(i, ps)
	}

	w.conns = make([]*Connection, len(layout.Edges))
	for i, e := range layout.Edges {
		if e.A < 0 || e.A >= len(w.people) || e.B < 0 || e.B >= len(w.people) || e.A == e.B {
			return nil, fmt.Errorf("%w: edge %d joins %d and %d", config.ErrInvalidGen, i, e.A, e.B)
		}
		dist := math.Max(0, e.Distance-2*cfg.Gen.PersonRadius)
		methods := make([]MethodState, 0, len(e.Methods))
		for _, id := range e.Methods {
			def, ok := cfg.Method(id)
			if !ok {
				return nil, fmt.Errorf("%w: edge %d uses %q", config.ErrUnknownMethod, i, id)
			}
			methods = append(methods, MethodState{ID: id, Speed: def.SpeedPerTick(dist, cfg.DayTicks)})
		}
		if len(methods) == 0 {
			return nil, fmt.Errorf("%w: edge %d has no methods", config.ErrInvalidGen, i)
		}
		w.conns[i] = newConnection(i, e.A, e.B, dist, methods)
		w.people[e.A].Cons = append(w.people[e.A].Cons, i)
		w.people[e.B].Cons = append(w.people[e.B].Cons, i)
		if _, ok := w.dists[world.Pair(e.A, e.B)]; !ok {
			w.dists[world.Pair(e.A, e.B)] = e.Distance
		}
	}

	w.fact = "something about you"
	if len(cfg.Facts) > 0 {
		w.fact = cfg.Facts[w.rng.IntN(len(cfg.Facts))]
	}

	slog.Info("world ready",
		"seed", w.seed,
		"people", len(w.people),
		"connections", len(w.conns),
		"source", w.people[w.source].Name,
	)
	w.people[w.source].receive(w, -1)
	return w, nil
}

// Update advances the world by one tick: expired actions end, then every
// person and every connection updates. It returns the news produced since
// the previous update.
func (w *World) Update() []Event {
	w.tick++

	kept := w.actions[:0]
	for _, r := range w.actions {
		r.left--
		if r.left > 0 {
			kept = append(kept, r)
			continue
		}
		r.action.end(w)
		w.announce(r.action, r.action.Def.NewsEnd, CategoryActionEnd)
	}
	clear(w.actions[len(kept):])
	w.actions = kept

	for _, p := range w.people {
		p.update(w)
	}
	for _, c := range w.conns {
		c.update(w)
	}

	events := w.events
	w.events = nil
	return events
}

// StartAction buys and starts def against t. Nothing changes if the ledger
// cannot afford it or the target is unsuitable.
func (w *World) StartAction(def config.ActionDef, t Target) (*Action, error) {
	if w.ledger != nil && !w.ledger.CanAfford(def.Cost) {
		return nil, fmt.Errorf("%w: %s costs %.0f", ErrInsufficientInfluence, def.ID, def.Cost)
	}
	a, err := newAction(w, w.nextAction+1, def, t)
	if err != nil {
		return nil, err
	}
	w.nextAction++
	a.start(w)
	w.actions = append(w.actions, running{action: a, left: a.Duration})
	if w.ledger != nil {
		w.ledger.Spend(def.Cost)
	}
	w.announce(a, def.NewsStart, CategoryActionStart)
	return a, nil
}

// PickAction selects the catalog action id for the next ConfirmTarget.
func (w *World) PickAction(id string) error {
	def, ok := w.cfg.Action(id)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownAction, id)
	}
	w.selecting = &def
	return nil
}

// ConfirmTarget starts the selected action against t. The selection is
// cleared whether or not the action could start.
func (w *World) ConfirmTarget(t Target) (*Action, error) {
	if w.selecting == nil {
		return nil, ErrNoSelection
	}
	def := *w.selecting
	w.selecting = nil
	return w.StartAction(def, t)
}

// CancelSelection drops the pending selection, if any.
func (w *World) CancelSelection() {
	w.selecting = nil
}

// Selecting returns the pending selection.
func (w *World) Selecting() (config.ActionDef, bool) {
	if w.selecting == nil {
		return config.ActionDef{}, false
	}
	return *w.selecting, true
}

// personInformed queues the news for a person learning the rumour.
func (w *World) personInformed(p *Person) {
	if p.Notable && p.ID != w.source {
		w.emit(CategoryRumor, fmt.Sprintf("%s has heard that %s.", capitalize(p.Name), w.fact))
	}

	n := len(w.people)
	for w.milestones < 4 && w.informed*4 >= (w.milestones+1)*n {
		w.milestones++
		if n < 4 {
			continue
		}
		switch w.milestones {
		case 2:
			w.emit(CategoryRumor, fmt.Sprintf("Half the town has heard that %s.", w.fact))
		case 4:
			w.emit(CategoryRumor, fmt.Sprintf("Everyone has heard that %s.", w.fact))
		}
	}
}

func (w *World) emit(category, text string) {
	w.events = append(w.events, Event{Tick: w.tick, Description: text, Category: category})
}

// Tick returns the number of completed updates.
func (w *World) Tick() uint64 { return w.tick }

// Seed returns the seed the world was generated with.
func (w *World) Seed() int64 { return w.seed }

// Fact returns the rumour being spread.
func (w *World) Fact() string { return w.fact }

// Source returns the person who knew the rumour first.
func (w *World) Source() int { return w.source }

// Informed returns how many people know the rumour.
func (w *World) Informed() int { return w.informed }

// Population returns the number of people.
func (w *World) Population() int { return len(w.people) }

// Done reports whether the rumour can spread no further: everyone knows,
// or every aware person has run out of people to tell.
func (w *World) Done() bool {
	if w.informed == len(w.people) {
		return true
	}
	for _, p := range w.people {
		if p.Knows && p.state != Exhausted {
			return false
		}
	}
	return true
}

// Config returns the configuration the world was built with.
func (w *World) Config() *config.Config { return w.cfg }

// Person returns person id, or nil.
func (w *World) Person(id int) *Person {
	if id < 0 || id >= len(w.people) {
		return nil
	}
	return w.people[id]
}

// Connection returns connection id, or nil.
func (w *World) Connection(id int) *Connection {
	if id < 0 || id >= len(w.conns) {
		return nil
	}
	return w.conns[id]
}

// People returns every person in id order.
func (w *World) People() []*Person { return w.people }

// Connections returns every connection in id order.
func (w *World) Connections() []*Connection { return w.conns }

// Areas returns the named areas.
func (w *World) Areas() []world.Area { return w.areas }

// Distance returns the centre distance between two connected people.
func (w *World) Distance(a, b int) (float64, bool) {
	d, ok := w.dists[world.Pair(a, b)]
	return d, ok
}

// ActiveActions returns the running actions with their remaining ticks.
func (w *World) ActiveActions() []ActionView {
	out := make([]ActionView, len(w.actions))
	for i, r := range w.actions {
		out[i] = viewAction(r.action, r.left)
	}
	return out
}
