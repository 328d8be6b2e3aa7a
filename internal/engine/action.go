package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/talgya/damage-control/internal/config"
	"github.com/talgya/damage-control/internal/entropy"
	"github.com/talgya/damage-control/internal/world"
)

// Action errors.
var (
	ErrUnknownAction         = errors.New("unknown action")
	ErrWrongTarget           = errors.New("action cannot target that")
	ErrUnknownTarget         = errors.New("target does not exist")
	ErrInsufficientInfluence = errors.New("not enough influence")
	ErrNoSelection           = errors.New("no action selected")
)

// ActionID identifies one started action. It is the blocking cause recorded
// on every method the action disables.
type ActionID uint64

// Target is what the player aimed an action at.
type Target struct {
	Kind       config.TargetKind `json:"kind"`
	Person     int               `json:"person,omitempty"`
	Connection int               `json:"connection,omitempty"`
	Point      world.Point       `json:"point,omitempty"` // area centre
}

// PersonTarget aims at person id.
func PersonTarget(id int) Target { return Target{Kind: config.TargetPerson, Person: id} }

// ConnectionTarget aims at connection id.
func ConnectionTarget(id int) Target { return Target{Kind: config.TargetConnection, Connection: id} }

// AreaTarget aims at the circle around p.
func AreaTarget(p world.Point) Target { return Target{Kind: config.TargetArea, Point: p} }

// Action is a started, time-boxed disable.
type Action struct {
	ID  ActionID
	Def config.ActionDef

	Target   Target
	Where    string // display name: person, "A and B", or area name
	Pos      world.Point
	Days     float64
	Duration int // ticks

	people []int
	conns  []int
	ended  bool
}

// newAction resolves target against w and draws the duration. Nothing is
// disabled until start.
func newAction(w *World, id ActionID, def config.ActionDef, t Target) (*Action, error) {
	if t.Kind != def.Target {
		return nil, fmt.Errorf("%w: %s needs a %s, got a %s", ErrWrongTarget, def.ID, def.Target, t.Kind)
	}
	a := &Action{ID: id, Def: def, Target: t}

	switch t.Kind {
	case config.TargetPerson:
		if t.Person < 0 || t.Person >= len(w.people) {
			return nil, fmt.Errorf("%w: person %d", ErrUnknownTarget, t.Person)
		}
		p := w.people[t.Person]
		a.people = []int{p.ID}
		a.Where = p.Name
		a.Pos = p.Pos
	case config.TargetConnection:
		if t.Connection < 0 || t.Connection >= len(w.conns) {
			return nil, fmt.Errorf("%w: connection %d", ErrUnknownTarget, t.Connection)
		}
		c := w.conns[t.Connection]
		a.conns = []int{c.ID}
		a.Where = w.connectionName(c)
		pa, pb := w.people[c.People[0]].Pos, w.people[c.People[1]].Pos
		a.Pos = world.Lerp(pa, pb, 0.5)
	case config.TargetArea:
		a.people, a.conns = w.EntitiesIn(t.Point, def.Radius)
		a.Where = w.areaName(t.Point)
		a.Pos = t.Point
	default:
		return nil, fmt.Errorf("%w: kind %q", ErrWrongTarget, t.Kind)
	}

	a.Days = entropy.Triangular(w.rng, def.Time.Min, def.Time.Mode, def.Time.Max)
	a.Duration = max(1, int(math.Round(a.Days*float64(w.cfg.DayTicks))))
	return a, nil
}

// start disables every affected method on the target.
func (a *Action) start(w *World) {
	for _, pid := range a.people {
		w.people[pid].disable(w, a.Def.Affects, a.ID)
	}
	for _, cid := range a.conns {
		for _, m := range a.Def.Affects {
			w.conns[cid].disable(w, m, a.ID)
		}
	}
	slog.Info("action started",
		"tick", w.tick,
		"action", a.Def.ID,
		"id", a.ID,
		"target", a.Where,
		"people", len(a.people),
		"connections", len(a.conns),
		"ticks", a.Duration,
	)
}

// end re-enables exactly what start disabled.
func (a *Action) end(w *World) {
	if a.ended {
		panic(fmt.Sprintf("engine: action %d (%s) ended twice", a.ID, a.Def.ID))
	}
	a.ended = true
	for _, pid := range a.people {
		w.people[pid].enable(w, a.Def.Affects, a.ID)
	}
	for _, cid := range a.conns {
		for _, m := range a.Def.Affects {
			w.conns[cid].enable(m, a.ID)
		}
	}
	slog.Info("action ended", "tick", w.tick, "action", a.Def.ID, "id", a.ID, "target", a.Where)
}

// Affected returns the people and connections the action was applied to.
func (a *Action) Affected() (people, conns []int) {
	return a.people, a.conns
}
