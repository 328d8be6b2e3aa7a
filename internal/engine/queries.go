package engine

import (
	"fmt"
	"math"

	"github.com/talgya/damage-control/internal/config"
	"github.com/talgya/damage-control/internal/world"
)

// PickKinds selects which kinds of entity EntityNear may return.
type PickKinds uint8

const (
	PickPerson PickKinds = 1 << iota
	PickConnection
	PickArea

	PickAll = PickPerson | PickConnection | PickArea
)

// ParseKinds reads a kinds string made of the letters p (person),
// c (connection) and a (area). An empty string means all kinds.
func ParseKinds(s string) (PickKinds, error) {
	if s == "" {
		return PickAll, nil
	}
	var k PickKinds
	for _, r := range s {
		switch r {
		case 'p':
			k |= PickPerson
		case 'c':
			k |= PickConnection
		case 'a':
			k |= PickArea
		default:
			return 0, fmt.Errorf("unknown entity kind %q", r)
		}
	}
	return k, nil
}

// KindsFor returns the pick mask matching an action's target kind.
func KindsFor(t config.TargetKind) PickKinds {
	switch t {
	case config.TargetPerson:
		return PickPerson
	case config.TargetConnection:
		return PickConnection
	case config.TargetArea:
		return PickArea
	}
	return 0
}

// Entity is the result of a pick.
type Entity struct {
	Kind config.TargetKind `json:"kind"`
	ID   int               `json:"id"` // person or connection id; area index
	Name string            `json:"name"`
	Pos  world.Point       `json:"pos"`
}

// Target returns the action target for the picked entity. Areas are aimed
// at pos, the point that was clicked.
func (e Entity) Target(pos world.Point) Target {
	switch e.Kind {
	case config.TargetPerson:
		return PersonTarget(e.ID)
	case config.TargetConnection:
		return ConnectionTarget(e.ID)
	}
	return AreaTarget(pos)
}

// EntityNear returns what is under pos: a person whose disc contains it,
// otherwise the closest connection within the click radius, otherwise the
// area it falls in.
func (w *World) EntityNear(pos world.Point, kinds PickKinds) (Entity, bool) {
	if kinds&PickPerson != 0 {
		r := w.cfg.Gen.PersonRadius
		best, bestD := -1, r*r
		for _, p := range w.people {
			if d := world.DistSq(p.Pos, pos); d <= bestD {
				best, bestD = p.ID, d
			}
		}
		if best >= 0 {
			p := w.people[best]
			return Entity{Kind: config.TargetPerson, ID: p.ID, Name: p.Name, Pos: p.Pos}, true
		}
	}

	if kinds&PickConnection != 0 {
		r := w.cfg.Gen.ConRadius
		best, bestD := -1, r*r
		for _, c := range w.conns {
			a, b := w.people[c.People[0]].Pos, w.people[c.People[1]].Pos
			if d := world.SegmentDistSq(pos, a, b); d <= bestD {
				best, bestD = c.ID, d
			}
		}
		if best >= 0 {
			c := w.conns[best]
			mid := world.Lerp(w.people[c.People[0]].Pos, w.people[c.People[1]].Pos, 0.5)
			return Entity{Kind: config.TargetConnection, ID: c.ID, Name: w.connectionName(c), Pos: mid}, true
		}
	}

	if kinds&PickArea != 0 {
		if i := world.NearestArea(w.areas, pos); i >= 0 {
			a := w.areas[i]
			return Entity{Kind: config.TargetArea, ID: i, Name: a.Name, Pos: a.Center}, true
		}
	}
	return Entity{}, false
}

// EntitiesIn returns the people within radius of pos and the connections
// with both ends among them.
func (w *World) EntitiesIn(pos world.Point, radius float64) (people, conns []int) {
	r2 := radius * radius
	inside := make([]bool, len(w.people))
	for _, p := range w.people {
		if world.DistSq(p.Pos, pos) <= r2 {
			inside[p.ID] = true
			people = append(people, p.ID)
		}
	}
	for _, c := range w.conns {
		if inside[c.People[0]] && inside[c.People[1]] {
			conns = append(conns, c.ID)
		}
	}
	return people, conns
}

// AreaAt returns the named area pos belongs to.
func (w *World) AreaAt(pos world.Point) (world.Area, bool) {
	i := world.NearestArea(w.areas, pos)
	if i < 0 {
		return world.Area{}, false
	}
	return w.areas[i], true
}

// PersonView is a person as drawn.
type PersonView struct {
	ID      int         `json:"id"`
	Name    string      `json:"name"`
	Pos     world.Point `json:"pos"`
	Knows   bool        `json:"knows"`
	State   string      `json:"state,omitempty"`
	Sending int         `json:"sending"`
	Told    []int       `json:"told,omitempty"` // neighbours known to know
}

// MethodView is one method of a connection as drawn.
type MethodView struct {
	ID     string  `json:"id"`
	Speed  float64 `json:"speed"`
	Blocks int     `json:"blocks"`
}

// ConnectionView is a connection as drawn.
type ConnectionView struct {
	ID       int          `json:"id"`
	People   [2]int       `json:"people"`
	Distance float64      `json:"distance"`
	Sent     bool         `json:"sent"`
	Sender   int          `json:"sender"`
	Progress float64      `json:"progress"`
	Method   string       `json:"method,omitempty"`
	Stalled  bool         `json:"stalled,omitempty"`
	Marker   *world.Point `json:"marker,omitempty"` // where the message is along the line
	Methods  []MethodView `json:"methods"`
}

// ActionView is a running action as drawn.
type ActionView struct {
	ID        ActionID          `json:"id"`
	Action    string            `json:"action"`
	Kind      config.TargetKind `json:"kind"`
	Where     string            `json:"where"`
	Pos       world.Point       `json:"pos"`
	Radius    float64           `json:"radius,omitempty"`
	TicksLeft int               `json:"ticks_left"`
}

func viewAction(a *Action, left int) ActionView {
	v := ActionView{
		ID:        a.ID,
		Action:    a.Def.ID,
		Kind:      a.Def.Target,
		Where:     a.Where,
		Pos:       a.Pos,
		TicksLeft: left,
	}
	if a.Def.Target == config.TargetArea {
		v.Radius = a.Def.Radius
	}
	return v
}

// Snapshot is the whole drawable state of a world at one tick.
type Snapshot struct {
	Tick        uint64           `json:"tick"`
	Fact        string           `json:"fact"`
	Informed    int              `json:"informed"`
	Population  int              `json:"population"`
	Selecting   string           `json:"selecting,omitempty"`
	People      []PersonView     `json:"people"`
	Connections []ConnectionView `json:"connections"`
	Actions     []ActionView     `json:"actions"`
	Areas       []world.Area     `json:"areas"`
}

// Snapshot copies the state needed to draw the world.
func (w *World) Snapshot() Snapshot {
	s := Snapshot{
		Tick:        w.tick,
		Fact:        w.fact,
		Informed:    w.informed,
		Population:  len(w.people),
		People:      make([]PersonView, len(w.people)),
		Connections: make([]ConnectionView, len(w.conns)),
		Actions:     w.ActiveActions(),
		Areas:       append([]world.Area(nil), w.areas...),
	}
	if def, ok := w.Selecting(); ok {
		s.Selecting = def.ID
	}

	for i, p := range w.people {
		v := PersonView{ID: p.ID, Name: p.Name, Pos: p.Pos, Knows: p.Knows, Sending: p.ActiveConnection()}
		if p.Knows {
			v.State = p.state.String()
		}
		for _, cid := range p.Cons {
			if n := w.conns[cid].Other(p.ID); p.KnownFrom(n) {
				v.Told = append(v.Told, n)
			}
		}
		s.People[i] = v
	}

	for i, c := range w.conns {
		v := ConnectionView{
			ID:       c.ID,
			People:   c.People,
			Distance: c.Distance,
			Sent:     c.Sent,
			Sender:   c.Sender(),
			Progress: c.progress,
			Method:   c.CurrentMethod(),
			Stalled:  c.Stalled(),
			Methods:  make([]MethodView, len(c.Methods)),
		}
		if c.sending {
			from, to := w.people[c.sender].Pos, w.people[c.Other(c.sender)].Pos
			m := world.Lerp(from, to, math.Min(1, c.progress))
			v.Marker = &m
		}
		for j := range c.Methods {
			v.Methods[j] = MethodView{ID: c.Methods[j].ID, Speed: c.Methods[j].Speed, Blocks: c.Methods[j].Blocks()}
		}
		s.Connections[i] = v
	}
	return s
}
