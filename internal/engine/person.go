package engine

import (
	"log/slog"

	"github.com/talgya/damage-control/internal/world"
)

// SendState is what a person who knows the rumour is doing about it.
type SendState int

const (
	Idle      SendState = iota // knows, nothing in flight; retries each tick
	Active                     // sending on one connection
	Exhausted                  // every neighbour is known to know
)

func (s SendState) String() string {
	switch s {
	case Idle:
		return "idle"
	case Active:
		return "active"
	case Exhausted:
		return "exhausted"
	}
	return "unknown"
}

// Person is a node of the rumour network.
type Person struct {
	ID      int
	Pos     world.Point
	Name    string
	Notable bool
	Knows   bool
	Cons    []int // incident connection ids

	knownFrom map[int]bool // neighbours that know (told us or we told them)
	state     SendState
	active    int // connection id while Active
}

func newPerson(id int, seed world.PersonSeed) *Person {
	return &Person{
		ID:        id,
		Pos:       seed.Pos,
		Name:      seed.Name,
		Notable:   seed.Notable,
		knownFrom: make(map[int]bool),
		active:    -1,
	}
}

// State returns the sending state. Meaningless until Knows.
func (p *Person) State() SendState { return p.state }

// ActiveConnection returns the connection being sent on, or -1.
func (p *Person) ActiveConnection() int {
	if p.state != Active {
		return -1
	}
	return p.active
}

// KnownFrom reports whether neighbour n is known to know the rumour.
func (p *Person) KnownFrom(n int) bool { return p.knownFrom[n] }

func (p *Person) idle() {
	p.state = Idle
	p.active = -1
}

// receive handles the message arriving over via (-1 for the initial source).
func (p *Person) receive(w *World, via int) {
	if via >= 0 {
		p.knownFrom[w.conns[via].Other(p.ID)] = true
	}
	if !p.Knows {
		p.Knows = true
		w.informed++
		slog.Debug("person informed", "tick", w.tick, "person", p.ID, "via", via, "informed", w.informed)
		w.personInformed(p)
		p.attemptSend(w)
		return
	}
	if p.state == Active && p.active == via {
		p.idle()
	}
}

// attemptSend tries each connection to a neighbour not yet known to know,
// in random order, and starts on the first one that accepts.
func (p *Person) attemptSend(w *World) {
	var targets []int
	for _, cid := range p.Cons {
		if !p.knownFrom[w.conns[cid].Other(p.ID)] {
			targets = append(targets, cid)
		}
	}
	w.rng.Shuffle(len(targets), func(i, j int) {
		targets[i], targets[j] = targets[j], targets[i]
	})

	nearMiss := false
	for _, cid := range targets {
		switch w.conns[cid].send(w, p.ID) {
		case SendStarted:
			p.state = Active
			p.active = cid
			return
		case SendBusy, SendUnavailable:
			nearMiss = true
		}
	}
	if nearMiss {
		p.idle()
		return
	}
	p.state = Exhausted
	p.active = -1
}

// finished is called by a connection this person completed sending on.
func (p *Person) finished(w *World, via int) {
	p.knownFrom[w.conns[via].Other(p.ID)] = true
	if p.state == Active && p.active == via {
		p.idle()
	}
}

// stalled is called when every method on via became unusable mid-send.
func (p *Person) stalled(w *World, via int) {
	if p.state != Active || p.active != via {
		return
	}
	p.idle()
	p.attemptSend(w)
}

func (p *Person) update(w *World) {
	if p.Knows && p.state == Idle {
		p.attemptSend(w)
	}
}

func (p *Person) disable(w *World, methods []string, cause ActionID) {
	for _, cid := range p.Cons {
		for _, m := range methods {
			w.conns[cid].disable(w, m, cause)
		}
	}
}

func (p *Person) enable(w *World, methods []string, cause ActionID) {
	for _, cid := range p.Cons {
		for _, m := range methods {
			w.conns[cid].enable(m, cause)
		}
	}
}
