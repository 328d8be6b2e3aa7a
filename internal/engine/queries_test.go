package engine

import (
	"slices"
	"testing"

	"github.com/talgya/damage-control/internal/config"
	"github.com/talgya/damage-control/internal/world"
)

func TestEntityNear(t *testing.T) {
	w := newChain(t, nil)

	tests := []struct {
		name  string
		pos   world.Point
		kinds PickKinds
		kind  config.TargetKind
		id    int
	}{
		{"on a person", world.Point{X: 52, Y: 101}, PickAll, config.TargetPerson, 0},
		{"next to a line", world.Point{X: 100, Y: 110}, PickAll, config.TargetConnection, 0},
		{"person skipped", world.Point{X: 52, Y: 101}, PickConnection, config.TargetConnection, 0},
		{"far from lines", world.Point{X: 90, Y: 250}, PickAll, config.TargetArea, 0},
		{"east side", world.Point{X: 330, Y: 250}, PickArea, config.TargetArea, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, ok := w.EntityNear(tt.pos, tt.kinds)
			if !ok {
				t.Fatal("nothing picked")
			}
			if e.Kind != tt.kind || e.ID != tt.id {
				t.Errorf("picked %s %d, want %s %d", e.Kind, e.ID, tt.kind, tt.id)
			}
		})
	}

	if _, ok := w.EntityNear(world.Point{X: 90, Y: 250}, PickPerson|PickConnection); ok {
		t.Error("picked something with no person or line nearby")
	}
}

func TestEntitiesIn(t *testing.T) {
	w := newChain(t, nil)
	people, conns := w.EntitiesIn(world.Point{X: 100, Y: 100}, 60)
	if !slices.Equal(people, []int{0, 1}) {
		t.Errorf("people = %v", people)
	}
	if !slices.Equal(conns, []int{0}) {
		t.Errorf("connections = %v", conns)
	}

	people, conns = w.EntitiesIn(world.Point{X: 0, Y: 0}, 10)
	if len(people) != 0 || len(conns) != 0 {
		t.Errorf("empty circle returned %v %v", people, conns)
	}
}

func TestAreaAt(t *testing.T) {
	w := newChain(t, nil)
	a, ok := w.AreaAt(world.Point{X: 280, Y: 0})
	if !ok || a.Name != "Eastham" {
		t.Errorf("AreaAt = %+v, %v", a, ok)
	}
}

func TestParseKinds(t *testing.T) {
	k, err := ParseKinds("pc")
	if err != nil || k != PickPerson|PickConnection {
		t.Errorf("ParseKinds(pc) = %v, %v", k, err)
	}
	if k, _ := ParseKinds(""); k != PickAll {
		t.Errorf("empty kinds = %v, want all", k)
	}
	if _, err := ParseKinds("x"); err == nil {
		t.Error("expected error for unknown kind")
	}
	if KindsFor(config.TargetArea) != PickArea {
		t.Error("KindsFor(area)")
	}
}

func TestSnapshot(t *testing.T) {
	w := newChain(t, nil)
	w.Update()
	s := w.Snapshot()

	if s.Tick != 1 || s.Informed != 1 || s.Population != 4 {
		t.Fatalf("header = %+v", s)
	}
	if s.People[0].State != "active" || s.People[0].Sending != 0 {
		t.Errorf("source view = %+v", s.People[0])
	}
	if s.People[1].State != "" {
		t.Errorf("unaware person has state %q", s.People[1].State)
	}
	ab := s.Connections[0]
	if ab.Sender != 0 || ab.Method != "fast" || ab.Marker == nil {
		t.Fatalf("A-B view = %+v", ab)
	}
	if ab.Marker.X != 100 {
		t.Errorf("marker at %v, want halfway", *ab.Marker)
	}
	if s.Connections[1].Marker != nil || s.Connections[1].Sender != -1 {
		t.Errorf("idle connection view = %+v", s.Connections[1])
	}
	if len(s.People[0].Told) != 0 {
		t.Errorf("source told %v before anything arrived", s.People[0].Told)
	}
}

func TestSnapshotTold(t *testing.T) {
	w := newChain(t, nil)
	w.Update()
	w.Update() // A-B arrives
	s := w.Snapshot()

	if got := s.People[0].Told; len(got) != 1 || got[0] != 1 {
		t.Errorf("Alice told = %v, want [1]", got)
	}
	if got := s.People[1].Told; len(got) != 1 || got[0] != 0 {
		t.Errorf("Bob told = %v, want [0]", got)
	}
	if got := s.People[2].Told; len(got) != 0 {
		t.Errorf("C told = %v, want none", got)
	}
}
