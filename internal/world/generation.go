// World generation: placement, distance-biased connections, connectivity
// repair and method assignment.
package world

import (
	"fmt"
	"log/slog"
	"math"
	mrand "math/rand/v2"
	"sort"

	"github.com/talgya/damage-control/internal/config"
	"github.com/talgya/damage-control/internal/entropy"
)

// PersonSeed is a generated person before the simulation takes over.
type PersonSeed struct {
	Pos     Point  `json:"pos"`
	Name    string `json:"name"`
	Notable bool   `json:"notable"`
}

// Edge is a generated connection between people A and B.
type Edge struct {
	A        int      `json:"a"`
	B        int      `json:"b"`
	Distance float64  `json:"distance"` // centre-to-centre
	Methods  []string `json:"methods"`  // catalog order, no duplicates
}

// Layout is a generated world.
type Layout struct {
	Seed   int64        `json:"seed"`
	People []PersonSeed `json:"people"`
	Edges  []Edge       `json:"edges"`
	Areas  []Area       `json:"areas"`
	Source int          `json:"source"` // index of the person who starts out knowing

	// Distances between connected pairs only.
	Distances map[PairKey]float64 `json:"-"`

	// Edges added by the connectivity repair pass.
	Bridges int `json:"bridges"`
}

// Generate builds a connected world from gen using the method catalog.
// The configuration should already have passed config.Validate.
func Generate(gen config.GenConfig, methods []config.MethodDef) (*Layout, error) {
	if len(methods) == 0 {
		return nil, config.ErrEmptyCatalog
	}
	if gen.People < 1 {
		return nil, fmt.Errorf("%w: no people to place", config.ErrInvalidGen)
	}
	seed := entropy.ResolveSeed(gen.Seed)

	pts, err := placePeople(gen, entropy.New(seed, entropy.StreamPlacement), seed)
	if err != nil {
		return nil, fmt.Errorf("placing people: %w", err)
	}
	n := len(pts)

	// All pairwise distances; only connected pairs are kept on the layout.
	dists := make([][]float64, n)
	for i := range dists {
		dists[i] = make([]float64, n)
		for j := 0; j < i; j++ {
			d := Dist(pts[i], pts[j])
			dists[i][j] = d
			dists[j][i] = d
		}
	}

	b := &builder{
		gen:       gen,
		rng:       entropy.New(seed, entropy.StreamGraph),
		dists:     dists,
		partners:  make([]map[int]bool, n),
		groups:    NewDisjointSet(n),
		methodIDs: make([]string, len(methods)),
		methodW:   make([]float64, len(methods)),
		layout: &Layout{
			Seed:      seed,
			Distances: make(map[PairKey]float64),
		},
	}
	for i := range b.partners {
		b.partners[i] = make(map[int]bool)
	}
	for i, m := range methods {
		b.methodIDs[i] = m.ID
		b.methodW[i] = m.Freq
	}

	for p := 0; p < n; p++ {
		b.connectPerson(p)
	}
	b.repairConnectivity()

	l := b.layout
	l.Source = b.rng.IntN(n)
	l.People = namePeople(pts, gen.NotableNames, entropy.New(seed, entropy.StreamNames))
	l.Areas = placeAreas(pts, gen.Width, gen.Height, gen.Areas, entropy.New(seed, entropy.StreamNames+1))

	slog.Debug("world generated",
		"seed", seed,
		"people", n,
		"connections", len(l.Edges),
		"bridges", l.Bridges,
		"areas", len(l.Areas),
		"source", l.Source,
	)
	return l, nil
}

type builder struct {
	gen      config.GenConfig
	rng      *mrand.Rand
	dists    [][]float64
	partners []map[int]bool
	groups   *DisjointSet

	methodIDs []string
	methodW   []float64

	layout *Layout
}

// connectPerson gives p its drawn number of connections, favouring near
// partners with weight 1/dist^bias. Connections made by earlier people count.
func (b *builder) connectPerson(p int) {
	n := len(b.dists)
	var others []int
	var weights []float64
	for o := 0; o < n; o++ {
		if o == p || b.partners[p][o] {
			continue
		}
		others = append(others, o)
		weights = append(weights, 1/math.Pow(b.dists[p][o], b.gen.ShortConnectionBias))
	}

	want := entropy.Gamma(b.rng, b.gen.ConsPerPerson.Shape, b.gen.ConsPerPerson.Scale)
	want = math.Min(want, math.Min(float64(b.gen.MaxConsPerPerson), float64(len(others))))
	want = math.Max(1, want)
	need := int(math.Round(want)) - len(b.partners[p])

	sampler := entropy.NewSampler(b.rng, weights)
	for i := 0; i < need && sampler.Remaining() > 0; i++ {
		idx, ok := sampler.Take()
		if !ok {
			break
		}
		b.addEdge(p, others[idx])
	}
}

// repairConnectivity joins components through their globally nearest pair
// until one component remains.
func (b *builder) repairConnectivity() {
	n := len(b.dists)
	for b.groups.Count() > 1 {
		bestA, bestB, bestD := -1, -1, math.Inf(1)
		for i := 0; i < n; i++ {
			for j := i + 1; j < n; j++ {
				if b.dists[i][j] < bestD && !b.groups.Same(i, j) {
					bestA, bestB, bestD = i, j, b.dists[i][j]
				}
			}
		}
		b.addEdge(bestA, bestB)
		b.layout.Bridges++
	}
}

func (b *builder) addEdge(p1, p2 int) {
	d := b.dists[p1][p2]
	b.layout.Distances[Pair(p1, p2)] = d
	b.layout.Edges = append(b.layout.Edges, Edge{
		A:        p1,
		B:        p2,
		Distance: d,
		Methods:  b.chooseMethods(),
	})
	b.partners[p1][p2] = true
	b.partners[p2][p1] = true
	b.groups.Union(p1, p2)
}

// chooseMethods draws a frequency-weighted set of at least one method.
func (b *builder) chooseMethods() []string {
	draws := int(math.Round(math.Max(1, entropy.Gamma(b.rng, b.gen.MethodsPerCon.Shape, b.gen.MethodsPerCon.Scale))))
	picked := make(map[int]bool)
	indices := make([]int, len(b.methodIDs))
	for i := range indices {
		indices[i] = i
	}
	for i := 0; i < draws; i++ {
		if idx, ok := entropy.WeightedChoice(b.rng, entropy.Pairs(indices, b.methodW)); ok {
			picked[idx] = true
		}
	}

	chosen := make([]int, 0, len(picked))
	for idx := range picked {
		chosen = append(chosen, idx)
	}
	sort.Ints(chosen)
	ids := make([]string, len(chosen))
	for i, idx := range chosen {
		ids[i] = b.methodIDs[idx]
	}
	return ids
}

// namePeople gives a few random people full names and generates the rest.
func namePeople(pts []Point, notable int, rng *mrand.Rand) []PersonSeed {
	people := make([]PersonSeed, len(pts))
	for i, p := range pts {
		people[i] = PersonSeed{Pos: p, Name: generatePersonName(rng)}
	}

	notable = min(notable, len(fullNames), len(pts))
	order := rng.Perm(len(pts))
	names := rng.Perm(len(fullNames))
	for i := 0; i < notable; i++ {
		people[order[i]].Name = fullNames[names[i]]
		people[order[i]].Notable = true
	}
	return people
}

// Connected reports whether every person can reach every other through edges.
func (l *Layout) Connected() bool {
	if len(l.People) == 0 {
		return true
	}
	ds := NewDisjointSet(len(l.People))
	for _, e := range l.Edges {
		ds.Union(e.A, e.B)
	}
	return ds.Count() == 1
}

// Degree returns the number of edges touching each person.
func (l *Layout) Degree() []int {
	deg := make([]int, len(l.People))
	for _, e := range l.Edges {
		deg[e.A]++
		deg[e.B]++
	}
	return deg
}
