package world

import (
	"math"
	mrand "math/rand/v2"
	"sort"
)

// Area is a named region of the map. Which people and connections it holds
// is decided when something targets it.
type Area struct {
	Name   string `json:"name"`
	Center Point  `json:"center"`
}

// placeAreas picks up to count area centres on the busiest spots of the
// map, keeping centres apart so names cover the whole region.
func placeAreas(people []Point, width, height float64, count int, rng *mrand.Rand) []Area {
	if count <= 0 || len(people) == 0 {
		return nil
	}

	reach := math.Min(width, height) / 5
	minApart := math.Min(width, height) / math.Sqrt(float64(count)) / 2

	type scored struct {
		p     Point
		score int
	}
	candidates := make([]scored, len(people))
	for i, p := range people {
		n := 0
		for _, q := range people {
			if DistSq(p, q) <= reach*reach {
				n++
			}
		}
		candidates[i] = scored{p, n}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})

	var centers []Point
	for _, c := range candidates {
		if len(centers) >= count {
			break
		}
		if tooCloseToAny(c.p, centers, minApart*minApart) {
			continue
		}
		centers = append(centers, c.p)
	}

	names := generateAreaNames(rng, len(centers))
	areas := make([]Area, len(centers))
	for i, p := range centers {
		areas[i] = Area{Name: names[i], Center: p}
	}
	return areas
}

// NearestArea returns the index of the area whose centre is closest to p,
// or -1 if there are none.
func NearestArea(areas []Area, p Point) int {
	best, bestD := -1, math.Inf(1)
	for i, a := range areas {
		if d := DistSq(a.Center, p); d < bestD {
			best, bestD = i, d
		}
	}
	return best
}
