package world

import (
	"errors"
	"fmt"
	mrand "math/rand/v2"

	opensimplex "github.com/ojrac/opensimplex-go"

	"github.com/talgya/damage-control/internal/config"
)

// ErrPlacementFailed means rejection sampling ran out of attempts.
var ErrPlacementFailed = errors.New("could not place person")

// densityScale converts pixels to noise space; ~150 px between villages.
const densityScale = 1.0 / 150

// placePeople scatters gen.People points inside the bordered region, no two
// closer than gen.MinSpacing(). With clustering enabled a draw in a sparse
// part of the density field is rejected with probability
// Clustering*(1-density).
func placePeople(gen config.GenConfig, rng *mrand.Rand, seed int64) ([]Point, error) {
	x0, y0 := gen.Border, gen.Border
	x1, y1 := gen.Width-gen.Border, gen.Height-gen.Border
	nearest := gen.MinSpacing()
	nearestSq := nearest * nearest

	var density opensimplex.Noise
	if gen.Clustering > 0 {
		density = opensimplex.NewNormalized(seed)
	}

	attempts := gen.MaxPlacementAttempts
	if attempts <= 0 {
		attempts = config.DefaultGenConfig().MaxPlacementAttempts
	}

	pts := make([]Point, 0, gen.People)
	for i := 0; i < gen.People; i++ {
		placed := false
		for try := 0; try < attempts; try++ {
			p := Point{
				X: x0 + rng.Float64()*(x1-x0),
				Y: y0 + rng.Float64()*(y1-y0),
			}
			if density != nil {
				d := octaveNoise(density, p.X, p.Y, 3, densityScale, 0.5)
				if rng.Float64() < gen.Clustering*(1-d) {
					continue
				}
			}
			if tooCloseToAny(p, pts, nearestSq) {
				continue
			}
			pts = append(pts, p)
			placed = true
			break
		}
		if !placed {
			return nil, fmt.Errorf("%w %d of %d after %d attempts", ErrPlacementFailed, i+1, gen.People, attempts)
		}
	}
	return pts, nil
}

func tooCloseToAny(p Point, existing []Point, minDistSq float64) bool {
	for _, q := range existing {
		if DistSq(p, q) < minDistSq {
			return true
		}
	}
	return false
}

// octaveNoise generates fractal noise by layering multiple frequencies.
func octaveNoise(noise opensimplex.Noise, x, y float64, octaves int, frequency, persistence float64) float64 {
	total := 0.0
	amplitude := 1.0
	maxVal := 0.0

	for i := 0; i < octaves; i++ {
		total += noise.Eval2(x*frequency, y*frequency) * amplitude
		maxVal += amplitude
		amplitude *= persistence
		frequency *= 2
	}

	return total / maxVal
}
