// Package entropy provides the seeded random source and the distributions
// used by world generation and actions: weighted choice, gamma and
// triangular draws. A zero seed is replaced with one from crypto/rand.
package entropy

import (
	"crypto/rand"
	"encoding/binary"
	"log/slog"
	"math"
	mrand "math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"
)

// Stream offsets keep independent consumers of one seed decorrelated.
const (
	StreamPlacement uint64 = iota + 100
	StreamGraph
	StreamNames
	StreamSim
)

// ResolveSeed returns seed, or a crypto-random non-zero seed when seed is 0.
func ResolveSeed(seed int64) int64 {
	if seed != 0 {
		return seed
	}
	s := CryptoSeed()
	slog.Debug("random seed chosen", "seed", s)
	return s
}

// CryptoSeed returns a non-zero positive seed from crypto/rand.
func CryptoSeed() int64 {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		// This should never happen; fall back to a fixed seed.
		return 1
	}
	s := int64(binary.LittleEndian.Uint64(buf[:]) >> 1)
	if s == 0 {
		s = 1
	}
	return s
}

// New returns a generator for the given seed and stream.
func New(seed int64, stream uint64) *mrand.Rand {
	return mrand.New(mrand.NewPCG(uint64(seed), stream))
}

// Gamma draws from a gamma distribution with the given shape and scale.
func Gamma(r *mrand.Rand, shape, scale float64) float64 {
	g := distuv.Gamma{Alpha: shape, Beta: 1 / scale, Src: r}
	return g.Rand()
}

// Triangular draws from a triangular distribution on [lo, hi] peaking at mode.
// A degenerate range returns lo.
func Triangular(r *mrand.Rand, lo, mode, hi float64) float64 {
	if hi <= lo {
		return lo
	}
	mode = math.Min(math.Max(mode, lo), hi)
	return distuv.NewTriangle(lo, hi, mode, r).Rand()
}
