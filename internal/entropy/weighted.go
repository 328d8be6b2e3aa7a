package entropy

import (
	"iter"
	"math"
	mrand "math/rand/v2"

	"gonum.org/v1/gonum/stat/sampleuv"
)

// WeightedChoice returns one key from seq with probability proportional to
// its weight. Non-positive and NaN weights never win. The first +Inf weight
// always wins. If nothing has positive weight the zero key and false are
// returned.
func WeightedChoice[K any](r *mrand.Rand, seq iter.Seq2[K, float64]) (K, bool) {
	var keys []K
	var weights []float64
	for k, w := range seq {
		if math.IsInf(w, 1) {
			return k, true
		}
		if !(w > 0) {
			continue
		}
		keys = append(keys, k)
		weights = append(weights, w)
	}
	var zero K
	if len(keys) == 0 {
		return zero, false
	}
	idx, ok := sampleuv.NewWeighted(weights, r).Take()
	if !ok {
		return zero, false
	}
	return keys[idx], true
}

// Pairs yields keys[i], weights[i] in order. Extra entries in the longer
// slice are ignored.
func Pairs[K any](keys []K, weights []float64) iter.Seq2[K, float64] {
	return func(yield func(K, float64) bool) {
		n := min(len(keys), len(weights))
		for i := 0; i < n; i++ {
			if !yield(keys[i], weights[i]) {
				return
			}
		}
	}
}

// Sampler draws indices in proportion to weight without replacement.
type Sampler struct {
	w         sampleuv.Weighted
	remaining int
}

// NewSampler builds a sampler over weights. Non-positive and infinite weights
// are never drawn.
func NewSampler(r *mrand.Rand, weights []float64) *Sampler {
	clean := make([]float64, len(weights))
	remaining := 0
	for i, w := range weights {
		if w > 0 && !math.IsInf(w, 0) {
			clean[i] = w
			remaining++
		}
	}
	s := &Sampler{remaining: remaining}
	if len(clean) > 0 {
		s.w = sampleuv.NewWeighted(clean, r)
	}
	return s
}

// Take returns the next index, or false once every positive weight is used.
func (s *Sampler) Take() (int, bool) {
	if s.remaining == 0 {
		return -1, false
	}
	idx, ok := s.w.Take()
	if !ok {
		s.remaining = 0
		return -1, false
	}
	s.remaining--
	return idx, true
}

// Remaining reports how many indices can still be drawn.
func (s *Sampler) Remaining() int {
	return s.remaining
}
