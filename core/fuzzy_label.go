package core

import (
	"math/bits"
	"strconv"

	lru "github.com/hashicorp/golang-lru/v2"
)

// FuzzyMatch is one resolver candidate: an anchor's coordinate and its
// Hamming distance from the requested pattern.
type FuzzyMatch struct {
	Coord Coord
	Dist  int
}

// fuzzyRNG is the minimal interface the resolver needs from an RNG
// sub-stream — satisfied by *rand.Rand from math/rand/v2.
type fuzzyRNG interface {
	Float64() float64
}

// FuzzyLabelResolver implements Hamming-distance anchor matching with
// stochastic, distance-weighted tie-breaking. Candidate lists are kept in a
// bounded LRU cache keyed by the caller's anchor-table identity: one
// resolver is shared across every organism, and post-fork children carry
// namespace-rewritten anchor tables, so a cached list is only valid for the
// exact table that produced it.
type FuzzyLabelResolver struct {
	cache *lru.Cache[string, []FuzzyMatch]
	// Weight is the tie-break weighting function. Any monotone-decreasing
	// weighting works; the default is tolerance-d+1, clamped at a minimum
	// of 1.
	Weight func(tolerance, dist int) float64
}

// NewFuzzyLabelResolver builds a resolver with a bounded candidate-list
// cache of the given size (0 disables caching).
func NewFuzzyLabelResolver(cacheSize int) *FuzzyLabelResolver {
	r := &FuzzyLabelResolver{Weight: defaultFuzzyWeight}
	if cacheSize > 0 {
		c, err := lru.New[string, []FuzzyMatch](cacheSize)
		if err == nil {
			r.cache = c
		}
	}
	return r
}

func defaultFuzzyWeight(tolerance, dist int) float64 {
	w := float64(tolerance - dist + 1)
	if w < 1 {
		w = 1
	}
	return w
}

func hamming32(a, b uint32) int { return bits.OnesCount32(a ^ b) }

func (r *FuzzyLabelResolver) candidates(tableKey uint64, pattern uint32, anchors []LabelAnchor, tolerance int) []FuzzyMatch {
	var key string
	if r.cache != nil {
		key = strconv.FormatUint(tableKey, 16) + "|" + strconv.FormatUint(uint64(pattern), 16) + "|" + strconv.Itoa(tolerance)
		if cached, ok := r.cache.Get(key); ok {
			return cached
		}
	}
	out := make([]FuzzyMatch, 0, len(anchors))
	for _, a := range anchors {
		d := hamming32(pattern&a.NamespaceMask, a.BitPattern&a.NamespaceMask)
		if d <= tolerance {
			out = append(out, FuzzyMatch{Coord: a.Coord, Dist: d})
		}
	}
	if r.cache != nil {
		r.cache.Add(key, out)
	}
	return out
}

// Resolve maps (pattern, anchors, tolerance) to a target coordinate, or
// reports no match. tableKey identifies the anchor table: callers resolving
// against distinct tables (the shared artifact table vs. a forked child's
// rewritten one) must pass distinct keys, or cached candidate lists from
// one table would answer queries against another. anchors should already be
// restricted to the organism's addressable locality by the caller. ok is
// false on an empty candidate set, which the caller turns into a jump
// InstructionFailure (FailNoFuzzyMatch).
func (r *FuzzyLabelResolver) Resolve(tableKey uint64, pattern uint32, anchors []LabelAnchor, tolerance int, rng fuzzyRNG) (Coord, bool) {
	cands := r.candidates(tableKey, pattern, anchors, tolerance)
	if len(cands) == 0 {
		return nil, false
	}
	if len(cands) == 1 {
		return cands[0].Coord, true
	}
	weights := make([]float64, len(cands))
	var total float64
	for i, c := range cands {
		w := r.Weight(tolerance, c.Dist)
		weights[i] = w
		total += w
	}
	draw := rng.Float64() * total
	for i, w := range weights {
		if draw < w {
			return cands[i].Coord, true
		}
		draw -= w
	}
	return cands[len(cands)-1].Coord, true
}
