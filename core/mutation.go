package core

import "sync"

// MutationOperator transforms the linear gene sequence changing hands
// during a FORK's ownership transfer, modeling one class of replication
// error. Mutate must be a pure function of genes and rng — no hidden state,
// the same discipline every plugin interface in this package holds to.
type MutationOperator interface {
	Name() string
	Mutate(genes []Molecule, rng RNGSource) []Molecule
}

// MutationRegistry holds the ordered set of operators a FORK's ownership
// transfer runs the gene sequence through. Namespace rewriting is a
// separate pass and never part of this registry.
type MutationRegistry struct {
	mu        sync.RWMutex
	operators []MutationOperator
	rate      float64 // probability each operator fires per FORK, independently
}

func NewMutationRegistry() *MutationRegistry {
	return &MutationRegistry{rate: 0}
}

// Register appends an operator to the pipeline. Order matters: operators run
// in registration order against the previous operator's output.
func (r *MutationRegistry) Register(op MutationOperator) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.operators = append(r.operators, op)
}

// SetRate sets the independent per-operator firing probability.
func (r *MutationRegistry) SetRate(rate float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rate = rate
}

// Apply runs genes through every registered operator, each firing
// independently with the registry's configured rate, consuming rng draws in
// registration order so the outcome is reproducible from the organism's
// (tick, callSite) sub-stream.
func (r *MutationRegistry) Apply(genes []Molecule, rng RNGSource) []Molecule {
	r.mu.RLock()
	ops := append([]MutationOperator(nil), r.operators...)
	rate := r.rate
	r.mu.RUnlock()

	out := genes
	for _, op := range ops {
		if rate <= 0 {
			continue
		}
		if rng.Float64() < rate {
			out = op.Mutate(out, rng)
		}
	}
	return out
}

// InsertionOperator inserts one random CODE molecule at a random position,
// growing the gene sequence by one.
type InsertionOperator struct {
	ValueRange func(rng RNGSource) int32
}

func (InsertionOperator) Name() string { return "insertion" }

func (op InsertionOperator) Mutate(genes []Molecule, rng RNGSource) []Molecule {
	pos := rng.IntN(len(genes) + 1)
	var val int32
	if op.ValueRange != nil {
		val = op.ValueRange(rng)
	}
	inserted := Molecule{Type: MolCode, Value: val}
	out := make([]Molecule, 0, len(genes)+1)
	out = append(out, genes[:pos]...)
	out = append(out, inserted)
	out = append(out, genes[pos:]...)
	return out
}

// SubstitutionOperator overwrites one random gene's value in place, leaving
// the sequence length unchanged.
type SubstitutionOperator struct {
	ValueRange func(rng RNGSource) int32
}

func (SubstitutionOperator) Name() string { return "substitution" }

func (op SubstitutionOperator) Mutate(genes []Molecule, rng RNGSource) []Molecule {
	if len(genes) == 0 {
		return genes
	}
	out := append([]Molecule(nil), genes...)
	pos := rng.IntN(len(out))
	var val int32
	if op.ValueRange != nil {
		val = op.ValueRange(rng)
	}
	out[pos] = Molecule{Type: out[pos].Type, Value: val}
	return out
}

// DeletionOperator removes one random gene, shrinking the sequence by one.
// A sequence already at length 1 is left untouched — deletion cannot produce
// an empty genome.
type DeletionOperator struct{}

func (DeletionOperator) Name() string { return "deletion" }

func (DeletionOperator) Mutate(genes []Molecule, rng RNGSource) []Molecule {
	if len(genes) <= 1 {
		return genes
	}
	pos := rng.IntN(len(genes))
	out := make([]Molecule, 0, len(genes)-1)
	out = append(out, genes[:pos]...)
	out = append(out, genes[pos+1:]...)
	return out
}

// DuplicationOperator copies a contiguous random span and reinserts it
// immediately after the original, the classic gene-duplication event.
type DuplicationOperator struct {
	MaxSpan int
}

func (DuplicationOperator) Name() string { return "duplication" }

func (op DuplicationOperator) Mutate(genes []Molecule, rng RNGSource) []Molecule {
	if len(genes) == 0 {
		return genes
	}
	maxSpan := op.MaxSpan
	if maxSpan <= 0 || maxSpan > len(genes) {
		maxSpan = len(genes)
	}
	span := rng.IntN(maxSpan) + 1
	start := rng.IntN(len(genes) - span + 1)
	segment := append([]Molecule(nil), genes[start:start+span]...)
	out := make([]Molecule, 0, len(genes)+len(segment))
	out = append(out, genes[:start+span]...)
	out = append(out, segment...)
	out = append(out, genes[start+span:]...)
	return out
}

// RewriteNamespace XORs every label anchor's bit pattern in placements with
// mask, the namespace-rewriting step FORK applies so a child's jump targets
// don't collide with identically-coded siblings. It
// leaves NamespaceMask itself untouched — only the pattern each anchor
// matches against shifts, not which bits of the pattern are significant.
func RewriteNamespace(anchors []LabelAnchor, mask uint32) []LabelAnchor {
	out := make([]LabelAnchor, len(anchors))
	for i, a := range anchors {
		out[i] = LabelAnchor{
			Coord:         a.Coord,
			BitPattern:    a.BitPattern ^ mask,
			NamespaceMask: a.NamespaceMask,
		}
	}
	return out
}
