package core

// Intent is the declarative record an organism's Plan phase produces:
// what it will read, what it will mutate, what it costs, and a
// closure that performs the mutation if and when Resolve lets it win.
type Intent struct {
	Organism OrganismID
	Opcode   Opcode

	ReadSet  []Coord
	WriteSet []Coord

	EnergyCost   int64
	EntropyDelta int64

	// Failed intents (InstructionFailure at Plan time) carry no mutation;
	// the scheduler charges errorPenaltyCost uniformly instead of
	// EnergyCost/EntropyDelta.
	Failed      bool
	FailureKind FailureKind

	// Skip marks a deliberate no-op Intent (e.g. a dead organism, or an
	// organism with no legal next instruction). It charges nothing.
	Skip bool

	// Execute performs the instruction's effect: register/stack mutation,
	// World mutation, or both. Never called for Failed or Skip intents, or
	// for intents that lost Resolve.
	Execute func(ec *ExecContext) error
}

// ExecContext is the write handle the scheduler lends to a winning Intent's
// Execute closure. It is never shared across organisms concurrently for
// the same organism, and World mutation is safe because Resolve already
// guaranteed write-set disjointness among winners.
type ExecContext struct {
	World  *World
	Org    *Organism
	Tick   uint64
	RNG    RNGSource
	Policy ThermodynamicPolicy
	Births *[]*PendingBirth
}

// PendingBirth is a FORK'd child awaiting Post-phase admission: ID
// assignment, gene mutation, namespace rewriting, and the marker-based bulk
// ownership transfer that completes reproduction.
type PendingBirth struct {
	Child  *Organism
	Parent OrganismID
	// MarkerToMove is the parent's MR at FORK time: every cell the parent
	// owns with this marker moves to the child, marker reset to 0.
	MarkerToMove uint8
}
