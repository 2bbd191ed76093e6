package core

// OrganismLimits are the boot-time per-organism bounds from the
// configuration's organism-limits section.
type OrganismLimits struct {
	MaxEnergy         uint32
	MaxEntropy        uint32
	DataStackSize     int
	CallStackSize     int
	LocationStackSize int
	DataRegCount      int
	LocRegCount       int
	DPCount           int
}

// DefaultOrganismLimits is the stock register/stack sizing.
func DefaultOrganismLimits() OrganismLimits {
	return OrganismLimits{
		MaxEnergy:         1_000_000,
		MaxEntropy:         1_000,
		DataStackSize:     256,
		CallStackSize:     64,
		LocationStackSize: 64,
		DataRegCount:      8,
		LocRegCount:       4,
		DPCount:           1,
	}
}

// RegValue is the tagged union stored in a data register or on the data
// stack: a scalar Molecule or a vector Coord, never both.
type RegValue struct {
	IsVector bool
	Scalar   Molecule
	Vector   Coord
}

func scalarVal(m Molecule) RegValue  { return RegValue{Scalar: m} }
func vectorVal(c Coord) RegValue     { return RegValue{IsVector: true, Vector: c} }

// CallFrame is the return address plus the saved procedure-local register
// snapshot pushed by CALL and popped by RET.
type CallFrame struct {
	ReturnIP  Coord
	ReturnDV  Coord
	SavedProc [2]RegValue
}

// Organism is the VM state of a single embodied program: pointers,
// registers, stacks, energy, entropy, marker register, and liveness. It
// holds no World reference of its own — the scheduler lends the organism a
// read handle during Plan and a write handle during Execute, so there is
// no organism→world back-pointer to keep consistent.
type Organism struct {
	ID         OrganismID
	ParentID   OrganismID
	Generation int

	IP Coord
	DV Coord

	DPSet   []Coord
	ActiveDP int

	DataRegs        []RegValue
	ProcRegs        [2]RegValue
	FormalParamRegs [8]RegValue
	LocRegs         []Coord

	DataStack     []RegValue
	CallStack     []CallFrame
	LocationStack []Coord

	Energy    uint32
	Entropy   uint32
	MarkerReg uint8

	InitialIP    Coord
	BirthTick    uint64
	IsDead       bool
	PendingDeath bool
	DeathReason  string
	ErrorCount   uint64

	// Anchors is this organism's private label-anchor table, rewritten at
	// birth with the newborn's namespace mask. nil means "use the shared
	// artifact table" (genesis organisms before any FORK).
	Anchors []LabelAnchor

	limits OrganismLimits

	// fetchCursor advances along DV during a single instruction's operand
	// decode; it never mutates IP directly.
	fetchCursor Coord
}

// NewOrganism constructs a live organism at birth. dpSet is seeded with
// limits.DPCount copies of ip (every data pointer starts where the
// organism starts).
func NewOrganism(id, parentID OrganismID, generation int, ip, dv Coord, energy uint32, birthTick uint64, limits OrganismLimits) *Organism {
	dpSet := make([]Coord, limits.DPCount)
	for i := range dpSet {
		dpSet[i] = ip.Clone()
	}
	return &Organism{
		ID:              id,
		ParentID:        parentID,
		Generation:      generation,
		IP:              ip.Clone(),
		DV:              dv.Clone(),
		DPSet:           dpSet,
		ActiveDP:        0,
		DataRegs:        make([]RegValue, limits.DataRegCount),
		LocRegs:         make([]Coord, limits.LocRegCount),
		Energy:          energy,
		InitialIP:       ip.Clone(),
		BirthTick:       birthTick,
		limits:          limits,
	}
}

// ActiveDPCoord returns the coordinate of the currently active data
// pointer.
func (o *Organism) ActiveDPCoord() Coord { return o.DPSet[o.ActiveDP] }

// Limits returns the per-organism bounds this organism was built with, so
// FORK can hand a child the same limits without reaching into the scheduler.
func (o *Organism) Limits() OrganismLimits { return o.limits }

// CheckDeath evaluates the thermodynamic death invariant: energy==0
// or entropy>maxEntropy. It does not mutate IsDead — the scheduler's Post
// phase applies the result.
func (o *Organism) CheckDeath() (dead bool, reason string) {
	if o.Energy == 0 {
		return true, "energy-depleted"
	}
	if o.Entropy > o.limits.MaxEntropy {
		return true, "entropy-overflow"
	}
	if o.PendingDeath {
		return true, o.DeathReason
	}
	return false, ""
}

// ChargeEnergy deducts cost from ER, clamping at zero and flagging a
// pending death rather than going negative — the instruction proceeds and
// death is finalized in the Post phase. Refunds (negative
// cost, e.g. PEEK of ENERGY) clamp at MaxEnergy.
func (o *Organism) ChargeEnergy(cost int64) {
	if cost <= 0 {
		gained := uint64(o.Energy) + uint64(-cost)
		if ceiling := uint64(o.limits.MaxEnergy); o.limits.MaxEnergy > 0 && gained > ceiling {
			gained = ceiling
		}
		o.Energy = uint32(gained)
		return
	}
	if uint32(cost) >= o.Energy {
		o.Energy = 0
		o.PendingDeath = true
		o.DeathReason = "energy-depleted"
		return
	}
	o.Energy -= uint32(cost)
}

// ChargeEntropy applies an entropy delta, clamping at zero (entropy cannot
// go negative even though POKE's dissipation is modeled as a negative
// delta).
func (o *Organism) ChargeEntropy(delta int64) {
	if delta < 0 && uint32(-delta) > o.Entropy {
		o.Entropy = 0
		return
	}
	if delta < 0 {
		o.Entropy -= uint32(-delta)
		return
	}
	o.Entropy += uint32(delta)
}

func (o *Organism) PushData(v RegValue) error {
	if len(o.DataStack) >= o.limits.DataStackSize {
		return failf(0, FailStackOverflow, "data stack overflow")
	}
	o.DataStack = append(o.DataStack, v)
	return nil
}

func (o *Organism) PopData() (RegValue, error) {
	if len(o.DataStack) == 0 {
		return RegValue{}, failf(0, FailStackUnderflow, "data stack underflow")
	}
	v := o.DataStack[len(o.DataStack)-1]
	o.DataStack = o.DataStack[:len(o.DataStack)-1]
	return v, nil
}

func (o *Organism) PushCall(f CallFrame) error {
	if len(o.CallStack) >= o.limits.CallStackSize {
		return failf(0, FailStackOverflow, "call stack overflow")
	}
	o.CallStack = append(o.CallStack, f)
	return nil
}

func (o *Organism) PopCall() (CallFrame, error) {
	if len(o.CallStack) == 0 {
		return CallFrame{}, failf(0, FailStackUnderflow, "call stack underflow")
	}
	f := o.CallStack[len(o.CallStack)-1]
	o.CallStack = o.CallStack[:len(o.CallStack)-1]
	return f, nil
}

func (o *Organism) PushLocation(c Coord) error {
	if len(o.LocationStack) >= o.limits.LocationStackSize {
		return failf(0, FailStackOverflow, "location stack overflow")
	}
	o.LocationStack = append(o.LocationStack, c)
	return nil
}

func (o *Organism) PopLocation() (Coord, error) {
	if len(o.LocationStack) == 0 {
		return nil, failf(0, FailStackUnderflow, "location stack underflow")
	}
	c := o.LocationStack[len(o.LocationStack)-1]
	o.LocationStack = o.LocationStack[:len(o.LocationStack)-1]
	return c, nil
}

// Clone returns a deep copy of the organism, used by the scheduler to hand
// Plan a stable snapshot while a prior tick's Execute is still mutating the
// original (Plan never mutates World, but it may be scheduled ahead of
// Post's bookkeeping in a pipelined runner).
func (o *Organism) Clone() *Organism {
	c := *o
	c.IP = o.IP.Clone()
	c.DV = o.DV.Clone()
	c.DPSet = make([]Coord, len(o.DPSet))
	for i, d := range o.DPSet {
		c.DPSet[i] = d.Clone()
	}
	c.DataRegs = append([]RegValue(nil), o.DataRegs...)
	c.LocRegs = make([]Coord, len(o.LocRegs))
	for i, l := range o.LocRegs {
		c.LocRegs[i] = l.Clone()
	}
	c.DataStack = append([]RegValue(nil), o.DataStack...)
	c.CallStack = append([]CallFrame(nil), o.CallStack...)
	c.LocationStack = make([]Coord, len(o.LocationStack))
	for i, l := range o.LocationStack {
		c.LocationStack[i] = l.Clone()
	}
	c.Anchors = append([]LabelAnchor(nil), o.Anchors...)
	return &c
}
