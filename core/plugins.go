package core

// RNGSource is the subset of math/rand/v2's *rand.Rand that plugin and
// instruction code depends on, named here so interfaces below don't each
// repeat the method set inline.
type RNGSource interface {
	Uint64() uint64
	IntN(n int) int
	Float64() float64
}

// InstructionInterceptor lets an operator veto or rewrite a planned Intent
// before it reaches Resolve (e.g. quarantining an opcode, rate-limiting
// FORK, localized radiation). Intercept returns nil to veto the Intent
// outright (it becomes Skip), or a (possibly rewritten) Intent to let it
// proceed.
type InstructionInterceptor interface {
	Intercept(tick uint64, org *Organism, intent *Intent) *Intent
}

// InterceptorChain runs a sequence of InstructionInterceptors in order,
// short-circuiting on the first veto.
type InterceptorChain []InstructionInterceptor

func (c InterceptorChain) Intercept(tick uint64, org *Organism, intent *Intent) *Intent {
	for _, step := range c {
		if intent == nil {
			return nil
		}
		intent = step.Intercept(tick, org, intent)
	}
	return intent
}

// NullInterceptor passes every Intent through unchanged, the default when
// no interception policy is configured.
type NullInterceptor struct{}

func (NullInterceptor) Intercept(_ uint64, _ *Organism, intent *Intent) *Intent { return intent }

// CellMutation is one world-cell write a plugin wants applied. Plugins never
// mutate the World themselves — they return mutations and the scheduler
// applies them, so every plugin write lands in the tick's change-set.
type CellMutation struct {
	Coord  Coord
	Mol    Molecule
	Owner  OrganismID
	Marker uint8
}

// ResourceDistributionPlugin periodically injects resources (typically
// ENERGY) into the world. Implementations must be a pure function of w,
// tick and rng; they must not retain cross-tick state outside rng's stream.
type ResourceDistributionPlugin interface {
	Distribute(w *World, tick uint64, rng RNGSource) []CellMutation
}

// NullResourceDistribution never injects anything, for worlds configured
// with a fixed resource budget.
type NullResourceDistribution struct{}

func (NullResourceDistribution) Distribute(_ *World, _ uint64, _ RNGSource) []CellMutation {
	return nil
}

// UniformEnergyFaucet drops a fixed number of ENERGY molecules of a fixed
// value onto uniformly random empty cells each tick it fires. A non-zero
// MaxWorldEnergy caps the free ENERGY lying in the world: the faucet stays
// shut while the current total is at or above it.
type UniformEnergyFaucet struct {
	DropsPerTick   int
	EnergyValue    int32
	EveryNTicks    uint64
	MaxWorldEnergy int64
}

func (f UniformEnergyFaucet) Distribute(w *World, tick uint64, rng RNGSource) []CellMutation {
	if f.EveryNTicks > 1 && tick%f.EveryNTicks != 0 {
		return nil
	}
	if f.MaxWorldEnergy > 0 && w.TotalEnergy() >= f.MaxWorldEnergy {
		return nil
	}
	drops := make([]CellMutation, 0, f.DropsPerTick)
	dims := w.Shape()
	for i := 0; i < f.DropsPerTick; i++ {
		coord := make(Coord, len(dims))
		for axis, extent := range dims {
			coord[axis] = int32(rng.IntN(extent))
		}
		if owner, _ := w.Owner(coord); owner != 0 {
			continue
		}
		if mol, ok := w.At(coord); !ok || !mol.IsEmpty() {
			continue
		}
		drops = append(drops, CellMutation{Coord: coord, Mol: Molecule{Type: MolEnergy, Value: f.EnergyValue}})
	}
	return drops
}

// DeathRecyclingPlugin decides what happens to a dead organism's remains.
// Implementations run in the Post phase, after the organism is marked dead,
// while its cells still carry its ownership.
type DeathRecyclingPlugin interface {
	Recycle(w *World, dead *Organism, tick uint64, rng RNGSource) []CellMutation
}

// LeaveRubbleRecycling keeps the organism's molecules exactly where they
// were: each owned cell simply loses its owner and marker, becoming ordinary
// unowned world content for others to scan, peek, or overwrite.
type LeaveRubbleRecycling struct{}

func (LeaveRubbleRecycling) Recycle(w *World, dead *Organism, _ uint64, _ RNGSource) []CellMutation {
	var muts []CellMutation
	for _, coord := range w.OwnedCells(dead.ID) {
		mol, ok := w.At(coord)
		if !ok {
			continue
		}
		muts = append(muts, CellMutation{Coord: coord, Mol: mol})
	}
	return muts
}

// ConvertToEnergyRecycling reclaims a dead organism's owned cells into
// unowned ENERGY molecules at the same coordinates, modeling thermodynamic
// decomposition rather than inert rubble.
type ConvertToEnergyRecycling struct {
	EnergyPerCell int32
}

func (c ConvertToEnergyRecycling) Recycle(w *World, dead *Organism, _ uint64, _ RNGSource) []CellMutation {
	var muts []CellMutation
	for _, coord := range w.OwnedCells(dead.ID) {
		muts = append(muts, CellMutation{Coord: coord, Mol: Molecule{Type: MolEnergy, Value: c.EnergyPerCell}})
	}
	return muts
}

// PluginSet bundles every pluggable subsystem the Scheduler consumes.
type PluginSet struct {
	Resources    ResourceDistributionPlugin
	Recycling    DeathRecyclingPlugin
	Interceptors InterceptorChain
	Mutations    *MutationRegistry
}

// DefaultPluginSet returns a harmless no-op plugin set: no resource
// injection, rubble-on-death, no interception, an empty mutation registry.
func DefaultPluginSet() PluginSet {
	return PluginSet{
		Resources:    NullResourceDistribution{},
		Recycling:    LeaveRubbleRecycling{},
		Interceptors: nil,
		Mutations:    NewMutationRegistry(),
	}
}
