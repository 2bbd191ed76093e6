package core

import (
	"sync"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/bits-and-blooms/bitset"
)

// WorldConfig is the boot-time shape of a World: per-axis extents and
// topology plus the molecule bit-width split.
type WorldConfig struct {
	Shape           []int
	ToroidalPerAxis []bool
	ValueBits       uint
	TypeBits        uint
}

// cell is the flat, cache-local storage record: a Molecule plus the
// ownership and marker metadata that are properties of the cell, not the
// molecule.
type cell struct {
	mol    Molecule
	owner  OrganismID
	marker uint8 // 4 bits, 0-15
}

// World is the n-dimensional toroidal-or-bounded grid of molecules.
// Storage is a flat contiguous slice indexed by row-major coordinate.
// Reads are concurrent-safe via RWMutex (Plan phase fans out across
// organisms); mutation is restricted by scheduler discipline to Execute and
// Post, taking the write lock.
type World struct {
	mu sync.RWMutex

	shape    []int
	toroidal []bool
	strides  []int
	size     int
	valueMax int32
	valueMin int32

	cells []cell

	// occupancy tracks, per molecule type, the linear indices of non-empty
	// cells of that type. Resource-distribution and death/recycling
	// plugins enumerate cells of a type (e.g. "all ENERGY cells") without a
	// full world scan; CODE's bitmap only tracks non-empty CODE cells
	// (value != 0), since all-zero CODE is the empty-cell definition.
	occupancy [4]*roaring.Bitmap

	scansEnabled bool // false when 2*len(shape) > valueBits
}

// NewWorld validates cfg and constructs an empty World. Invalid shapes are a
// ConfigurationError, fatal to the process before the first tick.
func NewWorld(cfg WorldConfig) (*World, error) {
	if len(cfg.Shape) == 0 {
		return nil, configErrf("world shape must have at least one axis")
	}
	if len(cfg.ToroidalPerAxis) != len(cfg.Shape) {
		return nil, configErrf("toroidalPerAxis length %d does not match shape length %d", len(cfg.ToroidalPerAxis), len(cfg.Shape))
	}
	size := 1
	strides := make([]int, len(cfg.Shape))
	for i, d := range cfg.Shape {
		if d <= 0 {
			return nil, configErrf("axis %d has non-positive size %d", i, d)
		}
		strides[i] = size
		size *= d
	}
	if cfg.ValueBits == 0 || cfg.ValueBits > 31 {
		return nil, configErrf("molecule.valueBits must be in [1,31], got %d", cfg.ValueBits)
	}
	if cfg.TypeBits < 2 {
		return nil, configErrf("molecule.typeBits must be at least 2 to encode the four primary types, got %d", cfg.TypeBits)
	}

	w := &World{
		shape:        append([]int(nil), cfg.Shape...),
		toroidal:     append([]bool(nil), cfg.ToroidalPerAxis...),
		strides:      strides,
		size:         size,
		cells:        make([]cell, size),
		valueMax:     int32(1)<<(cfg.ValueBits-1) - 1,
		valueMin:     -(int32(1) << (cfg.ValueBits - 1)),
		scansEnabled: uint(2*len(cfg.Shape)) <= cfg.ValueBits,
	}
	for i := range w.occupancy {
		w.occupancy[i] = roaring.New()
	}
	return w, nil
}

// Dims returns the number of axes.
func (w *World) Dims() int { return len(w.shape) }

// Shape returns a copy of the per-axis extents.
func (w *World) Shape() []int { return append([]int(nil), w.shape...) }

// ScansEnabled reports whether neighbor-scan instructions (SPNP/SNT*) may
// be dispatched for this world; when 2*dims exceeds the molecule value
// bits the mask cannot be represented and every scan fails instead.
func (w *World) ScansEnabled() bool { return w.scansEnabled }

// normalize wraps toroidal axes and rejects out-of-range non-toroidal axes.
func (w *World) normalize(coord Coord) (Coord, bool) {
	if len(coord) != len(w.shape) {
		return nil, false
	}
	out := make(Coord, len(coord))
	for i, v := range coord {
		d := int32(w.shape[i])
		if w.toroidal[i] {
			v %= d
			if v < 0 {
				v += d
			}
			out[i] = v
		} else {
			if v < 0 || v >= d {
				return nil, false
			}
			out[i] = v
		}
	}
	return out, true
}

func (w *World) linearIndex(coord Coord) (int, bool) {
	norm, ok := w.normalize(coord)
	if !ok {
		return 0, false
	}
	idx := 0
	for i, v := range norm {
		idx += int(v) * w.strides[i]
	}
	return idx, true
}

// At returns the molecule stored at coord. ok is false if coord is
// out-of-range on a non-toroidal axis.
func (w *World) At(coord Coord) (Molecule, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	idx, ok := w.linearIndex(coord)
	if !ok {
		return Molecule{}, false
	}
	return w.cells[idx].mol, true
}

// Owner returns the owning organism (0 = unowned) at coord.
func (w *World) Owner(coord Coord) (OrganismID, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	idx, ok := w.linearIndex(coord)
	if !ok {
		return 0, false
	}
	return w.cells[idx].owner, true
}

// Marker returns the cell's 4-bit marker at coord.
func (w *World) Marker(coord Coord) (uint8, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	idx, ok := w.linearIndex(coord)
	if !ok {
		return 0, false
	}
	return w.cells[idx].marker, true
}

// ClassifyOwnership classifies coord relative to byOwner: Self if owned by
// byOwner, Unowned if ownerId==0, Foreign otherwise (including the parent's
// cells relative to a freshly forked child).
func (w *World) ClassifyOwnership(coord Coord, byOwner OrganismID) OwnershipClass {
	owner, ok := w.Owner(coord)
	if !ok {
		return OwnForeign
	}
	switch {
	case owner == 0:
		return OwnUnowned
	case owner == byOwner:
		return OwnSelf
	default:
		return OwnForeign
	}
}

// IsPassable reports whether coord is empty or owned by byOwner.
func (w *World) IsPassable(coord Coord, byOwner OrganismID) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	idx, ok := w.linearIndex(coord)
	if !ok {
		return false
	}
	c := w.cells[idx]
	return c.mol.IsEmpty() && c.owner == 0 || c.owner == byOwner
}

func (w *World) setOccupancy(idx int, oldMol, newMol Molecule) {
	if !oldMol.IsEmpty() {
		w.occupancy[oldMol.Type].Remove(uint32(idx))
	}
	if !newMol.IsEmpty() {
		w.occupancy[newMol.Type].Add(uint32(idx))
	}
}

// WriteEmpty writes mol into an empty cell at coord with the given owner
// and marker, atomically within the caller's Execute-phase step. It fails
// with FailOccupiedCell if the cell is not empty.
func (w *World) WriteEmpty(coord Coord, mol Molecule, owner OrganismID, marker uint8) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	idx, ok := w.linearIndex(coord)
	if !ok {
		return failf(0, FailOutOfRange, "writeEmpty out of range")
	}
	c := &w.cells[idx]
	if !c.mol.IsEmpty() || c.owner != 0 {
		return failf(0, FailOccupiedCell, "writeEmpty target occupied")
	}
	if owner == 0 {
		marker = 0 // an unowned cell never carries a marker
	}
	w.setOccupancy(idx, c.mol, mol)
	c.mol = mol
	c.owner = owner
	c.marker = marker & 0xF
	return nil
}

// Consume reads and clears the molecule at coord, clearing ownership. It
// fails with FailEmptyCell if the cell is already empty.
func (w *World) Consume(coord Coord, byOwner OrganismID) (Molecule, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	idx, ok := w.linearIndex(coord)
	if !ok {
		return Molecule{}, failf(0, FailOutOfRange, "consume out of range")
	}
	c := &w.cells[idx]
	if c.mol.IsEmpty() {
		return Molecule{}, failf(0, FailEmptyCell, "consume of empty cell")
	}
	mol := c.mol
	w.setOccupancy(idx, c.mol, EmptyMolecule)
	c.mol = EmptyMolecule
	c.owner = 0
	c.marker = 0
	return mol, nil
}

// Swap performs Consume+WriteEmpty atomically: it returns whatever molecule
// occupied coord (possibly empty) and replaces it with mol/owner/marker.
// Unlike WriteEmpty, Swap never fails with FailOccupiedCell.
func (w *World) Swap(coord Coord, mol Molecule, owner OrganismID, marker uint8) (Molecule, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	idx, ok := w.linearIndex(coord)
	if !ok {
		return Molecule{}, failf(0, FailOutOfRange, "swap out of range")
	}
	c := &w.cells[idx]
	old := c.mol
	if owner == 0 {
		marker = 0
	}
	w.setOccupancy(idx, c.mol, mol)
	c.mol = mol
	c.owner = owner
	c.marker = marker & 0xF
	return old, nil
}

// SeedPlacement writes an initial molecule placement from a ProgramArtifact
// during genesis seeding. It bypasses the occupied-cell check (the world is
// assumed empty at genesis) but still validates bounds.
func (w *World) SeedPlacement(coord Coord, mol Molecule, owner OrganismID, marker uint8) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	idx, ok := w.linearIndex(coord)
	if !ok {
		return configErrf("seed placement %v out of range", coord)
	}
	if owner == 0 {
		marker = 0 // an unowned cell never carries a marker
	}
	c := &w.cells[idx]
	w.setOccupancy(idx, c.mol, mol)
	c.mol = mol
	c.owner = owner
	c.marker = marker & 0xF
	return nil
}

// CellsOfType returns the linear indices of every non-empty cell of the
// given type, as a sorted slice. Used by resource-distribution and
// death/recycling plugins to avoid a full world scan.
func (w *World) CellsOfType(t MoleculeType) []uint32 {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.occupancy[t].ToArray()
}

// TotalEnergy sums the value of every ENERGY molecule in the world, via the
// per-type occupancy index rather than a full scan. Together with the sum
// of organism ERs this is the closed system's energy, which only resource
// distribution may change.
func (w *World) TotalEnergy() int64 {
	w.mu.RLock()
	defer w.mu.RUnlock()
	var total int64
	it := w.occupancy[MolEnergy].Iterator()
	for it.HasNext() {
		total += int64(w.cells[it.Next()].mol.Value)
	}
	return total
}

// OwnedCells returns the coordinates of every cell owned by owner, in
// ascending row-major order. FORK's marker-based ownership transfer and the
// death/recycling plugins both enumerate a single organism's footprint with
// this.
func (w *World) OwnedCells(owner OrganismID) []Coord {
	w.mu.RLock()
	defer w.mu.RUnlock()
	var out []Coord
	for idx := range w.cells {
		if w.cells[idx].owner == owner {
			out = append(out, w.CoordOf(uint32(idx)))
		}
	}
	return out
}

// CoordOf converts a linear index back into a coordinate vector.
func (w *World) CoordOf(idx uint32) Coord {
	out := make(Coord, len(w.shape))
	rem := int(idx)
	for i := len(w.shape) - 1; i >= 0; i-- {
		out[i] = int32(rem / w.strides[i])
		rem %= w.strides[i]
	}
	return out
}

// NeighborMask builds the axis-aligned neighbor bitmask the neighbor-scan
// family emits: for dimension d, bit 2d is the +1 direction and bit
// 2d+1 is -1. predicate decides whether a given neighbor coordinate sets its
// bit. The runtime never calls this when !ScansEnabled().
func (w *World) NeighborMask(center Coord, predicate func(Coord) bool) uint64 {
	bs := bitset.New(uint(2 * len(w.shape)))
	for axis := range w.shape {
		for _, sign := range [2]int32{1, -1} {
			delta := make(Coord, len(w.shape))
			delta[axis] = sign
			n := center.Add(delta)
			norm, ok := w.normalize(n)
			if !ok {
				continue
			}
			if predicate(norm) {
				bit := uint(2*axis)
				if sign < 0 {
					bit++
				}
				bs.Set(bit)
			}
		}
	}
	words := bs.Bytes()
	if len(words) == 0 {
		return 0
	}
	return words[0]
}

// Normalize exposes the topology-aware wrap/reject used internally for
// cell addressing, so VM code can keep IP/DV/DP coordinates canonical
// without reaching into World internals.
func (w *World) Normalize(coord Coord) (Coord, bool) { return w.normalize(coord) }

// ValueRange returns the legal [min,max] range for a Molecule.Value under
// this world's configured valueBits, used by arithmetic instructions to
// decide overflow behavior is simply wraparound at the configured width.
func (w *World) ValueRange() (min, max int32) { return w.valueMin, w.valueMax }
