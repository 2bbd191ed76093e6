package core

import "fmt"

// MoleculeType is the runtime type tag of a Molecule. The compiler's
// LABEL/LABELREF/REGISTER tags never reach the World at runtime — only the
// four primary types are stored in cells.
type MoleculeType uint8

const (
	MolCode MoleculeType = iota
	MolData
	MolEnergy
	MolStructure
)

func (t MoleculeType) String() string {
	switch t {
	case MolCode:
		return "CODE"
	case MolData:
		return "DATA"
	case MolEnergy:
		return "ENERGY"
	case MolStructure:
		return "STRUCTURE"
	default:
		return fmt.Sprintf("MoleculeType(%d)", uint8(t))
	}
}

// Molecule is the fixed-width record stored in a World cell. Value occupies
// whatever bit-width the deployment's Config.Molecule.ValueBits specifies;
// the runtime itself treats it as a plain int32 and leaves range-enforcement
// to the boot-time ConfigurationError check in NewWorld.
type Molecule struct {
	Type  MoleculeType
	Value int32
}

// EmptyMolecule is CODE, value 0 — the molecule an empty cell holds.
var EmptyMolecule = Molecule{Type: MolCode, Value: 0}

func (m Molecule) IsEmpty() bool { return m.Type == MolCode && m.Value == 0 }

// OrganismID uniquely and monotonically identifies an organism. 0 means
// "unowned" when used as a cell owner.
type OrganismID uint64

// Coord is an n-dimensional integer coordinate or direction vector. Callers
// must not mutate a Coord obtained from World/Organism state in place;
// treat it as a value and use Coord.Clone when building a derived vector.
type Coord []int32

// Clone returns an independent copy of c.
func (c Coord) Clone() Coord {
	out := make(Coord, len(c))
	copy(out, c)
	return out
}

// IsUnit reports whether c has exactly one nonzero component equal to ±1,
// the invariant required of a direction vector (DV).
func (c Coord) IsUnit() bool {
	nonzero := 0
	for _, v := range c {
		switch v {
		case 0:
		case 1, -1:
			nonzero++
		default:
			return false
		}
	}
	return nonzero == 1
}

// UnitAxis returns the axis and sign of a unit vector. Callers must check
// IsUnit first.
func (c Coord) UnitAxis() (axis int, sign int32) {
	for i, v := range c {
		if v != 0 {
			return i, v
		}
	}
	return -1, 0
}

// Add returns the component-wise sum of c and o. Both must share length.
func (c Coord) Add(o Coord) Coord {
	out := make(Coord, len(c))
	for i := range c {
		out[i] = c[i] + o[i]
	}
	return out
}

// Sub returns the component-wise difference c - o.
func (c Coord) Sub(o Coord) Coord {
	out := make(Coord, len(c))
	for i := range c {
		out[i] = c[i] - o[i]
	}
	return out
}

// Equal reports whether c and o have identical components.
func (c Coord) Equal(o Coord) bool {
	if len(c) != len(o) {
		return false
	}
	for i := range c {
		if c[i] != o[i] {
			return false
		}
	}
	return true
}

// Dot is the scalar dot product of c and o.
func (c Coord) Dot(o Coord) int64 {
	var sum int64
	for i := range c {
		sum += int64(c[i]) * int64(o[i])
	}
	return sum
}

// Cross2D is the scalar 2D cross product (c.x*o.y - c.y*o.x); both vectors
// must be 2-dimensional. Callers are expected to validate dimensionality
// before calling — used only from the VADD/VCROSS instruction semantics
// which already reject non-2D operands as an InstructionFailure.
func (c Coord) Cross2D(o Coord) int64 {
	return int64(c[0])*int64(o[1]) - int64(c[1])*int64(o[0])
}

// OwnershipClass is the result of World.classifyOwnership.
type OwnershipClass uint8

const (
	OwnSelf OwnershipClass = iota
	OwnForeign
	OwnUnowned
)

func (c OwnershipClass) String() string {
	switch c {
	case OwnSelf:
		return "self"
	case OwnForeign:
		return "foreign"
	default:
		return "unowned"
	}
}
