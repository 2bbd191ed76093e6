package core

func init() {
	Register(OpSCAN, &InstrDef{Name: "SCAN", Shape: ShapeRegister, Operands: 2, Bank: BankData, Plan: planSCAN})
	Register(OpSCNI, &InstrDef{Name: "SCNI", Shape: ShapeImmediate, Operands: -1, DimOperands: func(d int) int { return 1 + d }, Plan: planSCNI})
	Register(OpSCNS, &InstrDef{Name: "SCNS", Shape: ShapeStack, Operands: 1, Plan: planSCNS})

	Register(OpSPNP, &InstrDef{Name: "SPNP", Operands: 0, Plan: planNeighborScan(OpSPNP, "SPNP", func(pc *PlanContext, c Coord) bool {
		return pc.World.IsPassable(c, pc.Org.ID)
	})})
	Register(OpSNTF, &InstrDef{Name: "SNTF", Operands: 0, Plan: planNeighborScan(OpSNTF, "SNTF", func(pc *PlanContext, c Coord) bool {
		return pc.World.ClassifyOwnership(c, pc.Org.ID) == OwnForeign
	})})
	Register(OpSNTE, &InstrDef{Name: "SNTE", Operands: 0, Plan: planNeighborScan(OpSNTE, "SNTE", func(pc *PlanContext, c Coord) bool {
		mol, ok := pc.World.At(c)
		return ok && mol.Type == MolEnergy
	})})
}

func planSCAN(pc *PlanContext) (*Intent, error) {
	ops, err := literalOperands(pc, 2)
	if err != nil {
		return failIntent(OpSCAN, err)
	}
	advanceIP(pc.World, pc.Org, 2)
	dest, offsetReg := int(ops[0].Value), int(ops[1].Value)
	offset, err := regVector(pc.Org, offsetReg)
	if err != nil {
		return failIntent(OpSCAN, err)
	}
	return scanIntent(pc, "SCAN", OpSCAN, dest, offset)
}

func planSCNI(pc *PlanContext) (*Intent, error) {
	dims := pc.World.Dims()
	ops, err := literalOperands(pc, 1+dims)
	if err != nil {
		return failIntent(OpSCNI, err)
	}
	advanceIP(pc.World, pc.Org, 1+dims)
	dest := int(ops[0].Value)
	offset := make(Coord, dims)
	for i := 0; i < dims; i++ {
		offset[i] = ops[1+i].Value
	}
	return scanIntent(pc, "SCNI", OpSCNI, dest, offset)
}

func planSCNS(pc *PlanContext) (*Intent, error) {
	ops, err := literalOperands(pc, 1)
	if err != nil {
		return failIntent(OpSCNS, err)
	}
	advanceIP(pc.World, pc.Org, 1)
	offsetVal, err := pc.Org.PopData()
	if err != nil {
		return failIntent(OpSCNS, err)
	}
	if !offsetVal.IsVector {
		return failIntent(OpSCNS, failf(OpSCNS, FailTypeMismatch, "scns offset must be a vector"))
	}
	dest := int(ops[0].Value)
	return scanIntent(pc, "SCNS", OpSCNS, dest, offsetVal.Vector)
}

// scanIntent is PEEK's non-destructive sibling: it reads the adjacent
// molecule into dest without consuming it or touching ownership. Scanning an
// empty cell succeeds and yields the empty molecule.
func scanIntent(pc *PlanContext, name string, op Opcode, dest int, offset Coord) (*Intent, error) {
	target, err := adjacentTarget(pc, op, offset)
	if err != nil {
		return failIntent(op, err)
	}
	if dest < 0 || dest >= len(pc.Org.DataRegs) {
		return failIntent(op, failf(op, FailOutOfRange, "data register index out of range"))
	}
	mol, ok := pc.World.At(target)
	if !ok {
		return failIntent(op, failf(op, FailOutOfRange, "scan target out of range"))
	}
	ctx := PolicyContext{Ownership: pc.World.ClassifyOwnership(target, pc.Org.ID), MoleculeType: mol.Type}
	return buildIntent(pc, name, op, ctx, []Coord{target}, nil, func(ec *ExecContext) error {
		m, ok := ec.World.At(target)
		if !ok {
			return failf(op, FailOutOfRange, "scan target out of range")
		}
		return setReg(ec.Org, dest, scalarVal(m))
	}), nil
}

// planNeighborScan builds a fixed-predicate neighbor scan: the resulting
// bitmask (bit 2d for +1 along axis d, bit 2d+1 for -1) is pushed onto the
// data stack as a scalar. Worlds where 2n exceeds the value bits are not
// refused at boot: NewWorld only disables scans for them, and the
// ScansEnabled check here then fails every such scan.
func planNeighborScan(op Opcode, name string, predicate func(pc *PlanContext, c Coord) bool) func(pc *PlanContext) (*Intent, error) {
	return func(pc *PlanContext) (*Intent, error) {
		advanceIP(pc.World, pc.Org, 0)
		if !pc.World.ScansEnabled() {
			return failIntent(op, failf(op, FailTypeMismatch, "neighbor scans disabled for this world's dimensionality"))
		}
		center := pc.Org.ActiveDPCoord()
		mask := pc.World.NeighborMask(center, func(c Coord) bool { return predicate(pc, c) })
		return buildIntent(pc, name, op, PolicyContext{}, nil, nil, func(ec *ExecContext) error {
			return ec.Org.PushData(scalarVal(Molecule{Type: MolData, Value: int32(mask)}))
		}), nil
	}
}
