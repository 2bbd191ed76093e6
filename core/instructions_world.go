package core

func init() {
	Register(OpPEEK, &InstrDef{Name: "PEEK", Shape: ShapeRegister, Operands: 2, Bank: BankData, Plan: planPEEK})
	Register(OpPEKI, &InstrDef{Name: "PEKI", Shape: ShapeImmediate, Operands: -1, DimOperands: func(d int) int { return 1 + d }, Plan: planPEKI})
	Register(OpPEKS, &InstrDef{Name: "PEKS", Shape: ShapeStack, Operands: 1, Plan: planPEKS})

	Register(OpPOKE, &InstrDef{Name: "POKE", Shape: ShapeRegister, Operands: 2, Bank: BankData, Plan: planPOKE})
	Register(OpPOKI, &InstrDef{Name: "POKI", Shape: ShapeImmediate, Operands: -1, DimOperands: func(d int) int { return 1 + d }, Plan: planPOKI})
	Register(OpPOKS, &InstrDef{Name: "POKS", Shape: ShapeStack, Operands: 1, Plan: planPOKS})

	Register(OpPPK, &InstrDef{Name: "PPK", Shape: ShapeRegister, Operands: 3, Bank: BankData, Plan: planPPK})
	Register(OpPPKI, &InstrDef{Name: "PPKI", Shape: ShapeImmediate, Operands: -1, DimOperands: func(d int) int { return 2 + d }, Plan: planPPKI})
	Register(OpPPKS, &InstrDef{Name: "PPKS", Shape: ShapeStack, Operands: 2, Plan: planPPKS})

	Register(OpSEEK, &InstrDef{Name: "SEEK", Shape: ShapeRegister, Operands: 1, Bank: BankData, Plan: planSEEK})
}

// adjacentTarget validates that offset is a unit vector — world interaction
// addresses adjacent cells only — and resolves it relative to the organism's
// active data pointer.
func adjacentTarget(pc *PlanContext, op Opcode, offset Coord) (Coord, error) {
	if len(offset) != pc.World.Dims() {
		return nil, failf(op, FailTypeMismatch, "offset dimensionality does not match world")
	}
	if !offset.IsUnit() {
		return nil, failf(op, FailNonUnitVector, "world access offset must be a unit vector")
	}
	target, ok := pc.World.Normalize(pc.Org.ActiveDPCoord().Add(offset))
	if !ok {
		return nil, failf(op, FailOutOfRange, "world access target out of range")
	}
	return target, nil
}

func planPEEK(pc *PlanContext) (*Intent, error) {
	ops, err := literalOperands(pc, 2)
	if err != nil {
		return failIntent(OpPEEK, err)
	}
	advanceIP(pc.World, pc.Org, 2)
	dest, offsetReg := int(ops[0].Value), int(ops[1].Value)
	offset, err := regVector(pc.Org, offsetReg)
	if err != nil {
		return failIntent(OpPEEK, err)
	}
	return peekIntent(pc, "PEEK", OpPEEK, dest, offset)
}

func planPEKI(pc *PlanContext) (*Intent, error) {
	dims := pc.World.Dims()
	ops, err := literalOperands(pc, 1+dims)
	if err != nil {
		return failIntent(OpPEKI, err)
	}
	advanceIP(pc.World, pc.Org, 1+dims)
	dest := int(ops[0].Value)
	offset := make(Coord, dims)
	for i := 0; i < dims; i++ {
		offset[i] = ops[1+i].Value
	}
	return peekIntent(pc, "PEKI", OpPEKI, dest, offset)
}

func planPEKS(pc *PlanContext) (*Intent, error) {
	ops, err := literalOperands(pc, 1)
	if err != nil {
		return failIntent(OpPEKS, err)
	}
	advanceIP(pc.World, pc.Org, 1)
	offsetVal, err := pc.Org.PopData()
	if err != nil {
		return failIntent(OpPEKS, err)
	}
	if !offsetVal.IsVector {
		return failIntent(OpPEKS, failf(OpPEKS, FailTypeMismatch, "peeks offset must be a vector"))
	}
	dest := int(ops[0].Value)
	return peekIntent(pc, "PEKS", OpPEKS, dest, offsetVal.Vector)
}

// peekIntent consumes the adjacent molecule: the cell becomes empty
// and unowned, an ENERGY molecule's value is absorbed into ER, and the
// consumed molecule lands in dest.
func peekIntent(pc *PlanContext, name string, op Opcode, dest int, offset Coord) (*Intent, error) {
	target, err := adjacentTarget(pc, op, offset)
	if err != nil {
		return failIntent(op, err)
	}
	if dest < 0 || dest >= len(pc.Org.DataRegs) {
		return failIntent(op, failf(op, FailOutOfRange, "data register index out of range"))
	}
	mol, ok := pc.World.At(target)
	if !ok {
		return failIntent(op, failf(op, FailOutOfRange, "peek target out of range"))
	}
	if mol.IsEmpty() {
		return failIntent(op, failf(op, FailEmptyCell, "peek of empty cell"))
	}
	ownership := pc.World.ClassifyOwnership(target, pc.Org.ID)
	ctx := PolicyContext{Ownership: ownership, MoleculeType: mol.Type}
	return buildIntent(pc, name, op, ctx, []Coord{target}, []Coord{target}, func(ec *ExecContext) error {
		m, err := ec.World.Consume(target, ec.Org.ID)
		if err != nil {
			return err
		}
		if m.Type == MolEnergy {
			ec.Org.ChargeEnergy(-int64(m.Value))
		}
		return setReg(ec.Org, dest, scalarVal(m))
	}), nil
}

func planPOKE(pc *PlanContext) (*Intent, error) {
	ops, err := literalOperands(pc, 2)
	if err != nil {
		return failIntent(OpPOKE, err)
	}
	advanceIP(pc.World, pc.Org, 2)
	src, offsetReg := int(ops[0].Value), int(ops[1].Value)
	offset, err := regVector(pc.Org, offsetReg)
	if err != nil {
		return failIntent(OpPOKE, err)
	}
	return pokeIntent(pc, "POKE", OpPOKE, src, offset)
}

func planPOKI(pc *PlanContext) (*Intent, error) {
	dims := pc.World.Dims()
	ops, err := literalOperands(pc, 1+dims)
	if err != nil {
		return failIntent(OpPOKI, err)
	}
	advanceIP(pc.World, pc.Org, 1+dims)
	src := int(ops[0].Value)
	offset := make(Coord, dims)
	for i := 0; i < dims; i++ {
		offset[i] = ops[1+i].Value
	}
	return pokeIntent(pc, "POKI", OpPOKI, src, offset)
}

func planPOKS(pc *PlanContext) (*Intent, error) {
	ops, err := literalOperands(pc, 1)
	if err != nil {
		return failIntent(OpPOKS, err)
	}
	advanceIP(pc.World, pc.Org, 1)
	offsetVal, err := pc.Org.PopData()
	if err != nil {
		return failIntent(OpPOKS, err)
	}
	if !offsetVal.IsVector {
		return failIntent(OpPOKS, failf(OpPOKS, FailTypeMismatch, "pokes offset must be a vector"))
	}
	src := int(ops[0].Value)
	return pokeIntent(pc, "POKS", OpPOKS, src, offsetVal.Vector)
}

// pokeIntent writes the source molecule into an empty adjacent cell, taking
// ownership and stamping the organism's current MR into the cell's marker.
func pokeIntent(pc *PlanContext, name string, op Opcode, src int, offset Coord) (*Intent, error) {
	target, err := adjacentTarget(pc, op, offset)
	if err != nil {
		return failIntent(op, err)
	}
	mol, err := regScalar(pc.Org, src)
	if err != nil {
		return failIntent(op, err)
	}
	if existing, ok := pc.World.At(target); !ok {
		return failIntent(op, failf(op, FailOutOfRange, "poke target out of range"))
	} else if !existing.IsEmpty() {
		return failIntent(op, failf(op, FailOccupiedCell, "poke into occupied cell"))
	}
	ctx := PolicyContext{Ownership: pc.World.ClassifyOwnership(target, pc.Org.ID), MoleculeType: mol.Type}
	return buildIntent(pc, name, op, ctx, nil, []Coord{target}, func(ec *ExecContext) error {
		v, err := regScalar(ec.Org, src)
		if err != nil {
			return err
		}
		return ec.World.WriteEmpty(target, v, ec.Org.ID, ec.Org.MarkerReg)
	}), nil
}

func planPPK(pc *PlanContext) (*Intent, error) {
	ops, err := literalOperands(pc, 3)
	if err != nil {
		return failIntent(OpPPK, err)
	}
	advanceIP(pc.World, pc.Org, 3)
	src, oldDest, offsetReg := int(ops[0].Value), int(ops[1].Value), int(ops[2].Value)
	offset, err := regVector(pc.Org, offsetReg)
	if err != nil {
		return failIntent(OpPPK, err)
	}
	return ppkIntent(pc, "PPK", OpPPK, src, oldDest, offset)
}

func planPPKI(pc *PlanContext) (*Intent, error) {
	dims := pc.World.Dims()
	ops, err := literalOperands(pc, 2+dims)
	if err != nil {
		return failIntent(OpPPKI, err)
	}
	advanceIP(pc.World, pc.Org, 2+dims)
	src, oldDest := int(ops[0].Value), int(ops[1].Value)
	offset := make(Coord, dims)
	for i := 0; i < dims; i++ {
		offset[i] = ops[2+i].Value
	}
	return ppkIntent(pc, "PPKI", OpPPKI, src, oldDest, offset)
}

func planPPKS(pc *PlanContext) (*Intent, error) {
	ops, err := literalOperands(pc, 2)
	if err != nil {
		return failIntent(OpPPKS, err)
	}
	advanceIP(pc.World, pc.Org, 2)
	offsetVal, err := pc.Org.PopData()
	if err != nil {
		return failIntent(OpPPKS, err)
	}
	if !offsetVal.IsVector {
		return failIntent(OpPPKS, failf(OpPPKS, FailTypeMismatch, "ppks offset must be a vector"))
	}
	src, oldDest := int(ops[0].Value), int(ops[1].Value)
	return ppkIntent(pc, "PPKS", OpPPKS, src, oldDest, offsetVal.Vector)
}

// ppkIntent atomically swaps src's molecule into target and the previous
// occupant of target into oldDest, via World.Swap — unlike the POKE family,
// it never fails with FailOccupiedCell.
func ppkIntent(pc *PlanContext, name string, op Opcode, src, oldDest int, offset Coord) (*Intent, error) {
	target, err := adjacentTarget(pc, op, offset)
	if err != nil {
		return failIntent(op, err)
	}
	if _, err := regScalar(pc.Org, src); err != nil {
		return failIntent(op, err)
	}
	if oldDest < 0 || oldDest >= len(pc.Org.DataRegs) {
		return failIntent(op, failf(op, FailOutOfRange, "data register index out of range"))
	}
	ownership := pc.World.ClassifyOwnership(target, pc.Org.ID)
	ctx := PolicyContext{Ownership: ownership}
	return buildIntent(pc, name, op, ctx, []Coord{target}, []Coord{target}, func(ec *ExecContext) error {
		v, err := regScalar(ec.Org, src)
		if err != nil {
			return err
		}
		old, err := ec.World.Swap(target, v, ec.Org.ID, ec.Org.MarkerReg)
		if err != nil {
			return err
		}
		return setReg(ec.Org, oldDest, scalarVal(old))
	}), nil
}

// planSEEK moves the active DP by a unit vector iff the target is passable
// (empty or self-owned).
func planSEEK(pc *PlanContext) (*Intent, error) {
	ops, err := literalOperands(pc, 1)
	if err != nil {
		return failIntent(OpSEEK, err)
	}
	advanceIP(pc.World, pc.Org, 1)
	offsetReg := int(ops[0].Value)
	offset, err := regVector(pc.Org, offsetReg)
	if err != nil {
		return failIntent(OpSEEK, err)
	}
	target, err := adjacentTarget(pc, OpSEEK, offset)
	if err != nil {
		return failIntent(OpSEEK, err)
	}
	if !pc.World.IsPassable(target, pc.Org.ID) {
		return failIntent(OpSEEK, failf(OpSEEK, FailNotPassable, "seek target is not passable"))
	}
	return buildIntent(pc, "SEEK", OpSEEK, PolicyContext{}, []Coord{target}, nil, func(ec *ExecContext) error {
		if !ec.World.IsPassable(target, ec.Org.ID) {
			return failf(OpSEEK, FailNotPassable, "seek target is not passable")
		}
		ec.Org.DPSet[ec.Org.ActiveDP] = target
		return nil
	}), nil
}
