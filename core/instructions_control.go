package core

func init() {
	Register(OpJMPI, &InstrDef{Name: "JMPI", Shape: ShapeImmediate, Operands: 2, Plan: planJump(OpJMPI, "JMPI", fetchPatternImmediate)})
	Register(OpJMPR, &InstrDef{Name: "JMPR", Shape: ShapeRegister, Operands: 2, Bank: BankData, Plan: planJump(OpJMPR, "JMPR", fetchPatternRegister)})
	Register(OpJMPS, &InstrDef{Name: "JMPS", Shape: ShapeStack, Operands: 0, Plan: planJump(OpJMPS, "JMPS", fetchPatternStack)})

	Register(OpCALL, &InstrDef{Name: "CALL", Shape: ShapeImmediate, Operands: 2, Plan: planCALL})
	Register(OpRET, &InstrDef{Name: "RET", Operands: 0, Plan: planRET})

	Register(OpIFM, &InstrDef{Name: "IFM", Shape: ShapeRegister, Operands: 1, Bank: BankData, Plan: planCellCond(OpIFM, "IFM", false, predOccupied)})
	Register(OpNIFM, &InstrDef{Name: "NIFM", Shape: ShapeRegister, Operands: 1, Bank: BankData, Plan: planCellCond(OpNIFM, "NIFM", true, predOccupied)})
	Register(OpIFP, &InstrDef{Name: "IFP", Shape: ShapeRegister, Operands: 1, Bank: BankData, Plan: planCellCond(OpIFP, "IFP", false, predPassable)})
	Register(OpNIFP, &InstrDef{Name: "NIFP", Shape: ShapeRegister, Operands: 1, Bank: BankData, Plan: planCellCond(OpNIFP, "NIFP", true, predPassable)})
	Register(OpIFF, &InstrDef{Name: "IFF", Shape: ShapeRegister, Operands: 1, Bank: BankData, Plan: planCellCond(OpIFF, "IFF", false, predForeign)})
	Register(OpNIFF, &InstrDef{Name: "NIFF", Shape: ShapeRegister, Operands: 1, Bank: BankData, Plan: planCellCond(OpNIFF, "NIFF", true, predForeign)})
	Register(OpIFV, &InstrDef{Name: "IFV", Shape: ShapeRegister, Operands: 1, Bank: BankData, Plan: planCellCond(OpIFV, "IFV", false, predVacant)})
	Register(OpNIFV, &InstrDef{Name: "NIFV", Shape: ShapeRegister, Operands: 1, Bank: BankData, Plan: planCellCond(OpNIFV, "NIFV", true, predVacant)})

	Register(OpSKLS, &InstrDef{Name: "SKLS", Shape: ShapeStack, Operands: 0, Plan: planSKLS})
	Register(OpSKLR, &InstrDef{Name: "SKLR", Shape: ShapeRegister, Operands: 1, Bank: BankLoc, Plan: planSKLR})
}

// skipNextInstruction advances past whatever instruction currently sits at
// org.IP without executing it, by peeking its opcode's registered operand
// count — the same decode-time arithmetic advanceIP always uses, just
// applied to the instruction after this one instead of this one.
func skipNextInstruction(pc *PlanContext) {
	cell, ok := pc.World.At(pc.Org.IP)
	operands := 0
	if ok {
		if def, found := Lookup(Opcode(cell.Value)); found {
			operands = def.operandCount(pc.World.Dims())
		}
	}
	advanceIP(pc.World, pc.Org, operands)
}

// Cell predicates for the conditional family: each inspects the
// neighbor addressed by a unit vector relative to the active DP.
type cellPred func(pc *PlanContext, target Coord) bool

func predOccupied(pc *PlanContext, target Coord) bool {
	mol, ok := pc.World.At(target)
	return ok && !mol.IsEmpty()
}

func predPassable(pc *PlanContext, target Coord) bool {
	return pc.World.IsPassable(target, pc.Org.ID)
}

func predForeign(pc *PlanContext, target Coord) bool {
	return pc.World.ClassifyOwnership(target, pc.Org.ID) == OwnForeign
}

func predVacant(pc *PlanContext, target Coord) bool {
	mol, ok := pc.World.At(target)
	if !ok {
		return false
	}
	owner, _ := pc.World.Owner(target)
	return mol.IsEmpty() && owner == 0
}

// planCellCond builds a conditional-skip instruction: the single operand is
// a data register holding a unit offset vector; the next instruction is
// skipped when the predicate is false. negate flips the sense (the NIF*
// mnemonics).
func planCellCond(op Opcode, name string, negate bool, pred cellPred) func(pc *PlanContext) (*Intent, error) {
	return func(pc *PlanContext) (*Intent, error) {
		ops, err := literalOperands(pc, 1)
		if err != nil {
			return failIntent(op, err)
		}
		advanceIP(pc.World, pc.Org, 1)
		offset, err := regVector(pc.Org, int(ops[0].Value))
		if err != nil {
			return failIntent(op, err)
		}
		target, err := adjacentTarget(pc, op, offset)
		if err != nil {
			return failIntent(op, err)
		}
		result := pred(pc, target)
		if negate {
			result = !result
		}
		if !result {
			skipNextInstruction(pc)
		}
		return buildIntent(pc, name, op, PolicyContext{}, []Coord{target}, nil, func(ec *ExecContext) error { return nil }), nil
	}
}

type patternFetch func(pc *PlanContext) (pattern uint32, tolerance int, err error)

func fetchPatternImmediate(pc *PlanContext) (uint32, int, error) {
	ops, err := literalOperands(pc, 2)
	if err != nil {
		return 0, 0, err
	}
	advanceIP(pc.World, pc.Org, 2)
	return uint32(ops[0].Value), int(ops[1].Value), nil
}

func fetchPatternRegister(pc *PlanContext) (uint32, int, error) {
	ops, err := literalOperands(pc, 2)
	if err != nil {
		return 0, 0, err
	}
	advanceIP(pc.World, pc.Org, 2)
	patReg, tolReg := int(ops[0].Value), int(ops[1].Value)
	pat, err := regScalar(pc.Org, patReg)
	if err != nil {
		return 0, 0, err
	}
	tol, err := regScalar(pc.Org, tolReg)
	if err != nil {
		return 0, 0, err
	}
	return uint32(pat.Value), int(tol.Value), nil
}

func fetchPatternStack(pc *PlanContext) (uint32, int, error) {
	advanceIP(pc.World, pc.Org, 0)
	tol, err := pc.Org.PopData()
	if err != nil {
		return 0, 0, err
	}
	pat, err := pc.Org.PopData()
	if err != nil {
		return 0, 0, err
	}
	if tol.IsVector || pat.IsVector {
		return 0, 0, failf(0, FailTypeMismatch, "fuzzy jump pattern/tolerance must be scalar")
	}
	return uint32(pat.Scalar.Value), int(tol.Scalar.Value), nil
}

// planJump resolves a fuzzy label target and relocates IP to it;
// fetch obtains (pattern, tolerance) per the mnemonic's argument shape.
func planJump(op Opcode, name string, fetch patternFetch) func(pc *PlanContext) (*Intent, error) {
	return func(pc *PlanContext) (*Intent, error) {
		pattern, tolerance, err := fetch(pc)
		if err != nil {
			return failIntent(op, err)
		}
		target, foreign, ferr := resolveJumpTarget(pc, pattern, tolerance)
		if ferr != nil {
			return failIntent(op, ferr)
		}
		ctx := PolicyContext{ForeignAnchor: foreign}
		return buildIntent(pc, name, op, ctx, nil, nil, func(ec *ExecContext) error {
			ec.Org.IP = target
			return nil
		}), nil
	}
}

func resolveJumpTarget(pc *PlanContext, pattern uint32, tolerance int) (Coord, bool, error) {
	target, ok := pc.Resolver.Resolve(pc.AnchorsKey, pattern, pc.Anchors, tolerance, pc.RNG)
	if !ok {
		return nil, false, failf(0, FailNoFuzzyMatch, "no label anchor within tolerance")
	}
	foreign := pc.World.ClassifyOwnership(target, pc.Org.ID) == OwnForeign
	return target, foreign, nil
}

func planCALL(pc *PlanContext) (*Intent, error) {
	pattern, tolerance, err := fetchPatternImmediate(pc)
	if err != nil {
		return failIntent(OpCALL, err)
	}
	returnIP := pc.Org.IP.Clone()
	returnDV := pc.Org.DV.Clone()
	savedProc := pc.Org.ProcRegs
	target, foreign, ferr := resolveJumpTarget(pc, pattern, tolerance)
	if ferr != nil {
		return failIntent(OpCALL, ferr)
	}
	ctx := PolicyContext{ForeignAnchor: foreign}
	return buildIntent(pc, "CALL", OpCALL, ctx, nil, nil, func(ec *ExecContext) error {
		if err := ec.Org.PushCall(CallFrame{ReturnIP: returnIP, ReturnDV: returnDV, SavedProc: savedProc}); err != nil {
			return err
		}
		ec.Org.IP = target
		return nil
	}), nil
}

func planRET(pc *PlanContext) (*Intent, error) {
	advanceIP(pc.World, pc.Org, 0)
	return buildIntent(pc, "RET", OpRET, PolicyContext{}, nil, nil, func(ec *ExecContext) error {
		frame, err := ec.Org.PopCall()
		if err != nil {
			return err
		}
		ec.Org.IP = frame.ReturnIP
		ec.Org.DV = frame.ReturnDV
		ec.Org.ProcRegs = frame.SavedProc
		return nil
	}), nil
}

// planSKLS jumps to the coordinate on top of the location stack. Unlike the
// fuzzy jump family this is an absolute relocation, permitted because every
// location-stack entry records a DP position the organism physically
// reached.
func planSKLS(pc *PlanContext) (*Intent, error) {
	advanceIP(pc.World, pc.Org, 0)
	loc, err := pc.Org.PopLocation()
	if err != nil {
		return failIntent(OpSKLS, err)
	}
	if len(loc) != pc.World.Dims() {
		return failIntent(OpSKLS, failf(OpSKLS, FailTypeMismatch, "location entry dimensionality does not match world"))
	}
	target := loc.Clone()
	return buildIntent(pc, "SKLS", OpSKLS, PolicyContext{}, nil, nil, func(ec *ExecContext) error {
		ec.Org.IP = target
		return nil
	}), nil
}

// planSKLR jumps to the coordinate held in a location register.
func planSKLR(pc *PlanContext) (*Intent, error) {
	ops, err := literalOperands(pc, 1)
	if err != nil {
		return failIntent(OpSKLR, err)
	}
	advanceIP(pc.World, pc.Org, 1)
	idx := int(ops[0].Value)
	if idx < 0 || idx >= len(pc.Org.LocRegs) {
		return failIntent(OpSKLR, failf(OpSKLR, FailOutOfRange, "location register index out of range"))
	}
	loc := pc.Org.LocRegs[idx]
	if len(loc) != pc.World.Dims() {
		return failIntent(OpSKLR, failf(OpSKLR, FailTypeMismatch, "location register is unset"))
	}
	target := loc.Clone()
	return buildIntent(pc, "SKLR", OpSKLR, PolicyContext{}, nil, nil, func(ec *ExecContext) error {
		ec.Org.IP = target
		return nil
	}), nil
}
