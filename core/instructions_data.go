package core

func init() {
	Register(OpSETI, &InstrDef{Name: "SETI", Shape: ShapeImmediate, Operands: 2, Bank: BankData, Plan: planSETI})
	Register(OpSETR, &InstrDef{Name: "SETR", Shape: ShapeRegister, Operands: 2, Bank: BankData, Plan: planSETR})
	Register(OpSETV, &InstrDef{Name: "SETV", Shape: ShapeImmediate, Operands: -1, DimOperands: func(d int) int { return 1 + d }, Bank: BankData, Plan: planSETV})
	Register(OpPUSH, &InstrDef{Name: "PUSH", Shape: ShapeRegister, Operands: 1, Bank: BankData, Plan: planPUSH})
	Register(OpPOP, &InstrDef{Name: "POP", Shape: ShapeRegister, Operands: 1, Bank: BankData, Plan: planPOP})
	Register(OpDUP, &InstrDef{Name: "DUP", Operands: 0, Plan: planDUP})
	Register(OpSWAP, &InstrDef{Name: "SWAP", Operands: 0, Plan: planSWAP})
	Register(OpDROP, &InstrDef{Name: "DROP", Operands: 0, Plan: planDROP})
	Register(OpROT, &InstrDef{Name: "ROT", Operands: 0, Plan: planROT})
	Register(OpPUSI, &InstrDef{Name: "PUSI", Shape: ShapeImmediate, Operands: 1, Plan: planPUSI})
	Register(OpPUSV, &InstrDef{Name: "PUSV", Shape: ShapeImmediate, Operands: -1, Plan: planPUSV})
	Register(OpPUSL, &InstrDef{Name: "PUSL", Shape: ShapeRegister, Operands: 1, Bank: BankLoc, Plan: planPUSL})
	Register(OpPOPL, &InstrDef{Name: "POPL", Shape: ShapeRegister, Operands: 1, Bank: BankLoc, Plan: planPOPL})
	Register(OpSETLR, &InstrDef{Name: "SETLR", Shape: ShapeImmediate, Operands: -1, DimOperands: func(d int) int { return 1 + d }, Bank: BankLoc, Plan: planSETLR})
}

// literalOperands fetches n raw code-stream cells without resolving them
// against any register bank — used for metadata operands like "which
// register" that are always encoded as literals regardless of the
// instruction's declared argument shape.
func literalOperands(pc *PlanContext, n int) ([]Molecule, error) {
	return fetchOperandCells(pc.World, pc.Org, n)
}

func planSETI(pc *PlanContext) (*Intent, error) {
	ops, err := literalOperands(pc, 2)
	if err != nil {
		return failIntent(OpSETI, err)
	}
	advanceIP(pc.World, pc.Org, 2)
	dest, val := int(ops[0].Value), ops[1].Value
	return buildIntent(pc, "SETI", OpSETI, PolicyContext{}, nil, nil, func(ec *ExecContext) error {
		return setReg(ec.Org, dest, scalarVal(Molecule{Type: MolData, Value: val}))
	}), nil
}

func planSETR(pc *PlanContext) (*Intent, error) {
	ops, err := literalOperands(pc, 2)
	if err != nil {
		return failIntent(OpSETR, err)
	}
	advanceIP(pc.World, pc.Org, 2)
	dest, src := int(ops[0].Value), int(ops[1].Value)
	return buildIntent(pc, "SETR", OpSETR, PolicyContext{}, nil, nil, func(ec *ExecContext) error {
		v, err := regScalar(ec.Org, src)
		if err != nil {
			return err
		}
		return setReg(ec.Org, dest, scalarVal(v))
	}), nil
}

func planSETV(pc *PlanContext) (*Intent, error) {
	dims := pc.World.Dims()
	ops, err := literalOperands(pc, 1+dims)
	if err != nil {
		return failIntent(OpSETV, err)
	}
	advanceIP(pc.World, pc.Org, 1+dims)
	dest := int(ops[0].Value)
	vec := make(Coord, dims)
	for i := 0; i < dims; i++ {
		vec[i] = ops[1+i].Value
	}
	return buildIntent(pc, "SETV", OpSETV, PolicyContext{}, nil, nil, func(ec *ExecContext) error {
		return setReg(ec.Org, dest, vectorVal(vec))
	}), nil
}

func planPUSH(pc *PlanContext) (*Intent, error) {
	ops, err := literalOperands(pc, 1)
	if err != nil {
		return failIntent(OpPUSH, err)
	}
	advanceIP(pc.World, pc.Org, 1)
	src := int(ops[0].Value)
	return buildIntent(pc, "PUSH", OpPUSH, PolicyContext{}, nil, nil, func(ec *ExecContext) error {
		v, err := regScalar(ec.Org, src)
		if err != nil {
			return err
		}
		return ec.Org.PushData(scalarVal(v))
	}), nil
}

func planPOP(pc *PlanContext) (*Intent, error) {
	ops, err := literalOperands(pc, 1)
	if err != nil {
		return failIntent(OpPOP, err)
	}
	advanceIP(pc.World, pc.Org, 1)
	dest := int(ops[0].Value)
	return buildIntent(pc, "POP", OpPOP, PolicyContext{}, nil, nil, func(ec *ExecContext) error {
		v, err := ec.Org.PopData()
		if err != nil {
			return err
		}
		return setReg(ec.Org, dest, v)
	}), nil
}

func planDUP(pc *PlanContext) (*Intent, error) {
	advanceIP(pc.World, pc.Org, 0)
	return buildIntent(pc, "DUP", OpDUP, PolicyContext{}, nil, nil, func(ec *ExecContext) error {
		if len(ec.Org.DataStack) == 0 {
			return failf(OpDUP, FailStackUnderflow, "dup of empty stack")
		}
		return ec.Org.PushData(ec.Org.DataStack[len(ec.Org.DataStack)-1])
	}), nil
}

func planSWAP(pc *PlanContext) (*Intent, error) {
	advanceIP(pc.World, pc.Org, 0)
	return buildIntent(pc, "SWAP", OpSWAP, PolicyContext{}, nil, nil, func(ec *ExecContext) error {
		n := len(ec.Org.DataStack)
		if n < 2 {
			return failf(OpSWAP, FailStackUnderflow, "swap needs two values")
		}
		ec.Org.DataStack[n-1], ec.Org.DataStack[n-2] = ec.Org.DataStack[n-2], ec.Org.DataStack[n-1]
		return nil
	}), nil
}

func planDROP(pc *PlanContext) (*Intent, error) {
	advanceIP(pc.World, pc.Org, 0)
	return buildIntent(pc, "DROP", OpDROP, PolicyContext{}, nil, nil, func(ec *ExecContext) error {
		_, err := ec.Org.PopData()
		return err
	}), nil
}

func planROT(pc *PlanContext) (*Intent, error) {
	advanceIP(pc.World, pc.Org, 0)
	return buildIntent(pc, "ROT", OpROT, PolicyContext{}, nil, nil, func(ec *ExecContext) error {
		n := len(ec.Org.DataStack)
		if n < 3 {
			return failf(OpROT, FailStackUnderflow, "rot needs three values")
		}
		top := ec.Org.DataStack[n-1]
		copy(ec.Org.DataStack[n-3:n-1], ec.Org.DataStack[n-2:n])
		ec.Org.DataStack[n-2] = top
		return nil
	}), nil
}

func planPUSI(pc *PlanContext) (*Intent, error) {
	ops, err := literalOperands(pc, 1)
	if err != nil {
		return failIntent(OpPUSI, err)
	}
	advanceIP(pc.World, pc.Org, 1)
	val := ops[0].Value
	return buildIntent(pc, "PUSI", OpPUSI, PolicyContext{}, nil, nil, func(ec *ExecContext) error {
		return ec.Org.PushData(scalarVal(Molecule{Type: MolData, Value: val}))
	}), nil
}

func planPUSV(pc *PlanContext) (*Intent, error) {
	dims := pc.World.Dims()
	ops, err := literalOperands(pc, dims)
	if err != nil {
		return failIntent(OpPUSV, err)
	}
	advanceIP(pc.World, pc.Org, dims)
	vec := make(Coord, dims)
	for i := 0; i < dims; i++ {
		vec[i] = ops[i].Value
	}
	return buildIntent(pc, "PUSV", OpPUSV, PolicyContext{}, nil, nil, func(ec *ExecContext) error {
		return ec.Org.PushData(vectorVal(vec))
	}), nil
}

func planPUSL(pc *PlanContext) (*Intent, error) {
	ops, err := literalOperands(pc, 1)
	if err != nil {
		return failIntent(OpPUSL, err)
	}
	advanceIP(pc.World, pc.Org, 1)
	idx := int(ops[0].Value)
	return buildIntent(pc, "PUSL", OpPUSL, PolicyContext{}, nil, nil, func(ec *ExecContext) error {
		if idx < 0 || idx >= len(ec.Org.LocRegs) {
			return failf(OpPUSL, FailOutOfRange, "location register index out of range")
		}
		return ec.Org.PushLocation(ec.Org.LocRegs[idx])
	}), nil
}

func planPOPL(pc *PlanContext) (*Intent, error) {
	ops, err := literalOperands(pc, 1)
	if err != nil {
		return failIntent(OpPOPL, err)
	}
	advanceIP(pc.World, pc.Org, 1)
	idx := int(ops[0].Value)
	return buildIntent(pc, "POPL", OpPOPL, PolicyContext{}, nil, nil, func(ec *ExecContext) error {
		v, err := ec.Org.PopLocation()
		if err != nil {
			return err
		}
		if idx < 0 || idx >= len(ec.Org.LocRegs) {
			return failf(OpPOPL, FailOutOfRange, "location register index out of range")
		}
		ec.Org.LocRegs[idx] = v
		return nil
	}), nil
}

func planSETLR(pc *PlanContext) (*Intent, error) {
	dims := pc.World.Dims()
	ops, err := literalOperands(pc, 1+dims)
	if err != nil {
		return failIntent(OpSETLR, err)
	}
	advanceIP(pc.World, pc.Org, 1+dims)
	idx := int(ops[0].Value)
	vec := make(Coord, dims)
	for i := 0; i < dims; i++ {
		vec[i] = ops[1+i].Value
	}
	return buildIntent(pc, "SETLR", OpSETLR, PolicyContext{}, nil, nil, func(ec *ExecContext) error {
		if idx < 0 || idx >= len(ec.Org.LocRegs) {
			return failf(OpSETLR, FailOutOfRange, "location register index out of range")
		}
		ec.Org.LocRegs[idx] = vec
		return nil
	}), nil
}
