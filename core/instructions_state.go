package core

func init() {
	Register(OpNOP, &InstrDef{Name: "NOP", Operands: 0, Plan: planNOP})
	Register(OpSYNC, &InstrDef{Name: "SYNC", Operands: 0, Plan: planSYNC})
	Register(OpADP, &InstrDef{Name: "ADP", Operands: 0, Plan: planADP})
	Register(OpTURN, &InstrDef{Name: "TURN", Shape: ShapeRegister, Operands: 1, Bank: BankData, Plan: planTURN})
	Register(OpPOS, &InstrDef{Name: "POS", Operands: 0, Plan: planPOS})
	Register(OpDIFF, &InstrDef{Name: "DIFF", Operands: 0, Plan: planDIFF})
	Register(OpNRG, &InstrDef{Name: "NRG", Operands: 0, Plan: planNRG})
	Register(OpNTR, &InstrDef{Name: "NTR", Operands: 0, Plan: planNTR})
	Register(OpGDV, &InstrDef{Name: "GDV", Operands: 0, Plan: planGDV})
	Register(OpRAND, &InstrDef{Name: "RAND", Operands: 0, Plan: planRAND})
	Register(OpSMR, &InstrDef{Name: "SMR", Shape: ShapeImmediate, Operands: 1, Plan: planSMR})
}

func planNOP(pc *PlanContext) (*Intent, error) {
	advanceIP(pc.World, pc.Org, 0)
	return buildIntent(pc, "NOP", OpNOP, PolicyContext{}, nil, nil, func(ec *ExecContext) error { return nil }), nil
}

// planSYNC realigns the active data pointer with the instruction pointer
// (DP := IP), the anchor from which subsequent world accesses measure their
// unit-vector offsets.
func planSYNC(pc *PlanContext) (*Intent, error) {
	advanceIP(pc.World, pc.Org, 0)
	return buildIntent(pc, "SYNC", OpSYNC, PolicyContext{}, nil, nil, func(ec *ExecContext) error {
		ec.Org.DPSet[ec.Org.ActiveDP] = ec.Org.IP.Clone()
		return nil
	}), nil
}

// planADP cycles the organism's active data pointer to the next entry in its
// DP set, the mechanism by which a multi-DP organism round-robins which
// pointer subsequent PEEK/POKE/SEEK instructions address.
func planADP(pc *PlanContext) (*Intent, error) {
	advanceIP(pc.World, pc.Org, 0)
	return buildIntent(pc, "ADP", OpADP, PolicyContext{}, nil, nil, func(ec *ExecContext) error {
		if len(ec.Org.DPSet) == 0 {
			return nil
		}
		ec.Org.ActiveDP = (ec.Org.ActiveDP + 1) % len(ec.Org.DPSet)
		return nil
	}), nil
}

// planTURN sets DV from a data register holding a unit vector.
func planTURN(pc *PlanContext) (*Intent, error) {
	ops, err := literalOperands(pc, 1)
	if err != nil {
		return failIntent(OpTURN, err)
	}
	advanceIP(pc.World, pc.Org, 1)
	v, err := regVector(pc.Org, int(ops[0].Value))
	if err != nil {
		return failIntent(OpTURN, err)
	}
	if len(v) != pc.World.Dims() || !v.IsUnit() {
		return failIntent(OpTURN, failf(OpTURN, FailNonUnitVector, "turn requires a unit direction vector"))
	}
	dv := v.Clone()
	return buildIntent(pc, "TURN", OpTURN, PolicyContext{}, nil, nil, func(ec *ExecContext) error {
		ec.Org.DV = dv
		return nil
	}), nil
}

func planPOS(pc *PlanContext) (*Intent, error) {
	advanceIP(pc.World, pc.Org, 0)
	return buildIntent(pc, "POS", OpPOS, PolicyContext{}, nil, nil, func(ec *ExecContext) error {
		return ec.Org.PushData(vectorVal(ec.Org.IP.Clone()))
	}), nil
}

func planDIFF(pc *PlanContext) (*Intent, error) {
	advanceIP(pc.World, pc.Org, 0)
	return buildIntent(pc, "DIFF", OpDIFF, PolicyContext{}, nil, nil, func(ec *ExecContext) error {
		return ec.Org.PushData(vectorVal(ec.Org.ActiveDPCoord().Sub(ec.Org.IP)))
	}), nil
}

func planNRG(pc *PlanContext) (*Intent, error) {
	advanceIP(pc.World, pc.Org, 0)
	return buildIntent(pc, "NRG", OpNRG, PolicyContext{}, nil, nil, func(ec *ExecContext) error {
		return ec.Org.PushData(scalarVal(Molecule{Type: MolEnergy, Value: int32(ec.Org.Energy)}))
	}), nil
}

func planNTR(pc *PlanContext) (*Intent, error) {
	advanceIP(pc.World, pc.Org, 0)
	return buildIntent(pc, "NTR", OpNTR, PolicyContext{}, nil, nil, func(ec *ExecContext) error {
		return ec.Org.PushData(scalarVal(Molecule{Type: MolData, Value: int32(ec.Org.Entropy)}))
	}), nil
}

func planGDV(pc *PlanContext) (*Intent, error) {
	advanceIP(pc.World, pc.Org, 0)
	return buildIntent(pc, "GDV", OpGDV, PolicyContext{}, nil, nil, func(ec *ExecContext) error {
		return ec.Org.PushData(vectorVal(ec.Org.DV.Clone()))
	}), nil
}

func planRAND(pc *PlanContext) (*Intent, error) {
	advanceIP(pc.World, pc.Org, 0)
	min, max := pc.World.ValueRange()
	draw := pc.RNG.Uint64()
	return buildIntent(pc, "RAND", OpRAND, PolicyContext{}, nil, nil, func(ec *ExecContext) error {
		width := int64(max) - int64(min) + 1
		v := int32(int64(draw%uint64(width)) + int64(min))
		return ec.Org.PushData(scalarVal(Molecule{Type: MolData, Value: v}))
	}), nil
}

func planSMR(pc *PlanContext) (*Intent, error) {
	ops, err := literalOperands(pc, 1)
	if err != nil {
		return failIntent(OpSMR, err)
	}
	advanceIP(pc.World, pc.Org, 1)
	val := uint8(ops[0].Value) & 0xF
	return buildIntent(pc, "SMR", OpSMR, PolicyContext{}, nil, nil, func(ec *ExecContext) error {
		ec.Org.MarkerReg = val
		return nil
	}), nil
}
