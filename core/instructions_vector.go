package core

func init() {
	Register(OpVADD, &InstrDef{Name: "VADD", Shape: ShapeRegister, Operands: 2, Bank: BankData, Plan: planVADD})
	Register(OpVSUB, &InstrDef{Name: "VSUB", Shape: ShapeRegister, Operands: 2, Bank: BankData, Plan: planVSUB})
	Register(OpVDOT, &InstrDef{Name: "VDOT", Shape: ShapeRegister, Operands: 2, Bank: BankData, Plan: planVDOT})
	Register(OpVCROSS, &InstrDef{Name: "VCROSS", Shape: ShapeRegister, Operands: 2, Bank: BankData, Plan: planVCROSS})
	Register(OpVGET, &InstrDef{Name: "VGET", Shape: ShapeRegister, Operands: 3, Bank: BankData, Plan: planVGET})
	Register(OpVSET, &InstrDef{Name: "VSET", Shape: ShapeRegister, Operands: 3, Bank: BankData, Plan: planVSET})
	Register(OpVBUILD, &InstrDef{Name: "VBUILD", Shape: ShapeRegister, Operands: -1, DimOperands: func(d int) int { return 1 + d }, Bank: BankData, Plan: planVBUILD})
	Register(OpB2V, &InstrDef{Name: "B2V", Shape: ShapeRegister, Operands: 2, Bank: BankData, Plan: planB2V})
	Register(OpV2B, &InstrDef{Name: "V2B", Shape: ShapeRegister, Operands: 2, Bank: BankData, Plan: planV2B})
	Register(OpRTRX, &InstrDef{Name: "RTRX", Shape: ShapeRegister, Operands: 3, Bank: BankData, Plan: planRTRX})
}

// bitsToVector decodes a direction bitmask using the same bit layout as
// World.NeighborMask (bit 2*axis = +1, bit 2*axis+1 = -1). A mask with
// neither bit set for an axis leaves that component zero; a mask with no
// bits at all decodes to the all-zero vector.
func bitsToVector(mask uint32, dims int) Coord {
	v := make(Coord, dims)
	for axis := 0; axis < dims; axis++ {
		if mask&(1<<uint(2*axis)) != 0 {
			v[axis] = 1
		} else if mask&(1<<uint(2*axis+1)) != 0 {
			v[axis] = -1
		}
	}
	return v
}

func vectorToBits(v Coord) uint32 {
	var mask uint32
	for axis, val := range v {
		switch {
		case val > 0:
			mask |= 1 << uint(2*axis)
		case val < 0:
			mask |= 1 << uint(2*axis+1)
		}
	}
	return mask
}

func planVADD(pc *PlanContext) (*Intent, error) {
	ops, err := literalOperands(pc, 2)
	if err != nil {
		return failIntent(OpVADD, err)
	}
	advanceIP(pc.World, pc.Org, 2)
	dest, src := int(ops[0].Value), int(ops[1].Value)
	return buildIntent(pc, "VADD", OpVADD, PolicyContext{}, nil, nil, func(ec *ExecContext) error {
		a, err := regVector(ec.Org, dest)
		if err != nil {
			return err
		}
		b, err := regVector(ec.Org, src)
		if err != nil {
			return err
		}
		return setReg(ec.Org, dest, vectorVal(a.Add(b)))
	}), nil
}

func planVSUB(pc *PlanContext) (*Intent, error) {
	ops, err := literalOperands(pc, 2)
	if err != nil {
		return failIntent(OpVSUB, err)
	}
	advanceIP(pc.World, pc.Org, 2)
	dest, src := int(ops[0].Value), int(ops[1].Value)
	return buildIntent(pc, "VSUB", OpVSUB, PolicyContext{}, nil, nil, func(ec *ExecContext) error {
		a, err := regVector(ec.Org, dest)
		if err != nil {
			return err
		}
		b, err := regVector(ec.Org, src)
		if err != nil {
			return err
		}
		return setReg(ec.Org, dest, vectorVal(a.Sub(b)))
	}), nil
}

func planVDOT(pc *PlanContext) (*Intent, error) {
	ops, err := literalOperands(pc, 2)
	if err != nil {
		return failIntent(OpVDOT, err)
	}
	advanceIP(pc.World, pc.Org, 2)
	dest, src := int(ops[0].Value), int(ops[1].Value)
	return buildIntent(pc, "VDOT", OpVDOT, PolicyContext{}, nil, nil, func(ec *ExecContext) error {
		a, err := regVector(ec.Org, dest)
		if err != nil {
			return err
		}
		b, err := regVector(ec.Org, src)
		if err != nil {
			return err
		}
		return setReg(ec.Org, dest, scalarVal(Molecule{Type: MolData, Value: int32(a.Dot(b))}))
	}), nil
}

func planVCROSS(pc *PlanContext) (*Intent, error) {
	ops, err := literalOperands(pc, 2)
	if err != nil {
		return failIntent(OpVCROSS, err)
	}
	advanceIP(pc.World, pc.Org, 2)
	dest, src := int(ops[0].Value), int(ops[1].Value)
	return buildIntent(pc, "VCROSS", OpVCROSS, PolicyContext{}, nil, nil, func(ec *ExecContext) error {
		a, err := regVector(ec.Org, dest)
		if err != nil {
			return err
		}
		b, err := regVector(ec.Org, src)
		if err != nil {
			return err
		}
		if len(a) != 2 || len(b) != 2 {
			return failf(OpVCROSS, FailTypeMismatch, "vcross requires two-dimensional vectors")
		}
		return setReg(ec.Org, dest, scalarVal(Molecule{Type: MolData, Value: int32(a.Cross2D(b))}))
	}), nil
}

func planVGET(pc *PlanContext) (*Intent, error) {
	ops, err := literalOperands(pc, 3)
	if err != nil {
		return failIntent(OpVGET, err)
	}
	advanceIP(pc.World, pc.Org, 3)
	dest, vecIdx, axis := int(ops[0].Value), int(ops[1].Value), int(ops[2].Value)
	return buildIntent(pc, "VGET", OpVGET, PolicyContext{}, nil, nil, func(ec *ExecContext) error {
		v, err := regVector(ec.Org, vecIdx)
		if err != nil {
			return err
		}
		if axis < 0 || axis >= len(v) {
			return failf(OpVGET, FailOutOfRange, "vector axis out of range")
		}
		return setReg(ec.Org, dest, scalarVal(Molecule{Type: MolData, Value: v[axis]}))
	}), nil
}

func planVSET(pc *PlanContext) (*Intent, error) {
	ops, err := literalOperands(pc, 3)
	if err != nil {
		return failIntent(OpVSET, err)
	}
	advanceIP(pc.World, pc.Org, 3)
	vecIdx, axis, valueReg := int(ops[0].Value), int(ops[1].Value), int(ops[2].Value)
	return buildIntent(pc, "VSET", OpVSET, PolicyContext{}, nil, nil, func(ec *ExecContext) error {
		v, err := regVector(ec.Org, vecIdx)
		if err != nil {
			return err
		}
		if axis < 0 || axis >= len(v) {
			return failf(OpVSET, FailOutOfRange, "vector axis out of range")
		}
		val, err := regScalar(ec.Org, valueReg)
		if err != nil {
			return err
		}
		updated := v.Clone()
		updated[axis] = val.Value
		return setReg(ec.Org, vecIdx, vectorVal(updated))
	}), nil
}

// planVBUILD assembles a vector register from dims source scalar registers,
// one literal register index per world axis, distinguishing it from SETV's
// literal-value construction.
func planVBUILD(pc *PlanContext) (*Intent, error) {
	dims := pc.World.Dims()
	ops, err := literalOperands(pc, 1+dims)
	if err != nil {
		return failIntent(OpVBUILD, err)
	}
	advanceIP(pc.World, pc.Org, 1+dims)
	dest := int(ops[0].Value)
	srcs := make([]int, dims)
	for i := 0; i < dims; i++ {
		srcs[i] = int(ops[1+i].Value)
	}
	return buildIntent(pc, "VBUILD", OpVBUILD, PolicyContext{}, nil, nil, func(ec *ExecContext) error {
		vec := make(Coord, dims)
		for i, s := range srcs {
			v, err := regScalar(ec.Org, s)
			if err != nil {
				return err
			}
			vec[i] = v.Value
		}
		return setReg(ec.Org, dest, vectorVal(vec))
	}), nil
}

func planB2V(pc *PlanContext) (*Intent, error) {
	ops, err := literalOperands(pc, 2)
	if err != nil {
		return failIntent(OpB2V, err)
	}
	advanceIP(pc.World, pc.Org, 2)
	dest, src := int(ops[0].Value), int(ops[1].Value)
	dims := pc.World.Dims()
	return buildIntent(pc, "B2V", OpB2V, PolicyContext{}, nil, nil, func(ec *ExecContext) error {
		bits, err := regScalar(ec.Org, src)
		if err != nil {
			return err
		}
		return setReg(ec.Org, dest, vectorVal(bitsToVector(uint32(bits.Value), dims)))
	}), nil
}

func planV2B(pc *PlanContext) (*Intent, error) {
	ops, err := literalOperands(pc, 2)
	if err != nil {
		return failIntent(OpV2B, err)
	}
	advanceIP(pc.World, pc.Org, 2)
	dest, src := int(ops[0].Value), int(ops[1].Value)
	return buildIntent(pc, "V2B", OpV2B, PolicyContext{}, nil, nil, func(ec *ExecContext) error {
		v, err := regVector(ec.Org, src)
		if err != nil {
			return err
		}
		return setReg(ec.Org, dest, scalarVal(Molecule{Type: MolData, Value: int32(vectorToBits(v))}))
	}), nil
}

// planRTRX rotates a vector register 90 degrees within the plane spanned by
// two axes: (v[a], v[b]) becomes (-v[b], v[a]), all other components
// untouched.
func planRTRX(pc *PlanContext) (*Intent, error) {
	ops, err := literalOperands(pc, 3)
	if err != nil {
		return failIntent(OpRTRX, err)
	}
	advanceIP(pc.World, pc.Org, 3)
	dest, axisA, axisB := int(ops[0].Value), int(ops[1].Value), int(ops[2].Value)
	return buildIntent(pc, "RTRX", OpRTRX, PolicyContext{}, nil, nil, func(ec *ExecContext) error {
		v, err := regVector(ec.Org, dest)
		if err != nil {
			return err
		}
		if axisA < 0 || axisA >= len(v) || axisB < 0 || axisB >= len(v) {
			return failf(OpRTRX, FailOutOfRange, "rotation axis out of range")
		}
		if axisA == axisB {
			return failf(OpRTRX, FailTypeMismatch, "rotation plane requires two distinct axes")
		}
		out := v.Clone()
		out[axisA], out[axisB] = -v[axisB], v[axisA]
		return setReg(ec.Org, dest, vectorVal(out))
	}), nil
}
