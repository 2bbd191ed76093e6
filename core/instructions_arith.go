package core

func init() {
	Register(OpADD, &InstrDef{Name: "ADD", Shape: ShapeRegister, Operands: 2, Bank: BankData, Plan: binaryArith(OpADD, "ADD", func(a, b int64) (int64, error) { return a + b, nil })})
	Register(OpSUB, &InstrDef{Name: "SUB", Shape: ShapeRegister, Operands: 2, Bank: BankData, Plan: binaryArith(OpSUB, "SUB", func(a, b int64) (int64, error) { return a - b, nil })})
	Register(OpMUL, &InstrDef{Name: "MUL", Shape: ShapeRegister, Operands: 2, Bank: BankData, Plan: binaryArith(OpMUL, "MUL", func(a, b int64) (int64, error) { return a * b, nil })})
	Register(OpDIV, &InstrDef{Name: "DIV", Shape: ShapeRegister, Operands: 2, Bank: BankData, Plan: binaryArith(OpDIV, "DIV", func(a, b int64) (int64, error) {
		if b == 0 {
			return 0, failf(OpDIV, FailDivByZero, "division by zero")
		}
		return a / b, nil
	})})
	Register(OpMOD, &InstrDef{Name: "MOD", Shape: ShapeRegister, Operands: 2, Bank: BankData, Plan: binaryArith(OpMOD, "MOD", func(a, b int64) (int64, error) {
		if b == 0 {
			return 0, failf(OpMOD, FailDivByZero, "modulo by zero")
		}
		return a % b, nil
	})})
	Register(OpAND, &InstrDef{Name: "AND", Shape: ShapeRegister, Operands: 2, Bank: BankData, Plan: binaryArith(OpAND, "AND", func(a, b int64) (int64, error) { return a & b, nil })})
	Register(OpOR, &InstrDef{Name: "OR", Shape: ShapeRegister, Operands: 2, Bank: BankData, Plan: binaryArith(OpOR, "OR", func(a, b int64) (int64, error) { return a | b, nil })})
	Register(OpXOR, &InstrDef{Name: "XOR", Shape: ShapeRegister, Operands: 2, Bank: BankData, Plan: binaryArith(OpXOR, "XOR", func(a, b int64) (int64, error) { return a ^ b, nil })})
	Register(OpSHL, &InstrDef{Name: "SHL", Shape: ShapeRegister, Operands: 2, Bank: BankData, Plan: binaryArith(OpSHL, "SHL", func(a, b int64) (int64, error) { return a << uint(b&31), nil })})
	Register(OpSHR, &InstrDef{Name: "SHR", Shape: ShapeRegister, Operands: 2, Bank: BankData, Plan: binaryArith(OpSHR, "SHR", func(a, b int64) (int64, error) { return a >> uint(b&31), nil })})
	Register(OpROL, &InstrDef{Name: "ROL", Shape: ShapeRegister, Operands: 2, Bank: BankData, Plan: binaryArith(OpROL, "ROL", func(a, b int64) (int64, error) {
		n := uint32(b) & 31
		v := uint32(a)
		return int64(int32(v<<n | v>>(32-n))), nil
	})})
	Register(OpROR, &InstrDef{Name: "ROR", Shape: ShapeRegister, Operands: 2, Bank: BankData, Plan: binaryArith(OpROR, "ROR", func(a, b int64) (int64, error) {
		n := uint32(b) & 31
		v := uint32(a)
		return int64(int32(v>>n | v<<(32-n))), nil
	})})

	Register(OpNOT, &InstrDef{Name: "NOT", Shape: ShapeRegister, Operands: 1, Bank: BankData, Plan: unaryArith(OpNOT, "NOT", func(a int64) int64 { return ^a })})
	Register(OpPOPCNT, &InstrDef{Name: "POPCNT", Shape: ShapeRegister, Operands: 1, Bank: BankData, Plan: unaryArith(OpPOPCNT, "POPCNT", func(a int64) int64 { return int64(popcount32(uint32(a))) })})
	Register(OpBSF, &InstrDef{Name: "BSF", Shape: ShapeRegister, Operands: 1, Bank: BankData, Plan: unaryArith(OpBSF, "BSF", func(a int64) int64 { return int64(bitscanForward(uint32(a))) })})
	Register(OpBSR, &InstrDef{Name: "BSR", Shape: ShapeRegister, Operands: 1, Bank: BankData, Plan: unaryArith(OpBSR, "BSR", func(a int64) int64 { return int64(bitscanReverse(uint32(a))) })})
}

func popcount32(v uint32) int {
	n := 0
	for v != 0 {
		v &= v - 1
		n++
	}
	return n
}

func bitscanForward(v uint32) int {
	if v == 0 {
		return -1
	}
	n := 0
	for v&1 == 0 {
		v >>= 1
		n++
	}
	return n
}

func bitscanReverse(v uint32) int {
	if v == 0 {
		return -1
	}
	n := 31
	for v&(1<<31) == 0 {
		v <<= 1
		n--
	}
	return n
}

func wrapValue(v int64, min, max int32) int32 {
	width := int64(max) - int64(min) + 1
	w := (v-int64(min))%width + width
	w %= width
	return int32(w) + min
}

// binaryArith builds a Plan function for a two-register arithmetic op: dest
// and src are literal register indices; the result overwrites dest as
// dest OP src, wrapped into the world's configured value range. The
// destination keeps its molecule type: arithmetic transforms values, never
// types.
func binaryArith(op Opcode, name string, fn func(a, b int64) (int64, error)) func(pc *PlanContext) (*Intent, error) {
	return func(pc *PlanContext) (*Intent, error) {
		ops, err := literalOperands(pc, 2)
		if err != nil {
			return failIntent(op, err)
		}
		advanceIP(pc.World, pc.Org, 2)
		dest, src := int(ops[0].Value), int(ops[1].Value)
		min, max := pc.World.ValueRange()
		return buildIntent(pc, name, op, PolicyContext{}, nil, nil, func(ec *ExecContext) error {
			a, err := regScalar(ec.Org, dest)
			if err != nil {
				return err
			}
			b, err := regScalar(ec.Org, src)
			if err != nil {
				return err
			}
			result, err := fn(int64(a.Value), int64(b.Value))
			if err != nil {
				return err
			}
			return setReg(ec.Org, dest, scalarVal(Molecule{Type: a.Type, Value: wrapValue(result, min, max)}))
		}), nil
	}
}

// unaryArith builds a Plan function for a single-register in-place op.
func unaryArith(op Opcode, name string, fn func(a int64) int64) func(pc *PlanContext) (*Intent, error) {
	return func(pc *PlanContext) (*Intent, error) {
		ops, err := literalOperands(pc, 1)
		if err != nil {
			return failIntent(op, err)
		}
		advanceIP(pc.World, pc.Org, 1)
		dest := int(ops[0].Value)
		min, max := pc.World.ValueRange()
		return buildIntent(pc, name, op, PolicyContext{}, nil, nil, func(ec *ExecContext) error {
			a, err := regScalar(ec.Org, dest)
			if err != nil {
				return err
			}
			result := fn(int64(a.Value))
			return setReg(ec.Org, dest, scalarVal(Molecule{Type: a.Type, Value: wrapValue(result, min, max)}))
		}), nil
	}
}
