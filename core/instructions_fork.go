package core

func init() {
	Register(OpFORK, &InstrDef{Name: "FORK", Shape: ShapeRegister, Operands: 3, Bank: BankData, Plan: planForkFamily(OpFORK, "FORK", fetchForkRegister)})
	Register(OpFRKI, &InstrDef{Name: "FRKI", Shape: ShapeImmediate, Operands: -1, DimOperands: func(d int) int { return 2*d + 1 }, Plan: planForkFamily(OpFRKI, "FRKI", fetchForkImmediate)})
	Register(OpFRKS, &InstrDef{Name: "FRKS", Shape: ShapeStack, Operands: 0, Plan: planForkFamily(OpFRKS, "FRKS", fetchForkStack)})
}

type forkFetch func(pc *PlanContext) (delta Coord, energy int32, dv Coord, err error)

func fetchForkRegister(pc *PlanContext) (Coord, int32, Coord, error) {
	ops, err := literalOperands(pc, 3)
	if err != nil {
		return nil, 0, nil, err
	}
	advanceIP(pc.World, pc.Org, 3)
	delta, err := regVector(pc.Org, int(ops[0].Value))
	if err != nil {
		return nil, 0, nil, err
	}
	energy, err := regScalar(pc.Org, int(ops[1].Value))
	if err != nil {
		return nil, 0, nil, err
	}
	dv, err := regVector(pc.Org, int(ops[2].Value))
	if err != nil {
		return nil, 0, nil, err
	}
	return delta, energy.Value, dv, nil
}

func fetchForkImmediate(pc *PlanContext) (Coord, int32, Coord, error) {
	dims := pc.World.Dims()
	ops, err := literalOperands(pc, 2*dims+1)
	if err != nil {
		return nil, 0, nil, err
	}
	advanceIP(pc.World, pc.Org, 2*dims+1)
	delta := make(Coord, dims)
	dv := make(Coord, dims)
	for i := 0; i < dims; i++ {
		delta[i] = ops[i].Value
		dv[i] = ops[dims+1+i].Value
	}
	return delta, ops[dims].Value, dv, nil
}

func fetchForkStack(pc *PlanContext) (Coord, int32, Coord, error) {
	advanceIP(pc.World, pc.Org, 0)
	dvVal, err := pc.Org.PopData()
	if err != nil {
		return nil, 0, nil, err
	}
	energyVal, err := pc.Org.PopData()
	if err != nil {
		return nil, 0, nil, err
	}
	deltaVal, err := pc.Org.PopData()
	if err != nil {
		return nil, 0, nil, err
	}
	if !dvVal.IsVector || energyVal.IsVector || !deltaVal.IsVector {
		return nil, 0, nil, failf(0, FailTypeMismatch, "fork expects delta vector, energy scalar, dv vector on the stack")
	}
	return deltaVal.Vector, energyVal.Scalar.Value, dvVal.Vector, nil
}

// planForkFamily implements reproduction: the child starts at the
// active DP plus a unit delta, with the transferred energy and the given
// starting DV. The cells the parent marked with its current MR — the body it
// assembled for the child with POKE — change hands during Post-phase
// admission, once the child's real OrganismID exists, along with gene
// mutation and label-namespace rewriting.
func planForkFamily(op Opcode, name string, fetch forkFetch) func(pc *PlanContext) (*Intent, error) {
	return func(pc *PlanContext) (*Intent, error) {
		delta, energyAmount, dv, err := fetch(pc)
		if err != nil {
			return failIntent(op, err)
		}
		if len(dv) != pc.World.Dims() || !dv.IsUnit() {
			return failIntent(op, failf(op, FailNonUnitVector, "fork starting dv must be a unit vector"))
		}
		target, err := adjacentTarget(pc, op, delta)
		if err != nil {
			return failIntent(op, err)
		}
		if !pc.World.IsPassable(target, pc.Org.ID) {
			return failIntent(op, failf(op, FailNotPassable, "fork target is not passable"))
		}
		if energyAmount <= 0 || uint32(energyAmount) > pc.Org.Energy {
			return failIntent(op, failf(op, FailEnergyExceedsER, "fork energy transfer exceeds available er"))
		}
		if pc.RosterCount >= pc.MaxOrganisms && pc.MaxOrganisms > 0 {
			return failIntent(op, failf(op, FailResourceExhaustion, "organism limit reached"))
		}

		parentID := pc.Org.ID
		parentMarker := pc.Org.MarkerReg
		generation := pc.Org.Generation + 1
		birthTick := pc.Tick
		limits := pc.Org.Limits()
		childDV := dv.Clone()
		transfer := uint32(energyAmount)

		return buildIntent(pc, name, op, PolicyContext{}, nil, []Coord{target}, func(ec *ExecContext) error {
			if transfer > ec.Org.Energy {
				return failf(op, FailEnergyExceedsER, "fork energy transfer exceeds available er")
			}
			ec.Org.Energy -= transfer
			child := NewOrganism(0, parentID, generation, target, childDV, transfer, birthTick, limits)
			*ec.Births = append(*ec.Births, &PendingBirth{Child: child, Parent: parentID, MarkerToMove: parentMarker})
			return nil
		}), nil
	}
}
