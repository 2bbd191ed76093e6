package core

import "testing"

func runVectorProgram(t *testing.T, cells []Molecule, setup func(org *Organism)) *Organism {
	t.Helper()
	w := newWorldN(t, 8)
	sched := newSchedulerOn(t, w, SchedulerConfig{ErrorPenaltyCost: 5})
	writeProgram(t, w, Coord{0, 0}, Coord{0, 1}, cells)
	org := NewOrganism(0, 0, 0, Coord{0, 0}, Coord{0, 1}, 50, 0, DefaultOrganismLimits())
	if setup != nil {
		setup(org)
	}
	if err := sched.Spawn(org); err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	runOneTick(t, sched)
	return org
}

func TestVADDAndVSUBAreComponentWise(t *testing.T) {
	org := runVectorProgram(t, []Molecule{codeCell(OpVADD), dataCell(0), dataCell(1)}, func(org *Organism) {
		org.DataRegs[0] = vectorVal(Coord{1, 2})
		org.DataRegs[1] = vectorVal(Coord{3, -1})
	})
	if !org.DataRegs[0].Vector.Equal(Coord{4, 1}) {
		t.Fatalf("VADD result = %v, want {4,1}", org.DataRegs[0].Vector)
	}

	org = runVectorProgram(t, []Molecule{codeCell(OpVSUB), dataCell(0), dataCell(1)}, func(org *Organism) {
		org.DataRegs[0] = vectorVal(Coord{1, 2})
		org.DataRegs[1] = vectorVal(Coord{3, -1})
	})
	if !org.DataRegs[0].Vector.Equal(Coord{-2, 3}) {
		t.Fatalf("VSUB result = %v, want {-2,3}", org.DataRegs[0].Vector)
	}
}

func TestVDOTProducesScalar(t *testing.T) {
	org := runVectorProgram(t, []Molecule{codeCell(OpVDOT), dataCell(0), dataCell(1)}, func(org *Organism) {
		org.DataRegs[0] = vectorVal(Coord{2, 3})
		org.DataRegs[1] = vectorVal(Coord{4, 5})
	})
	got := org.DataRegs[0]
	if got.IsVector || got.Scalar.Value != 23 {
		t.Fatalf("VDOT result = %+v, want scalar 23", got)
	}
}

func TestVCROSSTwoDimensional(t *testing.T) {
	org := runVectorProgram(t, []Molecule{codeCell(OpVCROSS), dataCell(0), dataCell(1)}, func(org *Organism) {
		org.DataRegs[0] = vectorVal(Coord{1, 0})
		org.DataRegs[1] = vectorVal(Coord{0, 1})
	})
	got := org.DataRegs[0]
	if got.IsVector || got.Scalar.Value != 1 {
		t.Fatalf("VCROSS result = %+v, want scalar 1", got)
	}
}

func TestVGETAndVSET(t *testing.T) {
	org := runVectorProgram(t, []Molecule{codeCell(OpVGET), dataCell(0), dataCell(1), dataCell(1)}, func(org *Organism) {
		org.DataRegs[1] = vectorVal(Coord{7, 9})
	})
	if got := org.DataRegs[0]; got.IsVector || got.Scalar.Value != 9 {
		t.Fatalf("VGET result = %+v, want scalar 9", got)
	}

	org = runVectorProgram(t, []Molecule{codeCell(OpVSET), dataCell(0), dataCell(1), dataCell(1)}, func(org *Organism) {
		org.DataRegs[0] = vectorVal(Coord{7, 9})
		org.DataRegs[1] = scalarVal(Molecule{Type: MolData, Value: 4})
	})
	if !org.DataRegs[0].Vector.Equal(Coord{7, 4}) {
		t.Fatalf("VSET result = %v, want {7,4}", org.DataRegs[0].Vector)
	}
}

func TestVBUILDAssemblesFromScalarRegisters(t *testing.T) {
	org := runVectorProgram(t, []Molecule{codeCell(OpVBUILD), dataCell(0), dataCell(1), dataCell(2)}, func(org *Organism) {
		org.DataRegs[1] = scalarVal(Molecule{Type: MolData, Value: 3})
		org.DataRegs[2] = scalarVal(Molecule{Type: MolData, Value: -2})
	})
	if !org.DataRegs[0].Vector.Equal(Coord{3, -2}) {
		t.Fatalf("VBUILD result = %v, want {3,-2}", org.DataRegs[0].Vector)
	}
}

func TestB2VAndV2BRoundTrip(t *testing.T) {
	// Bit 0 is +1 along axis 0, bit 3 is -1 along axis 1.
	org := runVectorProgram(t, []Molecule{codeCell(OpB2V), dataCell(0), dataCell(1)}, func(org *Organism) {
		org.DataRegs[1] = scalarVal(Molecule{Type: MolData, Value: 0b1001})
	})
	if !org.DataRegs[0].Vector.Equal(Coord{1, -1}) {
		t.Fatalf("B2V result = %v, want {1,-1}", org.DataRegs[0].Vector)
	}

	org = runVectorProgram(t, []Molecule{codeCell(OpV2B), dataCell(0), dataCell(1)}, func(org *Organism) {
		org.DataRegs[1] = vectorVal(Coord{1, -1})
	})
	if got := org.DataRegs[0]; got.IsVector || got.Scalar.Value != 0b1001 {
		t.Fatalf("V2B result = %+v, want scalar 0b1001", got)
	}
}

func TestB2VZeroMaskYieldsZeroVector(t *testing.T) {
	org := runVectorProgram(t, []Molecule{codeCell(OpB2V), dataCell(0), dataCell(1)}, func(org *Organism) {
		org.DataRegs[1] = scalarVal(Molecule{Type: MolData, Value: 0})
	})
	if !org.DataRegs[0].Vector.Equal(Coord{0, 0}) {
		t.Fatalf("B2V of zero mask = %v, want the zero vector", org.DataRegs[0].Vector)
	}
}

func TestRTRXRotatesInPlane(t *testing.T) {
	org := runVectorProgram(t, []Molecule{codeCell(OpRTRX), dataCell(0), dataCell(0), dataCell(1)}, func(org *Organism) {
		org.DataRegs[0] = vectorVal(Coord{1, 0})
	})
	if !org.DataRegs[0].Vector.Equal(Coord{0, 1}) {
		t.Fatalf("RTRX of {1,0} = %v, want the 90-degree rotation {0,1}", org.DataRegs[0].Vector)
	}
}

func TestRTRXRejectsDegeneratePlane(t *testing.T) {
	org := runVectorProgram(t, []Molecule{codeCell(OpRTRX), dataCell(0), dataCell(1), dataCell(1)}, func(org *Organism) {
		org.DataRegs[0] = vectorVal(Coord{1, 0})
	})
	if !org.DataRegs[0].Vector.Equal(Coord{1, 0}) {
		t.Fatalf("failed RTRX changed the register to %v", org.DataRegs[0].Vector)
	}
	if org.Energy != 45 {
		t.Fatalf("energy = %d, want error penalty applied", org.Energy)
	}
}
