package core

import (
	"context"
	"testing"

	"github.com/sirupsen/logrus"
)

func newWorldN(t *testing.T, n int) *World {
	t.Helper()
	w, err := NewWorld(WorldConfig{
		Shape:           []int{n, n},
		ToroidalPerAxis: []bool{true, true},
		ValueBits:       16,
		TypeBits:        2,
	})
	if err != nil {
		t.Fatalf("NewWorld: %v", err)
	}
	return w
}

func newSchedulerOn(t *testing.T, w *World, cfg SchedulerConfig) *Scheduler {
	t.Helper()
	if cfg.Seed == 0 {
		cfg.Seed = 1
	}
	if cfg.MaxOrganisms == 0 {
		cfg.MaxOrganisms = 16
	}
	if cfg.Plugins.Resources == nil && cfg.Plugins.Recycling == nil && cfg.Plugins.Mutations == nil {
		cfg.Plugins = DefaultPluginSet()
	}
	sched, err := NewScheduler(w, cfg)
	if err != nil {
		t.Fatalf("NewScheduler: %v", err)
	}
	return sched
}

// writeProgram lays a code stream into w starting at origin, stepping by dv.
func writeProgram(t *testing.T, w *World, origin, dv Coord, cells []Molecule) {
	t.Helper()
	cursor := origin
	for i, mol := range cells {
		if err := w.SeedPlacement(cursor, mol, 0, 0); err != nil {
			t.Fatalf("seed program cell %d: %v", i, err)
		}
		next, ok := w.Normalize(cursor.Add(dv))
		if !ok {
			t.Fatalf("program left the world at cell %d", i)
		}
		cursor = next
	}
}

func codeCell(op Opcode) Molecule { return Molecule{Type: MolCode, Value: int32(op)} }
func dataCell(v int32) Molecule   { return Molecule{Type: MolData, Value: v} }

func runOneTick(t *testing.T, sched *Scheduler) *TickReport {
	t.Helper()
	report, err := sched.RunTick(context.Background())
	if err != nil {
		t.Fatalf("RunTick: %v", err)
	}
	return report
}

// Scenario: PEEK of an adjacent ENERGY molecule absorbs its value into ER,
// empties the cell, and charges the unowned-peek cost.
func TestPEKIAbsorbsEnergyAndEmptiesCell(t *testing.T) {
	w := newWorldN(t, 8)
	sched := newSchedulerOn(t, w, SchedulerConfig{})

	// Program runs along +y so the operand stream does not collide with the
	// peek target at (1,0).
	writeProgram(t, w, Coord{0, 0}, Coord{0, 1}, []Molecule{
		codeCell(OpPEKI), dataCell(0), dataCell(1), dataCell(0),
	})
	if err := w.SeedPlacement(Coord{1, 0}, Molecule{Type: MolEnergy, Value: 25}, 0, 0); err != nil {
		t.Fatalf("seed energy: %v", err)
	}

	org := NewOrganism(0, 0, 0, Coord{0, 0}, Coord{0, 1}, 50, 0, DefaultOrganismLimits())
	if err := sched.Spawn(org); err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	report := runOneTick(t, sched)

	if len(report.Winners) != 1 {
		t.Fatalf("Winners = %d, want 1", len(report.Winners))
	}
	if org.Energy != 74 {
		t.Fatalf("energy after PEKI = %d, want 50 + 25 - 1 = 74", org.Energy)
	}
	mol, _ := w.At(Coord{1, 0})
	owner, _ := w.Owner(Coord{1, 0})
	if !mol.IsEmpty() || owner != 0 {
		t.Fatalf("peeked cell = %v owner=%d, want empty and unowned", mol, owner)
	}
	if org.DataRegs[0].IsVector || org.DataRegs[0].Scalar.Type != MolEnergy {
		t.Fatalf("dest register = %+v, want the consumed ENERGY molecule", org.DataRegs[0])
	}
}

// Scenario: an organism NOPing through an empty world dies of entropy
// overflow at tick maxEntropy when every instruction produces one unit.
func TestEmptyWorldEntropyDeath(t *testing.T) {
	w := newWorldN(t, 4)
	policy := NewDefaultPolicy(logrus.NewEntry(logrus.StandardLogger()), 5, false, map[string]PolicyParams{
		"NOP": {BaseEnergy: 1, BaseEntropy: 1},
	})
	sched := newSchedulerOn(t, w, SchedulerConfig{Policy: policy})

	limits := DefaultOrganismLimits()
	limits.MaxEntropy = 10
	org := NewOrganism(0, 0, 0, Coord{0, 0}, Coord{1, 0}, 100, 0, limits)
	if err := sched.Spawn(org); err != nil {
		t.Fatalf("Spawn: %v", err)
	}

	var deathTick uint64
	for i := 0; i < 20; i++ {
		report := runOneTick(t, sched)
		if len(report.Deaths) > 0 {
			deathTick = report.Tick
			found := false
			for _, od := range report.ChangeSet.Organisms {
				if od.ID == org.ID && od.Dead && od.DeathReason == "entropy-overflow" {
					found = true
				}
			}
			if !found {
				t.Fatalf("death tick change-set lacks the death record: %+v", report.ChangeSet.Organisms)
			}
			break
		}
	}
	if deathTick != 10 {
		t.Fatalf("death tick = %d, want 10 (entropy exceeds 10 on the 11th NOP)", deathTick)
	}
}

func seedPokeRivals(t *testing.T, w *World) (a, b *Organism) {
	t.Helper()
	// A at (0,0) pokes (1,0) via offset (1,0); B at (2,0) pokes the same
	// cell via offset (-1,0). Both programs run along +y.
	writeProgram(t, w, Coord{0, 0}, Coord{0, 1}, []Molecule{
		codeCell(OpPOKI), dataCell(0), dataCell(1), dataCell(0),
	})
	writeProgram(t, w, Coord{2, 0}, Coord{0, 1}, []Molecule{
		codeCell(OpPOKI), dataCell(0), dataCell(-1), dataCell(0),
	})
	limits := DefaultOrganismLimits()
	a = NewOrganism(0, 0, 0, Coord{0, 0}, Coord{0, 1}, 100, 0, limits)
	a.DataRegs[0] = scalarVal(Molecule{Type: MolStructure, Value: 1})
	b = NewOrganism(0, 0, 0, Coord{2, 0}, Coord{0, 1}, 100, 0, limits)
	b.DataRegs[0] = scalarVal(Molecule{Type: MolStructure, Value: 2})
	return a, b
}

// Scenario: two organisms POKE the same cell; the lower ID wins, the loser's
// cost is waived under the default policy.
func TestWriteConflictLowerIDWinsLoserWaived(t *testing.T) {
	w := newWorldN(t, 8)
	sched := newSchedulerOn(t, w, SchedulerConfig{ConflictLoserChargesCost: false})
	a, b := seedPokeRivals(t, w)
	if err := sched.Spawn(a); err != nil {
		t.Fatalf("Spawn a: %v", err)
	}
	if err := sched.Spawn(b); err != nil {
		t.Fatalf("Spawn b: %v", err)
	}
	report := runOneTick(t, sched)

	if len(report.Winners) != 1 || report.Winners[0].Organism != a.ID {
		t.Fatalf("winners = %+v, want only organism %d", report.Winners, a.ID)
	}
	mol, _ := w.At(Coord{1, 0})
	owner, _ := w.Owner(Coord{1, 0})
	if mol.Type != MolStructure || mol.Value != 1 || owner != a.ID {
		t.Fatalf("contested cell = %v owner=%d, want A's STRUCTURE:1", mol, owner)
	}
	if a.Energy != 98 {
		t.Fatalf("winner energy = %d, want 100 - 2 = 98", a.Energy)
	}
	if b.Energy != 100 {
		t.Fatalf("loser energy = %d, want 100 (cost waived)", b.Energy)
	}
}

// Scenario: same conflict with conflictLoserChargesCost=true charges the
// loser the full attempted cost.
func TestWriteConflictLoserChargedWhenConfigured(t *testing.T) {
	w := newWorldN(t, 8)
	sched := newSchedulerOn(t, w, SchedulerConfig{ConflictLoserChargesCost: true})
	a, b := seedPokeRivals(t, w)
	if err := sched.Spawn(a); err != nil {
		t.Fatalf("Spawn a: %v", err)
	}
	if err := sched.Spawn(b); err != nil {
		t.Fatalf("Spawn b: %v", err)
	}
	runOneTick(t, sched)
	if b.Energy != 98 {
		t.Fatalf("loser energy = %d, want 98 (cost charged)", b.Energy)
	}
}

// Scenario: FRKI creates a child at DP+delta with the transferred energy and
// starting DV; every parent-owned cell carrying the parent's MR moves to the
// child with marker reset to 0, other cells stay.
func TestFRKIMarkerTransfer(t *testing.T) {
	w := newWorldN(t, 8)
	sched := newSchedulerOn(t, w, SchedulerConfig{})

	writeProgram(t, w, Coord{0, 0}, Coord{0, 1}, []Molecule{
		codeCell(OpFRKI),
		dataCell(1), dataCell(0), // delta (1,0)
		dataCell(40),             // energy
		dataCell(0), dataCell(1), // child dv (0,1)
	})
	// The body the parent marked for hand-off, plus one unmarked cell.
	if err := w.SeedPlacement(Coord{3, 0}, codeCell(OpNOP), 1, 3); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := w.SeedPlacement(Coord{3, 1}, codeCell(OpNOP), 1, 3); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := w.SeedPlacement(Coord{3, 2}, codeCell(OpNOP), 1, 0); err != nil {
		t.Fatalf("seed: %v", err)
	}

	parent := NewOrganism(0, 0, 0, Coord{0, 0}, Coord{0, 1}, 100, 0, DefaultOrganismLimits())
	parent.MarkerReg = 3
	if err := sched.Spawn(parent); err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	report := runOneTick(t, sched)

	if len(report.Births) != 1 {
		t.Fatalf("Births = %v, want exactly one child", report.Births)
	}
	childID := report.Births[0]
	child := sched.roster[childID]
	if child.Energy != 40 {
		t.Fatalf("child energy = %d, want 40", child.Energy)
	}
	if !child.IP.Equal(Coord{1, 0}) || !child.DV.Equal(Coord{0, 1}) {
		t.Fatalf("child ip=%v dv=%v, want ip={1,0} dv={0,1}", child.IP, child.DV)
	}
	if parent.Energy != 40 {
		t.Fatalf("parent energy = %d, want 100 - 40 - 20 = 40", parent.Energy)
	}
	for _, c := range []Coord{{3, 0}, {3, 1}} {
		owner, _ := w.Owner(c)
		marker, _ := w.Marker(c)
		if owner != childID || marker != 0 {
			t.Fatalf("marked cell %v: owner=%d marker=%d, want owner=%d marker=0", c, owner, marker, childID)
		}
	}
	if owner, _ := w.Owner(Coord{3, 2}); owner != parent.ID {
		t.Fatalf("unmarked cell changed hands: owner=%d, want %d", owner, parent.ID)
	}
	if marker, _ := w.Marker(Coord{3, 2}); marker != 0 {
		t.Fatalf("unmarked cell marker = %d, want its original 0", marker)
	}
}

func TestSEEKRefusesNonPassableCell(t *testing.T) {
	w := newWorldN(t, 8)
	sched := newSchedulerOn(t, w, SchedulerConfig{ErrorPenaltyCost: 5})
	writeProgram(t, w, Coord{0, 0}, Coord{0, 1}, []Molecule{
		codeCell(OpSEEK), dataCell(0),
	})
	// Foreign-owned obstacle at the seek target.
	if err := w.SeedPlacement(Coord{1, 0}, Molecule{Type: MolStructure, Value: 1}, 99, 0); err != nil {
		t.Fatalf("seed: %v", err)
	}
	org := NewOrganism(0, 0, 0, Coord{0, 0}, Coord{0, 1}, 50, 0, DefaultOrganismLimits())
	org.DataRegs[0] = vectorVal(Coord{1, 0})
	if err := sched.Spawn(org); err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	runOneTick(t, sched)

	if !org.ActiveDPCoord().Equal(Coord{0, 0}) {
		t.Fatalf("DP moved to %v despite non-passable target", org.ActiveDPCoord())
	}
	if org.Energy != 45 {
		t.Fatalf("energy = %d, want 50 - errorPenalty(5) = 45", org.Energy)
	}
	if org.ErrorCount != 1 {
		t.Fatalf("error count = %d, want 1", org.ErrorCount)
	}
}

func TestSYNCAlignsActiveDPWithIP(t *testing.T) {
	w := newWorldN(t, 8)
	sched := newSchedulerOn(t, w, SchedulerConfig{})
	writeProgram(t, w, Coord{0, 0}, Coord{1, 0}, []Molecule{codeCell(OpSYNC)})
	org := NewOrganism(0, 0, 0, Coord{0, 0}, Coord{1, 0}, 50, 0, DefaultOrganismLimits())
	if err := sched.Spawn(org); err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	runOneTick(t, sched)
	if !org.IP.Equal(Coord{1, 0}) || !org.ActiveDPCoord().Equal(Coord{1, 0}) {
		t.Fatalf("ip=%v dp=%v, want both {1,0}", org.IP, org.ActiveDPCoord())
	}
}

func TestTURNSetsDVFromRegister(t *testing.T) {
	w := newWorldN(t, 8)
	sched := newSchedulerOn(t, w, SchedulerConfig{})
	writeProgram(t, w, Coord{0, 0}, Coord{1, 0}, []Molecule{codeCell(OpTURN), dataCell(0)})
	org := NewOrganism(0, 0, 0, Coord{0, 0}, Coord{1, 0}, 50, 0, DefaultOrganismLimits())
	org.DataRegs[0] = vectorVal(Coord{0, 1})
	if err := sched.Spawn(org); err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	runOneTick(t, sched)
	if !org.DV.Equal(Coord{0, 1}) {
		t.Fatalf("DV = %v, want {0,1}", org.DV)
	}
}

func TestTURNRejectsNonUnitVector(t *testing.T) {
	w := newWorldN(t, 8)
	sched := newSchedulerOn(t, w, SchedulerConfig{ErrorPenaltyCost: 5})
	writeProgram(t, w, Coord{0, 0}, Coord{1, 0}, []Molecule{codeCell(OpTURN), dataCell(0)})
	org := NewOrganism(0, 0, 0, Coord{0, 0}, Coord{1, 0}, 50, 0, DefaultOrganismLimits())
	org.DataRegs[0] = vectorVal(Coord{1, 1})
	if err := sched.Spawn(org); err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	runOneTick(t, sched)
	if !org.DV.Equal(Coord{1, 0}) {
		t.Fatalf("DV changed to %v on a failed TURN", org.DV)
	}
	if org.Energy != 45 {
		t.Fatalf("energy = %d, want error penalty applied", org.Energy)
	}
}

func TestSKLRJumpsToStoredLocation(t *testing.T) {
	w := newWorldN(t, 8)
	sched := newSchedulerOn(t, w, SchedulerConfig{})
	writeProgram(t, w, Coord{0, 0}, Coord{1, 0}, []Molecule{codeCell(OpSKLR), dataCell(0)})
	org := NewOrganism(0, 0, 0, Coord{0, 0}, Coord{1, 0}, 50, 0, DefaultOrganismLimits())
	org.LocRegs[0] = Coord{2, 2}
	if err := sched.Spawn(org); err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	runOneTick(t, sched)
	if !org.IP.Equal(Coord{2, 2}) {
		t.Fatalf("IP = %v, want the stored location {2,2}", org.IP)
	}
}

func TestSKLSJumpsToPoppedLocation(t *testing.T) {
	w := newWorldN(t, 8)
	sched := newSchedulerOn(t, w, SchedulerConfig{})
	writeProgram(t, w, Coord{0, 0}, Coord{1, 0}, []Molecule{codeCell(OpSKLS)})
	org := NewOrganism(0, 0, 0, Coord{0, 0}, Coord{1, 0}, 50, 0, DefaultOrganismLimits())
	if err := org.PushLocation(Coord{3, 1}); err != nil {
		t.Fatalf("PushLocation: %v", err)
	}
	if err := sched.Spawn(org); err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	runOneTick(t, sched)
	if !org.IP.Equal(Coord{3, 1}) {
		t.Fatalf("IP = %v, want {3,1}", org.IP)
	}
	if len(org.LocationStack) != 0 {
		t.Fatalf("location stack length = %d, want 0", len(org.LocationStack))
	}
}

func TestIFMSkipsNextInstructionWhenNeighborEmpty(t *testing.T) {
	w := newWorldN(t, 8)
	sched := newSchedulerOn(t, w, SchedulerConfig{})
	writeProgram(t, w, Coord{0, 0}, Coord{0, 1}, []Molecule{
		codeCell(OpIFM), dataCell(0), // inspect neighbor via vector in reg 0
		codeCell(OpSETI), dataCell(1), dataCell(5), // skipped when (1,0) empty
		codeCell(OpNOP),
	})
	org := NewOrganism(0, 0, 0, Coord{0, 0}, Coord{0, 1}, 50, 0, DefaultOrganismLimits())
	org.DataRegs[0] = vectorVal(Coord{1, 0})
	if err := sched.Spawn(org); err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	runOneTick(t, sched)
	if !org.IP.Equal(Coord{0, 5}) {
		t.Fatalf("IP = %v, want {0,5} (SETI and operands skipped)", org.IP)
	}

	// Second organism with an occupied neighbor executes the SETI normally.
	w2 := newWorldN(t, 8)
	sched2 := newSchedulerOn(t, w2, SchedulerConfig{})
	writeProgram(t, w2, Coord{0, 0}, Coord{0, 1}, []Molecule{
		codeCell(OpIFM), dataCell(0),
		codeCell(OpSETI), dataCell(1), dataCell(5),
		codeCell(OpNOP),
	})
	if err := w2.SeedPlacement(Coord{1, 0}, Molecule{Type: MolStructure, Value: 1}, 0, 0); err != nil {
		t.Fatalf("seed: %v", err)
	}
	org2 := NewOrganism(0, 0, 0, Coord{0, 0}, Coord{0, 1}, 50, 0, DefaultOrganismLimits())
	org2.DataRegs[0] = vectorVal(Coord{1, 0})
	if err := sched2.Spawn(org2); err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	runOneTick(t, sched2)
	if !org2.IP.Equal(Coord{0, 2}) {
		t.Fatalf("IP = %v, want {0,2} (no skip)", org2.IP)
	}
	runOneTick(t, sched2)
	if v := org2.DataRegs[1]; v.IsVector || v.Scalar.Value != 5 {
		t.Fatalf("reg 1 after SETI = %+v, want scalar 5", v)
	}
}

func TestSCNIReadsWithoutConsuming(t *testing.T) {
	w := newWorldN(t, 8)
	sched := newSchedulerOn(t, w, SchedulerConfig{})
	writeProgram(t, w, Coord{0, 0}, Coord{0, 1}, []Molecule{
		codeCell(OpSCNI), dataCell(0), dataCell(1), dataCell(0),
	})
	if err := w.SeedPlacement(Coord{1, 0}, Molecule{Type: MolEnergy, Value: 25}, 0, 0); err != nil {
		t.Fatalf("seed: %v", err)
	}
	org := NewOrganism(0, 0, 0, Coord{0, 0}, Coord{0, 1}, 50, 0, DefaultOrganismLimits())
	if err := sched.Spawn(org); err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	runOneTick(t, sched)

	if org.DataRegs[0].Scalar.Type != MolEnergy || org.DataRegs[0].Scalar.Value != 25 {
		t.Fatalf("scan result = %+v, want ENERGY:25", org.DataRegs[0])
	}
	mol, _ := w.At(Coord{1, 0})
	if mol.Type != MolEnergy || mol.Value != 25 {
		t.Fatalf("scanned cell = %v, want untouched ENERGY:25", mol)
	}
	if org.Energy != 49 {
		t.Fatalf("energy = %d, want 50 - 1 (scan cost, no absorption)", org.Energy)
	}
}

// Two independently constructed runs over the same seed and genesis must
// emit bit-identical change-set digests tick for tick.
func TestDeterminismTwoIndependentRuns(t *testing.T) {
	build := func() *Scheduler {
		w := newWorldN(t, 8)
		writeProgram(t, w, Coord{0, 0}, Coord{0, 1}, []Molecule{
			codeCell(OpRAND),
			codeCell(OpPUSI), dataCell(7),
			codeCell(OpNOP),
		})
		sched := newSchedulerOn(t, w, SchedulerConfig{
			Seed: 42,
			Plugins: PluginSet{
				Resources: UniformEnergyFaucet{DropsPerTick: 2, EnergyValue: 9, EveryNTicks: 1},
				Recycling: LeaveRubbleRecycling{},
				Mutations: NewMutationRegistry(),
			},
		})
		org := NewOrganism(0, 0, 0, Coord{0, 0}, Coord{0, 1}, 500, 0, DefaultOrganismLimits())
		if err := sched.Spawn(org); err != nil {
			t.Fatalf("Spawn: %v", err)
		}
		return sched
	}
	s1, s2 := build(), build()
	for i := 0; i < 20; i++ {
		r1 := runOneTick(t, s1)
		r2 := runOneTick(t, s2)
		if r1.ChangeSet.Digest() != r2.ChangeSet.Digest() {
			t.Fatalf("digest mismatch at tick %d", i)
		}
	}
}

// The replay assertion mode must abort on a diverging reference trace.
func TestReferenceTraceDetectsDivergence(t *testing.T) {
	build := func(seed uint64, trace [][32]byte) *Scheduler {
		w := newWorldN(t, 8)
		sched := newSchedulerOn(t, w, SchedulerConfig{
			Seed: seed,
			Plugins: PluginSet{
				Resources: UniformEnergyFaucet{DropsPerTick: 2, EnergyValue: 9, EveryNTicks: 1},
				Recycling: LeaveRubbleRecycling{},
				Mutations: NewMutationRegistry(),
			},
			ReferenceTrace: trace,
		})
		org := NewOrganism(0, 0, 0, Coord{0, 0}, Coord{0, 1}, 500, 0, DefaultOrganismLimits())
		if err := sched.Spawn(org); err != nil {
			t.Fatalf("Spawn: %v", err)
		}
		return sched
	}

	reference := build(42, nil)
	var trace [][32]byte
	for i := 0; i < 5; i++ {
		trace = append(trace, runOneTick(t, reference).ChangeSet.Digest())
	}

	// Same seed replays cleanly against its own trace.
	clean := build(42, trace)
	for i := 0; i < 5; i++ {
		runOneTick(t, clean)
	}

	// A different seed diverges and must abort with a DeterminismViolation.
	diverged := build(43, trace)
	var sawViolation bool
	for i := 0; i < 5; i++ {
		if _, err := diverged.RunTick(context.Background()); err != nil {
			if _, ok := err.(*DeterminismViolation); ok {
				sawViolation = true
			}
			break
		}
	}
	if !sawViolation {
		t.Fatal("expected a DeterminismViolation against a mismatched reference trace")
	}
}

// PEEK-consuming an ENERGY molecule moves energy between the world and the
// organism without creating or destroying any: the closed-system total only
// moves by the instruction's priced cost.
func TestEnergyConservationAcrossPEEK(t *testing.T) {
	w := newWorldN(t, 8)
	sched := newSchedulerOn(t, w, SchedulerConfig{})
	writeProgram(t, w, Coord{0, 0}, Coord{0, 1}, []Molecule{
		codeCell(OpPEKI), dataCell(0), dataCell(1), dataCell(0),
	})
	if err := w.SeedPlacement(Coord{1, 0}, Molecule{Type: MolEnergy, Value: 25}, 0, 0); err != nil {
		t.Fatalf("seed energy: %v", err)
	}
	org := NewOrganism(0, 0, 0, Coord{0, 0}, Coord{0, 1}, 50, 0, DefaultOrganismLimits())
	if err := sched.Spawn(org); err != nil {
		t.Fatalf("Spawn: %v", err)
	}

	before := w.TotalEnergy() + int64(org.Energy)
	runOneTick(t, sched)
	after := w.TotalEnergy() + int64(org.Energy)

	// The unowned-PEEK cost of 1 is the only energy that leaves the system.
	if before-after != 1 {
		t.Fatalf("system energy %d -> %d, want exactly the peek cost (1) dissipated", before, after)
	}
	if w.TotalEnergy() != 0 {
		t.Fatalf("world energy = %d, want 0 after the deposit was absorbed", w.TotalEnergy())
	}
}

func TestUniformEnergyFaucetRespectsWorldEnergyCap(t *testing.T) {
	w := newWorldN(t, 4)
	if err := w.SeedPlacement(Coord{0, 0}, Molecule{Type: MolEnergy, Value: 30}, 0, 0); err != nil {
		t.Fatalf("seed: %v", err)
	}
	f := UniformEnergyFaucet{DropsPerTick: 1, EnergyValue: 10, EveryNTicks: 1, MaxWorldEnergy: 20}
	if drops := f.Distribute(w, 1, testRNG(1)); len(drops) != 0 {
		t.Fatalf("faucet fired with %d world energy against a cap of 20: %v", w.TotalEnergy(), drops)
	}
}

// Applying a tick's change-set to a copy of the pre-tick world must
// reproduce the post-tick world cell for cell.
func TestChangeSetReproducesWorldState(t *testing.T) {
	w := newWorldN(t, 8)
	shadow := newWorldN(t, 8)
	program := []Molecule{
		codeCell(OpPOKI), dataCell(0), dataCell(1), dataCell(0),
	}
	writeProgram(t, w, Coord{0, 0}, Coord{0, 1}, program)
	writeProgram(t, shadow, Coord{0, 0}, Coord{0, 1}, program)

	sched := newSchedulerOn(t, w, SchedulerConfig{
		Plugins: PluginSet{
			Resources: UniformEnergyFaucet{DropsPerTick: 1, EnergyValue: 9, EveryNTicks: 1},
			Recycling: LeaveRubbleRecycling{},
			Mutations: NewMutationRegistry(),
		},
	})
	org := NewOrganism(0, 0, 0, Coord{0, 0}, Coord{0, 1}, 50, 0, DefaultOrganismLimits())
	org.DataRegs[0] = scalarVal(Molecule{Type: MolStructure, Value: 3})
	if err := sched.Spawn(org); err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	report := runOneTick(t, sched)

	if err := report.ChangeSet.Apply(shadow); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	for x := int32(0); x < 8; x++ {
		for y := int32(0); y < 8; y++ {
			c := Coord{x, y}
			gotMol, _ := w.At(c)
			wantMol, _ := shadow.At(c)
			gotOwner, _ := w.Owner(c)
			wantOwner, _ := shadow.Owner(c)
			if gotMol != wantMol || gotOwner != wantOwner {
				t.Fatalf("cell %v: live=(%v,%d) shadow=(%v,%d)", c, gotMol, gotOwner, wantMol, wantOwner)
			}
		}
	}
}
