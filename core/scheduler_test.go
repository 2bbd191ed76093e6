package core

import (
	"context"
	"testing"
)

func TestResolveIntentsFirstClaimWins(t *testing.T) {
	coord := Coord{1, 1}
	intents := []*Intent{
		{Organism: 2, WriteSet: []Coord{coord}},
		{Organism: 1, WriteSet: []Coord{coord}},
	}
	winners, losers := resolveIntents(intents, nil)
	if len(winners) != 1 || winners[0].Organism != 1 {
		t.Fatalf("winners = %+v, want organism 1 to win (ascending-ID order)", winners)
	}
	if len(losers) != 1 || losers[0].Organism != 2 {
		t.Fatalf("losers = %+v, want organism 2 to lose", losers)
	}
}

func TestResolveIntentsDisjointWriteSetsBothWin(t *testing.T) {
	intents := []*Intent{
		{Organism: 1, WriteSet: []Coord{{0, 0}}},
		{Organism: 2, WriteSet: []Coord{{1, 1}}},
	}
	winners, losers := resolveIntents(intents, nil)
	if len(winners) != 2 || len(losers) != 0 {
		t.Fatalf("winners=%d losers=%d, want 2 winners and 0 losers", len(winners), len(losers))
	}
}

func TestResolveIntentsFailedAndSkippedAlwaysLose(t *testing.T) {
	intents := []*Intent{
		{Organism: 1, Failed: true},
		{Organism: 2, Skip: true},
	}
	winners, losers := resolveIntents(intents, nil)
	if len(winners) != 0 || len(losers) != 2 {
		t.Fatalf("winners=%d losers=%d, want 0 winners and 2 losers", len(winners), len(losers))
	}
}

func newTestScheduler(t *testing.T) *Scheduler {
	t.Helper()
	w := newTestWorld(t)
	sched, err := NewScheduler(w, SchedulerConfig{
		Seed:                1,
		ErrorPenaltyCost:    5,
		MaxOrganisms:        10,
		FuzzyLabelCacheSize: 8,
		Plugins:             DefaultPluginSet(),
	})
	if err != nil {
		t.Fatalf("NewScheduler: %v", err)
	}
	return sched
}

func TestSchedulerSpawnRejectsAtCapacity(t *testing.T) {
	w := newTestWorld(t)
	sched, err := NewScheduler(w, SchedulerConfig{Seed: 1, MaxOrganisms: 1, Plugins: DefaultPluginSet()})
	if err != nil {
		t.Fatalf("NewScheduler: %v", err)
	}
	limits := DefaultOrganismLimits()
	if err := sched.Spawn(NewOrganism(0, 0, 0, Coord{0, 0}, Coord{1, 0}, 100, 0, limits)); err != nil {
		t.Fatalf("first Spawn: %v", err)
	}
	err = sched.Spawn(NewOrganism(0, 0, 0, Coord{1, 1}, Coord{1, 0}, 100, 0, limits))
	var failure *InstructionFailure
	if !asFailure(err, &failure) || failure.Kind != FailResourceExhaustion {
		t.Fatalf("second Spawn = %v, want FailResourceExhaustion", err)
	}
}

func TestSchedulerRunTickAdvancesNOPOrganism(t *testing.T) {
	sched := newTestScheduler(t)
	nop, ok := OpcodeByName("NOP")
	if !ok {
		t.Fatal("NOP must be registered")
	}
	if err := sched.world.WriteEmpty(Coord{0, 0}, Molecule{Type: MolCode, Value: int32(nop)}, 0, 0); err != nil {
		t.Fatalf("seed NOP: %v", err)
	}
	limits := DefaultOrganismLimits()
	org := NewOrganism(0, 0, 0, Coord{0, 0}, Coord{1, 0}, 100, 0, limits)
	if err := sched.Spawn(org); err != nil {
		t.Fatalf("Spawn: %v", err)
	}

	report, err := sched.RunTick(context.Background())
	if err != nil {
		t.Fatalf("RunTick: %v", err)
	}
	if report.Tick != 0 {
		t.Fatalf("Tick = %d, want 0", report.Tick)
	}
	if len(report.Winners) != 1 {
		t.Fatalf("Winners = %d, want 1", len(report.Winners))
	}
	if sched.Tick() != 1 {
		t.Fatalf("scheduler tick counter = %d, want 1", sched.Tick())
	}
	if !org.IP.Equal(Coord{1, 0}) {
		t.Fatalf("IP after NOP = %v, want {1,0}", org.IP)
	}
	if report.ChangeSet == nil || report.ChangeSet.Tick != 0 {
		t.Fatal("RunTick must populate a tick-0 ChangeSet")
	}
}

func TestSchedulerAdmitBirthsTransfersMarkedCells(t *testing.T) {
	sched := newTestScheduler(t)
	limits := DefaultOrganismLimits()
	parent := NewOrganism(0, 0, 0, Coord{3, 3}, Coord{1, 0}, 100, 0, limits)
	if err := sched.Spawn(parent); err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	// The parent owns two cells: one tagged with its FORK-time marker, one
	// with a different tag that must stay behind.
	if err := sched.world.WriteEmpty(Coord{0, 0}, Molecule{Type: MolCode, Value: 9}, parent.ID, 4); err != nil {
		t.Fatalf("WriteEmpty: %v", err)
	}
	if err := sched.world.WriteEmpty(Coord{1, 0}, Molecule{Type: MolCode, Value: 8}, parent.ID, 2); err != nil {
		t.Fatalf("WriteEmpty: %v", err)
	}
	child := NewOrganism(0, parent.ID, 1, Coord{2, 0}, Coord{1, 0}, 50, 0, limits)
	pb := &PendingBirth{Child: child, Parent: parent.ID, MarkerToMove: 4}

	rec := newCellRecorder(sched.world)
	admitted := sched.admitBirths(0, []*PendingBirth{pb}, rec)
	if len(admitted) != 1 {
		t.Fatalf("admitted = %v, want 1 entry", admitted)
	}
	owner, _ := sched.world.Owner(Coord{0, 0})
	marker, _ := sched.world.Marker(Coord{0, 0})
	if owner != child.ID || marker != 0 {
		t.Fatalf("marked cell after admitBirths: owner=%d marker=%d, want owner=%d marker=0", owner, marker, child.ID)
	}
	if owner, _ := sched.world.Owner(Coord{1, 0}); owner != parent.ID {
		t.Fatalf("unmarked cell changed hands: owner=%d, want %d", owner, parent.ID)
	}
}

// An insertion mutation grows the transferred genome: the surplus gene must
// land in a real cell owned by the child, not be silently dropped.
func TestSchedulerAdmitBirthsGrowsGenomeOnInsertion(t *testing.T) {
	w := newTestWorld(t)
	mutations := NewMutationRegistry()
	mutations.Register(InsertionOperator{})
	mutations.SetRate(1)
	sched, err := NewScheduler(w, SchedulerConfig{
		Seed:         1,
		MaxOrganisms: 10,
		Plugins: PluginSet{
			Resources: NullResourceDistribution{},
			Recycling: LeaveRubbleRecycling{},
			Mutations: mutations,
		},
	})
	if err != nil {
		t.Fatalf("NewScheduler: %v", err)
	}
	limits := DefaultOrganismLimits()
	parent := NewOrganism(0, 0, 0, Coord{3, 3}, Coord{1, 0}, 100, 0, limits)
	if err := sched.Spawn(parent); err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	if err := sched.world.WriteEmpty(Coord{0, 0}, Molecule{Type: MolCode, Value: 9}, parent.ID, 4); err != nil {
		t.Fatalf("WriteEmpty: %v", err)
	}
	if err := sched.world.WriteEmpty(Coord{1, 0}, Molecule{Type: MolCode, Value: 8}, parent.ID, 4); err != nil {
		t.Fatalf("WriteEmpty: %v", err)
	}
	child := NewOrganism(0, parent.ID, 1, Coord{2, 2}, Coord{1, 0}, 50, 0, limits)
	pb := &PendingBirth{Child: child, Parent: parent.ID, MarkerToMove: 4}

	rec := newCellRecorder(sched.world)
	admitted := sched.admitBirths(0, []*PendingBirth{pb}, rec)
	if len(admitted) != 1 {
		t.Fatalf("admitted = %v, want 1 entry", admitted)
	}
	owned := sched.world.OwnedCells(child.ID)
	if len(owned) != 3 {
		t.Fatalf("child owns %d cells after one insertion over a 2-cell genome, want 3: %v", len(owned), owned)
	}
	// The surplus gene continues along the child's DV from the last
	// transferred cell.
	if owner, _ := sched.world.Owner(Coord{2, 0}); owner != child.ID {
		t.Fatalf("growth cell owner = %d, want %d", owner, child.ID)
	}
}

func TestSchedulerAdmitBirthsRefundsAtCapacity(t *testing.T) {
	w := newTestWorld(t)
	sched, err := NewScheduler(w, SchedulerConfig{Seed: 1, MaxOrganisms: 1, Plugins: DefaultPluginSet()})
	if err != nil {
		t.Fatalf("NewScheduler: %v", err)
	}
	limits := DefaultOrganismLimits()
	parent := NewOrganism(0, 0, 0, Coord{0, 0}, Coord{1, 0}, 50, 0, limits)
	if err := sched.Spawn(parent); err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	child := NewOrganism(0, parent.ID, 1, Coord{1, 1}, Coord{1, 0}, 30, 0, limits)
	pb := &PendingBirth{Child: child, Parent: parent.ID}
	rec := newCellRecorder(sched.world)
	admitted := sched.admitBirths(0, []*PendingBirth{pb}, rec)
	if len(admitted) != 0 {
		t.Fatalf("admitted = %v, want no births once at capacity", admitted)
	}
	if parent.Energy != 80 {
		t.Fatalf("parent energy after refund = %d, want 80", parent.Energy)
	}
	if parent.ErrorCount != 1 {
		t.Fatalf("parent error count = %d, want 1", parent.ErrorCount)
	}
}

func TestSchedulerRunHandsOffEveryReport(t *testing.T) {
	sched := newTestScheduler(t)
	limits := DefaultOrganismLimits()
	if err := sched.Spawn(NewOrganism(0, 0, 0, Coord{0, 0}, Coord{1, 0}, 100, 0, limits)); err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	out := make(chan *TickReport, 1)
	done := make(chan error, 1)
	go func() { done <- sched.Run(context.Background(), 5, out) }()

	var ticks []uint64
	for report := range out {
		ticks = append(ticks, report.Tick)
		if len(ticks) == 5 {
			break
		}
	}
	if err := <-done; err != nil {
		t.Fatalf("Run: %v", err)
	}
	for i, tick := range ticks {
		if tick != uint64(i) {
			t.Fatalf("reports out of order: %v", ticks)
		}
	}
}

func TestSchedulerCheckpointRoundTrip(t *testing.T) {
	sched := newTestScheduler(t)
	nop, _ := OpcodeByName("NOP")
	if err := sched.world.WriteEmpty(Coord{0, 0}, Molecule{Type: MolCode, Value: int32(nop)}, 0, 0); err != nil {
		t.Fatalf("WriteEmpty: %v", err)
	}
	limits := DefaultOrganismLimits()
	if err := sched.Spawn(NewOrganism(0, 0, 0, Coord{0, 0}, Coord{1, 0}, 100, 0, limits)); err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	if _, err := sched.RunTick(context.Background()); err != nil {
		t.Fatalf("RunTick: %v", err)
	}
	cp := sched.Checkpoint()
	if cp.TickAt != sched.Tick() {
		t.Fatalf("Checkpoint.TickAt = %d, want %d", cp.TickAt, sched.Tick())
	}
}
