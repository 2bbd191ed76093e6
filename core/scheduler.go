package core

import (
	"context"
	"sort"
	"time"

	mapset "github.com/deckarep/golang-set"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// SchedulerConfig is the Scheduler's boot-time configuration.
type SchedulerConfig struct {
	Seed                     uint64
	ErrorPenaltyCost         int64
	ConflictLoserChargesCost bool
	MaxOrganisms             int
	FuzzyLabelCacheSize      int
	Artifact                 *ProgramArtifact
	Policy                   ThermodynamicPolicy
	Plugins                  PluginSet
	Metrics                  MetricsRecorder
	Logger                   *logrus.Entry

	// ReferenceTrace, when non-nil, switches on the replay assertion mode:
	// each tick's change-set digest is compared against ReferenceTrace[tick]
	// and a mismatch aborts the run with a DeterminismViolation.
	ReferenceTrace [][32]byte
}

// Scheduler drives the Plan -> Resolve -> Execute -> Post tick loop. Plan
// and Execute fan out across organisms with golang.org/x/sync/errgroup;
// Resolve and Post stay single-threaded because they make the one decision
// (who wins a write) that every other phase depends on being made exactly
// once.
type Scheduler struct {
	world    *World
	policy   ThermodynamicPolicy
	plugins  PluginSet
	resolver *FuzzyLabelResolver
	metrics  MetricsRecorder
	logger   *logrus.Entry

	rng  *masterRNG
	tick uint64

	nextID  OrganismID
	roster  map[OrganismID]*Organism
	order   []OrganismID  // insertion order, for deterministic iteration
	anchors   []LabelAnchor  // flattened from every label in the seeded artifact
	sourceMap map[string]any // artifact debug metadata, forwarded per change-set

	maxOrganisms int
	reference    [][32]byte
}

// NewScheduler constructs a Scheduler over an already-seeded World. Genesis
// organisms (if any) should be added with Spawn before the first Tick.
func NewScheduler(world *World, cfg SchedulerConfig) (*Scheduler, error) {
	if cfg.MaxOrganisms <= 0 {
		return nil, configErrf("scheduler.maxOrganisms must be positive, got %d", cfg.MaxOrganisms)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	policy := cfg.Policy
	if policy == nil {
		policy = NewDefaultPolicy(logger, cfg.ErrorPenaltyCost, cfg.ConflictLoserChargesCost, nil)
	}
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = NoopMetrics{}
	}
	plugins := cfg.Plugins
	if plugins.Resources == nil && plugins.Recycling == nil && plugins.Mutations == nil {
		plugins = DefaultPluginSet()
	}
	var anchors []LabelAnchor
	var sourceMap map[string]any
	if cfg.Artifact != nil {
		for _, list := range cfg.Artifact.Labels {
			anchors = append(anchors, list...)
		}
		sourceMap = cfg.Artifact.SourceMap
	}
	return &Scheduler{
		world:        world,
		policy:       policy,
		plugins:      plugins,
		resolver:     NewFuzzyLabelResolver(cfg.FuzzyLabelCacheSize),
		metrics:      metrics,
		logger:       logger,
		rng:          newMasterRNG(cfg.Seed),
		nextID:       1,
		roster:       make(map[OrganismID]*Organism),
		anchors:      anchors,
		sourceMap:    sourceMap,
		maxOrganisms: cfg.MaxOrganisms,
		reference:    cfg.ReferenceTrace,
	}, nil
}

// NewSchedulerFromCheckpoint resumes a Scheduler at the exact RNG state a
// prior run had reached. Callers must re-seed world and roster themselves
// from the corresponding change-set snapshot; this constructor only restores
// the deterministic stream.
func NewSchedulerFromCheckpoint(world *World, cfg SchedulerConfig, cp RNGCheckpoint) (*Scheduler, error) {
	s, err := NewScheduler(world, cfg)
	if err != nil {
		return nil, err
	}
	s.rng = resumeMasterRNG(cp)
	s.tick = cp.TickAt
	return s, nil
}

// Spawn admits a genesis (or externally injected) organism directly, outside
// the normal FORK birth path. It fails with FailResourceExhaustion if the
// roster is already at MaxOrganisms.
func (s *Scheduler) Spawn(org *Organism) error {
	if s.liveCount() >= s.maxOrganisms {
		return failf(0, FailResourceExhaustion, "scheduler at maxOrganisms")
	}
	if org.ID == 0 {
		org.ID = s.nextID
		s.nextID++
	} else if org.ID >= s.nextID {
		s.nextID = org.ID + 1
	}
	s.roster[org.ID] = org
	s.order = append(s.order, org.ID)
	s.metrics.ObserveBirth(s.tick, org.Generation)
	return nil
}

// liveCount is the number of living organisms; corpses stay in the roster
// for bookkeeping but do not count against maxOrganisms.
func (s *Scheduler) liveCount() int {
	n := 0
	for _, org := range s.roster {
		if !org.IsDead {
			n++
		}
	}
	return n
}

// Tick returns the current tick counter (the tick about to run, not the
// last one completed).
func (s *Scheduler) Tick() uint64 { return s.tick }

// Checkpoint returns the master RNG state as of the last completed tick.
func (s *Scheduler) Checkpoint() RNGCheckpoint { return s.rng.Checkpoint(s.tick) }

// LiveOrganisms returns every organism still alive, in ascending-ID order,
// a read-only snapshot safe for a status endpoint to range over.
func (s *Scheduler) LiveOrganisms() []*Organism {
	ids := make([]OrganismID, 0, len(s.roster))
	for id, org := range s.roster {
		if !org.IsDead {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	out := make([]*Organism, len(ids))
	for i, id := range ids {
		out[i] = s.roster[id]
	}
	return out
}

// cellRecorder snapshots each touched cell's pre-tick state the first time
// any phase is about to mutate it, so the change-set can carry old and new
// sides of every delta without a full-world diff.
type cellRecorder struct {
	world *World
	pre   map[string]CellState
	order []Coord
}

func newCellRecorder(w *World) *cellRecorder {
	return &cellRecorder{world: w, pre: make(map[string]CellState)}
}

func (r *cellRecorder) stateAt(c Coord) CellState {
	mol, _ := r.world.At(c)
	owner, _ := r.world.Owner(c)
	marker, _ := r.world.Marker(c)
	return CellState{Mol: mol, Owner: owner, Marker: marker}
}

func (r *cellRecorder) touch(c Coord) {
	norm, ok := r.world.Normalize(c)
	if !ok {
		return
	}
	key := coordKey(norm)
	if _, seen := r.pre[key]; seen {
		return
	}
	r.pre[key] = r.stateAt(norm)
	r.order = append(r.order, norm)
}

// emit records every touched cell whose state actually changed.
func (r *cellRecorder) emit(e *ChangeSetEmitter) {
	for _, c := range r.order {
		old := r.pre[coordKey(c)]
		now := r.stateAt(c)
		if now != old {
			e.RecordCell(c, old, now)
		}
	}
}

// RunTick executes one full tick — resource distribution, Plan, intercept,
// Resolve, Execute, Post — and returns the TickReport carrying the tick's
// change-set.
func (s *Scheduler) RunTick(ctx context.Context) (*TickReport, error) {
	start := time.Now()
	tick := s.tick
	rec := newCellRecorder(s.world)

	// Resource distribution runs first and sees a consistent pre-tick world.
	if s.plugins.Resources != nil {
		drops := s.plugins.Resources.Distribute(s.world, tick, s.rng.subStream(tick, 0, "resources"))
		s.applyMutations(rec, drops)
	}

	live := s.LiveOrganisms()
	intents := make([]*Intent, len(live))
	rosterCount := len(live)

	g, gctx := errgroup.WithContext(ctx)
	for i, org := range live {
		i, org := i, org
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			intents[i] = s.planOne(tick, org, rosterCount)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, wrap(err, "plan phase")
	}

	if s.plugins.Interceptors != nil {
		for i, it := range intents {
			org := live[i]
			intents[i] = s.plugins.Interceptors.Intercept(tick, org, it)
			if intents[i] == nil {
				intents[i] = &Intent{Organism: org.ID, Skip: true}
			}
		}
	}

	winners, losers := resolveIntents(intents, s.rng)

	// Snapshot the pre-tick state of every cell a winner may write, before
	// any Execute closure runs.
	for _, it := range winners {
		for _, c := range it.WriteSet {
			rec.touch(c)
		}
	}

	birthsPerWinner := make([][]*PendingBirth, len(winners))
	execFailed := make([]bool, len(winners))
	eg, egctx := errgroup.WithContext(ctx)
	for i, it := range winners {
		i, it := i, it
		eg.Go(func() error {
			if egctx.Err() != nil {
				return egctx.Err()
			}
			org := s.roster[it.Organism]
			var local []*PendingBirth
			ec := &ExecContext{
				World:  s.world,
				Org:    org,
				Tick:   tick,
				RNG:    s.rng.subStream(tick, it.Organism, "execute"),
				Policy: s.policy,
				Births: &local,
			}
			if it.Execute != nil {
				if err := it.Execute(ec); err != nil {
					if _, ok := err.(*InstructionFailure); !ok {
						return err
					}
					execFailed[i] = true
				}
			}
			if execFailed[i] {
				org.ChargeEnergy(s.policy.ErrorPenalty())
				org.ErrorCount++
			} else {
				org.ChargeEnergy(it.EnergyCost)
				org.ChargeEntropy(it.EntropyDelta)
			}
			birthsPerWinner[i] = local
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, wrap(err, "execute phase")
	}

	failedCount := 0
	for _, f := range execFailed {
		if f {
			failedCount++
		}
	}
	for _, it := range losers {
		org, ok := s.roster[it.Organism]
		if !ok {
			continue
		}
		switch {
		case it.Skip:
		case it.Failed:
			failedCount++
			org.ChargeEnergy(s.policy.ErrorPenalty())
			org.ErrorCount++
		default:
			name := ""
			if def, ok := Lookup(it.Opcode); ok {
				name = def.Name
			}
			if s.policy.LoserCharges(name) {
				org.ChargeEnergy(it.EnergyCost)
				org.ChargeEntropy(it.EntropyDelta)
			}
		}
	}

	var allBirths []*PendingBirth
	for _, b := range birthsPerWinner {
		allBirths = append(allBirths, b...)
	}
	admitted := s.admitBirths(tick, allBirths, rec)

	var deaths []OrganismID
	for _, org := range live {
		if dead, reason := org.CheckDeath(); dead && !org.IsDead {
			org.IsDead = true
			org.DeathReason = reason
			if s.plugins.Recycling != nil {
				muts := s.plugins.Recycling.Recycle(s.world, org, tick, s.rng.subStream(tick, org.ID, "recycle"))
				s.applyMutations(rec, muts)
			}
			s.metrics.ObserveDeath(tick, reason)
			deaths = append(deaths, org.ID)
		}
	}

	rngState := s.rng.Checkpoint(tick)
	emitter := NewChangeSetEmitter(tick)
	rec.emit(emitter)
	for _, org := range live {
		emitter.RecordOrganism(org)
	}
	for _, id := range admitted {
		if org, ok := s.roster[id]; ok {
			emitter.RecordOrganism(org)
		}
	}
	changeSet := emitter.Finalize(rngState)
	changeSet.SourceMap = s.sourceMap

	if s.reference != nil && tick < uint64(len(s.reference)) {
		if changeSet.Digest() != s.reference[tick] {
			return nil, &DeterminismViolation{Tick: tick, Reason: "change-set digest departs from reference trace"}
		}
	}

	report := &TickReport{
		Tick:      tick,
		Winners:   winners,
		Losers:    losers,
		Births:    admitted,
		Deaths:    deaths,
		RNGState:  rngState,
		ChangeSet: changeSet,
	}

	s.metrics.ObserveTick(tick, len(live), len(winners), len(losers), failedCount, time.Since(start).Seconds())
	s.tick++
	return report, nil
}

func (s *Scheduler) planOne(tick uint64, org *Organism, rosterCount int) *Intent {
	if org.IsDead {
		return &Intent{Organism: org.ID, Skip: true}
	}
	cell, ok := s.world.At(org.IP)
	if !ok {
		return &Intent{Organism: org.ID, Failed: true, FailureKind: FailOutOfRange}
	}
	if cell.Type != MolCode {
		advanceIP(s.world, org, 0)
		return &Intent{Organism: org.ID, Failed: true, FailureKind: FailTypeMismatch}
	}
	op := Opcode(cell.Value)
	if cell.Value == 0 {
		// CODE with value 0 is the empty cell and executes as NOP.
		op = OpNOP
	}
	def, ok := Lookup(op)
	if !ok {
		advanceIP(s.world, org, 0)
		return &Intent{Organism: org.ID, Failed: true, FailureKind: FailTypeMismatch}
	}
	anchors := s.anchors
	var anchorsKey uint64 // 0 = the shared artifact table
	if org.Anchors != nil {
		anchors = org.Anchors
		anchorsKey = uint64(org.ID)
	}
	pc := &PlanContext{
		World:        s.world,
		Org:          org,
		Tick:         tick,
		RNG:          s.rng.subStream(tick, org.ID, "plan"),
		Resolver:     s.resolver,
		Policy:       s.policy,
		Anchors:      anchors,
		AnchorsKey:   anchorsKey,
		RosterCount:  rosterCount,
		MaxOrganisms: s.maxOrganisms,
	}
	intent, err := def.Plan(pc)
	if err != nil {
		if failure, ok := err.(*InstructionFailure); ok {
			return &Intent{Organism: org.ID, Opcode: op, Failed: true, FailureKind: failure.Kind}
		}
		return &Intent{Organism: org.ID, Failed: true, FailureKind: FailTypeMismatch}
	}
	if intent == nil {
		return &Intent{Organism: org.ID, Skip: true}
	}
	intent.Organism = org.ID
	return intent
}

// resolveIntents implements the Resolve step: intents are processed in
// ascending organism-ID order, and the first intent to claim a given
// world-coordinate in its write set wins it; any later intent whose write
// set overlaps an already-claimed coordinate loses in its entirety. Equal
// IDs cannot occur through the normal Spawn/FORK paths; if they ever do,
// a draw from the master stream breaks the tie so the outcome is still a
// pure function of the seed.
func resolveIntents(intents []*Intent, rng *masterRNG) (winners, losers []*Intent) {
	ordered := append([]*Intent(nil), intents...)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Organism < ordered[j].Organism })
	if rng != nil {
		for i := 1; i < len(ordered); i++ {
			if ordered[i-1].Organism == ordered[i].Organism && rng.tieBreakDraw()&1 == 1 {
				ordered[i-1], ordered[i] = ordered[i], ordered[i-1]
			}
		}
	}

	claimed := make(map[string]struct{})
	for _, it := range ordered {
		if it.Failed || it.Skip {
			losers = append(losers, it)
			continue
		}
		conflict := false
		for _, c := range it.WriteSet {
			if _, taken := claimed[coordKey(c)]; taken {
				conflict = true
				break
			}
		}
		if conflict {
			losers = append(losers, it)
			continue
		}
		for _, c := range it.WriteSet {
			claimed[coordKey(c)] = struct{}{}
		}
		winners = append(winners, it)
	}
	return winners, losers
}

// admitBirths assigns real OrganismIDs to this tick's FORK'd children and
// performs the reproduction hand-off: every cell the parent owns with
// marker == the parent's FORK-time MR transfers to the child with marker 0,
// its molecules run through the mutation registry on the way, and the
// child's inherited label anchors are XOR-rewritten into a private
// namespace.
func (s *Scheduler) admitBirths(tick uint64, births []*PendingBirth, rec *cellRecorder) []OrganismID {
	var admitted []OrganismID
	for _, pb := range births {
		parent := s.roster[pb.Parent]
		if s.liveCount() >= s.maxOrganisms {
			// Another birth reached the limit first this tick: refund the
			// parent's transferred energy and count the FORK as failed.
			if parent != nil {
				parent.ChargeEnergy(-int64(pb.Child.Energy))
				parent.ErrorCount++
			}
			continue
		}
		child := pb.Child
		child.ID = s.nextID
		s.nextID++

		var coords []Coord
		for _, c := range s.world.OwnedCells(pb.Parent) {
			if marker, ok := s.world.Marker(c); ok && marker == pb.MarkerToMove {
				coords = append(coords, c)
			}
		}
		genes := make([]Molecule, len(coords))
		for i, c := range coords {
			genes[i], _ = s.world.At(c)
		}
		if s.plugins.Mutations != nil {
			genes = s.plugins.Mutations.Apply(genes, s.rng.subStream(tick, child.ID, "mutate"))
		}
		for i, c := range coords {
			rec.touch(c)
			if i < len(genes) {
				_, _ = s.world.Swap(c, genes[i], child.ID, 0)
			} else {
				// A deletion mutation shrank the genome: trailing cells of
				// the transferred region decay to empty.
				_, _ = s.world.Swap(c, EmptyMolecule, 0, 0)
			}
		}
		// An insertion or duplication mutation grew the genome past the
		// transferred region: the surplus genes continue along the child's
		// DV from the last transferred cell, claiming empty unowned cells.
		// The first blocked cell ends the growth; genes past it are lost to
		// crowding.
		if len(genes) > len(coords) && len(coords) > 0 {
			cursor := coords[len(coords)-1]
			for _, gene := range genes[len(coords):] {
				next, ok := s.world.Normalize(cursor.Add(child.DV))
				if !ok {
					break
				}
				cursor = next
				mol, ok := s.world.At(cursor)
				owner, _ := s.world.Owner(cursor)
				if !ok || !mol.IsEmpty() || owner != 0 {
					break
				}
				rec.touch(cursor)
				_, _ = s.world.Swap(cursor, gene, child.ID, 0)
				coords = append(coords, cursor)
			}
		}

		mask := uint32(s.rng.subStream(tick, child.ID, "namespace").Uint64())
		child.Anchors = RewriteNamespace(s.inheritedAnchors(parent, coords), mask)

		s.roster[child.ID] = child
		s.order = append(s.order, child.ID)
		s.metrics.ObserveBirth(tick, child.Generation)
		admitted = append(admitted, child.ID)
	}
	return admitted
}

// inheritedAnchors selects the anchors sitting on the cells that just
// changed hands — the child's share of the parent's label table.
func (s *Scheduler) inheritedAnchors(parent *Organism, coords []Coord) []LabelAnchor {
	src := s.anchors
	if parent != nil && parent.Anchors != nil {
		src = parent.Anchors
	}
	owned := mapset.NewThreadUnsafeSet()
	for _, c := range coords {
		owned.Add(coordKey(c))
	}
	var out []LabelAnchor
	for _, a := range src {
		if owned.Contains(coordKey(a.Coord)) {
			out = append(out, a)
		}
	}
	return out
}

func (s *Scheduler) applyMutations(rec *cellRecorder, muts []CellMutation) {
	for _, m := range muts {
		rec.touch(m.Coord)
		_, _ = s.world.Swap(m.Coord, m.Mol, m.Owner, m.Marker)
	}
}

// Run executes ticks until ctx is cancelled or, when ticks is non-zero,
// that many ticks have completed, handing each report into out. The send
// blocks when the consumer lags, so one tick's change-set is fully handed
// off before the next tick begins, so a lagging consumer applies
// backpressure to the tick clock rather than dropping data.
func (s *Scheduler) Run(ctx context.Context, ticks uint64, out chan<- *TickReport) error {
	for i := uint64(0); ticks == 0 || i < ticks; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		report, err := s.RunTick(ctx)
		if err != nil {
			return err
		}
		if out != nil {
			select {
			case out <- report:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	return nil
}

// TickReport is the per-tick summary RunTick returns: the resolved intent
// sets, birth/death rosters, and the change-set external pipelines consume.
type TickReport struct {
	Tick      uint64
	Winners   []*Intent
	Losers    []*Intent
	Births    []OrganismID
	Deaths    []OrganismID
	RNGState  RNGCheckpoint
	ChangeSet *ChangeSet
}
