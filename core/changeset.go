package core

import (
	"encoding/binary"
	"sort"

	"lukechampine.com/blake3"
)

// CellState is the full observable state of one world cell: molecule,
// owner, marker.
type CellState struct {
	Mol    Molecule
	Owner  OrganismID
	Marker uint8
}

// CellDelta is a single world-cell mutation recorded during one tick,
// carrying both sides so the delta applied to the previous world state
// reproduces the new world state exactly, and so a reverse
// application can reconstruct the previous state for debuggers.
type CellDelta struct {
	Coord Coord
	Old   CellState
	New   CellState
}

// OrganismDelta summarizes one organism's state at the end of a tick:
// full identity for newborns, energy/entropy/position for survivors, the
// death flag and reason for corpses.
type OrganismDelta struct {
	ID          OrganismID
	ParentID    OrganismID
	Generation  int
	BirthTick   uint64
	Energy      uint32
	Entropy     uint32
	IP          Coord
	DV          Coord
	Dead        bool
	DeathReason string
	ErrorCount  uint64
}

// ChangeSet is the complete, order-independent record of one tick: every
// cell write, every organism's resulting state, and the RNG checkpoint
// needed to resume determinism from this point onward. A ChangeSet's Digest
// is reproducible from identical inputs regardless of goroutine scheduling
// during Plan/Execute, since both slices are sorted before hashing.
type ChangeSet struct {
	Tick      uint64
	Cells     []CellDelta
	Organisms []OrganismDelta
	RNGState  RNGCheckpoint

	// SourceMap is the artifact's debugger metadata, forwarded verbatim for
	// downstream consumers. It never enters the Digest: it is static per
	// artifact and carries no tick state.
	SourceMap map[string]any
}

// ChangeSetEmitter accumulates deltas during a tick and finalizes them into
// a ChangeSet once Post completes.
type ChangeSetEmitter struct {
	tick      uint64
	cells     []CellDelta
	organisms []OrganismDelta
}

// NewChangeSetEmitter starts recording for the given tick.
func NewChangeSetEmitter(tick uint64) *ChangeSetEmitter {
	return &ChangeSetEmitter{tick: tick}
}

// RecordCell appends one cell mutation. Safe to call only from the
// single-threaded portions of a tick (Execute winners are disjoint by
// construction, but Post and charge-losers run sequentially).
func (e *ChangeSetEmitter) RecordCell(c Coord, old, new CellState) {
	e.cells = append(e.cells, CellDelta{Coord: c.Clone(), Old: old, New: new})
}

// RecordOrganism appends one organism's resulting state for this tick.
func (e *ChangeSetEmitter) RecordOrganism(org *Organism) {
	e.organisms = append(e.organisms, OrganismDelta{
		ID:          org.ID,
		ParentID:    org.ParentID,
		Generation:  org.Generation,
		BirthTick:   org.BirthTick,
		Energy:      org.Energy,
		Entropy:     org.Entropy,
		IP:          org.IP.Clone(),
		DV:          org.DV.Clone(),
		Dead:        org.IsDead,
		DeathReason: org.DeathReason,
		ErrorCount:  org.ErrorCount,
	})
}

// Finalize sorts both delta lists into a canonical order and returns the
// resulting ChangeSet. Sorting makes Digest independent of the order in
// which concurrent Plan/Execute goroutines happened to append deltas.
func (e *ChangeSetEmitter) Finalize(rngState RNGCheckpoint) *ChangeSet {
	sort.Slice(e.cells, func(i, j int) bool { return coordKey(e.cells[i].Coord) < coordKey(e.cells[j].Coord) })
	sort.Slice(e.organisms, func(i, j int) bool { return e.organisms[i].ID < e.organisms[j].ID })
	return &ChangeSet{
		Tick:      e.tick,
		Cells:     e.cells,
		Organisms: e.organisms,
		RNGState:  rngState,
	}
}

// Apply writes every cell delta's new state into w, reproducing the
// post-tick world from the pre-tick world, the reconstruction guarantee
// replay builds on.
func (cs *ChangeSet) Apply(w *World) error {
	for _, d := range cs.Cells {
		if _, err := w.Swap(d.Coord, d.New.Mol, d.New.Owner, d.New.Marker); err != nil {
			return wrap(err, "apply change-set")
		}
	}
	return nil
}

func hashCellState(h *blake3.Hasher, s CellState) {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(uint32(s.Mol.Type))|uint64(uint32(s.Mol.Value))<<32)
	_, _ = h.Write(buf[:])
	binary.LittleEndian.PutUint64(buf[:], uint64(s.Owner))
	_, _ = h.Write(buf[:])
	_, _ = h.Write([]byte{s.Marker})
}

// Digest returns the BLAKE3 hash of the ChangeSet's canonical byte encoding,
// used as the tick's content fingerprint for replay verification.
func (cs *ChangeSet) Digest() [32]byte {
	h := blake3.New(32, nil)
	var buf [8]byte

	binary.LittleEndian.PutUint64(buf[:], cs.Tick)
	_, _ = h.Write(buf[:])

	for _, d := range cs.Cells {
		for _, v := range d.Coord {
			binary.LittleEndian.PutUint64(buf[:], uint64(uint32(v)))
			_, _ = h.Write(buf[:])
		}
		hashCellState(h, d.Old)
		hashCellState(h, d.New)
	}

	for _, d := range cs.Organisms {
		binary.LittleEndian.PutUint64(buf[:], uint64(d.ID))
		_, _ = h.Write(buf[:])
		binary.LittleEndian.PutUint64(buf[:], uint64(d.ParentID))
		_, _ = h.Write(buf[:])
		binary.LittleEndian.PutUint64(buf[:], uint64(d.Energy)|uint64(d.Entropy)<<32)
		_, _ = h.Write(buf[:])
		for _, v := range d.IP {
			binary.LittleEndian.PutUint64(buf[:], uint64(uint32(v)))
			_, _ = h.Write(buf[:])
		}
		if d.Dead {
			_, _ = h.Write([]byte{1})
		} else {
			_, _ = h.Write([]byte{0})
		}
	}

	binary.LittleEndian.PutUint64(buf[:], cs.RNGState.Seed)
	_, _ = h.Write(buf[:])
	binary.LittleEndian.PutUint64(buf[:], cs.RNGState.Draws)
	_, _ = h.Write(buf[:])

	var out [32]byte
	sum := h.Sum(nil)
	copy(out[:], sum)
	return out
}
