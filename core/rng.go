package core

import (
	"encoding/binary"
	"math/rand/v2"

	"github.com/cespare/xxhash/v2"
)

// RNGCheckpoint is the serializable state of the scheduler's master RNG,
// sufficient to resume deterministically.
type RNGCheckpoint struct {
	Seed   uint64
	Draws  uint64
	TickAt uint64
}

// masterRNG owns the single seeded stream the scheduler is built around.
// Draws come from math/rand/v2's PCG; sub-stream seeds are derived with
// xxhash so two sub-streams never alias unless their inputs are identical.
type masterRNG struct {
	seed  uint64
	draws uint64
	src   *rand.Rand
}

func newMasterRNG(seed uint64) *masterRNG {
	return &masterRNG{
		seed: seed,
		src:  rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}
}

// Checkpoint captures enough state to resume the master stream. Because
// math/rand/v2's PCG does not expose its internal counters, resuming
// replays Draws calls to Uint64 against a freshly seeded source — cheap at
// realistic tick rates and exact because every draw is a pure function of
// seed and draw index.
func (m *masterRNG) Checkpoint(tick uint64) RNGCheckpoint {
	return RNGCheckpoint{Seed: m.seed, Draws: m.draws, TickAt: tick}
}

func resumeMasterRNG(cp RNGCheckpoint) *masterRNG {
	m := newMasterRNG(cp.Seed)
	for i := uint64(0); i < cp.Draws; i++ {
		m.src.Uint64()
	}
	m.draws = cp.Draws
	return m
}

func (m *masterRNG) draw() uint64 {
	m.draws++
	return m.src.Uint64()
}

// subStream derives a deterministic, independent RNG sub-stream for a
// specific (tick, organismId, callSite) triple. The derivation itself is pure — two calls with identical
// inputs and master seed always yield identical sub-streams — so it does
// not consume draws from the master stream; only the master's own direct
// uses (e.g. Resolve's id tie-break) do.
func (m *masterRNG) subStream(tick uint64, organism OrganismID, callSite string) *rand.Rand {
	h := xxhash.New()
	var buf [24]byte
	binary.LittleEndian.PutUint64(buf[0:8], m.seed)
	binary.LittleEndian.PutUint64(buf[8:16], tick)
	binary.LittleEndian.PutUint64(buf[16:24], uint64(organism))
	h.Write(buf[:])
	h.Write([]byte(callSite))
	sum := h.Sum64()
	return rand.New(rand.NewPCG(sum, sum^0xbf58476d1ce4e5b9))
}

// tieBreakDraw draws from the master stream for Resolve's tie-break among
// equal organism ids — not normally needed since ids are unique, but
// required when the same id could otherwise appear twice in a contrived
// test harness.
func (m *masterRNG) tieBreakDraw() uint64 {
	return m.draw()
}
