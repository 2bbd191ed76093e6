package core

import (
	"sync"

	"github.com/sirupsen/logrus"
)

// PolicyContext is everything the thermodynamic policy needs to price one
// instruction: the instruction itself, what it touched, and whether
// this Intent lost conflict resolution.
type PolicyContext struct {
	Opcode        Opcode
	Ownership     OwnershipClass
	MoleculeType  MoleculeType
	ConflictLoser bool
	CurrentEnergy uint32
	CurrentEntropy uint32
	ForeignAnchor bool // fuzzy jump resolved to a foreign-owned label
}

// ThermodynamicPolicy is the single-function pricing plugin:
// given an instruction and its context, produce (ΔE, ΔS). ΔE>0 is a cost,
// ΔE<0 a refund (e.g. PEEK of ENERGY); ΔS>0 is entropy production, ΔS<0 is
// dissipation (e.g. POKE).
type ThermodynamicPolicy interface {
	Cost(name string, ctx PolicyContext) (deltaEnergy, deltaEntropy int64)
	ErrorPenalty() int64
	LoserCharges(name string) bool
}

// PolicyParams is a per-instruction-family override, the unit the
// thermodynamics.overrides configuration manipulates.
type PolicyParams struct {
	BaseEnergy  int64
	BaseEntropy int64

	// Permille-of-current-register proportional components, applied in
	// addition to the base cost.
	EnergyPermilleOfER  int64
	EntropyPermilleOfSR int64

	// Ownership-dependent overrides for world-touching families; nil means
	// "use BaseEnergy regardless of ownership".
	SelfEnergy    *int64
	ForeignEnergy *int64
	UnownedEnergy *int64

	ForeignAnchorPenalty int64 // additional energy cost for a fuzzy jump to a foreign label

	// LoserCharges overrides the global ConflictLoserChargesCost default
	// for this one instruction family; nil defers to the global flag.
	LoserCharges *bool
}

// defaultEnergyCost is the punitive fallback charged for any instruction
// name that slipped past registration without a priced entry, logged once
// per missing name.
const defaultEnergyCost int64 = 1000

// DefaultPolicy is the built-in ThermodynamicPolicy covering every
// instruction family with per-type, per-ownership rules.
type DefaultPolicy struct {
	mu                       sync.RWMutex
	logger                   *logrus.Entry
	errorPenalty             int64
	conflictLoserChargesCost bool
	overrides                map[string]PolicyParams
	warned                   map[string]bool
}

// NewDefaultPolicy constructs the default policy. errorPenalty and the
// global loser-charge flag come from the scheduler configuration;
// overrides come from thermodynamics.overrides.
func NewDefaultPolicy(logger *logrus.Entry, errorPenalty int64, conflictLoserChargesCost bool, overrides map[string]PolicyParams) *DefaultPolicy {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	merged := defaultPolicyTable()
	for name, p := range overrides {
		merged[name] = p
	}
	return &DefaultPolicy{
		logger:                   logger,
		errorPenalty:             errorPenalty,
		conflictLoserChargesCost: conflictLoserChargesCost,
		overrides:                merged,
		warned:                   make(map[string]bool),
	}
}

func (p *DefaultPolicy) ErrorPenalty() int64 { return p.errorPenalty }

func (p *DefaultPolicy) LoserCharges(name string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if params, ok := p.overrides[name]; ok && params.LoserCharges != nil {
		return *params.LoserCharges
	}
	return p.conflictLoserChargesCost
}

func (p *DefaultPolicy) Cost(name string, ctx PolicyContext) (int64, int64) {
	p.mu.RLock()
	params, ok := p.overrides[name]
	p.mu.RUnlock()
	if !ok {
		p.mu.Lock()
		if !p.warned[name] {
			p.logger.WithField("instruction", name).Warn("thermodynamics: missing cost entry, charging default")
			p.warned[name] = true
		}
		p.mu.Unlock()
		return defaultEnergyCost, 0
	}

	energy := params.BaseEnergy
	if params.SelfEnergy != nil || params.ForeignEnergy != nil || params.UnownedEnergy != nil {
		switch ctx.Ownership {
		case OwnSelf:
			if params.SelfEnergy != nil {
				energy = *params.SelfEnergy
			}
		case OwnForeign:
			if params.ForeignEnergy != nil {
				energy = *params.ForeignEnergy
			}
		case OwnUnowned:
			if params.UnownedEnergy != nil {
				energy = *params.UnownedEnergy
			}
		}
	}
	if ctx.ForeignAnchor {
		energy += params.ForeignAnchorPenalty
	}
	if params.EnergyPermilleOfER != 0 {
		energy += int64(ctx.CurrentEnergy) * params.EnergyPermilleOfER / 1000
	}

	entropy := params.BaseEntropy
	if params.EntropyPermilleOfSR != 0 {
		entropy += int64(ctx.CurrentEntropy) * params.EntropyPermilleOfSR / 1000
	}

	if ctx.ConflictLoser && !p.LoserCharges(name) {
		return 0, 0
	}
	return energy, entropy
}

func i64(v int64) *int64 { return &v }
func b(v bool) *bool     { return &v }

// defaultPolicyTable is the built-in per-family pricing, one entry per
// instruction mnemonic registered in the instructions_*.go files.
func defaultPolicyTable() map[string]PolicyParams {
	cheap := PolicyParams{BaseEnergy: 1, BaseEntropy: 1}
	arith := PolicyParams{BaseEnergy: 1, BaseEntropy: 1}
	vector := PolicyParams{BaseEnergy: 2, BaseEntropy: 1}
	control := PolicyParams{BaseEnergy: 2, BaseEntropy: 1}
	jump := PolicyParams{BaseEnergy: 2, BaseEntropy: 1, ForeignAnchorPenalty: 2}
	cond := PolicyParams{BaseEnergy: 1, BaseEntropy: 0}
	state := PolicyParams{BaseEnergy: 1, BaseEntropy: 0}
	scan := PolicyParams{BaseEnergy: 3, BaseEntropy: 1}

	t := map[string]PolicyParams{
		"SETI": cheap, "SETR": cheap, "SETV": cheap,
		"PUSH": cheap, "POP": cheap, "DUP": cheap, "SWAP": cheap, "DROP": cheap, "ROT": cheap,
		"PUSI": cheap, "PUSV": cheap,

		"ADD": arith, "SUB": arith, "MUL": arith, "DIV": arith, "MOD": arith,
		"AND": arith, "OR": arith, "XOR": arith, "NOT": arith,
		"SHL": arith, "SHR": arith, "ROL": arith, "ROR": arith,
		"POPCNT": arith, "BSF": arith, "BSR": arith,

		"VADD": vector, "VSUB": vector, "VDOT": vector, "VCROSS": vector,
		"VGET": vector, "VSET": vector, "VBUILD": vector, "B2V": vector, "V2B": vector, "RTRX": vector,

		"JMPI": jump, "JMPR": jump, "JMPS": jump, "CALL": jump, "RET": control,

		"IFM": cond, "IFP": cond, "IFF": cond, "IFV": cond,
		"NIFM": cond, "NIFP": cond, "NIFF": cond, "NIFV": cond,

		"SCAN": {BaseEnergy: 1, BaseEntropy: 0},
		"SCNI": {BaseEnergy: 1, BaseEntropy: 0},
		"SCNS": {BaseEnergy: 1, BaseEntropy: 0},

		"PEEK": {SelfEnergy: i64(0), ForeignEnergy: i64(2), UnownedEnergy: i64(1)},
		"PEKI": {SelfEnergy: i64(0), ForeignEnergy: i64(2), UnownedEnergy: i64(1)},
		"PEKS": {SelfEnergy: i64(0), ForeignEnergy: i64(2), UnownedEnergy: i64(1)},

		"POKE": {BaseEnergy: 2, BaseEntropy: -1},
		"POKI": {BaseEnergy: 2, BaseEntropy: -1},
		"POKS": {BaseEnergy: 2, BaseEntropy: -1},

		"PPK":  {BaseEnergy: 3, BaseEntropy: -1, SelfEnergy: i64(2), ForeignEnergy: i64(4), UnownedEnergy: i64(3)},
		"PPKI": {BaseEnergy: 3, BaseEntropy: -1, SelfEnergy: i64(2), ForeignEnergy: i64(4), UnownedEnergy: i64(3)},
		"PPKS": {BaseEnergy: 3, BaseEntropy: -1, SelfEnergy: i64(2), ForeignEnergy: i64(4), UnownedEnergy: i64(3)},

		"SEEK": {BaseEnergy: 1, BaseEntropy: 0},

		"PUSL": cheap, "POPL": cheap, "SETLR": cheap, "SKLS": control, "SKLR": control,

		"NOP": {BaseEnergy: 0, BaseEntropy: 0},
		"SYNC": state, "ADP": state, "TURN": state, "POS": state, "DIFF": state,
		"NRG": state, "NTR": state, "GDV": state, "RAND": state, "SMR": state,

		"FORK": {BaseEnergy: 20, BaseEntropy: 5, ForeignAnchorPenalty: 0},
		"FRKI": {BaseEnergy: 20, BaseEntropy: 5},
		"FRKS": {BaseEnergy: 20, BaseEntropy: 5},

		"SPNP": scan, "SNTF": scan, "SNTE": scan,
	}
	return t
}
