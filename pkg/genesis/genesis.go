// Package genesis loads the on-disk artifact fixture shared by cmd/evochora
// and cmd/evochorad: the world's initial placements and label anchors, plus
// the genesis organisms to spawn before the first tick. core.ProgramArtifact
// itself only carries placements/labels/sourceMap, so the organism list is
// kept alongside it here rather than folded into that type.
package genesis

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/evochora/evochora-sub003/core"
)

// File is the on-disk shape of a genesis fixture.
type File struct {
	Placements []PlacementSpec         `yaml:"placements"`
	Labels     map[string][]AnchorSpec `yaml:"labels"`
	Organisms  []OrganismSpec          `yaml:"organisms"`
}

// PlacementSpec is one genesis cell write. CODE placements may name the
// opcode by mnemonic instead of carrying a raw value — opcode constants are
// process-internal and never appear in fixtures.
type PlacementSpec struct {
	Coord  []int32 `yaml:"coord"`
	Type   string  `yaml:"type"`
	Op     string  `yaml:"op"`
	Value  int32   `yaml:"value"`
	Owner  uint64  `yaml:"owner"`
	Marker uint8   `yaml:"marker"`
}

// AnchorSpec is one fuzzy-label anchor under a label name.
type AnchorSpec struct {
	Coord         []int32 `yaml:"coord"`
	BitPattern    uint32  `yaml:"bit_pattern"`
	NamespaceMask uint32  `yaml:"namespace_mask"`
}

// OrganismSpec is one genesis organism to Spawn once the Scheduler exists.
type OrganismSpec struct {
	IP     []int32 `yaml:"ip"`
	DV     []int32 `yaml:"dv"`
	Energy uint32  `yaml:"energy"`
}

func moleculeType(name string) core.MoleculeType {
	switch name {
	case "data":
		return core.MolData
	case "energy":
		return core.MolEnergy
	case "structure":
		return core.MolStructure
	default:
		return core.MolCode
	}
}

// Load reads path and returns the ProgramArtifact to seed the world with
// plus the organism specs the caller should Spawn afterward.
func Load(path string) (*core.ProgramArtifact, []OrganismSpec, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}
	var gf File
	if err := yaml.Unmarshal(raw, &gf); err != nil {
		return nil, nil, err
	}

	art := &core.ProgramArtifact{
		Labels:    make(map[string][]core.LabelAnchor, len(gf.Labels)),
		SourceMap: map[string]any{"source": path},
	}
	for _, p := range gf.Placements {
		value := p.Value
		if p.Op != "" {
			op, ok := core.OpcodeByName(p.Op)
			if !ok {
				return nil, nil, fmt.Errorf("genesis placement at %v names unknown opcode %q", p.Coord, p.Op)
			}
			value = int32(op)
		}
		art.Placements = append(art.Placements, core.Placement{
			Coord:  core.Coord(p.Coord),
			Mol:    core.Molecule{Type: moleculeType(p.Type), Value: value},
			Owner:  core.OrganismID(p.Owner),
			Marker: p.Marker,
		})
	}
	for name, anchors := range gf.Labels {
		for _, a := range anchors {
			art.Labels[name] = append(art.Labels[name], core.LabelAnchor{
				Coord:         core.Coord(a.Coord),
				BitPattern:    a.BitPattern,
				NamespaceMask: a.NamespaceMask,
			})
		}
	}
	return art, gf.Organisms, nil
}
