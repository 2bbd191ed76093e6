// Package config provides a reusable loader for evochora's runtime
// configuration files and environment variables. It is versioned so that
// embedding programs can depend on a stable API contract.
//
// Version: v0.1.0
package config

import (
	"fmt"

	"github.com/spf13/viper"

	"github.com/evochora/evochora-sub003/pkg/utils"
)

// Version is the semantic version of this configuration package.
const Version = "v0.1.0"

// Config is the unified configuration for an evochora run: the world's
// shape, the organism limits every spawned organism inherits, the
// scheduler's boot parameters, and the thermodynamic policy's global
// defaults and per-family overrides.
type Config struct {
	World struct {
		Shape           []int  `mapstructure:"shape" json:"shape"`
		ToroidalPerAxis []bool `mapstructure:"toroidal_per_axis" json:"toroidal_per_axis"`
		ValueBits       uint   `mapstructure:"value_bits" json:"value_bits"`
		TypeBits        uint   `mapstructure:"type_bits" json:"type_bits"`
		ArtifactFile    string `mapstructure:"artifact_file" json:"artifact_file"`
	} `mapstructure:"world" json:"world"`

	OrganismLimits struct {
		MaxEnergy         uint32 `mapstructure:"max_energy" json:"max_energy"`
		MaxEntropy        uint32 `mapstructure:"max_entropy" json:"max_entropy"`
		DataStackSize     int    `mapstructure:"data_stack_size" json:"data_stack_size"`
		CallStackSize     int    `mapstructure:"call_stack_size" json:"call_stack_size"`
		LocationStackSize int    `mapstructure:"location_stack_size" json:"location_stack_size"`
		DataRegCount      int    `mapstructure:"data_reg_count" json:"data_reg_count"`
		LocRegCount       int    `mapstructure:"loc_reg_count" json:"loc_reg_count"`
		DPCount           int    `mapstructure:"dp_count" json:"dp_count"`
	} `mapstructure:"organism_limits" json:"organism_limits"`

	Scheduler struct {
		Seed                     uint64 `mapstructure:"seed" json:"seed"`
		ErrorPenaltyCost         int64  `mapstructure:"error_penalty_cost" json:"error_penalty_cost"`
		ConflictLoserChargesCost bool   `mapstructure:"conflict_loser_charges_cost" json:"conflict_loser_charges_cost"`
		MaxOrganisms             int    `mapstructure:"max_organisms" json:"max_organisms"`
		FuzzyLabelCacheSize      int    `mapstructure:"fuzzy_label_cache_size" json:"fuzzy_label_cache_size"`
	} `mapstructure:"scheduler" json:"scheduler"`

	Thermodynamics struct {
		// Overrides maps an instruction mnemonic (or family representative)
		// to replacement base costs, layered over the built-in policy table.
		Overrides map[string]PolicyOverride `mapstructure:"overrides" json:"overrides"`
	} `mapstructure:"thermodynamics" json:"thermodynamics"`

	Plugins struct {
		Resources string `mapstructure:"resources" json:"resources"` // "none" | "uniform_faucet"
		Recycling string `mapstructure:"recycling" json:"recycling"` // "leave_rubble" | "convert_to_energy"
	} `mapstructure:"plugins" json:"plugins"`

	Logging struct {
		Level string `mapstructure:"level" json:"level"`
		File  string `mapstructure:"file" json:"file"`
	} `mapstructure:"logging" json:"logging"`
}

// PolicyOverride is one thermodynamic policy override entry, applied over
// the built-in per-instruction pricing table.
type PolicyOverride struct {
	BaseEnergy  int64 `mapstructure:"base_energy" json:"base_energy"`
	BaseEntropy int64 `mapstructure:"base_entropy" json:"base_entropy"`
}

// AppConfig holds the configuration loaded via Load or LoadFromEnv.
var AppConfig Config

// Load reads configuration files and merges any environment-specific
// overrides. The resulting configuration is stored in AppConfig and returned.
//
// The function uses the provided environment name to merge additional
// config files. If env is empty, only the default configuration is loaded.
func Load(env string) (*Config, error) {
	viper.SetConfigName("default")
	viper.AddConfigPath("cmd/config")
	viper.AddConfigPath("config")
	viper.SetConfigType("yaml")
	if err := viper.ReadInConfig(); err != nil {
		return nil, utils.Wrap(err, "load config")
	}

	if env != "" {
		viper.SetConfigName(env)
		if err := viper.MergeInConfig(); err != nil {
			return nil, utils.Wrap(err, fmt.Sprintf("merge %s config", env))
		}
	}

	viper.AutomaticEnv() // picks up from .env

	if err := viper.Unmarshal(&AppConfig); err != nil {
		return nil, utils.Wrap(err, "unmarshal config")
	}
	return &AppConfig, nil
}

// LoadFromEnv loads configuration using the EVOCHORA_ENV environment
// variable.
func LoadFromEnv() (*Config, error) {
	return Load(utils.EnvOrDefault("EVOCHORA_ENV", ""))
}
