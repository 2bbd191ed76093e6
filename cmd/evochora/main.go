package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/evochora/evochora-sub003/core"
	"github.com/evochora/evochora-sub003/pkg/config"
	"github.com/evochora/evochora-sub003/pkg/genesis"
)

func main() {
	_ = godotenv.Load(".env")
	_ = godotenv.Load("../.env")

	rootCmd := &cobra.Command{Use: "evochora"}
	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(replayCmd())
	rootCmd.AddCommand(validateConfigCmd())
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func buildLogger(cfg *config.Config) *logrus.Entry {
	logger := logrus.New()
	if level, err := logrus.ParseLevel(cfg.Logging.Level); err == nil {
		logger.SetLevel(level)
	}
	if cfg.Logging.File != "" {
		if f, err := os.OpenFile(cfg.Logging.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644); err == nil {
			logger.SetOutput(f)
		}
	}
	return logrus.NewEntry(logger)
}

func defaultMutationRegistry() *core.MutationRegistry {
	reg := core.NewMutationRegistry()
	reg.Register(core.InsertionOperator{})
	reg.Register(core.SubstitutionOperator{})
	reg.Register(core.DeletionOperator{})
	reg.Register(core.DuplicationOperator{MaxSpan: 4})
	reg.SetRate(0.01)
	return reg
}

func buildWorld(cfg *config.Config) (*core.World, error) {
	return core.NewWorld(core.WorldConfig{
		Shape:           cfg.World.Shape,
		ToroidalPerAxis: cfg.World.ToroidalPerAxis,
		ValueBits:       cfg.World.ValueBits,
		TypeBits:        cfg.World.TypeBits,
	})
}

func buildScheduler(cfg *config.Config, world *core.World, artifact *core.ProgramArtifact, logger *logrus.Entry) (*core.Scheduler, error) {
	var recycling core.DeathRecyclingPlugin
	switch cfg.Plugins.Recycling {
	case "convert_to_energy":
		recycling = core.ConvertToEnergyRecycling{EnergyPerCell: 1}
	default:
		recycling = core.LeaveRubbleRecycling{}
	}
	var resources core.ResourceDistributionPlugin
	switch cfg.Plugins.Resources {
	case "uniform_faucet":
		resources = core.UniformEnergyFaucet{DropsPerTick: 1, EnergyValue: 100, EveryNTicks: 1}
	default:
		resources = core.NullResourceDistribution{}
	}

	var overrides map[string]core.PolicyParams
	if len(cfg.Thermodynamics.Overrides) > 0 {
		overrides = make(map[string]core.PolicyParams, len(cfg.Thermodynamics.Overrides))
		for name, o := range cfg.Thermodynamics.Overrides {
			overrides[name] = core.PolicyParams{BaseEnergy: o.BaseEnergy, BaseEntropy: o.BaseEntropy}
		}
	}
	policy := core.NewDefaultPolicy(logger, cfg.Scheduler.ErrorPenaltyCost, cfg.Scheduler.ConflictLoserChargesCost, overrides)

	return core.NewScheduler(world, core.SchedulerConfig{
		Seed:                     cfg.Scheduler.Seed,
		ErrorPenaltyCost:         cfg.Scheduler.ErrorPenaltyCost,
		ConflictLoserChargesCost: cfg.Scheduler.ConflictLoserChargesCost,
		MaxOrganisms:             cfg.Scheduler.MaxOrganisms,
		FuzzyLabelCacheSize:      cfg.Scheduler.FuzzyLabelCacheSize,
		Artifact:                 artifact,
		Policy:                   policy,
		Plugins: core.PluginSet{
			Resources:    resources,
			Recycling:    recycling,
			Interceptors: core.InterceptorChain{core.NullInterceptor{}},
			Mutations:    defaultMutationRegistry(),
		},
		Logger: logger,
	})
}

func runCmd() *cobra.Command {
	var configPath, env string
	var ticks uint64

	cmd := &cobra.Command{
		Use:   "run",
		Short: "run a simulation from a config file and artifact fixture",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(env)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logger := buildLogger(cfg)

			world, err := buildWorld(cfg)
			if err != nil {
				return fmt.Errorf("build world: %w", err)
			}
			artifact, organisms, err := genesis.Load(cfg.World.ArtifactFile)
			if err != nil {
				return fmt.Errorf("load genesis: %w", err)
			}
			if err := artifact.Seed(world); err != nil {
				return fmt.Errorf("seed world: %w", err)
			}

			sched, err := buildScheduler(cfg, world, artifact, logger)
			if err != nil {
				return fmt.Errorf("build scheduler: %w", err)
			}
			limits := core.OrganismLimits{
				MaxEnergy:         cfg.OrganismLimits.MaxEnergy,
				MaxEntropy:        cfg.OrganismLimits.MaxEntropy,
				DataStackSize:     cfg.OrganismLimits.DataStackSize,
				CallStackSize:     cfg.OrganismLimits.CallStackSize,
				LocationStackSize: cfg.OrganismLimits.LocationStackSize,
				DataRegCount:      cfg.OrganismLimits.DataRegCount,
				LocRegCount:       cfg.OrganismLimits.LocRegCount,
				DPCount:           cfg.OrganismLimits.DPCount,
			}
			for _, spec := range organisms {
				org := core.NewOrganism(0, 0, 0, core.Coord(spec.IP), core.Coord(spec.DV), spec.Energy, 0, limits)
				if err := sched.Spawn(org); err != nil {
					return fmt.Errorf("spawn organism: %w", err)
				}
			}

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			for i := uint64(0); i < ticks; i++ {
				report, err := sched.RunTick(ctx)
				if err != nil {
					return fmt.Errorf("tick %d: %w", i, err)
				}
				logger.WithFields(logrus.Fields{
					"tick":    report.Tick,
					"winners": len(report.Winners),
					"losers":  len(report.Losers),
					"births":  len(report.Births),
					"deaths":  len(report.Deaths),
					"digest":  fmt.Sprintf("%x", report.ChangeSet.Digest()),
				}).Info("tick complete")
				if ctx.Err() != nil {
					break
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "config", "unused; configuration is read from ./cmd/config or ./config")
	cmd.Flags().StringVar(&env, "env", "", "environment overlay name")
	cmd.Flags().Uint64Var(&ticks, "ticks", 100, "number of ticks to run")
	_ = configPath
	return cmd
}

func replayCmd() *cobra.Command {
	var env string
	var seed uint64
	var tickAt uint64
	var draws uint64

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "resume a scheduler from an rngCheckpoint and print the next digest",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(env)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logger := buildLogger(cfg)

			world, err := buildWorld(cfg)
			if err != nil {
				return fmt.Errorf("build world: %w", err)
			}
			artifact, _, err := genesis.Load(cfg.World.ArtifactFile)
			if err != nil {
				return fmt.Errorf("load genesis: %w", err)
			}
			if err := artifact.Seed(world); err != nil {
				return fmt.Errorf("seed world: %w", err)
			}

			checkpoint := core.RNGCheckpoint{Seed: seed, Draws: draws, TickAt: tickAt}
			sched, err := core.NewSchedulerFromCheckpoint(world, core.SchedulerConfig{
				Seed:                     cfg.Scheduler.Seed,
				ErrorPenaltyCost:         cfg.Scheduler.ErrorPenaltyCost,
				ConflictLoserChargesCost: cfg.Scheduler.ConflictLoserChargesCost,
				MaxOrganisms:             cfg.Scheduler.MaxOrganisms,
				FuzzyLabelCacheSize:      cfg.Scheduler.FuzzyLabelCacheSize,
				Artifact:                 artifact,
				Plugins:                  core.DefaultPluginSet(),
				Logger:                   logger,
			}, checkpoint)
			if err != nil {
				return fmt.Errorf("resume scheduler: %w", err)
			}

			report, err := sched.RunTick(context.Background())
			if err != nil {
				return fmt.Errorf("replay tick: %w", err)
			}
			fmt.Printf("tick=%d digest=%x\n", report.Tick, report.ChangeSet.Digest())
			return nil
		},
	}
	cmd.Flags().StringVar(&env, "env", "", "environment overlay name")
	cmd.Flags().Uint64Var(&seed, "seed", 0, "master rng seed")
	cmd.Flags().Uint64Var(&tickAt, "tick", 0, "tick the checkpoint was taken at")
	cmd.Flags().Uint64Var(&draws, "draws", 0, "total draws consumed as of the checkpoint")
	return cmd
}

func validateConfigCmd() *cobra.Command {
	var env string
	cmd := &cobra.Command{
		Use:   "validate-config",
		Short: "load and validate a configuration file without running anything",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(env)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			world, err := buildWorld(cfg)
			if err != nil {
				return fmt.Errorf("build world: %w", err)
			}
			artifact, _, err := genesis.Load(cfg.World.ArtifactFile)
			if err != nil {
				return fmt.Errorf("load genesis: %w", err)
			}
			if err := artifact.Validate(world.Dims()); err != nil {
				return fmt.Errorf("validate artifact: %w", err)
			}
			fmt.Println("configuration and artifact fixture are valid")
			return nil
		},
	}
	cmd.Flags().StringVar(&env, "env", "", "environment overlay name")
	return cmd
}
