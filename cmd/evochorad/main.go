package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/evochora/evochora-sub003/core"
	"github.com/evochora/evochora-sub003/pkg/config"
	"github.com/evochora/evochora-sub003/pkg/genesis"
)

// daemon owns the running Scheduler and the mutex that guards concurrent
// access from the HTTP handlers and the tick loop goroutine.
type daemon struct {
	mu        sync.RWMutex
	scheduler *core.Scheduler
	running   bool
	runID     string
	logger    *logrus.Entry
}

func (d *daemon) stateHandler(w http.ResponseWriter, _ *http.Request) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := struct {
		RunID     string             `json:"run_id"`
		Tick      uint64             `json:"tick"`
		Running   bool               `json:"running"`
		RNGState  core.RNGCheckpoint `json:"rng_checkpoint"`
		LiveCount int                `json:"live_organisms"`
	}{
		RunID:     d.runID,
		Tick:      d.scheduler.Tick(),
		Running:   d.running,
		RNGState:  d.scheduler.Checkpoint(),
		LiveCount: len(d.scheduler.LiveOrganisms()),
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(out)
}

func (d *daemon) organismsHandler(w http.ResponseWriter, _ *http.Request) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	live := d.scheduler.LiveOrganisms()
	type organismView struct {
		ID         core.OrganismID `json:"id"`
		Generation int             `json:"generation"`
		Energy     uint32          `json:"energy"`
		Entropy    uint32          `json:"entropy"`
		IP         core.Coord      `json:"ip"`
	}
	out := make([]organismView, 0, len(live))
	for _, org := range live {
		out = append(out, organismView{ID: org.ID, Generation: org.Generation, Energy: org.Energy, Entropy: org.Entropy, IP: org.IP})
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(out)
}

func (d *daemon) pauseHandler(w http.ResponseWriter, _ *http.Request) {
	d.mu.Lock()
	d.running = false
	d.mu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}

func (d *daemon) resumeHandler(w http.ResponseWriter, _ *http.Request) {
	d.mu.Lock()
	d.running = true
	d.mu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}

func (d *daemon) tickLoop(ctx context.Context) {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.mu.Lock()
			if d.running {
				if _, err := d.scheduler.RunTick(ctx); err != nil {
					d.logger.WithError(err).Error("tick failed")
					d.running = false
				}
			}
			d.mu.Unlock()
		}
	}
}

func main() {
	_ = godotenv.Load(".env")
	_ = godotenv.Load("../.env")

	cfg, err := config.LoadFromEnv()
	if err != nil {
		logrus.WithError(err).Fatal("load config")
	}
	runID := uuid.NewString()
	logger := logrus.WithField("run_id", runID)

	world, err := core.NewWorld(core.WorldConfig{
		Shape:           cfg.World.Shape,
		ToroidalPerAxis: cfg.World.ToroidalPerAxis,
		ValueBits:       cfg.World.ValueBits,
		TypeBits:        cfg.World.TypeBits,
	})
	if err != nil {
		logger.WithError(err).Fatal("build world")
	}

	artifact, organisms, err := genesis.Load(cfg.World.ArtifactFile)
	if err != nil {
		logger.WithError(err).Fatal("load genesis")
	}
	if err := artifact.Seed(world); err != nil {
		logger.WithError(err).Fatal("seed world")
	}

	metrics := newPrometheusMetrics()
	sched, err := core.NewScheduler(world, core.SchedulerConfig{
		Seed:                     cfg.Scheduler.Seed,
		ErrorPenaltyCost:         cfg.Scheduler.ErrorPenaltyCost,
		ConflictLoserChargesCost: cfg.Scheduler.ConflictLoserChargesCost,
		MaxOrganisms:             cfg.Scheduler.MaxOrganisms,
		FuzzyLabelCacheSize:      cfg.Scheduler.FuzzyLabelCacheSize,
		Artifact:                 artifact,
		Plugins:                  core.DefaultPluginSet(),
		Metrics:                  metrics,
		Logger:                   logger,
	})
	if err != nil {
		logger.WithError(err).Fatal("build scheduler")
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
			logger.WithError(err).Fatal("spawn genesis organism")
		}
	}

	d := &daemon{scheduler: sched, logger: logger, runID: runID, running: true}

	r := chi.NewRouter()
	r.Get("/state", d.stateHandler)
	r.Get("/organisms", d.organismsHandler)
	r.Post("/control/pause", d.pauseHandler)
	r.Post("/control/resume", d.resumeHandler)
	r.Handle("/metrics", promhttp.HandlerFor(metrics.registry, promhttp.HandlerOpts{}))

	addr := os.Getenv("EVOCHORAD_ADDR")
	if addr == "" {
		addr = "127.0.0.1:8090"
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	go d.tickLoop(ctx)

	srv := &http.Server{Addr: addr, Handler: r}
	go func() {
		<-ctx.Done()
		_ = srv.Close()
	}()

	logger.Infof("evochorad listening on %s", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.WithError(err).Fatal(fmt.Sprintf("serve %s", addr))
	}
}
