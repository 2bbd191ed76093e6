package main

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/evochora/evochora-sub003/core"
)

// prometheusMetrics backs core.MetricsRecorder with Prometheus gauges and
// counters: one registry, one metric per observed quantity, registered once
// at construction and updated in place on every observation.
type prometheusMetrics struct {
	registry *prometheus.Registry

	liveOrganismsGauge prometheus.Gauge
	winnersGauge       prometheus.Gauge
	losersGauge        prometheus.Gauge
	failedGauge        prometheus.Gauge
	tickDurationGauge  prometheus.Gauge
	tickCounter        prometheus.Counter
	birthCounter       prometheus.Counter
	deathCounter       *prometheus.CounterVec
}

func newPrometheusMetrics() *prometheusMetrics {
	reg := prometheus.NewRegistry()
	m := &prometheusMetrics{registry: reg}

	m.liveOrganismsGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "evochora_live_organisms",
		Help: "Number of organisms alive as of the last completed tick",
	})
	m.winnersGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "evochora_tick_winners",
		Help: "Number of intents that won Resolve in the last tick",
	})
	m.losersGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "evochora_tick_losers",
		Help: "Number of intents that lost Resolve in the last tick",
	})
	m.failedGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "evochora_tick_failed",
		Help: "Number of intents that failed at Plan or Execute time in the last tick",
	})
	m.tickDurationGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "evochora_tick_duration_seconds",
		Help: "Wall-clock duration of the last completed tick",
	})
	m.tickCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "evochora_ticks_total",
		Help: "Total number of ticks completed",
	})
	m.birthCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "evochora_births_total",
		Help: "Total number of organisms born via FORK",
	})
	m.deathCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "evochora_deaths_total",
		Help: "Total number of organism deaths, by reason",
	}, []string{"reason"})

	reg.MustRegister(
		m.liveOrganismsGauge,
		m.winnersGauge,
		m.losersGauge,
		m.failedGauge,
		m.tickDurationGauge,
		m.tickCounter,
		m.birthCounter,
		m.deathCounter,
	)
	return m
}

func (m *prometheusMetrics) ObserveTick(tick uint64, liveOrganisms, winners, losers, failed int, durationSeconds float64) {
	m.liveOrganismsGauge.Set(float64(liveOrganisms))
	m.winnersGauge.Set(float64(winners))
	m.losersGauge.Set(float64(losers))
	m.failedGauge.Set(float64(failed))
	m.tickDurationGauge.Set(durationSeconds)
	m.tickCounter.Inc()
}

func (m *prometheusMetrics) ObserveDeath(tick uint64, reason string) {
	m.deathCounter.WithLabelValues(reason).Inc()
}

func (m *prometheusMetrics) ObserveBirth(tick uint64, generation int) {
	m.birthCounter.Inc()
}

var _ core.MetricsRecorder = (*prometheusMetrics)(nil)
