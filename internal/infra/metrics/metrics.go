// Package metrics: счётчики Prometheus расчёта щитов и обновления прайса.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	BOMBuilds = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "panelbom_bom_builds_total",
			Help: "Total number of panel BOM builds",
		},
		[]string{"status"},
	)

	BOMBuildDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "panelbom_bom_build_duration_seconds",
			Help:    "Time taken to build a panel BOM",
			Buckets: prometheus.DefBuckets,
		},
	)

	BOMLineItems = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "panelbom_bom_line_items",
			Help:    "Number of line items in a built BOM",
			Buckets: []float64{5, 10, 15, 20, 30, 50, 100},
		},
	)

	// Lookups that ended with not found, by category (mpcb, contactor, power_cable, enclosure...)
	LookupsNotFound = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "panelbom_lookups_not_found_total",
			Help: "Total number of catalog lookups without a matching row",
		},
		[]string{"category"},
	)

	Refreshes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "panelbom_price_refreshes_total",
			Help: "Total number of price refresh runs",
		},
		[]string{"status"},
	)

	RefreshDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "panelbom_price_refresh_duration_seconds",
			Help:    "Duration of price refresh runs",
			Buckets: []float64{0.5, 1, 5, 10, 30, 60, 120},
		},
	)

	PricesMerged = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "panelbom_prices_merged_total",
			Help: "Total number of price observations merged into the catalog",
		},
	)

	RefreshInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "panelbom_price_refresh_in_flight",
			Help: "1 while a price refresh is running",
		},
	)
)
