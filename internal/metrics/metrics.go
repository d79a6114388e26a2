package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ContextMutations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "crashctx_context_mutations_total",
		Help: "Total number of context mutations, labelled by field.",
	}, []string{"field"})

	ContextWrites = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "crashctx_context_writes_total",
		Help: "Total number of context snapshot writes, labelled by result.",
	}, []string{"result"})

	ContextWriteDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "crashctx_context_write_duration_seconds",
		Help:    "Time spent encoding and atomically writing the context snapshot.",
		Buckets: []float64{.0001, .00025, .0005, .001, .0025, .005, .01, .025, .05, .1},
	})

	BreadcrumbsWritten = promauto.NewCounter(prometheus.CounterOpts{
		Name: "crashctx_breadcrumbs_written_total",
		Help: "Total number of breadcrumbs written to the breadcrumb log.",
	})

	BreadcrumbsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "crashctx_breadcrumbs_dropped_total",
		Help: "Total number of breadcrumbs dropped because the write failed.",
	})

	BreadcrumbRotations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "crashctx_breadcrumb_rotations_total",
		Help: "Total number of breadcrumb file rotations.",
	})

	SDKEnabled = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "crashctx_sdk_enabled",
		Help: "1 when the SDK initialised and persists context, 0 when it runs inert.",
	})
)
