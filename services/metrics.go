package services

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	analysesTotal   *prometheus.CounterVec
	chatTurnsTotal  *prometheus.CounterVec
	synthesesTotal  *prometheus.CounterVec
	modelCallLength *prometheus.HistogramVec
)

func init() {
	analysesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orbit_paper_analyses_total",
			Help: "Total number of paper analyses by outcome.",
		},
		[]string{"result"},
	)
	chatTurnsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orbit_chat_turns_total",
			Help: "Total number of chat turns answered by outcome.",
		},
		[]string{"result"},
	)
	synthesesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orbit_syntheses_total",
			Help: "Total number of cross-paper syntheses by outcome.",
		},
		[]string{"result"},
	)
	modelCallLength = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "orbit_model_request_duration_seconds",
			Help:    "Duration of model requests by operation.",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 20, 40, 80, 120},
		},
		[]string{"operation"},
	)
	prometheus.MustRegister(analysesTotal, chatTurnsTotal, synthesesTotal, modelCallLength)
}

// outcome übersetzt einen Fehler in das Label für die Zähler.
func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrUnreachable):
		return "unreachable"
	case errors.Is(err, ErrExtraction):
		return "unparseable"
	default:
		return "error"
	}
}

func observeModelCall(operation string, started time.Time) {
	modelCallLength.WithLabelValues(operation).Observe(time.Since(started).Seconds())
}
