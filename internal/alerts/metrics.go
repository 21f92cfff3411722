package alerts

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	jobSavedSearch = "saved_search"
	jobDeadline    = "deadline"
)

var (
	savedSearchItems = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "alerts_saved_search_items_total",
		Help: "Saved searches processed, by outcome.",
	}, []string{"outcome"})

	deadlineRecipients = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "alerts_deadline_recipients_total",
		Help: "Deadline alert recipients processed, by outcome.",
	}, []string{"outcome"})

	runDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "alerts_run_duration_seconds",
		Help:    "Wall time of one alert run.",
		Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200, 1800},
	}, []string{"job"})

	runPartial = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "alerts_run_partial_total",
		Help: "Runs that hit their deadline before every item started.",
	}, []string{"job"})
)
