package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type DBMetrics struct {
	QueryDuration *prometheus.HistogramVec
	Transactions  *prometheus.CounterVec
}

type BusinessMetrics struct {
	ScoreComputations *prometheus.CounterVec
	ScoreDistribution prometheus.Histogram
	ScoreAlerts       prometheus.Counter
	Transfers         *prometheus.CounterVec
	RescoreRuns       *prometheus.CounterVec
}

var (
	DB = DBMetrics{
		QueryDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "credit_engine_db_query_duration_seconds",
				Help:    "Histogram of database query latencies.",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
			},
			[]string{"query_name", "status"},
		),
		Transactions: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "credit_engine_db_transactions_total",
				Help: "Units of work by final outcome.",
			},
			[]string{"outcome"},
		),
	}

	Business = BusinessMetrics{
		ScoreComputations: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "credit_engine_score_computations_total",
				Help: "Credit score computations by status.",
			},
			[]string{"status"},
		),
		ScoreDistribution: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "credit_engine_credit_score",
				Help:    "Distribution of persisted credit scores.",
				Buckets: prometheus.LinearBuckets(300, 50, 12),
			},
		),
		ScoreAlerts: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "credit_engine_score_alerts_total",
				Help: "Low credit score alerts raised.",
			},
		),
		Transfers: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "credit_engine_transfers_total",
				Help: "Balance transfers by status.",
			},
			[]string{"status"},
		),
		RescoreRuns: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "credit_engine_rescore_customers_total",
				Help: "Customers processed by the rescoring batch job, by status.",
			},
			[]string{"status"},
		),
	}
)

func RecordDBQuery(queryName, status string, duration time.Duration) {
	DB.QueryDuration.WithLabelValues(queryName, status).Observe(duration.Seconds())
}

func RecordTransaction(outcome string) {
	DB.Transactions.WithLabelValues(outcome).Inc()
}

func RecordScoreComputation(status string) {
	Business.ScoreComputations.WithLabelValues(status).Inc()
}

func RecordScore(score int, alertRaised bool) {
	Business.ScoreDistribution.Observe(float64(score))
	if alertRaised {
		Business.ScoreAlerts.Inc()
	}
}

func RecordTransfer(status string) {
	Business.Transfers.WithLabelValues(status).Inc()
}

func RecordRescore(status string, count int) {
	Business.RescoreRuns.WithLabelValues(status).Add(float64(count))
}
