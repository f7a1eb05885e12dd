package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var stages = map[string]bool{"import": true, "classify": true, "export": true}

var (
	registry = prometheus.NewRegistry()

	unitsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dcmw_units_total",
		Help: "Units handled per pipeline stage and outcome.",
	}, []string{"stage", "outcome"})

	batchesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dcmw_batches_total",
		Help: "Batches finished per pipeline stage.",
	}, []string{"stage"})

	upsertRetries = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "dcmw_upsert_retries_total",
		Help: "Inserts that lost a uniqueness race and were re-fetched.",
	})

	malformedFiles = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "dcmw_malformed_files_total",
		Help: "Source files skipped as unreadable.",
	})

	artifactsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dcmw_artifacts_total",
		Help: "Reconstructed artifacts by result.",
	}, []string{"result"})

	variantsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dcmw_series_classified_total",
		Help: "Series classified per modality variant.",
	}, []string{"variant"})
)

func init() {
	registry.MustRegister(unitsTotal, batchesTotal, upsertRetries, malformedFiles, artifactsTotal, variantsTotal)

	// stage series exist from start-up so dashboards see zeros
	for stage := range stages {
		batchesTotal.WithLabelValues(stage)
		for _, outcome := range []string{"processed", "failed", "skipped"} {
			unitsTotal.WithLabelValues(stage, outcome)
		}
	}
	artifactsTotal.WithLabelValues("written")
	artifactsTotal.WithLabelValues("existing")
}

// ObserveBatch adds one finished batch to the stage counters. Unknown stages are ignored.
func ObserveBatch(stage string, processed, failed, skipped int) {
	if !stages[stage] {
		return
	}
	batchesTotal.WithLabelValues(stage).Inc()
	unitsTotal.WithLabelValues(stage, "processed").Add(float64(processed))
	unitsTotal.WithLabelValues(stage, "failed").Add(float64(failed))
	unitsTotal.WithLabelValues(stage, "skipped").Add(float64(skipped))
}

func ObserveUpsertRetry() { upsertRetries.Inc() }

func ObserveMalformedFile() { malformedFiles.Inc() }

func ObserveArtifact(written bool) {
	if written {
		artifactsTotal.WithLabelValues("written").Inc()
		return
	}
	artifactsTotal.WithLabelValues("existing").Inc()
}

func ObserveVariant(kind string) {
	variantsTotal.WithLabelValues(kind).Inc()
}

// Handler serves the warehouse counters in the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
