// Package metrics exports assessment results as Prometheus gauges in the
// node_exporter textfile format.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"filmgov/internal/catalog"
	"filmgov/internal/quality"
)

const namespace = "filmgov"

// Exporter holds the gauges of the most recent assessment and ingest. It
// owns a private registry so no Go runtime collectors leak into the file.
type Exporter struct {
	registry *prometheus.Registry

	qualityScore    *prometheus.GaugeVec
	governanceScore *prometheus.GaugeVec
	overallScore    *prometheus.GaugeVec
	alerts          *prometheus.GaugeVec
	entities        prometheus.Gauge
	assessedAt      prometheus.Gauge
	ingestRecords   *prometheus.GaugeVec
}

// NewExporter creates an Exporter with every gauge registered.
func NewExporter() *Exporter {
	e := &Exporter{registry: prometheus.NewRegistry()}

	e.qualityScore = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "quality_score",
		Help:      "Quality dimension score from 0 to 100",
	}, []string{"dimension"})
	e.governanceScore = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "governance_score",
		Help:      "Governance area score from 0 to 100",
	}, []string{"area"})
	e.overallScore = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "overall_score",
		Help:      "Overall quality and governance scores",
	}, []string{"kind"})
	e.alerts = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "alerts",
		Help:      "Number of dimension alerts by level",
	}, []string{"level"})
	e.entities = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "assessed_entities",
		Help:      "Live movies covered by the last assessment",
	})
	e.assessedAt = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "last_assessment_timestamp_seconds",
		Help:      "Unix time of the last assessment",
	})
	e.ingestRecords = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "ingest_records",
		Help:      "Records handled by the last ingest by outcome",
	}, []string{"outcome"})

	e.registry.MustRegister(
		e.qualityScore,
		e.governanceScore,
		e.overallScore,
		e.alerts,
		e.entities,
		e.assessedAt,
		e.ingestRecords,
	)
	return e
}

// ObserveAssessment replaces the assessment gauges with r.
func (e *Exporter) ObserveAssessment(r *quality.Result, at time.Time) {
	for _, name := range quality.Dimensions {
		e.qualityScore.WithLabelValues(name).Set(r.Dimensions[name].Score)
	}
	for _, name := range quality.GovernanceAreas {
		e.governanceScore.WithLabelValues(name).Set(r.Governance[name].Score)
	}
	e.overallScore.WithLabelValues("quality").Set(r.OverallQuality)
	e.overallScore.WithLabelValues("governance").Set(r.OverallGovernance)

	levels := map[quality.AlertLevel]float64{
		quality.AlertCritical:  0,
		quality.AlertAttention: 0,
	}
	for _, a := range r.Alerts {
		levels[a.Level]++
	}
	for level, n := range levels {
		e.alerts.WithLabelValues(string(level)).Set(n)
	}

	e.entities.Set(float64(r.Entities))
	e.assessedAt.Set(float64(at.Unix()))
}

// ObserveIngest replaces the ingest gauges with report.
func (e *Exporter) ObserveIngest(report *catalog.IngestReport) {
	e.ingestRecords.WithLabelValues("read").Set(float64(report.Read))
	e.ingestRecords.WithLabelValues("created").Set(float64(report.Created))
	e.ingestRecords.WithLabelValues("updated").Set(float64(report.Updated))
	e.ingestRecords.WithLabelValues("skipped").Set(float64(report.Skipped))
}

// Registry returns the registry backing the exporter.
func (e *Exporter) Registry() *prometheus.Registry {
	return e.registry
}

// WriteTextfile atomically writes every gauge to path.
func (e *Exporter) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, e.registry); err != nil {
		return fmt.Errorf("failed to write metrics to %s: %w", path, err)
	}
	return nil
}
