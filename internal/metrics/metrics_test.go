package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"filmgov/internal/catalog"
	"filmgov/internal/quality"
)

func testResult() *quality.Result {
	r := &quality.Result{
		Entities:          12,
		Dimensions:        map[string]quality.DimensionScore{},
		Governance:        map[string]quality.DimensionScore{},
		OverallQuality:    81.5,
		OverallGovernance: 66.67,
		Alerts: []quality.Alert{
			{Level: quality.AlertCritical, Dimension: quality.Completeness, Score: 40},
			{Level: quality.AlertAttention, Dimension: quality.Timeliness, Score: 70},
			{Level: quality.AlertAttention, Dimension: quality.Integrity, Score: 75},
		},
	}
	for _, name := range quality.Dimensions {
		r.Dimensions[name] = quality.DimensionScore{Name: name, Score: 90}
	}
	r.Dimensions[quality.Completeness] = quality.DimensionScore{Name: quality.Completeness, Score: 40}
	for _, name := range quality.GovernanceAreas {
		r.Governance[name] = quality.DimensionScore{Name: name, Score: 50}
	}
	return r
}

func TestExporter_WriteTextfile(t *testing.T) {
	e := NewExporter()
	at := time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)
	e.ObserveAssessment(testResult(), at)
	e.ObserveIngest(&catalog.IngestReport{Read: 10, Created: 7, Updated: 2, Skipped: 1})

	path := filepath.Join(t.TempDir(), "filmgov.prom")
	if err := e.WriteTextfile(path); err != nil {
		t.Fatalf("WriteTextfile() error = %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	out := string(data)

	want := []string{
		`filmgov_quality_score{dimension="completeness"} 40`,
		`filmgov_quality_score{dimension="compliance"} 90`,
		`filmgov_governance_score{area="lineage"} 50`,
		`filmgov_overall_score{kind="quality"} 81.5`,
		`filmgov_overall_score{kind="governance"} 66.67`,
		`filmgov_alerts{level="critical"} 1`,
		`filmgov_alerts{level="attention"} 2`,
		`filmgov_assessed_entities 12`,
		`filmgov_ingest_records{outcome="skipped"} 1`,
		`# TYPE filmgov_quality_score gauge`,
	}
	for _, line := range want {
		if !strings.Contains(out, line) {
			t.Errorf("textfile missing %q\n%s", line, out)
		}
	}
	if strings.Contains(out, "go_goroutines") {
		t.Error("textfile should not contain runtime collectors")
	}
}

func TestExporter_ObserveAssessmentResetsAlerts(t *testing.T) {
	e := NewExporter()
	at := time.Now()
	e.ObserveAssessment(testResult(), at)

	clean := testResult()
	clean.Alerts = nil
	e.ObserveAssessment(clean, at)

	path := filepath.Join(t.TempDir(), "filmgov.prom")
	if err := e.WriteTextfile(path); err != nil {
		t.Fatalf("WriteTextfile() error = %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if !strings.Contains(string(data), `filmgov_alerts{level="critical"} 0`) {
		t.Errorf("critical alerts not reset:\n%s", data)
	}
}

func TestExporter_WriteTextfileBadPath(t *testing.T) {
	e := NewExporter()
	path := filepath.Join(t.TempDir(), "missing", "filmgov.prom")
	if err := e.WriteTextfile(path); err == nil {
		t.Error("WriteTextfile() into a missing directory should fail")
	}
}
