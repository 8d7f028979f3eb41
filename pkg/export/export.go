// Package export aggregates target results into the run summary and writes
// the JSON report and the flattened CSV.
package export

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"time"

	"ttscraper/pkg/metadata"
	"ttscraper/pkg/models"
	"ttscraper/pkg/storage"
)

// Summary holds the aggregate counters of a run
type Summary struct {
	Targets            int     `json:"videos_processed"`
	FailedTargets      int     `json:"videos_failed"`
	InterruptedTargets int     `json:"videos_interrupted"`
	TotalItems         int     `json:"total_comments"`
	DuplicatesSkipped  int     `json:"duplicates_skipped"`
	TotalBatches       int     `json:"total_batches"`
	TokensIssued       int     `json:"tokens_used"`
	ProxyRotations     int     `json:"proxy_rotations"`
	ElapsedSeconds     float64 `json:"elapsed_seconds"`
	ItemsPerSecond     float64 `json:"comments_per_second"`
}

// Summarize totals the per-target counters
func Summarize(results []models.TargetResult, elapsed time.Duration) Summary {
	s := Summary{Targets: len(results)}
	for _, r := range results {
		s.TotalItems += len(r.Items)
		s.DuplicatesSkipped += r.DuplicatesSkipped
		s.TotalBatches += r.TotalBatches
		s.TokensIssued += r.TokensIssued
		s.ProxyRotations += r.ProxyRotations
		if r.Failed() {
			s.FailedTargets++
		}
		if r.Interrupted {
			s.InterruptedTargets++
		}
	}

	s.ElapsedSeconds = round2(elapsed.Seconds())
	if elapsed > 0 {
		s.ItemsPerSecond = round2(float64(s.TotalItems) / elapsed.Seconds())
	}
	return s
}

// ReportConfig echoes the settings that shaped the output
type ReportConfig struct {
	MaxItems      int  `json:"max_comments"`
	Deduplication bool `json:"deduplication"`
}

// Report is the JSON document written at the end of a run
type Report struct {
	Timestamp time.Time             `json:"timestamp"`
	RunID     string                `json:"run_id"`
	ProxyIP   string                `json:"proxy_ip"`
	Config    ReportConfig          `json:"config"`
	Summary   Summary               `json:"summary"`
	Videos    []models.TargetResult `json:"videos"`
}

// NewReport assembles a report. Results are kept in the given order.
func NewReport(runID, proxyIP string, maxItems int, results []models.TargetResult, elapsed time.Duration) *Report {
	if results == nil {
		results = []models.TargetResult{}
	}
	return &Report{
		Timestamp: time.Now(),
		RunID:     runID,
		ProxyIP:   proxyIP,
		Config:    ReportConfig{MaxItems: maxItems, Deduplication: true},
		Summary:   Summarize(results, elapsed),
		Videos:    results,
	}
}

// WriteJSON encodes the report, indented and without HTML escaping
func (r *Report) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(r)
}

// WriteCSV writes one row per comment across all results, header first
func WriteCSV(w io.Writer, results []models.TargetResult) (int, error) {
	cw := csv.NewWriter(w)
	if err := cw.Write(metadata.Header); err != nil {
		return 0, err
	}

	rows := 0
	for _, r := range results {
		for _, m := range metadata.FromResult(r) {
			if err := cw.Write(m.Record()); err != nil {
				return rows, err
			}
			rows++
		}
	}

	cw.Flush()
	return rows, cw.Error()
}

// Paths reports where the artifacts of a run were written
type Paths struct {
	JSON    string
	CSV     string
	CSVRows int
}

// Save writes the report and the CSV through the storage manager. An empty
// file name skips that artifact.
func Save(m *storage.Manager, jsonName, csvName string, report *Report) (Paths, error) {
	var paths Paths

	if jsonName != "" {
		p, err := m.Save(jsonName, report.WriteJSON)
		if err != nil {
			return paths, err
		}
		paths.JSON = p
	}

	if csvName != "" {
		p, err := m.Save(csvName, func(w io.Writer) error {
			n, err := WriteCSV(w, report.Videos)
			paths.CSVRows = n
			return err
		})
		if err != nil {
			return paths, err
		}
		paths.CSV = p
	}

	return paths, nil
}

func round2(f float64) float64 {
	return float64(int64(f*100+0.5)) / 100
}
