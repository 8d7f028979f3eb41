package ui

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"ttscraper/pkg/export"
	"ttscraper/pkg/models"
)

func init() {
	NoColor = true
}

func TestStatusTracker(t *testing.T) {
	var buf bytes.Buffer
	st := NewStatusTracker(&buf, 4)

	st.Complete(models.TargetResult{
		TargetID:     "7300",
		Label:        "alice",
		WorkerID:     1,
		TotalBatches: 2,
		Items:        []models.Item{{CID: "a"}, {CID: "b"}},
	})
	st.Complete(models.TargetResult{
		TargetID: "7301",
		WorkerID: 2,
		Error:    "per_target_fatal: retries exhausted",
	})

	assert.Equal(t, 2, st.Done())
	assert.Equal(t, 1, st.Failed())
	assert.Equal(t, 2, st.Items())

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Len(t, lines, 2)
	assert.Contains(t, lines[0], "1/4")
	assert.Contains(t, lines[0], "[DONE] W1 @alice/7300")
	assert.Contains(t, lines[0], "2 comments")
	assert.Contains(t, lines[1], "2/4")
	assert.Contains(t, lines[1], "[FAILED] W2 7301")
	assert.Contains(t, lines[1], "retries exhausted")
}

func TestStatusTrackerInterrupted(t *testing.T) {
	var buf bytes.Buffer
	st := NewStatusTracker(&buf, 1)
	st.Complete(models.TargetResult{TargetID: "1", WorkerID: 1, Interrupted: true, Resumed: true})

	assert.Contains(t, buf.String(), "[STOPPED]")
	assert.Contains(t, buf.String(), "resumed")
	assert.Contains(t, buf.String(), strings.Repeat(ProgressBar, 20))
	assert.Zero(t, st.Failed())
}

func TestPrintBanner(t *testing.T) {
	var buf bytes.Buffer
	PrintBanner(&buf, RunInfo{
		RunID:        "run-1",
		Targets:      3,
		Workers:      3,
		MaxItems:     10000,
		BatchSize:    50,
		RefreshEvery: 15,
		Proxy:        "http://gate.example:7000",
		ProxyIP:      "203.0.113.9",
	})

	out := buf.String()
	assert.Contains(t, out, "COMMENT EXTRACTION")
	assert.Contains(t, out, "run-1")
	assert.Contains(t, out, "50 (token refresh every 15 batches)")
	assert.Contains(t, out, "203.0.113.9")
	assert.Contains(t, out, "disabled")
}

func TestPrintSummary(t *testing.T) {
	var buf bytes.Buffer
	PrintSummary(&buf, export.Summary{
		Targets:           3,
		TotalItems:        110,
		DuplicatesSkipped: 40,
		TotalBatches:      3,
		TokensIssued:      1,
		ElapsedSeconds:    2.5,
		ItemsPerSecond:    44,
	}, export.Paths{JSON: "out/results.json", CSV: "out/results.csv", CSVRows: 110})

	out := buf.String()
	assert.Contains(t, out, "Unique comments:")
	assert.Contains(t, out, "110")
	assert.Contains(t, out, "Duplicates skipped:")
	assert.Contains(t, out, "2.50s")
	assert.Contains(t, out, "44.00")
	assert.Contains(t, out, "out/results.csv (110 rows)")
	assert.NotContains(t, out, "Videos failed")
	assert.NotContains(t, out, "Videos interrupted")
}

func TestPrintSummaryShowsUnfinishedVideos(t *testing.T) {
	var buf bytes.Buffer
	PrintSummary(&buf, export.Summary{Targets: 5, FailedTargets: 2, InterruptedTargets: 3}, export.Paths{})

	out := buf.String()
	assert.Contains(t, out, "Videos failed:")
	assert.Contains(t, out, "Videos interrupted:")
	assert.Contains(t, out, "3")
}

func TestPrintSample(t *testing.T) {
	items := make([]models.Item, 0, 7)
	for i := 0; i < 7; i++ {
		items = append(items, models.Item{
			CID:       string(rune('a' + i)),
			Text:      "a fairly long comment that will certainly be cut short",
			DiggCount: int64(i),
			User:      models.CommentUser{UniqueID: "user"},
		})
	}

	var buf bytes.Buffer
	PrintSample(&buf, []models.TargetResult{
		{TargetID: "empty"},
		{TargetID: "9", Label: "bob", Items: items},
	}, 5)

	out := buf.String()
	assert.Contains(t, out, "@bob/9")
	assert.Equal(t, 5, strings.Count(out, "@user:"))
	assert.Contains(t, out, "...")
	assert.Contains(t, out, "[4 likes]")
	assert.NotContains(t, out, "[5 likes]")
}

func TestPrintSampleNothing(t *testing.T) {
	var buf bytes.Buffer
	PrintSample(&buf, nil, 5)
	PrintSample(&buf, []models.TargetResult{{Items: []models.Item{{CID: "x"}}}}, 0)
	assert.Empty(t, buf.String())
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "1.5s", FormatDuration(1500*time.Millisecond))
	assert.Equal(t, "2m5s", FormatDuration(125*time.Second))
	assert.Equal(t, "1h1m", FormatDuration(61*time.Minute))
}
