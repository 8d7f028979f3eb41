package ui

import (
	"fmt"
	"io"

	"ttscraper/pkg/export"
	"ttscraper/pkg/metadata"
	"ttscraper/pkg/models"
)

// RunInfo is echoed in the banner before scraping starts
type RunInfo struct {
	RunID         string
	Targets       int
	Workers       int
	MaxItems      int
	BatchSize     int
	RefreshEvery  int
	Proxy         string
	ProxyIP       string
	CheckpointDir string
}

// PrintBanner writes the logo and the run configuration
func PrintBanner(w io.Writer, info RunInfo) {
	fmt.Fprint(w, Cyan(ASCIILogo))
	fmt.Fprintln(w)

	row := func(label, value string) {
		fmt.Fprintf(w, "  %-14s %s\n", Cyan(label), Yellow(value))
	}
	row("Run", info.RunID)
	row("Videos", fmt.Sprintf("%d", info.Targets))
	row("Workers", fmt.Sprintf("%d", info.Workers))
	row("Max comments", fmt.Sprintf("%d", info.MaxItems))
	row("Batch size", fmt.Sprintf("%d (token refresh every %d batches)", info.BatchSize, info.RefreshEvery))
	row("Proxy", info.Proxy)
	if info.ProxyIP != "" {
		row("Exit IP", info.ProxyIP)
	}
	if info.CheckpointDir != "" {
		row("Checkpoints", info.CheckpointDir)
	} else {
		row("Checkpoints", "disabled")
	}
	fmt.Fprintln(w)
}

// PrintSummary writes the aggregate counters and artifact paths
func PrintSummary(w io.Writer, s export.Summary, paths export.Paths) {
	fmt.Fprintf(w, "\n%s\n", Magenta("[SUMMARY]"))

	row := func(label string, value interface{}) {
		fmt.Fprintf(w, "  %-20s %v\n", label+":", value)
	}
	row("Videos processed", s.Targets)
	if s.FailedTargets > 0 {
		row("Videos failed", Red(fmt.Sprintf("%d", s.FailedTargets)))
	}
	if s.InterruptedTargets > 0 {
		row("Videos interrupted", Yellow(fmt.Sprintf("%d", s.InterruptedTargets)))
	}
	row("Unique comments", s.TotalItems)
	row("Duplicates skipped", s.DuplicatesSkipped)
	row("Total batches", s.TotalBatches)
	row("Tokens used", s.TokensIssued)
	row("Proxy rotations", s.ProxyRotations)
	row("Elapsed", fmt.Sprintf("%.2fs", s.ElapsedSeconds))
	row("Comments/second", fmt.Sprintf("%.2f", s.ItemsPerSecond))

	if paths.JSON != "" {
		row("Report", paths.JSON)
	}
	if paths.CSV != "" {
		row("CSV", fmt.Sprintf("%s (%d rows)", paths.CSV, paths.CSVRows))
	}
}

// PrintSample writes the first n comments of the first result that has any
func PrintSample(w io.Writer, results []models.TargetResult, n int) {
	if n <= 0 {
		return
	}
	for _, r := range results {
		if len(r.Items) == 0 {
			continue
		}

		fmt.Fprintf(w, "\n%s %s\n", Magenta("[SAMPLE]"), targetName(r))
		for _, m := range metadata.FromResult(r) {
			if n == 0 {
				break
			}
			n--
			fmt.Fprintf(w, "  %s: %q %s\n",
				Cyan(m.Handle()),
				m.GetFormattedText(40),
				Dim(fmt.Sprintf("[%d likes]", m.Likes)),
			)
		}
		return
	}
}
