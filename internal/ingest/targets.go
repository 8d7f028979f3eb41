// Package ingest turns command line arguments, target CSV files and config
// entries into the ordered target list of a run.
package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"

	"ttscraper/pkg/config"
	"ttscraper/pkg/logger"
	"ttscraper/pkg/models"
	"ttscraper/pkg/tiktok"
)

const bom = "\ufeff"

// ParseTarget reads "id", "id:label" or a video page URL. The author of a
// URL such as /@name/video/123 becomes the label.
func ParseTarget(s string) (models.Target, bool) {
	s = strings.TrimSpace(strings.TrimPrefix(s, bom))
	if s == "" {
		return models.Target{}, false
	}

	if id := tiktok.ParseVideoID(s); id != "" {
		return models.Target{ID: id, Label: authorFromURL(s)}, true
	}

	idPart, label, _ := strings.Cut(s, ":")
	id := tiktok.ParseVideoID(idPart)
	if id == "" {
		return models.Target{}, false
	}
	return models.Target{ID: id, Label: strings.TrimPrefix(strings.TrimSpace(label), "@")}, true
}

// FromArgs parses positional arguments; invalid ones are returned as errors
// so the caller can reject the command line.
func FromArgs(args []string) ([]models.Target, error) {
	targets := make([]models.Target, 0, len(args))
	var bad []error
	for _, arg := range args {
		t, ok := ParseTarget(arg)
		if !ok {
			bad = append(bad, fmt.Errorf("invalid video id %q", arg))
			continue
		}
		targets = append(targets, t)
	}
	return targets, errors.Join(bad...)
}

// FromConfig converts targets listed in the config file, skipping invalid ids
func FromConfig(entries []config.TargetConfig, log logger.Logger) []models.Target {
	targets := make([]models.Target, 0, len(entries))
	for _, e := range entries {
		t, ok := ParseTarget(e.ID)
		if !ok {
			log.WarnWithFields("Skipping invalid config target", map[string]interface{}{"video_id": e.ID})
			continue
		}
		if e.Label != "" {
			t.Label = strings.TrimPrefix(e.Label, "@")
		}
		targets = append(targets, t)
	}
	return targets
}

// ReadCSV reads "video_id,label" rows. A header row, a UTF-8 BOM, blank
// lines and # comments are tolerated; rows with an invalid id are logged
// and skipped.
func ReadCSV(r io.Reader, log logger.Logger) ([]models.Target, error) {
	if log == nil {
		log = logger.NewNopLogger()
	}

	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.Comment = '#'

	var targets []models.Target
	line := 0
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return targets, fmt.Errorf("failed to read targets: %w", err)
		}
		line++

		if len(record) == 0 {
			continue
		}
		first := strings.TrimSpace(strings.TrimPrefix(record[0], bom))
		if first == "" {
			continue
		}
		if line == 1 && isHeader(first) {
			continue
		}

		t, ok := ParseTarget(first)
		if !ok {
			log.WarnWithFields("Skipping invalid target row", map[string]interface{}{
				"line":     line,
				"video_id": first,
			})
			continue
		}
		if len(record) > 1 {
			if label := strings.TrimPrefix(strings.TrimSpace(record[1]), "@"); label != "" {
				t.Label = label
			}
		}
		targets = append(targets, t)
	}
	return targets, nil
}

// LoadFile reads a targets CSV from disk
func LoadFile(path string, log logger.Logger) ([]models.Target, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open targets file: %w", err)
	}
	defer f.Close()
	return ReadCSV(f, log)
}

// Merge concatenates target lists, keeping the first occurrence of each id
func Merge(lists ...[]models.Target) []models.Target {
	seen := make(map[string]bool)
	var out []models.Target
	for _, list := range lists {
		for _, t := range list {
			if seen[t.ID] {
				continue
			}
			seen[t.ID] = true
			out = append(out, t)
		}
	}
	return out
}

func isHeader(field string) bool {
	switch strings.ToLower(field) {
	case "video_id", "id", "video", "aweme_id":
		return true
	}
	return false
}

func authorFromURL(s string) string {
	u, err := url.Parse(s)
	if err != nil {
		return ""
	}
	for _, part := range strings.Split(strings.Trim(u.Path, "/"), "/") {
		if strings.HasPrefix(part, "@") && len(part) > 1 {
			return part[1:]
		}
	}
	return ""
}
