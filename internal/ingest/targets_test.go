package ingest

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ttscraper/pkg/config"
	"ttscraper/pkg/logger"
	"ttscraper/pkg/models"
)

func TestParseTarget(t *testing.T) {
	tests := []struct {
		in   string
		want models.Target
		ok   bool
	}{
		{"7301234567890123456", models.Target{ID: "7301234567890123456"}, true},
		{" 7301:@creator ", models.Target{ID: "7301", Label: "creator"}, true},
		{"https://www.tiktok.com/@someone/video/7301234?lang=en", models.Target{ID: "7301234", Label: "someone"}, true},
		{"https://www.tiktok.com/video/42", models.Target{ID: "42"}, true},
		{"abc", models.Target{}, false},
		{"abc:label", models.Target{}, false},
		{"", models.Target{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseTarget(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFromArgs(t *testing.T) {
	targets, err := FromArgs([]string{"1:a", "2"})
	require.NoError(t, err)
	assert.Equal(t, []models.Target{{ID: "1", Label: "a"}, {ID: "2"}}, targets)

	targets, err = FromArgs([]string{"1", "nope"})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), `"nope"`)
	assert.Len(t, targets, 1)
}

func TestReadCSV(t *testing.T) {
	input := "\ufeffvideo_id,label\n" +
		"7301,alice\n" +
		"\n" +
		"# paused\n" +
		"not-an-id,bob\n" +
		"7302\n" +
		"https://www.tiktok.com/@carol/video/7303,\n" +
		"7304, @dave\n"

	log := logger.NewTestLogger()
	targets, err := ReadCSV(strings.NewReader(input), log)
	require.NoError(t, err)

	assert.Equal(t, []models.Target{
		{ID: "7301", Label: "alice"},
		{ID: "7302"},
		{ID: "7303", Label: "carol"},
		{ID: "7304", Label: "dave"},
	}, targets)
	assert.True(t, log.HasMessage("Skipping invalid target row"))
}

func TestReadCSVWithoutHeader(t *testing.T) {
	targets, err := ReadCSV(strings.NewReader("\ufeff11,x\n22,y\n"), nil)
	require.NoError(t, err)
	assert.Equal(t, []models.Target{{ID: "11", Label: "x"}, {ID: "22", Label: "y"}}, targets)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "targets.csv")
	require.NoError(t, os.WriteFile(path, []byte("id,author\n5,eve\n"), 0644))

	targets, err := LoadFile(path, nil)
	require.NoError(t, err)
	assert.Equal(t, []models.Target{{ID: "5", Label: "eve"}}, targets)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.csv"), nil)
	assert.Error(t, err)
}

func TestFromConfig(t *testing.T) {
	log := logger.NewTestLogger()
	targets := FromConfig([]config.TargetConfig{
		{ID: "9", Label: "@frank"},
		{ID: "bad"},
		{ID: "https://www.tiktok.com/@gina/video/10"},
	}, log)

	assert.Equal(t, []models.Target{{ID: "9", Label: "frank"}, {ID: "10", Label: "gina"}}, targets)
	assert.True(t, log.HasMessage("Skipping invalid config target"))
}

func TestMerge(t *testing.T) {
	got := Merge(
		[]models.Target{{ID: "1", Label: "first"}, {ID: "2"}},
		[]models.Target{{ID: "1", Label: "second"}, {ID: "3"}},
	)
	assert.Equal(t, []models.Target{{ID: "1", Label: "first"}, {ID: "2"}, {ID: "3"}}, got)
}
