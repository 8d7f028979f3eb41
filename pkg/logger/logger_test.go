package logger

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ttscraper/pkg/config"
)

func newBufferLogger(buf *bytes.Buffer) *zerologLogger {
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
	return &zerologLogger{zl: zerolog.New(buf).With().Timestamp().Logger().Level(zerolog.DebugLevel)}
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *config.LoggingConfig
		wantErr bool
	}{
		{"info level", &config.LoggingConfig{Level: "info"}, false},
		{"debug level", &config.LoggingConfig{Level: "debug"}, false},
		{"invalid level", &config.LoggingConfig{Level: "invalid"}, true},
		{"file output", &config.LoggingConfig{Level: "info", File: filepath.Join(t.TempDir(), "logs", "run.log")}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := NewWithWriter(tt.cfg, &bytes.Buffer{})
			if (err != nil) != tt.wantErr {
				t.Errorf("New() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if !tt.wantErr && logger == nil {
				t.Error("New() returned nil logger")
			}
		})
	}
}

func TestFileOutputIsJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.log")
	var console bytes.Buffer

	log, err := NewWithWriter(&config.LoggingConfig{Level: "debug", File: path}, &console)
	require.NoError(t, err)
	log.InfoWithFields("Checkpoint saved", map[string]interface{}{"items": 50})

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"items":50`)
	assert.Contains(t, string(data), `"app":"ttscraper"`)
	assert.Contains(t, console.String(), "Checkpoint saved")
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		level    string
		expected zerolog.Level
		wantErr  bool
	}{
		{"debug", zerolog.DebugLevel, false},
		{"INFO", zerolog.InfoLevel, false},
		{"warning", zerolog.WarnLevel, false},
		{"error", zerolog.ErrorLevel, false},
		{"disabled", zerolog.Disabled, false},
		{"loud", zerolog.InfoLevel, true},
		{"", zerolog.InfoLevel, true},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			level, err := parseLogLevel(tt.level)
			if (err != nil) != tt.wantErr {
				t.Errorf("parseLogLevel() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if level != tt.expected {
				t.Errorf("parseLogLevel() = %v, want %v", level, tt.expected)
			}
		})
	}
}

func TestFieldChaining(t *testing.T) {
	var buf bytes.Buffer
	logger := newBufferLogger(&buf)

	logger.
		WithField("worker", "W1").
		WithFields(map[string]interface{}{"batch": 4, "cursor": int64(150)}).
		WithError(errors.New("upstream closed")).
		Warn("Batch failed")

	output := buf.String()
	assert.Contains(t, output, "Batch failed")
	assert.Contains(t, output, `"worker":"W1"`)
	assert.Contains(t, output, `"batch":4`)
	assert.Contains(t, output, `"cursor":150`)
	assert.Contains(t, output, "upstream closed")
}

func TestWithErrorNil(t *testing.T) {
	var buf bytes.Buffer
	logger := newBufferLogger(&buf)
	if logger.WithError(nil) != Logger(logger) {
		t.Error("WithError(nil) should return the same logger")
	}
}

func TestForWorkerAndHelpers(t *testing.T) {
	var buf bytes.Buffer
	log := ForWorker(newBufferLogger(&buf), 2, "7120798207600299310")

	LogBatch(log, 3, 100, "abcd1234...", 100)
	LogRotation(log, 1, "", false)
	LogTargetSummary(log, 10, 2, 1, 0, "")

	output := buf.String()
	assert.Contains(t, output, `"worker":"W2"`)
	assert.Contains(t, output, `"target":"7120798207600299310"`)
	assert.Contains(t, output, "Fetching batch")
	assert.Contains(t, output, "Proxy rotation could not verify new exit IP")
	assert.Contains(t, output, "Target completed")
}

func TestLogRequestLevels(t *testing.T) {
	tl := NewTestLogger()

	LogRequest(tl, "GET", "http://x/a", 200, 5*time.Millisecond)
	LogRequest(tl, "GET", "http://x/b", 429, time.Millisecond)
	LogRequest(tl, "GET", "http://x/c", 503, time.Millisecond)

	assert.Len(t, tl.GetMessagesByLevel("DEBUG"), 1)
	assert.Len(t, tl.GetMessagesByLevel("WARN"), 1)
	assert.Len(t, tl.GetMessagesByLevel("ERROR"), 1)
}

func TestConcurrentWritesDoNotInterleave(t *testing.T) {
	var buf bytes.Buffer
	log, err := NewWithWriter(&config.LoggingConfig{Level: "info"}, &buf)
	require.NoError(t, err)

	const workers, lines = 8, 50
	var wg sync.WaitGroup
	for w := 1; w <= workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			wl := ForWorker(log, w, "target")
			for i := 0; i < lines; i++ {
				wl.Info("batch line")
			}
		}(w)
	}
	wg.Wait()

	out := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, out, workers*lines)
	for _, line := range out {
		assert.Equal(t, 1, strings.Count(line, "batch line"))
	}
}

func TestGlobalLogger(t *testing.T) {
	err := Initialize(&config.LoggingConfig{Level: "debug"})
	if err != nil {
		t.Fatalf("Failed to initialize logger: %v", err)
	}

	if GetLogger() == nil {
		t.Error("GetLogger() returned nil")
	}

	GetLogger().WithField("key", "value").Debug("with field")
}

func TestScopedFieldsDoNotLeakToParent(t *testing.T) {
	var buf bytes.Buffer
	parent := newBufferLogger(&buf)
	parent.WithField("worker", "W3").Info("child line")
	parent.Info("parent line")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], `"worker":"W3"`)
	assert.NotContains(t, lines[1], "worker")
}

func TestTestLoggerCapturesFields(t *testing.T) {
	tl := NewTestLogger()
	tl.WithField("worker", "W1").InfoWithFields("Checkpoint saved", map[string]interface{}{"items": 5})

	msgs := tl.GetMessages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "W1", msgs[0].Fields["worker"])
	assert.Equal(t, 5, msgs[0].Fields["items"])
	assert.True(t, tl.HasMessage("Checkpoint saved"))
	assert.True(t, tl.HasMessageContaining("saved"))
	assert.False(t, tl.HasMessage("saved"))
}

func TestTestLoggerSharesRecordWithChildren(t *testing.T) {
	tl := NewTestLogger()
	child := ForWorker(tl, 1, "42")
	LogBatchFailure(child, 2, 1, 3, errors.New("reset by peer"))
	tl.Info("parent")

	msgs := tl.GetMessages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "WARN", msgs[0].Level)
	assert.Equal(t, "W1", msgs[0].Fields["worker"])
	assert.Equal(t, "reset by peer", msgs[0].Fields["error"])
	assert.Equal(t, "1/3", msgs[0].Fields["retry"])
	assert.Empty(t, msgs[1].Fields)
}

func TestNopLoggerDiscards(t *testing.T) {
	log := NewNopLogger()
	log.WithError(errors.New("x")).WithField("k", 1).Error("nothing")
	LogTargetSummary(log, 1, 0, 0, 0, "per_target_fatal")
}
