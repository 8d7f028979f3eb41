package checkpoint

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"time"

	errs "ttscraper/pkg/errors"
	"ttscraper/pkg/logger"
	"ttscraper/pkg/models"
)

const currentVersion = 1

// Checkpoint is the resumable state of one (worker, target) fetch
type Checkpoint struct {
	Version     int           `json:"version"`
	TargetID    string        `json:"video_id"`
	WorkerID    int           `json:"worker_id"`
	Label       string        `json:"author,omitempty"`
	BatchNumber int           `json:"batch_number"`
	Cursor      int64         `json:"cursor"`
	TotalItems  int           `json:"total_comments"`
	IsComplete  bool          `json:"is_complete"`
	SavedAt     time.Time     `json:"timestamp"`
	SeenIDs     []string      `json:"seen_cids"`
	Items       []models.Item `json:"comments"`
}

// Summary describes a checkpoint file without its items
type Summary struct {
	Path        string
	WorkerID    int
	TargetID    string
	Label       string
	TotalItems  int
	BatchNumber int
	Cursor      int64
	IsComplete  bool
	SavedAt     time.Time
}

// Store reads and writes checkpoint files in one directory, one file per
// (worker, target) pair so concurrent workers never share a file.
type Store struct {
	dir    string
	logger logger.Logger
}

// NewStore creates a store rooted at dir. An empty dir selects the
// platform data directory.
func NewStore(dir string, log logger.Logger) (*Store, error) {
	if dir == "" {
		dataDir, err := getDataDirectory()
		if err != nil {
			return nil, fmt.Errorf("failed to get data directory: %w", err)
		}
		dir = filepath.Join(dataDir, "checkpoints")
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create checkpoints directory: %w", err)
	}
	if log == nil {
		log = logger.NewNopLogger()
	}

	return &Store{dir: dir, logger: log}, nil
}

// Dir returns the checkpoint directory
func (s *Store) Dir() string {
	return s.dir
}

// Path returns the file path of a (worker, target) checkpoint
func (s *Store) Path(workerID int, targetID string) string {
	return filepath.Join(s.dir, fmt.Sprintf("worker_%d_%s.json", workerID, sanitize(targetID)))
}

// Save writes the checkpoint atomically: a temp file is written, synced and
// renamed over the previous snapshot.
func (s *Store) Save(cp *Checkpoint) error {
	cp.Version = currentVersion
	cp.SavedAt = time.Now()
	cp.TotalItems = len(cp.Items)

	path := s.Path(cp.WorkerID, cp.TargetID)
	tempPath := path + ".tmp"
	file, err := os.Create(tempPath)
	if err != nil {
		return errs.Wrap(errs.ErrorTypeCheckpointIO, "failed to create temporary checkpoint file", err)
	}

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	encoder.SetEscapeHTML(false)
	if err := encoder.Encode(cp); err != nil {
		file.Close()
		os.Remove(tempPath)
		return errs.Wrap(errs.ErrorTypeCheckpointIO, "failed to encode checkpoint", err)
	}

	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(tempPath)
		return errs.Wrap(errs.ErrorTypeCheckpointIO, "failed to sync checkpoint file", err)
	}

	if err := file.Close(); err != nil {
		os.Remove(tempPath)
		return errs.Wrap(errs.ErrorTypeCheckpointIO, "failed to close checkpoint file", err)
	}

	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return errs.Wrap(errs.ErrorTypeCheckpointIO, "failed to replace checkpoint file", err)
	}

	s.logger.DebugWithFields("Checkpoint written", map[string]interface{}{
		"path":     path,
		"items":    cp.TotalItems,
		"batch":    cp.BatchNumber,
		"cursor":   cp.Cursor,
		"complete": cp.IsComplete,
	})

	return nil
}

// Load returns the last snapshot of a (worker, target) pair, or nil when
// none exists. Unreadable files are logged and treated as absent.
func (s *Store) Load(workerID int, targetID string) *Checkpoint {
	path := s.Path(workerID, targetID)
	cp, err := readFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.WithError(errs.Wrap(errs.ErrorTypeCheckpointIO, "unreadable checkpoint", err)).
				WarnWithFields("Ignoring checkpoint", map[string]interface{}{"path": path})
		}
		return nil
	}
	if cp.TargetID != targetID || cp.WorkerID != workerID {
		s.logger.WarnWithFields("Ignoring checkpoint for a different target", map[string]interface{}{
			"path":      path,
			"video_id":  cp.TargetID,
			"worker_id": cp.WorkerID,
		})
		return nil
	}
	return cp
}

// Exists checks if a checkpoint file exists
func (s *Store) Exists(workerID int, targetID string) bool {
	_, err := os.Stat(s.Path(workerID, targetID))
	return err == nil
}

// Delete removes a checkpoint file
func (s *Store) Delete(workerID int, targetID string) error {
	if err := os.Remove(s.Path(workerID, targetID)); err != nil && !os.IsNotExist(err) {
		return errs.Wrap(errs.ErrorTypeCheckpointIO, "failed to delete checkpoint", err)
	}
	return nil
}

// List summarizes every checkpoint in the directory, sorted by worker then
// target. Unreadable files are skipped.
func (s *Store) List() ([]Summary, error) {
	paths, err := filepath.Glob(filepath.Join(s.dir, "worker_*_*.json"))
	if err != nil {
		return nil, err
	}

	summaries := make([]Summary, 0, len(paths))
	for _, path := range paths {
		cp, err := readFile(path)
		if err != nil {
			s.logger.WithError(err).WarnWithFields("Skipping unreadable checkpoint", map[string]interface{}{"path": path})
			continue
		}
		summaries = append(summaries, Summary{
			Path:        path,
			WorkerID:    cp.WorkerID,
			TargetID:    cp.TargetID,
			Label:       cp.Label,
			TotalItems:  len(cp.Items),
			BatchNumber: cp.BatchNumber,
			Cursor:      cp.Cursor,
			IsComplete:  cp.IsComplete,
			SavedAt:     cp.SavedAt,
		})
	}

	sort.Slice(summaries, func(i, j int) bool {
		if summaries[i].WorkerID != summaries[j].WorkerID {
			return summaries[i].WorkerID < summaries[j].WorkerID
		}
		return summaries[i].TargetID < summaries[j].TargetID
	})
	return summaries, nil
}

// Clear deletes checkpoint files. With completeOnly set, resumable
// snapshots are kept. It returns the number of files removed.
func (s *Store) Clear(completeOnly bool) (int, error) {
	summaries, err := s.List()
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, sum := range summaries {
		if completeOnly && !sum.IsComplete {
			continue
		}
		if err := os.Remove(sum.Path); err != nil && !os.IsNotExist(err) {
			return removed, errs.Wrap(errs.ErrorTypeCheckpointIO, "failed to delete checkpoint", err)
		}
		removed++
	}
	return removed, nil
}

func readFile(path string) (*Checkpoint, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cp Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, fmt.Errorf("failed to decode checkpoint: %w", err)
	}
	if cp.Version > currentVersion {
		return nil, fmt.Errorf("checkpoint version %d is newer than supported version %d", cp.Version, currentVersion)
	}
	return &cp, nil
}

// sanitize keeps target ids safe to embed in a file name
func sanitize(id string) string {
	if _, err := strconv.ParseUint(id, 10, 64); err == nil {
		return id
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-':
			return r
		default:
			return '_'
		}
	}, id)
}

// getDataDirectory returns the appropriate data directory for the current OS
func getDataDirectory() (string, error) {
	var dataDir string

	switch runtime.GOOS {
	case "linux":
		if xdgDataHome := os.Getenv("XDG_DATA_HOME"); xdgDataHome != "" {
			dataDir = filepath.Join(xdgDataHome, "ttscraper")
		} else {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			dataDir = filepath.Join(home, ".local", "share", "ttscraper")
		}
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		dataDir = filepath.Join(home, "Library", "Application Support", "ttscraper")
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData == "" {
			return "", fmt.Errorf("APPDATA environment variable not set")
		}
		dataDir = filepath.Join(appData, "ttscraper")
	default:
		return "", fmt.Errorf("unsupported operating system: %s", runtime.GOOS)
	}

	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create data directory: %w", err)
	}

	return dataDir, nil
}
