package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// WriteFunc streams an artifact body
type WriteFunc func(w io.Writer) error

// Manager writes run artifacts into one output directory
type Manager struct {
	outputDir string
	written   map[string]int64
	mu        sync.RWMutex
}

// NewManager creates a new storage manager
func NewManager(outputDir string) (*Manager, error) {
	if outputDir == "" {
		outputDir = "."
	}
	// Create output directory if it doesn't exist
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	return &Manager{
		outputDir: outputDir,
		written:   make(map[string]int64),
	}, nil
}

// Path returns where an artifact with the given name is stored
func (m *Manager) Path(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(m.outputDir, name)
}

// Save writes an artifact through a temporary file that replaces the target
// only once fully written and synced. It returns the final path.
func (m *Manager) Save(name string, write WriteFunc) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("artifact name is empty")
	}

	filename := m.Path(name)
	if err := os.MkdirAll(filepath.Dir(filename), 0755); err != nil {
		return "", fmt.Errorf("failed to create artifact directory: %w", err)
	}

	tempFile := filename + ".tmp"
	out, err := os.Create(tempFile)
	if err != nil {
		return "", fmt.Errorf("failed to create temporary file: %w", err)
	}

	counter := &countingWriter{w: out}
	err = write(counter)
	if err == nil {
		err = out.Sync()
	}
	closeErr := out.Close()

	if err != nil {
		os.Remove(tempFile)
		return "", fmt.Errorf("failed to write %s: %w", name, err)
	}

	if closeErr != nil {
		os.Remove(tempFile)
		return "", fmt.Errorf("failed to close file: %w", closeErr)
	}

	if err := os.Rename(tempFile, filename); err != nil {
		os.Remove(tempFile)
		return "", fmt.Errorf("failed to rename temporary file: %w", err)
	}

	m.mu.Lock()
	m.written[filename] = counter.n
	m.mu.Unlock()

	return filename, nil
}

// GetOutputDir returns the output directory path
func (m *Manager) GetOutputDir() string {
	return m.outputDir
}

// Written returns the paths saved by this manager, sorted
func (m *Manager) Written() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	paths := make([]string, 0, len(m.written))
	for p := range m.written {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Size returns the byte size of a saved artifact, or -1 if unknown
func (m *Manager) Size(path string) int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if n, ok := m.written[path]; ok {
		return n
	}
	return -1
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
