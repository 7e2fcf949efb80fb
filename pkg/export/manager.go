package export

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"linkreach/pkg/logger"
	"linkreach/pkg/models"
)

// Manager writes export files into one output directory
type Manager struct {
	outputDir string
	format    Format
	logger    logger.Logger
}

// NewManager creates the output directory if needed
func NewManager(outputDir string, format Format) (*Manager, error) {
	if outputDir == "" {
		outputDir = "."
	}
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	return &Manager{
		outputDir: outputDir,
		format:    format,
		logger:    logger.GetLogger().WithField("component", "export"),
	}, nil
}

// Save writes profiles to name inside the output directory and returns the
// path written. An existing file is never overwritten; a numbered name is
// picked instead.
func (m *Manager) Save(name string, profiles []models.Profile) (string, error) {
	if name == "" {
		name = DefaultFileName
	}

	var buf bytes.Buffer
	if err := Write(&buf, profiles, m.format); err != nil {
		return "", fmt.Errorf("failed to encode profiles: %w", err)
	}

	filename := m.freeName(name)
	tempFile := filename + ".tmp"
	if err := os.WriteFile(tempFile, buf.Bytes(), 0644); err != nil {
		os.Remove(tempFile)
		return "", fmt.Errorf("failed to write temporary file: %w", err)
	}
	if err := os.Rename(tempFile, filename); err != nil {
		os.Remove(tempFile)
		return "", fmt.Errorf("failed to rename temporary file: %w", err)
	}

	m.logger.InfoWithFields("Profiles exported", map[string]interface{}{
		"path":     filename,
		"profiles": len(profiles),
		"format":   string(m.format),
	})
	return filename, nil
}

// freeName returns name, or name_N when that file already exists
func (m *Manager) freeName(name string) string {
	path := filepath.Join(m.outputDir, name)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return path
	}

	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	for i := 1; ; i++ {
		candidate := filepath.Join(m.outputDir, fmt.Sprintf("%s_%d%s", stem, i, ext))
		if _, err := os.Stat(candidate); os.IsNotExist(err) {
			return candidate
		}
	}
}

// OutputDir returns the output directory path
func (m *Manager) OutputDir() string {
	return m.outputDir
}
