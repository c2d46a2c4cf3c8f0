// Package storage keeps rendered reports on the local filesystem.
package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Security errors
var (
	ErrPathTraversal = errors.New("path traversal detected")
	ErrFileNotFound  = errors.New("file not found")
	ErrFileTooLarge  = errors.New("file exceeds size limit")
	ErrInvalidRunID  = errors.New("invalid run id")
)

// MaxReportSize is the largest rendered report accepted (5 MB)
const MaxReportSize = 5 * 1024 * 1024

// ReportArchive stores rendered report HTML keyed by run
type ReportArchive interface {
	Save(runID string, startedAt time.Time, html string) (string, error)
	Get(relPath string) (io.ReadCloser, error)
	Delete(relPath string) error
}

// localArchive implements ReportArchive on the local filesystem
type localArchive struct {
	basePath string
}

// NewLocalArchive creates the base directory if needed
func NewLocalArchive(basePath string) (ReportArchive, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create archive directory: %w", err)
	}
	return &localArchive{basePath: basePath}, nil
}

// validatePath ensures path is within basePath
func (s *localArchive) validatePath(relPath string) (string, error) {
	cleanPath := filepath.Clean(relPath)

	if filepath.IsAbs(cleanPath) || strings.Contains(cleanPath, "..") {
		return "", ErrPathTraversal
	}

	absPath, err := filepath.Abs(filepath.Join(s.basePath, cleanPath))
	if err != nil {
		return "", fmt.Errorf("invalid file path: %w", err)
	}
	absBase, err := filepath.Abs(s.basePath)
	if err != nil {
		return "", fmt.Errorf("invalid base path: %w", err)
	}

	if !strings.HasPrefix(absPath, absBase+string(filepath.Separator)) && absPath != absBase {
		return "", ErrPathTraversal
	}
	return absPath, nil
}

// Save writes html under YYYY/MM/<runID>.html and returns the relative path
func (s *localArchive) Save(runID string, startedAt time.Time, html string) (string, error) {
	if _, err := uuid.Parse(runID); err != nil {
		return "", ErrInvalidRunID
	}
	if len(html) > MaxReportSize {
		return "", ErrFileTooLarge
	}

	startedAt = startedAt.UTC()
	relPath := filepath.Join(startedAt.Format("2006"), startedAt.Format("01"), runID+".html")
	fullPath, err := s.validatePath(relPath)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return "", fmt.Errorf("failed to create subdirectory: %w", err)
	}

	file, err := os.Create(fullPath)
	if err != nil {
		return "", fmt.Errorf("failed to create file: %w", err)
	}

	if _, err := io.WriteString(file, html); err != nil {
		_ = file.Close()
		_ = os.Remove(fullPath)
		return "", fmt.Errorf("failed to write file: %w", err)
	}
	if err := file.Close(); err != nil {
		_ = os.Remove(fullPath)
		return "", fmt.Errorf("failed to flush file: %w", err)
	}

	return filepath.ToSlash(relPath), nil
}

// Get opens an archived report
func (s *localArchive) Get(relPath string) (io.ReadCloser, error) {
	fullPath, err := s.validatePath(relPath)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrFileNotFound
		}
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	return file, nil
}

// Delete removes an archived report. A missing file is not an error.
func (s *localArchive) Delete(relPath string) error {
	fullPath, err := s.validatePath(relPath)
	if err != nil {
		return err
	}

	if err := os.Remove(fullPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}
