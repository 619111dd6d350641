package home

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	// DefaultDirName is the default name for the songshelf home directory.
	DefaultDirName = ".songshelf"

	// ConfigFileName is the default config file name.
	ConfigFileName = "config.yaml"

	// LineageFileName is the default lineage batch file name.
	LineageFileName = "lineage.json"

	// ReportsDirName is the subdirectory for saved lineage reports.
	ReportsDirName = "reports"
)

// Dir represents the songshelf home directory structure.
type Dir struct {
	path string
}

// New creates a new Dir with the given path.
// If path is empty, uses the default (~/.songshelf).
func New(path string) (*Dir, error) {
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get user home directory: %w", err)
		}
		path = filepath.Join(home, DefaultDirName)
	}

	return &Dir{path: path}, nil
}

// Path returns the root path of the home directory.
func (d *Dir) Path() string {
	return d.path
}

// ConfigPath returns the path to the default config file.
func (d *Dir) ConfigPath() string {
	return filepath.Join(d.path, ConfigFileName)
}

// LineagePath returns the path to the default lineage batch.
func (d *Dir) LineagePath() string {
	return filepath.Join(d.path, LineageFileName)
}

// LineageSource returns configured when set, and the default lineage path
// otherwise. A leading ~/ in configured is expanded to the user home.
func (d *Dir) LineageSource(configured string) string {
	configured = strings.TrimSpace(configured)
	if configured == "" {
		return d.LineagePath()
	}
	if rest, ok := strings.CutPrefix(configured, "~/"); ok {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, rest)
		}
	}
	return configured
}

// ReportsPath returns the directory for saved lineage reports.
func (d *Dir) ReportsPath() string {
	return filepath.Join(d.path, ReportsDirName)
}

// EnsureExists creates the home directory and subdirectories if they don't exist.
func (d *Dir) EnsureExists() error {
	// Create reports directory (this also creates the parent)
	if err := os.MkdirAll(d.ReportsPath(), 0o755); err != nil {
		return fmt.Errorf("failed to create reports directory: %w", err)
	}
	return nil
}

// Exists returns true if the home directory exists.
func (d *Dir) Exists() bool {
	_, err := os.Stat(d.path)
	return err == nil
}

// ConfigExists returns true if the config file exists in the home directory.
func (d *Dir) ConfigExists() bool {
	_, err := os.Stat(d.ConfigPath())
	return err == nil
}
