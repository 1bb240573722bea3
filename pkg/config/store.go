package config

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/afero"

	errs "e621dl/pkg/errors"
)

// DefaultConfigName is the configuration document looked up in the working directory
const DefaultConfigName = "config.json"

// LastRunLayout is the date format stored in Configuration.LastRun
const LastRunLayout = "2006-01-02"

// Name derivation choices for Configuration.PartUsedAsName
const (
	PartID  = "id"
	PartMD5 = "md5"
)

// Configuration is the persisted user configuration document
type Configuration struct {
	// Whether or not to create a directory for every tag used to search for images
	CreateDirectories bool `json:"createDirectories"`
	// The location of the download directory
	DownloadDirectory string `json:"downloadDirectory"`
	// Date of the last run for every tag used
	LastRun map[string]string `json:"lastRun"`
	// Which part of a post names the file on disk: "id" or "md5"
	PartUsedAsName string `json:"partUsedAsName"`
}

// DefaultConfiguration returns the document written on first run
func DefaultConfiguration() *Configuration {
	return &Configuration{
		CreateDirectories: true,
		DownloadDirectory: "downloads/",
		LastRun:           make(map[string]string),
		PartUsedAsName:    PartMD5,
	}
}

// RecordRun stamps the last run date of a tag
func (c *Configuration) RecordRun(tag string, at time.Time) {
	if c.LastRun == nil {
		c.LastRun = make(map[string]string)
	}
	c.LastRun[tag] = at.Format(LastRunLayout)
}

// validate checks the fields the rest of the program depends on
func (c *Configuration) validate() error {
	if c.DownloadDirectory == "" {
		return fmt.Errorf("downloadDirectory must not be empty")
	}
	switch c.PartUsedAsName {
	case PartID, PartMD5:
	default:
		return fmt.Errorf("partUsedAsName must be %q or %q, got %q", PartID, PartMD5, c.PartUsedAsName)
	}
	return nil
}

// Store owns the configuration document on disk
type Store struct {
	fs   afero.Fs
	path string
	out  io.Writer
}

// NewStore creates a store for the document at path. Diagnostics go to stdout.
func NewStore(fs afero.Fs, path string) *Store {
	if path == "" {
		path = DefaultConfigName
	}
	return &Store{fs: fs, path: path, out: os.Stdout}
}

// SetDiagnosticWriter redirects the messages printed by Exists and Ensure
func (s *Store) SetDiagnosticWriter(w io.Writer) {
	s.out = w
}

// Path returns the location of the document
func (s *Store) Path() string {
	return s.path
}

// Exists reports whether the document is present
func (s *Store) Exists() bool {
	ok, err := afero.Exists(s.fs, s.path)
	if err != nil || !ok {
		fmt.Fprintf(s.out, "%s: does not exist!\n", filepath.Base(s.path))
		return false
	}
	return true
}

// CreateDefault writes a new document with default values
func (s *Store) CreateDefault() error {
	if err := s.write(DefaultConfiguration()); err != nil {
		return errs.Wrap(errs.ErrorTypeIO, "create config", err)
	}
	return nil
}

// Ensure creates the default document when none exists
func (s *Store) Ensure() error {
	if !s.Exists() {
		fmt.Fprintln(s.out, "Creating config...")
		return s.CreateDefault()
	}
	return nil
}

// Load reads and validates the document
func (s *Store) Load() (*Configuration, error) {
	data, err := afero.ReadFile(s.fs, s.path)
	if err != nil {
		return nil, errs.Wrap(errs.ErrorTypeConfig, "load config", err)
	}

	var cfg Configuration
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, errs.Wrapf(errs.ErrorTypeConfig, "load config", errs.ErrMalformed, "%s: %v", s.path, err)
	}
	if err := cfg.validate(); err != nil {
		return nil, errs.Wrapf(errs.ErrorTypeConfig, "load config", errs.ErrMalformed, "%s: %v", s.path, err)
	}
	if cfg.LastRun == nil {
		cfg.LastRun = make(map[string]string)
	}

	return &cfg, nil
}

// Save replaces the document atomically
func (s *Store) Save(cfg *Configuration) error {
	if err := s.write(cfg); err != nil {
		return errs.Wrap(errs.ErrorTypeIO, "save config", err)
	}
	return nil
}

// write encodes cfg to a temporary file next to the document and renames it into place
func (s *Store) write(cfg *Configuration) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := s.fs.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	tmp, err := afero.TempFile(s.fs, dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temporary config file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		s.fs.Remove(tmpPath)
		return fmt.Errorf("failed to write config: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		s.fs.Remove(tmpPath)
		return fmt.Errorf("failed to sync config: %w", err)
	}
	if err := tmp.Close(); err != nil {
		s.fs.Remove(tmpPath)
		return fmt.Errorf("failed to close config: %w", err)
	}

	if err := s.fs.Rename(tmpPath, s.path); err != nil {
		s.fs.Remove(tmpPath)
		return fmt.Errorf("failed to replace config: %w", err)
	}

	return nil
}
