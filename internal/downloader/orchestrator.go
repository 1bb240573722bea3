// Package downloader turns grabbed post sets into files on disk.
package downloader

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	errs "e621dl/pkg/errors"
	"e621dl/pkg/logger"
	"e621dl/pkg/models"
	"e621dl/pkg/storage"
)

// Sender fetches the bytes of a media file
type Sender interface {
	DownloadImage(ctx context.Context, url string, expectedSize int64) ([]byte, error)
}

// Progress receives per-set progress updates
type Progress interface {
	Describe(label string)
	Increment()
	Finish()
}

// ProgressFactory starts the progress display of one set
type ProgressFactory func(label string, total int) Progress

// Options configures an Orchestrator
type Options struct {
	DownloadDirectory string
	// CreateDirectories places every set in its own directory; when false
	// files go directly under the download (or category) directory
	CreateDirectories bool
	Progress          ProgressFactory
	Logger            logger.Logger
}

// Stats are the totals of a session
type Stats struct {
	Sets       int
	Downloaded int
	Skipped    int
	Bytes      int64
}

// Orchestrator downloads post sets one post at a time
type Orchestrator struct {
	sender Sender
	store  *storage.Manager
	opts   Options
	log    logger.Logger
	stats  Stats
}

// New creates an Orchestrator writing through store
func New(sender Sender, store *storage.Manager, opts Options) *Orchestrator {
	if opts.Progress == nil {
		opts.Progress = func(string, int) Progress { return nopProgress{} }
	}
	if opts.Logger == nil {
		opts.Logger = logger.NewNopLogger()
	}
	return &Orchestrator{
		sender: sender,
		store:  store,
		opts:   opts,
		log:    opts.Logger,
	}
}

// DownloadAll downloads sets in order and then the single-post set.
// The first failing set stops the session; earlier sets stay on disk.
func (o *Orchestrator) DownloadAll(ctx context.Context, sets []models.PostSet, single models.PostSet) error {
	for _, set := range sets {
		if err := o.DownloadSet(ctx, set); err != nil {
			return err
		}
	}
	return o.DownloadSet(ctx, single)
}

// DownloadSet downloads the posts of one set, oldest first. Posts whose
// destination already exists are skipped without fetching.
func (o *Orchestrator) DownloadSet(ctx context.Context, set models.PostSet) error {
	name := SanitizeName(set.SetName)
	dir := o.SetDirectory(set)
	label := "Downloading: " + name

	if !within(o.opts.DownloadDirectory, dir) {
		return &errs.Error{
			Type:    errs.ErrorTypeIO,
			Op:      "download",
			Message: fmt.Sprintf("set %q resolves to %s, outside the download directory", set.SetName, dir),
			Err:     ErrOutsideDownloadDirectory,
		}
	}

	progress := o.opts.Progress(label, len(set.Posts))
	defer progress.Finish()

	o.stats.Sets++
	var downloaded, skipped int

	for i := len(set.Posts) - 1; i >= 0; i-- {
		post := set.Posts[i]
		path := filepath.Join(dir, post.FileName)
		if !within(dir, path) {
			return writeError(path, ErrOutsideDownloadDirectory)
		}

		if o.store.Exists(path) {
			progress.Describe("Duplicate found: skipping...")
			progress.Increment()
			skipped++
			o.stats.Skipped++
			logger.LogDownload(o.log, name, post.FileName, true, nil)
			continue
		}
		progress.Describe(label + " " + post.FileName)

		if !o.store.Exists(dir) {
			if err := o.store.EnsureDir(dir); err != nil {
				return writeError(path, err)
			}
		}

		data, err := o.sender.DownloadImage(ctx, post.FileURL, post.FileSize)
		if err != nil {
			err = errs.Wrapf(errs.ErrorTypeFetch, "download", err, "%s", post.FileURL)
			logger.LogDownload(o.log, name, post.FileName, false, err)
			return err
		}

		n, err := o.store.Save(path, bytes.NewReader(data))
		if err != nil {
			err = writeError(path, err)
			logger.LogDownload(o.log, name, post.FileName, false, err)
			return err
		}

		progress.Increment()
		downloaded++
		o.stats.Downloaded++
		o.stats.Bytes += n
		logger.LogDownload(o.log, name, post.FileName, false, nil)
	}

	logger.LogSetSummary(o.log, name, downloaded, skipped)
	return nil
}

// ErrOutsideDownloadDirectory is returned for a set or file whose path
// escapes the download directory
var ErrOutsideDownloadDirectory = errors.New("path is outside the download directory")

// SetDirectory returns the directory that holds the files of set
func (o *Orchestrator) SetDirectory(set models.PostSet) string {
	parts := []string{o.opts.DownloadDirectory}
	if set.Category != "" {
		parts = append(parts, set.Category)
	}
	if o.opts.CreateDirectories {
		parts = append(parts, SanitizeName(set.SetName))
	}
	return filepath.Join(parts...)
}

// Stats returns the totals accumulated so far
func (o *Orchestrator) Stats() Stats {
	return o.stats
}

var invalidChars = strings.NewReplacer(
	"?", "_",
	":", "_",
	"*", "_",
	"<", "_",
	">", "_",
	`"`, "_",
	"|", "_",
)

// SanitizeName replaces characters that are not allowed in directory names
func SanitizeName(name string) string {
	return invalidChars.Replace(name)
}

// within reports whether target is base or lies below it
func within(base, target string) bool {
	rel, err := filepath.Rel(filepath.Clean(base), filepath.Clean(target))
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func writeError(path string, err error) error {
	return &errs.Error{
		Type:    errs.ErrorTypeIO,
		Op:      "save",
		Message: path,
		Err:     fmt.Errorf("%w: %w", errs.ErrWriteFailed, err),
	}
}

type nopProgress struct{}

func (nopProgress) Describe(string) {}
func (nopProgress) Increment()      {}
func (nopProgress) Finish()         {}
