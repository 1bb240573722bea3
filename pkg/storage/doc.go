// Package storage writes downloaded media to disk.
//
// All access goes through an afero.Fs so that the orchestrator can be tested
// against an in-memory filesystem. Files are written to a temporary name and
// renamed into place; an interrupted download never leaves a partial file
// under its final name, so a path-existence check is enough to detect
// duplicates on the next run.
package storage
