// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

// Package stagingfile writes an output file through a temporary staging
// location, so the destination path only ever holds a complete file.
package stagingfile

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// F manages a staged output file.
//
// While F is active, data is written to a temporary file. Once finished, F
// can either be committed or destroyed. On commit, the temporary file is
// atomically renamed over its destination; on destroy, it is deleted.
type F struct {
	fd   *os.File
	path string
}

// New creates a staged file underneath of tempDir.
//
// If tempDir is empty, the destination's directory should be supplied so the
// final rename stays on one filesystem.
func New(tempDir, prefix string) (*F, error) {
	fd, err := os.CreateTemp(tempDir, prefix)
	if err != nil {
		return nil, err
	}
	return &F{fd: fd, path: fd.Name()}, nil
}

// Write implements io.Writer, writing to the staged file.
func (sf *F) Write(b []byte) (int, error) {
	if sf.fd == nil {
		return 0, errors.New("staging file is not active")
	}
	return sf.fd.Write(b)
}

// Destroy purges the staged file.
func (sf *F) Destroy() error {
	if sf.path == "" {
		// There is nothing to destroy.
		return nil
	}

	if sf.fd != nil {
		_ = sf.fd.Close()
		sf.fd = nil
	}
	if err := os.Remove(sf.path); err != nil {
		return err
	}

	sf.path = "" // Destroyed.
	return nil
}

// Commit finalizes the staged file, atomically moving it to dest.
func (sf *F) Commit(dest string) error {
	if sf.path == "" {
		return errors.New("invalid staging file")
	}

	if err := sf.fd.Close(); err != nil {
		return errors.Wrap(err, "closing staging file")
	}
	sf.fd = nil

	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return errors.Wrap(err, "creating destination directory")
	}

	// Move the final file into place (atomic).
	if err := os.Rename(sf.path, dest); err != nil {
		return errors.Wrapf(err, "moving temporary file into place (%q => %q)", sf.path, dest)
	}
	sf.path = "" // Path no longer exists, committed.
	return nil
}
