// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

package archive

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/dariprim/otik/support/logging"

	"github.com/pkg/errors"
)

// Collect walks the named inputs and loads them into writer entries.
//
// A file input becomes a single entry under its base name. A directory
// input is flattened: every regular file underneath it becomes an entry
// whose path is relative to the directory, with forward-slash separators.
// The first occurrence of a relative path wins; later duplicates are
// skipped. Inputs that do not exist are skipped with a warning.
//
// Paths deeper than 4 directory levels are rejected, since the format
// bounds entry path depth.
func Collect(inputs []string, logger logging.L) ([]Entry, error) {
	logger = logging.Must(logger)

	var entries []Entry
	seen := map[string]struct{}{}

	add := func(rel, fullPath string) error {
		if _, ok := seen[rel]; ok {
			logger.Warnf("skipping duplicate entry path %q", rel)
			return nil
		}
		if depth := strings.Count(rel, "/") + 1; depth > maxPathDepth {
			return errors.Errorf("path %q exceeds maximum depth %d", rel, maxPathDepth)
		}

		data, err := os.ReadFile(fullPath)
		if err != nil {
			return errors.Wrapf(err, "reading %q", fullPath)
		}

		seen[rel] = struct{}{}
		entries = append(entries, Entry{Kind: KindFile, Path: rel, Data: data})
		return nil
	}

	for _, input := range inputs {
		st, err := os.Stat(input)
		if err != nil {
			logger.Warnf("skipping input %q: %v", input, err)
			continue
		}

		if !st.IsDir() {
			if err := add(filepath.Base(input), input); err != nil {
				return nil, err
			}
			continue
		}

		err = filepath.WalkDir(input, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() || !d.Type().IsRegular() {
				return nil
			}
			rel, err := filepath.Rel(input, path)
			if err != nil {
				return err
			}
			return add(filepath.ToSlash(rel), path)
		})
		if err != nil {
			return nil, errors.Wrapf(err, "walking %q", input)
		}
	}

	return entries, nil
}
