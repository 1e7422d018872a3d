//
// SPDX-License-Identifier: GPL-3.0-or-later
//
// Copyright (C) 2025 Aaron Mathis aaron.mathis@gmail.com
//
// This file is part of StationAgg.
//
// StationAgg is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// StationAgg is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with StationAgg. If not, see https://www.gnu.org/licenses/.

package writers

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"

	"github.com/hashicorp/go-multierror"

	"github.com/aaronlmathis/stationagg/core"
)

// FileWriter stages the report in a temporary file next to the destination and
// renames it into place on Close. Until Close succeeds the destination is untouched,
// and Abort removes the temporary file, so a failed run never leaves output behind.
type FileWriter struct {
	path string
	perm os.FileMode
	tmp  *os.File
	done bool
	mu   sync.Mutex
}

// FileWriterOption is a functional option.
type FileWriterOption func(*FileWriter)

// WithFileMode sets the permissions of the committed file.
func WithFileMode(perm os.FileMode) FileWriterOption {
	return func(w *FileWriter) { w.perm = perm }
}

// NewFileWriter creates a FileWriter for path. Nothing is created on disk until the
// first Write.
func NewFileWriter(path string, opts ...FileWriterOption) (*FileWriter, error) {
	if path == "" {
		return nil, &core.IOError{Op: "create", Err: errors.New("empty path")}
	}
	w := &FileWriter{path: path, perm: 0o644}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Write implements the core.ReportSink interface.
func (w *FileWriter) Write(ctx context.Context, report []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.done {
		return &core.IOError{Op: "write", Path: w.path, Err: os.ErrClosed}
	}
	if w.tmp == nil {
		tmp, err := os.CreateTemp(filepath.Dir(w.path), "."+filepath.Base(w.path)+".tmp-*")
		if err != nil {
			return &core.IOError{Op: "create", Path: w.path, Err: err}
		}
		w.tmp = tmp
	}
	if _, err := w.tmp.Write(report); err != nil {
		return &core.IOError{Op: "write", Path: w.tmp.Name(), Err: err}
	}
	return nil
}

// Close syncs the staged file and renames it over the destination.
func (w *FileWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.done {
		return nil
	}
	w.done = true
	if w.tmp == nil {
		// Nothing was written; commit an empty report file.
		if err := os.WriteFile(w.path, nil, w.perm); err != nil {
			return &core.IOError{Op: "write", Path: w.path, Err: err}
		}
		return nil
	}

	name := w.tmp.Name()
	var errs *multierror.Error
	if err := w.tmp.Chmod(w.perm); err != nil {
		errs = multierror.Append(errs, &core.IOError{Op: "chmod", Path: name, Err: err})
	}
	if err := w.tmp.Sync(); err != nil {
		errs = multierror.Append(errs, &core.IOError{Op: "sync", Path: name, Err: err})
	}
	if err := w.tmp.Close(); err != nil {
		errs = multierror.Append(errs, &core.IOError{Op: "close", Path: name, Err: err})
	}
	if errs.ErrorOrNil() == nil {
		if err := os.Rename(name, w.path); err != nil {
			errs = multierror.Append(errs, &core.IOError{Op: "rename", Path: w.path, Err: err})
		}
	}
	if errs.ErrorOrNil() != nil {
		_ = os.Remove(name)
	}
	return errs.ErrorOrNil()
}

// Abort removes the staged file, if any.
func (w *FileWriter) Abort() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.done {
		return nil
	}
	w.done = true
	if w.tmp == nil {
		return nil
	}
	name := w.tmp.Name()
	_ = w.tmp.Close()
	if err := os.Remove(name); err != nil && !errors.Is(err, os.ErrNotExist) {
		return &core.IOError{Op: "remove", Path: name, Err: err}
	}
	return nil
}

// Path returns the destination path.
func (w *FileWriter) Path() string {
	return w.path
}

var _ core.ReportSink = (*FileWriter)(nil)
