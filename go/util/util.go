// Package util provides small helpers shared across this repo.
package util

import (
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/kjarosh/metainfo-sync/go/sklog"
)

// Reverse returns a copy of the slice in reverse order.
func Reverse(s []string) []string {
	r := make([]string, 0, len(s))
	for i := len(s) - 1; i >= 0; i-- {
		r = append(r, s[i])
	}
	return r
}

// Close wraps an io.Closer and logs an error if one is returned.
func Close(c io.Closer) {
	if err := c.Close(); err != nil {
		sklog.Errorf("Failed to Close(): %v", err)
	}
}

// Remove removes the specified file and logs an error if one is returned.
func Remove(name string) {
	if err := os.Remove(name); err != nil {
		sklog.Errorf("Failed to Remove(%s): %v", name, err)
	}
}

// WithWriteFile provides an interface for writing to a backing file using a
// temporary intermediate file for more atomicity in case a long-running write
// gets interrupted.
func WithWriteFile(file string, writeFn func(io.Writer) error) error {
	f, err := os.CreateTemp(filepath.Dir(file), filepath.Base(file))
	if err != nil {
		return errors.Wrap(err, "failed to create temporary file for WithWriteFile")
	}
	if err := writeFn(f); err != nil {
		Close(f)
		Remove(f.Name())
		return err
	}
	if err := f.Close(); err != nil {
		Remove(f.Name())
		return errors.Wrap(err, "failed to close temporary file for WithWriteFile")
	}
	if err := os.Rename(f.Name(), file); err != nil {
		return errors.Wrapf(err, "failed to rename %s to %s", f.Name(), file)
	}
	return nil
}
