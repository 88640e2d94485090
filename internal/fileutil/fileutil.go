// Package fileutil reads bank inputs and writes outputs without ever leaving a
// partial file at the destination.
package fileutil

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/ulikunitz/xz"

	"github.com/cwbudde/bnk"
)

// xzMagic is the stream header magic of .xz files.
var xzMagic = []byte{0xFD, '7', 'z', 'X', 'Z', 0x00}

// osRename can be replaced in tests to simulate rename failures.
var osRename = os.Rename

// ReadInput reads a whole file. xz-compressed files are decompressed.
func ReadInput(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", bnk.ErrIOFailure, err)
	}

	if !bytes.HasPrefix(data, xzMagic) {
		return data, nil
	}

	xr, err := xz.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: failed to open xz stream: %w", bnk.ErrIOFailure, path, err)
	}

	out, err := io.ReadAll(xr)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: failed to decompress: %w", bnk.ErrIOFailure, path, err)
	}

	return out, nil
}

// WriteFileAtomic writes data to a temp file next to path, syncs it and
// renames it into place. The temp file is removed on any failure.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	return WriteAtomic(path, perm, func(w io.Writer) error {
		_, err := w.Write(data)
		return err
	})
}

// WriteAtomic is WriteFileAtomic for callers that stream their output.
func WriteAtomic(path string, perm os.FileMode, write func(w io.Writer) error) error {
	dir := filepath.Dir(path)

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("%w: failed to create temp file in %s: %w", bnk.ErrIOFailure, dir, err)
	}

	tmpPath := tmp.Name()

	if err := write(tmp); err != nil {
		tmp.Close()
		os.Remove(tmpPath)

		return fmt.Errorf("%w: failed to write %s: %w", bnk.ErrIOFailure, path, err)
	}

	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)

		return fmt.Errorf("%w: failed to sync %s: %w", bnk.ErrIOFailure, path, err)
	}

	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("%w: failed to close %s: %w", bnk.ErrIOFailure, path, err)
	}

	if err := os.Chmod(tmpPath, perm); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("%w: failed to set mode of %s: %w", bnk.ErrIOFailure, path, err)
	}

	if err := osRename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("%w: failed to move output to %s: %w", bnk.ErrIOFailure, path, err)
	}

	return nil
}
