package fileutil

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/ulikunitz/xz"

	"github.com/cwbudde/bnk"
)

func TestWriteFileAtomic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.bnk")

	if err := WriteFileAtomic(path, []byte("first"), 0o644); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	if err := WriteFileAtomic(path, []byte("second"), 0o644); err != nil {
		t.Fatalf("overwrite failed: %v", err)
	}

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}

	if string(got) != "second" {
		t.Fatalf("content mismatch: got %q want %q", got, "second")
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("readdir failed: %v", err)
	}

	if len(entries) != 1 {
		t.Fatalf("directory entries mismatch: got %d want 1", len(entries))
	}
}

func TestWriteAtomicLeavesNothingOnFailure(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.bnk")
	writeErr := errors.New("boom")

	err := WriteAtomic(path, 0o644, func(w io.Writer) error {
		w.Write([]byte("partial"))
		return writeErr
	})
	if !errors.Is(err, bnk.ErrIOFailure) || !errors.Is(err, writeErr) {
		t.Fatalf("expected ErrIOFailure wrapping the write error, got %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("readdir failed: %v", err)
	}

	if len(entries) != 0 {
		t.Fatalf("expected empty directory, found %d entries", len(entries))
	}
}

func TestWriteAtomicRenameFailure(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.bnk")

	orig := osRename
	osRename = func(string, string) error { return errors.New("rename refused") }
	t.Cleanup(func() { osRename = orig })

	err := WriteFileAtomic(path, []byte("data"), 0o644)
	if !errors.Is(err, bnk.ErrIOFailure) {
		t.Fatalf("expected ErrIOFailure, got %v", err)
	}

	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Fatalf("expected empty directory, found %d entries", len(entries))
	}
}

func TestReadInputPlainAndXZ(t *testing.T) {
	dir := t.TempDir()
	want := []byte("BKHD\x08\x00\x00\x00payload bytes")

	plain := filepath.Join(dir, "plain.bnk")
	if err := os.WriteFile(plain, want, 0o644); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	var buf bytes.Buffer

	xw, err := xz.NewWriter(&buf)
	if err != nil {
		t.Fatalf("xz writer failed: %v", err)
	}

	if _, err := xw.Write(want); err != nil {
		t.Fatalf("xz write failed: %v", err)
	}

	if err := xw.Close(); err != nil {
		t.Fatalf("xz close failed: %v", err)
	}

	packed := filepath.Join(dir, "packed.bnk.xz")
	if err := os.WriteFile(packed, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	for _, path := range []string{plain, packed} {
		got, err := ReadInput(path)
		if err != nil {
			t.Fatalf("%s: read failed: %v", path, err)
		}

		if !bytes.Equal(got, want) {
			t.Fatalf("%s: content mismatch: got %q want %q", path, got, want)
		}
	}
}

func TestReadInputMissing(t *testing.T) {
	_, err := ReadInput(filepath.Join(t.TempDir(), "missing.bnk"))
	if !errors.Is(err, bnk.ErrIOFailure) || !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected ErrIOFailure wrapping ErrNotExist, got %v", err)
	}
}
