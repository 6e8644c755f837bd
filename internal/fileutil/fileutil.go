// Package fileutil contains the staged, atomic writes shared by the asset
// cache, the compositor export and the run report.
package fileutil

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// TempPath returns a hidden sibling path in dir suitable for staging a write.
// The suffix, when non-empty, is appended verbatim (for example ".mp3").
func TempPath(dir, suffix string) string {
	return filepath.Join(dir, ".tmp-"+uuid.NewString()+suffix)
}

// WriteAtomic stages the output of write in a temp file next to path and renames
// it into place once write succeeds. Readers never observe a partial file. The
// file is handed over directly because some encoders need to seek.
func WriteAtomic(path string, write func(*os.File) error) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory %q: %w", dir, err)
	}
	tmp := TempPath(dir, filepath.Ext(path))
	out, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	cleanup := func() { _ = os.Remove(tmp) }

	if err := write(out); err != nil {
		_ = out.Close()
		cleanup()
		return err
	}
	if err := out.Sync(); err != nil {
		_ = out.Close()
		cleanup()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := out.Close(); err != nil {
		cleanup()
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		cleanup()
		return fmt.Errorf("rename into place: %w", err)
	}
	return nil
}

// RemoveStaleTemps deletes ".tmp-*" files in dir last modified more than
// olderThan ago, typically left behind when a crash interrupted a staged
// write. Younger files may still belong to a write in another process. It
// returns the number of files removed.
func RemoveStaleTemps(dir string, olderThan time.Duration) (int, error) {
	matches, err := filepath.Glob(filepath.Join(dir, ".tmp-*"))
	if err != nil {
		return 0, err
	}
	cutoff := time.Now().Add(-olderThan)
	removed := 0
	for _, match := range matches {
		info, err := os.Stat(match)
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		if err := os.Remove(match); err == nil {
			removed++
		}
	}
	return removed, nil
}
