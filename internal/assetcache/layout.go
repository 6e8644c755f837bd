package assetcache

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"
)

const assetExt = ".mp3"

// File is one cached clip on disk.
type File struct {
	Category   string    `json:"category"`
	Index      int       `json:"index"`
	Name       string    `json:"name"`
	Path       string    `json:"path"`
	SizeBytes  int64     `json:"size_bytes"`
	ModifiedAt time.Time `json:"modified_at"`
}

// FileName returns the canonical name of the n-th clip of category.
func FileName(category string, n int) string {
	return fmt.Sprintf("%s_%d%s", category, n, assetExt)
}

func lockName(category string) string {
	return "." + category + ".lock"
}

// parseName splits "{category}_{n}.mp3". Hidden files never match.
func parseName(name string) (string, int, bool) {
	if strings.HasPrefix(name, ".") || !strings.EqualFold(filepath.Ext(name), assetExt) {
		return "", 0, false
	}
	base := strings.TrimSuffix(name, filepath.Ext(name))
	sep := strings.LastIndex(base, "_")
	if sep <= 0 || sep == len(base)-1 {
		return "", 0, false
	}
	n, err := strconv.Atoi(base[sep+1:])
	if err != nil || n < 0 {
		return "", 0, false
	}
	return base[:sep], n, true
}

// scanDir lists cached clips in dir, optionally restricted to one category,
// ordered by category, then numeric index, then name.
func scanDir(dir, category string) ([]File, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("assetcache: list %s: %w", dir, err)
	}
	files := make([]File, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		cat, n, ok := parseName(entry.Name())
		if !ok || (category != "" && cat != category) {
			continue
		}
		f := File{Category: cat, Index: n, Name: entry.Name(), Path: filepath.Join(dir, entry.Name())}
		if info, err := entry.Info(); err == nil {
			f.SizeBytes = info.Size()
			f.ModifiedAt = info.ModTime()
		}
		files = append(files, f)
	}
	sort.SliceStable(files, func(i, j int) bool {
		if files[i].Category != files[j].Category {
			return files[i].Category < files[j].Category
		}
		if files[i].Index != files[j].Index {
			return files[i].Index < files[j].Index
		}
		return files[i].Name < files[j].Name
	})
	return files, nil
}

func nextIndex(files []File) int {
	highest := 0
	for _, f := range files {
		if f.Index > highest {
			highest = f.Index
		}
	}
	return highest + 1
}

func positionOf(files []File, name string) int {
	for i, f := range files {
		if f.Name == name {
			return i
		}
	}
	return -1
}
