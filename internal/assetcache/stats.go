package assetcache

import (
	"context"
	"fmt"
	"os"
	"sort"

	"golang.org/x/sys/unix"

	"foley/internal/fileutil"
	"foley/internal/logging"
)

// statfsFunc allows tests to stub filesystem stats.
type statfsFunc func(path string) (total uint64, free uint64, err error)

var statfs statfsFunc = realStatfs

// Stats describes current namespace usage.
type Stats struct {
	Namespace    string          `json:"namespace"`
	Dir          string          `json:"dir"`
	Files        int             `json:"files"`
	TotalBytes   int64           `json:"total_bytes"`
	FreeBytes    uint64          `json:"free_bytes"`
	TotalFSBytes uint64          `json:"total_fs_bytes"`
	Categories   []CategoryStats `json:"categories"`
}

// CategoryStats summarizes one category.
type CategoryStats struct {
	Category   string `json:"category"`
	Files      int    `json:"files"`
	TotalBytes int64  `json:"total_bytes"`
}

// List returns cached clips, restricted to category when non-empty.
func (m *Manager) List(category string) ([]File, error) {
	return scanDir(m.opts.Dir, category)
}

// Stats summarizes the namespace and the free space of its filesystem.
func (m *Manager) Stats(ctx context.Context) (Stats, error) {
	files, err := scanDir(m.opts.Dir, "")
	if err != nil {
		return Stats{}, err
	}
	s := Stats{Namespace: m.opts.Namespace, Dir: m.opts.Dir, Files: len(files)}
	byCategory := make(map[string]*CategoryStats)
	for _, f := range files {
		s.TotalBytes += f.SizeBytes
		cs, ok := byCategory[f.Category]
		if !ok {
			cs = &CategoryStats{Category: f.Category}
			byCategory[f.Category] = cs
		}
		cs.Files++
		cs.TotalBytes += f.SizeBytes
	}
	for _, cs := range byCategory {
		s.Categories = append(s.Categories, *cs)
	}
	sort.Slice(s.Categories, func(i, j int) bool { return s.Categories[i].Category < s.Categories[j].Category })

	total, free, err := statfs(m.opts.Dir)
	if err != nil {
		return s, fmt.Errorf("assetcache: statfs: %w", err)
	}
	s.TotalFSBytes = total
	s.FreeBytes = free
	if len(files) == 0 {
		m.logger.InfoContext(ctx, "asset cache namespace empty", logging.String("dir", m.opts.Dir))
	}
	return s, nil
}

// Prune deletes every cached clip of category, or of all categories when
// category is empty, along with their provenance and any abandoned staged files.
// It returns the number of clips removed.
func (m *Manager) Prune(ctx context.Context, category string) (int, error) {
	files, err := scanDir(m.opts.Dir, category)
	if err != nil {
		return 0, err
	}
	removed := make([]string, 0, len(files))
	for _, f := range files {
		lock := m.categoryLock(f.Category)
		lock.Lock()
		err := os.Remove(f.Path)
		lock.Unlock()
		if err != nil && !os.IsNotExist(err) {
			return len(removed), fmt.Errorf("assetcache: remove %s: %w", f.Name, err)
		}
		removed = append(removed, f.Name)
	}
	if m.opts.Recorder != nil && len(removed) > 0 {
		if err := m.opts.Recorder.Forget(ctx, m.opts.Namespace, removed...); err != nil {
			logging.WarnWithContext(m.logger, "failed to forget pruned provenance", "asset_index_write_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "index keeps entries for deleted clips"),
			)
		}
	}
	// Lock files stay: another process may hold one, and a fresh inode would
	// let two allocators pick the same index.
	if category == "" {
		_, _ = fileutil.RemoveStaleTemps(m.opts.Dir, m.opts.StaleAfter)
	}
	m.logger.InfoContext(ctx, "asset cache pruned",
		logging.String("category", category),
		logging.Int("removed", len(removed)),
	)
	return len(removed), nil
}

func realStatfs(path string) (uint64, uint64, error) {
	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return 0, 0, err
	}
	total := stat.Blocks * uint64(stat.Bsize)
	free := stat.Bavail * uint64(stat.Bsize)
	return total, free, nil
}
