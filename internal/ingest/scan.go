// Package ingest discovers gauge photos on disk, once or continuously.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"slices"
	"strings"

	"github.com/joseph-ayodele/gauge-tracker/constants"
)

type ScanStats struct {
	Scanned uint32 // entries visited
	Matched uint32 // photos returned
	Failed  uint32 // entries that could not be read
}

// ScanDirectory walks root and returns the photo files under it, sorted by path.
// Hidden files and directories are skipped when skipHidden is set; the root itself is always walked.
func ScanDirectory(ctx context.Context, root string, skipHidden bool) ([]string, ScanStats, error) {
	var stats ScanStats
	if strings.TrimSpace(root) == "" {
		return nil, stats, errors.New("root path is required")
	}

	var paths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		stats.Scanned++
		if walkErr != nil {
			if path == root {
				return walkErr
			}
			stats.Failed++
			return nil // continue walking
		}
		if skipHidden && path != root && isHidden(path) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}
		if !constants.IsAllowedExt(filepath.Ext(path)) {
			return nil
		}
		stats.Matched++
		paths = append(paths, path)
		return nil
	})
	if err != nil {
		return nil, stats, fmt.Errorf("walk: %w", err)
	}
	slices.Sort(paths)
	return paths, stats, nil
}

func isHidden(path string) bool {
	return strings.HasPrefix(filepath.Base(path), ".")
}
