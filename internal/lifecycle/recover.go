package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/hyperjump/shiryo/internal/layout"
	"github.com/hyperjump/shiryo/internal/manifest"
)

// RecoveryReport summarizes what Recover cleaned up.
type RecoveryReport struct {
	Purged   []string
	Restored []string
}

// Recover cleans up after an interrupted process: staging directories and
// trashed deletes are purged, and an index moved aside by an unfinished
// commit is put back when its live directory is missing. It holds the
// storage-root lock exclusively, so it waits for commits and deletes in
// progress in any process and blocks new ones until it is done.
func (m *Manager) Recover(ctx context.Context) (*RecoveryReport, error) {
	release, err := m.lockRoot(ctx, true)
	if err != nil {
		return nil, err
	}
	defer release()

	report := &RecoveryReport{}

	staged, err := readDirNames(m.layout.StagingRoot())
	if err != nil {
		return nil, err
	}
	for _, s := range staged {
		p := filepath.Join(m.layout.StagingRoot(), s)
		if err := os.RemoveAll(p); err != nil {
			return report, fmt.Errorf("purge %s: %w", p, err)
		}
		report.Purged = append(report.Purged, p)
	}

	trashed, err := readDirNames(m.layout.TrashRoot())
	if err != nil {
		return report, err
	}
	for _, t := range trashed {
		p := filepath.Join(m.layout.TrashRoot(), t)
		if strings.HasSuffix(t, layout.SwapSuffix) {
			restored, err := m.restoreSwapped(p)
			if err != nil {
				m.logger.Warn("cannot restore swapped index", zap.String("path", p), zap.Error(err))
				continue
			}
			if restored != "" {
				report.Restored = append(report.Restored, restored)
				continue
			}
		}
		if err := os.RemoveAll(p); err != nil {
			return report, fmt.Errorf("purge %s: %w", p, err)
		}
		report.Purged = append(report.Purged, p)
	}

	if len(report.Purged)+len(report.Restored) > 0 {
		m.logger.Info("recovered storage root",
			zap.Int("purged", len(report.Purged)),
			zap.Strings("restored", report.Restored))
	}
	return report, nil
}

// restoreSwapped moves a swapped-out index back into place when nothing
// replaced it. It returns the restored name, or "" when the backup is stale.
func (m *Manager) restoreSwapped(path string) (string, error) {
	mf, err := manifest.ReadFile("", filepath.Join(path, layout.ManifestFile))
	if err != nil {
		return "", err
	}
	if err := layout.ValidateName(mf.Name); err != nil {
		return "", err
	}
	live := m.layout.IndexDir(mf.Name)
	if _, err := os.Stat(live); err == nil {
		return "", nil
	}
	if err := m.rename(path, live); err != nil {
		return "", err
	}
	return mf.Name, nil
}

func readDirNames(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", dir, err)
	}
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name()
	}
	return names, nil
}
