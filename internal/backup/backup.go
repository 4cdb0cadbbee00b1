// Package backup writes timestamped copies of the deal database and keeps
// only the most recent ones.
package backup

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/MrSnakeDoc/hotdeals/internal/logger"
)

const (
	// DefaultKeep is how many backups survive a rotation
	DefaultKeep = 7

	filePrefix = "hotdeals_"
	fileSuffix = ".db"
	stampFmt   = "20060102_150405"
)

// Snapshotter writes a consistent copy of the database to a path.
type Snapshotter interface {
	SnapshotTo(ctx context.Context, dst string) error
}

// Manager creates and rotates backups.
type Manager struct {
	db     Snapshotter
	dir    string
	keep   int
	loc    *time.Location
	logger logger.Logger
	now    func() time.Time
}

// NewManager creates a backup manager writing into dir.
func NewManager(db Snapshotter, dir string, keep int, loc *time.Location, log logger.Logger) *Manager {
	if keep <= 0 {
		keep = DefaultKeep
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Manager{
		db:     db,
		dir:    dir,
		keep:   keep,
		loc:    loc,
		logger: log.Named("backup"),
		now:    time.Now,
	}
}

// Run writes hotdeals_YYYYMMDD_HHMMSS.db and prunes the oldest backups
// beyond the retention count. It returns the new file path.
func (m *Manager) Run(ctx context.Context) (string, error) {
	if err := os.MkdirAll(m.dir, 0o750); err != nil {
		return "", fmt.Errorf("creating backup directory: %w", err)
	}

	name := filePrefix + m.now().In(m.loc).Format(stampFmt) + fileSuffix
	dst := filepath.Join(m.dir, name)
	if _, err := os.Stat(dst); err == nil {
		return "", fmt.Errorf("backup %s already exists", name)
	}

	if err := m.db.SnapshotTo(ctx, dst); err != nil {
		return "", err
	}
	m.logger.Info("backup written", logger.String("file", dst))

	removed, err := m.prune()
	if err != nil {
		return dst, fmt.Errorf("pruning backups: %w", err)
	}
	if removed > 0 {
		m.logger.Info("old backups pruned", logger.Int("removed", removed), logger.Int("kept", m.keep))
	}
	return dst, nil
}

// List returns the backup file names, oldest first.
func (m *Manager) List() ([]string, error) {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("reading backup directory: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !isBackupName(e.Name()) {
			continue
		}
		names = append(names, e.Name())
	}
	// the timestamp layout sorts chronologically
	sort.Strings(names)
	return names, nil
}

func (m *Manager) prune() (int, error) {
	names, err := m.List()
	if err != nil {
		return 0, err
	}
	if len(names) <= m.keep {
		return 0, nil
	}

	removed := 0
	for _, name := range names[:len(names)-m.keep] {
		if err := os.Remove(filepath.Join(m.dir, name)); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}

func isBackupName(name string) bool {
	if !strings.HasPrefix(name, filePrefix) || !strings.HasSuffix(name, fileSuffix) {
		return false
	}
	stamp := strings.TrimSuffix(strings.TrimPrefix(name, filePrefix), fileSuffix)
	_, err := time.Parse(stampFmt, stamp)
	return err == nil
}
