package game

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// Backup writes a consistent copy of the database into dir and returns its
// path. No other store operation runs while the copy is taken.
func (s *Store) Backup(ctx context.Context, dir string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fail("backup", err)
	}
	name := fmt.Sprintf("cardgame_backup_%s.db", s.now().Format("20060102_150405"))
	path := filepath.Join(dir, name)
	if _, err := os.Stat(path); err == nil {
		return "", fail("backup", fmt.Errorf("file already exists: %s", path))
	}
	if err := s.conn(ctx).Exec("VACUUM INTO ?", path).Error; err != nil {
		return "", fail("backup", err)
	}
	return path, nil
}
