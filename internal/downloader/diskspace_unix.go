//go:build linux || darwin

package downloader

import (
	"fmt"
	"syscall"
)

// checkDiskSpace refuses new downloads once the target volume drops
// under the configured free-space floor.
func (m *Manager) checkDiskSpace() error {
	if m.config.MinFreeSpaceGB <= 0 {
		return nil
	}

	var stat syscall.Statfs_t
	if err := syscall.Statfs(m.config.Dir, &stat); err != nil {
		return fmt.Errorf("failed to check disk space: %w", err)
	}

	freeGB := stat.Bavail * uint64(stat.Bsize) / (1024 * 1024 * 1024)
	if freeGB < uint64(m.config.MinFreeSpaceGB) {
		return fmt.Errorf("insufficient disk space: %d GB free, %d GB required",
			freeGB, m.config.MinFreeSpaceGB)
	}
	return nil
}
