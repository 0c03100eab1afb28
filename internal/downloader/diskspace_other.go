//go:build !(linux || darwin || windows)

package downloader

// checkDiskSpace is a no-op on platforms without a free-space probe
func (m *Manager) checkDiskSpace() error {
	return nil
}
