//go:build windows

package downloader

import (
	"fmt"
	"syscall"
	"unsafe"
)

// checkDiskSpace refuses new downloads once the target volume drops
// under the configured free-space floor.
func (m *Manager) checkDiskSpace() error {
	if m.config.MinFreeSpaceGB <= 0 {
		return nil
	}

	kernel32 := syscall.NewLazyDLL("kernel32.dll")
	getDiskFreeSpaceEx := kernel32.NewProc("GetDiskFreeSpaceExW")

	pathPtr, err := syscall.UTF16PtrFromString(m.config.Dir)
	if err != nil {
		return fmt.Errorf("failed to convert path: %w", err)
	}

	var availBytes, totalBytes, freeBytes uint64
	ret, _, callErr := getDiskFreeSpaceEx.Call(
		uintptr(unsafe.Pointer(pathPtr)),
		uintptr(unsafe.Pointer(&availBytes)),
		uintptr(unsafe.Pointer(&totalBytes)),
		uintptr(unsafe.Pointer(&freeBytes)),
	)
	if ret == 0 {
		return fmt.Errorf("failed to check disk space: %w", callErr)
	}

	freeGB := availBytes / (1024 * 1024 * 1024)
	if freeGB < uint64(m.config.MinFreeSpaceGB) {
		return fmt.Errorf("insufficient disk space: %d GB free, %d GB required",
			freeGB, m.config.MinFreeSpaceGB)
	}
	return nil
}
