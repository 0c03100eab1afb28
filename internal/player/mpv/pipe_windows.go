//go:build windows

package mpv

import (
	"time"

	"github.com/Microsoft/go-winio"
)

// isPipeReady reports whether the named pipe accepts connections yet
func isPipeReady(pipePath string) bool {
	timeout := 200 * time.Millisecond
	conn, err := winio.DialPipe(pipePath, &timeout)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}
