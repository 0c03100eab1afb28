// Package tools locates the external binaries the downloader can lean
// on. Only ffmpeg matters here: playlist streams remux through it when
// it is installed.
package tools

import (
	"os/exec"
	"regexp"
	"strings"
)

// FFmpeg describes the ffmpeg binary found on PATH, if any
type FFmpeg struct {
	Binary    string
	Version   string
	Available bool
}

var ffmpegVersionPattern = regexp.MustCompile(`version\s+([^\s,]+)`)

// FindFFmpeg probes PATH for ffmpeg. A missing binary is not an error;
// callers fall back to the built-in playlist downloader.
func FindFFmpeg() FFmpeg {
	path, err := exec.LookPath("ffmpeg")
	if err != nil {
		return FFmpeg{}
	}
	return FFmpeg{
		Binary:    path,
		Version:   ffmpegVersion(path),
		Available: true,
	}
}

// ffmpegVersion reads the version out of "ffmpeg version 6.0 ..."
func ffmpegVersion(binary string) string {
	out, err := exec.Command(binary, "-version").Output()
	if err != nil {
		return ""
	}

	firstLine, _, _ := strings.Cut(string(out), "\n")
	if matches := ffmpegVersionPattern.FindStringSubmatch(firstLine); len(matches) > 1 {
		return matches[1]
	}
	return ""
}
