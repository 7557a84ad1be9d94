package deps

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

const defaultFFprobe = "ffprobe"

// ResolveFFprobe picks the ffprobe to pair with ffmpegCommand. A configured
// non-default value wins; otherwise an ffprobe next to the resolved ffmpeg is
// used, falling back to PATH.
func ResolveFFprobe(ffmpegCommand, ffprobeCommand string) string {
	if explicit := strings.TrimSpace(ffprobeCommand); explicit != "" && explicit != defaultFFprobe {
		return explicit
	}
	ffmpeg := strings.TrimSpace(ffmpegCommand)
	if ffmpeg == "" {
		return defaultFFprobe
	}
	resolved, err := exec.LookPath(ffmpeg)
	if err != nil {
		return defaultFFprobe
	}
	sibling := filepath.Join(filepath.Dir(resolved), defaultFFprobe)
	if info, err := os.Stat(sibling); err == nil && info.Mode().IsRegular() && info.Mode().Perm()&0o111 != 0 {
		return sibling
	}
	return defaultFFprobe
}
