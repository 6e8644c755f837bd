package deps

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
)

// CheckSidecar resolves a helper binary that is usually installed next to
// another one, such as ffprobe beside ffmpeg.
//
// The sibling of the resolved anchor wins when it exists and is executable;
// otherwise the name is looked up on PATH. Reporting the sibling keeps status
// output aligned with the binary that will actually run when a static ffmpeg
// build is unpacked outside PATH.
func CheckSidecar(name, description, anchorCommand string) Status {
	name = strings.TrimSpace(name)
	result := Status{
		Name:        name,
		Description: strings.TrimSpace(description),
	}

	anchor := strings.TrimSpace(anchorCommand)
	if anchor != "" {
		if resolved, err := exec.LookPath(anchor); err == nil {
			candidate := filepath.Join(filepath.Dir(resolved), executableName(name))
			if info, statErr := os.Stat(candidate); statErr == nil && isExecutable(info) {
				result.Command = candidate
				result.Path = candidate
				result.Available = true
				return result
			}
		}
	}

	if resolved, err := exec.LookPath(name); err == nil {
		result.Command = resolved
		result.Path = resolved
		result.Available = true
		return result
	}

	result.Command = name
	result.Detail = fmt.Sprintf("binary %q not found", name)
	return result
}

func executableName(base string) string {
	if runtime.GOOS == "windows" {
		return base + ".exe"
	}
	return base
}

func isExecutable(info os.FileInfo) bool {
	if info == nil || info.IsDir() {
		return false
	}
	if runtime.GOOS == "windows" {
		return true
	}
	return info.Mode().Perm()&0o111 != 0
}
