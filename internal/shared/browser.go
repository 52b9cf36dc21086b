package shared

import (
	"fmt"
	"os/exec"
	"runtime"
)

// osName is swapped out by tests to exercise per-platform branches.
var osName = func() string { return runtime.GOOS }

// OpenBrowser opens url in the default system browser so the user can grant
// authorization. Supports macOS, Linux, and Windows; anywhere else the CLI
// falls back to printing the URL.
func OpenBrowser(url string) error {
	var cmd *exec.Cmd

	switch os := osName(); os {
	case "darwin":
		cmd = exec.Command("open", url)
	case "linux":
		cmd = exec.Command("xdg-open", url)
	case "windows":
		cmd = exec.Command("cmd", "/c", "start", url)
	default:
		return fmt.Errorf("unsupported platform: %s", os)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to open browser: %w", err)
	}

	return nil
}
