package server

import (
	"fmt"
	"os/exec"
	"runtime"

	"github.com/conneroisu/sitekit/internal/validation"
)

// OpenBrowser opens url in the platform's default browser. The URL is
// validated first because it ends up on a command line.
func OpenBrowser(url string) error {
	if err := validation.ValidateURL(url); err != nil {
		return err
	}

	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "linux", "freebsd", "openbsd":
		cmd = exec.Command("xdg-open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	case "darwin":
		cmd = exec.Command("open", url)
	default:
		return fmt.Errorf("opening a browser is not supported on %s", runtime.GOOS)
	}
	return cmd.Start()
}
