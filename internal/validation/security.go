// Package validation guards the inputs that reach the filesystem, external
// processes and the dev server: command lines, paths, origins and URLs.
package validation

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strings"

	siteerrors "github.com/conneroisu/sitekit/internal/errors"
)

// shellMetacharacters can chain or redirect commands.
var shellMetacharacters = []string{";", "&", "|", "$", "`", "(", ")", "<", ">", "\\", "\"", "'", "\n", "\r"}

// restrictedPaths are system locations a site build never reads or writes.
var restrictedPaths = []string{
	"/etc/",
	"/proc/",
	"/sys/",
	"/dev/",
	"/boot/",
}

// ValidateArgument rejects command arguments carrying shell metacharacters,
// parent directory references or absolute paths.
func ValidateArgument(arg string) error {
	for _, char := range shellMetacharacters {
		if strings.Contains(arg, char) {
			return siteerrors.NewSecurityError(siteerrors.ErrCodeCommandNotAllowed,
				fmt.Sprintf("argument contains dangerous character %q", char)).
				WithContext("argument", arg)
		}
	}

	if strings.Contains(arg, "..") {
		return siteerrors.ErrPathTraversal(arg)
	}

	if filepath.IsAbs(arg) {
		return siteerrors.NewSecurityError(siteerrors.ErrCodeInvalidPath, "absolute path not allowed as argument: "+arg)
	}

	return nil
}

// ValidateCommand checks command against an allowlist.
func ValidateCommand(command string, allowedCommands map[string]bool) error {
	if command == "" {
		return siteerrors.NewSecurityError(siteerrors.ErrCodeCommandNotAllowed, "command cannot be empty")
	}

	if !allowedCommands[command] {
		return siteerrors.ErrCommandNotAllowed(command)
	}

	if err := ValidateArgument(command); err != nil {
		return fmt.Errorf("invalid command '%s': %w", command, err)
	}

	return nil
}

// ValidatePath rejects paths that climb out of the project or point into
// system directories.
func ValidatePath(path string) error {
	if strings.TrimSpace(path) == "" {
		return siteerrors.NewSecurityError(siteerrors.ErrCodeInvalidPath, "path cannot be empty")
	}

	for _, part := range strings.Split(filepath.ToSlash(path), "/") {
		if part == ".." {
			return siteerrors.ErrPathTraversal(path)
		}
	}

	clean := filepath.ToSlash(filepath.Clean(path))
	lower := strings.ToLower(clean)
	for _, restricted := range restrictedPaths {
		if strings.HasPrefix(lower+"/", restricted) {
			return siteerrors.NewSecurityError(siteerrors.ErrCodeInvalidPath, "access to restricted path denied: "+path)
		}
	}

	for _, char := range []string{";", "&", "|", "$", "`", "<", ">", "\x00"} {
		if strings.Contains(path, char) {
			return siteerrors.NewSecurityError(siteerrors.ErrCodeInvalidPath,
				fmt.Sprintf("path contains dangerous character %q", char))
		}
	}

	return nil
}

// ValidateOrigin checks a WebSocket Origin header against the allowed
// origins. An allowed entry matches either the full origin or its host.
func ValidateOrigin(origin string, allowedOrigins []string) error {
	if origin == "" {
		return siteerrors.NewSecurityError(siteerrors.ErrCodeInvalidOrigin, "origin header is required")
	}

	originURL, err := url.Parse(origin)
	if err != nil {
		return siteerrors.NewSecurityError(siteerrors.ErrCodeInvalidOrigin, "invalid origin format").
			WithContext("origin", origin)
	}

	if originURL.Scheme != "http" && originURL.Scheme != "https" {
		return siteerrors.NewSecurityError(siteerrors.ErrCodeInvalidOrigin,
			fmt.Sprintf("invalid origin scheme '%s': only http and https are allowed", originURL.Scheme))
	}

	for _, allowed := range allowedOrigins {
		if origin == allowed || originURL.Host == allowed {
			return nil
		}
	}

	return siteerrors.NewSecurityError(siteerrors.ErrCodeInvalidOrigin,
		fmt.Sprintf("origin '%s' is not in allowed origins list", origin))
}
