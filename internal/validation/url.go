package validation

import (
	"fmt"
	"net/url"
	"strings"

	siteerrors "github.com/conneroisu/sitekit/internal/errors"
)

// ValidateURL checks a URL before it is handed to the system browser opener.
func ValidateURL(rawURL string) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return siteerrors.NewSecurityError(siteerrors.ErrCodeInvalidURL, "invalid URL").WithContext("url", rawURL)
	}

	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return siteerrors.NewSecurityError(siteerrors.ErrCodeInvalidURL,
			fmt.Sprintf("invalid URL scheme: %s (only http/https allowed)", parsed.Scheme))
	}

	for _, char := range append(shellMetacharacters, " ") {
		if strings.Contains(rawURL, char) {
			return siteerrors.NewSecurityError(siteerrors.ErrCodeInvalidURL,
				fmt.Sprintf("URL contains dangerous character %q", char))
		}
	}

	if parsed.Host == "" {
		return siteerrors.NewSecurityError(siteerrors.ErrCodeInvalidURL, "URL must have a valid hostname")
	}

	return nil
}
