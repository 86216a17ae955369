package config

import (
	"fmt"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	siteerrors "github.com/conneroisu/sitekit/internal/errors"
	"github.com/conneroisu/sitekit/internal/logging"
	"github.com/conneroisu/sitekit/internal/validation"
)

var hostnamePattern = regexp.MustCompile(`^[a-zA-Z0-9]([a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?(\.[a-zA-Z0-9]([a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?)*$`)

// ValidationError represents a configuration validation error with suggestions
type ValidationError struct {
	Field       string
	Value       interface{}
	Message     string
	Suggestions []string
}

func (ve *ValidationError) Error() string {
	return fmt.Sprintf("validation error in %s: %s", ve.Field, ve.Message)
}

// ValidationResult holds the result of configuration validation
type ValidationResult struct {
	Valid    bool
	Errors   []ValidationError
	Warnings []ValidationError
}

// HasErrors returns true if there are any validation errors
func (vr *ValidationResult) HasErrors() bool {
	return len(vr.Errors) > 0
}

// HasWarnings returns true if there are any validation warnings
func (vr *ValidationResult) HasWarnings() bool {
	return len(vr.Warnings) > 0
}

// String returns a formatted string of all validation issues
func (vr *ValidationResult) String() string {
	var builder strings.Builder

	if len(vr.Errors) > 0 {
		builder.WriteString("Validation errors:\n")
		writeIssues(&builder, vr.Errors)
		builder.WriteString("\n")
	}

	if len(vr.Warnings) > 0 {
		builder.WriteString("Validation warnings:\n")
		writeIssues(&builder, vr.Warnings)
	}

	return builder.String()
}

func writeIssues(b *strings.Builder, issues []ValidationError) {
	for _, issue := range issues {
		fmt.Fprintf(b, "  - %s: %s\n", issue.Field, issue.Message)
		for _, suggestion := range issue.Suggestions {
			fmt.Fprintf(b, "      hint: %s\n", suggestion)
		}
	}
}

func (vr *ValidationResult) addError(field string, value interface{}, message string, suggestions ...string) {
	vr.Errors = append(vr.Errors, ValidationError{Field: field, Value: value, Message: message, Suggestions: suggestions})
}

func (vr *ValidationResult) addWarning(field string, value interface{}, message string, suggestions ...string) {
	vr.Warnings = append(vr.Warnings, ValidationError{Field: field, Value: value, Message: message, Suggestions: suggestions})
}

// validateConfig returns the first validation error as a config error.
func validateConfig(config *Config) error {
	result := ValidateConfigWithDetails(config)
	if !result.HasErrors() {
		return nil
	}

	first := result.Errors[0]
	return siteerrors.NewConfigError(siteerrors.ErrCodeConfigInvalid, first.Field+": "+first.Message).
		WithContext("field", first.Field).
		WithContext("errors", len(result.Errors))
}

// ValidateConfigWithDetails performs comprehensive validation with detailed feedback
func ValidateConfigWithDetails(config *Config) *ValidationResult {
	result := &ValidationResult{
		Valid:    true,
		Errors:   []ValidationError{},
		Warnings: []ValidationError{},
	}

	validatePathsDetails(&config.Paths, result)
	validateBuildDetails(&config.Build, result)
	validateOptimizeDetails(&config.Optimize, result)
	validateAliasesDetails(&config.Aliases, result)
	validateServerDetails(&config.Server, result)
	validateLogDetails(&config.Log, result)

	result.Valid = !result.HasErrors()

	return result
}

func validatePathsDetails(config *PathsConfig, result *ValidationResult) {
	dirs := []struct {
		field string
		value string
	}{
		{"paths.root", config.Root},
		{"paths.app", config.App},
		{"paths.dist", config.Dist},
		{"paths.public", config.Public},
	}
	for _, dir := range dirs {
		if err := validation.ValidatePath(dir.value); err != nil {
			result.addError(dir.field, dir.value, err.Error(),
				"Use a path inside the project directory",
				"Avoid '..' segments and shell metacharacters")
		}
	}

	if config.Partials == "" || strings.ContainsAny(config.Partials, `/\`) || config.Partials == ".." || config.Partials == "." {
		result.addError("paths.partials", config.Partials, "partials must be a single directory name",
			"The default is 'html'")
	}

	if config.App != "" && filepath.Clean(config.App) == filepath.Clean(config.Dist) {
		result.addError("paths.dist", config.Dist, "dist must differ from app",
			"Building empties dist; pointing it at app would delete the sources")
	}

	app := filepath.Join(config.Root, config.App)
	if config.Root != "" && config.App != "" && !pathExists(app) {
		result.addWarning("paths.app", config.App, fmt.Sprintf("app directory %s does not exist", app),
			"Run 'sitekit config init' in the project root",
			"Set paths.root to the project directory")
	}
}

func validateBuildDetails(config *BuildConfig, result *ValidationResult) {
	switch config.Mode {
	case ModeDevelopment, ModeProduction, ModeProductionMin:
	default:
		result.addError("build.mode", config.Mode, fmt.Sprintf("unknown build mode '%s'", config.Mode),
			"Available modes: development, production, production-min")
	}

	if config.Parallelism < 1 {
		result.addError("build.parallelism", config.Parallelism, "parallelism must be at least 1",
			fmt.Sprintf("The default on this machine is %d", DefaultParallelism()))
	} else if config.Parallelism > 4*runtime.NumCPU() {
		result.addWarning("build.parallelism", config.Parallelism, "parallelism far exceeds the CPU count",
			"File operations are mostly I/O bound; more chunks rarely help")
	}

	if config.ChunkThreshold < 1 {
		result.addError("build.chunk_threshold", config.ChunkThreshold, "chunk_threshold must be at least 1")
	}

	if config.ItemTimeout < 0 {
		result.addError("build.item_timeout", config.ItemTimeout, "item_timeout cannot be negative",
			"Use 0 to disable the per-item timeout")
	}

	if config.MaxIncludeDepth < 1 {
		result.addError("build.max_include_depth", config.MaxIncludeDepth, "max_include_depth must be at least 1")
	}
}

func validateOptimizeDetails(config *OptimizeConfig, result *ValidationResult) {
	if config.JPEGQuality < 1 || config.JPEGQuality > 100 {
		result.addError("optimize.jpeg_quality", config.JPEGQuality, "jpeg_quality must be between 1 and 100")
	}

	if config.PNGQualityMin < 0 || config.PNGQualityMax > 1 || config.PNGQualityMin > config.PNGQualityMax {
		result.addError("optimize.png_quality_min", config.PNGQualityMin,
			fmt.Sprintf("png quality range %.2f-%.2f is invalid", config.PNGQualityMin, config.PNGQualityMax),
			"Both bounds are fractions between 0 and 1 with min <= max")
	}

	if config.GIFLevel < 1 || config.GIFLevel > 7 {
		result.addError("optimize.gif_level", config.GIFLevel, "gif_level must be between 1 and 7")
	}

	if config.External {
		missing := []string{}
		for _, bin := range []string{"cjpeg", "pngquant", "gifsicle"} {
			if _, err := exec.LookPath(bin); err != nil {
				missing = append(missing, bin)
			}
		}
		if len(missing) > 0 {
			result.addWarning("optimize.external", true,
				"optimizers not found on PATH: "+strings.Join(missing, ", "),
				"Formats without an external optimizer use the built-in codecs")
		}
	}
}

func validateAliasesDetails(config *AliasesConfig, result *ValidationResult) {
	for name, target := range config.HTML {
		if !strings.HasPrefix(name, "@") {
			result.addError("aliases.html", name, fmt.Sprintf("alias '%s' must start with '@'", name))
			continue
		}
		if err := validation.ValidatePath(target); err != nil {
			result.addError("aliases.html", target, fmt.Sprintf("alias '%s': %v", name, err))
		}
	}
}

func validateServerDetails(config *ServerConfig, result *ValidationResult) {
	if config.Port < 0 || config.Port > 65535 {
		result.addError("server.port", config.Port, fmt.Sprintf("port %d is not in valid range 0-65535", config.Port),
			"Use a port between 1024-65535 for non-privileged access",
			"Port 0 allows system to assign an available port")
	} else if config.Port > 0 && config.Port < 1024 {
		result.addWarning("server.port", config.Port, "port below 1024 requires elevated privileges",
			"Consider using a port above 1024 for development")
	}

	if config.Host != "" {
		if err := validateHostname(config.Host); err != nil {
			result.addError("server.host", config.Host, err.Error(),
				"Use 'localhost' for local development",
				"Use '0.0.0.0' to bind to all interfaces")
		}
	}
}

func validateLogDetails(config *LogConfig, result *ValidationResult) {
	if _, err := logging.ParseLevel(config.Level); err != nil {
		result.addError("log.level", config.Level, err.Error(), "Use one of debug, info, warn, error")
	}
	if config.Format != "text" && config.Format != "json" {
		result.addError("log.format", config.Format, fmt.Sprintf("unknown log format '%s'", config.Format),
			"Use 'text' or 'json'")
	}
}

func validateHostname(host string) error {
	dangerousChars := []string{";", "&", "|", "$", "`", "(", ")", "<", ">", "\"", "'", "\\"}
	for _, char := range dangerousChars {
		if strings.Contains(host, char) {
			return fmt.Errorf("contains dangerous character: %s", char)
		}
	}

	if net.ParseIP(host) != nil {
		return nil
	}

	if !hostnamePattern.MatchString(host) {
		return fmt.Errorf("invalid hostname format")
	}

	return nil
}

func pathExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
