package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"

	siteerrors "github.com/conneroisu/sitekit/internal/errors"
)

func TestValidateArgument(t *testing.T) {
	tests := []struct {
		name    string
		arg     string
		wantErr bool
	}{
		{name: "plain flag", arg: "-O3"},
		{name: "quality range", arg: "--quality=60-80"},
		{name: "stdin marker", arg: "-"},
		{name: "relative path", arg: "./img"},
		{name: "semicolon", arg: "80; rm -rf /", wantErr: true},
		{name: "pipe", arg: "x | cat /etc/passwd", wantErr: true},
		{name: "backtick", arg: "x`whoami`", wantErr: true},
		{name: "subshell", arg: "file$(whoami).png", wantErr: true},
		{name: "newline", arg: "a\nb", wantErr: true},
		{name: "traversal", arg: "../../../etc/passwd", wantErr: true},
		{name: "absolute path", arg: "/home/user/file", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateArgument(tt.arg)
			if tt.wantErr {
				assert.Error(t, err)
				assert.True(t, siteerrors.IsSecurityError(err))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateCommand(t *testing.T) {
	allowed := map[string]bool{"pngquant": true, "bad;cmd": true}

	assert.NoError(t, ValidateCommand("pngquant", allowed))
	assert.Error(t, ValidateCommand("", allowed))
	assert.ErrorContains(t, ValidateCommand("curl", allowed), "command not allowed: curl")
	assert.Error(t, ValidateCommand("bad;cmd", allowed), "allowlisted names are still checked for metacharacters")
}

func TestValidatePath(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		wantErr bool
	}{
		{name: "relative", path: "dist"},
		{name: "nested relative", path: "./app/html"},
		{name: "absolute project path", path: "/home/dev/site/app"},
		{name: "dots in names", path: "app/v1..2/file"},
		{name: "empty", path: "", wantErr: true},
		{name: "blank", path: "   ", wantErr: true},
		{name: "traversal", path: "../outside", wantErr: true},
		{name: "embedded traversal", path: "app/../../x", wantErr: true},
		{name: "system dir", path: "/etc/passwd", wantErr: true},
		{name: "proc", path: "/proc/self", wantErr: true},
		{name: "etc itself", path: "/etc", wantErr: true},
		{name: "metacharacter", path: "dist;rm", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePath(tt.path)
			if tt.wantErr {
				assert.Error(t, err)
				assert.True(t, siteerrors.IsSecurityError(err))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateOrigin(t *testing.T) {
	allowed := []string{"localhost:3000", "http://127.0.0.1:3000"}

	tests := []struct {
		name    string
		origin  string
		wantErr bool
	}{
		{name: "host match", origin: "http://localhost:3000"},
		{name: "full origin match", origin: "http://127.0.0.1:3000"},
		{name: "https host match", origin: "https://localhost:3000"},
		{name: "missing", origin: "", wantErr: true},
		{name: "other host", origin: "http://evil.example", wantErr: true},
		{name: "other port", origin: "http://localhost:4000", wantErr: true},
		{name: "file scheme", origin: "file://localhost:3000", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateOrigin(tt.origin, allowed)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
