package assets

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"os/exec"
	"strconv"

	siteerrors "github.com/conneroisu/sitekit/internal/errors"
	"github.com/conneroisu/sitekit/internal/validation"
)

// allowedCodecCommands is the allowlist of external optimizers.
var allowedCodecCommands = map[string]bool{
	"cjpeg":    true,
	"pngquant": true,
	"gifsicle": true,
}

// pngquantQualityTooLow is the exit status pngquant uses when it cannot
// reach the requested quality. The input is kept as is in that case.
const pngquantQualityTooLow = 99

// ExecCodec pipes an image through an external optimizer on stdin/stdout.
type ExecCodec struct {
	command string
	args    []string
}

// NewExecCodec validates the command and its arguments.
func NewExecCodec(command string, args ...string) (*ExecCodec, error) {
	c := &ExecCodec{command: command, args: args}
	if err := c.validateCommand(); err != nil {
		return nil, err
	}
	return c, nil
}

// Command returns the executable name.
func (c *ExecCodec) Command() string { return c.command }

// Encode implements Codec.
func (c *ExecCodec) Encode(ctx context.Context, src []byte) ([]byte, error) {
	if err := c.validateCommand(); err != nil {
		return nil, fmt.Errorf("command validation failed: %w", err)
	}

	cmd := exec.CommandContext(ctx, c.command, c.args...)
	cmd.Stdin = bytes.NewReader(src)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%s timed out: %w", c.command, ctx.Err())
		}
		var exitErr *exec.ExitError
		if c.command == "pngquant" && stderrors.As(err, &exitErr) && exitErr.ExitCode() == pngquantQualityTooLow {
			return src, nil
		}
		return nil, fmt.Errorf("%s failed: %w\nOutput: %s", c.command, err, stderr.String())
	}

	return stdout.Bytes(), nil
}

func (c *ExecCodec) validateCommand() error {
	if !allowedCodecCommands[c.command] {
		return siteerrors.ErrCommandNotAllowed(c.command)
	}
	if err := validation.ValidateCommand(c.command, allowedCodecCommands); err != nil {
		return err
	}
	for _, arg := range c.args {
		if err := validation.ValidateArgument(arg); err != nil {
			return fmt.Errorf("invalid argument '%s': %w", arg, err)
		}
	}
	return nil
}

// ExternalCodecs returns exec codecs for the optimizers found on PATH,
// configured from settings.
func ExternalCodecs(settings Settings) map[Kind]Codec {
	candidates := map[Kind]struct {
		command string
		args    []string
	}{
		KindOptimizeJPEG: {"cjpeg", []string{"-quality", strconv.Itoa(settings.JPEGQuality), "-optimize"}},
		KindOptimizePNG: {"pngquant", []string{
			fmt.Sprintf("--quality=%d-%d", int(settings.PNGQualityMin*100), int(settings.PNGQualityMax*100)),
			"-",
		}},
		KindOptimizeGIF: {"gifsicle", []string{fmt.Sprintf("-O%d", gifsicleLevel(settings.GIFLevel))}},
	}

	codecs := make(map[Kind]Codec)
	for kind, c := range candidates {
		if _, err := exec.LookPath(c.command); err != nil {
			continue
		}
		codec, err := NewExecCodec(c.command, c.args...)
		if err != nil {
			continue
		}
		codecs[kind] = codec
	}
	return codecs
}

// gifsicleLevel maps the configured level onto gifsicle's -O1..-O3.
func gifsicleLevel(level int) int {
	switch {
	case level <= 1:
		return 1
	case level >= 3:
		return 3
	default:
		return level
	}
}
