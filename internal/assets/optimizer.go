package assets

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	siteerrors "github.com/conneroisu/sitekit/internal/errors"
	"github.com/conneroisu/sitekit/internal/logging"
	"github.com/conneroisu/sitekit/internal/pipeline"
)

// Quality targets for the lossy codecs.
const (
	DefaultJPEGQuality   = 80
	DefaultPNGQualityMin = 0.6
	DefaultPNGQualityMax = 0.8
	DefaultGIFLevel      = 7
)

// Settings configures image optimization.
type Settings struct {
	JPEGQuality   int
	PNGQualityMin float64
	PNGQualityMax float64
	GIFLevel      int
	// External prefers optimizer binaries found on PATH over the built-in
	// codecs.
	External bool
}

// DefaultSettings returns the default quality targets.
func DefaultSettings() Settings {
	return Settings{
		JPEGQuality:   DefaultJPEGQuality,
		PNGQualityMin: DefaultPNGQualityMin,
		PNGQualityMax: DefaultPNGQualityMax,
		GIFLevel:      DefaultGIFLevel,
	}
}

// Optimizer recompresses images in place, keeping the original whenever the
// result is not smaller.
type Optimizer struct {
	codecs map[Kind]Codec
	logger logging.Logger
}

// OptimizerOption configures an Optimizer.
type OptimizerOption func(*Optimizer)

// WithCodec sets the codec used for kind.
func WithCodec(kind Kind, codec Codec) OptimizerOption {
	return func(o *Optimizer) {
		o.codecs[kind] = codec
	}
}

// WithOptimizerLogger sets the optimizer's logger.
func WithOptimizerLogger(logger logging.Logger) OptimizerOption {
	return func(o *Optimizer) {
		if logger != nil {
			o.logger = logger.WithComponent("optimizer")
		}
	}
}

// NewOptimizer creates an optimizer with the built-in codecs.
func NewOptimizer(opts ...OptimizerOption) *Optimizer {
	o := &Optimizer{
		codecs: map[Kind]Codec{
			KindOptimizeJPEG: JPEGCodec{Quality: DefaultJPEGQuality},
			KindOptimizePNG:  PNGCodec{QualityMin: DefaultPNGQualityMin, QualityMax: DefaultPNGQualityMax},
			KindOptimizeGIF:  GIFCodec{Level: DefaultGIFLevel},
		},
		logger: logging.NewNopLogger(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// NewOptimizerFromSettings creates an optimizer for settings. With
// settings.External, binaries found on PATH replace the built-in codecs.
func NewOptimizerFromSettings(settings Settings, logger logging.Logger) *Optimizer {
	opts := []OptimizerOption{
		WithOptimizerLogger(logger),
		WithCodec(KindOptimizeJPEG, JPEGCodec{Quality: settings.JPEGQuality}),
		WithCodec(KindOptimizePNG, PNGCodec{QualityMin: settings.PNGQualityMin, QualityMax: settings.PNGQualityMax}),
		WithCodec(KindOptimizeGIF, GIFCodec{Level: settings.GIFLevel}),
	}
	if settings.External {
		for kind, codec := range ExternalCodecs(settings) {
			opts = append(opts, WithCodec(kind, codec))
		}
	}
	return NewOptimizer(opts...)
}

// Optimize recompresses item.Src into item.Dest.
func (o *Optimizer) Optimize(ctx context.Context, item WorkItem) pipeline.Result {
	res := pipeline.Result{Item: item.Src}

	codec, ok := o.codecs[item.Kind]
	if !ok {
		res.Skipped = true
		if info, err := os.Stat(item.Src); err == nil {
			res.OriginalSize = info.Size()
			res.NewSize = info.Size()
		}
		return res
	}

	src, err := os.ReadFile(item.Src)
	if err != nil {
		res.Err = siteerrors.ErrItemFailed(item.Src, err)
		return res
	}
	res.OriginalSize = int64(len(src))

	out, err := codec.Encode(ctx, src)
	if err != nil {
		res.Err = siteerrors.ErrItemFailed(item.Src, err)
		return res
	}

	if len(out) >= len(src) {
		o.logger.Debug(ctx, "keeping original, recompressed output is not smaller",
			"item", item.Src, "kind", item.Kind.String(), "original", len(src), "recompressed", len(out))
		out = src
	}

	if len(out) < len(src) || item.Dest != item.Src {
		if err := writeFileAtomic(item.Dest, out); err != nil {
			res.Err = siteerrors.ErrItemFailed(item.Src, err)
			return res
		}
	}

	res.Success = true
	res.NewSize = int64(len(out))
	return res
}

// writeFileAtomic replaces path through a temporary file in the same
// directory so readers never see a partial image.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, path)
}
