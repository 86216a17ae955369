// Package assets turns resource directories into work items and provides the
// per-item operations the pipeline runs over them: copying and lossy image
// optimization.
package assets

import (
	"path/filepath"
	"strings"
)

// Kind selects the operation applied to a WorkItem.
type Kind int

const (
	KindCopy Kind = iota
	KindOptimizeJPEG
	KindOptimizePNG
	KindOptimizeGIF
	// KindSkip marks a recognised image format that is not recompressed.
	KindSkip
)

// String returns the kind name used in logs.
func (k Kind) String() string {
	switch k {
	case KindCopy:
		return "copy"
	case KindOptimizeJPEG:
		return "optimize-jpeg"
	case KindOptimizePNG:
		return "optimize-png"
	case KindOptimizeGIF:
		return "optimize-gif"
	case KindSkip:
		return "skip"
	default:
		return "unknown"
	}
}

// imageKinds lists every image extension the optimizer recognises.
var imageKinds = map[string]Kind{
	".jpg":  KindOptimizeJPEG,
	".jpeg": KindOptimizeJPEG,
	".png":  KindOptimizePNG,
	".gif":  KindOptimizeGIF,
	".svg":  KindSkip,
	".webp": KindSkip,
	".ico":  KindSkip,
}

// ImageKind returns the optimize kind for path and whether path is an image.
func ImageKind(path string) (Kind, bool) {
	kind, ok := imageKinds[strings.ToLower(filepath.Ext(path))]
	return kind, ok
}

// IsImage reports whether path has a recognised image extension.
func IsImage(path string) bool {
	_, ok := ImageKind(path)
	return ok
}

// WorkItem is one file scheduled for processing.
type WorkItem struct {
	Src  string
	Dest string
	Kind Kind
}

// String returns the source path.
func (w WorkItem) String() string { return w.Src }
