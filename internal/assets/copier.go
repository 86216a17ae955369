package assets

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	siteerrors "github.com/conneroisu/sitekit/internal/errors"
	"github.com/conneroisu/sitekit/internal/pipeline"
)

const copyBufferSize = 64 * 1024

// bufferPool reuses copy buffers across items and goroutines.
var bufferPool = sync.Pool{
	New: func() interface{} {
		buf := make([]byte, copyBufferSize)
		return &buf
	},
}

// Copier copies work items byte for byte.
type Copier struct{}

// NewCopier creates a Copier.
func NewCopier() *Copier { return &Copier{} }

// Copy copies item.Src to item.Dest, creating missing parent directories.
func (c *Copier) Copy(ctx context.Context, item WorkItem) pipeline.Result {
	res := pipeline.Result{Item: item.Src}

	size, err := copyFile(ctx, item.Src, item.Dest)
	if err != nil {
		res.Err = siteerrors.ErrItemFailed(item.Src, err)
		return res
	}

	res.Success = true
	res.OriginalSize = size
	res.NewSize = size
	return res
}

func copyFile(ctx context.Context, src, dest string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	in, err := os.Open(src)
	if err != nil {
		return 0, err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return 0, err
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return 0, fmt.Errorf("creating %s: %w", filepath.Dir(dest), err)
	}

	out, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return 0, err
	}

	bufp := bufferPool.Get().(*[]byte)
	defer bufferPool.Put(bufp)

	n, err := io.CopyBuffer(out, in, *bufp)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return n, fmt.Errorf("copying %s: %w", src, err)
	}

	return n, nil
}
