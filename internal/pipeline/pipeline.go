// Package pipeline runs an operation over a list of items with bounded
// parallelism.
//
// Items are split into contiguous chunks, one goroutine per chunk, and each
// chunk is processed strictly in order. Small inputs skip the fan-out and
// run on the calling goroutine. Per-item failures, timeouts and panics are
// recorded in the returned Summary; Run itself never fails.
package pipeline

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sourcegraph/conc"
	"github.com/sourcegraph/conc/panics"

	siteerrors "github.com/conneroisu/sitekit/internal/errors"
	"github.com/conneroisu/sitekit/internal/logging"
)

// DefaultThreshold is the largest item count Run processes sequentially.
const DefaultThreshold = 100

// Operation processes a single item.
type Operation[T any] func(ctx context.Context, item T) Result

// Options configures a run.
type Options struct {
	// Parallelism is the number of chunks. Zero means runtime.NumCPU()-1,
	// at least one.
	Parallelism int
	// Threshold is the largest input processed on the calling goroutine;
	// longer inputs are chunked. Zero means DefaultThreshold.
	Threshold int
	// ItemTimeout bounds each operation when positive.
	ItemTimeout time.Duration
	// Progress receives updates after every item. Nil disables reporting.
	Progress Reporter
	// Label names the run in progress output and logs.
	Label string
	// Logger records failed items at debug level.
	Logger logging.Logger
}

// DefaultParallelism leaves one CPU for the rest of the process.
func DefaultParallelism() int {
	if n := runtime.NumCPU() - 1; n > 1 {
		return n
	}
	return 1
}

func (o Options) withDefaults() Options {
	if o.Parallelism < 1 {
		o.Parallelism = DefaultParallelism()
	}
	if o.Threshold <= 0 {
		o.Threshold = DefaultThreshold
	}
	if o.Progress == nil {
		o.Progress = NopReporter{}
	}
	if o.Logger == nil {
		o.Logger = logging.NewNopLogger()
	}
	return o
}

// runner holds the state shared by all chunks of one run.
type runner[T any] struct {
	op        Operation[T]
	opts      Options
	total     int
	start     time.Time
	processed atomic.Int64
	progressM sync.Mutex
}

// Run applies op to every item and returns the aggregated summary.
// Results keep the order of items regardless of how they were scheduled.
func Run[T any](ctx context.Context, items []T, op Operation[T], opts Options) Summary {
	opts = opts.withDefaults()
	r := &runner[T]{
		op:    op,
		opts:  opts,
		total: len(items),
		start: time.Now(),
	}
	results := make([]Result, len(items))

	chunks := 0
	if len(items) > 0 && len(items) <= opts.Threshold {
		chunks = 1
		r.runChunk(ctx, items, results)
	} else if len(items) > 0 {
		parts := Chunk(items, opts.Parallelism)
		chunks = len(parts)

		var wg conc.WaitGroup
		offset := 0
		for _, part := range parts {
			out := results[offset : offset+len(part)]
			wg.Go(func() { r.runChunk(ctx, part, out) })
			offset += len(part)
		}
		wg.Wait()
	}

	if len(items) > 0 {
		opts.Progress.Done()
	}

	summary := Summarize(results, chunks, time.Since(r.start))
	opts.Logger.Debug(ctx, "pipeline finished",
		"label", opts.Label,
		"total", summary.Total,
		"succeeded", summary.Succeeded,
		"skipped", summary.Skipped,
		"failed", summary.Failed,
		"chunks", summary.Chunks,
		"elapsed", summary.Elapsed)

	return summary
}

// runChunk processes items in order, writing each result to the matching
// slot of out.
func (r *runner[T]) runChunk(ctx context.Context, items []T, out []Result) {
	for i, item := range items {
		var res Result
		if err := ctx.Err(); err != nil {
			res = Result{Item: itemName(item), Err: siteerrors.ErrItemFailed(itemName(item), err)}
		} else {
			res = r.runItem(ctx, item)
		}
		if res.Failed() {
			r.opts.Logger.Debug(ctx, "item failed", "label", r.opts.Label, "item", res.Item, "error", res.Err)
		}
		out[i] = res
		r.report()
	}
}

func (r *runner[T]) runItem(ctx context.Context, item T) Result {
	started := time.Now()
	if r.opts.ItemTimeout <= 0 {
		res := r.protect(ctx, item)
		return finish(res, item, started)
	}

	itemCtx, cancel := context.WithTimeout(ctx, r.opts.ItemTimeout)
	defer cancel()

	done := make(chan Result, 1)
	go func() { done <- r.protect(itemCtx, item) }()

	select {
	case res := <-done:
		return finish(res, item, started)
	case <-itemCtx.Done():
		name := itemName(item)
		err := itemCtx.Err()
		if ctx.Err() != nil {
			return finish(Result{Item: name, Err: siteerrors.ErrItemFailed(name, ctx.Err())}, item, started)
		}
		return finish(Result{Item: name, Err: siteerrors.ErrItemTimedOut(name, err)}, item, started)
	}
}

// protect converts a panicking operation into a failed result.
func (r *runner[T]) protect(ctx context.Context, item T) (res Result) {
	var catcher panics.Catcher
	catcher.Try(func() { res = r.op(ctx, item) })
	if rec := catcher.Recovered(); rec != nil {
		name := itemName(item)
		return Result{Item: name, Err: siteerrors.ErrItemPanicked(name, rec.Value)}
	}
	return res
}

// report counts one finished item. The count is taken under the lock so the
// reporter sees it strictly increasing.
func (r *runner[T]) report() {
	r.progressM.Lock()
	defer r.progressM.Unlock()

	done := int(r.processed.Add(1))
	r.opts.Progress.Update(r.opts.Label, done, r.total, time.Since(r.start))
}

func finish[T any](res Result, item T, started time.Time) Result {
	if res.Item == "" {
		res.Item = itemName(item)
	}
	if res.Duration == 0 {
		res.Duration = time.Since(started)
	}
	return res
}

func itemName[T any](item T) string {
	switch v := any(item).(type) {
	case fmt.Stringer:
		return v.String()
	case string:
		return v
	default:
		return fmt.Sprint(item)
	}
}
