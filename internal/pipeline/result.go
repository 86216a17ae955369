package pipeline

import (
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// Result is the outcome of one item.
type Result struct {
	Item         string
	Success      bool
	Skipped      bool
	OriginalSize int64
	NewSize      int64
	Err          error
	Duration     time.Duration
}

// Failed reports whether the item neither succeeded nor was skipped.
func (r Result) Failed() bool {
	return !r.Success && !r.Skipped
}

// Summary aggregates the results of one pipeline run.
type Summary struct {
	Total     int
	Succeeded int
	Skipped   int
	Failed    int

	// Byte totals only count items that succeeded and were not skipped.
	OriginalBytes int64
	NewBytes      int64
	SavedBytes    int64
	SavedPercent  float64

	Chunks   int
	Elapsed  time.Duration
	Results  []Result
	Failures []Result
}

// Summarize classifies results and totals their sizes.
func Summarize(results []Result, chunks int, elapsed time.Duration) Summary {
	s := Summary{
		Total:   len(results),
		Chunks:  chunks,
		Elapsed: elapsed,
		Results: results,
	}

	for _, r := range results {
		switch {
		case r.Skipped:
			s.Skipped++
		case r.Success:
			s.Succeeded++
			s.OriginalBytes += r.OriginalSize
			s.NewBytes += r.NewSize
		default:
			s.Failed++
			s.Failures = append(s.Failures, r)
		}
	}

	s.SavedBytes = s.OriginalBytes - s.NewBytes
	if s.OriginalBytes > 0 {
		s.SavedPercent = float64(s.SavedBytes) / float64(s.OriginalBytes) * 100
	}

	return s
}

// Render writes a table of per-item savings and the run totals to w.
// Items whose size did not change are left out of the table body.
func (s Summary) Render(w io.Writer, title string) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(summaryStyle())
	if title != "" {
		t.SetTitle(title)
	}

	t.AppendHeader(table.Row{"Item", "Original", "New", "Saved"})
	for _, r := range s.Results {
		if !r.Success || r.Skipped || r.NewSize == r.OriginalSize {
			continue
		}
		t.AppendRow(table.Row{
			r.Item,
			formatBytes(r.OriginalSize),
			formatBytes(r.NewSize),
			percent(r.OriginalSize-r.NewSize, r.OriginalSize),
		})
	}
	t.AppendFooter(table.Row{
		fmt.Sprintf("%d ok, %d skipped, %d failed in %s",
			s.Succeeded, s.Skipped, s.Failed, s.Elapsed.Round(time.Millisecond)),
		formatBytes(s.OriginalBytes),
		formatBytes(s.NewBytes),
		fmt.Sprintf("%s (%.1f%%)", formatBytes(s.SavedBytes), s.SavedPercent),
	})
	t.Render()

	if len(s.Failures) == 0 {
		return
	}

	ft := table.NewWriter()
	ft.SetOutputMirror(w)
	ft.SetStyle(summaryStyle())
	ft.AppendHeader(table.Row{"Failed item", "Error"})
	for _, r := range s.Failures {
		msg := "unknown error"
		if r.Err != nil {
			msg = r.Err.Error()
		}
		ft.AppendRow(table.Row{r.Item, msg})
	}
	ft.Render()
}

func summaryStyle() table.Style {
	style := table.StyleLight
	style.Format.Footer = text.FormatDefault
	return style
}

func formatBytes(n int64) string {
	if n < 0 {
		return "-" + humanize.Bytes(uint64(-n))
	}
	return humanize.Bytes(uint64(n))
}

func percent(part, whole int64) string {
	if whole == 0 {
		return "0.0%"
	}
	return fmt.Sprintf("%.1f%%", float64(part)/float64(whole)*100)
}
