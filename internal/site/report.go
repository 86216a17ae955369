package site

import (
	"fmt"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/conneroisu/sitekit/internal/pipeline"
)

// Page is one HTML entry document.
type Page struct {
	// Name is the file name relative to the app directory.
	Name string
	// Entry is the source path, Output the path written under dist.
	Entry  string
	Output string
	// HTML is the document as transformed so far.
	HTML        string
	Included    []string
	Diagnostics []error
	Err         error
}

func (p *Page) String() string { return p.Name }

// Stage is the pipeline summary of one build stage.
type Stage struct {
	Name    string
	Summary pipeline.Summary
}

// Report describes a finished build.
type Report struct {
	Mode    string
	Pages   []*Page
	Stages  []Stage
	Elapsed time.Duration
}

// FailedPages returns the pages whose transformation failed.
func (r *Report) FailedPages() []*Page {
	var failed []*Page
	for _, p := range r.Pages {
		if p.Err != nil {
			failed = append(failed, p)
		}
	}
	return failed
}

// FailedItems counts the failed items across every stage.
func (r *Report) FailedItems() int {
	n := 0
	for _, s := range r.Stages {
		n += s.Summary.Failed
	}
	return n
}

// Stage returns the summary recorded under name.
func (r *Report) Stage(name string) (pipeline.Summary, bool) {
	for _, s := range r.Stages {
		if s.Name == name {
			return s.Summary, true
		}
	}
	return pipeline.Summary{}, false
}

// Render writes a page table followed by one summary table per stage.
func (r *Report) Render(w io.Writer) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle(fmt.Sprintf("pages (%s)", r.Mode))
	t.AppendHeader(table.Row{"page", "includes", "warnings", "status"})
	for _, p := range r.Pages {
		status := "ok"
		if p.Err != nil {
			status = p.Err.Error()
		}
		t.AppendRow(table.Row{p.Name, len(p.Included), len(p.Diagnostics), status})
	}
	t.Render()

	for _, s := range r.Stages {
		s.Summary.Render(w, s.Name)
	}

	fmt.Fprintf(w, "build finished in %s\n", r.Elapsed.Round(time.Millisecond))
}
