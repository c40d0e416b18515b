// Package batch converts whole folder trees of PDFs. Each immediate
// subfolder of the scan root is treated as a job folder; converted files
// land in a "DARK MODE" folder inside their job folder, mirroring the
// source layout. Output folders are never scanned, so reruns only convert
// what changed.
package batch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/pdfnight/pdfnight/engine"
	"github.com/pdfnight/pdfnight/observability"
)

// OutputFolderName is the per-job folder converted files are written to.
const OutputFolderName = "DARK MODE"

// skipMarkers excludes output folders and machine-code drawing folders from
// the scan. Matching is on the whole path, not single segments.
var skipMarkers = []string{OutputFolderName, "CNC"}

// Job pairs a source PDF with its output location.
type Job struct {
	Source string
	Output string
}

// EventKind classifies per-file progress events.
type EventKind int

const (
	EventConverted EventKind = iota
	EventSkipped             // output newer than source
	EventFailed
	EventPlanned // dry run only
)

func (k EventKind) String() string {
	switch k {
	case EventConverted:
		return "converted"
	case EventSkipped:
		return "skipped"
	case EventFailed:
		return "failed"
	case EventPlanned:
		return "planned"
	default:
		return "unknown"
	}
}

// Event reports the outcome of one file.
type Event struct {
	Kind     EventKind
	Job      Job
	Err      error
	Warnings int // pages skipped inside the file
}

// Summary aggregates a whole run.
type Summary struct {
	Total     int
	Converted int
	Skipped   int
	Failed    int
}

// Options configures a run.
type Options struct {
	Theme   string
	Workers int  // concurrent conversions, minimum 1
	DryRun  bool // plan and report without writing anything
	Force   bool // convert even when the output is up to date
	Logger  observability.Logger
}

// Plan walks root and returns every PDF that would be converted, paired
// with its output path. Paths already under an output or CNC folder are
// left alone.
func Plan(root string) ([]Job, error) {
	var jobs []Job
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != root && shouldSkip(path) {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.EqualFold(filepath.Ext(path), ".pdf") || shouldSkip(path) {
			return nil
		}
		out, err := outputPath(root, path)
		if err != nil {
			return err
		}
		jobs = append(jobs, Job{Source: path, Output: out})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", root, err)
	}
	return jobs, nil
}

func shouldSkip(path string) bool {
	for _, marker := range skipMarkers {
		if strings.Contains(path, marker) {
			return true
		}
	}
	return false
}

// outputPath maps a source file into its job folder's output folder. Files
// sitting directly in the root get a root-level output folder instead.
func outputPath(root, source string) (string, error) {
	rel, err := filepath.Rel(root, source)
	if err != nil {
		return "", err
	}
	parts := strings.Split(rel, string(filepath.Separator))
	if len(parts) > 1 {
		job := parts[0]
		within := filepath.Join(parts[1:]...)
		return filepath.Join(root, job, OutputFolderName, within), nil
	}
	return filepath.Join(root, OutputFolderName, rel), nil
}

// Run converts every planned job under root, fanning the work out over
// opts.Workers goroutines. onEvent is called once per file from worker
// goroutines; it may be nil.
func Run(ctx context.Context, root string, opts Options, onEvent func(Event)) (Summary, error) {
	log := opts.Logger
	if log == nil {
		log = observability.NopLogger{}
	}
	workers := opts.Workers
	if workers < 1 {
		workers = 1
	}
	emit := onEvent
	if emit == nil {
		emit = func(Event) {}
	}

	jobs, err := Plan(root)
	if err != nil {
		return Summary{}, err
	}
	summary := Summary{Total: len(jobs)}
	if len(jobs) == 0 {
		return summary, nil
	}

	eng := engine.New(opts.Theme, engine.WithLogger(log))

	type outcome struct {
		kind     EventKind
		warnings int
	}
	results := make([]outcome, len(jobs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, job := range jobs {
		i, job := i, job
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			kind, warnings, err := runJob(gctx, eng, job, opts)
			results[i] = outcome{kind: kind, warnings: warnings}
			ev := Event{Kind: kind, Job: job, Err: err, Warnings: warnings}
			emit(ev)
			switch kind {
			case EventFailed:
				log.Error("conversion failed",
					observability.String("source", job.Source),
					observability.Error("error", err))
			case EventConverted:
				log.Info("converted",
					observability.String("source", job.Source),
					observability.String("output", job.Output))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return summary, err
	}

	for _, r := range results {
		switch r.kind {
		case EventConverted, EventPlanned:
			summary.Converted++
		case EventSkipped:
			summary.Skipped++
		case EventFailed:
			summary.Failed++
		}
	}
	return summary, nil
}

// runJob handles one file: the up-to-date check, the dry-run short
// circuit, then the actual conversion.
func runJob(ctx context.Context, eng *engine.Engine, job Job, opts Options) (EventKind, int, error) {
	if !opts.Force && upToDate(job) {
		return EventSkipped, 0, nil
	}
	if opts.DryRun {
		return EventPlanned, 0, nil
	}

	input, err := os.ReadFile(job.Source)
	if err != nil {
		return EventFailed, 0, err
	}
	res, err := eng.Convert(ctx, input)
	if err != nil {
		return EventFailed, 0, err
	}
	if err := os.MkdirAll(filepath.Dir(job.Output), 0o755); err != nil {
		return EventFailed, 0, err
	}
	if err := os.WriteFile(job.Output, res.Output, 0o644); err != nil {
		return EventFailed, 0, err
	}
	return EventConverted, len(res.Warnings), nil
}

// upToDate reports whether the output exists and is at least as new as the
// source.
func upToDate(job Job) bool {
	out, err := os.Stat(job.Output)
	if err != nil {
		return false
	}
	src, err := os.Stat(job.Source)
	if err != nil {
		return false
	}
	return !src.ModTime().After(out.ModTime())
}
