// Command pdfnight converts PDFs to dark mode. Given a file it writes a
// converted copy next to it; given a folder it converts the whole tree,
// with a progress UI when attached to a terminal.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"golang.org/x/term"

	"github.com/pdfnight/pdfnight/batch"
	"github.com/pdfnight/pdfnight/config"
	"github.com/pdfnight/pdfnight/engine"
	"github.com/pdfnight/pdfnight/observability"
	"github.com/pdfnight/pdfnight/theme"
	"github.com/pdfnight/pdfnight/tui"
)

type options struct {
	path    string
	theme   string
	output  string
	workers int
	dryRun  bool
	force   bool
	noTUI   bool
	quiet   bool
	verbose bool
}

func main() {
	opts, err := parseFlags()
	if err != nil {
		fmt.Fprintf(os.Stderr, "pdfnight: %v\n", err)
		os.Exit(2)
	}
	if err := run(opts); err != nil {
		fmt.Fprintf(os.Stderr, "pdfnight: %v\n", err)
		os.Exit(1)
	}
}

func parseFlags() (options, error) {
	settings, _ := config.Load()

	var opts options
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: pdfnight [flags] <pdf-or-folder>\n\nThemes: %s\n\n",
			strings.Join(theme.Names(), ", "))
		flag.PrintDefaults()
	}
	themeName := flag.String("theme", settings.Theme, "Background theme")
	output := flag.String("o", "", "Output path (single file mode only)")
	workers := flag.Int("workers", settings.Workers, "Concurrent conversions in folder mode")
	dryRun := flag.Bool("dry-run", false, "Report what would be converted without writing")
	force := flag.Bool("force", false, "Convert even when the output is up to date")
	noTUI := flag.Bool("no-tui", false, "Plain line output instead of the progress UI")
	quiet := flag.Bool("quiet", false, "Suppress per-file output")
	verbose := flag.Bool("v", false, "Log per-page detail")
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		return options{}, fmt.Errorf("missing input path")
	}
	opts.path = flag.Arg(0)
	opts.theme = *themeName
	opts.output = *output
	opts.workers = *workers
	opts.dryRun = *dryRun
	opts.force = *force
	opts.noTUI = *noTUI
	opts.quiet = *quiet
	opts.verbose = *verbose
	return opts, nil
}

func run(opts options) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	info, err := os.Stat(opts.path)
	if err != nil {
		return err
	}
	if info.IsDir() {
		return runFolder(ctx, opts)
	}
	return runFile(ctx, opts)
}

func runFile(ctx context.Context, opts options) error {
	input, err := os.ReadFile(opts.path)
	if err != nil {
		return err
	}

	eng := engine.New(opts.theme, engine.WithLogger(logger(opts)))
	res, err := eng.Convert(ctx, input)
	if err != nil {
		return err
	}

	out := opts.output
	if out == "" {
		ext := filepath.Ext(opts.path)
		out = strings.TrimSuffix(opts.path, ext) + "_dark" + ext
	}
	if opts.dryRun {
		fmt.Printf("would write %s (%d page(s))\n", out, res.Pages)
		return nil
	}
	if err := os.WriteFile(out, res.Output, 0o644); err != nil {
		return err
	}
	if !opts.quiet {
		fmt.Printf("wrote %s (%d page(s)", out, res.Pages)
		if n := len(res.Warnings); n > 0 {
			fmt.Printf(", %d skipped", n)
		}
		fmt.Println(")")
	}
	for _, w := range res.Warnings {
		fmt.Fprintf(os.Stderr, "pdfnight: %s\n", w)
	}
	return nil
}

func runFolder(ctx context.Context, opts options) error {
	batchOpts := batch.Options{
		Theme:   opts.theme,
		Workers: opts.workers,
		DryRun:  opts.dryRun,
		Force:   opts.force,
		Logger:  logger(opts),
	}

	var summary batch.Summary
	var err error
	if useTUI(opts) {
		summary, err = tui.Run(ctx, opts.path, batchOpts)
	} else {
		summary, err = batch.Run(ctx, opts.path, batchOpts, func(ev batch.Event) {
			if opts.quiet {
				return
			}
			if ev.Kind == batch.EventFailed {
				fmt.Fprintf(os.Stderr, "%s: %s: %v\n", ev.Kind, ev.Job.Source, ev.Err)
				return
			}
			fmt.Printf("%s: %s\n", ev.Kind, ev.Job.Source)
		})
	}
	if err != nil {
		return err
	}

	if !opts.quiet {
		fmt.Printf("converted %d, skipped %d, failed %d (of %d)\n",
			summary.Converted, summary.Skipped, summary.Failed, summary.Total)
	}
	if summary.Failed > 0 {
		return fmt.Errorf("%d file(s) failed", summary.Failed)
	}
	return nil
}

func useTUI(opts options) bool {
	if opts.noTUI || opts.quiet {
		return false
	}
	return term.IsTerminal(int(os.Stdout.Fd()))
}

func logger(opts options) observability.Logger {
	if opts.verbose {
		return observability.NewWriterLogger(os.Stderr)
	}
	return observability.NopLogger{}
}
