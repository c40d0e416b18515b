// Package engine converts whole PDF documents to dark mode: it rewrites the
// color operators of every page and paints a theme-colored background
// underneath the existing content.
package engine

import (
	"context"
	"fmt"

	"github.com/pdfnight/pdfnight/contentstream"
	"github.com/pdfnight/pdfnight/document"
	"github.com/pdfnight/pdfnight/observability"
	"github.com/pdfnight/pdfnight/recovery"
	"github.com/pdfnight/pdfnight/remap"
	"github.com/pdfnight/pdfnight/theme"
)

// OpenError wraps failures to read the input document. Nothing can be
// converted when the file itself does not open, so this is the only fatal
// error class.
type OpenError struct{ Err error }

func (e *OpenError) Error() string { return fmt.Sprintf("open document: %v", e.Err) }
func (e *OpenError) Unwrap() error { return e.Err }

// Warning records a page that could not be fully processed. The page is
// left untouched except for its underlay; conversion continues.
type Warning struct {
	Page int // zero-based
	Err  error
}

func (w Warning) String() string {
	return fmt.Sprintf("page %d: %v", w.Page+1, w.Err)
}

// Result is the outcome of one conversion.
type Result struct {
	Output   []byte
	Pages    int
	Warnings []Warning
}

// Engine converts documents with a fixed theme. It is safe for concurrent
// use: each Convert call builds its own document state.
type Engine struct {
	theme    theme.Theme
	remapper *remap.Remapper
	rewriter *contentstream.Rewriter
	log      observability.Logger
	strategy recovery.Strategy
}

type Option func(*Engine)

// WithLogger routes per-page progress and warnings to log.
func WithLogger(log observability.Logger) Option {
	return func(e *Engine) { e.log = log }
}

// WithStrategy overrides how page faults are handled. The default skips
// damaged pages; recovery.Strict aborts the conversion instead.
func WithStrategy(s recovery.Strategy) Option {
	return func(e *Engine) { e.strategy = s }
}

// WithSink observes every individual color transformation.
func WithSink(sink observability.TransformSink) Option {
	return func(e *Engine) {
		e.remapper = remap.New(e.theme, remap.WithSink(sink))
		e.rewriter = contentstream.NewRewriter(e.remapper)
	}
}

// New builds an engine for the named theme. Unknown names fall back to the
// classic black theme.
func New(themeName string, opts ...Option) *Engine {
	t := theme.Lookup(themeName)
	e := &Engine{
		theme:    t,
		log:      observability.NopLogger{},
		strategy: &recovery.Lenient{},
	}
	e.remapper = remap.New(t)
	e.rewriter = contentstream.NewRewriter(e.remapper)
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Theme returns the engine's active theme.
func (e *Engine) Theme() theme.Theme { return e.theme }

// Convert is a one-shot conversion with the named theme.
func Convert(ctx context.Context, input []byte, themeName string) ([]byte, error) {
	res, err := New(themeName).Convert(ctx, input)
	if err != nil {
		return nil, err
	}
	return res.Output, nil
}

// Convert rewrites input to dark mode and returns the new file. A document
// that cannot be opened yields an *OpenError; a page that fails mid-way is
// reported as a warning and skipped, never failing the whole run.
func (e *Engine) Convert(ctx context.Context, input []byte) (*Result, error) {
	doc, err := document.Open(ctx, input)
	if err != nil {
		return nil, &OpenError{Err: err}
	}

	bgR, bgG, bgB := e.theme.RGB()
	result := &Result{}
	for i, page := range doc.Pages() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		err := recovery.Guard("process page", func() error {
			return e.processPage(ctx, page, bgR, bgG, bgB)
		})
		if err != nil {
			loc := recovery.Location{Page: i, Component: "content"}
			if e.strategy.OnError(err, loc) == recovery.ActionFail {
				return nil, fmt.Errorf("page %d: %w", i+1, err)
			}
			result.Warnings = append(result.Warnings, Warning{Page: i, Err: err})
			e.log.Warn("page skipped",
				observability.Int("page", i+1),
				observability.Error("error", err))
			continue
		}
		result.Pages++
		e.log.Debug("page converted", observability.Int("page", i+1))
	}

	out, err := doc.Save()
	if err != nil {
		return nil, fmt.Errorf("serialize document: %w", err)
	}
	result.Output = out
	return result, nil
}

// processPage rewrites one page's colors and inserts the background. The
// underlay goes in first: even when the content rewrite fails, the page
// still gets a dark background.
func (e *Engine) processPage(ctx context.Context, page *document.Page, bgR, bgG, bgB float64) error {
	page.InsertUnderlay(bgR, bgG, bgB)

	text, err := page.ContentText(ctx)
	if err != nil {
		return fmt.Errorf("read content: %w", err)
	}
	if text == "" {
		return nil
	}
	page.SetContentText(e.rewriter.Rewrite(text))
	return nil
}
