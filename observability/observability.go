// Package observability defines the logging and diagnostic seams of the
// conversion engine. Production callers inject their own implementations;
// everything defaults to no-ops.
package observability

import (
	"fmt"
	"io"
	"sync"
)

type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
	With(fields ...Field) Logger
}

type Field interface {
	Key() string
	Value() interface{}
}

type stringField struct{ key, val string }

func (f stringField) Key() string        { return f.key }
func (f stringField) Value() interface{} { return f.val }

type intField struct {
	key string
	val int
}

func (f intField) Key() string        { return f.key }
func (f intField) Value() interface{} { return f.val }

type float64Field struct {
	key string
	val float64
}

func (f float64Field) Key() string        { return f.key }
func (f float64Field) Value() interface{} { return f.val }

type errorField struct {
	key string
	err error
}

func (f errorField) Key() string        { return f.key }
func (f errorField) Value() interface{} { return f.err }

func String(key, value string) Field          { return stringField{key, value} }
func Int(key string, value int) Field         { return intField{key, value} }
func Float64(key string, value float64) Field { return float64Field{key, value} }
func Error(key string, err error) Field       { return errorField{key, err} }

type NopLogger struct{}

func (NopLogger) Debug(string, ...Field) {}
func (NopLogger) Info(string, ...Field)  {}
func (NopLogger) Warn(string, ...Field)  {}
func (NopLogger) Error(string, ...Field) {}
func (NopLogger) With(...Field) Logger   { return NopLogger{} }

// WriterLogger writes one line per record to an io.Writer. It is what the
// CLI uses for warnings when no TUI is running.
type WriterLogger struct {
	mu     sync.Mutex
	out    io.Writer
	prefix []Field
}

func NewWriterLogger(out io.Writer) *WriterLogger { return &WriterLogger{out: out} }

func (l *WriterLogger) log(level, msg string, fields []Field) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.out, "[%s] %s", level, msg)
	for _, f := range append(append([]Field{}, l.prefix...), fields...) {
		fmt.Fprintf(l.out, " %s=%v", f.Key(), f.Value())
	}
	fmt.Fprintln(l.out)
}

func (l *WriterLogger) Debug(msg string, fields ...Field) { l.log("DEBUG", msg, fields) }
func (l *WriterLogger) Info(msg string, fields ...Field)  { l.log("INFO", msg, fields) }
func (l *WriterLogger) Warn(msg string, fields ...Field)  { l.log("WARN", msg, fields) }
func (l *WriterLogger) Error(msg string, fields ...Field) { l.log("ERROR", msg, fields) }
func (l *WriterLogger) With(fields ...Field) Logger {
	return &WriterLogger{out: l.out, prefix: append(append([]Field{}, l.prefix...), fields...)}
}

// Tier identifies which branch of the remapping policy fired for a color.
type Tier int

const (
	TierBackground Tier = iota // light background replaced by theme color
	TierDarkText               // dark low-saturation ink inverted to near-white
	TierDarkColor              // dark chromatic ink brightened, hue kept
	TierDark                   // brightness in [0.15, 0.40)
	TierMedium                 // brightness in [0.40, 0.60)
	TierLight                  // brightness >= 0.60
)

func (t Tier) String() string {
	switch t {
	case TierBackground:
		return "background"
	case TierDarkText:
		return "dark-text"
	case TierDarkColor:
		return "dark-color"
	case TierDark:
		return "dark"
	case TierMedium:
		return "medium"
	case TierLight:
		return "light"
	default:
		return "unknown"
	}
}

// TransformSink receives one callback per remapped color. Space is the
// operand color space name ("RGB", "Gray", "CMYK"); in and out hold the
// operand channels before and after remapping. Implementations must be safe
// for concurrent use when pages are processed in parallel.
type TransformSink interface {
	ColorTransformed(space string, in, out []float64, tier Tier)
}

type nopSink struct{}

func (nopSink) ColorTransformed(string, []float64, []float64, Tier) {}

// NopSink returns a sink that discards every callback.
func NopSink() TransformSink { return nopSink{} }
