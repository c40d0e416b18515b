// Package theme defines the built-in dark-mode background palettes.
package theme

import (
	"sort"

	"github.com/pdfnight/pdfnight/colorspace"
)

// Theme is a named background color for converted documents. Channel values
// are 8-bit; a Theme is immutable configuration selected once per run.
type Theme struct {
	Name    string
	R, G, B uint8
}

// Default is the theme used when an unknown name is requested.
const Default = "classic"

var builtins = map[string]Theme{
	"classic":  {Name: "classic", R: 0, G: 0, B: 0},
	"claude":   {Name: "claude", R: 42, G: 37, B: 34},
	"chatgpt":  {Name: "chatgpt", R: 52, G: 53, B: 65},
	"sepia":    {Name: "sepia", R: 40, G: 35, B: 25},
	"midnight": {Name: "midnight", R: 25, G: 30, B: 45},
	"forest":   {Name: "forest", R: 25, G: 35, B: 30},
}

// Lookup returns the theme for name, falling back to the classic theme for
// unknown names.
func Lookup(name string) Theme {
	if t, ok := builtins[name]; ok {
		return t
	}
	return builtins[Default]
}

// Names returns the built-in theme names in sorted order.
func Names() []string {
	out := make([]string, 0, len(builtins))
	for name := range builtins {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// RGB returns the background color normalized to [0, 1] channels.
func (t Theme) RGB() (r, g, b float64) {
	return float64(t.R) / 255, float64(t.G) / 255, float64(t.B) / 255
}

// Luma returns the background's perceived brightness in [0, 1].
func (t Theme) Luma() float64 {
	return colorspace.Luma(t.RGB())
}
