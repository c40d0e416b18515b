// Package remap decides, per color, how a dark-mode conversion replaces it.
//
// The policy classifies colors by perceived brightness and saturation:
// light backgrounds become the theme background, dark achromatic ink
// becomes near-white, and chromatic ink is brightened with its hue kept so
// diagrams stay identifiable. The tier thresholds (0.93, 0.15, 0.40, 0.60)
// and scale factors are behavioral contract constants; changing them changes
// the rendered output of every converted document.
package remap

import (
	"github.com/pdfnight/pdfnight/colorspace"
	"github.com/pdfnight/pdfnight/observability"
	"github.com/pdfnight/pdfnight/theme"
)

// nearWhite is the replacement for dark, low-saturation ink (body text).
const nearWhite = 0.98

// Remapper maps colors from any supported operand space into the dark
// palette of a single theme. It is stateless apart from its immutable
// configuration and safe for concurrent use.
type Remapper struct {
	theme theme.Theme
	sink  observability.TransformSink
}

// Option configures a Remapper.
type Option func(*Remapper)

// WithSink installs a diagnostic sink invoked once per remapped color.
func WithSink(s observability.TransformSink) Option {
	return func(r *Remapper) {
		if s != nil {
			r.sink = s
		}
	}
}

// New returns a Remapper for the given theme.
func New(t theme.Theme, opts ...Option) *Remapper {
	r := &Remapper{theme: t, sink: observability.NopSink()}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Theme returns the theme the remapper was built with.
func (rm *Remapper) Theme() theme.Theme { return rm.theme }

// RGB remaps an RGB color. Inputs outside [0, 1] are clamped first.
func (rm *Remapper) RGB(r, g, b float64) (float64, float64, float64) {
	r, g, b = colorspace.Clamp01(r), colorspace.Clamp01(g), colorspace.Clamp01(b)
	nr, ng, nb, tier := rm.remapRGB(r, g, b)
	rm.sink.ColorTransformed("RGB", []float64{r, g, b}, []float64{nr, ng, nb}, tier)
	return nr, ng, nb
}

func (rm *Remapper) remapRGB(r, g, b float64) (float64, float64, float64, observability.Tier) {
	brightness := colorspace.Luma(r, g, b)

	if brightness > 0.93 {
		tr, tg, tb := rm.theme.RGB()
		return tr, tg, tb, observability.TierBackground
	}

	h, s, v := colorspace.RGBToHSV(r, g, b)

	if brightness < 0.15 {
		if s < 0.3 {
			return nearWhite, nearWhite, nearWhite, observability.TierDarkText
		}
		// Chromatic ink: lift value into 0.65..0.85 and keep the hue.
		v = 0.65 + (v/0.15)*0.2
		s = s * 1.1
		if s > 1 {
			s = 1
		}
		nr, ng, nb := colorspace.HSVToRGB(h, s, v)
		return colorspace.Clamp01(nr), colorspace.Clamp01(ng), colorspace.Clamp01(nb), observability.TierDarkColor
	}

	if brightness < 0.4 {
		nr, ng, nb := colorspace.HSVToRGB(h, s*0.85, 0.75+(v-0.15)*0.8)
		return nr, ng, nb, observability.TierDark
	}

	if brightness < 0.6 {
		nr, ng, nb := colorspace.HSVToRGB(h, s*0.9, 0.65+(v-0.4)*1.0)
		return nr, ng, nb, observability.TierMedium
	}

	nr, ng, nb := colorspace.HSVToRGB(h, s, 0.5+v*0.5)
	return nr, ng, nb, observability.TierLight
}

// Gray remaps a single-channel gray value with the same brightness bands as
// RGB but no hue to preserve.
func (rm *Remapper) Gray(g float64) float64 {
	g = colorspace.Clamp01(g)
	var out float64
	var tier observability.Tier
	switch {
	case g > 0.93:
		out, tier = rm.theme.Luma(), observability.TierBackground
	case g < 0.15:
		out, tier = nearWhite, observability.TierDarkText
	case g < 0.4:
		out, tier = 0.75+(g-0.15)*0.8, observability.TierDark
	case g < 0.6:
		out, tier = 0.65+(g-0.4)*1.0, observability.TierMedium
	default:
		out, tier = 0.5+g*0.5, observability.TierLight
	}
	rm.sink.ColorTransformed("Gray", []float64{g}, []float64{out}, tier)
	return out
}

// CMYK remaps a CMYK color by converting to RGB, remapping there, and
// converting back. A remapped RGB of exactly (0,0,0) becomes (0,0,0,1)
// directly, sidestepping the division in the general inverse.
func (rm *Remapper) CMYK(c, m, y, k float64) (float64, float64, float64, float64) {
	c = colorspace.Clamp01(c)
	m = colorspace.Clamp01(m)
	y = colorspace.Clamp01(y)
	k = colorspace.Clamp01(k)

	r, g, b := colorspace.CMYKToRGB(c, m, y, k)
	nr, ng, nb, tier := rm.remapRGB(r, g, b)

	var nc, nm, ny, nk float64
	if nr == 0 && ng == 0 && nb == 0 {
		nc, nm, ny, nk = 0, 0, 0, 1
	} else {
		nc, nm, ny, nk = colorspace.RGBToCMYK(nr, ng, nb)
	}
	rm.sink.ColorTransformed("CMYK", []float64{c, m, y, k}, []float64{nc, nm, ny, nk}, tier)
	return nc, nm, ny, nk
}
