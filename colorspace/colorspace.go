// Package colorspace provides the color conversions used by the dark-mode
// remapping policy: RGB/HSV, CMYK/RGB, and ITU-R 601 luma. All functions are
// pure and operate on channel values in [0, 1].
package colorspace

import "math"

// Clamp01 clamps v into [0, 1]. Malformed operands from real-world content
// streams occasionally sit outside the nominal range; they are tolerated,
// never rejected.
func Clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Luma returns perceived brightness using the ITU-R 601 weights.
func Luma(r, g, b float64) float64 {
	return 0.299*r + 0.587*g + 0.114*b
}

// RGBToHSV converts an RGB triple to HSV. Hue is normalized to [0, 1)
// representing [0°, 360°); when the input is achromatic the hue is 0.
func RGBToHSV(r, g, b float64) (h, s, v float64) {
	maxVal := math.Max(r, math.Max(g, b))
	minVal := math.Min(r, math.Min(g, b))
	diff := maxVal - minVal

	var deg float64
	switch {
	case diff == 0:
		deg = 0
	case maxVal == r:
		deg = math.Mod(60*((g-b)/diff)+360, 360)
	case maxVal == g:
		deg = math.Mod(60*((b-r)/diff)+120, 360)
	default:
		deg = math.Mod(60*((r-g)/diff)+240, 360)
	}

	s = 0
	if maxVal != 0 {
		s = diff / maxVal
	}
	return deg / 360, s, maxVal
}

// HSVToRGB converts an HSV triple back to RGB using the standard six-sector
// reconstruction. Hue is taken in [0, 1) as produced by RGBToHSV.
func HSVToRGB(h, s, v float64) (r, g, b float64) {
	deg := h * 360
	c := v * s
	x := c * (1 - math.Abs(math.Mod(deg/60, 2)-1))
	m := v - c

	switch {
	case deg < 60:
		r, g, b = c, x, 0
	case deg < 120:
		r, g, b = x, c, 0
	case deg < 180:
		r, g, b = 0, c, x
	case deg < 240:
		r, g, b = 0, x, c
	case deg < 300:
		r, g, b = x, 0, c
	default:
		r, g, b = c, 0, x
	}
	return r + m, g + m, b + m
}

// CMYKToRGB converts a subtractive CMYK color to RGB.
func CMYKToRGB(c, m, y, k float64) (r, g, b float64) {
	r = (1 - c) * (1 - k)
	g = (1 - m) * (1 - k)
	b = (1 - y) * (1 - k)
	return r, g, b
}

// RGBToCMYK converts an RGB color to CMYK. Pure black maps to
// (0, 0, 0, 1) rather than dividing by zero.
func RGBToCMYK(r, g, b float64) (c, m, y, k float64) {
	k = 1 - math.Max(r, math.Max(g, b))
	if k >= 1 {
		return 0, 0, 0, 1
	}
	c = (1 - r - k) / (1 - k)
	m = (1 - g - k) / (1 - k)
	y = (1 - b - k) / (1 - k)
	return c, m, y, k
}
