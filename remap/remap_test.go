package remap

import (
	"math"
	"testing"

	"github.com/pdfnight/pdfnight/colorspace"
	"github.com/pdfnight/pdfnight/observability"
	"github.com/pdfnight/pdfnight/theme"
)

const eps = 1e-6

func close(a, b float64) bool { return math.Abs(a-b) <= eps }

func TestRGBLightBackgroundBecomesTheme(t *testing.T) {
	for _, name := range theme.Names() {
		th := theme.Lookup(name)
		rm := New(th)
		wr, wg, wb := th.RGB()

		inputs := [][3]float64{
			{1, 1, 1},
			{0.95, 0.95, 0.95},
			{1, 0.98, 0.9},
			{0.94, 0.96, 0.97},
		}
		for _, in := range inputs {
			if colorspace.Luma(in[0], in[1], in[2]) <= 0.93 {
				continue
			}
			r, g, b := rm.RGB(in[0], in[1], in[2])
			if !close(r, wr) || !close(g, wg) || !close(b, wb) {
				t.Errorf("theme %s: RGB%v = (%v,%v,%v), want theme bg (%v,%v,%v)",
					name, in, r, g, b, wr, wg, wb)
			}
		}
	}
}

func TestRGBDarkTextBecomesNearWhite(t *testing.T) {
	rm := New(theme.Lookup("classic"))
	inputs := [][3]float64{
		{0, 0, 0},
		{0.1, 0.1, 0.1},
		{0.12, 0.1, 0.11}, // near-gray, saturation below 0.3
	}
	for _, in := range inputs {
		r, g, b := rm.RGB(in[0], in[1], in[2])
		if r != 0.98 || g != 0.98 || b != 0.98 {
			t.Errorf("RGB%v = (%v,%v,%v), want (0.98, 0.98, 0.98)", in, r, g, b)
		}
	}
}

func TestRGBDarkChromaticKeepsHue(t *testing.T) {
	rm := New(theme.Lookup("classic"))
	// Dark saturated blue: brightness 0.114*0.5 = 0.057 < 0.15, saturation 1.
	h0, _, _ := colorspace.RGBToHSV(0, 0, 0.5)
	r, g, b := rm.RGB(0, 0, 0.5)
	h1, s1, v1 := colorspace.RGBToHSV(r, g, b)
	if !close(h0, h1) {
		t.Fatalf("hue not preserved: %v -> %v", h0, h1)
	}
	if v1 <= 0.5 {
		t.Fatalf("dark chromatic ink was not brightened: v=%v", v1)
	}
	if s1 < 0.9 {
		t.Fatalf("saturation collapsed: s=%v", s1)
	}
}

func TestRGBMidBands(t *testing.T) {
	rm := New(theme.Lookup("classic"))
	cases := []struct {
		name    string
		r, g, b float64
		vScale  func(v float64) float64
		sScale  float64
	}{
		{"band 0.15-0.40", 0.3, 0.3, 0.3, func(v float64) float64 { return 0.75 + (v-0.15)*0.8 }, 0.85},
		{"band 0.40-0.60", 0.5, 0.5, 0.5, func(v float64) float64 { return 0.65 + (v-0.4)*1.0 }, 0.9},
		{"band >=0.60", 0.7, 0.7, 0.7, func(v float64) float64 { return 0.5 + v*0.5 }, 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h, s, v := colorspace.RGBToHSV(tc.r, tc.g, tc.b)
			wr, wg, wb := colorspace.HSVToRGB(h, s*tc.sScale, tc.vScale(v))
			r, g, b := rm.RGB(tc.r, tc.g, tc.b)
			if !close(r, wr) || !close(g, wg) || !close(b, wb) {
				t.Fatalf("got (%v,%v,%v), want (%v,%v,%v)", r, g, b, wr, wg, wb)
			}
		})
	}
}

func TestRGBClampsMalformedInput(t *testing.T) {
	rm := New(theme.Lookup("classic"))
	r, g, b := rm.RGB(1.5, 2, 1.1) // clamps to white
	wr, wg, wb := theme.Lookup("classic").RGB()
	if !close(r, wr) || !close(g, wg) || !close(b, wb) {
		t.Fatalf("out-of-range input not clamped: (%v,%v,%v)", r, g, b)
	}
}

func TestGrayPolicy(t *testing.T) {
	classic := New(theme.Lookup("classic"))
	claude := New(theme.Lookup("claude"))

	if got := classic.Gray(0); got != 0.98 {
		t.Errorf("Gray(0) = %v, want 0.98", got)
	}
	if got := classic.Gray(1); !close(got, 0) {
		t.Errorf("Gray(1) classic = %v, want 0 (black background luma)", got)
	}
	wantClaude := theme.Lookup("claude").Luma()
	if got := claude.Gray(1); !close(got, wantClaude) {
		t.Errorf("Gray(1) claude = %v, want %v", got, wantClaude)
	}
	if got := classic.Gray(0.3); !close(got, 0.75+(0.3-0.15)*0.8) {
		t.Errorf("Gray(0.3) = %v", got)
	}
	if got := classic.Gray(0.5); !close(got, 0.65+(0.5-0.4)*1.0) {
		t.Errorf("Gray(0.5) = %v", got)
	}
	if got := classic.Gray(0.7); !close(got, 0.5+0.7*0.5) {
		t.Errorf("Gray(0.7) = %v", got)
	}
	if got := classic.Gray(-2); got != 0.98 {
		t.Errorf("Gray(-2) = %v, want clamp to 0 then 0.98", got)
	}
}

func TestCMYKPureBlackBecomesNearWhite(t *testing.T) {
	rm := New(theme.Lookup("classic"))
	c, m, y, k := rm.CMYK(0, 0, 0, 1)
	if !close(c, 0) || !close(m, 0) || !close(y, 0) || !close(k, 0.02) {
		t.Fatalf("CMYK(0,0,0,1) = (%v,%v,%v,%v), want (0,0,0,0.02)", c, m, y, k)
	}
}

func TestCMYKWhiteBecomesBlackOnClassic(t *testing.T) {
	rm := New(theme.Lookup("classic"))
	// CMYK white -> RGB white -> classic background (0,0,0) -> exact CMYK black.
	c, m, y, k := rm.CMYK(0, 0, 0, 0)
	if c != 0 || m != 0 || y != 0 || k != 1 {
		t.Fatalf("CMYK(0,0,0,0) = (%v,%v,%v,%v), want (0,0,0,1)", c, m, y, k)
	}
}

type recordingSink struct {
	spaces []string
	tiers  []observability.Tier
}

func (s *recordingSink) ColorTransformed(space string, in, out []float64, tier observability.Tier) {
	s.spaces = append(s.spaces, space)
	s.tiers = append(s.tiers, tier)
}

func TestSinkReceivesTiers(t *testing.T) {
	sink := &recordingSink{}
	rm := New(theme.Lookup("classic"), WithSink(sink))

	rm.RGB(1, 1, 1)
	rm.Gray(0)
	rm.CMYK(0, 0, 0, 1)

	wantSpaces := []string{"RGB", "Gray", "CMYK"}
	wantTiers := []observability.Tier{
		observability.TierBackground,
		observability.TierDarkText,
		observability.TierDarkText,
	}
	if len(sink.spaces) != 3 {
		t.Fatalf("expected 3 callbacks, got %d", len(sink.spaces))
	}
	for i := range wantSpaces {
		if sink.spaces[i] != wantSpaces[i] || sink.tiers[i] != wantTiers[i] {
			t.Errorf("callback %d: got (%s, %s), want (%s, %s)",
				i, sink.spaces[i], sink.tiers[i], wantSpaces[i], wantTiers[i])
		}
	}
}
