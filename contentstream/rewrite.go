// Package contentstream rewrites the color-setting operators of a PDF
// content stream in place.
//
// The stream is treated as flat text, not a parsed operator tree: the color
// operator vocabulary is tiny and its operand grammar well known, so each
// operator family is located with its own pattern and substituted in a
// single left-to-right sweep. Every byte outside a recognized occurrence
// passes through untouched.
package contentstream

import (
	"fmt"
	"regexp"
	"strconv"
)

// ColorRemapper supplies the replacement color for each supported operand
// space. Channel values are in [0, 1].
type ColorRemapper interface {
	RGB(r, g, b float64) (float64, float64, float64)
	Gray(g float64) float64
	CMYK(c, m, y, k float64) (float64, float64, float64, float64)
}

// A number operand is an optionally signed decimal: 0, 0.5, .5, 1.0 all
// match. Operators are \b-bounded so a family token never matches inside a
// longer identifier.
const num = `(-?\d*\.?\d+)`

var (
	reFillRGB    = regexp.MustCompile(num + `\s+` + num + `\s+` + num + `\s+rg\b`)
	reStrokeRGB  = regexp.MustCompile(num + `\s+` + num + `\s+` + num + `\s+RG\b`)
	reFillGray   = regexp.MustCompile(num + `\s+g\b`)
	reStrokeGray = regexp.MustCompile(num + `\s+G\b`)
	reFillCMYK   = regexp.MustCompile(num + `\s+` + num + `\s+` + num + `\s+` + num + `\s+k\b`)
	reStrokeCMYK = regexp.MustCompile(num + `\s+` + num + `\s+` + num + `\s+` + num + `\s+K\b`)
)

// Rewriter substitutes remapped operands into the six color operator
// families: rg, RG (RGB fill/stroke), g, G (gray), k, K (CMYK).
type Rewriter struct {
	remap ColorRemapper
}

// NewRewriter returns a Rewriter backed by the given remapper.
func NewRewriter(r ColorRemapper) *Rewriter {
	return &Rewriter{remap: r}
}

// Rewrite runs the six family passes in fixed order and returns the
// rewritten stream. An occurrence whose operands fail to parse is left
// exactly as it was; the rest of the stream is still processed.
func (rw *Rewriter) Rewrite(content string) string {
	content = replaceRGB(reFillRGB, content, "rg", rw.remap)
	content = replaceRGB(reStrokeRGB, content, "RG", rw.remap)
	content = replaceGray(reFillGray, content, "g", rw.remap)
	content = replaceGray(reStrokeGray, content, "G", rw.remap)
	content = replaceCMYK(reFillCMYK, content, "k", rw.remap)
	content = replaceCMYK(reStrokeCMYK, content, "K", rw.remap)
	return content
}

func replaceRGB(re *regexp.Regexp, content, op string, remap ColorRemapper) string {
	return re.ReplaceAllStringFunc(content, func(match string) string {
		ops, ok := operands(re, match, 3)
		if !ok {
			return match
		}
		r, g, b := remap.RGB(ops[0], ops[1], ops[2])
		return fmt.Sprintf("%.4f %.4f %.4f %s", r, g, b, op)
	})
}

func replaceGray(re *regexp.Regexp, content, op string, remap ColorRemapper) string {
	return re.ReplaceAllStringFunc(content, func(match string) string {
		ops, ok := operands(re, match, 1)
		if !ok {
			return match
		}
		// Trailing space keeps the rewritten token separated from whatever
		// followed the original operator.
		return fmt.Sprintf("%.4f %s ", remap.Gray(ops[0]), op)
	})
}

func replaceCMYK(re *regexp.Regexp, content, op string, remap ColorRemapper) string {
	return re.ReplaceAllStringFunc(content, func(match string) string {
		ops, ok := operands(re, match, 4)
		if !ok {
			return match
		}
		c, m, y, k := remap.CMYK(ops[0], ops[1], ops[2], ops[3])
		return fmt.Sprintf("%.4f %.4f %.4f %.4f %s ", c, m, y, k, op)
	})
}

// operands re-applies the family pattern to a matched span and parses its
// capture groups. A parse failure marks the whole occurrence as unmatched.
func operands(re *regexp.Regexp, match string, n int) ([]float64, bool) {
	groups := re.FindStringSubmatch(match)
	if groups == nil || len(groups) != n+1 {
		return nil, false
	}
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		v, err := strconv.ParseFloat(groups[i+1], 64)
		if err != nil {
			return nil, false
		}
		out[i] = v
	}
	return out, true
}
