package engine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/pdfnight/pdfnight/document"
	"github.com/pdfnight/pdfnight/observability"
	"github.com/pdfnight/pdfnight/recovery"
)

// brokenPagePDF has two pages; the second one's content stream claims
// FlateDecode but holds garbage, so reading it fails.
func brokenPagePDF() []byte {
	var buf bytes.Buffer
	offsets := make(map[int]int64)
	add := func(num int, body string) {
		offsets[num] = int64(buf.Len())
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", num, body)
	}
	buf.WriteString("%PDF-1.7\n")
	add(1, "<< /Type /Catalog /Pages 2 0 R >>")
	add(2, "<< /Type /Pages /Kids [3 0 R 5 0 R] /Count 2 /MediaBox [0 0 612 792] >>")
	good := "1 1 1 rg"
	add(3, "<< /Type /Page /Parent 2 0 R /Contents 4 0 R >>")
	add(4, fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(good), good))
	add(5, "<< /Type /Page /Parent 2 0 R /Contents 6 0 R >>")
	add(6, "<< /Length 9 /Filter /FlateDecode >>\nstream\nnot flate\nendstream")
	xrefOff := buf.Len()
	buf.WriteString("xref\n0 7\n0000000000 65535 f \n")
	for i := 1; i <= 6; i++ {
		fmt.Fprintf(&buf, "%010d 00000 n \n", offsets[i])
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size 7 /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", xrefOff)
	return buf.Bytes()
}

func TestConvertSkipsDamagedPage(t *testing.T) {
	res, err := New("classic").Convert(context.Background(), brokenPagePDF())
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	if res.Pages != 1 {
		t.Errorf("pages = %d, want 1", res.Pages)
	}
	if len(res.Warnings) != 1 || res.Warnings[0].Page != 1 {
		t.Fatalf("warnings = %v", res.Warnings)
	}
	if _, err := document.Open(context.Background(), res.Output); err != nil {
		t.Errorf("output does not reopen: %v", err)
	}
}

// One engine serves all batch workers, so concurrent conversions of damaged
// documents must not race on the shared strategy state.
func TestConvertConcurrentSharedEngine(t *testing.T) {
	eng := New("classic")
	input := brokenPagePDF()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := eng.Convert(context.Background(), input)
			if err != nil {
				t.Errorf("Convert: %v", err)
				return
			}
			if res.Pages != 1 || len(res.Warnings) != 1 {
				t.Errorf("pages = %d, warnings = %v", res.Pages, res.Warnings)
			}
		}()
	}
	wg.Wait()
}

func TestConvertStrictStrategyFails(t *testing.T) {
	eng := New("classic", WithStrategy(recovery.Strict{}))
	if _, err := eng.Convert(context.Background(), brokenPagePDF()); err == nil {
		t.Fatal("expected error with strict strategy")
	}
}

func buildPDF(pages ...string) []byte {
	var buf bytes.Buffer
	offsets := make(map[int]int64)
	add := func(num int, body string) {
		offsets[num] = int64(buf.Len())
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", num, body)
	}
	buf.WriteString("%PDF-1.7\n")

	add(1, "<< /Type /Catalog /Pages 2 0 R >>")
	kids := make([]string, 0, len(pages))
	next := 3
	pageNums := make([]int, 0, len(pages))
	for range pages {
		kids = append(kids, fmt.Sprintf("%d 0 R", next))
		pageNums = append(pageNums, next)
		next += 2
	}
	add(2, fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d /MediaBox [0 0 612 792] >>",
		strings.Join(kids, " "), len(pages)))
	for i, content := range pages {
		num := pageNums[i]
		add(num, fmt.Sprintf("<< /Type /Page /Parent 2 0 R /Contents %d 0 R >>", num+1))
		add(num+1, fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(content), content))
	}

	max := next - 1
	xrefOff := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", max+1)
	for i := 1; i <= max; i++ {
		fmt.Fprintf(&buf, "%010d 00000 n \n", offsets[i])
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", max+1, xrefOff)
	return buf.Bytes()
}

func TestConvertRewritesColorsAndAddsBackground(t *testing.T) {
	input := buildPDF("1 1 1 rg (x) Tj 0 0 0 RG")

	res, err := New("claude").Convert(context.Background(), input)
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	if res.Pages != 1 {
		t.Errorf("pages = %d", res.Pages)
	}
	if len(res.Warnings) != 0 {
		t.Errorf("warnings = %v", res.Warnings)
	}

	doc, err := document.Open(context.Background(), res.Output)
	if err != nil {
		t.Fatalf("output does not reopen: %v", err)
	}
	text, err := doc.Pages()[0].ContentText(context.Background())
	if err != nil {
		t.Fatalf("ContentText: %v", err)
	}
	// White fill becomes the claude background; black stroke gets near-white.
	if !strings.Contains(text, "0.1647 0.1451 0.1333 rg") {
		t.Errorf("background fill missing: %q", text)
	}
	if !strings.Contains(text, "0.9800 0.9800 0.9800 RG") {
		t.Errorf("near-white stroke missing: %q", text)
	}
	if !strings.Contains(text, "q /Bg0 Do Q") {
		t.Errorf("underlay invocation missing: %q", text)
	}
	// The underlay rectangle itself must not pass through the rewriter.
	if !bytes.Contains(res.Output, []byte("0.1647 0.1451 0.1333 rg 0 0 612.00 792.00 re f")) {
		t.Error("underlay rectangle missing or rewritten")
	}
}

func TestConvertAllThemes(t *testing.T) {
	input := buildPDF("0 g")
	for _, name := range []string{"classic", "claude", "chatgpt", "sepia", "midnight", "forest"} {
		res, err := New(name).Convert(context.Background(), input)
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if _, err := document.Open(context.Background(), res.Output); err != nil {
			t.Errorf("%s output does not reopen: %v", name, err)
		}
	}
}

func TestConvertOpenError(t *testing.T) {
	_, err := New("classic").Convert(context.Background(), []byte("not a pdf"))
	var openErr *OpenError
	if !errors.As(err, &openErr) {
		t.Fatalf("err = %v, want *OpenError", err)
	}
}

func TestConvertPageWithoutContentGetsUnderlay(t *testing.T) {
	var buf bytes.Buffer
	offsets := make(map[int]int64)
	add := func(num int, body string) {
		offsets[num] = int64(buf.Len())
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", num, body)
	}
	buf.WriteString("%PDF-1.7\n")
	add(1, "<< /Type /Catalog /Pages 2 0 R >>")
	add(2, "<< /Type /Pages /Kids [3 0 R] /Count 1 /MediaBox [0 0 612 792] >>")
	add(3, "<< /Type /Page /Parent 2 0 R >>")
	xrefOff := buf.Len()
	buf.WriteString("xref\n0 4\n0000000000 65535 f \n")
	for i := 1; i <= 3; i++ {
		fmt.Fprintf(&buf, "%010d 00000 n \n", offsets[i])
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size 4 /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", xrefOff)

	res, err := New("midnight").Convert(context.Background(), buf.Bytes())
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	if res.Pages != 1 {
		t.Errorf("pages = %d", res.Pages)
	}
	if !bytes.Contains(res.Output, []byte("re f")) {
		t.Error("underlay missing")
	}
}

func TestConvertMultiplePages(t *testing.T) {
	input := buildPDF("1 1 1 rg", "0.5 0.5 0.5 rg", "1 g")
	res, err := New("classic").Convert(context.Background(), input)
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	if res.Pages != 3 {
		t.Errorf("pages = %d, want 3", res.Pages)
	}
}

func TestConvertHonorsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New("classic").Convert(ctx, buildPDF("0 g"))
	if err == nil {
		t.Fatal("expected error for canceled context")
	}
}

func TestConvertOneShot(t *testing.T) {
	out, err := Convert(context.Background(), buildPDF("1 1 1 rg"), "sepia")
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	if !bytes.Contains(out, []byte("0.1569 0.1373 0.0980 rg")) {
		t.Error("sepia background fill missing")
	}
}

func TestWithSinkObservesTransforms(t *testing.T) {
	var seen []observability.Tier
	sink := sinkFunc(func(space string, in, out []float64, tier observability.Tier) {
		seen = append(seen, tier)
	})
	eng := New("classic", WithSink(sink))
	if _, err := eng.Convert(context.Background(), buildPDF("1 1 1 rg 0.05 0.05 0.05 RG")); err != nil {
		t.Fatalf("Convert: %v", err)
	}
	var gotBackground, gotDarkText bool
	for _, tier := range seen {
		switch tier {
		case observability.TierBackground:
			gotBackground = true
		case observability.TierDarkText:
			gotDarkText = true
		}
	}
	if !gotBackground || !gotDarkText {
		t.Errorf("tiers seen = %v", seen)
	}
}

type sinkFunc func(space string, in, out []float64, tier observability.Tier)

func (f sinkFunc) ColorTransformed(space string, in, out []float64, tier observability.Tier) {
	f(space, in, out, tier)
}
