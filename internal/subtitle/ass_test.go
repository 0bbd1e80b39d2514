package subtitle

import (
	"strings"
	"testing"
	"time"

	"github.com/reelforge/reelforge/internal/transcribe"
)

func TestAssTime(t *testing.T) {
	cases := []struct {
		d    time.Duration
		want string
	}{
		{0, "0:00:00.00"},
		{1500 * time.Millisecond, "0:00:01.50"},
		{time.Hour + 2*time.Minute + 3*time.Second, "1:02:03.00"},
		{-time.Second, "0:00:00.00"},
	}
	for _, tc := range cases {
		if got := assTime(tc.d); got != tc.want {
			t.Errorf("assTime(%v) = %q, want %q", tc.d, got, tc.want)
		}
	}
}

func TestAssColor(t *testing.T) {
	if got := assColor("#FFCC00"); got != "&H0000CCFF" {
		t.Errorf("assColor = %q, want BGR swap", got)
	}
	if got := assColor("bogus"); got != "&H00FFFFFF" {
		t.Errorf("invalid color should fall back to white, got %q", got)
	}
}

func TestRenderASS(t *testing.T) {
	lines := []transcribe.CaptionLine{
		{Text: "hello there", Start: time.Second, End: 2 * time.Second},
		{Text: "big {brace} text", Start: 2 * time.Second, End: 3 * time.Second},
	}
	doc := RenderASS(lines, DefaultStyle(), 1080, 1920, nil)

	for _, want := range []string{
		"PlayResX: 1080",
		"PlayResY: 1920",
		"Style: Caption, Arial, 48",
		"Dialogue: 0,0:00:01.00,0:00:02.00,Caption,,0,0,0,,hello there",
		"big (brace) text",
	} {
		if !strings.Contains(doc, want) {
			t.Errorf("document missing %q", want)
		}
	}
	if strings.Contains(doc, "{brace}") {
		t.Error("braces must be sanitized out of dialogue text")
	}
}

func TestRenderASSEmptyLines(t *testing.T) {
	doc := RenderASS(nil, DefaultStyle(), 1080, 1920, nil)
	if !strings.Contains(doc, "[Events]") {
		t.Error("header must render even with no lines")
	}
	if strings.Contains(doc, "Dialogue:") {
		t.Error("no dialogue lines expected")
	}
}

type stubResolver struct{ known map[string]string }

func (s stubResolver) Resolve(name string) (string, bool) {
	p, ok := s.known[name]
	return p, ok
}

func TestRenderASSFontFallback(t *testing.T) {
	style := DefaultStyle()
	style.FontName = "Nonexistent Sans"

	doc := RenderASS(nil, style, 1080, 1920, stubResolver{})
	if !strings.Contains(doc, "Style: Caption, Arial,") {
		t.Error("unresolved font should fall back to the default face")
	}

	doc = RenderASS(nil, style, 1080, 1920, stubResolver{known: map[string]string{"Nonexistent Sans": "/f.ttf"}})
	if !strings.Contains(doc, "Style: Caption, Nonexistent Sans,") {
		t.Error("resolved font should keep its name")
	}
}
