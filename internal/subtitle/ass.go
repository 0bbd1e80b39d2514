// Package subtitle renders caption lines into an ASS subtitle document the
// encoder burns into the final video.
package subtitle

import (
	"fmt"
	"strings"
	"time"

	"github.com/reelforge/reelforge/internal/overlay/fonts"
	"github.com/reelforge/reelforge/internal/transcribe"
)

// Style describes caption appearance
type Style struct {
	FontName     string
	FontSize     int
	PrimaryColor string // #RRGGBB
	OutlineColor string // #RRGGBB
	OutlineWidth int
	MarginV      int
}

// DefaultStyle returns the conventional bottom-centered white-on-outline look
func DefaultStyle() Style {
	return Style{
		FontName:     "Arial",
		FontSize:     48,
		PrimaryColor: "#FFFFFF",
		OutlineColor: "#000000",
		OutlineWidth: 2,
		MarginV:      60,
	}
}

// RenderASS produces a complete ASS document for the caption lines at the
// given play resolution. The font resolver only confirms availability; ASS
// references fonts by name, so an unresolved font simply keeps the requested
// name and lets the renderer substitute its default.
func RenderASS(lines []transcribe.CaptionLine, style Style, playResX, playResY int, resolver fonts.Resolver) string {
	fontName := style.FontName
	if fontName == "" {
		fontName = DefaultStyle().FontName
	}
	if resolver != nil {
		if _, ok := resolver.Resolve(fontName); !ok {
			fontName = DefaultStyle().FontName
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, `[Script Info]
ScriptType: v4.00+
PlayResX: %d
PlayResY: %d
ScaledBorderAndShadow: yes

[V4+ Styles]
Format: Name, Fontname, Fontsize, PrimaryColour, OutlineColour, Bold, BorderStyle, Outline, Shadow, Alignment, MarginL, MarginR, MarginV, Encoding
Style: Caption, %s, %d, %s, %s, 0, 1, %d, 0, 2, 40, 40, %d, 1

[Events]
Format: Layer, Start, End, Style, Name, MarginL, MarginR, MarginV, Effect, Text
`,
		playResX, playResY,
		fontName, style.FontSize,
		assColor(style.PrimaryColor), assColor(style.OutlineColor),
		style.OutlineWidth, style.MarginV,
	)

	for _, line := range lines {
		fmt.Fprintf(&b, "Dialogue: 0,%s,%s,Caption,,0,0,0,,%s\n",
			assTime(line.Start), assTime(line.End), sanitize(line.Text))
	}
	return b.String()
}

// assTime formats a duration as H:MM:SS.CC
func assTime(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	h := int(d / time.Hour)
	d -= time.Duration(h) * time.Hour
	m := int(d / time.Minute)
	d -= time.Duration(m) * time.Minute
	s := int(d / time.Second)
	d -= time.Duration(s) * time.Second
	cs := int(d / (10 * time.Millisecond))
	return fmt.Sprintf("%d:%02d:%02d.%02d", h, m, s, cs)
}

// assColor converts #RRGGBB into ASS &H00BBGGRR form
func assColor(c string) string {
	c = strings.TrimPrefix(c, "#")
	if len(c) != 6 {
		return "&H00FFFFFF"
	}
	rr, gg, bb := c[0:2], c[2:4], c[4:6]
	return "&H00" + strings.ToUpper(bb+gg+rr)
}

func sanitize(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, "{", "(")
	s = strings.ReplaceAll(s, "}", ")")
	s = strings.ReplaceAll(s, "\n", " ")
	return strings.TrimSpace(s)
}
