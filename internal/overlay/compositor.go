package overlay

import (
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/reelforge/reelforge/internal/media"
	"github.com/reelforge/reelforge/internal/overlay/fonts"
	"github.com/reelforge/reelforge/pkg/util"
)

// Layer is a render-ready overlay: the item resolved against the frame
// geometry and the filesystem.
type Layer struct {
	Kind     Kind
	Path     string // image file or audio file
	Start    time.Duration
	Duration time.Duration // zero for audio: plays to natural length
	X, Y     string        // overlay filter position expressions
	Opacity  float64
	Volume   float64

	// Text layers carry a complete drawtext filter spec instead of an input
	// file.
	DrawText string
}

// Compositor resolves overlay items into layers
type Compositor struct {
	logger zerolog.Logger
	fonts  fonts.Resolver
}

// NewCompositor creates a compositor. The font resolver may be nil, in which
// case text layers rely on the render tool's default font.
func NewCompositor(logger zerolog.Logger, fontResolver fonts.Resolver) *Compositor {
	return &Compositor{
		logger: logger.With().Str("component", "overlay").Logger(),
		fonts:  fontResolver,
	}
}

// Build resolves every item into a render-ready layer. A missing referenced
// file is a per-item recoverable failure: the item is skipped with a warning
// and the rest keep compositing.
func (c *Compositor) Build(items []Item) []Layer {
	layers := make([]Layer, 0, len(items))

	for i, item := range items {
		if err := item.Validate(); err != nil {
			c.logger.Warn().Err(err).Int("item", i).Msg("skipping invalid overlay item")
			continue
		}

		if item.Kind != KindText && !util.FileExists(item.Path) {
			c.logger.Warn().
				Int("item", i).
				Str("path", item.Path).
				Msg("overlay asset not found, skipping item")
			continue
		}

		switch item.Kind {
		case KindImage:
			x, y := overlayPlacement(item.Position)
			layers = append(layers, Layer{
				Kind:     KindImage,
				Path:     item.Path,
				Start:    item.Start,
				Duration: item.End - item.Start,
				X:        x,
				Y:        y,
				Opacity:  item.Opacity,
			})
		case KindText:
			layers = append(layers, Layer{
				Kind:     KindText,
				Start:    item.Start,
				Duration: item.End - item.Start,
				DrawText: c.drawTextSpec(item),
			})
		case KindAudio:
			volume := item.Volume
			if volume == 0 {
				volume = 1
			}
			layers = append(layers, Layer{
				Kind:   KindAudio,
				Path:   item.Path,
				Start:  item.Start,
				Volume: volume,
			})
		}
	}

	c.logger.Debug().
		Int("items", len(items)).
		Int("layers", len(layers)).
		Msg("overlay layers built")

	return layers
}

// overlayPlacement maps a Position onto overlay filter x/y expressions. The
// filter resolves W/w and H/h to the frame and overlay sizes at render time,
// which Resolve cannot know for an image that has not been decoded yet.
func overlayPlacement(p Position) (x, y string) {
	if p.Anchor != "" {
		m := fmt.Sprintf("%d", anchorMargin)
		switch p.Anchor {
		case AnchorTop:
			return "(W-w)/2", m
		case AnchorBottom:
			return "(W-w)/2", "H-h-" + m
		case AnchorTopLeft:
			return m, m
		case AnchorTopRight:
			return "W-w-" + m, m
		case AnchorBottomLeft:
			return m, "H-h-" + m
		case AnchorBottomRight:
			return "W-w-" + m, "H-h-" + m
		default:
			return "(W-w)/2", "(H-h)/2"
		}
	}
	if p.X > 0 && p.X <= 1 {
		return fmt.Sprintf("W*%.4f", p.X), fmt.Sprintf("H*%.4f", p.Y)
	}
	return fmt.Sprintf("%d", int(p.X)), fmt.Sprintf("%d", int(p.Y))
}

// drawTextSpec renders a complete drawtext filter for a text item
func (c *Compositor) drawTextSpec(item Item) string {
	size := item.FontSize
	if size <= 0 {
		size = 48
	}
	color := item.Color
	if color == "" {
		color = "white"
	}

	parts := []string{
		fmt.Sprintf("text='%s'", escapeDrawText(item.Text)),
		fmt.Sprintf("fontsize=%d", size),
		fmt.Sprintf("fontcolor=%s", colorSpec(color)),
	}

	if item.FontName != "" && c.fonts != nil {
		if path, ok := c.fonts.Resolve(item.FontName); ok {
			parts = append(parts, fmt.Sprintf("fontfile='%s'", media.EscapeFilterPath(path)))
		} else {
			c.logger.Warn().
				Str("font", item.FontName).
				Msg("font not found, using default")
		}
	}

	if item.StrokeWidth > 0 {
		stroke := item.StrokeColor
		if stroke == "" {
			stroke = "black"
		}
		parts = append(parts,
			fmt.Sprintf("borderw=%d", item.StrokeWidth),
			fmt.Sprintf("bordercolor=%s", colorSpec(stroke)),
		)
	}

	parts = append(parts, drawTextPlacement(item.Position))
	parts = append(parts, fmt.Sprintf("enable='between(t,%.3f,%.3f)'",
		item.Start.Seconds(), item.End.Seconds()))

	return "drawtext=" + strings.Join(parts, ":")
}

// drawTextPlacement maps a Position onto drawtext x/y expressions, which can
// reference the rendered text size directly.
func drawTextPlacement(p Position) string {
	if p.Anchor != "" {
		switch p.Anchor {
		case AnchorTop:
			return fmt.Sprintf("x=(w-text_w)/2:y=%d", anchorMargin)
		case AnchorBottom:
			return fmt.Sprintf("x=(w-text_w)/2:y=h-text_h-%d", anchorMargin)
		case AnchorTopLeft:
			return fmt.Sprintf("x=%d:y=%d", anchorMargin, anchorMargin)
		case AnchorTopRight:
			return fmt.Sprintf("x=w-text_w-%d:y=%d", anchorMargin, anchorMargin)
		case AnchorBottomLeft:
			return fmt.Sprintf("x=%d:y=h-text_h-%d", anchorMargin, anchorMargin)
		case AnchorBottomRight:
			return fmt.Sprintf("x=w-text_w-%d:y=h-text_h-%d", anchorMargin, anchorMargin)
		default:
			return "x=(w-text_w)/2:y=(h-text_h)/2"
		}
	}
	if p.X > 0 && p.X <= 1 {
		return fmt.Sprintf("x=w*%.4f:y=h*%.4f", p.X, p.Y)
	}
	return fmt.Sprintf("x=%d:y=%d", int(p.X), int(p.Y))
}

// colorSpec converts "#RRGGBB" into ffmpeg's 0xRRGGBB form; named colors
// pass through.
func colorSpec(c string) string {
	if strings.HasPrefix(c, "#") {
		return "0x" + strings.TrimPrefix(c, "#")
	}
	return c
}

func escapeDrawText(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, "'", "\\'")
	s = strings.ReplaceAll(s, ":", "\\:")
	s = strings.ReplaceAll(s, "%", "\\%")
	return s
}
