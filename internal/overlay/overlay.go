// Package overlay turns a declarative list of overlay items into renderable
// layers for the final composite.
package overlay

import (
	"fmt"
	"time"
)

// Kind discriminates the overlay item variants
type Kind string

const (
	KindImage Kind = "image"
	KindText  Kind = "text"
	KindAudio Kind = "audio"
)

// Item is one overlay supplied by the caller. Image and Text items display
// over [Start, End); Audio items start at Start and play to their own
// natural length. Items are immutable for the duration of one job.
type Item struct {
	Kind  Kind
	Start time.Duration
	End   time.Duration

	// Image / Audio
	Path string

	// Text
	Text        string
	FontName    string
	FontSize    int
	Color       string
	StrokeColor string
	StrokeWidth int

	Position Position

	Opacity float64 // 0 means opaque (unset)
	Volume  float64 // audio gain factor, 0 means unity (unset)
}

// Validate checks the fields the item's kind requires
func (it Item) Validate() error {
	switch it.Kind {
	case KindImage:
		if it.Path == "" {
			return fmt.Errorf("image overlay requires a path")
		}
		if it.End <= it.Start {
			return fmt.Errorf("image overlay window is empty")
		}
	case KindText:
		if it.Text == "" {
			return fmt.Errorf("text overlay requires text")
		}
		if it.End <= it.Start {
			return fmt.Errorf("text overlay window is empty")
		}
	case KindAudio:
		if it.Path == "" {
			return fmt.Errorf("audio overlay requires a path")
		}
	default:
		return fmt.Errorf("unknown overlay kind %q", it.Kind)
	}
	return nil
}

// Anchor is a named overlay position
type Anchor string

const (
	AnchorCenter      Anchor = "center"
	AnchorTop         Anchor = "top"
	AnchorBottom      Anchor = "bottom"
	AnchorTopLeft     Anchor = "top-left"
	AnchorTopRight    Anchor = "top-right"
	AnchorBottomLeft  Anchor = "bottom-left"
	AnchorBottomRight Anchor = "bottom-right"
)

// Position places an overlay either by named anchor or by explicit
// coordinates. Explicit values in (0,1] are fractions of the frame;
// values above 1 are pixels.
type Position struct {
	Anchor Anchor
	X      float64
	Y      float64
}

// anchorMargin keeps edge-anchored overlays off the very border
const anchorMargin = 20
