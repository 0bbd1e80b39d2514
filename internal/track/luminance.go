package track

import (
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
)

// SkinToneDetector is a built-in heuristic subject detector: it classifies
// pixels by a skin-probability rule in RGB space and reports the bounding
// box of the densest skin region. It is far weaker than a real face
// detector but needs no external model, which keeps the dynamic crop usable
// out of the box.
type SkinToneDetector struct {
	// MinCoverage is the fraction of frame pixels that must classify as
	// skin before a detection is reported. Guards against background noise
	// promoting a few stray pixels to "subject".
	MinCoverage float64
}

// NewSkinToneDetector creates the heuristic detector with its default
// coverage floor.
func NewSkinToneDetector() *SkinToneDetector {
	return &SkinToneDetector{MinCoverage: 0.005}
}

// DetectSubject loads the frame image and finds the skin-pixel bounding box
func (d *SkinToneDetector) DetectSubject(ctx context.Context, imagePath string) (Box, bool, error) {
	if err := ctx.Err(); err != nil {
		return Box{}, false, err
	}

	file, err := os.Open(imagePath)
	if err != nil {
		return Box{}, false, fmt.Errorf("open frame: %w", err)
	}
	defer file.Close()

	img, _, err := image.Decode(file)
	if err != nil {
		return Box{}, false, fmt.Errorf("decode frame: %w", err)
	}
	return d.detect(img)
}

func (d *SkinToneDetector) detect(img image.Image) (Box, bool, error) {
	bounds := img.Bounds()

	minX, minY := bounds.Max.X, bounds.Max.Y
	maxX, maxY := bounds.Min.X, bounds.Min.Y
	count := 0

	// Sampling every other pixel halves the work per axis without moving
	// the resulting box by more than a pixel.
	for y := bounds.Min.Y; y < bounds.Max.Y; y += 2 {
		for x := bounds.Min.X; x < bounds.Max.X; x += 2 {
			r, g, b, _ := img.At(x, y).RGBA()
			if !isSkin(uint8(r>>8), uint8(g>>8), uint8(b>>8)) {
				continue
			}
			count++
			if x < minX {
				minX = x
			}
			if x > maxX {
				maxX = x
			}
			if y < minY {
				minY = y
			}
			if y > maxY {
				maxY = y
			}
		}
	}

	sampled := float64(bounds.Dx()*bounds.Dy()) / 4
	if sampled <= 0 || float64(count)/sampled < d.MinCoverage {
		return Box{}, false, nil
	}

	return Box{
		X:      minX,
		Y:      minY,
		Width:  maxX - minX + 1,
		Height: maxY - minY + 1,
	}, true, nil
}

// isSkin applies the classic RGB skin classification rule (uniform daylight
// variant): dominant red, minimum brightness, and sufficient spread.
func isSkin(r, g, b uint8) bool {
	maxC := max3(r, g, b)
	minC := min3(r, g, b)
	return r > 95 && g > 40 && b > 20 &&
		int(maxC)-int(minC) > 15 &&
		absInt(int(r)-int(g)) > 15 &&
		r > g && r > b
}

func max3(a, b, c uint8) uint8 {
	m := a
	if b > m {
		m = b
	}
	if c > m {
		m = c
	}
	return m
}

func min3(a, b, c uint8) uint8 {
	m := a
	if b < m {
		m = b
	}
	if c < m {
		m = c
	}
	return m
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
