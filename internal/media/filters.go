package media

import (
	"fmt"
	"path/filepath"
	"runtime"
	"strings"
)

// FilterBuilder constructs ffmpeg filter chains
type FilterBuilder struct {
	filters []string
}

// NewFilterBuilder creates a new filter builder
func NewFilterBuilder() *FilterBuilder {
	return &FilterBuilder{}
}

// Scale adds a scale filter
func (fb *FilterBuilder) Scale(width, height int) *FilterBuilder {
	if width <= 0 || height <= 0 {
		return fb
	}
	fb.filters = append(fb.filters, fmt.Sprintf("scale=%d:%d", width, height))
	return fb
}

// FPS adds an fps filter
func (fb *FilterBuilder) FPS(fps float64) *FilterBuilder {
	if fps <= 0 {
		return fb
	}
	fb.filters = append(fb.filters, fmt.Sprintf("fps=%g", fps))
	return fb
}

// Crop adds a static crop filter
func (fb *FilterBuilder) Crop(width, height, x, y int) *FilterBuilder {
	if width <= 0 || height <= 0 {
		return fb
	}
	fb.filters = append(fb.filters, fmt.Sprintf("crop=%d:%d:%d:%d", width, height, x, y))
	return fb
}

// Denoise adds an hqdn3d spatial/temporal denoise. Strength is the luma
// spatial parameter; the rest derive from it the way the filter's own
// defaults do.
func (fb *FilterBuilder) Denoise(strength float64) *FilterBuilder {
	if strength <= 0 {
		return fb
	}
	fb.filters = append(fb.filters, fmt.Sprintf("hqdn3d=%.2f", strength))
	return fb
}

// Sharpen adds an unsharp mask with the given luma amount
func (fb *FilterBuilder) Sharpen(amount float64) *FilterBuilder {
	if amount <= 0 {
		return fb
	}
	fb.filters = append(fb.filters, fmt.Sprintf("unsharp=5:5:%.2f", amount))
	return fb
}

// ColorAdjust adds a combined eq adjustment. Neutral values (contrast,
// saturation, gamma 1.0; brightness 0.0) emit no filter.
func (fb *FilterBuilder) ColorAdjust(contrast, brightness, saturation, gamma float64) *FilterBuilder {
	if contrast == 1.0 && brightness == 0.0 && saturation == 1.0 && gamma == 1.0 {
		return fb
	}
	fb.filters = append(fb.filters, fmt.Sprintf(
		"eq=contrast=%.3f:brightness=%.3f:saturation=%.3f:gamma=%.3f",
		contrast, brightness, saturation, gamma))
	return fb
}

// NoiseReduction adds an afftdn audio denoise. Strength 0..1 maps onto the
// filter's noise-reduction range, anchored at the estimated noise floor.
func (fb *FilterBuilder) NoiseReduction(strength, noiseFloorDBFS float64) *FilterBuilder {
	if strength <= 0 {
		return fb
	}
	if strength > 1 {
		strength = 1
	}
	// afftdn accepts nr in [0.01, 97] dB; proportional suppression.
	nr := strength * 30
	fb.filters = append(fb.filters, fmt.Sprintf("afftdn=nr=%.2f:nf=%.2f", nr, noiseFloorDBFS))
	return fb
}

// Loudnorm adds a loudness normalization pass to the target level
func (fb *FilterBuilder) Loudnorm(targetDBFS float64) *FilterBuilder {
	fb.filters = append(fb.filters, fmt.Sprintf("loudnorm=I=%.1f:TP=-1.5:LRA=11", targetDBFS))
	return fb
}

// AudioVolume adjusts audio volume by a linear factor
func (fb *FilterBuilder) AudioVolume(factor float64) *FilterBuilder {
	fb.filters = append(fb.filters, fmt.Sprintf("volume=%.3f", factor))
	return fb
}

// Custom adds a custom filter string
func (fb *FilterBuilder) Custom(filter string) *FilterBuilder {
	fb.filters = append(fb.filters, filter)
	return fb
}

// Empty reports whether no filters were added
func (fb *FilterBuilder) Empty() bool {
	return len(fb.filters) == 0
}

// Build returns the complete filter string joined with commas
func (fb *FilterBuilder) Build() string {
	return strings.Join(fb.filters, ",")
}

// EscapeFilterPath escapes a file path for use inside an ffmpeg filter
// argument (subtitles=, sendcmd=f=).
func EscapeFilterPath(path string) string {
	absPath, err := filepath.Abs(path)
	if err != nil {
		absPath = path
	}

	if runtime.GOOS == "windows" {
		absPath = strings.ReplaceAll(absPath, "\\", "/")
	}

	escaped := strings.ReplaceAll(absPath, "\\", "\\\\")
	escaped = strings.ReplaceAll(escaped, ":", "\\:")
	escaped = strings.ReplaceAll(escaped, "'", "\\'")
	return escaped
}

// NormalizeExtension forces the output path onto a container the encoder
// actually produces. Callers may hand in any extension; anything outside the
// known-compatible set becomes .mp4.
func NormalizeExtension(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mp4", ".mov", ".m4v":
		return path
	}
	return strings.TrimSuffix(path, filepath.Ext(path)) + ".mp4"
}
