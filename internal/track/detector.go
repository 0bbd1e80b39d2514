// Package track follows a detected subject across sampled frames and turns
// its trajectory into a moving crop window for portrait re-framing.
package track

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
)

// Box is a subject bounding box in frame pixel coordinates
type Box struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Area returns the box area in pixels
func (b Box) Area() int { return b.Width * b.Height }

// CenterX returns the horizontal center of the box
func (b Box) CenterX() float64 { return float64(b.X) + float64(b.Width)/2 }

// CenterY returns the vertical center of the box
func (b Box) CenterY() float64 { return float64(b.Y) + float64(b.Height)/2 }

// Detector is the face/subject-detection capability, invoked once per
// sampled frame. The second return is false when no subject was found;
// that is not an error. Resolved once at construction time: a nil Detector
// on the tracker means "capability absent" and triggers the center-crop
// fallback without ever failing the job.
type Detector interface {
	DetectSubject(ctx context.Context, imagePath string) (Box, bool, error)
}

// ExecDetector shells out to an external detector command that receives a
// frame path and prints a JSON array of boxes on stdout.
type ExecDetector struct {
	cmd string
}

// NewExecDetector wraps the given command
func NewExecDetector(cmd string) *ExecDetector {
	return &ExecDetector{cmd: cmd}
}

// DetectSubject runs the command and picks the largest reported box, which
// is treated as the main subject.
func (d *ExecDetector) DetectSubject(ctx context.Context, imagePath string) (Box, bool, error) {
	out, err := exec.CommandContext(ctx, d.cmd, imagePath).Output()
	if err != nil {
		return Box{}, false, fmt.Errorf("detector command failed: %w", err)
	}

	var boxes []Box
	if err := json.Unmarshal(out, &boxes); err != nil {
		return Box{}, false, fmt.Errorf("unparseable detector output: %w", err)
	}
	return largestBox(boxes)
}

func largestBox(boxes []Box) (Box, bool, error) {
	best := Box{}
	found := false
	for _, b := range boxes {
		if b.Width <= 0 || b.Height <= 0 {
			continue
		}
		if !found || b.Area() > best.Area() {
			best = b
			found = true
		}
	}
	return best, found, nil
}
