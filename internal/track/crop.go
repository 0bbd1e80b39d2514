package track

import (
	"fmt"
	"strings"
	"time"
)

// CropPlan is a per-timestamp horizontal crop placement that keeps the
// smoothed subject center inside a fixed-size window. Vertical position is
// fixed: only the horizontal offset tracks the subject, matching the
// portrait-crop-from-landscape use case.
type CropPlan struct {
	Width   int // crop window width  = origHeight * aspect
	Height  int // crop window height = origHeight
	offsets []cropOffset
}

type cropOffset struct {
	t time.Duration
	x int
}

// PlanCrop maps a trajectory onto crop offsets for the target aspect ratio
// (width/height, e.g. 9.0/16.0). Each offset is clamped so the window never
// leaves the original frame.
func PlanCrop(traj *Trajectory, origWidth, origHeight int, aspect float64) *CropPlan {
	cropW := int(float64(origHeight) * aspect)
	if cropW > origWidth {
		cropW = origWidth
	}
	// Even dimensions keep yuv420 encoders happy.
	cropW -= cropW % 2

	maxX := origWidth - cropW
	plan := &CropPlan{
		Width:   cropW,
		Height:  origHeight - origHeight%2,
		offsets: make([]cropOffset, 0, len(traj.Smoothed)),
	}

	for _, s := range traj.Smoothed {
		x := int(s.CenterX) - cropW/2
		if x < 0 {
			x = 0
		}
		if x > maxX {
			x = maxX
		}
		plan.offsets = append(plan.offsets, cropOffset{t: s.T, x: x})
	}
	return plan
}

// CenterPlan returns a static plan with the crop window centered, used when
// no subject analysis is available.
func CenterPlan(origWidth, origHeight int, aspect float64) *CropPlan {
	cropW := int(float64(origHeight) * aspect)
	if cropW > origWidth {
		cropW = origWidth
	}
	cropW -= cropW % 2

	return &CropPlan{
		Width:   cropW,
		Height:  origHeight - origHeight%2,
		offsets: []cropOffset{{t: 0, x: (origWidth - cropW) / 2}},
	}
}

// OffsetAt returns the crop x offset for a playback timestamp, using the
// nearest analyzed sample.
func (p *CropPlan) OffsetAt(t time.Duration) int {
	if len(p.offsets) == 0 {
		return 0
	}
	// Offsets are evenly spaced in time; binary search is not worth it at
	// a 5 fps analysis rate, but avoid scanning from zero on every call.
	lo, hi := 0, len(p.offsets)-1
	for lo < hi {
		mid := (lo + hi) / 2
		if p.offsets[mid].t < t {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	if lo > 0 {
		prev := p.offsets[lo-1]
		if t-prev.t < p.offsets[lo].t-t {
			return prev.x
		}
	}
	return p.offsets[lo].x
}

// Static reports whether every offset is identical, in which case a plain
// crop filter suffices and no sendcmd script is needed.
func (p *CropPlan) Static() bool {
	if len(p.offsets) == 0 {
		return true
	}
	for _, o := range p.offsets[1:] {
		if o.x != p.offsets[0].x {
			return false
		}
	}
	return true
}

// StaticOffset returns the single offset of a static plan
func (p *CropPlan) StaticOffset() int {
	if len(p.offsets) == 0 {
		return 0
	}
	return p.offsets[0].x
}

// SendCmdScript renders the ffmpeg sendcmd script that drives the crop
// filter's x parameter over time. Consecutive identical offsets are elided.
func (p *CropPlan) SendCmdScript() string {
	var b strings.Builder
	lastX := -1
	for _, o := range p.offsets {
		if o.x == lastX {
			continue
		}
		fmt.Fprintf(&b, "%.3f crop x %d;\n", o.t.Seconds(), o.x)
		lastX = o.x
	}
	return b.String()
}
