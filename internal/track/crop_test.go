package track

import (
	"strings"
	"testing"
	"time"
)

func trajectoryFrom(xs []float64, fps float64) *Trajectory {
	samples := make([]Sample, len(xs))
	for i, x := range xs {
		samples[i] = Sample{T: sampleTime(i, fps), CenterX: x, CenterY: 540}
	}
	return &Trajectory{Samples: samples, Smoothed: samples, SampleFPS: fps, Detected: true}
}

func TestPlanCropWindowGeometry(t *testing.T) {
	traj := trajectoryFrom([]float64{960}, 5)
	plan := PlanCrop(traj, 1920, 1080, 9.0/16.0)

	if plan.Width != 606 {
		t.Errorf("crop width = %d, want 606 (1080*9/16 rounded down to even)", plan.Width)
	}
	if plan.Height != 1080 {
		t.Errorf("crop height = %d, want 1080", plan.Height)
	}
}

func TestPlanCropClampsToFrame(t *testing.T) {
	// Subject hugging the edges: window must stay inside [0, width-cropW].
	traj := trajectoryFrom([]float64{-50, 0, 10, 1900, 1920, 5000}, 5)
	plan := PlanCrop(traj, 1920, 1080, 9.0/16.0)

	maxX := 1920 - plan.Width
	for i, o := range plan.offsets {
		if o.x < 0 || o.x > maxX {
			t.Errorf("offset %d = %d outside [0, %d]", i, o.x, maxX)
		}
	}
	if plan.offsets[0].x != 0 {
		t.Errorf("left-clamped offset = %d, want 0", plan.offsets[0].x)
	}
	if plan.offsets[5].x != maxX {
		t.Errorf("right-clamped offset = %d, want %d", plan.offsets[5].x, maxX)
	}
}

func TestPlanCropWiderThanFrame(t *testing.T) {
	// A 16:9 target on a portrait source: the window caps at frame width.
	traj := trajectoryFrom([]float64{300}, 5)
	plan := PlanCrop(traj, 607, 1080, 16.0/9.0)
	if plan.Width != 606 {
		t.Errorf("crop width = %d, want 606", plan.Width)
	}
	if got := plan.OffsetAt(0); got < 0 || got > 607-plan.Width {
		t.Errorf("offset %d outside frame", got)
	}
}

func TestOffsetAtNearestSample(t *testing.T) {
	traj := trajectoryFrom([]float64{400, 600, 800}, 5) // samples at 0ms, 200ms, 400ms
	plan := PlanCrop(traj, 1920, 1080, 9.0/16.0)

	if got, want := plan.OffsetAt(0), plan.offsets[0].x; got != want {
		t.Errorf("OffsetAt(0) = %d, want %d", got, want)
	}
	if got, want := plan.OffsetAt(190*time.Millisecond), plan.offsets[1].x; got != want {
		t.Errorf("OffsetAt(190ms) = %d, want sample 1 (%d)", got, want)
	}
	if got, want := plan.OffsetAt(time.Hour), plan.offsets[2].x; got != want {
		t.Errorf("OffsetAt(1h) = %d, want last sample (%d)", got, want)
	}
}

func TestStaticPlan(t *testing.T) {
	traj := trajectoryFrom([]float64{960, 960, 960}, 5)
	plan := PlanCrop(traj, 1920, 1080, 9.0/16.0)
	if !plan.Static() {
		t.Error("uniform offsets should report Static")
	}

	moving := trajectoryFrom([]float64{400, 960}, 5)
	if PlanCrop(moving, 1920, 1080, 9.0/16.0).Static() {
		t.Error("moving offsets must not report Static")
	}
}

func TestSendCmdScript(t *testing.T) {
	traj := trajectoryFrom([]float64{400, 400, 800}, 5)
	plan := PlanCrop(traj, 1920, 1080, 9.0/16.0)

	script := plan.SendCmdScript()
	lines := strings.Split(strings.TrimSpace(script), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 commands (repeat elided), got %d: %q", len(lines), script)
	}
	if !strings.HasPrefix(lines[0], "0.000 crop x ") {
		t.Errorf("first command = %q", lines[0])
	}
	if !strings.HasPrefix(lines[1], "0.400 crop x ") {
		t.Errorf("second command = %q", lines[1])
	}
	if !strings.HasSuffix(lines[0], ";") {
		t.Errorf("commands must be semicolon-terminated: %q", lines[0])
	}
}
