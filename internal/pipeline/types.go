package pipeline

import (
	"errors"

	"github.com/reelforge/reelforge/internal/enhance"
	"github.com/reelforge/reelforge/internal/media"
	"github.com/reelforge/reelforge/internal/overlay"
	"github.com/reelforge/reelforge/internal/silence"
	"github.com/reelforge/reelforge/internal/subtitle"
)

// ErrBusy reports a start request while a job is already in flight on this
// processor. Requests are rejected, never queued.
var ErrBusy = errors.New("a job is already running on this processor")

// State names the pipeline stage a job is in. Transitions are strictly
// sequential; Done and Failed are terminal.
type State string

const (
	StateIdle            State = "idle"
	StateProbing         State = "probing"
	StateExtractingAudio State = "extracting_audio"
	StateEnhancing       State = "enhancing"
	StateSilenceRemoval  State = "silence_removal"
	StateTranscribing    State = "transcribing"
	StateCropping        State = "cropping"
	StateCompositing     State = "compositing"
	StateEncoding        State = "encoding"
	StateDone            State = "done"
	StateFailed          State = "failed"
)

// Terminal reports whether the state ends a job
func (s State) Terminal() bool {
	return s == StateDone || s == StateFailed
}

// Event is one progress update from a running job. The final event carries a
// terminal state; the channel closes after it.
type Event struct {
	State   State
	Percent int
	Message string
}

// Result is the outcome of one job
type Result struct {
	Success bool
	Message string
}

// ProgressFunc receives progress updates during a Process call. Percentages
// are non-decreasing and reach exactly 100 on success.
type ProgressFunc func(percent int, message string)

// Options is the per-job configuration bag. Constructed once before a job
// starts and read-only during it.
type Options struct {
	// AutoCrop enables the subject-tracking crop to AspectRatio
	// (width/height, e.g. 9.0/16.0).
	AutoCrop    bool
	AspectRatio float64

	// RemoveSilence trims silent runs out of the output timeline.
	RemoveSilence bool
	Silence       silence.Params

	// Captions enables transcription and burned-in subtitles.
	Captions     bool
	WordsPerLine int
	Subtitle     subtitle.Style

	// Enhancement toggles. The params only apply when the matching toggle
	// is on; with both off the stage is skipped entirely.
	EnhanceVideo bool
	EnhanceAudio bool
	Video        enhance.VideoParams
	Audio        enhance.AudioParams

	Overlays []overlay.Item

	Encode media.EncodeSettings

	// DeleteOriginal removes the input file after a successful job.
	DeleteOriginal bool
}
