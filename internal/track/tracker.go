package track

import (
	"context"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/reelforge/reelforge/internal/media"
)

// Sample is one analyzed frame's subject position
type Sample struct {
	T       time.Duration
	CenterX float64
	CenterY float64
}

// Trajectory holds the raw and smoothed subject path. Its length always
// equals the number of frames sampled at the analysis rate; frames with no
// detection carry the previous sample's position forward.
type Trajectory struct {
	Samples   []Sample
	Smoothed  []Sample
	SampleFPS float64
	// Detected is false when no subject was found in the entire clip, in
	// which case every sample sits at frame center.
	Detected bool
}

// Options tunes the analysis pass
type Options struct {
	SampleFPS       float64 // analysis rate, independent of source frame rate
	SmoothingWindow int     // centered moving-average window, in samples
	Concurrency     int     // parallel per-frame detections
}

// DefaultOptions returns the conventional 5 fps / 5-sample configuration
func DefaultOptions() Options {
	return Options{
		SampleFPS:       5,
		SmoothingWindow: 5,
		Concurrency:     4,
	}
}

// Tracker samples frames from a clip and builds a subject trajectory
type Tracker struct {
	logger   zerolog.Logger
	exec     *media.Executor
	detector Detector // nil means capability absent: center fallback
	opts     Options
}

// New creates a tracker. detector may be nil; the tracker then produces a
// centered trajectory without touching any frames.
func New(logger zerolog.Logger, exec *media.Executor, detector Detector, opts Options) *Tracker {
	if opts.SampleFPS <= 0 {
		opts.SampleFPS = DefaultOptions().SampleFPS
	}
	if opts.SmoothingWindow <= 0 {
		opts.SmoothingWindow = DefaultOptions().SmoothingWindow
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultOptions().Concurrency
	}
	return &Tracker{
		logger:   logger.With().Str("component", "tracker").Logger(),
		exec:     exec,
		detector: detector,
		opts:     opts,
	}
}

// Analyze samples the clip at the analysis rate, detects the subject per
// frame, and returns the smoothed trajectory. Detector errors on individual
// frames degrade to "no detection" for that frame; they never fail the run.
func (t *Tracker) Analyze(ctx context.Context, videoPath, frameDir string, info *media.Info) (*Trajectory, error) {
	numSamples := SampleCount(info.Duration, t.opts.SampleFPS)

	if t.detector == nil {
		t.logger.Info().Msg("no subject detector configured, using center crop")
		return centeredTrajectory(numSamples, t.opts.SampleFPS, info), nil
	}

	frames, err := t.exec.ExtractFrames(ctx, videoPath, frameDir, t.opts.SampleFPS)
	if err != nil {
		return nil, err
	}
	sort.Strings(frames)
	if len(frames) < numSamples {
		// The fps filter can come up one frame short on fractional
		// durations; the trajectory length contract follows the frames we
		// actually have.
		numSamples = len(frames)
	}

	centers := make([]*Box, numSamples)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(t.opts.Concurrency)
	for i := 0; i < numSamples; i++ {
		i := i
		g.Go(func() error {
			box, found, err := t.detector.DetectSubject(gctx, frames[i])
			if err != nil {
				t.logger.Debug().Err(err).Str("frame", frames[i]).Msg("frame detection failed")
				return nil
			}
			if found {
				centers[i] = &box
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return buildTrajectory(centers, t.opts, info, t.logger), nil
}

// SampleCount returns the number of analysis samples for a clip duration
func SampleCount(dur time.Duration, sampleFPS float64) int {
	n := int(dur.Seconds() * sampleFPS)
	if n < 1 {
		n = 1
	}
	return n
}

func centeredTrajectory(n int, fps float64, info *media.Info) *Trajectory {
	cx := float64(info.Width) / 2
	cy := float64(info.Height) / 2
	samples := make([]Sample, n)
	for i := range samples {
		samples[i] = Sample{T: sampleTime(i, fps), CenterX: cx, CenterY: cy}
	}
	return &Trajectory{
		Samples:   samples,
		Smoothed:  samples,
		SampleFPS: fps,
		Detected:  false,
	}
}

func buildTrajectory(centers []*Box, opts Options, info *media.Info, logger zerolog.Logger) *Trajectory {
	n := len(centers)
	samples := make([]Sample, n)

	// Carry-forward fill: a frame with no subject repeats the previous
	// position; leading misses default to frame center.
	lastX := float64(info.Width) / 2
	lastY := float64(info.Height) / 2
	detected := false
	misses := 0
	for i, box := range centers {
		if box != nil {
			lastX = box.CenterX()
			lastY = box.CenterY()
			detected = true
		} else {
			misses++
		}
		samples[i] = Sample{T: sampleTime(i, opts.SampleFPS), CenterX: lastX, CenterY: lastY}
	}

	logger.Info().
		Int("samples", n).
		Int("misses", misses).
		Bool("detected", detected).
		Msg("subject analysis complete")

	return &Trajectory{
		Samples:   samples,
		Smoothed:  smooth(samples, opts.SmoothingWindow),
		SampleFPS: opts.SampleFPS,
		Detected:  detected,
	}
}

func sampleTime(i int, fps float64) time.Duration {
	return time.Duration(float64(i) / fps * float64(time.Second))
}

// smooth applies a centered moving average over the fixed window. The window
// shrinks symmetrically at the edges so the output length matches the input.
func smooth(samples []Sample, window int) []Sample {
	if window <= 1 || len(samples) < 2 {
		out := make([]Sample, len(samples))
		copy(out, samples)
		return out
	}

	half := window / 2
	out := make([]Sample, len(samples))
	for i := range samples {
		lo := i - half
		hi := i + half
		if lo < 0 {
			lo = 0
		}
		if hi > len(samples)-1 {
			hi = len(samples) - 1
		}

		var sx, sy float64
		for j := lo; j <= hi; j++ {
			sx += samples[j].CenterX
			sy += samples[j].CenterY
		}
		cnt := float64(hi - lo + 1)
		out[i] = Sample{T: samples[i].T, CenterX: sx / cnt, CenterY: sy / cnt}
	}
	return out
}
