// Package pipeline sequences the processing stages for one video job: probe,
// audio extraction, enhancement, silence removal, transcription, subject
// cropping, overlay compositing, and the final encode. Stage-local failures
// degrade to documented fallbacks; only probe, transcription service, and
// encode failures abort a job.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/reelforge/reelforge/internal/enhance"
	"github.com/reelforge/reelforge/internal/media"
	"github.com/reelforge/reelforge/internal/overlay"
	"github.com/reelforge/reelforge/internal/overlay/fonts"
	"github.com/reelforge/reelforge/internal/silence"
	"github.com/reelforge/reelforge/internal/subtitle"
	"github.com/reelforge/reelforge/internal/track"
	"github.com/reelforge/reelforge/internal/transcribe"
	"github.com/reelforge/reelforge/pkg/util"
)

// Media is the ffmpeg surface the pipeline consumes. *media.Executor
// satisfies it.
type Media interface {
	Probe(ctx context.Context, path string) (*media.Info, error)
	ExtractAudio(ctx context.Context, input, output string, format media.AudioFormat, progressFunc media.ProgressFunc) error
	ExtractSegment(ctx context.Context, input string, opts media.SegmentOptions) error
	Concat(ctx context.Context, opts media.ConcatOptions) error
	Run(ctx context.Context, opts media.RunOptions) error
	AnalyzeVolume(ctx context.Context, input string) (*media.VolumeStats, error)
}

// SubjectAnalyzer produces a subject trajectory for a clip. *track.Tracker
// satisfies it.
type SubjectAnalyzer interface {
	Analyze(ctx context.Context, videoPath, frameDir string, info *media.Info) (*track.Trajectory, error)
}

// SegmentFunc classifies an audio file into spoken intervals
type SegmentFunc func(path string, p silence.Params) ([]silence.SpokenInterval, time.Duration, error)

// Deps are the collaborators a processor is constructed with. Optional
// capabilities are nil when absent: a nil Engine disables captions, a nil
// Analyzer means center crop.
type Deps struct {
	Logger   zerolog.Logger
	Media    Media
	Engine   transcribe.Engine
	Analyzer SubjectAnalyzer
	Fonts    fonts.Resolver
	Segment  SegmentFunc // nil means the built-in WAV segmenter
	WorkDir  string      // scratch parent, empty means the system temp dir
}

// Processor runs jobs one at a time. A start request while a job is in
// flight is rejected with ErrBusy, never queued.
type Processor struct {
	logger   zerolog.Logger
	deps     Deps
	enhancer *enhance.Enhancer
	comp     *overlay.Compositor
	busy     atomic.Bool
}

// New creates a processor from its dependencies
func New(deps Deps) *Processor {
	logger := deps.Logger.With().Str("component", "pipeline").Logger()
	if deps.Segment == nil {
		deps.Segment = silence.SegmentWAV
	}
	return &Processor{
		logger:   logger,
		deps:     deps,
		enhancer: enhance.New(deps.Logger, deps.Media),
		comp:     overlay.NewCompositor(deps.Logger, deps.Fonts),
	}
}

// Busy reports whether a job is currently in flight
func (p *Processor) Busy() bool {
	return p.busy.Load()
}

// Start launches a job on its own goroutine and returns its event stream.
// The final event carries a terminal state; the channel closes after it.
func (p *Processor) Start(ctx context.Context, input, output string, opts Options) (<-chan Event, error) {
	if !p.busy.CompareAndSwap(false, true) {
		return nil, ErrBusy
	}

	events := make(chan Event, 16)
	go func() {
		defer p.busy.Store(false)
		defer close(events)
		p.run(ctx, input, output, opts, newReporter(events))
	}()
	return events, nil
}

// Process runs a job synchronously, forwarding progress to the callback.
// A failed job issues no callback for its terminal event, so a job rejected
// before its first stage reports zero progress.
func (p *Processor) Process(ctx context.Context, input, output string, opts Options, progress ProgressFunc) Result {
	events, err := p.Start(ctx, input, output, opts)
	if err != nil {
		return Result{Success: false, Message: err.Error()}
	}

	var last Event
	for ev := range events {
		last = ev
		if progress != nil && ev.State != StateFailed {
			progress(ev.Percent, ev.Message)
		}
	}
	return Result{Success: last.State == StateDone, Message: last.Message}
}

// job carries the state threaded through the stages of one run
type job struct {
	input   string
	output  string
	scratch string
	opts    Options
	rep     *reporter
	logger  zerolog.Logger

	info      *media.Info
	hasAudio  bool
	video     string // current working video file
	wav       string // full-length analysis audio
	intervals []silence.SpokenInterval
	trimmed   bool
	outDur    time.Duration // output timeline duration
	captions  []transcribe.CaptionLine
	plan      *track.CropPlan
	layers    []overlay.Layer
	assPath   string
}

func (p *Processor) run(ctx context.Context, input, output string, opts Options, rep *reporter) {
	logger := p.logger.With().Str("input", input).Logger()

	// Input validation happens before any progress is reported.
	if !util.FileExists(input) {
		msg := fmt.Sprintf("input file %s does not exist", input)
		logger.Error().Msg(msg)
		rep.fail(msg)
		return
	}

	workDir := p.deps.WorkDir
	if workDir == "" {
		workDir = os.TempDir()
	}
	scratch := filepath.Join(workDir, "reelforge-"+uuid.NewString())
	if err := util.EnsureDir(scratch); err != nil {
		rep.fail(fmt.Sprintf("could not create scratch directory: %v", err))
		return
	}
	defer func() {
		if err := os.RemoveAll(scratch); err != nil {
			logger.Warn().Err(err).Str("dir", scratch).Msg("scratch cleanup failed")
		}
	}()

	j := &job{
		input:   input,
		output:  media.NormalizeExtension(output),
		scratch: scratch,
		opts:    opts,
		rep:     rep,
		logger:  logger,
	}
	if j.output != output {
		logger.Info().Str("output", j.output).Msg("output extension normalized")
	}

	stages := []func(context.Context, *job) error{
		p.stageProbe,
		p.stageExtractAudio,
		p.stageEnhance,
		p.stageSilenceRemoval,
		p.stageTranscribe,
		p.stageCrop,
		p.stageComposite,
		p.stageEncode,
	}
	for _, stage := range stages {
		if err := stage(ctx, j); err != nil {
			logger.Error().Err(err).Msg("job failed")
			rep.fail(err.Error())
			return
		}
	}

	if opts.DeleteOriginal && j.output != input {
		if err := os.Remove(input); err != nil {
			logger.Warn().Err(err).Msg("could not delete original")
		} else {
			logger.Info().Msg("original deleted")
		}
	}

	logger.Info().Str("output", j.output).Msg("job complete")
	rep.done("processing complete: " + j.output)
}

func (p *Processor) stageProbe(ctx context.Context, j *job) error {
	j.rep.enter(StateProbing, "probing input")

	info, err := p.deps.Media.Probe(ctx, j.input)
	if err != nil {
		return fmt.Errorf("probe failed: %v", err)
	}
	j.info = info
	j.hasAudio = info.HasAudio
	j.video = j.input
	j.outDur = info.Duration

	j.logger.Info().
		Dur("duration", info.Duration).
		Int("width", info.Width).
		Int("height", info.Height).
		Float64("fps", info.FPS).
		Bool("has_audio", info.HasAudio).
		Msg("input probed")
	return nil
}

func (p *Processor) stageExtractAudio(ctx context.Context, j *job) error {
	j.rep.enter(StateExtractingAudio, "extracting audio")

	if !j.hasAudio {
		j.logger.Warn().Msg("no audio track, continuing without audio")
		return nil
	}

	wav := filepath.Join(j.scratch, "audio.wav")
	err := p.deps.Media.ExtractAudio(ctx, j.input, wav, media.DefaultAnalysisFormat(), j.ffProgress("extracting audio"))
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		j.logger.Warn().Err(err).Msg("audio extraction failed, continuing without audio")
		j.hasAudio = false
		return nil
	}
	j.wav = wav
	return nil
}

func (p *Processor) stageEnhance(ctx context.Context, j *job) error {
	j.rep.enter(StateEnhancing, "enhancing")

	if !j.opts.EnhanceVideo && !j.opts.EnhanceAudio {
		j.logger.Debug().Msg("enhancement disabled")
		return nil
	}

	if j.opts.EnhanceVideo {
		out, err := p.enhancer.Video(ctx, j.video, filepath.Join(j.scratch, "enhanced.mp4"),
			j.opts.Video, j.opts.Encode, j.ffProgress("enhancing video"))
		if err != nil {
			return err
		}
		j.video = out
	}

	if j.opts.EnhanceAudio && j.hasAudio {
		out, err := p.enhancer.Audio(ctx, j.wav, filepath.Join(j.scratch, "enhanced.wav"),
			j.opts.Audio, j.ffProgress("enhancing audio"))
		if err != nil {
			return err
		}
		if out != j.wav {
			j.wav = out
			p.remuxEnhancedAudio(ctx, j)
		}
	}
	return nil
}

// remuxEnhancedAudio replaces the working video's audio track with the
// enhanced WAV so the trim and the final mux carry the cleaned audio.
// Failure keeps the original track; the enhanced WAV still drives analysis.
func (p *Processor) remuxEnhancedAudio(ctx context.Context, j *job) {
	out := filepath.Join(j.scratch, "remuxed.mp4")
	format := media.DefaultDeliveryFormat()
	err := p.deps.Media.Run(ctx, media.RunOptions{
		Args: []string{
			"-i", j.video,
			"-i", j.wav,
			"-map", "0:v",
			"-map", "1:a",
			"-c:v", "copy",
			"-c:a", format.Codec,
			"-b:a", format.Bitrate,
			out,
		},
	})
	if err != nil {
		j.logger.Warn().Err(err).Msg("enhanced audio remux failed, keeping original track")
		return
	}
	j.video = out
}

func (p *Processor) stageSilenceRemoval(ctx context.Context, j *job) error {
	j.rep.enter(StateSilenceRemoval, "removing silence")

	if !j.hasAudio || !j.opts.RemoveSilence {
		return nil
	}

	intervals, _, err := p.deps.Segment(j.wav, j.opts.Silence)
	if err != nil {
		j.logger.Warn().Err(err).Msg("silence analysis failed, keeping full clip")
		return nil
	}
	if len(intervals) == 0 {
		j.logger.Warn().Msg("no speech found, keeping full clip")
		return nil
	}

	segments := make([]string, 0, len(intervals))
	for i, iv := range intervals {
		seg := filepath.Join(j.scratch, fmt.Sprintf("seg_%03d.mp4", i))
		err := p.deps.Media.ExtractSegment(ctx, j.video, media.SegmentOptions{
			Start:  iv.Start,
			End:    iv.End,
			Output: seg,
			Encode: j.opts.Encode,
		})
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			j.logger.Warn().Err(err).Int("segment", i).Msg("segment cut failed, keeping full clip")
			return nil
		}
		segments = append(segments, seg)
		j.rep.at(float64(i+1)/float64(len(intervals)+1), "cutting spoken segments")
	}

	trimmed := filepath.Join(j.scratch, "trimmed.mp4")
	err = p.deps.Media.Concat(ctx, media.ConcatOptions{
		Inputs: segments,
		Output: trimmed,
	})
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		j.logger.Warn().Err(err).Msg("segment concat failed, keeping full clip")
		return nil
	}

	j.video = trimmed
	j.trimmed = true
	j.intervals = intervals
	j.outDur = silence.TotalSpoken(intervals)

	j.logger.Info().
		Int("segments", len(intervals)).
		Dur("kept", j.outDur).
		Dur("original", j.info.Duration).
		Msg("silence removed")
	return nil
}

func (p *Processor) stageTranscribe(ctx context.Context, j *job) error {
	j.rep.enter(StateTranscribing, "transcribing")

	if !j.hasAudio || !j.opts.Captions || p.deps.Engine == nil {
		return nil
	}

	// Without a trim, the whole track is one interval.
	intervals := j.intervals
	if len(intervals) == 0 {
		intervals = []silence.SpokenInterval{{Start: 0, End: j.info.Duration}}
	}

	wordsPerLine := j.opts.WordsPerLine
	if wordsPerLine <= 0 {
		wordsPerLine = transcribe.DefaultWordsPerLine
	}

	// Caption windows land on the output timeline: after a trim, interval i
	// starts where the previous kept intervals end.
	var offset time.Duration
	for i, iv := range intervals {
		outIv := iv
		if j.trimmed {
			outIv = silence.SpokenInterval{Start: offset, End: offset + iv.Duration()}
		}
		offset += iv.Duration()

		clip := filepath.Join(j.scratch, fmt.Sprintf("tx_%03d.wav", i))
		err := p.deps.Media.ExtractSegment(ctx, j.wav, media.SegmentOptions{
			Start:     iv.Start,
			End:       iv.End,
			Output:    clip,
			AudioOnly: true,
		})
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			j.logger.Warn().Err(err).Int("interval", i).Msg("audio clip extraction failed, skipping captions for interval")
			continue
		}

		text, err := p.deps.Engine.Transcribe(ctx, clip)
		if err != nil {
			if errors.Is(err, transcribe.ErrNoSpeech) {
				j.logger.Warn().Int("interval", i).Msg("no recognizable speech in interval")
				continue
			}
			return fmt.Errorf("transcription failed: %v", err)
		}

		j.captions = append(j.captions, transcribe.SplitCaptions(text, outIv, wordsPerLine)...)
		j.rep.at(float64(i+1)/float64(len(intervals)), "transcribing")
	}

	j.logger.Info().Int("caption_lines", len(j.captions)).Msg("transcription complete")
	return nil
}

func (p *Processor) stageCrop(ctx context.Context, j *job) error {
	j.rep.enter(StateCropping, "analyzing subject")

	if !j.opts.AutoCrop || j.opts.AspectRatio <= 0 {
		return nil
	}

	if p.deps.Analyzer == nil {
		j.logger.Info().Msg("no subject analyzer configured, using center crop")
		j.plan = track.CenterPlan(j.info.Width, j.info.Height, j.opts.AspectRatio)
		return nil
	}

	analysisInfo := *j.info
	analysisInfo.Duration = j.outDur

	traj, err := p.deps.Analyzer.Analyze(ctx, j.video, filepath.Join(j.scratch, "frames"), &analysisInfo)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		j.logger.Warn().Err(err).Msg("subject analysis failed, using center crop")
		j.plan = track.CenterPlan(j.info.Width, j.info.Height, j.opts.AspectRatio)
		return nil
	}
	j.plan = track.PlanCrop(traj, j.info.Width, j.info.Height, j.opts.AspectRatio)
	return nil
}

func (p *Processor) stageComposite(ctx context.Context, j *job) error {
	j.rep.enter(StateCompositing, "compositing overlays")

	frameW, frameH := j.info.Width, j.info.Height
	if j.plan != nil {
		frameW, frameH = j.plan.Width, j.plan.Height
	}

	j.layers = p.comp.Build(j.opts.Overlays)

	if len(j.captions) > 0 {
		doc := subtitle.RenderASS(j.captions, j.opts.Subtitle, frameW, frameH, p.deps.Fonts)
		path := filepath.Join(j.scratch, "captions.ass")
		if err := os.WriteFile(path, []byte(doc), 0644); err != nil {
			j.logger.Warn().Err(err).Msg("could not write subtitle file, skipping captions")
		} else {
			j.assPath = path
		}
	}
	return nil
}

func (p *Processor) stageEncode(ctx context.Context, j *job) error {
	j.rep.enter(StateEncoding, "encoding")

	args, err := p.buildEncodeArgs(j)
	if err != nil {
		return fmt.Errorf("final encode failed: %v", err)
	}

	if err := p.deps.Media.Run(ctx, media.RunOptions{
		Args:            args,
		ProgressHandler: j.ffProgress("encoding"),
	}); err != nil {
		return fmt.Errorf("final encode failed: %v", err)
	}
	return nil
}

// ffProgress adapts ffmpeg progress blocks into stage-relative progress,
// proportional to the output timeline.
func (j *job) ffProgress(msg string) media.ProgressFunc {
	return func(pr *media.Progress) {
		if j.outDur <= 0 || pr.Time == "" {
			return
		}
		t, err := util.ParseTimestamp(pr.Time)
		if err != nil {
			return
		}
		j.rep.at(t.Seconds()/j.outDur.Seconds(), msg)
	}
}
