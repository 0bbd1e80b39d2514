package media

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/reelforge/reelforge/pkg/util"
)

// SegmentOptions defines segment extraction parameters
type SegmentOptions struct {
	Start        time.Duration
	End          time.Duration
	Output       string
	CopyCodec    bool // -c copy for fast, keyframe-imprecise extraction
	Encode       EncodeSettings
	AudioOnly    bool
	ProgressFunc ProgressFunc
}

// ExtractSegment cuts [Start, End) from the input. Re-encoding is the
// default because concat of spoken segments needs frame-accurate cuts.
func (e *Executor) ExtractSegment(ctx context.Context, input string, opts SegmentOptions) error {
	duration := opts.End - opts.Start
	if duration <= 0 {
		return fmt.Errorf("invalid segment duration: end must be after start")
	}

	e.logger.Debug().
		Str("input", input).
		Str("output", opts.Output).
		Dur("start", opts.Start).
		Dur("duration", duration).
		Msg("extracting segment")

	args := []string{
		"-ss", util.FormatSeconds(opts.Start),
		"-t", util.FormatSeconds(duration),
		"-i", input,
	}

	switch {
	case opts.CopyCodec:
		args = append(args, "-c", "copy")
	case opts.AudioOnly:
		args = append(args, "-vn", "-acodec", "pcm_s16le")
	default:
		args = append(args, opts.Encode.EncodeArgs()...)
	}
	args = append(args, opts.Output)

	runOpts := RunOptions{
		Args:            args,
		ProgressHandler: opts.ProgressFunc,
		LogHandler: func(line string) {
			e.logger.Debug().Str("ffmpeg", line).Msg("segment extraction")
		},
	}

	if err := e.Run(ctx, runOpts); err != nil {
		return fmt.Errorf("segment extraction failed: %w", err)
	}
	return nil
}

// ConcatOptions defines concatenation parameters
type ConcatOptions struct {
	Inputs       []string
	Output       string
	ReEncode     bool
	Encode       EncodeSettings
	ProgressFunc ProgressFunc
}

// Concat merges multiple files into one via the concat demuxer
func (e *Executor) Concat(ctx context.Context, opts ConcatOptions) error {
	if len(opts.Inputs) == 0 {
		return fmt.Errorf("no input files provided")
	}
	if opts.Output == "" {
		return fmt.Errorf("output path is required")
	}

	e.logger.Debug().
		Int("inputs", len(opts.Inputs)).
		Str("output", opts.Output).
		Msg("concatenating segments")

	listFile, err := writeConcatList(opts.Inputs)
	if err != nil {
		return fmt.Errorf("failed to create concat list: %w", err)
	}
	defer util.CleanupFiles(listFile)

	args := []string{
		"-f", "concat",
		"-safe", "0",
		"-i", listFile,
	}
	if opts.ReEncode {
		args = append(args, opts.Encode.EncodeArgs()...)
	} else {
		args = append(args, "-c", "copy")
	}
	args = append(args, opts.Output)

	return e.Run(ctx, RunOptions{
		Args:            args,
		ProgressHandler: opts.ProgressFunc,
		LogHandler: func(line string) {
			e.logger.Debug().Str("ffmpeg", line).Msg("concat")
		},
	})
}

func writeConcatList(inputs []string) (string, error) {
	tmpFile, err := os.CreateTemp("", "reelforge-concat-*.txt")
	if err != nil {
		return "", err
	}
	defer tmpFile.Close()

	for _, input := range inputs {
		absPath, err := filepath.Abs(input)
		if err != nil {
			return "", err
		}
		if _, err := fmt.Fprintf(tmpFile, "file '%s'\n", absPath); err != nil {
			return "", err
		}
	}
	return tmpFile.Name(), nil
}

// ExtractFrames samples frames at the given rate into numbered JPEGs under
// dir (frame_000001.jpg, ...). Returns the sorted list of written files.
func (e *Executor) ExtractFrames(ctx context.Context, input, dir string, fps float64) ([]string, error) {
	if fps <= 0 {
		return nil, fmt.Errorf("sample fps must be positive")
	}
	if err := util.EnsureDir(dir); err != nil {
		return nil, err
	}

	pattern := filepath.Join(dir, "frame_%06d.jpg")
	args := []string{
		"-i", input,
		"-vf", fmt.Sprintf("fps=%g", fps),
		"-q:v", "2",
		pattern,
	}

	err := e.Run(ctx, RunOptions{
		Args: args,
		LogHandler: func(line string) {
			e.logger.Debug().Str("ffmpeg", line).Msg("frame sampling")
		},
	})
	if err != nil {
		return nil, fmt.Errorf("frame sampling failed: %w", err)
	}

	frames, err := filepath.Glob(filepath.Join(dir, "frame_*.jpg"))
	if err != nil {
		return nil, err
	}
	return frames, nil
}
