// Package enhance applies optional video and audio cleanup passes. Every
// pass is best-effort: a failed enhancement logs a warning and hands the
// original file back so the rest of the run keeps going.
package enhance

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/reelforge/reelforge/internal/media"
)

// Runner is the ffmpeg surface enhancement needs. *media.Executor satisfies
// it.
type Runner interface {
	Run(ctx context.Context, opts media.RunOptions) error
	AnalyzeVolume(ctx context.Context, input string) (*media.VolumeStats, error)
}

// VideoParams controls the video cleanup pass. Zero values disable the
// corresponding filter; an all-zero (or all-neutral) struct disables the
// pass entirely.
type VideoParams struct {
	Denoise         float64 // hqdn3d strength, 0 disables
	Sharpen         float64 // unsharp amount, 0 disables
	Contrast        float64 // 1.0 neutral
	Brightness      float64 // 0.0 neutral
	Saturation      float64 // 1.0 neutral
	Gamma           float64 // 1.0 neutral
	ShadowHighlight float64 // -1..1, positive lifts shadows
}

// AudioParams controls the audio cleanup pass
type AudioParams struct {
	NoiseReduction  float64 // 0..1, 0 disables
	NormalizeToDBFS float64 // loudnorm target, 0 disables
}

// Enhancer runs the cleanup passes
type Enhancer struct {
	logger zerolog.Logger
	runner Runner
}

func New(logger zerolog.Logger, runner Runner) *Enhancer {
	return &Enhancer{
		logger: logger.With().Str("component", "enhance").Logger(),
		runner: runner,
	}
}

// videoFilter builds the filter chain for the params. An empty chain means
// the pass is disabled.
func videoFilter(p VideoParams) string {
	contrast, brightness, saturation, gamma := p.Contrast, p.Brightness, p.Saturation, p.Gamma
	if contrast == 0 {
		contrast = 1
	}
	if saturation == 0 {
		saturation = 1
	}
	if gamma == 0 {
		gamma = 1
	}

	// Shadow/highlight recovery approximated as a paired brightness lift and
	// contrast pullback. Positive values open shadows, negative protect
	// highlights.
	if p.ShadowHighlight != 0 {
		brightness += 0.08 * p.ShadowHighlight
		contrast -= 0.06 * p.ShadowHighlight
	}

	return media.NewFilterBuilder().
		Denoise(p.Denoise).
		Sharpen(p.Sharpen).
		ColorAdjust(contrast, brightness, saturation, gamma).
		Build()
}

// audioFilter builds the audio chain. noiseFloorDBFS anchors the denoiser
// and is ignored when noise reduction is off.
func audioFilter(p AudioParams, noiseFloorDBFS float64) string {
	fb := media.NewFilterBuilder().NoiseReduction(p.NoiseReduction, noiseFloorDBFS)
	if p.NormalizeToDBFS != 0 {
		fb.Loudnorm(p.NormalizeToDBFS)
	}
	return fb.Build()
}

// Video runs the video cleanup pass, re-encoding input into output. Returns
// the path the pipeline should continue with: output on success, input when
// the pass is disabled or fails.
func (e *Enhancer) Video(ctx context.Context, input, output string, p VideoParams, settings media.EncodeSettings, progress media.ProgressFunc) (string, error) {
	filter := videoFilter(p)
	if filter == "" {
		e.logger.Debug().Msg("video enhancement disabled, passing through")
		return input, nil
	}

	e.logger.Info().Str("filter", filter).Msg("enhancing video")

	args := []string{
		"-i", input,
		"-vf", filter,
	}
	args = append(args, settings.EncodeArgs()...)
	args = append(args, output)

	err := e.runner.Run(ctx, media.RunOptions{
		Args:            args,
		ProgressHandler: progress,
	})
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		e.logger.Warn().Err(err).Msg("video enhancement failed, continuing with original")
		return input, nil
	}
	return output, nil
}

// Audio runs the audio cleanup pass over a WAV file, preserving its PCM
// format so downstream analysis keeps working. Same pass-through contract
// as Video.
func (e *Enhancer) Audio(ctx context.Context, input, output string, p AudioParams, progress media.ProgressFunc) (string, error) {
	if p.NoiseReduction <= 0 && p.NormalizeToDBFS == 0 {
		e.logger.Debug().Msg("audio enhancement disabled, passing through")
		return input, nil
	}

	noiseFloor := -50.0
	if p.NoiseReduction > 0 {
		if stats, err := e.runner.AnalyzeVolume(ctx, input); err != nil {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			e.logger.Warn().Err(err).Msg("volume analysis failed, using default noise floor")
		} else {
			noiseFloor = stats.NoiseFloor()
			e.logger.Debug().
				Float64("mean_dbfs", stats.MeanVolume).
				Float64("noise_floor", noiseFloor).
				Msg("volume analysis complete")
		}
	}

	filter := audioFilter(p, noiseFloor)
	e.logger.Info().Str("filter", filter).Msg("enhancing audio")

	err := e.runner.Run(ctx, media.RunOptions{
		Args: []string{
			"-i", input,
			"-af", filter,
			"-acodec", "pcm_s16le",
			output,
		},
		ProgressHandler: progress,
	})
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		e.logger.Warn().Err(err).Msg("audio enhancement failed, continuing with original")
		return input, nil
	}
	return output, nil
}
