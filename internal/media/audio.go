package media

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrNoAudioStream reports a source without an audio track. The pipeline
// treats this as recoverable and continues without audio.
var ErrNoAudioStream = errors.New("source has no audio stream")

// AudioFormat defines audio extraction format options
type AudioFormat struct {
	Codec      string
	SampleRate int
	Channels   int
	Bitrate    string
}

// DefaultAnalysisFormat returns the format the silence segmenter and the
// transcriber both consume: 16 kHz mono 16-bit PCM WAV.
func DefaultAnalysisFormat() AudioFormat {
	return AudioFormat{
		Codec:      "pcm_s16le",
		SampleRate: 16000,
		Channels:   1,
	}
}

// DefaultDeliveryFormat returns the re-encoded track carried into the mux.
func DefaultDeliveryFormat() AudioFormat {
	return AudioFormat{
		Codec:   "aac",
		Bitrate: "192k",
	}
}

// ExtractAudio demuxes and re-encodes the audio track to a standalone file.
// Returns ErrNoAudioStream when the source carries no audio.
func (e *Executor) ExtractAudio(ctx context.Context, input, output string, format AudioFormat, progressFunc ProgressFunc) error {
	e.logger.Info().
		Str("input", input).
		Str("output", output).
		Str("codec", format.Codec).
		Msg("extracting audio")

	args := []string{
		"-i", input,
		"-vn",
		"-acodec", format.Codec,
	}
	if format.SampleRate > 0 {
		args = append(args, "-ar", fmt.Sprintf("%d", format.SampleRate))
	}
	if format.Channels > 0 {
		args = append(args, "-ac", fmt.Sprintf("%d", format.Channels))
	}
	if format.Bitrate != "" {
		args = append(args, "-b:a", format.Bitrate)
	}
	args = append(args, output)

	var tail []string
	opts := RunOptions{
		Args:            args,
		ProgressHandler: progressFunc,
		LogHandler: func(line string) {
			if len(tail) >= 20 {
				tail = tail[1:]
			}
			tail = append(tail, line)
			e.logger.Debug().Str("ffmpeg", line).Msg("audio extraction")
		},
	}

	if err := e.Run(ctx, opts); err != nil {
		for _, line := range tail {
			if strings.Contains(line, "does not contain any stream") ||
				strings.Contains(line, "Stream map '0:a' matches no streams") ||
				strings.Contains(line, "Output file does not contain any stream") {
				return ErrNoAudioStream
			}
		}
		return err
	}
	return nil
}

// VolumeStats holds volume analysis results in dBFS
type VolumeStats struct {
	MeanVolume float64
	MaxVolume  float64
}

// NoiseFloor estimates the background level the noise-reduction filter
// references. The mean sits between speech and the floor, so the estimate
// leans below the mean.
func (v VolumeStats) NoiseFloor() float64 {
	return v.MeanVolume - 10
}

// AnalyzeVolume calculates volume statistics for an audio-bearing file
func (e *Executor) AnalyzeVolume(ctx context.Context, input string) (*VolumeStats, error) {
	e.logger.Debug().Str("input", input).Msg("analyzing volume")

	output, err := e.RunCapture(ctx, []string{
		"-i", input,
		"-af", "volumedetect",
		"-f", "null",
		"-",
	})
	if err != nil {
		return nil, fmt.Errorf("volume analysis failed: %w", err)
	}
	if output == "" {
		return nil, fmt.Errorf("volume analysis produced no output")
	}
	return parseVolumeOutput(output), nil
}

// parseVolumeOutput extracts volume stats from volumedetect log lines
func parseVolumeOutput(output string) *VolumeStats {
	stats := &VolumeStats{}

	for _, line := range strings.Split(output, "\n") {
		if _, after, ok := strings.Cut(line, "mean_volume:"); ok {
			if fields := strings.Fields(after); len(fields) > 0 {
				stats.MeanVolume, _ = strconv.ParseFloat(fields[0], 64)
			}
		} else if _, after, ok := strings.Cut(line, "max_volume:"); ok {
			if fields := strings.Fields(after); len(fields) > 0 {
				stats.MaxVolume, _ = strconv.ParseFloat(fields[0], 64)
			}
		}
	}
	return stats
}
