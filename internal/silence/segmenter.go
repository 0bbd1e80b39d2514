// Package silence classifies an audio track into spoken intervals using an
// amplitude-threshold rule. The scan is fully in-process and deterministic:
// identical samples and parameters always produce identical intervals.
package silence

import (
	"math"
	"time"
)

// SpokenInterval is a contiguous time range classified as containing speech.
// Sequences produced here are non-overlapping and ascending by start.
type SpokenInterval struct {
	Start time.Duration
	End   time.Duration
}

// Duration returns the interval length
func (iv SpokenInterval) Duration() time.Duration {
	return iv.End - iv.Start
}

// Params tunes the segmentation rule
type Params struct {
	// ThresholdDBFS is the amplitude floor, relative to full scale, below
	// which audio counts as silent.
	ThresholdDBFS float64
	// MinSilence is the shortest run below threshold that counts as silence.
	MinSilence time.Duration
	// Pad is retained on both sides of each spoken run to avoid abrupt cuts.
	Pad time.Duration
}

// DefaultParams returns the conventional thresholds: -40 dBFS, 1 s, 200 ms.
func DefaultParams() Params {
	return Params{
		ThresholdDBFS: -40.0,
		MinSilence:    time.Second,
		Pad:           200 * time.Millisecond,
	}
}

// envelopeWindow is the block size for the amplitude envelope, chosen small
// enough that MinSilence resolution stays well under the padding margin.
const envelopeWindow = 10 * time.Millisecond

// SegmentSamples scans interleaved 16-bit PCM samples and returns the spoken
// intervals. An all-silent input yields a nil slice; an input with no
// qualifying silence yields one interval spanning the whole track.
func SegmentSamples(samples []int, sampleRate, channels int, p Params) []SpokenInterval {
	if len(samples) == 0 || sampleRate <= 0 || channels <= 0 {
		return nil
	}

	framesPerBlock := int(float64(sampleRate) * envelopeWindow.Seconds())
	if framesPerBlock < 1 {
		framesPerBlock = 1
	}

	totalFrames := len(samples) / channels
	trackDur := time.Duration(float64(totalFrames) / float64(sampleRate) * float64(time.Second))

	silentBlocks := classifyBlocks(samples, channels, framesPerBlock, p.ThresholdDBFS)

	spoken := spokenRuns(silentBlocks, framesPerBlock, sampleRate, trackDur, p.MinSilence)
	if len(spoken) == 0 {
		return nil
	}
	return padAndMerge(spoken, trackDur, p.Pad)
}

// classifyBlocks reduces the waveform to one silent/loud flag per envelope
// block, using the peak absolute sample across all channels in the block.
func classifyBlocks(samples []int, channels, framesPerBlock int, thresholdDBFS float64) []bool {
	totalFrames := len(samples) / channels
	numBlocks := (totalFrames + framesPerBlock - 1) / framesPerBlock
	silent := make([]bool, numBlocks)

	for b := 0; b < numBlocks; b++ {
		startFrame := b * framesPerBlock
		endFrame := startFrame + framesPerBlock
		if endFrame > totalFrames {
			endFrame = totalFrames
		}

		peak := 0
		for f := startFrame; f < endFrame; f++ {
			for ch := 0; ch < channels; ch++ {
				v := samples[f*channels+ch]
				if v < 0 {
					v = -v
				}
				if v > peak {
					peak = v
				}
			}
		}
		silent[b] = peakDBFS(peak) < thresholdDBFS
	}
	return silent
}

// peakDBFS converts a 16-bit absolute peak to decibels relative to full scale
func peakDBFS(peak int) float64 {
	if peak <= 0 {
		return math.Inf(-1)
	}
	return 20 * math.Log10(float64(peak)/32767.0)
}

// spokenRuns walks the block flags and emits unpadded spoken intervals.
// Silent runs shorter than minSilence are folded into the surrounding speech.
func spokenRuns(silent []bool, framesPerBlock, sampleRate int, trackDur time.Duration, minSilence time.Duration) []SpokenInterval {
	blockDur := time.Duration(float64(framesPerBlock) / float64(sampleRate) * float64(time.Second))
	minSilentBlocks := int(minSilence / blockDur)
	if minSilentBlocks < 1 {
		minSilentBlocks = 1
	}

	var out []SpokenInterval
	spokenStart := -1 // block index of the open spoken run
	silentRun := 0

	closeRun := func(endBlock int) {
		start := time.Duration(spokenStart) * blockDur
		end := time.Duration(endBlock) * blockDur
		if end > trackDur {
			end = trackDur
		}
		out = append(out, SpokenInterval{Start: start, End: end})
		spokenStart = -1
	}

	for b, isSilent := range silent {
		if isSilent {
			silentRun++
			if spokenStart >= 0 && silentRun == minSilentBlocks {
				// The run just became qualifying silence; the speech ended
				// where the run began.
				closeRun(b - minSilentBlocks + 1)
			}
			continue
		}
		silentRun = 0
		if spokenStart < 0 {
			spokenStart = b
		}
	}
	if spokenStart >= 0 {
		closeRun(len(silent))
	}
	return out
}

// padAndMerge widens every interval by pad on both sides, clamps to the
// track, and merges intervals the padding made overlap or touch.
func padAndMerge(ivs []SpokenInterval, trackDur, pad time.Duration) []SpokenInterval {
	padded := make([]SpokenInterval, 0, len(ivs))
	for _, iv := range ivs {
		start := iv.Start - pad
		if start < 0 {
			start = 0
		}
		end := iv.End + pad
		if end > trackDur {
			end = trackDur
		}
		padded = append(padded, SpokenInterval{Start: start, End: end})
	}

	merged := padded[:1]
	for _, iv := range padded[1:] {
		last := &merged[len(merged)-1]
		if iv.Start <= last.End {
			if iv.End > last.End {
				last.End = iv.End
			}
			continue
		}
		merged = append(merged, iv)
	}
	return merged
}

// TotalSpoken sums the interval durations
func TotalSpoken(ivs []SpokenInterval) time.Duration {
	var total time.Duration
	for _, iv := range ivs {
		total += iv.Duration()
	}
	return total
}
