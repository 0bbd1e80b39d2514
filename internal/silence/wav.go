package silence

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// SegmentWAV decodes a 16-bit PCM WAV file and segments it. Returns the
// spoken intervals and the decoded track duration.
func SegmentWAV(path string, p Params) ([]SpokenInterval, time.Duration, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("open %s: %w", path, err)
	}
	defer file.Close()

	decoder := wav.NewDecoder(file)
	if !decoder.IsValidFile() {
		return nil, 0, fmt.Errorf("%s is not a valid WAV file", path)
	}
	if decoder.WavAudioFormat != 1 || decoder.BitDepth != 16 {
		return nil, 0, fmt.Errorf("unsupported WAV format: want 16-bit PCM, got %d-bit format %d",
			decoder.BitDepth, decoder.WavAudioFormat)
	}

	format := decoder.Format()
	if format == nil || format.NumChannels == 0 {
		return nil, 0, fmt.Errorf("could not read audio format from %s", path)
	}
	sampleRate := int(format.SampleRate)
	channels := int(format.NumChannels)

	chunk := 8192
	if rem := chunk % channels; rem != 0 {
		chunk += channels - rem
	}
	buf := &audio.IntBuffer{
		Format: format,
		Data:   make([]int, chunk),
	}

	var samples []int
	for {
		n, err := decoder.PCMBuffer(buf)
		if err == io.EOF || n == 0 {
			break
		}
		if err != nil {
			return nil, 0, fmt.Errorf("read PCM chunk: %w", err)
		}
		samples = append(samples, buf.Data[:n]...)
	}

	frames := len(samples) / channels
	dur := time.Duration(float64(frames) / float64(sampleRate) * float64(time.Second))

	return SegmentSamples(samples, sampleRate, channels, p), dur, nil
}
