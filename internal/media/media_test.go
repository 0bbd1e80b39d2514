package media

import (
	"strings"
	"testing"
	"time"
)

func TestParseProbeOutput(t *testing.T) {
	out := []byte(`{
		"format": {"duration": "10.500000", "bit_rate": "1200000"},
		"streams": [
			{"codec_type": "video", "codec_name": "h264", "width": 1920, "height": 1080, "r_frame_rate": "30000/1001"},
			{"codec_type": "audio", "codec_name": "aac"}
		]
	}`)

	info, err := parseProbeOutput(out)
	if err != nil {
		t.Fatalf("parseProbeOutput failed: %v", err)
	}
	if info.Width != 1920 || info.Height != 1080 {
		t.Errorf("got %dx%d, want 1920x1080", info.Width, info.Height)
	}
	if info.Duration != 10500*time.Millisecond {
		t.Errorf("duration = %v, want 10.5s", info.Duration)
	}
	if !info.HasAudio {
		t.Error("expected HasAudio")
	}
	if got := info.FPS; got < 29.96 || got > 29.98 {
		t.Errorf("fps = %v, want ~29.97", got)
	}
}

func TestParseProbeOutputNoVideo(t *testing.T) {
	out := []byte(`{"format": {"duration": "3.0"}, "streams": [{"codec_type": "audio", "codec_name": "mp3"}]}`)
	if _, err := parseProbeOutput(out); err == nil {
		t.Fatal("expected error for audio-only container")
	}
}

func TestParseProbeOutputBadDuration(t *testing.T) {
	cases := []string{"0.0", "-1.2", "nan", ""}
	for _, dur := range cases {
		out := []byte(`{"format": {"duration": "` + dur + `"}, "streams": [{"codec_type": "video", "width": 10, "height": 10}]}`)
		if _, err := parseProbeOutput(out); err == nil {
			t.Errorf("duration %q: expected error", dur)
		}
	}
}

func TestProgressParsing(t *testing.T) {
	lines := []string{
		"frame=120",
		"fps=29.9",
		"bitrate= 900.2kbits/s",
		"out_time=00:00:04.000000",
		"speed=1.02x",
		"progress=continue",
	}

	p := &Progress{}
	var done bool
	for _, l := range lines {
		done = parseProgressLine(l, p)
	}
	if !done {
		t.Fatal("progress block not terminated")
	}
	if p.Frame != 120 {
		t.Errorf("frame = %d, want 120", p.Frame)
	}
	if p.Time != "00:00:04.000000" {
		t.Errorf("time = %q", p.Time)
	}
	if p.Speed != "1.02x" {
		t.Errorf("speed = %q", p.Speed)
	}
}

func TestFilterBuilder(t *testing.T) {
	got := NewFilterBuilder().
		Denoise(3).
		Sharpen(0.6).
		ColorAdjust(1.05, 0.01, 1.1, 1.0).
		Build()

	want := "hqdn3d=3.00,unsharp=5:5:0.60,eq=contrast=1.050:brightness=0.010:saturation=1.100:gamma=1.000"
	if got != want {
		t.Errorf("filter chain = %q, want %q", got, want)
	}
}

func TestFilterBuilderNeutralColorAdjust(t *testing.T) {
	fb := NewFilterBuilder().ColorAdjust(1.0, 0.0, 1.0, 1.0)
	if !fb.Empty() {
		t.Errorf("neutral eq should emit nothing, got %q", fb.Build())
	}
}

func TestFilterBuilderSkipsInvalid(t *testing.T) {
	got := NewFilterBuilder().Scale(0, 100).FPS(-1).Denoise(0).Crop(0, 0, 0, 0).Build()
	if got != "" {
		t.Errorf("expected empty chain, got %q", got)
	}
}

func TestNoiseReductionClamped(t *testing.T) {
	got := NewFilterBuilder().NoiseReduction(2.0, -42).Build()
	if !strings.Contains(got, "nr=30.00") {
		t.Errorf("strength should clamp to 1.0: %q", got)
	}
	if !strings.Contains(got, "nf=-42.00") {
		t.Errorf("noise floor missing: %q", got)
	}
}

func TestParseVolumeOutput(t *testing.T) {
	out := "[Parsed_volumedetect_0 @ 0x1] mean_volume: -23.4 dB\n[Parsed_volumedetect_0 @ 0x1] max_volume: -4.1 dB\n"
	stats := parseVolumeOutput(out)
	if stats.MeanVolume != -23.4 {
		t.Errorf("mean = %v", stats.MeanVolume)
	}
	if stats.MaxVolume != -4.1 {
		t.Errorf("max = %v", stats.MaxVolume)
	}
	if nf := stats.NoiseFloor(); nf != -33.4 {
		t.Errorf("noise floor = %v", nf)
	}
}

func TestNormalizeExtension(t *testing.T) {
	cases := map[string]string{
		"out.mp4":  "out.mp4",
		"out.mov":  "out.mov",
		"out.webm": "out.mp4",
		"out.mkv":  "out.mp4",
		"out":      "out.mp4",
	}
	for in, want := range cases {
		if got := NormalizeExtension(in); got != want {
			t.Errorf("NormalizeExtension(%q) = %q, want %q", in, got, want)
		}
	}
}
