package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/reelforge/reelforge/internal/media"
	"github.com/reelforge/reelforge/internal/overlay"
	"github.com/reelforge/reelforge/internal/silence"
	"github.com/reelforge/reelforge/internal/track"
	"github.com/reelforge/reelforge/internal/transcribe"
)

type fakeMedia struct {
	mu   sync.Mutex
	info media.Info

	probeErr   error
	extractErr error
	segmentErr error
	concatErr  error
	runErr     error

	onRun func(args []string)
	block chan struct{} // non-nil makes Run wait until closed

	segments []media.SegmentOptions
	concats  int
	analyses int
	runs     [][]string
}

func (f *fakeMedia) Probe(ctx context.Context, path string) (*media.Info, error) {
	if f.probeErr != nil {
		return nil, f.probeErr
	}
	info := f.info
	info.FilePath = path
	return &info, nil
}

func (f *fakeMedia) ExtractAudio(ctx context.Context, input, output string, format media.AudioFormat, pf media.ProgressFunc) error {
	return f.extractErr
}

func (f *fakeMedia) ExtractSegment(ctx context.Context, input string, opts media.SegmentOptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.segmentErr != nil {
		return f.segmentErr
	}
	f.segments = append(f.segments, opts)
	return nil
}

func (f *fakeMedia) Concat(ctx context.Context, opts media.ConcatOptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.concatErr != nil {
		return f.concatErr
	}
	f.concats++
	return nil
}

func (f *fakeMedia) Run(ctx context.Context, opts media.RunOptions) error {
	f.mu.Lock()
	f.runs = append(f.runs, opts.Args)
	onRun := f.onRun
	block := f.block
	f.mu.Unlock()

	if onRun != nil {
		onRun(opts.Args)
	}
	if block != nil {
		<-block
	}
	return f.runErr
}

func (f *fakeMedia) AnalyzeVolume(ctx context.Context, input string) (*media.VolumeStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.analyses++
	return &media.VolumeStats{MeanVolume: -30, MaxVolume: -5}, nil
}

func (f *fakeMedia) lastRun() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.runs) == 0 {
		return nil
	}
	return f.runs[len(f.runs)-1]
}

type fakeEngine struct {
	text string
	err  error
}

func (f *fakeEngine) Transcribe(ctx context.Context, wavPath string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.text, nil
}

type fakeAnalyzer struct {
	traj *track.Trajectory
	err  error
}

func (f *fakeAnalyzer) Analyze(ctx context.Context, videoPath, frameDir string, info *media.Info) (*track.Trajectory, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.traj, nil
}

func tenSecondClip() media.Info {
	return media.Info{
		Duration:   10 * time.Second,
		Width:      1920,
		Height:     1080,
		FPS:        30,
		HasAudio:   true,
		VideoCodec: "h264",
		AudioCodec: "aac",
	}
}

func writeInput(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "input.mp4")
	if err := os.WriteFile(path, []byte("stub"), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func segmentsOf(ivs ...silence.SpokenInterval) SegmentFunc {
	return func(path string, p silence.Params) ([]silence.SpokenInterval, time.Duration, error) {
		return ivs, 10 * time.Second, nil
	}
}

func newTestProcessor(fm *fakeMedia, deps Deps, t *testing.T) *Processor {
	deps.Logger = zerolog.Nop()
	deps.Media = fm
	deps.WorkDir = t.TempDir()
	return New(deps)
}

type progressLog struct {
	mu       sync.Mutex
	percents []int
}

func (pl *progressLog) fn(percent int, msg string) {
	pl.mu.Lock()
	pl.percents = append(pl.percents, percent)
	pl.mu.Unlock()
}

func (pl *progressLog) assertMonotonic(t *testing.T) {
	t.Helper()
	pl.mu.Lock()
	defer pl.mu.Unlock()
	for i := 1; i < len(pl.percents); i++ {
		if pl.percents[i] < pl.percents[i-1] {
			t.Fatalf("progress went backwards at %d: %v", i, pl.percents)
		}
	}
}

func TestSilenceRemovalTrimsTimeline(t *testing.T) {
	fm := &fakeMedia{info: tenSecondClip()}
	p := newTestProcessor(fm, Deps{
		Segment: segmentsOf(silence.SpokenInterval{Start: 2800 * time.Millisecond, End: 7200 * time.Millisecond}),
	}, t)

	pl := &progressLog{}
	res := p.Process(context.Background(), writeInput(t), filepath.Join(t.TempDir(), "out.mp4"),
		Options{RemoveSilence: true, Silence: silence.DefaultParams()}, pl.fn)

	if !res.Success {
		t.Fatalf("job failed: %s", res.Message)
	}
	if len(fm.segments) != 1 {
		t.Fatalf("expected 1 segment cut, got %d", len(fm.segments))
	}
	seg := fm.segments[0]
	if seg.Start != 2800*time.Millisecond || seg.End != 7200*time.Millisecond {
		t.Errorf("segment window = [%v, %v]", seg.Start, seg.End)
	}
	if fm.concats != 1 {
		t.Errorf("expected 1 concat, got %d", fm.concats)
	}
	// The final encode reads the trimmed file, not the 10s original.
	last := fm.lastRun()
	if len(last) < 2 || !strings.Contains(last[1], "trimmed.mp4") {
		t.Errorf("final encode should use the trimmed clip: %v", last)
	}

	pl.assertMonotonic(t)
	if n := len(pl.percents); n == 0 || pl.percents[n-1] != 100 {
		t.Errorf("progress must end at 100, got %v", pl.percents)
	}
}

func TestEnhancementDisabledIsNoOp(t *testing.T) {
	fm := &fakeMedia{info: tenSecondClip()}
	p := newTestProcessor(fm, Deps{}, t)

	input := writeInput(t)
	res := p.Process(context.Background(), input, filepath.Join(t.TempDir(), "out.mp4"), Options{}, nil)
	if !res.Success {
		t.Fatalf("job failed: %s", res.Message)
	}
	if fm.analyses != 0 {
		t.Error("disabled enhancement must not analyze volume")
	}
	if len(fm.runs) != 1 {
		t.Fatalf("expected only the final encode, got %d runs", len(fm.runs))
	}
	if fm.runs[0][1] != input {
		t.Errorf("final encode should read the untouched input, got %q", fm.runs[0][1])
	}
}

func TestMissingOverlayAssetStillSucceeds(t *testing.T) {
	dir := t.TempDir()
	logo := filepath.Join(dir, "logo.png")
	if err := os.WriteFile(logo, []byte("stub"), 0644); err != nil {
		t.Fatal(err)
	}

	fm := &fakeMedia{info: tenSecondClip()}
	p := newTestProcessor(fm, Deps{}, t)

	opts := Options{
		Overlays: []overlay.Item{
			{Kind: overlay.KindImage, Path: logo, Start: 0, End: 2 * time.Second},
			{Kind: overlay.KindImage, Path: filepath.Join(dir, "gone.png"), Start: 0, End: 2 * time.Second},
		},
	}
	res := p.Process(context.Background(), writeInput(t), filepath.Join(dir, "out.mp4"), opts, nil)
	if !res.Success {
		t.Fatalf("missing overlay asset must not fail the job: %s", res.Message)
	}

	joined := strings.Join(fm.lastRun(), " ")
	if !strings.Contains(joined, logo) {
		t.Errorf("surviving overlay missing from encode args: %s", joined)
	}
	if strings.Contains(joined, "gone.png") {
		t.Errorf("skipped overlay leaked into encode args: %s", joined)
	}
}

func TestMissingInputFailsWithoutProgress(t *testing.T) {
	fm := &fakeMedia{info: tenSecondClip()}
	p := newTestProcessor(fm, Deps{}, t)

	pl := &progressLog{}
	res := p.Process(context.Background(), "/nonexistent/clip.mp4", "/tmp/out.mp4", Options{}, pl.fn)

	if res.Success {
		t.Fatal("missing input must fail the job")
	}
	if !strings.Contains(res.Message, "does not exist") {
		t.Errorf("message should name the cause: %q", res.Message)
	}
	if len(pl.percents) != 0 {
		t.Errorf("no progress callbacks expected, got %v", pl.percents)
	}
}

func TestBusyRejectsSecondStart(t *testing.T) {
	info := tenSecondClip()
	info.HasAudio = false
	fm := &fakeMedia{info: info, block: make(chan struct{})}
	p := newTestProcessor(fm, Deps{}, t)

	input := writeInput(t)
	events, err := p.Start(context.Background(), input, filepath.Join(t.TempDir(), "a.mp4"), Options{})
	if err != nil {
		t.Fatal(err)
	}

	// Wait for the first job to reach the blocking encode.
	deadline := time.After(5 * time.Second)
	for !p.Busy() || len(fm.lastRun()) == 0 {
		select {
		case <-deadline:
			t.Fatal("first job never reached the encode stage")
		case <-time.After(time.Millisecond):
		}
	}

	res := p.Process(context.Background(), input, filepath.Join(t.TempDir(), "b.mp4"), Options{}, nil)
	if res.Success {
		t.Fatal("second start must be rejected while busy")
	}
	if res.Message != ErrBusy.Error() {
		t.Errorf("expected busy message, got %q", res.Message)
	}

	close(fm.block)
	for range events {
	}
	if p.Busy() {
		t.Error("processor should be idle after the job drains")
	}
}

func TestAllSilentInputKeepsFullClip(t *testing.T) {
	fm := &fakeMedia{info: tenSecondClip()}
	p := newTestProcessor(fm, Deps{Segment: segmentsOf()}, t)

	input := writeInput(t)
	res := p.Process(context.Background(), input, filepath.Join(t.TempDir(), "out.mp4"),
		Options{RemoveSilence: true, Silence: silence.DefaultParams()}, nil)

	if !res.Success {
		t.Fatalf("all-silent input must degrade, not fail: %s", res.Message)
	}
	if len(fm.segments) != 0 || fm.concats != 0 {
		t.Error("no trim expected for an all-silent input")
	}
	if fm.lastRun()[1] != input {
		t.Errorf("final encode should read the full clip, got %q", fm.lastRun()[1])
	}
}

func TestTranscriptionServiceFailureIsFatal(t *testing.T) {
	fm := &fakeMedia{info: tenSecondClip()}
	p := newTestProcessor(fm, Deps{
		Engine:  &fakeEngine{err: errors.New("model file unreadable")},
		Segment: segmentsOf(silence.SpokenInterval{Start: time.Second, End: 3 * time.Second}),
	}, t)

	res := p.Process(context.Background(), writeInput(t), filepath.Join(t.TempDir(), "out.mp4"),
		Options{Captions: true, RemoveSilence: true, Silence: silence.DefaultParams()}, nil)

	if res.Success {
		t.Fatal("service failure must abort the job")
	}
	if !strings.Contains(res.Message, "transcription failed") {
		t.Errorf("message should name the stage: %q", res.Message)
	}
}

func TestUnrecognizableIntervalSkipsCaptions(t *testing.T) {
	fm := &fakeMedia{info: tenSecondClip()}
	p := newTestProcessor(fm, Deps{
		Engine: &fakeEngine{err: fmt.Errorf("interval: %w", transcribe.ErrNoSpeech)},
	}, t)

	res := p.Process(context.Background(), writeInput(t), filepath.Join(t.TempDir(), "out.mp4"),
		Options{Captions: true}, nil)
	if !res.Success {
		t.Fatalf("unrecognizable audio must degrade, not fail: %s", res.Message)
	}
	if strings.Contains(strings.Join(fm.lastRun(), " "), "ass=") {
		t.Error("no subtitle layer expected when nothing transcribed")
	}
}

func TestCaptionsRemappedToTrimmedTimeline(t *testing.T) {
	fm := &fakeMedia{info: tenSecondClip()}

	var assDoc string
	fm.onRun = func(args []string) {
		// The encode's primary input lives in the scratch directory, next to
		// the rendered subtitle file.
		if len(args) > 1 && strings.Contains(args[1], "trimmed.mp4") {
			data, _ := os.ReadFile(filepath.Join(filepath.Dir(args[1]), "captions.ass"))
			assDoc = string(data)
		}
	}

	p := newTestProcessor(fm, Deps{
		Engine:  &fakeEngine{text: "hello world one two"},
		Segment: segmentsOf(silence.SpokenInterval{Start: 2800 * time.Millisecond, End: 7200 * time.Millisecond}),
	}, t)

	res := p.Process(context.Background(), writeInput(t), filepath.Join(t.TempDir(), "out.mp4"),
		Options{Captions: true, WordsPerLine: 2, RemoveSilence: true, Silence: silence.DefaultParams()}, nil)
	if !res.Success {
		t.Fatalf("job failed: %s", res.Message)
	}

	// The spoken run [2.8s, 7.2s] becomes [0s, 4.4s] after the trim.
	if !strings.Contains(assDoc, "Dialogue: 0,0:00:00.00,0:00:02.20,Caption,,0,0,0,,hello world") {
		t.Errorf("first caption not remapped to the trimmed timeline:\n%s", assDoc)
	}
	if !strings.Contains(assDoc, "Dialogue: 0,0:00:02.20,0:00:04.40,Caption,,0,0,0,,one two") {
		t.Errorf("second caption not remapped to the trimmed timeline:\n%s", assDoc)
	}
}

func TestAutoCropWithoutAnalyzerUsesCenter(t *testing.T) {
	fm := &fakeMedia{info: tenSecondClip()}
	p := newTestProcessor(fm, Deps{}, t)

	res := p.Process(context.Background(), writeInput(t), filepath.Join(t.TempDir(), "out.mp4"),
		Options{AutoCrop: true, AspectRatio: 9.0 / 16.0}, nil)
	if !res.Success {
		t.Fatalf("job failed: %s", res.Message)
	}

	// 1080 * 9/16 = 607 -> 606 even; centered at (1920-606)/2 = 657.
	joined := strings.Join(fm.lastRun(), " ")
	if !strings.Contains(joined, "crop=606:1080:657:0") {
		t.Errorf("center crop missing from encode args: %s", joined)
	}
}

func TestAutoCropWithAnalyzerPlansDynamicCrop(t *testing.T) {
	traj := &track.Trajectory{
		Samples: []track.Sample{
			{T: 0, CenterX: 400, CenterY: 540},
			{T: 200 * time.Millisecond, CenterX: 1500, CenterY: 540},
		},
		SampleFPS: 5,
		Detected:  true,
	}
	traj.Smoothed = traj.Samples

	fm := &fakeMedia{info: tenSecondClip()}
	p := newTestProcessor(fm, Deps{Analyzer: &fakeAnalyzer{traj: traj}}, t)

	res := p.Process(context.Background(), writeInput(t), filepath.Join(t.TempDir(), "out.mp4"),
		Options{AutoCrop: true, AspectRatio: 9.0 / 16.0}, nil)
	if !res.Success {
		t.Fatalf("job failed: %s", res.Message)
	}

	joined := strings.Join(fm.lastRun(), " ")
	if !strings.Contains(joined, "sendcmd=") {
		t.Errorf("moving subject should produce a sendcmd-driven crop: %s", joined)
	}
}

func TestSubjectAnalysisFailureFallsBackToCenter(t *testing.T) {
	fm := &fakeMedia{info: tenSecondClip()}
	p := newTestProcessor(fm, Deps{Analyzer: &fakeAnalyzer{err: errors.New("decoder crashed")}}, t)

	res := p.Process(context.Background(), writeInput(t), filepath.Join(t.TempDir(), "out.mp4"),
		Options{AutoCrop: true, AspectRatio: 9.0 / 16.0}, nil)
	if !res.Success {
		t.Fatalf("analysis failure must degrade to center crop: %s", res.Message)
	}
	if !strings.Contains(strings.Join(fm.lastRun(), " "), "crop=606:1080:657:0") {
		t.Error("expected static center crop fallback")
	}
}

func TestNoAudioStreamContinues(t *testing.T) {
	info := tenSecondClip()
	info.HasAudio = false
	fm := &fakeMedia{info: info}
	p := newTestProcessor(fm, Deps{Engine: &fakeEngine{text: "never called"}}, t)

	res := p.Process(context.Background(), writeInput(t), filepath.Join(t.TempDir(), "out.mp4"),
		Options{Captions: true, RemoveSilence: true, Silence: silence.DefaultParams()}, nil)
	if !res.Success {
		t.Fatalf("silent source must still produce output: %s", res.Message)
	}
	joined := strings.Join(fm.lastRun(), " ")
	if !strings.Contains(joined, "-an") {
		t.Errorf("audioless encode should disable the audio bus: %s", joined)
	}
}

func TestProbeFailureIsFatal(t *testing.T) {
	fm := &fakeMedia{probeErr: errors.New("no video stream")}
	p := newTestProcessor(fm, Deps{}, t)

	res := p.Process(context.Background(), writeInput(t), "/tmp/out.mp4", Options{}, nil)
	if res.Success {
		t.Fatal("probe failure must fail the job")
	}
	if !strings.Contains(res.Message, "probe failed") {
		t.Errorf("message should name the stage: %q", res.Message)
	}
}

func TestOutputExtensionNormalized(t *testing.T) {
	fm := &fakeMedia{info: tenSecondClip()}
	p := newTestProcessor(fm, Deps{}, t)

	out := filepath.Join(t.TempDir(), "final.avi")
	res := p.Process(context.Background(), writeInput(t), out, Options{}, nil)
	if !res.Success {
		t.Fatalf("job failed: %s", res.Message)
	}
	last := fm.lastRun()
	if got := last[len(last)-1]; !strings.HasSuffix(got, "final.mp4") {
		t.Errorf("output should be normalized to .mp4, got %q", got)
	}
}

func TestAudioOverlayJoinsMix(t *testing.T) {
	dir := t.TempDir()
	sfx := filepath.Join(dir, "whoosh.wav")
	if err := os.WriteFile(sfx, []byte("stub"), 0644); err != nil {
		t.Fatal(err)
	}

	fm := &fakeMedia{info: tenSecondClip()}
	p := newTestProcessor(fm, Deps{}, t)

	res := p.Process(context.Background(), writeInput(t), filepath.Join(dir, "out.mp4"),
		Options{Overlays: []overlay.Item{{Kind: overlay.KindAudio, Path: sfx, Start: 2 * time.Second}}}, nil)
	if !res.Success {
		t.Fatalf("job failed: %s", res.Message)
	}

	joined := strings.Join(fm.lastRun(), " ")
	for _, want := range []string{"adelay=2000", "amix=inputs=2", sfx} {
		if !strings.Contains(joined, want) {
			t.Errorf("audio mix missing %q: %s", want, joined)
		}
	}
}
