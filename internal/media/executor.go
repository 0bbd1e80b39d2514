package media

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Executor handles all ffmpeg/ffprobe invocations with progress streaming
type Executor struct {
	logger      zerolog.Logger
	ffmpegPath  string
	ffprobePath string
	threads     int
}

// NewExecutor creates an executor bound to the given binaries. Empty paths
// fall back to PATH lookup of the conventional names.
func NewExecutor(logger zerolog.Logger, ffmpegPath, ffprobePath string, threads int) (*Executor, error) {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}

	resolvedFFmpeg, err := exec.LookPath(ffmpegPath)
	if err != nil {
		return nil, fmt.Errorf("ffmpeg not found: %w", err)
	}
	resolvedFFprobe, err := exec.LookPath(ffprobePath)
	if err != nil {
		return nil, fmt.Errorf("ffprobe not found: %w", err)
	}

	return &Executor{
		logger:      logger.With().Str("component", "ffmpeg").Logger(),
		ffmpegPath:  resolvedFFmpeg,
		ffprobePath: resolvedFFprobe,
		threads:     threads,
	}, nil
}

// Run executes ffmpeg with the given arguments and streams progress
func (e *Executor) Run(ctx context.Context, opts RunOptions) error {
	if len(opts.Args) == 0 {
		return fmt.Errorf("no arguments provided")
	}

	baseArgs := []string{"-y", "-nostdin", "-hide_banner", "-loglevel", "info"}
	if e.threads > 0 {
		baseArgs = append(baseArgs, "-threads", fmt.Sprintf("%d", e.threads))
	}
	baseArgs = append(baseArgs, "-progress", "pipe:2")
	args := append(baseArgs, opts.Args...)

	e.logger.Debug().Strs("args", args).Msg("executing ffmpeg")

	cmd := exec.CommandContext(ctx, e.ffmpegPath, args...)

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("failed to create stderr pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to create stdout pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start ffmpeg: %w", err)
	}

	var g errgroup.Group
	g.Go(func() error {
		streamOutput(stderr, opts.ProgressHandler, opts.LogHandler)
		return nil
	})
	g.Go(func() error {
		scanner := bufio.NewScanner(stdout)
		for scanner.Scan() {
			if opts.LogHandler != nil {
				opts.LogHandler(scanner.Text())
			}
		}
		return nil
	})
	_ = g.Wait()

	if err := cmd.Wait(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("ffmpeg execution failed: %w", err)
	}
	return nil
}

// RunCapture executes ffmpeg and returns the full stderr text. Used by the
// analysis operations that read filter output (volumedetect and friends),
// where ffmpeg writes results to the log rather than to a file.
func (e *Executor) RunCapture(ctx context.Context, args []string) (string, error) {
	var b strings.Builder
	err := e.Run(ctx, RunOptions{
		Args: args,
		LogHandler: func(line string) {
			b.WriteString(line)
			b.WriteByte('\n')
		},
	})
	out := b.String()

	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		// The null muxer runs exit non-zero on some inputs even when the
		// analysis itself produced usable output.
		if out == "" {
			return "", err
		}
	}
	return out, nil
}

// streamOutput parses ffmpeg stderr and dispatches progress blocks. The
// progress fields arrive as key=value lines terminated by a progress= line.
func streamOutput(r io.Reader, progressHandler ProgressFunc, logHandler func(string)) {
	scanner := bufio.NewScanner(r)
	progress := &Progress{}

	for scanner.Scan() {
		line := scanner.Text()
		if logHandler != nil {
			logHandler(line)
		}
		if parseProgressLine(line, progress) {
			if progressHandler != nil && progress.Frame > 0 {
				progressHandler(progress)
			}
			progress = &Progress{}
		}
	}
}

// parseProgressLine folds one stderr line into the progress block being
// accumulated. Returns true when the block is complete.
func parseProgressLine(line string, p *Progress) bool {
	switch {
	case strings.HasPrefix(line, "frame="):
		fmt.Sscanf(line, "frame=%d", &p.Frame)
	case strings.HasPrefix(line, "fps="):
		fmt.Sscanf(line, "fps=%f", &p.FPS)
	case strings.HasPrefix(line, "bitrate="):
		p.Bitrate = valueOf(line)
	case strings.HasPrefix(line, "out_time="), strings.HasPrefix(line, "time="):
		p.Time = valueOf(line)
	case strings.HasPrefix(line, "speed="):
		p.Speed = valueOf(line)
	case strings.HasPrefix(line, "progress="):
		return true
	}
	return false
}

func valueOf(line string) string {
	_, v, _ := strings.Cut(line, "=")
	return strings.TrimSpace(v)
}
