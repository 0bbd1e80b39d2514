package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/reelforge/reelforge/internal/config"
	"github.com/reelforge/reelforge/internal/enhance"
	"github.com/reelforge/reelforge/internal/logging"
	"github.com/reelforge/reelforge/internal/media"
	"github.com/reelforge/reelforge/internal/overlay"
	"github.com/reelforge/reelforge/internal/overlay/fonts"
	"github.com/reelforge/reelforge/internal/pipeline"
	"github.com/reelforge/reelforge/internal/silence"
	"github.com/reelforge/reelforge/internal/subtitle"
	"github.com/reelforge/reelforge/internal/track"
	"github.com/reelforge/reelforge/internal/transcribe"
	"github.com/reelforge/reelforge/pkg/util"
)

var (
	cfgFile string
	verbose bool
)

func main() {
	_ = godotenv.Load()

	ctx := context.Background()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "reelforge",
	Short: "reelforge - social-media video processing pipeline",
	Long:  "Turns raw footage into short-form deliverables: silence removal, transcribed captions, subject-tracked cropping, overlays, and a final H.264/AAC encode.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logging.Init(verbose)

		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}

		ctx := config.WithConfig(cmd.Context(), cfg)
		cmd.SetContext(ctx)
		return nil
	},
}

var (
	processOutput   string
	processCrop     bool
	processAspect   string
	processSilence  bool
	processCaptions bool
	processEnhance  bool
	processDelete   bool
	processWater    string
	processTitle    string
)

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./reelforge.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	processCmd.Flags().StringVarP(&processOutput, "output", "o", "", "output file path")
	processCmd.Flags().BoolVar(&processCrop, "crop", false, "subject-tracking crop to the target aspect")
	processCmd.Flags().StringVar(&processAspect, "aspect", "9:16", "target aspect ratio for --crop")
	processCmd.Flags().BoolVar(&processSilence, "remove-silence", false, "trim silent runs from the timeline")
	processCmd.Flags().BoolVar(&processCaptions, "captions", false, "transcribe and burn in captions")
	processCmd.Flags().BoolVar(&processEnhance, "enhance", false, "apply video and audio cleanup")
	processCmd.Flags().BoolVar(&processDelete, "delete-original", false, "delete the input file on success")
	processCmd.Flags().StringVar(&processWater, "watermark", "", "image overlaid top-right for the whole clip")
	processCmd.Flags().StringVar(&processTitle, "title", "", "text overlaid during the first seconds")

	rootCmd.AddCommand(processCmd)
	rootCmd.AddCommand(probeCmd)
	rootCmd.AddCommand(silenceCmd)
	rootCmd.AddCommand(transcribeCmd)
}

var processCmd = &cobra.Command{
	Use:   "process [input video]",
	Short: "Run the full processing pipeline on a video",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.FromContext(cmd.Context())
		input := args[0]

		output := processOutput
		if output == "" {
			output = util.ReplaceExt(input, "") + "_reel.mp4"
		}

		proc, err := buildProcessor(cfg)
		if err != nil {
			return err
		}

		opts, err := buildOptions(cfg)
		if err != nil {
			return err
		}

		start := time.Now()
		res := proc.Process(cmd.Context(), input, output, opts, func(percent int, msg string) {
			log.Info().Int("percent", percent).Msg(msg)
		})
		if !res.Success {
			return fmt.Errorf("%s", res.Message)
		}

		log.Info().
			Dur("elapsed", time.Since(start)).
			Msg(res.Message)
		return nil
	},
}

var probeCmd = &cobra.Command{
	Use:   "probe [input video]",
	Short: "Inspect a media file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.FromContext(cmd.Context())
		exec, err := newExecutor(cfg)
		if err != nil {
			return err
		}

		info, err := exec.Probe(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		fmt.Printf("duration:    %s\n", util.FormatDuration(info.Duration))
		fmt.Printf("resolution:  %dx%d\n", info.Width, info.Height)
		fmt.Printf("fps:         %.3f\n", info.FPS)
		fmt.Printf("video codec: %s\n", info.VideoCodec)
		if info.HasAudio {
			fmt.Printf("audio codec: %s\n", info.AudioCodec)
		} else {
			fmt.Println("audio:       none")
		}
		return nil
	},
}

var silenceCmd = &cobra.Command{
	Use:   "silence [input video]",
	Short: "List the spoken intervals of a video",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.FromContext(cmd.Context())
		exec, err := newExecutor(cfg)
		if err != nil {
			return err
		}

		wav, cleanup, err := extractAnalysisWAV(cmd.Context(), exec, args[0])
		if err != nil {
			return err
		}
		defer cleanup()

		intervals, dur, err := silence.SegmentWAV(wav, silenceParams(cfg))
		if err != nil {
			return err
		}
		if len(intervals) == 0 {
			fmt.Println("no speech found")
			return nil
		}

		for _, iv := range intervals {
			fmt.Printf("%s  ->  %s  (%s)\n",
				util.FormatDuration(iv.Start), util.FormatDuration(iv.End), iv.Duration().Round(10*time.Millisecond))
		}
		fmt.Printf("spoken: %s of %s\n", silence.TotalSpoken(intervals).Round(10*time.Millisecond), dur.Round(10*time.Millisecond))
		return nil
	},
}

var transcribeCmd = &cobra.Command{
	Use:   "transcribe [input video]",
	Short: "Print a video's transcript",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.FromContext(cmd.Context())
		exec, err := newExecutor(cfg)
		if err != nil {
			return err
		}

		wav, cleanup, err := extractAnalysisWAV(cmd.Context(), exec, args[0])
		if err != nil {
			return err
		}
		defer cleanup()

		engine := transcribe.NewWhisperCPP(cfg.Transcribe.WhisperBin, cfg.Transcribe.WhisperModel, cfg.Transcribe.Language)
		text, err := engine.Transcribe(cmd.Context(), wav)
		if err != nil {
			return err
		}
		fmt.Println(text)
		return nil
	},
}

func newExecutor(cfg *config.Config) (*media.Executor, error) {
	return media.NewExecutor(log.Logger, cfg.FFmpeg.BinaryPath, cfg.FFmpeg.ProbePath, cfg.FFmpeg.Threads)
}

func buildProcessor(cfg *config.Config) (*pipeline.Processor, error) {
	exec, err := newExecutor(cfg)
	if err != nil {
		return nil, err
	}

	var detector track.Detector = track.NewSkinToneDetector()
	if cfg.Tracker.DetectorCmd != "" {
		detector = track.NewExecDetector(cfg.Tracker.DetectorCmd)
	}
	tracker := track.New(log.Logger, exec, detector, track.Options{
		SampleFPS:       cfg.Tracker.SampleFPS,
		SmoothingWindow: cfg.Tracker.SmoothingWindow,
	})

	var engine transcribe.Engine
	if cfg.Transcribe.WhisperBin != "" {
		engine = transcribe.NewWhisperCPP(cfg.Transcribe.WhisperBin, cfg.Transcribe.WhisperModel, cfg.Transcribe.Language)
	}

	return pipeline.New(pipeline.Deps{
		Logger:   log.Logger,
		Media:    exec,
		Engine:   engine,
		Analyzer: tracker,
		Fonts:    fonts.NewDirResolver(cfg.Subtitles.FontDirs),
		WorkDir:  cfg.WorkDir,
	}), nil
}

func buildOptions(cfg *config.Config) (pipeline.Options, error) {
	aspect, err := parseAspect(processAspect)
	if err != nil {
		return pipeline.Options{}, err
	}

	opts := pipeline.Options{
		AutoCrop:       processCrop,
		AspectRatio:    aspect,
		RemoveSilence:  processSilence,
		Silence:        silenceParams(cfg),
		Captions:       processCaptions,
		WordsPerLine:   cfg.Transcribe.WordsPerLine,
		DeleteOriginal: processDelete,
		Subtitle: subtitle.Style{
			FontName:     cfg.Subtitles.FontName,
			FontSize:     cfg.Subtitles.FontSize,
			PrimaryColor: cfg.Subtitles.FontColor,
			OutlineColor: cfg.Subtitles.OutlineColor,
			OutlineWidth: cfg.Subtitles.OutlineWidth,
			MarginV:      60,
		},
		Encode: media.EncodeSettings{
			CRF:    cfg.FFmpeg.CRF,
			Preset: cfg.FFmpeg.Preset,
		},
	}

	if processEnhance {
		opts.EnhanceVideo = true
		opts.EnhanceAudio = true
		opts.Video = enhance.VideoParams{
			Denoise:         cfg.Enhance.Denoise,
			Sharpen:         cfg.Enhance.Sharpen,
			Contrast:        cfg.Enhance.Contrast,
			Brightness:      cfg.Enhance.Brightness,
			Saturation:      cfg.Enhance.Saturation,
			Gamma:           cfg.Enhance.Gamma,
			ShadowHighlight: cfg.Enhance.ShadowHighlight,
		}
		opts.Audio = enhance.AudioParams{
			NoiseReduction:  cfg.Enhance.NoiseReduction,
			NormalizeToDBFS: cfg.Enhance.NormalizeToDBFS,
		}
	}

	opts.Overlays = append(opts.Overlays, configOverlays(cfg)...)

	if processWater != "" {
		opts.Overlays = append(opts.Overlays, overlay.Item{
			Kind:     overlay.KindImage,
			Path:     processWater,
			Start:    0,
			End:      24 * time.Hour, // clamped by the clip length at render time
			Position: overlay.Position{Anchor: overlay.AnchorTopRight},
		})
	}
	if processTitle != "" {
		opts.Overlays = append(opts.Overlays, overlay.Item{
			Kind:     overlay.KindText,
			Text:     processTitle,
			Start:    0,
			End:      3 * time.Second,
			FontName: cfg.Subtitles.FontName,
			FontSize: cfg.Subtitles.FontSize + 16,
			Color:    cfg.Subtitles.FontColor,
			Position: overlay.Position{Anchor: overlay.AnchorTop},
		})
	}

	return opts, nil
}

// configOverlays converts the config file's overlay declarations into items.
// Invalid entries are dropped later by the compositor's validation.
func configOverlays(cfg *config.Config) []overlay.Item {
	items := make([]overlay.Item, 0, len(cfg.Overlays))
	for _, oc := range cfg.Overlays {
		items = append(items, overlay.Item{
			Kind:        overlay.Kind(oc.Kind),
			Path:        oc.Path,
			Text:        oc.Text,
			Start:       time.Duration(oc.StartMS) * time.Millisecond,
			End:         time.Duration(oc.EndMS) * time.Millisecond,
			FontName:    oc.FontName,
			FontSize:    oc.FontSize,
			Color:       oc.Color,
			StrokeColor: oc.StrokeColor,
			StrokeWidth: oc.StrokeWidth,
			Opacity:     oc.Opacity,
			Volume:      oc.Volume,
			Position: overlay.Position{
				Anchor: overlay.Anchor(oc.Anchor),
				X:      oc.X,
				Y:      oc.Y,
			},
		})
	}
	return items
}

func silenceParams(cfg *config.Config) silence.Params {
	return silence.Params{
		ThresholdDBFS: cfg.Silence.ThresholdDBFS,
		MinSilence:    time.Duration(cfg.Silence.MinSilenceMS) * time.Millisecond,
		Pad:           time.Duration(cfg.Silence.PaddingMS) * time.Millisecond,
	}
}

// parseAspect parses "9:16" style ratios into width/height
func parseAspect(s string) (float64, error) {
	w, h, ok := strings.Cut(s, ":")
	if !ok {
		return 0, fmt.Errorf("invalid aspect ratio %q, want W:H", s)
	}
	wf, err1 := strconv.ParseFloat(w, 64)
	hf, err2 := strconv.ParseFloat(h, 64)
	if err1 != nil || err2 != nil || wf <= 0 || hf <= 0 {
		return 0, fmt.Errorf("invalid aspect ratio %q, want W:H", s)
	}
	return wf / hf, nil
}

// extractAnalysisWAV pulls a video's audio into a temp WAV for the
// diagnostic subcommands.
func extractAnalysisWAV(ctx context.Context, exec *media.Executor, input string) (string, func(), error) {
	dir, err := os.MkdirTemp("", "reelforge-")
	if err != nil {
		return "", nil, err
	}
	cleanup := func() { _ = os.RemoveAll(dir) }

	wav := filepath.Join(dir, "audio.wav")
	if err := exec.ExtractAudio(ctx, input, wav, media.DefaultAnalysisFormat(), nil); err != nil {
		cleanup()
		return "", nil, err
	}
	return wav, cleanup, nil
}
