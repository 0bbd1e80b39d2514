package transcribe

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// WhisperCPP shells out to a whisper.cpp binary for transcription
type WhisperCPP struct {
	bin      string
	model    string
	language string
}

// NewWhisperCPP creates an adapter around the given binary and model paths
func NewWhisperCPP(binPath, modelPath, language string) *WhisperCPP {
	return &WhisperCPP{bin: binPath, model: modelPath, language: language}
}

// Transcribe runs whisper.cpp over one WAV file and returns the plain text.
// Empty output maps to ErrNoSpeech.
func (w *WhisperCPP) Transcribe(ctx context.Context, wavPath string) (string, error) {
	args := []string{
		"-m", w.model,
		"-f", wavPath,
		"-nt", // no timestamps, plain text on stdout
	}
	if w.language != "" {
		args = append(args, "-l", w.language)
	}

	cmd := exec.CommandContext(ctx, w.bin, args...)
	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("whisper.cpp failed: %w", err)
	}

	text := strings.Join(strings.Fields(string(out)), " ")
	if text == "" {
		return "", ErrNoSpeech
	}
	return text, nil
}
