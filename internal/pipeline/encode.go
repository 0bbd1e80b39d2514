package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/reelforge/reelforge/internal/media"
	"github.com/reelforge/reelforge/internal/overlay"
)

// inputRef ties an overlay layer to its ffmpeg input index
type inputRef struct {
	index int
	layer overlay.Layer
}

// buildEncodeArgs assembles the final encode: crop, burned-in subtitles,
// overlay and drawtext layers on the video bus, delayed and mixed overlay
// audio on the audio bus.
func (p *Processor) buildEncodeArgs(j *job) ([]string, error) {
	args := []string{"-i", j.video}

	var imageRefs, audioRefs []inputRef
	next := 1
	for _, l := range j.layers {
		switch l.Kind {
		case overlay.KindImage:
			args = append(args, "-i", l.Path)
			imageRefs = append(imageRefs, inputRef{index: next, layer: l})
			next++
		case overlay.KindAudio:
			args = append(args, "-i", l.Path)
			audioRefs = append(audioRefs, inputRef{index: next, layer: l})
			next++
		}
	}

	var chains []string
	v := "[0:v]"
	vIdx := 0
	nextV := func() string {
		vIdx++
		return fmt.Sprintf("[v%d]", vIdx)
	}

	if j.plan != nil {
		out := nextV()
		if j.plan.Static() {
			chains = append(chains, fmt.Sprintf("%scrop=%d:%d:%d:0%s",
				v, j.plan.Width, j.plan.Height, j.plan.StaticOffset(), out))
		} else {
			script := filepath.Join(j.scratch, "crop.cmd")
			if err := os.WriteFile(script, []byte(j.plan.SendCmdScript()), 0644); err != nil {
				return nil, fmt.Errorf("could not write crop script: %w", err)
			}
			chains = append(chains, fmt.Sprintf("%ssendcmd=f='%s',crop=%d:%d:%d:0%s",
				v, media.EscapeFilterPath(script),
				j.plan.Width, j.plan.Height, j.plan.OffsetAt(0), out))
		}
		v = out
	}

	if j.assPath != "" {
		out := nextV()
		chains = append(chains, fmt.Sprintf("%sass='%s'%s", v, media.EscapeFilterPath(j.assPath), out))
		v = out
	}

	for _, ref := range imageRefs {
		in := fmt.Sprintf("[%d:v]", ref.index)
		if ref.layer.Opacity > 0 && ref.layer.Opacity < 1 {
			faded := fmt.Sprintf("[ov%d]", ref.index)
			chains = append(chains, fmt.Sprintf("[%d:v]format=rgba,colorchannelmixer=aa=%.3f%s",
				ref.index, ref.layer.Opacity, faded))
			in = faded
		}
		out := nextV()
		start := ref.layer.Start.Seconds()
		end := (ref.layer.Start + ref.layer.Duration).Seconds()
		chains = append(chains, fmt.Sprintf("%s%soverlay=%s:%s:enable='between(t,%.3f,%.3f)'%s",
			v, in, ref.layer.X, ref.layer.Y, start, end, out))
		v = out
	}

	for _, l := range j.layers {
		if l.Kind != overlay.KindText {
			continue
		}
		out := nextV()
		chains = append(chains, v+l.DrawText+out)
		v = out
	}

	// Audio bus: the base track plus every overlay sound, each delayed to
	// its start and volume-scaled, mixed down to one stream.
	var mixInputs []string
	if j.hasAudio {
		mixInputs = append(mixInputs, "[0:a]")
	}
	for i, ref := range audioRefs {
		lbl := fmt.Sprintf("[sfx%d]", i)
		chains = append(chains, fmt.Sprintf("[%d:a]volume=%.3f,adelay=%d:all=1%s",
			ref.index, ref.layer.Volume, ref.layer.Start.Milliseconds(), lbl))
		mixInputs = append(mixInputs, lbl)
	}

	audioMap := ""
	switch {
	case len(mixInputs) == 0:
	case len(mixInputs) == 1:
		audioMap = mixInputs[0]
	default:
		// duration=first pins the mix to the base track; without a base the
		// longest overlay wins.
		durPolicy := "first"
		if !j.hasAudio {
			durPolicy = "longest"
		}
		chains = append(chains, fmt.Sprintf("%samix=inputs=%d:duration=%s:normalize=0[aout]",
			strings.Join(mixInputs, ""), len(mixInputs), durPolicy))
		audioMap = "[aout]"
	}

	if len(chains) > 0 {
		args = append(args, "-filter_complex", strings.Join(chains, ";"))
	}
	args = append(args, "-map", mapSpec(v))
	if audioMap == "" {
		args = append(args, "-an")
	} else {
		args = append(args, "-map", mapSpec(audioMap))
	}

	args = append(args, j.opts.Encode.EncodeArgs()...)
	args = append(args, "-movflags", "+faststart", j.output)
	return args, nil
}

// mapSpec converts plain stream labels like [0:v] back to the 0:v form -map
// expects; filter output labels keep their brackets.
func mapSpec(label string) string {
	switch label {
	case "[0:v]":
		return "0:v"
	case "[0:a]":
		return "0:a"
	}
	return label
}
