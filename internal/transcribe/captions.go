package transcribe

import (
	"strings"
	"time"

	"github.com/reelforge/reelforge/internal/silence"
)

// CaptionLine is one rendered subtitle line with its display window. Created
// fresh per job and never mutated after creation.
type CaptionLine struct {
	Text  string
	Start time.Duration
	End   time.Duration
}

// DefaultWordsPerLine groups captions into short, readable chunks
const DefaultWordsPerLine = 4

// SplitCaptions splits a transcript into caption lines of wordsPerLine words
// and distributes each line's window proportionally across the interval by
// word-count fraction. This is an approximation, not forced alignment: a
// line covering words [j, j+k) of n spans
// [start + j/n*dur, start + (j+k)/n*dur]. Word timing inside an interval is
// therefore only as even as the speaker was.
func SplitCaptions(transcript string, iv silence.SpokenInterval, wordsPerLine int) []CaptionLine {
	words := strings.Fields(transcript)
	if len(words) == 0 {
		return nil
	}
	if wordsPerLine <= 0 {
		wordsPerLine = DefaultWordsPerLine
	}

	n := len(words)
	dur := iv.Duration()

	var lines []CaptionLine
	for j := 0; j < n; j += wordsPerLine {
		k := j + wordsPerLine
		if k > n {
			k = n
		}
		lines = append(lines, CaptionLine{
			Text:  strings.Join(words[j:k], " "),
			Start: iv.Start + time.Duration(float64(dur)*float64(j)/float64(n)),
			End:   iv.Start + time.Duration(float64(dur)*float64(k)/float64(n)),
		})
	}
	return lines
}
