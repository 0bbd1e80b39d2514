// Package transcribe converts spoken audio intervals into timed caption
// lines via a pluggable speech-to-text engine.
package transcribe

import (
	"context"
	"errors"
)

// ErrNoSpeech reports audio the engine could not make sense of. The pipeline
// treats it as recoverable: captions for that interval are skipped and the
// job continues. Any other engine error is a service failure and fatal.
var ErrNoSpeech = errors.New("no recognizable speech")

// Engine is the speech-to-text capability: one blocking call per audio
// interval, returning the plain transcript text.
type Engine interface {
	Transcribe(ctx context.Context, wavPath string) (string, error)
}
