package repositories

import "context"

// TextToSpeech abstracts speech synthesis. The returned channel streams
// synthesized audio chunks as they are produced and is closed when the
// reply is complete.
type TextToSpeech interface {
	ConvertTextToSpeech(ctx context.Context, text string) (<-chan []byte, error)
}
