package client

import (
	"encoding/base64"
	"io"
	"os"
)

// DefaultReplyMIME is the content type assumed for assembled reply audio
// when the server does not say otherwise. The server streams raw PCM at
// 24 kHz by default.
const DefaultReplyMIME = "audio/pcm"

// ReplyAudio is one playable reply: the in-order concatenation of every
// audio chunk between an audio_start and its audio_end, decoded from
// base64. The caller owns it once delivered through OnResponse.
type ReplyAudio struct {
	data []byte
	mime string
}

func newReplyAudio(data []byte, mime string) *ReplyAudio {
	if mime == "" {
		mime = DefaultReplyMIME
	}
	return &ReplyAudio{data: data, mime: mime}
}

// Bytes returns the assembled audio bytes.
func (r *ReplyAudio) Bytes() []byte {
	return r.data
}

// Len returns the assembled length in bytes.
func (r *ReplyAudio) Len() int {
	return len(r.data)
}

// MIME returns the audio content type.
func (r *ReplyAudio) MIME() string {
	return r.mime
}

// DataURL returns an addressable data: URL for the assembled audio,
// suitable for handing straight to a player.
func (r *ReplyAudio) DataURL() string {
	return "data:" + r.mime + ";base64," + base64.StdEncoding.EncodeToString(r.data)
}

// WriteTo writes the assembled audio to w.
func (r *ReplyAudio) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(r.data)
	return int64(n), err
}

// WriteFile saves the assembled audio to path.
func (r *ReplyAudio) WriteFile(path string) error {
	return os.WriteFile(path, r.data, 0o644)
}
