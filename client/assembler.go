package client

import (
	"bytes"
	"encoding/base64"

	"go.uber.org/zap"
)

// assembler accumulates base64 audio fragments between one audio_start
// and its matching audio_end into a single ordered byte buffer. All
// stateful reassembly lives here; the codec stays pure.
type assembler struct {
	buf    bytes.Buffer
	open   bool
	logger *zap.Logger
}

func newAssembler(logger *zap.Logger) *assembler {
	return &assembler{logger: logger}
}

// start opens a new reassembly run, discarding anything left from a
// previous run.
func (a *assembler) start() {
	a.buf.Reset()
	a.open = true
}

// chunk decodes one base64 fragment and appends it in arrival order.
// Fragments outside an open run are protocol errors and are dropped;
// invalid base64 is logged and the fragment skipped, the run continues.
func (a *assembler) chunk(data string) {
	if !a.open {
		a.logger.Warn("Audio chunk received outside an open run, dropping",
			zap.Int("fragmentLen", len(data)))
		return
	}

	decoded, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		a.logger.Warn("Skipping audio fragment with invalid base64",
			zap.Error(err))
		return
	}
	a.buf.Write(decoded)
}

// end closes the run and returns the assembled bytes. ok is false when
// no run was open.
func (a *assembler) end() ([]byte, bool) {
	if !a.open {
		a.logger.Warn("audio_end received with no open run, dropping")
		return nil, false
	}
	a.open = false

	out := make([]byte, a.buf.Len())
	copy(out, a.buf.Bytes())
	a.buf.Reset()
	return out, true
}

// discard drops any partially assembled audio, closing the run.
func (a *assembler) discard() {
	a.open = false
	a.buf.Reset()
}

// receiving reports whether a run is currently open.
func (a *assembler) receiving() bool {
	return a.open
}

// pending returns the number of bytes assembled so far in the open run.
func (a *assembler) pending() int {
	return a.buf.Len()
}
