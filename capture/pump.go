package capture

import (
	"io"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	// DefaultInterval is the capture interval: one frame every 250ms.
	DefaultInterval = 250 * time.Millisecond

	// DefaultFrameSize is the bytes captured per interval at the default
	// 16kHz 16-bit mono format: 16000 samples/s * 2 bytes * 0.25s.
	DefaultFrameSize = 8000
)

// Sink consumes one captured frame. The pump hands every frame to the
// sink exactly once and never retransmits: frames the sink cannot
// deliver are accepted as lost.
type Sink func(frame []byte)

// Config tunes a pump. Zero values fall back to the defaults.
type Config struct {
	Interval  time.Duration
	FrameSize int
	Logger    *zap.Logger
}

// Pump owns one exclusive audio source and emits one fixed-size frame
// per interval to its sink until the source is exhausted or Stop is
// called.
type Pump struct {
	src       Source
	sink      Sink
	interval  time.Duration
	frameSize int
	logger    *zap.Logger

	mu      sync.Mutex
	running bool
	stop    chan struct{}
	done    chan struct{}
}

// NewPump creates a pump feeding frames from src into sink.
func NewPump(src Source, sink Sink, cfg Config) *Pump {
	interval := cfg.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	frameSize := cfg.FrameSize
	if frameSize <= 0 {
		frameSize = DefaultFrameSize
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Pump{
		src:       src,
		sink:      sink,
		interval:  interval,
		frameSize: frameSize,
		logger:    logger,
	}
}

// Start begins emitting frames. It fails with ErrCaptureUnavailable when
// no source was provided, and is a no-op on a pump that is already
// running.
func (p *Pump) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.src == nil {
		return ErrCaptureUnavailable
	}
	if p.running {
		return nil
	}

	p.running = true
	p.stop = make(chan struct{})
	p.done = make(chan struct{})

	go p.run(p.stop, p.done)

	p.logger.Info("Capture pump started",
		zap.Duration("interval", p.interval),
		zap.Int("frameSize", p.frameSize))

	return nil
}

func (p *Pump) run(stop, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			frame := make([]byte, p.frameSize)
			n, err := p.src.ReadFrame(frame)
			if n > 0 {
				p.sink(frame[:n])
			}
			if err == io.EOF {
				p.logger.Info("Capture source exhausted")
				p.finish()
				return
			}
			if err != nil {
				p.logger.Error("Capture read failed", zap.Error(err))
				p.finish()
				return
			}
		}
	}
}

func (p *Pump) finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.running = false
}

// Stop halts frame emission and releases the source. Idempotent.
func (p *Pump) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		if p.src != nil {
			p.src.Close()
		}
		return
	}
	p.running = false
	stop := p.stop
	done := p.done
	p.mu.Unlock()

	close(stop)
	<-done
	p.src.Close()

	p.logger.Info("Capture pump stopped")
}

// Done is closed once the pump's emit loop has exited, either from Stop
// or because the source ran dry.
func (p *Pump) Done() <-chan struct{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.done
}
