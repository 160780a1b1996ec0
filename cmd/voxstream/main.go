package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/voxstream/voxstream/capture"
	"github.com/voxstream/voxstream/client"
)

// voxstream streams an audio file to a session server as if it were a
// live microphone, prints the transcript and reply, and optionally
// saves the synthesized reply audio.
func main() {
	var (
		url       = flag.String("url", "ws://localhost:8080/v1/session", "session endpoint")
		sessionID = flag.String("session", "", "session ID (generated when empty)")
		token     = flag.String("token", "", "session token (optional)")
		inPath    = flag.String("in", "", "audio file to stream (required)")
		outPath   = flag.String("out", "", "write reply audio to this file")
		interval  = flag.Duration("interval", capture.DefaultInterval, "frame cadence")
		frameSize = flag.Int("frame-size", capture.DefaultFrameSize, "frame size in bytes")
		verbose   = flag.Bool("v", false, "debug logging")
	)
	flag.Parse()

	if *inPath == "" {
		flag.Usage()
		os.Exit(2)
	}

	logger := newLogger(*verbose)
	defer logger.Sync()

	if *sessionID == "" {
		*sessionID = client.NewSessionID()
	}

	if err := run(logger, *url, *sessionID, *token, *inPath, *outPath, *interval, *frameSize); err != nil {
		logger.Fatal("Session failed", zap.Error(err))
	}
}

func run(logger *zap.Logger, url, sessionID, token, inPath, outPath string, interval time.Duration, frameSize int) error {
	in, err := os.Open(inPath)
	if err != nil {
		return fmt.Errorf("failed to open input: %w", err)
	}

	// replyDone closes once the turn finished, successfully or not.
	replyDone := make(chan error, 1)

	c := client.New(client.Config{
		URL:       url,
		SessionID: sessionID,
		Token:     token,
		Logger:    logger,
		OnTranscript: func(tr client.Transcript) {
			fmt.Printf("you:       %s\n", tr.Text)
		},
		OnResponse: func(resp client.Response) {
			if resp.Text != "" {
				fmt.Printf("assistant: %s\n", resp.Text)
				if resp.Metrics != nil {
					logger.Info("Turn latency",
						zap.Int64("sttMs", resp.Metrics.SttMs),
						zap.Int64("llmMs", resp.Metrics.LlmMs),
						zap.Int64("ttsMs", resp.Metrics.TtsMs),
						zap.Int64("totalMs", resp.Metrics.TotalMs))
				}
				return
			}
			if resp.Audio != nil {
				if outPath != "" {
					if err := resp.Audio.WriteFile(outPath); err != nil {
						replyDone <- fmt.Errorf("failed to save reply audio: %w", err)
						return
					}
					fmt.Printf("saved %d bytes of reply audio to %s\n", resp.Audio.Len(), outPath)
				} else {
					fmt.Printf("received %d bytes of reply audio\n", resp.Audio.Len())
				}
				replyDone <- nil
			}
		},
		OnError: func(err error) {
			replyDone <- err
		},
	})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := c.Connect(ctx); err != nil {
		in.Close()
		return fmt.Errorf("failed to connect: %w", err)
	}
	defer c.Close()

	logger.Info("Session connected",
		zap.String("sessionID", sessionID),
		zap.String("url", url))

	pump := capture.NewPump(capture.NewReaderSource(in), c.SendAudio, capture.Config{
		Interval:  interval,
		FrameSize: frameSize,
		Logger:    logger,
	})
	if err := pump.Start(); err != nil {
		return fmt.Errorf("failed to start capture: %w", err)
	}
	defer pump.Stop()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)

	select {
	case <-pump.Done():
		// Input exhausted, seal the utterance.
		if err := c.Commit(); err != nil {
			return fmt.Errorf("failed to commit: %w", err)
		}
	case <-sig:
		return fmt.Errorf("interrupted while streaming")
	case <-c.Done():
		return fmt.Errorf("connection lost while streaming")
	}

	select {
	case err := <-replyDone:
		return err
	case <-sig:
		return fmt.Errorf("interrupted while waiting for reply")
	case <-time.After(60 * time.Second):
		return fmt.Errorf("timed out waiting for reply")
	}
}

func newLogger(verbose bool) *zap.Logger {
	cfg := zap.NewDevelopmentConfig()
	if !verbose {
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	} else {
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	logger, err := cfg.Build()
	if err != nil {
		panic(err)
	}
	return logger
}
