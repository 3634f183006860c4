package capture

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/gsSaber/ztalk/pkg/audio"
	"github.com/gsSaber/ztalk/pkg/vad"
)

// Sentinel errors for the capture package.
var (
	// ErrVADUnavailable indicates capture cannot start because the VAD
	// subsystem failed to initialize. Capture cannot proceed without
	// segmentation.
	ErrVADUnavailable = errors.New("capture: vad unavailable")

	// ErrAlreadyStarted indicates Start was called twice.
	ErrAlreadyStarted = errors.New("capture: already started")
)

// Capture owns the microphone source and the VAD detector, and drives the
// segmenter from the capture frame stream. The source, detector, and
// segmenter state are mutated only by Capture and its frame goroutine.
type Capture struct {
	source    audio.Source
	detector  vad.Detector
	segmenter *Segmenter
	logger    *slog.Logger

	mu      sync.Mutex
	running bool
	done    chan struct{}
}

// New creates a capture host over source and detector.
func New(source audio.Source, detector vad.Detector, segmenter *Segmenter, logger *slog.Logger) *Capture {
	if logger == nil {
		logger = slog.Default()
	}
	return &Capture{
		source:    source,
		detector:  detector,
		segmenter: segmenter,
		logger:    logger.With("component", "capture"),
	}
}

// Start acquires the microphone and begins frame processing. It fails with
// ErrVADUnavailable when the detector cannot be initialized: capture is
// useless without segmentation and the caller must know.
func (c *Capture) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		return ErrAlreadyStarted
	}

	if c.detector == nil {
		return ErrVADUnavailable
	}
	if err := c.detector.Start(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrVADUnavailable, err)
	}

	c.detector.OnSpeechStart(c.segmenter.StartSpeech)
	c.detector.OnSpeechEnd(c.segmenter.EndSpeech)

	if err := c.source.Start(ctx); err != nil {
		// Best-effort: release the detector we just started.
		_ = c.detector.Close()
		return fmt.Errorf("capture: start source: %w", err)
	}

	c.running = true
	c.done = make(chan struct{})
	go c.frameLoop()

	c.logger.Info("capture started",
		"source", c.source.Name(),
		"sample_rate", c.source.SampleRate(),
	)
	return nil
}

// frameLoop feeds capture frames through the detector and segmenter.
// Segmenter state is touched only here and by the detector callbacks,
// which fire synchronously from Process.
func (c *Capture) frameLoop() {
	defer close(c.done)

	for frame := range c.source.Frames() {
		probs, err := c.detector.Process(frame.Samples)
		if err != nil {
			if errors.Is(err, vad.ErrClosed) {
				return
			}
			c.logger.Warn("vad frame dropped", "error", err)
			continue
		}
		c.segmenter.OnFrame(probs, frame.Samples)
	}
}

// Stop tears down capture: the microphone stops, the detector is released,
// and the frame goroutine drains. Every step is best-effort so one failure
// does not block the rest, and repeated calls are no-ops.
func (c *Capture) Stop() error {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return nil
	}
	c.running = false
	done := c.done
	c.mu.Unlock()

	if err := c.source.Stop(); err != nil {
		c.logger.Warn("source stop failed", "error", err)
	}
	if closer, ok := c.source.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			c.logger.Warn("source close failed", "error", err)
		}
	}

	<-done

	if err := c.detector.Close(); err != nil {
		c.logger.Warn("detector close failed", "error", err)
	}

	c.logger.Info("capture stopped")
	return nil
}
