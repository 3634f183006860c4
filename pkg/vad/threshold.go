package vad

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"
)

// ThresholdConfig tunes the threshold detector.
type ThresholdConfig struct {
	// SpeechThreshold is the probability above which frames count as
	// speech (0.0-1.0).
	SpeechThreshold float64

	// StartFrames is the consecutive speech frame count that fires the
	// speech start callback.
	StartFrames int

	// EndFrames is the consecutive non-speech frame count for the
	// detector's own end-of-utterance heuristic. This runs independently
	// of any downstream silence counting, so it uses a longer hangover.
	EndFrames int
}

// DefaultThresholdConfig returns detector defaults for 20ms frames.
func DefaultThresholdConfig() ThresholdConfig {
	return ThresholdConfig{
		SpeechThreshold: 0.5,
		StartFrames:     3,
		EndFrames:       25,
	}
}

// Threshold is a Detector that applies hysteresis thresholds over the
// probabilities of an underlying Model.
type Threshold struct {
	cfg    ThresholdConfig
	model  Model
	logger *slog.Logger

	mu           sync.Mutex
	started      bool
	closed       bool
	inSpeech     bool
	speechCount  int
	silenceCount int
	onStart      func(time.Time)
	onEnd        func(time.Time)
}

// NewThreshold creates a threshold detector over model.
func NewThreshold(cfg ThresholdConfig, model Model, logger *slog.Logger) *Threshold {
	if logger == nil {
		logger = slog.Default()
	}
	return &Threshold{
		cfg:    cfg,
		model:  model,
		logger: logger.With("component", "vad.threshold"),
	}
}

// Start initializes the detector.
func (d *Threshold) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return ErrClosed
	}
	if d.model == nil {
		return ErrUnavailable
	}
	d.started = true
	d.logger.Debug("detector started",
		"speech_threshold", d.cfg.SpeechThreshold,
		"start_frames", d.cfg.StartFrames,
		"end_frames", d.cfg.EndFrames,
	)
	return nil
}

// Process classifies one frame and drives the boundary state machine.
func (d *Threshold) Process(samples []float64) (Probabilities, error) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return Probabilities{}, ErrClosed
	}
	if !d.started {
		d.mu.Unlock()
		return Probabilities{}, ErrUnavailable
	}
	model := d.model
	d.mu.Unlock()

	p, err := model.Infer(samples)
	if err != nil {
		return Probabilities{}, fmt.Errorf("vad: infer: %w", err)
	}
	probs := Probabilities{Speech: p, NotSpeech: 1 - p}

	d.mu.Lock()
	var fire func(time.Time)
	if d.inSpeech {
		if p < d.cfg.SpeechThreshold {
			d.silenceCount++
			if d.silenceCount >= d.cfg.EndFrames {
				d.inSpeech = false
				d.silenceCount = 0
				fire = d.onEnd
			}
		} else {
			d.silenceCount = 0
		}
	} else {
		if p >= d.cfg.SpeechThreshold {
			d.speechCount++
			if d.speechCount >= d.cfg.StartFrames {
				d.inSpeech = true
				d.speechCount = 0
				fire = d.onStart
			}
		} else {
			d.speechCount = 0
		}
	}
	d.mu.Unlock()

	if fire != nil {
		fire(time.Now())
	}

	return probs, nil
}

// OnSpeechStart registers the speech start callback.
func (d *Threshold) OnSpeechStart(fn func(time.Time)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onStart = fn
}

// OnSpeechEnd registers the speech end callback.
func (d *Threshold) OnSpeechEnd(fn func(time.Time)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onEnd = fn
}

// Reset clears the boundary state machine.
func (d *Threshold) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.inSpeech = false
	d.speechCount = 0
	d.silenceCount = 0
}

// Close releases the model.
func (d *Threshold) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil
	}
	d.closed = true
	if d.model != nil {
		return d.model.Close()
	}
	return nil
}

// EnergyModel scores frames by RMS energy. It is the bundled pure-Go
// fallback when no inference backend is available.
type EnergyModel struct {
	// FullScale is the RMS level mapped to probability 1.0.
	FullScale float64
}

// NewEnergyModel creates an energy model with defaults for speech audio.
func NewEnergyModel() *EnergyModel {
	return &EnergyModel{FullScale: 0.1}
}

// Infer returns the frame RMS scaled into [0, 1].
func (m *EnergyModel) Infer(samples []float64) (float64, error) {
	if len(samples) == 0 {
		return 0, nil
	}

	var sum float64
	for _, s := range samples {
		sum += s * s
	}
	rms := math.Sqrt(sum / float64(len(samples)))

	p := rms / m.FullScale
	if p > 1 {
		p = 1
	}
	return p, nil
}

// Close is a no-op for the energy model.
func (m *EnergyModel) Close() error { return nil }

// Ensure implementations satisfy their interfaces.
var (
	_ Detector = (*Threshold)(nil)
	_ Model    = (*EnergyModel)(nil)
)
