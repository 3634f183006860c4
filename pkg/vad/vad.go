// Package vad provides voice activity detection for the capture path.
//
// The detector is a black box to the segmenter: per-frame samples go in,
// speech/non-speech probabilities come out, and the detector fires its own
// utterance boundary callbacks from an internal heuristic. Model inference
// backends plug in behind the Model interface; the bundled energy model is
// a pure-Go fallback suitable for tests and development.
package vad

import (
	"context"
	"errors"
	"time"
)

// Sentinel errors for the vad package.
var (
	// ErrUnavailable indicates no detector backend could be initialized.
	ErrUnavailable = errors.New("vad: detector unavailable")

	// ErrClosed indicates the detector has been closed.
	ErrClosed = errors.New("vad: detector closed")
)

// Probabilities is the per-frame classifier output.
type Probabilities struct {
	// Speech is the probability the frame contains speech (0.0-1.0).
	Speech float64

	// NotSpeech is the probability the frame is non-speech (0.0-1.0).
	NotSpeech float64
}

// Detector turns capture frames into per-frame probabilities and utterance
// boundary callbacks.
type Detector interface {
	// Start initializes the detector backend.
	Start(ctx context.Context) error

	// Process classifies one frame, in capture order.
	// Boundary callbacks fire synchronously from inside Process.
	Process(samples []float64) (Probabilities, error)

	// OnSpeechStart registers the callback fired when speech begins.
	OnSpeechStart(fn func(t time.Time))

	// OnSpeechEnd registers the callback fired when the detector's own
	// utterance heuristic decides speech has ended.
	OnSpeechEnd(fn func(t time.Time))

	// Reset clears internal state between sessions.
	Reset()

	// Close releases detector resources.
	Close() error
}

// Model produces a speech probability for one frame of samples.
// Implementations wrap an inference backend (e.g. an ONNX Silero session)
// or a heuristic such as the bundled energy model.
type Model interface {
	// Infer returns the speech probability for the frame (0.0-1.0).
	Infer(samples []float64) (float64, error)

	// Close releases model resources.
	Close() error
}
