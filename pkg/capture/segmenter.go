// Package capture implements the microphone side of the voice session:
// VAD-gated utterance segmentation with pre-speech buffering, PCM16 frame
// encoding, and end-of-speech detection.
package capture

import (
	"log/slog"
	"time"

	"github.com/gsSaber/ztalk/pkg/audio"
	"github.com/gsSaber/ztalk/pkg/vad"
)

// Sender transmits encoded utterance audio to the conversation service.
// One call carries one binary payload.
type Sender interface {
	SendAudio(pcm []byte) error
}

// SegmenterConfig tunes utterance segmentation.
type SegmenterConfig struct {
	// PreRollFrames is the pre-speech buffer capacity.
	PreRollFrames int

	// SilenceThreshold is the non-speech probability above which a frame
	// counts toward end-of-speech.
	SilenceThreshold float64

	// SilenceFrames is the consecutive silent frame count that ends the
	// utterance.
	SilenceFrames int
}

// DefaultSegmenterConfig returns the deployment defaults.
func DefaultSegmenterConfig() SegmenterConfig {
	return SegmenterConfig{
		PreRollFrames:    20,
		SilenceThreshold: 0.9,
		SilenceFrames:    10,
	}
}

// Segmenter decides utterance boundaries from per-frame VAD probabilities
// and forwards encoded frames to the Sender while an utterance is active.
//
// Frames that arrive before the speech-start decision are held in a bounded
// pre-speech buffer so utterance onsets are not truncated; the buffer is
// flushed as a single payload the moment transmission begins.
//
// Segmenter is not goroutine-safe. All calls must come from the capture
// goroutine, in frame order.
type Segmenter struct {
	cfg    SegmenterConfig
	sender Sender
	logger *slog.Logger

	transmitting bool
	nonSpeechRun int
	preroll      [][]float64

	onSpeechStart func(t time.Time)
	onSpeechEnd   func(t time.Time)
}

// NewSegmenter creates a segmenter that transmits through sender.
func NewSegmenter(cfg SegmenterConfig, sender Sender, logger *slog.Logger) *Segmenter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Segmenter{
		cfg:     cfg,
		sender:  sender,
		logger:  logger.With("component", "capture.segmenter"),
		preroll: make([][]float64, 0, cfg.PreRollFrames),
	}
}

// OnSpeechStart registers the callback emitted when transmission begins,
// before any pre-roll audio is flushed.
func (s *Segmenter) OnSpeechStart(fn func(t time.Time)) {
	s.onSpeechStart = fn
}

// OnSpeechEnd registers the callback emitted when the utterance ends.
func (s *Segmenter) OnSpeechEnd(fn func(t time.Time)) {
	s.onSpeechEnd = fn
}

// OnFrame consumes one capture frame and its VAD probabilities.
// While idle it buffers the frame; while transmitting it sends the frame
// immediately and counts trailing silence.
func (s *Segmenter) OnFrame(probs vad.Probabilities, samples []float64) {
	if !s.transmitting {
		s.bufferFrame(samples)
		return
	}

	s.send(audio.EncodePCM16(samples))

	if probs.NotSpeech > s.cfg.SilenceThreshold {
		s.nonSpeechRun++
		if s.nonSpeechRun >= s.cfg.SilenceFrames {
			s.EndSpeech(time.Now())
		}
	} else {
		// Any speech-classified frame resets the run so transient
		// silence does not end the utterance early.
		s.nonSpeechRun = 0
	}
}

// StartSpeech begins transmission: the speech start event is emitted first,
// then the entire pre-speech buffer is flushed in capture order as one
// payload and cleared.
func (s *Segmenter) StartSpeech(t time.Time) {
	if s.transmitting {
		return
	}
	s.transmitting = true
	s.nonSpeechRun = 0

	if s.onSpeechStart != nil {
		s.onSpeechStart(t)
	}

	if len(s.preroll) > 0 {
		var pcm []byte
		for _, frame := range s.preroll {
			pcm = append(pcm, audio.EncodePCM16(frame)...)
		}
		s.send(pcm)
		s.preroll = s.preroll[:0]
	}
}

// EndSpeech ends the utterance. It is idempotent: the counters reset
// unconditionally, and the speech end event is emitted only when an
// utterance was active, so the silence counter and the detector's own
// end-of-utterance callback may both fire without double emission.
func (s *Segmenter) EndSpeech(t time.Time) {
	s.nonSpeechRun = 0
	if !s.transmitting {
		return
	}
	s.transmitting = false

	if s.onSpeechEnd != nil {
		s.onSpeechEnd(t)
	}
}

// Transmitting reports whether an utterance is active.
func (s *Segmenter) Transmitting() bool {
	return s.transmitting
}

// bufferFrame pushes a frame into the pre-speech buffer, evicting the
// oldest when at capacity.
func (s *Segmenter) bufferFrame(samples []float64) {
	if len(s.preroll) >= s.cfg.PreRollFrames {
		s.preroll = s.preroll[1:]
	}
	s.preroll = append(s.preroll, samples)
}

// send transmits one payload. Send failures are dropped; a missed frame is
// superseded by the next one.
func (s *Segmenter) send(pcm []byte) {
	if len(pcm) == 0 {
		return
	}
	if err := s.sender.SendAudio(pcm); err != nil {
		s.logger.Debug("audio send dropped", "bytes", len(pcm), "error", err)
	}
}
