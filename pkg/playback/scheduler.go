// Package playback implements gapless serial playback of inbound synthesis
// audio: chunks are resampled to the output device rate, queued in arrival
// order, and played one at a time with drain detection for finished
// streams.
package playback

import (
	"log/slog"
	"sync"
	"time"

	"github.com/gsSaber/ztalk/pkg/audio"
)

// Scheduler queues inbound audio chunks and plays them serially on the
// output device. At most one chunk is ever scheduled at a time; chunks play
// in arrival order with no gaps. The queue is unbounded: the service can
// outpace playback and there is no backpressure signal upstream.
type Scheduler struct {
	out    audio.Output
	logger *slog.Logger

	mu       sync.Mutex
	queue    [][]float64
	playing  bool
	handle   audio.Playing
	gen      uint64
	finished bool

	onDrained func(t time.Time)
}

// NewScheduler creates a scheduler over the output device. Device
// resumption re-triggers one playback advance.
func NewScheduler(out audio.Output, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Scheduler{
		out:    out,
		logger: logger.With("component", "playback"),
	}
	out.OnResume(func() {
		s.mu.Lock()
		s.advanceLocked()
		drained := s.checkDrainedLocked()
		s.mu.Unlock()
		s.emitDrained(drained)
	})
	return s
}

// OnDrained registers the callback fired exactly once when a finished
// stream has fully played out.
func (s *Scheduler) OnDrained(fn func(t time.Time)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onDrained = fn
}

// Enqueue resamples one chunk to the output rate, appends it to the queue,
// and advances playback. Empty chunks are a no-op.
func (s *Scheduler) Enqueue(samples []float64, sourceRate int) {
	if len(samples) == 0 {
		return
	}

	resampled := audio.Resample(samples, sourceRate, s.out.SampleRate())

	s.mu.Lock()
	s.queue = append(s.queue, resampled)
	s.advanceLocked()
	s.mu.Unlock()
}

// MarkStreamFinished records that no more chunks will arrive for the
// current synthesis stream. Drain fires once everything queued has played,
// or immediately if playback already ran dry.
func (s *Scheduler) MarkStreamFinished() {
	s.mu.Lock()
	s.finished = true
	drained := s.checkDrainedLocked()
	s.mu.Unlock()
	s.emitDrained(drained)
}

// Reset cancels the active chunk and discards everything queued. This is
// the barge-in path: after Reset returns, no previously scheduled audio
// will play.
func (s *Scheduler) Reset() {
	s.mu.Lock()
	if s.handle != nil {
		s.handle.Stop()
	}
	s.handle = nil
	s.playing = false
	s.queue = nil
	s.finished = false
	s.gen++
	s.mu.Unlock()
}

// Idle reports whether nothing is playing or queued.
func (s *Scheduler) Idle() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.playing && len(s.queue) == 0
}

// QueueLen returns the number of queued chunks (excluding the one playing).
func (s *Scheduler) QueueLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// advanceLocked starts the head chunk unless one is already playing, the
// device is suspended, or the queue is empty. A scheduling error counts as
// an immediate completion and the next chunk is tried.
func (s *Scheduler) advanceLocked() {
	for {
		if s.playing || s.out.Suspended() || len(s.queue) == 0 {
			return
		}

		head := s.queue[0]
		s.queue = s.queue[1:]

		s.gen++
		gen := s.gen
		s.playing = true

		handle, err := s.out.Play(head, func() {
			s.complete(gen)
		})
		if err != nil {
			s.logger.Warn("chunk scheduling failed", "samples", len(head), "error", err)
			s.playing = false
			continue
		}
		s.handle = handle
		return
	}
}

// complete handles a chunk finishing. Completions from chunks cancelled by
// Reset carry a stale generation and are ignored.
func (s *Scheduler) complete(gen uint64) {
	s.mu.Lock()
	if gen != s.gen || !s.playing {
		s.mu.Unlock()
		return
	}
	s.playing = false
	s.handle = nil
	s.advanceLocked()
	drained := s.checkDrainedLocked()
	s.mu.Unlock()
	s.emitDrained(drained)
}

// checkDrainedLocked reports whether a finished stream has fully played
// out, clearing the finished mark so the drained event fires once per
// stream cycle.
func (s *Scheduler) checkDrainedLocked() bool {
	if !s.finished || s.playing || len(s.queue) != 0 {
		return false
	}
	s.finished = false
	return true
}

// emitDrained fires the drained callback outside the lock.
func (s *Scheduler) emitDrained(drained bool) {
	if !drained {
		return
	}
	s.mu.Lock()
	fn := s.onDrained
	s.mu.Unlock()
	if fn != nil {
		fn(time.Now())
	}
}
