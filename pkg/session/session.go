// Package session holds the client-side conversational state machine. It
// is the single merge point between two independently arriving event
// streams: local segmentation events and remote protocol events. Events
// are applied strictly in arrival order; the session owns the state, the
// transcript, and the latency marks, and nothing else mutates them.
package session

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// State is the conversational state.
type State int

const (
	// StateIdle means no utterance or response is in flight.
	StateIdle State = iota
	// StateListening means the user is speaking.
	StateListening
	// StateProcessing means the utterance ended and the service is working.
	StateProcessing
	// StateSpeaking means synthesized audio is playing.
	StateSpeaking
)

// String returns a human-readable state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateListening:
		return "listening"
	case StateProcessing:
		return "processing"
	case StateSpeaking:
		return "speaking"
	default:
		return "unknown"
	}
}

// PlaybackControl is the narrow scheduler surface the session drives.
type PlaybackControl interface {
	// Reset cancels active and queued audio immediately.
	Reset()

	// MarkStreamFinished records that the synthesis stream is complete.
	MarkStreamFinished()
}

// Snapshot is a read-only view of the session for observers.
type Snapshot struct {
	ID         string      `json:"id"`
	State      string      `json:"state"`
	Transcript []Entry     `json:"transcript"`
	Current    TurnMetrics `json:"current"`
	Average    TurnMetrics `json:"average"`
}

// Session is the conversational state machine.
type Session struct {
	id       string
	playback PlaybackControl
	metrics  *Collector
	logger   *slog.Logger

	mu         sync.Mutex
	state      State
	transcript Transcript

	// Latency marks, each set once per utterance cycle and consumed the
	// first time its paired completion event arrives.
	vadStart      time.Time
	asrFinish     time.Time
	awaitingSynth bool

	onStateChange func(old, new State)
	onTranscript  func(Entry)
}

// New creates an idle session driving playback.
func New(playback PlaybackControl, metrics *Collector, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = NewCollector()
	}
	id := uuid.NewString()
	return &Session{
		id:       id,
		playback: playback,
		metrics:  metrics,
		logger:   logger.With("component", "session", "session_id", id),
		state:    StateIdle,
	}
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// State returns the current conversational state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Metrics returns the latency collector.
func (s *Session) Metrics() *Collector { return s.metrics }

// OnStateChange registers a hook fired on every transition.
func (s *Session) OnStateChange(fn func(old, new State)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onStateChange = fn
}

// OnTranscript registers a hook fired on every transcript update with the
// affected entry.
func (s *Session) OnTranscript(fn func(Entry)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onTranscript = fn
}

// Snapshot returns a copy of the observable session state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		ID:         s.id,
		State:      s.state.String(),
		Transcript: s.transcript.Entries(),
		Current:    s.metrics.Current(),
		Average:    s.metrics.Average(),
	}
}

// HandleSpeechStart applies a local speech start at t: the session starts
// listening, the network latency mark resets, and a new metrics turn
// begins.
func (s *Session) HandleSpeechStart(t time.Time) {
	s.mu.Lock()
	s.setStateLocked(StateListening)
	s.vadStart = t
	s.mu.Unlock()

	s.metrics.BeginTurn(t)
}

// HandleSpeechEnd applies a local speech end: the utterance is with the
// service now.
func (s *Session) HandleSpeechEnd(t time.Time) {
	s.mu.Lock()
	s.setStateLocked(StateProcessing)
	s.mu.Unlock()
}

// HandleInvalidResult applies the service rejecting the utterance; the
// session goes back to listening.
func (s *Session) HandleInvalidResult() {
	s.mu.Lock()
	s.setStateLocked(StateListening)
	s.mu.Unlock()
}

// HandlePartialTranscript applies a streaming recognition update arriving
// at. The first one per turn yields the network round-trip latency.
func (s *Session) HandlePartialTranscript(text string, at time.Time) {
	s.mu.Lock()
	if !s.vadStart.IsZero() {
		s.metrics.RecordNetworkLatency(at.Sub(s.vadStart))
		s.vadStart = time.Time{}
	}
	s.upsertLocked(RoleUser, text)
	s.mu.Unlock()
}

// HandleFinalTranscript applies the final recognition result arriving at:
// the transcript is settled and the session starts waiting for the first
// synthesis update.
func (s *Session) HandleFinalTranscript(text string, at time.Time) {
	s.mu.Lock()
	s.upsertLocked(RoleUser, text)
	s.asrFinish = at
	s.awaitingSynth = true
	s.mu.Unlock()
}

// HandleSynthesisStarted applies the service beginning audio synthesis.
func (s *Session) HandleSynthesisStarted() {
	s.mu.Lock()
	s.setStateLocked(StateSpeaking)
	s.mu.Unlock()
}

// HandleSynthesisStopped applies the service cancelling synthesis; any
// queued or playing audio is discarded.
func (s *Session) HandleSynthesisStopped() {
	s.playback.Reset()
}

// HandlePartialResponse applies a streaming response update arriving at.
// The first one after a final transcript yields the synthesis latency.
func (s *Session) HandlePartialResponse(text string, at time.Time) {
	s.mu.Lock()
	if s.awaitingSynth && !s.asrFinish.IsZero() {
		s.metrics.RecordSynthesisLatency(at.Sub(s.asrFinish))
		s.awaitingSynth = false
		s.asrFinish = time.Time{}
	}
	s.upsertLocked(RoleAgent, text)
	s.mu.Unlock()
}

// HandleFinalResponse applies the final response text; the synthesis
// stream is complete and playback will drain.
func (s *Session) HandleFinalResponse(text string) {
	s.mu.Lock()
	s.upsertLocked(RoleAgent, text)
	s.mu.Unlock()

	s.playback.MarkStreamFinished()
}

// HandlePlaybackDrained applies the end of playback; the session is idle
// again.
func (s *Session) HandlePlaybackDrained(t time.Time) {
	s.mu.Lock()
	s.setStateLocked(StateIdle)
	s.mu.Unlock()
}

// Transcript returns a copy of the conversation log.
func (s *Session) Transcript() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transcript.Entries()
}

// setStateLocked transitions the state and fires the hook.
// Must be called with mutex held.
func (s *Session) setStateLocked(next State) {
	if s.state == next {
		return
	}
	old := s.state
	s.state = next
	s.logger.Debug("state transition", "from", old.String(), "to", next.String())
	if s.onStateChange != nil {
		go s.onStateChange(old, next)
	}
}

// upsertLocked updates the transcript and fires the hook.
// Must be called with mutex held.
func (s *Session) upsertLocked(role Role, text string) {
	s.transcript.Upsert(role, text)
	if s.onTranscript != nil {
		if entry, ok := s.transcript.Last(); ok {
			go s.onTranscript(entry)
		}
	}
}
