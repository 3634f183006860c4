package vad

import (
	"context"
	"sync"
	"time"
)

// Mock is a scripted Detector for tests. Probabilities are supplied per
// frame with Script, and boundary callbacks are fired manually with
// TriggerSpeechStart and TriggerSpeechEnd.
type Mock struct {
	mu      sync.Mutex
	started bool
	closed  bool
	script  []Probabilities
	next    int

	// StartErr, when set, is returned from Start to simulate an
	// unavailable detector backend.
	StartErr error

	// Processed counts frames seen by Process.
	Processed int

	onStart func(time.Time)
	onEnd   func(time.Time)
}

// NewMock creates a mock detector.
func NewMock() *Mock {
	return &Mock{}
}

// Script appends probabilities to return from successive Process calls.
// Once the script is exhausted, Process returns silence.
func (m *Mock) Script(probs ...Probabilities) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.script = append(m.script, probs...)
}

// Start initializes the mock, or fails with StartErr.
func (m *Mock) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.StartErr != nil {
		return m.StartErr
	}
	m.started = true
	return nil
}

// Process returns the next scripted probabilities.
func (m *Mock) Process(samples []float64) (Probabilities, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return Probabilities{}, ErrClosed
	}
	m.Processed++
	if m.next < len(m.script) {
		p := m.script[m.next]
		m.next++
		return p, nil
	}
	return Probabilities{Speech: 0, NotSpeech: 1}, nil
}

// OnSpeechStart registers the speech start callback.
func (m *Mock) OnSpeechStart(fn func(time.Time)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onStart = fn
}

// OnSpeechEnd registers the speech end callback.
func (m *Mock) OnSpeechEnd(fn func(time.Time)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onEnd = fn
}

// ProcessedCount returns the number of frames seen by Process.
func (m *Mock) ProcessedCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Processed
}

// TriggerSpeechStart fires the registered speech start callback.
func (m *Mock) TriggerSpeechStart(t time.Time) {
	m.mu.Lock()
	fn := m.onStart
	m.mu.Unlock()
	if fn != nil {
		fn(t)
	}
}

// TriggerSpeechEnd fires the registered speech end callback.
func (m *Mock) TriggerSpeechEnd(t time.Time) {
	m.mu.Lock()
	fn := m.onEnd
	m.mu.Unlock()
	if fn != nil {
		fn(t)
	}
}

// Reset clears the script position.
func (m *Mock) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.next = 0
}

// Close marks the mock closed.
func (m *Mock) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

var _ Detector = (*Mock)(nil)
