package audio

import (
	"context"
	"io"
	"log/slog"
	"sync"
)

// MockSource is a mock audio source for testing. Frames are pushed by the
// test with Push rather than generated from hardware.
type MockSource struct {
	rate   int
	logger *slog.Logger

	mu      sync.Mutex
	running bool
	closed  bool
	frameCh chan Frame
}

// NewMockSource creates a new mock audio source.
func NewMockSource(rate int, logger *slog.Logger) *MockSource {
	if logger == nil {
		logger = slog.Default()
	}
	return &MockSource{
		rate:    rate,
		logger:  logger,
		frameCh: make(chan Frame, 64),
	}
}

// Start begins delivering pushed frames.
func (m *MockSource) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return io.ErrClosedPipe
	}
	m.running = true
	return nil
}

// Push delivers one frame to the consumer. Frames pushed while the source
// is stopped are dropped.
func (m *MockSource) Push(samples []float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return
	}
	select {
	case m.frameCh <- Frame{Samples: samples, Rate: m.rate}:
	default:
		m.logger.Debug("mock source: buffer full, dropping frame")
	}
}

// Stop halts capture and closes the frame channel.
func (m *MockSource) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return nil
	}
	m.running = false
	close(m.frameCh)
	return nil
}

// Frames returns the frame delivery channel.
func (m *MockSource) Frames() <-chan Frame {
	return m.frameCh
}

// SampleRate returns the capture rate.
func (m *MockSource) SampleRate() int { return m.rate }

// Name returns "mock".
func (m *MockSource) Name() string { return "mock" }

// Close releases the source permanently.
func (m *MockSource) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		m.running = false
		close(m.frameCh)
	}
	m.closed = true
	return nil
}

// mockPlaying is the handle for one chunk scheduled on a MockOutput.
type mockPlaying struct {
	out     *MockOutput
	samples []float64
	done    func()
	stopped bool
}

// Stop cancels this chunk without invoking its completion callback.
func (p *mockPlaying) Stop() {
	p.out.mu.Lock()
	defer p.out.mu.Unlock()
	p.stopped = true
	if p.out.active == p {
		p.out.active = nil
	}
}

// MockOutput is a mock playback device for testing. Chunks do not play in
// real time; the test drives completion with CompleteActive.
type MockOutput struct {
	rate   int
	logger *slog.Logger

	mu        sync.Mutex
	active    *mockPlaying
	played    [][]float64
	suspended bool
	onResume  []func()
	stopped   bool
}

// NewMockOutput creates a new mock output device.
func NewMockOutput(rate int, logger *slog.Logger) *MockOutput {
	if logger == nil {
		logger = slog.Default()
	}
	return &MockOutput{rate: rate, logger: logger}
}

// Play records the chunk as playing and returns its handle.
func (m *MockOutput) Play(samples []float64, done func()) (Playing, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stopped {
		return nil, io.ErrClosedPipe
	}
	p := &mockPlaying{out: m, samples: samples, done: done}
	m.active = p
	m.played = append(m.played, samples)
	return p, nil
}

// CompleteActive finishes the currently playing chunk, invoking its
// completion callback outside the device lock.
func (m *MockOutput) CompleteActive() {
	m.mu.Lock()
	p := m.active
	m.active = nil
	m.mu.Unlock()

	if p != nil && !p.stopped && p.done != nil {
		p.done()
	}
}

// Suspend marks the device suspended.
func (m *MockOutput) Suspend() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.suspended = true
}

// Resume clears the suspended state and fires resume callbacks.
func (m *MockOutput) Resume() {
	m.mu.Lock()
	m.suspended = false
	fns := make([]func(), len(m.onResume))
	copy(fns, m.onResume)
	m.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

// Suspended reports whether the device is suspended.
func (m *MockOutput) Suspended() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.suspended
}

// OnResume registers a resume callback.
func (m *MockOutput) OnResume(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onResume = append(m.onResume, fn)
}

// SampleRate returns the output rate.
func (m *MockOutput) SampleRate() int { return m.rate }

// Stop releases the device.
func (m *MockOutput) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.active = nil
	m.stopped = true
	return nil
}

// Name returns "mock".
func (m *MockOutput) Name() string { return "mock" }

// Played returns all chunks handed to the device, in order.
func (m *MockOutput) Played() [][]float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]float64, len(m.played))
	copy(out, m.played)
	return out
}

// ActiveChunk returns the samples of the currently playing chunk, or nil.
func (m *MockOutput) ActiveChunk() []float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active == nil {
		return nil
	}
	return m.active.samples
}

// Ensure mocks satisfy the device interfaces.
var (
	_ Source = (*MockSource)(nil)
	_ Output = (*MockOutput)(nil)
)
