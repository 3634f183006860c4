package transport

import (
	"context"
	"sync"
)

// Mock is an in-memory channel for tests. Outbound messages are recorded;
// inbound traffic is injected with the Deliver helpers.
type Mock struct {
	mu        sync.Mutex
	connected bool

	// ControlSent records outbound control messages in order.
	ControlSent []Message

	// AudioSent records outbound audio payloads in order.
	AudioSent [][]byte

	// SendErr, when set, is returned from SendControl and SendAudio.
	SendErr error

	onControl func(msg Message)
	onAudio   func(pcm []byte)
	onError   func(err error)
}

// NewMock creates a mock channel.
func NewMock() *Mock {
	return &Mock{}
}

// Connect marks the channel open.
func (m *Mock) Connect(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.connected {
		return ErrAlreadyConnected
	}
	m.connected = true
	return nil
}

// Close marks the channel closed.
func (m *Mock) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connected = false
	return nil
}

// IsConnected returns true if open.
func (m *Mock) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

// SendControl records one outbound control message.
func (m *Mock) SendControl(msg Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SendErr != nil {
		return m.SendErr
	}
	if !m.connected {
		return ErrNotConnected
	}
	m.ControlSent = append(m.ControlSent, msg)
	return nil
}

// SendAudio records one outbound audio payload.
func (m *Mock) SendAudio(pcm []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SendErr != nil {
		return m.SendErr
	}
	if !m.connected {
		return ErrNotConnected
	}
	buf := make([]byte, len(pcm))
	copy(buf, pcm)
	m.AudioSent = append(m.AudioSent, buf)
	return nil
}

// OnControl sets the inbound control callback.
func (m *Mock) OnControl(fn func(msg Message)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onControl = fn
}

// OnAudio sets the inbound audio callback.
func (m *Mock) OnAudio(fn func(pcm []byte)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onAudio = fn
}

// OnError sets the error callback.
func (m *Mock) OnError(fn func(err error)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onError = fn
}

// DeliverControl injects one inbound control message.
func (m *Mock) DeliverControl(msg Message) {
	m.mu.Lock()
	fn := m.onControl
	m.mu.Unlock()
	if fn != nil {
		fn(msg)
	}
}

// DeliverAudio injects one inbound audio payload.
func (m *Mock) DeliverAudio(pcm []byte) {
	m.mu.Lock()
	fn := m.onAudio
	m.mu.Unlock()
	if fn != nil {
		fn(pcm)
	}
}

// Actions returns the actions of recorded control messages, in order.
func (m *Mock) Actions() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.ControlSent))
	for i, msg := range m.ControlSent {
		out[i] = msg.Action
	}
	return out
}
