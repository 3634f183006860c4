package session

import (
	"sync"
	"time"
)

// TurnMetrics tracks latency for one conversation turn.
type TurnMetrics struct {
	// SpeechStartTime is when local VAD detected the utterance start.
	SpeechStartTime time.Time `json:"speech_start_time"`

	// NetworkLatency is the time from speech start to the first partial
	// transcript arriving from the service.
	NetworkLatency time.Duration `json:"network_latency"`

	// SynthesisLatency is the time from the final transcript to the first
	// partial response.
	SynthesisLatency time.Duration `json:"synthesis_latency"`

	// AudioChunksIn is the number of synthesis chunks received this turn.
	AudioChunksIn int `json:"audio_chunks_in"`
}

// Collector accumulates per-turn latency metrics with a bounded history
// for averaging. It is goroutine-safe and can be read from the monitor
// while the session updates it.
type Collector struct {
	mu      sync.Mutex
	current TurnMetrics
	history []TurnMetrics

	onUpdate func(TurnMetrics)
}

// NewCollector creates a metrics collector.
func NewCollector() *Collector {
	return &Collector{
		history: make([]TurnMetrics, 0, 100),
	}
}

// OnUpdate sets a callback that fires whenever metrics are updated.
func (c *Collector) OnUpdate(fn func(TurnMetrics)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onUpdate = fn
}

// BeginTurn archives the previous turn and starts a new one at t.
func (c *Collector) BeginTurn(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.current.SpeechStartTime.IsZero() {
		c.history = append(c.history, c.current)
		if len(c.history) > 100 {
			c.history = c.history[1:]
		}
	}
	c.current = TurnMetrics{SpeechStartTime: t}
}

// RecordNetworkLatency records the round-trip for the current turn.
func (c *Collector) RecordNetworkLatency(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current.NetworkLatency = d
	c.notify()
}

// RecordSynthesisLatency records time-to-first-synthesis for the current
// turn.
func (c *Collector) RecordSynthesisLatency(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current.SynthesisLatency = d
	c.notify()
}

// IncrementAudioIn counts one received synthesis chunk.
func (c *Collector) IncrementAudioIn() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current.AudioChunksIn++
}

// Current returns the current turn snapshot.
func (c *Collector) Current() TurnMetrics {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Average returns average latencies over archived turns.
func (c *Collector) Average() TurnMetrics {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.history) == 0 {
		return TurnMetrics{}
	}

	var avg TurnMetrics
	for _, h := range c.history {
		avg.NetworkLatency += h.NetworkLatency
		avg.SynthesisLatency += h.SynthesisLatency
	}

	n := time.Duration(len(c.history))
	avg.NetworkLatency /= n
	avg.SynthesisLatency /= n

	return avg
}

// notify calls the update callback if set.
// Must be called with mutex held.
func (c *Collector) notify() {
	if c.onUpdate != nil {
		// Copy to avoid races
		m := c.current
		go c.onUpdate(m)
	}
}

// FormatLatency returns a formatted string of the turn latencies.
func (m *TurnMetrics) FormatLatency() string {
	return formatDuration(m.NetworkLatency) + " NET | " +
		formatDuration(m.SynthesisLatency) + " TTS"
}

func formatDuration(d time.Duration) string {
	if d == 0 {
		return "---ms"
	}
	return d.Round(time.Millisecond).String()
}
