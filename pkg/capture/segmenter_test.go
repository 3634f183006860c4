package capture

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/gsSaber/ztalk/pkg/audio"
	"github.com/gsSaber/ztalk/pkg/vad"
)

// recordingSender records transmitted payloads and callback interleaving.
type recordingSender struct {
	mu       sync.Mutex
	payloads [][]byte
	events   []string
	err      error
}

func (r *recordingSender) SendAudio(pcm []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	buf := make([]byte, len(pcm))
	copy(buf, pcm)
	r.payloads = append(r.payloads, buf)
	r.events = append(r.events, "audio")
	return nil
}

func (r *recordingSender) mark(ev string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func frame(v float64) []float64 {
	out := make([]float64, 4)
	for i := range out {
		out[i] = v
	}
	return out
}

var (
	speech  = vad.Probabilities{Speech: 0.95, NotSpeech: 0.05}
	silence = vad.Probabilities{Speech: 0.05, NotSpeech: 0.95}
)

func newTestSegmenter(sender Sender) *Segmenter {
	return NewSegmenter(SegmenterConfig{
		PreRollFrames:    3,
		SilenceThreshold: 0.9,
		SilenceFrames:    4,
	}, sender, nil)
}

func TestSegmenter_PreRollFlushedAsOnePayload(t *testing.T) {
	sender := &recordingSender{}
	s := newTestSegmenter(sender)

	s.OnFrame(silence, frame(0.1))
	s.OnFrame(silence, frame(0.2))

	if len(sender.payloads) != 0 {
		t.Fatal("Idle frames must not be transmitted")
	}

	s.StartSpeech(time.Now())

	if len(sender.payloads) != 1 {
		t.Fatalf("Expected one pre-roll payload, got %d", len(sender.payloads))
	}

	want := append(audio.EncodePCM16(frame(0.1)), audio.EncodePCM16(frame(0.2))...)
	if string(sender.payloads[0]) != string(want) {
		t.Error("Pre-roll payload does not match buffered frames in order")
	}
}

func TestSegmenter_PreRollBounded(t *testing.T) {
	sender := &recordingSender{}
	s := newTestSegmenter(sender)

	// Five frames into a 3-frame buffer: the oldest two evict.
	for _, v := range []float64{0.1, 0.2, 0.3, 0.4, 0.5} {
		s.OnFrame(silence, frame(v))
	}
	s.StartSpeech(time.Now())

	want := audio.EncodePCM16(frame(0.3))
	want = append(want, audio.EncodePCM16(frame(0.4))...)
	want = append(want, audio.EncodePCM16(frame(0.5))...)
	if string(sender.payloads[0]) != string(want) {
		t.Error("Expected the newest frames to survive eviction")
	}
}

func TestSegmenter_SpeechStartBeforeFlush(t *testing.T) {
	sender := &recordingSender{}
	s := newTestSegmenter(sender)
	s.OnSpeechStart(func(time.Time) { sender.mark("start") })

	s.OnFrame(silence, frame(0.1))
	s.StartSpeech(time.Now())

	if len(sender.events) != 2 || sender.events[0] != "start" || sender.events[1] != "audio" {
		t.Fatalf("Expected start before audio, got %v", sender.events)
	}
}

func TestSegmenter_LiveFramesSentIndividually(t *testing.T) {
	sender := &recordingSender{}
	s := newTestSegmenter(sender)

	s.StartSpeech(time.Now())
	s.OnFrame(speech, frame(0.1))
	s.OnFrame(speech, frame(0.2))

	if len(sender.payloads) != 2 {
		t.Fatalf("Expected 2 payloads, got %d", len(sender.payloads))
	}
	if len(sender.payloads[0]) != 8 {
		t.Errorf("Expected one frame per payload, got %d bytes", len(sender.payloads[0]))
	}
}

func TestSegmenter_SilenceDebounce(t *testing.T) {
	sender := &recordingSender{}
	s := newTestSegmenter(sender)

	ended := 0
	s.OnSpeechEnd(func(time.Time) { ended++ })

	s.StartSpeech(time.Now())

	// Three silent frames, one short of the threshold, then speech: the
	// run must reset and the utterance stays open.
	for i := 0; i < 3; i++ {
		s.OnFrame(silence, frame(0))
	}
	s.OnFrame(speech, frame(0.5))

	if ended != 0 {
		t.Fatal("Utterance ended during transient silence")
	}
	if !s.Transmitting() {
		t.Fatal("Expected utterance still active")
	}

	// A full run of silent frames ends it.
	for i := 0; i < 4; i++ {
		s.OnFrame(silence, frame(0))
	}

	if ended != 1 {
		t.Fatalf("Expected one end event, got %d", ended)
	}
	if s.Transmitting() {
		t.Fatal("Expected utterance closed")
	}
}

func TestSegmenter_DefaultDebounceBoundary(t *testing.T) {
	sender := &recordingSender{}
	s := NewSegmenter(DefaultSegmenterConfig(), sender, nil)

	ended := 0
	s.OnSpeechEnd(func(time.Time) { ended++ })

	s.StartSpeech(time.Now())

	// Nine consecutive silent frames are one short of the default.
	for i := 0; i < 9; i++ {
		s.OnFrame(silence, frame(0))
	}
	if ended != 0 {
		t.Fatal("Utterance ended at nine silent frames")
	}

	s.OnFrame(silence, frame(0))
	if ended != 1 {
		t.Fatalf("Expected end at the tenth silent frame, got %d events", ended)
	}
}

func TestSegmenter_EndSpeechIdempotent(t *testing.T) {
	sender := &recordingSender{}
	s := newTestSegmenter(sender)

	ended := 0
	s.OnSpeechEnd(func(time.Time) { ended++ })

	s.StartSpeech(time.Now())
	s.EndSpeech(time.Now())
	s.EndSpeech(time.Now())

	if ended != 1 {
		t.Fatalf("Expected one end event, got %d", ended)
	}
}

func TestSegmenter_StartSpeechWhileActive(t *testing.T) {
	sender := &recordingSender{}
	s := newTestSegmenter(sender)

	started := 0
	s.OnSpeechStart(func(time.Time) { started++ })

	s.StartSpeech(time.Now())
	s.StartSpeech(time.Now())

	if started != 1 {
		t.Fatalf("Expected one start event, got %d", started)
	}
}

func TestSegmenter_BuffersAgainAfterEnd(t *testing.T) {
	sender := &recordingSender{}
	s := newTestSegmenter(sender)

	s.StartSpeech(time.Now())
	s.OnFrame(speech, frame(0.1))
	s.EndSpeech(time.Now())

	sent := len(sender.payloads)

	// Post-utterance frames buffer for the next pre-roll instead of
	// transmitting.
	s.OnFrame(silence, frame(0.2))
	if len(sender.payloads) != sent {
		t.Fatal("Idle frame transmitted after utterance end")
	}

	s.StartSpeech(time.Now())
	if len(sender.payloads) != sent+1 {
		t.Fatal("Expected buffered frame flushed on next utterance")
	}
}

func TestSegmenter_SendFailureDoesNotEndUtterance(t *testing.T) {
	sender := &recordingSender{err: errors.New("socket closed")}
	s := newTestSegmenter(sender)

	s.StartSpeech(time.Now())
	s.OnFrame(speech, frame(0.1))

	if !s.Transmitting() {
		t.Error("Send failure must not end the utterance")
	}
}
