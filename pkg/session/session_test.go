package session

import (
	"sync"
	"testing"
	"time"
)

// fakePlayback records the control calls the session issues.
type fakePlayback struct {
	mu       sync.Mutex
	resets   int
	finishes int
}

func (f *fakePlayback) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resets++
}

func (f *fakePlayback) MarkStreamFinished() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.finishes++
}

func (f *fakePlayback) counts() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.resets, f.finishes
}

func newTestSession() (*Session, *fakePlayback) {
	pb := &fakePlayback{}
	return New(pb, NewCollector(), nil), pb
}

func TestSession_InitialState(t *testing.T) {
	s, _ := newTestSession()
	if s.State() != StateIdle {
		t.Errorf("Expected idle, got %v", s.State())
	}
	if s.ID() == "" {
		t.Error("Expected a session ID")
	}
}

func TestSession_TurnLifecycle(t *testing.T) {
	s, _ := newTestSession()
	now := time.Now()

	s.HandleSpeechStart(now)
	if s.State() != StateListening {
		t.Fatalf("Expected listening, got %v", s.State())
	}

	s.HandleSpeechEnd(now)
	if s.State() != StateProcessing {
		t.Fatalf("Expected processing, got %v", s.State())
	}

	s.HandleSynthesisStarted()
	if s.State() != StateSpeaking {
		t.Fatalf("Expected speaking, got %v", s.State())
	}

	s.HandlePlaybackDrained(now)
	if s.State() != StateIdle {
		t.Fatalf("Expected idle, got %v", s.State())
	}
}

func TestSession_InvalidResultReturnsToListening(t *testing.T) {
	s, _ := newTestSession()

	s.HandleSpeechStart(time.Now())
	s.HandleSpeechEnd(time.Now())
	s.HandleInvalidResult()

	if s.State() != StateListening {
		t.Errorf("Expected listening after invalid result, got %v", s.State())
	}
}

func TestSession_NetworkLatencyConsumedOnce(t *testing.T) {
	s, _ := newTestSession()
	start := time.Now()

	s.HandleSpeechStart(start)
	s.HandlePartialTranscript("hel", start.Add(80*time.Millisecond))
	s.HandlePartialTranscript("hello", start.Add(500*time.Millisecond))

	// Only the first partial consumes the mark.
	if got := s.Metrics().Current().NetworkLatency; got != 80*time.Millisecond {
		t.Errorf("Expected 80ms network latency, got %v", got)
	}
}

func TestSession_SynthesisLatencyConsumedOnce(t *testing.T) {
	s, _ := newTestSession()
	start := time.Now()

	s.HandleSpeechStart(start)
	s.HandleFinalTranscript("hello", start.Add(time.Second))
	s.HandlePartialResponse("hi", start.Add(1200*time.Millisecond))
	s.HandlePartialResponse("hi there", start.Add(2*time.Second))

	if got := s.Metrics().Current().SynthesisLatency; got != 200*time.Millisecond {
		t.Errorf("Expected 200ms synthesis latency, got %v", got)
	}
}

func TestSession_PartialResponseWithoutFinalTranscript(t *testing.T) {
	s, _ := newTestSession()
	start := time.Now()

	s.HandleSpeechStart(start)
	s.HandlePartialResponse("unsolicited", start.Add(time.Second))

	if got := s.Metrics().Current().SynthesisLatency; got != 0 {
		t.Errorf("Expected no synthesis latency without a pending mark, got %v", got)
	}
}

func TestSession_TranscriptMerging(t *testing.T) {
	s, _ := newTestSession()
	now := time.Now()

	s.HandlePartialTranscript("what", now)
	s.HandlePartialTranscript("what time", now)
	s.HandleFinalTranscript("what time is it", now)
	s.HandlePartialResponse("it is", now)
	s.HandleFinalResponse("it is noon")

	entries := s.Transcript()
	if len(entries) != 2 {
		t.Fatalf("Expected 2 entries, got %d", len(entries))
	}
	if entries[0].Role != RoleUser || entries[0].Text != "what time is it" {
		t.Errorf("Unexpected user entry: %+v", entries[0])
	}
	if entries[1].Role != RoleAgent || entries[1].Text != "it is noon" {
		t.Errorf("Unexpected agent entry: %+v", entries[1])
	}
}

func TestSession_FinalResponseFinishesStream(t *testing.T) {
	s, pb := newTestSession()

	s.HandleFinalResponse("done")

	if _, finishes := pb.counts(); finishes != 1 {
		t.Errorf("Expected MarkStreamFinished, got %d calls", finishes)
	}
}

func TestSession_SynthesisStoppedResetsPlayback(t *testing.T) {
	s, pb := newTestSession()

	s.HandleSynthesisStopped()

	if resets, _ := pb.counts(); resets != 1 {
		t.Errorf("Expected playback reset, got %d calls", resets)
	}
}

func TestSession_StateChangeHook(t *testing.T) {
	s, _ := newTestSession()

	transitions := make(chan [2]State, 8)
	s.OnStateChange(func(old, new State) {
		transitions <- [2]State{old, new}
	})

	s.HandleSpeechStart(time.Now())

	select {
	case tr := <-transitions:
		if tr[0] != StateIdle || tr[1] != StateListening {
			t.Errorf("Expected idle->listening, got %v->%v", tr[0], tr[1])
		}
	case <-time.After(time.Second):
		t.Fatal("State change hook never fired")
	}

	// Re-entering the same state is not a transition.
	s.HandleInvalidResult()
	select {
	case tr := <-transitions:
		t.Errorf("Unexpected transition %v->%v", tr[0], tr[1])
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSession_Snapshot(t *testing.T) {
	s, _ := newTestSession()

	s.HandleSpeechStart(time.Now())
	s.HandlePartialTranscript("hello", time.Now())

	snap := s.Snapshot()
	if snap.ID != s.ID() {
		t.Error("Snapshot ID mismatch")
	}
	if snap.State != "listening" {
		t.Errorf("Expected listening, got %q", snap.State)
	}
	if len(snap.Transcript) != 1 {
		t.Errorf("Expected 1 transcript entry, got %d", len(snap.Transcript))
	}
}
