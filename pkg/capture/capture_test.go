package capture

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gsSaber/ztalk/pkg/audio"
	"github.com/gsSaber/ztalk/pkg/vad"
)

func TestCapture_StartWithoutDetector(t *testing.T) {
	source := audio.NewMockSource(16000, nil)
	seg := newTestSegmenter(&recordingSender{})
	c := New(source, nil, seg, nil)

	err := c.Start(context.Background())
	if !errors.Is(err, ErrVADUnavailable) {
		t.Fatalf("Expected ErrVADUnavailable, got %v", err)
	}
}

func TestCapture_StartDetectorFailure(t *testing.T) {
	source := audio.NewMockSource(16000, nil)
	detector := vad.NewMock()
	detector.StartErr = errors.New("model missing")
	seg := newTestSegmenter(&recordingSender{})
	c := New(source, detector, seg, nil)

	err := c.Start(context.Background())
	if !errors.Is(err, ErrVADUnavailable) {
		t.Fatalf("Expected ErrVADUnavailable, got %v", err)
	}
}

func TestCapture_DoubleStart(t *testing.T) {
	source := audio.NewMockSource(16000, nil)
	detector := vad.NewMock()
	seg := newTestSegmenter(&recordingSender{})
	c := New(source, detector, seg, nil)

	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer c.Stop()

	if err := c.Start(context.Background()); !errors.Is(err, ErrAlreadyStarted) {
		t.Fatalf("Expected ErrAlreadyStarted, got %v", err)
	}
}

func TestCapture_FramesFlowThroughSegmenter(t *testing.T) {
	source := audio.NewMockSource(16000, nil)
	detector := vad.NewMock()
	sender := &recordingSender{}
	seg := newTestSegmenter(sender)
	c := New(source, detector, seg, nil)

	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	// Idle frames buffer into the pre-roll.
	source.Push(frame(0.1))
	source.Push(frame(0.2))
	waitFrames(t, detector, 2)
	// Let the frame loop hand the processed frames to the segmenter.
	time.Sleep(10 * time.Millisecond)

	// The detector's boundary callbacks drive the segmenter.
	detector.TriggerSpeechStart(time.Now())

	sender.mu.Lock()
	flushed := len(sender.payloads)
	sender.mu.Unlock()
	if flushed != 1 {
		t.Fatalf("Expected pre-roll flush on speech start, got %d payloads", flushed)
	}

	source.Push(frame(0.3))

	deadline := time.Now().Add(2 * time.Second)
	for {
		sender.mu.Lock()
		live := len(sender.payloads)
		sender.mu.Unlock()
		if live == 2 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("Expected live frame transmitted, got %d payloads", live)
		}
		time.Sleep(time.Millisecond)
	}

	detector.TriggerSpeechEnd(time.Now())

	if err := c.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
}

func TestCapture_StopIdempotent(t *testing.T) {
	source := audio.NewMockSource(16000, nil)
	detector := vad.NewMock()
	seg := newTestSegmenter(&recordingSender{})
	c := New(source, detector, seg, nil)

	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	if err := c.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if err := c.Stop(); err != nil {
		t.Fatalf("Second Stop failed: %v", err)
	}
}

// waitFrames polls until the detector has processed n frames, so the test
// only drives the segmenter while the frame loop is parked on its channel.
func waitFrames(t *testing.T, m *vad.Mock, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if m.ProcessedCount() >= n {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("Timed out waiting for %d frames", n)
}
