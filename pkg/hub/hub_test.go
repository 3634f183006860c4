package hub

import (
	"testing"
	"time"
)

func TestHub_BroadcastWithoutObservers(t *testing.T) {
	h := New("test", nil)
	go h.Run()

	// Broadcasting into an empty hub must not block or panic.
	for i := 0; i < 10; i++ {
		h.Broadcast(Message{Data: []byte(`{}`)})
	}

	time.Sleep(10 * time.Millisecond)
	if h.ClientCount() != 0 {
		t.Errorf("Expected no observers, got %d", h.ClientCount())
	}
}

func TestHub_BroadcastJSON(t *testing.T) {
	h := New("test", nil)

	if err := h.BroadcastJSON(map[string]string{"state": "idle"}); err != nil {
		t.Fatalf("BroadcastJSON failed: %v", err)
	}

	// Unencodable values surface as errors.
	if err := h.BroadcastJSON(make(chan int)); err == nil {
		t.Error("Expected encoding error")
	}
}

func TestHub_RegisterUnregister(t *testing.T) {
	h := New("test", nil)
	go h.Run()

	c := &Client{hub: h, send: make(chan Message, 1)}
	h.register <- c

	deadline := time.Now().Add(time.Second)
	for h.ClientCount() != 1 {
		if time.Now().After(deadline) {
			t.Fatal("Observer never registered")
		}
		time.Sleep(time.Millisecond)
	}

	h.Broadcast(Message{Data: []byte(`{"a":1}`)})

	select {
	case msg := <-c.send:
		if string(msg.Data) != `{"a":1}` {
			t.Errorf("Unexpected payload: %s", msg.Data)
		}
	case <-time.After(time.Second):
		t.Fatal("Broadcast never reached observer")
	}

	h.unregister <- c
	deadline = time.Now().Add(time.Second)
	for h.ClientCount() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("Observer never unregistered")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestHub_SlowObserverDropped(t *testing.T) {
	h := New("test", nil)
	go h.Run()

	// A full send buffer marks the observer as too slow.
	c := &Client{hub: h, send: make(chan Message)}
	h.register <- c

	deadline := time.Now().Add(time.Second)
	for h.ClientCount() != 1 {
		if time.Now().After(deadline) {
			t.Fatal("Observer never registered")
		}
		time.Sleep(time.Millisecond)
	}

	h.Broadcast(Message{Data: []byte(`{}`)})

	deadline = time.Now().Add(time.Second)
	for h.ClientCount() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("Slow observer never dropped")
		}
		time.Sleep(time.Millisecond)
	}
}
