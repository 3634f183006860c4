// Package client wires the capture, playback, session, and transport
// components into one voice streaming client. All session-affecting
// events, whether from local segmentation, the remote channel, or
// playback, are funneled through a single event loop and applied strictly
// in arrival order with run-to-completion semantics.
package client

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/gsSaber/ztalk/pkg/audio"
	"github.com/gsSaber/ztalk/pkg/capture"
	"github.com/gsSaber/ztalk/pkg/playback"
	"github.com/gsSaber/ztalk/pkg/session"
	"github.com/gsSaber/ztalk/pkg/transport"
	"github.com/gsSaber/ztalk/pkg/vad"
)

// Sentinel errors for the client package.
var (
	// ErrAlreadyStarted indicates Start was called twice.
	ErrAlreadyStarted = errors.New("client: already started")
)

// Transport is the duplex channel surface the client needs.
type Transport interface {
	Connect(ctx context.Context) error
	Close() error
	IsConnected() bool
	SendControl(msg transport.Message) error
	SendAudio(pcm []byte) error
	OnControl(fn func(msg transport.Message))
	OnAudio(fn func(pcm []byte))
	OnError(fn func(err error))
}

// Config tunes the client.
type Config struct {
	// Segmenter holds utterance segmentation settings.
	Segmenter capture.SegmenterConfig

	// SynthesisRate is the sample rate of inbound synthesis audio in Hz,
	// fixed and known a priori for the deployment.
	SynthesisRate int
}

// DefaultConfig returns the deployment defaults.
func DefaultConfig() Config {
	return Config{
		Segmenter:     capture.DefaultSegmenterConfig(),
		SynthesisRate: 48000,
	}
}

type eventKind int

const (
	evSpeechStart eventKind = iota
	evSpeechEnd
	evControl
	evAudio
	evDrained
)

type event struct {
	kind eventKind
	at   time.Time
	msg  transport.Message
	pcm  []byte
}

// Client is the voice streaming client for one conversation.
type Client struct {
	cfg       Config
	transport Transport
	output    audio.Output
	capture   *capture.Capture
	segmenter *capture.Segmenter
	playback  *playback.Scheduler
	session   *session.Session
	logger    *slog.Logger

	events chan event
	stopCh chan struct{}
	done   chan struct{}

	mu      sync.Mutex
	running bool
	stopped bool
}

// New assembles a client over the given transport and devices. The client
// owns the constructed segmenter, scheduler, and session; observers reach
// them through Session and Playback.
func New(t Transport, source audio.Source, detector vad.Detector, output audio.Output, cfg Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}

	c := &Client{
		cfg:       cfg,
		transport: t,
		output:    output,
		logger:    logger.With("component", "client"),
		events:    make(chan event, 256),
		stopCh:    make(chan struct{}),
		done:      make(chan struct{}),
	}

	c.playback = playback.NewScheduler(output, logger)

	metrics := session.NewCollector()
	c.session = session.New(c.playback, metrics, logger)

	c.segmenter = capture.NewSegmenter(cfg.Segmenter, t, logger)
	c.capture = capture.New(source, detector, c.segmenter, logger)

	c.wire()
	return c
}

// Session returns the conversational state machine.
func (c *Client) Session() *session.Session { return c.session }

// Playback returns the playback scheduler.
func (c *Client) Playback() *playback.Scheduler { return c.playback }

// wire connects component callbacks to the event loop. The speech start
// path runs its urgent side effects synchronously: playback reset (barge-in)
// must land before any stale audio can continue, and the control message
// must hit the wire before the pre-roll flush that follows the callback.
func (c *Client) wire() {
	c.segmenter.OnSpeechStart(func(t time.Time) {
		c.playback.Reset()
		c.sendControl(transport.ActionSpeechStart, t)
		c.post(event{kind: evSpeechStart, at: t})
	})

	c.segmenter.OnSpeechEnd(func(t time.Time) {
		c.sendControl(transport.ActionSpeechEnd, t)
		c.post(event{kind: evSpeechEnd, at: t})
	})

	c.transport.OnControl(func(msg transport.Message) {
		c.post(event{kind: evControl, at: time.Now(), msg: msg})
	})

	c.transport.OnAudio(func(pcm []byte) {
		c.post(event{kind: evAudio, at: time.Now(), pcm: pcm})
	})

	c.transport.OnError(func(err error) {
		c.logger.Warn("transport error", "error", err)
	})

	c.playback.OnDrained(func(t time.Time) {
		c.post(event{kind: evDrained, at: t})
	})
}

// Start connects the channel, opens the conversation, and begins capture.
// A VAD initialization failure is fatal: capture cannot segment without it
// and the error propagates to the caller.
func (c *Client) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return ErrAlreadyStarted
	}
	c.running = true
	c.mu.Unlock()

	if err := c.transport.Connect(ctx); err != nil {
		c.mu.Lock()
		c.running = false
		c.mu.Unlock()
		return err
	}

	if err := c.transport.SendControl(transport.Message{
		Action:    transport.ActionConversationStart,
		Timestamp: stamp(time.Now()),
		Data:      &transport.Payload{SessionID: c.session.ID()},
	}); err != nil {
		c.logger.Warn("conversation start dropped", "error", err)
	}

	if err := c.capture.Start(ctx); err != nil {
		_ = c.transport.Close()
		c.mu.Lock()
		c.running = false
		c.mu.Unlock()
		return err
	}

	go c.run()

	c.logger.Info("session started", "session_id", c.session.ID())
	return nil
}

// run is the single event loop. Each event runs to completion before the
// next is taken, so session state mutated by one handler is stable for
// the rest of that handler.
func (c *Client) run() {
	defer close(c.done)

	for {
		select {
		case <-c.stopCh:
			return
		case ev := <-c.events:
			c.handle(ev)
		}
	}
}

func (c *Client) handle(ev event) {
	switch ev.kind {
	case evSpeechStart:
		c.session.HandleSpeechStart(ev.at)

	case evSpeechEnd:
		c.session.HandleSpeechEnd(ev.at)

	case evControl:
		c.dispatch(ev.msg, ev.at)

	case evAudio:
		c.session.Metrics().IncrementAudioIn()
		c.playback.Enqueue(audio.DecodePCM16(ev.pcm), c.cfg.SynthesisRate)

	case evDrained:
		c.session.HandlePlaybackDrained(ev.at)
		c.sendControl(transport.ActionPlaybackFinished, ev.at)
	}
}

// dispatch applies one remote control message. Unrecognized actions are
// ignored.
func (c *Client) dispatch(msg transport.Message, at time.Time) {
	switch msg.Action {
	case transport.ActionUpdateASR:
		c.session.HandlePartialTranscript(msg.Text(), at)

	case transport.ActionFinishASR:
		c.session.HandleFinalTranscript(msg.Text(), at)

	case transport.ActionInvalidASR:
		c.session.HandleInvalidResult()

	case transport.ActionStartTTS:
		c.session.HandleSynthesisStarted()

	case transport.ActionStopTTS:
		c.session.HandleSynthesisStopped()

	case transport.ActionUpdateResp:
		c.session.HandlePartialResponse(msg.Text(), at)

	case transport.ActionFinishResp:
		c.session.HandleFinalResponse(msg.Text())

	default:
		c.logger.Debug("unhandled action", "action", msg.Action)
	}
}

// Stop tears the session down: capture first so no new utterances start,
// then playback and the output device, then the remote side is notified
// and the channel closed. Every step is best-effort and repeated calls
// are no-ops.
func (c *Client) Stop() error {
	c.mu.Lock()
	if !c.running || c.stopped {
		c.mu.Unlock()
		return nil
	}
	c.stopped = true
	c.mu.Unlock()

	if err := c.capture.Stop(); err != nil {
		c.logger.Warn("capture stop failed", "error", err)
	}

	c.playback.Reset()
	if err := c.output.Stop(); err != nil {
		c.logger.Warn("output stop failed", "error", err)
	}

	if err := c.transport.SendControl(transport.Message{
		Action:    transport.ActionConversationEnd,
		Timestamp: stamp(time.Now()),
	}); err != nil {
		c.logger.Debug("conversation end dropped", "error", err)
	}
	if err := c.transport.Close(); err != nil {
		c.logger.Warn("transport close failed", "error", err)
	}

	close(c.stopCh)
	<-c.done

	c.mu.Lock()
	c.running = false
	c.mu.Unlock()

	c.logger.Info("session stopped", "session_id", c.session.ID())
	return nil
}

// post queues one event for the loop. Events arriving after shutdown are
// dropped.
func (c *Client) post(ev event) {
	select {
	case c.events <- ev:
	case <-c.stopCh:
	}
}

// sendControl sends a control message carrying an event timestamp. Send
// failures are dropped; the remote side recovers from the next event.
func (c *Client) sendControl(action string, t time.Time) {
	err := c.transport.SendControl(transport.Message{
		Action:    action,
		Timestamp: stamp(t),
	})
	if err != nil {
		c.logger.Debug("control send dropped", "action", action, "error", err)
	}
}

// stamp converts a time to the protocol's millisecond timestamp.
func stamp(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Millisecond)
}
