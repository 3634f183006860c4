package audio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strconv"
	"sync"
	"sync/atomic"
)

// Sentinel errors for ALSA devices.
var (
	ErrSourceRunning = errors.New("audio: source already running")
	ErrOutputClosed  = errors.New("audio: output closed")
)

// ALSASource captures microphone audio through an arecord pipeline. The
// process emits a continuous raw PCM16 stream that is sliced into fixed
// frames. Frames the consumer cannot keep up with are dropped.
type ALSASource struct {
	device    string
	rate      int
	frameSize int
	logger    *slog.Logger

	mu      sync.Mutex
	running bool
	cmd     *exec.Cmd
	stdout  io.ReadCloser
	frames  chan Frame

	overruns atomic.Int64
}

// NewALSASource creates a capture source on device (empty for the ALSA
// default) at rate Hz delivering frameSize samples per frame.
func NewALSASource(device string, rate, frameSize int, logger *slog.Logger) *ALSASource {
	if logger == nil {
		logger = slog.Default()
	}
	if device == "" {
		device = "default"
	}
	return &ALSASource{
		device:    device,
		rate:      rate,
		frameSize: frameSize,
		logger:    logger.With("component", "audio", "backend", "alsa"),
		frames:    make(chan Frame, 16),
	}
}

// Start spawns the capture process and begins delivering frames.
func (s *ALSASource) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return ErrSourceRunning
	}

	cmd := exec.CommandContext(ctx, "arecord",
		"-q",
		"-D", s.device,
		"-f", "S16_LE",
		"-r", strconv.Itoa(s.rate),
		"-c", "1",
		"-t", "raw",
	)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("audio: capture pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("audio: start capture: %w", err)
	}

	s.cmd = cmd
	s.stdout = stdout
	s.running = true
	s.frames = make(chan Frame, 16)

	go s.readLoop(stdout, s.frames)

	s.logger.Info("capture started", "device", s.device, "rate", s.rate)
	return nil
}

// readLoop slices the raw stream into frames until the pipe closes.
func (s *ALSASource) readLoop(r io.Reader, out chan<- Frame) {
	defer close(out)

	buf := make([]byte, s.frameSize*2)
	for {
		if _, err := io.ReadFull(r, buf); err != nil {
			return
		}

		frame := Frame{Samples: DecodePCM16(buf), Rate: s.rate}
		select {
		case out <- frame:
		default:
			s.overruns.Add(1)
			s.logger.Debug("capture overrun, dropping frame")
		}
	}
}

// Stop kills the capture process. The frame channel closes once the
// reader drains.
func (s *ALSASource) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}
	s.running = false

	if s.stdout != nil {
		s.stdout.Close()
	}
	if s.cmd != nil && s.cmd.Process != nil {
		_ = s.cmd.Process.Kill()
		_ = s.cmd.Wait()
	}
	s.cmd = nil

	s.logger.Info("capture stopped", "overruns", s.overruns.Load())
	return nil
}

// Frames returns the capture frame channel.
func (s *ALSASource) Frames() <-chan Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frames
}

// SampleRate returns the capture rate in Hz.
func (s *ALSASource) SampleRate() int { return s.rate }

// Name returns "alsa".
func (s *ALSASource) Name() string { return "alsa" }

// ALSAOutput plays audio chunks through aplay, one process per chunk.
// Process exit is the completion signal, so done fires only after the
// device has consumed the chunk.
type ALSAOutput struct {
	device string
	rate   int
	logger *slog.Logger

	mu     sync.Mutex
	closed bool
	active *exec.Cmd
}

// NewALSAOutput creates a playback device on device (empty for the ALSA
// default) at rate Hz.
func NewALSAOutput(device string, rate int, logger *slog.Logger) *ALSAOutput {
	if logger == nil {
		logger = slog.Default()
	}
	if device == "" {
		device = "default"
	}
	return &ALSAOutput{
		device: device,
		rate:   rate,
		logger: logger.With("component", "audio", "backend", "alsa"),
	}
}

// Play schedules one chunk. done fires from the process reaper goroutine
// once aplay exits, including after a Stop on the handle.
func (o *ALSAOutput) Play(samples []float64, done func()) (Playing, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return nil, ErrOutputClosed
	}

	cmd := exec.Command("aplay",
		"-q",
		"-D", o.device,
		"-f", "S16_LE",
		"-r", strconv.Itoa(o.rate),
		"-c", "1",
		"-t", "raw",
	)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("audio: playback pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("audio: start playback: %w", err)
	}

	o.active = cmd
	pcm := EncodePCM16(samples)

	go func() {
		_, _ = stdin.Write(pcm)
		stdin.Close()
		_ = cmd.Wait()

		o.mu.Lock()
		if o.active == cmd {
			o.active = nil
		}
		o.mu.Unlock()

		done()
	}()

	return &alsaPlaying{cmd: cmd}, nil
}

// Suspended always reports false; aplay has no suspend notion.
func (o *ALSAOutput) Suspended() bool { return false }

// OnResume is a no-op for ALSA.
func (o *ALSAOutput) OnResume(fn func()) {}

// SampleRate returns the playback rate in Hz.
func (o *ALSAOutput) SampleRate() int { return o.rate }

// Stop releases the device, cancelling any active chunk.
func (o *ALSAOutput) Stop() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return nil
	}
	o.closed = true

	if o.active != nil && o.active.Process != nil {
		_ = o.active.Process.Kill()
	}
	o.active = nil
	return nil
}

// Name returns "alsa".
func (o *ALSAOutput) Name() string { return "alsa" }

type alsaPlaying struct {
	cmd *exec.Cmd
}

// Stop kills the chunk's playback process.
func (p *alsaPlaying) Stop() {
	if p.cmd != nil && p.cmd.Process != nil {
		_ = p.cmd.Process.Kill()
	}
}

var (
	_ Source = (*ALSASource)(nil)
	_ Output = (*ALSAOutput)(nil)
)
