package audio

import "context"

// Source captures audio frames from a microphone or other input device.
// Frames are delivered at a fixed cadence in capture order.
type Source interface {
	// Start begins audio capture. Acquiring the device may block.
	Start(ctx context.Context) error

	// Stop halts audio capture and closes the frame channel.
	// It is safe to call Stop multiple times.
	Stop() error

	// Frames returns the channel frames are delivered on.
	// The channel is closed when the source is stopped.
	Frames() <-chan Frame

	// SampleRate returns the capture sample rate in Hz.
	SampleRate() int

	// Name returns the backend name (e.g. "alsa", "mock").
	Name() string
}

// Playing is the handle for one chunk scheduled on an Output.
type Playing interface {
	// Stop cancels playback of this chunk immediately.
	Stop()
}

// Output plays audio chunks on the local output device, one at a time.
type Output interface {
	// Play schedules samples for immediate playback and returns a handle.
	// done is invoked exactly once when the chunk finishes playing, and
	// never synchronously from within Play.
	Play(samples []float64, done func()) (Playing, error)

	// Suspended reports whether the device is currently suspended and
	// cannot start new chunks.
	Suspended() bool

	// OnResume registers fn to be invoked when a suspended device resumes.
	OnResume(fn func())

	// SampleRate returns the output sample rate in Hz.
	SampleRate() int

	// Stop releases the device. It is safe to call multiple times.
	Stop() error

	// Name returns the backend name (e.g. "alsa", "mock").
	Name() string
}
