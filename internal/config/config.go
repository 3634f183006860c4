// Package config provides configuration loading for the ztalk client.
// Settings come from an optional YAML file with environment variable overrides.
package config

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration for the ztalk client.
type Config struct {
	// Server is the websocket URL of the conversation service.
	Server string `yaml:"server"`

	// LogLevel controls log verbosity: debug, info, warn, error.
	LogLevel string `yaml:"log_level"`

	// Audio holds capture and playback settings.
	Audio AudioConfig `yaml:"audio"`

	// VAD holds voice activity detection settings.
	VAD VADConfig `yaml:"vad"`

	// Monitor is the listen address for the local dashboard.
	// Empty disables the dashboard.
	Monitor string `yaml:"monitor"`
}

// AudioConfig holds audio device and format settings.
type AudioConfig struct {
	// CaptureRate is the microphone sample rate in Hz.
	CaptureRate int `yaml:"capture_rate"`

	// OutputRate is the playback device sample rate in Hz.
	OutputRate int `yaml:"output_rate"`

	// SynthesisRate is the sample rate of inbound synthesized audio.
	// Fixed by the service deployment.
	SynthesisRate int `yaml:"synthesis_rate"`

	// FrameDuration is the capture frame cadence.
	FrameDuration time.Duration `yaml:"frame_duration"`
}

// VADConfig holds segmentation tuning.
type VADConfig struct {
	// SpeechThreshold is the speech probability above which the detector
	// signals speech start (0.0-1.0).
	SpeechThreshold float64 `yaml:"speech_threshold"`

	// SilenceThreshold is the non-speech probability above which a frame
	// counts toward end-of-speech (0.0-1.0).
	SilenceThreshold float64 `yaml:"silence_threshold"`

	// SilenceFrames is the consecutive silent frame count that ends an
	// utterance.
	SilenceFrames int `yaml:"silence_frames"`

	// PreRollFrames is the number of frames buffered before speech start.
	PreRollFrames int `yaml:"preroll_frames"`
}

// Default returns a Config with the deployment defaults.
func Default() Config {
	return Config{
		Server:   "ws://localhost:8000/ws",
		LogLevel: "info",
		Audio: AudioConfig{
			CaptureRate:   16000,
			OutputRate:    48000,
			SynthesisRate: 48000,
			FrameDuration: 20 * time.Millisecond,
		},
		VAD: VADConfig{
			SpeechThreshold:  0.5,
			SilenceThreshold: 0.9,
			SilenceFrames:    10,
			PreRollFrames:    20,
		},
	}
}

// Load reads the YAML configuration file at path, applies environment
// overrides, and returns a validated Config. A missing file is not an
// error; defaults plus environment apply.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return cfg, fmt.Errorf("config: open %q: %w", path, err)
			}
		} else {
			defer f.Close()
			if cfg, err = loadFromReader(f, cfg); err != nil {
				return cfg, fmt.Errorf("config: parse %q: %w", path, err)
			}
		}
	}

	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// loadFromReader decodes YAML from r over base.
// Useful in tests where configs are constructed from string literals.
func loadFromReader(r io.Reader, base Config) (Config, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&base); err != nil {
		return base, err
	}
	return base, nil
}

// applyEnv overrides settings from the environment.
func applyEnv(cfg *Config) {
	if v := os.Getenv("ZTALK_SERVER"); v != "" {
		cfg.Server = v
	}
	if v := os.Getenv("ZTALK_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("ZTALK_MONITOR"); v != "" {
		cfg.Monitor = v
	}
	if v := os.Getenv("ZTALK_CAPTURE_RATE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Audio.CaptureRate = n
		}
	}
	if v := os.Getenv("ZTALK_OUTPUT_RATE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Audio.OutputRate = n
		}
	}
}

// Validate checks that the configuration is coherent.
func (c *Config) Validate() error {
	if c.Server == "" {
		return fmt.Errorf("config: server URL is required")
	}
	if c.Audio.CaptureRate <= 0 {
		return fmt.Errorf("config: audio.capture_rate must be positive, got %d", c.Audio.CaptureRate)
	}
	if c.Audio.OutputRate <= 0 {
		return fmt.Errorf("config: audio.output_rate must be positive, got %d", c.Audio.OutputRate)
	}
	if c.Audio.SynthesisRate <= 0 {
		return fmt.Errorf("config: audio.synthesis_rate must be positive, got %d", c.Audio.SynthesisRate)
	}
	if c.Audio.FrameDuration <= 0 {
		return fmt.Errorf("config: audio.frame_duration must be positive, got %v", c.Audio.FrameDuration)
	}
	if c.VAD.SpeechThreshold < 0 || c.VAD.SpeechThreshold > 1 {
		return fmt.Errorf("config: vad.speech_threshold must be between 0 and 1")
	}
	if c.VAD.SilenceThreshold < 0 || c.VAD.SilenceThreshold > 1 {
		return fmt.Errorf("config: vad.silence_threshold must be between 0 and 1")
	}
	if c.VAD.SilenceFrames <= 0 {
		return fmt.Errorf("config: vad.silence_frames must be positive, got %d", c.VAD.SilenceFrames)
	}
	if c.VAD.PreRollFrames <= 0 {
		return fmt.Errorf("config: vad.preroll_frames must be positive, got %d", c.VAD.PreRollFrames)
	}
	return nil
}

// FrameSize returns the number of samples per capture frame.
func (c *AudioConfig) FrameSize() int {
	return int(float64(c.CaptureRate) * c.FrameDuration.Seconds())
}
