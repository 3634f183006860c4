// Package audio provides the audio primitives shared by the capture and
// playback paths: normalized float frames, PCM16 encoding, linear
// resampling, and the device interfaces with mock implementations for
// testing without hardware.
package audio

import "math"

// Frame is one chunk of normalized audio samples in the range [-1, 1],
// tagged with its sample rate.
type Frame struct {
	Samples []float64
	Rate    int
}

// Duration returns the frame duration in seconds.
func (f *Frame) Duration() float64 {
	if f.Rate == 0 {
		return 0
	}
	return float64(len(f.Samples)) / float64(f.Rate)
}

// EncodePCM16 converts normalized float samples to 16-bit signed PCM,
// little-endian. Samples are clamped to [-1, 1] and scaled asymmetrically
// so both full-scale extremes map onto the int16 range.
func EncodePCM16(samples []float64) []byte {
	buf := make([]byte, len(samples)*2)
	for i, s := range samples {
		if s < -1 {
			s = -1
		} else if s > 1 {
			s = 1
		}
		var v int16
		if s < 0 {
			v = int16(math.Round(s * 32768))
		} else {
			v = int16(math.Round(s * 32767))
		}
		buf[i*2] = byte(v)
		buf[i*2+1] = byte(v >> 8)
	}
	return buf
}

// DecodePCM16 converts little-endian 16-bit signed PCM bytes to normalized
// float samples. A trailing odd byte is ignored.
func DecodePCM16(data []byte) []float64 {
	samples := make([]float64, len(data)/2)
	for i := range samples {
		v := int16(data[i*2]) | int16(data[i*2+1])<<8
		if v < 0 {
			samples[i] = float64(v) / 32768
		} else {
			samples[i] = float64(v) / 32767
		}
	}
	return samples
}
