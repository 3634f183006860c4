package audio

import (
	"math"
	"testing"
)

func TestEncodePCM16_Extremes(t *testing.T) {
	pcm := EncodePCM16([]float64{-1, 0, 1})

	if len(pcm) != 6 {
		t.Fatalf("Expected 6 bytes, got %d", len(pcm))
	}

	if v := decodeInt16(pcm, 0); v != -32768 {
		t.Errorf("Full-scale negative: expected -32768, got %d", v)
	}
	if v := decodeInt16(pcm, 1); v != 0 {
		t.Errorf("Zero: expected 0, got %d", v)
	}
	if v := decodeInt16(pcm, 2); v != 32767 {
		t.Errorf("Full-scale positive: expected 32767, got %d", v)
	}
}

func TestEncodePCM16_AsymmetricScale(t *testing.T) {
	// Negative samples scale by 32768, positive by 32767.
	pcm := EncodePCM16([]float64{-0.5, 0.5})

	if v := decodeInt16(pcm, 0); v != -16384 {
		t.Errorf("Expected -16384, got %d", v)
	}
	if v := decodeInt16(pcm, 1); v != 16384 { // round(0.5*32767) = 16384
		t.Errorf("Expected 16384, got %d", v)
	}
}

func TestEncodePCM16_Clamps(t *testing.T) {
	pcm := EncodePCM16([]float64{-2.5, 3.0})

	if v := decodeInt16(pcm, 0); v != -32768 {
		t.Errorf("Below range: expected -32768, got %d", v)
	}
	if v := decodeInt16(pcm, 1); v != 32767 {
		t.Errorf("Above range: expected 32767, got %d", v)
	}
}

func TestEncodePCM16_LittleEndian(t *testing.T) {
	// 0x0102 = 258; 258/32767 is the sample that rounds back to it.
	pcm := EncodePCM16([]float64{258.0 / 32767.0})

	if pcm[0] != 0x02 || pcm[1] != 0x01 {
		t.Errorf("Expected little-endian 02 01, got %02x %02x", pcm[0], pcm[1])
	}
}

func TestDecodePCM16_Roundtrip(t *testing.T) {
	in := []float64{-1, -0.25, 0, 0.25, 1}
	out := DecodePCM16(EncodePCM16(in))

	if len(out) != len(in) {
		t.Fatalf("Expected %d samples, got %d", len(in), len(out))
	}
	for i := range in {
		if math.Abs(out[i]-in[i]) > 1.0/32767 {
			t.Errorf("Sample %d: expected %v, got %v", i, in[i], out[i])
		}
	}
}

func TestDecodePCM16_OddTrailingByte(t *testing.T) {
	out := DecodePCM16([]byte{0x00, 0x40, 0x7f})
	if len(out) != 1 {
		t.Fatalf("Expected 1 sample, got %d", len(out))
	}
}

func TestFrame_Duration(t *testing.T) {
	f := Frame{Samples: make([]float64, 320), Rate: 16000}
	if d := f.Duration(); d != 0.02 {
		t.Errorf("Expected 0.02s, got %v", d)
	}

	var zero Frame
	if d := zero.Duration(); d != 0 {
		t.Errorf("Expected 0 for zero frame, got %v", d)
	}
}

func decodeInt16(pcm []byte, i int) int16 {
	return int16(pcm[i*2]) | int16(pcm[i*2+1])<<8
}
