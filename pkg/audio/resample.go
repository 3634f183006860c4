package audio

import "math"

// Resample converts audio from one sample rate to another using linear
// interpolation. Each chunk is resampled independently with no retained
// state; the minor phase discontinuity at chunk boundaries is acceptable
// for speech audio. For higher quality, consider a polyphase filter.
func Resample(samples []float64, fromRate, toRate int) []float64 {
	if fromRate == toRate {
		return samples
	}

	if len(samples) == 0 {
		return samples
	}

	ratio := float64(toRate) / float64(fromRate)
	newLen := int(math.Round(float64(len(samples)) * ratio))

	if newLen == 0 {
		return []float64{}
	}

	result := make([]float64, newLen)

	for i := 0; i < newLen; i++ {
		srcPos := float64(i) / ratio
		srcIdx := int(srcPos)
		frac := srcPos - float64(srcIdx)

		if srcIdx >= len(samples)-1 {
			result[i] = samples[len(samples)-1]
		} else {
			s1 := samples[srcIdx]
			s2 := samples[srcIdx+1]
			result[i] = s1 + frac*(s2-s1)
		}
	}

	return result
}
