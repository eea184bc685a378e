package audio

// resampleMono16 resamples 16-bit mono PCM samples from srcRate to dstRate
// using linear interpolation. Adapted from MrWong99-glyphoxa's
// pkg/audio.ResampleMono16 (byte-slice PCM there; int16 samples here, since
// MalgoSource already has samples decoded before framing). If srcRate ==
// dstRate the input is returned unchanged.
//
// Used for spec.md §4.1's device-refuses-16kHz edge case: when the capture
// device won't open at 16kHz, MalgoSource reopens it at its own preferred
// rate and resamples every captured buffer down to 16kHz here before
// framing, so nothing downstream of capture ever sees a foreign rate.
func resampleMono16(samples []int16, srcRate, dstRate int) []int16 {
	if srcRate <= 0 || dstRate <= 0 || srcRate == dstRate || len(samples) == 0 {
		return samples
	}

	srcLen := len(samples)
	dstLen := int(int64(srcLen) * int64(dstRate) / int64(srcRate))
	if dstLen == 0 {
		return nil
	}

	out := make([]int16, dstLen)
	ratio := float64(srcRate) / float64(dstRate)

	for i := range out {
		srcPos := float64(i) * ratio
		srcIdx := int(srcPos)
		frac := srcPos - float64(srcIdx)

		s0 := samples[srcIdx]
		s1 := s0
		if srcIdx+1 < srcLen {
			s1 = samples[srcIdx+1]
		}
		out[i] = int16(float64(s0)*(1-frac) + float64(s1)*frac)
	}
	return out
}
