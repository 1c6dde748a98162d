package capture

// Signed samples use the asymmetric convention: negatives are divided by
// |MinInt16| and non-negatives by MaxInt16, so both extremes map to exactly ±1.
const (
	int16NegScale = 32768.0
	int16PosScale = 32767.0
	uint16Scale   = 65535.0
)

func grow(dst []float32, n int) []float32 {
	if cap(dst) < n {
		return make([]float32, n)
	}
	return dst[:n]
}

// NormalizeFloat32 copies in to dst, clamping to [-1, 1].
func NormalizeFloat32(dst, in []float32) []float32 {
	dst = grow(dst, len(in))
	for i, v := range in {
		switch {
		case v > 1:
			v = 1
		case v < -1:
			v = -1
		case v != v: // NaN
			v = 0
		}
		dst[i] = v
	}
	return dst
}

// NormalizeInt16 maps signed 16-bit samples to [-1, 1].
func NormalizeInt16(dst []float32, in []int16) []float32 {
	dst = grow(dst, len(in))
	for i, v := range in {
		if v < 0 {
			dst[i] = float32(v) / int16NegScale
		} else {
			dst[i] = float32(v) / int16PosScale
		}
	}
	return dst
}

// NormalizeUint16 maps unsigned 16-bit samples to [-1, 1] centered on the midpoint.
func NormalizeUint16(dst []float32, in []uint16) []float32 {
	dst = grow(dst, len(in))
	for i, v := range in {
		dst[i] = float32(v)/uint16Scale*2 - 1
	}
	return dst
}
