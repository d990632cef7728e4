package baseband

// Data whitening with the 127 bit m-sequence of g(D) = D^7 + D^4 + 1.
// The shift register is seeded with CLK6-1 and a leading one; whiteningIndices
// maps that seed to the position of the seeded state in whiteningData.

const whiteningPeriod = 127

var whiteningIndices = [64]byte{
	99, 85, 17, 50, 102, 58, 108, 45, 92, 62, 32, 118, 88, 11, 80, 2,
	37, 69, 55, 8, 20, 40, 74, 114, 15, 106, 30, 78, 53, 72, 28, 26,
	68, 7, 39, 113, 105, 77, 71, 25, 84, 49, 57, 44, 61, 117, 10, 1,
	123, 124, 22, 125, 111, 23, 42, 126, 6, 112, 76, 24, 48, 43, 116, 0,
}

var whiteningData = [whiteningPeriod]byte{
	1, 1, 1, 0, 0, 0, 1, 1, 1, 0, 1, 1, 0, 0, 0, 1, 0, 1, 0, 0, 1, 0, 1, 1,
	1, 1, 1, 0, 1, 0, 1, 0, 1, 0, 0, 0, 0, 1, 0, 1, 1, 0, 1, 1, 1, 1, 0, 0,
	1, 1, 1, 0, 0, 1, 0, 1, 0, 1, 1, 0, 0, 1, 1, 0, 0, 0, 0, 0, 1, 1, 0, 1,
	1, 0, 1, 0, 1, 1, 1, 0, 1, 0, 0, 0, 1, 1, 0, 0, 1, 0, 0, 0, 1, 0, 0, 0,
	0, 0, 0, 1, 0, 0, 1, 0, 0, 1, 1, 0, 1, 0, 0, 1, 1, 1, 1, 0, 1, 1, 1, 0,
	0, 0, 0, 1, 1, 1, 1,
}

// Whiten XORs in with the whitening sequence for clock, starting skip bits
// into it. Whitening is its own inverse.
func Whiten(in []byte, clock uint32, skip int) []byte {
	out := make([]byte, len(in))
	whiten(out, in, clock, skip)
	return out
}

// Unwhiten removes whitening; it is the same operation as Whiten
func Unwhiten(in []byte, clock uint32, skip int) []byte {
	return Whiten(in, clock, skip)
}

// WhitenInto writes the whitened form of src into dst
func WhitenInto(dst, src []byte, clock uint32, skip int) error {
	if len(dst) < len(src) {
		return ErrShortBuffer
	}
	whiten(dst, src, clock, skip)
	return nil
}

func whiten(dst, src []byte, clock uint32, skip int) {
	index := whiteningStart(clock, skip)
	for i, b := range src {
		dst[i] = b ^ whiteningData[index]
		index++
		if index == whiteningPeriod {
			index = 0
		}
	}
}

func whiteningStart(clock uint32, skip int) int {
	index := (int(whiteningIndices[clock&0x3f]) + skip) % whiteningPeriod
	if index < 0 {
		index += whiteningPeriod
	}
	return index
}
