package baseband

import "errors"

// Bit buffers in this package hold one bit per byte, value 0 or 1, in air
// order (least significant bit of each field first).

var (
	// ErrShortBuffer is returned when a buffer is shorter than the requested length
	ErrShortBuffer = errors.New("baseband: buffer too short")

	// ErrWidth is returned when a bit width does not fit the host integer
	ErrWidth = errors.New("baseband: invalid bit width")

	// ErrBlockLength is returned when a codec block has the wrong number of bits
	ErrBlockLength = errors.New("baseband: invalid block length")

	// ErrNoAccessCode is returned when no access code could be located
	ErrNoAccessCode = errors.New("baseband: no access code")
)

// AirToHost converts width air order bits into a host order integer.
// bits[0] becomes the least significant bit of the result.
func AirToHost(bits []byte, width int) (uint32, error) {
	if width < 0 || width > 32 {
		return 0, ErrWidth
	}
	if width > len(bits) {
		return 0, ErrShortBuffer
	}
	return airToHost(bits[:width]), nil
}

// AirToHost8 converts up to 8 air order bits
func AirToHost8(bits []byte, width int) (uint8, error) {
	if width > 8 {
		return 0, ErrWidth
	}
	v, err := AirToHost(bits, width)
	return uint8(v), err
}

// AirToHost16 converts up to 16 air order bits
func AirToHost16(bits []byte, width int) (uint16, error) {
	if width > 16 {
		return 0, ErrWidth
	}
	v, err := AirToHost(bits, width)
	return uint16(v), err
}

// AirToHost32 converts up to 32 air order bits
func AirToHost32(bits []byte, width int) (uint32, error) {
	return AirToHost(bits, width)
}

// HostToAir writes the low width bits of value into dst, LSB first.
// Exactly width cells are overwritten.
func HostToAir(dst []byte, value uint32, width int) error {
	if width < 0 || width > 32 {
		return ErrWidth
	}
	if width > len(dst) {
		return ErrShortBuffer
	}
	hostToAir(dst[:width], value)
	return nil
}

func airToHost(bits []byte) uint32 {
	var v uint32
	for i, b := range bits {
		v |= uint32(b&0x01) << i
	}
	return v
}

func hostToAir(dst []byte, value uint32) {
	for i := range dst {
		dst[i] = byte(value>>i) & 0x01
	}
}

// Reverse8 reverses the bit order within a byte
func Reverse8(b byte) byte {
	return (b&0x80)>>7 | (b&0x40)>>5 | (b&0x20)>>3 | (b&0x10)>>1 |
		(b&0x08)<<1 | (b&0x04)<<3 | (b&0x02)<<5 | (b&0x01)<<7
}

// UnpackByte expands b into dst[0:8], most significant bit first
func UnpackByte(dst []byte, b byte) {
	_ = dst[7]
	for i := 0; i < 8; i++ {
		dst[i] = (b >> (7 - i)) & 0x01
	}
}

// Unpack expands packed bytes into one bit per byte, most significant bit first
func Unpack(packed []byte) []byte {
	bits := make([]byte, len(packed)<<3)
	for idx, b := range packed {
		UnpackByte(bits[idx<<3:], b)
	}
	return bits
}

// Pack is the inverse of Unpack. A trailing partial byte is padded with zeros.
func Pack(bits []byte) []byte {
	packed := make([]byte, (len(bits)+7)>>3)
	for i, b := range bits {
		if b&0x01 != 0 {
			packed[i>>3] |= 0x80 >> (i & 7)
		}
	}
	return packed
}
