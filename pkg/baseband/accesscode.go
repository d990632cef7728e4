package baseband

import "encoding/binary"

// Access code synthesis and verification.
// Endianness: the LAP is transmitted MSB first, everything else LSB first.

const (
	// AccessCodeBits is the length of a complete access code on air
	AccessCodeBits = 72

	// LAPMask keeps the 24 bits of a lower address part
	LAPMask = 0xFFFFFF

	// GIAC is the general inquiry access code LAP
	GIAC = 0x9E8B33

	syncDataBits   = 30
	syncCodeLength = 64

	trailerSet   = 0x2a
	trailerClear = 0xd5

	preambleSet   = 0xa0
	preambleClear = 0x50
)

// pnSequence is XORed over the sync word before and after encoding
var pnSequence = [9]byte{0x03, 0xF2, 0xA3, 0x3D, 0xD6, 0x9B, 0x12, 0x1C, 0x10}

// AccessCode is a packed 72 bit access code: 4 bit preamble, 64 bit sync
// word, 4 bit trailer, first transmitted bit in the MSB of byte 0.
type AccessCode [9]byte

// GenerateAccessCode builds the access code for a LAP
func GenerateAccessCode(lap uint32) AccessCode {
	var ac AccessCode

	l := reorderLAP(lap & LAPMask)

	ac[4] = byte((l & 0xc00000) >> 22)
	ac[5] = byte((l & 0x3fc000) >> 14)
	ac[6] = byte((l & 0x003fc0) >> 6)
	ac[7] = byte((l & 0x00003f) << 2)

	// Trailer
	if l&0x1 != 0 {
		ac[7] |= 0x03
		ac[8] = trailerSet
	} else {
		ac[8] = trailerClear
	}

	for i := 4; i < 9; i++ {
		ac[i] ^= pnSequence[i]
	}

	data := make([]byte, syncDataBits)
	data[0] = (ac[4] & 0x02) >> 1
	data[1] = ac[4] & 0x01
	UnpackByte(data[2:], ac[5])
	UnpackByte(data[10:], ac[6])
	UnpackByte(data[18:], ac[7])
	for i := 0; i < 4; i++ {
		data[26+i] = (ac[8] >> (7 - i)) & 0x01
	}

	cw := codeword(data, syncCodeLength, syncDataBits, AccessCodeGenerator[:])

	ac[0] = packMSB(cw[0:4])
	ac[1] = packMSB(cw[4:12])
	ac[2] = packMSB(cw[12:20])
	ac[3] = packMSB(cw[20:28])
	ac[4] = packMSB(cw[28:34])<<2 | (ac[4] & 0x03)

	for i := range ac {
		ac[i] ^= pnSequence[i]
	}

	// Preamble
	if ac[0]&0x08 != 0 {
		ac[0] |= preambleSet
	} else {
		ac[0] |= preambleClear
	}

	return ac
}

// Bits expands the access code to 72 cells in transmit order
func (ac AccessCode) Bits() []byte {
	bits := make([]byte, AccessCodeBits)
	for i, b := range ac {
		UnpackByte(bits[i<<3:], b)
	}
	return bits
}

// SyncWord returns the 64 bit sync word between preamble and trailer
func (ac AccessCode) SyncWord() uint64 {
	return binary.BigEndian.Uint64(ac[0:8])<<4 | uint64(ac[8]>>4)
}

// LAP returns the lower address part carried in the sync word
func (ac AccessCode) LAP() uint32 {
	l := uint32(ac[4]&0x03)<<22 | uint32(ac[5])<<14 | uint32(ac[6])<<6 | uint32(ac[7])>>2
	return reorderLAP(l)
}

// LAPFromBits reads the LAP field of a 72 bit candidate access code.
// The result is only meaningful once CheckAccessCode confirms it.
func LAPFromBits(bits []byte) (uint32, error) {
	if len(bits) < AccessCodeBits {
		return 0, ErrShortBuffer
	}
	return accessCodeFromBits(bits).LAP(), nil
}

// CheckAccessCode generates the access code for lap and compares it bit for
// bit against the start of stream. Any mismatch fails the check.
func CheckAccessCode(stream []byte, lap uint32) bool {
	if len(stream) < AccessCodeBits {
		return false
	}
	return matchBits(stream, GenerateAccessCode(lap).Bits())
}

// FindAccessCode returns the first offset in stream holding the access code
// for lap, or -1.
func FindAccessCode(stream []byte, lap uint32) int {
	want := GenerateAccessCode(lap).Bits()
	for offset := 0; offset+AccessCodeBits <= len(stream); offset++ {
		if matchBits(stream[offset:], want) {
			return offset
		}
	}
	return -1
}

// SniffAccessCode searches stream for an access code of any LAP. At each
// offset the LAP field is read out and the regenerated code must match all
// 72 bits; no error tolerance is applied.
func SniffAccessCode(stream []byte) (offset int, lap uint32, ok bool) {
	for offset = 0; offset+AccessCodeBits <= len(stream); offset++ {
		candidate := stream[offset : offset+AccessCodeBits]
		if !alternating(candidate[0:4]) || !alternating(candidate[68:72]) {
			continue
		}
		lap = accessCodeFromBits(candidate).LAP()
		if matchBits(candidate, GenerateAccessCode(lap).Bits()) {
			return offset, lap, true
		}
	}
	return -1, 0, false
}

func accessCodeFromBits(bits []byte) AccessCode {
	var ac AccessCode
	for i := range ac {
		ac[i] = packMSB(bits[i<<3 : i<<3+8])
	}
	return ac
}

// reorderLAP reverses the bits of each LAP byte and swaps the outer bytes.
// It is its own inverse.
func reorderLAP(lap uint32) uint32 {
	return uint32(Reverse8(byte(lap>>16))) |
		uint32(Reverse8(byte(lap>>8)))<<8 |
		uint32(Reverse8(byte(lap)))<<16
}

func packMSB(bits []byte) byte {
	var v byte
	for _, b := range bits {
		v = v<<1 | (b & 0x01)
	}
	return v
}

func matchBits(stream, want []byte) bool {
	for i, b := range want {
		if stream[i] != b {
			return false
		}
	}
	return true
}

// preamble and trailer are always 0101 or 1010
func alternating(bits []byte) bool {
	for i := 1; i < len(bits); i++ {
		if bits[i] == bits[i-1] || bits[i] > 1 {
			return false
		}
	}
	return bits[0] <= 1
}
