package testhelpers

import (
	"github.com/dbehnke/btbb-nexus/pkg/baseband"
	"github.com/dbehnke/btbb-nexus/pkg/sniffer"
)

// Burst places one transmission in a synthetic air stream
type Burst struct {
	Offset int
	LAP    uint32
	Header *baseband.Header // nil writes the access code only
	Clock  uint32           // CLK6-1 used to whiten the header
}

// Noise returns n pseudo-random bits from a fixed LCG, so a seed always
// produces the same stream
func Noise(n int, seed uint32) []byte {
	bits := make([]byte, n)
	x := seed
	for i := range bits {
		x = x*1103515245 + 12345
		bits[i] = byte(x>>16) & 0x01
	}
	return bits
}

// BuildStream writes bursts over n bits of noise
func BuildStream(n int, seed uint32, bursts ...Burst) []byte {
	bits := Noise(n, seed)
	for _, b := range bursts {
		copy(bits[b.Offset:], baseband.GenerateAccessCode(b.LAP).Bits())
		if b.Header != nil {
			copy(bits[b.Offset+baseband.AccessCodeBits:], baseband.EncodeHeader(*b.Header, b.Clock))
		}
	}
	return bits
}

// SlotTrain returns count bursts for one LAP spaced a slot apart with the
// clock advancing by one per slot, the way a master polls its piconet
func SlotTrain(lap uint32, uap uint8, start, count int, clock uint32, h baseband.Header) []Burst {
	bursts := make([]Burst, 0, count)
	for i := 0; i < count; i++ {
		hdr := h
		hdr.SealHEC(uap)
		bursts = append(bursts, Burst{
			Offset: start + i*sniffer.SlotBits,
			LAP:    lap,
			Header: &hdr,
			Clock:  (clock + uint32(i)) & 0x3f,
		})
	}
	return bursts
}
