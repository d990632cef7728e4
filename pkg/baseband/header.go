package baseband

import "fmt"

const (
	// HeaderInfoBits is the number of header bits covered by the HEC
	HeaderInfoBits = 10

	// HeaderPlainBits is the header length before FEC encoding
	HeaderPlainBits = 18

	// HeaderBits is the 1/3 FEC coded header length on air
	HeaderBits = 3 * HeaderPlainBits
)

// PacketType is the 4 bit TYPE code of a Basic Rate packet header
type PacketType uint8

const (
	TypeNULL PacketType = 0x0
	TypePOLL PacketType = 0x1
	TypeFHS  PacketType = 0x2
	TypeDM1  PacketType = 0x3
	TypeDH1  PacketType = 0x4
	TypeHV1  PacketType = 0x5
	TypeHV2  PacketType = 0x6
	TypeHV3  PacketType = 0x7 // EV3 on eSCO links
	TypeDV   PacketType = 0x8
	TypeAUX1 PacketType = 0x9
	TypeDM3  PacketType = 0xA
	TypeDH3  PacketType = 0xB
	TypeEV4  PacketType = 0xC
	TypeEV5  PacketType = 0xD
	TypeDM5  PacketType = 0xE
	TypeDH5  PacketType = 0xF
)

var packetTypeNames = [16]string{
	"NULL", "POLL", "FHS", "DM1", "DH1", "HV1", "HV2", "HV3/EV3",
	"DV", "AUX1", "DM3", "DH3", "EV4", "EV5", "DM5", "DH5",
}

var packetTypeSlots = [16]int{
	1, 1, 1, 1, 1, 1, 1, 1,
	1, 1, 3, 3, 3, 3, 5, 5,
}

// String returns the packet type name
func (t PacketType) String() string {
	return packetTypeNames[t&0x0F]
}

// Slots returns the number of slots a packet of this type occupies
func (t PacketType) Slots() int {
	return packetTypeSlots[t&0x0F]
}

// Header is a decoded packet header
type Header struct {
	LTAddr uint8
	Type   PacketType
	Flow   uint8
	ARQN   uint8
	SEQN   uint8
	HEC    uint8
}

// String formats the header for logs
func (h Header) String() string {
	return fmt.Sprintf("LT_ADDR:%d Type:%s Slots:%d FLOW:%d ARQN:%d SEQN:%d HEC:%02x",
		h.LTAddr, h.Type, h.Type.Slots(), h.Flow, h.ARQN, h.SEQN, h.HEC)
}

// DecodeHeader decodes the 54 bits following an access code. The header is
// FEC decoded first and then dewhitened, the reverse of the transmit order.
func DecodeHeader(bits []byte, clock uint32) (Header, error) {
	if len(bits) < HeaderBits {
		return Header{}, ErrShortBuffer
	}
	plain := Unwhiten(DecodeFEC13(bits[:HeaderBits]), clock, 0)
	return parseHeader(plain), nil
}

// EncodeHeader produces the 54 air bits for h: whitened, then FEC 1/3 coded
func EncodeHeader(h Header, clock uint32) []byte {
	return EncodeFEC13(Whiten(h.Bits(), clock, 0))
}

// RecoverClock tries every whitening clock and returns the first one for
// which the header HEC checks against uap. With a wrong UAP, or by chance,
// the clock found may not be the transmitter's.
func RecoverClock(bits []byte, uap uint8) (Header, uint32, bool) {
	if len(bits) < HeaderBits {
		return Header{}, 0, false
	}
	raw := DecodeFEC13(bits[:HeaderBits])
	plain := make([]byte, HeaderPlainBits)
	for clock := uint32(0); clock < 64; clock++ {
		whiten(plain, raw, clock, 0)
		h := parseHeader(plain)
		if h.CheckHEC(uap) {
			return h, clock, true
		}
	}
	return Header{}, 0, false
}

// Bits returns the 18 plain header bits in air order
func (h Header) Bits() []byte {
	bits := make([]byte, HeaderPlainBits)
	h.putInfo(bits)
	hostToAir(bits[10:18], uint32(h.HEC))
	return bits
}

// CheckHEC reports whether the header HEC matches the one computed with uap
func (h Header) CheckHEC(uap uint8) bool {
	info := make([]byte, HeaderInfoBits)
	h.putInfo(info)
	return HEC(info, uap) == h.HEC
}

// SealHEC sets the HEC field from the other fields and uap
func (h *Header) SealHEC(uap uint8) {
	info := make([]byte, HeaderInfoBits)
	h.putInfo(info)
	h.HEC = HEC(info, uap)
}

func (h Header) putInfo(bits []byte) {
	hostToAir(bits[0:3], uint32(h.LTAddr))
	hostToAir(bits[3:7], uint32(h.Type))
	bits[7] = h.Flow & 0x01
	bits[8] = h.ARQN & 0x01
	bits[9] = h.SEQN & 0x01
}

func parseHeader(bits []byte) Header {
	return Header{
		LTAddr: uint8(airToHost(bits[0:3])),
		Type:   PacketType(airToHost(bits[3:7])),
		Flow:   bits[7] & 0x01,
		ARQN:   bits[8] & 0x01,
		SEQN:   bits[9] & 0x01,
		HEC:    uint8(airToHost(bits[10:18])),
	}
}
