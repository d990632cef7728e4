package baseband

import "testing"

// airBytes expands bytes into air order bits, LSB first
func airBytes(data []byte) []byte {
	bits := make([]byte, 8*len(data))
	for i, b := range data {
		hostToAir(bits[8*i:8*i+8], uint32(b))
	}
	return bits
}

func TestCRC16Vectors(t *testing.T) {
	tests := []struct {
		name string
		uap  uint8
		data []byte
		want uint16
	}{
		{"empty", 0x00, nil, 0x0000},
		{"empty keeps seed", 0x47, nil, 0x0047},
		{"zero byte", 0x47, []byte{0x00}, 0x4700},
		{"counting", 0x47, []byte{0x01, 0x02, 0x03, 0x04}, 0x6a9e},
		{"hello", 0xff, []byte("hello"), 0x187c},
		{"ten bytes", 0x6b, []byte{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, 0xa5ac},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CRC16(airBytes(tt.data), tt.uap); got != tt.want {
				t.Errorf("CRC16 = %04x, want %04x", got, tt.want)
			}
		})
	}
}

func TestCRC16Sensitivity(t *testing.T) {
	payload := airBytes([]byte{0xDE, 0xAD, 0xBE, 0xEF, 0x01})
	base := CRC16(payload, 0x5A)

	if CRC16(payload, 0x5A) != base {
		t.Fatal("CRC16 not stable")
	}

	for i := range payload {
		flipped := make([]byte, len(payload))
		copy(flipped, payload)
		flipped[i] ^= 1
		if CRC16(flipped, 0x5A) == base {
			t.Errorf("flipping payload bit %d left the CRC unchanged", i)
		}
	}

	for bit := 0; bit < 8; bit++ {
		if CRC16(payload, 0x5A^(1<<bit)) == base {
			t.Errorf("flipping UAP bit %d left the CRC unchanged", bit)
		}
	}
}

func TestCRC16IgnoresUpperCellBits(t *testing.T) {
	bits := []byte{1, 0, 1, 1}
	dirty := []byte{3, 2, 5, 7}
	if CRC16(bits, 0x12) != CRC16(dirty, 0x12) {
		t.Error("only the low bit of each cell may be used")
	}
}

func TestHECVectors(t *testing.T) {
	tests := []struct {
		bits []byte
		uap  uint8
		want uint8
	}{
		{make([]byte, 10), 0x00, 0x00},
		{make([]byte, 10), 0x47, 0xe7},
		{[]byte{1, 0, 0, 0, 0, 0, 0, 0, 0, 0}, 0x47, 0x8f},
		// Core sample data: header info 0x123, LSB first
		{[]byte{1, 1, 0, 0, 0, 1, 0, 0, 1, 0}, 0x00, 0xe1},
		{[]byte{1, 1, 0, 0, 0, 1, 0, 0, 1, 0}, 0x47, 0x06},
	}

	for _, tt := range tests {
		if got := HEC(tt.bits, tt.uap); got != tt.want {
			t.Errorf("HEC(%v, %02x) = %02x, want %02x", tt.bits, tt.uap, got, tt.want)
		}
	}
}
