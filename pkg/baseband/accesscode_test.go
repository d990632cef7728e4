package baseband

import (
	"bytes"
	"errors"
	"testing"
)

func TestGenerateAccessCodeVectors(t *testing.T) {
	tests := []struct {
		lap  uint32
		want AccessCode
	}{
		{GIAC, AccessCode{0x54, 0x75, 0xC5, 0x8C, 0xC7, 0x33, 0x45, 0xE7, 0x2A}},
		{0x000000, AccessCode{0x57, 0xE7, 0x04, 0x1E, 0x34, 0x00, 0x00, 0x00, 0xD5}},
		{0xFFFFFF, AccessCode{0xAE, 0x75, 0x8B, 0x52, 0x27, 0xFF, 0xFF, 0xFF, 0x2A}},
		{0x123456, AccessCode{0x50, 0x3E, 0x46, 0x1A, 0x65, 0xA8, 0xB1, 0x20, 0xD5}},
	}

	for _, tt := range tests {
		got := GenerateAccessCode(tt.lap)
		if got != tt.want {
			t.Errorf("GenerateAccessCode(%06x) = % x, want % x", tt.lap, got[:], tt.want[:])
		}
	}
}

func TestGIACSyncWord(t *testing.T) {
	ac := GenerateAccessCode(GIAC)
	if sw := ac.SyncWord(); sw != 0x475C58CC73345E72 {
		t.Errorf("GIAC sync word = %016x, want 475c58cc73345e72", sw)
	}
}

func TestGenerateAccessCodeMasksLAP(t *testing.T) {
	if GenerateAccessCode(0xFF9E8B33) != GenerateAccessCode(GIAC) {
		t.Error("LAP bits above 24 must be ignored")
	}
}

func TestGenerateAccessCodeDeterministic(t *testing.T) {
	for _, lap := range []uint32{0, GIAC, 0x123456, 0xABCDEF} {
		first := GenerateAccessCode(lap)
		for i := 0; i < 5; i++ {
			if again := GenerateAccessCode(lap); again != first {
				t.Fatalf("LAP %06x: generation not deterministic", lap)
			}
		}
	}
}

func TestAccessCodeShape(t *testing.T) {
	for _, lap := range []uint32{0, 1, GIAC, 0x800000, 0xFFFFFF, 0x5A5A5A} {
		bits := GenerateAccessCode(lap).Bits()
		if len(bits) != AccessCodeBits {
			t.Fatalf("Bits() length = %d, want %d", len(bits), AccessCodeBits)
		}
		if !alternating(bits[0:4]) {
			t.Errorf("LAP %06x: preamble %v not alternating", lap, bits[0:4])
		}
		if !alternating(bits[68:72]) {
			t.Errorf("LAP %06x: trailer %v not alternating", lap, bits[68:72])
		}
		// preamble joins the sync word with a transition
		if bits[3] == bits[4] {
			t.Errorf("LAP %06x: preamble does not alternate into sync word", lap)
		}
	}
}

func TestAccessCodeLAP(t *testing.T) {
	for _, lap := range []uint32{0, 1, GIAC, 0x123456, 0xFFFFFF, 0x000080} {
		ac := GenerateAccessCode(lap)
		if got := ac.LAP(); got != lap {
			t.Errorf("LAP() = %06x, want %06x", got, lap)
		}
		got, err := LAPFromBits(ac.Bits())
		if err != nil {
			t.Fatal(err)
		}
		if got != lap {
			t.Errorf("LAPFromBits = %06x, want %06x", got, lap)
		}
	}

	if _, err := LAPFromBits(make([]byte, 71)); !errors.Is(err, ErrShortBuffer) {
		t.Errorf("expected ErrShortBuffer, got %v", err)
	}
}

func TestCheckAccessCodeSelfVerifies(t *testing.T) {
	for _, lap := range []uint32{0, GIAC, 0x123456, 0xC0FFEE} {
		stream := append(GenerateAccessCode(lap).Bits(), 1, 0, 1)
		if !CheckAccessCode(stream, lap) {
			t.Errorf("CheckAccessCode failed on its own code for %06x", lap)
		}
	}
}

func TestCheckAccessCodeSingleBitFlip(t *testing.T) {
	lap := uint32(GIAC)
	bits := GenerateAccessCode(lap).Bits()

	for i := range bits {
		corrupted := make([]byte, len(bits))
		copy(corrupted, bits)
		corrupted[i] ^= 1
		if CheckAccessCode(corrupted, lap) {
			t.Errorf("flipping bit %d still matched", i)
		}
	}
}

func TestCheckAccessCodeWrongLAPAndShortStream(t *testing.T) {
	bits := GenerateAccessCode(GIAC).Bits()
	if CheckAccessCode(bits, 0x9E8B00) {
		t.Error("access code matched a different LAP")
	}
	if CheckAccessCode(bits[:71], GIAC) {
		t.Error("short stream must not match")
	}
}

func TestFindAccessCode(t *testing.T) {
	lap := uint32(0x2A96EF)
	stream := make([]byte, 37)
	stream = append(stream, GenerateAccessCode(lap).Bits()...)
	stream = append(stream, make([]byte, 20)...)

	if off := FindAccessCode(stream, lap); off != 37 {
		t.Errorf("FindAccessCode offset = %d, want 37", off)
	}
	if off := FindAccessCode(stream, GIAC); off != -1 {
		t.Errorf("FindAccessCode for absent LAP = %d, want -1", off)
	}
	if off := FindAccessCode(stream[:50], lap); off != -1 {
		t.Errorf("FindAccessCode on truncated stream = %d, want -1", off)
	}
}

func TestSniffAccessCode(t *testing.T) {
	lap := uint32(0x6B1A3C)
	noise := []byte{1, 0, 1, 0, 1, 0, 1, 0, 1, 1, 0, 0, 1, 0}
	stream := append([]byte{}, noise...)
	stream = append(stream, GenerateAccessCode(lap).Bits()...)
	stream = append(stream, noise...)

	off, got, ok := SniffAccessCode(stream)
	if !ok {
		t.Fatal("SniffAccessCode found nothing")
	}
	if off != len(noise) {
		t.Errorf("offset = %d, want %d", off, len(noise))
	}
	if got != lap {
		t.Errorf("LAP = %06x, want %06x", got, lap)
	}

	if _, _, ok := SniffAccessCode(make([]byte, 200)); ok {
		t.Error("SniffAccessCode matched an all-zero stream")
	}
}

func TestAccessCodeBitsMatchPacked(t *testing.T) {
	ac := GenerateAccessCode(GIAC)
	if !bytes.Equal(Pack(ac.Bits()), ac[:]) {
		t.Error("Pack(Bits()) does not reproduce the packed access code")
	}
}
