package capture

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/dbehnke/btbb-nexus/pkg/baseband"
)

func testBits(n int) []byte {
	bits := make([]byte, n)
	for i := range bits {
		bits[i] = byte((i*7+i/3)>>1) & 0x01
	}
	return bits
}

func TestReadBits_BitsFormatKeepsLSB(t *testing.T) {
	in := []byte{0x00, 0x01, 0xfe, 0xff, 0x03}
	got, err := ReadBits(bytes.NewReader(in), FormatBits)
	if err != nil {
		t.Fatal(err)
	}
	want := []byte{0, 1, 0, 1, 1}
	if !bytes.Equal(got, want) {
		t.Errorf("ReadBits = %v, want %v", got, want)
	}
}

func TestReadBits_Packed(t *testing.T) {
	got, err := ReadBits(bytes.NewReader([]byte{0xA5}), FormatPacked)
	if err != nil {
		t.Fatal(err)
	}
	want := []byte{1, 0, 1, 0, 0, 1, 0, 1}
	if !bytes.Equal(got, want) {
		t.Errorf("ReadBits = %v, want %v", got, want)
	}
}

func TestReadBits_UnknownFormat(t *testing.T) {
	if _, err := ReadBits(bytes.NewReader(nil), Format("wav")); !errors.Is(err, ErrUnknownFormat) {
		t.Errorf("expected ErrUnknownFormat, got %v", err)
	}
	if err := WriteBits(&bytes.Buffer{}, nil, Format("wav")); !errors.Is(err, ErrUnknownFormat) {
		t.Errorf("expected ErrUnknownFormat, got %v", err)
	}
}

func TestWriteBits_RoundTrip(t *testing.T) {
	bits := testBits(64)
	for _, format := range []Format{FormatBits, FormatPacked} {
		t.Run(string(format), func(t *testing.T) {
			var buf bytes.Buffer
			if err := WriteBits(&buf, bits, format); err != nil {
				t.Fatal(err)
			}
			got, err := ReadBits(&buf, format)
			if err != nil {
				t.Fatal(err)
			}
			if !bytes.Equal(got, bits) {
				t.Error("round trip mismatch")
			}
		})
	}
}

func TestCreateLoad_Compression(t *testing.T) {
	dir := t.TempDir()
	bits := testBits(4096)

	tests := []struct {
		name string
		file string
		opts Options
	}{
		{"plain bits", "capture.bin", Options{Format: FormatBits}},
		{"gzip by extension", "capture.bin.gz", Options{Format: FormatBits}},
		{"zstd by extension", "capture.bin.zst", Options{Format: FormatPacked}},
		{"explicit gzip", "capture.dat", Options{Format: FormatPacked, Compression: CompressionGzip}},
		{"explicit zstd", "capture.raw", Options{Format: FormatBits, Compression: CompressionZstd}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, tt.file)
			if err := Create(path, bits, tt.opts); err != nil {
				t.Fatalf("Create: %v", err)
			}
			got, err := Load(path, tt.opts)
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			if !bytes.Equal(got, bits) {
				t.Errorf("loaded %d bits, mismatch with %d written", len(got), len(bits))
			}
		})
	}
}

func TestCreate_CompressesOnDisk(t *testing.T) {
	dir := t.TempDir()
	bits := make([]byte, 100000)
	path := filepath.Join(dir, "zeros.bin.zst")
	if err := Create(path, bits, Options{Format: FormatBits}); err != nil {
		t.Fatal(err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Size() >= int64(len(bits)) {
		t.Errorf("zstd capture not compressed: %d bytes", info.Size())
	}
}

func TestLoad_ScanReadyCapture(t *testing.T) {
	// an access code survives a packed gzip capture bit for bit
	dir := t.TempDir()
	bits := make([]byte, 200)
	copy(bits[33:], baseband.GenerateAccessCode(0x9E8B33).Bits())

	path := filepath.Join(dir, "giac.gz")
	if err := Create(path, bits, Options{Format: FormatPacked}); err != nil {
		t.Fatal(err)
	}
	got, err := Load(path, Options{Format: FormatPacked})
	if err != nil {
		t.Fatal(err)
	}
	if idx := baseband.FindAccessCode(got, 0x9E8B33); idx != 33 {
		t.Errorf("FindAccessCode = %d, want 33", idx)
	}
}

func TestOpen_Errors(t *testing.T) {
	dir := t.TempDir()

	if _, err := Open(filepath.Join(dir, "missing.bin"), Options{}); err == nil {
		t.Error("expected error for missing file")
	}

	bad := filepath.Join(dir, "bad.gz")
	if err := os.WriteFile(bad, []byte("not gzip"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Open(bad, Options{}); err == nil {
		t.Error("expected error for corrupt gzip header")
	}

	plain := filepath.Join(dir, "plain.bin")
	if err := os.WriteFile(plain, []byte{1}, 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Open(plain, Options{Compression: Compression("lz4")}); err == nil {
		t.Error("expected error for unknown compression")
	}
}
