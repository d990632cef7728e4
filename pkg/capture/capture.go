// Package capture reads and writes offline demodulated bit captures.
package capture

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/dbehnke/btbb-nexus/pkg/baseband"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// Format is the on-disk bit layout
type Format string

const (
	// FormatBits stores one bit per byte in the LSB, as a GNU Radio file
	// sink of unpacked symbols does
	FormatBits Format = "bits"

	// FormatPacked stores eight bits per byte, MSB first
	FormatPacked Format = "packed"
)

// Compression selects the stream wrapper around the capture
type Compression string

const (
	CompressionAuto Compression = "auto"
	CompressionNone Compression = "none"
	CompressionGzip Compression = "gzip"
	CompressionZstd Compression = "zstd"
)

// ErrUnknownFormat is returned for formats other than bits and packed
var ErrUnknownFormat = errors.New("capture: unknown format")

// Options controls how a capture file is opened
type Options struct {
	Format      Format
	Compression Compression
}

// Open opens path for reading, undoing compression. With
// CompressionAuto the file extension decides.
func Open(path string, opts Options) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open capture: %w", err)
	}

	comp := opts.Compression
	if comp == "" || comp == CompressionAuto {
		comp = detectCompression(path)
	}

	switch comp {
	case CompressionNone:
		return f, nil
	case CompressionGzip:
		zr, err := gzip.NewReader(bufio.NewReader(f))
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to read gzip header: %w", err)
		}
		return &wrappedReader{Reader: zr, close: func() error {
			zr.Close()
			return f.Close()
		}}, nil
	case CompressionZstd:
		zr, err := zstd.NewReader(bufio.NewReader(f))
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to create zstd reader: %w", err)
		}
		return &wrappedReader{Reader: zr, close: func() error {
			zr.Close()
			return f.Close()
		}}, nil
	default:
		f.Close()
		return nil, fmt.Errorf("capture: unknown compression %q", comp)
	}
}

// Load reads a whole capture into an air order bit buffer
func Load(path string, opts Options) ([]byte, error) {
	rc, err := Open(path, opts)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	bits, err := ReadBits(rc, opts.Format)
	if err != nil {
		return nil, fmt.Errorf("failed to read capture %s: %w", path, err)
	}
	return bits, nil
}

// ReadBits reads r to EOF and returns one bit per byte
func ReadBits(r io.Reader, format Format) ([]byte, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	switch format {
	case FormatBits, "":
		for i := range data {
			data[i] &= 0x01
		}
		return data, nil
	case FormatPacked:
		return baseband.Unpack(data), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

// WriteBits writes bits to w in the given format. A packed capture whose
// length is not a multiple of eight is padded with zeros.
func WriteBits(w io.Writer, bits []byte, format Format) error {
	switch format {
	case FormatBits, "":
		out := make([]byte, len(bits))
		for i, b := range bits {
			out[i] = b & 0x01
		}
		_, err := w.Write(out)
		return err
	case FormatPacked:
		_, err := w.Write(baseband.Pack(bits))
		return err
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

// Create writes bits to path, compressing per opts (auto uses the extension)
func Create(path string, bits []byte, opts Options) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create capture: %w", err)
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = cerr
		}
	}()

	comp := opts.Compression
	if comp == "" || comp == CompressionAuto {
		comp = detectCompression(path)
	}

	switch comp {
	case CompressionNone:
		return WriteBits(f, bits, opts.Format)
	case CompressionGzip:
		zw := gzip.NewWriter(f)
		if err := WriteBits(zw, bits, opts.Format); err != nil {
			return err
		}
		return zw.Close()
	case CompressionZstd:
		zw, err := zstd.NewWriter(f)
		if err != nil {
			return err
		}
		if err := WriteBits(zw, bits, opts.Format); err != nil {
			zw.Close()
			return err
		}
		return zw.Close()
	default:
		return fmt.Errorf("capture: unknown compression %q", comp)
	}
}

func detectCompression(path string) Compression {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".gz", ".gzip":
		return CompressionGzip
	case ".zst", ".zstd":
		return CompressionZstd
	default:
		return CompressionNone
	}
}

type wrappedReader struct {
	io.Reader
	close func() error
}

func (w *wrappedReader) Close() error {
	return w.close()
}
