package baseband

// Forward error correction for the baseband: 1/3 rate repetition and the
// 2/3 rate (15,10) shortened Hamming code.

const (
	fec23DataBits   = 10
	fec23ParityBits = 5
	fec23BlockBits  = fec23DataBits + fec23ParityBits
)

// DecodeFEC13 majority-decodes triples of repeated bits. A trailing partial
// triple is ignored. Disagreements are resolved silently.
func DecodeFEC13(in []byte) []byte {
	out := make([]byte, len(in)/3)
	for i := range out {
		a, b, c := in[3*i], in[3*i+1], in[3*i+2]
		out[i] = (a & b) | (b & c) | (c & a)
	}
	return out
}

// EncodeFEC13 repeats every bit three times
func EncodeFEC13(in []byte) []byte {
	out := make([]byte, 3*len(in))
	for i, b := range in {
		out[3*i] = b
		out[3*i+1] = b
		out[3*i+2] = b
	}
	return out
}

// DecodeFEC23 extracts n data bits from 15 bit blocks of 10 data bits and
// 5 check bits. The check bits are discarded, no correction is attempted.
func DecodeFEC23(in []byte, n int) ([]byte, error) {
	if n < 0 {
		return nil, ErrBlockLength
	}
	blocks := (n + fec23DataBits - 1) / fec23DataBits
	last := n - (blocks-1)*fec23DataBits
	if blocks > 0 && len(in) < (blocks-1)*fec23BlockBits+last {
		return nil, ErrShortBuffer
	}

	out := make([]byte, n)
	pointer := -fec23ParityBits
	for count := 0; count < n; count++ {
		if count%fec23DataBits == 0 {
			pointer += fec23ParityBits
		}
		out[count] = in[pointer]
		pointer++
	}
	return out, nil
}

// FEC23Parity returns the 5 check bits for 10 data bits, LSB first
func FEC23Parity(data []byte) ([]byte, error) {
	if len(data) != fec23DataBits {
		return nil, ErrBlockLength
	}
	parity := make([]byte, fec23ParityBits)
	fec23Parity(parity, data)
	return parity, nil
}

// fec23Parity writes the check bits of one 10 bit block into dst[0:5]
func fec23Parity(dst, data []byte) {
	var reg byte
	for _, d := range data[:fec23DataBits] {
		bit := (reg ^ d) & 0x01
		reg = (reg >> 1) | bit<<4
		reg ^= bit
		reg ^= bit << 2
	}

	for i := range dst[:fec23ParityBits] {
		dst[i] = reg & 0x01
		reg >>= 1
	}
}

// EncodeFEC23 appends check bits to every 10 data bits. The last block is
// padded with zeros.
func EncodeFEC23(in []byte) []byte {
	blocks := (len(in) + fec23DataBits - 1) / fec23DataBits
	out := make([]byte, blocks*fec23BlockBits)

	for i := 0; i < blocks; i++ {
		block := out[i*fec23BlockBits : (i+1)*fec23BlockBits]
		copy(block[:fec23DataBits], in[i*fec23DataBits:])
		fec23Parity(block[fec23DataBits:], block[:fec23DataBits])
	}
	return out
}
