package baseband

// Systematic cyclic code encoder
// The redundancy b(x) is the remainder of x^(length-k)*data(x) divided by the
// generator g(x), computed with a feedback shift register.

// AccessCodeGenerator holds the taps of g(D) = 0x585713DA9, the degree 34
// generator of the (64,30) expurgated block code used for sync words.
// Index 0 is the constant term.
var AccessCodeGenerator = [35]byte{
	1, 0, 0, 1, 0, 1, 0, 1, 1, 0, 1, 1, 1, 1, 0, 0, 1, 0,
	0, 0, 1, 1, 1, 0, 1, 0, 1, 0, 0, 0, 0, 1, 1, 0, 1,
}

// Codeword returns the length-k redundancy bits for the k data bits in data.
// Data is shifted in starting from data[k-1]. g must hold length-k+1 taps.
func Codeword(data []byte, length, k int, g []byte) ([]byte, error) {
	if k <= 0 || length <= k {
		return nil, ErrBlockLength
	}
	if len(data) < k {
		return nil, ErrShortBuffer
	}
	if len(g) < length-k+1 {
		return nil, ErrShortBuffer
	}
	return codeword(data, length, k, g), nil
}

func codeword(data []byte, length, k int, g []byte) []byte {
	r := length - k
	cw := make([]byte, r)

	for i := k - 1; i >= 0; i-- {
		feedback := (data[i] ^ cw[r-1]) & 0x01
		if feedback != 0 {
			for j := r - 1; j > 0; j-- {
				if g[j] != 0 {
					cw[j] = cw[j-1] ^ feedback
				} else {
					cw[j] = cw[j-1]
				}
			}
			cw[0] = g[0] & feedback
		} else {
			for j := r - 1; j > 0; j-- {
				cw[j] = cw[j-1]
			}
			cw[0] = 0
		}
	}

	return cw
}
