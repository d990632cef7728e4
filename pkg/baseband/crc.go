package baseband

// Payload CRC and header error check, both computed bit by bit over air
// order data with the register seeded from the UAP.

// CRC16 computes the payload CRC, g(D) = D^16 + D^12 + D^5 + 1.
// The received CRC field is transmitted bit reversed; comparing the two is up
// to the caller.
func CRC16(bits []byte, uap uint8) uint16 {
	reg := uint16(uap)
	for _, b := range bits {
		reg = (reg << 1) | ((reg >> 15) ^ uint16(b&0x01))

		// Bit 5
		reg ^= (reg & 0x0001) << 5

		// Bit 12
		reg ^= (reg & 0x0001) << 12
	}
	return reg
}

// HEC computes the header error check, g(D) = D^8 + D^7 + D^5 + D^2 + D + 1,
// over the 10 header information bits. The register holds the check bits
// last transmitted first, so it is reversed into the orientation the HEC
// field is read in.
func HEC(bits []byte, uap uint8) uint8 {
	reg := uap
	for _, b := range bits {
		reg = (reg << 1) | ((reg >> 7) ^ (b & 0x01))
		reg ^= (reg & 0x01) << 1
		reg ^= (reg & 0x01) << 2
		reg ^= (reg & 0x01) << 5
		reg ^= (reg & 0x01) << 7
	}
	return Reverse8(reg)
}
