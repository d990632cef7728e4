// Package baseband implements the bit level codecs of the Bluetooth Basic
// Rate baseband: access code generation and matching, data whitening, the
// 1/3 and 2/3 rate FEC schemes, and the HEC and CRC-16 checks.
//
// All functions operate on caller owned bit buffers holding one bit per
// byte. Lookup tables are package level and never written after load, so
// every function is safe for concurrent use.
package baseband
