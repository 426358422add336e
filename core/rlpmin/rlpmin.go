// Package rlpmin implements the minimal slice of RLP encoding the core
// protocol itself is specified in terms of: transaction signing digests
// and CREATE address derivation (spec §4.4, §6). It is deliberately not a
// general-purpose RLP library — decoding, reflection-based struct tags and
// the rest of the "RLP utility routines" surface are an external
// collaborator the core does not own (spec §1).
package rlpmin

import "math/big"

// EncodeBytes RLP-encodes a byte string.
func EncodeBytes(b []byte) []byte {
	if len(b) == 1 && b[0] < 0x80 {
		return []byte{b[0]}
	}
	return append(lengthPrefix(0x80, 0xb7, len(b)), b...)
}

// EncodeUint64 RLP-encodes x as a minimal big-endian byte string.
func EncodeUint64(x uint64) []byte {
	if x == 0 {
		return EncodeBytes(nil)
	}
	var buf [8]byte
	n := 8
	for n > 0 {
		n--
		buf[n] = byte(x)
		x >>= 8
		if x == 0 {
			break
		}
	}
	return EncodeBytes(buf[n:])
}

// EncodeBigInt RLP-encodes a non-negative big.Int as a minimal big-endian
// byte string. A nil value encodes as zero.
func EncodeBigInt(v *big.Int) []byte {
	if v == nil || v.Sign() == 0 {
		return EncodeBytes(nil)
	}
	return EncodeBytes(v.Bytes())
}

// EncodeList wraps the concatenation of already-encoded items as an RLP
// list.
func EncodeList(items ...[]byte) []byte {
	var payload []byte
	for _, it := range items {
		payload = append(payload, it...)
	}
	return append(lengthPrefix(0xc0, 0xf7, len(payload)), payload...)
}

func lengthPrefix(short, longBase byte, n int) []byte {
	if n <= 55 {
		return []byte{short + byte(n)}
	}
	var lenBytes []byte
	x := n
	for x > 0 {
		lenBytes = append([]byte{byte(x)}, lenBytes...)
		x >>= 8
	}
	return append([]byte{longBase + byte(len(lenBytes))}, lenBytes...)
}
