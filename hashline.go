// Package hashline provides the value types shared across the batched
// digest pipeline: the fixed-size digest produced for every input record
// and the buffer alignment the engine requires.
package hashline

import (
	"encoding/binary"
	"encoding/hex"
)

const (
	// Alignment is the slot alignment in bytes. Every packed record slot
	// is a multiple of this size, matching the engine's internal
	// word-processing granularity.
	Alignment = 64

	// DigestWords is the number of 32-bit words per digest.
	DigestWords = 8

	// DigestSize is the digest size in bytes.
	DigestSize = DigestWords * 4
)

// Digest is one 256-bit digest as the engine returns it: eight 32-bit
// words, big-endian per word.
type Digest [DigestWords]uint32

// DigestOf converts a raw 32-byte digest into words.
func DigestOf(sum [DigestSize]byte) Digest {
	var d Digest
	for i := range d {
		d[i] = binary.BigEndian.Uint32(sum[i*4:])
	}
	return d
}

// Bytes returns the digest as 32 bytes in big-endian word order.
func (d Digest) Bytes() [DigestSize]byte {
	var b [DigestSize]byte
	for i, w := range d {
		binary.BigEndian.PutUint32(b[i*4:], w)
	}
	return b
}

// Hex returns the digest as 64 lowercase hexadecimal characters.
func (d Digest) Hex() string {
	b := d.Bytes()
	return hex.EncodeToString(b[:])
}

func (d Digest) String() string {
	return d.Hex()
}
