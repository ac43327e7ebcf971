// Package ghash implements the GCM authentication hash and the key recovery attack
// against AES-GCM messages that share a key and nonce.
package ghash

import (
	"encoding/binary"

	"github.com/ppopth/gf128-factor/field"
)

// BlockSize is the GHASH block size in bytes
const BlockSize = field.ElementSize

// Hash computes GHASH incrementally
// Additional data is absorbed at construction, ciphertext through Write.
type Hash struct {
	h     field.Element
	y     field.Element
	buf   [BlockSize]byte
	n     int    // Bytes pending in buf
	adLen uint64 // Additional data length in bytes
	ctLen uint64 // Ciphertext length in bytes
}

// New creates a Hash keyed by h that has already absorbed additionalData
func New(h field.Element, additionalData []byte) *Hash {
	g := &Hash{h: h}
	g.absorb(additionalData)
	g.pad()
	g.adLen = uint64(len(additionalData))
	return g
}

// Write absorbs ciphertext. It never fails.
func (g *Hash) Write(p []byte) (int, error) {
	g.absorb(p)
	g.ctLen += uint64(len(p))
	return len(p), nil
}

// Sum returns the hash of everything written so far without changing the state
func (g *Hash) Sum() field.Element {
	c := *g
	c.pad()
	c.block(lengthBlock(c.adLen, c.ctLen))
	return c.y
}

func (g *Hash) absorb(p []byte) {
	for len(p) > 0 {
		k := copy(g.buf[g.n:], p)
		g.n += k
		p = p[k:]
		if g.n == BlockSize {
			g.block(g.buf)
			g.n = 0
		}
	}
}

// pad zero-fills and absorbs a partial block
func (g *Hash) pad() {
	if g.n == 0 {
		return
	}
	clear(g.buf[g.n:])
	g.block(g.buf)
	g.n = 0
}

func (g *Hash) block(b [BlockSize]byte) {
	g.y = g.y.Add(field.FromBlock(b)).Mul(g.h)
}

// Sum returns GHASH_h(additionalData, ciphertext)
func Sum(h field.Element, additionalData, ciphertext []byte) field.Element {
	g := New(h, additionalData)
	g.Write(ciphertext)
	return g.Sum()
}

// Blocks returns the GHASH input blocks in order: the zero-padded additional data,
// the zero-padded ciphertext and the lengths block
func Blocks(additionalData, ciphertext []byte) [][BlockSize]byte {
	var blocks [][BlockSize]byte
	for _, data := range [][]byte{additionalData, ciphertext} {
		for len(data) > 0 {
			var b [BlockSize]byte
			k := copy(b[:], data)
			blocks = append(blocks, b)
			data = data[k:]
		}
	}
	return append(blocks, lengthBlock(uint64(len(additionalData)), uint64(len(ciphertext))))
}

// lengthBlock encodes both lengths in bits as big-endian 64-bit integers
func lengthBlock(adLen, ctLen uint64) [BlockSize]byte {
	var b [BlockSize]byte
	binary.BigEndian.PutUint64(b[:8], adLen*8)
	binary.BigEndian.PutUint64(b[8:], ctLen*8)
	return b
}
