package crypto

import (
	"crypto/sha256"
	"encoding/binary"
	"math/bits"

	"golang.org/x/crypto/pbkdf2"
	"golang.org/x/sync/errgroup"
)

func init() {
	Register(BackendReference, NewReferenceBackend(1))
}

// referenceScrypt is an independent scrypt (RFC 7914) implementation.
// The p lanes of ROMix are independent and run on an errgroup with at most
// `lanes` of them in flight; each lane holds N*128*r bytes while running.
type referenceScrypt struct {
	lanes int
}

// NewReferenceBackend returns the reference scrypt backend running up to
// lanes ROMix lanes concurrently. lanes < 1 is treated as 1.
func NewReferenceBackend(lanes int) Backend {
	if lanes < 1 {
		lanes = 1
	}
	return &referenceScrypt{lanes: lanes}
}

func (s *referenceScrypt) Derive(params ScryptParams, input, salt, out []byte) error {
	if err := checkDerive(params, out); err != nil {
		return err
	}

	blockLen := 128 * params.R
	b := pbkdf2.Key(input, salt, 1, params.P*blockLen, sha256.New)
	defer SecureZero(b)

	var g errgroup.Group
	g.SetLimit(s.lanes)
	for i := 0; i < params.P; i++ {
		lane := b[i*blockLen : (i+1)*blockLen]
		g.Go(func() error {
			roMix(lane, params.R, params.N)
			return nil
		})
	}
	_ = g.Wait()

	dk := pbkdf2.Key(input, b, 1, len(out), sha256.New)
	copy(out, dk)
	SecureZero(dk)
	return nil
}

// roMix runs scryptROMix over one 128*r byte lane in place.
func roMix(b []byte, r, n int) {
	words := 32 * r
	x := make([]uint32, words)
	y := make([]uint32, words)
	v := make([]uint32, n*words)
	defer func() {
		clear(x)
		clear(y)
		clear(v)
	}()

	for i := range x {
		x[i] = binary.LittleEndian.Uint32(b[i*4:])
	}
	for i := 0; i < n; i++ {
		copy(v[i*words:], x)
		blockMix(x, y, r)
	}
	mask := uint64(n - 1)
	for i := 0; i < n; i++ {
		j := int(integerify(x, r) & mask)
		vj := v[j*words : (j+1)*words]
		for k := range x {
			x[k] ^= vj[k]
		}
		blockMix(x, y, r)
	}
	for i, w := range x {
		binary.LittleEndian.PutUint32(b[i*4:], w)
	}
}

// blockMix computes scryptBlockMix of b in place, using y as scratch.
// Even output blocks go to the first half, odd ones to the second half.
func blockMix(b, y []uint32, r int) {
	var t [16]uint32
	copy(t[:], b[(2*r-1)*16:])
	for i := 0; i < 2*r; i++ {
		for k := range t {
			t[k] ^= b[i*16+k]
		}
		salsa208(&t)
		dst := (i/2 + (i%2)*r) * 16
		copy(y[dst:dst+16], t[:])
	}
	copy(b, y)
}

func integerify(b []uint32, r int) uint64 {
	j := (2*r - 1) * 16
	return uint64(b[j]) | uint64(b[j+1])<<32
}

// salsa208 applies the Salsa20/8 core to b in place.
func salsa208(b *[16]uint32) {
	x := *b
	for i := 0; i < 8; i += 2 {
		// columns
		x[4] ^= bits.RotateLeft32(x[0]+x[12], 7)
		x[8] ^= bits.RotateLeft32(x[4]+x[0], 9)
		x[12] ^= bits.RotateLeft32(x[8]+x[4], 13)
		x[0] ^= bits.RotateLeft32(x[12]+x[8], 18)
		x[9] ^= bits.RotateLeft32(x[5]+x[1], 7)
		x[13] ^= bits.RotateLeft32(x[9]+x[5], 9)
		x[1] ^= bits.RotateLeft32(x[13]+x[9], 13)
		x[5] ^= bits.RotateLeft32(x[1]+x[13], 18)
		x[14] ^= bits.RotateLeft32(x[10]+x[6], 7)
		x[2] ^= bits.RotateLeft32(x[14]+x[10], 9)
		x[6] ^= bits.RotateLeft32(x[2]+x[14], 13)
		x[10] ^= bits.RotateLeft32(x[6]+x[2], 18)
		x[3] ^= bits.RotateLeft32(x[15]+x[11], 7)
		x[7] ^= bits.RotateLeft32(x[3]+x[15], 9)
		x[11] ^= bits.RotateLeft32(x[7]+x[3], 13)
		x[15] ^= bits.RotateLeft32(x[11]+x[7], 18)

		// rows
		x[1] ^= bits.RotateLeft32(x[0]+x[3], 7)
		x[2] ^= bits.RotateLeft32(x[1]+x[0], 9)
		x[3] ^= bits.RotateLeft32(x[2]+x[1], 13)
		x[0] ^= bits.RotateLeft32(x[3]+x[2], 18)
		x[6] ^= bits.RotateLeft32(x[5]+x[4], 7)
		x[7] ^= bits.RotateLeft32(x[6]+x[5], 9)
		x[4] ^= bits.RotateLeft32(x[7]+x[6], 13)
		x[5] ^= bits.RotateLeft32(x[4]+x[7], 18)
		x[11] ^= bits.RotateLeft32(x[10]+x[9], 7)
		x[8] ^= bits.RotateLeft32(x[11]+x[10], 9)
		x[9] ^= bits.RotateLeft32(x[8]+x[11], 13)
		x[10] ^= bits.RotateLeft32(x[9]+x[8], 18)
		x[12] ^= bits.RotateLeft32(x[15]+x[14], 7)
		x[13] ^= bits.RotateLeft32(x[12]+x[15], 9)
		x[14] ^= bits.RotateLeft32(x[13]+x[12], 13)
		x[15] ^= bits.RotateLeft32(x[14]+x[13], 18)
	}
	for i := range b {
		b[i] += x[i]
	}
}
