// Package checksum holds the two checksums the block pipeline relies on: an
// order dependent block checksum that is linear over the field, so it can be
// carried through region multiplies as a trailer, and CRC-32 with a sliding window.
package checksum

import (
	"encoding/binary"

	"golang.org/x/xerrors"

	"github.com/moratsam/rsparity/gf"
)

const (
	// Size of a block checksum in bytes.
	Size = 16
	// Range is the number of bytes folded into the checksum per doubling step.
	Range = 128
)

var ErrLength = xerrors.New("data length not a multiple of checksum range")

// Doubling multiplies every lane by 2 in the field. Lanes are 2 bytes wide for
// GF(2^16) and 1 byte wide for GF(2^8).
func double16(x uint64) uint64 {
	hb := x & 0x8000800080008000
	return (x&^hb)<<1 ^ (hb>>15)*0x100b
}

func double8(x uint64) uint64 {
	hb := x & 0x8080808080808080
	return (x&^hb)<<1 ^ (hb>>7)*0x1d
}

// Sum writes the checksum of data into sum[:Size]. Each 128 byte range is folded
// into 16 lane bytes by XOR, and the running value is doubled before the range
// is added, so the result depends on the order of the ranges.
func Sum(w gf.Width, data, sum []byte) error {
	if len(data)%Range != 0 {
		return ErrLength
	}
	double := double16
	if w == gf.W8 {
		double = double8
	}

	var p0, p1 uint64
	for off := 0; off < len(data); off += Range {
		var t0, t1 uint64
		r := data[off : off+Range]
		for i := 0; i < Range; i += Size {
			t0 ^= binary.LittleEndian.Uint64(r[i:])
			t1 ^= binary.LittleEndian.Uint64(r[i+8:])
		}
		p0 = double(p0) ^ t0
		p1 = double(p1) ^ t1
	}
	binary.LittleEndian.PutUint64(sum, p0)
	binary.LittleEndian.PutUint64(sum[8:], p1)
	return nil
}

// Verify recomputes the checksum of data and compares it with sum.
func Verify(w gf.Width, data, sum []byte) (bool, error) {
	var got [Size]byte
	if err := Sum(w, data, got[:]); err != nil {
		return false, err
	}
	for i := range got {
		if got[i] != sum[i] {
			return false, nil
		}
	}
	return true, nil
}
