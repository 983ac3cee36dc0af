package gf

import "encoding/binary"

// wide16 multiplies four elements per 64-bit word using two 256-entry tables:
// one for the low byte of an element and one for the high byte.
type wide16 struct{ f *Field }

func newWide16(f *Field) Kernel { return &wide16{f} }

func (k *wide16) Name() string       { return "wide16" }
func (k *wide16) Unit() int          { return 8 }
func (k *wide16) Layout() Layout     { return LayoutNormal }
func (k *wide16) Prepare(buf []byte) {}
func (k *wide16) Restore(buf []byte) {}

func (k *wide16) MulAdd(src, dst []byte, factor uint16) {
	var lo, hi [256]uint16
	for b := 1; b < 256; b++ {
		lo[b] = k.f.Mul(uint16(b), factor)
		hi[b] = k.f.Mul(uint16(b)<<8, factor)
	}

	for i := 0; i+8 <= len(src); i += 8 {
		w := binary.LittleEndian.Uint64(src[i:])
		if w == 0 {
			continue
		}
		r := uint64(lo[byte(w)]^hi[byte(w>>8)]) |
			uint64(lo[byte(w>>16)]^hi[byte(w>>24)])<<16 |
			uint64(lo[byte(w>>32)]^hi[byte(w>>40)])<<32 |
			uint64(lo[byte(w>>48)]^hi[byte(w>>56)])<<48
		binary.LittleEndian.PutUint64(dst[i:], binary.LittleEndian.Uint64(dst[i:])^r)
	}
}
