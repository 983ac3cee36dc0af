package gf

import (
	"encoding/binary"
	"sync/atomic"
)

// bitslice stores blocks of 128 elements as one 16 byte plane per element bit.
// Multiplying by a constant is then a fixed linear map over GF(2): every output
// plane is the XOR of some input planes. For each factor a short XOR program is
// generated once and cached, so the inner loop does no table lookups at all.
type bitslice struct {
	f        *Field
	planes   int
	programs []atomic.Pointer[xorProgram]
}

// xorProgram lists, for each output plane, the input planes to XOR together.
type xorProgram struct {
	ops [][]uint8
}

const planeBytes = 16

func newBitslice(f *Field) Kernel {
	return &bitslice{
		f:        f,
		planes:   int(f.width),
		programs: make([]atomic.Pointer[xorProgram], f.Order()),
	}
}

func (k *bitslice) Name() string {
	if k.planes == 8 {
		return "bitslice8"
	}
	return "bitslice16"
}

func (k *bitslice) Unit() int      { return k.planes * planeBytes }
func (k *bitslice) Layout() Layout { return LayoutBitPlane }

func (k *bitslice) program(factor uint16) *xorProgram {
	if p := k.programs[factor].Load(); p != nil {
		return p
	}
	p := &xorProgram{ops: make([][]uint8, k.planes)}
	for in := 0; in < k.planes; in++ {
		col := k.f.Mul(uint16(1)<<uint(in), factor)
		for out := 0; out < k.planes; out++ {
			if col>>uint(out)&1 != 0 {
				p.ops[out] = append(p.ops[out], uint8(in))
			}
		}
	}
	k.programs[factor].Store(p)
	return p
}

func (k *bitslice) MulAdd(src, dst []byte, factor uint16) {
	prog := k.program(factor)
	unit := k.Unit()
	var in [16][2]uint64
	for i := 0; i+unit <= len(src); i += unit {
		s, d := src[i:i+unit], dst[i:i+unit]
		for p := 0; p < k.planes; p++ {
			in[p][0] = binary.LittleEndian.Uint64(s[p*planeBytes:])
			in[p][1] = binary.LittleEndian.Uint64(s[p*planeBytes+8:])
		}
		for out, ops := range prog.ops {
			var a, b uint64
			for _, j := range ops {
				a ^= in[j][0]
				b ^= in[j][1]
			}
			if a|b == 0 {
				continue
			}
			o := d[out*planeBytes:]
			binary.LittleEndian.PutUint64(o, binary.LittleEndian.Uint64(o)^a)
			binary.LittleEndian.PutUint64(o[8:], binary.LittleEndian.Uint64(o[8:])^b)
		}
	}
}

func (k *bitslice) element(blk []byte, e int) uint16 {
	if k.planes == 8 {
		return uint16(blk[e])
	}
	return uint16(blk[2*e]) | uint16(blk[2*e+1])<<8
}

func (k *bitslice) Prepare(buf []byte) {
	unit := k.Unit()
	var planes [16][2]uint64
	for i := 0; i+unit <= len(buf); i += unit {
		blk := buf[i : i+unit]
		planes = [16][2]uint64{}
		for e := 0; e < 128; e++ {
			x := k.element(blk, e)
			for p := 0; p < k.planes; p++ {
				if x>>uint(p)&1 != 0 {
					planes[p][e>>6] |= 1 << uint(e&63)
				}
			}
		}
		for p := 0; p < k.planes; p++ {
			binary.LittleEndian.PutUint64(blk[p*planeBytes:], planes[p][0])
			binary.LittleEndian.PutUint64(blk[p*planeBytes+8:], planes[p][1])
		}
	}
}

func (k *bitslice) Restore(buf []byte) {
	unit := k.Unit()
	var planes [16][2]uint64
	for i := 0; i+unit <= len(buf); i += unit {
		blk := buf[i : i+unit]
		for p := 0; p < k.planes; p++ {
			planes[p][0] = binary.LittleEndian.Uint64(blk[p*planeBytes:])
			planes[p][1] = binary.LittleEndian.Uint64(blk[p*planeBytes+8:])
		}
		for e := 0; e < 128; e++ {
			var x uint16
			for p := 0; p < k.planes; p++ {
				x |= uint16(planes[p][e>>6]>>uint(e&63)&1) << uint(p)
			}
			if k.planes == 8 {
				blk[e] = byte(x)
			} else {
				blk[2*e] = byte(x)
				blk[2*e+1] = byte(x >> 8)
			}
		}
	}
}
