package gf

// Nibble table kernels. Every product is assembled from 16-entry tables indexed
// by 4-bit slices of the element, the same scheme SSSE3/AVX2 pshufb code uses.

type split16 struct{ f *Field }

func newSplit16(f *Field) Kernel { return &split16{f} }

func (k *split16) Name() string   { return "split16" }
func (k *split16) Unit() int      { return 32 }
func (k *split16) Layout() Layout { return LayoutSplit32 }

func (k *split16) tables(factor uint16) (lo, hi [4][16]byte) {
	for p := 0; p < 4; p++ {
		for v := 1; v < 16; v++ {
			prod := k.f.Mul(uint16(v)<<uint(4*p), factor)
			lo[p][v] = byte(prod)
			hi[p][v] = byte(prod >> 8)
		}
	}
	return lo, hi
}

func (k *split16) MulAdd(src, dst []byte, factor uint16) {
	lo, hi := k.tables(factor)
	for i := 0; i+32 <= len(src); i += 32 {
		s, d := src[i:i+32], dst[i:i+32]
		for l := 0; l < 16; l++ {
			a, b := s[l], s[16+l]
			d[l] ^= lo[0][a&15] ^ lo[1][a>>4] ^ lo[2][b&15] ^ lo[3][b>>4]
			d[16+l] ^= hi[0][a&15] ^ hi[1][a>>4] ^ hi[2][b&15] ^ hi[3][b>>4]
		}
	}
}

// Prepare gathers the low bytes of every 16 elements in front of their high bytes.
func (k *split16) Prepare(buf []byte) {
	var tmp [32]byte
	for i := 0; i+32 <= len(buf); i += 32 {
		blk := buf[i : i+32]
		for l := 0; l < 16; l++ {
			tmp[l] = blk[2*l]
			tmp[16+l] = blk[2*l+1]
		}
		copy(blk, tmp[:])
	}
}

func (k *split16) Restore(buf []byte) {
	var tmp [32]byte
	for i := 0; i+32 <= len(buf); i += 32 {
		blk := buf[i : i+32]
		for l := 0; l < 16; l++ {
			tmp[2*l] = blk[l]
			tmp[2*l+1] = blk[16+l]
		}
		copy(blk, tmp[:])
	}
}

type split8 struct{ f *Field }

func newSplit8(f *Field) Kernel { return &split8{f} }

func (k *split8) Name() string       { return "split8" }
func (k *split8) Unit() int          { return 16 }
func (k *split8) Layout() Layout     { return LayoutNormal }
func (k *split8) Prepare(buf []byte) {}
func (k *split8) Restore(buf []byte) {}

func (k *split8) MulAdd(src, dst []byte, factor uint16) {
	var low, high [16]byte
	for v := 1; v < 16; v++ {
		low[v] = byte(k.f.Mul(uint16(v), factor))
		high[v] = byte(k.f.Mul(uint16(v)<<4, factor))
	}
	for i := 0; i+16 <= len(src); i += 16 {
		s, d := src[i:i+16], dst[i:i+16]
		for l, x := range s {
			d[l] ^= low[x&15] ^ high[x>>4]
		}
	}
}
