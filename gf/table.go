package gf

// Portable element-at-a-time kernels using the log/exp tables directly.

type table16 struct{ f *Field }

func newTable16(f *Field) Kernel { return &table16{f} }

func (k *table16) Name() string       { return "table16" }
func (k *table16) Unit() int          { return 2 }
func (k *table16) Layout() Layout     { return LayoutNormal }
func (k *table16) Prepare(buf []byte) {}
func (k *table16) Restore(buf []byte) {}

func (k *table16) MulAdd(src, dst []byte, factor uint16) {
	log, exp := k.f.log, k.f.exp
	lf := int(log[factor])
	for i := 0; i+1 < len(src); i += 2 {
		x := uint16(src[i]) | uint16(src[i+1])<<8
		if x == 0 {
			continue
		}
		p := exp[int(log[x])+lf]
		dst[i] ^= byte(p)
		dst[i+1] ^= byte(p >> 8)
	}
}

type table8 struct{ f *Field }

func newTable8(f *Field) Kernel { return &table8{f} }

func (k *table8) Name() string       { return "table8" }
func (k *table8) Unit() int          { return 1 }
func (k *table8) Layout() Layout     { return LayoutNormal }
func (k *table8) Prepare(buf []byte) {}
func (k *table8) Restore(buf []byte) {}

func (k *table8) MulAdd(src, dst []byte, factor uint16) {
	log, exp := k.f.log, k.f.exp
	lf := int(log[factor])
	for i, x := range src {
		if x == 0 {
			continue
		}
		dst[i] ^= byte(exp[int(log[x])+lf])
	}
}
