package checksum

import "hash/crc32"

var ieee = crc32.IEEETable

// Update extends crc with p.
func Update(crc uint32, p []byte) uint32 {
	return crc32.Update(crc, ieee, p)
}

// Window slides a CRC-32 over a fixed number of bytes: the oldest byte is
// removed and the newest added without rescanning the window.
type Window struct {
	size  int
	table [256]uint32
	mask  uint32
}

// gf2 is a 32x32 matrix over GF(2), one column per bit.
type gf2 [32]uint32

func (m *gf2) apply(v uint32) uint32 {
	var sum uint32
	for i := 0; v != 0; i, v = i+1, v>>1 {
		if v&1 != 0 {
			sum ^= m[i]
		}
	}
	return sum
}

func (m *gf2) compose(b *gf2) gf2 {
	var out gf2
	for i := range b {
		out[i] = m.apply(b[i])
	}
	return out
}

// zeros returns the operator that advances a raw CRC register over n zero bytes.
func zeros(n int) gf2 {
	var step, acc gf2
	for i := 0; i < 32; i++ {
		v := uint32(1) << uint(i)
		step[i] = ieee[byte(v)] ^ v>>8
		acc[i] = v
	}
	for ; n > 0; n >>= 1 {
		if n&1 != 0 {
			acc = step.compose(&acc)
		}
		step = step.compose(&step)
	}
	return acc
}

func NewWindow(size int) *Window {
	w := &Window{size: size}
	zn := zeros(size)
	z1 := zeros(1)
	for b := range w.table {
		w.table[b] = zn.apply(ieee[b])
	}
	w.mask = zn.apply(z1.apply(^uint32(0)) ^ ^uint32(0))
	return w
}

func (w *Window) Size() int { return w.size }

// Slide turns the CRC of data[i:i+size] into the CRC of data[i+1:i+size+1],
// where out is data[i] and in is data[i+size].
func (w *Window) Slide(crc uint32, out, in byte) uint32 {
	r := ^crc
	r = ieee[byte(r)^in] ^ r>>8
	r ^= w.table[out] ^ w.mask
	return ^r
}

// Find returns the offset of the first window in data whose CRC is want, or -1.
func (w *Window) Find(data []byte, want uint32) int {
	if w.size == 0 || len(data) < w.size {
		return -1
	}
	crc := Update(0, data[:w.size])
	if crc == want {
		return 0
	}
	for i := w.size; i < len(data); i++ {
		crc = w.Slide(crc, data[i-w.size], data[i])
		if crc == want {
			return i - w.size + 1
		}
	}
	return -1
}
