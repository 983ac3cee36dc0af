package gf

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// reference multiplies element by element with Field.Mul.
func reference(f *Field, src, dst []byte, factor uint16) []byte {
	out := append([]byte(nil), dst...)
	if f.Width() == W8 {
		for i := range src {
			out[i] ^= byte(f.Mul(uint16(src[i]), factor))
		}
		return out
	}
	for i := 0; i < len(src); i += 2 {
		p := f.Mul(uint16(src[i])|uint16(src[i+1])<<8, factor)
		out[i] ^= byte(p)
		out[i+1] ^= byte(p >> 8)
	}
	return out
}

func TestKernelsEquivalent(t *testing.T) {
	for _, w := range []Width{W8, W16} {
		ref := openField(t, w)
		for _, name := range Kernels(w) {
			t.Run(name, func(t *testing.T) {
				f := openField(t, w, WithKernel(name))
				require.Equal(t, name, f.Kernel().Name())
				rnd := rand.New(rand.NewSource(42))
				factors := []uint16{0, 1, 2, f.DivError()}
				for i := 0; i < 20; i++ {
					factors = append(factors, uint16(rnd.Intn(f.Order())))
				}
				for _, factor := range factors {
					// 256 bytes is a multiple of every kernel unit.
					n := 256 * (1 + rnd.Intn(4))
					src := make([]byte, n)
					dst := make([]byte, n)
					rnd.Read(src)
					rnd.Read(dst)
					want := reference(ref, src, dst, factor)

					s := append([]byte(nil), src...)
					d := append([]byte(nil), dst...)
					f.Prepare(s)
					f.Prepare(d)
					require.NoError(t, f.MulAdd(s, d, factor))
					f.Restore(d)
					f.Restore(s)
					assert.Equal(t, want, d, "factor %d", factor)
					assert.Equal(t, src, s, "source must not change")
				}
			})
		}
	}
}

func TestKernelsPairwise(t *testing.T) {
	for _, w := range []Width{W8, W16} {
		names := Kernels(w)
		rnd := rand.New(rand.NewSource(int64(w) * 7))
		src := make([]byte, 1024)
		rnd.Read(src)
		factor := uint16(2 + rnd.Intn(1<<uint(w)-2))
		var outs [][]byte
		for _, name := range names {
			f := openField(t, w, WithKernel(name))
			s := append([]byte(nil), src...)
			d := make([]byte, len(src))
			f.Prepare(s)
			require.NoError(t, f.MulAdd(s, d, factor))
			f.Restore(d)
			outs = append(outs, d)
		}
		for i := 1; i < len(outs); i++ {
			assert.Equal(t, outs[0], outs[i], "%s vs %s", names[0], names[i])
		}
	}
}

func TestLayoutRoundTrip(t *testing.T) {
	for _, w := range []Width{W8, W16} {
		for _, name := range Kernels(w) {
			f := openField(t, w, WithKernel(name))
			buf := make([]byte, 512)
			rand.New(rand.NewSource(1)).Read(buf)
			orig := append([]byte(nil), buf...)
			f.Prepare(buf)
			if f.Kernel().Layout() != LayoutNormal {
				assert.NotEqual(t, orig, buf, name)
			}
			f.Restore(buf)
			assert.Equal(t, orig, buf, name)
		}
	}
}

func TestNewKernelNames(t *testing.T) {
	f := openField(t, W16)
	k, err := NewKernel(f, "split")
	require.NoError(t, err)
	assert.Equal(t, "split16", k.Name())

	_, err = NewKernel(f, "table8")
	require.ErrorIs(t, err, ErrKernel)

	_, err = Open(W8, WithKernel("wide"))
	require.ErrorIs(t, err, ErrKernel)
}

func TestSelectKernelStable(t *testing.T) {
	a := SelectKernel(W16)
	assert.Contains(t, Kernels(W16), a)
	assert.Equal(t, a, SelectKernel(W16))
	assert.Contains(t, Kernels(W8), SelectKernel(W8))
}
