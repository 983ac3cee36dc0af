package gf

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openField(t *testing.T, w Width, opts ...Option) *Field {
	t.Helper()
	f, err := Open(w, opts...)
	require.NoError(t, err)
	t.Cleanup(f.Close)
	return f
}

func TestOpenRejectsWidth(t *testing.T) {
	_, err := Open(Width(12))
	require.ErrorIs(t, err, ErrWidth)
}

func TestTablesShared(t *testing.T) {
	a := openField(t, W16)
	b := openField(t, W16)
	la, _ := a.Tables()
	lb, _ := b.Tables()
	assert.Same(t, &la[0], &lb[0])
}

func TestSentinels(t *testing.T) {
	f8 := openField(t, W8)
	f16 := openField(t, W16)
	assert.Equal(t, uint16(255), f8.DivError())
	assert.Equal(t, uint16(65535), f16.DivError())
	assert.Equal(t, uint16(255), f8.Div(7, 0))
	assert.Equal(t, uint16(65535), f16.Reciprocal(0))
	assert.Equal(t, uint16(0), f16.Div(0, 9))
	assert.Equal(t, uint16(0), f16.Pow(0, 3))
	assert.Equal(t, uint16(1), f16.Pow(0, 0))
}

func TestKnownProducts(t *testing.T) {
	f8 := openField(t, W8)
	// x^7 * x = x^8 = x^4 + x^3 + x^2 + 1 under 0x11d.
	assert.Equal(t, uint16(0x1d), f8.Mul(0x80, 2))
	f16 := openField(t, W16)
	// x^15 * x = x^12 + x^3 + x + 1 under 0x1100b.
	assert.Equal(t, uint16(0x100b), f16.Mul(0x8000, 2))
}

func TestFieldLaws(t *testing.T) {
	for _, w := range []Width{W8, W16} {
		f := openField(t, w)
		rnd := rand.New(rand.NewSource(int64(w)))
		for i := 0; i < 5000; i++ {
			a := uint16(rnd.Intn(f.Order()))
			b := uint16(1 + rnd.Intn(f.Order()-1))
			assert.Equal(t, a, f.Div(f.Mul(a, b), b))
			assert.Equal(t, uint16(1), f.Mul(b, f.Reciprocal(b)))
			assert.Equal(t, uint16(1), f.Pow(a, 0))
			assert.Equal(t, a, f.Pow(a, 1))
			assert.Equal(t, f.Mul(a, a), f.Pow(a, 2))
			assert.Equal(t, f.Mul(a, b), f.Mul(b, a))
		}
	}
}

func TestPowWraps(t *testing.T) {
	f := openField(t, W16)
	assert.Equal(t, uint16(1), f.Pow(2, 65535))
	assert.Equal(t, f.Exp(5), f.Pow(2, 65535+5))
	assert.Equal(t, f.Reciprocal(2), f.Pow(2, -1))
}

func TestMulAddPreconditions(t *testing.T) {
	f := openField(t, W16, WithKernel("split16"))
	require.ErrorIs(t, f.MulAdd(make([]byte, 32), make([]byte, 64), 3), ErrUnaligned)
	require.ErrorIs(t, f.MulAdd(make([]byte, 30), make([]byte, 30), 3), ErrUnaligned)

	f8 := openField(t, W8)
	require.ErrorIs(t, f8.MulAdd(make([]byte, 128), make([]byte, 128), 256), ErrElement)
}

func TestMulAddZeroAndOne(t *testing.T) {
	f := openField(t, W16)
	src := []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16, 17, 18, 19, 20, 21, 22, 23, 24, 25, 26, 27, 28, 29, 30, 31, 32}
	dst := make([]byte, 32)
	require.NoError(t, f.MulAdd(src, dst, 0))
	assert.Equal(t, make([]byte, 32), dst)
	require.NoError(t, f.MulAdd(src, dst, 1))
	assert.Equal(t, src, dst)
	require.NoError(t, f.MulAdd(src, dst, 1))
	assert.Equal(t, make([]byte, 32), dst)
}
