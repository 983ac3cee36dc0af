package checksum

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moratsam/rsparity/gf"
)

func TestSumRejectsLength(t *testing.T) {
	var sum [Size]byte
	require.ErrorIs(t, Sum(gf.W16, make([]byte, 100), sum[:]), ErrLength)
}

func TestSumZero(t *testing.T) {
	var sum [Size]byte
	require.NoError(t, Sum(gf.W16, make([]byte, 4*Range), sum[:]))
	assert.Equal(t, [Size]byte{}, sum)
}

func TestSumOrderDependent(t *testing.T) {
	data := make([]byte, 2*Range)
	data[0] = 1
	swapped := make([]byte, 2*Range)
	swapped[Range] = 1

	var a, b [Size]byte
	require.NoError(t, Sum(gf.W16, data, a[:]))
	require.NoError(t, Sum(gf.W16, swapped, b[:]))
	assert.NotEqual(t, a, b)
}

func TestSumBitFlipSensitivity(t *testing.T) {
	for _, w := range []gf.Width{gf.W8, gf.W16} {
		rnd := rand.New(rand.NewSource(3))
		data := make([]byte, 8*Range)
		rnd.Read(data)
		var base [Size]byte
		require.NoError(t, Sum(w, data, base[:]))
		for bit := 0; bit < len(data)*8; bit += 7 {
			data[bit/8] ^= 1 << uint(bit%8)
			var got [Size]byte
			require.NoError(t, Sum(w, data, got[:]))
			assert.NotEqual(t, base, got, "bit %d", bit)
			data[bit/8] ^= 1 << uint(bit%8)
		}
	}
}

// The checksum of factor*data must be factor times the checksum of data, which
// is what lets the trailer ride along region multiplies.
func TestSumLinear(t *testing.T) {
	for _, tc := range []struct {
		w      gf.Width
		kernel string
	}{{gf.W8, "table8"}, {gf.W16, "table16"}} {
		f, err := gf.Open(tc.w, gf.WithKernel(tc.kernel))
		require.NoError(t, err)
		defer f.Close()

		rnd := rand.New(rand.NewSource(9))
		a := make([]byte, 4*Range)
		b := make([]byte, 4*Range)
		rnd.Read(a)
		rnd.Read(b)
		var sa, sb [Size]byte
		require.NoError(t, Sum(tc.w, a, sa[:]))
		require.NoError(t, Sum(tc.w, b, sb[:]))

		// acc = 3a + 7b, trailer = 3sa + 7sb.
		acc := make([]byte, len(a))
		var trailer [Size]byte
		require.NoError(t, f.MulAdd(a, acc, 3))
		require.NoError(t, f.MulAdd(b, acc, 7))
		require.NoError(t, f.MulAdd(sa[:], trailer[:], 3))
		require.NoError(t, f.MulAdd(sb[:], trailer[:], 7))

		ok, err := Verify(tc.w, acc, trailer[:])
		require.NoError(t, err)
		assert.True(t, ok, "width %d", tc.w)
	}
}
