package checksum

import (
	"hash/crc32"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpdateMatchesIEEE(t *testing.T) {
	data := []byte("123456789")
	assert.Equal(t, uint32(0xcbf43926), Update(0, data))
	assert.Equal(t, Update(0, data), Update(Update(0, data[:4]), data[4:]))
}

func TestWindowSlide(t *testing.T) {
	rnd := rand.New(rand.NewSource(5))
	data := make([]byte, 3000)
	rnd.Read(data)
	for _, size := range []int{1, 16, 777, 1024} {
		w := NewWindow(size)
		crc := crc32.ChecksumIEEE(data[:size])
		for i := size; i < len(data); i++ {
			crc = w.Slide(crc, data[i-size], data[i])
			require.Equal(t, crc32.ChecksumIEEE(data[i-size+1:i+1]), crc, "size %d offset %d", size, i-size+1)
		}
	}
}

func TestWindowFind(t *testing.T) {
	rnd := rand.New(rand.NewSource(6))
	data := make([]byte, 4096)
	rnd.Read(data)
	block := data[1234 : 1234+512]
	w := NewWindow(512)
	assert.Equal(t, 1234, w.Find(data, crc32.ChecksumIEEE(block)))
	assert.Equal(t, 0, w.Find(data, crc32.ChecksumIEEE(data[:512])))
	assert.Equal(t, -1, w.Find(data[:100], 0))
}
