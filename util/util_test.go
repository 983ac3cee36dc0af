package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/xerrors"
)

func TestWrapErr(t *testing.T) {
	base := xerrors.New("boom")
	err := WrapErr("read block", base)
	assert.True(t, xerrors.Is(err, base))
	assert.Contains(t, err.Error(), "read block: boom")
}

func TestRounding(t *testing.T) {
	assert.Equal(t, 0, RoundUp(0, 16))
	assert.Equal(t, 16, RoundUp(1, 16))
	assert.Equal(t, 32, RoundUp(32, 16))
	assert.Equal(t, 16, RoundDown(31, 16))
}

func TestFractionOf(t *testing.T) {
	est := FractionOf(FixedMemory(1000), 0.5)
	n, err := est()
	require.NoError(t, err)
	assert.Equal(t, uint64(500), n)

	n, err = FractionOf(FixedMemory(1000), 0)()
	require.NoError(t, err)
	assert.Equal(t, uint64(1000), n)
}

func TestNewLogger(t *testing.T) {
	_, err := NewLogger("nope")
	require.Error(t, err)
	logger, err := NewLogger("debug")
	require.NoError(t, err)
	assert.Equal(t, "debug", logger.GetLevel().String())
}
