package io

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStoreReadWrite(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "src.bin", []byte("hello world"), 0o644))

	s := NewFileStore(fs)
	defer s.Close()
	src, err := s.Open("src.bin")
	require.NoError(t, err)

	p := make([]byte, 5)
	require.NoError(t, s.ReadRange(src, 6, p))
	assert.Equal(t, "world", string(p))

	require.ErrorIs(t, s.ReadRange(src, 8, make([]byte, 5)), ErrShortRead)

	out, err := s.Create("out.bin")
	require.NoError(t, err)
	require.NoError(t, s.WriteRange(out, 4, []byte("abc")))
	size, err := s.Size(out)
	require.NoError(t, err)
	assert.Equal(t, int64(7), size)

	path, err := s.Path(out)
	require.NoError(t, err)
	assert.Equal(t, "out.bin", path)
}

func TestFileStoreDiscard(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "keep.bin", []byte("x"), 0o644))
	s := NewFileStore(fs)
	defer s.Close()

	keep, err := s.Open("keep.bin")
	require.NoError(t, err)
	out, err := s.Create("out.bin")
	require.NoError(t, err)

	require.NoError(t, s.Discard(keep))
	require.NoError(t, s.Discard(out))

	ok, err := afero.Exists(fs, "keep.bin")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = afero.Exists(fs, "out.bin")
	require.NoError(t, err)
	assert.False(t, ok)

	require.ErrorIs(t, s.WriteRange(out, 0, []byte("y")), ErrUnknownFile)
}

func TestStateStrings(t *testing.T) {
	assert.Equal(t, "lost", Lost.String())
	assert.Equal(t, "zero", Zero.String())
	assert.Equal(t, "state(9)", SourceState(9).String())
}
