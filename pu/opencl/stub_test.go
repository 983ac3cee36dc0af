//go:build !opencl

package opencl

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/moratsam/rsparity/gf"
	"github.com/moratsam/rsparity/pu"
	"github.com/moratsam/rsparity/util"
)

func TestNewUnavailable(t *testing.T) {
	f, err := gf.Open(gf.W16)
	require.NoError(t, err)
	defer f.Close()

	_, err = New(f, 0, util.NopLogger())
	require.ErrorIs(t, err, pu.ErrUnavailable)
}
