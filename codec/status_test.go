package codec

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/xerrors"

	"github.com/moratsam/rsparity/matrix"
	u "github.com/moratsam/rsparity/util"
)

func TestStatusOf(t *testing.T) {
	assert.Equal(t, StatusOK, StatusOf(nil).Code)
	assert.Equal(t, StatusCancelled, StatusOf(u.WrapErr("run", context.Canceled)).Code)
	assert.Equal(t, StatusCancelled, StatusOf(context.DeadlineExceeded).Code)

	st := StatusOf(xerrors.Errorf("solve: %w", &matrix.InsufficientParityError{Needed: 2}))
	assert.Equal(t, StatusInsufficientParity, st.Code)
	assert.Equal(t, 2, st.Needed)
	assert.Equal(t, "insufficient_parity(2)", st.String())

	st = StatusOf(ErrChecksumMismatch)
	assert.Equal(t, StatusFatal, st.Code)
	assert.ErrorIs(t, st.Err, ErrChecksumMismatch)
	assert.Equal(t, "ok", Status{}.String())
}
