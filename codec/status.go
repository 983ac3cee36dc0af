package codec

import (
	"context"
	"fmt"

	"golang.org/x/xerrors"

	"github.com/moratsam/rsparity/matrix"
)

var (
	ErrInvalidJob         = xerrors.New("invalid job")
	ErrInsufficientMemory = xerrors.New("insufficient memory for any buffering strategy")
	ErrChecksumMismatch   = xerrors.New("block checksum mismatch")
	ErrCRCMismatch        = xerrors.New("reconstructed block crc mismatch")
	ErrClosed             = xerrors.New("engine closed")
)

type Code int

const (
	StatusOK Code = iota
	StatusFatal
	StatusCancelled
	StatusInsufficientParity
)

func (c Code) String() string {
	switch c {
	case StatusOK:
		return "ok"
	case StatusFatal:
		return "fatal"
	case StatusCancelled:
		return "cancelled"
	case StatusInsufficientParity:
		return "insufficient_parity"
	}
	return fmt.Sprintf("code(%d)", int(c))
}

// Status is the outcome of a job as the caller reports it.
type Status struct {
	Code Code
	// Needed is the number of extra parity blocks an InsufficientParity repair needs.
	Needed int
	Err    error
}

func (s Status) String() string {
	switch s.Code {
	case StatusInsufficientParity:
		return fmt.Sprintf("%s(%d)", s.Code, s.Needed)
	case StatusFatal:
		return fmt.Sprintf("%s: %v", s.Code, s.Err)
	}
	return s.Code.String()
}

// StatusOf classifies an error returned by Encode or Decode.
func StatusOf(err error) Status {
	if err == nil {
		return Status{Code: StatusOK}
	}
	if xerrors.Is(err, context.Canceled) || xerrors.Is(err, context.DeadlineExceeded) {
		return Status{Code: StatusCancelled, Err: err}
	}
	var ipe *matrix.InsufficientParityError
	if xerrors.As(err, &ipe) {
		return Status{Code: StatusInsufficientParity, Needed: ipe.Needed, Err: err}
	}
	return Status{Code: StatusFatal, Err: err}
}
