package util

import "golang.org/x/xerrors"

func WrapErr(msg string, err error) error {
	return xerrors.Errorf("%s: %w", msg, err)
}

// RoundUp rounds n up to a multiple of align. align must be positive.
func RoundUp(n, align int) int {
	return (n + align - 1) / align * align
}

// RoundDown rounds n down to a multiple of align.
func RoundDown(n, align int) int {
	return n / align * align
}
