// Package pu declares the processing units the block pipeline can hand work to
// besides its own CPU worker pool.
package pu

import (
	"context"

	"golang.org/x/xerrors"
)

var ErrUnavailable = xerrors.New("accelerator unavailable")

// Batch is one accelerator call. Inputs and Outputs are in element order
// (no kernel layout) and all have the same length. Factors[t][s] is the
// coefficient of input s for output t. The accelerator accumulates:
// Outputs[t] ^= sum over s of Factors[t][s]*Inputs[s].
type Batch struct {
	Inputs  [][]byte
	Outputs [][]byte
	Factors [][]uint16
}

// Len is the byte length of every region in the batch.
func (b *Batch) Len() int {
	if len(b.Inputs) == 0 {
		return 0
	}
	return len(b.Inputs[0])
}

type Accelerator interface {
	Name() string
	MulAdd(ctx context.Context, b *Batch) error
	Close() error
}
