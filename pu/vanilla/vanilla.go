// Package vanilla is a software accelerator. It honours the same contract as
// the OpenCL one, so the GPU share of a stripe can run where no device exists.
package vanilla

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/moratsam/rsparity/gf"
	"github.com/moratsam/rsparity/pu"
)

type VanillaPU struct {
	f *gf.Field
}

func NewVanillaPU(f *gf.Field) *VanillaPU {
	return &VanillaPU{f}
}

func (v *VanillaPU) Name() string { return "vanilla" }

func (v *VanillaPU) Close() error { return nil }

func (v *VanillaPU) MulAdd(ctx context.Context, b *pu.Batch) error {
	n := b.Len()
	g, ctx := errgroup.WithContext(ctx)

	// Create function for accumulating a single output.
	accumulate := func(t int) error {
		out := b.Outputs[t]
		for s, in := range b.Inputs {
			if err := ctx.Err(); err != nil {
				return err
			}
			factor := b.Factors[t][s]
			if factor == 0 {
				continue
			}
			if v.f.Width() == gf.W8 {
				for i := 0; i < n; i++ {
					out[i] ^= byte(v.f.Mul(uint16(in[i]), factor))
				}
				continue
			}
			for i := 0; i+1 < n; i += 2 {
				p := v.f.Mul(uint16(in[i])|uint16(in[i+1])<<8, factor)
				out[i] ^= byte(p)
				out[i+1] ^= byte(p >> 8)
			}
		}
		return nil
	}

	// Spawn a routine per output.
	for t := range b.Outputs {
		t := t
		g.Go(func() error { return accumulate(t) })
	}
	return g.Wait()
}
