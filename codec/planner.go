package codec

import (
	"fmt"

	"github.com/klauspost/cpuid/v2"
	"golang.org/x/xerrors"

	"github.com/moratsam/rsparity/checksum"
	u "github.com/moratsam/rsparity/util"
)

// Strategy is how much of a job stays resident while it runs.
type Strategy int

const (
	// HoldAll keeps every input and target stripe in memory: one read pass.
	HoldAll Strategy = iota + 1
	// HoldTargets keeps every target and cycles the inputs through in batches.
	HoldTargets
	// HoldPartial cycles batches of targets, re-reading every input per batch.
	HoldPartial
	// HoldTargetsGPU and HoldPartialGPU split each stripe between the CPU pool
	// and the accelerator.
	HoldTargetsGPU
	HoldPartialGPU
)

func (s Strategy) String() string {
	switch s {
	case HoldAll:
		return "hold-all"
	case HoldTargets:
		return "hold-targets"
	case HoldPartial:
		return "hold-partial"
	case HoldTargetsGPU:
		return "hold-targets-gpu"
	case HoldPartialGPU:
		return "hold-partial-gpu"
	}
	return fmt.Sprintf("strategy(%d)", int(s))
}

const (
	defaultL2    = 256 * 1024
	minChunkSize = 4 * 1024
)

type plan struct {
	Strategy Strategy
	// Block is the block size rounded up to Align.
	Block   int
	Align   int
	Trailer int
	// Stripe is the data length of every stripe but the last.
	Stripe   int
	Stripes  int
	SrcBatch int
	TgtBatch int
	Chunk    int
}

func (p *plan) gpu() bool { return p.Strategy == HoldTargetsGPU || p.Strategy == HoldPartialGPU }

// stripeLen is the data length of stripe i.
func (p *plan) stripeLen(i int) int { return min(p.Stripe, p.Block-i*p.Stripe) }

// total is the progress denominator: region bytes times the pairs they serve.
func (p *plan) total(inputs, targets int) int64 {
	var n int64
	for i := 0; i < p.Stripes; i++ {
		n += int64(p.stripeLen(i)+p.Trailer) * int64(inputs) * int64(targets)
	}
	return n
}

type planRequest struct {
	BlockSize int64
	Inputs    int
	Targets   int
	Unit      int
	Budget    uint64
	MinStripe int
	Chunk     int
	GPU       bool
}

// makePlan picks the first strategy whose buffers fit the budget.
func makePlan(r planRequest) (*plan, error) {
	p := &plan{Align: max(checksum.Range, r.Unit)}
	p.Block = u.RoundUp(int(r.BlockSize), p.Align)
	p.Trailer = u.RoundUp(checksum.Size, r.Unit)

	// Staging copies for the accelerator double the footprint of a region.
	perRegion := func(stripe int) uint64 {
		n := uint64(stripe + p.Trailer)
		if r.GPU {
			n += uint64(stripe)
		}
		return n
	}
	minStripe := min(p.Block, max(p.Align, u.RoundDown(r.MinStripe, p.Align)))

	// Everything resident, with the largest stripe that fits.
	if regions := uint64(r.Inputs + r.Targets); regions > 0 {
		each := r.Budget / regions
		if r.GPU {
			each /= 2
		}
		stripe := 0
		if each > uint64(p.Trailer) {
			stripe = min(p.Block, u.RoundDown(int(min(each-uint64(p.Trailer), uint64(p.Block))), p.Align))
		}
		if stripe >= minStripe {
			p.Strategy, p.Stripe = HoldAll, stripe
			p.SrcBatch, p.TgtBatch = r.Inputs, r.Targets
			return p.finish(r), nil
		}
	}

	regions := int(r.Budget / perRegion(minStripe))
	p.Stripe = minStripe
	switch {
	case regions >= r.Targets+1:
		p.Strategy = HoldTargets
		p.TgtBatch = r.Targets
		p.SrcBatch = min(r.Inputs, regions-r.Targets)
	case regions >= 2:
		p.Strategy = HoldPartial
		p.TgtBatch = regions - 1
		p.SrcBatch = 1
	default:
		return nil, xerrors.Errorf("%d bytes for %d inputs and %d targets: %w",
			r.Budget, r.Inputs, r.Targets, ErrInsufficientMemory)
	}
	if r.GPU {
		if p.Strategy == HoldTargets {
			p.Strategy = HoldTargetsGPU
		} else {
			p.Strategy = HoldPartialGPU
		}
	}
	return p.finish(r), nil
}

func (p *plan) finish(r planRequest) *plan {
	p.Stripes = (p.Block + p.Stripe - 1) / p.Stripe
	p.SrcBatch = max(p.SrcBatch, 1)
	p.TgtBatch = max(p.TgtBatch, 1)

	// Chunks sized so one source range and the batch of target ranges stay in L2.
	chunk := r.Chunk
	if chunk <= 0 {
		l2 := cpuid.CPU.Cache.L2
		if l2 <= 0 {
			l2 = defaultL2
		}
		chunk = max(minChunkSize, l2/(p.TgtBatch+1))
	}
	p.Chunk = min(p.Stripe, max(p.Align, u.RoundDown(chunk, p.Align)))
	return p
}
