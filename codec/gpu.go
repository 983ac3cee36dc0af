package codec

import (
	"context"
	"time"

	"golang.org/x/xerrors"

	"github.com/moratsam/rsparity/gf"
	"github.com/moratsam/rsparity/pu"
	u "github.com/moratsam/rsparity/util"
)

const (
	minGPURatio = 0.02
	maxGPURatio = 0.9
)

var errGPU = xerrors.New("accelerator failed")

// gpuSplit owns the accelerator for one job. The tail of every stripe, from
// the cut point on, is multiplied on the device; the head goes to the CPU pool.
// After each stripe the share moves toward the ratio of observed throughputs.
type gpuSplit struct {
	acc       pu.Accelerator
	field     *gf.Field
	align     int
	ratio     float64
	smoothing float64

	// Staging regions in element order, reused for every stripe.
	in  [][]byte
	out [][]byte

	cpuBytes, gpuBytes int64
	cpuTime, gpuTime   time.Duration
}

func newGPUSplit(acc pu.Accelerator, f *gf.Field, p *plan, ratio, smoothing float64) *gpuSplit {
	g := &gpuSplit{
		acc:       acc,
		field:     f,
		align:     p.Align,
		ratio:     min(maxGPURatio, max(minGPURatio, ratio)),
		smoothing: smoothing,
		in:        make([][]byte, p.SrcBatch),
		out:       make([][]byte, p.TgtBatch),
	}
	for i := range g.in {
		g.in[i] = make([]byte, p.Stripe)
	}
	for i := range g.out {
		g.out[i] = make([]byte, p.Stripe)
	}
	return g
}

// cut returns where the device share of a stripe of dataLen bytes begins.
func (g *gpuSplit) cut(dataLen int) int {
	c := u.RoundUp(int(float64(dataLen)*(1-g.ratio)), g.align)
	return min(c, dataLen)
}

// begin clears the staging targets for a new stripe.
func (g *gpuSplit) begin(targets, size int) {
	for _, o := range g.out[:targets] {
		clear(o[:size])
	}
	g.cpuBytes, g.gpuBytes = 0, 0
	g.cpuTime, g.gpuTime = 0, 0
}

// launch multiplies srcs[from:to] into the staging targets in the background.
// The sources are in kernel layout and are copied out before it returns, so
// the caller may hand srcs to the CPU pool right away.
func (g *gpuSplit) launch(ctx context.Context, srcs [][]byte, factors [][]uint16, from, to int) <-chan error {
	size := to - from
	b := &pu.Batch{
		Inputs:  make([][]byte, len(srcs)),
		Outputs: make([][]byte, len(factors)),
		Factors: factors,
	}
	for s, src := range srcs {
		in := g.in[s][:size]
		copy(in, src[from:to])
		g.field.Restore(in)
		b.Inputs[s] = in
	}
	for t := range factors {
		b.Outputs[t] = g.out[t][:size]
	}

	done := make(chan error, 1)
	go func() {
		start := time.Now()
		err := g.acc.MulAdd(ctx, b)
		g.gpuTime += time.Since(start)
		g.gpuBytes += int64(size) * int64(len(srcs)) * int64(len(factors))
		done <- err
	}()
	return done
}

// merge folds the device products into the CPU targets, which are in kernel layout.
func (g *gpuSplit) merge(tgts [][]byte, from, to int) error {
	size := to - from
	for t, dst := range tgts {
		out := g.out[t][:size]
		g.field.Prepare(out)
		// Factor 1 is a plain XOR.
		if err := g.field.MulAdd(out, dst[from:to], 1); err != nil {
			return u.WrapErr("merge gpu share", err)
		}
	}
	return nil
}

// observe records the CPU side of a source batch.
func (g *gpuSplit) observe(bytes int64, d time.Duration) {
	g.cpuBytes += bytes
	g.cpuTime += d
}

// adapt moves the share toward gpuRate/(cpuRate+gpuRate).
func (g *gpuSplit) adapt() {
	if g.cpuBytes == 0 || g.gpuBytes == 0 || g.cpuTime <= 0 || g.gpuTime <= 0 {
		return
	}
	cpuRate := float64(g.cpuBytes) / g.cpuTime.Seconds()
	gpuRate := float64(g.gpuBytes) / g.gpuTime.Seconds()
	target := gpuRate / (cpuRate + gpuRate)
	g.ratio += g.smoothing * (target - g.ratio)
	g.ratio = min(maxGPURatio, max(minGPURatio, g.ratio))
}
