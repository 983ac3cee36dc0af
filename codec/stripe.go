package codec

import (
	"context"
	"time"

	"golang.org/x/xerrors"

	"github.com/moratsam/rsparity/checksum"
	"github.com/moratsam/rsparity/pu/cpu"
	u "github.com/moratsam/rsparity/util"
)

// execute runs the stripe loop of a planned job: for every batch of targets,
// for every stripe, stream all inputs through in batches, then verify and
// write the finished target stripes.
func (e *Engine) execute(ctx context.Context, w *work) error {
	p := w.plan
	w.progress.total = p.total(len(w.inputs), len(w.targets))
	if p.gpu() {
		w.gpu = newGPUSplit(e.acc, e.field, p, e.cfg.GPU.InitialRatio, e.cfg.GPU.Smoothing)
	}

	// Buffers live for the whole job.
	size := p.Stripe + p.Trailer
	srcBufs := make([][]byte, min(p.SrcBatch, max(len(w.inputs), 1)))
	for i := range srcBufs {
		srcBufs[i] = make([]byte, size)
	}
	tgtBufs := make([][]byte, min(p.TgtBatch, len(w.targets)))
	for i := range tgtBufs {
		tgtBufs[i] = make([]byte, size)
	}

	snapshot := make([]uint32, len(w.crcs))
	for tb := 0; tb < len(w.targets); tb += p.TgtBatch {
		n := min(p.TgtBatch, len(w.targets)-tb)
		for i := 0; i < p.Stripes; i++ {
			off := i * p.Stripe
			dataLen := p.stripeLen(i)
			// Input CRCs are taken on the first pass over the inputs only.
			trackCRC := tb == 0

			copy(snapshot, w.crcs)
			done := w.progress.done.Load()
			err := e.stripe(ctx, w, tb, n, srcBufs, tgtBufs[:n], off, dataLen, trackCRC)
			if xerrors.Is(err, errGPU) && ctx.Err() == nil {
				e.log.WithError(err).Warn("accelerator failed, finishing job on cpu")
				if e.metrics != nil {
					e.metrics.GPUFallbacks.Inc()
				}
				w.gpu = nil
				copy(w.crcs, snapshot)
				w.progress.done.Store(done)
				err = e.stripe(ctx, w, tb, n, srcBufs, tgtBufs[:n], off, dataLen, trackCRC)
			}
			if err != nil {
				return err
			}
			if err := e.flush(w, tb, tgtBufs[:n], off, dataLen); err != nil {
				return err
			}
			w.progress.tick()
		}
	}

	if e.metrics != nil {
		e.metrics.Bytes.WithLabelValues(w.op, "cpu").Add(float64(w.progress.done.Load() - w.gpuBytes))
		e.metrics.Bytes.WithLabelValues(w.op, "gpu").Add(float64(w.gpuBytes))
	}
	return nil
}

// stripe accumulates stripe [off, off+dataLen) of targets tb..tb+n-1 into tgts.
func (e *Engine) stripe(ctx context.Context, w *work, tb, n int, srcBufs, tgts [][]byte, off, dataLen int, trackCRC bool) error {
	p := w.plan
	size := dataLen + p.Trailer
	for _, b := range tgts {
		clear(b[:size])
	}

	cut := dataLen
	if w.gpu != nil {
		cut = w.gpu.cut(dataLen)
		w.gpu.begin(n, dataLen-cut)
	}

	factors := make([][]uint16, n)
	for sb := 0; sb < len(w.inputs); sb += p.SrcBatch {
		if err := ctx.Err(); err != nil {
			return err
		}
		ins := w.inputs[sb:min(sb+p.SrcBatch, len(w.inputs))]
		srcs := srcBufs[:len(ins)]
		for s := range ins {
			if err := e.load(w, &ins[s], srcs[s][:size], off, dataLen, trackCRC); err != nil {
				return err
			}
		}
		for t := range factors {
			factors[t] = w.factors[tb+t][sb : sb+len(ins)]
		}

		var gpuDone <-chan error
		if cut < dataLen {
			gpuDone = w.gpu.launch(ctx, srcs, factors, cut, dataLen)
		}

		start := time.Now()
		err := e.multiply(ctx, w, srcs, tgts, factors, cut, dataLen, size)
		pairs := int64(len(srcs) * len(tgts))
		if w.gpu != nil {
			w.gpu.observe(int64(cut)*pairs, time.Since(start))
		}

		if gpuDone != nil {
			if gerr := e.waitGPU(ctx, w, gpuDone); gerr != nil {
				if cerr := ctx.Err(); cerr != nil {
					return cerr
				}
				return xerrors.Errorf("%v: %w", gerr, errGPU)
			}
			gpuBytes := int64(dataLen-cut) * pairs
			w.gpuBytes += gpuBytes
			w.progress.add(gpuBytes)
		}
		if err != nil {
			return err
		}
	}

	if cut < dataLen {
		if err := w.gpu.merge(tgts, cut, dataLen); err != nil {
			return err
		}
		w.gpu.adapt()
		if e.metrics != nil {
			e.metrics.GPUShare.Set(w.gpu.ratio)
		}
	}
	return nil
}

// waitGPU blocks until the device share of a source batch is done, reporting
// progress every ProgressInterval meanwhile. The staging buffers belong to the
// device until it returns, so a cancelled ctx is only noted here; the
// accelerator observes it and returns early.
func (e *Engine) waitGPU(ctx context.Context, w *work, done <-chan error) error {
	var tick <-chan time.Time
	if e.cfg.ProgressInterval > 0 {
		ticker := time.NewTicker(e.cfg.ProgressInterval)
		defer ticker.Stop()
		tick = ticker.C
	}
	cancelled := ctx.Done()
	for {
		select {
		case err := <-done:
			return err
		case <-tick:
			w.progress.tick()
		case <-cancelled:
			e.log.Debug("cancelled while waiting for accelerator")
			cancelled = nil
		}
	}
}

// multiply runs srcs x factors into tgts on the pool over [0, cut) plus the
// checksum trailer [dataLen, size). Each work unit is one chunk of that range.
func (e *Engine) multiply(ctx context.Context, w *work, srcs, tgts [][]byte, factors [][]uint16, cut, dataLen, size int) error {
	chunk := w.plan.Chunk
	chunks := (cut + chunk - 1) / chunk
	pairs := int64(len(srcs) * len(tgts))
	return e.pool.Run(ctx, cpu.Task{
		Units: chunks + 1,
		Do: func(_, unit int) error {
			from, to := dataLen, size
			if unit < chunks {
				from = unit * chunk
				to = min(from+chunk, cut)
			}
			for s, src := range srcs {
				for t, dst := range tgts {
					if err := e.field.MulAdd(src[from:to], dst[from:to], factors[t][s]); err != nil {
						return u.WrapErr("multiply region", err)
					}
				}
			}
			w.progress.add(int64(to-from) * pairs)
			return nil
		},
		Tick:     w.progress.tick,
		Interval: e.cfg.ProgressInterval,
	})
}

// load reads the stripe of in into buf, zero padded past the block length,
// appends its checksum trailer and converts it to kernel layout.
func (e *Engine) load(w *work, in *input, buf []byte, off, dataLen int, trackCRC bool) error {
	clear(buf)
	data := buf[:dataLen]
	if n := min(int64(dataLen), max(0, in.length-int64(off))); n > 0 {
		if err := w.io.ReadRange(in.loc.File, in.loc.Offset+int64(off), data[:n]); err != nil {
			return u.WrapErr("read input", err)
		}
		if trackCRC && in.crc != nil {
			*in.crc = checksum.Update(*in.crc, data[:n])
		}
	}
	if err := checksum.Sum(e.field.Width(), data, buf[dataLen:dataLen+checksum.Size]); err != nil {
		return u.WrapErr("checksum input", err)
	}
	e.field.Prepare(buf)
	return nil
}

// flush converts finished target stripes back to element order, checks them
// against their trailers and writes the part inside each target's length.
func (e *Engine) flush(w *work, tb int, tgts [][]byte, off, dataLen int) error {
	size := dataLen + w.plan.Trailer
	for t, buf := range tgts {
		tg := &w.targets[tb+t]
		buf = buf[:size]
		e.field.Restore(buf)
		ok, err := checksum.Verify(e.field.Width(), buf[:dataLen], buf[dataLen:dataLen+checksum.Size])
		if err != nil {
			return u.WrapErr("verify target", err)
		}
		if !ok {
			return xerrors.Errorf("target %d stripe at %d: %w", tb+t, off, ErrChecksumMismatch)
		}

		n := min(int64(dataLen), max(0, tg.length-int64(off)))
		if n == 0 {
			continue
		}
		data := buf[:n]
		if err := w.io.WriteRange(tg.loc.File, tg.loc.Offset+int64(off), data); err != nil {
			return u.WrapErr("write target", err)
		}
		if tg.hash != nil {
			tg.hash.Write(data)
		}
		tg.crc = checksum.Update(tg.crc, data)
	}
	return nil
}
