package codec

import (
	"context"

	"github.com/minio/sha256-simd"

	rsio "github.com/moratsam/rsparity/io"
	"github.com/moratsam/rsparity/matrix"
	u "github.com/moratsam/rsparity/util"
)

func (e *Engine) encode(ctx context.Context, job *EncodeJob) (*EncodeResult, error) {
	if err := job.validate(e.field.Width()); err != nil {
		return nil, err
	}

	// Create encode matrix.
	consts, err := matrix.Constants(e.field, len(job.Sources))
	if err != nil {
		return nil, u.WrapErr("source constants", err)
	}
	exponents := make([]int, len(job.Parity))
	for i, p := range job.Parity {
		exponents[i] = p.Exponent
	}
	enc := matrix.EncodeRows(e.field, consts, exponents)

	res := &EncodeResult{
		ParityHash: make([][sha256.Size]byte, len(job.Parity)),
		ParityCRC:  make([]uint32, len(job.Parity)),
		SourceCRC:  make([]uint32, len(job.Sources)),
	}
	w := &work{
		op:       "encode",
		io:       job.IO,
		crcs:     res.SourceCRC,
		progress: &progress{report: e.progress},
	}

	// Zero blocks add nothing to any parity and are never read.
	var cols []int
	for i, s := range job.Sources {
		if s.State == rsio.Zero || s.Length == 0 {
			res.SourceCRC[i] = zeroCRC(s.Length)
			continue
		}
		w.inputs = append(w.inputs, input{loc: s.Location(), length: s.Length, crc: &res.SourceCRC[i]})
		cols = append(cols, i)
	}
	w.factors = make([][]uint16, len(job.Parity))
	for t := range job.Parity {
		w.factors[t] = make([]uint16, len(cols))
		for s, c := range cols {
			w.factors[t][s] = enc.At(t, c)
		}
	}
	for _, p := range job.Parity {
		w.targets = append(w.targets, target{loc: p.Location, length: job.BlockSize, hash: sha256.New()})
	}
	if len(w.targets) == 0 {
		return res, nil
	}

	if w.plan, err = e.plan(job.BlockSize, len(w.inputs), len(w.targets)); err != nil {
		return nil, err
	}
	res.Strategy = w.plan.Strategy

	if err := e.execute(ctx, w); err != nil {
		e.discard(w)
		return nil, err
	}

	// Store parity hashes.
	for t, p := range job.Parity {
		copy(res.ParityHash[t][:], w.targets[t].hash.Sum(nil))
		res.ParityCRC[t] = w.targets[t].crc
		if p.HashLocation == nil {
			continue
		}
		if err := job.IO.WriteRange(p.HashLocation.File, p.HashLocation.Offset, res.ParityHash[t][:]); err != nil {
			e.discard(w)
			return nil, u.WrapErr("write parity hash", err)
		}
	}
	return res, nil
}
