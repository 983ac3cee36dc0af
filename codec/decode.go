package codec

import (
	"context"

	"golang.org/x/xerrors"

	rsio "github.com/moratsam/rsparity/io"
	"github.com/moratsam/rsparity/matrix"
	u "github.com/moratsam/rsparity/util"
)

func (e *Engine) decode(ctx context.Context, job *DecodeJob) (*DecodeResult, error) {
	if err := job.validate(e.field.Width()); err != nil {
		return nil, err
	}

	present := make([]bool, len(job.Sources))
	lost := 0
	for i, s := range job.Sources {
		present[i] = s.State != rsio.Lost
		if !present[i] {
			lost++
		}
	}
	if lost == 0 {
		return &DecodeResult{}, nil
	}

	// Invert decode matrix.
	consts, err := matrix.Constants(e.field, len(job.Sources))
	if err != nil {
		return nil, u.WrapErr("source constants", err)
	}
	rows := make([]matrix.Row, len(job.Parity))
	for i, p := range job.Parity {
		rows[i] = matrix.Row{Exponent: p.Exponent, Usable: p.State == rsio.Available}
	}
	sol, err := matrix.Solve(ctx, e.field, consts, present, rows, matrix.WithPool(e.pool))
	if err != nil {
		return nil, err
	}
	for _, d := range sol.Disabled {
		e.log.WithField("parity", d).Warn("parity block makes the decode matrix singular, skipped")
	}

	w := &work{
		op:       "decode",
		io:       job.IO,
		progress: &progress{report: e.progress},
	}
	w.factors = make([][]uint16, len(sol.Lost))

	// Present sources with a non-zero coefficient for some lost block.
	for i, s := range job.Sources {
		if s.State != rsio.Present || s.Length == 0 {
			continue
		}
		used := false
		for k := range sol.Lost {
			used = used || sol.SourceFactor(k, i) != 0
		}
		if !used {
			continue
		}
		w.inputs = append(w.inputs, input{loc: s.Location(), length: s.Length})
		for k := range sol.Lost {
			w.factors[k] = append(w.factors[k], sol.SourceFactor(k, i))
		}
	}
	for r, pi := range sol.Parity {
		w.inputs = append(w.inputs, input{loc: job.Parity[pi].Location, length: job.BlockSize})
		for k := range sol.Lost {
			w.factors[k] = append(w.factors[k], sol.ParityFactor(k, r))
		}
	}
	for _, li := range sol.Lost {
		s := job.Sources[li]
		w.targets = append(w.targets, target{loc: s.Location(), length: s.Length})
	}

	if w.plan, err = e.plan(job.BlockSize, len(w.inputs), len(w.targets)); err != nil {
		return nil, err
	}
	if err := e.execute(ctx, w); err != nil {
		e.discard(w)
		return nil, err
	}

	// Check recovered blocks against their recorded CRCs.
	for k, li := range sol.Lost {
		s := job.Sources[li]
		if s.HasCRC && w.targets[k].crc != s.CRC {
			e.discard(w)
			return nil, xerrors.Errorf("source %d: got %08x, want %08x: %w", li, w.targets[k].crc, s.CRC, ErrCRCMismatch)
		}
	}

	return &DecodeResult{
		Strategy:   w.plan.Strategy,
		Recovered:  sol.Lost,
		UsedParity: sol.Parity,
		Disabled:   sol.Disabled,
	}, nil
}
