// Package codec is the block pipeline: it plans buffering for a job, streams
// stripes of the input blocks through the CPU pool (and the accelerator when
// one is worth using), verifies every output stripe by its checksum trailer
// and writes it out.
package codec

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/moratsam/rsparity/config"
	"github.com/moratsam/rsparity/gf"
	rsio "github.com/moratsam/rsparity/io"
	"github.com/moratsam/rsparity/metrics"
	"github.com/moratsam/rsparity/pu"
	"github.com/moratsam/rsparity/pu/cpu"
	"github.com/moratsam/rsparity/pu/opencl"
	u "github.com/moratsam/rsparity/util"
)

type Engine struct {
	mu       sync.Mutex
	closed   bool
	cfg      *config.Config
	log      logrus.FieldLogger
	field    *gf.Field
	pool     *cpu.Pool
	acc      pu.Accelerator
	mem      u.MemoryEstimator
	metrics  *metrics.Metrics
	progress func(float64)
}

type Option func(*Engine)

func WithLogger(l logrus.FieldLogger) Option {
	return func(e *Engine) { e.log = l }
}

// WithAccelerator installs acc instead of probing for an OpenCL device. The
// engine closes it.
func WithAccelerator(acc pu.Accelerator) Option {
	return func(e *Engine) { e.acc = acc }
}

func WithMemoryEstimator(m u.MemoryEstimator) Option {
	return func(e *Engine) { e.mem = m }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithProgress sets a callback receiving the fraction of work done, from 0 to 1.
func WithProgress(fn func(float64)) Option {
	return func(e *Engine) { e.progress = fn }
}

func New(cfg *config.Config, opts ...Option) (*Engine, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	e := &Engine{cfg: cfg, log: u.NopLogger()}
	for _, opt := range opts {
		opt(e)
	}

	// Open field.
	field, err := gf.Open(gf.Width(cfg.Width), gf.WithKernel(cfg.Kernel))
	if err != nil {
		return nil, u.WrapErr("open field", err)
	}
	e.field = field

	// Probe accelerator.
	if e.acc == nil && cfg.GPU.Enabled {
		acc, err := opencl.New(field, cfg.GPU.Segment, e.log)
		if err != nil {
			e.log.WithError(err).Warn("gpu unavailable, running on cpu only")
		} else {
			e.acc = acc
		}
	}

	if e.mem == nil {
		if cfg.Memory.Limit > 0 {
			e.mem = u.FixedMemory(cfg.Memory.Limit)
		} else {
			e.mem = u.FractionOf(u.AvailableMemory, cfg.Memory.Fraction)
		}
	}

	e.pool = cpu.NewPool(cfg.Workers)
	e.log.WithFields(logrus.Fields{
		"width":   cfg.Width,
		"kernel":  field.Kernel().Name(),
		"workers": e.pool.Workers(),
		"gpu":     e.acc != nil,
	}).Debug("engine ready")
	return e, nil
}

func (e *Engine) Field() *gf.Field { return e.field }

func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true
	err := e.pool.Close()
	if e.acc != nil {
		if cerr := e.acc.Close(); cerr != nil && err == nil {
			err = u.WrapErr("close accelerator", cerr)
		}
	}
	e.field.Close()
	return err
}

// Encode computes every parity block of the job. Jobs on one engine run one
// at a time.
func (e *Engine) Encode(ctx context.Context, job EncodeJob) (*EncodeResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil, ErrClosed
	}
	start := time.Now()
	e.started("encode", job.BlockSize, len(job.Sources), len(job.Parity))
	res, err := e.encode(ctx, &job)
	e.finish("encode", start, err)
	return res, err
}

// Decode reconstructs the lost sources of the job. On InsufficientParity no
// output is touched; StatusOf(err).Needed says how many more parity blocks
// are required.
func (e *Engine) Decode(ctx context.Context, job DecodeJob) (*DecodeResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil, ErrClosed
	}
	start := time.Now()
	e.started("decode", job.BlockSize, len(job.Sources), len(job.Parity))
	res, err := e.decode(ctx, &job)
	e.finish("decode", start, err)
	return res, err
}

func (e *Engine) started(op string, blockSize int64, sources, parity int) {
	e.log.WithFields(logrus.Fields{
		"op":         op,
		"block_size": blockSize,
		"sources":    sources,
		"parity":     parity,
	}).Info("job started")
}

func (e *Engine) finish(op string, start time.Time, err error) {
	st := StatusOf(err)
	elapsed := time.Since(start)
	if e.metrics != nil {
		e.metrics.Jobs.WithLabelValues(op, st.Code.String()).Inc()
		e.metrics.JobDuration.WithLabelValues(op).Observe(elapsed.Seconds())
	}
	entry := e.log.WithFields(logrus.Fields{"op": op, "status": st.String(), "elapsed": elapsed})
	if st.Code == StatusFatal {
		entry.Error("job failed")
		return
	}
	entry.Info("job finished")
}

// discard removes the outputs a failed job may have written part of, if the
// store knows how.
func (e *Engine) discard(w *work) {
	d, ok := w.io.(rsio.Discarder)
	if !ok {
		return
	}
	seen := make(map[rsio.FileID]bool)
	for _, t := range w.targets {
		if seen[t.loc.File] {
			continue
		}
		seen[t.loc.File] = true
		if err := d.Discard(t.loc.File); err != nil {
			e.log.WithError(err).WithField("file", t.loc.File).Warn("discard output")
		}
	}
}

func (e *Engine) gpuEligible(blockSize int64, inputs int) bool {
	return e.acc != nil &&
		blockSize >= e.cfg.GPU.MinBlockSize &&
		inputs >= e.cfg.GPU.MinSources
}

func (e *Engine) plan(blockSize int64, inputs, targets int) (*plan, error) {
	budget, err := e.mem()
	if err != nil {
		return nil, u.WrapErr("estimate memory", err)
	}
	req := planRequest{
		BlockSize: blockSize,
		Inputs:    inputs,
		Targets:   targets,
		Unit:      e.field.Kernel().Unit(),
		Budget:    budget,
		MinStripe: e.cfg.Memory.MinStripe,
		Chunk:     e.cfg.ChunkSize,
		GPU:       e.gpuEligible(blockSize, inputs),
	}
	p, err := makePlan(req)
	if err != nil && req.GPU {
		// Without staging regions a CPU-only plan may still fit.
		req.GPU = false
		p, err = makePlan(req)
	}
	if err != nil {
		return nil, err
	}
	e.log.WithFields(logrus.Fields{
		"strategy":  p.Strategy,
		"stripe":    p.Stripe,
		"stripes":   p.Stripes,
		"src_batch": p.SrcBatch,
		"tgt_batch": p.TgtBatch,
		"chunk":     p.Chunk,
	}).Debug("planned job")
	return p, nil
}
