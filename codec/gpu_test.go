package codec

import (
	"context"
	"hash/crc32"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/xerrors"

	"github.com/moratsam/rsparity/config"
	"github.com/moratsam/rsparity/gf"
	"github.com/moratsam/rsparity/metrics"
	"github.com/moratsam/rsparity/pu"
	"github.com/moratsam/rsparity/pu/vanilla"
)

type failingAccelerator struct{ calls int }

func (a *failingAccelerator) Name() string { return "failing" }

func (a *failingAccelerator) MulAdd(ctx context.Context, b *pu.Batch) error {
	a.calls++
	return xerrors.New("device lost")
}

func (a *failingAccelerator) Close() error { return nil }

// blockingAccelerator holds every batch until ctx is cancelled.
type blockingAccelerator struct{}

func (blockingAccelerator) Name() string { return "blocking" }

func (blockingAccelerator) MulAdd(ctx context.Context, b *pu.Batch) error {
	<-ctx.Done()
	return ctx.Err()
}

func (blockingAccelerator) Close() error { return nil }

// corruptingAccelerator computes the right products, then flips a byte that
// moves with every call.
type corruptingAccelerator struct {
	*vanilla.VanillaPU
	calls int
}

func (a *corruptingAccelerator) MulAdd(ctx context.Context, b *pu.Batch) error {
	if err := a.VanillaPU.MulAdd(ctx, b); err != nil {
		return err
	}
	b.Outputs[0][a.calls%b.Len()] ^= 0x5a
	a.calls++
	return nil
}

func gpuConfig() *config.Config {
	cfg := testConfig(16, "table")
	cfg.GPU.MinBlockSize = 0
	cfg.GPU.MinSources = 1
	return cfg
}

// Six regions of one 1024 byte stripe with staging: every target and three inputs.
const gpuBudget = 6 * 2064

func openTestField(t *testing.T) *gf.Field {
	f, err := gf.Open(gf.W16, gf.WithKernel("table"))
	require.NoError(t, err)
	t.Cleanup(f.Close)
	return f
}

func TestGPUSplitRoundTrip(t *testing.T) {
	cases := []struct {
		name     string
		budget   uint64
		strategy Strategy
	}{
		{"all targets", gpuBudget, HoldTargetsGPU},
		// Three regions: target batches of two, one input at a time.
		{"target batches", 3 * 2064, HoldPartialGPU},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			exponents := []int{0, 1, 2}
			fx := newFixture(t, 6, exponents, 8192, 21)
			m, err := metrics.New(nil)
			require.NoError(t, err)
			acc := vanilla.NewVanillaPU(openTestField(t))
			e := newEngine(t, gpuConfig(), c.budget, WithAccelerator(acc), WithMetrics(m))

			enc, err := e.Encode(context.Background(), fx.encodeJob())
			require.NoError(t, err)
			assert.Equal(t, c.strategy, enc.Strategy)
			want := referenceParity(t, e.Field(), fx.data, fx.block, exponents)
			for k, p := range fx.parity {
				got := fx.read(t, p.Location.File, int(fx.block))
				assert.Equal(t, want[k], got, "parity %d", k)
				assert.Equal(t, crc32.ChecksumIEEE(got), enc.ParityCRC[k])
			}
			for i, d := range fx.data {
				assert.Equal(t, crc32.ChecksumIEEE(d), enc.SourceCRC[i], "source %d", i)
			}
			assert.Positive(t, testutil.ToFloat64(m.Bytes.WithLabelValues("encode", "gpu")))
			assert.Zero(t, testutil.ToFloat64(m.GPUFallbacks))

			job := fx.lose(t, enc.SourceCRC, 0, 2, 5)
			dec, err := e.Decode(context.Background(), job)
			require.NoError(t, err)
			assert.Equal(t, c.strategy, dec.Strategy)
			fx.checkRecovered(t, job, 0, 2, 5)
		})
	}
}

func TestGPUFailureFallsBackToCPU(t *testing.T) {
	exponents := []int{0, 1, 2}
	fx := newFixture(t, 6, exponents, 8192, 22)
	m, err := metrics.New(nil)
	require.NoError(t, err)
	acc := &failingAccelerator{}
	e := newEngine(t, gpuConfig(), gpuBudget, WithAccelerator(acc), WithMetrics(m))

	enc, err := e.Encode(context.Background(), fx.encodeJob())
	require.NoError(t, err)
	assert.Equal(t, 1, acc.calls)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.GPUFallbacks))

	want := referenceParity(t, e.Field(), fx.data, fx.block, exponents)
	for k, p := range fx.parity {
		assert.Equal(t, want[k], fx.read(t, p.Location.File, int(fx.block)), "parity %d", k)
	}
	for i, d := range fx.data {
		assert.Equal(t, crc32.ChecksumIEEE(d), enc.SourceCRC[i], "source %d", i)
	}
}

func TestGPUCorruptionIsCaught(t *testing.T) {
	fx := newFixture(t, 6, []int{0, 1, 2}, 8192, 23)
	acc := &corruptingAccelerator{VanillaPU: vanilla.NewVanillaPU(openTestField(t))}
	e := newEngine(t, gpuConfig(), gpuBudget, WithAccelerator(acc))

	_, err := e.Encode(context.Background(), fx.encodeJob())
	require.ErrorIs(t, err, ErrChecksumMismatch)
	assert.Equal(t, StatusFatal, StatusOf(err).Code)
	ok, err := afero.Exists(fx.fs, "parity_0")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestGPUWaitReportsProgressAndCancels(t *testing.T) {
	fx := newFixture(t, 6, []int{0, 1, 2}, 8192, 25)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	// Reports keep coming while the device holds the batch; the first one cancels.
	var reports int
	e := newEngine(t, gpuConfig(), gpuBudget, WithAccelerator(blockingAccelerator{}),
		WithProgress(func(float64) {
			reports++
			cancel()
		}))

	_, err := e.Encode(ctx, fx.encodeJob())
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, StatusCancelled, StatusOf(err).Code)
	assert.Positive(t, reports)
	ok, err := afero.Exists(fx.fs, "parity_0")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestGPUBelowThresholdStaysOnCPU(t *testing.T) {
	fx := newFixture(t, 6, []int{0, 1, 2}, 8192, 24)
	acc := &failingAccelerator{}
	cfg := gpuConfig()
	cfg.GPU.MinSources = 7
	e := newEngine(t, cfg, gpuBudget, WithAccelerator(acc))

	res, err := e.Encode(context.Background(), fx.encodeJob())
	require.NoError(t, err)
	assert.Equal(t, HoldAll, res.Strategy)
	assert.Zero(t, acc.calls)
}

func TestGPUSplitAdapts(t *testing.T) {
	g := &gpuSplit{align: 128, ratio: 0.25, smoothing: 0.5}
	assert.Equal(t, 768, g.cut(1024))

	// Nothing observed, nothing learned.
	g.adapt()
	assert.Equal(t, 0.25, g.ratio)

	// Device three times as fast as the pool.
	g.cpuBytes, g.cpuTime = 1000, time.Second
	g.gpuBytes, g.gpuTime = 3000, time.Second
	g.adapt()
	assert.InDelta(t, 0.5, g.ratio, 1e-9)

	// Device slower: share shrinks.
	g.cpuBytes, g.gpuBytes = 3000, 1000
	g.adapt()
	assert.InDelta(t, 0.375, g.ratio, 1e-9)

	g.cpuBytes, g.gpuBytes = 1, 1<<40
	for i := 0; i < 20; i++ {
		g.adapt()
	}
	assert.LessOrEqual(t, g.ratio, maxGPURatio)
	assert.Equal(t, 128, g.cut(1024))
}

func TestGPUMergeReportsError(t *testing.T) {
	f := openTestField(t)
	g := &gpuSplit{field: f, out: [][]byte{make([]byte, 8)}}
	dst := [][]byte{make([]byte, 8)}
	g.out[0][0] = 7

	require.NoError(t, g.merge(dst, 2, 6))
	assert.Equal(t, byte(7), dst[0][2])

	// An odd range splits a 16-bit element.
	require.ErrorIs(t, g.merge(dst, 2, 5), gf.ErrUnaligned)
}
