//go:build opencl

// Package opencl runs the GPU share of a stripe on the first OpenCL device.
package opencl

import (
	"context"
	_ "embed"
	"fmt"
	"sync"
	"unsafe"

	"github.com/jgillich/go-opencl/cl"
	"github.com/sirupsen/logrus"
	"golang.org/x/xerrors"

	"github.com/moratsam/rsparity/gf"
	"github.com/moratsam/rsparity/pu"
	u "github.com/moratsam/rsparity/util"
)

//go:embed muladd.cl
var muladdSource string

const localDim = 32

type OpenCLPU struct {
	f       *gf.Field
	log     logrus.FieldLogger
	segment int // Elements per pipeline payload.

	device      *cl.Device
	context     *cl.Context
	queueKernel *cl.CommandQueue // Queue over which kernel commands are sent.
	queueRead   *cl.CommandQueue // Queue over which read commands are sent.
	queueWrite  *cl.CommandQueue // Queue over which write commands are sent.
	bufExpTable *cl.MemObject
	bufLogTable *cl.MemObject

	mu       sync.Mutex
	programs map[int]*cl.Program
	kernels  map[int]*cl.Kernel // By input count.
}

// New opens the first device of the first platform and uploads the field tables.
func New(f *gf.Field, segment int, log logrus.FieldLogger) (pu.Accelerator, error) {
	// Get platforms.
	platforms, err := cl.GetPlatforms()
	if err != nil {
		return nil, u.WrapErr("get platforms", err)
	}
	if len(platforms) == 0 {
		return nil, u.WrapErr("get platforms", pu.ErrUnavailable)
	}

	// Get devices.
	devices, err := platforms[0].GetDevices(cl.DeviceTypeAll)
	if err != nil {
		return nil, u.WrapErr("get devices", err)
	}
	if len(devices) == 0 {
		return nil, u.WrapErr("get devices", xerrors.Errorf("0 devices: %w", pu.ErrUnavailable))
	}
	device := devices[0]
	log.WithFields(logrus.Fields{
		"platform":       platforms[0].Name(),
		"device":         device.Name(),
		"type":           device.Type().String(),
		"opencl_c":       device.OpenCLCVersion(),
		"global_mem":     device.GlobalMemSize(),
		"compute_units":  device.MaxComputeUnits(),
		"max_work_group": device.MaxWorkGroupSize(),
	}).Info("using opencl device")

	// Create device context & command queues.
	devContext, err := cl.CreateContext([]*cl.Device{device})
	if err != nil {
		return nil, u.WrapErr("create context", err)
	}
	c := &OpenCLPU{
		f:        f,
		log:      log,
		segment:  segment,
		device:   device,
		context:  devContext,
		programs: make(map[int]*cl.Program),
		kernels:  make(map[int]*cl.Kernel),
	}
	for _, q := range []struct {
		name string
		dst  **cl.CommandQueue
	}{{"kernel", &c.queueKernel}, {"read", &c.queueRead}, {"write", &c.queueWrite}} {
		queue, err := devContext.CreateCommandQueue(device, 0)
		if err != nil {
			c.Close()
			return nil, u.WrapErr("create "+q.name+" command queue", err)
		}
		*q.dst = queue
	}

	// Enqueue the exp and log tables once, every kernel reads them.
	logTable, expTable := f.Tables()
	if c.bufExpTable, err = c.enqueue(unsafe.Pointer(&expTable[0]), 2*len(expTable), cl.MemReadOnly); err != nil {
		c.Close()
		return nil, u.WrapErr("enqueue exp_table", err)
	}
	if c.bufLogTable, err = c.enqueue(unsafe.Pointer(&logTable[0]), 2*len(logTable), cl.MemReadOnly); err != nil {
		c.Close()
		return nil, u.WrapErr("enqueue log_table", err)
	}
	return c, nil
}

func (c *OpenCLPU) Name() string { return "opencl:" + c.device.Name() }

func (c *OpenCLPU) elemSize() int { return int(c.f.Width()) / 8 }

func (c *OpenCLPU) kernel(nIn int) (*cl.Kernel, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if k, ok := c.kernels[nIn]; ok {
		return k, nil
	}

	program, err := c.context.CreateProgramWithSource([]string{muladdSource})
	if err != nil {
		return nil, u.WrapErr("create program", err)
	}
	options := fmt.Sprintf("-DWIDTH=%d -DSIZE_IN=%d", c.f.Width(), nIn)
	if err := program.BuildProgram(nil, options); err != nil {
		program.Release()
		return nil, u.WrapErr("build program", err)
	}
	kernel, err := program.CreateKernel("muladd")
	if err != nil {
		program.Release()
		return nil, u.WrapErr("create kernel", err)
	}
	if err := kernel.SetArg(0, c.bufExpTable); err != nil {
		return nil, u.WrapErr("set arg exp_table", err)
	}
	if err := kernel.SetArg(1, c.bufLogTable); err != nil {
		return nil, u.WrapErr("set arg log_table", err)
	}
	c.programs[nIn] = program
	c.kernels[nIn] = kernel
	return kernel, nil
}

// MulAdd streams the batch through the device in segments of c.segment
// elements: writer -> kernel runner -> reader.
func (c *OpenCLPU) MulAdd(ctx context.Context, b *pu.Batch) error {
	if b.Len() == 0 || len(b.Outputs) == 0 {
		return nil
	}
	kernel, err := c.kernel(len(b.Inputs))
	if err != nil {
		return err
	}

	// Flatten the factors by appending rows.
	flat := make([]uint16, 0, len(b.Outputs)*len(b.Inputs))
	for _, row := range b.Factors {
		flat = append(flat, row...)
	}
	bufFactors, err := c.enqueue(unsafe.Pointer(&flat[0]), 2*len(flat), cl.MemReadOnly)
	if err != nil {
		return u.WrapErr("enqueue factors", err)
	}
	defer bufFactors.Release()

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := kernel.SetArg(2, bufFactors); err != nil {
		return u.WrapErr("set arg factors", err)
	}

	pip := assemblePipeline(pipelineConfig{
		devContext:  c.context,
		kernel:      kernel,
		queueKernel: c.queueKernel,
		queueRead:   c.queueRead,
		queueWrite:  c.queueWrite,
	})
	words := b.Len() / c.elemSize()
	source := &segmentSource{batch: b, elemSize: c.elemSize(), words: words, segment: c.segment}
	sink := &segmentSink{batch: b, elemSize: c.elemSize()}
	if err := pip.Process(ctx, source, sink); err != nil {
		return u.WrapErr("muladd process", err)
	}
	return nil
}

func (c *OpenCLPU) enqueue(ptr unsafe.Pointer, size int, flags cl.MemFlag) (*cl.MemObject, error) {
	buffer, err := c.context.CreateEmptyBuffer(flags, size)
	if err != nil {
		return nil, u.WrapErr("create buffer", err)
	}
	if _, err = c.queueWrite.EnqueueWriteBuffer(buffer, true, 0, size, ptr, nil); err != nil {
		buffer.Release()
		return nil, u.WrapErr("enqueue buffer", err)
	}
	return buffer, nil
}

func (c *OpenCLPU) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for n, k := range c.kernels {
		k.Release()
		c.programs[n].Release()
	}
	c.kernels, c.programs = nil, nil
	for _, buf := range []*cl.MemObject{c.bufExpTable, c.bufLogTable} {
		if buf != nil {
			buf.Release()
		}
	}
	for _, q := range []*cl.CommandQueue{c.queueKernel, c.queueRead, c.queueWrite} {
		if q != nil {
			q.Release()
		}
	}
	if c.context != nil {
		c.context.Release()
	}
	return nil
}
