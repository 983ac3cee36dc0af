//go:build opencl

package opencl

import (
	"context"
	"unsafe"

	"github.com/jgillich/go-opencl/cl"
	"github.com/moratsam/etherscan/pipeline"

	u "github.com/moratsam/rsparity/util"
)

type writer struct {
	devContext *cl.Context
	queue      *cl.CommandQueue
}

func newWriter(devContext *cl.Context, queue *cl.CommandQueue) *writer {
	return &writer{devContext, queue}
}

// This step in the processing pipeline copies the input and output rows from host onto the device.
func (w *writer) Process(_ context.Context, payload pipeline.Payload) (pipeline.Payload, error) {
	p := payload.(*segmentPayload)

	// Create output buffer. The kernel accumulates into it, so it is written too.
	clBufOut, err := w.devContext.CreateEmptyBuffer(cl.MemReadWrite, len(p.hostOut))
	if err != nil {
		return nil, u.WrapErr("create cl_buf_out", err)
	}
	p.clBufOut = clBufOut

	// Create input buffer.
	clBufIn, err := w.devContext.CreateEmptyBuffer(cl.MemReadOnly, len(p.hostIn))
	if err != nil {
		return nil, u.WrapErr("create cl_buf_in", err)
	}
	p.clBufIn = clBufIn

	// Write data to device.
	if _, err := w.queue.EnqueueWriteBuffer(clBufIn, true, 0, len(p.hostIn), unsafe.Pointer(&p.hostIn[0]), nil); err != nil {
		return nil, u.WrapErr("enqueue cl_buf_in", err)
	}
	if _, err := w.queue.EnqueueWriteBuffer(clBufOut, true, 0, len(p.hostOut), unsafe.Pointer(&p.hostOut[0]), nil); err != nil {
		return nil, u.WrapErr("enqueue cl_buf_out", err)
	}

	return p, nil
}
