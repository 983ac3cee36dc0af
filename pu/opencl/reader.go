//go:build opencl

package opencl

import (
	"context"
	"unsafe"

	"github.com/jgillich/go-opencl/cl"
	"github.com/moratsam/etherscan/pipeline"

	u "github.com/moratsam/rsparity/util"
)

type reader struct {
	queue *cl.CommandQueue
}

func newReader(queue *cl.CommandQueue) *reader {
	return &reader{queue}
}

// This step in the processing pipeline copies the result buffer from the device to the host.
func (r *reader) Process(_ context.Context, payload pipeline.Payload) (pipeline.Payload, error) {
	p := payload.(*segmentPayload)

	// Read output from device onto the host.
	ptr := unsafe.Pointer(&p.hostOut[0])
	if _, err := r.queue.EnqueueReadBuffer(p.clBufOut, true, 0, len(p.hostOut), ptr, nil); err != nil {
		return nil, u.WrapErr("enqueue cl_buf_out", err)
	}

	return p, nil
}
