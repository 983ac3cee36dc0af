//go:build opencl

package opencl

import (
	"sync"

	"github.com/jgillich/go-opencl/cl"
	"github.com/moratsam/etherscan/pipeline"
)

var payloadPool = sync.Pool{New: func() interface{} { return new(segmentPayload) }}

type segmentPayload struct {
	offset         int           // First element of the segment in every region.
	nWords         int           // Number of elements in the segment.
	paddedNWords   int           // nWords + padding, so that it suits the work group size.
	globalWorkSize []int         // GPU global work size.
	localWorkSize  []int         // GPU local work size.
	hostIn         []byte        // Host input rows (copied to the GPU).
	hostOut        []byte        // Host output rows (copied to the GPU, accumulated, copied back).
	clBufIn        *cl.MemObject // Device input rows (GPU reads from here).
	clBufOut       *cl.MemObject // Device output rows (GPU accumulates here).
}

// Doesn't really clone, cloning isn't needed.
func (p *segmentPayload) Clone() pipeline.Payload {
	return payloadPool.Get().(*segmentPayload)
}

func (p *segmentPayload) MarkAsProcessed() {
	// Clear up resources before putting the payload struct back in the pool.
	p.globalWorkSize = p.globalWorkSize[:0]
	p.localWorkSize = p.localWorkSize[:0]
	p.hostIn = p.hostIn[:0]
	p.hostOut = p.hostOut[:0]
	if p.clBufIn != nil {
		p.clBufIn.Release()
		p.clBufIn = nil
	}
	if p.clBufOut != nil {
		p.clBufOut.Release()
		p.clBufOut = nil
	}
	payloadPool.Put(p)
}

func resize(buf []byte, n int) []byte {
	if cap(buf) < n {
		return make([]byte, n)
	}
	buf = buf[:n]
	clear(buf)
	return buf
}
