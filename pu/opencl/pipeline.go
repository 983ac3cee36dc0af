//go:build opencl

package opencl

import (
	"context"

	"github.com/jgillich/go-opencl/cl"
	"github.com/moratsam/etherscan/pipeline"

	"github.com/moratsam/rsparity/pu"
	u "github.com/moratsam/rsparity/util"
)

type pipelineConfig struct {
	devContext  *cl.Context
	kernel      *cl.Kernel
	queueKernel *cl.CommandQueue
	queueRead   *cl.CommandQueue
	queueWrite  *cl.CommandQueue
}

func assemblePipeline(cfg pipelineConfig) *pipeline.Pipeline {
	return pipeline.New(
		pipeline.DynamicWorkerPool(newWriter(cfg.devContext, cfg.queueWrite), 1),
		pipeline.FIFO(newKernelRunner(cfg.kernel, cfg.queueKernel)),
		pipeline.DynamicWorkerPool(newReader(cfg.queueRead), 1),
	)
}

// Source of the pipeline. It cuts the batch into segments of elements and
// loads every segment of every region into a payload.
type segmentSource struct {
	batch    *pu.Batch
	elemSize int
	words    int
	segment  int
	next     int
}

func (s *segmentSource) Error() error { return nil }

func (s *segmentSource) Next(_ context.Context) bool { return s.next < s.words }

func (s *segmentSource) Payload() pipeline.Payload {
	segment := s.segment
	if segment < localDim {
		segment = 1 << 20
	}
	n := min(segment, s.words-s.next)
	padded := u.RoundUp(n, localDim)
	es := s.elemSize

	p := payloadPool.Get().(*segmentPayload)
	p.offset = s.next
	p.nWords = n
	p.paddedNWords = padded
	p.globalWorkSize = append(p.globalWorkSize[:0], len(s.batch.Outputs), padded)
	p.localWorkSize = append(p.localWorkSize[:0], 1, localDim)

	// Rows are padded to a multiple of localDim, padding stays zero.
	p.hostIn = resize(p.hostIn, len(s.batch.Inputs)*padded*es)
	for i, in := range s.batch.Inputs {
		copy(p.hostIn[i*padded*es:], in[p.offset*es:(p.offset+n)*es])
	}
	p.hostOut = resize(p.hostOut, len(s.batch.Outputs)*padded*es)
	for i, out := range s.batch.Outputs {
		copy(p.hostOut[i*padded*es:], out[p.offset*es:(p.offset+n)*es])
	}

	s.next += n
	return p
}

// Sink of the pipeline. It copies every output row of the segment back into the batch.
type segmentSink struct {
	batch    *pu.Batch
	elemSize int
}

func (s *segmentSink) Consume(_ context.Context, payload pipeline.Payload) error {
	p := payload.(*segmentPayload)
	es := s.elemSize
	for i, out := range s.batch.Outputs {
		row := p.hostOut[i*p.paddedNWords*es:]
		copy(out[p.offset*es:(p.offset+p.nWords)*es], row[:p.nWords*es])
	}
	return nil
}
