package codec

import (
	"hash"

	"github.com/minio/sha256-simd"
	"golang.org/x/xerrors"

	"github.com/moratsam/rsparity/checksum"
	"github.com/moratsam/rsparity/gf"
	rsio "github.com/moratsam/rsparity/io"
	"github.com/moratsam/rsparity/matrix"
)

// EncodeJob computes Parity from Sources. The position of a source in Sources
// is its column in the encode matrix.
type EncodeJob struct {
	IO        rsio.BlockIO
	BlockSize int64
	Sources   []rsio.SourceBlock
	Parity    []rsio.ParityBlock
}

type EncodeResult struct {
	Strategy Strategy
	// SHA-256 and CRC-32 of every parity payload, in job order.
	ParityHash [][sha256.Size]byte
	ParityCRC  []uint32
	// CRC-32 of every source over its Length bytes.
	SourceCRC []uint32
}

// DecodeJob rebuilds the Sources in state Lost from the rest and the
// Available parity.
type DecodeJob struct {
	IO        rsio.BlockIO
	BlockSize int64
	Sources   []rsio.SourceBlock
	Parity    []rsio.ParityBlock
}

type DecodeResult struct {
	Strategy Strategy
	// Recovered lists the rebuilt source positions, UsedParity the parity
	// positions that rebuilt them, pairwise.
	Recovered  []int
	UsedParity []int
	// Disabled lists parity that made the decode matrix singular.
	Disabled []int
}

type input struct {
	loc    rsio.Location
	length int64
	// crc, if set, accumulates the CRC-32 of the bytes read.
	crc *uint32
}

type target struct {
	loc    rsio.Location
	length int64
	hash   hash.Hash
	crc    uint32
}

// work is one job as the stripe loop sees it.
type work struct {
	op       string
	io       rsio.BlockIO
	plan     *plan
	inputs   []input
	targets  []target
	factors  [][]uint16 // [target][input]
	crcs     []uint32   // backing store of input crc pointers
	progress *progress
	gpu      *gpuSplit
	gpuBytes int64
}

func validateBlocks(w gf.Width, bio rsio.BlockIO, blockSize int64, sources []rsio.SourceBlock) error {
	switch {
	case bio == nil:
		return xerrors.Errorf("no block io: %w", ErrInvalidJob)
	case blockSize <= 0:
		return xerrors.Errorf("block size %d: %w", blockSize, ErrInvalidJob)
	case blockSize%int64(w/8) != 0:
		// A split element would leave half of it unwritten in every parity block.
		return xerrors.Errorf("block size %d not a multiple of %d byte elements: %w", blockSize, w/8, ErrInvalidJob)
	case len(sources) == 0:
		return xerrors.Errorf("no sources: %w", ErrInvalidJob)
	case len(sources) > matrix.MaxSources(w):
		return xerrors.Errorf("%d sources: %w", len(sources), matrix.ErrTooManySources)
	}
	for i, s := range sources {
		if s.Length < 0 || s.Length > blockSize {
			return xerrors.Errorf("source %d length %d: %w", i, s.Length, ErrInvalidJob)
		}
	}
	return nil
}

func (j *EncodeJob) validate(w gf.Width) error {
	if err := validateBlocks(w, j.IO, j.BlockSize, j.Sources); err != nil {
		return err
	}
	for i, s := range j.Sources {
		if s.State == rsio.Lost {
			return xerrors.Errorf("source %d is lost: %w", i, ErrInvalidJob)
		}
	}
	return nil
}

func (j *DecodeJob) validate(w gf.Width) error {
	return validateBlocks(w, j.IO, j.BlockSize, j.Sources)
}

// zeroCRC is the CRC-32 of n zero bytes.
func zeroCRC(n int64) uint32 {
	var zeros [4096]byte
	var crc uint32
	for n > 0 {
		k := min(n, int64(len(zeros)))
		crc = checksum.Update(crc, zeros[:k])
		n -= k
	}
	return crc
}
