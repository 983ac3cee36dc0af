// Package io describes the blocks a job works on and the random-access file
// operations the engine reads and writes them through.
package io

import "fmt"

type FileID int

type SourceState int

const (
	Present SourceState = iota
	Lost
	// Zero blocks are known to hold only zero bytes and are never read.
	Zero
)

func (s SourceState) String() string {
	switch s {
	case Present:
		return "present"
	case Lost:
		return "lost"
	case Zero:
		return "zero"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

type ParityState int

const (
	Available ParityState = iota
	Missing
)

// Location is a byte offset in a file.
type Location struct {
	File   FileID
	Offset int64
}

type SourceBlock struct {
	Index  int
	File   FileID
	Offset int64
	// Length may be shorter than the job block size for the tail of a file.
	// The remainder is treated as zero padding.
	Length int64
	State  SourceState
	CRC    uint32
	HasCRC bool
}

func (b SourceBlock) Location() Location { return Location{b.File, b.Offset} }

type ParityBlock struct {
	Exponent int
	State    ParityState
	Location Location
	// HashLocation, if set, receives the SHA-256 of the parity payload on encode.
	HashLocation *Location
}

// BlockIO is random access on byte ranges of open files.
type BlockIO interface {
	// ReadRange fills p from the file at off. A short read is an error.
	ReadRange(id FileID, off int64, p []byte) error
	WriteRange(id FileID, off int64, p []byte) error
}

// Discarder is implemented by stores that can remove outputs a job created
// when the job is cancelled or fails.
type Discarder interface {
	Discard(id FileID) error
}
