package gf

import (
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/klauspost/cpuid/v2"
	"golang.org/x/xerrors"
)

type Layout int

const (
	// Elements stored one after another, little endian for GF(2^16).
	LayoutNormal Layout = iota
	// 32 byte blocks: 16 low bytes followed by the 16 matching high bytes.
	LayoutSplit32
	// Blocks of 128 elements stored as one 16 byte plane per element bit.
	LayoutBitPlane
)

// Kernel is one implementation of the region multiply-accumulate. All kernels
// of a width produce identical bytes once their layout is restored.
type Kernel interface {
	Name() string
	// Unit is the byte granularity every region length must be a multiple of.
	Unit() int
	Layout() Layout
	// MulAdd accumulates factor*src into dst. factor is never 0 or 1.
	MulAdd(src, dst []byte, factor uint16)
	Prepare(buf []byte)
	Restore(buf []byte)
}

var ErrKernel = xerrors.New("unknown kernel")

var kernels = map[Width]map[string]func(*Field) Kernel{
	W8: {
		"table8":    newTable8,
		"split8":    newSplit8,
		"bitslice8": newBitslice,
	},
	W16: {
		"table16":    newTable16,
		"wide16":     newWide16,
		"split16":    newSplit16,
		"bitslice16": newBitslice,
	},
}

// NewKernel builds the named kernel for f. The width suffix may be omitted.
func NewKernel(f *Field, name string) (Kernel, error) {
	byName := kernels[f.width]
	if mk, ok := byName[name]; ok {
		return mk(f), nil
	}
	if !strings.HasSuffix(name, strconv.Itoa(int(f.width))) {
		if mk, ok := byName[name+strconv.Itoa(int(f.width))]; ok {
			return mk(f), nil
		}
	}
	return nil, xerrors.Errorf("%s: %w", name, ErrKernel)
}

// Kernels lists the kernel names available for w.
func Kernels(w Width) []string {
	names := make([]string, 0, len(kernels[w]))
	for name := range kernels[w] {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

var selected = map[Width]*struct {
	once sync.Once
	name string
}{
	W8:  {},
	W16: {},
}

// SelectKernel returns the kernel for the detected hardware. The decision is
// made once per process.
func SelectKernel(w Width) string {
	s, ok := selected[w]
	if !ok {
		return ""
	}
	s.once.Do(func() { s.name = detect(w) })
	return s.name
}

func detect(w Width) string {
	switch {
	case cpuid.CPU.Supports(cpuid.SSSE3) || cpuid.CPU.Supports(cpuid.AVX2):
		return "split" + strconv.Itoa(int(w))
	case w == W16 && strconv.IntSize == 64:
		return "wide16"
	default:
		return "table" + strconv.Itoa(int(w))
	}
}
