// Package gf implements arithmetic over GF(2^8) and GF(2^16) together with the
// region multiply-accumulate kernels used by the block pipeline.
package gf

import (
	"crypto/subtle"
	"sync"

	"golang.org/x/xerrors"

	u "github.com/moratsam/rsparity/util"
)

type Width int

const (
	W8  Width = 8
	W16 Width = 16
)

var (
	ErrWidth       = xerrors.New("unsupported field width")
	ErrOutOfMemory = xerrors.New("out of memory")
	ErrUnaligned   = xerrors.New("region not aligned to kernel unit")
	ErrElement     = xerrors.New("element out of field range")
)

func (w Width) poly() int {
	if w == W8 {
		return 0x11d
	}
	return 0x1100b
}

func (w Width) valid() bool { return w == W8 || w == W16 }

// Log and exponent tables of one width. exp is doubled in length so that
// log(a)+log(b) never needs a modulo.
type tables struct {
	log  []uint16
	exp  []uint16
	refs int
}

var registry = struct {
	sync.Mutex
	m map[Width]*tables
}{m: make(map[Width]*tables)}

func acquire(w Width) (*tables, error) {
	registry.Lock()
	defer registry.Unlock()
	if t, ok := registry.m[w]; ok {
		t.refs++
		return t, nil
	}
	t, err := buildTables(w)
	if err != nil {
		return nil, err
	}
	t.refs = 1
	registry.m[w] = t
	return t, nil
}

func release(w Width) {
	registry.Lock()
	defer registry.Unlock()
	t, ok := registry.m[w]
	if !ok {
		return
	}
	if t.refs--; t.refs == 0 {
		delete(registry.m, w)
	}
}

func buildTables(w Width) (t *tables, err error) {
	defer func() {
		if r := recover(); r != nil {
			t, err = nil, ErrOutOfMemory
		}
	}()
	order := 1 << uint(w)
	max := order - 1
	t = &tables{
		log: make([]uint16, order),
		exp: make([]uint16, 2*order),
	}

	// Use generator 2 to fill log and exp tables.
	x := 1
	for i := 0; i < max; i++ {
		t.exp[i] = uint16(x)
		t.log[x] = uint16(i)
		x <<= 1
		if x&order != 0 {
			x ^= w.poly()
		}
	}
	for i := max; i < len(t.exp); i++ {
		t.exp[i] = t.exp[i-max]
	}
	t.log[0] = uint16(max)
	return t, nil
}

type options struct {
	kernel string
}

type Option func(*options)

// WithKernel forces a kernel by name instead of the detected one.
func WithKernel(name string) Option {
	return func(o *options) { o.kernel = name }
}

// Field is a handle on the shared tables of one width plus the kernel chosen for
// region operations. It is safe for concurrent use.
type Field struct {
	width  Width
	max    uint16
	log    []uint16
	exp    []uint16
	kernel Kernel
	once   sync.Once
}

func Open(w Width, opts ...Option) (*Field, error) {
	if !w.valid() {
		return nil, ErrWidth
	}
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	t, err := acquire(w)
	if err != nil {
		return nil, u.WrapErr("build tables", err)
	}
	f := &Field{
		width: w,
		max:   uint16(1<<uint(w) - 1),
		log:   t.log,
		exp:   t.exp,
	}
	name := o.kernel
	if name == "" || name == "auto" {
		name = SelectKernel(w)
	}
	if f.kernel, err = NewKernel(f, name); err != nil {
		release(w)
		return nil, u.WrapErr("new kernel", err)
	}
	return f, nil
}

// Close drops the reference on the shared tables. The field must not be used afterwards.
func (f *Field) Close() {
	f.once.Do(func() { release(f.width) })
}

func (f *Field) Width() Width { return f.width }

// Order is the number of field elements.
func (f *Field) Order() int { return int(f.max) + 1 }

// DivError is the value Div and Reciprocal return for a zero divisor.
func (f *Field) DivError() uint16 { return f.max }

func (f *Field) Kernel() Kernel { return f.kernel }

// Tables exposes the log and exp tables. Callers must not modify them.
func (f *Field) Tables() (log, exp []uint16) { return f.log, f.exp }

func (f *Field) Mul(a, b uint16) uint16 {
	if a == 0 || b == 0 {
		return 0
	}
	return f.exp[int(f.log[a])+int(f.log[b])]
}

func (f *Field) Div(a, b uint16) uint16 {
	if b == 0 {
		return f.max
	}
	if a == 0 {
		return 0
	}
	return f.exp[int(f.log[a])+int(f.max)-int(f.log[b])]
}

func (f *Field) Reciprocal(a uint16) uint16 {
	if a == 0 {
		return f.max
	}
	return f.exp[int(f.max)-int(f.log[a])]
}

func (f *Field) Pow(a uint16, n int) uint16 {
	if n == 0 {
		return 1
	}
	if a == 0 {
		return 0
	}
	m := int64(f.max)
	e := int64(n) % m
	if e < 0 {
		e += m
	}
	return f.exp[int64(f.log[a])*e%m]
}

// Exp returns the generator raised to n.
func (f *Field) Exp(n int) uint16 {
	return f.Pow(2, n)
}

// MulAdd accumulates factor*src into dst. Both regions must have the same
// length, a multiple of the kernel unit, and be in the kernel layout.
func (f *Field) MulAdd(src, dst []byte, factor uint16) error {
	if len(src) != len(dst) || len(src)%f.kernel.Unit() != 0 {
		return ErrUnaligned
	}
	if factor > f.max {
		return ErrElement
	}
	switch factor {
	case 0:
	case 1:
		subtle.XORBytes(dst, dst, src)
	default:
		f.kernel.MulAdd(src, dst, factor)
	}
	return nil
}

// Prepare converts buf from element order to the kernel layout in place.
func (f *Field) Prepare(buf []byte) { f.kernel.Prepare(buf) }

// Restore is the inverse of Prepare.
func (f *Field) Restore(buf []byte) { f.kernel.Restore(buf) }
