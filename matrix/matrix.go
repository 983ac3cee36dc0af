// Package matrix builds the encode and decode matrices of the code and inverts
// the decode matrix in place.
package matrix

import (
	"fmt"

	"golang.org/x/xerrors"

	"github.com/moratsam/rsparity/gf"
)

var ErrTooManySources = xerrors.New("too many source blocks for field")

// Matrix is a dense row-major matrix of field elements.
type Matrix struct {
	Rows int
	Cols int
	Data []uint16
}

func New(rows, cols int) *Matrix {
	return &Matrix{Rows: rows, Cols: cols, Data: make([]uint16, rows*cols)}
}

func (m *Matrix) Row(i int) []uint16 { return m.Data[i*m.Cols : (i+1)*m.Cols] }

func (m *Matrix) At(i, j int) uint16 { return m.Data[i*m.Cols+j] }

func (m *Matrix) Set(i, j int, v uint16) { m.Data[i*m.Cols+j] = v }

func (m *Matrix) Clone() *Matrix {
	c := New(m.Rows, m.Cols)
	copy(c.Data, m.Data)
	return c
}

func (m *Matrix) String() string {
	return fmt.Sprintf("matrix %dx%d", m.Rows, m.Cols)
}

// MaxSources is the largest source count the constants of w can serve.
func MaxSources(w gf.Width) int {
	if w == gf.W8 {
		return 255
	}
	return 32768
}

// Constants returns the base element of every source column. GF(2^8) uses j+1.
// GF(2^16) uses successive powers of the generator, skipping exponents divisible
// by 3, 5, 17 or 257 so every constant has full multiplicative order.
func Constants(f *gf.Field, n int) ([]uint16, error) {
	if n > MaxSources(f.Width()) {
		return nil, xerrors.Errorf("%d sources: %w", n, ErrTooManySources)
	}
	consts := make([]uint16, 0, n)
	if f.Width() == gf.W8 {
		for j := 0; j < n; j++ {
			consts = append(consts, uint16(j+1))
		}
		return consts, nil
	}
	for e := 0; len(consts) < n; e++ {
		if e%3 == 0 || e%5 == 0 || e%17 == 0 || e%257 == 0 {
			continue
		}
		consts = append(consts, f.Exp(e))
	}
	return consts, nil
}

// EncodeRows builds one row per exponent: entry[i][j] = consts[j]^exponents[i].
func EncodeRows(f *gf.Field, consts []uint16, exponents []int) *Matrix {
	m := New(len(exponents), len(consts))
	for i, e := range exponents {
		row := m.Row(i)
		for j, c := range consts {
			row[j] = f.Pow(c, e)
		}
	}
	return m
}

// BuildEncode builds the parityCount x len(consts) check matrix for the
// consecutive exponents starting at firstExponent.
func BuildEncode(f *gf.Field, consts []uint16, parityCount, firstExponent int) *Matrix {
	exponents := make([]int, parityCount)
	for i := range exponents {
		exponents[i] = firstExponent + i
	}
	return EncodeRows(f, consts, exponents)
}

// mulAddRow accumulates factor*src into dst.
func mulAddRow(f *gf.Field, dst, src []uint16, factor uint16) {
	for c, v := range src {
		if v != 0 {
			dst[c] ^= f.Mul(factor, v)
		}
	}
}
