package matrix

import (
	"fmt"

	"github.com/moratsam/rsparity/gf"
)

// InsufficientParityError reports how many more parity blocks a repair needs.
type InsufficientParityError struct {
	Needed int
}

func (e *InsufficientParityError) Error() string {
	return fmt.Sprintf("insufficient parity: %d more block(s) needed", e.Needed)
}

// Row describes one parity block as seen by the decoder.
type Row struct {
	Exponent int
	Usable   bool
}

// Decode is the single-buffer decode matrix. Row k starts as the full encode
// row of parity Parity[k]; the columns listed in Lost form the square block
// that is inverted in place. Once inverted, lost source Lost[k] is
//
//	sum over present i of M[k][i]*source[i] + sum over r of M[k][Lost[r]]*parity[Parity[r]]
type Decode struct {
	Lost   []int
	Parity []int
	M      *Matrix
}

// Coefficient of present source i in the reconstruction of Lost[k].
func (d *Decode) SourceFactor(k, i int) uint16 { return d.M.At(k, i) }

// Coefficient of parity Parity[r] in the reconstruction of Lost[k].
func (d *Decode) ParityFactor(k, r int) uint16 { return d.M.At(k, d.Lost[r]) }

// BuildDecode assigns every lost source (present[i] == false) to a usable parity
// row, first fit in ascending order, and lays out the matrix to invert.
func BuildDecode(f *gf.Field, consts []uint16, present []bool, parity []Row) (*Decode, error) {
	var lost []int
	for i, ok := range present {
		if !ok {
			lost = append(lost, i)
		}
	}

	assigned := make([]int, 0, len(lost))
	for i, r := range parity {
		if len(assigned) == len(lost) {
			break
		}
		if r.Usable {
			assigned = append(assigned, i)
		}
	}
	if len(assigned) < len(lost) {
		return nil, &InsufficientParityError{Needed: len(lost) - len(assigned)}
	}

	exponents := make([]int, len(assigned))
	for k, p := range assigned {
		exponents[k] = parity[p].Exponent
	}
	return &Decode{
		Lost:   lost,
		Parity: assigned,
		M:      EncodeRows(f, consts, exponents),
	}, nil
}
