package matrix

import (
	"context"
	"fmt"

	"golang.org/x/xerrors"

	"github.com/moratsam/rsparity/gf"
	"github.com/moratsam/rsparity/pu/cpu"
)

type State int

const (
	Building State = iota
	Eliminating
	Done
	Singular
)

func (s State) String() string {
	switch s {
	case Building:
		return "building"
	case Eliminating:
		return "eliminating"
	case Done:
		return "done"
	case Singular:
		return "singular"
	}
	return "unknown"
}

// SingularError names the row whose pivot vanished and the parity block that
// produced it, so the caller can disable that parity and rebuild.
type SingularError struct {
	Row    int
	Column int
	Parity int
}

func (e *SingularError) Error() string {
	return fmt.Sprintf("singular matrix: row %d (parity %d) has no pivot in column %d", e.Row, e.Parity, e.Column)
}

type Option func(*Inverter)

// WithPool eliminates rows on the pool, one barrier per pivot.
func WithPool(p *cpu.Pool) Option {
	return func(inv *Inverter) { inv.pool = p }
}

// Inverter runs Gauss-Jordan elimination on a Decode in place.
type Inverter struct {
	f     *gf.Field
	d     *Decode
	pool  *cpu.Pool
	state State
	pivot int
}

func NewInverter(f *gf.Field, d *Decode, opts ...Option) *Inverter {
	inv := &Inverter{f: f, d: d, state: Building}
	for _, opt := range opts {
		opt(inv)
	}
	return inv
}

func (inv *Inverter) State() State { return inv.state }

// Pivot is the row being (or last) eliminated.
func (inv *Inverter) Pivot() int { return inv.pivot }

func (inv *Inverter) Invert(ctx context.Context) error {
	inv.state = Eliminating
	m := inv.d.M
	for i, col := range inv.d.Lost {
		if err := ctx.Err(); err != nil {
			return err
		}
		inv.pivot = i
		row := m.Row(i)
		factor := row[col]
		if factor == 0 {
			inv.state = Singular
			return &SingularError{Row: i, Column: col, Parity: inv.d.Parity[i]}
		}

		// Scale the pivot row so the pivot becomes 1. The pivot slot takes 1
		// first so that it ends up holding the inverse entry.
		if factor != 1 {
			row[col] = 1
			r := inv.f.Reciprocal(factor)
			for c, v := range row {
				row[c] = inv.f.Mul(v, r)
			}
		}

		if err := inv.eliminate(ctx, i, col); err != nil {
			return err
		}
	}
	inv.state = Done
	return nil
}

func (inv *Inverter) eliminateRow(j, i, col int) {
	m := inv.d.M
	rj := m.Row(j)
	factor := rj[col]
	if factor == 0 {
		return
	}
	rj[col] = 0
	mulAddRow(inv.f, rj, m.Row(i), factor)
}

func (inv *Inverter) eliminate(ctx context.Context, i, col int) error {
	rows := inv.d.M.Rows
	if inv.pool == nil || inv.pool.Workers() < 2 || rows < 2 {
		for j := 0; j < rows; j++ {
			if j != i {
				inv.eliminateRow(j, i, col)
			}
		}
		return nil
	}
	err := inv.pool.Run(ctx, cpu.Task{
		Units: rows,
		Do: func(_, j int) error {
			if j != i {
				inv.eliminateRow(j, i, col)
			}
			return nil
		},
	})
	if err != nil {
		return xerrors.Errorf("eliminate pivot %d: %w", i, err)
	}
	return nil
}

// Solution is an inverted decode matrix plus the parity rows that were
// disabled on the way because they made the matrix singular.
type Solution struct {
	*Decode
	Disabled []int
}

// Solve builds and inverts the decode matrix. A singular row disables its
// parity block and the matrix is rebuilt with the next spare; once no spare is
// left the result is an InsufficientParityError.
func Solve(ctx context.Context, f *gf.Field, consts []uint16, present []bool, parity []Row, opts ...Option) (*Solution, error) {
	rows := append([]Row(nil), parity...)
	var disabled []int
	for {
		d, err := BuildDecode(f, consts, present, rows)
		if err != nil {
			return nil, err
		}
		err = NewInverter(f, d, opts...).Invert(ctx)
		if err == nil {
			return &Solution{Decode: d, Disabled: disabled}, nil
		}
		var se *SingularError
		if !xerrors.As(err, &se) {
			return nil, err
		}
		rows[se.Parity].Usable = false
		disabled = append(disabled, se.Parity)
	}
}
