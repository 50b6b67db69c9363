package problem

import (
	"fmt"
	"slices"

	"gonum.org/v1/gonum/mat"
)

// Entry is one coordinate of a sparse matrix.
type Entry struct {
	Row, Col int
	Value    float64
}

// Sparse is a coordinate format matrix whose entries are kept in row-major order.
// Explicit zeros are preserved: the entry list is the structure of the matrix.
type Sparse struct {
	rows, cols int
	entries    []Entry
}

// NewSparse builds a rows×cols matrix from entries. Entries sharing a position are summed.
func NewSparse(rows, cols int, entries []Entry) *Sparse {
	if rows <= 0 || cols <= 0 {
		panic(mat.ErrZeroLength)
	}
	es := slices.Clone(entries)
	for _, e := range es {
		if e.Row < 0 || e.Row >= rows || e.Col < 0 || e.Col >= cols {
			panic(fmt.Sprintf("problem: entry (%d,%d) outside %d×%d", e.Row, e.Col, rows, cols))
		}
	}
	slices.SortStableFunc(es, func(a, b Entry) int {
		if a.Row != b.Row {
			return a.Row - b.Row
		}
		return a.Col - b.Col
	})
	out := es[:0]
	for _, e := range es {
		if k := len(out) - 1; k >= 0 && out[k].Row == e.Row && out[k].Col == e.Col {
			out[k].Value += e.Value
			continue
		}
		out = append(out, e)
	}
	return &Sparse{rows: rows, cols: cols, entries: out}
}

// Dims returns the number of rows and columns.
func (s *Sparse) Dims() (r, c int) { return s.rows, s.cols }

// NNZ returns the number of structural entries.
func (s *Sparse) NNZ() int { return len(s.entries) }

// Entries returns the structural entries in row-major order. The slice must not be modified.
func (s *Sparse) Entries() []Entry { return s.entries }

// At returns the value at (i, j), 0 for non-structural positions.
func (s *Sparse) At(i, j int) float64 {
	k, ok := slices.BinarySearchFunc(s.entries, Entry{Row: i, Col: j}, func(a, b Entry) int {
		if a.Row != b.Row {
			return a.Row - b.Row
		}
		return a.Col - b.Col
	})
	if !ok {
		return 0
	}
	return s.entries[k].Value
}

// Dense expands the matrix.
func (s *Sparse) Dense() *mat.Dense {
	d := mat.NewDense(s.rows, s.cols, nil)
	for _, e := range s.entries {
		d.Set(e.Row, e.Col, e.Value)
	}
	return d
}
