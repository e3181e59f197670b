// Package matrix provides a dense row-major matrix sized for small
// feed-forward weight layers.
package matrix

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidDimension = errors.New("invalid matrix dimensions")
	ErrIndexOutOfRange  = errors.New("matrix index out of range")
)

type Dimensions struct {
	Rows    int `json:"rows"`
	Columns int `json:"columns"`
}

func (d Dimensions) Size() int {
	return d.Rows * d.Columns
}

func (d Dimensions) String() string {
	return fmt.Sprintf("%dx%d", d.Rows, d.Columns)
}

// Matrix holds rows*columns values in row-major order. The buffer length is
// fixed at construction.
type Matrix struct {
	dims Dimensions
	data []float64
}

// New copies data into a matrix of the given shape.
func New(rows, columns int, data []float64) (Matrix, error) {
	if rows < 0 || columns < 0 {
		return Matrix{}, fmt.Errorf("%w: negative shape %dx%d", ErrInvalidDimension, rows, columns)
	}
	if len(data) != rows*columns {
		return Matrix{}, fmt.Errorf("%w: %dx%d needs %d values, got %d", ErrInvalidDimension, rows, columns, rows*columns, len(data))
	}
	return Matrix{
		dims: Dimensions{Rows: rows, Columns: columns},
		data: append([]float64(nil), data...),
	}, nil
}

func Zeros(rows, columns int) (Matrix, error) {
	if rows < 0 || columns < 0 {
		return Matrix{}, fmt.Errorf("%w: negative shape %dx%d", ErrInvalidDimension, rows, columns)
	}
	return Matrix{
		dims: Dimensions{Rows: rows, Columns: columns},
		data: make([]float64, rows*columns),
	}, nil
}

// Row builds a 1xN matrix.
func Row(values ...float64) Matrix {
	return Matrix{
		dims: Dimensions{Rows: 1, Columns: len(values)},
		data: append([]float64(nil), values...),
	}
}

func (m Matrix) Dimensions() Dimensions {
	return m.dims
}

func (m Matrix) Len() int {
	return len(m.data)
}

func (m Matrix) At(row, column int) (float64, error) {
	idx, err := m.index(row, column)
	if err != nil {
		return 0, err
	}
	return m.data[idx], nil
}

func (m Matrix) Set(row, column int, value float64) error {
	idx, err := m.index(row, column)
	if err != nil {
		return err
	}
	m.data[idx] = value
	return nil
}

// Values returns a copy of the row-major buffer.
func (m Matrix) Values() []float64 {
	return append([]float64(nil), m.data...)
}

func (m Matrix) Clone() Matrix {
	return Matrix{dims: m.dims, data: append([]float64(nil), m.data...)}
}

// Update rewrites every value in place, visiting them in row-major order.
func (m Matrix) Update(fn func(idx int, value float64) float64) {
	for i, v := range m.data {
		m.data[i] = fn(i, v)
	}
}

// Multiply returns a x b. The inner dimensions must agree.
func Multiply(a, b Matrix) (Matrix, error) {
	if a.dims.Columns != b.dims.Rows {
		return Matrix{}, fmt.Errorf("%w: cannot multiply %s by %s", ErrInvalidDimension, a.dims, b.dims)
	}
	rows, columns, inner := a.dims.Rows, b.dims.Columns, a.dims.Columns
	out := make([]float64, rows*columns)
	for r := 0; r < rows; r++ {
		for c := 0; c < columns; c++ {
			sum := 0.0
			for k := 0; k < inner; k++ {
				sum += a.data[r*inner+k] * b.data[k*columns+c]
			}
			out[r*columns+c] = sum
		}
	}
	return Matrix{dims: Dimensions{Rows: rows, Columns: columns}, data: out}, nil
}

func (m Matrix) index(row, column int) (int, error) {
	if row < 0 || row >= m.dims.Rows || column < 0 || column >= m.dims.Columns {
		return 0, fmt.Errorf("%w: (%d,%d) in %s", ErrIndexOutOfRange, row, column, m.dims)
	}
	return row*m.dims.Columns + column, nil
}
