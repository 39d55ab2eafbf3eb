// Package payout holds the symmetric city-to-city payout matrix and the
// build-time compiler that produces it from name-keyed source data.
package payout

import (
	"encoding/json"
	"fmt"
	"os"
)

// Matrix is a square payout table indexed by (cityID-1, cityID-1).
//
// Invariant (checked by Validate, never assumed by Payout): the diagonal is
// zero and the matrix is symmetric.
type Matrix struct {
	rows [][]int
}

// NewMatrix wraps rows without copying or validating them.
func NewMatrix(rows [][]int) *Matrix {
	return &Matrix{rows: rows}
}

// Size returns the number of rows.
func (m *Matrix) Size() int {
	if m == nil {
		return 0
	}
	return len(m.rows)
}

// Payout returns the payout between two city ids.
//
// Postcondition: Returns (value, true) for valid ids; returns (0, false) when
// either id is zero or negative, out of range, or its row is missing. Never panics.
func (m *Matrix) Payout(a, b int) (int, bool) {
	if m == nil || a <= 0 || b <= 0 {
		return 0, false
	}
	i, j := a-1, b-1
	if i >= len(m.rows) || m.rows[i] == nil || j >= len(m.rows[i]) {
		return 0, false
	}
	return m.rows[i][j], true
}

// Validate checks that the matrix is square with a zero diagonal and
// symmetric entries.
//
// Postcondition: Returns nil when every invariant holds, or an error naming the first violation.
func (m *Matrix) Validate() error {
	n := m.Size()
	for i, row := range m.rows {
		if len(row) != n {
			return fmt.Errorf("row %d has %d columns, want %d", i, len(row), n)
		}
	}
	for i := 0; i < n; i++ {
		if m.rows[i][i] != 0 {
			return fmt.Errorf("diagonal must be 0 at %d, got %d", i, m.rows[i][i])
		}
		for j := i + 1; j < n; j++ {
			if m.rows[i][j] != m.rows[j][i] {
				return fmt.Errorf("asymmetric entry at (%d,%d): %d != %d", i, j, m.rows[i][j], m.rows[j][i])
			}
		}
	}
	return nil
}

// Compiled is the runtime form of a payout table: city names in id order and
// the id-indexed matrix.
type Compiled struct {
	Cities []string `json:"cities"`
	Matrix [][]int  `json:"matrix"`
}

// Table returns the compiled rows as a Matrix.
func (c Compiled) Table() *Matrix {
	return NewMatrix(c.Matrix)
}

// LoadCompiled reads and validates a compiled payout file.
//
// Precondition: path must name a JSON file written by WriteCompiled.
// Postcondition: Returns a validated Compiled whose matrix dimension equals
// len(Cities), or a non-nil error.
func LoadCompiled(path string) (Compiled, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Compiled{}, fmt.Errorf("reading payout file %s: %w", path, err)
	}
	var c Compiled
	if err := json.Unmarshal(data, &c); err != nil {
		return Compiled{}, fmt.Errorf("parsing payout file %s: %w", path, err)
	}
	if len(c.Matrix) != len(c.Cities) {
		return Compiled{}, fmt.Errorf("payout file %s: %d cities but %d matrix rows", path, len(c.Cities), len(c.Matrix))
	}
	if err := c.Table().Validate(); err != nil {
		return Compiled{}, fmt.Errorf("payout file %s: %w", path, err)
	}
	return c, nil
}

// WriteCompiled writes c to path as JSON.
func WriteCompiled(path string, c Compiled) error {
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("encoding payout table: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing payout file %s: %w", path, err)
	}
	return nil
}
