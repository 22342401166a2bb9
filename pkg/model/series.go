package model

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrNoFields           = errors.New("series has no fields")
	ErrShapeMismatch      = errors.New("series shape mismatch")
	ErrDuplicateTimestamp = errors.New("duplicate timestamp in series")
	ErrUnorderedIndex     = errors.New("series index is not increasing")
	ErrUnknownField       = errors.New("unknown field")
)

// Series is an ordered table of numeric observations indexed by time.
// Values is row-major: Values[i][f] is field f at Timestamps[i].
type Series struct {
	Name       string      `json:"name"`
	Fields     []string    `json:"fields"`
	Timestamps []time.Time `json:"timestamps"`
	Values     [][]float64 `json:"values"`
}

// Len returns the number of observations
func (s *Series) Len() int {
	return len(s.Values)
}

// Validate checks the shape and the strictly increasing index
func (s *Series) Validate() error {
	if len(s.Fields) == 0 {
		return ErrNoFields
	}
	if len(s.Timestamps) != len(s.Values) {
		return fmt.Errorf("%w: %d timestamps for %d rows", ErrShapeMismatch, len(s.Timestamps), len(s.Values))
	}
	for i, row := range s.Values {
		if len(row) != len(s.Fields) {
			return fmt.Errorf("%w: row %d has %d values, want %d", ErrShapeMismatch, i, len(row), len(s.Fields))
		}
		if i == 0 {
			continue
		}
		prev, cur := s.Timestamps[i-1], s.Timestamps[i]
		if cur.Equal(prev) {
			return fmt.Errorf("%w: %s at row %d", ErrDuplicateTimestamp, cur.Format(time.RFC3339), i)
		}
		if cur.Before(prev) {
			return fmt.Errorf("%w: row %d (%s) precedes row %d", ErrUnorderedIndex, i, cur.Format(time.RFC3339), i-1)
		}
	}
	return nil
}

// FieldIndex returns the column index of a field
func (s *Series) FieldIndex(name string) (int, error) {
	for i, f := range s.Fields {
		if f == name {
			return i, nil
		}
	}
	return -1, fmt.Errorf("%w: %q", ErrUnknownField, name)
}

// FieldIndices resolves several field names at once
func (s *Series) FieldIndices(names []string) ([]int, error) {
	idx := make([]int, len(names))
	for i, name := range names {
		j, err := s.FieldIndex(name)
		if err != nil {
			return nil, err
		}
		idx[i] = j
	}
	return idx, nil
}

// Column copies a single field out of the series
func (s *Series) Column(name string) ([]float64, error) {
	j, err := s.FieldIndex(name)
	if err != nil {
		return nil, err
	}
	col := make([]float64, len(s.Values))
	for i, row := range s.Values {
		col[i] = row[j]
	}
	return col, nil
}

// Slice returns the observations in [from, to) sharing the underlying rows
func (s *Series) Slice(from, to int) *Series {
	return &Series{
		Name:       s.Name,
		Fields:     s.Fields,
		Timestamps: s.Timestamps[from:to],
		Values:     s.Values[from:to],
	}
}

// WithValues returns a copy of the series header over different values,
// e.g. the normalized table
func (s *Series) WithValues(values [][]float64) *Series {
	return &Series{
		Name:       s.Name,
		Fields:     s.Fields,
		Timestamps: s.Timestamps,
		Values:     values,
	}
}
