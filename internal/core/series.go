package core

import (
	"encoding/json"
	"sort"
)

// Series is a month-indexed collection (keys 0-11). It replaces positional
// arrays so that sparse or short series can be spliced safely.
type Series[T any] map[int]T

// Months returns the populated month indexes in ascending order.
func (s Series[T]) Months() []int {
	months := make([]int, 0, len(s))
	for m := range s {
		months = append(months, m)
	}
	sort.Ints(months)
	return months
}

// Values returns the entries ordered by month.
func (s Series[T]) Values() []T {
	out := make([]T, 0, len(s))
	for _, m := range s.Months() {
		out = append(out, s[m])
	}
	return out
}

// MarshalJSON encodes the series as an array ordered by month.
func (s Series[T]) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Values())
}
