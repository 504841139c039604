// Package memory is an in-process TransactionExporter for development and
// tests.
package memory

import (
	"context"
	"fmt"
	"sync"

	"cifra/internal/core"
	ports "cifra/internal/sheets"
)

type period struct{ year, month int }

type Store struct {
	mu    sync.Mutex
	rows  map[period][]core.Transaction
	calls int
}

var _ ports.TransactionExporter = (*Store)(nil)

func New() *Store {
	return &Store{rows: make(map[period][]core.Transaction)}
}

// ExportTransactions stores the transactions and returns a synthetic row
// range reference.
func (s *Store) ExportTransactions(ctx context.Context, year, month int, txs []core.Transaction) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if !core.ValidMonth(month) {
		return "", fmt.Errorf("invalid month: %d", month)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	p := period{year, month}
	first := len(s.rows[p]) + 1
	s.rows[p] = append(s.rows[p], txs...)
	return fmt.Sprintf("mem:%d-%02d:%d-%d", year, month+1, first, len(s.rows[p])), nil
}

// Exported returns a copy of the transactions exported for a month.
func (s *Store) Exported(year, month int) []core.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Transaction(nil), s.rows[period{year, month}]...)
}

// Calls returns the number of successful exports.
func (s *Store) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}
