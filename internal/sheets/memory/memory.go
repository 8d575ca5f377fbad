package memory

import (
	"context"
	"sync"

	"pfm/internal/core"
	ports "pfm/internal/sheets"
)

// Store keeps the transaction list in process memory.
type Store struct {
	mu    sync.Mutex
	items []core.Transaction
	saves int
}

var _ ports.TransactionStore = (*Store)(nil)

func New(seed ...core.Transaction) *Store {
	return &Store{items: append([]core.Transaction(nil), seed...)}
}

// Load returns a copy of the stored transactions.
func (s *Store) Load(_ context.Context) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Transaction{}, s.items...), nil
}

// Save replaces the stored transactions with a copy of txs.
func (s *Store) Save(_ context.Context, txs []core.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = append([]core.Transaction(nil), txs...)
	s.saves++
	return nil
}

// Saves reports how many times Save has been called.
func (s *Store) Saves() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}
