package sheets

import (
	"context"
	"errors"

	"pfm/internal/core"
)

// Header is the column layout shared by every tabular backend.
var Header = []string{"date", "description", "amount", "category"}

// ErrMalformed is wrapped by adapters when the backing data cannot be read
// as a transaction table.
var ErrMalformed = errors.New("malformed transaction table")

// Ports for outbound adapters.
type (
	// TransactionStore reads and writes the complete transaction list.
	// Save always overwrites the backing data in full; there is no append
	// mode and no locking between processes.
	TransactionStore interface {
		// Load returns every stored transaction in stored order. A missing
		// backing file, table or sheet yields an empty list.
		Load(ctx context.Context) ([]core.Transaction, error)
		// Save replaces the stored transactions with txs.
		Save(ctx context.Context, txs []core.Transaction) error
	}
)
