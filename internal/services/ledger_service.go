package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"pfm/internal/core"
	pfmlog "pfm/internal/log"
	ports "pfm/internal/sheets"
	"pfm/internal/sheets/xlsx"
)

// ErrInvalidInput marks user input that cannot become a Transaction.
var ErrInvalidInput = errors.New("invalid input")

// Advisor returns free-text advice for a budget summary.
type Advisor interface {
	GetAdvice(ctx context.Context, summary string) (string, error)
}

// Publisher announces that the data set changed. count is its new size.
type Publisher interface {
	PublishTransactionAdded(ctx context.Context, count int) error
}

// AddInput is a transaction as typed by the user.
type AddInput struct {
	Date        string
	Description string
	Amount      string
	Category    string
}

// LedgerService opens sessions over a TransactionStore and serializes the
// load-modify-save cycle of appends within this process.
type LedgerService struct {
	store      ports.TransactionStore
	categories []string
	advisor    Advisor
	publisher  Publisher
	logger     *pfmlog.Logger

	mu sync.Mutex
}

func NewLedgerService(store ports.TransactionStore, categories []string, advisor Advisor, publisher Publisher) *LedgerService {
	if len(categories) == 0 {
		categories = core.DefaultCategories
	}
	return &LedgerService{
		store:      store,
		categories: append([]string(nil), categories...),
		advisor:    advisor,
		publisher:  publisher,
		logger:     pfmlog.New(pfmlog.Config{Handler: slog.Default().Handler(), Component: pfmlog.ComponentLedger}),
	}
}

// Categories returns the configured category list.
func (s *LedgerService) Categories() []string {
	return append([]string(nil), s.categories...)
}

// Open loads the stored transactions into a fresh Budget.
func (s *LedgerService) Open(ctx context.Context) (*core.Budget, error) {
	txs, err := s.store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load transactions: %w", err)
	}
	b := core.NewBudget(s.categories)
	b.Expenses = txs
	return b, nil
}

// Add validates in, appends it and writes the full data set back.
func (s *LedgerService) Add(ctx context.Context, in AddInput) (core.Transaction, *core.Budget, error) {
	amount, err := core.ParseAmount(in.Amount)
	if err != nil {
		return core.Transaction{}, nil, fmt.Errorf("%w: amount %q: %w", ErrInvalidInput, in.Amount, err)
	}
	check := core.NewBudget(s.categories)
	category, err := check.ResolveCategory(in.Category)
	if err != nil {
		return core.Transaction{}, nil, fmt.Errorf("%w: category %q: %w", ErrInvalidInput, in.Category, err)
	}
	tx := core.NewTransaction(in.Date, in.Description, amount, category)

	b, err := s.append(ctx, tx)
	if err != nil {
		return core.Transaction{}, nil, err
	}
	pfmlog.NewStructuredLogger(s.logger).LogTransactionAdded(ctx, tx.Category, len(b.Expenses))
	s.publish(ctx, len(b.Expenses))
	return tx, b, nil
}

// AddTransactions appends txs in order with a single write. Used by import
// and seed.
func (s *LedgerService) AddTransactions(ctx context.Context, txs []core.Transaction) (*core.Budget, error) {
	b, err := s.append(ctx, txs...)
	if err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "Transactions appended", pfmlog.FieldCount, len(txs), "total", len(b.Expenses))
	if len(txs) > 0 {
		s.publish(ctx, len(b.Expenses))
	}
	return b, nil
}

func (s *LedgerService) append(ctx context.Context, txs ...core.Transaction) (*core.Budget, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := s.Open(ctx)
	if err != nil {
		return nil, err
	}
	for _, tx := range txs {
		b.AddExpense(tx)
	}
	if err := s.store.Save(ctx, b.Expenses); err != nil {
		return nil, fmt.Errorf("save transactions: %w", err)
	}
	return b, nil
}

func (s *LedgerService) publish(ctx context.Context, count int) {
	if s.publisher == nil {
		return
	}
	// The write already succeeded; a lost event is caught by the
	// worker's periodic reconcile.
	if err := s.publisher.PublishTransactionAdded(ctx, count); err != nil {
		s.logger.Fail(ctx, "Failed to publish transaction event", err)
	}
}

// ErrNoAdvisor is returned by Advice when no advisor is configured.
var ErrNoAdvisor = errors.New("no advisor configured")

// Insights is one session's recommendation groups plus the advice for the
// same data. AdviceErr holds an advisor failure; the groups are still valid.
type Insights struct {
	Groups    core.Recommendations
	Advice    string
	AdviceErr error
}

// Advice sends the budget summary to the advisor.
func (s *LedgerService) Advice(ctx context.Context) (string, error) {
	if s.advisor == nil {
		return "", ErrNoAdvisor
	}
	b, err := s.Open(ctx)
	if err != nil {
		return "", err
	}
	return s.advise(ctx, b)
}

// Groups clusters the stored expenses.
func (s *LedgerService) Groups(ctx context.Context) (core.Recommendations, error) {
	b, err := s.Open(ctx)
	if err != nil {
		return nil, err
	}
	return b.Recommendations(), nil
}

// Insights loads the store once and derives both groups and advice from
// that single read. Only a storage failure is returned as err.
func (s *LedgerService) Insights(ctx context.Context) (Insights, error) {
	b, err := s.Open(ctx)
	if err != nil {
		return Insights{}, err
	}
	out := Insights{Groups: b.Recommendations()}
	out.Advice, out.AdviceErr = s.advise(ctx, b)
	return out, nil
}

// advise sends the summary of b to the advisor. The full history leaves
// the process here, so only its size is logged.
func (s *LedgerService) advise(ctx context.Context, b *core.Budget) (string, error) {
	if s.advisor == nil {
		return "", ErrNoAdvisor
	}
	s.logger.InfoContext(ctx, "Requesting advice",
		pfmlog.FieldOperation, pfmlog.OpAdvice,
		pfmlog.FieldCount, len(b.Expenses))
	return s.advisor.GetAdvice(ctx, b.Summary())
}

// Export writes the stored transactions as an xlsx workbook to w.
func (s *LedgerService) Export(ctx context.Context, w io.Writer) error {
	b, err := s.Open(ctx)
	if err != nil {
		return err
	}
	if err := xlsx.Encode(w, b.Expenses); err != nil {
		return fmt.Errorf("encode workbook: %w", err)
	}
	return nil
}

// Ready checks that the store can be read.
func (s *LedgerService) Ready(ctx context.Context) error {
	_, err := s.store.Load(ctx)
	return err
}

// Close releases the store and publisher when they hold resources.
func (s *LedgerService) Close() error {
	var errs []error
	if c, ok := s.store.(io.Closer); ok {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("store: %w", err))
		}
	}
	if c, ok := s.publisher.(io.Closer); ok {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("publisher: %w", err))
		}
	}
	return errors.Join(errs...)
}
