package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/shopspring/decimal"

	"pfm/internal/core"
	"pfm/internal/sheets/memory"
	"pfm/internal/sheets/xlsx"
)

type fakeAdvisor struct {
	summary string
	reply   string
	err     error
}

func (f *fakeAdvisor) GetAdvice(_ context.Context, summary string) (string, error) {
	f.summary = summary
	return f.reply, f.err
}

type fakePublisher struct {
	mu     sync.Mutex
	counts []int
	err    error
}

func (f *fakePublisher) PublishTransactionAdded(_ context.Context, count int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counts = append(f.counts, count)
	return f.err
}

type brokenStore struct{ err error }

func (b brokenStore) Load(context.Context) ([]core.Transaction, error) { return nil, b.err }
func (b brokenStore) Save(context.Context, []core.Transaction) error   { return b.err }

func TestLedgerService_Add(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	pub := &fakePublisher{}
	svc := NewLedgerService(store, nil, nil, pub)

	tx, b, err := svc.Add(ctx, AddInput{Date: "01/01/2024", Description: "Milk", Amount: "3,50", Category: "Groceries"})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if tx.Category != "groceries" {
		t.Errorf("category = %q, want lower-cased", tx.Category)
	}
	if !tx.Amount.Equal(decimal.RequireFromString("3.5")) {
		t.Errorf("amount = %s", tx.Amount)
	}
	if len(b.Expenses) != 1 || store.Saves() != 1 {
		t.Fatalf("expenses=%d saves=%d", len(b.Expenses), store.Saves())
	}
	if len(pub.counts) != 1 || pub.counts[0] != 1 {
		t.Errorf("published counts = %v", pub.counts)
	}

	stored, _ := store.Load(ctx)
	if len(stored) != 1 || !stored[0].Equal(tx) {
		t.Errorf("stored = %+v", stored)
	}
}

func TestLedgerService_AddInvalid(t *testing.T) {
	tests := []struct {
		name string
		in   AddInput
		want error
	}{
		{"bad amount", AddInput{Amount: "abc", Category: "groceries"}, core.ErrInvalidAmount},
		{"unknown category", AddInput{Amount: "1", Category: "travel"}, core.ErrUnknownCategory},
		{"empty category", AddInput{Amount: "1", Category: " "}, core.ErrEmptyCategory},
		{"overflowing amount", AddInput{Amount: "1e400", Category: "groceries"}, core.ErrInvalidAmount},
		{"overflowing negative amount", AddInput{Amount: "-1e400", Category: "groceries"}, core.ErrInvalidAmount},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := memory.New()
			svc := NewLedgerService(store, nil, nil, nil)
			_, _, err := svc.Add(context.Background(), tt.in)
			if !errors.Is(err, ErrInvalidInput) || !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v and ErrInvalidInput", err, tt.want)
			}
			if store.Saves() != 0 {
				t.Errorf("invalid input must not be saved")
			}
		})
	}
}

func TestLedgerService_XLSXStaysReadable(t *testing.T) {
	ctx := context.Background()
	store := xlsx.New(filepath.Join(t.TempDir(), "transactions.xlsx"))
	svc := NewLedgerService(store, nil, nil, nil)

	for _, amount := range []string{"1e309", "12345678901234567.89", "0.1"} {
		_, _, _ = svc.Add(ctx, AddInput{Date: "d", Description: amount, Amount: amount, Category: "groceries"})
	}
	b, err := svc.Open(ctx)
	if err != nil {
		t.Fatalf("Open after adds: %v", err)
	}
	if len(b.Expenses) != 2 {
		t.Fatalf("got %d expenses, want 2", len(b.Expenses))
	}
	if got := b.Expenses[0].Amount.String(); got != "12345678901234567.89" {
		t.Errorf("amount read back as %s", got)
	}
	if _, _, err := svc.Add(ctx, AddInput{Amount: "1", Category: "groceries"}); err != nil {
		t.Fatalf("Add after reload: %v", err)
	}
}

func TestLedgerService_EmptyAmountIsZero(t *testing.T) {
	svc := NewLedgerService(memory.New(), nil, nil, nil)
	tx, _, err := svc.Add(context.Background(), AddInput{Category: "utilities"})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if !tx.Amount.IsZero() {
		t.Errorf("amount = %s, want 0", tx.Amount)
	}
}

func TestLedgerService_PublishFailureDoesNotFailAdd(t *testing.T) {
	pub := &fakePublisher{err: errors.New("broker down")}
	svc := NewLedgerService(memory.New(), nil, nil, pub)
	if _, _, err := svc.Add(context.Background(), AddInput{Amount: "1", Category: "groceries"}); err != nil {
		t.Fatalf("Add should succeed when publishing fails: %v", err)
	}
}

func TestLedgerService_ConcurrentAdds(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	svc := NewLedgerService(store, nil, nil, nil)

	const n = 40
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			in := AddInput{Description: fmt.Sprintf("item %d", i), Amount: "1", Category: "groceries"}
			if _, _, err := svc.Add(ctx, in); err != nil {
				t.Errorf("Add: %v", err)
			}
		}(i)
	}
	wg.Wait()

	stored, _ := store.Load(ctx)
	if len(stored) != n {
		t.Fatalf("stored %d transactions, want %d", len(stored), n)
	}
}

func TestLedgerService_OpenFailure(t *testing.T) {
	svc := NewLedgerService(brokenStore{err: errors.New("corrupt")}, nil, nil, nil)
	if _, err := svc.Open(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if _, _, err := svc.Add(context.Background(), AddInput{Amount: "1", Category: "groceries"}); err == nil || errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected storage error, got %v", err)
	}
	if err := svc.Ready(context.Background()); err == nil {
		t.Fatal("Ready should report the storage error")
	}
}

func TestLedgerService_Advice(t *testing.T) {
	seed := core.NewTransaction("01/01/2024", "Milk", decimal.RequireFromString("3.5"), "groceries")
	adv := &fakeAdvisor{reply: "Spend less on milk."}
	svc := NewLedgerService(memory.New(seed), []string{"Groceries"}, adv, nil)

	text, err := svc.Advice(context.Background())
	if err != nil {
		t.Fatalf("Advice: %v", err)
	}
	if text != "Spend less on milk." {
		t.Errorf("text = %q", text)
	}
	want := "Categories: Groceries\nExpenses:\n01/01/2024 - Milk - 3.5 - groceries\n"
	if adv.summary != want {
		t.Errorf("summary = %q, want %q", adv.summary, want)
	}
}

func TestLedgerService_AdviceWithoutAdvisor(t *testing.T) {
	svc := NewLedgerService(memory.New(), nil, nil, nil)
	if _, err := svc.Advice(context.Background()); !errors.Is(err, ErrNoAdvisor) {
		t.Fatalf("err = %v, want ErrNoAdvisor", err)
	}
}

type countingStore struct {
	*memory.Store
	mu    sync.Mutex
	loads int
}

func (c *countingStore) Load(ctx context.Context) ([]core.Transaction, error) {
	c.mu.Lock()
	c.loads++
	c.mu.Unlock()
	return c.Store.Load(ctx)
}

func TestLedgerService_InsightsReadsOnce(t *testing.T) {
	store := &countingStore{Store: memory.New(
		core.NewTransaction("d1", "a", decimal.NewFromInt(10), "groceries"),
		core.NewTransaction("d2", "b", decimal.NewFromInt(500), "investments"),
	)}
	adv := &fakeAdvisor{reply: "ok"}
	svc := NewLedgerService(store, nil, adv, nil)

	in, err := svc.Insights(context.Background())
	if err != nil {
		t.Fatalf("Insights: %v", err)
	}
	if store.loads != 1 {
		t.Errorf("loads = %d, want 1", store.loads)
	}
	if in.Advice != "ok" || in.AdviceErr != nil || in.Groups.Size() != 2 {
		t.Errorf("insights = %+v", in)
	}

	adv.err = errors.New("remote down")
	in, err = svc.Insights(context.Background())
	if err != nil {
		t.Fatalf("advisor failure must not fail Insights: %v", err)
	}
	if in.AdviceErr == nil || in.Groups.Size() != 2 {
		t.Errorf("insights = %+v", in)
	}
}

func TestLedgerService_GroupsAndExport(t *testing.T) {
	ctx := context.Background()
	seed := []core.Transaction{
		core.NewTransaction("d1", "a", decimal.NewFromInt(10), "groceries"),
		core.NewTransaction("d2", "b", decimal.NewFromInt(10), "groceries"),
		core.NewTransaction("d3", "c", decimal.NewFromInt(500), "investments"),
	}
	svc := NewLedgerService(memory.New(seed...), nil, nil, nil)

	groups, err := svc.Groups(ctx)
	if err != nil {
		t.Fatalf("Groups: %v", err)
	}
	if groups.Size() != len(seed) {
		t.Errorf("groups cover %d transactions, want %d", groups.Size(), len(seed))
	}

	var buf bytes.Buffer
	if err := svc.Export(ctx, &buf); err != nil {
		t.Fatalf("Export: %v", err)
	}
	back, err := xlsx.Decode(&buf)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(back) != len(seed) {
		t.Fatalf("exported %d rows, want %d", len(back), len(seed))
	}
}

func TestLedgerService_AddTransactions(t *testing.T) {
	store := memory.New()
	pub := &fakePublisher{}
	svc := NewLedgerService(store, nil, nil, pub)

	batch := []core.Transaction{
		core.NewTransaction("d1", "a", decimal.NewFromInt(1), "groceries"),
		core.NewTransaction("d2", "b", decimal.NewFromInt(2), "utilities"),
	}
	b, err := svc.AddTransactions(context.Background(), batch)
	if err != nil {
		t.Fatalf("AddTransactions: %v", err)
	}
	if len(b.Expenses) != 2 || store.Saves() != 1 {
		t.Errorf("expenses=%d saves=%d, want one write", len(b.Expenses), store.Saves())
	}
	if len(pub.counts) != 1 || pub.counts[0] != 2 {
		t.Errorf("published counts = %v", pub.counts)
	}
}
