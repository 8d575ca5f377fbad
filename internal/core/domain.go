package core

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

// DefaultCategories is the category list a Budget starts with when no
// categories file is configured.
var DefaultCategories = []string{"Groceries", "Entertainment", "Utilities", "Investments"}

type (
	// Transaction is one recorded expense. Date is free-form text.
	Transaction struct {
		Date        string
		Description string
		Amount      decimal.Decimal
		Category    string
	}

	// Budget holds the category list and the expenses loaded for one session.
	Budget struct {
		Categories []string
		Expenses   []Transaction
	}

	// CategoryTotal is the amount spent in a single category.
	CategoryTotal struct {
		Name   string
		Amount decimal.Decimal
	}
)

var (
	ErrEmptyCategory   = errors.New("empty category")
	ErrUnknownCategory = errors.New("unknown category")
)

// NewTransaction builds a Transaction with a lower-cased category.
func NewTransaction(date, description string, amount decimal.Decimal, category string) Transaction {
	return Transaction{
		Date:        date,
		Description: description,
		Amount:      amount,
		Category:    strings.ToLower(strings.TrimSpace(category)),
	}
}

// Equal reports whether two transactions carry the same field values.
func (t Transaction) Equal(o Transaction) bool {
	return t.Date == o.Date &&
		t.Description == o.Description &&
		t.Amount.Equal(o.Amount) &&
		t.Category == o.Category
}

// NewBudget returns an empty Budget over a copy of categories.
func NewBudget(categories []string) *Budget {
	if len(categories) == 0 {
		categories = DefaultCategories
	}
	return &Budget{Categories: append([]string(nil), categories...)}
}

// AddExpense appends t to the in-memory expense list.
func (b *Budget) AddExpense(t Transaction) {
	b.Expenses = append(b.Expenses, t)
}

// TotalExpenditure sums the amounts of all expenses.
func (b *Budget) TotalExpenditure() decimal.Decimal {
	total := decimal.Zero
	for _, e := range b.Expenses {
		total = total.Add(e.Amount)
	}
	return total
}

// CategoryExpenditure sums the amounts of expenses whose category matches
// category, ignoring case.
func (b *Budget) CategoryExpenditure(category string) decimal.Decimal {
	want := strings.ToLower(category)
	total := decimal.Zero
	for _, e := range b.Expenses {
		if strings.ToLower(e.Category) == want {
			total = total.Add(e.Amount)
		}
	}
	return total
}

// CategoryTotals returns one total per configured category, in category order.
func (b *Budget) CategoryTotals() []CategoryTotal {
	out := make([]CategoryTotal, 0, len(b.Categories))
	for _, c := range b.Categories {
		out = append(out, CategoryTotal{Name: c, Amount: b.CategoryExpenditure(c)})
	}
	return out
}

// ResolveCategory maps user input onto one of the budget categories and
// returns it lower-cased, the way transactions store it.
func (b *Budget) ResolveCategory(input string) (string, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return "", ErrEmptyCategory
	}
	for _, c := range b.Categories {
		if strings.EqualFold(c, input) {
			return strings.ToLower(c), nil
		}
	}
	return "", ErrUnknownCategory
}
