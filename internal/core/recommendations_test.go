package core

import (
	"fmt"
	"testing"
)

func TestRecommendationsEmpty(t *testing.T) {
	if r := NewBudget(nil).Recommendations(); len(r) != 0 {
		t.Fatalf("expected empty mapping, got %v", r)
	}
}

func TestRecommendationsPartition(t *testing.T) {
	cats := []string{"groceries", "utilities", "entertainment", "investments"}
	for n := 1; n <= 12; n++ {
		b := NewBudget(nil)
		for i := 0; i < n; i++ {
			b.AddExpense(NewTransaction(
				fmt.Sprintf("%02d/01/2024", i+1),
				fmt.Sprintf("item-%d", i),
				amt(fmt.Sprintf("%d.25", (i*37)%50)),
				cats[i%len(cats)],
			))
		}

		r := b.Recommendations()
		if len(r) > min(3, n) || len(r) == 0 {
			t.Fatalf("n=%d: got %d groups", n, len(r))
		}
		if r.Size() != n {
			t.Fatalf("n=%d: groups cover %d expenses", n, r.Size())
		}
		seen := map[string]bool{}
		for _, l := range r.Labels() {
			for _, e := range r[l] {
				if seen[e.Description] {
					t.Fatalf("n=%d: %s assigned twice", n, e.Description)
				}
				seen[e.Description] = true
			}
		}
	}
}

func TestRecommendationsIdenticalExpenses(t *testing.T) {
	b := NewBudget(nil)
	for i := 0; i < 5; i++ {
		b.AddExpense(NewTransaction("01/01/2024", "Milk", amt("3.50"), "groceries"))
	}
	r := b.Recommendations()
	if len(r) != 1 {
		t.Fatalf("identical expenses gave %d groups", len(r))
	}
	if r.Size() != 5 {
		t.Fatalf("group holds %d expenses", r.Size())
	}
}

func TestRecommendationsSeparatesCategories(t *testing.T) {
	b := NewBudget(nil)
	b.AddExpense(NewTransaction("d", "a", amt("1"), "groceries"))
	b.AddExpense(NewTransaction("d", "b", amt("1"), "groceries"))
	b.AddExpense(NewTransaction("d", "c", amt("1"), "utilities"))
	b.AddExpense(NewTransaction("d", "e", amt("1"), "utilities"))

	r := b.Recommendations()
	for _, l := range r.Labels() {
		cat := r[l][0].Category
		for _, e := range r[l] {
			if e.Category != cat {
				t.Fatalf("group %d mixes %s and %s", l, cat, e.Category)
			}
		}
	}
}
