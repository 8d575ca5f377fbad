package core

import (
	"sort"
	"strings"

	"pfm/internal/cluster"
)

// MaxGroups caps the number of recommendation groups.
const MaxGroups = 3

// Recommendations maps a cluster label to the expenses assigned to it.
type Recommendations map[int][]Transaction

// Labels returns the cluster labels in ascending order.
func (r Recommendations) Labels() []int {
	labels := make([]int, 0, len(r))
	for l := range r {
		labels = append(labels, l)
	}
	sort.Ints(labels)
	return labels
}

// Size returns the number of expenses across all groups.
func (r Recommendations) Size() int {
	n := 0
	for _, g := range r {
		n += len(g)
	}
	return n
}

// Recommendations groups the expenses into at most min(3, n) clusters.
//
// Each expense becomes the vector [amount, one-hot(category)...], with one
// column per distinct lower-cased category in sorted order. Date and
// description do not take part. An empty budget yields an empty mapping.
func (b *Budget) Recommendations() Recommendations {
	out := Recommendations{}
	if len(b.Expenses) == 0 {
		return out
	}

	labels := cluster.KMeans(b.features(), min(MaxGroups, len(b.Expenses)))
	for i, l := range labels {
		out[l] = append(out[l], b.Expenses[i])
	}
	return out
}

func (b *Budget) features() [][]float64 {
	index := map[string]int{}
	for _, e := range b.Expenses {
		index[strings.ToLower(e.Category)] = 0
	}
	cats := make([]string, 0, len(index))
	for c := range index {
		cats = append(cats, c)
	}
	sort.Strings(cats)
	for i, c := range cats {
		index[c] = i
	}

	rows := make([][]float64, len(b.Expenses))
	for i, e := range b.Expenses {
		row := make([]float64, 1+len(cats))
		row[0] = e.Amount.InexactFloat64()
		row[1+index[strings.ToLower(e.Category)]] = 1
		rows[i] = row
	}
	return rows
}
