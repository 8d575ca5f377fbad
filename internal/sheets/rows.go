package sheets

import (
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"

	"pfm/internal/core"
)

// Columns holds the position of each transaction field in a row.
type Columns struct {
	Date, Description, Amount, Category int
}

// LocateColumns finds the transaction columns in a header row. Matching is
// case-insensitive and ignores surrounding whitespace.
func LocateColumns(header []string) (Columns, error) {
	idx := map[string]int{}
	for i, h := range header {
		idx[strings.ToLower(strings.TrimSpace(h))] = i
	}
	var missing []string
	get := func(name string) int {
		i, ok := idx[name]
		if !ok {
			missing = append(missing, name)
			return -1
		}
		return i
	}
	cols := Columns{
		Date:        get("date"),
		Description: get("description"),
		Amount:      get("amount"),
		Category:    get("category"),
	}
	if len(missing) > 0 {
		return Columns{}, fmt.Errorf("%w: missing columns %s; got headers=%v", ErrMalformed, strings.Join(missing, ","), header)
	}
	return cols, nil
}

// ParseRows converts a header row followed by data rows into transactions.
// Blank rows are skipped. rowOffset is added to row numbers in errors so
// they match what a spreadsheet user sees.
func ParseRows(rows [][]string, rowOffset int) ([]core.Transaction, error) {
	if len(rows) == 0 {
		return []core.Transaction{}, nil
	}
	cols, err := LocateColumns(rows[0])
	if err != nil {
		return nil, err
	}
	out := make([]core.Transaction, 0, len(rows)-1)
	for i, row := range rows[1:] {
		if blank(row) {
			continue
		}
		raw := strings.TrimSpace(cell(row, cols.Amount))
		amount := decimal.Zero
		if raw != "" {
			amount, err = decimal.NewFromString(raw)
			if err != nil {
				return nil, fmt.Errorf("%w: row %d: amount %q", ErrMalformed, i+2+rowOffset, raw)
			}
		}
		out = append(out, core.Transaction{
			Date:        cell(row, cols.Date),
			Description: cell(row, cols.Description),
			Amount:      amount,
			Category:    cell(row, cols.Category),
		})
	}
	return out, nil
}

// AmountCell returns the value to write into an amount cell: a number when
// float64 holds the amount exactly, otherwise its exact decimal text.
// ParseRows reads both forms back to the same amount.
func AmountCell(d decimal.Decimal) interface{} {
	f, _ := d.Float64()
	if !math.IsInf(f, 0) && !math.IsNaN(f) && decimal.NewFromFloat(f).Equal(d) {
		return f
	}
	return d.String()
}

func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return row[i]
}

func blank(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
