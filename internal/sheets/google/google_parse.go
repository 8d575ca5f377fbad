package google

import (
	"fmt"
	"strings"

	"pfm/internal/core"
	ports "pfm/internal/sheets"
)

// parseValues converts a values matrix (as returned by the Sheets API)
// into transactions. The first row must be the header.
func parseValues(values [][]interface{}) ([]core.Transaction, error) {
	rows := make([][]string, len(values))
	for i, row := range values {
		rows[i] = toStrings(row)
	}
	return ports.ParseRows(rows, 0)
}

// toValues renders the header and one row per transaction.
func toValues(txs []core.Transaction) [][]interface{} {
	out := make([][]interface{}, 0, len(txs)+1)
	header := make([]interface{}, len(ports.Header))
	for i, h := range ports.Header {
		header[i] = h
	}
	out = append(out, header)
	for _, t := range txs {
		out = append(out, []interface{}{t.Date, t.Description, ports.AmountCell(t.Amount), t.Category})
	}
	return out
}

func toStrings(in []interface{}) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}
