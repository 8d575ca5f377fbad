package core

import "strings"

// Summary renders the budget as the plain-text block sent to the advice
// service: the category list followed by one line per expense.
func (b *Budget) Summary() string {
	var sb strings.Builder
	sb.WriteString("Categories: ")
	sb.WriteString(strings.Join(b.Categories, ", "))
	sb.WriteString("\n")
	sb.WriteString("Expenses:\n")
	for _, e := range b.Expenses {
		sb.WriteString(e.Date)
		sb.WriteString(" - ")
		sb.WriteString(e.Description)
		sb.WriteString(" - ")
		sb.WriteString(e.Amount.String())
		sb.WriteString(" - ")
		sb.WriteString(e.Category)
		sb.WriteString("\n")
	}
	return sb.String()
}
