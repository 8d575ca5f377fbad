package http

import (
	"bytes"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"pfm/internal/advice"
	"pfm/internal/core"
	pfmlog "pfm/internal/log"
	"pfm/internal/services"
	"pfm/internal/sheets/xlsx"
)

const (
	exportPath     = "/export/transactions.xlsx"
	exportFilename = "transactions.xlsx"
	dateLayout     = "2006-01-02"
)

type totalsView struct {
	Total  decimal.Decimal
	Totals []core.CategoryTotal
	Count  int
}

type indexView struct {
	Action     string
	Today      string
	Categories []string
	ExportPath string
	Summary    totalsView
}

type groupView struct {
	Label    int
	Expenses []core.Transaction
}

// adviceFailure is what the recommendations page shows when no advice text
// could be obtained.
type adviceFailure struct {
	Kind       string
	StatusCode int
	Body       string
	Message    string
}

type recommendationsView struct {
	Advice  string
	Failure *adviceFailure
	Groups  []groupView
	Count   int
}

func newTotalsView(b *core.Budget) totalsView {
	return totalsView{
		Total:  b.TotalExpenditure(),
		Totals: b.CategoryTotals(),
		Count:  len(b.Expenses),
	}
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	b, err := s.ledger.Open(ctx)
	if err != nil {
		s.storeFailure(w, r, "Failed to open ledger", pfmlog.OpLoad, err)
		return
	}

	data := indexView{
		Action:     parseAction(r.URL.Query()),
		Today:      time.Now().Format(dateLayout),
		Categories: s.ledger.Categories(),
		ExportPath: exportPath,
		Summary:    newTotalsView(b),
	}
	s.render(w, r, "index.html", data)
}

// createdJSON is the body returned to JSON clients of POST /expenses.
type createdJSON struct {
	Date        string `json:"date"`
	Description string `json:"description"`
	Amount      string `json:"amount"`
	Category    string `json:"category"`
	Count       int    `json:"count"`
}

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := pfmlog.FromContext(ctx)

	parser := NewRequestBodyParser(r)
	if err := parser.Parse(); err != nil {
		logger.WarnContext(ctx, "Failed to parse request body", pfmlog.FieldError, err)
		s.fail(w, parser, http.StatusBadRequest, "Invalid request format")
		return
	}

	tx, b, err := s.ledger.Add(ctx, parser.AddInput())
	if err != nil {
		if errors.Is(err, services.ErrInvalidInput) {
			logger.InfoContext(ctx, "Rejected transaction", pfmlog.FieldError, err)
			s.fail(w, parser, http.StatusUnprocessableEntity, invalidInputMessage(err))
			return
		}
		s.logFailure(r, "Failed to save transaction", pfmlog.OpAppend, err)
		s.fail(w, parser, http.StatusInternalServerError, "Failed to save transaction")
		return
	}

	if parser.IsJSON() {
		newReply().
			Status(http.StatusCreated).
			ExpenseCreated(len(b.Expenses)).
			JSON(createdJSON{
				Date:        tx.Date,
				Description: tx.Description,
				Amount:      tx.Amount.String(),
				Category:    tx.Category,
				Count:       len(b.Expenses),
			}).
			Write(w)
		return
	}

	body := fmt.Sprintf(`<div class="success">Saved %s (%s) in %s. <a href="%s" download>Download transactions</a></div>`,
		template.HTMLEscapeString(tx.Description),
		core.FormatAmount(tx.Amount),
		template.HTMLEscapeString(tx.Category),
		exportPath)

	newReply().
		ExpenseCreated(len(b.Expenses)).
		FormReset().
		Notify(notifySuccess, "Transaction saved", 3000).
		HTML(body).
		Write(w)
}

// fail answers in the shape the client sent: JSON for JSON bodies, an
// error fragment with a toast otherwise.
func (s *Server) fail(w http.ResponseWriter, parser *RequestBodyParser, status int, message string) {
	if parser.IsJSON() {
		newReply().Status(status).JSON(jsonError{Error: message}).Write(w)
		return
	}
	errorReply(status, message).Write(w)
}

func invalidInputMessage(err error) string {
	switch {
	case errors.Is(err, core.ErrInvalidAmount):
		return "Invalid amount"
	case errors.Is(err, core.ErrEmptyCategory):
		return "Category is required"
	case errors.Is(err, core.ErrUnknownCategory):
		return "Unknown category"
	default:
		return "Invalid input"
	}
}

func (s *Server) handleTotals(w http.ResponseWriter, r *http.Request) {
	b, err := s.ledger.Open(r.Context())
	if err != nil {
		s.storeFailure(w, r, "Failed to open ledger", pfmlog.OpLoad, err)
		return
	}
	s.render(w, r, "totals.html", newTotalsView(b))
}

func (s *Server) handleRecommendations(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	in, err := s.ledger.Insights(ctx)
	if err != nil {
		s.storeFailure(w, r, "Failed to open ledger", pfmlog.OpAdvice, err)
		return
	}

	data := recommendationsView{Count: in.Groups.Size(), Advice: in.Advice}
	for _, label := range in.Groups.Labels() {
		data.Groups = append(data.Groups, groupView{Label: label, Expenses: in.Groups[label]})
	}
	if in.AdviceErr != nil {
		pfmlog.FromContext(ctx).WarnContext(ctx, "Advice unavailable", pfmlog.FieldError, in.AdviceErr)
		data.Failure = describeAdviceFailure(in.AdviceErr)
	}
	s.render(w, r, "recommendations.html", data)
}

func describeAdviceFailure(err error) *adviceFailure {
	var aerr *advice.Error
	if !errors.As(err, &aerr) {
		return &adviceFailure{Kind: "unavailable", Message: err.Error()}
	}
	return &adviceFailure{
		Kind:       aerr.Kind.String(),
		StatusCode: aerr.StatusCode,
		Body:       aerr.Body,
		Message:    aerr.Error(),
	}
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := s.ledger.Export(r.Context(), &buf); err != nil {
		s.storeFailure(w, r, "Failed to export transactions", pfmlog.OpExport, err)
		return
	}

	w.Header().Set("Content-Type", xlsx.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", exportFilename))
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	newReply().Text("ok").Write(w)
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if err := s.ledger.Ready(r.Context()); err != nil {
		pfmlog.FromContext(r.Context()).WarnContext(r.Context(), "Readiness check failed", pfmlog.FieldError, err)
		newReply().Status(http.StatusServiceUnavailable).Text("not ready").Write(w)
		return
	}
	newReply().Text("ready").Write(w)
}

// render executes a template into a buffer so a failure can still become
// a clean 500.
func (s *Server) render(w http.ResponseWriter, r *http.Request, name string, data any) {
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		pfmlog.NewStructuredLogger(pfmlog.FromContext(r.Context())).
			LogError(r.Context(), "Template execution failed", err, pfmlog.OpRender, pfmlog.NewFields())
		errorReply(http.StatusInternalServerError, "Rendering failed").Write(w)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) logFailure(r *http.Request, msg, op string, err error) {
	pfmlog.NewStructuredLogger(pfmlog.FromContext(r.Context())).
		LogError(r.Context(), msg, err, op, pfmlog.NewFields().WithClientIP(extractClientIP(r)))
}

func (s *Server) storeFailure(w http.ResponseWriter, r *http.Request, msg, op string, err error) {
	s.logFailure(r, msg, op, err)
	errorReply(http.StatusInternalServerError, msg).Write(w)
}
