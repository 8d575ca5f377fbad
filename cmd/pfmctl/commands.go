package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"pfm/internal/advice"
	"pfm/internal/core"
	pfmlog "pfm/internal/log"
	"pfm/internal/services"
	"pfm/internal/sheets/xlsx"
)

const dateLayout = "2006-01-02"

func newSummaryCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "summary",
		Short: "Show total and per-category expenditure",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			b, err := a.ledger.Open(cmd.Context())
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
			fmt.Fprintf(tw, "Total\t%s\n", core.FormatAmount(b.TotalExpenditure()))
			for _, ct := range b.CategoryTotals() {
				fmt.Fprintf(tw, "%s\t%s\n", ct.Name, core.FormatAmount(ct.Amount))
			}
			fmt.Fprintf(tw, "Transactions\t%d\n", len(b.Expenses))
			return tw.Flush()
		},
	}
}

func newAddCmd(a *app) *cobra.Command {
	var in services.AddInput
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Record one expense",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			tx, b, err := a.ledger.Add(cmd.Context(), in)
			if err != nil {
				return err
			}
			a.logger.Info("expense added",
				"description", tx.Description,
				"amount", core.FormatAmount(tx.Amount),
				"category", tx.Category,
				"total", len(b.Expenses))
			return nil
		},
	}
	cmd.Flags().StringVar(&in.Date, "date", time.Now().Format(dateLayout), "Transaction date")
	cmd.Flags().StringVar(&in.Description, "description", "", "Description")
	cmd.Flags().StringVar(&in.Amount, "amount", "0", "Amount, dot or comma decimal separator")
	cmd.Flags().StringVar(&in.Category, "category", "", "Category, one of the configured categories")
	_ = cmd.MarkFlagRequired("category")
	return cmd
}

func newGroupsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "groups",
		Short: "Cluster expenses into at most three groups",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			groups, err := a.ledger.Groups(cmd.Context())
			if err != nil {
				return err
			}
			if groups.Size() == 0 {
				fmt.Fprintln(a.out, "No transactions.")
				return nil
			}
			for _, label := range groups.Labels() {
				fmt.Fprintf(a.out, "Group %d\n", label)
				for _, tx := range groups[label] {
					fmt.Fprintf(a.out, "  %s - %s - %s - %s\n", tx.Date, tx.Description, core.FormatAmount(tx.Amount), tx.Category)
				}
			}
			return nil
		},
	}
}

func newAdviceCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "advice",
		Short: "Ask the advice service for recommendations",
		Long:  "Sends the full transaction list to the configured advice service and prints its reply.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			text, err := a.ledger.Advice(cmd.Context())
			if err != nil {
				var aerr *advice.Error
				if errors.As(err, &aerr) && aerr.Body != "" {
					fmt.Fprintf(a.errOut, "Response body:\n%s\n", aerr.Body)
				}
				return err
			}
			fmt.Fprintln(a.out, strings.TrimSpace(text))
			return nil
		},
	}
}

func newExportCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "export <path.xlsx>",
		Short: "Write all transactions to a spreadsheet file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Create(args[0])
			if err != nil {
				return err
			}
			if err := a.ledger.Export(cmd.Context(), f); err != nil {
				_ = f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}
			a.logger.Info("exported", "path", args[0])
			return nil
		},
	}
}

func newImportCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "import <path.xlsx|path.xls>",
		Short: "Append every row of a spreadsheet file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			txs, err := xlsx.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read %s: %w", args[0], err)
			}
			b, err := a.ledger.AddTransactions(cmd.Context(), txs)
			if err != nil {
				return err
			}
			a.logger.Info("imported", pfmlog.FieldOperation, pfmlog.OpImport, "rows", len(txs), "total", len(b.Expenses))
			return nil
		},
	}
}

func newSeedCmd(a *app) *cobra.Command {
	var (
		count int
		seed  int64
	)
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Append fake transactions for demos",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if count <= 0 {
				return fmt.Errorf("--count must be positive, got %d", count)
			}
			txs := fakeTransactions(gofakeit.New(seed), a.ledger.Categories(), count)
			b, err := a.ledger.AddTransactions(cmd.Context(), txs)
			if err != nil {
				return err
			}
			a.logger.Info("seeded", "rows", count, "total", len(b.Expenses))
			return nil
		},
	}
	cmd.Flags().IntVar(&count, "count", 10, "Number of transactions to generate")
	cmd.Flags().Int64Var(&seed, "seed", 0, "Random seed, 0 picks one")
	return cmd
}

func fakeTransactions(f *gofakeit.Faker, categories []string, n int) []core.Transaction {
	end := time.Now()
	start := end.AddDate(-1, 0, 0)
	txs := make([]core.Transaction, 0, n)
	for range n {
		txs = append(txs, core.NewTransaction(
			f.DateRange(start, end).Format(dateLayout),
			f.Sentence(3),
			decimal.NewFromFloat(f.Price(1, 250)).Round(2),
			f.RandomString(categories),
		))
	}
	return txs
}
