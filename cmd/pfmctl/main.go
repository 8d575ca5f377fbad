package main

import (
	"context"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"pfm/internal/cli"
	"pfm/internal/config"
	pfmlog "pfm/internal/log"
	"pfm/internal/services"
)

// app carries what every subcommand needs. open is swapped in tests.
type app struct {
	out    io.Writer
	errOut io.Writer
	logger *log.Logger
	open   func(ctx context.Context) (*services.LedgerService, error)
	ledger *services.LedgerService
}

func newApp(out, errOut io.Writer) *app {
	a := &app{
		out:    out,
		errOut: errOut,
		logger: log.NewWithOptions(errOut, log.Options{Prefix: "pfmctl"}),
	}
	a.open = a.openFromEnv
	return a
}

func (a *app) openFromEnv(ctx context.Context) (*services.LedgerService, error) {
	cli.LoadEnvFile()
	cfg := config.Load()
	if cfg.LogFormat == "text" {
		cfg.LogFormat = "pretty"
	}
	pfmlog.SetDefault(cli.SetupLogger(cfg, a.errOut).WithComponent(pfmlog.ComponentCLI))
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cli.NewLedger(ctx, cfg)
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "pfmctl",
		Short:         "Personal finance manager command-line interface",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			ledger, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			a.ledger = ledger
			return nil
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			if a.ledger == nil {
				return nil
			}
			return a.ledger.Close()
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}
	root.SetOut(a.out)
	root.SetErr(a.errOut)

	root.AddCommand(
		newSummaryCmd(a),
		newAddCmd(a),
		newGroupsCmd(a),
		newAdviceCmd(a),
		newExportCmd(a),
		newImportCmd(a),
		newSeedCmd(a),
	)
	return root
}

func main() {
	a := newApp(os.Stdout, os.Stderr)
	if err := newRootCmd(a).ExecuteContext(context.Background()); err != nil {
		a.logger.Error(err.Error())
		os.Exit(1)
	}
}
