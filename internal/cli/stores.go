package cli

import (
	"context"
	"fmt"

	"pfm/internal/advice"
	"pfm/internal/amqp"
	"pfm/internal/config"
	pfmlog "pfm/internal/log"
	ports "pfm/internal/sheets"
	"pfm/internal/sheets/google"
	"pfm/internal/sheets/memory"
	"pfm/internal/sheets/xlsx"
	"pfm/internal/services"
	"pfm/internal/storage"
)

// OpenStore builds the TransactionStore for backend. file is the workbook
// path used by the xlsx backend. Stores holding resources implement
// io.Closer.
func OpenStore(ctx context.Context, cfg *config.Config, backend, file string) (ports.TransactionStore, error) {
	switch backend {
	case "xlsx":
		return xlsx.New(file), nil
	case "memory":
		return memory.New(), nil
	case "sqlite":
		repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite store: %w", err)
		}
		return repo, nil
	case "sheets":
		client, err := google.New(ctx, google.Config{
			SpreadsheetID:   cfg.GoogleSpreadsheetID,
			SheetName:       cfg.GoogleSheetName,
			CredentialsJSON: cfg.GoogleServiceAccountJSON,
			CredentialsFile: cfg.GoogleServiceAccountFile,
		})
		if err != nil {
			return nil, fmt.Errorf("open sheets store: %w", err)
		}
		return client, nil
	default:
		return nil, fmt.Errorf("unknown backend %q", backend)
	}
}

// OpenPrimaryStore opens the DATA_BACKEND store.
func OpenPrimaryStore(ctx context.Context, cfg *config.Config) (ports.TransactionStore, error) {
	return OpenStore(ctx, cfg, cfg.DataBackend, cfg.TransactionsFile)
}

// NewAdviceClient builds the advice client from configuration.
func NewAdviceClient(cfg *config.Config) *advice.Client {
	return advice.New(advice.Config{
		BaseURL:   cfg.AdviceBaseURL,
		APIKey:    cfg.AdviceAPIKey,
		Model:     cfg.AdviceModel,
		MaxTokens: cfg.AdviceMaxTokens,
		Timeout:   cfg.AdviceTimeout,
	})
}

// NewLedger wires the ledger service for the configured primary store. When
// AMQP is configured and reachable, adds publish transaction events; an
// unreachable broker is logged and events are skipped.
func NewLedger(ctx context.Context, cfg *config.Config) (*services.LedgerService, error) {
	categories, err := config.LoadCategories(cfg.CategoriesFile)
	if err != nil {
		return nil, err
	}
	store, err := OpenPrimaryStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	var publisher services.Publisher
	if cfg.AMQPEnabled() {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			// Adds still succeed without events; the worker reconciles.
			pfmlog.FromContext(ctx).WarnContext(ctx, "AMQP unavailable, transaction events disabled", "error", err)
		} else {
			publisher = client
		}
	}

	return services.NewLedgerService(store, categories, NewAdviceClient(cfg), publisher), nil
}
