// Package app wires the configured collaborators into a ready pipeline for the binaries.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/joseph-ayodele/expense-reconciler/internal/common"
	"github.com/joseph-ayodele/expense-reconciler/internal/core/anomaly"
	"github.com/joseph-ayodele/expense-reconciler/internal/core/ocr"
	"github.com/joseph-ayodele/expense-reconciler/internal/core/reconcile"
	"github.com/joseph-ayodele/expense-reconciler/internal/export"
	"github.com/joseph-ayodele/expense-reconciler/internal/repository"
)

// InMemoryDSN is used when the caller asks for a throwaway database.
const InMemoryDSN = "file::memory:"

type App struct {
	Config   *common.Config
	DB       *repository.DB
	Expenses repository.ExpenseRepository
	Usage    reconcile.UsageStore
	Pipeline *reconcile.Orchestrator
	Exporter *export.Service
	logger   *slog.Logger
}

// New opens and migrates the database and builds the pipeline. inmem swaps the
// configured DSN for an in-memory SQLite database.
func New(ctx context.Context, cfg *common.Config, inmem bool, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	dbCfg := repository.Config{
		DSN:             cfg.Database.DSN,
		MaxConns:        cfg.Database.MaxConns,
		MinConns:        cfg.Database.MinConns,
		MaxConnLifetime: cfg.Database.MaxConnLifetime,
		MaxConnIdleTime: cfg.Database.MaxConnIdleTime,
		DialTimeout:     cfg.Database.DialTimeout,
	}
	if inmem {
		dbCfg.DSN = InMemoryDSN
	}
	db, err := repository.Open(ctx, dbCfg, logger)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Migrate(ctx); err != nil {
		db.Close(logger)
		return nil, err
	}

	engine, err := NewEngine(cfg.OCR, logger)
	if err != nil {
		db.Close(logger)
		return nil, err
	}
	runner := ocr.ExecRunner{}
	extractor := ocr.NewExtractor(ocr.Config{
		DPI:               cfg.OCR.DPI,
		MaxPages:          cfg.OCR.MaxPages,
		MinImageDimension: cfg.OCR.MinImageDimension,
		PageTimeout:       cfg.OCR.PageTimeout,
	}, engine, logger, ocr.WithPageRenderer(ocr.NewPPMRenderer(cfg.OCR.PDFToPPMBin, runner, logger)))

	expenses := repository.NewExpenseRepository(db, logger)
	usage := repository.NewSQLUsageStore(db, logger)
	pipeline := reconcile.New(reconcile.Config{
		DuplicateWindow:    cfg.Reconcile.DuplicateWindow,
		AnomalyLookback:    cfg.Reconcile.AnomalyLookback,
		DuplicateThreshold: cfg.Reconcile.DuplicateThreshold,
		Anomaly:            anomaly.DefaultConfig(),
	}, extractor, expenses, logger, reconcile.WithUsageStore(usage))

	return &App{
		Config:   cfg,
		DB:       db,
		Expenses: expenses,
		Usage:    usage,
		Pipeline: pipeline,
		Exporter: export.NewService(expenses, logger),
		logger:   logger,
	}, nil
}

// NewEngine builds the configured OCR engine.
func NewEngine(cfg common.OCRConfig, logger *slog.Logger) (ocr.Engine, error) {
	switch cfg.Engine {
	case common.OCREngineTesseract, "":
		return ocr.NewTesseractEngine(ocr.TesseractConfig{
			Bin:         cfg.TesseractBin,
			Lang:        cfg.Lang,
			TessdataDir: cfg.TessdataDir,
			PSM:         6,
			OEM:         1,
		}, ocr.ExecRunner{}, logger), nil
	case common.OCREngineRemote:
		return ocr.NewRemoteEngine(ocr.RemoteConfig{
			URL:      cfg.RemoteURL,
			Token:    cfg.RemoteToken,
			Language: cfg.Lang,
			Timeout:  cfg.RemoteTimeout,
		}, nil, logger), nil
	default:
		return nil, fmt.Errorf("unknown OCR engine %q", cfg.Engine)
	}
}

func (a *App) Close() {
	a.DB.Close(a.logger)
}
