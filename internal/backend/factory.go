package backend

import (
	"context"
	"fmt"
	"log/slog"

	"dtmoney/internal/sources"
	gsheet "dtmoney/internal/sources/google"
	"dtmoney/internal/sources/httpapi"
	"dtmoney/internal/sources/memory"
	"dtmoney/internal/storage"
	"dtmoney/internal/storage/postgres"
)

type DefaultFactory struct {
	logger *slog.Logger
}

func NewFactory(logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{logger: logger.With("component", "backend")}
}

// CreateBackend opens the configured source and wraps it in a CachedSource.
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*Result, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	var (
		src     sources.Source
		cleanup CleanupFunc
		err     error
	)
	switch config.Type {
	case MemoryBackend:
		src = f.createMemoryBackend(config)
	case SQLiteBackend:
		src, cleanup, err = f.createSQLiteBackend(ctx, config)
	case PostgresBackend:
		src, cleanup, err = f.createPostgresBackend(ctx, config)
	case SheetsBackend:
		src, err = f.createSheetsBackend(ctx, config)
	case HTTPAPIBackend:
		src, err = f.createHTTPAPIBackend(config)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
	if err != nil {
		return nil, err
	}

	size := config.CacheSize
	if size <= 0 {
		size = 256
	}
	cached := sources.NewCachedSource(src, size, config.CacheTTL, config.FetchTimeout)

	return &Result{
		Source:  cached,
		Cache:   cached,
		Cleanup: cleanup,
	}, nil
}

func (f *DefaultFactory) createMemoryBackend(config Config) sources.Source {
	dataDir := config.DataDirectory
	if dataDir == "" {
		dataDir = "data"
	}
	store := memory.NewFromFiles(dataDir)
	f.logger.Info("Initialized memory backend", "data_directory", dataDir, "transactions", store.Len())
	return store
}

func (f *DefaultFactory) createSQLiteBackend(ctx context.Context, config Config) (sources.Source, CleanupFunc, error) {
	repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
	if err != nil {
		return nil, nil, fmt.Errorf("initialize SQLite repository: %w", err)
	}
	n, err := repo.Count(ctx)
	if err != nil {
		repo.Close()
		return nil, nil, fmt.Errorf("read SQLite repository: %w", err)
	}
	f.logger.Info("Initialized SQLite backend", "db_path", config.SQLiteDBPath, "transactions", n)
	return repo, repo.Close, nil
}

func (f *DefaultFactory) createPostgresBackend(ctx context.Context, config Config) (sources.Source, CleanupFunc, error) {
	repo, err := postgres.Open(ctx, config.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("initialize Postgres repository: %w", err)
	}
	f.logger.Info("Initialized Postgres backend")
	return repo, repo.Close, nil
}

func (f *DefaultFactory) createSheetsBackend(ctx context.Context, config Config) (sources.Source, error) {
	cli, err := gsheet.New(ctx, gsheet.Config{
		SpreadsheetID:      config.GoogleSpreadsheetID,
		SheetName:          config.GoogleSheetName,
		ServiceAccountJSON: config.GoogleServiceAccountJSON,
		ServiceAccountFile: config.GoogleServiceAccountFile,
	})
	if err != nil {
		return nil, fmt.Errorf("initialize Google Sheets client: %w", err)
	}
	f.logger.Info("Initialized Google Sheets backend", "sheet", config.GoogleSheetName)
	return cli, nil
}

func (f *DefaultFactory) createHTTPAPIBackend(config Config) (sources.Source, error) {
	cli, err := httpapi.New(config.APIURL)
	if err != nil {
		return nil, fmt.Errorf("initialize transactions API client: %w", err)
	}
	f.logger.Info("Initialized REST backend", "url", config.APIURL)
	return cli, nil
}
