package backend

import (
	"context"
	"time"

	"dtmoney/internal/sources"
)

// CleanupFunc releases a backend's resources.
type CleanupFunc func() error

// Result is an opened backend. Source is the cached view callers should
// use; Cache is the same decorator, exposed for invalidation and cleanup.
type Result struct {
	Source  sources.Source
	Cache   *sources.CachedSource
	Cleanup CleanupFunc
}

// Factory opens a backend from configuration.
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*Result, error)
}

type Config struct {
	Type Type

	DataDirectory string
	SQLiteDBPath  string
	DatabaseURL   string
	APIURL        string

	GoogleSpreadsheetID      string
	GoogleSheetName          string
	GoogleServiceAccountFile string
	GoogleServiceAccountJSON string

	CacheSize    int
	CacheTTL     time.Duration
	FetchTimeout time.Duration
}

type Type string

const (
	MemoryBackend   Type = "memory"
	SQLiteBackend   Type = "sqlite"
	PostgresBackend Type = "postgres"
	SheetsBackend   Type = "sheets"
	HTTPAPIBackend  Type = "httpapi"
)

func (t Type) String() string {
	return string(t)
}

func (t Type) IsValid() bool {
	switch t {
	case MemoryBackend, SQLiteBackend, PostgresBackend, SheetsBackend, HTTPAPIBackend:
		return true
	default:
		return false
	}
}
