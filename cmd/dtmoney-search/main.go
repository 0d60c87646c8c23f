// Command dtmoney-search is an interactive terminal search over the
// configured transaction backend.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/log"

	"dtmoney/internal/backend"
	"dtmoney/internal/cli"
	"dtmoney/internal/config"
	"dtmoney/internal/store"
	"dtmoney/internal/summary"
)

func main() {
	os.Exit(execute(prompt))
}

// execute wires the search loop and returns the exit code once its
// deferred cleanups have run.
func execute(ask promptFunc) int {
	cli.LoadEnvFile()

	logger := log.NewWithOptions(os.Stderr, log.Options{Prefix: "dtmoney-search"})
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load configuration", "error", err)
	}
	if lvl, err := log.ParseLevel(cfg.LogLevel); err == nil {
		logger.SetLevel(lvl)
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal("Configuration validation failed", "error", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Fatal("Invalid backend configuration", "error", err)
	}
	be, err := backend.NewFactory(slog.New(logger)).CreateBackend(ctx, bcfg)
	if err != nil {
		logger.Fatal("Failed to initialize backend", "error", err, "backend", cfg.DataBackend)
	}
	if be.Cleanup != nil {
		defer func() {
			if err := be.Cleanup(); err != nil {
				logger.Warn("Backend cleanup failed", "error", err)
			}
		}()
	}

	st := store.New(be.Source, store.WithFetchTimeout(cfg.FetchTimeout))
	defer st.Close()

	if err := run(ctx, logger, st, summary.NewAggregator(st), ask); err != nil {
		logger.Error("Search failed", "error", err)
		return 1
	}
	return 0
}

// prompt asks for the next query. huh.ErrUserAborted means ctrl-c.
func prompt(ctx context.Context, previous string) (string, error) {
	query := previous
	input := huh.NewInput().
		Title("Busque por transações").
		Description("Descrição ou categoria. Vazio lista tudo; vazio de novo sai.").
		Placeholder("ex.: aluguel").
		CharLimit(200).
		Value(&query)
	if err := huh.NewForm(huh.NewGroup(input)).RunWithContext(ctx); err != nil {
		return "", err
	}
	return query, nil
}

type promptFunc func(ctx context.Context, previous string) (string, error)

// run loops prompt, fetch, print until the user submits an empty query
// while already looking at the unfiltered list, or aborts.
func run(ctx context.Context, logger *log.Logger, st *store.Store, agg *summary.Aggregator, ask promptFunc) error {
	if err := st.Fetch(ctx, ""); err != nil {
		logger.Warn("Initial load failed", "error", err)
	} else {
		fmt.Println(render(agg.Current()))
	}

	for {
		query, err := ask(ctx, st.Snapshot().Query)
		switch {
		case errors.Is(err, huh.ErrUserAborted), errors.Is(err, context.Canceled):
			return nil
		case err != nil:
			return fmt.Errorf("read query: %w", err)
		}

		snap := st.Snapshot()
		if query == "" && snap.Query == "" && snap.Version > 0 {
			return nil
		}

		if err := st.Fetch(ctx, query); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			// The previous list stays; let the user try again.
			logger.Error("Fetch failed", "query", query, "error", err)
			continue
		}
		logger.Debug("Fetched", "query", query, "version", st.Snapshot().Version)
		fmt.Println(render(agg.Current()))
	}
}
