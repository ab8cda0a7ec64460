package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/graysonchalmers/art-metadata-batch/config"
	"github.com/graysonchalmers/art-metadata-batch/internal/batch"
	"github.com/graysonchalmers/art-metadata-batch/internal/catalog"
	"github.com/graysonchalmers/art-metadata-batch/internal/export"
	"github.com/graysonchalmers/art-metadata-batch/internal/ingest"
	"github.com/graysonchalmers/art-metadata-batch/internal/llm"
	"github.com/graysonchalmers/art-metadata-batch/internal/server"
	"github.com/graysonchalmers/art-metadata-batch/internal/storage"
)

const defaultMaxUploadBytes = 20 << 20 // 20 MiB

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	config.LoadEnvFile()

	if os.Getenv("GEMINI_API_KEY") == "" {
		log.Fatal().Msg("GEMINI_API_KEY environment variable is required")
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "8787"
	}
	dbPath := os.Getenv("ARTBATCH_DB_PATH")
	if dbPath == "" {
		dbPath = "artbatch.db"
	}
	concurrency := envInt("BATCH_CONCURRENCY", 1)
	maxUpload := int64(envInt("MAX_UPLOAD_BYTES", defaultMaxUploadBytes))
	watchDir := os.Getenv("WATCH_DIR")

	// Create context that cancels on SIGINT or SIGTERM
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cacheStore, err := storage.NewSQLiteStore(dbPath)
	if err != nil {
		log.Fatal().Err(err).Str("dbPath", dbPath).Msg("failed to open analysis cache")
	}
	defer cacheStore.Close()
	log.Info().Str("dbPath", dbPath).Msg("analysis cache initialized")

	geminiAnalyzer, err := llm.NewGeminiAnalyzer(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize gemini analyzer")
	}
	analyzer := llm.NewCachedAnalyzer(geminiAnalyzer, cacheStore)
	log.Info().Msg("gemini analyzer initialized with caching")

	store := catalog.NewStore()
	runner := batch.NewRunner(store, analyzer, concurrency)
	handler := server.New(store, runner, export.NewDefaultPipeline(), server.NewFetcher(maxUpload), maxUpload)

	srv := &http.Server{
		Addr:    ":" + port,
		Handler: handler.Routes(),
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info().Str("addr", srv.Addr).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancelShutdown()
		return srv.Shutdown(shutdownCtx)
	})

	if watchDir != "" {
		watcher := ingest.NewWatcher(watchDir, store)
		g.Go(func() error {
			if err := watcher.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("shutdown with error")
		os.Exit(1)
	}
	log.Info().Msg("shutdown complete")
}

func envInt(name string, def int) int {
	v := os.Getenv(name)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		log.Warn().Str("name", name).Str("value", v).Int("default", def).Msg("invalid integer env var")
		return def
	}
	return n
}
