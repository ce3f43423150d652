package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"bounty-watch/leadscout/internal/config"
	"bounty-watch/leadscout/internal/database"
	"bounty-watch/leadscout/internal/importer"
	"bounty-watch/leadscout/internal/ingest"
	"bounty-watch/leadscout/internal/notify"
	"bounty-watch/leadscout/internal/pitch"
	"bounty-watch/leadscout/internal/server"
	"bounty-watch/leadscout/internal/source"
	"bounty-watch/leadscout/internal/storage"
)

func init() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "2006-01-02 15:04:05"})
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
}

func main() {
	// Optional .env for local development; real deployments inject env vars.
	_ = godotenv.Load()

	cfg := config.DefaultConfig()

	importCmd := flag.NewFlagSet("import", flag.ExitOnError)
	importCmd.StringVar(&cfg.KeywordsCSVPath, "csv", config.GetEnvString("LEADSCOUT_CSV_PATH", config.DefaultKeywordsCSVPath),
		"Path to the keywords CSV file (env: LEADSCOUT_CSV_PATH)")
	importCmd.StringVar(&cfg.DBPath, "db", config.GetEnvString("LEADSCOUT_DB_PATH", config.DefaultDBPath),
		"Path to the SQLite database file (env: LEADSCOUT_DB_PATH)")

	var importLogLevelStr string
	importCmd.StringVar(&importLogLevelStr, "log-level", config.GetEnvString("LEADSCOUT_LOG_LEVEL", config.DefaultLogLevel),
		"Log level: debug, info, warn, error (env: LEADSCOUT_LOG_LEVEL)")

	scanCmd := flag.NewFlagSet("scan", flag.ExitOnError)
	scanCmd.StringVar(&cfg.DBPath, "db", config.GetEnvString("LEADSCOUT_DB_PATH", config.DefaultDBPath),
		"Path to the SQLite database file (env: LEADSCOUT_DB_PATH)")

	var scanLogLevelStr string
	scanCmd.StringVar(&scanLogLevelStr, "log-level", config.GetEnvString("LEADSCOUT_LOG_LEVEL", config.DefaultLogLevel),
		"Log level: debug, info, warn, error (env: LEADSCOUT_LOG_LEVEL)")

	var intervalMinutes int
	scanCmd.IntVar(&intervalMinutes, "interval", config.GetEnvInt("LEADSCOUT_INTERVAL", config.DefaultInterval),
		"Interval in minutes between scan cycles, 0 for one-shot mode (env: LEADSCOUT_INTERVAL)")

	scanCmd.StringVar(&cfg.Subreddits, "subreddits", cfg.Subreddits,
		"Subreddits to scan, joined with '+' (env: LEADSCOUT_SUBREDDITS)")

	scanCmd.IntVar(&cfg.FetchLimit, "limit", cfg.FetchLimit,
		"Posts to fetch per listing request (env: LEADSCOUT_FETCH_LIMIT)")

	serverCmd := flag.NewFlagSet("server", flag.ExitOnError)
	serverCmd.StringVar(&cfg.DBPath, "db", config.GetEnvString("LEADSCOUT_DB_PATH", config.DefaultDBPath),
		"Path to the SQLite database file (env: LEADSCOUT_DB_PATH)")

	serverCmd.StringVar(&cfg.ServerHost, "host", config.GetEnvString("LEADSCOUT_HOST", config.DefaultServerHost),
		"Host to bind the server to (env: LEADSCOUT_HOST)")

	serverCmd.IntVar(&cfg.ServerPort, "port", config.GetEnvInt("LEADSCOUT_PORT", config.DefaultServerPort),
		"Port to listen on (env: LEADSCOUT_PORT)")

	var serverLogLevelStr string
	serverCmd.StringVar(&serverLogLevelStr, "log-level", config.GetEnvString("LEADSCOUT_LOG_LEVEL", config.DefaultLogLevel),
		"Log level: debug, info, warn, error (env: LEADSCOUT_LOG_LEVEL)")

	if len(os.Args) < 2 {
		fmt.Println("Usage: leadscout [command] [options]")
		fmt.Println("Commands: import, scan, server")
		fmt.Println("\nFor command-specific options, use: leadscout [command] -h")
		os.Exit(1)
	}

	switch os.Args[1] {
	case "import":
		importCmd.Parse(os.Args[2:])

		if level, err := zerolog.ParseLevel(importLogLevelStr); err == nil {
			cfg.LogLevel = level
		}
		zerolog.SetGlobalLevel(cfg.LogLevel)

		if err := runImport(cfg); err != nil {
			log.Error().Err(err).Msg("Import failed")
			os.Exit(1)
		}

	case "scan":
		scanCmd.Parse(os.Args[2:])

		if level, err := zerolog.ParseLevel(scanLogLevelStr); err == nil {
			cfg.LogLevel = level
		}
		cfg.Interval = time.Duration(intervalMinutes) * time.Minute
		zerolog.SetGlobalLevel(cfg.LogLevel)

		if err := runScan(cfg); err != nil {
			log.Error().Err(err).Msg("Scanning failed")
			os.Exit(1)
		}

	case "server":
		serverCmd.Parse(os.Args[2:])

		if level, err := zerolog.ParseLevel(serverLogLevelStr); err == nil {
			cfg.LogLevel = level
		}
		zerolog.SetGlobalLevel(cfg.LogLevel)

		if err := runServer(cfg); err != nil {
			log.Error().Err(err).Msg("Server failed")
			os.Exit(1)
		}

	case "-h", "--help", "help":
		fmt.Println("Usage: leadscout [command] [options]")
		fmt.Println("Commands: import, scan, server")
		fmt.Println("\nFor command-specific options, use: leadscout [command] -h")
		os.Exit(0)

	default:
		log.Error().Str("command", os.Args[1]).Msg("Unknown command")
		fmt.Println("Available commands: import, scan, server")
		fmt.Println("\nFor command-specific options, use: leadscout [command] -h")
		os.Exit(1)
	}
}

// runImport loads watch-phrase rules from a CSV file into the store.
func runImport(cfg *config.Config) error {
	dbCfg := database.NewConfig(cfg.DBPath)
	db, err := database.NewDB(dbCfg)
	if err != nil {
		log.Error().Err(err).Str("path", cfg.DBPath).Msg("Failed to initialize database")
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()

	imp := importer.NewImporter(storage.NewRepository(db))
	return imp.ImportKeywords(context.Background(), cfg.KeywordsCSVPath)
}

// runScan executes the scan cycle either once or periodically based on configuration.
func runScan(cfg *config.Config) error {
	if err := cfg.ValidateScan(); err != nil {
		return err
	}

	if cfg.Interval <= 0 {
		log.Info().Msg("Running in one-shot mode")
	} else {
		log.Info().Int64("interval_minutes", int64(cfg.Interval.Minutes())).Msg("Running in periodic mode")
	}

	dbCfg := database.NewConfig(cfg.DBPath)
	db, err := database.NewDB(dbCfg)
	if err != nil {
		log.Error().Err(err).Str("path", cfg.DBPath).Msg("Failed to initialize database")
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()

	repo := storage.NewRepository(db)
	notifier := notify.NewWebhookNotifier(cfg.WebhookURL, cfg.WebhookTimeout)
	pipeline := ingest.NewPipeline(repo, notifier, cfg.WebhookTimeout)
	fetcher := source.NewClient(source.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		UserAgent:    cfg.UserAgent,
	})
	scanner := ingest.NewScanner(fetcher, repo, pipeline, cfg.Subreddits, cfg.FetchLimit)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-shutdown
		log.Info().Str("signal", sig.String()).Msg("Shutdown signal received")
		cancel() // Cancel the context to stop scanning
	}()

	if err := runScanCycle(ctx, scanner); err != nil {
		if errors.Is(err, context.Canceled) {
			log.Info().Msg("Scan cycle canceled by shutdown signal")
			return nil
		}
		return err
	}

	if cfg.Interval <= 0 {
		log.Info().Msg("One-shot scan completed, exiting")
		return nil
	}

	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()

	log.Info().
		Dur("interval", cfg.Interval).
		Time("next_run", time.Now().Add(cfg.Interval)).
		Msg("Waiting for next scan cycle")

	for {
		select {
		case <-ticker.C:
			log.Info().Msg("Starting scheduled scan cycle")

			if err := runScanCycle(ctx, scanner); err != nil {
				if errors.Is(err, context.Canceled) {
					log.Info().Msg("Scan cycle canceled by shutdown signal")
					return nil
				}
				log.Error().Err(err).Msg("Scan cycle failed")
				// Continue to the next cycle rather than exiting
			}

			log.Info().
				Time("next_run", time.Now().Add(cfg.Interval)).
				Msg("Waiting for next scan cycle")

		case <-ctx.Done():
			log.Info().Msg("Shutting down periodic scanning")
			return nil
		}
	}
}

// runScanCycle executes a single scan cycle with a bounded deadline.
func runScanCycle(ctx context.Context, scanner *ingest.Scanner) error {
	cycleCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	startTime := time.Now()
	summary, err := scanner.RunCycle(cycleCtx)
	duration := time.Since(startTime)

	log.Info().
		Dur("duration", duration).
		Int("inserted", summary.Inserted).
		Int("skipped", summary.Skipped).
		Msg("Scan cycle finished")

	if err != nil {
		if ctxErr := cycleCtx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
			return ctx.Err() // Propagate cancellation
		}
		return fmt.Errorf("scan error: %w", err)
	}
	return nil
}

// runServer starts the dashboard HTTP API server with the provided configuration.
func runServer(cfg *config.Config) error {
	log.Debug().Msg("Starting server with debug logging enabled")

	dbCfg := database.NewConfig(cfg.DBPath)

	db, err := database.NewDB(dbCfg)
	if err != nil {
		log.Error().Err(err).Str("path", cfg.DBPath).Msg("Failed to initialize database")
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()

	repo := storage.NewRepository(db)
	generator := pitch.NewGenerator(pitch.Config{
		BaseURL:       cfg.AIBaseURL,
		APIKey:        cfg.AIAPIKey,
		Model:         cfg.AIModel,
		Timeout:       cfg.AITimeout,
		DemoVideoLink: cfg.DemoVideoLink,
	})

	return server.RunServer(repo, generator, cfg.ListenAddr(), log.Logger, cfg.APIKey, cfg.FreshWindow)
}
