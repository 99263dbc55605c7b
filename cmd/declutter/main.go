package main

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"
	"go.uber.org/automaxprocs/maxprocs"
	"golang.org/x/sync/errgroup"

	"github.com/zombor/declutter/internal/item"
	"github.com/zombor/declutter/internal/scanning"
	"github.com/zombor/declutter/internal/upload"
)

//go:embed VERSION.txt
var versionFile string

var version = strings.TrimSpace(versionFile)

func main() {
	// Check for version flag before parsing other flags
	for _, arg := range os.Args[1:] {
		if arg == "--version" || arg == "-version" || arg == "-v" {
			fmt.Println(version)
			os.Exit(0)
		}
	}

	_, _ = maxprocs.Set()

	fs := ff.NewFlagSet("declutter")
	var (
		port           = fs.IntLong("port", 8080, "HTTP server port")
		dbPath         = fs.StringLong("db", "declutter.db", "Database file path")
		storagePath    = fs.StringLong("storage", "./uploads", "Photo storage directory path")
		publicURL      = fs.StringLong("public-url", "", "Public base URL for upload and image links (default http://localhost:<port>)")
		uploadSecret   = fs.StringLong("upload-secret", "", "Secret used to sign upload URLs (random per process if empty)")
		scannerType    = fs.StringLong("scanner", "gemini", "Vision model: 'gemini', 'ollama' or 'openai'")
		geminiKey      = fs.StringLong("gemini-key", "", "Google Gemini API key (or set GEMINI_API_KEY env var)")
		geminiModel    = fs.StringLong("gemini-model", "gemini-2.5-pro", "Google Gemini model name")
		ollamaURL      = fs.StringLong("ollama-url", "http://localhost:11434", "Ollama API base URL")
		ollamaModel    = fs.StringLong("ollama-model", "llava", "Ollama model name (e.g., llava, llava-phi3, qwen2-vl)")
		openaiURL      = fs.StringLong("openai-url", "https://api.openai.com/v1", "OpenAI-compatible API base URL")
		openaiKey      = fs.StringLong("openai-key", "", "OpenAI API key (or set OPENAI_API_KEY env var)")
		openaiModel    = fs.StringLong("openai-model", "gpt-4o", "OpenAI model name")
		authUser       = fs.StringLong("auth-user", "", "Basic auth username (optional)")
		authPass       = fs.StringLong("auth-pass", "", "Basic auth password (optional)")
		env            = fs.StringLong("env", "development", "Environment: 'development' or 'production'")
		logLevel       = fs.StringLong("log-level", "info", "Log level: debug, info, warn or error")
		dailyScanLimit = fs.IntLong("daily-scan-limit", 50, "Daily scan limit reported to clients")
		policyFile     = fs.StringLong("policy-file", "", "TOML file overriding the confidence policy terms (optional)")
		maxAttempts    = fs.IntLong("max-attempts", 3, "Identification attempts per scan")
		retryBaseDelay = fs.DurationLong("retry-base-delay", time.Second, "Delay before the first retry, doubled for each later retry")
		retryJitter    = fs.Float64Long("retry-jitter", 0, "Randomization factor applied to retry delays (0 disables)")
		_              = fs.StringLong("config", "", "Config file (optional)")
		showVersion    = fs.BoolLong("version", "Show version information")
	)

	if err := ff.Parse(fs, os.Args[1:],
		ff.WithEnvVarPrefix("DECLUTTER"),
		ff.WithConfigFileFlag("config"),
		ff.WithConfigFileParser(ff.PlainParser),
	); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(fs))
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	// Check version flag after parsing
	if *showVersion {
		fmt.Println(version)
		os.Exit(0)
	}

	production := *env == "production"
	if err := setupLogging(*logLevel, production); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	// Initialize database
	slog.Info("Initializing database...", "path", *dbPath)
	db, err := item.NewBoltDB(*dbPath)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	// Initialize vision model based on type
	fetcher := scanning.NewFetcher()
	var model scanning.Model
	switch *scannerType {
	case "gemini":
		apiKey := *geminiKey
		if apiKey == "" {
			apiKey = os.Getenv("GEMINI_API_KEY")
		}
		if apiKey == "" {
			slog.Error("Gemini API key is required. Set --gemini-key flag or GEMINI_API_KEY environment variable")
			os.Exit(1)
		}
		slog.Info("Initializing Gemini model...", "model", *geminiModel)
		model, err = scanning.NewGemini(apiKey, *geminiModel, fetcher)
	case "ollama":
		slog.Info("Initializing Ollama model...", "url", *ollamaURL, "model", *ollamaModel)
		model, err = scanning.NewOllama(*ollamaURL, *ollamaModel, fetcher)
	case "openai":
		apiKey := *openaiKey
		if apiKey == "" {
			apiKey = os.Getenv("OPENAI_API_KEY")
		}
		slog.Info("Initializing OpenAI model...", "url", *openaiURL, "model", *openaiModel)
		model, err = scanning.NewOpenAI(*openaiURL, apiKey, *openaiModel)
	default:
		slog.Error("Invalid scanner type", "type", *scannerType, "valid", "gemini, ollama or openai")
		os.Exit(1)
	}
	if err != nil {
		slog.Error("Failed to initialize model", "scanner", *scannerType, "error", err)
		os.Exit(1)
	}
	defer model.Close()

	// Initialize confidence policy
	policy := scanning.DefaultPolicy()
	if *policyFile != "" {
		terms, err := scanning.LoadTerms(*policyFile)
		if err == nil {
			policy, err = scanning.NewPolicy(terms)
		}
		if err != nil {
			slog.Error("Failed to load policy terms", "path", *policyFile, "error", err)
			os.Exit(1)
		}
		slog.Info("Loaded policy terms", "path", *policyFile)
	}

	retry := scanning.DefaultRetryPolicy()
	retry.MaxAttempts = *maxAttempts
	retry.BaseDelay = *retryBaseDelay
	retry.Jitter = *retryJitter
	pipeline := scanning.NewPipeline(scanning.NewClient(model, policy), retry)

	// Initialize photo uploads
	slog.Info("Initializing storage...", "path", *storagePath)
	store, err := upload.NewLocalStorage(*storagePath)
	if err != nil {
		slog.Error("Failed to initialize storage", "error", err)
		os.Exit(1)
	}
	baseURL := *publicURL
	if baseURL == "" {
		baseURL = fmt.Sprintf("http://localhost:%d", *port)
	}
	secret := *uploadSecret
	if secret == "" {
		slog.Warn("No upload secret configured, upload URLs will not survive a restart")
		secret = uuid.NewString()
	}
	presigner, err := upload.NewPresigner(baseURL, secret)
	if err != nil {
		slog.Error("Failed to initialize uploads", "error", err)
		os.Exit(1)
	}
	uploads := upload.NewService(presigner, store)

	// Initialize service and server
	itemService := item.NewService(db, pipeline, uploads)
	basicAuth := item.BasicAuth{
		Username: *authUser,
		Password: *authPass,
	}
	opts := item.DefaultOptions()
	opts.Production = production
	opts.DailyScanLimit = *dailyScanLimit
	server := item.NewServer(itemService, uploads, basicAuth, opts)
	httpServer := server.HTTPServer(fmt.Sprintf(":%d", *port))

	// Create context that cancels on SIGINT or SIGTERM
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("Server started", "address", httpServer.Addr, "public_url", baseURL)
		if *authUser != "" || *authPass != "" {
			slog.Info("Basic auth enabled", "user", *authUser)
		}
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serving http: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		slog.Info("Shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		slog.Error("Shutdown with error", "error", err)
		os.Exit(1)
	}
	slog.Info("Shutdown complete")
}

// setupLogging installs the default slog logger
func setupLogging(level string, production bool) error {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return fmt.Errorf("parsing log level: %w", err)
	}

	opts := &slog.HandlerOptions{Level: lvl}
	var handler slog.Handler = slog.NewTextHandler(os.Stderr, opts)
	if production {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
	return nil
}
