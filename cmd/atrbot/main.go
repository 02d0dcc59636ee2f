// Package main is the atrbot CLI entry point.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/hyperjump/atrbot/internal/bot"
	"github.com/hyperjump/atrbot/internal/cli"
	"github.com/hyperjump/atrbot/internal/config"
	"github.com/hyperjump/atrbot/internal/conversation"
	"github.com/hyperjump/atrbot/internal/embedding"
	"github.com/hyperjump/atrbot/internal/extract"
	"github.com/hyperjump/atrbot/internal/index"
	"github.com/hyperjump/atrbot/internal/indexer"
	"github.com/hyperjump/atrbot/internal/llm"
	"github.com/hyperjump/atrbot/internal/models"
	"github.com/hyperjump/atrbot/internal/rag"
	"github.com/hyperjump/atrbot/internal/retry"
	"github.com/hyperjump/atrbot/internal/search"
	"github.com/hyperjump/atrbot/internal/server"
	"github.com/hyperjump/atrbot/internal/storage"
	"github.com/hyperjump/atrbot/internal/telegram"
	"github.com/hyperjump/atrbot/pkg/utils"
	"go.uber.org/zap"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/atrbot/config.yaml"

// loadConfig loads .env, then the config at path. When path is the default,
// config.yaml in the current directory wins if present; with neither file the
// config comes from defaults and the environment alone.
func loadConfig(path string) (*config.Config, string, error) {
	if err := config.LoadDotEnv(".env"); err != nil {
		return nil, "", err
	}
	var (
		cfg      *config.Config
		resolved = path
		err      error
	)
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			if fallback := filepath.Join(cwd, "config.yaml"); fileExists(fallback) {
				resolved = fallback
			}
		}
		if !fileExists(resolved) {
			resolved = ""
		}
	}
	if resolved == "" {
		cfg = config.Default()
	} else if cfg, err = config.Load(resolved); err != nil {
		return nil, "", err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", fmt.Errorf("invalid config: %w", err)
	}
	return cfg, resolved, nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	args := os.Args[2:]
	var err error
	switch os.Args[1] {
	case "init":
		err = runInit(args)
	case "ingest":
		err = runIngest(args)
	case "serve":
		err = runServe(args)
	case "search":
		err = runSearch(args)
	case "ask":
		err = runAsk(args)
	case "status":
		err = runStatus(args)
	case "version", "--version", "-v":
		fmt.Printf("atrbot version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// commandSetup parses the common flags and returns the config and a logger.
func commandSetup(fs *flag.FlagSet, args []string) (*config.Config, *zap.Logger, error) {
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	if err := fs.Parse(reorderArgs(args)); err != nil {
		return nil, nil, err
	}
	cfg, resolved, err := loadConfig(*configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	logger, err := utils.NewLogger(cfg.Debug || *debug)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create logger: %w", err)
	}
	logger.Debug("config loaded", zap.String("config_path", resolved))
	return cfg, logger, nil
}

// reorderArgs moves flags that follow positional arguments to the front so
// that "atrbot search ayuno -k 2" parses the same as "atrbot search -k 2 ayuno".
func reorderArgs(args []string) []string {
	for i, a := range args {
		if len(a) > 0 && a[0] == '-' {
			if i == 0 {
				return args
			}
			reordered := make([]string, 0, len(args))
			reordered = append(reordered, args[i:]...)
			reordered = append(reordered, args[:i]...)
			return reordered
		}
	}
	return args
}

// buildQuery joins positional args so quoting is optional.
func buildQuery(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

func runInit(args []string) error {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	out := fs.String("out", "config.yaml", "where to write the config file")
	force := fs.Bool("force", false, "overwrite an existing file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := config.LoadDotEnv(".env"); err != nil {
		return err
	}
	if err := writeDefaultConfig(*out, *force); err != nil {
		return err
	}
	fmt.Printf("Wrote %s\n", *out)
	return nil
}

// writeDefaultConfig saves the defaults (with environment overrides applied)
// to path. Secrets are never written.
func writeDefaultConfig(path string, force bool) error {
	if fileExists(path) && !force {
		return fmt.Errorf("%s already exists (use -force to overwrite)", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	return config.Save(path, config.Default())
}

func runIngest(args []string) error {
	fs := flag.NewFlagSet("ingest", flag.ExitOnError)
	dataDir := fs.String("data", "", "PDF directory (default: data.directory from config)")
	outDir := fs.String("out", "", "index directory (default: index.path from config)")
	cfg, logger, err := commandSetup(fs, args)
	if err != nil {
		return err
	}
	defer logger.Sync()
	if *dataDir != "" {
		cfg.Data.Directory = *dataDir
	}
	if *outDir != "" {
		cfg.Index.Path = *outDir
	}
	if err := cfg.ValidateCredentials(config.NeedEmbedding); err != nil {
		return err
	}

	embedder, err := embedding.New(cfg.Embedding)
	if err != nil {
		return fmt.Errorf("failed to create embedder: %w", err)
	}
	defer embedder.Close()
	chunker, err := indexer.NewChunker(cfg.Chunking.Size, cfg.Chunking.OverlapSize(), cfg.Chunking.Separators)
	if err != nil {
		return err
	}
	ix := indexer.NewIndexer(
		extract.NewExtractor(extract.WithLogger(logger)),
		chunker,
		embedder,
		indexer.WithIndexType(cfg.Index.Type),
		indexer.WithLogger(logger),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	idx, report, err := ix.Build(ctx, cfg.Data.Directory)
	if report != nil {
		for _, f := range report.Failed {
			fmt.Printf("Failed: %s: %v\n", f.Source, f.Err)
		}
		for _, s := range report.Skipped {
			fmt.Printf("Skipped (no text): %s\n", s)
		}
		for _, id := range report.Dropped {
			fmt.Printf("Dropped (empty embedding): %s\n", id)
		}
	}
	if err != nil {
		return err
	}
	defer idx.Close()
	if err := idx.Save(ctx, cfg.Index.Path); err != nil {
		return fmt.Errorf("failed to save index: %w", err)
	}
	fmt.Printf("Indexed %d documents into %d chunks in %s\n", report.Documents, report.Chunks, report.Duration.Round(time.Millisecond))
	fmt.Printf("Index saved to %s\n", cfg.Index.Path)
	return nil
}

// pipeline is the query-time component graph.
type pipeline struct {
	embedder  embedding.Embedder
	index     *index.Index
	retriever *search.Retriever
	provider  *llm.GuardedProvider
	generator *rag.Generator
}

// openPipeline loads the saved index and the embedder that must match it.
// The model provider is created only when withLLM is set.
func openPipeline(ctx context.Context, cfg *config.Config, logger *zap.Logger, withLLM bool) (*pipeline, error) {
	embedder, err := embedding.New(cfg.Embedding)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}
	p := &pipeline{embedder: embedder}
	p.index, err = index.Load(ctx, cfg.Index.Path)
	if err != nil {
		p.Close()
		if errors.Is(err, index.ErrNotFound) {
			return nil, fmt.Errorf("%w; run 'atrbot ingest' first", err)
		}
		return nil, fmt.Errorf("failed to load index: %w", err)
	}
	if err := p.index.CheckEmbedder(embedder); err != nil {
		p.Close()
		return nil, err
	}
	p.retriever = search.NewRetriever(embedder, p.index, cfg.Retrieval.TopK, search.WithLogger(logger))
	if withLLM {
		p.provider, err = llm.NewProvider(ctx, cfg.LLM, logger)
		if err != nil {
			p.Close()
			return nil, err
		}
		p.generator = rag.NewGenerator(p.retriever, p.provider,
			rag.WithTopK(cfg.Retrieval.TopK),
			rag.WithMinScore(cfg.Retrieval.MinScore),
			rag.WithLogger(logger))
	}
	stats := p.index.Stats()
	logger.Info("index loaded",
		zap.String("path", cfg.Index.Path),
		zap.String("model", p.index.Manifest().EmbeddingModel),
		zap.Int("documents", stats.Documents),
		zap.Int("chunks", stats.Chunks))
	return p, nil
}

// Close releases every component that was opened.
func (p *pipeline) Close() {
	if p.provider != nil {
		_ = p.provider.Close()
	}
	if p.index != nil {
		_ = p.index.Close()
	}
	if p.embedder != nil {
		_ = p.embedder.Close()
	}
}

func runServe(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	cfg, logger, err := commandSetup(fs, args)
	if err != nil {
		return err
	}
	defer logger.Sync()
	if err := cfg.ValidateCredentials(config.NeedLLM | config.NeedTelegram | config.NeedEmbedding); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	p, err := openPipeline(ctx, cfg, logger, true)
	if err != nil {
		return err
	}
	defer p.Close()

	client := telegram.NewClient(cfg.Telegram.Token,
		telegram.WithBaseURL(cfg.Telegram.APIURL),
		telegram.WithMaxRetryWait(cfg.Telegram.MaxRetryWait),
		telegram.WithHTTPClient(&http.Client{Timeout: time.Duration(cfg.Telegram.PollTimeout+15) * time.Second}),
		telegram.WithLogger(logger))
	me, err := client.GetMe(ctx)
	if err != nil {
		return fmt.Errorf("telegram token check failed: %w", err)
	}
	logger.Info("connected to telegram", zap.String("bot", me.Username))

	sessions := conversation.NewSessions(conversation.NewWriter(cfg.Bot.ConversationsDir), conversation.WithLogger(logger))
	sweeper, err := conversation.NewSweeper(sessions, cfg.Bot.SessionIdleTimeout, sweepInterval(cfg.Bot.SessionIdleTimeout), logger)
	if err != nil {
		return err
	}
	sweeper.Start()
	defer sweeper.Stop()

	if cfg.Server.Enabled {
		srv := server.NewServer(server.Deps{
			Searcher:  p.retriever,
			Answerer:  p.generator,
			Index:     p.index,
			Sessions:  sessions,
			IndexPath: cfg.Index.Path,
		}, &cfg.Server, logger)
		go func() {
			if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("admin server failed", zap.Error(err))
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = srv.Stop(shutdownCtx)
		}()
	}

	b := bot.New(client, p.generator, sessions,
		bot.WithLogger(logger),
		bot.WithPollTimeout(cfg.Telegram.PollTimeout),
		bot.WithPollInterval(cfg.Telegram.PollInterval),
		bot.WithRetryPolicy(retry.DefaultPolicy(cfg.Telegram.MaxAttempts, cfg.Telegram.RetryDelay)),
		bot.WithEndKeywords(cfg.Bot.EndKeywords...),
		bot.WithMessages(cfg.Bot.GreetingMessage, cfg.Bot.GoodbyeMessage, cfg.Bot.FallbackMessage),
	)
	if err := b.Run(ctx); err != nil {
		return err
	}
	logger.Info("Shutting down...")
	return nil
}

// sweepInterval checks for idle sessions at least twice per timeout, and at
// most once a minute.
func sweepInterval(idle time.Duration) time.Duration {
	if half := idle / 2; half < time.Minute && half > 0 {
		return half
	}
	return time.Minute
}

func runSearch(args []string) error {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	k := fs.Int("k", 0, "number of chunks (default: retrieval.top_k from config)")
	output := fs.String("output", "text", "output format: text or json")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: atrbot search [flags] <query>\n\n")
		fs.PrintDefaults()
	}
	cfg, logger, err := commandSetup(fs, args)
	if err != nil {
		return err
	}
	defer logger.Sync()
	format, err := cli.ParseFormat(*output)
	if err != nil {
		return err
	}
	query := buildQuery(fs.Args())
	if query == "" {
		fs.Usage()
		return models.ErrEmptyQuery
	}
	if err := cfg.ValidateCredentials(config.NeedEmbedding); err != nil {
		return err
	}

	ctx := context.Background()
	p, err := openPipeline(ctx, cfg, logger, false)
	if err != nil {
		return err
	}
	defer p.Close()
	response, err := p.retriever.Search(ctx, &models.SearchQuery{Query: query, K: *k})
	if err != nil {
		return err
	}
	return cli.WriteSearchResults(os.Stdout, response, format)
}

func runAsk(args []string) error {
	fs := flag.NewFlagSet("ask", flag.ExitOnError)
	sources := fs.Bool("sources", false, "list the source documents of each answer")
	output := fs.String("output", "text", "output format: text or json")
	cfg, logger, err := commandSetup(fs, args)
	if err != nil {
		return err
	}
	defer logger.Sync()
	format, err := cli.ParseFormat(*output)
	if err != nil {
		return err
	}
	if err := cfg.ValidateCredentials(config.NeedLLM | config.NeedEmbedding); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	p, err := openPipeline(ctx, cfg, logger, true)
	if err != nil {
		return err
	}
	defer p.Close()

	if question := buildQuery(fs.Args()); question != "" {
		answer, err := p.generator.Generate(ctx, question)
		if err != nil {
			return err
		}
		return cli.WriteAnswer(os.Stdout, answer, format, *sources)
	}
	c := console{
		responder:   p.generator,
		endKeywords: cfg.Bot.EndKeywords,
		goodbye:     cfg.Bot.GoodbyeMessage,
		fallback:    cfg.Bot.FallbackMessage,
		format:      format,
		showSources: *sources,
		logger:      logger,
	}
	return c.run(ctx, os.Stdin, os.Stdout)
}

func runStatus(args []string) error {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	output := fs.String("output", "text", "output format: text or json")
	cfg, logger, err := commandSetup(fs, args)
	if err != nil {
		return err
	}
	defer logger.Sync()
	format, err := cli.ParseFormat(*output)
	if err != nil {
		return err
	}
	idx, err := index.Load(context.Background(), cfg.Index.Path)
	if err != nil {
		return err
	}
	defer idx.Close()
	diskBytes, err := storage.DiskUsageBytes(cfg.Index.Path)
	if err != nil {
		logger.Warn("disk usage failed", zap.Error(err))
	}
	return cli.WriteStatus(os.Stdout, idx.Manifest(), idx.Stats(), diskBytes, format)
}

func printUsage() {
	fmt.Print(`atrbot - answers questions about medical procedures from a PDF corpus

Usage:
  atrbot <command> [flags]

Commands:
  init      Write a config file with the default settings
  ingest    Extract, chunk and embed the PDFs in the data directory and save the index
  serve     Run the Telegram bot (and the admin API when server.enabled is set)
  search    Print the chunks retrieved for a query
  ask       Answer one question, or chat on the console until 'salir'
  status    Show what the saved index contains
  version   Print the version
  help      Show this help

Common flags:
  -config string   config file path (default ` + defaultConfigPath + ` or ./config.yaml)
  -debug           enable debug logging

Environment:
  GROQ_API_KEY, GEMINI_API_KEY, OPENAI_API_KEY, TELEGRAM_TOKEN, EMBEDDING_MODEL,
  CHUNK_SIZE, CHUNK_OVERLAP, TOP_K, LLM_PROVIDER, ATRBOT_DEBUG. A .env file in the
  working directory is loaded first.
`)
}
