// Package main is the kotae CLI entry point.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/hyperjump/kotae/internal/chat"
	"github.com/hyperjump/kotae/internal/cli"
	"github.com/hyperjump/kotae/internal/config"
	"github.com/hyperjump/kotae/internal/embedding"
	"github.com/hyperjump/kotae/internal/extract"
	"github.com/hyperjump/kotae/internal/indexer"
	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/internal/search"
	"github.com/hyperjump/kotae/internal/server"
	"github.com/hyperjump/kotae/internal/session"
	"github.com/hyperjump/kotae/internal/vector"
	"github.com/hyperjump/kotae/internal/watcher"
	"github.com/hyperjump/kotae/pkg/utils"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/kotae/config.yaml"

// watchSessionID is the pinned session that watched directories feed.
const watchSessionID = "watch"

// loadConfig loads config from path. When path is the default, config.yaml in the
// current directory wins if present. A missing default file yields built-in defaults.
// Returns the config and the path it belongs to (for saving).
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
		if _, statErr := os.Stat(path); errors.Is(statErr, os.ErrNotExist) {
			return config.Default(), "", nil
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	// .env is optional; real environment variables take precedence.
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "server":
		runServer()
	case "search":
		runSearch()
	case "ask":
		runAsk()
	case "version", "--version", "-v":
		fmt.Printf("kotae version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	cfg, resolvedConfigPath, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.Debug || *debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.Bool("debug", debugMode),
		zap.String("embedding_provider", cfg.Embedding.Provider),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	components, err := initializeComponents(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	sessions := session.NewManager(components.Engine,
		session.WithIdleTTL(cfg.Session.IdleTTL),
		session.WithSweepInterval(cfg.Session.SweepInterval),
		session.WithLogger(logger),
	)
	go sessions.Run(ctx)

	exts := cfg.Watch.Extensions
	ingester := watcher.NewSessionIngester(sessions.Pin(watchSessionID), components.Indexer, exts, logger)
	watchSvc := watcher.New(ingester, exts, cfg.Watch.RecursiveOrDefault(), watcher.WithLogger(logger))
	if err := watchSvc.Start(ctx, cfg.Watch.Directories...); err != nil {
		logger.Fatal("Failed to start watcher", zap.Error(err))
	}
	defer watchSvc.Stop()
	watchSvc.Sync()

	srv := server.NewServer(
		sessions,
		components.Uploads,
		components.Completer,
		cfg,
		logger,
		server.WithWatch(watchSvc, resolvedConfigPath),
		server.WithCompleterFactory(completerFactory(cfg)),
	)
	go func() {
		if err := srv.Start(); err != nil {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	cancel()
	stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer stopCancel()
	_ = srv.Stop(stopCtx)
}

// printSearchUsage prints search subcommand usage.
func printSearchUsage(fs *flag.FlagSet) {
	fmt.Fprintf(fs.Output(), "Usage: kotae search --file <path> [flags] <query>\n\n")
	fmt.Fprintf(fs.Output(), "Indexes the given files or directories in memory and prints the closest chunks.\n\n")
	fs.PrintDefaults()
	fmt.Fprintf(fs.Output(), `
Examples:
  kotae search --file notes.md what did we decide about caching
  kotae search --file ./docs --k 8 --output json "rate limits"
  kotae search --file report.pdf --text quarterly revenue
`)
}

// buildQuery joins all positional args so multi-word queries work with or without quotes.
func buildQuery(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

// reorderArgs moves flags that appear after the query to the front so flag.Parse sees them.
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

// fileList collects repeated --file flags.
type fileList []string

func (f *fileList) String() string { return strings.Join(*f, ",") }

func (f *fileList) Set(v string) error {
	*f = append(*f, v)
	return nil
}

func runSearch() {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	var files fileList
	fs.Var(&files, "file", "file or directory to index (repeatable)")
	k := fs.Int("k", models.DefaultSearchK, "number of results")
	asText := fs.Bool("text", false, "print chunk texts only")
	outputFormat := fs.String("output", "text", "output format: text or json")
	fs.Usage = func() { printSearchUsage(fs) }
	_ = fs.Parse(reorderArgs(os.Args[2:]))

	query := buildQuery(fs.Args())
	if query == "" || len(files) == 0 {
		printSearchUsage(fs)
		os.Exit(1)
	}
	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	cfg, logger, components := mustInitialize(*configPath)
	defer logger.Sync()
	defer components.Close()

	ctx := context.Background()
	store, err := indexPaths(ctx, components.Indexer, files, cfg.Watch.Extensions, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Indexing failed: %v\n", err)
		os.Exit(1)
	}

	req := models.SearchRequest{Query: query, K: *k, ReturnAsText: *asText}
	if err := req.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	response, err := runQuery(ctx, components.Engine, store, req)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Search failed: %v\n", err)
		os.Exit(1)
	}
	if err := cli.WriteSearchResults(os.Stdout, response, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func runAsk() {
	fs := flag.NewFlagSet("ask", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	var files fileList
	fs.Var(&files, "file", "file or directory to index (repeatable)")
	topK := fs.Int("k", 0, "number of context chunks (default from config)")
	model := fs.String("model", "", "chat model (default from config)")
	_ = fs.Parse(reorderArgs(os.Args[2:]))

	question := buildQuery(fs.Args())
	if question == "" || len(files) == 0 {
		fmt.Fprintln(os.Stderr, "Usage: kotae ask --file <path> [--k n] [--model name] <question>")
		os.Exit(1)
	}

	cfg, logger, components := mustInitialize(*configPath)
	defer logger.Sync()
	defer components.Close()
	if components.Completer == nil {
		fmt.Fprintf(os.Stderr, "Chat is not configured: set %s\n", cfg.Embedding.APIKeyEnv)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	store, err := indexPaths(ctx, components.Indexer, files, cfg.Watch.Extensions, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Indexing failed: %v\n", err)
		os.Exit(1)
	}
	k := *topK
	if k <= 0 {
		k = cfg.Chat.TopK
	}
	if *model == "" {
		*model = cfg.Chat.Model
	}
	if err := answer(ctx, os.Stdout, components.Engine, components.Completer, store, question, k, *model); err != nil {
		fmt.Fprintf(os.Stderr, "\nAsk failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Println()
}

// indexPaths builds one store from every file and directory in paths.
func indexPaths(ctx context.Context, ix *indexer.Indexer, paths []string, exts []string, logger *zap.Logger) (*vector.Store, error) {
	store := vector.NewStore()
	var texts []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, err
		}
		if info.IsDir() {
			report, files, err := ix.IndexDirectory(ctx, store, p, exts)
			if err != nil {
				return nil, err
			}
			logReport(logger, p, files, report)
			continue
		}
		// Explicit files are read regardless of the watch extension list.
		text, err := ix.ExtractFile(p, nil)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", p, err)
		}
		texts = append(texts, text)
	}
	if len(texts) > 0 {
		report, err := ix.IndexText(ctx, store, texts...)
		if err != nil {
			return nil, err
		}
		logReport(logger, "files", len(texts), report)
	}
	return store, nil
}

func logReport(logger *zap.Logger, source string, documents int, report *vector.BuildReport) {
	if report == nil {
		return
	}
	logger.Info("indexed",
		zap.String("source", source),
		zap.Int("documents", documents),
		zap.Int("chunks", report.Chunks),
		zap.Int("inserted", report.Inserted),
		zap.Int("skipped", len(report.Skipped)),
		zap.Duration("duration", report.Duration),
	)
}

// runQuery answers req against store the same way the HTTP search endpoint does.
func runQuery(ctx context.Context, engine *search.Engine, store *vector.Store, req models.SearchRequest) (*models.SearchResponse, error) {
	resp := &models.SearchResponse{Query: req.Query}
	if req.ReturnAsText {
		texts, err := engine.SearchTexts(ctx, store, req.Query, req.K)
		if err != nil {
			return nil, err
		}
		resp.Texts = texts
		return resp, nil
	}
	results, err := engine.SearchByText(ctx, store, req.Query, req.K)
	if err != nil {
		return nil, err
	}
	resp.Results = make([]models.SearchHit, len(results))
	for i, res := range results {
		resp.Results[i] = models.SearchHit{Text: res.Key, Score: res.Score}
	}
	return resp, nil
}

// answer retrieves k chunks for question and streams a grounded completion to w.
func answer(ctx context.Context, w io.Writer, engine *search.Engine, completer chat.Completer, store *vector.Store, question string, k int, model string) error {
	contexts, err := engine.SearchTexts(ctx, store, question, k)
	if err != nil {
		return err
	}
	messages := []chat.Message{{Role: chat.RoleSystem, Content: chat.GroundedPrompt(contexts, question)}}
	return completer.Stream(ctx, messages, model, func(delta string) error {
		_, err := io.WriteString(w, delta)
		return err
	})
}

// Components holds the long-lived pieces shared by every subcommand.
type Components struct {
	Embedder  embedding.Embedder
	Engine    *search.Engine
	Indexer   *indexer.Indexer
	Uploads   *indexer.Indexer
	Completer chat.Completer
	closers   []io.Closer
}

// Close releases the embedder and any cache connections.
func (c *Components) Close() {
	if c.Embedder != nil {
		_ = c.Embedder.Close()
	}
	for _, cl := range c.closers {
		_ = cl.Close()
	}
}

func mustInitialize(configPath string) (*config.Config, *zap.Logger, *Components) {
	cfg, _, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	components, err := initializeComponents(context.Background(), cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize", zap.Error(err))
	}
	return cfg, logger, components
}

func initializeComponents(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Components, error) {
	c := &Components{}

	var base embedding.Embedder
	switch cfg.Embedding.Provider {
	case config.ProviderMock:
		base = embedding.NewMockEmbedder(cfg.Embedding.Dimensions)
	default:
		e, err := embedding.NewOpenAIEmbedder(embedding.OpenAIConfig{
			APIKey:  cfg.Embedding.APIKey(),
			BaseURL: cfg.Embedding.BaseURL,
			Model:   cfg.Embedding.Model,
			Timeout: cfg.Embedding.Timeout(),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize embedder: %w", err)
		}
		base = e
	}

	var cache embedding.Cache = embedding.NewEmbeddingCache(cfg.Embedding.CacheSize)
	if cfg.Embedding.RedisAddr != "" {
		rc, err := embedding.NewRedisCache(ctx, cfg.Embedding.RedisAddr, cfg.Embedding.RedisTTL, embedding.WithRedisLogger(logger))
		if err != nil {
			logger.Warn("redis embedding cache unavailable, using in-process cache",
				zap.String("addr", cfg.Embedding.RedisAddr), zap.Error(err))
		} else {
			cache = rc
			c.closers = append(c.closers, rc)
		}
	}
	c.Embedder = embedding.NewCachedEmbedder(base, cache, cfg.Embedding.Model)

	builder := vector.NewBuilder(c.Embedder,
		vector.WithLogger(logger),
		vector.WithMaxTokensPerBatch(cfg.Embedding.MaxTokensPerBatch),
		vector.WithConcurrency(cfg.Embedding.Concurrency),
	)
	extractor := extract.NewExtractor()

	splitter, err := indexer.NewSplitter(cfg.Chunking)
	if err != nil {
		return nil, err
	}
	c.Indexer = indexer.NewIndexer(splitter, builder, extractor,
		indexer.WithLogger(logger),
		indexer.WithStopwordRemoval(cfg.Chunking.RemoveStopwords),
	)

	uploadSplitter, err := indexer.NewSplitter(config.ChunkingConfig{
		Mode:         config.ChunkModeCharacter,
		ChunkSize:    cfg.Upload.ChunkSize,
		ChunkOverlap: cfg.Upload.ChunkOverlap,
	})
	if err != nil {
		return nil, err
	}
	c.Uploads = indexer.NewIndexer(uploadSplitter, builder, extractor, indexer.WithLogger(logger))

	c.Engine = search.NewEngine(c.Embedder)

	completer, err := completerFactory(cfg)(cfg.Embedding.APIKey())
	if err != nil {
		logger.Warn("chat disabled", zap.Error(err))
	} else {
		c.Completer = completer
	}
	return c, nil
}

// completerFactory builds chat completers against the configured endpoint.
func completerFactory(cfg *config.Config) server.CompleterFactory {
	return func(apiKey string) (chat.Completer, error) {
		return chat.NewOpenAICompleter(chat.OpenAIConfig{
			APIKey:       apiKey,
			BaseURL:      cfg.Embedding.BaseURL,
			DefaultModel: cfg.Chat.Model,
			Timeout:      cfg.Embedding.Timeout(),
		})
	}
}

func printUsage() {
	fmt.Println(`kotae - Ask questions about your documents

Usage:
  kotae server [flags]                       Start the HTTP server
  kotae search --file <path> [flags] <query> Index files in memory and search them
  kotae ask --file <path> [flags] <question> Index files and stream a grounded answer
  kotae version                              Show version
  kotae help                                 Show this help

Server Flags:
  --config string    Config file path (default: /usr/local/etc/kotae/config.yaml)
  --debug            Enable debug logging

Search Flags:
  --file path        File or directory to index (repeatable)
  --k int            Number of results (default: 4)
  --text             Print chunk texts only
  --output string    Output format: text or json (default: text)

Ask Flags:
  --file path        File or directory to index (repeatable)
  --k int            Number of context chunks (default from config)
  --model string     Chat model (default from config)

Environment:
  OPENAI_API_KEY     API key for embeddings and chat (a .env file is read if present)

Examples:
  kotae server
  kotae search --file ./docs "how do refunds work"
  kotae search --file handbook.pdf --output json vacation policy
  kotae ask --file handbook.pdf how many vacation days do I get`)
}
