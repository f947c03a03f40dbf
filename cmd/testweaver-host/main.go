package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/testweaver-ai/testweaver/internal/cache"
	"github.com/testweaver-ai/testweaver/internal/config"
	"github.com/testweaver-ai/testweaver/internal/generator"
	"github.com/testweaver-ai/testweaver/internal/llm"
	"github.com/testweaver-ai/testweaver/internal/logger"
	"github.com/testweaver-ai/testweaver/internal/provider"
	"github.com/testweaver-ai/testweaver/internal/web"
)

type options struct {
	configPath string
	model      string
	provider   string
	listenAddr string
	logLevel   string
	debug      bool
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() (err error) {
	opts, parseErr := parseArgs(os.Args[1:])
	if parseErr != nil {
		if errors.Is(parseErr, flag.ErrHelp) {
			return nil
		}
		return parseErr
	}

	configPath := opts.configPath
	if configPath == "" {
		configPath = config.GetConfigPath()
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Flags win over config file and environment
	if opts.model != "" {
		cfg.Model = opts.model
	}
	if opts.provider != "" {
		cfg.Provider = opts.provider
	}
	if opts.listenAddr != "" {
		cfg.ListenAddr = opts.listenAddr
	}
	if opts.logLevel != "" {
		cfg.LogLevel = opts.logLevel
	}
	if opts.debug {
		cfg.LogLevel = "debug"
	}

	var loggerInitialized bool
	defer func() {
		if !loggerInitialized {
			return
		}
		if err != nil {
			logger.Error("Fatal error: %v", err)
		}
		if closeErr := logger.Global().Close(); closeErr != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to close logger: %v\n", closeErr)
		}
	}()

	if initErr := logger.Init(logger.ParseLevel(cfg.LogLevel), cfg.LogPath); initErr != nil {
		return fmt.Errorf("failed to initialize logger: %w", initErr)
	}
	loggerInitialized = true

	logger.Info("testweaver host starting (provider=%s, model=%s)", cfg.Provider, cfg.Model)

	apiKey := provider.ResolveCredentials(cfg.Provider, cfg.APIKey)
	if apiKey == "" {
		hints := provider.EnvVarHints(cfg.Provider)
		return fmt.Errorf("no API key for provider %q; set one of: %s",
			cfg.Provider, strings.Join(hints, ", "))
	}

	baseURL := provider.BaseURL(cfg.Provider, cfg.BaseURL)
	if baseURL == "" {
		return fmt.Errorf("provider %q has no OpenAI-compatible endpoint; set base_url in the config", cfg.Provider)
	}

	client, err := llm.NewOpenAICompatibleClient(apiKey, baseURL, cfg.Model)
	if err != nil {
		return fmt.Errorf("failed to create LLM client: %w", err)
	}

	gen := generator.New(client, llm.NewEstimator(cfg.Model), generator.Config{
		MaxConcurrent: cfg.MaxConcurrent,
		MaxRetries:    cfg.MaxRetries,
		CallTimeout:   time.Duration(cfg.RequestTimeout) * time.Second,
		Cache:         cache.NewWithLimits(time.Duration(cfg.CacheTTL)*time.Second, cfg.MaxCacheEntries),
	})
	defer gen.Close()

	srv, err := web.NewServer(cfg, gen, opts.debug)
	if err != nil {
		return fmt.Errorf("failed to create bridge server: %w", err)
	}
	if err := srv.Start(); err != nil {
		return fmt.Errorf("failed to start bridge server: %w", err)
	}

	// The extension reads this line to find the bridge
	fmt.Println(srv.URL())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("Received %v, shutting down", sig)

	if stopErr := srv.Stop(); stopErr != nil {
		return stopErr
	}
	return nil
}

func parseArgs(args []string) (*options, error) {
	fs := flag.NewFlagSet("testweaver-host", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	opts := &options{}
	fs.StringVar(&opts.configPath, "config", "", "path to config file")
	fs.StringVar(&opts.model, "model", "", "model to generate with")
	fs.StringVar(&opts.provider, "provider", "", "LLM provider name")
	fs.StringVar(&opts.listenAddr, "listen", "", "bridge listen address")
	fs.StringVar(&opts.logLevel, "log-level", "", "log level (debug, info, warn, error, none)")
	fs.BoolVar(&opts.debug, "debug", false, "log every WebSocket message")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: testweaver-host [options]\n\n")
		fmt.Fprintf(os.Stderr, "Bridges the testweaver browser extension to an LLM provider.\n\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		fmt.Fprintf(os.Stderr, "unexpected argument: %s\n", fs.Arg(0))
		return nil, flag.ErrHelp
	}
	return opts, nil
}
