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
	"strconv"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"reflex/internal/api"
	"reflex/internal/config"
	"reflex/internal/depgraph"
	"reflex/internal/logging"
	"reflex/internal/metrics"
	"reflex/internal/notification"
	"reflex/internal/reload"
	"reflex/internal/routes"
	"reflex/internal/state"
	"reflex/internal/version"
	"reflex/internal/watcher"
)

const shutdownTimeout = 5 * time.Second

type serveFlags struct {
	ConfigPath  string
	Root        string
	ListenAddr  string
	Verbose     bool
	ShowVersion bool
}

func parseServeFlags(args []string) (serveFlags, error) {
	var flags serveFlags
	set := flag.NewFlagSet("reflex serve", flag.ContinueOnError)
	set.StringVar(&flags.ConfigPath, "config", "", "path to the YAML configuration file")
	set.StringVar(&flags.Root, "root", "", "project directory to watch (overrides config)")
	set.StringVar(&flags.ListenAddr, "listen", "", "HTTP listen address (overrides config)")
	set.BoolVar(&flags.Verbose, "verbose", false, "enable debug logging")
	set.BoolVar(&flags.ShowVersion, "version", false, "print the version and exit")
	if err := set.Parse(args); err != nil {
		return serveFlags{}, err
	}
	return flags, nil
}

func runServe(args []string) int {
	flags, err := parseServeFlags(args)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	if flags.ShowVersion {
		fmt.Fprintln(os.Stdout, "reflex "+version.Get().String())
		return 0
	}

	cfg, err := config.Load(flags.ConfigPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	if flags.Root != "" {
		cfg.Root = flags.Root
	}
	if flags.ListenAddr != "" {
		cfg.ListenAddr = flags.ListenAddr
	}

	level, _ := logging.ParseLevel(cfg.LogLevel)
	if flags.Verbose {
		level = logging.LevelDebug
	}
	logger := logging.New(level)
	logger.Info("reflex starting", map[string]string{
		"version": version.Get().Version,
		"root":    cfg.Root,
	})

	if err := serve(cfg, logger); err != nil {
		logger.Error("reflex stopped", map[string]string{"error": err.Error()})
		return 1
	}
	return 0
}

func serve(cfg config.Config, logger *logging.Logger) error {
	graph := depgraph.New()
	apiDir := filepath.ToSlash(filepath.Join(cfg.Root, cfg.APIDir))
	registry := routes.NewRegistry(routes.NewMapper(apiDir, cfg.APIPrefix))
	store := state.NewStore(cfg.StateTTL())

	if err := registry.Scan(apiDir); err != nil {
		logger.Warn("route scan failed", map[string]string{
			"dir":   apiDir,
			"error": err.Error(),
		})
	}
	if err := watcher.SeedGraph(graph, cfg.Root); err != nil {
		logger.Warn("dependency scan failed", map[string]string{
			"root":  cfg.Root,
			"error": err.Error(),
		})
	}
	logger.Info("project indexed", map[string]string{
		"routes": strconv.Itoa(registry.Len()),
	})

	coordinator := reload.New(reload.Options{
		Graph:      graph,
		Registry:   registry,
		Executor:   newModuleExecutor(store, logger),
		Debounce:   cfg.Debounce(),
		Timeout:    cfg.ReloadTimeout(),
		MaxRetries: cfg.MaxRetries,
		Logger:     logger,
		Metrics:    metrics.Default,
	})
	defer coordinator.Close()

	fileWatcher, err := watcher.New(watcher.Options{
		Root:        cfg.Root,
		ConfigFiles: cfg.ConfigFiles,
		Logger:      logger,
		Metrics:     metrics.Default,
	})
	if err != nil {
		return fmt.Errorf("start watcher: %w", err)
	}

	mux := http.NewServeMux()
	api.RegisterRoutes(mux, api.Config{
		Coordinator:          coordinator,
		Registry:             registry,
		Graph:                graph,
		Store:                store,
		Notifications:        notification.Bus(),
		Logger:               logger,
		Metrics:              metrics.Default,
		AuthToken:            cfg.AuthToken,
		AllowedOrigins:       cfg.AllowedOrigins,
		NotificationReplay:   cfg.NotificationReplay,
		ConnectionsPerMinute: cfg.ConnectionsPerMinute,
	})

	server := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return fileWatcher.Run(watcher.Pipeline(graph, registry, coordinator))
	})
	group.Go(func() error {
		logger.Info("reflex listening", map[string]string{"addr": server.Addr})
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		logger.Info("shutting down", nil)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Warn("http shutdown incomplete", map[string]string{"error": err.Error()})
		}
		return fileWatcher.Close()
	})

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
