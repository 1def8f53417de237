// ABOUTME: Entry point for the academa ProfileStore service
// ABOUTME: Serves the users REST API over sqlite persistence

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"

	"github.com/academa/academa-portal/internal/config"
	"github.com/academa/academa-portal/internal/profilestore"
)

// Version is set by goreleaser at build time.
var version = "dev"

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: academa-profilestore <command>")
		fmt.Println()
		fmt.Println("Commands:")
		fmt.Println("  serve   Start the ProfileStore service")
		fmt.Println("  health  Check service health")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe(ctx)
	case "health":
		err = runHealth(ctx)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// getConfigPath mirrors the portal binary: both read the same file.
func getConfigPath() string {
	if envPath := os.Getenv("ACADEMA_CONFIG"); envPath != "" {
		return envPath
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "portal.yaml"
	}
	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		configDir = home + "/.config"
	}
	return configDir + "/academa/portal.yaml"
}

func runServe(ctx context.Context) error {
	configPath := getConfigPath()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if cfg.ProfileStore.HTTPAddr == "" {
		return fmt.Errorf("profilestore.http_addr is required to serve")
	}
	if cfg.ProfileStore.DatabasePath == "" {
		return fmt.Errorf("profilestore.database_path is required to serve")
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	green := color.New(color.FgGreen)
	green.Print("  ▶ ")
	fmt.Printf("Config:   %s\n", configPath)
	green.Print("  ▶ ")
	fmt.Printf("HTTP:     %s\n", cfg.ProfileStore.HTTPAddr)
	green.Print("  ▶ ")
	fmt.Printf("Database: %s\n", cfg.ProfileStore.DatabasePath)
	fmt.Println()

	logger.Info("starting academa-profilestore",
		"version", version,
		"http_addr", cfg.ProfileStore.HTTPAddr,
		"database", cfg.ProfileStore.DatabasePath,
	)

	store, err := profilestore.NewSQLiteStore(cfg.ProfileStore.DatabasePath)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer store.Close()

	httpServer := &http.Server{
		Addr:    cfg.ProfileStore.HTTPAddr,
		Handler: profilestore.NewServer(store).Router(),
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

func runHealth(ctx context.Context) error {
	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	url := fmt.Sprintf("http://%s/healthz", cfg.ProfileStore.HTTPAddr)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d", resp.StatusCode)
	}

	fmt.Println("healthy")
	return nil
}
