// ABOUTME: Entry point for the academa portal server
// ABOUTME: Serves the auth/profile API and the guarded page routes

package main

import (
	"bufio"
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/fatih/color"
	"golang.org/x/oauth2"

	"github.com/academa/academa-portal/internal/config"
	"github.com/academa/academa-portal/internal/identity"
	"github.com/academa/academa-portal/internal/portal"
	"github.com/academa/academa-portal/internal/profile"
)

// Version is set by goreleaser at build time.
var version = "dev"

const banner = `
                       _
  __ _  ___ __ _  __| | ___ _ __ ___   __ _
 / _' |/ __/ _' |/ _' |/ _ \ '_ ' _ \ / _' |
| (_| | (_| (_| | (_| |  __/ | | | | | (_| |
 \__,_|\___\__,_|\__,_|\___|_| |_| |_|\__,_|
`

// getConfigPath returns the path to the portal config file.
// Priority: ACADEMA_CONFIG env var > XDG_CONFIG_HOME/academa/portal.yaml > ~/.config/academa/portal.yaml
func getConfigPath() string {
	if envPath := os.Getenv("ACADEMA_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "portal.yaml" // fallback
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "academa", "portal.yaml")
}

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: academa-portal <command>")
		fmt.Println()
		fmt.Println("Commands:")
		fmt.Println("  serve   Start the portal server")
		fmt.Println("  init    Create a starter config file")
		fmt.Println("  health  Check portal health")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe(ctx)
	case "init":
		err = runInit()
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

func runServe(ctx context.Context) error {
	configPath := getConfigPath()

	cyan := color.New(color.FgCyan)
	cyan.Print(banner)

	gray := color.New(color.FgHiBlack)
	gray.Printf("    version: %s\n\n", version)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := setupLogger(cfg.Logging)
	slog.SetDefault(logger)

	green := color.New(color.FgGreen)
	green.Print("    ▶ ")
	fmt.Printf("Config:       %s\n", configPath)
	green.Print("    ▶ ")
	fmt.Printf("HTTP:         %s\n", cfg.Server.HTTPAddr)
	green.Print("    ▶ ")
	fmt.Printf("ProfileStore: %s\n", cfg.ProfileStore.BaseURL)
	for kind := range cfg.OAuth {
		green.Print("    ▶ ")
		fmt.Printf("Provider:     ")
		cyan.Println(kind)
	}
	fmt.Println()

	logger.Info("starting academa-portal",
		"config", configPath,
		"http_addr", cfg.Server.HTTPAddr,
		"profilestore", cfg.ProfileStore.BaseURL,
	)

	directory := identity.NewDirectory(cfg.Identity.BcryptCost)
	registry := portal.NewRegistry(directory, profile.NewClient(cfg.ProfileStore.BaseURL, nil), portal.RegistryConfig{
		Flows:          buildFlows(cfg.OAuth),
		ProtectedPaths: cfg.Guard.ProtectedPaths,
		SignInPath:     cfg.Guard.SignInPath,
		DefaultPath:    cfg.Guard.DefaultPath,
		TTL:            cfg.Sessions.TTL,
	})
	defer registry.Close()

	tokens := portal.NewSessionTokens([]byte(cfg.Sessions.TokenSecret), cfg.Sessions.TTL)
	srv := portal.NewServer(registry, tokens, portal.NewApplications())

	httpServer := &http.Server{
		Addr:    cfg.Server.HTTPAddr,
		Handler: srv.Router(),
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

// buildFlows turns the configured oauth providers into interactive consent
// flows. The standalone binary reads the authorization code from stdin after
// printing the consent URL; a hosted deployment replaces the authorizer with
// its redirect handler.
func buildFlows(providers map[string]config.OAuthProviderConfig) map[string]identity.ConsentFlow {
	flows := make(map[string]identity.ConsentFlow, len(providers))
	for kind, p := range providers {
		oc := &oauth2.Config{
			ClientID:     p.ClientID,
			ClientSecret: p.ClientSecret,
			RedirectURL:  p.RedirectURL,
			Scopes:       p.Scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:  p.AuthURL,
				TokenURL: p.TokenURL,
			},
		}
		flows[kind] = identity.NewOAuthConsent(kind, oc, p.UserInfoURL, stdinAuthorizer)
	}
	return flows
}

func stdinAuthorizer(ctx context.Context, consentURL string) (string, error) {
	fmt.Println()
	color.New(color.FgYellow).Println("  Authorize sign-in by visiting:")
	fmt.Printf("  %s\n\n", consentURL)
	fmt.Print("  Paste the authorization code: ")

	reader := bufio.NewReader(os.Stdin)
	code, err := reader.ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("reading authorization code: %w", err)
	}
	code = strings.TrimSpace(code)
	if code == "" {
		return "", identity.ErrConsentDismissed
	}
	return code, nil
}

func runInit() error {
	configPath := getConfigPath()

	if _, err := os.Stat(configPath); err == nil {
		return fmt.Errorf("config already exists: %s", configPath)
	}

	secretBytes := make([]byte, 32)
	if _, err := rand.Read(secretBytes); err != nil {
		return fmt.Errorf("generating token secret: %w", err)
	}
	tokenSecret := base64.StdEncoding.EncodeToString(secretBytes)

	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	configContent := fmt.Sprintf(`# academa-portal configuration
# Generated by academa-portal init

server:
  http_addr: "localhost:8080"

profilestore:
  base_url: "http://localhost:9090"
  http_addr: "localhost:9090"
  database_path: "profiles.db"

sessions:
  token_secret: "%s"
  ttl: "24h"

guard:
  protected_paths:
    - "/profile"
    - "/my-college"
    - "/colleges/*"
  sign_in_path: "/login"
  default_path: "/"

logging:
  level: "info"
  format: "text"
`, tokenSecret)

	if err := os.WriteFile(configPath, []byte(configContent), 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	color.New(color.FgGreen).Printf("  ✓ Created config: %s\n", configPath)
	return nil
}

func runHealth(ctx context.Context) error {
	configPath := getConfigPath()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	url := fmt.Sprintf("http://%s/healthz", cfg.Server.HTTPAddr)
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

func setupLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = &colorHandler{
			level: level,
		}
	}

	return slog.New(handler)
}

// colorHandler provides colorized log output with thread-safe writes.
type colorHandler struct {
	mu     sync.Mutex
	level  slog.Level
	attrs  []slog.Attr
	groups []string
}

func (h *colorHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *colorHandler) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	var buf strings.Builder

	buf.WriteString(color.HiBlackString(r.Time.Format("15:04:05") + " "))

	switch r.Level {
	case slog.LevelDebug:
		buf.WriteString(color.MagentaString("DBG "))
	case slog.LevelInfo:
		buf.WriteString(color.CyanString("INF "))
	case slog.LevelWarn:
		buf.WriteString(color.YellowString("WRN "))
	case slog.LevelError:
		buf.WriteString(color.New(color.FgRed, color.Bold).Sprint("ERR "))
	default:
		buf.WriteString("??? ")
	}

	buf.WriteString(r.Message)

	for _, a := range h.attrs {
		buf.WriteString(color.HiBlackString(" " + a.Key + "="))
		buf.WriteString(a.Value.String())
	}

	r.Attrs(func(a slog.Attr) bool {
		buf.WriteString(color.HiBlackString(" " + a.Key + "="))
		buf.WriteString(a.Value.String())
		return true
	})

	buf.WriteString("\n")
	fmt.Print(buf.String())
	return nil
}

func (h *colorHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	newAttrs := make([]slog.Attr, len(h.attrs), len(h.attrs)+len(attrs))
	copy(newAttrs, h.attrs)
	newAttrs = append(newAttrs, attrs...)
	return &colorHandler{
		level:  h.level,
		attrs:  newAttrs,
		groups: h.groups,
	}
}

func (h *colorHandler) WithGroup(name string) slog.Handler {
	newGroups := make([]string, len(h.groups), len(h.groups)+1)
	copy(newGroups, h.groups)
	newGroups = append(newGroups, name)
	return &colorHandler{
		level:  h.level,
		attrs:  h.attrs,
		groups: newGroups,
	}
}
