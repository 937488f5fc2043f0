// ABOUTME: Entry point for the qmserver module host
// ABOUTME: Fetches, installs, and activates storage modules, then serves the HTTP API

package main

import (
	"bufio"
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"

	"github.com/mindevis/QMServer/internal/auth"
	"github.com/mindevis/QMServer/internal/config"
	"github.com/mindevis/QMServer/internal/modules"
	"github.com/mindevis/QMServer/internal/server"
	"github.com/mindevis/QMServer/internal/store"
)

// Version is set by goreleaser at build time.
var version = "dev"

const banner = `
  ___  __  __ ____
 / _ \|  \/  / ___|  ___ _ ____   _____ _ __
| | | | |\/| \___ \ / _ \ '__\ \ / / _ \ '__|
| |_| | |  | |___) |  __/ |   \ V /  __/ |
 \__\_\_|  |_|____/ \___|_|    \_/\___|_|
`

// getConfigPath returns the path to the qmserver config file.
// Priority: QMSERVER_CONFIG env var > XDG_CONFIG_HOME/qmserver/config.yaml > ~/.config/qmserver/config.yaml
func getConfigPath() string {
	if envPath := os.Getenv("QMSERVER_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "config.yaml" // fallback
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "qmserver", "config.yaml")
}

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: qmserver <command>")
		fmt.Println()
		fmt.Println("Commands:")
		fmt.Println("  serve    Start the server")
		fmt.Println("  init     Create a new config file interactively")
		fmt.Println("  health   Check server health")
		fmt.Println("  modules  List known modules")
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
	case "modules":
		err = runModules(ctx)
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

	// Print banner
	cyan := color.New(color.FgCyan)
	cyan.Print(banner)

	// Version info
	gray := color.New(color.FgHiBlack)
	gray.Printf("    version: %s\n\n", version)

	// Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// Setup logger
	logger := setupLogger(cfg.Logging)
	slog.SetDefault(logger)

	// Startup info
	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)

	green.Print("    ▶ ")
	fmt.Printf("Config:   %s\n", configPath)
	green.Print("    ▶ ")
	fmt.Printf("HTTP:     %s\n", cfg.Server.HTTPAddr)
	green.Print("    ▶ ")
	fmt.Printf("Modules:  %s (%s)\n", strings.Join(cfg.Modules.Enabled, ", "), cfg.Modules.Source)

	if cfg.Modules.RepoURL == "" {
		yellow.Print("    ▶ ")
		fmt.Println("Repo:     not configured (modules will not be fetched)")
	}
	fmt.Println()

	if cfg.Auth.JWTSecret == config.DefaultJWTSecret {
		logger.Warn("using the default JWT secret, set JWT_SECRET_KEY or auth.jwt_secret")
	}

	logger.Info("starting qmserver",
		"config", configPath,
		"http_addr", cfg.Server.HTTPAddr,
		"modules", cfg.Modules.Enabled,
	)

	mgr := modules.NewManager(modules.ManagerConfig{
		RepoURL:      cfg.Modules.RepoURL,
		RepoToken:    cfg.Modules.RepoToken,
		InstallRoot:  cfg.Modules.InstallRoot,
		CacheRoot:    cfg.Modules.CacheRoot,
		Modules:      cfg.Modules.Enabled,
		Mode:         modules.SourceMode(cfg.Modules.Source),
		FetchTimeout: cfg.Modules.FetchTimeout,
		Factories: map[string]modules.BackendFactory{
			"sqlite": store.Factory,
		},
		Logger: logger,
	})
	defer mgr.Close()

	// Module fetching can be slow; run the pipeline without blocking startup.
	// Handlers answer 503 until a backend activates.
	go func() {
		if err := mgr.Sync(ctx); err != nil {
			logger.Error("module sync aborted", "error", err)
		}
	}()

	verifier := auth.NewJWTVerifier([]byte(cfg.Auth.JWTSecret))
	mux := http.NewServeMux()
	server.New(mgr, verifier).RegisterRoutes(mux)
	handler := server.CORSMiddleware(cfg.Server.CORSOrigins)(mux)

	httpServer := &http.Server{
		Addr:    cfg.Server.HTTPAddr,
		Handler: handler,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	}
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

func runHealth(ctx context.Context) error {
	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	url := fmt.Sprintf("http://%s/health", serverHost(cfg.Server.HTTPAddr))
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

func runModules(ctx context.Context) error {
	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	url := fmt.Sprintf("http://%s/api/v1/modules", serverHost(cfg.Server.HTTPAddr))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("modules request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	fmt.Println(string(body))
	return nil
}

// serverHost makes a listen address dialable by filling in a missing host.
func serverHost(addr string) string {
	if strings.HasPrefix(addr, ":") {
		return "localhost" + addr
	}
	return addr
}

func runInit() error {
	reader := bufio.NewReader(os.Stdin)

	fmt.Println("qmserver configuration setup")
	fmt.Println("============================")
	fmt.Println()

	defaultConfigPath := getConfigPath()

	// Output filename
	outputFile := prompt(reader, "Config file path", defaultConfigPath)

	// Check if file exists
	if _, err := os.Stat(outputFile); err == nil {
		overwrite := prompt(reader, "File exists. Overwrite?", "no")
		if strings.ToLower(overwrite) != "yes" && strings.ToLower(overwrite) != "y" {
			fmt.Println("Aborted.")
			return nil
		}
	}

	// Server configuration
	fmt.Println("\n--- Server Configuration ---")
	httpAddr := prompt(reader, "HTTP address", ":8000")

	// Module repository
	fmt.Println("\n--- Module Repository ---")
	repoURL := prompt(reader, "Repository URL (empty to skip fetching)", "")
	var repoToken string
	if repoURL != "" {
		repoToken = prompt(reader, "Repository token (or set MODULES_REPO_TOKEN)", "")
	}
	installRoot := prompt(reader, "Module install directory", "./modules")
	source := prompt(reader, "Source mode (branch/directory)", "branch")

	// Logging
	fmt.Println("\n--- Logging Configuration ---")
	logLevel := prompt(reader, "Log level (debug/info/warn/error)", "info")
	logFormat := prompt(reader, "Log format (text/json)", "text")

	// Generate a random JWT secret rather than shipping the placeholder.
	secretBytes := make([]byte, 32)
	if _, err := rand.Read(secretBytes); err != nil {
		return fmt.Errorf("generating JWT secret: %w", err)
	}
	jwtSecret := base64.StdEncoding.EncodeToString(secretBytes)

	// Generate config
	var cfg strings.Builder
	cfg.WriteString("# qmserver configuration\n")
	cfg.WriteString("# Generated by qmserver init\n\n")

	cfg.WriteString("server:\n")
	cfg.WriteString(fmt.Sprintf("  http_addr: \"%s\"\n", httpAddr))
	cfg.WriteString("\n")

	cfg.WriteString("modules:\n")
	if repoURL != "" {
		cfg.WriteString(fmt.Sprintf("  repo_url: \"%s\"\n", repoURL))
	}
	if repoToken != "" {
		cfg.WriteString(fmt.Sprintf("  repo_token: \"%s\"\n", repoToken))
	}
	cfg.WriteString(fmt.Sprintf("  install_root: \"%s\"\n", installRoot))
	cfg.WriteString("  enabled:\n")
	cfg.WriteString("    - \"sqlite\"\n")
	cfg.WriteString(fmt.Sprintf("  source: \"%s\"\n", source))
	cfg.WriteString("  fetch_timeout: \"60s\"\n")
	cfg.WriteString("\n")

	cfg.WriteString("auth:\n")
	cfg.WriteString(fmt.Sprintf("  jwt_secret: \"%s\"\n", jwtSecret))
	cfg.WriteString("\n")

	cfg.WriteString("logging:\n")
	cfg.WriteString(fmt.Sprintf("  level: \"%s\"\n", logLevel))
	cfg.WriteString(fmt.Sprintf("  format: \"%s\"\n", logFormat))

	// Ensure config directory exists
	configDir := filepath.Dir(outputFile)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	// Token and secret live in this file, keep it private.
	if err := os.WriteFile(outputFile, []byte(cfg.String()), 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	fmt.Printf("\nConfig written to %s\n", outputFile)
	fmt.Println("\nTo start the server:")
	fmt.Printf("  qmserver serve\n")

	return nil
}

func prompt(reader *bufio.Reader, question, defaultVal string) string {
	if defaultVal != "" {
		fmt.Printf("%s [%s]: ", question, defaultVal)
	} else {
		fmt.Printf("%s: ", question)
	}

	input, err := reader.ReadString('\n')
	if err != nil {
		// On EOF or error, return default
		fmt.Println()
		return defaultVal
	}
	input = strings.TrimSpace(input)

	if input == "" {
		return defaultVal
	}
	return input
}
