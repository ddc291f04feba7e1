// ABOUTME: Entry point for the desk-gateway relay service
// ABOUTME: Wires store, moderation, conversation engine, and the Matrix transport

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"

	"github.com/fatih/color"

	"github.com/2389/desk-gateway/internal/config"
	"github.com/2389/desk-gateway/internal/contacts"
	"github.com/2389/desk-gateway/internal/conversation"
	"github.com/2389/desk-gateway/internal/gateway"
	"github.com/2389/desk-gateway/internal/guard"
	"github.com/2389/desk-gateway/internal/moderation"
	"github.com/2389/desk-gateway/internal/relay"
	"github.com/2389/desk-gateway/internal/store"
	"github.com/2389/desk-gateway/internal/transport/matrix"
)

// Version is set by goreleaser at build time.
var version = "dev"

const banner = `
     _           _                     _
  __| | ___  ___| | __      __ _  __ _| |_ _____      ____ _ _   _
 / _' |/ _ \/ __| |/ /____ / _' |/ _' | __/ _ \ \ /\ / / _' | | | |
| (_| |  __/\__ \   <_____| (_| | (_| | ||  __/\ V  V / (_| | |_| |
 \__,_|\___||___/_|\_\     \__, |\__,_|\__\___| \_/\_/ \__,_|\__, |
                           |___/                             |___/
`

// getConfigPath returns the path to the gateway config file.
// Priority: DESK_CONFIG env var > XDG_CONFIG_HOME/desk/gateway.yaml > ~/.config/desk/gateway.yaml
func getConfigPath() string {
	if envPath := os.Getenv("DESK_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "gateway.yaml" // fallback
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "desk", "gateway.yaml")
}

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: desk-gateway <command>")
		fmt.Println()
		fmt.Println("Commands:")
		fmt.Println("  serve    Start the gateway")
		fmt.Println("  init     Write a sample config file")
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

	green := color.New(color.FgGreen)
	green.Print("    ▶ ")
	fmt.Printf("Config:     %s\n", configPath)
	green.Print("    ▶ ")
	fmt.Printf("Database:   %s\n", cfg.Database.Path)
	green.Print("    ▶ ")
	fmt.Printf("Homeserver: %s\n", cfg.Matrix.Homeserver)
	green.Print("    ▶ ")
	fmt.Printf("Staff room: %s\n", cfg.Matrix.StaffRoom)
	if cfg.Matrix.RecoveryKey != "" {
		green.Print("    ▶ ")
		fmt.Println("Encryption: enabled")
	}
	fmt.Println()

	if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	s, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer s.Close()

	mod := moderation.New(s, logger)
	if err := mod.SeedMainAdmin(ctx, cfg.Staff.MainAdminID); err != nil {
		return fmt.Errorf("seeding main admin: %w", err)
	}

	dir, err := contacts.Load(cfg.Contacts.Path)
	if err != nil {
		return fmt.Errorf("loading contacts: %w", err)
	}

	stateDir := cfg.Matrix.StateDir
	if stateDir == "" {
		stateDir = filepath.Dir(cfg.Database.Path)
	}

	adapter, err := matrix.New(matrix.Config{
		Homeserver:   cfg.Matrix.Homeserver,
		UserID:       cfg.Matrix.UserID,
		AccessToken:  cfg.Matrix.AccessToken,
		RecoveryKey:  cfg.Matrix.RecoveryKey,
		StateDir:     stateDir,
		StaffRoom:    cfg.Matrix.StaffRoom,
		StaffGroupID: cfg.Staff.GroupID,
		Logger:       logger,
	})
	if err != nil {
		return fmt.Errorf("creating matrix transport: %w", err)
	}

	engine := conversation.New(conversation.Config{
		Store:      s,
		Relay:      relay.New(cfg.Relay.Capacity),
		Moderation: mod,
		Contacts:   dir,
		Sender:     adapter,
		StaffGroup: cfg.Staff.GroupID,
		RunCtx:     ctx,
		Logger:     logger,
	})

	dispatcher := gateway.New(guard.New(s, logger), engine, adapter, logger)
	adapter.SetHandler(dispatcher)

	logger.Info("starting desk-gateway",
		"config", configPath,
		"database", cfg.Database.Path,
		"staff_group", cfg.Staff.GroupID,
	)

	return adapter.Run(ctx)
}

const sampleConfig = `# desk-gateway configuration

database:
  path: /var/lib/desk-gateway/desk.db

staff:
  # Numeric identity outbound relays target; also the staff room alias
  group_id: -1
  # Identity seeded as the irremovable main admin
  main_admin_id: 1

matrix:
  homeserver: https://matrix.example.org
  user_id: "@deskbot:example.org"
  access_token: ${MATRIX_ACCESS_TOKEN}
  staff_room: "!staff:example.org"
  # recovery_key enables E2EE
  # recovery_key: ${MATRIX_RECOVERY_KEY}

contacts:
  path: /etc/desk-gateway/contacts.toml

logging:
  level: info
  format: text
`

func runInit() error {
	configPath := getConfigPath()

	if _, err := os.Stat(configPath); err == nil {
		return fmt.Errorf("config already exists at %s", configPath)
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := os.WriteFile(configPath, []byte(sampleConfig), 0o600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	green := color.New(color.FgGreen)
	green.Printf("    ✓ Config written to %s\n", configPath)
	fmt.Println()
	fmt.Println("    Edit it, then run: desk-gateway serve")
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
