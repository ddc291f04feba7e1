// ABOUTME: Operator CLI for desk-gateway moderation and directory inspection
// ABOUTME: Works directly against the gateway's SQLite store

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/fatih/color"

	"github.com/2389/desk-gateway/internal/config"
	"github.com/2389/desk-gateway/internal/moderation"
	"github.com/2389/desk-gateway/internal/store"
)

const banner = `
     _           _                      _           _
  __| | ___  ___| | __      __ _  __ _| |_ __ ___ (_)_ __
 / _' |/ _ \/ __| |/ /____ / _' |/ _' | '_ ' _ \ | | '_ \
| (_| |  __/\__ \   <_____| (_| | (_| | | | | | || | | | |
 \__,_|\___||___/_|\_\     \__,_|\__,_|_| |_| |_||_|_| |_|
`

// getConfigPath mirrors the gateway's config resolution so both binaries
// point at the same database.
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
		printUsage()
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cmd := os.Args[1]
	args := os.Args[2:]

	if cmd == "help" || cmd == "-h" || cmd == "--help" {
		printUsage()
		return
	}

	if err := run(ctx, cmd, args); err != nil {
		color.Red("Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	cyan := color.New(color.FgCyan)
	yellow := color.New(color.FgYellow)

	cyan.Print(banner)
	fmt.Println()
	fmt.Println("Usage: desk-admin <command> [args]")
	fmt.Println()
	yellow.Println("Commands:")
	fmt.Println("  users                      List registered users")
	fmt.Println("  admins                     List the admin roster")
	fmt.Println("  info <id|@alias>           Show one user's record")
	fmt.Println("  block <id|@alias> [reason] Block a user")
	fmt.Println("  unblock <id|@alias>        Unblock a user")
	fmt.Println("  promote <id|@alias>        Add a user to the admin roster")
	fmt.Println("  demote <id>                Remove an admin from the roster")
	fmt.Println()
	yellow.Println("Environment:")
	fmt.Println("  DESK_CONFIG   Path to gateway.yaml (default: ~/.config/desk/gateway.yaml)")
}

func run(ctx context.Context, cmd string, args []string) error {
	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	s, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer s.Close()

	mod := moderation.New(s, nil)

	switch cmd {
	case "users":
		return cmdUsers(ctx, s)
	case "admins":
		return cmdAdmins(ctx, mod)
	case "info":
		return cmdInfo(ctx, mod, args)
	case "block":
		return cmdBlock(ctx, mod, cfg.Staff.MainAdminID, args)
	case "unblock":
		return cmdUnblock(ctx, mod, args)
	case "promote":
		return cmdPromote(ctx, mod, args)
	case "demote":
		return cmdDemote(ctx, mod, args)
	default:
		printUsage()
		return fmt.Errorf("unknown command: %s", cmd)
	}
}

func cmdUsers(ctx context.Context, s *store.SQLiteStore) error {
	users, err := s.ListUsers(ctx)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tALIAS\tNAME\tPHONE\tREGISTERED")
	for _, u := range users {
		alias := u.Username
		if alias != "" {
			alias = "@" + alias
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n",
			u.ID, alias, u.FullName, u.Phone, u.CreatedAt.Format("2006-01-02"))
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Printf("\n%d user(s)\n", len(users))
	return nil
}

func cmdAdmins(ctx context.Context, mod *moderation.Service) error {
	admins, err := mod.ListAdmins(ctx)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tALIAS\tTIER\tSINCE")
	for _, a := range admins {
		alias := a.Username
		if alias != "" {
			alias = "@" + alias
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\n",
			a.UserID, alias, a.Tier, a.CreatedAt.Format("2006-01-02"))
	}
	return w.Flush()
}

func cmdInfo(ctx context.Context, mod *moderation.Service, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: desk-admin info <id|@alias>")
	}

	user, err := mod.LookupUser(ctx, args[0])
	if err != nil {
		return fmt.Errorf("looking up %q: %w", args[0], err)
	}
	info, err := mod.UserInfo(ctx, user)
	if err != nil {
		return err
	}
	fmt.Println(info)
	return nil
}

func cmdBlock(ctx context.Context, mod *moderation.Service, operatorID int64, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: desk-admin block <id|@alias> [reason]")
	}

	user, err := mod.LookupUser(ctx, args[0])
	if err != nil {
		return fmt.Errorf("looking up %q: %w", args[0], err)
	}

	reason := strings.Join(args[1:], " ")
	if err := mod.BlockUser(ctx, user.ID, operatorID, reason); err != nil {
		return err
	}
	color.Green("✓ blocked %s (%d)", user.FullName, user.ID)
	return nil
}

func cmdUnblock(ctx context.Context, mod *moderation.Service, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: desk-admin unblock <id|@alias>")
	}

	user, err := mod.LookupUser(ctx, args[0])
	if err != nil {
		return fmt.Errorf("looking up %q: %w", args[0], err)
	}
	if err := mod.UnblockUser(ctx, user.ID); err != nil {
		return err
	}
	color.Green("✓ unblocked %s (%d)", user.FullName, user.ID)
	return nil
}

func cmdPromote(ctx context.Context, mod *moderation.Service, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: desk-admin promote <id|@alias>")
	}

	user, err := mod.LookupUser(ctx, args[0])
	if err != nil {
		return fmt.Errorf("looking up %q: %w", args[0], err)
	}
	if err := mod.AddAdmin(ctx, user); err != nil {
		return err
	}
	color.Green("✓ promoted %s (%d)", user.FullName, user.ID)
	return nil
}

func cmdDemote(ctx context.Context, mod *moderation.Service, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: desk-admin demote <id>")
	}

	var id int64
	if _, err := fmt.Sscanf(args[0], "%d", &id); err != nil {
		return fmt.Errorf("demote takes a numeric ID, got %q", args[0])
	}
	if err := mod.RemoveAdmin(ctx, id); err != nil {
		return err
	}
	color.Green("✓ demoted %d", id)
	return nil
}
