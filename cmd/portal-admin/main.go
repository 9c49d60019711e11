// Package main is the entry point for the GraphRAG portal admin CLI.
// This tool manages user accounts and workspaces directly against the
// credential store, without going through the HTTP API.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/term"

	"github.com/prn-tf/graphrag-portal/internal/config"
	"github.com/prn-tf/graphrag-portal/internal/domain"
	"github.com/prn-tf/graphrag-portal/internal/lock"
	"github.com/prn-tf/graphrag-portal/internal/repository"
	"github.com/prn-tf/graphrag-portal/internal/repository/jsonfile"
	"github.com/prn-tf/graphrag-portal/internal/repository/sqlite"
	"github.com/prn-tf/graphrag-portal/internal/service"
	"github.com/prn-tf/graphrag-portal/internal/workspace"
)

// Version information (set at build time)
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	args := os.Args[2:]

	switch command {
	case "version":
		fmt.Printf("GraphRAG Portal Admin CLI\n")
		fmt.Printf("Version: %s\n", Version)
		fmt.Printf("Build Time: %s\n", BuildTime)
		fmt.Printf("Git Commit: %s\n", GitCommit)

	case "list":
		run(cmdList, args)

	case "add":
		run(cmdAdd, args)

	case "reset-password":
		run(cmdResetPassword, args)

	case "delete":
		run(cmdDelete, args)

	case "toggle":
		run(cmdToggle, args)

	case "purge-workspace":
		run(cmdPurgeWorkspace, args)

	case "help", "-h", "--help":
		printUsage()

	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`GraphRAG Portal Admin CLI

Usage:
  portal-admin <command> [arguments]

Commands:
  list              List all accounts
  add               Add a new account
  reset-password    Reset an account's password
  delete            Delete an account (workspace data is kept)
  toggle            Enable or disable an account
  purge-workspace   Remove a workspace directory and all its data
  version           Print version information
  help              Show this help message

Examples:
  portal-admin list
  portal-admin add -username john -email john@example.com
  portal-admin reset-password -username john
  portal-admin toggle -username john
  portal-admin delete -username john
  portal-admin purge-workspace -username john -yes

Passwords are prompted interactively unless -password is given.
The store location comes from the same configuration as the server
(USERS_FILE, or -config for a config file).`)
	fmt.Println()
}

// env ties the CLI to the same store and lock backend as the server.
type env struct {
	cfg    *config.Config
	svc    *service.AccountService
	logger zerolog.Logger
}

// run opens the credential store, executes the command, and translates
// failure into exit status 1.
func run(cmd func(ctx context.Context, e *env, args []string) error, args []string) {
	// The CLI logs human-readable output only; structured logs would
	// drown the tables it prints.
	logger := zerolog.New(os.Stderr).Level(zerolog.WarnLevel)

	fs := flag.NewFlagSet("portal-admin", flag.ExitOnError)
	configPath := fs.String("config", "", "path to configuration file")

	// Stop at the first non-flag argument so command flags pass through.
	globalArgs, cmdArgs := splitGlobalFlags(args)
	_ = fs.Parse(globalArgs)

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	repo, err := openStore(ctx, cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer repo.Close()

	e := &env{
		cfg:    cfg,
		svc:    service.NewAccountService(repo, lock.NewMemoryLocker(), logger),
		logger: logger,
	}

	if err := cmd(ctx, e, cmdArgs); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// splitGlobalFlags separates a leading -config flag from command flags.
func splitGlobalFlags(args []string) (global, rest []string) {
	for i := 0; i < len(args); i++ {
		if args[i] == "-config" || args[i] == "--config" {
			if i+1 < len(args) {
				global = append(global, args[i], args[i+1])
				i++
			}
			continue
		}
		rest = append(rest, args[i])
	}
	return global, rest
}

// openStore opens the configured credential store backend.
func openStore(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (repository.AccountRepository, error) {
	switch cfg.Store.Driver {
	case repository.DriverJSONFile:
		return jsonfile.New(cfg.Store.UsersFile, logger)
	case repository.DriverSQLite:
		db, err := sqlite.NewDB(ctx, sqlite.Config{
			Path:            cfg.Store.SQLitePath,
			JournalMode:     cfg.Store.JournalMode,
			BusyTimeout:     cfg.Store.BusyTimeout,
			SynchronousMode: cfg.Store.SynchronousMode,
		}, logger)
		if err != nil {
			return nil, err
		}
		return sqlite.NewAccountRepository(db), nil
	default:
		return nil, repository.ErrUnknownDriver
	}
}

// =============================================================================
// Commands
// =============================================================================

func cmdList(ctx context.Context, e *env, args []string) error {
	accounts, err := e.svc.List(ctx)
	if err != nil {
		return err
	}

	if len(accounts) == 0 {
		fmt.Println("No accounts.")
		return nil
	}

	fmt.Printf("%-20s %-30s %-10s %-25s %s\n", "USERNAME", "EMAIL", "STATUS", "WORKSPACE", "CREATED")
	for _, a := range accounts {
		status := "active"
		if !a.Active {
			status = "disabled"
		}
		fmt.Printf("%-20s %-30s %-10s %-25s %s\n",
			a.Username, a.Email, status, a.Workspace, a.CreatedAt.Format(time.RFC3339))
	}
	return nil
}

func cmdAdd(ctx context.Context, e *env, args []string) error {
	fs := flag.NewFlagSet("add", flag.ExitOnError)
	username := fs.String("username", "", "username for the new account")
	email := fs.String("email", "", "email address (optional)")
	password := fs.String("password", "", "password (prompted if omitted)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *username == "" {
		return fmt.Errorf("-username is required")
	}

	pw := *password
	if pw == "" {
		var err error
		pw, err = promptPassword(true)
		if err != nil {
			return err
		}
	}

	account, err := e.svc.Create(ctx, service.CreateAccountInput{
		Username: *username,
		Email:    *email,
		Password: pw,
	})
	if err != nil {
		return err
	}

	fmt.Printf("Account %q created (workspace %s).\n", account.Username, account.Workspace)
	return nil
}

func cmdResetPassword(ctx context.Context, e *env, args []string) error {
	fs := flag.NewFlagSet("reset-password", flag.ExitOnError)
	username := fs.String("username", "", "account to reset")
	password := fs.String("password", "", "new password (prompted if omitted)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *username == "" {
		return fmt.Errorf("-username is required")
	}

	pw := *password
	if pw == "" {
		var err error
		pw, err = promptPassword(true)
		if err != nil {
			return err
		}
	}

	if err := e.svc.ResetPassword(ctx, *username, pw); err != nil {
		return err
	}

	fmt.Printf("Password for %q reset.\n", *username)
	return nil
}

func cmdDelete(ctx context.Context, e *env, args []string) error {
	fs := flag.NewFlagSet("delete", flag.ExitOnError)
	username := fs.String("username", "", "account to delete")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *username == "" {
		return fmt.Errorf("-username is required")
	}

	if err := e.svc.Delete(ctx, *username); err != nil {
		return err
	}

	fmt.Printf("Account %q deleted. Workspace %s was kept; use purge-workspace to remove its data.\n",
		*username, domain.WorkspaceID(*username))
	return nil
}

func cmdToggle(ctx context.Context, e *env, args []string) error {
	fs := flag.NewFlagSet("toggle", flag.ExitOnError)
	username := fs.String("username", "", "account to toggle")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *username == "" {
		return fmt.Errorf("-username is required")
	}

	active, err := e.svc.Toggle(ctx, *username)
	if err != nil {
		return err
	}

	if active {
		fmt.Printf("Account %q is now active.\n", *username)
	} else {
		fmt.Printf("Account %q is now disabled.\n", *username)
	}
	return nil
}

func cmdPurgeWorkspace(ctx context.Context, e *env, args []string) error {
	fs := flag.NewFlagSet("purge-workspace", flag.ExitOnError)
	username := fs.String("username", "", "owner of the workspace to purge")
	yes := fs.Bool("yes", false, "skip the confirmation prompt")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *username == "" {
		return fmt.Errorf("-username is required")
	}

	workspaceID := domain.WorkspaceID(*username)
	if !*yes {
		fmt.Printf("This permanently deletes all data in workspace %s. Type the workspace name to confirm: ", workspaceID)
		var confirm string
		if _, err := fmt.Scanln(&confirm); err != nil || confirm != workspaceID {
			return fmt.Errorf("aborted")
		}
	}

	resolver := workspace.NewResolver(e.cfg.Workspace.Root, lock.NewNoOpLocker(), e.logger)
	if err := resolver.Purge(ctx, workspaceID); err != nil {
		return err
	}

	fmt.Printf("Workspace %s purged.\n", workspaceID)
	return nil
}

// promptPassword reads a password from the terminal without echo.
func promptPassword(confirm bool) (string, error) {
	fmt.Fprint(os.Stderr, "Password: ")
	first, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}

	if confirm {
		fmt.Fprint(os.Stderr, "Confirm password: ")
		second, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		if string(first) != string(second) {
			return "", errors.New("passwords do not match")
		}
	}

	return string(first), nil
}
