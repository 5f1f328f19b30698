package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"syscall"
	"text/tabwriter"

	"golang.org/x/term"

	"github.com/gitbridge/gitbridge/internal/adapter/postgres"
	"github.com/gitbridge/gitbridge/internal/config"
	"github.com/gitbridge/gitbridge/internal/credential"
	"github.com/gitbridge/gitbridge/internal/remote"
)

// runAdmin dispatches admin subcommands (set-token, delete-token, list-tokens).
func runAdmin(args []string) error {
	if len(args) == 0 || args[0] == "help" || args[0] == "--help" {
		printAdminHelp()
		return nil
	}

	switch args[0] {
	case "set-token":
		return runAdminSetToken(args[1:])
	case "delete-token":
		return runAdminDeleteToken(args[1:])
	case "list-tokens":
		return runAdminListTokens(args[1:])
	default:
		printAdminHelp()
		return fmt.Errorf("unknown admin command: %s", args[0])
	}
}

func printAdminHelp() {
	fmt.Fprintf(os.Stderr, `Usage: gitbridge admin <command> [options]

Commands:
  set-token      Store an API token for a service
  delete-token   Remove a stored API token
  list-tokens    List stored tokens (metadata only)
  help           Show this help message

Examples:
  gitbridge admin set-token --service github
  gitbridge admin set-token --service gitlab --owner alice --token glpat-...
  gitbridge admin delete-token --service github --owner alice
  gitbridge admin list-tokens
`)
}

func loadAdminDeps() (*postgres.CredentialStore, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, cfg.Postgres)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to database: %w", err)
	}

	store := postgres.NewCredentialStore(pool, credential.DeriveKey(cfg.Secrets.MasterKey))
	return store, pool.Close, nil
}

// validService checks the service name against the registry so typos do not
// silently store unreachable credentials.
func validService(name string) error {
	reg := remote.NewRegistry()
	if _, err := reg.Lookup(name); err != nil {
		return fmt.Errorf("unknown service %q (expected one of: %s)", name, strings.Join(reg.IDs(), ", "))
	}
	return nil
}

func runAdminSetToken(args []string) error {
	fs := flag.NewFlagSet("set-token", flag.ContinueOnError)
	svc := fs.String("service", "", "remote service (required)")
	owner := fs.String("owner", credential.DefaultOwner, "credential owner")
	tok := fs.String("token", "", "API token (prompted if not provided)") //nolint:gosec // CLI flag
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *svc == "" {
		return fmt.Errorf("--service is required")
	}
	if err := validService(*svc); err != nil {
		return err
	}

	value := *tok
	if value == "" {
		var err error
		value, err = promptSecret("Token: ")
		if err != nil {
			return fmt.Errorf("read token: %w", err)
		}
		if value == "" {
			return fmt.Errorf("token must not be empty")
		}
	}

	store, cleanup, err := loadAdminDeps()
	if err != nil {
		return err
	}
	defer cleanup()

	if err := store.Save(context.Background(), *svc, *owner, value); err != nil {
		return fmt.Errorf("save token: %w", err)
	}

	fmt.Fprintf(os.Stderr, "Token stored for %s/%s\n", *svc, *owner)
	return nil
}

func runAdminDeleteToken(args []string) error {
	fs := flag.NewFlagSet("delete-token", flag.ContinueOnError)
	svc := fs.String("service", "", "remote service (required)")
	owner := fs.String("owner", credential.DefaultOwner, "credential owner")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *svc == "" {
		return fmt.Errorf("--service is required")
	}

	store, cleanup, err := loadAdminDeps()
	if err != nil {
		return err
	}
	defer cleanup()

	if err := store.Delete(context.Background(), *svc, *owner); err != nil {
		return fmt.Errorf("delete token: %w", err)
	}

	fmt.Fprintf(os.Stderr, "Token deleted for %s/%s\n", *svc, *owner)
	return nil
}

func runAdminListTokens(args []string) error {
	fs := flag.NewFlagSet("list-tokens", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}

	store, cleanup, err := loadAdminDeps()
	if err != nil {
		return err
	}
	defer cleanup()

	creds, err := store.List(context.Background())
	if err != nil {
		return fmt.Errorf("list tokens: %w", err)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SERVICE\tOWNER\tCREATED\tUPDATED")
	for _, c := range creds {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			c.Service, c.Owner,
			c.CreatedAt.Format("2006-01-02 15:04"),
			c.UpdatedAt.Format("2006-01-02 15:04"))
	}
	return w.Flush()
}

// promptSecret reads a secret from the terminal without echo.
func promptSecret(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	b, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(b)), nil
}
