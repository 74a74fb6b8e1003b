// Command session logs the console operator in or out and inspects the
// persisted session, using the same token store and configuration as the
// console server.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"milkadmin/internal/backend"
	"milkadmin/internal/platform/config"
	redisclient "milkadmin/internal/platform/redis"
	"milkadmin/internal/session"
	"milkadmin/internal/session/models"
	"milkadmin/internal/session/store"
	"milkadmin/pkg/requestcontext"
)

const cliUserAgent = "milkadmin-session-cli/1.0"

type statusOutput struct {
	State      models.State    `json:"state"`
	UserID     *int64          `json:"userId,omitempty"`
	LoggedInAt *time.Time      `json:"loggedInAt,omitempty"`
	Device     string          `json:"device,omitempty"`
	Profile    *models.Profile `json:"profile,omitempty"`
}

func main() {
	loginCmd := flag.NewFlagSet("login", flag.ExitOnError)
	loginUser := loginCmd.String("user", "", "Username, email or phone")
	loginPassword := loginCmd.String("password", "", "Password (defaults to $MILKADMIN_PASSWORD)")
	loginJSON := loginCmd.Bool("json", false, "Output as JSON")

	statusCmd := flag.NewFlagSet("status", flag.ExitOnError)
	statusJSON := statusCmd.Bool("json", false, "Output as JSON")

	logoutCmd := flag.NewFlagSet("logout", flag.ExitOnError)

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	ctx = requestcontext.WithClientMetadata(ctx, "127.0.0.1", cliUserAgent)

	var err error
	switch os.Args[1] {
	case "login":
		_ = loginCmd.Parse(os.Args[2:])
		password := *loginPassword
		if password == "" {
			password = os.Getenv("MILKADMIN_PASSWORD")
		}
		err = withGate(ctx, func(gate *session.Service) error {
			snap, err := gate.Login(ctx, *loginUser, password)
			if err != nil {
				return err
			}
			return printStatus(ctx, gate, snap, *loginJSON)
		})
	case "status":
		_ = statusCmd.Parse(os.Args[2:])
		err = withGate(ctx, func(gate *session.Service) error {
			return printStatus(ctx, gate, gate.Snapshot(), *statusJSON)
		})
	case "logout":
		_ = logoutCmd.Parse(os.Args[2:])
		err = withGate(ctx, func(gate *session.Service) error {
			gate.Logout(ctx)
			fmt.Println("Logged out.")
			return nil
		})
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", describe(err))
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`session - manage the milkadmin operator session

Usage:
  session <command> [flags]

Commands:
  login     Log in and persist the token pair
  status    Restore the persisted session and show who is logged in
  logout    Clear the persisted session

Examples:
  session login -user alice -password Secret123
  MILKADMIN_PASSWORD=Secret123 session login -user alice@milkshop.vn
  session status -json

The token store, backend URL and secrets come from the same environment
variables (or .env) as the console server.`)
}

// withGate builds a session gate over the configured token store, restores
// the persisted session and runs fn.
func withGate(ctx context.Context, fn func(*session.Service) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	if os.Getenv("SESSION_CLI_DEBUG") != "" {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}

	tokens, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	api, err := backend.New(backend.Config{BaseURL: cfg.Backend.BaseURL, Timeout: cfg.Backend.Timeout},
		backend.WithLogger(logger),
	)
	if err != nil {
		return err
	}
	gate := session.NewService(backend.NewAuthClient(api), tokens, session.WithLogger(logger))
	if err := gate.Initialize(ctx); err != nil {
		return err
	}
	return fn(gate)
}

func openStore(ctx context.Context, cfg *config.Config) (session.TokenStore, func(), error) {
	switch cfg.Session.TokenStore {
	case "file":
		fs, err := store.NewFileStore(cfg.Session.TokenFile, cfg.Session.TokenSecret)
		return fs, func() {}, err
	case "redis":
		client, err := redisclient.New(ctx, cfg.Redis, prometheus.NewRegistry())
		if err != nil {
			return nil, nil, err
		}
		return store.NewRedisStore(client, store.WithKeyPrefix(cfg.Redis.KeyPrefix)), func() { _ = client.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("TOKEN_STORE=%s keeps nothing between runs; use file or redis", cfg.Session.TokenStore)
	}
}

func printStatus(ctx context.Context, gate *session.Service, snap models.Snapshot, jsonOutput bool) error {
	out := statusOutput{
		State:      snap.State,
		UserID:     snap.UserID,
		LoggedInAt: snap.LoggedInAt,
		Device:     snap.Device,
	}
	if snap.Authenticated() {
		profile, err := gate.Profile(ctx)
		if err != nil {
			return err
		}
		out.Profile = profile
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	fmt.Println("Operator Session")
	fmt.Println("================")
	fmt.Printf("State:       %s\n", out.State)
	if out.UserID != nil {
		fmt.Printf("User ID:     %d\n", *out.UserID)
	}
	if out.LoggedInAt != nil {
		fmt.Printf("Logged in:   %s\n", out.LoggedInAt.Local().Format(time.DateTime))
	}
	if out.Device != "" {
		fmt.Printf("Device:      %s\n", out.Device)
	}
	if p := out.Profile; p != nil {
		fmt.Printf("Name:        %s\n", p.FullName)
		fmt.Printf("Email:       %s\n", p.Email)
		fmt.Printf("Role:        %s\n", p.RoleName)
	}
	return nil
}

// describe prefers the operator-facing messages of a backend failure.
func describe(err error) string {
	var authErr *session.AuthenticationError
	if errors.As(err, &authErr) {
		return authErr.Reason
	}
	var apiErr *backend.APIError
	if errors.As(err, &apiErr) {
		return strings.Join(apiErr.Messages(), "\n  ")
	}
	return err.Error()
}
