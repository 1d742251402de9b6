package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"slices"
	"strings"
	"text/tabwriter"

	"golang.org/x/term"

	tsnats "github.com/Strob0t/ticketslack/internal/adapter/nats"
	"github.com/Strob0t/ticketslack/internal/adapter/postgres"
	"github.com/Strob0t/ticketslack/internal/config"
	"github.com/Strob0t/ticketslack/internal/port/eventbus"
	"github.com/Strob0t/ticketslack/internal/service"
)

// runAdmin dispatches admin subcommands (migrate, settings, publish).
func runAdmin(args []string) error {
	if len(args) == 0 || args[0] == "help" || args[0] == "--help" {
		printAdminHelp()
		return nil
	}

	switch args[0] {
	case "migrate":
		return runAdminMigrate(args[1:])
	case "settings":
		return runAdminSettings(args[1:])
	case "publish":
		return runAdminPublish(args[1:])
	default:
		printAdminHelp()
		return fmt.Errorf("unknown admin command: %s", args[0])
	}
}

func printAdminHelp() {
	fmt.Fprintf(os.Stderr, `Usage: ticketslack admin <command> [options]

Commands:
  migrate up|down|version   Apply, roll back or report database migrations
  settings show|set         Show or change the plugin settings
  publish                   Publish a host event onto NATS
  help                      Show this help message

Examples:
  ticketslack admin migrate up
  ticketslack admin migrate down --steps 1
  ticketslack admin settings show
  ticketslack admin settings set slack-webhook-url=https://hooks.slack.com/services/T/B/X
  ticketslack admin publish --signal ticket.created --data '{"ticket_id":42}'
`)
}

func loadAdminConfig(fs *flag.FlagSet, args []string) (*config.Config, error) {
	path := fs.String("config", config.DefaultConfigFile, "path to YAML config file")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	cfg, _, err := config.LoadWithCLI(config.CLIFlags{ConfigPath: path})
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func runAdminMigrate(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("migrate requires one of: up, down, version")
	}

	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	steps := fs.Int("steps", 1, "number of migrations to roll back (down only)")
	cfg, err := loadAdminConfig(fs, args[1:])
	if err != nil {
		return err
	}

	ctx := context.Background()
	switch args[0] {
	case "up":
		if err := postgres.RunMigrations(ctx, cfg.Postgres.DSN); err != nil {
			return fmt.Errorf("migrate up: %w", err)
		}
		fmt.Fprintln(os.Stderr, "Migrations applied")
	case "down":
		if err := postgres.RollbackMigrations(ctx, cfg.Postgres.DSN, *steps); err != nil {
			return fmt.Errorf("migrate down: %w", err)
		}
		fmt.Fprintf(os.Stderr, "Rolled back %d migration(s)\n", *steps)
	case "version":
		v, err := postgres.MigrationVersion(ctx, cfg.Postgres.DSN)
		if err != nil {
			return fmt.Errorf("migrate version: %w", err)
		}
		fmt.Println(v)
	default:
		return fmt.Errorf("unknown migrate command: %s", args[0])
	}
	return nil
}

func loadSettingsService(ctx context.Context, cfg *config.Config) (*service.SettingsService, func(), error) {
	pool, err := postgres.NewPool(ctx, cfg.Postgres)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to database: %w", err)
	}
	store := postgres.NewStore(pool, nil)
	return service.NewSettingsService(store, cfg.Host.BaseURL), pool.Close, nil
}

func runAdminSettings(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("settings requires one of: show, set")
	}

	fs := flag.NewFlagSet("settings", flag.ContinueOnError)
	cfg, err := loadAdminConfig(fs, args[1:])
	if err != nil {
		return err
	}

	ctx := context.Background()
	svc, cleanup, err := loadSettingsService(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	switch args[0] {
	case "show":
		values, err := svc.Values(ctx)
		if err != nil {
			return err
		}
		return printSettings(values)
	case "set":
		values, err := parseAssignments(fs.Args())
		if err != nil {
			return err
		}
		if err := svc.Save(ctx, values); err != nil {
			return fmt.Errorf("save settings: %w", err)
		}
		fmt.Fprintf(os.Stderr, "Saved %d setting(s)\n", len(values))
		return nil
	default:
		return fmt.Errorf("unknown settings command: %s", args[0])
	}
}

// printSettings renders a table on a terminal and JSON otherwise.
func printSettings(values map[string]string) error {
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(values)
	}

	if len(values) == 0 {
		fmt.Println("No settings stored.")
		return nil
	}

	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "KEY\tVALUE")
	for _, k := range keys {
		_, _ = fmt.Fprintf(w, "%s\t%s\n", k, values[k])
	}
	return w.Flush()
}

// parseAssignments turns key=value arguments into a settings map.
func parseAssignments(args []string) (map[string]string, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("settings set requires key=value arguments")
	}
	values := make(map[string]string, len(args))
	for _, a := range args {
		k, v, ok := strings.Cut(a, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid assignment %q, want key=value", a)
		}
		values[k] = v
	}
	return values, nil
}

func runAdminPublish(args []string) error {
	fs := flag.NewFlagSet("publish", flag.ContinueOnError)
	signal := fs.String("signal", "", "event signal (ticket.created or threadentry.created)")
	data := fs.String("data", "", "JSON event payload")
	cfg, err := loadAdminConfig(fs, args)
	if err != nil {
		return err
	}

	if cfg.NATS.URL == "" {
		return fmt.Errorf("nats.url is not configured")
	}
	if err := eventbus.Validate(*signal, []byte(*data)); err != nil {
		return err
	}

	ctx := context.Background()
	bus, err := tsnats.Connect(ctx, cfg.NATS.URL, cfg.NATS.Stream, cfg.NATS.Durable)
	if err != nil {
		return fmt.Errorf("nats: %w", err)
	}
	defer func() { _ = bus.Close() }()

	if err := bus.Publish(ctx, *signal, []byte(*data)); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "Published %s\n", *signal)
	return nil
}
