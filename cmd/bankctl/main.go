// Command bankctl runs schema migrations and manages background jobs.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/odyssey-erp/odyssey-bank/cmd/bankctl/cli"
	"github.com/odyssey-erp/odyssey-bank/internal/app"
	"github.com/odyssey-erp/odyssey-bank/internal/platform/db"
)

const usage = `usage:
  bankctl migrate up|down|status
  bankctl jobs trigger integrity|cleanup
  bankctl jobs inspect
  bankctl jobs scheduled [-size N]
`

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Default().Warn("load .env", slog.Any("error", err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	os.Exit(run(ctx, os.Args[1:]))
}

func run(ctx context.Context, args []string) int {
	if len(args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		return 2
	}
	cfg, err := app.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		return 1
	}

	switch args[0] {
	case "migrate":
		return runMigrate(ctx, cfg, args[1])
	case "jobs":
		return runJobs(ctx, cfg, args[1], args[2:])
	default:
		fmt.Fprint(os.Stderr, usage)
		return 2
	}
}

func runMigrate(ctx context.Context, cfg *app.Config, action string) int {
	pool, err := db.New(ctx, cfg.PGDSN, cfg.PGMaxConns)
	if err != nil {
		fmt.Fprintf(os.Stderr, "connect postgres: %v\n", err)
		return 1
	}
	defer pool.Close()

	migrator, err := db.NewMigrator(pool)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load migrations: %v\n", err)
		return 1
	}
	return cli.MigrateCommand(ctx, migrator, cli.MigrateOptions{Action: action})
}

func runJobs(ctx context.Context, cfg *app.Config, action string, rest []string) int {
	jobsCLI, err := cli.NewJobsCLI(cfg.RedisOpt(), cfg.IdempotencyRetention)
	if err != nil {
		fmt.Fprintf(os.Stderr, "jobs: %v\n", err)
		return 1
	}
	defer func() { _ = jobsCLI.Close() }()

	switch action {
	case "trigger":
		if len(rest) != 1 {
			fmt.Fprint(os.Stderr, usage)
			return 2
		}
		info, err := jobsCLI.Trigger(ctx, rest[0])
		if err != nil {
			fmt.Fprintf(os.Stderr, "jobs trigger: %v\n", err)
			return 1
		}
		fmt.Printf("enqueued %s id=%s queue=%s\n", info.Type, info.ID, info.Queue)
	case "inspect":
		stats, err := jobsCLI.InspectQueue(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "jobs inspect: %v\n", err)
			return 1
		}
		fmt.Printf("queue=%s pending=%d active=%d scheduled=%d retry=%d\n",
			stats.Queue, stats.Pending, stats.Active, stats.Scheduled, stats.Retry)
	case "scheduled":
		fs := flag.NewFlagSet("jobs scheduled", flag.ContinueOnError)
		size := fs.Int("size", 10, "page size")
		if err := fs.Parse(rest); err != nil {
			return 2
		}
		tasks, err := jobsCLI.ListScheduled(ctx, *size)
		if err != nil {
			fmt.Fprintf(os.Stderr, "jobs scheduled: %v\n", err)
			return 1
		}
		for _, t := range tasks {
			fmt.Printf("%s\t%s\t%s\n", t.ID, t.Type, t.NextProcessAt.UTC().Format("2006-01-02T15:04:05Z"))
		}
	default:
		fmt.Fprint(os.Stderr, usage)
		return 2
	}
	return 0
}
