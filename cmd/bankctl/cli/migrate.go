package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/odyssey-erp/odyssey-bank/internal/platform/db"
)

// Migrator is the subset of db.Migrator the migrate command drives.
type Migrator interface {
	Up(ctx context.Context) ([]db.Migration, error)
	Down(ctx context.Context) (db.Migration, error)
	Status(ctx context.Context) ([]db.MigrationStatus, error)
}

// MigrateOptions defines the arguments of the migrate command.
type MigrateOptions struct {
	Action string
	Stdout io.Writer
	Stderr io.Writer
}

// MigrateCommand runs one migrate action and returns the process exit code.
func MigrateCommand(ctx context.Context, m Migrator, opts MigrateOptions) int {
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	switch opts.Action {
	case "up":
		ran, err := m.Up(ctx)
		for _, mig := range ran {
			_, _ = fmt.Fprintf(opts.Stdout, "applied %04d_%s\n", mig.Version, mig.Name)
		}
		if err != nil {
			_, _ = fmt.Fprintf(opts.Stderr, "migrate up: %v\n", err)
			return 1
		}
		if len(ran) == 0 {
			_, _ = fmt.Fprintln(opts.Stdout, "schema up to date")
		}
		return 0
	case "down":
		mig, err := m.Down(ctx)
		if errors.Is(err, db.ErrNoMigrationApplied) {
			_, _ = fmt.Fprintln(opts.Stdout, "nothing to revert")
			return 0
		}
		if err != nil {
			_, _ = fmt.Fprintf(opts.Stderr, "migrate down: %v\n", err)
			return 1
		}
		_, _ = fmt.Fprintf(opts.Stdout, "reverted %04d_%s\n", mig.Version, mig.Name)
		return 0
	case "status":
		statuses, err := m.Status(ctx)
		if err != nil {
			_, _ = fmt.Fprintf(opts.Stderr, "migrate status: %v\n", err)
			return 1
		}
		for _, st := range statuses {
			applied := "pending"
			if st.AppliedAt != nil {
				applied = st.AppliedAt.UTC().Format(time.RFC3339)
			}
			_, _ = fmt.Fprintf(opts.Stdout, "%04d_%s\t%s\n", st.Version, st.Name, applied)
		}
		return 0
	default:
		_, _ = fmt.Fprintf(opts.Stderr, "migrate: unknown action %q (want up, down or status)\n", opts.Action)
		return 2
	}
}
