// Command mindmate-admin provisions dashboard admins against the configured
// database.
//
//	mindmate-admin create <email> <password>
//	mindmate-admin delete <email>
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/mindmate-health/mindmate"
	"github.com/mindmate-health/mindmate/internal/service/accounts"
	"github.com/mindmate-health/mindmate/internal/storage"
)

const usage = `usage:
  mindmate-admin create <email> <password>
  mindmate-admin delete <email>`

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	os.Exit(run(context.Background(), os.Args[1:], os.Stdout, logger))
}

func run(ctx context.Context, args []string, out io.Writer, logger *slog.Logger) int {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, usage)
		return 2
	}
	cmd, rest := args[0], args[1:]
	if (cmd == "create" && len(rest) != 2) || (cmd == "delete" && len(rest) != 1) || (cmd != "create" && cmd != "delete") {
		fmt.Fprintln(os.Stderr, usage)
		return 2
	}

	app, err := mindmate.New(ctx, mindmate.WithLogger(logger))
	if err != nil {
		fmt.Fprintf(os.Stderr, "mindmate-admin: %v\n", err)
		return 1
	}
	defer app.Close()

	if err := execute(ctx, app.Accounts(), cmd, rest, out); err != nil {
		fmt.Fprintf(os.Stderr, "mindmate-admin: %v\n", err)
		return 1
	}
	return 0
}

func execute(ctx context.Context, svc *accounts.Service, cmd string, args []string, out io.Writer) error {
	switch cmd {
	case "create":
		admin, err := svc.CreateAdmin(ctx, args[0], args[1])
		if err != nil {
			if errors.Is(err, accounts.ErrExists) {
				return fmt.Errorf("admin %s already exists", args[0])
			}
			return err
		}
		fmt.Fprintf(out, "created admin %s (id %d, username %s)\n", admin.Email, admin.ID, admin.Username)
	case "delete":
		if err := svc.DeleteAdmin(ctx, args[0]); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return fmt.Errorf("no admin with email %s", args[0])
			}
			return err
		}
		fmt.Fprintf(out, "deleted admin %s\n", args[0])
	}
	return nil
}
