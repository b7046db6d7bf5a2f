package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/kelseyhightower/envconfig"
	"github.com/pressly/goose/v3"

	"github.com/campusdesk/campusdesk/internal/app"
	"github.com/campusdesk/campusdesk/migrations"
)

func main() {
	flag.Usage = usage
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(2)
	}

	var cfg app.Config
	if err := envconfig.Process("", &cfg); err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := app.NewLogger(&cfg)

	if err := run(logger, cfg.PGDSN, args[0], args[1:]); err != nil {
		logger.Error("migrate", slog.String("command", args[0]), slog.Any("error", err))
		os.Exit(1)
	}
}

func run(logger *slog.Logger, dsn, command string, args []string) error {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}

	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}

	switch command {
	case "up", "down", "status", "version", "redo", "reset":
		if err := goose.RunContext(context.Background(), command, db, ".", args...); err != nil {
			return err
		}
	default:
		usage()
		return fmt.Errorf("unknown command %q", command)
	}
	logger.Info("migrations done", slog.String("command", command))
	return nil
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: migrate <command>")
	fmt.Fprintln(os.Stderr, "commands:")
	fmt.Fprintln(os.Stderr, "  up       apply all pending migrations")
	fmt.Fprintln(os.Stderr, "  down     roll back the latest migration")
	fmt.Fprintln(os.Stderr, "  redo     roll back and reapply the latest migration")
	fmt.Fprintln(os.Stderr, "  reset    roll back every migration")
	fmt.Fprintln(os.Stderr, "  status   print the migration status")
	fmt.Fprintln(os.Stderr, "  version  print the current schema version")
}
