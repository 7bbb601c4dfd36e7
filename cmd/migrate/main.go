package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/aaravmahajanofficial/dual-tier-cart/internal/config"
	"github.com/aaravmahajanofficial/dual-tier-cart/internal/migrations"
	repository "github.com/aaravmahajanofficial/dual-tier-cart/internal/repositories"
	"github.com/joho/godotenv"
)

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	_ = godotenv.Load()

	cmd := flag.String("cmd", "up", "migration command: up|down|status|version|redo")
	configPath := flag.String("config", os.Getenv("CONFIG_PATH"), "path to the config file")
	flag.Parse()

	if *configPath == "" {
		fmt.Fprintln(os.Stderr, "missing -config or CONFIG_PATH")
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	if cfg.Store.Driver != config.DriverPostgres {
		fmt.Fprintf(os.Stderr, "store driver %q has no schema to migrate\n", cfg.Store.Driver)
		os.Exit(1)
	}

	ctx := context.Background()

	db, err := repository.OpenPostgres(ctx, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open database: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	slog.Info("migrate ready", slog.String("cmd", *cmd), slog.String("env", cfg.Env))

	if err := migrations.Run(ctx, db, *cmd, flag.Args()...); err != nil {
		fmt.Fprintf(os.Stderr, "goose %s failed: %v\n", *cmd, err)
		db.Close()
		os.Exit(1)
	}
}
