package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/vadimbarashkov/shortlinks/internal/app"
	"github.com/vadimbarashkov/shortlinks/internal/config"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load .env file: %w", err)
	}

	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "./configs/config.yml"
	}

	cfg, err := config.Load(path)
	if err != nil {
		return err
	}

	return app.Run(ctx, cfg)
}
