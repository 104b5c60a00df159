// SPDX-License-Identifier: Apache-2.0

// Package main is the foodscout entrypoint. It stays minimal; the
// composition root lives in internal/app.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/foodscout/foodscout/internal/app"
	"github.com/foodscout/foodscout/pkg/config"
)

func main() {
	cfgPath := flag.String("config", "", "path to config file (optional)")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	application, err := app.New(cfg)
	if err != nil {
		log.Fatalf("failed to create app: %v", err)
	}

	if err := application.Run(ctx); err != nil {
		log.Fatalf("app error: %v", err)
	}
}
