package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/geocoder89/absencehub/internal/config"
	"github.com/geocoder89/absencehub/internal/observability"
	"github.com/geocoder89/absencehub/internal/repo"
	"github.com/geocoder89/absencehub/internal/security"
	"github.com/geocoder89/absencehub/internal/service"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	file := flag.String("file", "", "roster export (JSON array)")
	flag.Parse()

	cfg := config.Load()
	log := observability.NewLogger(cfg.Env)
	slog.SetDefault(log)

	if *file == "" {
		log.Error("missing -file")
		os.Exit(2)
	}

	if err := cfg.Validate(); err != nil {
		log.Error("invalid config", "err", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(
		context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
	)
	defer stop()

	records, err := readRoster(*file)
	if err != nil {
		log.Error("read roster failed", "file", *file, "err", err)
		os.Exit(1)
	}

	backend, err := repo.Open(ctx, cfg, observability.NewProm(prometheus.NewRegistry()))
	if err != nil {
		log.Error("store init failed", "driver", cfg.DBDriver, "err", err)
		os.Exit(1)
	}
	defer func() { _ = backend.Close(context.Background()) }()

	users := service.NewUserService(backend.Users, backend.Tokens, backend.Tx, security.NewHasher(cfg.BcryptCost))

	report, err := users.ImportUsers(ctx, records)
	if err != nil {
		log.Error("import failed", "created", report.Created, "err", err)
		os.Exit(1)
	}

	for _, skip := range report.Skipped {
		log.Warn("record skipped", "row", skip.Row, "name", skip.Name, "reason", skip.Reason)
	}

	log.Info("import complete", "created", report.Created, "skipped", len(report.Skipped))
}

func readRoster(path string) ([]service.ImportRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var records []service.ImportRecord
	if err := json.NewDecoder(f).Decode(&records); err != nil {
		return nil, err
	}
	return records, nil
}
