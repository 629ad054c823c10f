// Package main implements the surechembl client binary.
// It incrementally synchronizes a relational store from the SureChEMBL
// chemical structure feed, in daily front-file or yearly back-file mode.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/aretasg/surechembl-mini-client/internal/config"
	"github.com/aretasg/surechembl-mini-client/internal/db"
	"github.com/aretasg/surechembl-mini-client/internal/feed"
	"github.com/aretasg/surechembl-mini-client/internal/ingest"
	"github.com/aretasg/surechembl-mini-client/internal/remote"
)

type flags struct {
	configPath string
	mode       string

	// Front-file date selection. All zero means "today".
	day   int
	month int
	year  int

	// Back-file year range.
	startYear int
	endYear   int

	workers int
}

func main() {
	f := parseFlags()

	// Credentials are commonly kept in a local .env during development.
	_ = godotenv.Load()

	cfg, err := loadConfig(f)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		log.Fatalf("Failed to prepare directories: %v", err)
	}

	logger := log.New(os.Stderr, "", log.LstdFlags)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	handle, dialect, err := db.Open(ctx, db.Params{
		Driver:   cfg.DB.Driver,
		Host:     cfg.DB.Host,
		Port:     cfg.DB.Port,
		User:     cfg.DB.User,
		Password: cfg.DB.Password,
		Name:     cfg.DB.Name,
		Schema:   cfg.DB.Schema,
		Path:     cfg.DB.Path,
	})
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer handle.Close()

	loader, err := db.NewLoader(handle, dialect, cfg.DB.Table, "id", logger)
	if err != nil {
		log.Fatalf("Failed to create loader: %v", err)
	}
	if err := loader.EnsureTable(ctx); err != nil {
		log.Fatalf("Failed to bootstrap table: %v", err)
	}

	dialer, err := buildDialer(cfg)
	if err != nil {
		log.Fatalf("Failed to configure feed transport: %v", err)
	}

	client := &ingest.Client{
		Dialer:       dialer,
		Loader:       loader,
		Backlog:      feed.NewBacklog(cfg.BacklogPath),
		FrontfileDir: cfg.Remote.FrontfileDir,
		BackfileDir:  cfg.Remote.BackfileDir,
		WorkDir:      cfg.WorkDir,
		Workers:      cfg.Ingest.Workers,
		Logger:       logger,
	}

	switch f.mode {
	case "frontfile":
		spec := feed.DateSpec{Day: f.day, Month: f.month, Year: f.year}
		err = client.LoadFrontfile(ctx, spec)
	case "backfile":
		err = client.LoadBackfile(ctx, f.startYear, f.endYear)
	default:
		log.Fatalf("Unknown mode %q (must be frontfile or backfile)", f.mode)
	}
	if err != nil {
		log.Fatalf("Run failed: %v", err)
	}

	logger.Printf("Run complete.")
}

func parseFlags() flags {
	f := flags{}

	flag.StringVar(&f.configPath, "config", "", "Path to YAML or JSON config file")
	flag.StringVar(&f.mode, "mode", "frontfile", "Run mode: frontfile or backfile")
	flag.IntVar(&f.day, "day", 0, "Front-file day to ingest (requires -month and -year)")
	flag.IntVar(&f.month, "month", 0, "Front-file month to ingest (requires -year)")
	flag.IntVar(&f.year, "year", 0, "Front-file year to ingest")
	flag.IntVar(&f.startYear, "start-year", 0, "First back-file year to ingest")
	flag.IntVar(&f.endYear, "end-year", 0, "Last back-file year to ingest")
	flag.IntVar(&f.workers, "workers", 0, "Parallel fetch workers (overrides config)")

	flag.Parse()
	return f
}

// loadConfig assembles the effective configuration: file, then environment,
// then command-line overrides.
func loadConfig(f flags) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if f.configPath != "" {
		loaded, err := config.LoadFromFile(f.configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	config.LoadFromEnv(cfg)

	if f.workers > 0 {
		cfg.Ingest.Workers = f.workers
	}

	cfg.Resolve()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// buildDialer constructs the feed transport from configuration.
func buildDialer(cfg *config.Config) (remote.Dialer, error) {
	switch cfg.Remote.Type {
	case "ftp":
		return &remote.FTPDialer{Config: remote.FTPConfig{
			Addr:     cfg.Remote.Addr,
			User:     cfg.Remote.User,
			Password: cfg.Remote.Password,
			Timeout:  cfg.Remote.Timeout,
		}}, nil
	case "s3":
		return &remote.S3Dialer{Config: remote.S3Config{
			Bucket:       cfg.Remote.S3.Bucket,
			Region:       cfg.Remote.S3.Region,
			Endpoint:     cfg.Remote.S3.Endpoint,
			UsePathStyle: cfg.Remote.S3.UsePathStyle,
		}}, nil
	default:
		return nil, fmt.Errorf("unknown remote type %q", cfg.Remote.Type)
	}
}
