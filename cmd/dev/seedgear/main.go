package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"agency/internal/catalog"
	"agency/pkg/config"
	"agency/pkg/db"
)

func main() {
	var (
		path   = flag.String("file", "data/gear.json", "JSON array of equipment records")
		dryRun = flag.Bool("dry-run", false, "validate the file without writing")
	)
	flag.Parse()

	raw, err := os.ReadFile(*path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "read %s: %v\n", *path, err)
		os.Exit(1)
	}

	var items []catalog.Equipment
	if err := json.Unmarshal(raw, &items); err != nil {
		fmt.Fprintf(os.Stderr, "parse %s: %v\n", *path, err)
		os.Exit(1)
	}
	for i := range items {
		if err := items[i].Validate(); err != nil {
			fmt.Fprintf(os.Stderr, "record %d: %v\n", i, err)
			os.Exit(1)
		}
	}
	if *dryRun {
		fmt.Printf("%d equipment records ok\n", len(items))
		return
	}

	cfg := config.Load()
	ctx := context.Background()

	pool, err := db.Open(ctx, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "db open: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()

	if cfg.MigrationsPath != "" {
		if err := db.MigrateConfig(cfg.MigrationsPath, cfg); err != nil {
			fmt.Fprintf(os.Stderr, "migrate: %v\n", err)
			os.Exit(1)
		}
	}

	repo := catalog.NewRepository(pool)
	for _, e := range items {
		saved, err := repo.Upsert(ctx, e)
		if err != nil {
			fmt.Fprintf(os.Stderr, "upsert %s: %v\n", e.ID, err)
			os.Exit(1)
		}
		fmt.Printf("upserted %s (%s, %s/day)\n", saved.ID, saved.Status, saved.Price.StringFixed(2))
	}
}
