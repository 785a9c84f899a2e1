package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"guidebook/internal/config"
	"guidebook/internal/store"
)

func main() {
	setupLogging()
	cfg := config.Load()
	st, err := store.OpenWithOptions(cfg.DBPath, store.Options{
		LockTimeout:   cfg.LockTimeout,
		GeomTolerance: cfg.GeomTolerance,
	})
	if err != nil {
		slog.Error("open store", "path", cfg.DBPath, "err", err)
		os.Exit(1)
	}
	defer st.Close()

	version, err := st.SchemaVersion(context.Background())
	if err != nil {
		slog.Error("read schema version", "err", err)
		os.Exit(1)
	}
	fmt.Printf("database %s at schema version %d\n", cfg.DBPath, version)
}
