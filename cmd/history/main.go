package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"guidebook/internal/config"
	"guidebook/internal/store"
)

func main() {
	setupLogging()
	docID := flag.Int64("id", 0, "document id")
	lang := flag.String("lang", "en", "locale lang")
	masked := flag.Bool("masked", false, "include masked revisions")
	flag.Parse()
	if *docID == 0 {
		fmt.Fprintln(os.Stderr, "usage: go run ./cmd/history -id <document-id> [-lang en] [-masked]")
		os.Exit(2)
	}

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

	ctx := context.Background()
	versions, err := st.DocumentHistory(ctx, *docID, *lang, *masked)
	if err != nil {
		slog.Error("read history", "id", *docID, "err", err)
		os.Exit(1)
	}
	if len(versions) == 0 {
		fmt.Printf("no versions for document %d lang %s\n", *docID, *lang)
		return
	}
	for _, v := range versions {
		mark := ""
		if v.Masked {
			mark = " [masked]"
		}
		fmt.Printf("%d\t%s\tuser %d\t%s%s\n",
			v.ID, v.WrittenAt.Format(time.RFC3339), v.UserID, v.Comment, mark)
	}

	version, lastUpdated, err := st.GetCacheVersion(ctx, *docID)
	if err != nil {
		slog.Error("read cache version", "id", *docID, "err", err)
		os.Exit(1)
	}
	fmt.Printf("cache version %d (last updated %s)\n", version, lastUpdated.Format(time.RFC3339))
}
