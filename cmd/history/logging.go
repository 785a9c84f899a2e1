package main

import (
	"log/slog"
	"os"
	"strings"
)

func setupLogging() {
	level := slog.LevelInfo
	switch strings.ToLower(os.Getenv("GUIDEBOOK_DEBUG_LEVEL")) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	var handler slog.Handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	pretty := os.Getenv("GUIDEBOOK_LOG_PRETTY")
	if strings.EqualFold(pretty, "1") || strings.EqualFold(pretty, "true") {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	}
	slog.SetDefault(slog.New(handler))
}
