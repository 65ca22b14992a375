package main

import (
	"log/slog"
	"net/http"
	"os"

	mem "listenquest/adapters/memory"
	"listenquest/api/httpapi"
	"listenquest/engine"
	"listenquest/leaderboard"
	"listenquest/quest"
	"listenquest/realtime"
)

// Minimal memory-backed server for local experimentation. The production
// binary with config, wire and pluggable storage lives in cmd/listenquest-server.
func main() {
	// Use readable text logging for development/demo
	textHandler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})
	slog.SetDefault(slog.New(textHandler))

	hub := realtime.NewHub()
	board := leaderboard.NewSkipList()
	reg := quest.New(
		quest.WithStorage(mem.New()),
		quest.WithRealtime(hub),
		quest.WithLeaderboard(board),
		quest.WithDispatchMode(engine.DispatchAsync),
	)
	defer reg.Close()

	handler := httpapi.NewMux(reg, board, hub, httpapi.Options{AllowCORSOrigin: "*"})

	slog.Info("starting demo server on :8080")

	if err := http.ListenAndServe(":8080", handler); err != nil {
		slog.Error("demo server crashed", "error", err)
		os.Exit(1)
	}
}
