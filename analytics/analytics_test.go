package analytics

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"listenquest/core"
)

func TestDailyActiveListeners(t *testing.T) {
	d := NewDailyActiveListeners()
	d.OnEvent(core.NewXPGained("alice", "meditate", 5, 10, 10))
	d.OnEvent(core.NewXPGained("bob", "commute", 3, 9, 9))
	d.OnEvent(core.NewXPGained("alice", "meditate", 2, 4, 14))

	day := time.Now().UTC().Format("2006-01-02")
	if got := d.Count(day); got != 2 {
		t.Fatalf("expected 2 active listeners, got %d", got)
	}
	if got := d.Count("1999-01-01"); got != 0 {
		t.Fatalf("expected 0 for unseen day, got %d", got)
	}
}

func TestListeningMetricsAggregation(t *testing.T) {
	m := NewListeningMetrics()
	day := time.Now().UTC().Format("2006-01-02")

	m.OnEvent(core.NewXPGained("alice", "meditate", 60, 120, 120))
	m.OnEvent(core.NewXPGained("bob", "commute", 30, 90, 90))
	m.OnEvent(core.NewFPGained("alice", 600, 600))
	m.OnEvent(core.NewLevelUp("alice", 2))
	m.OnEvent(core.NewAchievementUnlocked("alice", "hour_one", 100, 700))
	m.OnEvent(core.NewUpgradePurchased("alice", "basic_headphones", 500))
	m.OnEvent(core.NewOfflineProgress("bob", 1440, 2880, 14400))

	if got := m.MinutesByDay(day); got != 90 {
		t.Fatalf("minutes by day = %d, want 90", got)
	}
	if got := m.MinutesByActivity("meditate"); got != 60 {
		t.Fatalf("meditate minutes = %d, want 60", got)
	}
	if got := m.FocusEarnedByDay(day); got != 600 {
		t.Fatalf("focus earned = %d, want 600", got)
	}
	if got := m.FocusSpentByDay(day); got != 500 {
		t.Fatalf("focus spent = %d, want 500", got)
	}
	if got := m.LevelUpsByDay(day); got != 1 {
		t.Fatalf("level ups = %d, want 1", got)
	}
	if got := m.AchievementUnlocks("hour_one"); got != 1 {
		t.Fatalf("achievement unlocks = %d, want 1", got)
	}
	if got := m.UpgradePurchases("basic_headphones"); got != 1 {
		t.Fatalf("upgrade purchases = %d, want 1", got)
	}
	if got := m.OfflineMinutesByDay(day); got != 1440 {
		t.Fatalf("offline minutes = %d, want 1440", got)
	}
}

func TestSnapshotSummary(t *testing.T) {
	m := NewListeningMetrics()
	m.OnEvent(core.NewXPGained("alice", "meditate", 10, 20, 20))
	m.OnEvent(core.NewFPGained("alice", 100, 100))
	m.OnEvent(core.NewLevelUp("alice", 3))

	s := m.Snapshot()
	if s.TotalMinutes != 10 || s.TotalFocusEarned != 100 {
		t.Fatalf("unexpected summary: %+v", s)
	}
	if s.LevelDistribution[3] != 1 {
		t.Fatalf("level distribution missing level 3: %+v", s.LevelDistribution)
	}
	// Summary must be a copy; mutating it must not touch the aggregator.
	s.MinutesByActivity["meditate"] = 999
	if m.MinutesByActivity("meditate") != 10 {
		t.Fatal("Snapshot must return copies")
	}
}

func TestHTTPExporterBatches(t *testing.T) {
	var batches [][]Summary
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		_ = r.Body.Close()
		var batch []Summary
		_ = json.Unmarshal(body, &batch)
		batches = append(batches, batch)
	}))
	defer srv.Close()

	e := NewHTTPExporter(srv.URL, "token", 2)
	ctx := context.Background()

	if err := e.Export(ctx, Summary{TotalMinutes: 1}); err != nil {
		t.Fatal(err)
	}
	if len(batches) != 0 {
		t.Fatal("should buffer below batch size")
	}
	if err := e.Export(ctx, Summary{TotalMinutes: 2}); err != nil {
		t.Fatal(err)
	}
	if len(batches) != 1 || len(batches[0]) != 2 {
		t.Fatalf("expected one flushed batch of 2, got %v", batches)
	}

	if err := e.Export(ctx, Summary{TotalMinutes: 3}); err != nil {
		t.Fatal(err)
	}
	if err := e.Close(); err != nil {
		t.Fatal(err)
	}
	if len(batches) != 2 {
		t.Fatalf("Close should flush remainder, got %d batches", len(batches))
	}
}
