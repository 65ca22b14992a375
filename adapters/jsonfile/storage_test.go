package jsonfile

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"listenquest/core"
)

func TestPersistAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "progress.json")
	ctx := context.Background()

	s, err := New(path)
	if err != nil {
		t.Fatal(err)
	}
	st := core.NewState("alice", time.Now().UTC())
	st.FocusPoints = 750
	st.Achievements["hour_one"] = struct{}{}
	if err := s.Save(ctx, "alice", st); err != nil {
		t.Fatal(err)
	}

	reopened, err := New(path)
	if err != nil {
		t.Fatal(err)
	}
	got, found, err := reopened.Load(ctx, "alice")
	if err != nil || !found {
		t.Fatalf("load after reopen: found=%v err=%v", found, err)
	}
	if got.FocusPoints != 750 {
		t.Fatalf("focus points = %d, want 750", got.FocusPoints)
	}
	if _, ok := got.Achievements["hour_one"]; !ok {
		t.Fatal("achievement set lost across reopen")
	}
}

func TestMissingFileIsEmpty(t *testing.T) {
	s, err := New(filepath.Join(t.TempDir(), "nope", "progress.json"))
	if err != nil {
		t.Fatal(err)
	}
	_, found, err := s.Load(context.Background(), "alice")
	if err != nil || found {
		t.Fatalf("fresh store: found=%v err=%v", found, err)
	}
}
