package memory

import (
	"context"
	"testing"
	"time"

	"listenquest/core"
)

func TestLoadAbsent(t *testing.T) {
	s := New()
	_, found, err := s.Load(context.Background(), "alice")
	if err != nil {
		t.Fatal(err)
	}
	if found {
		t.Fatal("unknown player should not be found")
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	s := New()
	ctx := context.Background()

	st := core.NewState("alice", time.Now().UTC())
	st.Experience = 500
	st.ActivityMinutes["meditate"] = 25
	if err := s.Save(ctx, "alice", st); err != nil {
		t.Fatal(err)
	}

	got, found, err := s.Load(ctx, "alice")
	if err != nil || !found {
		t.Fatalf("load: found=%v err=%v", found, err)
	}
	if got.Experience != 500 || got.ActivityMinutes["meditate"] != 25 {
		t.Fatalf("round trip lost data: %+v", got)
	}

	// Returned state must be isolated from the stored copy.
	got.ActivityMinutes["meditate"] = 999
	again, _, _ := s.Load(ctx, "alice")
	if again.ActivityMinutes["meditate"] != 25 {
		t.Fatal("Load must return a deep copy")
	}
}
