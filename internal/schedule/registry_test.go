package schedule

import (
	"context"
	"errors"
	"testing"
	"time"

	"replaybot/internal/storage"
	"replaybot/pkg/logx"
)

func newTestRegistry(t *testing.T, fire FireFunc) *Registry {
	t.Helper()
	if fire == nil {
		fire = func(context.Context, Snapshot) {}
	}
	r := New(DefaultTimezone, fire, logx.Nop())
	r.Start()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		r.Stop(ctx)
	})
	return r
}

func TestValidate(t *testing.T) {
	t.Parallel()
	r := New(DefaultTimezone, func(context.Context, Snapshot) {}, logx.Nop())

	tests := []struct {
		expr  string
		valid bool
	}{
		{"*/5 * * * *", true},
		{"0 9 * * *", true},
		{"0 0 9 * * *", true}, // optional seconds field
		{"@hourly", true},
		{"@every 10m", true},
		{"not a cron", false},
		{"", false},
		{"61 * * * *", false},
		{"* * * * * * *", false},
	}
	for _, tt := range tests {
		if got := r.Validate(tt.expr); got != tt.valid {
			t.Errorf("Validate(%q) = %v, want %v", tt.expr, got, tt.valid)
		}
	}
}

func TestNextFireAfter(t *testing.T) {
	t.Parallel()
	r := New(DefaultTimezone, func(context.Context, Snapshot) {}, logx.Nop())

	loc, err := time.LoadLocation(DefaultTimezone)
	if err != nil {
		t.Fatalf("LoadLocation: %v", err)
	}
	from := time.Date(2024, 5, 1, 10, 0, 0, 0, loc)
	next, err := r.NextFireAfter("0 9 * * *", from)
	if err != nil {
		t.Fatalf("NextFireAfter error: %v", err)
	}
	want := time.Date(2024, 5, 2, 9, 0, 0, 0, loc)
	if !next.Equal(want) {
		t.Fatalf("next = %v, want %v", next, want)
	}

	if _, err := r.NextFireAfter("bogus", from); err == nil {
		t.Fatal("expected error for invalid expression")
	}
}

func TestArmRequiresStart(t *testing.T) {
	t.Parallel()
	r := New(DefaultTimezone, func(context.Context, Snapshot) {}, logx.Nop())
	err := r.Arm(storage.Task{ID: 1, Cron: "0 9 * * *"})
	if !errors.Is(err, ErrNotStarted) {
		t.Fatalf("Arm before Start = %v, want ErrNotStarted", err)
	}
}

func TestArmDisarmLifecycle(t *testing.T) {
	t.Parallel()
	r := newTestRegistry(t, nil)

	task := storage.Task{ID: 7, ChatID: 42, Cron: "0 9 * * *", Msg: "hi", Type: storage.MsgText}
	if err := r.Arm(task); err != nil {
		t.Fatalf("Arm: %v", err)
	}
	if got := r.Count(); got != 1 {
		t.Fatalf("Count = %d, want 1", got)
	}

	// Re-arming a live id is a programming error, never a silent replace.
	if err := r.Arm(task); !errors.Is(err, ErrAlreadyArmed) {
		t.Fatalf("second Arm = %v, want ErrAlreadyArmed", err)
	}
	if got := r.Count(); got != 1 {
		t.Fatalf("Count after failed re-arm = %d, want 1", got)
	}

	r.Disarm(7)
	if got := r.Count(); got != 0 {
		t.Fatalf("Count after Disarm = %d, want 0", got)
	}
	// Idempotent: a second disarm is a no-op.
	r.Disarm(7)
	if got := r.Count(); got != 0 {
		t.Fatalf("Count after double Disarm = %d, want 0", got)
	}
}

func TestDisarmAll(t *testing.T) {
	t.Parallel()
	r := newTestRegistry(t, nil)
	for _, id := range []int64{1, 2, 3} {
		if err := r.Arm(storage.Task{ID: id, Cron: "0 9 * * *"}); err != nil {
			t.Fatalf("Arm(%d): %v", id, err)
		}
	}
	if n := r.DisarmAll(); n != 3 {
		t.Fatalf("DisarmAll = %d, want 3", n)
	}
	if got := r.Count(); got != 0 {
		t.Fatalf("Count = %d, want 0", got)
	}
}

func TestArmInvalidCron(t *testing.T) {
	t.Parallel()
	r := newTestRegistry(t, nil)
	if err := r.Arm(storage.Task{ID: 1, Cron: "bogus"}); err == nil {
		t.Fatal("expected error arming invalid cron")
	}
	if got := r.Count(); got != 0 {
		t.Fatalf("Count = %d, want 0", got)
	}
}

func TestRestartRebuildsSameTimers(t *testing.T) {
	t.Parallel()
	rows := []storage.Task{
		{ID: 1, ChatID: 42, Cron: "0 9 * * *", Msg: "a", Type: storage.MsgText},
		{ID: 2, ChatID: 42, Cron: "*/5 * * * *", Msg: "b", Type: storage.MsgFile, Caption: "cap"},
		{ID: 5, ChatID: 7, Cron: "@hourly", Msg: "c", Type: storage.MsgText},
	}

	r1 := newTestRegistry(t, nil)
	for _, row := range rows {
		if err := r1.Arm(row); err != nil {
			t.Fatalf("Arm(%d): %v", row.ID, err)
		}
	}
	before := r1.ArmedIDs()

	// Simulated restart: all live timers dropped, rows re-armed from the
	// same persisted set.
	r2 := newTestRegistry(t, nil)
	for _, row := range rows {
		if err := r2.Arm(row); err != nil {
			t.Fatalf("re-Arm(%d): %v", row.ID, err)
		}
	}
	after := r2.ArmedIDs()

	if len(before) != len(after) {
		t.Fatalf("armed ids differ: %v vs %v", before, after)
	}
	for i := range before {
		if before[i] != after[i] {
			t.Fatalf("armed ids differ: %v vs %v", before, after)
		}
	}
}

func TestFireDeliversSnapshot(t *testing.T) {
	t.Parallel()
	fired := make(chan Snapshot, 1)
	r := newTestRegistry(t, func(_ context.Context, snap Snapshot) {
		select {
		case fired <- snap:
		default:
		}
	})

	// @every delays below one second round up to a second in the cron
	// engine; the wait below accounts for that.
	task := storage.Task{ID: 3, ChatID: 42, Cron: "@every 10ms", Msg: "payload", Caption: "cap", Type: storage.MsgFile}
	if err := r.Arm(task); err != nil {
		t.Fatalf("Arm: %v", err)
	}

	select {
	case snap := <-fired:
		if snap.TaskID != 3 || snap.ChatID != 42 || snap.Msg != "payload" || snap.Caption != "cap" || snap.Type != storage.MsgFile {
			t.Fatalf("unexpected snapshot: %+v", snap)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timer never fired")
	}
	r.Disarm(3)
}
