package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"replaybot/pkg/logx"
)

func openTestStore(t *testing.T) (Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tasks.db")
	st, err := Open(Config{Path: path, BusyTimeout: time.Second}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st, path
}

func TestInsertAssignsMonotonicIDs(t *testing.T) {
	t.Parallel()
	st, _ := openTestStore(t)
	ctx := context.Background()

	first, err := st.Insert(ctx, Task{ChatID: 42, Cron: "0 9 * * *", Msg: "refill the tank", Type: MsgText})
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	second, err := st.Insert(ctx, Task{ChatID: 42, Cron: "*/5 * * * *", Msg: "file-id", Caption: "invoice", Type: MsgFile})
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if first.ID != 1 || second.ID != 2 {
		t.Fatalf("ids = %d, %d; want 1, 2", first.ID, second.ID)
	}
	if first.CreatedAt.IsZero() || first.UpdatedAt.IsZero() {
		t.Fatal("timestamps not set on insert")
	}
}

func TestListByChatScoping(t *testing.T) {
	t.Parallel()
	st, _ := openTestStore(t)
	ctx := context.Background()

	for _, chat := range []int64{42, 42, 7} {
		if _, err := st.Insert(ctx, Task{ChatID: chat, Cron: "0 9 * * *", Msg: "m", Type: MsgText}); err != nil {
			t.Fatalf("Insert: %v", err)
		}
	}

	mine, err := st.ListByChat(ctx, 42)
	if err != nil {
		t.Fatalf("ListByChat: %v", err)
	}
	if len(mine) != 2 {
		t.Fatalf("len = %d, want 2", len(mine))
	}
	for _, task := range mine {
		if task.ChatID != 42 {
			t.Fatalf("leaked task from chat %d", task.ChatID)
		}
	}

	all, err := st.ListAll(ctx)
	if err != nil {
		t.Fatalf("ListAll: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("ListAll len = %d, want 3", len(all))
	}
}

func TestFindByChatAndID(t *testing.T) {
	t.Parallel()
	st, _ := openTestStore(t)
	ctx := context.Background()

	ins, err := st.Insert(ctx, Task{ChatID: 42, Cron: "0 9 * * *", Msg: "doc-id", Caption: "report", Type: MsgFile})
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}

	got, err := st.FindByChatAndID(ctx, 42, ins.ID)
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if got == nil {
		t.Fatal("Find returned nil for existing task")
	}
	if got.Msg != "doc-id" || got.Caption != "report" || got.Type != MsgFile {
		t.Fatalf("unexpected task: %+v", got)
	}

	// Absent id: null, not an error.
	got, err = st.FindByChatAndID(ctx, 42, 999)
	if err != nil || got != nil {
		t.Fatalf("Find(999) = %+v, %v; want nil, nil", got, err)
	}

	// Owned by a different chat: also null.
	got, err = st.FindByChatAndID(ctx, 7, ins.ID)
	if err != nil || got != nil {
		t.Fatalf("cross-chat Find = %+v, %v; want nil, nil", got, err)
	}
}

func TestDeleteByChat(t *testing.T) {
	t.Parallel()
	st, _ := openTestStore(t)
	ctx := context.Background()

	for _, chat := range []int64{42, 42, 7} {
		if _, err := st.Insert(ctx, Task{ChatID: chat, Cron: "0 9 * * *", Msg: "m", Type: MsgText}); err != nil {
			t.Fatalf("Insert: %v", err)
		}
	}

	n, err := st.DeleteByChat(ctx, 42)
	if err != nil {
		t.Fatalf("DeleteByChat: %v", err)
	}
	if n != 2 {
		t.Fatalf("deleted = %d, want 2", n)
	}

	left, err := st.ListAll(ctx)
	if err != nil {
		t.Fatalf("ListAll: %v", err)
	}
	if len(left) != 1 || left[0].ChatID != 7 {
		t.Fatalf("other chat's tasks touched: %+v", left)
	}

	// Idempotent against an already-empty chat.
	n, err = st.DeleteByChat(ctx, 42)
	if err != nil || n != 0 {
		t.Fatalf("second delete = %d, %v; want 0, nil", n, err)
	}
}

func TestRowsSurviveReopen(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "tasks.db")
	ctx := context.Background()

	st, err := Open(Config{Path: path}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	ins, err := st.Insert(ctx, Task{ChatID: 42, Cron: "0 9 * * *", Msg: "refill the tank", Type: MsgText})
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := st.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	st2, err := Open(Config{Path: path}, logx.Nop())
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer st2.Close()

	got, err := st2.FindByChatAndID(ctx, 42, ins.ID)
	if err != nil {
		t.Fatalf("Find after reopen: %v", err)
	}
	if got == nil || got.Cron != "0 9 * * *" || got.Msg != "refill the tank" {
		t.Fatalf("task did not survive reopen: %+v", got)
	}
}

func TestDisplay(t *testing.T) {
	t.Parallel()
	if got := (Task{Msg: "hello", Type: MsgText}).Display(); got != "hello" {
		t.Fatalf("Display = %q, want %q", got, "hello")
	}
	if got := (Task{Msg: "file-id", Caption: "invoice", Type: MsgFile}).Display(); got != "invoice" {
		t.Fatalf("Display = %q, want %q", got, "invoice")
	}
}
