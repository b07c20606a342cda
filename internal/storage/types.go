package storage

import "time"

// MsgType discriminates the payload shape of a task.
type MsgType string

const (
	MsgText MsgType = "text"
	MsgFile MsgType = "file"
)

// Task is the sole persistent entity: a message to re-send into a chat on
// a recurring cron schedule.
//
// Invariants: ID is immutable once assigned by Insert; Cron is always a
// syntactically valid expression (callers validate before Insert); when
// Type is MsgFile, Msg holds an opaque file reference and Caption may be
// set; when Type is MsgText, Msg holds literal text and Caption is
// ignored.
type Task struct {
	ID        int64
	ChatID    int64
	Cron      string
	Msg       string
	Caption   string
	Type      MsgType
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Display returns the string shown in task listings: the caption when one
// exists, else the message text (which is the file id for file tasks).
func (t Task) Display() string {
	if t.Caption != "" {
		return t.Caption
	}
	return t.Msg
}

type Config struct {
	Path        string
	BusyTimeout time.Duration // 0 means default
}
