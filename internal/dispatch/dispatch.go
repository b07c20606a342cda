// Package dispatch routes a task payload to the right transport send
// primitive: document-with-caption for file tasks, plain text otherwise.
package dispatch

import (
	"context"
	"time"

	"replaybot/internal/schedule"
	"replaybot/internal/storage"
	"replaybot/internal/transport"
	"replaybot/pkg/logx"
)

const sendTimeout = 30 * time.Second

type Dispatcher struct {
	send transport.Sender
	log  logx.Logger
}

func New(send transport.Sender, log logx.Logger) *Dispatcher {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Dispatcher{send: send, log: log}
}

// Dispatch sends the payload once. The caller decides what to do with a
// transport failure; nothing is retried here.
func (d *Dispatcher) Dispatch(ctx context.Context, snap schedule.Snapshot) error {
	if snap.Type == storage.MsgFile {
		return d.send.SendDocument(ctx, snap.ChatID, snap.Msg, snap.Caption)
	}
	return d.send.SendText(ctx, snap.ChatID, snap.Msg)
}

// Fire is the schedule.FireFunc adapter for scheduled fires: it bounds
// the send, logs a failure, and swallows it so the timer mechanism never
// sees the error. The task stays armed and fires again on its next
// schedule match.
func (d *Dispatcher) Fire(ctx context.Context, snap schedule.Snapshot) {
	ctx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()

	start := time.Now()
	if err := d.Dispatch(ctx, snap); err != nil {
		d.log.Warn("scheduled send failed",
			logx.Int64("task", snap.TaskID),
			logx.Int64("chat", snap.ChatID),
			logx.Err(err))
		return
	}
	d.log.Info("scheduled send ok",
		logx.Int64("task", snap.TaskID),
		logx.Int64("chat", snap.ChatID),
		logx.Duration("took", time.Since(start)))
}
