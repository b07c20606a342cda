// Package bot is the command protocol layer: it parses inbound chat
// commands, mutates the task store, and mirrors every successful write
// into the live timer registry so the two never drift while the process
// is alive.
package bot

import (
	"context"
	"fmt"
	"strings"

	"replaybot/internal/dispatch"
	"replaybot/internal/schedule"
	"replaybot/internal/storage"
	"replaybot/internal/transport"
	"replaybot/pkg/logx"
)

// User-visible reply text. Kept byte-for-byte stable; chat clients and
// the accompanying tests depend on these strings.
const (
	msgGreeting     = "Hello from Message Replay! 👋"
	msgTaskAdded    = "✅ Task %d has been added. "
	msgNoTasks      = "You have no tasks!"
	msgTaskList     = "List of tasks:\n"
	msgTaskNotFound = "Task not found"
	msgInvalidArgs  = "Invalid arguments"
	msgCleared      = "✅ Tasks cleared"
	msgCronParse    = "Couldn't parse the CRON expression."
	msgCronInvalid  = "Your CRON expression is invalid"
	msgInternal     = "Something went wrong, please try again."
)

type Handler struct {
	store storage.Store
	reg   *schedule.Registry
	disp  *dispatch.Dispatcher
	send  transport.Sender
	log   logx.Logger

	// username is the bot handle without the leading @. Commands
	// explicitly addressed to a different bot are ignored.
	username string
}

func NewHandler(store storage.Store, reg *schedule.Registry, disp *dispatch.Dispatcher, send transport.Sender, username string, log logx.Logger) *Handler {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Handler{
		store:    store,
		reg:      reg,
		disp:     disp,
		send:     send,
		username: strings.TrimPrefix(username, "@"),
		log:      log,
	}
}

// Commands returns the command menu published to the transport.
func Commands() []transport.BotCommand {
	return []transport.BotCommand{
		{Command: "replay", Description: "Schedule the replied-to message on a cron expression"},
		{Command: "tasks", Description: "List this chat's scheduled tasks"},
		{Command: "test", Description: "Send a task's payload once, right now"},
		{Command: "clear", Description: "Delete all of this chat's tasks"},
		{Command: "id", Description: "Show this chat's id"},
	}
}

// HandleUpdate processes one inbound update. Every command is an
// independent transaction; validation failures become replies and never
// reach the store or the registry.
func (h *Handler) HandleUpdate(ctx context.Context, up transport.Update) {
	m := up.Message
	if m == nil {
		return
	}

	name, mention, args, ok := splitCommand(m.Text)
	if !ok {
		if h.isMention(m.Text) {
			h.reply(ctx, m.ChatID, fmt.Sprintf("Your id is %d", m.ChatID))
		}
		return
	}
	if mention != "" && !strings.EqualFold(mention, h.username) {
		return
	}

	var reply string
	var err error

	switch name {
	case "start":
		reply = msgGreeting
	case "replay":
		reply, err = h.replay(ctx, m, args)
	case "tasks":
		reply, err = h.tasks(ctx, m.ChatID)
	case "test":
		reply, err = h.test(ctx, m.ChatID, args)
	case "clear":
		reply, err = h.clear(ctx, m.ChatID)
	case "id":
		reply = fmt.Sprintf("id: %d", m.ChatID)
	default:
		return
	}

	if err != nil {
		h.log.Error("command failed", logx.String("command", name), logx.Int64("chat", m.ChatID), logx.Err(err))
		reply = msgInternal
	}
	if reply != "" {
		h.reply(ctx, m.ChatID, reply)
	}
}

// replay creates and arms a task from the replied-to message.
func (h *Handler) replay(ctx context.Context, m *transport.Message, expr string) (string, error) {
	if expr == "" || m.ReplyTo == nil {
		return msgCronParse, nil
	}
	if !h.reg.Validate(expr) {
		return msgCronInvalid, nil
	}

	draft := storage.Task{
		ChatID: m.ChatID,
		Cron:   expr,
	}
	if doc := m.ReplyTo.Document; doc != nil {
		draft.Msg = doc.FileID
		draft.Type = storage.MsgFile
		draft.Caption = m.ReplyTo.Caption
	} else {
		draft.Msg = m.ReplyTo.Text
		draft.Type = storage.MsgText
	}

	task, err := h.store.Insert(ctx, draft)
	if err != nil {
		// Do not arm a timer for a task that failed to persist.
		return "", err
	}
	if err := h.reg.Arm(task); err != nil {
		return "", err
	}
	return fmt.Sprintf(msgTaskAdded, task.ID), nil
}

func (h *Handler) tasks(ctx context.Context, chatID int64) (string, error) {
	tasks, err := h.store.ListByChat(ctx, chatID)
	if err != nil {
		return "", err
	}
	if len(tasks) == 0 {
		return msgNoTasks, nil
	}
	lines := make([]string, 0, len(tasks))
	for _, t := range tasks {
		lines = append(lines, fmt.Sprintf("#%d %s (%s)", t.ID, t.Display(), t.Type))
	}
	return msgTaskList + strings.Join(lines, "\n"), nil
}

// test sends a task's payload once, bypassing the scheduler and the
// registry entirely.
func (h *Handler) test(ctx context.Context, chatID int64, args string) (string, error) {
	id, err := parseTaskID(args)
	if err != nil {
		return msgInvalidArgs, nil
	}
	task, err := h.store.FindByChatAndID(ctx, chatID, id)
	if err != nil {
		return "", err
	}
	if task == nil {
		return msgTaskNotFound, nil
	}
	snap := schedule.Snapshot{
		TaskID:  task.ID,
		ChatID:  task.ChatID,
		Msg:     task.Msg,
		Caption: task.Caption,
		Type:    task.Type,
	}
	if err := h.disp.Dispatch(ctx, snap); err != nil {
		// Best-effort one-shot send; log and move on.
		h.log.Warn("test send failed", logx.Int64("task", task.ID), logx.Err(err))
	}
	return "", nil
}

// clear deletes every task of the chat and disarms their timers. The ids
// are read before the delete so no live timer is orphaned.
func (h *Handler) clear(ctx context.Context, chatID int64) (string, error) {
	tasks, err := h.store.ListByChat(ctx, chatID)
	if err != nil {
		return "", err
	}
	if _, err := h.store.DeleteByChat(ctx, chatID); err != nil {
		return "", err
	}
	for _, t := range tasks {
		h.reg.Disarm(t.ID)
	}
	return msgCleared, nil
}

func (h *Handler) isMention(text string) bool {
	return h.username != "" && strings.Contains(text, "@"+h.username)
}

func (h *Handler) reply(ctx context.Context, chatID int64, text string) {
	if err := h.send.SendText(ctx, chatID, text); err != nil {
		h.log.Warn("reply failed", logx.Int64("chat", chatID), logx.Err(err))
	}
}
