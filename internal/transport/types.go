// Package transport defines the chat-transport contract the bot core is
// written against. The concrete Telegram implementation lives in
// transport/telegram; the core only sees these types.
package transport

import "context"

// Update is one inbound event from the chat transport.
type Update struct {
	Message *Message
}

// Message is a transport-neutral view of a chat message.
//
// For messages carrying a file, Document is non-nil and Caption holds the
// file caption (empty if none). ReplyTo is the quoted message for replies.
type Message struct {
	ID           int
	ChatID       int64
	FromID       int64
	FromUsername string
	Text         string
	Caption      string
	Document     *Document
	ReplyTo      *Message
}

// Document is an opaque reference to a file already stored by the
// transport. FileID can be re-sent without re-uploading the content.
type Document struct {
	FileID string
}

// Sender is the outbound half of the transport: the two send primitives
// the dispatcher needs. Implementations must tolerate concurrent calls.
type Sender interface {
	SendText(ctx context.Context, chatID int64, text string) error
	SendDocument(ctx context.Context, chatID int64, fileID, caption string) error
}

// Adapter is a full transport client: outbound sends plus inbound update
// delivery. Start pushes updates into out until Stop is called; it must
// not block on a slow consumer.
type Adapter interface {
	Sender

	Start(ctx context.Context, out chan<- Update) error
	Stop(ctx context.Context) error
}

// BotCommand represents a single bot command menu entry.
type BotCommand struct {
	Command     string
	Description string
}

// CommandMenuUpdater is an optional interface that adapters can implement
// to update platform-specific bot command menus (e.g. Telegram / list).
type CommandMenuUpdater interface {
	UpdateMenuCommands(ctx context.Context, cmds []BotCommand) error
}
