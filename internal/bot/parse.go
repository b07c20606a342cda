package bot

import (
	"strconv"
	"strings"
	"unicode"
)

// splitCommand splits "/cmd@bot rest..." into the command name ("cmd"),
// the bot mention after the @ (or ""), and the trimmed remainder.
// ok is false when text is not a command at all.
func splitCommand(text string) (name, mention, args string, ok bool) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return "", "", "", false
	}
	rest := text[1:]
	head := rest
	if sp := strings.IndexFunc(rest, unicode.IsSpace); sp >= 0 {
		head = rest[:sp]
		args = strings.TrimSpace(rest[sp:])
	}
	if head == "" {
		return "", "", "", false
	}
	if at := strings.IndexByte(head, '@'); at >= 0 {
		mention = head[at+1:]
		head = head[:at]
	}
	return head, mention, args, true
}

// parseTaskID extracts the numeric task id from command arguments.
func parseTaskID(args string) (int64, error) {
	fields := strings.Fields(args)
	if len(fields) == 0 {
		return 0, ErrNoArgument
	}
	id, err := strconv.ParseInt(fields[0], 10, 64)
	if err != nil || id <= 0 {
		return 0, ErrBadNumber
	}
	return id, nil
}
