package bot

import "errors"

// Sentinel errors for command-argument parsing. Handlers map them to
// user-visible reply text; they never escape HandleUpdate.
var (
	ErrNoArgument = errors.New("missing command argument")
	ErrBadNumber  = errors.New("argument is not a task number")
)
