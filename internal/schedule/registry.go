// Package schedule owns the live timers: a process-wide registry mapping
// task ids to armed recurring cron entries. It is the single source of
// truth for what is currently scheduled to fire.
package schedule

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"replaybot/internal/storage"
	"replaybot/pkg/logx"
)

// DefaultTimezone is the single fixed timezone every schedule is
// evaluated in, regardless of the chat's locale.
const DefaultTimezone = "Asia/Bangkok"

var (
	// ErrAlreadyArmed is returned when Arm is called for an id that
	// already has a live timer. Callers must disarm first; the registry
	// never silently replaces.
	ErrAlreadyArmed = errors.New("task already armed")

	// ErrNotStarted is returned when Arm is called before Start.
	ErrNotStarted = errors.New("registry not started")
)

// Snapshot is the immutable task payload a timer carries for the lifetime
// of its arming. It is copied out of the store row at arm time and never
// aliases a mutable row.
type Snapshot struct {
	TaskID  int64
	ChatID  int64
	Msg     string
	Caption string
	Type    storage.MsgType
}

// FireFunc is invoked once per schedule match with the armed snapshot.
// It runs on the cron entry's own goroutine; a slow call delays only the
// same task's next fire, never other tasks.
type FireFunc func(ctx context.Context, snap Snapshot)

type Registry struct {
	log  logx.Logger
	fire FireFunc
	loc  *time.Location

	mu      sync.Mutex
	parser  cron.Parser
	c       *cron.Cron
	entries map[int64]cron.EntryID
}

// New builds a registry firing in the given IANA timezone. An invalid or
// empty timezone falls back to time.Local with a warning.
func New(tz string, fire FireFunc, log logx.Logger) *Registry {
	if log.IsZero() {
		log = logx.Nop()
	}
	loc := time.Local
	if tz != "" {
		l, err := time.LoadLocation(tz)
		if err != nil {
			log.Warn("invalid timezone; falling back to Local", logx.String("tz", tz), logx.Err(err))
		} else {
			loc = l
		}
	}
	return &Registry{
		log:  log,
		fire: fire,
		loc:  loc,
		// Optional leading seconds field: accept both 5- and 6-field
		// expressions, plus @descriptors.
		parser:  cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
		entries: map[int64]cron.EntryID{},
	}
}

// Validate reports whether expr is a syntactically valid cron expression.
// Pure check, no side effects.
func (r *Registry) Validate(expr string) bool {
	_, err := r.parser.Parse(expr)
	return err == nil
}

// NextFireAfter returns the first schedule match of expr strictly after
// from, evaluated in the registry's timezone.
func (r *Registry) NextFireAfter(expr string, from time.Time) (time.Time, error) {
	sched, err := r.parser.Parse(expr)
	if err != nil {
		return time.Time{}, err
	}
	return sched.Next(from.In(r.loc)), nil
}

// Start begins the cron runner. Must be called before Arm.
func (r *Registry) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.c != nil {
		return
	}
	r.c = cron.New(cron.WithParser(r.parser), cron.WithLocation(r.loc))
	r.c.Start()
	r.log.Info("registry started", logx.String("tz", r.loc.String()))
}

// Arm creates a recurring timer for the task and binds it to the task id.
// The payload is snapshotted here; later row mutations are invisible to
// the timer. Overlapping fires of the same task are allowed: sends are
// broadcast-like and a hung send must not block the next fire.
func (r *Registry) Arm(t storage.Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.c == nil {
		return ErrNotStarted
	}
	if _, ok := r.entries[t.ID]; ok {
		return fmt.Errorf("arm task %d: %w", t.ID, ErrAlreadyArmed)
	}

	snap := Snapshot{
		TaskID:  t.ID,
		ChatID:  t.ChatID,
		Msg:     t.Msg,
		Caption: t.Caption,
		Type:    t.Type,
	}
	eid, err := r.c.AddFunc(t.Cron, func() {
		r.fire(context.Background(), snap)
	})
	if err != nil {
		return fmt.Errorf("arm task %d: %w", t.ID, err)
	}
	r.entries[t.ID] = eid
	r.log.Info("task armed", logx.Int64("id", t.ID), logx.String("cron", t.Cron))
	return nil
}

// Disarm cancels the task's timer. Disarming an absent id is a no-op.
// After Disarm returns, no future fire for the id can begin; a fire
// already in flight is allowed to complete.
func (r *Registry) Disarm(id int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	eid, ok := r.entries[id]
	if !ok {
		return
	}
	r.c.Remove(eid)
	delete(r.entries, id)
	r.log.Info("task disarmed", logx.Int64("id", id))
}

// DisarmAll cancels every live timer. Used at shutdown and reported as
// the number of timers removed.
func (r *Registry) DisarmAll() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := len(r.entries)
	for id, eid := range r.entries {
		if r.c != nil {
			r.c.Remove(eid)
		}
		delete(r.entries, id)
		r.log.Info("task disarmed", logx.Int64("id", id))
	}
	return n
}

// Stop halts the cron runner after disarming everything still live. It
// waits for in-flight fires to finish (bounded by ctx).
func (r *Registry) Stop(ctx context.Context) {
	r.DisarmAll()

	r.mu.Lock()
	c := r.c
	r.c = nil
	r.mu.Unlock()
	if c == nil {
		return
	}
	select {
	case <-c.Stop().Done():
	case <-ctx.Done():
		r.log.Warn("registry stop timed out with fires in flight")
	}
	r.log.Info("registry stopped")
}

// Count returns the number of live timers.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// ArmedIDs returns the ids of all live timers in ascending order.
func (r *Registry) ArmedIDs() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]int64, 0, len(r.entries))
	for id := range r.entries {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
