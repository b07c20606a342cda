package bot

import (
	"errors"
	"testing"
)

func TestSplitCommand(t *testing.T) {
	t.Parallel()
	tests := []struct {
		text    string
		name    string
		mention string
		args    string
		ok      bool
	}{
		{"/replay 0 9 * * *", "replay", "", "0 9 * * *", true},
		{"/replay@replaymsgbot   */5 * * * *  ", "replay", "replaymsgbot", "*/5 * * * *", true},
		{"/tasks", "tasks", "", "", true},
		{"/test\t12", "test", "", "12", true},
		{"plain text", "", "", "", false},
		{"", "", "", "", false},
		{"/", "", "", "", false},
	}
	for _, tt := range tests {
		name, mention, args, ok := splitCommand(tt.text)
		if name != tt.name || mention != tt.mention || args != tt.args || ok != tt.ok {
			t.Errorf("splitCommand(%q) = (%q, %q, %q, %v), want (%q, %q, %q, %v)",
				tt.text, name, mention, args, ok, tt.name, tt.mention, tt.args, tt.ok)
		}
	}
}

func TestParseTaskID(t *testing.T) {
	t.Parallel()

	id, err := parseTaskID("12 trailing junk")
	if err != nil || id != 12 {
		t.Fatalf("parseTaskID = %d, %v; want 12, nil", id, err)
	}

	if _, err := parseTaskID(""); !errors.Is(err, ErrNoArgument) {
		t.Fatalf("empty args err = %v, want ErrNoArgument", err)
	}
	for _, bad := range []string{"abc", "0", "-3", "1.5"} {
		if _, err := parseTaskID(bad); !errors.Is(err, ErrBadNumber) {
			t.Fatalf("parseTaskID(%q) err = %v, want ErrBadNumber", bad, err)
		}
	}
}
