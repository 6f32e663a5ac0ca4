package cli

import (
	"errors"
	"testing"
)

func TestNewRootCmd(t *testing.T) {
	cmd := NewRootCmd()
	if cmd == nil {
		t.Fatal("NewRootCmd() returned nil")
	}
	if cmd.Use != "retrace" {
		t.Fatalf("Use = %q, want %q", cmd.Use, "retrace")
	}
	for _, name := range []string{"record", "play", "simulate", "inspect", "convert", "generate"} {
		if sub, _, err := cmd.Find([]string{name}); err != nil || sub.Name() != name {
			t.Errorf("missing subcommand %q", name)
		}
	}
}

func TestExitCode(t *testing.T) {
	if got := ExitCode(nil); got != 0 {
		t.Errorf("ExitCode(nil) = %d, want 0", got)
	}
	if got := ExitCode(errors.New("boom")); got != 1 {
		t.Errorf("ExitCode(err) = %d, want 1", got)
	}
}
