package main

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

// TestNewRootCmd tests the root command creation.
func TestNewRootCmd(t *testing.T) {
	t.Parallel()

	cmd := NewRootCmd()

	t.Run("has correct use", func(t *testing.T) {
		t.Parallel()
		if cmd.Use != "siteharvest" {
			t.Errorf("expected use 'siteharvest', got %q", cmd.Use)
		}
	})

	t.Run("has version", func(t *testing.T) {
		t.Parallel()
		if cmd.Version == "" {
			t.Error("expected non-empty version")
		}
	})

	t.Run("has verbose flag", func(t *testing.T) {
		t.Parallel()
		flag := cmd.PersistentFlags().Lookup("verbose")
		if flag == nil {
			t.Fatal("expected verbose flag")
		}
		if flag.Shorthand != "v" {
			t.Errorf("expected shorthand 'v', got %q", flag.Shorthand)
		}
	})

	t.Run("has subcommands", func(t *testing.T) {
		t.Parallel()

		names := make(map[string]bool)
		for _, sub := range cmd.Commands() {
			names[sub.Name()] = true
		}
		for _, want := range []string{"extract", "assets", "compare", "init", "version"} {
			if !names[want] {
				t.Errorf("expected %s subcommand", want)
			}
		}
	})

	t.Run("silences usage and errors", func(t *testing.T) {
		t.Parallel()
		if !cmd.SilenceUsage || !cmd.SilenceErrors {
			t.Error("expected usage and errors to be silenced")
		}
	})
}

// TestNewLogger tests logger selection by the global flags.
func TestNewLogger(t *testing.T) {
	// newLogger replaces the slog default, so this test is not parallel.
	defer slog.SetDefault(slog.Default())

	t.Run("json output redacts secrets", func(t *testing.T) {
		cmd := NewRootCmd()
		if err := cmd.PersistentFlags().Set("log-json", "true"); err != nil {
			t.Fatalf("failed to set flag: %v", err)
		}
		var buf bytes.Buffer
		cmd.SetErr(&buf)

		newLogger(cmd, false).Warn("fetch", "cookie", "session=1")

		var entry map[string]any
		if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
			t.Fatalf("expected JSON log line, got %q: %v", buf.String(), err)
		}
		if entry["cookie"] == "session=1" {
			t.Error("expected cookie to be masked")
		}
	})

	t.Run("text output hides debug unless verbose", func(t *testing.T) {
		cmd := NewRootCmd()
		var buf bytes.Buffer
		cmd.SetErr(&buf)

		newLogger(cmd, false).Debug("hidden")
		if buf.Len() != 0 {
			t.Errorf("expected no debug output, got %q", buf.String())
		}

		newLogger(cmd, true).Debug("shown")
		if !strings.Contains(buf.String(), "msg=shown") {
			t.Errorf("expected debug line, got %q", buf.String())
		}
	})
}
