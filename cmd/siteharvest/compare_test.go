package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/nao1215/siteharvest/internal/database"
	"github.com/nao1215/siteharvest/internal/model"
)

// seedRuns stores runs with the given route paths and returns their IDs.
func seedRuns(t *testing.T, dbDir string, routePaths ...[]string) []int64 {
	t.Helper()

	db, err := database.Open(dbDir, database.DefaultOptions())
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	ids := make([]int64, 0, len(routePaths))
	start := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	for i, paths := range routePaths {
		run := &database.Run{
			StartedAt:  start.Add(time.Duration(i) * time.Hour),
			FinishedAt: start.Add(time.Duration(i)*time.Hour + time.Minute),
			OutputDir:  "raw",
			Report:     &model.Report{PrimaryHosts: []string{"example.com"}},
			Routes:     &model.Routes{PrimaryHosts: []string{"example.com"}, AllRoutePaths: paths},
		}
		id, err := db.SaveRun(context.Background(), run, nil, nil)
		if err != nil {
			t.Fatalf("failed to save run: %v", err)
		}
		ids = append(ids, id)
	}
	return ids
}

// TestDiffRoutePaths tests route path differences.
func TestDiffRoutePaths(t *testing.T) {
	t.Parallel()

	diff := diffRoutePaths(
		[]string{"/", "/about/", "/old/"},
		[]string{"/", "/about/", "/new/", "/blog/", "/new/"},
	)

	if !slices.Equal(diff.Added, []string{"/blog/", "/new/"}) {
		t.Errorf("unexpected added %v", diff.Added)
	}
	if !slices.Equal(diff.Removed, []string{"/old/"}) {
		t.Errorf("unexpected removed %v", diff.Removed)
	}
	if diff.Unchanged != 2 {
		t.Errorf("expected 2 unchanged, got %d", diff.Unchanged)
	}
}

// TestCompareCmd tests the compare command against a seeded database.
// Subtests share one database file and run sequentially.
func TestCompareCmd(t *testing.T) {
	t.Parallel()

	dbDir := t.TempDir()
	ids := seedRuns(t, dbDir,
		[]string{"/", "/old/"},
		[]string{"/", "/about/"},
		[]string{"/", "/about/", "/blog/"},
	)

	run := func(t *testing.T, args ...string) (string, error) {
		t.Helper()
		var buf bytes.Buffer
		cmd := NewCompareCmd()
		cmd.SetOut(&buf)
		cmd.SetArgs(append([]string{"--db-dir", dbDir}, args...))
		err := cmd.Execute()
		return buf.String(), err
	}

	t.Run("latest two runs", func(t *testing.T) {
		out, err := run(t, "-j")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		var diff RouteDiff
		if err := json.Unmarshal([]byte(out), &diff); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if diff.OldRunID != ids[1] || diff.NewRunID != ids[2] {
			t.Errorf("unexpected run IDs %d -> %d", diff.OldRunID, diff.NewRunID)
		}
		if !slices.Equal(diff.Added, []string{"/blog/"}) || len(diff.Removed) != 0 {
			t.Errorf("unexpected diff %+v", diff)
		}
	})

	t.Run("explicit runs as text", func(t *testing.T) {
		out, err := run(t, "1", "3")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		for _, want := range []string{"run #1 to run #3", "+ /about/", "+ /blog/", "- /old/"} {
			if !strings.Contains(out, want) {
				t.Errorf("expected output to contain %q, got:\n%s", want, out)
			}
		}
	})

	t.Run("markdown", func(t *testing.T) {
		out, err := run(t, "-m", "1", "2")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		for _, want := range []string{"# Route changes", "## Added", "`/about/`", "## Removed", "`/old/`"} {
			if !strings.Contains(out, want) {
				t.Errorf("expected output to contain %q, got:\n%s", want, out)
			}
		}
	})

	t.Run("list runs", func(t *testing.T) {
		out, err := run(t, "--list", "-n", "2")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(out, "Recorded runs (2)") || !strings.Contains(out, "example.com") {
			t.Errorf("unexpected output:\n%s", out)
		}
	})

	t.Run("unknown run", func(t *testing.T) {
		if _, err := run(t, "1", "99"); err == nil {
			t.Error("expected error for unknown run")
		}
	})

	t.Run("invalid arguments", func(t *testing.T) {
		if _, err := run(t, "1"); err == nil {
			t.Error("expected error for a single run ID")
		}
		if _, err := run(t, "a", "b"); err == nil {
			t.Error("expected error for non-numeric IDs")
		}
	})
}

// TestDiffPages tests page-level differences between runs.
func TestDiffPages(t *testing.T) {
	t.Parallel()

	diff := diffPages(
		[]database.PageRecord{
			{URL: "https://example.com/", RawHash: "a", TextChars: 10},
			{URL: "https://example.com/old/", RawHash: "b", TextChars: 5},
			{URL: "https://example.com/same/", RawHash: "c", TextChars: 7},
		},
		[]database.PageRecord{
			{URL: "https://example.com/", RawHash: "a2", TextChars: 12},
			{URL: "https://example.com/new/", RawHash: "d", TextChars: 3},
			{URL: "https://example.com/same/", RawHash: "c", TextChars: 7},
		},
	)

	if !slices.Equal(diff.Added, []string{"https://example.com/new/"}) {
		t.Errorf("unexpected added %v", diff.Added)
	}
	if !slices.Equal(diff.Removed, []string{"https://example.com/old/"}) {
		t.Errorf("unexpected removed %v", diff.Removed)
	}
	want := []PageChange{{URL: "https://example.com/", OldTextChars: 10, NewTextChars: 12}}
	if !slices.Equal(diff.Changed, want) {
		t.Errorf("unexpected changed %v", diff.Changed)
	}
}

// TestCompareCmdPages tests page comparison and run deletion.
func TestCompareCmdPages(t *testing.T) {
	t.Parallel()

	dbDir := t.TempDir()
	db, err := database.Open(dbDir, database.DefaultOptions())
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	start := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	crawls := [][]*model.Page{
		{
			{URL: "https://example.com/", Text: "home", Hash: "h1"},
			{URL: "https://example.com/gone/", Text: "bye", Hash: "h2"},
		},
		{
			{URL: "https://example.com/", Text: "home page", Hash: "h3"},
			{URL: "https://example.com/new/", Text: "hi", Hash: "h4"},
		},
	}
	for i, pages := range crawls {
		run := &database.Run{
			StartedAt:  start.Add(time.Duration(i) * time.Hour),
			FinishedAt: start.Add(time.Duration(i) * time.Hour),
			OutputDir:  "raw",
			Report:     &model.Report{PrimaryHosts: []string{"example.com"}},
			Routes:     &model.Routes{AllRoutePaths: []string{"/"}},
		}
		if _, err := db.SaveRun(context.Background(), run, pages, nil); err != nil {
			t.Fatalf("failed to save run: %v", err)
		}
	}
	_ = db.Close()

	run := func(t *testing.T, args ...string) (string, error) {
		t.Helper()
		var buf bytes.Buffer
		cmd := NewCompareCmd()
		cmd.SetOut(&buf)
		cmd.SetArgs(append([]string{"--db-dir", dbDir}, args...))
		err := cmd.Execute()
		return buf.String(), err
	}

	t.Run("json includes page changes", func(t *testing.T) {
		out, err := run(t, "-j")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		var diff RouteDiff
		if err := json.Unmarshal([]byte(out), &diff); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if !slices.Equal(diff.Pages.Added, []string{"https://example.com/new/"}) ||
			!slices.Equal(diff.Pages.Removed, []string{"https://example.com/gone/"}) {
			t.Errorf("unexpected page diff %+v", diff.Pages)
		}
		if len(diff.Pages.Changed) != 1 || diff.Pages.Changed[0].OldTextChars != 4 || diff.Pages.Changed[0].NewTextChars != 9 {
			t.Errorf("unexpected changed pages %+v", diff.Pages.Changed)
		}
	})

	t.Run("text lists page changes", func(t *testing.T) {
		out, err := run(t)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		for _, want := range []string{"No route changes.", "Page changes", "+ https://example.com/new/", "- https://example.com/gone/", "~ https://example.com/ (4 -> 9 chars)"} {
			if !strings.Contains(out, want) {
				t.Errorf("expected output to contain %q, got:\n%s", want, out)
			}
		}
	})

	t.Run("markdown has a page table", func(t *testing.T) {
		out, err := run(t, "-m")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(out, "## Page changes") || !strings.Contains(out, "https://example.com/new/") {
			t.Errorf("unexpected markdown:\n%s", out)
		}
	})

	t.Run("delete removes a run", func(t *testing.T) {
		if _, err := run(t, "--delete", "1", "1", "2"); err == nil {
			t.Error("expected error when combining --delete with run IDs")
		}

		out, err := run(t, "--delete", "1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(out, "Deleted run #1") {
			t.Errorf("unexpected output %q", out)
		}

		if _, err := run(t, "--delete", "1"); !errors.Is(err, database.ErrRunNotFound) {
			t.Errorf("expected ErrRunNotFound, got %v", err)
		}

		out, err = run(t, "--list")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(out, "Recorded runs (1)") {
			t.Errorf("expected one remaining run, got:\n%s", out)
		}
	})
}

// TestCompareCmdNeedsTwoRuns tests the empty history case.
func TestCompareCmdNeedsTwoRuns(t *testing.T) {
	t.Parallel()

	dbDir := t.TempDir()
	seedRuns(t, dbDir, []string{"/"})

	cmd := NewCompareCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{"--db-dir", dbDir})
	if err := cmd.Execute(); err == nil || !strings.Contains(err.Error(), "at least two") {
		t.Errorf("expected missing history error, got %v", err)
	}
}
