package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nao1215/siteharvest/internal/capture"
)

// TestCaptureLoader tests concurrent capture decoding.
func TestCaptureLoader(t *testing.T) {
	t.Parallel()

	t.Run("keeps input order", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		paths := []string{
			writeCapture(t, dir, "b.har", titledCapture),
			writeCapture(t, dir, "a.har", singlePageCapture),
			writeCapture(t, dir, "c.har", singlePageCapture),
		}

		files, err := NewCaptureLoader(WithConcurrency(2)).LoadAll(context.Background(), paths)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		want := []string{"b.har", "a.har", "c.har"}
		for i, f := range files {
			if f.Name != want[i] {
				t.Errorf("file %d: expected %s, got %s", i, want[i], f.Name)
			}
		}
	})

	t.Run("missing file aborts", func(t *testing.T) {
		t.Parallel()

		missing := filepath.Join(t.TempDir(), "missing.har")
		_, err := NewCaptureLoader().LoadAll(context.Background(), []string{missing})
		if err == nil {
			t.Fatal("expected error")
		}
		if !errors.Is(err, os.ErrNotExist) {
			t.Errorf("expected wrapped not-exist error, got %v", err)
		}
		if !strings.Contains(err.Error(), "missing.har") {
			t.Errorf("expected path in error, got %v", err)
		}
	})

	t.Run("respects concurrency limit", func(t *testing.T) {
		t.Parallel()

		var current, peak atomic.Int32
		l := NewCaptureLoader(WithConcurrency(2))
		l.load = func(path string) (*capture.File, error) {
			n := current.Add(1)
			defer current.Add(-1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(10 * time.Millisecond)
			return capture.Load(strings.NewReader(singlePageCapture), filepath.Base(path))
		}

		paths := []string{"1.har", "2.har", "3.har", "4.har", "5.har"}
		files, err := l.LoadAll(context.Background(), paths)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(files) != len(paths) {
			t.Errorf("expected %d files, got %d", len(paths), len(files))
		}
		if peak.Load() > 2 {
			t.Errorf("expected at most 2 concurrent loads, got %d", peak.Load())
		}
	})

	t.Run("canceled context", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		path := writeCapture(t, t.TempDir(), "a.har", singlePageCapture)
		if _, err := NewCaptureLoader().LoadAll(ctx, []string{path}); !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	})
}
