package logs_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"citelink/internal/logs"
)

func writeLog(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}
}

func TestTailerLastLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "citelink.log")
	writeLog(t, path, "a\nb\nc\n")

	tailer := logs.NewTailer(path)
	lines, offset, err := tailer.Last(2)
	if err != nil {
		t.Fatalf("Last: %v", err)
	}
	if len(lines) != 2 || lines[0] != "b" || lines[1] != "c" {
		t.Fatalf("unexpected lines: %#v", lines)
	}
	if offset == 0 {
		t.Fatal("expected offset to advance")
	}
}

func TestTailerLastMissingFile(t *testing.T) {
	tailer := logs.NewTailer(filepath.Join(t.TempDir(), "citelink.log"))
	lines, offset, err := tailer.Last(10)
	if err != nil {
		t.Fatalf("Last: %v", err)
	}
	if len(lines) != 0 || offset != 0 {
		t.Fatalf("expected empty result, got %#v at %d", lines, offset)
	}
}

func TestTailerSinceWaitsForNewLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "citelink.log")
	writeLog(t, path, "start\n")

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	tailer := logs.NewTailer(path)
	lines, offset, err := tailer.Last(1)
	if err != nil {
		t.Fatalf("Last: %v", err)
	}
	if len(lines) != 1 {
		t.Fatalf("expected initial line, got %#v", lines)
	}

	done := make(chan struct{})
	go func() {
		lines, _, err := tailer.Since(ctx, offset, 5*time.Second)
		if err != nil {
			t.Errorf("Since: %v", err)
		}
		if len(lines) != 1 || lines[0] != "later" {
			t.Errorf("unexpected follow lines: %#v", lines)
		}
		close(done)
	}()

	time.Sleep(200 * time.Millisecond)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatalf("open append: %v", err)
	}
	if _, err := f.WriteString("later\n"); err != nil {
		t.Fatalf("append log: %v", err)
	}
	_ = f.Close()

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("Since did not return")
	}
}

func TestTailerSinceRestartsAfterTruncate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "citelink.log")
	writeLog(t, path, "first\nsecond\n")

	tailer := logs.NewTailer(path)
	_, offset, err := tailer.Last(0)
	if err != nil {
		t.Fatalf("Last: %v", err)
	}

	// Replace the log with a shorter one, as a rotation would.
	writeLog(t, path, "fresh\n")

	lines, next, err := tailer.Since(context.Background(), offset, 0)
	if err != nil {
		t.Fatalf("Since: %v", err)
	}
	if len(lines) != 1 || lines[0] != "fresh" {
		t.Fatalf("unexpected lines after truncate: %#v", lines)
	}
	if next != int64(len("fresh\n")) {
		t.Fatalf("offset = %d, want %d", next, len("fresh\n"))
	}
}
