package notify

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLogSinkAppends(t *testing.T) {
	dir := t.TempDir()
	m := NewManager([]string{"log"}, dir)

	m.Send("Bad behavior detected!", LevelWarning)
	m.Send("Good behavior detected!", LevelSuccess)

	data, err := os.ReadFile(filepath.Join(dir, "logs", "notifications.log"))
	if err != nil {
		t.Fatalf("read notification log: %v", err)
	}
	text := string(data)
	if !strings.Contains(text, "[WARNING] Bad behavior detected!") {
		t.Fatalf("warning entry missing: %q", text)
	}
	if !strings.Contains(text, "[SUCCESS] Good behavior detected!") {
		t.Fatalf("success entry missing: %q", text)
	}
	if lines := strings.Count(text, "\n"); lines != 2 {
		t.Fatalf("expected 2 log lines, got %d", lines)
	}
}

func TestGoodEnabled(t *testing.T) {
	if NewManager([]string{"cli"}, t.TempDir()).GoodEnabled() {
		t.Fatal("good should be off by default")
	}
	if !NewManager([]string{"cli", "good"}, t.TempDir()).GoodEnabled() {
		t.Fatal("good flag not detected")
	}
}

func TestUnknownMethodDoesNotPanic(t *testing.T) {
	m := NewManager([]string{"pager", "log"}, t.TempDir())
	m.Send("still delivered", LevelInfo)

	data, err := os.ReadFile(filepath.Join(t.TempDir(), "never"))
	if err == nil {
		t.Fatalf("unexpected file: %q", data)
	}
	logged, err := os.ReadFile(filepath.Join(m.logPath))
	if err != nil {
		t.Fatalf("read notification log: %v", err)
	}
	if !strings.Contains(string(logged), "still delivered") {
		t.Fatalf("log sink should still run after unknown method: %q", logged)
	}
}
