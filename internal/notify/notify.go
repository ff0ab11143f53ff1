package notify

// #region imports
import (
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// #endregion

// #region level

// Level classifies a notification for the receiving sink.
type Level string

const (
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
	LevelSuccess Level = "success"
)

func (l Level) symbol() string {
	switch l {
	case LevelWarning, LevelError:
		return "❌"
	case LevelSuccess:
		return "✅"
	default:
		return "ℹ️"
	}
}

// #endregion

// #region manager

// emacsTimeout bounds the emacsclient round-trip so a hung editor never
// stalls a decision.
const emacsTimeout = 5 * time.Second

// Manager fans one notification out to the configured sinks. Sink failures
// are logged and swallowed: notification trouble must never break analysis.
type Manager struct {
	methods []string
	logPath string

	mu sync.Mutex // serializes appends to the notification log
}

// NewManager builds a manager for the configured method list. projectDir
// anchors the notification log file.
func NewManager(methods []string, projectDir string) *Manager {
	if projectDir == "" {
		projectDir = "."
	}
	return &Manager{
		methods: methods,
		logPath: filepath.Join(projectDir, "logs", "notifications.log"),
	}
}

// GoodEnabled reports whether good-behavior notifications are opted in.
func (m *Manager) GoodEnabled() bool {
	for _, method := range m.methods {
		if method == "good" {
			return true
		}
	}
	return false
}

// Send dispatches the message to every configured sink.
func (m *Manager) Send(message string, level Level) {
	for _, method := range m.methods {
		var err error
		switch method {
		case "cli":
			err = m.sendCLI(message, level)
		case "emacs":
			err = m.sendEmacs(message, level)
		case "log":
			err = m.sendLog(message, level)
		case "good":
			// Opt-in flag, not a sink.
		default:
			err = fmt.Errorf("unknown notification method %q", method)
		}
		if err != nil {
			log.Printf("notify: %s sink failed: %v", method, err)
		}
	}
}

// #endregion

// #region sinks

func (m *Manager) sendCLI(message string, level Level) error {
	_, err := fmt.Fprintf(os.Stderr, "%s BehaviorWatch: %s\n", level.symbol(), message)
	return err
}

func (m *Manager) sendEmacs(message string, level Level) error {
	elisp := fmt.Sprintf("(message %q)", fmt.Sprintf("BehaviorWatch [%s]: %s", level, message))
	cmd := exec.Command("emacsclient", "-e", elisp)
	done := make(chan error, 1)
	if err := cmd.Start(); err != nil {
		// No emacsclient on this host: fall back to the terminal.
		return m.sendCLI(message, level)
	}
	go func() { done <- cmd.Wait() }()
	select {
	case err := <-done:
		if err != nil {
			return m.sendCLI(message, level)
		}
		return nil
	case <-time.After(emacsTimeout):
		_ = cmd.Process.Kill()
		return fmt.Errorf("emacsclient timed out after %s", emacsTimeout)
	}
}

func (m *Manager) sendLog(message string, level Level) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(m.logPath), 0o755); err != nil {
		return fmt.Errorf("create log directory: %w", err)
	}
	f, err := os.OpenFile(m.logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open notification log: %w", err)
	}
	defer f.Close()

	line := fmt.Sprintf("%s [%s] %s\n",
		time.Now().UTC().Format(time.RFC3339),
		strings.ToUpper(string(level)),
		message)
	if _, err := f.WriteString(line); err != nil {
		return fmt.Errorf("append notification log: %w", err)
	}
	return nil
}

// #endregion
