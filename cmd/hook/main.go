package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/danielpatrickdp/behavior-watch/go-engine/internal/audit"
	"github.com/danielpatrickdp/behavior-watch/go-engine/internal/config"
	"github.com/danielpatrickdp/behavior-watch/go-engine/internal/notify"
	"github.com/danielpatrickdp/behavior-watch/go-engine/internal/transcript"
	"github.com/danielpatrickdp/behavior-watch/go-engine/internal/watch"
)

// #region hook-event

// hookEvent is the assistant's Stop-hook payload on stdin.
type hookEvent struct {
	HookEventName  string `json:"hook_event_name"`
	TranscriptPath string `json:"transcript_path"`
	SessionID      string `json:"session_id"`
	CWD            string `json:"cwd"`
}

// resultLine is one JSONL entry in the project's result log.
type resultLine struct {
	Time      string           `json:"time"`
	SessionID string           `json:"session_id,omitempty"`
	Strategy  watch.StrategyID `json:"strategy"`
	Alert     bool             `json:"alert"`
}

// #endregion

// #region main

// Infrastructure trouble must never break the host session: every failure
// path logs and exits 0. Only a completed analysis that alerted exits 1.
func main() {
	configPath := flag.String("config", envOr("WATCH_CONFIG", "watch_config.yaml"), "configuration document")
	timeout := flag.Duration("timeout", 90*time.Second, "analysis deadline")
	flag.Parse()

	log.SetPrefix("behavior-watch-hook: ")

	var event hookEvent
	if err := json.NewDecoder(os.Stdin).Decode(&event); err != nil {
		log.Printf("decode hook event: %v", err)
		return
	}
	if event.TranscriptPath == "" {
		log.Print("hook event has no transcript path")
		return
	}
	projectDir := event.CWD
	if projectDir == "" {
		projectDir = "."
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Printf("load config: %v", err)
		return
	}

	turns, err := transcript.Extract(event.TranscriptPath)
	if err != nil {
		log.Printf("extract transcript: %v", err)
		return
	}
	if transcript.LatestAssistant(turns) == "" {
		log.Print("transcript has no assistant turns yet")
		return
	}

	opts := watch.Options{
		ActivationAPIKey: os.Getenv("ACTIVATION_API_KEY"),
		GenAIAPIKey:      os.Getenv("GEMINI_API_KEY"),
		Notifier:         notify.NewManager(cfg.NotificationMethods, projectDir),
	}
	if cfg.AuditDBPath != "" {
		store, serr := audit.NewStore(cfg.AuditDBPath)
		if serr != nil {
			log.Printf("open audit store: %v", serr)
		} else {
			defer store.Close()
			opts.Auditor = store
		}
	}

	w, err := watch.New(context.Background(), cfg, opts)
	if err != nil {
		log.Printf("build engine: %v", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	result, err := w.AnalyzeConversation(ctx, turns)
	if err != nil {
		log.Printf("analyze: %v", err)
		return
	}
	w.Notify(result)
	logResult(projectDir, event.SessionID, result)

	if result.Decision.Alert {
		os.Exit(1)
	}
}

// #endregion

// #region result-log

// logResult appends one JSONL line to the project's result log, best-effort.
func logResult(projectDir, sessionID string, result *watch.Result) {
	line := resultLine{
		Time:      time.Now().UTC().Format(time.RFC3339),
		SessionID: sessionID,
		Strategy:  result.Decision.Strategy,
		Alert:     result.Decision.Alert,
	}
	data, err := json.Marshal(line)
	if err != nil {
		log.Printf("marshal result line: %v", err)
		return
	}

	logDir := filepath.Join(projectDir, "logs")
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		log.Printf("create log directory: %v", err)
		return
	}
	f, err := os.OpenFile(filepath.Join(logDir, "watch_results.jsonl"), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		log.Printf("open result log: %v", err)
		return
	}
	defer f.Close()
	if _, err := f.Write(append(data, '\n')); err != nil {
		log.Printf("append result log: %v", err)
	}
}

// #endregion

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
