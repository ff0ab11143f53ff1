package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/danielpatrickdp/behavior-watch/go-engine/internal/audit"
	"github.com/danielpatrickdp/behavior-watch/go-engine/internal/config"
	"github.com/danielpatrickdp/behavior-watch/go-engine/internal/notify"
	"github.com/danielpatrickdp/behavior-watch/go-engine/internal/transcript"
	"github.com/danielpatrickdp/behavior-watch/go-engine/internal/watch"
)

// debounce lets a burst of writes to the same transcript settle before
// re-analyzing it.
const debounce = 2 * time.Second

// #region main
func main() {
	configPath := flag.String("config", envOr("WATCH_CONFIG", "watch_config.yaml"), "configuration document")
	watchDir := flag.String("dir", envOr("WATCH_TRANSCRIPT_DIR", "."), "directory of JSONL session transcripts")
	timeout := flag.Duration("timeout", 2*time.Minute, "per-analysis deadline")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	opts := watch.Options{
		ActivationAPIKey: os.Getenv("ACTIVATION_API_KEY"),
		GenAIAPIKey:      os.Getenv("GEMINI_API_KEY"),
		Notifier:         notify.NewManager(cfg.NotificationMethods, "."),
	}
	if cfg.AuditDBPath != "" {
		store, serr := audit.NewStore(cfg.AuditDBPath)
		if serr != nil {
			log.Fatalf("open audit store: %v", serr)
		}
		defer store.Close()
		opts.Auditor = store
	}

	w, err := watch.New(context.Background(), cfg, opts)
	if err != nil {
		log.Fatalf("build engine: %v", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		log.Fatalf("create watcher: %v", err)
	}
	defer watcher.Close()

	if err := watcher.Add(*watchDir); err != nil {
		log.Fatalf("watch %s: %v", *watchDir, err)
	}
	log.Printf("watching %s (strategy=%s)", *watchDir, w.Strategy())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	d := newDaemon(w, *timeout)
	d.run(ctx, watcher)
	d.wait()
	log.Print("shutting down")
}

// #endregion

// #region daemon

// daemon serializes per-file debounce timers and fans analyses out to
// goroutines.
type daemon struct {
	engine  *watch.Watch
	timeout time.Duration

	mu      sync.Mutex
	pending map[string]*time.Timer
	wg      sync.WaitGroup
}

func newDaemon(engine *watch.Watch, timeout time.Duration) *daemon {
	return &daemon{
		engine:  engine,
		timeout: timeout,
		pending: make(map[string]*time.Timer),
	}
}

func (d *daemon) run(ctx context.Context, watcher *fsnotify.Watcher) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if !strings.HasSuffix(event.Name, ".jsonl") {
				continue
			}
			d.schedule(ctx, event.Name)
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			log.Printf("watcher: %v", err)
		}
	}
}

// schedule arms (or re-arms) the debounce timer for one transcript.
func (d *daemon) schedule(ctx context.Context, path string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if timer, ok := d.pending[path]; ok {
		timer.Reset(debounce)
		return
	}
	d.pending[path] = time.AfterFunc(debounce, func() {
		d.mu.Lock()
		delete(d.pending, path)
		d.mu.Unlock()

		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			d.analyze(ctx, path)
		}()
	})
}

func (d *daemon) analyze(ctx context.Context, path string) {
	turns, err := transcript.Extract(path)
	if err != nil {
		log.Printf("extract %s: %v", path, err)
		return
	}
	if transcript.LatestAssistant(turns) == "" {
		return
	}

	actx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	result, err := d.engine.AnalyzeConversation(actx, turns)
	if err != nil {
		log.Printf("analyze %s: %v", path, err)
		return
	}
	d.engine.Notify(result)

	verdict := "ok"
	if result.Decision.Alert {
		verdict = "ALERT"
	}
	log.Printf("%s: %s (strategy=%s)", filepath.Base(path), verdict, result.Decision.Strategy)
}

func (d *daemon) wait() {
	d.wg.Wait()
}

// #endregion

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
