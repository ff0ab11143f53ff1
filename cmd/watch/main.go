package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/danielpatrickdp/behavior-watch/go-engine/internal/audit"
	"github.com/danielpatrickdp/behavior-watch/go-engine/internal/config"
	"github.com/danielpatrickdp/behavior-watch/go-engine/internal/notify"
	"github.com/danielpatrickdp/behavior-watch/go-engine/internal/transcript"
	"github.com/danielpatrickdp/behavior-watch/go-engine/internal/watch"
)

// #region main
func main() {
	configPath := flag.String("config", envOr("WATCH_CONFIG", "watch_config.yaml"), "configuration document")
	text := flag.String("text", "", "analyze a single text sample")
	transcriptPath := flag.String("transcript", "", "analyze a JSONL session transcript")
	asJSON := flag.Bool("json", false, "print the full result as JSON")
	timeout := flag.Duration("timeout", 2*time.Minute, "analysis deadline")
	flag.Parse()

	sample := strings.TrimSpace(*text)
	if sample == "" && flag.NArg() > 0 {
		sample = strings.Join(flag.Args(), " ")
	}
	if sample == "" && *transcriptPath == "" {
		log.Fatal("nothing to analyze: pass -text, -transcript, or positional text")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	w, store := buildEngine(cfg)
	if store != nil {
		defer store.Close()
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	var result *watch.Result
	if *transcriptPath != "" {
		turns, err := transcript.Extract(*transcriptPath)
		if err != nil {
			log.Fatalf("extract transcript: %v", err)
		}
		if len(turns) == 0 {
			log.Fatalf("transcript %s has no conversation turns", *transcriptPath)
		}
		result, err = w.AnalyzeConversation(ctx, turns)
		if err != nil {
			log.Fatalf("analyze: %v", err)
		}
	} else {
		result, err = w.AnalyzeText(ctx, sample)
		if err != nil {
			log.Fatalf("analyze: %v", err)
		}
	}

	w.Notify(result)

	if *asJSON {
		out, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			log.Fatalf("marshal result: %v", err)
		}
		fmt.Println(string(out))
	} else {
		printResult(result)
	}

	if result.Decision.Alert {
		os.Exit(1)
	}
}

// #endregion

// #region engine-setup

// buildEngine wires the engine from the configuration document plus
// credentials from the environment.
func buildEngine(cfg *config.WatchConfig) (*watch.Watch, *audit.Store) {
	opts := watch.Options{
		ActivationAPIKey: os.Getenv("ACTIVATION_API_KEY"),
		GenAIAPIKey:      os.Getenv("GEMINI_API_KEY"),
		Notifier:         notify.NewManager(cfg.NotificationMethods, "."),
	}

	var store *audit.Store
	if cfg.AuditDBPath != "" {
		var err error
		store, err = audit.NewStore(cfg.AuditDBPath)
		if err != nil {
			log.Fatalf("open audit store: %v", err)
		}
		opts.Auditor = store
	}

	w, err := watch.New(context.Background(), cfg, opts)
	if err != nil {
		log.Fatalf("build engine: %v", err)
	}
	return w, store
}

// #endregion

// #region output

func printResult(result *watch.Result) {
	d := result.Decision
	verdict := "ok"
	if d.Alert {
		verdict = "ALERT"
	}
	fmt.Printf("%s (strategy=%s)\n", verdict, d.Strategy)

	e := d.Explanation
	switch {
	case e.Error != "":
		fmt.Printf("  error: %s\n", e.Error)
	case e.Ratio != nil:
		fmt.Printf("  ratio=%.3f (good=%.3f bad=%.3f threshold=%.2f)\n",
			e.Ratio.Ratio, e.Ratio.TotalGood, e.Ratio.TotalBad, e.Ratio.Threshold)
	case e.Quality != nil:
		fmt.Printf("  quality=%s (good=%.3f bad=%.3f)\n",
			e.Quality.Quality, e.Quality.TotalGood, e.Quality.TotalBad)
	case e.Judge != nil:
		fmt.Printf("  judge score=%.2f threshold=%.2f\n", e.Judge.Score, e.Judge.Threshold)
	case e.Probability != nil:
		fmt.Printf("  predicted=%s P=%.3f\n", e.PredictionLabel, *e.Probability)
		if e.Summary != "" {
			fmt.Printf("  why: %s\n", e.Summary)
		}
	}

	for _, f := range result.ActivatedFeatures {
		fmt.Printf("  [%s] %s: %.4f\n", f.Polarity, f.Label, f.Activation)
	}
}

// #endregion

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
