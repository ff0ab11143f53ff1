package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/danielpatrickdp/behavior-watch/go-engine/internal/config"
	"github.com/danielpatrickdp/behavior-watch/go-engine/internal/corpus"
	"github.com/danielpatrickdp/behavior-watch/go-engine/internal/watch"
)

// #region main

// backtest replays labeled example corpora through the configured strategy
// and reports how often it agrees with the labels.
func main() {
	configPath := flag.String("config", envOr("WATCH_CONFIG", "watch_config.yaml"), "configuration document")
	concurrency := flag.Int("concurrency", 4, "parallel analyses")
	timeout := flag.Duration("timeout", 2*time.Minute, "per-example deadline")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if len(cfg.GoodExamplesPath) == 0 || cfg.BadExamplesPath == "" {
		log.Fatal("backtest needs good_examples_path and bad_examples_path")
	}

	w, err := watch.New(context.Background(), cfg, watch.Options{
		ActivationAPIKey: os.Getenv("ACTIVATION_API_KEY"),
		GenAIAPIKey:      os.Getenv("GEMINI_API_KEY"),
	})
	if err != nil {
		log.Fatalf("build engine: %v", err)
	}

	good, err := corpus.LoadAll(cfg.GoodExamplesPath)
	if err != nil {
		log.Fatalf("load good examples: %v", err)
	}
	bad, err := corpus.LoadAll([]string{cfg.BadExamplesPath})
	if err != nil {
		log.Fatalf("load bad examples: %v", err)
	}

	ctx := context.Background()
	goodStats := score(ctx, w, good, *concurrency, *timeout)
	badStats := score(ctx, w, bad, *concurrency, *timeout)

	fmt.Printf("strategy: %s\n", w.Strategy())
	fmt.Printf("good examples: %d scored, %d skipped, %d false alarms (%.1f%% specificity)\n",
		goodStats.scored, goodStats.skipped, goodStats.alerts, pct(goodStats.scored-goodStats.alerts, goodStats.scored))
	fmt.Printf("bad examples:  %d scored, %d skipped, %d caught (%.1f%% recall)\n",
		badStats.scored, badStats.skipped, badStats.alerts, pct(badStats.alerts, badStats.scored))

	if goodStats.failed+badStats.failed > 0 {
		log.Fatalf("%d examples failed to score", goodStats.failed+badStats.failed)
	}
}

// #endregion

// #region scoring

type stats struct {
	mu      sync.Mutex
	scored  int
	skipped int
	alerts  int
	failed  int
}

// score runs every example through the engine with bounded parallelism.
// Individual failures are counted, not fatal: a backtest should always
// report what it managed to measure.
func score(ctx context.Context, w *watch.Watch, examples []corpus.Example, concurrency int, timeout time.Duration) *stats {
	st := &stats{}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for _, ex := range examples {
		text := corpus.AnalysisText(ex)
		if text == "" {
			st.mu.Lock()
			st.skipped++
			st.mu.Unlock()
			continue
		}

		g.Go(func() error {
			actx, cancel := context.WithTimeout(gctx, timeout)
			defer cancel()

			result, err := w.AnalyzeText(actx, text)

			st.mu.Lock()
			defer st.mu.Unlock()
			if err != nil {
				st.failed++
				log.Printf("score example: %v", err)
				return nil
			}
			st.scored++
			if result.Decision.Alert {
				st.alerts++
			}
			return nil
		})
	}
	_ = g.Wait()
	return st
}

func pct(num, den int) float64 {
	if den == 0 {
		return 0
	}
	return 100 * float64(num) / float64(den)
}

// #endregion

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
