package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/danielpatrickdp/behavior-watch/go-engine/internal/audit"
)

// #region main

func main() {
	dbPath := flag.String("db", "", "path to the audit database")
	last := flag.Int("last", 20, "show N most recent rows")
	judges := flag.Bool("judges", false, "show judge traces instead of decisions")
	jsonOut := flag.Bool("json", false, "output as JSON instead of table")
	flag.Parse()

	if *dbPath == "" {
		fmt.Fprintln(os.Stderr, "usage: inspect --db path/to/audit.db [--last N] [--judges] [--json]")
		os.Exit(2)
	}

	store, err := audit.NewStore(*dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open db: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	if *judges {
		err = runJudgeMode(store, *last, *jsonOut)
	} else {
		err = runDecisionMode(store, *last, *jsonOut)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// #endregion

// #region decision-mode

type decisionRow struct {
	ID        string `json:"id"`
	Strategy  string `json:"strategy"`
	Alert     bool   `json:"alert"`
	Snippet   string `json:"snippet,omitempty"`
	CreatedAt string `json:"created_at"`
}

func runDecisionMode(store *audit.Store, last int, jsonOut bool) error {
	decisions, err := store.RecentDecisions(last)
	if err != nil {
		return err
	}
	if len(decisions) == 0 {
		fmt.Fprintln(os.Stderr, "no decisions recorded")
		return nil
	}

	rows := make([]decisionRow, len(decisions))
	for i, d := range decisions {
		rows[i] = decisionRow{
			ID:        shortID(d.ID),
			Strategy:  string(d.Strategy),
			Alert:     d.Alert,
			Snippet:   clip(d.AnalysisSnippet, 40),
			CreatedAt: d.CreatedAt.Format("2006-01-02T15:04:05Z"),
		}
	}

	if jsonOut {
		return printJSON(rows)
	}

	fmt.Printf("%-10s  %-20s  %-6s  %-20s  %s\n", "ID", "Strategy", "Alert", "Time", "Snippet")
	for _, r := range rows {
		verdict := "-"
		if r.Alert {
			verdict = "ALERT"
		}
		fmt.Printf("%-10s  %-20s  %-6s  %-20s  %s\n", r.ID, r.Strategy, verdict, r.CreatedAt, r.Snippet)
	}

	alerts, err := store.AlertCount()
	if err != nil {
		return err
	}
	fmt.Printf("\n%d alerts recorded in total\n", alerts)
	return nil
}

// #endregion

// #region judge-mode

type judgeRow struct {
	Score     float64 `json:"score"`
	Outcome   string  `json:"outcome"`
	Alert     bool    `json:"alert"`
	Response  string  `json:"response,omitempty"`
	CreatedAt string  `json:"created_at"`
}

func runJudgeMode(store *audit.Store, last int, jsonOut bool) error {
	traces, err := store.RecentJudgeTraces(last)
	if err != nil {
		return err
	}
	if len(traces) == 0 {
		fmt.Fprintln(os.Stderr, "no judge traces recorded")
		return nil
	}

	rows := make([]judgeRow, len(traces))
	for i, tr := range traces {
		rows[i] = judgeRow{
			Score:     tr.Score,
			Outcome:   tr.Outcome,
			Alert:     tr.Alert,
			Response:  clip(tr.Response, 60),
			CreatedAt: tr.CreatedAt.Format("2006-01-02T15:04:05Z"),
		}
	}

	if jsonOut {
		return printJSON(rows)
	}

	fmt.Printf("%-6s  %-12s  %-6s  %-20s  %s\n", "Score", "Outcome", "Alert", "Time", "Response")
	for _, r := range rows {
		verdict := "-"
		if r.Alert {
			verdict = "ALERT"
		}
		fmt.Printf("%6.2f  %-12s  %-6s  %-20s  %s\n", r.Score, r.Outcome, verdict, r.CreatedAt, r.Response)
	}
	return nil
}

// #endregion

// #region output

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// #endregion
