package watch

// #region imports
import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/danielpatrickdp/behavior-watch/go-engine/internal/activation"
	"github.com/danielpatrickdp/behavior-watch/go-engine/internal/classifier"
	"github.com/danielpatrickdp/behavior-watch/go-engine/internal/config"
	"github.com/danielpatrickdp/behavior-watch/go-engine/internal/explain"
	"github.com/danielpatrickdp/behavior-watch/go-engine/internal/feature"
	"github.com/danielpatrickdp/behavior-watch/go-engine/internal/judge"
	"github.com/danielpatrickdp/behavior-watch/go-engine/internal/notify"
)

// #endregion

// #region collaborators

// snippetKeep bounds how much analyzed text is carried in results and audit
// rows.
const snippetKeep = 200

// Activator extracts one mean-pooled activation vector for a conversation.
type Activator interface {
	Activate(ctx context.Context, turns []activation.Turn, model string, featureIndices []int) (activation.Vector, error)
}

// Notifier delivers decision messages to the configured sinks.
type Notifier interface {
	Send(message string, level notify.Level)
}

// Options injects collaborators and credentials. Zero-value fields fall back
// to the configuration document's choices.
type Options struct {
	Activator Activator   // test stubs and alternative transports
	Judge     judge.Judge // overrides the configured judge backend
	Auditor   Auditor     // nil disables provenance recording
	Notifier  Notifier    // nil disables Notify

	ActivationAPIKey string
	GenAIAPIKey      string
}

// #endregion

// #region engine

// Watch is the behavior monitoring engine: one loaded feature set, one
// strategy, and the collaborators needed to turn text into a Decision.
// Immutable after New; safe for concurrent Analyze calls.
type Watch struct {
	cfg      *config.WatchConfig
	features *feature.Set // nil for the claude_prompt strategy
	strategy Strategy

	activator Activator
	notifier  Notifier
	auditor   Auditor
}

// New assembles an engine from a validated configuration. Feature sources,
// classifier alignment, and judge wiring are all resolved here so Analyze
// can never half-work.
func New(ctx context.Context, cfg *config.WatchConfig, opts Options) (*Watch, error) {
	w := &Watch{
		cfg:       cfg,
		activator: opts.Activator,
		notifier:  opts.Notifier,
		auditor:   opts.Auditor,
	}

	strategyID := StrategyID(cfg.AlertStrategy)
	formatter := explain.NewFormatter(cfg.GoodBehaviorLabel, cfg.BadBehaviorLabel)

	deps := Deps{Formatter: formatter, Auditor: opts.Auditor}

	// The judge strategy reads raw text; every other strategy needs the
	// feature space and the activation service.
	if strategyID != StrategyClaudePrompt {
		set, err := resolveFeatures(cfg)
		if err != nil {
			return nil, err
		}
		w.features = set

		if w.activator == nil {
			w.activator = activation.NewClient(cfg.ActivationBaseURL, opts.ActivationAPIKey)
		}
	}

	if strategyID == StrategyLogisticRegression && cfg.ModelPath != "" {
		artifact, err := classifier.Load(cfg.ModelPath)
		if err != nil {
			return nil, fmt.Errorf("load classifier: %w", err)
		}
		if err := artifact.ValidateAgainst(w.features); err != nil {
			return nil, err
		}
		deps.Artifact = artifact
	}

	if strategyID == StrategyClaudePrompt {
		j, err := resolveJudge(ctx, cfg, opts)
		if err != nil {
			return nil, err
		}
		deps.Judge = j
	}

	strategy, err := NewStrategy(strategyID, Params{
		AlertThreshold:      cfg.AlertThreshold,
		FeatureThreshold:    cfg.FeatureThreshold,
		LogisticThreshold:   cfg.LogisticThreshold,
		ClaudeThreshold:     cfg.ClaudeThreshold,
		BehaviorToDetect:    cfg.BehaviorToDetect,
		JudgePromptTemplate: cfg.JudgePromptTemplate,
	}, deps)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", config.ErrConfiguration, err)
	}
	w.strategy = strategy

	return w, nil
}

// Features returns the loaded feature set, nil under the judge strategy.
func (w *Watch) Features() *feature.Set { return w.features }

// Strategy returns the active strategy identifier.
func (w *Watch) Strategy() StrategyID { return w.strategy.ID() }

func resolveFeatures(cfg *config.WatchConfig) (*feature.Set, error) {
	switch {
	case cfg.DirectFeatures != nil:
		return feature.LoadDirect(cfg.DirectFeatures.Good, cfg.DirectFeatures.Bad)
	case cfg.VectorSource != "":
		return feature.LoadArtifact(cfg.VectorSource)
	default:
		return nil, fmt.Errorf("%w: no feature source: run feature discovery to produce an artifact, or set direct_features", config.ErrConfiguration)
	}
}

func resolveJudge(ctx context.Context, cfg *config.WatchConfig, opts Options) (judge.Judge, error) {
	if opts.Judge != nil {
		return opts.Judge, nil
	}
	switch cfg.JudgeBackend {
	case "genai":
		return judge.NewGenAIJudge(ctx, opts.GenAIAPIKey, cfg.JudgeModel)
	default:
		return judge.NewSubprocessJudge(cfg.JudgeCommand), nil
	}
}

// #endregion

// #region analyze

// AnalyzeText scores a bare text sample.
func (w *Watch) AnalyzeText(ctx context.Context, text string) (*Result, error) {
	return w.analyze(ctx, activation.TextTurns(text), text)
}

// AnalyzeConversation scores a full conversation. The judge strategy reads
// the last assistant turn; activation-based strategies see every turn.
func (w *Watch) AnalyzeConversation(ctx context.Context, turns []activation.Turn) (*Result, error) {
	analysisText := ""
	for _, t := range turns {
		if t.Role == activation.RoleAssistant {
			analysisText = t.Content
		}
	}
	return w.analyze(ctx, turns, analysisText)
}

func (w *Watch) analyze(ctx context.Context, turns []activation.Turn, analysisText string) (*Result, error) {
	var vec activation.Vector
	if w.features != nil {
		var err error
		vec, err = w.activator.Activate(ctx, turns, w.cfg.Model, w.features.SpaceIndices())
		if err != nil {
			return nil, err
		}
	}

	decision := w.strategy.Decide(ctx, vec, w.features, analysisText)

	result := &Result{
		AnalysisText:      clip(analysisText, snippetKeep),
		Decision:          decision,
		ActivatedFeatures: w.activatedFeatures(vec),
	}

	w.record(result, analysisText)
	return result, nil
}

// activatedFeatures lists both polarities above the display threshold, in
// feature set order.
func (w *Watch) activatedFeatures(vec activation.Vector) []ActivatedFeature {
	if w.features == nil {
		return nil
	}
	var out []ActivatedFeature
	for i, v := range vec {
		if i >= w.features.Len() {
			break
		}
		if v > w.cfg.FeatureThreshold {
			d := w.features.At(i)
			out = append(out, ActivatedFeature{
				Polarity:   d.Polarity,
				Label:      d.Label,
				Activation: v,
			})
		}
	}
	return out
}

// record persists one provenance row. Best-effort: audit trouble is logged,
// never surfaced to the caller.
func (w *Watch) record(result *Result, analysisText string) {
	if w.auditor == nil {
		return
	}

	explanationJSON, err := json.Marshal(result.Decision)
	if err != nil {
		log.Printf("watch: marshal decision for audit: %v", err)
		return
	}
	digest := sha256.Sum256([]byte(analysisText))

	rec := DecisionRecord{
		ID:              uuid.NewString(),
		Strategy:        result.Decision.Strategy,
		Alert:           result.Decision.Alert,
		InputDigest:     hex.EncodeToString(digest[:]),
		AnalysisSnippet: result.AnalysisText,
		ExplanationJSON: string(explanationJSON),
		CreatedAt:       time.Now().UTC(),
	}
	if err := w.auditor.RecordDecision(rec); err != nil {
		log.Printf("watch: record decision: %v", err)
	}
}

// #endregion

// #region notify

// Notify renders and dispatches the decision message. Alerts always go out;
// good-behavior messages are opt-in via the "good" notification method.
func (w *Watch) Notify(result *Result) {
	if w.notifier == nil {
		return
	}

	d := result.Decision
	if d.Alert {
		w.notifier.Send(w.alertMessage(d), notify.LevelWarning)
		return
	}
	if w.goodEnabled() {
		w.notifier.Send(w.cfg.GoodAlertMessage, notify.LevelSuccess)
	}
}

// alertMessage enriches the configured alert text with the classifier's
// prediction and attribution summary when available.
func (w *Watch) alertMessage(d Decision) string {
	msg := w.cfg.BadAlertMessage
	if d.Explanation.PredictionLabel != "" && d.Explanation.Probability != nil {
		msg += fmt.Sprintf(" Predicted: %s (P=%.3f)", d.Explanation.PredictionLabel, *d.Explanation.Probability)
	}
	if d.Explanation.Summary != "" {
		msg += " | Why: " + d.Explanation.Summary
	}
	return msg
}

func (w *Watch) goodEnabled() bool {
	for _, m := range w.cfg.NotificationMethods {
		if m == "good" {
			return true
		}
	}
	return false
}

// #endregion
