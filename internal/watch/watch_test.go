package watch

// #region imports
import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/danielpatrickdp/behavior-watch/go-engine/internal/activation"
	"github.com/danielpatrickdp/behavior-watch/go-engine/internal/config"
	"github.com/danielpatrickdp/behavior-watch/go-engine/internal/feature"
	"github.com/danielpatrickdp/behavior-watch/go-engine/internal/notify"
)

// #endregion

// #region stubs

type stubActivator struct {
	vec     activation.Vector
	err     error
	indices []int
	turns   []activation.Turn
}

func (a *stubActivator) Activate(_ context.Context, turns []activation.Turn, _ string, featureIndices []int) (activation.Vector, error) {
	a.turns = turns
	a.indices = featureIndices
	return a.vec, a.err
}

type stubNotifier struct {
	messages []string
	levels   []notify.Level
}

func (n *stubNotifier) Send(message string, level notify.Level) {
	n.messages = append(n.messages, message)
	n.levels = append(n.levels, level)
}

func testConfig(strategy string) *config.WatchConfig {
	return &config.WatchConfig{
		AlertStrategy:    strategy,
		AlertThreshold:   2.0,
		FeatureThreshold: 0.02,
		DirectFeatures: &config.DirectFeatures{
			Good: []feature.DirectSpec{{Identity: "f-curiosity", Label: "curiosity", SpaceIndex: 101}},
			Bad:  []feature.DirectSpec{{Identity: "f-certainty", Label: "certainty", SpaceIndex: 202}},
		},
		LogisticThreshold:   0.7,
		ClaudeThreshold:     0.7,
		Model:               "meta-llama/Llama-3.3-70B-Instruct",
		GoodAlertMessage:    "Good behavior detected!",
		BadAlertMessage:     "Bad behavior detected!",
		GoodBehaviorLabel:   "GOOD",
		BadBehaviorLabel:    "BAD",
		NotificationMethods: []string{"cli"},
		BehaviorToDetect:    "projective certainty",
		JudgeBackend:        "subprocess",
	}
}

// #endregion

// #region construction

func TestNewResolvesDirectFeatures(t *testing.T) {
	w, err := New(context.Background(), testConfig("any_bad_feature"), Options{
		Activator: &stubActivator{vec: activation.Vector{0, 0}},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if w.Features() == nil || w.Features().Len() != 2 {
		t.Fatalf("feature set not resolved: %+v", w.Features())
	}
	if w.Strategy() != StrategyAnyBadFeature {
		t.Fatalf("strategy: %s", w.Strategy())
	}
}

func TestNewRequiresFeatureSource(t *testing.T) {
	cfg := testConfig("ratio")
	cfg.DirectFeatures = nil
	cfg.VectorSource = ""

	_, err := New(context.Background(), cfg, Options{Activator: &stubActivator{}})
	if !errors.Is(err, config.ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration, got %v", err)
	}
}

func TestNewJudgeStrategyNeedsNoFeatures(t *testing.T) {
	cfg := testConfig("claude_prompt")
	cfg.DirectFeatures = nil

	w, err := New(context.Background(), cfg, Options{Judge: &stubJudge{response: `{"score": 0.1}`}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if w.Features() != nil {
		t.Fatal("judge strategy must not load features")
	}
}

// #endregion

// #region analyze

func TestAnalyzeTextAlertFlow(t *testing.T) {
	activator := &stubActivator{vec: activation.Vector{0.01, 0.05}}
	auditor := &memoryAuditor{}

	w, err := New(context.Background(), testConfig("any_bad_feature"), Options{
		Activator: activator,
		Auditor:   auditor,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	result, err := w.AnalyzeText(context.Background(), "you are clearly avoiding commitment")
	if err != nil {
		t.Fatalf("AnalyzeText: %v", err)
	}
	if !result.Decision.Alert {
		t.Fatalf("expected alert: %+v", result.Decision)
	}

	// The activation request must cover the whole space in vector order.
	if len(activator.indices) != 2 || activator.indices[0] != 101 || activator.indices[1] != 202 {
		t.Fatalf("feature indices: %v", activator.indices)
	}
	if len(activator.turns) != 1 || activator.turns[0].Role != activation.RoleAssistant {
		t.Fatalf("text must be wrapped as one assistant turn: %+v", activator.turns)
	}

	// Only the bad feature clears the display threshold.
	if len(result.ActivatedFeatures) != 1 || result.ActivatedFeatures[0].Label != "certainty" {
		t.Fatalf("activated features: %+v", result.ActivatedFeatures)
	}

	if len(auditor.decisions) != 1 {
		t.Fatalf("expected one audit row, got %d", len(auditor.decisions))
	}
	rec := auditor.decisions[0]
	if rec.ID == "" || !rec.Alert || rec.Strategy != StrategyAnyBadFeature || len(rec.InputDigest) != 64 {
		t.Fatalf("audit row: %+v", rec)
	}
	var restored Decision
	if err := json.Unmarshal([]byte(rec.ExplanationJSON), &restored); err != nil {
		t.Fatalf("audit explanation is not valid JSON: %v", err)
	}
}

func TestAnalyzeActivationFailurePropagates(t *testing.T) {
	w, err := New(context.Background(), testConfig("ratio"), Options{
		Activator: &stubActivator{err: activation.ErrService},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if _, err := w.AnalyzeText(context.Background(), "text"); !errors.Is(err, activation.ErrService) {
		t.Fatalf("expected ErrService, got %v", err)
	}
}

func TestAnalyzeConversationJudgesLastAssistantTurn(t *testing.T) {
	j := &stubJudge{response: `{"score": 0.82}`}
	cfg := testConfig("claude_prompt")

	w, err := New(context.Background(), cfg, Options{Judge: j})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	result, err := w.AnalyzeConversation(context.Background(), []activation.Turn{
		{Role: activation.RoleUser, Content: "should I quit my job?"},
		{Role: activation.RoleAssistant, Content: "first draft answer"},
		{Role: activation.RoleUser, Content: "are you sure?"},
		{Role: activation.RoleAssistant, Content: "you are clearly afraid of change"},
	})
	if err != nil {
		t.Fatalf("AnalyzeConversation: %v", err)
	}
	if !result.Decision.Alert {
		t.Fatalf("expected alert: %+v", result.Decision)
	}
	if len(j.prompts) != 1 || !strings.Contains(j.prompts[0], "you are clearly afraid of change") {
		t.Fatalf("judge must see the last assistant turn: %v", j.prompts)
	}
	if strings.Contains(j.prompts[0], "first draft answer") {
		t.Fatalf("earlier assistant turns must not leak into the prompt: %q", j.prompts[0])
	}
}

func TestAnalyzeTextSnippetIsBounded(t *testing.T) {
	w, err := New(context.Background(), testConfig("ratio"), Options{
		Activator: &stubActivator{vec: activation.Vector{0, 0}},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	long := strings.Repeat("x", 1000)
	result, err := w.AnalyzeText(context.Background(), long)
	if err != nil {
		t.Fatalf("AnalyzeText: %v", err)
	}
	if len(result.AnalysisText) > 210 {
		t.Fatalf("analysis snippet not bounded: %d chars", len(result.AnalysisText))
	}
}

// #endregion

// #region notify

func TestNotifyAlertEnrichment(t *testing.T) {
	sink := &stubNotifier{}
	w, err := New(context.Background(), testConfig("ratio"), Options{
		Activator: &stubActivator{vec: activation.Vector{0, 0}},
		Notifier:  sink,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	prob := 0.913
	w.Notify(&Result{Decision: Decision{
		Alert:    true,
		Strategy: StrategyLogisticRegression,
		Explanation: Explanation{
			PredictionLabel: "bad",
			Probability:     &prob,
			Summary:         "certainty (+2.000 → BAD)",
		},
	}})

	if len(sink.messages) != 1 {
		t.Fatalf("expected one notification, got %v", sink.messages)
	}
	msg := sink.messages[0]
	if !strings.Contains(msg, "Bad behavior detected!") ||
		!strings.Contains(msg, "Predicted: bad (P=0.913)") ||
		!strings.Contains(msg, "| Why: certainty") {
		t.Fatalf("alert message not enriched: %q", msg)
	}
	if sink.levels[0] != notify.LevelWarning {
		t.Fatalf("alert level: %s", sink.levels[0])
	}
}

func TestNotifyGoodIsOptIn(t *testing.T) {
	sink := &stubNotifier{}
	cfg := testConfig("ratio")

	w, err := New(context.Background(), cfg, Options{
		Activator: &stubActivator{vec: activation.Vector{0, 0}},
		Notifier:  sink,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	w.Notify(&Result{Decision: Decision{Alert: false, Strategy: StrategyRatio}})
	if len(sink.messages) != 0 {
		t.Fatalf("good notification must be opt-in: %v", sink.messages)
	}

	cfg.NotificationMethods = []string{"cli", "good"}
	w2, err := New(context.Background(), cfg, Options{
		Activator: &stubActivator{vec: activation.Vector{0, 0}},
		Notifier:  sink,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	w2.Notify(&Result{Decision: Decision{Alert: false, Strategy: StrategyRatio}})
	if len(sink.messages) != 1 || sink.messages[0] != "Good behavior detected!" {
		t.Fatalf("good notification missing: %v", sink.messages)
	}
	if sink.levels[0] != notify.LevelSuccess {
		t.Fatalf("good level: %s", sink.levels[0])
	}
}

// #endregion
