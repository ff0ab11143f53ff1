package watch

// #region imports
import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/danielpatrickdp/behavior-watch/go-engine/internal/explain"
	"github.com/danielpatrickdp/behavior-watch/go-engine/internal/feature"
)

// #endregion

// #region strategy-id

// StrategyID identifies an alert strategy. Values match the configuration
// document.
type StrategyID string

const (
	StrategyAnyBadFeature      StrategyID = "any_bad_feature"
	StrategyRatio              StrategyID = "ratio"
	StrategyQuality            StrategyID = "quality"
	StrategyLogisticRegression StrategyID = "logistic_regression"
	StrategyClaudePrompt       StrategyID = "claude_prompt"
)

// #endregion

// #region quality-label

// QualityLabel is the three-way classification of the quality strategy.
// Only QualityBad alerts; the others are informational.
type QualityLabel string

const (
	QualityGood    QualityLabel = "good"
	QualityBad     QualityLabel = "bad"
	QualityNeutral QualityLabel = "neutral"
)

// #endregion

// #region decision

// Decision is the immutable output of one analyze call.
type Decision struct {
	Alert       bool        `json:"alert"`
	Strategy    StrategyID  `json:"strategy"`
	Explanation Explanation `json:"explanation"`
}

// #endregion

// #region explanation

// Explanation carries the strategy's reasoning. Exactly one of the detail
// sub-structs is set, matching the strategy that produced the decision.
type Explanation struct {
	PredictionLabel     string                 `json:"prediction_label,omitempty"`
	Probability         *float64               `json:"probability,omitempty"`
	RankedContributions []explain.Contribution `json:"ranked_contributions,omitempty"`
	Summary             string                 `json:"summary,omitempty"`
	Error               string                 `json:"error,omitempty"`

	Threshold *ThresholdDetail `json:"threshold,omitempty"`
	Ratio     *RatioDetail     `json:"ratio,omitempty"`
	Quality   *QualityDetail   `json:"quality,omitempty"`
	Judge     *JudgeDetail     `json:"judge,omitempty"`
}

// #endregion

// #region activated-feature

// ActivatedFeature is one feature whose activation crossed the display
// threshold, reported in feature set order.
type ActivatedFeature struct {
	Polarity   feature.Polarity `json:"type"`
	Label      string           `json:"label"`
	Activation float64          `json:"activation"`
}

// #endregion

// #region details

// ThresholdDetail explains an any_bad_feature decision.
type ThresholdDetail struct {
	FeatureThreshold float64            `json:"feature_threshold"`
	CrossedBad       []ActivatedFeature `json:"activated_bad_features"`
}

// RatioDetail explains a ratio decision. Ratio may be +Inf when bad
// activations exist with no good counterweight.
type RatioDetail struct {
	Ratio     float64 `json:"-"`
	Threshold float64 `json:"threshold"`
	TotalGood float64 `json:"total_good"`
	TotalBad  float64 `json:"total_bad"`
}

// ratioDetailWire keeps Decision JSON-serializable: encoding/json rejects
// +Inf, so an unbounded ratio is encoded as the string "inf".
type ratioDetailWire struct {
	Ratio     json.RawMessage `json:"ratio"`
	Threshold float64         `json:"threshold"`
	TotalGood float64         `json:"total_good"`
	TotalBad  float64         `json:"total_bad"`
}

// MarshalJSON implements json.Marshaler.
func (d RatioDetail) MarshalJSON() ([]byte, error) {
	wire := ratioDetailWire{
		Threshold: d.Threshold,
		TotalGood: d.TotalGood,
		TotalBad:  d.TotalBad,
	}
	if math.IsInf(d.Ratio, 1) {
		wire.Ratio = json.RawMessage(`"inf"`)
	} else {
		wire.Ratio = json.RawMessage(strconv.FormatFloat(d.Ratio, 'g', -1, 64))
	}
	return json.Marshal(wire)
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *RatioDetail) UnmarshalJSON(data []byte) error {
	var wire ratioDetailWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	d.Threshold = wire.Threshold
	d.TotalGood = wire.TotalGood
	d.TotalBad = wire.TotalBad

	var asString string
	if err := json.Unmarshal(wire.Ratio, &asString); err == nil {
		if asString != "inf" {
			return fmt.Errorf("unexpected ratio %q", asString)
		}
		d.Ratio = math.Inf(1)
		return nil
	}
	return json.Unmarshal(wire.Ratio, &d.Ratio)
}

// QualityDetail explains a quality decision.
type QualityDetail struct {
	Quality   QualityLabel `json:"quality"`
	Threshold float64      `json:"threshold"`
	TotalGood float64      `json:"total_good"`
	TotalBad  float64      `json:"total_bad"`
}

// JudgeDetail explains a claude_prompt decision.
type JudgeDetail struct {
	Score     float64 `json:"score"`
	Threshold float64 `json:"threshold"`
	Response  string  `json:"response,omitempty"` // truncated for logging
}

// #endregion

// #region result

// Result bundles the decision with the display-threshold feature readout.
type Result struct {
	AnalysisText      string             `json:"analysis_text"`
	Decision          Decision           `json:"decision"`
	ActivatedFeatures []ActivatedFeature `json:"activated_features"`
}

// #endregion

// #region audit-records

// DecisionRecord is one durable provenance row per analyze call.
type DecisionRecord struct {
	ID              string
	Strategy        StrategyID
	Alert           bool
	InputDigest     string
	AnalysisSnippet string
	ExplanationJSON string
	CreatedAt       time.Time
}

// JudgeTrace captures one external-judge invocation and its parse outcome
// for later auditing; this is the only path exercising free-form output.
type JudgeTrace struct {
	PromptChars int
	Response    string
	Score       float64
	Outcome     string // "ok" | "parse_error" | "judge_error"
	Alert       bool
	CreatedAt   time.Time
}

// Auditor persists decisions and judge traces. Implementations own their
// write serialization; recording is best-effort and never blocks a decision.
type Auditor interface {
	RecordDecision(rec DecisionRecord) error
	TraceJudge(entry JudgeTrace) error
}

// #endregion
