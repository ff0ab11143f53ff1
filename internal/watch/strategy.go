package watch

// #region imports
import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/danielpatrickdp/behavior-watch/go-engine/internal/classifier"
	"github.com/danielpatrickdp/behavior-watch/go-engine/internal/explain"
	"github.com/danielpatrickdp/behavior-watch/go-engine/internal/feature"
	"github.com/danielpatrickdp/behavior-watch/go-engine/internal/judge"
)

// #endregion

// #region strategy

// ratioEpsilon pads the denominator so a near-silent good side does not
// explode the ratio on measurement noise.
const ratioEpsilon = 0.01

// judgeResponseKeep bounds how much raw judge output is retained in
// explanations and traces.
const judgeResponseKeep = 200

// Strategy turns one activation readout (or raw text, for the judge) into a
// Decision. Implementations are stateless across calls and safe for
// concurrent use.
type Strategy interface {
	ID() StrategyID
	Decide(ctx context.Context, vec []float64, set *feature.Set, analysisText string) Decision
}

// Deps carries the optional collaborators a strategy may need. Unused fields
// stay nil.
type Deps struct {
	Artifact  *classifier.Artifact // logistic_regression
	Judge     judge.Judge          // claude_prompt
	Formatter explain.Formatter
	Auditor   Auditor // judge trace sink, may be nil
}

// Params are the thresholds and prompt settings strategies read from the
// configuration document.
type Params struct {
	AlertThreshold      float64
	FeatureThreshold    float64
	LogisticThreshold   float64
	ClaudeThreshold     float64
	BehaviorToDetect    string
	JudgePromptTemplate string
}

// NewStrategy selects the strategy implementation by name. Unknown names are
// a construction-time failure, never a silent default.
func NewStrategy(name StrategyID, params Params, deps Deps) (Strategy, error) {
	switch name {
	case StrategyAnyBadFeature:
		return &anyBadFeatureStrategy{threshold: params.FeatureThreshold}, nil
	case StrategyRatio:
		return &ratioStrategy{alertThreshold: params.AlertThreshold}, nil
	case StrategyQuality:
		return &qualityStrategy{alertThreshold: params.AlertThreshold}, nil
	case StrategyLogisticRegression:
		return &logisticStrategy{
			artifact:  deps.Artifact,
			threshold: params.LogisticThreshold,
			formatter: deps.Formatter,
		}, nil
	case StrategyClaudePrompt:
		return &judgeStrategy{
			judge:     deps.Judge,
			threshold: params.ClaudeThreshold,
			behavior:  params.BehaviorToDetect,
			template:  params.JudgePromptTemplate,
			auditor:   deps.Auditor,
		}, nil
	default:
		return nil, fmt.Errorf("unknown alert strategy %q", name)
	}
}

// #endregion

// #region any-bad-feature

// anyBadFeatureStrategy alerts when any bad-polarity feature activates
// strictly above the feature threshold. Most sensitive, zero tolerance.
type anyBadFeatureStrategy struct {
	threshold float64
}

func (s *anyBadFeatureStrategy) ID() StrategyID { return StrategyAnyBadFeature }

func (s *anyBadFeatureStrategy) Decide(_ context.Context, vec []float64, set *feature.Set, _ string) Decision {
	var crossed []ActivatedFeature
	for i, v := range vec {
		if i >= set.Len() {
			break
		}
		d := set.At(i)
		if d.Polarity == feature.PolarityBad && v > s.threshold {
			crossed = append(crossed, ActivatedFeature{
				Polarity:   d.Polarity,
				Label:      d.Label,
				Activation: v,
			})
		}
	}

	return Decision{
		Alert:    len(crossed) > 0,
		Strategy: StrategyAnyBadFeature,
		Explanation: Explanation{
			Threshold: &ThresholdDetail{
				FeatureThreshold: s.threshold,
				CrossedBad:       crossed,
			},
		},
	}
}

// #endregion

// #region ratio

// ratioStrategy alerts when bad activation mass dominates good activation
// mass past the configured multiple.
type ratioStrategy struct {
	alertThreshold float64
}

func (s *ratioStrategy) ID() StrategyID { return StrategyRatio }

func (s *ratioStrategy) Decide(_ context.Context, vec []float64, set *feature.Set, _ string) Decision {
	good, bad := polaritySums(vec, set)

	// With no good signal at all, noise-level bad activation is not a
	// meaningful ratio; real bad activation is unbounded.
	var ratio float64
	switch {
	case good == 0 && bad > ratioEpsilon:
		ratio = math.Inf(1)
	case good == 0:
		ratio = 0
	default:
		ratio = bad / (good + ratioEpsilon)
	}

	return Decision{
		Alert:    ratio > s.alertThreshold,
		Strategy: StrategyRatio,
		Explanation: Explanation{
			Ratio: &RatioDetail{
				Ratio:     ratio,
				Threshold: s.alertThreshold,
				TotalGood: good,
				TotalBad:  bad,
			},
		},
	}
}

// #endregion

// #region quality

// qualityStrategy classifies the readout three ways. Silence is neutral, not
// good: with no activation on either side there is nothing to judge.
type qualityStrategy struct {
	alertThreshold float64
}

func (s *qualityStrategy) ID() StrategyID { return StrategyQuality }

func (s *qualityStrategy) Decide(_ context.Context, vec []float64, set *feature.Set, _ string) Decision {
	good, bad := polaritySums(vec, set)

	quality := QualityNeutral
	if good+bad > 0 {
		if bad > good*s.alertThreshold {
			quality = QualityBad
		} else {
			quality = QualityGood
		}
	}

	return Decision{
		Alert:    quality == QualityBad,
		Strategy: StrategyQuality,
		Explanation: Explanation{
			Quality: &QualityDetail{
				Quality:   quality,
				Threshold: s.alertThreshold,
				TotalGood: good,
				TotalBad:  bad,
			},
		},
	}
}

// #endregion

// #region logistic-regression

// logisticStrategy scores with a trained linear model. Fails closed: no
// artifact or a misaligned vector yields alert=false with an error
// explanation rather than a guess.
type logisticStrategy struct {
	artifact  *classifier.Artifact
	threshold float64
	formatter explain.Formatter
}

func (s *logisticStrategy) ID() StrategyID { return StrategyLogisticRegression }

func (s *logisticStrategy) Decide(_ context.Context, vec []float64, set *feature.Set, _ string) Decision {
	if s.artifact == nil {
		return Decision{
			Strategy: StrategyLogisticRegression,
			Explanation: Explanation{
				Error: classifier.ErrNotLoaded.Error(),
			},
		}
	}

	prob, err := s.artifact.ProbabilityBad(vec)
	if err != nil {
		return Decision{
			Strategy:    StrategyLogisticRegression,
			Explanation: Explanation{Error: err.Error()},
		}
	}

	predictedBad := prob >= s.artifact.DecisionThreshold()
	label := s.formatter.GoodLabel
	if predictedBad {
		label = s.formatter.BadLabel
	}

	exp := Explanation{
		PredictionLabel: strings.ToLower(label),
		Probability:     &prob,
	}

	// Attribution is best-effort: a missing or broken explainer never blocks
	// the decision.
	if s.artifact.HasExplainer() {
		if values, cerr := s.artifact.Contributions(vec); cerr == nil {
			labels := make([]string, set.Len())
			for i := 0; i < set.Len(); i++ {
				labels[i] = set.At(i).Label
			}
			exp.RankedContributions = s.formatter.Rank(labels, values)
			exp.Summary = s.formatter.Summary(exp.RankedContributions)
		}
	}

	return Decision{
		// The raw class boundary alone is too twitchy for alerting, so the
		// alert additionally requires clearing the confidence threshold.
		Alert:       predictedBad && prob > s.threshold,
		Strategy:    StrategyLogisticRegression,
		Explanation: exp,
	}
}

// #endregion

// #region claude-prompt

// judgeStrategy delegates the verdict to an external language-model judge
// and defensively parses its free-form output.
type judgeStrategy struct {
	judge     judge.Judge
	threshold float64
	behavior  string
	template  string
	auditor   Auditor
}

func (s *judgeStrategy) ID() StrategyID { return StrategyClaudePrompt }

func (s *judgeStrategy) Decide(ctx context.Context, _ []float64, _ *feature.Set, analysisText string) Decision {
	prompt := judge.BuildPrompt(s.behavior, s.template, analysisText)
	if prompt == "" {
		return Decision{
			Strategy: StrategyClaudePrompt,
			Explanation: Explanation{
				Error: "no behavior_to_detect or judge prompt configured",
			},
		}
	}
	if s.judge == nil {
		return Decision{
			Strategy:    StrategyClaudePrompt,
			Explanation: Explanation{Error: "no judge backend attached"},
		}
	}

	response, err := s.judge.Judge(ctx, prompt)
	if err != nil {
		s.trace(prompt, response, 0, "judge_error", false)
		return Decision{
			Strategy:    StrategyClaudePrompt,
			Explanation: Explanation{Error: fmt.Sprintf("judge invocation failed: %v", err)},
		}
	}

	outcome := "ok"
	score, perr := judge.ExtractScore(response)
	if perr != nil {
		// A judge that rambles instead of answering scores zero.
		if !errors.Is(perr, judge.ErrParse) {
			outcome = "judge_error"
		} else {
			outcome = "parse_error"
		}
	}

	alert := score > s.threshold
	s.trace(prompt, response, score, outcome, alert)

	return Decision{
		Alert:    alert,
		Strategy: StrategyClaudePrompt,
		Explanation: Explanation{
			Judge: &JudgeDetail{
				Score:     score,
				Threshold: s.threshold,
				Response:  clip(response, judgeResponseKeep),
			},
		},
	}
}

// trace appends one judge invocation to the audit trail, best-effort.
func (s *judgeStrategy) trace(prompt, response string, score float64, outcome string, alert bool) {
	if s.auditor == nil {
		return
	}
	_ = s.auditor.TraceJudge(JudgeTrace{
		PromptChars: len(prompt),
		Response:    clip(response, judgeResponseKeep),
		Score:       score,
		Outcome:     outcome,
		Alert:       alert,
		CreatedAt:   time.Now().UTC(),
	})
}

// #endregion

// #region helpers

// polaritySums totals activations by polarity over the aligned prefix of the
// vector and the feature set.
func polaritySums(vec []float64, set *feature.Set) (good, bad float64) {
	for i, v := range vec {
		if i >= set.Len() {
			break
		}
		switch set.At(i).Polarity {
		case feature.PolarityGood:
			good += v
		case feature.PolarityBad:
			bad += v
		}
	}
	return good, bad
}

func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// #endregion
