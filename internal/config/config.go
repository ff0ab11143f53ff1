package config

// #region imports
import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/danielpatrickdp/behavior-watch/go-engine/internal/feature"
)

// #endregion

// #region errors

// ErrConfiguration marks bad or missing configuration. Fatal, surfaced
// immediately, never retried.
var ErrConfiguration = errors.New("configuration error")

// #endregion

// #region strategy-names

// Strategy names are the configuration-facing identifiers, kept compatible
// with existing config files.
const (
	StrategyAnyBadFeature      = "any_bad_feature"
	StrategyRatio              = "ratio"
	StrategyQuality            = "quality"
	StrategyLogisticRegression = "logistic_regression"
	StrategyClaudePrompt       = "claude_prompt"
)

var validStrategies = map[string]bool{
	StrategyAnyBadFeature:      true,
	StrategyRatio:              true,
	StrategyQuality:            true,
	StrategyLogisticRegression: true,
	StrategyClaudePrompt:       true,
}

var validNotificationMethods = map[string]bool{
	"cli":   true,
	"emacs": true,
	"log":   true,
	"good":  true, // not a sink: opt-in flag for good-behavior notifications
}

// #endregion

// #region string-list

// StringList accepts either a scalar or a sequence in the config document.
type StringList []string

// UnmarshalYAML implements yaml.Unmarshaler.
func (s *StringList) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		var single string
		if err := node.Decode(&single); err != nil {
			return err
		}
		if single != "" {
			*s = StringList{single}
		}
		return nil
	case yaml.SequenceNode:
		var many []string
		if err := node.Decode(&many); err != nil {
			return err
		}
		*s = StringList(many)
		return nil
	default:
		return fmt.Errorf("expected string or list of strings")
	}
}

// #endregion

// #region direct-features

// DirectFeatures specifies features inline instead of via a cached artifact.
type DirectFeatures struct {
	Good []feature.DirectSpec `yaml:"good" json:"good"`
	Bad  []feature.DirectSpec `yaml:"bad" json:"bad"`
}

// #endregion

// #region watch-config

// WatchConfig is the behavior monitoring configuration document.
type WatchConfig struct {
	GoodExamplesPath StringList `yaml:"good_examples_path" json:"good_examples_path"`
	BadExamplesPath  string     `yaml:"bad_examples_path" json:"bad_examples_path"`

	AlertThreshold    float64 `yaml:"alert_threshold" json:"alert_threshold"`
	FeatureThreshold  float64 `yaml:"feature_threshold" json:"feature_threshold"`
	AlertStrategy     string  `yaml:"alert_strategy" json:"alert_strategy"`
	LogisticThreshold float64 `yaml:"logistic_threshold" json:"logistic_threshold"`
	ClaudeThreshold   float64 `yaml:"claude_threshold" json:"claude_threshold"`

	NotificationMethods []string `yaml:"notification_methods" json:"notification_methods"`

	Model string `yaml:"model" json:"model"`

	GoodAlertMessage  string `yaml:"good_alert_message" json:"good_alert_message"`
	BadAlertMessage   string `yaml:"bad_alert_message" json:"bad_alert_message"`
	GoodBehaviorLabel string `yaml:"good_behavior_label" json:"good_behavior_label"`
	BadBehaviorLabel  string `yaml:"bad_behavior_label" json:"bad_behavior_label"`

	// Feature sources: a cached artifact path, or inline descriptors.
	VectorSource   string          `yaml:"vector_source" json:"vector_source"`
	DirectFeatures *DirectFeatures `yaml:"direct_features" json:"direct_features"`

	// Trained classifier artifact for the logistic_regression strategy.
	ModelPath string `yaml:"model_path" json:"model_path"`

	// External judge (claude_prompt strategy).
	BehaviorToDetect    string `yaml:"behavior_to_detect" json:"behavior_to_detect"`
	JudgePromptTemplate string `yaml:"claude_prompt" json:"claude_prompt"`
	JudgeBackend        string `yaml:"judge_backend" json:"judge_backend"` // "subprocess" (default) | "genai"
	JudgeModel          string `yaml:"judge_model" json:"judge_model"`
	JudgeCommand        string `yaml:"judge_command" json:"judge_command"`

	ActivationBaseURL string `yaml:"activation_base_url" json:"activation_base_url"`
	AuditDBPath       string `yaml:"audit_db" json:"audit_db"`
}

// #endregion

// #region load

// Load reads a YAML or JSON configuration document, applies defaults, and
// validates. Any failure wraps ErrConfiguration.
func Load(path string) (*WatchConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", ErrConfiguration, path, err)
	}
	return Parse(data)
}

// Parse decodes a configuration document from bytes.
func Parse(data []byte) (*WatchConfig, error) {
	var cfg WatchConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("%w: parse config: %v", ErrConfiguration, err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *WatchConfig) applyDefaults() {
	if c.AlertThreshold == 0 {
		c.AlertThreshold = 2.0
	}
	if c.FeatureThreshold == 0 {
		c.FeatureThreshold = 0.02
	}
	if c.AlertStrategy == "" {
		c.AlertStrategy = StrategyAnyBadFeature
	}
	if c.LogisticThreshold == 0 {
		c.LogisticThreshold = 0.7
	}
	if c.ClaudeThreshold == 0 {
		c.ClaudeThreshold = 0.7
	}
	if len(c.NotificationMethods) == 0 {
		c.NotificationMethods = []string{"cli"}
	}
	if c.Model == "" {
		c.Model = "meta-llama/Llama-3.3-70B-Instruct"
	}
	if c.GoodAlertMessage == "" {
		c.GoodAlertMessage = "Good behavior detected!"
	}
	if c.BadAlertMessage == "" {
		c.BadAlertMessage = "Bad behavior detected!"
	}
	if c.GoodBehaviorLabel == "" {
		c.GoodBehaviorLabel = "GOOD"
	}
	if c.BadBehaviorLabel == "" {
		c.BadBehaviorLabel = "BAD"
	}
	if c.JudgeBackend == "" {
		c.JudgeBackend = "subprocess"
	}
}

// #endregion

// #region validate

// Validate checks the whole document and reports every problem at once.
func (c *WatchConfig) Validate() error {
	var problems []string

	hasExamplePaths := len(c.GoodExamplesPath) > 0 && c.BadExamplesPath != ""
	hasDirect := c.DirectFeatures != nil
	hasArtifact := c.VectorSource != ""

	if !hasExamplePaths && !hasDirect && !hasArtifact {
		problems = append(problems,
			"one of (good_examples_path AND bad_examples_path), direct_features, or vector_source must be provided")
	}
	if hasDirect && len(c.DirectFeatures.Good) == 0 && len(c.DirectFeatures.Bad) == 0 {
		problems = append(problems, "direct_features must list good or bad features")
	}

	if c.AlertThreshold <= 0 {
		problems = append(problems, "alert_threshold must be positive")
	}
	if c.FeatureThreshold < 0 || c.FeatureThreshold > 1 {
		problems = append(problems, "feature_threshold must be between 0 and 1")
	}
	if c.LogisticThreshold < 0 || c.LogisticThreshold > 1 {
		problems = append(problems, "logistic_threshold must be between 0 and 1")
	}
	if c.ClaudeThreshold < 0 || c.ClaudeThreshold > 1 {
		problems = append(problems, "claude_threshold must be between 0 and 1")
	}

	if !validStrategies[c.AlertStrategy] {
		problems = append(problems, fmt.Sprintf("unknown alert_strategy %q", c.AlertStrategy))
	}
	for _, m := range c.NotificationMethods {
		if !validNotificationMethods[m] {
			problems = append(problems, fmt.Sprintf("unknown notification method %q", m))
		}
	}
	if c.JudgeBackend != "subprocess" && c.JudgeBackend != "genai" {
		problems = append(problems, fmt.Sprintf("unknown judge_backend %q", c.JudgeBackend))
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w:\n  - %s", ErrConfiguration, strings.Join(problems, "\n  - "))
	}
	return nil
}

// #endregion
