package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const minimalYAML = `
vector_source: data/vectors/coaching.json
alert_strategy: ratio
`

func TestParseAppliesDefaults(t *testing.T) {
	cfg, err := Parse([]byte(minimalYAML))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.AlertThreshold != 2.0 {
		t.Fatalf("alert_threshold default: %f", cfg.AlertThreshold)
	}
	if cfg.FeatureThreshold != 0.02 {
		t.Fatalf("feature_threshold default: %f", cfg.FeatureThreshold)
	}
	if cfg.LogisticThreshold != 0.7 {
		t.Fatalf("logistic_threshold default: %f", cfg.LogisticThreshold)
	}
	if len(cfg.NotificationMethods) != 1 || cfg.NotificationMethods[0] != "cli" {
		t.Fatalf("notification_methods default: %v", cfg.NotificationMethods)
	}
	if cfg.JudgeBackend != "subprocess" {
		t.Fatalf("judge_backend default: %q", cfg.JudgeBackend)
	}
}

func TestParseAcceptsJSONDocument(t *testing.T) {
	doc := `{"vector_source": "v.json", "alert_strategy": "quality", "alert_threshold": 1.5}`
	cfg, err := Parse([]byte(doc))
	if err != nil {
		t.Fatalf("Parse JSON: %v", err)
	}
	if cfg.AlertStrategy != StrategyQuality || cfg.AlertThreshold != 1.5 {
		t.Fatalf("JSON fields lost: %+v", cfg)
	}
}

func TestGoodExamplesPathScalarOrList(t *testing.T) {
	scalar, err := Parse([]byte("good_examples_path: good.json\nbad_examples_path: bad.json\n"))
	if err != nil {
		t.Fatalf("Parse scalar: %v", err)
	}
	if len(scalar.GoodExamplesPath) != 1 || scalar.GoodExamplesPath[0] != "good.json" {
		t.Fatalf("scalar form: %v", scalar.GoodExamplesPath)
	}

	list, err := Parse([]byte("good_examples_path: [a.json, b.json]\nbad_examples_path: bad.json\n"))
	if err != nil {
		t.Fatalf("Parse list: %v", err)
	}
	if len(list.GoodExamplesPath) != 2 {
		t.Fatalf("list form: %v", list.GoodExamplesPath)
	}
}

func TestValidateRejectsMissingSources(t *testing.T) {
	_, err := Parse([]byte("alert_strategy: ratio\n"))
	if !errors.Is(err, ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration, got %v", err)
	}
	if !strings.Contains(err.Error(), "must be provided") {
		t.Fatalf("unhelpful error: %v", err)
	}
}

func TestValidateRejectsUnknownStrategy(t *testing.T) {
	_, err := Parse([]byte("vector_source: v.json\nalert_strategy: coin_flip\n"))
	if !errors.Is(err, ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration, got %v", err)
	}
	if !strings.Contains(err.Error(), "coin_flip") {
		t.Fatalf("error should name the strategy: %v", err)
	}
}

func TestValidateRejectsOutOfRangeThresholds(t *testing.T) {
	cases := []string{
		"vector_source: v.json\nalert_threshold: -1\n",
		"vector_source: v.json\nfeature_threshold: 1.5\n",
		"vector_source: v.json\nlogistic_threshold: 2\n",
		"vector_source: v.json\nclaude_threshold: -0.1\n",
	}
	for _, doc := range cases {
		if _, err := Parse([]byte(doc)); !errors.Is(err, ErrConfiguration) {
			t.Fatalf("doc %q: expected ErrConfiguration, got %v", doc, err)
		}
	}
}

func TestValidateRejectsUnknownNotificationMethod(t *testing.T) {
	_, err := Parse([]byte("vector_source: v.json\nnotification_methods: [cli, pager]\n"))
	if !errors.Is(err, ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration, got %v", err)
	}
	if !strings.Contains(err.Error(), "pager") {
		t.Fatalf("error should name the method: %v", err)
	}
}

func TestValidateCollectsAllProblems(t *testing.T) {
	_, err := Parse([]byte("alert_strategy: nope\nalert_threshold: -2\n"))
	if err == nil {
		t.Fatal("expected error")
	}
	msg := err.Error()
	if !strings.Contains(msg, "nope") || !strings.Contains(msg, "alert_threshold") || !strings.Contains(msg, "must be provided") {
		t.Fatalf("expected all problems reported, got: %v", err)
	}
}

func TestDirectFeaturesForm(t *testing.T) {
	doc := `
direct_features:
  good:
    - identity: f-curiosity
      label: curiosity
      space_index: 101
  bad:
    - identity: f-certainty
`
	cfg, err := Parse([]byte(doc))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.DirectFeatures == nil || len(cfg.DirectFeatures.Good) != 1 || len(cfg.DirectFeatures.Bad) != 1 {
		t.Fatalf("direct features lost: %+v", cfg.DirectFeatures)
	}
	if cfg.DirectFeatures.Good[0].SpaceIndex != 101 {
		t.Fatalf("space index lost: %+v", cfg.DirectFeatures.Good[0])
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "watch.yaml")
	if err := os.WriteFile(path, []byte(minimalYAML), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.VectorSource != "data/vectors/coaching.json" {
		t.Fatalf("vector_source lost: %q", cfg.VectorSource)
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); !errors.Is(err, ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration for missing file, got %v", err)
	}
}
