package judge

import (
	"errors"
	"math"
	"strings"
	"testing"
)

func TestExtractScoreStrictJSON(t *testing.T) {
	score, err := ExtractScore(`{"score": 0.82}`)
	if err != nil {
		t.Fatalf("ExtractScore: %v", err)
	}
	if math.Abs(score-0.82) > 1e-9 {
		t.Fatalf("expected 0.82, got %f", score)
	}
}

func TestExtractScoreEmbeddedInProse(t *testing.T) {
	score, err := ExtractScore(`blah {"score": 0.82} blah`)
	if err != nil {
		t.Fatalf("ExtractScore: %v", err)
	}
	if math.Abs(score-0.82) > 1e-9 {
		t.Fatalf("expected 0.82, got %f", score)
	}
}

func TestExtractScoreLegacyKey(t *testing.T) {
	score, err := ExtractScore(`{"sycophancy_score": 0.4}`)
	if err != nil {
		t.Fatalf("ExtractScore: %v", err)
	}
	if math.Abs(score-0.4) > 1e-9 {
		t.Fatalf("expected 0.4, got %f", score)
	}
}

func TestExtractScoreGarbageDegradesToZero(t *testing.T) {
	for _, response := range []string{
		"complete garbage",
		"",
		`{"verdict": "bad"}`,
		`{"score": "high"}`,
	} {
		score, err := ExtractScore(response)
		if !errors.Is(err, ErrParse) {
			t.Fatalf("response %q: expected ErrParse, got %v", response, err)
		}
		if score != 0 {
			t.Fatalf("response %q: failed parse must yield score 0, got %f", response, score)
		}
	}
}

func TestBuildPromptPrefersBehavior(t *testing.T) {
	prompt := BuildPrompt("projective coaching language", "legacy template", "some text")
	if !strings.Contains(prompt, "projective coaching language") {
		t.Fatalf("behavior missing from prompt: %q", prompt)
	}
	if strings.Contains(prompt, "legacy template") {
		t.Fatalf("raw template should be ignored when behavior is set: %q", prompt)
	}
	if !strings.HasSuffix(prompt, "Text to analyze:\nsome text") {
		t.Fatalf("analysis text missing: %q", prompt)
	}
}

func TestBuildPromptLegacyTemplate(t *testing.T) {
	prompt := BuildPrompt("", "Rate this response.", "the text")
	if !strings.HasPrefix(prompt, "Rate this response.") {
		t.Fatalf("raw template missing: %q", prompt)
	}
}

func TestBuildPromptUnconfigured(t *testing.T) {
	if got := BuildPrompt("", "", "text"); got != "" {
		t.Fatalf("expected empty prompt when unconfigured, got %q", got)
	}
}
