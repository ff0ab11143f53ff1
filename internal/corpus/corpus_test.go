package corpus

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/danielpatrickdp/behavior-watch/go-engine/internal/activation"
)

func writeCorpus(t *testing.T, name, doc string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatalf("write corpus: %v", err)
	}
	return path
}

func TestLoadBareList(t *testing.T) {
	path := writeCorpus(t, "bare.json", `[
		{"conversation": [{"role": "user", "content": "hi"}, {"role": "assistant", "content": "hello there"}]},
		[{"role": "assistant", "content": "a bare turn list"}]
	]`)

	examples, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(examples) != 2 {
		t.Fatalf("expected 2 examples, got %d", len(examples))
	}
	if examples[0].Conversation[1].Role != activation.RoleAssistant {
		t.Fatalf("roles lost: %+v", examples[0].Conversation)
	}
	if examples[1].Conversation[0].Content != "a bare turn list" {
		t.Fatalf("bare turn list form lost: %+v", examples[1])
	}
}

func TestLoadKeyedForms(t *testing.T) {
	conversations := writeCorpus(t, "c.json",
		`{"conversations": [{"conversation": [{"role": "assistant", "content": "from conversations key"}]}]}`)
	excerpts := writeCorpus(t, "e.json",
		`{"excerpts": [{"conversation": [{"role": "assistant", "content": "from excerpts key"}]}]}`)

	for _, path := range []string{conversations, excerpts} {
		examples, err := Load(path)
		if err != nil {
			t.Fatalf("Load %s: %v", path, err)
		}
		if len(examples) != 1 || len(examples[0].Conversation) != 1 {
			t.Fatalf("keyed form lost: %+v", examples)
		}
	}
}

func TestLoadRejectsUnknownShape(t *testing.T) {
	path := writeCorpus(t, "bad.json", `{"samples": []}`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for unknown document shape")
	}
}

func TestLoadAllConcatenates(t *testing.T) {
	a := writeCorpus(t, "a.json", `[[{"role": "assistant", "content": "first file"}]]`)
	b := writeCorpus(t, "b.json", `[[{"role": "assistant", "content": "second file"}]]`)

	examples, err := LoadAll([]string{a, b})
	if err != nil {
		t.Fatalf("LoadAll: %v", err)
	}
	if len(examples) != 2 || examples[1].Conversation[0].Content != "second file" {
		t.Fatalf("concatenation order lost: %+v", examples)
	}
}

func TestAnalysisTextJoinsLastTwoAssistantTurns(t *testing.T) {
	ex := Example{Conversation: []activation.Turn{
		{Role: activation.RoleAssistant, Content: "first response, long enough"},
		{Role: activation.RoleUser, Content: "and then?"},
		{Role: activation.RoleAssistant, Content: "second response, long enough"},
		{Role: activation.RoleAssistant, Content: "third response, long enough"},
	}}
	got := AnalysisText(ex)
	want := "second response, long enough\n\nthird response, long enough"
	if got != want {
		t.Fatalf("AnalysisText: %q", got)
	}
}

func TestAnalysisTextSkipsStubs(t *testing.T) {
	short := Example{Conversation: []activation.Turn{
		{Role: activation.RoleAssistant, Content: "ok"},
	}}
	if got := AnalysisText(short); got != "" {
		t.Fatalf("stub response must be skipped: %q", got)
	}

	none := Example{Conversation: []activation.Turn{
		{Role: activation.RoleUser, Content: "anyone there?"},
	}}
	if got := AnalysisText(none); got != "" {
		t.Fatalf("no assistant turns must yield empty: %q", got)
	}
}
