package explain

import (
	"strings"
	"testing"
)

func TestRankSortsByAbsoluteValueDescending(t *testing.T) {
	f := NewFormatter("authentic", "projective")
	ranked := f.Rank(
		[]string{"a", "b", "c", "d"},
		[]float64{0.05, -0.30, 0.10, -0.02},
	)

	want := []string{"b", "c", "a", "d"}
	for i, label := range want {
		if ranked[i].FeatureLabel != label {
			t.Fatalf("position %d: expected %s, got %s", i, label, ranked[i].FeatureLabel)
		}
	}
}

func TestRankTieBreaksByOriginalOrder(t *testing.T) {
	f := NewFormatter("good", "bad")
	ranked := f.Rank(
		[]string{"first", "second", "third"},
		[]float64{0.2, -0.2, 0.2},
	)
	// All equal magnitude: original order must survive the stable sort.
	if ranked[0].FeatureLabel != "first" || ranked[1].FeatureLabel != "second" || ranked[2].FeatureLabel != "third" {
		t.Fatalf("tie break violated original order: %+v", ranked)
	}
}

func TestRankDirections(t *testing.T) {
	f := NewFormatter("authentic", "projective")
	ranked := f.Rank([]string{"push-bad", "push-good"}, []float64{0.4, -0.4})
	if ranked[0].Direction != "projective" {
		t.Fatalf("positive value should point at bad label, got %s", ranked[0].Direction)
	}
	if ranked[1].Direction != "authentic" {
		t.Fatalf("negative value should point at good label, got %s", ranked[1].Direction)
	}
}

func TestSummaryDropsNoiseButRankKeepsIt(t *testing.T) {
	f := NewFormatter("good", "bad")
	ranked := f.Rank([]string{"big", "tiny"}, []float64{0.5, 0.0005})
	if len(ranked) != 2 {
		t.Fatalf("machine-readable list must keep noise entries, got %d", len(ranked))
	}

	summary := f.Summary(ranked)
	if !strings.Contains(summary, "big") {
		t.Fatalf("summary missing significant feature: %q", summary)
	}
	if strings.Contains(summary, "tiny") {
		t.Fatalf("summary should drop sub-floor feature: %q", summary)
	}
}

func TestSummaryBoundedByTopK(t *testing.T) {
	f := NewFormatter("good", "bad")
	f.TopK = 2
	ranked := f.Rank(
		[]string{"a", "b", "c"},
		[]float64{0.3, 0.2, 0.1},
	)
	summary := f.Summary(ranked)
	if strings.Count(summary, "→") != 2 {
		t.Fatalf("expected 2 entries, got %q", summary)
	}
}

func TestSummaryTruncatesLongLabels(t *testing.T) {
	f := NewFormatter("good", "bad")
	long := strings.Repeat("x", 80)
	summary := f.Summary(f.Rank([]string{long}, []float64{0.4}))
	if !strings.Contains(summary, strings.Repeat("x", 50)+"...") {
		t.Fatalf("label not truncated: %q", summary)
	}
	if strings.Contains(summary, strings.Repeat("x", 51)) {
		t.Fatalf("truncation budget exceeded: %q", summary)
	}
}

func TestSummaryEmpty(t *testing.T) {
	f := NewFormatter("good", "bad")
	if got := f.Summary(nil); got != "no significant features identified" {
		t.Fatalf("unexpected empty summary: %q", got)
	}
}
