package explain

// #region imports
import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// #endregion

// #region contribution

// Contribution is one feature's signed attribution toward the decision.
// Positive values push toward the bad label.
type Contribution struct {
	FeatureLabel string  `json:"feature_label"`
	Value        float64 `json:"signed_contribution"`
	Direction    string  `json:"direction"`
}

// #endregion

// #region formatter

// Formatter ranks contributions and renders a bounded one-line summary.
type Formatter struct {
	TopK        int     // max entries in the human summary
	NoiseFloor  float64 // |value| <= floor is dropped from the summary only
	MaxLabelLen int     // labels longer than this are truncated with "..."
	GoodLabel   string
	BadLabel    string
}

// NewFormatter returns a formatter with the defaults the notifier uses.
func NewFormatter(goodLabel, badLabel string) Formatter {
	return Formatter{
		TopK:        3,
		NoiseFloor:  0.001,
		MaxLabelLen: 50,
		GoodLabel:   goodLabel,
		BadLabel:    badLabel,
	}
}

// #endregion

// #region rank

// Rank pairs labels with values and sorts by descending |value|.
// The sort is stable: equal magnitudes keep their original (feature set)
// order, so output is deterministic.
func (f Formatter) Rank(labels []string, values []float64) []Contribution {
	n := len(values)
	if len(labels) < n {
		n = len(labels)
	}
	ranked := make([]Contribution, n)
	for i := 0; i < n; i++ {
		direction := f.GoodLabel
		if values[i] > 0 {
			direction = f.BadLabel
		}
		ranked[i] = Contribution{
			FeatureLabel: labels[i],
			Value:        values[i],
			Direction:    direction,
		}
	}
	sort.SliceStable(ranked, func(a, b int) bool {
		return math.Abs(ranked[a].Value) > math.Abs(ranked[b].Value)
	})
	return ranked
}

// #endregion

// #region summary

// Summary renders the top contributions as a single line:
// "label (+0.123 → bad), other (-0.045 → good)". Entries at or below the
// noise floor are omitted here but stay in the ranked list.
func (f Formatter) Summary(ranked []Contribution) string {
	var parts []string
	for _, c := range ranked {
		if len(parts) >= f.TopK {
			break
		}
		if math.Abs(c.Value) <= f.NoiseFloor {
			// Ranked descending, everything after is noise too.
			break
		}
		parts = append(parts, fmt.Sprintf("%s (%+.3f → %s)", f.truncate(c.FeatureLabel), c.Value, c.Direction))
	}
	if len(parts) == 0 {
		return "no significant features identified"
	}
	return strings.Join(parts, ", ")
}

func (f Formatter) truncate(label string) string {
	if f.MaxLabelLen <= 0 || len(label) <= f.MaxLabelLen {
		return label
	}
	return label[:f.MaxLabelLen] + "..."
}

// #endregion
