package feature

// #region imports
import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
)

// #endregion

// #region polarity

// Polarity marks whether a feature indicates desired or undesired behavior.
type Polarity string

const (
	PolarityGood Polarity = "good"
	PolarityBad  Polarity = "bad"
)

// #endregion

// #region descriptor

// Descriptor identifies one discriminative feature in the upstream
// representation model's feature space.
type Descriptor struct {
	Identity   string   `json:"identity"`
	Label      string   `json:"label"`
	SpaceIndex int      `json:"space_index"`
	Polarity   Polarity `json:"polarity"`
}

// #endregion

// #region set

// Set is an ordered, immutable collection of feature descriptors.
// Order is fixed at load time: a classifier trained against one ordering
// must never be applied to a set with a different ordering.
type Set struct {
	ordered     []Descriptor
	good        []Descriptor
	bad         []Descriptor
	fingerprint string
}

// NewSet builds a Set from fully-specified descriptors in the given order.
func NewSet(descriptors []Descriptor) (*Set, error) {
	return newSet(descriptors)
}

// newSet builds a Set from descriptors in the given order.
func newSet(descriptors []Descriptor) (*Set, error) {
	if len(descriptors) == 0 {
		return nil, fmt.Errorf("feature set is empty")
	}

	s := &Set{ordered: make([]Descriptor, len(descriptors))}
	copy(s.ordered, descriptors)

	for i, d := range s.ordered {
		if d.Identity == "" {
			return nil, fmt.Errorf("feature %d has no identity", i)
		}
		switch d.Polarity {
		case PolarityGood:
			s.good = append(s.good, d)
		case PolarityBad:
			s.bad = append(s.bad, d)
		default:
			return nil, fmt.Errorf("feature %q has unknown polarity %q", d.Identity, d.Polarity)
		}
	}

	s.fingerprint = computeFingerprint(s.ordered)
	return s, nil
}

// #endregion

// #region accessors

// Len returns the number of features in vector order.
func (s *Set) Len() int { return len(s.ordered) }

// VectorOrder returns the canonical ordering used for all activation and
// weight alignment. The returned slice is a copy.
func (s *Set) VectorOrder() []Descriptor {
	out := make([]Descriptor, len(s.ordered))
	copy(out, s.ordered)
	return out
}

// At returns the descriptor at position i in vector order.
func (s *Set) At(i int) Descriptor { return s.ordered[i] }

// Good returns the good-polarity features in load order.
func (s *Set) Good() []Descriptor {
	out := make([]Descriptor, len(s.good))
	copy(out, s.good)
	return out
}

// Bad returns the bad-polarity features in load order.
func (s *Set) Bad() []Descriptor {
	out := make([]Descriptor, len(s.bad))
	copy(out, s.bad)
	return out
}

// SpaceIndices returns the upstream feature-space indices in vector order.
func (s *Set) SpaceIndices() []int {
	out := make([]int, len(s.ordered))
	for i, d := range s.ordered {
		out[i] = d.SpaceIndex
	}
	return out
}

// Fingerprint returns the content hash of the ordered set. Classifier
// artifacts record this at training time; a mismatch at load means the
// artifact must not be scored.
func (s *Set) Fingerprint() string { return s.fingerprint }

// #endregion

// #region fingerprint

// FingerprintOf hashes ordered identity|space_index|polarity triples.
// Classifier artifacts use it to fingerprint the snapshot they were
// trained against.
func FingerprintOf(descriptors []Descriptor) string {
	return computeFingerprint(descriptors)
}

// computeFingerprint hashes the ordered identity|space_index|polarity triples.
// This replaces filename-derived cache keys: the hash changes iff the
// ordering or membership of the set changes.
func computeFingerprint(descriptors []Descriptor) string {
	h := sha256.New()
	for _, d := range descriptors {
		h.Write([]byte(d.Identity))
		h.Write([]byte{'|'})
		h.Write([]byte(strconv.Itoa(d.SpaceIndex)))
		h.Write([]byte{'|'})
		h.Write([]byte(d.Polarity))
		h.Write([]byte{'\n'})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// #endregion

// #region describe

// Describe returns a short human summary, e.g. "4 good / 3 bad features".
func (s *Set) Describe() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d good / %d bad features", len(s.good), len(s.bad))
	return b.String()
}

// #endregion
