package feature

// #region imports
import (
	"encoding/json"
	"fmt"
	"os"
)

// #endregion

// #region artifact-format

// artifactFile is the on-disk cached feature-set artifact.
// Metadata is free-form and preserved for inspection only.
type artifactFile struct {
	Features []Descriptor   `json:"features"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// #endregion

// #region direct-spec

// DirectSpec is one directly-configured feature. Only Identity is required;
// Label and SpaceIndex default when omitted.
type DirectSpec struct {
	Identity   string `json:"identity" yaml:"identity"`
	Label      string `json:"label,omitempty" yaml:"label,omitempty"`
	SpaceIndex int    `json:"space_index,omitempty" yaml:"space_index,omitempty"`
}

// #endregion

// #region load-artifact

// LoadArtifact reads a cached feature-set artifact from disk.
func LoadArtifact(path string) (*Set, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read feature artifact %s: %w", path, err)
	}

	var file artifactFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse feature artifact %s: %w", path, err)
	}
	if len(file.Features) == 0 {
		return nil, fmt.Errorf("feature artifact %s has no features", path)
	}

	set, err := newSet(file.Features)
	if err != nil {
		return nil, fmt.Errorf("feature artifact %s: %w", path, err)
	}
	return set, nil
}

// #endregion

// #region load-direct

// LoadDirect builds a Set from directly-specified good and bad features.
// Good features come first in vector order, matching the cached-artifact
// convention used at training time.
func LoadDirect(good, bad []DirectSpec) (*Set, error) {
	if len(good) == 0 && len(bad) == 0 {
		return nil, fmt.Errorf("direct feature specification is empty")
	}

	descriptors := make([]Descriptor, 0, len(good)+len(bad))
	for _, spec := range good {
		d, err := specToDescriptor(spec, PolarityGood)
		if err != nil {
			return nil, err
		}
		descriptors = append(descriptors, d)
	}
	for _, spec := range bad {
		d, err := specToDescriptor(spec, PolarityBad)
		if err != nil {
			return nil, err
		}
		descriptors = append(descriptors, d)
	}

	return newSet(descriptors)
}

func specToDescriptor(spec DirectSpec, polarity Polarity) (Descriptor, error) {
	if spec.Identity == "" {
		return Descriptor{}, fmt.Errorf("direct %s feature has no identity", polarity)
	}
	label := spec.Label
	if label == "" {
		short := spec.Identity
		if len(short) > 8 {
			short = short[:8]
		}
		label = fmt.Sprintf("%s feature %s", polarity, short)
	}
	return Descriptor{
		Identity:   spec.Identity,
		Label:      label,
		SpaceIndex: spec.SpaceIndex,
		Polarity:   polarity,
	}, nil
}

// #endregion

// #region save-artifact

// SaveArtifact writes the set to disk in the cached-artifact format.
// Used by offline tooling; the engine itself only reads artifacts.
func SaveArtifact(path string, s *Set, metadata map[string]any) error {
	file := artifactFile{
		Features: s.VectorOrder(),
		Metadata: metadata,
	}
	data, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal feature artifact: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write feature artifact %s: %w", path, err)
	}
	return nil
}

// #endregion
