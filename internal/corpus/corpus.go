package corpus

// #region imports
import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/danielpatrickdp/behavior-watch/go-engine/internal/activation"
)

// #endregion

// #region types

// minAnalysisChars filters out stub responses ("ok", "sure") that carry no
// behavioral signal worth scoring.
const minAnalysisChars = 10

// Example is one labeled conversation from an example corpus file.
type Example struct {
	Conversation []activation.Turn
}

// #endregion

// #region wire-format

// corpusFile tolerates the three shapes example corpora come in: a bare
// list, or a document keyed by "conversations" or "excerpts".
type corpusFile struct {
	Conversations []json.RawMessage `json:"conversations"`
	Excerpts      []json.RawMessage `json:"excerpts"`
}

// wrappedExample is the object item form.
type wrappedExample struct {
	Conversation []rawTurn `json:"conversation"`
}

type rawTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// #endregion

// #region load

// Load reads an example corpus file and returns its conversations in file
// order.
func Load(path string) ([]Example, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read corpus %s: %w", path, err)
	}

	items, err := corpusItems(data)
	if err != nil {
		return nil, fmt.Errorf("parse corpus %s: %w", path, err)
	}

	examples := make([]Example, 0, len(items))
	for i, item := range items {
		ex, err := parseExample(item)
		if err != nil {
			return nil, fmt.Errorf("corpus %s item %d: %w", path, i, err)
		}
		examples = append(examples, ex)
	}
	return examples, nil
}

// LoadAll concatenates multiple corpus files, preserving order.
func LoadAll(paths []string) ([]Example, error) {
	var all []Example
	for _, path := range paths {
		examples, err := Load(path)
		if err != nil {
			return nil, err
		}
		all = append(all, examples...)
	}
	return all, nil
}

func corpusItems(data []byte) ([]json.RawMessage, error) {
	var bare []json.RawMessage
	if err := json.Unmarshal(data, &bare); err == nil {
		return bare, nil
	}

	var file corpusFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, err
	}
	switch {
	case file.Conversations != nil:
		return file.Conversations, nil
	case file.Excerpts != nil:
		return file.Excerpts, nil
	default:
		return nil, fmt.Errorf("no conversations or excerpts key")
	}
}

// parseExample accepts either the object form {"conversation": [...]} or a
// bare turn list.
func parseExample(item json.RawMessage) (Example, error) {
	var wrapped wrappedExample
	if err := json.Unmarshal(item, &wrapped); err == nil && wrapped.Conversation != nil {
		return Example{Conversation: toTurns(wrapped.Conversation)}, nil
	}

	var bare []rawTurn
	if err := json.Unmarshal(item, &bare); err != nil {
		return Example{}, fmt.Errorf("neither conversation object nor turn list")
	}
	return Example{Conversation: toTurns(bare)}, nil
}

func toTurns(raw []rawTurn) []activation.Turn {
	turns := make([]activation.Turn, len(raw))
	for i, r := range raw {
		turns[i] = activation.Turn{
			Role:    activation.NormalizeRole(r.Role),
			Content: r.Content,
		}
	}
	return turns
}

// #endregion

// #region analysis-text

// AnalysisText derives the judge-facing text of one example: the last two
// assistant responses joined, or the single one when that is all there is.
// Too-short text yields "" and the example should be skipped.
func AnalysisText(ex Example) string {
	var assistant []string
	for _, t := range ex.Conversation {
		if t.Role == activation.RoleAssistant {
			assistant = append(assistant, t.Content)
		}
	}
	if len(assistant) == 0 {
		return ""
	}
	if len(assistant) > 2 {
		assistant = assistant[len(assistant)-2:]
	}

	text := strings.TrimSpace(strings.Join(assistant, "\n\n"))
	if len(text) < minAnalysisChars {
		return ""
	}
	return text
}

// #endregion
