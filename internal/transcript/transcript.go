package transcript

// #region imports
import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"

	"github.com/danielpatrickdp/behavior-watch/go-engine/internal/activation"
)

// #endregion

// #region wire-format

// maxLine bounds one JSONL entry; assistant turns with large tool output can
// run long.
const maxLine = 4 * 1024 * 1024

// entry is one line of an assistant session transcript. Only user and
// assistant message entries carry conversation content; everything else
// (tool results, summaries, progress events) is skipped.
type entry struct {
	Type    string `json:"type"`
	Message struct {
		Role    string          `json:"role"`
		Content json.RawMessage `json:"content"`
	} `json:"message"`
}

// contentBlock is one element of the structured content form.
type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// #endregion

// #region extract

// Extract reads a JSONL session transcript and returns the conversation
// turns in order. Content appears either as a bare string or as a list of
// typed blocks, of which only text blocks contribute. Unparseable lines are
// skipped: transcripts are written concurrently and may end mid-line.
func Extract(path string) ([]activation.Turn, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open transcript %s: %w", path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), maxLine)

	var turns []activation.Turn
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var e entry
		if err := json.Unmarshal(line, &e); err != nil {
			continue
		}
		if e.Type != "user" && e.Type != "assistant" {
			continue
		}

		text, ok := contentText(e.Message.Content)
		if !ok || text == "" {
			continue
		}
		turns = append(turns, activation.Turn{
			Role:    activation.NormalizeRole(e.Message.Role),
			Content: text,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan transcript %s: %w", path, err)
	}
	return turns, nil
}

// contentText flattens either content form to plain text.
func contentText(raw json.RawMessage) (string, bool) {
	if len(raw) == 0 {
		return "", false
	}

	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		return asString, true
	}

	var blocks []contentBlock
	if err := json.Unmarshal(raw, &blocks); err != nil {
		return "", false
	}
	text := ""
	for _, b := range blocks {
		if b.Type == "text" {
			if text != "" {
				text += "\n"
			}
			text += b.Text
		}
	}
	return text, true
}

// #endregion

// #region latest

// LatestAssistant returns the content of the last assistant turn, "" when
// the conversation has none.
func LatestAssistant(turns []activation.Turn) string {
	for i := len(turns) - 1; i >= 0; i-- {
		if turns[i].Role == activation.RoleAssistant {
			return turns[i].Content
		}
	}
	return ""
}

// #endregion
