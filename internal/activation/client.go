package activation

// #region imports
import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// #endregion

// #region errors

// ErrService wraps transport, auth, and protocol failures from the remote
// activation service. Calls are not retried internally: repeated extraction
// against the same input is expensive and the caller may prefer to fail fast.
var ErrService = errors.New("activation service error")

// #endregion

// #region types

// Role tags one conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
	RoleOther     Role = "other"
)

// Turn is a single role-tagged conversation message.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Vector is a dense per-feature activation vector, one entry per requested
// feature index, in request order. Values are non-negative in practice but
// the client makes no guarantee; downstream code must not assume it.
type Vector []float64

// #endregion

// #region wire-format

// activationsRequest asks the service for per-token activations of the
// given feature-space indices over the serialized conversation.
type activationsRequest struct {
	Model          string `json:"model"`
	Messages       []Turn `json:"messages"`
	FeatureIndices []int  `json:"feature_indices"`
}

// activationsResponse carries a token-major matrix: one row per token,
// one column per requested feature index.
type activationsResponse struct {
	Activations [][]float64 `json:"activations"`
}

// #endregion

// #region client

const (
	defaultTimeout = 60 * time.Second

	// DefaultBaseURL is the hosted activation service endpoint, overridable
	// per deployment in the configuration document.
	DefaultBaseURL = "https://api.goodfire.ai"
)

// Client wraps the HTTP connection to the remote activation service.
// Safe for concurrent use.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates a client for the activation service at baseURL.
// The API key is injected here, never read from ambient process state.
func NewClient(baseURL, apiKey string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
}

// WithTimeout overrides the transport timeout. Timeouts are the only
// cancellation mechanism; the engine itself imposes none.
func (c *Client) WithTimeout(d time.Duration) *Client {
	c.httpClient.Timeout = d
	return c
}

// #endregion

// #region text-turns

// TextTurns wraps a bare text sample as a single assistant utterance,
// the form the service expects for non-conversation input.
func TextTurns(text string) []Turn {
	return []Turn{{Role: RoleAssistant, Content: text}}
}

// NormalizeRole maps arbitrary role strings onto the supported tags.
func NormalizeRole(role string) Role {
	switch Role(role) {
	case RoleUser, RoleAssistant, RoleSystem:
		return Role(role)
	default:
		return RoleOther
	}
}

// #endregion

// #region activate

// Activate fetches per-token activations for the given feature-space
// indices and reduces them to one mean-over-tokens value per feature.
// The returned vector is aligned to the order of featureIndices.
func (c *Client) Activate(ctx context.Context, turns []Turn, model string, featureIndices []int) (Vector, error) {
	if len(turns) == 0 {
		return nil, fmt.Errorf("%w: no conversation turns", ErrService)
	}

	reqBody := activationsRequest{
		Model:          model,
		Messages:       turns,
		FeatureIndices: featureIndices,
	}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("%w: marshal request: %v", ErrService, err)
	}

	url := c.baseURL + "/v1/features/activations"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: create request: %v", ErrService, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrService, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: status %d: %s", ErrService, resp.StatusCode, string(detail))
	}

	var parsed activationsResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrService, err)
	}

	return meanOverTokens(parsed.Activations, len(featureIndices))
}

// #endregion

// #region reduce

// meanOverTokens averages a token-major activation matrix down to one value
// per feature. An empty matrix (failed or trivial extraction) reduces to an
// all-zero vector, which no strategy alerts on.
func meanOverTokens(matrix [][]float64, width int) (Vector, error) {
	vec := make(Vector, width)
	if len(matrix) == 0 {
		return vec, nil
	}

	for i, row := range matrix {
		if len(row) != width {
			return nil, fmt.Errorf("%w: token row %d has %d entries, expected %d", ErrService, i, len(row), width)
		}
		for j, v := range row {
			vec[j] += v
		}
	}
	n := float64(len(matrix))
	for j := range vec {
		vec[j] /= n
	}
	return vec, nil
}

// #endregion
