package generation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"novelstudio/internal/domain"
	"novelstudio/internal/infra"
)

// ErrMissingTaskID indicates the backend accepted the request but returned no identifier.
var ErrMissingTaskID = errors.New("generation: response lacks task_id")

// Options configures the generation backend client.
type Options struct {
	BaseURL        string
	HTTPClient     *http.Client
	Logger         *infra.Logger
	RequestTimeout time.Duration
}

// Client talks to the novel-to-video generation backend.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *infra.Logger
}

// StatusResponse mirrors GET /generation-jobs/{id}/status. Result is the
// JSON-encoded ResultPayload, left undecoded here.
type StatusResponse struct {
	Status   domain.RemoteStatus `json:"status"`
	Progress int                 `json:"progress"`
	Result   string              `json:"result,omitempty"`
	Error    string              `json:"error,omitempty"`
}

type createRequest struct {
	NovelPrompt string `json:"novel_prompt"`
}

type createResponse struct {
	TaskID string `json:"task_id"`
}

type errorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Error   string `json:"error"`
}

// NewClient constructs a client. A zero RequestTimeout keeps the transport
// default (no client-side deadline).
func NewClient(opts Options) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		return nil, errors.New("generation: base url is required")
	}
	if parsed, err := url.Parse(baseURL); err != nil || parsed.Scheme == "" {
		return nil, fmt.Errorf("generation: invalid base url %q", opts.BaseURL)
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: opts.RequestTimeout}
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
		logger:     infra.Component(opts.Logger, "generation"),
	}, nil
}

// BaseURL returns the configured backend root.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Submit issues one creation request for the novel text and returns the
// backend's task identifier. It never retries.
func (c *Client) Submit(ctx context.Context, novel string) (string, error) {
	novel = strings.TrimSpace(novel)
	if novel == "" {
		return "", domain.ErrEmptyInput
	}
	body, err := json.Marshal(createRequest{NovelPrompt: novel})
	if err != nil {
		return "", fmt.Errorf("generation: encode request: %w", err)
	}
	endpoint := c.baseURL + "/generation-jobs"
	raw, err := c.do(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return "", err
	}
	var decoded createResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return "", fmt.Errorf("generation: decode create response: %w", err)
	}
	taskID := strings.TrimSpace(decoded.TaskID)
	if taskID == "" {
		return "", ErrMissingTaskID
	}
	c.logger.Debug().Str("job_id", taskID).Int("novel_len", len(novel)).Msg("generation: job submitted")
	return taskID, nil
}

// Status performs a single status query for the given job.
func (c *Client) Status(ctx context.Context, jobID string) (*StatusResponse, error) {
	jobID = strings.TrimSpace(jobID)
	if jobID == "" {
		return nil, errors.New("generation: job id is required")
	}
	endpoint := c.baseURL + "/generation-jobs/" + url.PathEscape(jobID) + "/status"
	raw, err := c.do(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	var decoded StatusResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, fmt.Errorf("generation: decode status response: %w", err)
	}
	return &decoded, nil
}

func (c *Client) do(ctx context.Context, method, endpoint string, body []byte) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, fmt.Errorf("generation: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("generation: http request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("generation: read response: %w", err)
	}

	if resp.StatusCode >= 300 {
		var detail errorResponse
		if err := json.Unmarshal(raw, &detail); err == nil {
			if msg := firstNonEmpty(detail.Message, detail.Error); msg != "" {
				return nil, fmt.Errorf("generation: %s (status %d)", msg, resp.StatusCode)
			}
		}
		return nil, fmt.Errorf("generation: status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	return raw, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
