package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

const maxResponseBytes = 1 << 20

// Client posts user text to the conversational endpoint.
type Client struct {
	endpoint   string
	httpClient *http.Client
}

// NewClient returns a client for endpoint. A nil httpClient falls back to http.DefaultClient.
func NewClient(endpoint string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{endpoint: endpoint, httpClient: httpClient}
}

// Endpoint returns the configured URL.
func (c *Client) Endpoint() string {
	return c.endpoint
}

type replyRequest struct {
	Text string `json:"text"`
}

type replyResponse struct {
	Response *string `json:"response"`
}

// Reply sends text and returns the endpoint's reply. Every failure is reported as a
// Failure wrapping ErrEndpointUnreachableOrInvalid.
func (c *Client) Reply(ctx context.Context, text string) Result {
	body, err := json.Marshal(replyRequest{Text: text})
	if err != nil {
		return failuref("encode request: %v", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return failuref("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return failuref("post %s: %v", c.endpoint, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return failuref("read response: %v", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return failuref("unexpected status %d", resp.StatusCode)
	}

	var payload replyResponse
	if err := json.Unmarshal(raw, &payload); err != nil {
		return failuref("decode response: %v", err)
	}
	if payload.Response == nil {
		return failuref("response field missing")
	}
	if strings.TrimSpace(*payload.Response) == "" {
		return failuref("response field empty")
	}

	return Success(*payload.Response)
}

func failuref(format string, args ...any) Result {
	return Failure(fmt.Errorf("%w: %s", ErrEndpointUnreachableOrInvalid, fmt.Sprintf(format, args...)))
}
