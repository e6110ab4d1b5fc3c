// Package client is the gateway-facing counterpart of the browser view: it
// submits applications to the gateway, polls their status and fetches the
// final result.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/felipemchdev/policyforge-core/model"
)

// Browser-side calls tolerate more latency than the gateway's own upstream
// budget, so a slow gateway still answers before the client gives up.
const defaultTimeout = 12 * time.Second

// Category classifies a gateway error for retry decisions: network, timeout
// and engine_5xx conditions may clear on their own, not_configured and
// request errors will not.
type Category string

const (
	CategoryNotConfigured Category = "not_configured"
	CategoryNetwork       Category = "network_error"
	CategoryTimeout       Category = "timeout"
	CategoryEngine5xx     Category = "engine_5xx"
	CategoryRequest       Category = "request_error"
)

// Error is a failed gateway call, carrying the machine code and remediation
// instructions from the gateway's error payload when present.
type Error struct {
	Message      string
	StatusCode   int
	Code         string
	Category     Category
	Instructions []string
}

func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s (%s)", e.Message, e.Code)
	}
	return e.Message
}

// Retryable reports whether the condition may clear without intervention.
func (e *Error) Retryable() bool {
	switch e.Category {
	case CategoryNetwork, CategoryTimeout, CategoryEngine5xx:
		return true
	}
	return false
}

func categorize(statusCode int, code string) Category {
	switch code {
	case model.CodeEngineNotConfigured:
		return CategoryNotConfigured
	case model.CodeEngineTimeout:
		return CategoryTimeout
	case model.CodeEngineUnreachable:
		return CategoryNetwork
	case model.CodeEngine5xx:
		return CategoryEngine5xx
	}

	switch {
	case statusCode == http.StatusGatewayTimeout:
		return CategoryTimeout
	case statusCode == http.StatusServiceUnavailable:
		return CategoryNetwork
	case statusCode >= 500:
		return CategoryEngine5xx
	}
	return CategoryRequest
}

// SubmitInput is the application payload sent to the gateway.
type SubmitInput struct {
	TemplateID         string  `json:"template_id"`
	SelectedPolicyPack string  `json:"selected_policy_pack"`
	Payload            Payload `json:"payload"`
}

// Payload carries the three free-form application sections.
type Payload struct {
	Applicant   map[string]any `json:"applicant"`
	Application map[string]any `json:"application"`
	Options     map[string]any `json:"options"`
}

type Client struct {
	baseURL    string
	httpClient *http.Client
}

func New(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
}

// Submit creates a new engine request through the gateway.
func (c *Client) Submit(ctx context.Context, input SubmitInput) (*model.EngineRequest, error) {
	var created model.EngineRequest
	if err := c.do(ctx, http.MethodPost, "/api/engine/requests", input, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// GetStatus fetches the current processing status of a request.
func (c *Client) GetStatus(ctx context.Context, id string) (*model.EngineRequest, error) {
	var status model.EngineRequest
	if err := c.do(ctx, http.MethodGet, "/api/engine/requests/"+id, nil, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// GetResult fetches the normalized evaluation result of a completed request.
func (c *Client) GetResult(ctx context.Context, id string) (*model.EngineResult, error) {
	var result model.EngineResult
	if err := c.do(ctx, http.MethodGet, "/api/engine/requests/"+id+"/result", nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// ArtifactURL returns the gateway's proxy endpoint for an artifact.
func (c *Client) ArtifactURL(id, artifactType string) string {
	return c.baseURL + "/api/engine/requests/" + id + "/artifacts/" + artifactType
}

// ResolveArtifactURL picks the download location for an artifact: a signed
// URL bypasses the gateway proxy when the engine provided one, otherwise the
// gateway endpoint serves it. A nil result resolves to "".
func (c *Client) ResolveArtifactURL(result *model.EngineResult, artifactType string) string {
	if result == nil {
		return ""
	}
	if ref, ok := result.Artifacts[artifactType]; ok && ref.SignedURL != "" {
		return ref.SignedURL
	}
	return c.ArtifactURL(result.ID, artifactType)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		category := CategoryNetwork
		if isTimeout(err) {
			category = CategoryTimeout
		}
		return &Error{
			Message:  "Failed to reach the gateway.",
			Category: category,
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return decodeError(resp)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

func decodeError(resp *http.Response) *Error {
	var payload model.GatewayError
	message := "Failed to reach the policy engine."
	if err := json.NewDecoder(resp.Body).Decode(&payload); err == nil && payload.Error != "" {
		message = payload.Error
	}

	return &Error{
		Message:      message,
		StatusCode:   resp.StatusCode,
		Code:         payload.Code,
		Category:     categorize(resp.StatusCode, payload.Code),
		Instructions: payload.Instructions,
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
