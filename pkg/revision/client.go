package revision

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"
)

// ServiceError is a non-2xx answer from the revision service.
type ServiceError struct {
	Status int
	Detail string
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("revision service error: status %d, body: %s", e.Status, e.Detail)
}

type Client struct {
	BaseURL  string
	APIToken string
	// HTTPClient carries no timeout because stream responses stay open for
	// the whole stage. Timeout bounds the non-streaming calls instead.
	HTTPClient *http.Client
	Timeout    time.Duration
}

func NewClient(baseURL, apiToken string, timeout time.Duration) *Client {
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		APIToken:   apiToken,
		HTTPClient: &http.Client{},
		Timeout:    timeout,
	}
}

// Start runs the selected stages over content and returns the event stream.
func (c *Client) Start(ctx context.Context, req StartRequest) (*Stream, error) {
	return c.stream(ctx, "/revise", req)
}

// Continue resumes a sequential pipeline at its next stage.
func (c *Client) Continue(ctx context.Context, req ContinueRequest) (*Stream, error) {
	return c.stream(ctx, "/revise/continue", req)
}

// Finalize merges the decided edits into the final article.
func (c *Client) Finalize(ctx context.Context, req FinalizeRequest) (*FinalizeResponse, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	resp, err := c.postJSON(ctx, "/revise/finalize", req, "application/json")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var out FinalizeResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode finalize response: %w", err)
	}
	return &out, nil
}

// Extract sends an uploaded document to the service and returns its text.
func (c *Client) Extract(ctx context.Context, filename string, data []byte) (string, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	// 1. Build multipart body
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return "", fmt.Errorf("create form file: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return "", fmt.Errorf("write form file: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("close multipart writer: %w", err)
	}

	// 2. Send Request
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/extract", &body)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	c.authorize(req)

	resp, err := c.do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	// 3. Decode
	var out extractResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode extract response: %w", err)
	}
	return out.Text, nil
}

func (c *Client) stream(ctx context.Context, path string, payload any) (*Stream, error) {
	resp, err := c.postJSON(ctx, path, payload, "text/event-stream")
	if err != nil {
		return nil, err
	}
	return NewStream(resp.Body), nil
}

func (c *Client) postJSON(ctx context.Context, path string, payload any, accept string) (*http.Response, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(payloadBytes))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", accept)
	c.authorize(req)

	return c.do(req)
}

// do sends req and turns non-2xx answers into *ServiceError. On success the
// caller owns the response body.
func (c *Client) do(req *http.Request) (*http.Response, error) {
	httpClient := c.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("revision request failed: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
		return nil, &ServiceError{Status: resp.StatusCode, Detail: errorDetail(body)}
	}
	return resp, nil
}

func (c *Client) authorize(req *http.Request) {
	if c.APIToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.APIToken)
	}
}

func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.Timeout)
}

// errorDetail prefers a JSON {"detail": ...} or {"error": ...} message over
// the raw body.
func errorDetail(body []byte) string {
	var parsed struct {
		Detail string `json:"detail"`
		Error  string `json:"error"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil {
		if parsed.Detail != "" {
			return parsed.Detail
		}
		if parsed.Error != "" {
			return parsed.Error
		}
	}
	return strings.TrimSpace(string(body))
}
