// Package store is the client for the remote document store that turns
// uploaded page images into a PDF.
package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const (
	DefaultScanPath     = "/scan"
	DefaultArtifactPath = "/clever-service"
)

// ErrMalformedResponse is returned when a 2xx response body cannot be parsed
var ErrMalformedResponse = errors.New("malformed response from document store")

// StatusError is a non-2xx answer from the document store
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("document store returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("document store returned status %d: %s", e.StatusCode, e.Message)
}

// Client talks to the document store
type Client struct {
	BaseURL      string
	ScanPath     string
	ArtifactPath string
	APIKey       string
	httpClient   *http.Client
}

// NewClient creates a document store client. Requests carry no client-side
// timeout; the caller's context bounds them.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		BaseURL:      strings.TrimRight(baseURL, "/"),
		ScanPath:     DefaultScanPath,
		ArtifactPath: DefaultArtifactPath,
		APIKey:       apiKey,
		httpClient:   &http.Client{},
	}
}

// WithHTTPClient replaces the underlying HTTP client
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.httpClient = hc
	return c
}

// Submit posts an encoded multipart body and returns the scan id, which may be
// empty when the store answers with no body.
func (c *Client) Submit(ctx context.Context, token string, body io.Reader, contentType string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+c.ScanPath, body)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	c.authorize(req, token)

	data, err := c.do(req)
	if err != nil {
		return "", err
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return "", nil
	}

	var scanResp struct {
		ScanID string `json:"scanId"`
	}
	if err := json.Unmarshal(data, &scanResp); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return scanResp.ScanID, nil
}

// ArtifactURL asks the store for the location of a finished PDF
func (c *Client) ArtifactURL(ctx context.Context, token, scanID string) (string, error) {
	if scanID == "" {
		return "", fmt.Errorf("scan id is required")
	}

	payload, err := json.Marshal(map[string]string{"scanId": scanID})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+c.ArtifactPath, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req, token)

	data, err := c.do(req)
	if err != nil {
		return "", err
	}

	var artifactResp struct {
		URL string `json:"url"`
	}
	if err := json.Unmarshal(data, &artifactResp); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if artifactResp.URL == "" {
		return "", fmt.Errorf("%w: no url in response", ErrMalformedResponse)
	}
	return artifactResp.URL, nil
}

func (c *Client) authorize(req *http.Request, token string) {
	req.Header.Set("Authorization", "Bearer "+token)
	if c.APIKey != "" {
		req.Header.Set("apikey", c.APIKey)
	}
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{StatusCode: resp.StatusCode, Message: errorMessage(data)}
	}
	return data, nil
}

// errorMessage pulls a message out of an error body: a JSON error or message
// field, otherwise the trimmed text.
func errorMessage(data []byte) string {
	var body struct {
		Error   any    `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(data, &body); err == nil {
		switch v := body.Error.(type) {
		case string:
			if v != "" {
				return v
			}
		case map[string]any:
			if msg, ok := v["message"].(string); ok && msg != "" {
				return msg
			}
		}
		if body.Message != "" {
			return body.Message
		}
	}
	return strings.TrimSpace(string(data))
}
