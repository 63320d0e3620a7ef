package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// APIError is a structured error returned by the server.
type APIError struct {
	HTTPStatus int
	Code       int    `json:"code"`
	Message    string `json:"message"`
	Report     any    `json:"report,omitempty"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error (http %d): %s", e.HTTPStatus, e.Message)
}

// Client is a thin HTTP client for the refinery API.
type Client struct {
	BaseURL   string
	Principal string
	HTTP      *http.Client
}

// NewClient creates a client for the given host.
func NewClient(baseURL, principal string) *Client {
	return &Client{
		BaseURL:   baseURL,
		Principal: principal,
		HTTP:      &http.Client{Timeout: 60 * time.Second},
	}
}

// Do issues a JSON request and decodes the response into out (when out is
// non-nil). Non-2xx responses are returned as *APIError.
func (c *Client) Do(method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(buf)
	}
	req, err := http.NewRequest(method, c.BaseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.Principal != "" {
		req.Header.Set("X-Principal", c.Principal)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("request %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= 400 {
		apiErr := &APIError{HTTPStatus: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
		_ = json.Unmarshal(payload, apiErr)
		return apiErr
	}
	if out != nil && len(payload) > 0 {
		if err := json.Unmarshal(payload, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

// Get issues a GET and decodes the JSON response.
func (c *Client) Get(path string, out any) error {
	return c.Do(http.MethodGet, path, nil, out)
}

// GetRaw issues a GET and returns the raw response body, for endpoints
// that serve CSV or YAML rather than JSON.
func (c *Client) GetRaw(path string) ([]byte, error) {
	req, err := http.NewRequest(http.MethodGet, c.BaseURL+path, nil)
	if err != nil {
		return nil, err
	}
	if c.Principal != "" {
		req.Header.Set("X-Principal", c.Principal)
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request GET %s: %w", path, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= 400 {
		apiErr := &APIError{HTTPStatus: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
		_ = json.Unmarshal(payload, apiErr)
		return nil, apiErr
	}
	return payload, nil
}

// PostRaw issues a request with a non-JSON body (YAML recipe import).
func (c *Client) PostRaw(path, contentType string, body []byte, out any) error {
	req, err := http.NewRequest(http.MethodPost, c.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", contentType)
	if c.Principal != "" {
		req.Header.Set("X-Principal", c.Principal)
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("request POST %s: %w", path, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= 400 {
		apiErr := &APIError{HTTPStatus: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
		_ = json.Unmarshal(payload, apiErr)
		return apiErr
	}
	if out != nil && len(payload) > 0 {
		if err := json.Unmarshal(payload, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}
