package sessionsdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"time"
)

// SDKClient talks to the pocketlist service. The HTTP client carries a
// cookie jar so the HttpOnly refresh cookie flows automatically; the SDK
// never sees the refresh token itself.
type SDKClient struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewSDKClient creates a client for the service at baseURL.
func NewSDKClient(baseURL string) *SDKClient {
	jar, _ := cookiejar.New(nil)
	return &SDKClient{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
			Jar:     jar,
		},
	}
}

// Register creates an account and returns an authenticated session.
func (c *SDKClient) Register(ctx context.Context, name, email, password string) (*Session, error) {
	var resp SessionResponse
	err := c.postJSON(ctx, "/v1/auth/register", map[string]string{
		"name": name, "email": email, "password": password,
	}, &resp, http.StatusCreated)
	if err != nil {
		return nil, err
	}
	return newSession(c, &resp), nil
}

// Login authenticates with email and password and returns a session.
func (c *SDKClient) Login(ctx context.Context, email, password string) (*Session, error) {
	var resp SessionResponse
	err := c.postJSON(ctx, "/v1/auth/login", map[string]string{
		"email": email, "password": password,
	}, &resp, http.StatusOK)
	if err != nil {
		return nil, err
	}
	return newSession(c, &resp), nil
}

func (c *SDKClient) url(path string) string {
	return c.BaseURL + path
}

// postJSON sends a JSON body and decodes the JSON response, mapping non-2xx
// responses to *APIError.
func (c *SDKClient) postJSON(ctx context.Context, path string, body any, target any, expectedStatus int) error {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url(path), &buf)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	return decodeJSON(resp, target, expectedStatus)
}

// decodeJSON decodes a JSON response into target, returning a typed
// *APIError for unexpected statuses.
func decodeJSON(resp *http.Response, target any, expectedStatus int) error {
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != expectedStatus {
		return parseErrorResponse(resp, bodyBytes)
	}

	if target == nil {
		return nil
	}
	if err := json.Unmarshal(bodyBytes, target); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
