package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/alfredjeanlab/tracknow/internal/model"
)

// HTTPClient implements Client using the tracknow HTTP/JSON REST API.
type HTTPClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewHTTPClient creates a new HTTP client targeting the given base URL
// (e.g. "http://localhost:8080"). When token is non-empty, an Authorization
// header is set on every request.
func NewHTTPClient(baseURL, token string) *HTTPClient {
	return &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{},
	}
}

// Close is a no-op for the HTTP client.
func (c *HTTPClient) Close() error { return nil }

// --- Fence CRUD ---

func (c *HTTPClient) CreateFence(ctx context.Context, req *FenceRequest) (*model.Fence, error) {
	var f model.Fence
	if err := c.doJSON(ctx, http.MethodPost, "/v1/fences", req, &f); err != nil {
		return nil, err
	}
	return &f, nil
}

func (c *HTTPClient) GetFence(ctx context.Context, id string) (*model.Fence, error) {
	var f model.Fence
	if err := c.doJSON(ctx, http.MethodGet, "/v1/fences/"+url.PathEscape(id), nil, &f); err != nil {
		return nil, err
	}
	return &f, nil
}

func (c *HTTPClient) UpdateFence(ctx context.Context, id string, req *FenceRequest) (*model.Fence, error) {
	var f model.Fence
	if err := c.doJSON(ctx, http.MethodPut, "/v1/fences/"+url.PathEscape(id), req, &f); err != nil {
		return nil, err
	}
	return &f, nil
}

func (c *HTTPClient) DeleteFence(ctx context.Context, id string) error {
	return c.doJSON(ctx, http.MethodDelete, "/v1/fences/"+url.PathEscape(id), nil, nil)
}

func (c *HTTPClient) ListSessionFences(ctx context.Context, sessionID string) ([]*model.Fence, error) {
	var fences []*model.Fence
	if err := c.doJSON(ctx, http.MethodGet, "/v1/sessions/"+url.PathEscape(sessionID)+"/fences", nil, &fences); err != nil {
		return nil, err
	}
	return fences, nil
}

// --- Sessions ---

func (c *HTTPClient) ListSessions(ctx context.Context) ([]SessionSummary, error) {
	var sessions []SessionSummary
	if err := c.doJSON(ctx, http.MethodGet, "/v1/sessions", nil, &sessions); err != nil {
		return nil, err
	}
	return sessions, nil
}

func (c *HTTPClient) GetRoster(ctx context.Context, sessionID string) (*Roster, error) {
	var r Roster
	if err := c.doJSON(ctx, http.MethodGet, "/v1/sessions/"+url.PathEscape(sessionID)+"/roster", nil, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

func (c *HTTPClient) ListLocations(ctx context.Context, req *ListLocationsRequest) ([]*model.LocationSample, error) {
	params := url.Values{}
	if req.ActorID != "" {
		params.Set("actor", req.ActorID)
	}
	if req.Limit > 0 {
		params.Set("limit", strconv.Itoa(req.Limit))
	}
	path := "/v1/sessions/" + url.PathEscape(req.SessionID) + "/locations"
	if len(params) > 0 {
		path += "?" + params.Encode()
	}

	var samples []*model.LocationSample
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &samples); err != nil {
		return nil, err
	}
	return samples, nil
}

// --- Health ---

func (c *HTTPClient) Health(ctx context.Context) (string, error) {
	var resp struct {
		Status string `json:"status"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/v1/health", nil, &resp); err != nil {
		return "", err
	}
	return resp.Status, nil
}

// --- internal helpers ---

// APIError represents an error response from the server.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

// IsNotFound reports whether err is a 404 from the server.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// doJSON performs an HTTP request with optional JSON body and decodes the JSON response.
// If result is nil, the response body is discarded.
func (c *HTTPClient) doJSON(ctx context.Context, method, path string, body any, result any) error {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("performing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		return nil
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var errResp struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(respBody, &errResp) == nil && errResp.Error != "" {
			return &APIError{StatusCode: resp.StatusCode, Message: errResp.Error}
		}
		return &APIError{StatusCode: resp.StatusCode, Message: string(respBody)}
	}

	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}

	return nil
}
