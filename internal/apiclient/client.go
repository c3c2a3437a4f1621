// Package apiclient is the HTTP client for the dashboard API. It carries the
// bearer token issued at login and decodes the structured error envelope the
// server answers with.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/HH-pro/glazeme-dashboard-sub000/internal/search"
)

// APIError is the server's error envelope. Code carries the machine-readable
// taxonomy value, Details the optional payload such as the challenge marker.
type APIError struct {
	Status  int
	Code    string
	Message string
	Details map[string]any
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api: %s (%d %s)", e.Message, e.Status, e.Code)
}

// IsCode reports whether err is an APIError with the given code.
func IsCode(err error, code string) bool {
	apiErr, ok := err.(*APIError)
	return ok && apiErr.Code == code
}

type Client struct {
	baseURL string
	http    *http.Client
	token   string
}

func New(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// SetToken installs the bearer token used on every subsequent request.
func (c *Client) SetToken(token string) {
	c.token = token
}

// Login exchanges the dashboard password for a session token and installs it.
func (c *Client) Login(ctx context.Context, password string) (role string, err error) {
	var out struct {
		Token string `json:"token"`
		Role  string `json:"role"`
	}
	err = c.do(ctx, http.MethodPost, "/api/session/login", map[string]string{"password": password}, &out)
	if err != nil {
		return "", err
	}
	c.token = out.Token
	return out.Role, nil
}

func (c *Client) Logout(ctx context.Context) error {
	err := c.do(ctx, http.MethodPost, "/api/session/logout", nil, nil)
	c.token = ""
	return err
}

// UnlockEditMode answers the server-side step-up challenge for one view.
func (c *Client) UnlockEditMode(ctx context.Context, view, password string) error {
	return c.do(ctx, http.MethodPost, "/api/editmode/"+view+"/unlock", map[string]string{"password": password}, nil)
}

func (c *Client) LockEditMode(ctx context.Context, view string) error {
	return c.do(ctx, http.MethodPost, "/api/editmode/"+view+"/lock", nil, nil)
}

func (c *Client) CancelEditMode(ctx context.Context, view string) error {
	return c.do(ctx, http.MethodPost, "/api/editmode/"+view+"/cancel", nil, nil)
}

func (c *Client) EditModeState(ctx context.Context, view string) (string, error) {
	var out struct {
		State string `json:"state"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/editmode/"+view, nil, &out); err != nil {
		return "", err
	}
	return out.State, nil
}

// Stats fetches the aggregate dashboard figures.
func (c *Client) Stats(ctx context.Context) (map[string]any, error) {
	var out map[string]any
	if err := c.do(ctx, http.MethodGet, "/api/stats", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Search runs a full-text query across updates, reviews and milestones.
func (c *Client) Search(ctx context.Context, query string, limit int) (search.Response, error) {
	params := url.Values{}
	params.Set("q", query)
	if limit > 0 {
		params.Set("limit", fmt.Sprintf("%d", limit))
	}
	var out search.Response
	if err := c.do(ctx, http.MethodGet, "/api/search?"+params.Encode(), nil, &out); err != nil {
		return search.Response{}, err
	}
	return out, nil
}

// Ready checks the server's dependency health.
func (c *Client) Ready(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/api/ready", nil, nil)
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
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return decodeResponse(resp, out)
}

// doMultipart sends a multipart form, used by the screenshot upload.
func (c *Client) doMultipart(ctx context.Context, path string, fields map[string]string, fileField, filename string, file io.Reader, out any) error {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	for key, value := range fields {
		if err := writer.WriteField(key, value); err != nil {
			return err
		}
	}
	part, err := writer.CreateFormFile(fileField, filename)
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, file); err != nil {
		return err
	}
	if err := writer.Close(); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return decodeResponse(resp, out)
}

func decodeResponse(resp *http.Response, out any) error {
	payload, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode >= 400 {
		apiErr := &APIError{Status: resp.StatusCode, Code: "SERVER_ERROR", Message: http.StatusText(resp.StatusCode)}
		var envelope struct {
			Code    string         `json:"code"`
			Error   string         `json:"error"`
			Details map[string]any `json:"details"`
		}
		if json.Unmarshal(payload, &envelope) == nil && envelope.Code != "" {
			apiErr.Code = envelope.Code
			apiErr.Message = envelope.Error
			apiErr.Details = envelope.Details
		}
		return apiErr
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
