package launcher

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/lanya16/pai/internal/apperrors"
	"github.com/lanya16/pai/internal/config"
)

// Config holds launcher client configuration.
type Config struct {
	BaseURL string        // e.g. http://launcher:9086
	Timeout time.Duration // per-request transport timeout
}

// LoadConfigFromEnv loads launcher client configuration from environment variables.
func LoadConfigFromEnv() Config {
	return Config{
		BaseURL: config.GetEnv("LAUNCHER_URL", "http://localhost:9086"),
		Timeout: config.GetDurationEnv("LAUNCHER_TIMEOUT", 30*time.Second),
	}
}

// Client talks to the framework launcher REST API. Cancellation and timeouts
// live at this transport layer; callers treat each call as eventually
// returning success or a typed failure.
type Client struct {
	base string
	http *http.Client
}

// NewClient creates a launcher client.
func NewClient(cfg Config) *Client {
	return &Client{
		base: strings.TrimRight(cfg.BaseURL, "/"),
		http: &http.Client{Timeout: cfg.Timeout},
	}
}

// ListFrameworks returns framework summaries, optionally filtered by user.
func (c *Client) ListFrameworks(ctx context.Context, userName string) ([]SummarizedFrameworkInfo, error) {
	path := "/v1/Frameworks"
	if userName != "" {
		path += "?UserName=" + url.QueryEscape(userName)
	}
	body, err := c.do(ctx, "launcher.listFrameworks", http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	var resp ListResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, apperrors.Parse("launcher.listFrameworks", err)
	}
	return resp.SummarizedFrameworkInfos, nil
}

// GetFramework returns the full status+request document for one framework.
func (c *Client) GetFramework(ctx context.Context, name string) (*FrameworkInfo, error) {
	body, err := c.do(ctx, "launcher.getFramework", http.MethodGet, "/v1/Frameworks/"+url.PathEscape(name), nil)
	if err != nil {
		return nil, err
	}
	var info FrameworkInfo
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, apperrors.Parse("launcher.getFramework", err)
	}
	return &info, nil
}

// PutFramework submits (or resubmits) a framework descriptor.
// The launcher answers 202; the framework is observed via GetFramework.
func (c *Client) PutFramework(ctx context.Context, name string, descriptor []byte) error {
	_, err := c.do(ctx, "launcher.putFramework", http.MethodPut, "/v1/Frameworks/"+url.PathEscape(name), descriptor)
	return err
}

// DeleteFramework removes a framework and stops its containers.
func (c *Client) DeleteFramework(ctx context.Context, name string) error {
	_, err := c.do(ctx, "launcher.deleteFramework", http.MethodDelete, "/v1/Frameworks/"+url.PathEscape(name), nil)
	return err
}

// PutExecutionType transitions a framework between START and STOP.
func (c *Client) PutExecutionType(ctx context.Context, name, executionType string) error {
	payload, err := json.Marshal(map[string]string{"executionType": executionType})
	if err != nil {
		return err
	}
	_, err = c.do(ctx, "launcher.putExecutionType", http.MethodPut,
		"/v1/Frameworks/"+url.PathEscape(name)+"/ExecutionType", payload)
	return err
}

// Ready checks that the launcher endpoint is reachable.
func (c *Client) Ready(ctx context.Context) error {
	_, err := c.do(ctx, "launcher.ready", http.MethodGet, "/v1/Frameworks", nil)
	return err
}

// do performs one request and maps non-2xx responses to typed errors:
// 404 becomes NotFound, anything else UnknownError with status and body.
func (c *Client) do(ctx context.Context, op, method, path string, payload []byte) ([]byte, error) {
	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s: read response: %w", op, err)
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return body, nil
	case resp.StatusCode == http.StatusNotFound:
		return nil, apperrors.NotFound("framework", strings.TrimPrefix(path, "/v1/Frameworks/"))
	default:
		return nil, apperrors.Unknown(op, resp.StatusCode, string(body))
	}
}
