// Package hdfs provides a client for the distributed file store: a remote
// hierarchical path/blob store exposing folder-create, file-create,
// file-read, and list operations over a WebHDFS-style REST surface.
package hdfs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/lanya16/pai/internal/apperrors"
	"github.com/lanya16/pai/internal/config"
)

// Config holds store client configuration.
type Config struct {
	BaseURL string        // e.g. http://namenode:50070
	Timeout time.Duration // per-request transport timeout
}

// LoadConfigFromEnv loads store client configuration from environment variables.
func LoadConfigFromEnv() Config {
	return Config{
		BaseURL: config.GetEnv("HDFS_URL", "http://localhost:50070"),
		Timeout: config.GetDurationEnv("HDFS_TIMEOUT", 60*time.Second),
	}
}

// FileStatus is one entry of a folder listing.
type FileStatus struct {
	PathSuffix string `json:"pathSuffix"`
	Type       string `json:"type"` // FILE or DIRECTORY
	Length     int64  `json:"length"`
}

// IsDir reports whether the entry is a folder.
func (f FileStatus) IsDir() bool {
	return f.Type == "DIRECTORY"
}

// Client talks to the distributed store. File creation follows the store's
// two-step redirect; the transport re-sends the body on 307 automatically.
type Client struct {
	base string
	http *http.Client
}

// NewClient creates a store client.
func NewClient(cfg Config) *Client {
	return &Client{
		base: strings.TrimRight(cfg.BaseURL, "/"),
		http: &http.Client{Timeout: cfg.Timeout},
	}
}

// MakeDir creates a folder with the given owner and permission bits.
// Idempotent: creating an existing folder succeeds, so concurrent
// submissions can race on the shared roots safely.
func (c *Client) MakeDir(ctx context.Context, dirPath, owner, permission string) error {
	q := url.Values{"op": {"MKDIRS"}}
	if permission != "" {
		q.Set("permission", permission)
	}
	if owner != "" {
		q.Set("user.name", owner)
	}
	_, err := c.do(ctx, "hdfs.mkdirs", http.MethodPut, dirPath, q, nil)
	return err
}

// WriteFile creates a file with the given content, owner, and permission bits.
func (c *Client) WriteFile(ctx context.Context, filePath string, content []byte, owner, permission string, overwrite bool) error {
	q := url.Values{
		"op":        {"CREATE"},
		"overwrite": {strconv.FormatBool(overwrite)},
	}
	if permission != "" {
		q.Set("permission", permission)
	}
	if owner != "" {
		q.Set("user.name", owner)
	}
	_, err := c.do(ctx, "hdfs.create", http.MethodPut, filePath, q, content)
	return err
}

// ReadFile returns the content of a file, or NotFound when it is absent.
func (c *Client) ReadFile(ctx context.Context, filePath string) ([]byte, error) {
	return c.do(ctx, "hdfs.open", http.MethodGet, filePath, url.Values{"op": {"OPEN"}}, nil)
}

// List returns the entries of a folder, or NotFound when it is absent.
func (c *Client) List(ctx context.Context, dirPath string) ([]FileStatus, error) {
	body, err := c.do(ctx, "hdfs.liststatus", http.MethodGet, dirPath, url.Values{"op": {"LISTSTATUS"}}, nil)
	if err != nil {
		return nil, err
	}
	var resp struct {
		FileStatuses struct {
			FileStatus []FileStatus `json:"FileStatus"`
		} `json:"FileStatuses"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, apperrors.Parse("hdfs.liststatus", err)
	}
	return resp.FileStatuses.FileStatus, nil
}

// Ready checks that the store endpoint is reachable.
func (c *Client) Ready(ctx context.Context) error {
	_, err := c.List(ctx, "/")
	return err
}

func (c *Client) do(ctx context.Context, op, method, storePath string, q url.Values, payload []byte) ([]byte, error) {
	if !strings.HasPrefix(storePath, "/") {
		storePath = "/" + storePath
	}
	u := c.base + "/webhdfs/v1" + pathEscapeKeepSlashes(storePath) + "?" + q.Encode()

	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, reqBody)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/octet-stream")
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
		return nil, apperrors.NotFound("path", storePath)
	default:
		return nil, apperrors.Unknown(op, resp.StatusCode, string(body))
	}
}

// pathEscapeKeepSlashes escapes each path segment while preserving the
// folder structure.
func pathEscapeKeepSlashes(p string) string {
	segments := strings.Split(p, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return strings.Join(segments, "/")
}
