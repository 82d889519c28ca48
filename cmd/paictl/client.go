package main

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

	"github.com/lanya16/pai/internal/job"
)

// apiClient is a thin client for the rest-server API.
type apiClient struct {
	base  string
	user  string
	token string
	http  *http.Client
}

func newAPIClient(base, user, token string) *apiClient {
	return &apiClient{
		base:  strings.TrimRight(base, "/"),
		user:  user,
		token: token,
		http:  &http.Client{Timeout: 60 * time.Second},
	}
}

func (c *apiClient) listJobs(ctx context.Context, userFilter string) ([]job.Summary, error) {
	path := "/api/v1/jobs"
	if userFilter != "" {
		path += "?username=" + url.QueryEscape(userFilter)
	}
	var summaries []job.Summary
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &summaries); err != nil {
		return nil, err
	}
	return summaries, nil
}

func (c *apiClient) getJob(ctx context.Context, name string) (*job.Detail, error) {
	var detail job.Detail
	if err := c.doJSON(ctx, http.MethodGet, "/api/v1/jobs/"+url.PathEscape(name), nil, &detail); err != nil {
		return nil, err
	}
	return &detail, nil
}

func (c *apiClient) submitJob(ctx context.Context, spec *job.Spec) error {
	payload, err := json.Marshal(spec)
	if err != nil {
		return err
	}
	return c.doJSON(ctx, http.MethodPut, "/api/v1/jobs/"+url.PathEscape(spec.FullName()), payload, nil)
}

func (c *apiClient) deleteJob(ctx context.Context, name string) error {
	return c.doJSON(ctx, http.MethodDelete, "/api/v1/jobs/"+url.PathEscape(name), nil, nil)
}

func (c *apiClient) setExecutionType(ctx context.Context, name, executionType string) error {
	payload, err := json.Marshal(map[string]string{"executionType": executionType})
	if err != nil {
		return err
	}
	return c.doJSON(ctx, http.MethodPut, "/api/v1/jobs/"+url.PathEscape(name)+"/executionType", payload, nil)
}

func (c *apiClient) getJobConfig(ctx context.Context, name string) ([]byte, error) {
	return c.do(ctx, http.MethodGet, "/api/v1/jobs/"+url.PathEscape(name)+"/config", nil)
}

func (c *apiClient) getSSHInfo(ctx context.Context, name string) (*job.SSHInfo, error) {
	var info job.SSHInfo
	if err := c.doJSON(ctx, http.MethodGet, "/api/v1/jobs/"+url.PathEscape(name)+"/ssh", nil, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

func (c *apiClient) doJSON(ctx context.Context, method, path string, payload []byte, out any) error {
	body, err := c.do(ctx, method, path, payload)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(body, out)
}

func (c *apiClient) do(ctx context.Context, method, path string, payload []byte) ([]byte, error) {
	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, reqBody)
	if err != nil {
		return nil, err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("X-User-Name", c.user)
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error != "" {
			return nil, fmt.Errorf("%s (%d)", apiErr.Error, resp.StatusCode)
		}
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return body, nil
}
