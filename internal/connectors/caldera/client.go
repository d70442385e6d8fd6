package caldera

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

const (
	defaultHTTPTimeout = 30 * time.Second
	maxErrorBody       = 4 << 10
)

// ClientOptions configure NewClient.
type ClientOptions struct {
	URL           string
	APIKey        string
	TLSSkipVerify bool
	RetryMax      int
	Logger        *slog.Logger
}

// Agent is a Caldera agent as returned by the v2 API.
type Agent struct {
	Paw      string    `json:"paw"`
	Host     string    `json:"host"`
	Platform string    `json:"platform"`
	Group    string    `json:"group"`
	LastSeen time.Time `json:"last_seen"`
}

// Client talks to the Caldera REST API.
type Client struct {
	baseURL string
	apiKey  string
	http    *retryablehttp.Client
}

func NewClient(opts ClientOptions) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(opts.URL), "/")
	if baseURL == "" {
		return nil, errors.New("caldera url is required")
	}
	apiKey := strings.TrimSpace(opts.APIKey)
	if apiKey == "" {
		return nil, errors.New("caldera api key is required")
	}

	rc := retryablehttp.NewClient()
	rc.RetryMax = 3
	if opts.RetryMax > 0 {
		rc.RetryMax = opts.RetryMax
	}
	rc.RetryWaitMin = 200 * time.Millisecond
	rc.RetryWaitMax = 2 * time.Second
	rc.Logger = nil
	if opts.Logger != nil {
		rc.Logger = opts.Logger
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if opts.TLSSkipVerify {
		transport.TLSClientConfig = &tls.Config{MinVersion: tls.VersionTLS12, InsecureSkipVerify: true}
	}
	rc.HTTPClient = &http.Client{Timeout: defaultHTTPTimeout, Transport: transport}

	return &Client{baseURL: baseURL, apiKey: apiKey, http: rc}, nil
}

// Health checks that the server is reachable and accepts the key.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/api/v2/health", nil, nil)
}

func (c *Client) ListAgents(ctx context.Context) ([]Agent, error) {
	var agents []Agent
	if err := c.do(ctx, http.MethodGet, "/api/v2/agents", nil, &agents); err != nil {
		return nil, err
	}
	return agents, nil
}

// RunCommand queues a command on the agent identified by paw.
func (c *Client) RunCommand(ctx context.Context, paw, command string) error {
	body := map[string]any{
		"paw":      paw,
		"executor": map[string]any{"name": "sh", "command": command},
	}
	return c.do(ctx, http.MethodPost, "/api/v2/agents/"+paw+"/commands", body, nil)
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var payload io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("caldera encode %s: %w", path, err)
		}
		payload = bytes.NewReader(raw)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, method, c.baseURL+path, payload)
	if err != nil {
		return fmt.Errorf("caldera request %s: %w", path, err)
	}
	req.Header.Set("KEY", c.apiKey)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("caldera %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return fmt.Errorf("caldera %s %s: status %d: %s", method, path, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("caldera decode %s: %w", path, err)
	}
	return nil
}
