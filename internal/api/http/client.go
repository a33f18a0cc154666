package httpapi

import (
	"bytes"
	stdcontext "context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Paintersrp/tether/internal/api"
)

const defaultClientTimeout = 10 * time.Second

// Client talks to a running tether over its command surface. It satisfies
// api.Controller so CLI commands can treat a remote instance like a local
// one.
type Client struct {
	base   *url.URL
	client *http.Client
}

// NewClient creates a client for the server listening on addr, given either
// as host:port or as an http URL.
func NewClient(addr string) (*Client, error) {
	raw := strings.TrimSpace(addr)
	if raw == "" {
		raw = defaultAddr
	}
	if !strings.Contains(raw, "://") {
		raw = "http://" + normalizeAddr(raw)
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse api address: %w", err)
	}
	parsed.Path = strings.TrimRight(parsed.Path, "/")
	if parsed.Scheme == "" || parsed.Host == "" || parsed.Path != "" {
		return nil, errors.New("api address must be host:port or a URL without a path, e.g. http://127.0.0.1:7664")
	}
	return &Client{base: parsed, client: &http.Client{Timeout: defaultClientTimeout}}, nil
}

// Invoke runs a command on the remote instance.
func (c *Client) Invoke(ctx stdcontext.Context, command, name string) error {
	body, err := json.Marshal(api.InvokeRequest{Name: name})
	if err != nil {
		return err
	}
	var resp api.InvokeResponse
	if err := c.do(ctx, http.MethodPost, invokePrefix+url.PathEscape(command), body, &resp); err != nil {
		return err
	}
	if !resp.OK {
		return fmt.Errorf("%s: server did not acknowledge the command", command)
	}
	return nil
}

// Processes fetches the process report of the remote instance.
func (c *Client) Processes(ctx stdcontext.Context) (*api.ProcessesReport, error) {
	var report api.ProcessesReport
	if err := c.do(ctx, http.MethodGet, "/api/v1/processes", nil, &report); err != nil {
		return nil, err
	}
	return &report, nil
}

func (c *Client) do(ctx stdcontext.Context, method, path string, body []byte, out any) error {
	target := *c.base
	target.Path = path

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, target.String(), reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("contact tether at %s: %w", c.base.Host, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	contentType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if resp.StatusCode == http.StatusOK {
		if contentType != "application/json" {
			return fmt.Errorf("expected application/json response, got %q", contentType)
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		return nil
	}

	if contentType == "application/json" {
		var failure api.ErrorResponse
		if err := json.NewDecoder(resp.Body).Decode(&failure); err == nil && failure.Error != "" {
			return errors.New(failure.Error)
		}
	}
	return fmt.Errorf("unexpected status %d from %s", resp.StatusCode, path)
}
