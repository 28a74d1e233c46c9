// Package client talks to the repository HTTP API.
//
// Endpoints (all under /api, basic auth on every call except login):
//
//	GET    /nodes?path=P                    -> [{name, path, hasNodes}]
//	GET    /properties?path=P               -> {name: value}
//	POST   /nodes?parentPath=P&nodeName=N
//	DELETE /nodes?path=P
//	POST   /properties?path=P&name=N&value=V
//	DELETE /properties?path=P&name=N
//	POST   /login {username, password}      -> {status, message}
package client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/goccy/go-json"

	"github.com/vanderheijden86/nodeview/pkg/model"
)

// DefaultTimeout bounds every request when no http.Client is supplied.
const DefaultTimeout = 10 * time.Second

// maxErrorBody caps how much of an error response is kept for messages.
const maxErrorBody = 4 << 10

var (
	// ErrUnauthorized matches HTTP 401 responses.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrRootNode is returned when asked to delete the repository root.
	ErrRootNode = errors.New("the root node cannot be deleted")
)

// HTTPError is returned for any non-2xx response.
type HTTPError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	body := strings.TrimSpace(e.Body)
	if body == "" {
		body = http.StatusText(e.StatusCode)
	}
	return fmt.Sprintf("%s %s: http %d: %s", e.Method, e.Path, e.StatusCode, body)
}

// Is lets errors.Is(err, ErrUnauthorized) match 401 responses.
func (e *HTTPError) Is(target error) bool {
	return target == ErrUnauthorized && e.StatusCode == http.StatusUnauthorized
}

// Client is a Remote Repository Client bound to one set of credentials.
// It is safe for concurrent use.
type Client struct {
	baseURL *url.URL
	http    *http.Client
	creds   model.Credentials
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithTimeout sets the per-request timeout of the default http.Client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// New creates a client for the API rooted at baseURL (for example
// http://localhost:8080).
func New(baseURL string, creds model.Credentials, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimSuffix(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse server url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("server url %q: scheme must be http or https", baseURL)
	}
	c := &Client{
		baseURL: u,
		http:    &http.Client{Timeout: DefaultTimeout},
		creds:   creds,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Credentials returns the credentials the client authenticates with.
func (c *Client) Credentials() model.Credentials {
	return c.creds
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// Login checks the client's credentials against the server.
func (c *Client) Login(ctx context.Context) error {
	body, err := json.Marshal(loginRequest{Username: c.creds.Username, Password: c.creds.Password})
	if err != nil {
		return fmt.Errorf("encode login: %w", err)
	}
	var resp loginResponse
	err = c.do(ctx, http.MethodPost, "/api/login", nil, bytes.NewReader(body), &resp)
	if err != nil {
		var he *HTTPError
		if errors.As(err, &he) && he.StatusCode == http.StatusUnauthorized {
			var lr loginResponse
			if json.Unmarshal([]byte(he.Body), &lr) == nil && lr.Message != "" {
				return fmt.Errorf("%w: %s", ErrUnauthorized, lr.Message)
			}
		}
		return err
	}
	if resp.Status != "ok" {
		return fmt.Errorf("%w: %s", ErrUnauthorized, resp.Message)
	}
	return nil
}

// ListChildren returns the children of path in server order.
func (c *Client) ListChildren(ctx context.Context, path string) ([]model.NodeSummary, error) {
	var nodes []model.NodeSummary
	if err := c.do(ctx, http.MethodGet, "/api/nodes", url.Values{"path": {path}}, nil, &nodes); err != nil {
		return nil, err
	}
	return nodes, nil
}

// GetProperties returns the properties of the node at path.
func (c *Client) GetProperties(ctx context.Context, path string) (model.Properties, error) {
	props := model.Properties{}
	if err := c.do(ctx, http.MethodGet, "/api/properties", url.Values{"path": {path}}, nil, &props); err != nil {
		return nil, err
	}
	return props, nil
}

// CreateNode adds a child called name under parentPath.
func (c *Client) CreateNode(ctx context.Context, parentPath, name string) error {
	if err := model.ValidateName(name); err != nil {
		return err
	}
	q := url.Values{"parentPath": {parentPath}, "nodeName": {name}}
	return c.do(ctx, http.MethodPost, "/api/nodes", q, nil, nil)
}

// DeleteNode removes the node at path and its subtree.
func (c *Client) DeleteNode(ctx context.Context, path string) error {
	if model.IsRoot(model.NormalizePath(path)) {
		return ErrRootNode
	}
	return c.do(ctx, http.MethodDelete, "/api/nodes", url.Values{"path": {path}}, nil, nil)
}

// SetProperty creates or overwrites a single-valued property.
func (c *Client) SetProperty(ctx context.Context, path, name, value string) error {
	if err := model.ValidateName(name); err != nil {
		return err
	}
	q := url.Values{"path": {path}, "name": {name}, "value": {value}}
	return c.do(ctx, http.MethodPost, "/api/properties", q, nil, nil)
}

// DeleteProperty removes a property. Missing properties are not an error.
func (c *Client) DeleteProperty(ctx context.Context, path, name string) error {
	q := url.Values{"path": {path}, "name": {name}}
	return c.do(ctx, http.MethodDelete, "/api/properties", q, nil, nil)
}

func (c *Client) do(ctx context.Context, method, endpoint string, query url.Values, body io.Reader, out any) error {
	u := *c.baseURL
	u.Path = strings.TrimSuffix(u.Path, "/") + endpoint
	if query != nil {
		u.RawQuery = query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if !c.creds.IsZero() {
		req.SetBasicAuth(c.creds.Username, c.creds.Password)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, endpoint, err)
	}
	defer resp.Body.Close()
	log.Debug("api request", "method", method, "endpoint", endpoint, "status", resp.StatusCode, "took", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &HTTPError{Method: method, Path: endpoint, StatusCode: resp.StatusCode, Body: string(data)}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%s %s: read body: %w", method, endpoint, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%s %s: decode response: %w", method, endpoint, err)
	}
	return nil
}
