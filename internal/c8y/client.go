package c8y

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"
)

// Default timeouts and limits for backend requests.
const (
	defaultRequestTimeout = 30 * time.Second

	// maxErrorBodyBytes bounds how much of an error response is read for
	// diagnostics.
	maxErrorBodyBytes = 2048
)

// Credentials are the service credentials for one tenant.
type Credentials struct {
	Tenant   string
	Username string
	Password string
}

// Logger defines the logging interface used by the client.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Client is a multi-tenant client for the device-management backend's
// REST API.
//
// Each request is executed with the service credentials of the tenant it
// is scoped to. There is no official Go SDK for the backend, so the
// client is built directly on net/http.
//
// Thread Safety: All methods are safe for concurrent use.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     Logger

	// credentials holds service credentials keyed by tenant id.
	credentials map[string]Credentials
	credMu      sync.RWMutex
}

// New creates a backend client for the given base URL.
//
// Parameters:
//   - baseURL: Backend root, e.g. "https://tenant.example.com"
//   - timeout: Per-request timeout; zero selects the default
//
// Returns:
//   - *Client: Client ready for credential registration
//   - error: If the base URL is empty
func New(baseURL string, timeout time.Duration) (*Client, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("%w: base URL is required", ErrInvalidInput)
	}
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}

	return &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		httpClient:  &http.Client{Timeout: timeout},
		logger:      noopLogger{},
		credentials: make(map[string]Credentials),
	}, nil
}

// SetLogger sets the logger for the client.
func (c *Client) SetLogger(logger Logger) {
	c.logger = logger
}

// RegisterTenant adds or replaces the service credentials for a tenant.
func (c *Client) RegisterTenant(creds Credentials) error {
	if creds.Tenant == "" || creds.Username == "" || creds.Password == "" {
		return fmt.Errorf("%w: tenant, username and password are required", ErrInvalidInput)
	}

	c.credMu.Lock()
	c.credentials[creds.Tenant] = creds
	c.credMu.Unlock()
	return nil
}

// Tenants returns the tenant ids with registered credentials.
func (c *Client) Tenants() []string {
	c.credMu.RLock()
	defer c.credMu.RUnlock()

	out := make([]string, 0, len(c.credentials))
	for tenant := range c.credentials {
		out = append(out, tenant)
	}
	return out
}

// credentialsFor resolves the credentials for a tenant.
func (c *Client) credentialsFor(tenantID string) (Credentials, error) {
	c.credMu.RLock()
	defer c.credMu.RUnlock()

	creds, ok := c.credentials[tenantID]
	if !ok {
		return Credentials{}, fmt.Errorf("%w: %s", ErrNoCredentials, tenantID)
	}
	return creds, nil
}

// BaseURL returns the configured backend root.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// doJSON executes one request against the backend.
//
// The body, if non-nil, is JSON-encoded. The response, if out is non-nil
// and the status indicates success, is JSON-decoded into out.
func (c *Client) doJSON(ctx context.Context, tenantID, method, path string, body, out any) error {
	creds, err := c.credentialsFor(tenantID)
	if err != nil {
		return err
	}

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%w: encoding request body: %w", ErrInvalidInput, err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrRequestFailed, err)
	}

	// Backend auth scopes the basic-auth user to a tenant.
	req.SetBasicAuth(creds.Tenant+"/"+creds.Username, creds.Password)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %w", ErrRequestFailed, method, path, err)
	}
	defer resp.Body.Close() //nolint:errcheck // read-side close

	if err := checkStatus(resp, method, path); err != nil {
		return err
	}

	if out != nil && resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("%w: decoding %s %s response: %w", ErrRequestFailed, method, path, err)
		}
	}

	return nil
}

// checkStatus converts HTTP error statuses into sentinel errors.
func checkStatus(resp *http.Response, method, path string) error {
	switch {
	case resp.StatusCode < http.StatusMultipleChoices:
		return nil
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %s %s", ErrNotFound, method, path)
	case resp.StatusCode == http.StatusConflict:
		return fmt.Errorf("%w: %s %s", ErrConflict, method, path)
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: %s %s: status %d", ErrUnauthorized, method, path, resp.StatusCode)
	default:
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		return fmt.Errorf("%w: %s %s: status %d: %s",
			ErrRequestFailed, method, path, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
}
