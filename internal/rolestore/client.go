package rolestore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

// StatusError is returned for any non-2xx store response. The status code is
// preserved so callers can tell a conflict (404/409 after a stale read) from a
// transport or server failure.
type StatusError struct {
	StatusCode int
	Method     string
	Path       string
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("role store: %s %s returned %d", e.Method, e.Path, e.StatusCode)
}

// StatusOf extracts the HTTP status from an error chain, or 0 if none.
func StatusOf(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode
	}
	return 0
}

// Client talks to the external role store. It offers no batching and no
// transactions; every method is a single independent HTTP call.
type Client struct {
	baseURL string
	http    *http.Client
	timeout time.Duration
	logger  *slog.Logger
}

// NewClient creates a role store client authenticating with the given bearer
// token. An empty token produces a client that must be specialized with
// WithBearer before use.
func NewClient(baseURL, token string, timeout time.Duration, logger *slog.Logger) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		timeout: timeout,
		logger:  logger,
	}
	c.http = newHTTPClient(token, timeout)
	return c
}

// WithBearer returns a client identical to c but authenticating as the holder
// of the given token. The API layer uses this to forward each caller's own
// token instead of a shared service identity.
func (c *Client) WithBearer(token string) *Client {
	return &Client{
		baseURL: c.baseURL,
		timeout: c.timeout,
		logger:  c.logger,
		http:    newHTTPClient(token, c.timeout),
	}
}

func newHTTPClient(token string, timeout time.Duration) *http.Client {
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	client := oauth2.NewClient(context.Background(), ts)
	client.Timeout = timeout
	return client
}

// ListByUser fetches every association for one user. The response is the
// freshest snapshot the store offers; read-your-writes is not guaranteed.
func (c *Client) ListByUser(ctx context.Context, userID string) ([]Association, error) {
	var wires []associationWire
	path := "/user-company/user/" + url.PathEscape(userID)
	if err := c.do(ctx, http.MethodGet, path, nil, &wires); err != nil {
		return nil, fmt.Errorf("listing associations for user %s: %w", userID, err)
	}

	assocs := make([]Association, 0, len(wires))
	for _, w := range wires {
		a, err := fromWire(w)
		if err != nil {
			return nil, fmt.Errorf("decoding association %s: %w", w.ID, err)
		}
		assocs = append(assocs, a)
	}
	return assocs, nil
}

// Update replaces an existing association record. The store requires the full
// record body; partial patches are not available.
func (c *Client) Update(ctx context.Context, a Association) (Association, error) {
	if a.ID == "" {
		return Association{}, errors.New("updating association: missing id")
	}

	var out associationWire
	path := "/user-company/" + url.PathEscape(a.ID)
	if err := c.do(ctx, http.MethodPut, path, toWire(a), &out); err != nil {
		return Association{}, fmt.Errorf("updating association %s: %w", a.ID, err)
	}
	if out.ID == "" {
		// Some store deployments answer PUT with an empty body.
		return a, nil
	}
	return fromWire(out)
}

// Create stores a new association and returns it with the assigned id.
func (c *Client) Create(ctx context.Context, a Association) (Association, error) {
	if a.ID != "" {
		return Association{}, fmt.Errorf("creating association: id %s already assigned", a.ID)
	}

	var out associationWire
	if err := c.do(ctx, http.MethodPost, "/user-company", toWire(a), &out); err != nil {
		return Association{}, fmt.Errorf("creating association for user %s: %w", a.UserID, err)
	}
	return fromWire(out)
}

// ListCompanies fetches the company catalog for adjacent surfaces.
func (c *Client) ListCompanies(ctx context.Context) ([]Company, error) {
	var companies []Company
	if err := c.do(ctx, http.MethodGet, "/companies", nil, &companies); err != nil {
		return nil, fmt.Errorf("listing companies: %w", err)
	}
	return companies, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	c.logger.Debug("role store call",
		"method", method,
		"path", path,
		"status", resp.StatusCode,
		"duration", time.Since(start).String(),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &StatusError{
			StatusCode: resp.StatusCode,
			Method:     method,
			Path:       path,
			Body:       string(snippet),
		}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("decoding response: %w", err)
		}
	}
	return nil
}
