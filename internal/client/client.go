// Package client is the typed API client for the purchasing backend. Every
// call goes through the session transport, so expired access tokens are
// refreshed transparently and an unrecoverable 401 surfaces as
// session_expired.
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
	"strings"
	"time"

	"github.com/GenivalfSilva/Sistema-Compras/internal/access"
	"github.com/GenivalfSilva/Sistema-Compras/internal/apperr"
	"github.com/GenivalfSilva/Sistema-Compras/internal/events"
	"github.com/GenivalfSilva/Sistema-Compras/internal/logging"
	"github.com/GenivalfSilva/Sistema-Compras/internal/metrics"
	"github.com/GenivalfSilva/Sistema-Compras/internal/session"
)

// ErrNotFound matches an APIError with status 404.
var ErrNotFound = errors.New("not found")

// APIError is a backend failure that does not map to an apperr kind.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api error: %d", e.StatusCode)
	}
	return fmt.Sprintf("api error: %d - %s", e.StatusCode, e.Message)
}

func (e *APIError) Is(target error) bool {
	return target == ErrNotFound && e.StatusCode == http.StatusNotFound
}

// Options configures a Client.
type Options struct {
	Timeout   time.Duration
	Publisher events.Publisher
	Metrics   *metrics.Metrics
	Logger    *logging.Logger
}

// Client calls the purchasing API on behalf of a session.
type Client struct {
	baseURL   string
	client    *http.Client
	session   *session.Manager
	publisher events.Publisher
	metrics   *metrics.Metrics
	logger    *logging.Logger
}

func New(m *session.Manager, opts Options) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	publisher := opts.Publisher
	if publisher == nil {
		publisher = events.Noop{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	return &Client{
		baseURL:   m.BaseURL(),
		client:    m.Client(timeout),
		session:   m,
		publisher: publisher,
		metrics:   opts.Metrics,
		logger:    logger,
	}
}

// Session returns the manager the client authenticates with.
func (c *Client) Session() *session.Manager {
	return c.session
}

// require is the local permission gate. A session without a profile is not
// gated; the backend decides.
func (c *Client) require(p access.Permission) error {
	profile := c.session.Profile()
	if profile == nil {
		return nil
	}
	return access.Require(profile.Permissions, p)
}

func (c *Client) username() string {
	if p := c.session.Profile(); p != nil {
		return p.Username
	}
	return ""
}

func (c *Client) doRequest(ctx context.Context, method, path string, query url.Values, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, u, bodyReader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, unwrapURLError(err)
	}
	return resp, nil
}

// call sends the request and decodes a 2xx body into out when out is not
// nil. Anything else becomes a classified error.
func (c *Client) call(ctx context.Context, method, path string, query url.Values, body, out any) error {
	resp, err := c.doRequest(ctx, method, path, query, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeError(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s %s response: %w", method, path, err)
	}
	return nil
}

// unwrapURLError strips the *url.Error added by http.Client so classified
// transport errors reach the caller as is.
func unwrapURLError(err error) error {
	var ue *url.Error
	if errors.As(err, &ue) {
		var ae *apperr.Error
		if errors.As(ue.Err, &ae) {
			return ae
		}
		if errors.Is(ue.Err, context.Canceled) || errors.Is(ue.Err, context.DeadlineExceeded) {
			return ue.Err
		}
		return apperr.Wrap(apperr.KindNetwork, ue.Err, ue.Op+" "+ue.URL)
	}
	return err
}

// decodeError maps a non-2xx response onto the error taxonomy.
func decodeError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))

	var raw map[string]json.RawMessage
	_ = json.Unmarshal(data, &raw)
	message := firstMessage(raw)

	switch resp.StatusCode {
	case http.StatusBadRequest:
		fields := fieldErrors(raw)
		if len(fields) == 0 && message == "" {
			message = strings.TrimSpace(string(data))
		}
		return apperr.Validation(message, fields)
	case http.StatusUnauthorized:
		return apperr.New(apperr.KindSessionExpired, "%s", orDefault(message, "authentication required"))
	case http.StatusForbidden:
		return &apperr.Error{Kind: apperr.KindForbidden, Message: orDefault(message, "permission denied")}
	}
	if message == "" {
		message = strings.TrimSpace(string(data))
	}
	return &APIError{StatusCode: resp.StatusCode, Message: message}
}

var messageKeys = []string{"detail", "error", "message", "non_field_errors"}

func firstMessage(raw map[string]json.RawMessage) string {
	for _, key := range messageKeys {
		v, ok := raw[key]
		if !ok {
			continue
		}
		if msgs := stringList(v); len(msgs) > 0 {
			return msgs[0]
		}
	}
	return ""
}

// fieldErrors collects DRF field errors, skipping the generic message keys.
func fieldErrors(raw map[string]json.RawMessage) map[string][]string {
	fields := make(map[string][]string)
	for key, v := range raw {
		if key == "detail" || key == "error" || key == "message" || key == "code" {
			continue
		}
		if msgs := stringList(v); len(msgs) > 0 {
			fields[key] = msgs
		}
	}
	if len(fields) == 0 {
		return nil
	}
	return fields
}

func stringList(v json.RawMessage) []string {
	var s string
	if err := json.Unmarshal(v, &s); err == nil {
		return []string{s}
	}
	var list []string
	if err := json.Unmarshal(v, &list); err == nil {
		return list
	}
	var nested map[string]json.RawMessage
	if err := json.Unmarshal(v, &nested); err == nil {
		var out []string
		for k, inner := range nested {
			for _, msg := range stringList(inner) {
				out = append(out, k+": "+msg)
			}
		}
		return out
	}
	return nil
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

// publish emits ev. Failures are logged and dropped.
func (c *Client) publish(ctx context.Context, ev events.Event) {
	if ev.Username == "" {
		ev.Username = c.username()
	}
	if err := events.Emit(ctx, c.publisher, ev); err != nil {
		c.logger.WarnContext(ctx, "failed to publish event", "subject", ev.Subject, logging.Error(err))
	}
}
