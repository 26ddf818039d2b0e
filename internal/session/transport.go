package session

import (
	"io"
	"net/http"
	"time"

	"github.com/GenivalfSilva/Sistema-Compras/internal/apperr"
	"github.com/GenivalfSilva/Sistema-Compras/internal/logging"
	"github.com/GenivalfSilva/Sistema-Compras/internal/requestid"
)

// Transport authorizes every request with the manager's access token and,
// on a 401 from a non-auth endpoint, refreshes once and replays the request.
// A second 401 is returned to the caller as is.
type Transport struct {
	manager *Manager
}

// Transport returns the RoundTripper that mediates API calls for m.
func (m *Manager) Transport() *Transport {
	return &Transport{manager: m}
}

// Client returns an http.Client using m's transport.
func (m *Manager) Client(timeout time.Duration) *http.Client {
	return &http.Client{Transport: m.Transport(), Timeout: timeout}
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	m := t.manager

	// The id goes into the context as well as the header so every log line
	// for this exchange, refresh included, carries it.
	out := req.Clone(req.Context())
	id := requestid.Ensure(out)
	ctx := requestid.With(out.Context(), id)
	out = out.WithContext(ctx)
	used := m.Authorize(out)

	resp, err := t.send(out)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized || used == "" || IsAuthEndpoint(out.URL.Path) {
		return resp, nil
	}

	io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	resp.Body.Close()

	m.logger.DebugContext(ctx, "access token rejected", logging.Method(out.Method), logging.Path(out.URL.Path))

	retry, err := m.HandleUnauthorized(ctx, out)
	if err != nil {
		return nil, err
	}
	return t.send(retry)
}

func (t *Transport) send(req *http.Request) (*http.Response, error) {
	m := t.manager
	start := time.Now()
	resp, err := m.base.RoundTrip(req)
	elapsed := time.Since(start)
	if err != nil {
		m.metrics.ObserveRequest(req.Method, 0, elapsed)
		m.logger.DebugContext(req.Context(), "request failed",
			logging.Method(req.Method), logging.Path(req.URL.Path), logging.Error(err))
		return nil, apperr.Wrap(apperr.KindNetwork, err, req.Method+" "+req.URL.Path)
	}
	m.metrics.ObserveRequest(req.Method, resp.StatusCode, elapsed)
	m.logger.DebugContext(req.Context(), "request",
		logging.Method(req.Method), logging.Path(req.URL.Path),
		logging.Status(resp.StatusCode), logging.Duration(elapsed.Milliseconds()))
	return resp, nil
}
