// Package requestid tags outbound API calls with a correlation id.
package requestid

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

// Header carries the id on the wire.
const Header = "X-Request-ID"

type contextKey string

// Key is the context key for request IDs.
const Key = contextKey("request-id")

// With returns ctx carrying id. An empty id gets a fresh UUID.
func With(ctx context.Context, id string) context.Context {
	if id == "" {
		id = uuid.New().String()
	}
	return context.WithValue(ctx, Key, id)
}

// Attach returns ctx unchanged when it already carries an id and a copy
// with a fresh one otherwise.
func Attach(ctx context.Context) context.Context {
	if Get(ctx) != "" {
		return ctx
	}
	return With(ctx, "")
}

// Get extracts the request ID from the context.
// Returns empty string if not found.
func Get(ctx context.Context) string {
	if reqID, ok := ctx.Value(Key).(string); ok {
		return reqID
	}
	return ""
}

// Ensure sets the request id header on req, reusing the id from its context
// when present, and returns the id used.
func Ensure(req *http.Request) string {
	if id := req.Header.Get(Header); id != "" {
		return id
	}
	id := Get(req.Context())
	if id == "" {
		id = uuid.New().String()
	}
	req.Header.Set(Header, id)
	return id
}

// Middleware generates or propagates request IDs for server handlers.
// The id is echoed in the response header and stored in the request context.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(Header)
		if id == "" {
			id = uuid.New().String()
		}
		w.Header().Set(Header, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), Key, id)))
	})
}
