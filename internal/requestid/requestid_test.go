package requestid

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWith_GeneratesWhenEmpty(t *testing.T) {
	ctx := With(context.Background(), "")

	id := Get(ctx)
	_, err := uuid.Parse(id)
	assert.NoError(t, err)
}

func TestWith_KeepsGivenID(t *testing.T) {
	ctx := With(context.Background(), "req-1")
	assert.Equal(t, "req-1", Get(ctx))
}

func TestAttach(t *testing.T) {
	ctx := With(context.Background(), "req-1")
	assert.Equal(t, "req-1", Get(Attach(ctx)))

	fresh := Get(Attach(context.Background()))
	_, err := uuid.Parse(fresh)
	assert.NoError(t, err)
}

func TestGet_Missing(t *testing.T) {
	assert.Empty(t, Get(context.Background()))
}

func TestEnsure(t *testing.T) {
	tests := []struct {
		name   string
		ctxID  string
		header string
		want   string
	}{
		{name: "header wins", ctxID: "ctx-id", header: "hdr-id", want: "hdr-id"},
		{name: "context id", ctxID: "ctx-id", want: "ctx-id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.ctxID != "" {
				req = req.WithContext(With(req.Context(), tt.ctxID))
			}
			if tt.header != "" {
				req.Header.Set(Header, tt.header)
			}

			assert.Equal(t, tt.want, Ensure(req))
			assert.Equal(t, tt.want, req.Header.Get(Header))
		})
	}

	t.Run("generated", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		id := Ensure(req)
		_, err := uuid.Parse(id)
		require.NoError(t, err)
	})
}

func TestMiddleware(t *testing.T) {
	var seen string
	h := Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = Get(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(Header, "abc")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, "abc", seen)
	assert.Equal(t, "abc", rec.Header().Get(Header))

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.NotEmpty(t, rec.Header().Get(Header))
	assert.Equal(t, rec.Header().Get(Header), seen)
}
