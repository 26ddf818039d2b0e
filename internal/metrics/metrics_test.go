package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveRequest(t *testing.T) {
	m := New()

	m.ObserveRequest("GET", 200, 10*time.Millisecond)
	m.ObserveRequest("GET", 200, 5*time.Millisecond)
	m.ObserveRequest("POST", 0, time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues("GET", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues("POST", "none")))
}

func TestObserveRefresh(t *testing.T) {
	m := New()

	m.ObserveRefresh(RefreshSuccess)
	m.ObserveRefresh(RefreshExpired)
	m.ObserveRefresh(RefreshNetwork)
	m.ObserveRefreshWaiter()
	m.ObserveRefreshWaiter()

	assert.Equal(t, 1.0, testutil.ToFloat64(m.RefreshesTotal.WithLabelValues(RefreshSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SessionsExpired))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.RefreshWaiters))
}

func TestObserveLoginAndTransition(t *testing.T) {
	m := New()

	m.ObserveLogin(true)
	m.ObserveLogin(false)
	m.ObserveLogin(false)
	m.ObserveTransition("Solicitação", "Requisição")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.LoginsTotal.WithLabelValues("success")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.LoginsTotal.WithLabelValues("failure")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TransitionsTotal.WithLabelValues("Solicitação", "Requisição")))
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.ObserveRequest("GET", 200, time.Second)
		m.ObserveRefresh(RefreshSuccess)
		m.ObserveRefreshWaiter()
		m.ObserveLogin(true)
		m.ObserveTransition("a", "b")
	})
	assert.NoError(t, m.WriteTextfile("/nonexistent/metrics.prom"))
}

func TestWriteTextfile(t *testing.T) {
	m := New()
	m.ObserveRefresh(RefreshSuccess)

	path := filepath.Join(t.TempDir(), "compras.prom")
	require.NoError(t, m.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), `compras_session_refreshes_total{outcome="success"} 1`))
}

func TestRegistriesAreIndependent(t *testing.T) {
	a, b := New(), New()
	a.ObserveLogin(true)

	assert.Equal(t, 0.0, testutil.ToFloat64(b.LoginsTotal.WithLabelValues("success")))
}
