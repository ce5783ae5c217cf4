package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounters(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.Route(PathLocal)
	m.Route(PathLocal)
	m.Route(PathOffline)
	m.Login("ok")
	m.BrokerError("publish")
	m.SetOnline(3)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.routes.WithLabelValues(PathLocal)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.routes.WithLabelValues(PathOffline)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.logins.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.brokerErrors.WithLabelValues("publish")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.online))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.Route(PathRelay)
		m.Login("auth")
		m.BrokerError("receive")
		m.Frame("malformed")
		m.SetOnline(1)
		m.SetChannels(1)
		m.SetBridgeState(2)
		m.ConnOpened()
		m.ConnClosed()
	})
}

func TestHandler(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.Route(PathRelay)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	require.Equal(t, 200, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), `chatmesh_routed_messages_total{path="relay"} 1`))
}
