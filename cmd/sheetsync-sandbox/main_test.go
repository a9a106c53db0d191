package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ratio1/sheetsync_sdk_go/internal/logger"
	"github.com/Ratio1/sheetsync_sdk_go/pkg/sheetstore"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestParseFailConfig(t *testing.T) {
	cfg, err := parseFailConfig("")
	require.NoError(t, err)
	assert.Equal(t, failConfig{}, cfg)

	cfg, err = parseFailConfig("rate=0.25")
	require.NoError(t, err)
	assert.Equal(t, failConfig{rate: 0.25, code: http.StatusInternalServerError}, cfg)

	cfg, err = parseFailConfig(" rate = 1 , code=503 ")
	require.NoError(t, err)
	assert.Equal(t, failConfig{rate: 1, code: http.StatusServiceUnavailable}, cfg)

	for _, raw := range []string{"rate", "rate=abc", "code=x", "speed=2", "rate=1.5", "code=42", "rate=1,code=600", "code=0"} {
		_, err := parseFailConfig(raw)
		assert.Error(t, err, raw)
	}
}

func newTestEngine(t *testing.T, failCfg failConfig, roll float64) (*gin.Engine, *sheetstore.MemoryStore) {
	t.Helper()
	store := sheetstore.NewMemoryStore()
	metrics := sheetstore.NewMetrics()
	h := sheetstore.NewHandler(sheetstore.HandlerConfig{Store: store, Metrics: metrics})
	engine := newEngine(h, store, metrics, logger.NewNop(), 0, failCfg)
	if roll >= 0 {
		engine = gin.New()
		engine.Use(injectFaults(0, failCfg, func() float64 { return roll }))
		h.Register(engine)
	}
	return engine, store
}

func TestEngineServesEndpointAndHealth(t *testing.T) {
	engine, _ := newTestEngine(t, failConfig{}, -1)

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/exec?action=save",
		strings.NewReader(`{"key":"k1","html":"<p>x</p>"}`)))
	require.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var health map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &health))
	assert.Equal(t, "healthy", health["status"])
	assert.EqualValues(t, 1, health["documents"])

	w = httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "sheetsync_backend_requests_total")
}

func TestInjectFaultsFailsWhenRollBelowRate(t *testing.T) {
	engine, _ := newTestEngine(t, failConfig{rate: 0.5, code: http.StatusBadGateway}, 0.1)

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/?action=get&key=k1", nil))
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Equal(t, "failure injected", w.Body.String())
}

func TestInjectFaultsPassesWhenRollAboveRate(t *testing.T) {
	engine, _ := newTestEngine(t, failConfig{rate: 0.5}, 0.9)

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/?action=get&key=k1", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"ok":true`)
}
