package http

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wyfcoding/vectorplus/internal/facade/application"
	optapp "github.com/wyfcoding/vectorplus/internal/options/application"
	"github.com/wyfcoding/vectorplus/internal/options/infrastructure/persistence/memory"
	twapapp "github.com/wyfcoding/vectorplus/internal/twap/application"
	twapdomain "github.com/wyfcoding/vectorplus/internal/twap/domain"
	volapp "github.com/wyfcoding/vectorplus/internal/volatility/application"
	voldomain "github.com/wyfcoding/vectorplus/internal/volatility/domain"
	"github.com/wyfcoding/vectorplus/pkg/protocol"
)

const start uint64 = 1_700_000_000

const (
	holderHex = "0xaa00000000000000000000000000000000000000"
	orderHex  = "0x4200000000000000000000000000000000000000000000000000000000000000"
)

var order = map[string]any{
	"maker":         "0xbb00000000000000000000000000000000000000",
	"making_amount": "1000000000000000000",
	"taking_amount": "2000000000000000000000",
}

var snapshot = map[string]any{
	"baseline_volatility":  300,
	"current_volatility":   150,
	"volatility_threshold": 600,
	"emergency_threshold":  1200,
	"max_execution_size":   "5000000000000000000",
	"min_execution_size":   "100000000000000000",
	"last_update_time":     start - 10,
}

type server struct {
	router *gin.Engine
	clock  *atomic.Uint64
}

func newServer(t *testing.T) *server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	s := &server{clock: new(atomic.Uint64)}
	s.clock.Store(start)
	clock := protocol.ClockFunc(s.clock.Load)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	engine := voldomain.NewEngine()
	repo := memory.NewOptionRepo()
	vol := volapp.NewCalculator(engine, clock, logger, nil)
	twap := twapapp.NewExecutor(twapdomain.NewEngine(engine), clock, logger, nil)
	svc := optapp.NewOptionService(repo, nil, clock, optapp.Config{DefaultImpliedVolatility: 8000}, logger, nil)
	facade := application.NewStrategyFacade(vol, twap, optapp.NewCalculator(repo, logger, nil), engine,
		application.Config{Contracts: application.Contracts{Network: "mainnet"}, Clock: clock}, logger)

	s.router = gin.New()
	NewHandler(facade, vol, twap, svc).RegisterRoutes(s.router.Group("/api/v1"))
	return s
}

func (s *server) do(t *testing.T, method, path string, body any) (int, map[string]any) {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	var out map[string]any
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	}
	return w.Code, out
}

func TestStatusOf(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, StatusOf(protocol.ErrInvalidOrder))
	assert.Equal(t, http.StatusNotFound, StatusOf(application.ErrUnknownStrategy))
	assert.Equal(t, http.StatusConflict, StatusOf(twapdomain.ErrTWAPFullyExecuted))
	assert.Equal(t, http.StatusUnprocessableEntity, StatusOf(voldomain.ErrStaleVolatilityData))
	assert.Equal(t, http.StatusUnprocessableEntity, StatusOf(voldomain.ErrEmergencyVolatility))
	assert.Equal(t, http.StatusInternalServerError, StatusOf(assert.AnError))
}

func TestMakingAmountThroughEncodedPayload(t *testing.T) {
	s := newServer(t)

	code, body := s.do(t, http.MethodPost, "/api/v1/payloads/volatility", snapshot)
	require.Equal(t, http.StatusOK, code)
	payload := body["payload"].(string)

	code, body = s.do(t, http.MethodPost, "/api/v1/strategies/volatility/making-amount", map[string]any{
		"order":     order,
		"amount":    "2000000000000000000000",
		"remaining": "1000000000000000000",
		"payload":   payload,
	})
	require.Equal(t, http.StatusOK, code, body)
	// 2000/2000 = 1 -> x1.25 封顶剩余量 1
	assert.Equal(t, "1000000000000000000", body["amount"])

	code, body = s.do(t, http.MethodPost, "/api/v1/strategies/dutch/making-amount", map[string]any{
		"order": order, "amount": "1", "remaining": "1", "payload": payload,
	})
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "UNKNOWN_STRATEGY", body["code"])

	code, body = s.do(t, http.MethodPost, "/api/v1/strategies/volatility/taking-amount", map[string]any{
		"order": order, "amount": "1", "remaining": "1", "payload": "0xzz",
	})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "INVALID_PAYLOAD", body["code"])
}

func TestStaleSnapshotIsUnprocessable(t *testing.T) {
	s := newServer(t)
	_, body := s.do(t, http.MethodPost, "/api/v1/payloads/volatility", snapshot)
	s.clock.Store(start + 3600)

	code, body := s.do(t, http.MethodPost, "/api/v1/strategies/volatility/making-amount", map[string]any{
		"order": order, "amount": "1", "remaining": "1", "payload": body["payload"],
	})
	assert.Equal(t, http.StatusUnprocessableEntity, code)
	assert.Equal(t, "STALE_VOLATILITY_DATA", body["code"])
}

func TestGasAndContracts(t *testing.T) {
	s := newServer(t)

	code, body := s.do(t, http.MethodGet, "/api/v1/strategies/gas/options", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 85000.0, body["gas"])

	code, _ = s.do(t, http.MethodGet, "/api/v1/strategies/gas/unknown", nil)
	assert.Equal(t, http.StatusNotFound, code)

	code, body = s.do(t, http.MethodGet, "/api/v1/strategies/contracts", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "mainnet", body["network"])
}

func TestVolatilityEndpoints(t *testing.T) {
	s := newServer(t)

	code, body := s.do(t, http.MethodPost, "/api/v1/volatility/assess", snapshot)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["valid"])
	assessment := body["assessment"].(map[string]any)
	assert.Equal(t, 125.0, assessment["adjustment_factor"])

	stale := map[string]any{}
	for k, v := range snapshot {
		stale[k] = v
	}
	stale["last_update_time"] = start - 7200
	code, body = s.do(t, http.MethodPost, "/api/v1/volatility/assess", stale)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, false, body["valid"])
	assert.Equal(t, "STALE_VOLATILITY_DATA", body["code"])

	code, body = s.do(t, http.MethodPost, "/api/v1/volatility/batch-adjust", map[string]any{
		"snapshot": snapshot,
		"amounts":  []string{"1000000000000000000", "10000000000000000000"},
	})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, []any{"1250000000000000000", "5000000000000000000"}, body["amounts"])

	code, body = s.do(t, http.MethodPost, "/api/v1/volatility/batch-risk", map[string]any{
		"snapshots": []any{snapshot},
	})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, []any{100.0}, body["risk_scores"])
}

func TestTWAPEndpoints(t *testing.T) {
	s := newServer(t)
	schedule := map[string]any{
		"start_time":      start,
		"duration":        3600,
		"intervals":       4,
		"base_interval":   900,
		"executed_amount": "0",
	}
	req := map[string]any{
		"order":     order,
		"remaining": "1000000000000000000",
		"schedule":  schedule,
		"snapshot":  snapshot,
	}

	code, body := s.do(t, http.MethodPost, "/api/v1/twap/state", req)
	require.Equal(t, http.StatusOK, code, body)
	assert.Equal(t, true, body["can_execute"])
	// 1/4 * 1.25
	assert.Equal(t, "312500000000000000", body["recommended_amount"])

	code, body = s.do(t, http.MethodPost, "/api/v1/twap/simulate", req)
	require.Equal(t, http.StatusOK, code, body)
	assert.NotEmpty(t, body["steps"])

	schedule["duration"] = 0
	code, body = s.do(t, http.MethodPost, "/api/v1/twap/state", req)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "INVALID_TWAP_SCHEDULE", body["code"])
}

func TestTemplates(t *testing.T) {
	s := newServer(t)

	code, body := s.do(t, http.MethodGet, "/api/v1/templates/volatility?current=350", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 350.0, body["current_volatility"])
	assert.Equal(t, 600.0, body["volatility_threshold"])
	assert.Equal(t, float64(start), body["last_update_time"])

	code, body = s.do(t, http.MethodGet, "/api/v1/templates/twap", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(start), body["start_time"])
	assert.Equal(t, 600.0, body["base_interval"])

	code, _ = s.do(t, http.MethodGet, "/api/v1/templates/twap?start=soon", nil)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestOptionLifecycle(t *testing.T) {
	s := newServer(t)

	code, body := s.do(t, http.MethodPost, "/api/v1/options/call", map[string]any{
		"order":        order,
		"order_hash":   orderHex,
		"holder":       holderHex,
		"strike_price": "2050000000000000000000",
		"expiration":   start + 7200,
		"premium":      "10000000000000000000",
	})
	require.Equal(t, http.StatusCreated, code, body)
	id := body["option_id"].(string)

	code, body = s.do(t, http.MethodGet, "/api/v1/options/"+id, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["is_call"])

	exercise := map[string]any{"order": order, "order_hash": orderHex, "current_price": "2200000000000000000000", "caller": holderHex}
	code, body = s.do(t, http.MethodPost, "/api/v1/options/"+id+"/exercise", exercise)
	assert.Equal(t, http.StatusUnprocessableEntity, code)
	assert.Equal(t, "OUTSIDE_EXERCISE_WINDOW", body["code"])

	s.clock.Store(start + 7200 - 60)
	code, body = s.do(t, http.MethodGet, "/api/v1/options/"+id+"/status", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["can_exercise"])

	foreign := map[string]any{"order": order, "order_hash": "0x" + strings.Repeat("11", 32), "current_price": "2200000000000000000000", "caller": holderHex}
	code, body = s.do(t, http.MethodPost, "/api/v1/options/"+id+"/exercise", foreign)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "OPTION_DATA_MISMATCH", body["code"])

	code, body = s.do(t, http.MethodPost, "/api/v1/options/"+id+"/exercise", exercise)
	require.Equal(t, http.StatusOK, code, body)
	assert.Equal(t, "140000000000000000000", body["profit"])

	code, body = s.do(t, http.MethodPost, "/api/v1/options/"+id+"/exercise", exercise)
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "OPTION_ALREADY_EXERCISED", body["code"])

	code, body = s.do(t, http.MethodGet, "/api/v1/options/"+id+"/greeks?price=2200000000000000000000", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 5000.0, body["delta"])

	code, body = s.do(t, http.MethodGet, "/api/v1/orders/"+orderHex+"/options", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, body["options"], 1)
}

func TestOptionErrors(t *testing.T) {
	s := newServer(t)

	code, _ := s.do(t, http.MethodGet, "/api/v1/options/not-a-hash", nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code, body := s.do(t, http.MethodGet, "/api/v1/options/"+orderHex, nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "OPTION_NOT_FOUND", body["code"])

	code, body = s.do(t, http.MethodPost, "/api/v1/options/put", map[string]any{
		"order":        order,
		"holder":       holderHex,
		"strike_price": "0",
		"expiration":   start + 7200,
		"premium":      "1",
	})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "INVALID_STRIKE_PRICE", body["code"])

	code, _ = s.do(t, http.MethodPost, "/api/v1/options/put", map[string]any{"holder": holderHex})
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestPremium(t *testing.T) {
	s := newServer(t)

	code, body := s.do(t, http.MethodPost, "/api/v1/options/premium", map[string]any{
		"order":              order,
		"current_price":      "2200000000000000000000",
		"time_to_expiration": 0,
		"volatility":         8000,
		"is_call":            true,
	})
	require.Equal(t, http.StatusOK, code, body)
	assert.Equal(t, "200000000000000000000", body["premium"])
}
