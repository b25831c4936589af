package middleware

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/wyfcoding/vectorplus/pkg/logger"
	"github.com/wyfcoding/vectorplus/pkg/metrics"
	"github.com/wyfcoding/vectorplus/pkg/protocol"
	"github.com/wyfcoding/vectorplus/pkg/ratelimit"
)

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func newRouter(handlers ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(handlers...)
	return r
}

func TestRequestIDAndLogging(t *testing.T) {
	var buf bytes.Buffer
	l := logger.NewWithWriter(logger.Config{Level: "info"}, &buf)

	var seen string
	r := newRouter(RequestID(), Logging(l))
	r.GET("/ping", func(c *gin.Context) {
		seen = logger.TraceID(c.Request.Context())
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(TraceIDHeader, "trace-123")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, "trace-123", seen)
	assert.NotEmpty(t, w.Header().Get(RequestIDHeader))
	assert.Contains(t, buf.String(), "HTTP request completed")
	assert.Contains(t, buf.String(), "trace-123")
}

func TestRecovery(t *testing.T) {
	r := newRouter(RequestID(), Recovery(discard()))
	r.GET("/boom", func(*gin.Context) { panic("boom") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "INTERNAL")
}

func TestCORSPreflight(t *testing.T) {
	r := newRouter(CORS())
	r.POST("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodOptions, "/x", nil))
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestMetricsUsesRouteTemplate(t *testing.T) {
	m := metrics.New("test")
	r := newRouter(Metrics(m))
	r.GET("/options/:id", func(c *gin.Context) { c.Status(http.StatusOK) })

	for _, id := range []string{"a", "b"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/options/"+id, nil))
	}
	assert.Equal(t, 2.0, testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "/options/:id", "200")))
}

type failingLimiter struct{}

func (failingLimiter) Allow(context.Context, string, ratelimit.Limit) (*ratelimit.Result, error) {
	return nil, errors.New("redis down")
}

func TestRateLimit(t *testing.T) {
	cfg := ratelimit.Config{Enabled: true, QPS: 1, Burst: 1}
	r := newRouter(RateLimit(ratelimit.NewLocalRateLimiter(), cfg, discard()))
	r.POST("/w", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/w", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/w", nil))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))

	// 限流器故障放行
	r = newRouter(RateLimit(failingLimiter{}, cfg, discard()))
	r.POST("/w", func(c *gin.Context) { c.Status(http.StatusOK) })
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/w", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestGRPCInterceptors(t *testing.T) {
	info := &grpc.UnaryServerInfo{FullMethod: "/grpc.health.v1.Health/Check"}
	m := metrics.New("test")

	_, err := GRPCRecoveryInterceptor(discard())(context.Background(), nil, info,
		func(context.Context, any) (any, error) { panic("boom") })
	assert.Equal(t, codes.Internal, status.Code(err))

	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs(traceMetadataKey, "t-1"))
	var seen string
	_, err = GRPCLoggingInterceptor(discard())(ctx, nil, info, func(ctx context.Context, _ any) (any, error) {
		seen = logger.TraceID(ctx)
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "t-1", seen)

	_, err = GRPCMetricsInterceptor(m)(context.Background(), nil, info, func(context.Context, any) (any, error) {
		return nil, status.Error(codes.NotFound, "missing")
	})
	assert.Error(t, err)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.GRPCRequestsTotal.WithLabelValues(info.FullMethod, "NotFound")))

	cfg := ratelimit.Config{Enabled: true, QPS: 1, Burst: 1}
	limit := RateLimitInterceptor(ratelimit.NewLocalRateLimiter(), cfg)
	ok := func(context.Context, any) (any, error) { return "ok", nil }
	_, err = limit(context.Background(), nil, info, ok)
	require.NoError(t, err)
	_, err = limit(context.Background(), nil, info, ok)
	assert.Equal(t, codes.ResourceExhausted, status.Code(err))
}

func TestGRPCErrorMapping(t *testing.T) {
	cases := []struct {
		err  error
		want codes.Code
	}{
		{nil, codes.OK},
		{protocol.ErrInvalidPayload, codes.InvalidArgument},
		{fmt.Errorf("decode: %w", protocol.ErrInvalidOrder), codes.InvalidArgument},
		{protocol.NewError(protocol.ClassNotFound, "MISSING", "missing"), codes.NotFound},
		{protocol.NewError(protocol.ClassState, "DONE", "done"), codes.FailedPrecondition},
		{protocol.NewError(protocol.ClassTemporal, "LATE", "late"), codes.OutOfRange},
		{protocol.NewError(protocol.ClassEconomic, "LOSS", "loss"), codes.OutOfRange},
		{errors.New("boom"), codes.Internal},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, GRPCCode(tc.err), "%v", tc.err)
	}

	info := &grpc.UnaryServerInfo{FullMethod: "/vectorplus/Test"}
	intercept := GRPCErrorInterceptor()
	_, err := intercept(context.Background(), nil, info, func(context.Context, any) (any, error) {
		return nil, protocol.ErrInvalidPayload
	})
	st, _ := status.FromError(err)
	assert.Equal(t, codes.InvalidArgument, st.Code())
	assert.Contains(t, st.Message(), "strategy payload")

	_, err = intercept(context.Background(), nil, info, func(context.Context, any) (any, error) {
		return nil, errors.New("db password leaked")
	})
	st, _ = status.FromError(err)
	assert.Equal(t, codes.Internal, st.Code())
	assert.NotContains(t, st.Message(), "password")

	_, err = intercept(context.Background(), nil, info, func(context.Context, any) (any, error) {
		return nil, status.Error(codes.ResourceExhausted, "slow down")
	})
	assert.Equal(t, codes.ResourceExhausted, status.Code(err))
}
