package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"restopos/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

func authConfig() config.APIConfig {
	cfg := testAPIConfig()
	cfg.Auth = config.APIAuthConfig{
		Enabled:      true,
		HeaderAPIKey: "x-api-key",
		HeaderExtra:  "x-api-extra",
		APIKeys: []config.APIClientKey{
			{Key: "front-key", Name: "front", Permissions: []string{"read:*", "write:orders"}},
			{Key: "report-key", Name: "reports", Permissions: []string{"read:revenue"}},
			{Key: "admin-key", Extra: "admin-extra", Name: "admin"},
		},
	}
	return cfg
}

func TestHTTPAuth(t *testing.T) {
	env := newTestEnv(t, authConfig(), nil)

	t.Run("HealthIsPublic", func(t *testing.T) {
		resp := env.do(t, http.MethodGet, "/healthz", nil)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("MissingKey", func(t *testing.T) {
		env.apiKey = ""
		resp := env.do(t, http.MethodGet, "/api/tables", nil)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		assert.Equal(t, errMissingAPIKey.Error(), errorMessage(t, resp))
	})

	t.Run("InvalidKey", func(t *testing.T) {
		env.apiKey = "nope"
		resp := env.do(t, http.MethodGet, "/api/tables", nil)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("WildcardRead", func(t *testing.T) {
		env.apiKey = "front-key"
		resp := env.do(t, http.MethodGet, "/api/tables", nil)
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		resp = env.do(t, http.MethodGet, "/api/revenue/daily", nil)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("WriteOrdersAllowed", func(t *testing.T) {
		env.apiKey = "front-key"
		resp := env.do(t, http.MethodPost, "/api/orders", openOrderRequest{TableID: env.tableID})
		assert.Equal(t, http.StatusCreated, resp.StatusCode)
	})

	t.Run("WriteCatalogDenied", func(t *testing.T) {
		env.apiKey = "front-key"
		resp := env.do(t, http.MethodPost, "/api/tables", createTableRequest{Name: "Bàn 9"})
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	})

	t.Run("RevenueOnly", func(t *testing.T) {
		env.apiKey = "report-key"
		resp := env.do(t, http.MethodGet, "/api/bills", nil)
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		resp = env.do(t, http.MethodGet, "/api/tables", nil)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	})

	t.Run("ExtraHeader", func(t *testing.T) {
		env.apiKey = "admin-key"
		resp := env.do(t, http.MethodGet, "/api/tables", nil)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

		req, err := http.NewRequest(http.MethodGet, env.ts.URL+"/api/tables", nil)
		require.NoError(t, err)
		req.Header.Set("x-api-key", "admin-key")
		req.Header.Set("x-api-extra", "wrong")
		resp, err = http.DefaultClient.Do(req)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

		req.Header.Set("x-api-extra", "admin-extra")
		resp, err = http.DefaultClient.Do(req)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})
}

func TestHTTPAuth_RateLimit(t *testing.T) {
	cfg := testAPIConfig()
	cfg.RateLimit = config.APIRateLimitConfig{RPS: 1, Burst: 1}

	auth := NewHTTPAuth(cfg)
	handler := auth.Wrap(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	call := func(key string) int {
		req := httptest.NewRequest(http.MethodGet, "/api/tables", nil)
		req.Header.Set("x-api-key", key)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusNoContent, call("key1"))
	assert.Equal(t, http.StatusTooManyRequests, call("key1"))
	// buckets are per client
	assert.Equal(t, http.StatusNoContent, call("key2"))
}

func TestPermissionMatches(t *testing.T) {
	tests := []struct {
		granted  string
		required string
		want     bool
	}{
		{"read:orders", "read:orders", true},
		{"read:*", "read:revenue", true},
		{"read:*", "write:orders", false},
		{"*", "write:catalog", true},
		{"write:orders", "write:catalog", false},
		{"read*", "read:orders", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, permissionMatches(tt.granted, tt.required), "%s vs %s", tt.granted, tt.required)
	}
}

func TestRequiredPermissionHTTP(t *testing.T) {
	tests := []struct {
		method string
		path   string
		want   string
	}{
		{http.MethodGet, "/api/tables", permReadCatalog},
		{http.MethodPost, "/api/tables", permWriteCatalog},
		{http.MethodGet, "/api/tables/3/active-order", permReadOrders},
		{http.MethodPut, "/api/menu-items/2", permWriteCatalog},
		{http.MethodGet, "/api/orders/1", permReadOrders},
		{http.MethodPost, "/api/orders/1/items", permWriteOrders},
		{http.MethodDelete, "/api/order-items/4", permWriteOrders},
		{http.MethodPost, "/api/sync-to-sheets", permWriteOrders},
		{http.MethodGet, "/api/bills", permReadRevenue},
		{http.MethodGet, "/api/revenue/export", permReadRevenue},
		{http.MethodGet, "/healthz", ""},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(tt.method, tt.path, nil)
		assert.Equal(t, tt.want, requiredPermissionHTTP(req), "%s %s", tt.method, tt.path)
	}
}

func TestCheckPermissions_EmptyListAllowsAll(t *testing.T) {
	assert.NoError(t, checkPermissions(config.APIClientKey{Key: "k"}, permWriteCatalog))
	assert.ErrorIs(t,
		checkPermissions(config.APIClientKey{Key: "k", Permissions: []string{"read:orders"}}, permWriteCatalog),
		errPermissionDenied)
}

func TestRateLimitUnaryInterceptor(t *testing.T) {
	interceptor := RateLimitUnaryInterceptor(newRateLimiter(config.APIRateLimitConfig{RPS: 1, Burst: 1}), "x-api-key")
	info := &grpc.UnaryServerInfo{FullMethod: "test"}
	handler := func(_ context.Context, req any) (any, error) { return "ok", nil }

	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs("x-api-key", "key1"))

	// First request - ok
	_, err := interceptor(ctx, "req", info, handler)
	assert.NoError(t, err)

	// Second request - blocked
	_, err = interceptor(ctx, "req", info, handler)
	assert.Error(t, err)
	assert.Equal(t, codes.ResourceExhausted, status.Code(err))
}

func TestRateLimitUnaryInterceptor_Disabled(t *testing.T) {
	interceptor := RateLimitUnaryInterceptor(newRateLimiter(config.APIRateLimitConfig{}), "")
	info := &grpc.UnaryServerInfo{FullMethod: "test"}
	handler := func(_ context.Context, req any) (any, error) { return "ok", nil }

	for i := 0; i < 10; i++ {
		_, err := interceptor(context.Background(), "req", info, handler)
		require.NoError(t, err)
	}
}

func TestLoggingUnaryInterceptor(t *testing.T) {
	interceptor := LoggingUnaryInterceptor(nil)
	handler := func(ctx context.Context, req any) (any, error) {
		return "ok", nil
	}
	info := &grpc.UnaryServerInfo{FullMethod: "test"}

	resp, err := interceptor(context.Background(), "req", info, handler)
	assert.NoError(t, err)
	assert.Equal(t, "ok", resp)
}

func TestRecoveryUnaryInterceptor(t *testing.T) {
	interceptor := RecoveryUnaryInterceptor(nil)
	handler := func(ctx context.Context, req any) (any, error) {
		panic("boom")
	}
	info := &grpc.UnaryServerInfo{FullMethod: "test"}

	resp, err := interceptor(context.Background(), "req", info, handler)
	assert.Nil(t, resp)
	assert.Equal(t, codes.Internal, status.Code(err))
}

func TestRequestIDFromMetadata(t *testing.T) {
	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs(requestIDMetadataKey, "abc"))
	assert.Equal(t, "abc", requestIDFromMetadata(ctx))
	assert.NotEmpty(t, requestIDFromMetadata(context.Background()))
}
