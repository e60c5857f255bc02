package main

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wyfcoding/shoppingcart/internal/cart/application"
	"github.com/wyfcoding/shoppingcart/internal/cart/domain"
	"github.com/wyfcoding/shoppingcart/internal/cart/infrastructure/messaging"
	"github.com/wyfcoding/shoppingcart/internal/cart/infrastructure/persistence/memory"
	"github.com/wyfcoding/shoppingcart/pkg/config"
	"github.com/wyfcoding/shoppingcart/pkg/logger"
	"github.com/wyfcoding/shoppingcart/pkg/metrics"
	"github.com/wyfcoding/shoppingcart/pkg/ratelimit"
)

func testConfig(trusted []string) *config.Config {
	return &config.Config{
		ServiceName: "cart",
		Environment: "test",
		HTTP:        config.HTTPConfig{TrustedProxies: trusted},
		RateLimit: config.RateLimitConfig{
			Enabled: true,
			Backend: "local",
			QPS:     1,
			Burst:   1,
		},
	}
}

// countAllowed sends n requests from the same peer, each claiming a
// different client address, and returns how many got through.
func countAllowed(t *testing.T, cfg *config.Config, n int) int {
	t.Helper()
	gin.SetMode(gin.TestMode)

	repo := memory.NewCartRepository(domain.SystemClock{})
	publisher := messaging.NewLogEventPublisher(logger.New(io.Discard, logger.Config{}))
	svc := application.NewCartApplicationService(repo, publisher)

	router, err := newRouter(cfg, svc, metrics.NopCollector{}, ratelimit.NewLocalRateLimiter())
	require.NoError(t, err)

	allowed := 0
	for i := range n {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.RemoteAddr = "203.0.113.7:5000"
		req.Header.Set("X-Forwarded-For", fmt.Sprintf("198.51.100.%d", i))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		switch rec.Code {
		case http.StatusOK:
			allowed++
		case http.StatusTooManyRequests:
		default:
			t.Fatalf("unexpected status %d", rec.Code)
		}
	}
	return allowed
}

func TestRouter_IgnoresForwardedForFromUntrustedPeer(t *testing.T) {
	assert.Equal(t, 1, countAllowed(t, testConfig(nil), 50))
}

func TestRouter_HonoursForwardedForFromTrustedProxy(t *testing.T) {
	assert.Equal(t, 50, countAllowed(t, testConfig([]string{"203.0.113.7"}), 50))
}

func TestRouter_RejectsInvalidTrustedProxy(t *testing.T) {
	repo := memory.NewCartRepository(domain.SystemClock{})
	svc := application.NewCartApplicationService(repo, messaging.NewLogEventPublisher(logger.New(io.Discard, logger.Config{})))

	_, err := newRouter(testConfig([]string{"not-an-ip"}), svc, metrics.NopCollector{}, nil)
	require.Error(t, err)
}
