package server

import (
	"bytes"
	"context"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"coupon-share-service/internal/cache"
	"coupon-share-service/internal/config"
	"coupon-share-service/internal/coupon"
	"coupon-share-service/internal/metrics"
	"coupon-share-service/internal/render"
	"coupon-share-service/internal/storage"
	"coupon-share-service/internal/token"

	"github.com/fogleman/gg"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testSecret = "kedai-share-secret"

var fallbackPNG = []byte("fallback-image")

type countingRenderer struct {
	*render.Renderer
	calls atomic.Int32
}

func (c *countingRenderer) Render(ctx context.Context, meta coupon.Metadata, v render.Variant) ([]byte, error) {
	c.calls.Add(1)
	return c.Renderer.Render(ctx, meta, v)
}

type testEnv struct {
	handler  http.Handler
	renderer *countingRenderer
	codec    *token.Codec
	metrics  *metrics.Metrics
	cfg      *config.Config
}

func newTestEnv(t *testing.T, mutate func(*config.Config)) *testEnv {
	t.Helper()

	cfg := config.Default()
	cfg.Render.AssetDir = t.TempDir()
	cfg.Storage.Dir = t.TempDir()
	cfg.Token.Secret = testSecret
	cfg.RateLimit.RPS = 0
	if mutate != nil {
		mutate(&cfg)
	}

	dc := gg.NewContext(770, 444)
	dc.SetHexColor("#2a9d8f")
	dc.Clear()
	require.NoError(t, dc.SavePNG(filepath.Join(cfg.Render.AssetDir, cfg.Render.CardBackground)))
	require.NoError(t, os.WriteFile(filepath.Join(cfg.Render.AssetDir, "404coupon.png"), fallbackPNG, 0o644))

	assets := render.NewDirAssets(cfg.Render.AssetDir)
	renderer := &countingRenderer{Renderer: render.New(assets, render.Options{
		Variant:    render.Variant(cfg.Render.Variant),
		Background: cfg.Render.CardBackground,
		Now:        func() time.Time { return time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC) },
	})}

	store, err := storage.NewFileStore(cfg.Storage.Dir)
	require.NoError(t, err)
	c, err := cache.NewCache(store, cfg.Cache)
	require.NoError(t, err)
	t.Cleanup(c.Close)

	codec, err := token.NewCodec(cfg.Token.Secret)
	require.NoError(t, err)

	m := metrics.New()
	srv := New(&cfg, Deps{
		Codec:    codec,
		Renderer: renderer,
		Cache:    c,
		Assets:   assets,
		Metrics:  m,
		Logger:   zap.NewNop(),
	})
	t.Cleanup(srv.Close)

	return &testEnv{handler: srv.Handler(), renderer: renderer, codec: codec, metrics: m, cfg: &cfg}
}

func (e *testEnv) do(method, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func pngSize(t *testing.T, data []byte) (int, int) {
	t.Helper()
	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	return img.Bounds().Dx(), img.Bounds().Dy()
}

func errorBody(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body["error"]
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, nil)
	rec := env.do(http.MethodGet, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestRenderAndCache(t *testing.T) {
	env := newTestEnv(t, nil)
	target := "/coupon?couponCode=KEDAI50&discountType=percentage&discountValue=50&discountPeriods=4&expirationDate=2026-10-22"

	first := env.do(http.MethodPost, target)
	require.Equal(t, http.StatusOK, first.Code, first.Body.String())
	assert.Equal(t, "image/png", first.Header().Get("Content-Type"))
	assert.Equal(t, "true", first.Header().Get("X-Coupon-Rendered"))
	w, h := pngSize(t, first.Body.Bytes())
	assert.Equal(t, render.CardWidth, w)
	assert.Equal(t, render.CardHeight, h)

	second := env.do(http.MethodPost, target)
	require.Equal(t, http.StatusOK, second.Code)
	assert.Equal(t, "false", second.Header().Get("X-Coupon-Rendered"))
	assert.Equal(t, first.Body.Bytes(), second.Body.Bytes())
	assert.Equal(t, int32(1), env.renderer.calls.Load())

	_, err := os.Stat(filepath.Join(env.cfg.Storage.Dir, "KEDAI50.png"))
	assert.NoError(t, err)
}

func TestRenderVariantOverride(t *testing.T) {
	env := newTestEnv(t, nil)
	rec := env.do(http.MethodPost, "/coupon?couponCode=PLAIN1&variant=simple")
	require.Equal(t, http.StatusOK, rec.Code)
	w, h := pngSize(t, rec.Body.Bytes())
	assert.Equal(t, render.SimpleWidth, w)
	assert.Equal(t, render.SimpleHeight, h)
}

func TestRenderRejectsBadInput(t *testing.T) {
	env := newTestEnv(t, nil)

	tests := []struct {
		name   string
		target string
	}{
		{"missing code", "/coupon?discountType=fixed"},
		{"traversal", "/coupon?couponCode=..%2Fetc"},
		{"value without type", "/coupon?couponCode=ABC&discountValue=10"},
		{"bad number", "/coupon?couponCode=ABC&discountValue=ten"},
		{"bad date", "/coupon?couponCode=ABC&expirationDate=tomorrow"},
		{"unknown variant", "/coupon?couponCode=ABC&variant=poster"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(http.MethodPost, tt.target)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, errorBody(t, rec), "invalid metadata")
		})
	}

	// Nothing was stored for the rejected code.
	assert.Equal(t, http.StatusNotFound, env.do(http.MethodDelete, "/coupon?couponCode=ABC").Code)
}

func TestRenderMissingBackground(t *testing.T) {
	env := newTestEnv(t, nil)
	require.NoError(t, os.Remove(filepath.Join(env.cfg.Render.AssetDir, env.cfg.Render.CardBackground)))

	rec := env.do(http.MethodPost, "/coupon?couponCode=NOBG")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, errorBody(t, rec), "asset not found")

	// Nothing is stored after a failed render.
	rec = env.do(http.MethodDelete, "/coupon?couponCode=NOBG")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestThumb(t *testing.T) {
	env := newTestEnv(t, nil)

	rendered := env.do(http.MethodPost, "/coupon?couponCode=THUMB1")
	require.Equal(t, http.StatusOK, rendered.Code)

	rec := env.do(http.MethodGet, "/coup/thumb/THUMB1")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.Equal(t, rendered.Body.Bytes(), rec.Body.Bytes())

	rec = env.do(http.MethodGet, "/coup/thumb/UNKNOWN")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, fallbackPNG, rec.Body.Bytes())

	scrape := env.do(http.MethodGet, "/metrics")
	assert.Contains(t, scrape.Body.String(), `coupon_image_cache_lookups_total{result="hit"} 1`)
	assert.Contains(t, scrape.Body.String(), `coupon_image_cache_lookups_total{result="miss"} 1`)
}

func TestThumbWithoutFallback(t *testing.T) {
	env := newTestEnv(t, nil)
	require.NoError(t, os.Remove(filepath.Join(env.cfg.Render.AssetDir, "404coupon.png")))

	rec := env.do(http.MethodGet, "/coup/thumb/UNKNOWN")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "404coupon.png not found.", rec.Body.String())
}

func TestClaim(t *testing.T) {
	env := newTestEnv(t, nil)
	require.Equal(t, http.StatusOK, env.do(http.MethodPost, "/coupon?couponCode=CLAIM1").Code)

	rec := env.do(http.MethodDelete, "/coupon?couponCode=CLAIM1")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, claimedMessage, rec.Body.String())

	rec = env.do(http.MethodDelete, "/coupon?couponCode=CLAIM1")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, notFoundMessage, rec.Body.String())

	// The thumbnail falls back once the image is gone.
	rec = env.do(http.MethodGet, "/coup/thumb/CLAIM1")
	assert.Equal(t, fallbackPNG, rec.Body.Bytes())
}

func TestSharePage(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(http.MethodGet, "/coupon?couponCode=KEDAI50")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))

	body := rec.Body.String()
	assert.Contains(t, body, "<title>Kupon - KEDAI50</title>")
	assert.Contains(t, body, `content="https://dev.coupon.kedaimaster.com/coup/thumb/KEDAI50"`)
	assert.Contains(t, body, shareDescription)
	assert.Contains(t, body, `content="385"`)
	assert.Contains(t, body, "https://dev.kedaimaster.com/?couponCode=KEDAI50&amp;modal=claim-coupon")
	assert.Contains(t, body, `http-equiv="refresh"`)
}

func TestSharePageRequiresCode(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(http.MethodGet, "/coupon")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid metadata: couponCode is required", errorBody(t, rec))

	rec = env.do(http.MethodGet, "/coupon?couponCode=%3Cscript%3E")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTokenEndpoint(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(http.MethodGet, "/token?couponCode=KEDAI50")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp tokenResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "KEDAI50", resp.CouponCode)
	assert.True(t, strings.HasPrefix(resp.ShareURL, "https://dev.coupon.kedaimaster.com/coupon?token="))

	code, err := env.codec.Decode(resp.Token)
	require.NoError(t, err)
	assert.Equal(t, "KEDAI50", code)

	rec = env.do(http.MethodGet, "/token?couponCode=a/b")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTokenInput(t *testing.T) {
	env := newTestEnv(t, func(c *config.Config) { c.Links.Input = config.InputToken })

	tok, err := env.codec.Encode("SECRET7")
	require.NoError(t, err)

	rec := env.do(http.MethodPost, "/coupon?token="+tok+"&discountType=fixed&discountValue=25000")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	_, err = os.Stat(filepath.Join(env.cfg.Storage.Dir, "SECRET7.png"))
	assert.NoError(t, err)

	rec = env.do(http.MethodGet, "/coup/thumb/"+tok)
	assert.NotEqual(t, fallbackPNG, rec.Body.Bytes())

	rec = env.do(http.MethodGet, "/coupon?token="+tok)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "/coup/thumb/"+tok)
	// The claim page receives the token under its own parameter.
	assert.Contains(t, rec.Body.String(), "https://dev.kedaimaster.com/?modal=claim-coupon&amp;token="+tok)
	assert.NotContains(t, rec.Body.String(), "couponCode=")

	// Raw codes are not accepted as tokens.
	rec = env.do(http.MethodDelete, "/coupon?token=SECRET7")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, errorBody(t, rec), "invalid token")

	rec = env.do(http.MethodDelete, "/coupon?token="+tok)
	assert.Equal(t, http.StatusOK, rec.Code)

	scrape := env.do(http.MethodGet, "/metrics")
	assert.Contains(t, scrape.Body.String(), "coupon_token_decode_failures_total 1")
}

func TestCORSPreflight(t *testing.T) {
	env := newTestEnv(t, nil)

	req := httptest.NewRequest(http.MethodOptions, "/coupon", nil)
	req.Header.Set("Origin", "https://dev.api.kedaimaster.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodDelete)
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)

	assert.Equal(t, "https://dev.api.kedaimaster.com", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), http.MethodDelete)

	req = httptest.NewRequest(http.MethodOptions, "/coupon", nil)
	req.Header.Set("Origin", "https://evil.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodDelete)
	rec = httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRequestID(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(http.MethodGet, "/health")
	assert.Len(t, rec.Header().Get(requestIDHeader), 36)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(requestIDHeader, "abc-123")
	rec = httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	assert.Equal(t, "abc-123", rec.Header().Get(requestIDHeader))
}

func TestRequestMetricsUseRoutePattern(t *testing.T) {
	env := newTestEnv(t, nil)
	env.do(http.MethodGet, "/coup/thumb/ANY1")

	scrape := env.do(http.MethodGet, "/metrics")
	assert.Contains(t, scrape.Body.String(), `coupon_http_requests_total{method="GET",route="/coup/thumb/{ref}",status="200"} 1`)
}

func TestRateLimit(t *testing.T) {
	env := newTestEnv(t, func(c *config.Config) {
		c.RateLimit.RPS = 1
		c.RateLimit.Burst = 2
	})

	for i := 0; i < 2; i++ {
		assert.Equal(t, http.StatusOK, env.do(http.MethodGet, "/coupon?couponCode=RL1").Code)
	}
	rec := env.do(http.MethodGet, "/coupon?couponCode=RL1")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))

	// Health checks are not limited.
	assert.Equal(t, http.StatusOK, env.do(http.MethodGet, "/health").Code)
}

func TestRecovery(t *testing.T) {
	h := recovery(zap.NewNop())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "internal server error", errorBody(t, rec))
}

func TestClientIP(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "10.0.0.1:5555"
	r.Header.Set("X-Forwarded-For", "203.0.113.9")
	r.Header.Set("X-Real-IP", "198.51.100.4")
	assert.Equal(t, "10.0.0.1", clientIP(r))
}

func rateLimitedEnv(t *testing.T, trustProxy bool) *testEnv {
	return newTestEnv(t, func(c *config.Config) {
		c.Server.TrustProxy = trustProxy
		c.RateLimit.RPS = 1
		c.RateLimit.Burst = 1
	})
}

func getFrom(env *testEnv, forwardedFor string) int {
	req := httptest.NewRequest(http.MethodGet, "/coupon?couponCode=RL2", nil)
	req.Header.Set("X-Forwarded-For", forwardedFor)
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	return rec.Code
}

func TestRateLimitIgnoresForwardedHeaders(t *testing.T) {
	env := rateLimitedEnv(t, false)

	assert.Equal(t, http.StatusOK, getFrom(env, "203.0.113.1"))
	assert.Equal(t, http.StatusTooManyRequests, getFrom(env, "203.0.113.2"))
	assert.Equal(t, http.StatusTooManyRequests, getFrom(env, "203.0.113.3"))
}

func TestRateLimitBehindTrustedProxy(t *testing.T) {
	env := rateLimitedEnv(t, true)

	assert.Equal(t, http.StatusOK, getFrom(env, "203.0.113.1"))
	assert.Equal(t, http.StatusTooManyRequests, getFrom(env, "203.0.113.1"))
	assert.Equal(t, http.StatusOK, getFrom(env, "203.0.113.2"))
}

func TestUnknownPathsShareOneMetricSeries(t *testing.T) {
	env := newTestEnv(t, nil)
	for i := 0; i < 20; i++ {
		assert.Equal(t, http.StatusNotFound, env.do(http.MethodGet, "/random-"+strconv.Itoa(i)).Code)
	}

	scrape := env.do(http.MethodGet, "/metrics").Body.String()
	assert.NotContains(t, scrape, "/random-")
	assert.Contains(t, scrape, `coupon_http_requests_total{method="GET",route="unmatched",status="404"} 20`)
}
