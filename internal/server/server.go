package server

import (
	"context"
	"html/template"
	"net/http"

	"coupon-share-service/internal/cache"
	"coupon-share-service/internal/config"
	"coupon-share-service/internal/coupon"
	"coupon-share-service/internal/metrics"
	"coupon-share-service/internal/render"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

// TokenCodec turns coupon codes into opaque link tokens and back.
type TokenCodec interface {
	Encode(code string) (string, error)
	Decode(token string) (string, error)
}

type Renderer interface {
	Render(ctx context.Context, meta coupon.Metadata, variant render.Variant) ([]byte, error)
	DefaultVariant() render.Variant
}

// ImageCache is the subset of *cache.Cache the handlers use.
type ImageCache interface {
	Get(ctx context.Context, code string) ([]byte, error)
	Delete(ctx context.Context, code string) (bool, error)
	GetOrRender(ctx context.Context, code string, render cache.RenderFunc) ([]byte, bool, error)
}

type Assets interface {
	Raw(name string) ([]byte, error)
}

// Deps are the collaborators wired in by main. Codec may be nil when no token
// secret is configured; the /token route is then not mounted.
type Deps struct {
	Codec    TokenCodec
	Renderer Renderer
	Cache    ImageCache
	Assets   Assets
	Metrics  *metrics.Metrics
	Logger   *zap.Logger
}

type Server struct {
	cfg     *config.Config
	codec   TokenCodec
	render  Renderer
	cache   ImageCache
	assets  Assets
	metrics *metrics.Metrics
	logger  *zap.Logger
	limiter *RateLimiter
	page    *template.Template
}

func New(cfg *config.Config, deps Deps) *Server {
	if deps.Metrics == nil {
		deps.Metrics = metrics.New()
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &Server{
		cfg:     cfg,
		codec:   deps.Codec,
		render:  deps.Renderer,
		cache:   deps.Cache,
		assets:  deps.Assets,
		metrics: deps.Metrics,
		logger:  deps.Logger,
		limiter: NewRateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst),
		page:    template.Must(template.New("share").Parse(sharePage)),
	}
}

// Handler builds the HTTP router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	if s.cfg.Server.TrustProxy {
		r.Use(middleware.RealIP)
	}
	r.Use(requestLogger(s.logger, s.metrics))
	r.Use(recovery(s.logger))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.cfg.CORS.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
		ExposedHeaders: []string{requestIDHeader},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeText(w, http.StatusOK, "ok")
	})
	r.Handle("/metrics", s.metrics.Handler())

	r.Group(func(r chi.Router) {
		if s.cfg.RateLimit.RPS > 0 {
			r.Use(s.limiter.Middleware)
		}

		r.Get("/coupon", s.handleSharePage)
		r.Post("/coupon", s.handleRender)
		r.Delete("/coupon", s.handleClaim)
		r.Get("/coup/thumb/{ref}", s.handleThumb)
		if s.codec != nil {
			r.Get("/token", s.handleToken)
		}
	})

	return r
}

// Close releases background resources.
func (s *Server) Close() {
	s.limiter.Stop()
}

func (s *Server) tokenInput() bool {
	return s.cfg.Links.Input == config.InputToken
}

// refParam is the query parameter that carries a coupon reference.
func (s *Server) refParam() string {
	if s.tokenInput() {
		return "token"
	}
	return coupon.ParamCode
}
