package server

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"coupon-share-service/internal/apperr"
	"coupon-share-service/internal/coupon"
	"coupon-share-service/internal/logger"
	"coupon-share-service/internal/render"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

const (
	claimedMessage  = "Kupon berhasil diklaim dan gambar dihapus"
	notFoundMessage = "Kupon tidak ditemukan atau sudah dihapus"
)

// resolve turns a coupon reference (a code or a token, depending on
// links.input) into a validated coupon code.
func (s *Server) resolve(ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", apperr.InvalidMetadata(s.refParam() + " is required")
	}

	code := ref
	if s.tokenInput() {
		decoded, err := s.codec.Decode(ref)
		if err != nil {
			s.metrics.TokenFailure()
			return "", err
		}
		code = decoded
	}

	if err := coupon.ValidateCode(code); err != nil {
		return "", err
	}
	return code, nil
}

// handleSharePage serves the HTML page social networks scrape for previews.
// Browsers are redirected to the claim page straight away.
func (s *Server) handleSharePage(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context(), s.logger)

	ref := strings.TrimSpace(r.URL.Query().Get(s.refParam()))
	code, err := s.resolve(ref)
	if err != nil {
		writeError(w, log, err)
		return
	}

	redirect, err := s.claimURL(ref)
	if err != nil {
		writeError(w, log, err)
		return
	}

	base := strings.TrimRight(s.cfg.Links.PublicBaseURL, "/")
	width, height := s.render.DefaultVariant().Size()
	data := sharePageData{
		Title:       "Kupon - " + code,
		Description: shareDescription,
		ImageURL:    base + "/coup/thumb/" + url.PathEscape(ref),
		ImageWidth:  width,
		ImageHeight: height,
		PageURL:     base + "/coupon?" + url.Values{s.refParam(): {ref}}.Encode(),
		RedirectURL: redirect,
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if err := s.page.Execute(w, data); err != nil {
		log.Error("share page render failed", zap.Error(err))
	}
}

func (s *Server) claimURL(ref string) (string, error) {
	u, err := url.Parse(s.cfg.Links.ClaimURL)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set(s.refParam(), ref)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// handleRender renders the coupon image unless one is already stored for
// the code, and returns the stored bytes.
func (s *Server) handleRender(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context(), s.logger)
	q := r.URL.Query()

	code, err := s.resolve(q.Get(s.refParam()))
	if err != nil {
		writeError(w, log, err)
		return
	}
	q.Set(coupon.ParamCode, code)

	meta, err := coupon.ParseQuery(q)
	if err != nil {
		writeError(w, log, err)
		return
	}

	variant := s.render.DefaultVariant()
	if v := q.Get("variant"); v != "" {
		if variant, err = render.ParseVariant(v); err != nil {
			writeError(w, log, err)
			return
		}
	}

	ctx := r.Context()
	if timeout := s.cfg.Server.RenderTimeout.Duration; timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	data, rendered, err := s.cache.GetOrRender(ctx, code, func(ctx context.Context) ([]byte, error) {
		start := time.Now()
		img, err := s.render.Render(ctx, meta, variant)
		s.metrics.ObserveRender(string(variant), time.Since(start), err)
		return img, err
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			log.Warn("render timed out", zap.String("code", code))
		}
		writeError(w, log, err)
		return
	}

	if rendered {
		log.Info("coupon image rendered",
			zap.String("code", code),
			zap.String("variant", string(variant)),
			zap.Int("bytes", len(data)),
		)
	}
	w.Header().Set("X-Coupon-Rendered", strconv.FormatBool(rendered))
	writePNG(w, data)
}

// handleClaim removes the stored image once a coupon has been claimed.
func (s *Server) handleClaim(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context(), s.logger)

	code, err := s.resolve(r.URL.Query().Get(s.refParam()))
	if err != nil {
		writeError(w, log, err)
		return
	}

	found, err := s.cache.Delete(r.Context(), code)
	if err != nil {
		writeError(w, log, err)
		return
	}
	s.metrics.Claim(found)

	if !found {
		writeText(w, http.StatusNotFound, notFoundMessage)
		return
	}
	log.Info("coupon claimed", zap.String("code", code))
	writeText(w, http.StatusOK, claimedMessage)
}

// handleThumb serves the preview image. Unknown or unreadable references get
// the fallback image so link previews never break.
func (s *Server) handleThumb(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context(), s.logger)

	code, err := s.resolve(chi.URLParam(r, "ref"))
	if err == nil {
		data, err := s.cache.Get(r.Context(), code)
		if err == nil {
			s.metrics.CacheLookup("hit")
			writePNG(w, data)
			return
		}
		if !errors.Is(err, apperr.ErrCacheMiss) {
			log.Error("thumbnail lookup failed", zap.String("code", code), zap.Error(err))
		}
		s.metrics.CacheLookup("miss")
	} else {
		log.Debug("unresolvable thumbnail reference", zap.Error(err))
	}

	fallback, err := s.assets.Raw(s.cfg.Render.FallbackImage)
	if err != nil {
		if !errors.Is(err, apperr.ErrAssetNotFound) {
			log.Error("fallback image unreadable", zap.Error(err))
		}
		writeText(w, http.StatusNotFound, s.cfg.Render.FallbackImage+" not found.")
		return
	}
	s.metrics.CacheLookup("fallback")
	writePNG(w, fallback)
}

type tokenResponse struct {
	CouponCode string `json:"couponCode"`
	Token      string `json:"token"`
	ShareURL   string `json:"shareUrl"`
}

// handleToken issues the encrypted reference for a coupon code together with
// the share link that carries it.
func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context(), s.logger)

	code := strings.TrimSpace(r.URL.Query().Get(coupon.ParamCode))
	if err := coupon.ValidateCode(code); err != nil {
		writeError(w, log, err)
		return
	}

	token, err := s.codec.Encode(code)
	if err != nil {
		writeError(w, log, err)
		return
	}

	base := strings.TrimRight(s.cfg.Links.PublicBaseURL, "/")
	writeJSON(w, http.StatusOK, tokenResponse{
		CouponCode: code,
		Token:      token,
		ShareURL:   base + "/coupon?" + url.Values{"token": {token}}.Encode(),
	})
}
