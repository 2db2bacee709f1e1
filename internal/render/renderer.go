package render

import (
	"context"
	"fmt"
	"strings"
	"time"

	"coupon-share-service/internal/apperr"
	"coupon-share-service/internal/coupon"
)

// Variant selects the coupon skin.
type Variant string

const (
	VariantCard   Variant = "card"
	VariantSimple Variant = "simple"
)

// ParseVariant accepts "card" or "simple", case-insensitively.
func ParseVariant(s string) (Variant, error) {
	switch v := Variant(strings.ToLower(strings.TrimSpace(s))); v {
	case VariantCard, VariantSimple:
		return v, nil
	default:
		return "", apperr.InvalidMetadata(fmt.Sprintf("unknown variant %q", s))
	}
}

// Size returns the canvas dimensions of the variant.
func (v Variant) Size() (width, height int) {
	if v == VariantSimple {
		return SimpleWidth, SimpleHeight
	}
	return CardWidth, CardHeight
}

type Options struct {
	Variant    Variant
	Background string
	Now        func() time.Time
}

// Renderer turns coupon metadata into PNG bytes. It holds no per-request
// state and is safe for concurrent use.
type Renderer struct {
	assets     AssetStore
	variant    Variant
	background string
	now        func() time.Time
}

func New(assets AssetStore, opts Options) *Renderer {
	if opts.Variant == "" {
		opts.Variant = VariantCard
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Renderer{
		assets:     assets,
		variant:    opts.Variant,
		background: opts.Background,
		now:        opts.Now,
	}
}

// DefaultVariant is the skin used when a request does not pick one.
func (r *Renderer) DefaultVariant() Variant {
	return r.variant
}

// Render produces the PNG for meta. An empty variant means the default one.
// A cancelled ctx abandons the render without output.
func (r *Renderer) Render(ctx context.Context, meta coupon.Metadata, variant Variant) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := meta.Validate(); err != nil {
		return nil, err
	}
	if variant == "" {
		variant = r.variant
	}

	var (
		img []byte
		err error
	)
	switch variant {
	case VariantSimple:
		img, err = RenderSimple(meta.Code)
	case VariantCard:
		img, err = r.renderCard(meta)
	default:
		return nil, apperr.InvalidMetadata(fmt.Sprintf("unknown variant %q", variant))
	}
	if err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return img, nil
}

func (r *Renderer) renderCard(meta coupon.Metadata) ([]byte, error) {
	labels, err := coupon.BuildLabels(meta, r.now())
	if err != nil {
		return nil, err
	}
	bg, err := r.assets.Background(r.background)
	if err != nil {
		return nil, fmt.Errorf("load card background: %w", err)
	}
	img, err := RenderCard(meta.Code, labels, bg)
	if err != nil {
		return nil, fmt.Errorf("render card: %w", err)
	}
	return img, nil
}
