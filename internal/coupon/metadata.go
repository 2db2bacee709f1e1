package coupon

import (
	"math"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"coupon-share-service/internal/apperr"

	"github.com/go-playground/validator/v10"
)

type DiscountType string

const (
	DiscountFixed        DiscountType = "fixed"
	DiscountPercentage   DiscountType = "percentage"
	DiscountSubscription DiscountType = "subscription"
)

// Query parameter names shared with the request-handling layer.
const (
	ParamCode            = "couponCode"
	ParamDiscountType    = "discountType"
	ParamDiscountValue   = "discountValue"
	ParamExpirationDate  = "expirationDate"
	ParamDiscountPeriods = "discountPeriods"
)

// MaxDiscountValue caps discountValue so labels stay printable.
const MaxDiscountValue = 1e12

// Metadata describes the terms printed on a coupon image. It is built per
// request and never persisted.
type Metadata struct {
	Code            string       `validate:"required,couponcode"`
	DiscountType    DiscountType `validate:"omitempty,oneof=fixed percentage subscription"`
	DiscountValue   float64      `validate:"gte=0,lte=1000000000000"`
	Expiration      *time.Time
	DiscountPeriods int `validate:"gte=0"`
}

var codePattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("couponcode", func(fl validator.FieldLevel) bool {
		return codePattern.MatchString(fl.Field().String())
	})
	return v
}

// ValidateCode rejects codes that are not safe to use as a storage key.
func ValidateCode(code string) error {
	if code == "" {
		return apperr.InvalidMetadata(ParamCode + " is required")
	}
	if !codePattern.MatchString(code) {
		return apperr.InvalidMetadata(ParamCode + " must match [A-Za-z0-9_-]{1,64}")
	}
	return nil
}

// Validate checks field constraints. Label-level requirements are checked
// when the labels are built.
func (m Metadata) Validate() error {
	if err := ValidateCode(m.Code); err != nil {
		return err
	}
	if err := validate.Struct(m); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok && len(verrs) > 0 {
			fe := verrs[0]
			return apperr.InvalidMetadata(fe.Field() + " failed " + fe.Tag() + " check")
		}
		return apperr.InvalidMetadata(err.Error())
	}
	return nil
}

// ParseQuery builds Metadata from flat query parameters. Only couponCode is
// mandatory; the remaining fields default to their zero value.
func ParseQuery(q url.Values) (Metadata, error) {
	m := Metadata{
		Code:         strings.TrimSpace(q.Get(ParamCode)),
		DiscountType: DiscountType(strings.ToLower(strings.TrimSpace(q.Get(ParamDiscountType)))),
	}

	if v := strings.TrimSpace(q.Get(ParamDiscountValue)); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return Metadata{}, apperr.InvalidMetadata(ParamDiscountValue + " must be a number")
		}
		if f > MaxDiscountValue {
			return Metadata{}, apperr.InvalidMetadata(ParamDiscountValue + " is too large")
		}
		m.DiscountValue = f
	}

	if v := strings.TrimSpace(q.Get(ParamDiscountPeriods)); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return Metadata{}, apperr.InvalidMetadata(ParamDiscountPeriods + " must be an integer")
		}
		m.DiscountPeriods = n
	}

	exp, err := ParseExpiration(q.Get(ParamExpirationDate))
	if err != nil {
		return Metadata{}, err
	}
	m.Expiration = exp

	if err := m.Validate(); err != nil {
		return Metadata{}, err
	}
	return m, nil
}

// ParseExpiration accepts a calendar date (UTC midnight) or an RFC 3339
// timestamp. Empty, "null" and "undefined" mean the coupon never expires.
func ParseExpiration(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	switch s {
	case "", "null", "undefined":
		return nil, nil
	}

	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return &t, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		t = t.UTC()
		return &t, nil
	}
	return nil, apperr.InvalidMetadata(ParamExpirationDate + " must be YYYY-MM-DD or RFC 3339")
}
