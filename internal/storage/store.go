package storage

import (
	"context"
	"strings"

	"coupon-share-service/internal/apperr"
)

// Store persists rendered coupon images keyed by coupon code.
type Store interface {
	Has(ctx context.Context, code string) (bool, error)
	// Get returns apperr.ErrCacheMiss when no image is stored for code.
	Get(ctx context.Context, code string) ([]byte, error)
	Put(ctx context.Context, code string, data []byte) error
	// Delete reports whether an image existed.
	Delete(ctx context.Context, code string) (bool, error)
}

const imageExt = ".png"

// checkKey rejects keys that could escape the storage namespace. Codes are
// validated upstream; this guards stores used directly.
func checkKey(code string) error {
	if code == "" || code == "." || code == ".." || strings.ContainsAny(code, "/\\\x00") {
		return apperr.InvalidMetadata("coupon code is not a valid storage key")
	}
	return nil
}
