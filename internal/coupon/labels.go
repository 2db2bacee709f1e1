package coupon

import (
	"fmt"
	"math"
	"strconv"
	"time"

	"coupon-share-service/internal/apperr"
)

const day = 24 * time.Hour

// shortFormDays is the largest day count still printed as "N hari lagi".
const shortFormDays = 7

// Labels holds the text lines drawn on the card variant.
type Labels struct {
	Discount   string
	Period     string
	Expiration string
}

// BuildLabels computes every card label for m relative to now.
func BuildLabels(m Metadata, now time.Time) (Labels, error) {
	discount, err := DiscountLabel(m)
	if err != nil {
		return Labels{}, err
	}
	return Labels{
		Discount:   discount,
		Period:     PeriodLabel(m),
		Expiration: ExpirationLabel(m.Expiration, now),
	}, nil
}

// DiscountLabel describes the discount. A zero value always means a
// subscription coupon, whatever the declared type.
func DiscountLabel(m Metadata) (string, error) {
	switch {
	case m.DiscountValue == 0:
		return "kupon berlangganan", nil
	case m.DiscountType == DiscountFixed:
		return "Diskon Rp" + formatAmount(m.DiscountValue), nil
	case m.DiscountType == "":
		return "", apperr.InvalidMetadata(ParamDiscountType + " is required for a non-zero discount")
	default:
		return "Diskon " + formatAmount(m.DiscountValue) + "%", nil
	}
}

func PeriodLabel(m Metadata) string {
	if m.DiscountValue == 0 {
		return fmt.Sprintf("Masa berlangganan %d minggu", m.DiscountPeriods)
	}
	return fmt.Sprintf("Masa kupon %d minggu", m.DiscountPeriods)
}

// ExpirationLabel prints a countdown for coupons expiring within a week and
// the full Indonesian date otherwise.
func ExpirationLabel(exp *time.Time, now time.Time) string {
	if exp == nil {
		return "Tanpa kadaluarsa"
	}
	left := DaysLeft(*exp, now)
	if left <= shortFormDays {
		return fmt.Sprintf("Berlaku hingga %d hari lagi", left)
	}
	return "Berlaku hingga: " + FormatDateID(*exp)
}

// DaysLeft rounds the remaining time up to whole days, so 0.1 days left
// counts as 1. Past expirations yield zero or negative values.
func DaysLeft(exp, now time.Time) int {
	return int(math.Ceil(float64(exp.Sub(now)) / float64(day)))
}

func formatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
