package coupon

import (
	"fmt"
	"time"

	"github.com/go-playground/locales"
	localeid "github.com/go-playground/locales/id"
)

var indonesian locales.Translator = localeid.New()

// FormatDateID renders t in long Indonesian form, e.g. "Senin, 26 Oktober 2026".
// The calendar date is taken in UTC.
func FormatDateID(t time.Time) string {
	t = t.UTC()
	return fmt.Sprintf("%s, %d %s %d",
		indonesian.WeekdayWide(t.Weekday()),
		t.Day(),
		indonesian.MonthWide(t.Month()),
		t.Year(),
	)
}
