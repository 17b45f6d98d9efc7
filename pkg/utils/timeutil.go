package utils

import (
	"time"
)

// DateLayout is the day-granularity layout used for display.
const DateLayout = "2006-01-02"

// ET is the US Eastern time zone where the quoted exchanges trade.
var ET *time.Location

func init() {
	var err error
	ET, err = time.LoadLocation("America/New_York")
	if err != nil {
		// tz database missing; fixed EST offset is close enough for display
		ET = time.FixedZone("EST", -5*60*60)
	}
}

// NowET returns the current time in US Eastern time.
func NowET() time.Time {
	return time.Now().In(ET)
}

// StartOfDay truncates t to midnight in its own location.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// Window returns the [from, to] range covering the last days calendar days
// ending today (relative to now). from is midnight days ago, to is now.
func Window(now time.Time, days int) (from, to time.Time) {
	if days < 0 {
		days = 0
	}
	return StartOfDay(now).AddDate(0, 0, -days), now
}

// IsWeekend reports whether t falls on Saturday or Sunday.
func IsWeekend(t time.Time) bool {
	wd := t.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

// MarketOpenTime returns the regular session open (9:30 ET) for the day of t.
func MarketOpenTime(t time.Time) time.Time {
	d := t.In(ET)
	return time.Date(d.Year(), d.Month(), d.Day(), 9, 30, 0, 0, ET)
}

// MarketCloseTime returns the regular session close (16:00 ET) for the day of t.
func MarketCloseTime(t time.Time) time.Time {
	d := t.In(ET)
	return time.Date(d.Year(), d.Month(), d.Day(), 16, 0, 0, 0, ET)
}

// IsMarketOpenAt reports whether the regular session is running at t.
// Exchange holidays are not tracked.
func IsMarketOpenAt(t time.Time) bool {
	t = t.In(ET)
	if IsWeekend(t) {
		return false
	}
	return !t.Before(MarketOpenTime(t)) && t.Before(MarketCloseTime(t))
}

// MarketStatusAt returns a short human-readable session status for t.
func MarketStatusAt(t time.Time) string {
	t = t.In(ET)
	switch {
	case IsWeekend(t):
		return "CLOSED (Weekend)"
	case t.Before(MarketOpenTime(t)):
		return "PRE-MARKET"
	case t.Before(MarketCloseTime(t)):
		return "OPEN"
	default:
		return "CLOSED"
	}
}

// MarketStatus returns the session status right now.
func MarketStatus() string {
	return MarketStatusAt(NowET())
}

// FormatDate formats t as "2006-01-02".
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// FormatDateTime formats t as "2006-01-02 15:04:05 MST".
func FormatDateTime(t time.Time) string {
	return t.Format("2006-01-02 15:04:05 MST")
}
