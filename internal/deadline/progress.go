// Package deadline computes business-day progress of a stage against its deadline.
package deadline

import (
	"fmt"
	"math"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/licitaflow/stagegate/internal/domain"
)

// DefaultTimezone is the organization's fixed timezone.
const DefaultTimezone = "America/Sao_Paulo"

// Tier classifies progress for presentation.
type Tier string

const (
	TierOnTrack Tier = "on_track"
	TierAtRisk  Tier = "at_risk"
	TierOverdue Tier = "overdue"
)

// Progress is the elapsed-vs-total business-day progress of a stage.
// Percent is clamped to [0, 100] for display; RawPercent is not clamped and
// drives Tier, so a stage past its deadline is reported as overdue.
type Progress struct {
	Percent     int  `json:"percent"`
	ElapsedDays int  `json:"elapsedDays"`
	TotalDays   int  `json:"totalDays"`
	RawPercent  int  `json:"rawPercent"`
	Tier        Tier `json:"tier"`
}

// Calculator computes progress using civil dates in a fixed location.
type Calculator struct {
	Location *time.Location
}

// NewCalculator creates a calculator for the named IANA timezone. An empty
// name selects DefaultTimezone.
func NewCalculator(timezone string) (*Calculator, error) {
	if timezone == "" {
		timezone = DefaultTimezone
	}
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", timezone, err)
	}
	return &Calculator{Location: loc}, nil
}

// Calculate returns the progress of today within [start, end].
func (c *Calculator) Calculate(start, end, today time.Time) Progress {
	s, e, t := c.civil(start), c.civil(end), c.civil(today)

	total := BusinessDaysBetween(s, e)
	if total < 1 {
		total = 1
	}
	rawElapsed := BusinessDaysBetween(s, t)
	elapsed := rawElapsed
	if elapsed > total {
		elapsed = total
	}

	raw := percentOf(rawElapsed, total)
	return Progress{
		Percent:     clamp(percentOf(elapsed, total), 0, 100),
		ElapsedDays: elapsed,
		TotalDays:   total,
		RawPercent:  raw,
		Tier:        TierFor(raw),
	}
}

// CalculateStrings parses the three dates and calculates progress.
func (c *Calculator) CalculateStrings(start, end, today string) (Progress, error) {
	s, err := c.ParseDate(start)
	if err != nil {
		return Progress{}, err
	}
	e, err := c.ParseDate(end)
	if err != nil {
		return Progress{}, err
	}
	t, err := c.ParseDate(today)
	if err != nil {
		return Progress{}, err
	}
	return c.Calculate(s, e, t), nil
}

// Today returns the current civil date in the calculator's location.
func (c *Calculator) Today(now time.Time) time.Time {
	return c.civil(now)
}

var dateLayouts = []string{"2006-01-02", "02/01/2006"}

// ParseDate parses a calendar date given as YYYY-MM-DD, dd/MM/yyyy or an
// RFC 3339 timestamp, which is converted to the calculator's location first.
func (c *Calculator) ParseDate(value string) (time.Time, error) {
	v := strings.TrimSpace(value)
	if v == "" {
		return time.Time{}, domain.NewEngineError(domain.ErrInvalidDateInput.Code, domain.ErrInvalidDateInput.Message+": empty date")
	}
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, v, c.Location); err == nil {
			return t, nil
		}
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return c.civil(t), nil
	}
	return time.Time{}, domain.NewEngineError(
		domain.ErrInvalidDateInput.Code,
		fmt.Sprintf("%s: %q", domain.ErrInvalidDateInput.Message, value),
	)
}

// civil truncates t to midnight of its calendar day in the calculator's
// location. It is idempotent, so parsed dates may pass through it again.
func (c *Calculator) civil(t time.Time) time.Time {
	y, m, d := t.In(c.Location).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, c.Location)
}

// BusinessDaysBetween counts Monday-to-Friday days in [a, b], inclusive,
// using each argument's own calendar date. It returns 0 when b is before a.
func BusinessDaysBetween(a, b time.Time) int {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	day := time.Date(ay, am, ad, 0, 0, 0, 0, time.UTC)
	last := time.Date(by, bm, bd, 0, 0, 0, 0, time.UTC)

	count := 0
	for !day.After(last) {
		if wd := day.Weekday(); wd != time.Saturday && wd != time.Sunday {
			count++
		}
		day = day.AddDate(0, 0, 1)
	}
	return count
}

// TierFor classifies a progress percentage.
func TierFor(percent int) Tier {
	switch {
	case percent > 100:
		return TierOverdue
	case percent > 70:
		return TierAtRisk
	default:
		return TierOnTrack
	}
}

func percentOf(part, total int) int {
	return int(math.Round(100 * float64(part) / float64(total)))
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
