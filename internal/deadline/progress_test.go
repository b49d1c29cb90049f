package deadline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/licitaflow/stagegate/internal/domain"
)

func newTestCalculator(t *testing.T) *Calculator {
	t.Helper()
	c, err := NewCalculator("")
	require.NoError(t, err)
	return c
}

func date(t *testing.T, c *Calculator, v string) time.Time {
	t.Helper()
	d, err := c.ParseDate(v)
	require.NoError(t, err)
	return d
}

func TestBusinessDaysBetween(t *testing.T) {
	c := newTestCalculator(t)

	tests := []struct {
		name string
		a, b string
		want int
	}{
		{"mon to fri", "2024-01-01", "2024-01-05", 5},
		{"mon to sun", "2024-01-01", "2024-01-07", 5},
		{"single weekday", "2024-01-03", "2024-01-03", 1},
		{"single saturday", "2024-01-06", "2024-01-06", 0},
		{"weekend only", "2024-01-06", "2024-01-07", 0},
		{"two weeks", "2024-01-01", "2024-01-14", 10},
		{"reversed range", "2024-01-05", "2024-01-01", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := BusinessDaysBetween(date(t, c, tt.a), date(t, c, tt.b))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCalculate_MidRange(t *testing.T) {
	c := newTestCalculator(t)

	p := c.Calculate(date(t, c, "2024-01-01"), date(t, c, "2024-01-10"), date(t, c, "2024-01-05"))
	assert.Equal(t, 8, p.TotalDays)
	assert.Equal(t, 5, p.ElapsedDays)
	assert.Greater(t, p.Percent, 0)
	assert.Less(t, p.Percent, 100)
	assert.Equal(t, 63, p.Percent)
	assert.Equal(t, TierOnTrack, p.Tier)
}

func TestCalculate_TodayIsEnd(t *testing.T) {
	c := newTestCalculator(t)

	p := c.Calculate(date(t, c, "2024-01-01"), date(t, c, "2024-01-10"), date(t, c, "2024-01-10"))
	assert.Equal(t, 100, p.Percent)
	assert.Equal(t, TierAtRisk, p.Tier)
}

func TestCalculate_PastDeadlineIsOverdue(t *testing.T) {
	c := newTestCalculator(t)

	p := c.Calculate(date(t, c, "2024-01-01"), date(t, c, "2024-01-10"), date(t, c, "2024-01-12"))
	assert.Equal(t, 100, p.Percent, "display percent stays clamped")
	assert.Equal(t, 8, p.ElapsedDays)
	assert.Equal(t, 125, p.RawPercent)
	assert.Equal(t, TierOverdue, p.Tier)
}

func TestCalculate_BeforeStart(t *testing.T) {
	c := newTestCalculator(t)

	p := c.Calculate(date(t, c, "2024-01-08"), date(t, c, "2024-01-12"), date(t, c, "2024-01-01"))
	assert.Equal(t, 0, p.Percent)
	assert.Equal(t, 0, p.ElapsedDays)
	assert.Equal(t, TierOnTrack, p.Tier)
}

func TestCalculate_WeekendOnlyRangeHasOneTotalDay(t *testing.T) {
	c := newTestCalculator(t)

	p := c.Calculate(date(t, c, "2024-01-06"), date(t, c, "2024-01-07"), date(t, c, "2024-01-07"))
	assert.Equal(t, 1, p.TotalDays)
	assert.Equal(t, 0, p.Percent)
}

func TestCalculate_UsesOrganizationTimezone(t *testing.T) {
	c := newTestCalculator(t)

	// 01:00 UTC on Saturday is still Friday evening in São Paulo.
	today := time.Date(2024, 1, 6, 1, 0, 0, 0, time.UTC)
	p := c.Calculate(date(t, c, "2024-01-01"), date(t, c, "2024-01-12"), today)
	assert.Equal(t, 5, p.ElapsedDays)
}

func TestTierFor(t *testing.T) {
	assert.Equal(t, TierOnTrack, TierFor(0))
	assert.Equal(t, TierOnTrack, TierFor(70))
	assert.Equal(t, TierAtRisk, TierFor(71))
	assert.Equal(t, TierAtRisk, TierFor(100))
	assert.Equal(t, TierOverdue, TierFor(101))
}

func TestParseDate_Formats(t *testing.T) {
	c := newTestCalculator(t)

	iso := date(t, c, "2024-03-15")
	br := date(t, c, "15/03/2024")
	rfc := date(t, c, "2024-03-15T23:30:00-03:00")

	for _, d := range []time.Time{iso, br, rfc} {
		y, m, day := d.Date()
		assert.Equal(t, 2024, y)
		assert.Equal(t, time.March, m)
		assert.Equal(t, 15, day)
	}
}

func TestParseDate_TimestampKeepsCivilDay(t *testing.T) {
	c := newTestCalculator(t)

	d := date(t, c, "2024-01-01T12:00:00-03:00")
	assert.True(t, date(t, c, "2024-01-01").Equal(d), "got %v", d)
	assert.True(t, d.Equal(c.civil(d)), "civil moved %v", d)

	// 02:00 UTC is still the previous evening in São Paulo.
	prev := date(t, c, "2024-01-01T02:00:00Z")
	assert.True(t, date(t, c, "2023-12-31").Equal(prev), "got %v", prev)
}

func TestCalculateStrings_TimestampMatchesPlainDates(t *testing.T) {
	c := newTestCalculator(t)

	plain, err := c.CalculateStrings("2024-01-01", "2024-01-05", "2024-01-03")
	require.NoError(t, err)
	assert.Equal(t, Progress{Percent: 60, ElapsedDays: 3, TotalDays: 5, RawPercent: 60, Tier: TierOnTrack}, plain)

	stamped, err := c.CalculateStrings(
		"2024-01-01T12:00:00-03:00",
		"2024-01-05T12:00:00-03:00",
		"2024-01-03T12:00:00-03:00",
	)
	require.NoError(t, err)
	assert.Equal(t, plain, stamped)

	br, err := c.CalculateStrings("01/01/2024", "05/01/2024", "03/01/2024")
	require.NoError(t, err)
	assert.Equal(t, plain, br)
}

func TestToday_FeedsBackIntoCalculate(t *testing.T) {
	c := newTestCalculator(t)

	// Wednesday 10:00 in São Paulo.
	today := c.Today(time.Date(2024, 1, 3, 13, 0, 0, 0, time.UTC))
	p := c.Calculate(date(t, c, "2024-01-01"), date(t, c, "2024-01-05"), today)
	assert.Equal(t, 3, p.ElapsedDays)
}

func TestParseDate_Invalid(t *testing.T) {
	c := newTestCalculator(t)

	for _, v := range []string{"", "   ", "2024-13-01", "31/02/2024", "yesterday"} {
		_, err := c.ParseDate(v)
		assert.ErrorIs(t, err, domain.ErrInvalidDateInput, "input %q", v)
	}
}

func TestCalculateStrings_PropagatesInvalidDate(t *testing.T) {
	c := newTestCalculator(t)

	_, err := c.CalculateStrings("2024-01-01", "not-a-date", "2024-01-05")
	require.ErrorIs(t, err, domain.ErrInvalidDateInput)

	p, err := c.CalculateStrings("2024-01-01", "10/01/2024", "2024-01-05")
	require.NoError(t, err)
	assert.Equal(t, 63, p.Percent)
}

func TestNewCalculator_UnknownTimezone(t *testing.T) {
	_, err := NewCalculator("Mars/Olympus_Mons")
	assert.Error(t, err)
}
