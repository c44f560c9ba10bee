package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDaysBetween(t *testing.T) {
	a := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	b := time.Date(2021, 1, 1, 18, 30, 0, 0, time.UTC)

	assert.Equal(t, 366, DaysBetween(a, b))
	assert.Equal(t, -366, DaysBetween(b, a))
	assert.Equal(t, 0, DaysBetween(a, a))
}

func TestYearFraction(t *testing.T) {
	a := MustDate("2019-01-01")
	b := MustDate("2020-01-01")

	assert.InDelta(t, 365/DaysPerYear, YearFraction(a, b), 1e-12)
	assert.InDelta(t, 1.0, DaysToYears(365)*DaysPerYear/365, 1e-12)
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2022-06-30")
	require.NoError(t, err)
	assert.Equal(t, "2022-06-30", FormatDate(d))

	d, err = ParseDate("2022-06-30T15:04:05Z")
	require.NoError(t, err)
	assert.Equal(t, MustDate("2022-06-30"), d)

	_, err = ParseDate("30/06/2022")
	assert.Error(t, err)
}

func TestWithin(t *testing.T) {
	start := MustDate("2020-01-01")
	end := MustDate("2021-12-31")

	assert.True(t, Within(start, start, end))
	assert.True(t, Within(end, start, end))
	assert.True(t, Within(MustDate("2020-07-15"), start, end))
	assert.False(t, Within(MustDate("2019-12-31"), start, end))
	assert.False(t, Within(MustDate("2022-01-01"), start, end))
}
