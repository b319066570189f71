package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestISOWeekday(t *testing.T) {
	// 2026-03-02 is a Monday.
	monday := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)

	for i, want := range []int{1, 2, 3, 4, 5, 6, 7} {
		day := monday.AddDate(0, 0, i)
		assert.Equal(t, want, ISOWeekday(day), day.Weekday().String())
	}
}

func TestISOWeekday_FollowsLocation(t *testing.T) {
	// Sunday 23:30 UTC is already Monday in UTC+8.
	sunday := time.Date(2026, 3, 8, 23, 30, 0, 0, time.UTC)
	assert.Equal(t, 7, ISOWeekday(sunday))
	assert.Equal(t, 1, ISOWeekday(sunday.In(time.FixedZone("UTC+8", 8*3600))))
}
