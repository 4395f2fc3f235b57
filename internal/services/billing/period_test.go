package billing

import (
	"testing"
	"time"

	"chainpay/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestAddInterval(t *testing.T) {
	tests := []struct {
		name         string
		start        time.Time
		intervalType string
		count        int
		want         time.Time
	}{
		{
			name:  "one day",
			start: date(2024, time.March, 10), intervalType: models.IntervalDay, count: 1,
			want: date(2024, time.March, 11),
		},
		{
			name:  "two weeks",
			start: date(2024, time.March, 25), intervalType: models.IntervalWeek, count: 2,
			want: date(2024, time.April, 8),
		},
		{
			name:  "month-end clamps into leap February",
			start: date(2024, time.January, 31), intervalType: models.IntervalMonth, count: 1,
			want: date(2024, time.February, 29),
		},
		{
			name:  "month-end clamps into non-leap February",
			start: date(2023, time.January, 31), intervalType: models.IntervalMonth, count: 1,
			want: date(2023, time.February, 28),
		},
		{
			name:  "clamped month does not stick for later months",
			start: date(2024, time.January, 31), intervalType: models.IntervalMonth, count: 2,
			want: date(2024, time.March, 31),
		},
		{
			name:  "three months across year boundary",
			start: date(2024, time.November, 15), intervalType: models.IntervalMonth, count: 3,
			want: date(2025, time.February, 15),
		},
		{
			name:  "leap day plus one year clamps",
			start: date(2024, time.February, 29), intervalType: models.IntervalYear, count: 1,
			want: date(2025, time.February, 28),
		},
		{
			name:  "leap day plus four years keeps leap day",
			start: date(2024, time.February, 29), intervalType: models.IntervalYear, count: 4,
			want: date(2028, time.February, 29),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := AddInterval(tt.start, tt.intervalType, tt.count)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAddIntervalRejectsBadInput(t *testing.T) {
	_, err := AddInterval(date(2024, time.January, 1), "fortnight", 1)
	assert.ErrorIs(t, err, ErrInvalidInterval)

	_, err = AddInterval(date(2024, time.January, 1), models.IntervalMonth, 0)
	assert.ErrorIs(t, err, ErrInvalidInterval)
}

func TestAddIntervalPreservesClock(t *testing.T) {
	start := time.Date(2024, time.January, 31, 14, 30, 5, 0, time.UTC)
	got, err := AddInterval(start, models.IntervalMonth, 1)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, time.February, 29, 14, 30, 5, 0, time.UTC), got)
}
