package weather

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAlertActiveAt(t *testing.T) {
	T := time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)
	start := T.Add(-time.Hour)
	end := T.Add(time.Hour)

	windowed := Alert{CityID: 1, StartTime: start, EndTime: &end, IsActive: true}
	open := Alert{CityID: 1, StartTime: start, IsActive: true}
	inactive := Alert{CityID: 1, StartTime: start, EndTime: &end, IsActive: false}

	tests := []struct {
		name  string
		alert Alert
		now   time.Time
		want  bool
	}{
		{name: "inside window", alert: windowed, now: T, want: true},
		{name: "start is inclusive", alert: windowed, now: start, want: true},
		{name: "end is exclusive", alert: windowed, now: end, want: false},
		{name: "just before end", alert: windowed, now: end.Add(-time.Nanosecond), want: true},
		{name: "before start", alert: windowed, now: start.Add(-time.Nanosecond), want: false},
		{name: "no end at start", alert: open, now: start, want: true},
		{name: "no end years later", alert: open, now: T.AddDate(10, 0, 0), want: true},
		{name: "no end before start", alert: open, now: start.Add(-time.Second), want: false},
		{name: "inactive inside window", alert: inactive, now: T, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.alert.ActiveAt(tt.now))
		})
	}
}

func TestAlertActiveAt_IgnoresLocation(t *testing.T) {
	start := time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)
	tokyo := time.FixedZone("JST", 9*60*60)

	a := Alert{StartTime: start, IsActive: true}
	assert.True(t, a.ActiveAt(start.In(tokyo)))
}

func TestActiveFor(t *testing.T) {
	now := time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)
	future := now.Add(time.Minute)

	alerts := []Alert{
		{ID: 3, CityID: 1, StartTime: now, IsActive: true},
		{ID: 1, CityID: 2, StartTime: now, IsActive: true},
		{ID: 2, CityID: 1, StartTime: future, IsActive: true},
		{ID: 4, CityID: 1, StartTime: now.Add(-time.Hour), IsActive: true},
	}

	got := ActiveFor(alerts, 1, now)
	if assert.Len(t, got, 2) {
		assert.Equal(t, int64(3), got[0].ID)
		assert.Equal(t, int64(4), got[1].ID)
	}

	assert.Empty(t, ActiveFor(alerts, 99, now))
	assert.NotNil(t, ActiveFor(nil, 1, now))
}

func TestValidateWindow(t *testing.T) {
	start := time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)
	later := start.Add(time.Second)
	earlier := start.Add(-time.Second)
	same := start

	assert.NoError(t, ValidateWindow(start, nil))
	assert.NoError(t, ValidateWindow(start, &later))

	err := ValidateWindow(start, &same)
	assert.ErrorIs(t, err, ErrValidation)
	assert.Contains(t, err.Error(), "start time must be before end time")

	assert.ErrorIs(t, ValidateWindow(start, &earlier), ErrValidation)
}
