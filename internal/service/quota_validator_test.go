package service

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/academic-programs-api/internal/models"
	appErrors "github.com/noah-isme/academic-programs-api/pkg/errors"
)

func TestQuotaWindowValidatorWindowBounds(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)
	degree := windowDegree(start, end, 5)
	v := NewQuotaWindowValidator()

	cases := []struct {
		name string
		now  time.Time
		open bool
	}{
		{name: "before start", now: start.Add(-time.Second), open: false},
		{name: "at start", now: start, open: true},
		{name: "inside", now: start.Add(72 * time.Hour), open: true},
		{name: "at end", now: end, open: true},
		{name: "after end", now: end.Add(time.Second), open: false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.open, v.IsWindowOpen(&degree, 1, tc.now))
		})
	}
}

func TestQuotaWindowValidatorFailsClosed(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	v := NewQuotaWindowValidator()
	now := start.Add(time.Hour)

	assert.False(t, v.IsWindowOpen(nil, 1, now))

	degree := windowDegree(start, start.Add(24*time.Hour), 0)
	assert.False(t, v.IsWindowOpen(&degree, 2, now), "unconfigured semester")

	degree.SemesterConfig[1] = models.SemesterWindow{EnrollmentStart: &start, Count: 3}
	assert.False(t, v.IsWindowOpen(&degree, 1, now), "missing end")

	err := v.CheckWindow(&degree, 1, now)
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
	details := appErrors.FromError(err).Details
	assert.Equal(t, &start, details["enrollmentStart"])
	assert.Nil(t, details["enrollmentEnd"])
}

func TestQuotaWindowValidatorScenarioClosedWindow(t *testing.T) {
	degree := windowDegree(
		time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC),
		0,
	)
	err := NewQuotaWindowValidator().CheckWindow(&degree, 1, time.Date(2025, 1, 20, 0, 0, 0, 0, time.UTC))
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}

func TestQuotaWindowValidatorCheckQuota(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	exact := windowDegree(start, start.Add(time.Hour), 5)
	open := windowDegree(start, start.Add(time.Hour), 0)
	v := NewQuotaWindowValidator()

	err := v.CheckQuota(&exact, 1, 4)
	require.Error(t, err)
	details := appErrors.FromError(err).Details
	assert.Equal(t, 5, details["required"])
	assert.Equal(t, 4, details["selected"])

	assert.Error(t, v.CheckQuota(&exact, 1, 6))
	assert.NoError(t, v.CheckQuota(&exact, 1, 5))

	assert.NoError(t, v.CheckQuota(&open, 1, 1))
	assert.NoError(t, v.CheckQuota(&open, 1, 9))
	err = v.CheckQuota(&open, 1, 0)
	require.Error(t, err)
	assert.Equal(t, 1, appErrors.FromError(err).Details["required"])

	assert.Equal(t, 0, v.RequiredCount(&exact, 7))
	assert.Equal(t, 5, v.RequiredCount(&exact, 1))
}
