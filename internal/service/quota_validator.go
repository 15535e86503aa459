package service

import (
	"time"

	"github.com/noah-isme/academic-programs-api/internal/models"
	appErrors "github.com/noah-isme/academic-programs-api/pkg/errors"
)

// QuotaWindowValidator evaluates a degree's per-semester enrollment window and course quota.
type QuotaWindowValidator struct{}

// NewQuotaWindowValidator constructs the validator.
func NewQuotaWindowValidator() *QuotaWindowValidator {
	return &QuotaWindowValidator{}
}

// Window returns the configured bounds for semester; either may be nil.
func (v *QuotaWindowValidator) Window(degree *models.Degree, semester int) (start, end *time.Time) {
	if degree == nil {
		return nil, nil
	}
	cfg, ok := degree.SemesterConfig[semester]
	if !ok {
		return nil, nil
	}
	return cfg.EnrollmentStart, cfg.EnrollmentEnd
}

// IsWindowOpen reports start <= now <= end. A missing bound closes the window.
func (v *QuotaWindowValidator) IsWindowOpen(degree *models.Degree, semester int, now time.Time) bool {
	start, end := v.Window(degree, semester)
	if start == nil || end == nil {
		return false
	}
	return !now.Before(*start) && !now.After(*end)
}

// RequiredCount returns the exact number of courses required, or 0 for "at least one".
func (v *QuotaWindowValidator) RequiredCount(degree *models.Degree, semester int) int {
	if degree == nil {
		return 0
	}
	cfg, ok := degree.SemesterConfig[semester]
	if !ok || cfg.Count < 0 {
		return 0
	}
	return cfg.Count
}

// CheckWindow fails with the configured bounds when the window is closed at now.
func (v *QuotaWindowValidator) CheckWindow(degree *models.Degree, semester int, now time.Time) error {
	if v.IsWindowOpen(degree, semester, now) {
		return nil
	}
	start, end := v.Window(degree, semester)
	return appErrors.WithDetails(appErrors.ErrValidation, "enrollment window is closed", map[string]interface{}{
		"semester":        semester,
		"enrollmentStart": start,
		"enrollmentEnd":   end,
		"now":             now,
	})
}

// CheckQuota fails when selected does not satisfy the semester's course quota.
func (v *QuotaWindowValidator) CheckQuota(degree *models.Degree, semester, selected int) error {
	required := v.RequiredCount(degree, semester)
	switch {
	case required > 0 && selected != required:
		return appErrors.WithDetails(appErrors.ErrValidation, "course selection does not match the semester quota", map[string]interface{}{
			"semester": semester,
			"required": required,
			"selected": selected,
		})
	case required == 0 && selected < 1:
		return appErrors.WithDetails(appErrors.ErrValidation, "select at least one course", map[string]interface{}{
			"semester": semester,
			"required": 1,
			"selected": selected,
		})
	}
	return nil
}
