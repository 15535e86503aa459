package models

import "time"

// Notification events emitted after successful state transitions.
const (
	NotificationProgramSubmitted      = "program.submitted"
	NotificationProgramApproved       = "program.approved"
	NotificationProgramRejected       = "program.rejected"
	NotificationProgramPublished      = "program.published"
	NotificationProgramVersionCreated = "program.version_created"
	NotificationEnrollmentSubmitted   = "enrollment.submitted"
	NotificationEnrollmentApproved    = "enrollment.approved"
	NotificationEnrollmentRejected    = "enrollment.rejected"
)

// Notification is the message published to downstream delivery channels.
type Notification struct {
	ID         string                 `json:"id"`
	Event      string                 `json:"event"`
	Payload    map[string]interface{} `json:"payload"`
	OccurredAt time.Time              `json:"occurred_at"`
}
