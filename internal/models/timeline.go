package models

import "time"

// TimelineSource names the stream a timeline event came from.
type TimelineSource string

const (
	TimelineSourceAudit   TimelineSource = "audit"
	TimelineSourceMessage TimelineSource = "message"
)

// TimelineEvent is the normalized, derived view over audit logs and messages.
type TimelineEvent struct {
	Source      TimelineSource `json:"source"`
	Action      string         `json:"action"`
	ActorID     string         `json:"actor_id"`
	ActorName   string         `json:"actor_name"`
	Description string         `json:"description"`
	Timestamp   time.Time      `json:"timestamp"`
}
