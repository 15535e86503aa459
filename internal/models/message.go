package models

import "time"

// EntityMessage is a free-text note attached to a tracked entity.
type EntityMessage struct {
	ID         string    `db:"id" json:"id"`
	EntityType string    `db:"entity_type" json:"entity_type"`
	EntityID   string    `db:"entity_id" json:"entity_id"`
	SenderID   string    `db:"sender_id" json:"sender_id"`
	Text       string    `db:"text" json:"text"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}
