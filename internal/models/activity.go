package models

import "time"

// Activity action types.
const (
	ActivityCreate = "create"
	ActivityUpdate = "update"
	ActivityDelete = "delete"
	ActivityExtend = "extend"
)

// Activity entity types.
const (
	EntityPackage = "package"
	EntityLesson  = "lesson"
	EntityPayment = "payment"
)

// ActivityLog is one entry of the operator activity trail.
type ActivityLog struct {
	ID          string    `db:"id" json:"id"`
	ActorID     *string   `db:"actor_id" json:"actor_id,omitempty"`
	ActionType  string    `db:"action_type" json:"action_type"`
	EntityType  string    `db:"entity_type" json:"entity_type"`
	EntityID    string    `db:"entity_id" json:"entity_id"`
	Description string    `db:"description" json:"description"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}
