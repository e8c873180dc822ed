package model

import "time"

// ChangeKind distinguishes an insert from a field update.
type ChangeKind string

const (
	ChangeCreated ChangeKind = "created"
	ChangeUpdated ChangeKind = "updated"
)

// CreatedField is the field name carried by the single entry written when
// a record is first inserted.
const CreatedField = "*"

// Change is one field-level difference between a stored and candidate record.
type Change struct {
	Field    string  `json:"field"`
	OldValue *string `json:"old_value,omitempty"`
	NewValue *string `json:"new_value,omitempty"`
}

// HistoryEntry is an immutable audit row.
type HistoryEntry struct {
	ID         string     `json:"id"`
	EntityType EntityType `json:"entity_type"`
	EntityID   string     `json:"entity_id"`
	Field      string     `json:"field"`
	OldValue   *string    `json:"old_value,omitempty"`
	NewValue   *string    `json:"new_value,omitempty"`
	Kind       ChangeKind `json:"kind"`
	Actor      string     `json:"actor"`
	CreatedAt  time.Time  `json:"created_at"`
}
