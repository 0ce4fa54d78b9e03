package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// HistoryEntry is an append-only audit record of one change to a task.
type HistoryEntry struct {
	ID        uint      `gorm:"primaryKey;autoIncrement"`
	TaskID    uint      `gorm:"not null;index"`
	Action    string    `gorm:"size:64;not null"`
	Actor     string    `gorm:"size:128"`
	Changes   ChangeSet `gorm:"type:text"`
	CreatedAt time.Time `gorm:"index"`
}

// TableName pins the table name used since the first schema.
func (HistoryEntry) TableName() string { return "task_history" }

// Comment is a free-text note attached to a task.
type Comment struct {
	ID        uint   `gorm:"primaryKey;autoIncrement"`
	TaskID    uint   `gorm:"not null;index"`
	Author    string `gorm:"size:128"`
	Text      string `gorm:"type:text;not null"`
	CreatedAt time.Time
}

// TableName pins the table name used since the first schema.
func (Comment) TableName() string { return "task_comments" }

// FieldChange records a single field's old and new value.
type FieldChange struct {
	From any `json:"from"`
	To   any `json:"to"`
}

// ChangeSet is the payload of a history entry: either a per-field diff or,
// for comment actions, a preview of the comment text. Stored as JSON.
//
// Numbers decode as float64 after a round trip through the database.
type ChangeSet struct {
	Fields  map[string]FieldChange
	Comment string
}

// Empty reports whether the change set carries neither a diff nor a comment.
func (c ChangeSet) Empty() bool {
	return len(c.Fields) == 0 && c.Comment == ""
}

// MarshalJSON encodes a comment preview as {"comment": "..."} and a diff as
// {"field": {"from": ..., "to": ...}}.
func (c ChangeSet) MarshalJSON() ([]byte, error) {
	if c.Comment != "" {
		return json.Marshal(map[string]string{"comment": c.Comment})
	}
	if c.Fields == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(c.Fields)
}

// UnmarshalJSON is the inverse of MarshalJSON.
func (c *ChangeSet) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("models: decode change set: %w", err)
	}
	*c = ChangeSet{}
	if msg, ok := raw["comment"]; ok && len(raw) == 1 {
		var preview string
		if err := json.Unmarshal(msg, &preview); err == nil {
			c.Comment = preview
			return nil
		}
	}
	if len(raw) == 0 {
		return nil
	}
	c.Fields = make(map[string]FieldChange, len(raw))
	for field, msg := range raw {
		var fc FieldChange
		if err := json.Unmarshal(msg, &fc); err != nil {
			return fmt.Errorf("models: decode change of %q: %w", field, err)
		}
		c.Fields[field] = fc
	}
	return nil
}

// GormDataType tells gorm how to declare the column.
func (ChangeSet) GormDataType() string { return "text" }

// Value implements driver.Valuer.
func (c ChangeSet) Value() (driver.Value, error) {
	data, err := c.MarshalJSON()
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// Scan implements sql.Scanner.
func (c *ChangeSet) Scan(value any) error {
	switch v := value.(type) {
	case nil:
		*c = ChangeSet{}
		return nil
	case []byte:
		if len(v) == 0 {
			*c = ChangeSet{}
			return nil
		}
		return c.UnmarshalJSON(v)
	case string:
		if v == "" {
			*c = ChangeSet{}
			return nil
		}
		return c.UnmarshalJSON([]byte(v))
	default:
		return fmt.Errorf("models: cannot scan %T into ChangeSet", value)
	}
}
