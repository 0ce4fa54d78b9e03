package models

import "time"

// Task is the central work item.
type Task struct {
	ID          uint      `gorm:"primaryKey;autoIncrement"`
	Number      string    `gorm:"size:32;not null;uniqueIndex"`
	Title       string    `gorm:"size:255;not null"`
	Description string    `gorm:"type:text"`
	Priority    Level     `gorm:"size:16;default:medium"`
	Urgency     Level     `gorm:"size:16;default:medium"`
	Status      Status    `gorm:"size:32;not null;index"`
	Progress    int       `gorm:"not null;default:0"`
	AssignedTo  *string   `gorm:"size:128;index"`
	CreatedBy   string    `gorm:"size:128;not null"`
	CreatedAt   time.Time `gorm:"index"`
	UpdatedAt   time.Time

	History  []HistoryEntry `gorm:"foreignKey:TaskID;constraint:OnDelete:CASCADE"`
	Comments []Comment      `gorm:"foreignKey:TaskID;constraint:OnDelete:CASCADE"`
}

// Assignee returns the assignee's display name, or "" when unassigned.
func (t *Task) Assignee() string {
	if t.AssignedTo == nil {
		return ""
	}
	return *t.AssignedTo
}
