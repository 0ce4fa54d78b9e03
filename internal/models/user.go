package models

import "time"

// User is an account that can sign in and be assigned tasks.
type User struct {
	ID           uint    `gorm:"primaryKey;autoIncrement"`
	Username     string  `gorm:"size:64;not null;uniqueIndex"`
	PasswordHash string  `gorm:"size:255;not null"`
	Role         Role    `gorm:"size:16;not null;default:worker"`
	Name         string  `gorm:"size:128;not null;index"`
	Email        *string `gorm:"size:255"`
	CreatedAt    time.Time
}

// IsAdmin reports whether the user has the admin role.
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// EmailAddress returns the user's e-mail, or "" when none is set.
func (u *User) EmailAddress() string {
	if u.Email == nil {
		return ""
	}
	return *u.Email
}

// Setting is a persisted configuration value.
type Setting struct {
	ID        uint   `gorm:"primaryKey;autoIncrement"`
	Key       string `gorm:"size:128;not null;uniqueIndex"`
	Value     string `gorm:"type:text"`
	UpdatedAt time.Time
}

// TableName pins the table name used since the first schema.
func (Setting) TableName() string { return "system_settings" }
