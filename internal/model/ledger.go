package model

import "time"

// LoginAttempt is one append-only entry in audit_login_attempts. Every
// authentication attempt produces exactly one, success or failure.
type LoginAttempt struct {
	ID            uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Username      string    `gorm:"size:64;not null;index" json:"username"`
	Success       bool      `gorm:"not null;index" json:"success"`
	IPAddress     string    `gorm:"size:45;not null" json:"ip_address"` // IPv4/IPv6
	UserAgent     string    `gorm:"size:512" json:"user_agent"`
	FailureReason *string   `gorm:"size:128" json:"failure_reason,omitempty"` // nil iff Success
	CreatedAt     time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}

func (LoginAttempt) TableName() string { return "audit_login_attempts" }

// Session is one active authenticated session. Only the one-way hash of the
// issued token is stored, never the token itself.
type Session struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	UserID    uint      `gorm:"not null;index" json:"user_id"`
	TokenHash string    `gorm:"size:64;not null;uniqueIndex" json:"-"`
	IPAddress string    `gorm:"size:45" json:"ip_address"`
	UserAgent string    `gorm:"size:512" json:"user_agent"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`

	User User `gorm:"constraint:OnDelete:CASCADE" json:"-"`
}

func (Session) TableName() string { return "audit_sessions" }

// User is the minimal account record sessions reference. Full account
// management lives outside this service; this table exists so a session's
// user_id always resolves.
type User struct {
	ID           uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Username     string    `gorm:"size:64;not null;uniqueIndex" json:"username"`
	PasswordHash string    `gorm:"size:128;not null" json:"-"`
	Active       bool      `gorm:"not null;default:true" json:"active"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (User) TableName() string { return "users" }
