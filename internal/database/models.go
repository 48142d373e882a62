package database

import (
	"time"

	"github.com/google/uuid"
)

const (
	RoleAdmin   = "admin"
	RoleTeacher = "teacher"
	RoleStudent = "student"
)

func ValidRole(role string) bool {
	switch role {
	case RoleAdmin, RoleTeacher, RoleStudent:
		return true
	}
	return false
}

type Account struct {
	ID                  uuid.UUID  `json:"id" gorm:"type:uuid;default:uuid_generate_v4();primaryKey"`
	DisplayName         string     `json:"display_name" gorm:"uniqueIndex"`
	Email               string     `json:"email" gorm:"uniqueIndex"`
	PasswordHash        string     `json:"-"`
	Role                string     `json:"role" gorm:"default:'student'"`
	IsActive            bool       `json:"is_active" gorm:"default:true"`
	ForcePasswordChange bool       `json:"force_password_change" gorm:"default:true"`
	FailedLoginAttempts int        `json:"-" gorm:"default:0"`
	LockedUntil         *time.Time `json:"-"`
	LastLogin           *time.Time `json:"last_login"`
	CreatedAt           time.Time  `json:"created_at"`
}

func (a *Account) TableName() string {
	return "application.account"
}

// Locked reports whether the lockout window is still open. Evaluated
// lazily on each attempt, there is no background timer.
func (a *Account) Locked() bool {
	return a.LockedUntil != nil && time.Now().Before(*a.LockedUntil)
}

type AuditEvent struct {
	ID        int64      `json:"id" gorm:"primaryKey"`
	ActorID   *uuid.UUID `json:"actor_id" gorm:"type:uuid"`
	Action    string     `json:"action"`
	Detail    string     `json:"detail"`
	CreatedAt time.Time  `json:"created_at"`
}

func (e *AuditEvent) TableName() string {
	return "application.audit_event"
}

type AuthKey struct {
	Key       string    `json:"key" gorm:"primaryKey"`
	AccountID uuid.UUID `json:"account_id" gorm:"type:uuid"`
}

func (k *AuthKey) TableName() string {
	return "application.auth_key"
}
