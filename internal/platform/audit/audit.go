package audit

import (
	"context"
	"sync"

	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"campus/internal/database"
)

const (
	ActionLoginSuccess      = "LOGIN_SUCCESS"
	ActionLoginFailed       = "LOGIN_FAILED"
	ActionPasswordChange    = "PASSWORD_CHANGE"
	ActionPasswordReset     = "PASSWORD_RESET"
	ActionAccountUnlock     = "ACCOUNT_UNLOCK"
	ActionAccountCreate     = "ACCOUNT_CREATE"
	ActionAccountDeactivate = "ACCOUNT_DEACTIVATE"
)

// Recorder appends security events. Write-only from the guard's point
// of view and best-effort: implementations log their own failures and
// never propagate them into the calling operation.
type Recorder interface {
	Record(ctx context.Context, actorID *uuid.UUID, action, detail string)
}

type GormRecorder struct {
	db *gorm.DB
}

func NewGormRecorder(db *gorm.DB) *GormRecorder {
	return &GormRecorder{db: db}
}

func (r *GormRecorder) Record(ctx context.Context, actorID *uuid.UUID, action, detail string) {
	event := database.AuditEvent{
		ActorID: actorID,
		Action:  action,
		Detail:  detail,
	}
	if err := r.db.WithContext(ctx).Create(&event).Error; err != nil {
		log.Errorf("audit write failed for %s: %v", action, err)
	}
}

// MemRecorder collects events in memory for tests and the demo mode.
type MemRecorder struct {
	mu     sync.Mutex
	events []database.AuditEvent
}

func NewMemRecorder() *MemRecorder {
	return &MemRecorder{}
}

func (r *MemRecorder) Record(ctx context.Context, actorID *uuid.UUID, action, detail string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, database.AuditEvent{
		ID:      int64(len(r.events) + 1),
		ActorID: actorID,
		Action:  action,
		Detail:  detail,
	})
}

func (r *MemRecorder) Events() []database.AuditEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]database.AuditEvent, len(r.events))
	copy(out, r.events)
	return out
}
