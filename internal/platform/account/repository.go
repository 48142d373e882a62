package account

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"campus/internal/database"
)

const (
	// MaxFailedAttempts is the consecutive-failure threshold that arms
	// the lockout.
	MaxFailedAttempts = 5
	// LockoutDuration is how long an armed lockout holds.
	LockoutDuration = 15 * time.Minute
)

var (
	ErrNotFound        = errors.New("account not found")
	ErrDuplicateEmail  = errors.New("email already in use")
	ErrDuplicateHandle = errors.New("display name already in use")
)

// Store is the persistence boundary for accounts. The write methods
// that touch lockout counters are atomic on the store side so that
// concurrent attempts against the same account cannot under-count.
type Store interface {
	FindByHandle(ctx context.Context, handle string) (*database.Account, error)
	FindByID(ctx context.Context, id uuid.UUID) (*database.Account, error)
	FindByEmail(ctx context.Context, email string) (*database.Account, error)
	FindByAuthKey(ctx context.Context, key string) (*database.Account, error)
	List(ctx context.Context, limit, offset int) ([]database.Account, error)

	Create(ctx context.Context, acct *database.Account) error
	Update(ctx context.Context, acct *database.Account) error
	CreateAuthKey(ctx context.Context, accountID uuid.UUID) (*database.AuthKey, error)

	// RecordFailure increments the failed-attempt counter server-side
	// and arms the lockout when the new count reaches the threshold.
	// Returns the count after the increment.
	RecordFailure(ctx context.Context, id uuid.UUID) (int, error)
	// RecordSuccess zeroes the counter, clears the lockout and stamps
	// last_login.
	RecordSuccess(ctx context.Context, id uuid.UUID) error
	// SetPassword stores a new hash after a voluntary change and clears
	// force_password_change.
	SetPassword(ctx context.Context, id uuid.UUID, hash string) error
	// ResetPassword stores a new hash, sets force_password_change and
	// clears all lockout state.
	ResetPassword(ctx context.Context, id uuid.UUID, hash string) error
	// ClearLockout zeroes the counter and lockout timestamp.
	ClearLockout(ctx context.Context, id uuid.UUID) error
}
