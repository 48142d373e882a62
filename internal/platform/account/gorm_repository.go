package account

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"campus/internal/database"
	"campus/pkg/utils"
)

const authKeyPrefix = "cpak"

type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) FindByHandle(ctx context.Context, handle string) (*database.Account, error) {
	return s.findOne(ctx, "display_name = ?", handle)
}

func (s *GormStore) FindByID(ctx context.Context, id uuid.UUID) (*database.Account, error) {
	return s.findOne(ctx, "id = ?", id)
}

func (s *GormStore) FindByEmail(ctx context.Context, email string) (*database.Account, error) {
	return s.findOne(ctx, "email = ?", strings.ToLower(email))
}

func (s *GormStore) FindByAuthKey(ctx context.Context, key string) (*database.Account, error) {
	var acct database.Account
	result := s.db.WithContext(ctx).
		Joins("JOIN application.auth_key ON application.auth_key.account_id = application.account.id").
		Where("application.auth_key.key = ?", key).
		First(&acct)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, result.Error
	}
	return &acct, nil
}

func (s *GormStore) findOne(ctx context.Context, query string, arg any) (*database.Account, error) {
	var acct database.Account
	result := s.db.WithContext(ctx).First(&acct, query, arg)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, result.Error
	}
	return &acct, nil
}

func (s *GormStore) List(ctx context.Context, limit, offset int) ([]database.Account, error) {
	var accounts []database.Account
	result := s.db.WithContext(ctx).Limit(limit).Offset(offset).Order("created_at").Find(&accounts)
	if result.Error != nil {
		return nil, result.Error
	}
	return accounts, nil
}

func (s *GormStore) Create(ctx context.Context, acct *database.Account) error {
	if err := s.db.WithContext(ctx).Create(acct).Error; err != nil {
		return translateDuplicate(err)
	}
	return nil
}

func (s *GormStore) Update(ctx context.Context, acct *database.Account) error {
	if err := s.db.WithContext(ctx).Save(acct).Error; err != nil {
		return translateDuplicate(err)
	}
	return nil
}

func (s *GormStore) CreateAuthKey(ctx context.Context, accountID uuid.UUID) (*database.AuthKey, error) {
	authKey := database.AuthKey{
		Key:       fmt.Sprintf("%s.%s", authKeyPrefix, utils.GenerateRandomString(32)),
		AccountID: accountID,
	}
	if err := s.db.WithContext(ctx).Create(&authKey).Error; err != nil {
		return nil, err
	}
	return &authKey, nil
}

// RecordFailure increments and arms the lockout in a single UPDATE so
// two concurrent failed attempts can never read the same counter value.
func (s *GormStore) RecordFailure(ctx context.Context, id uuid.UUID) (int, error) {
	var count int
	result := s.db.WithContext(ctx).Raw(`
		UPDATE application.account
		SET failed_login_attempts = failed_login_attempts + 1,
		    locked_until = CASE
		        WHEN failed_login_attempts + 1 >= ? THEN now() + make_interval(mins => ?)
		        ELSE locked_until
		    END
		WHERE id = ?
		RETURNING failed_login_attempts`,
		MaxFailedAttempts, int(LockoutDuration.Minutes()), id).Scan(&count)
	if result.Error != nil {
		return 0, result.Error
	}
	if result.RowsAffected == 0 {
		// The account vanished between lookup and update.
		return 0, ErrNotFound
	}
	return count, nil
}

func (s *GormStore) RecordSuccess(ctx context.Context, id uuid.UUID) error {
	return s.db.WithContext(ctx).Exec(
		"UPDATE application.account SET failed_login_attempts = 0, locked_until = NULL, last_login = CURRENT_TIMESTAMP WHERE id = ?",
		id).Error
}

func (s *GormStore) SetPassword(ctx context.Context, id uuid.UUID, hash string) error {
	return s.db.WithContext(ctx).Exec(
		"UPDATE application.account SET password_hash = ?, force_password_change = false WHERE id = ?",
		hash, id).Error
}

func (s *GormStore) ResetPassword(ctx context.Context, id uuid.UUID, hash string) error {
	return s.db.WithContext(ctx).Exec(
		"UPDATE application.account SET password_hash = ?, force_password_change = true, failed_login_attempts = 0, locked_until = NULL WHERE id = ?",
		hash, id).Error
}

func (s *GormStore) ClearLockout(ctx context.Context, id uuid.UUID) error {
	return s.db.WithContext(ctx).Exec(
		"UPDATE application.account SET failed_login_attempts = 0, locked_until = NULL WHERE id = ?",
		id).Error
}

// translateDuplicate maps postgres unique violations onto the store's
// sentinel errors so callers can tell which field collided.
func translateDuplicate(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		if strings.Contains(pgErr.ConstraintName, "email") {
			return ErrDuplicateEmail
		}
		return ErrDuplicateHandle
	}
	return err
}
