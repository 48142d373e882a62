package auth

import "campus/internal/database"

// Kind classifies the outcome of a guard operation. Lookup failures and
// wrong passwords collapse into the same kind so callers cannot probe
// which handles exist.
type Kind string

const (
	KindSuccess                Kind = "success"
	KindInvalidCredentials     Kind = "invalid_credentials"
	KindAccountInactive        Kind = "account_inactive"
	KindAccountLocked          Kind = "account_locked"
	KindInvalidCurrentPassword Kind = "invalid_current_password"
	KindDuplicateEmail         Kind = "duplicate_email"
	KindDuplicateHandle        Kind = "duplicate_handle"
	KindNotFound               Kind = "not_found"
	KindSystemError            Kind = "system_error"
)

// Result is the typed outcome of a guard operation. Lower-level store
// or transport failures never escape the guard; they come back as
// KindSystemError with no internal detail attached.
type Result struct {
	Kind Kind
	// Account is the public profile on success paths. The password hash
	// is never serialized.
	Account *database.Account
	// Token is a freshly minted session token on successful login.
	Token string
	// TempPassword is returned exactly once by ResetPassword and never
	// stored in plaintext.
	TempPassword string
}

func (r Result) OK() bool {
	return r.Kind == KindSuccess
}
