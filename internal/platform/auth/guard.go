package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"

	"campus/internal/mail"
	"campus/internal/platform/account"
	"campus/internal/platform/audit"
	"campus/internal/token"
	"campus/pkg/utils"
)

// Guard decides whether a presented (handle, password) pair yields a
// session and maintains the per-account lockout state. Counters live in
// the account store and are updated with atomic server-side writes, so
// concurrent attempts against one account cannot under-count failures.
type Guard struct {
	accounts account.Store
	audit    audit.Recorder
	tokens   *token.Service

	// mailer is optional. When absent, temporary passwords are only
	// reported back to the caller for manual distribution.
	mailer   mail.Mailer
	mailFrom string
}

func NewGuard(accounts account.Store, recorder audit.Recorder, tokens *token.Service) *Guard {
	return &Guard{accounts: accounts, audit: recorder, tokens: tokens}
}

// WithMailer enables out-of-band delivery of temporary passwords.
func (g *Guard) WithMailer(m mail.Mailer, from string) *Guard {
	g.mailer = m
	g.mailFrom = from
	return g
}

// AttemptLogin runs the full authentication sequence for one request.
// Exactly one audit event is emitted on every path; the account row is
// written at most once, and not at all on the inactive and locked
// short-circuits.
func (g *Guard) AttemptLogin(ctx context.Context, handle, password string) Result {
	if handle == "" || password == "" {
		g.audit.Record(ctx, nil, audit.ActionLoginFailed, "empty handle or password")
		return Result{Kind: KindInvalidCredentials}
	}

	acct, err := g.accounts.FindByHandle(ctx, handle)
	if err != nil {
		if errors.Is(err, account.ErrNotFound) {
			g.audit.Record(ctx, nil, audit.ActionLoginFailed, fmt.Sprintf("unknown handle %q", handle))
			return Result{Kind: KindInvalidCredentials}
		}
		g.audit.Record(ctx, nil, audit.ActionLoginFailed, "account lookup failed")
		return g.systemError("account lookup failed", err)
	}

	if !acct.IsActive {
		g.audit.Record(ctx, &acct.ID, audit.ActionLoginFailed, "account inactive")
		return Result{Kind: KindAccountInactive}
	}

	if acct.Locked() {
		g.audit.Record(ctx, &acct.ID, audit.ActionLoginFailed, "account locked")
		return Result{Kind: KindAccountLocked}
	}

	// The slow hash comparison runs here, on the goroutine serving this
	// request; nothing is held locked across it. Once it has started
	// the attempt runs to completion so the counter and the audit trail
	// stay in step.
	if !utils.VerifyPassword(password, acct.PasswordHash) {
		count, err := g.accounts.RecordFailure(ctx, acct.ID)
		if err != nil {
			g.audit.Record(ctx, &acct.ID, audit.ActionLoginFailed, "failure count update failed")
			return g.systemError("failure count update failed", err)
		}
		detail := fmt.Sprintf("wrong password, attempt %d", count)
		if count >= account.MaxFailedAttempts {
			detail = fmt.Sprintf("wrong password, attempt %d, lockout armed", count)
		}
		g.audit.Record(ctx, &acct.ID, audit.ActionLoginFailed, detail)
		return Result{Kind: KindInvalidCredentials}
	}

	if err := g.accounts.RecordSuccess(ctx, acct.ID); err != nil {
		g.audit.Record(ctx, &acct.ID, audit.ActionLoginFailed, "login state update failed")
		return g.systemError("login state update failed", err)
	}

	sessionToken, err := g.tokens.Generate(acct.ID, acct.Role)
	if err != nil {
		g.audit.Record(ctx, &acct.ID, audit.ActionLoginFailed, "token generation failed")
		return g.systemError("token generation failed", err)
	}

	g.audit.Record(ctx, &acct.ID, audit.ActionLoginSuccess, fmt.Sprintf("login as %s", acct.Role))

	fresh, err := g.accounts.FindByID(ctx, acct.ID)
	if err != nil {
		// The login already succeeded; fall back to the stale copy.
		fresh = acct
	}
	return Result{Kind: KindSuccess, Account: fresh, Token: sessionToken}
}

// ChangePassword is the voluntary self-service change. It has no
// lockout interaction: a wrong current password is rejected without
// touching the failure counter.
func (g *Guard) ChangePassword(ctx context.Context, accountID uuid.UUID, currentPassword, newPassword string) Result {
	acct, err := g.accounts.FindByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, account.ErrNotFound) {
			return Result{Kind: KindNotFound}
		}
		return g.systemError("account lookup failed", err)
	}

	if !utils.VerifyPassword(currentPassword, acct.PasswordHash) {
		return Result{Kind: KindInvalidCurrentPassword}
	}

	hash, err := utils.HashPassword(newPassword)
	if err != nil {
		return g.systemError("password hashing failed", err)
	}

	if err := g.accounts.SetPassword(ctx, acct.ID, hash); err != nil {
		return g.systemError("password update failed", err)
	}

	g.audit.Record(ctx, &acct.ID, audit.ActionPasswordChange, "voluntary password change")

	acct.PasswordHash = hash
	acct.ForcePasswordChange = false
	return Result{Kind: KindSuccess, Account: acct}
}

// ResetPassword is administrator-triggered. The generated temporary
// password is returned exactly once; it is mailed to the account's
// address when a mailer is configured, but delivery failures never fail
// the reset.
func (g *Guard) ResetPassword(ctx context.Context, accountID uuid.UUID) Result {
	acct, err := g.accounts.FindByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, account.ErrNotFound) {
			return Result{Kind: KindNotFound}
		}
		return g.systemError("account lookup failed", err)
	}

	tempPassword := utils.GenerateTempPassword()
	hash, err := utils.HashPassword(tempPassword)
	if err != nil {
		return g.systemError("password hashing failed", err)
	}

	if err := g.accounts.ResetPassword(ctx, acct.ID, hash); err != nil {
		return g.systemError("password reset failed", err)
	}

	g.audit.Record(ctx, &acct.ID, audit.ActionPasswordReset, "administrator password reset")

	if g.mailer != nil && acct.Email != "" {
		email := mail.Email{
			Subject: "Your temporary password",
			Body: fmt.Sprintf(
				"Hello %s,\n\nYour password has been reset. Sign in with this temporary password and choose a new one:\n\n%s\n",
				acct.DisplayName, tempPassword),
			From: g.mailFrom,
			To:   []string{acct.Email},
		}
		if err := g.mailer.SendMail(&email); err != nil {
			log.Errorf("temporary password mail to %s failed: %v", acct.Email, err)
		}
	}

	acct.PasswordHash = hash
	acct.ForcePasswordChange = true
	acct.FailedLoginAttempts = 0
	acct.LockedUntil = nil
	return Result{Kind: KindSuccess, Account: acct, TempPassword: tempPassword}
}

// Unlock clears the lockout state without touching the credential.
func (g *Guard) Unlock(ctx context.Context, accountID uuid.UUID) Result {
	acct, err := g.accounts.FindByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, account.ErrNotFound) {
			return Result{Kind: KindNotFound}
		}
		return g.systemError("account lookup failed", err)
	}

	if err := g.accounts.ClearLockout(ctx, acct.ID); err != nil {
		return g.systemError("lockout clear failed", err)
	}

	g.audit.Record(ctx, &acct.ID, audit.ActionAccountUnlock, "administrator unlock")

	acct.FailedLoginAttempts = 0
	acct.LockedUntil = nil
	return Result{Kind: KindSuccess, Account: acct}
}

// systemError logs the underlying cause and returns the generic
// outcome. Raw store errors stay out of anything user-facing.
func (g *Guard) systemError(detail string, err error) Result {
	log.Errorf("%s: %v", detail, err)
	return Result{Kind: KindSystemError}
}
