package orchestrators

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	accountStore "studio/internal/adapters/storage/account"
	"studio/internal/domain/account"
)

// AccountStoreForCreate defines the store interface needed by CreateAccount.
type AccountStoreForCreate interface {
	GetByEmail(ctx context.Context, email string) (account.Account, error)
	Save(ctx context.Context, a account.Account) error
	Count(ctx context.Context, filter accountStore.ListFilter) (int, error)
}

// CreateAccountInput carries the sign-up form, or an admin-created account.
type CreateAccountInput struct {
	Email                  string
	Username               string
	FirstName              string
	LastName               string
	Password               string
	Role                   string // defaults to student
	PasswordChangeRequired bool
}

// CreateAccountDeps holds dependencies for CreateAccount.
type CreateAccountDeps struct {
	AccountStore AccountStoreForCreate
	ActivityLog  ActivityLogger
	GenerateID   func() string
	Now          func() time.Time
}

var ErrEmailAlreadyExists = errors.New("an account with this email already exists")

// ExecuteCreateAccount registers a new account.
// PRE: password >= 12 characters
// POST: account saved with a bcrypt hash; Username defaults to the email
// INVARIANT: emails are unique (case-insensitive)
func ExecuteCreateAccount(ctx context.Context, input CreateAccountInput, deps CreateAccountDeps) (account.Account, error) {
	email := strings.ToLower(strings.TrimSpace(input.Email))
	if _, err := deps.AccountStore.GetByEmail(ctx, email); err == nil {
		return account.Account{}, &UserError{Msg: ErrEmailAlreadyExists.Error(), Err: ErrEmailAlreadyExists}
	}

	role := input.Role
	if role == "" {
		role = account.RoleStudent
	}
	username := strings.TrimSpace(input.Username)
	if username == "" {
		username = email
	}
	acct := account.Account{
		ID:                     deps.GenerateID(),
		Email:                  email,
		Username:               username,
		FirstName:              strings.TrimSpace(input.FirstName),
		LastName:               strings.TrimSpace(input.LastName),
		Role:                   role,
		CreatedAt:              deps.Now(),
		PasswordChangeRequired: input.PasswordChangeRequired,
	}
	if err := acct.Validate(); err != nil {
		return account.Account{}, &UserError{Msg: err.Error(), Err: err}
	}
	if err := acct.SetPassword(input.Password); err != nil {
		return account.Account{}, &UserError{Msg: err.Error(), Err: err}
	}
	if err := deps.AccountStore.Save(ctx, acct); err != nil {
		return account.Account{}, fmt.Errorf("save account: %w", err)
	}

	recordActivity(ctx, deps.ActivityLog, deps.GenerateID(), acct.CreatedAt,
		"New user registered: %s %s (%s)", acct.FirstName, acct.LastName, acct.Username)
	slog.Info("auth_event", "event", "account_created", "email", email, "role", role)
	return acct, nil
}

// ExecuteSeedAdmin creates the first admin account on an empty database.
// POST: admin created with PasswordChangeRequired only when no accounts exist
func ExecuteSeedAdmin(ctx context.Context, deps CreateAccountDeps, email, password string) error {
	count, err := deps.AccountStore.Count(ctx, accountStore.ListFilter{})
	if err != nil {
		return fmt.Errorf("count accounts: %w", err)
	}
	if count > 0 {
		return nil
	}
	if _, err := ExecuteCreateAccount(ctx, CreateAccountInput{
		Email:                  email,
		FirstName:              "Admin",
		Password:               password,
		Role:                   account.RoleAdmin,
		PasswordChangeRequired: true,
	}, deps); err != nil {
		return err
	}
	slog.Info("auth_event", "event", "admin_seeded", "email", email)
	return nil
}
