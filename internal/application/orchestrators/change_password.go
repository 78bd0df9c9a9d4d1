package orchestrators

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"studio/internal/domain/account"
)

// ChangePasswordInput carries the change-password form.
type ChangePasswordInput struct {
	AccountID       string
	CurrentPassword string
	NewPassword     string
}

// AccountStoreForChangePassword defines the store interface needed by ChangePassword.
type AccountStoreForChangePassword interface {
	GetByID(ctx context.Context, id string) (account.Account, error)
	Save(ctx context.Context, a account.Account) error
}

// ChangePasswordDeps holds dependencies for ChangePassword.
type ChangePasswordDeps struct {
	AccountStore AccountStoreForChangePassword
}

var (
	ErrCurrentPasswordWrong = errors.New("current password is incorrect")
	ErrNewPasswordSame      = errors.New("new password must be different from current password")
)

// ExecuteChangePassword replaces the password after checking the current one.
// POST: PasswordChangeRequired is cleared
func ExecuteChangePassword(ctx context.Context, input ChangePasswordInput, deps ChangePasswordDeps) error {
	if input.CurrentPassword == "" || input.NewPassword == "" {
		return &UserError{Msg: "all fields are required"}
	}
	acct, err := deps.AccountStore.GetByID(ctx, input.AccountID)
	if err != nil {
		return fmt.Errorf("get account: %w", err)
	}
	if err := acct.CheckPassword(input.CurrentPassword); err != nil {
		return &UserError{Msg: ErrCurrentPasswordWrong.Error(), Err: ErrCurrentPasswordWrong}
	}
	if input.CurrentPassword == input.NewPassword {
		return &UserError{Msg: ErrNewPasswordSame.Error(), Err: ErrNewPasswordSame}
	}
	if err := acct.SetPassword(input.NewPassword); err != nil {
		return &UserError{Msg: err.Error(), Err: err}
	}
	acct.PasswordChangeRequired = false

	if err := deps.AccountStore.Save(ctx, acct); err != nil {
		return fmt.Errorf("save account: %w", err)
	}
	slog.Info("auth_event", "event", "password_changed", "account_id", input.AccountID)
	return nil
}
