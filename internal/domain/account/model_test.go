package account_test

import (
	"testing"
	"time"

	"studio/internal/domain/account"
)

// TestAccount_Validate tests validation of Account.
func TestAccount_Validate(t *testing.T) {
	tests := []struct {
		name    string
		account account.Account
		wantErr error
	}{
		{
			name:    "valid admin account",
			account: account.Account{ID: "1", Email: "admin@studio.test", FirstName: "Ada", Role: account.RoleAdmin},
		},
		{
			name:    "valid staff account",
			account: account.Account{ID: "2", Email: "staff@studio.test", FirstName: "Sam", Role: account.RoleStaff},
		},
		{
			name:    "valid student account",
			account: account.Account{ID: "3", Email: "student@studio.test", FirstName: "Kit", Role: account.RoleStudent},
		},
		{
			name:    "empty email",
			account: account.Account{ID: "4", FirstName: "Kit", Role: account.RoleStudent},
			wantErr: account.ErrEmptyEmail,
		},
		{
			name:    "email without at sign",
			account: account.Account{ID: "5", Email: "not-an-email", FirstName: "Kit", Role: account.RoleStudent},
			wantErr: account.ErrInvalidEmail,
		},
		{
			name:    "missing first name",
			account: account.Account{ID: "6", Email: "kit@studio.test", Role: account.RoleStudent},
			wantErr: account.ErrEmptyFirstName,
		},
		{
			name:    "unknown role",
			account: account.Account{ID: "7", Email: "kit@studio.test", FirstName: "Kit", Role: "coach"},
			wantErr: account.ErrInvalidRole,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.account.Validate()
			if err != tt.wantErr {
				t.Errorf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

// TestAccount_Password tests hashing and verification.
func TestAccount_Password(t *testing.T) {
	a := account.Account{Email: "kit@studio.test"}
	if err := a.SetPassword("short"); err != account.ErrPasswordTooShort {
		t.Errorf("SetPassword(short) = %v, want ErrPasswordTooShort", err)
	}
	if err := a.SetPassword(""); err != account.ErrEmptyPassword {
		t.Errorf("SetPassword(empty) = %v, want ErrEmptyPassword", err)
	}
	if err := a.SetPassword("correct horse battery"); err != nil {
		t.Fatalf("SetPassword: %v", err)
	}
	if a.PasswordHash == "correct horse battery" {
		t.Error("password stored in plain text")
	}
	if err := a.CheckPassword("correct horse battery"); err != nil {
		t.Errorf("CheckPassword(correct) = %v", err)
	}
	if err := a.CheckPassword("wrong horse battery"); err != account.ErrWrongPassword {
		t.Errorf("CheckPassword(wrong) = %v, want ErrWrongPassword", err)
	}
}

// TestAccount_Lockout tests that five failures lock the account for 15 minutes.
func TestAccount_Lockout(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	a := account.Account{}
	for i := 0; i < account.MaxFailedLogins-1; i++ {
		a.RecordFailedLogin(now)
	}
	if a.IsLocked(now) {
		t.Fatal("locked before reaching the limit")
	}
	a.RecordFailedLogin(now)
	if !a.IsLocked(now) {
		t.Fatal("expected lock after 5 failures")
	}
	if !a.IsLocked(now.Add(14 * time.Minute)) {
		t.Error("expected lock to hold for 15 minutes")
	}
	if a.IsLocked(now.Add(16 * time.Minute)) {
		t.Error("expected lock to expire after 15 minutes")
	}
	a.ResetFailedLogins()
	if a.FailedLogins != 0 || a.IsLocked(now) {
		t.Error("ResetFailedLogins did not clear the lock")
	}
}

// TestAccount_DisplayNameAndInitial tests name helpers used by the user list.
func TestAccount_DisplayNameAndInitial(t *testing.T) {
	tests := []struct {
		name        string
		account     account.Account
		wantDisplay string
		wantInitial string
	}{
		{"full name", account.Account{FirstName: "ada", LastName: "Lovelace"}, "ada Lovelace", "A"},
		{"username fallback", account.Account{Username: "kit99"}, "kit99", ""},
		{"email fallback", account.Account{Email: "x@studio.test"}, "x@studio.test", ""},
		{"unicode initial", account.Account{FirstName: "élodie"}, "élodie", "É"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.account.DisplayName(); got != tt.wantDisplay {
				t.Errorf("DisplayName() = %q, want %q", got, tt.wantDisplay)
			}
			if got := tt.account.Initial(); got != tt.wantInitial {
				t.Errorf("Initial() = %q, want %q", got, tt.wantInitial)
			}
		})
	}
}
