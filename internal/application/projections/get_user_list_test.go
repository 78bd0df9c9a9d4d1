package projections

import (
	"context"
	"fmt"
	"net/url"
	"testing"

	"studio/internal/application/listutil"
	domainAccount "studio/internal/domain/account"
	domainBooking "studio/internal/domain/booking"
)

// TestQueryGetUserList_InitialFilterAndPaging verifies the initials map and page maths.
func TestQueryGetUserList_InitialFilterAndPaging(t *testing.T) {
	accounts := []domainAccount.Account{alice, bob, cara}
	for i := range 12 {
		accounts = append(accounts, domainAccount.Account{ID: fmt.Sprintf("a%d", i), FirstName: fmt.Sprintf("Anna%02d", i), Email: fmt.Sprintf("anna%d@example.com", i)})
	}
	owing := openBooking("b1", "u1", "e1")
	owing.CancellationFeeIncurred = true
	deps := GetUserListDeps{
		Accounts: &mockAccounts{accounts: accounts},
		Bookings: &mockBookings{bookings: []domainBooking.Booking{owing}},
	}

	res, err := QueryGetUserList(context.Background(), GetUserListQuery{
		Initial: "a",
		Page:    listutil.PageParams{Page: 2, PerPage: 10},
	}, deps)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.PageInfo.Total != 13 || res.PageInfo.TotalPages != 2 {
		t.Fatalf("unexpected page info %+v", res.PageInfo)
	}
	if len(res.Users) != 3 {
		t.Errorf("users on page 2=%d want 3", len(res.Users))
	}
	for _, letter := range []string{"A", "B", "C"} {
		if !res.Initials[letter] {
			t.Errorf("expected initial %s to be marked", letter)
		}
	}
	if res.Initials["Z"] {
		t.Error("expected Z to be unmarked")
	}

	first, err := QueryGetUserList(context.Background(), GetUserListQuery{Initial: "A", Page: listutil.PageParams{Page: 1, PerPage: 10}}, deps)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first.Users[0].Name != "Alice Smith" || !first.Users[0].HasOutstandingFees {
		t.Errorf("unexpected first user %+v", first.Users[0])
	}
}

// TestQueryGetUserList_SortAndRoleFilter verifies list parameters reach the store.
func TestQueryGetUserList_SortAndRoleFilter(t *testing.T) {
	deps := GetUserListDeps{
		Accounts: &mockAccounts{accounts: []domainAccount.Account{
			{ID: "u1", FirstName: "Zoe", Email: "a@example.com", Role: domainAccount.RoleStaff},
			{ID: "u2", FirstName: "Amy", Email: "m@example.com", Role: domainAccount.RoleStudent},
			{ID: "u3", FirstName: "Bea", Email: "z@example.com", Role: domainAccount.RoleStaff},
		}},
		Bookings: &mockBookings{},
	}
	q := url.Values{"role": {domainAccount.RoleStaff}, "sort": {"email"}, "dir": {"desc"}}
	query := NewUserListQuery(listutil.ParseListParams(q, UserListSpec))

	res, err := QueryGetUserList(context.Background(), query, deps)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Users) != 2 {
		t.Fatalf("users=%d want 2 staff", len(res.Users))
	}
	if res.Users[0].Account.ID != "u3" || res.Users[1].Account.ID != "u1" {
		t.Errorf("expected staff by email descending, got %s then %s", res.Users[0].Account.ID, res.Users[1].Account.ID)
	}
}
