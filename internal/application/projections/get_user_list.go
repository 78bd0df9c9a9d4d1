package projections

import (
	"context"
	"fmt"

	"studio/internal/adapters/storage/account"
	"studio/internal/application/listutil"
	domainAccount "studio/internal/domain/account"
)

// Alphabet is the row of initials above the user list.
var Alphabet = []string{"A", "B", "C", "D", "E", "F", "G", "H", "I", "J", "K", "L", "M",
	"N", "O", "P", "Q", "R", "S", "T", "U", "V", "W", "X", "Y", "Z"}

// UserListSpec is the query parameters the admin user list understands.
var UserListSpec = listutil.ListSpec{
	SortKeys:    []string{account.SortByName, account.SortByEmail, account.SortByJoined},
	DefaultSort: listutil.SortParams{Sort: account.SortByName},
	FilterKeys:  []string{"initial", "role"},
}

// GetUserListQuery carries the admin user list filters.
type GetUserListQuery struct {
	Initial string
	Search  string
	Role    string
	Sort    listutil.SortParams
	Page    listutil.PageParams
}

// NewUserListQuery builds the query from parsed list parameters.
func NewUserListQuery(p listutil.ListParams) GetUserListQuery {
	return GetUserListQuery{
		Initial: p.Filter.Get("initial"),
		Search:  p.Filter.Search,
		Role:    p.Filter.Get("role"),
		Sort:    p.Sort,
		Page:    p.Page,
	}
}

// UserListRow is one account on the admin user list.
type UserListRow struct {
	Account            domainAccount.Account
	Name               string
	HasOutstandingFees bool
}

// GetUserListResult carries the query result.
type GetUserListResult struct {
	Users    []UserListRow
	Initials map[string]bool // which letters have at least one user
	Initial  string
	PageInfo listutil.PageInfo
}

// GetUserListDeps holds dependencies for GetUserList.
type GetUserListDeps struct {
	Accounts AccountStore
	Bookings BookingStore
}

// QueryGetUserList retrieves a page of users, optionally filtered by first-name initial.
// PRE: Page has been parsed with listutil.ParsePageParams
// POST: Initials is populated even when the page is empty
func QueryGetUserList(ctx context.Context, query GetUserListQuery, deps GetUserListDeps) (GetUserListResult, error) {
	filter := account.ListFilter{
		Initial: query.Initial,
		Search:  query.Search,
		Role:    query.Role,
		SortBy:  query.Sort.Sort,
		Desc:    query.Sort.Desc,
	}
	total, err := deps.Accounts.Count(ctx, filter)
	if err != nil {
		return GetUserListResult{}, fmt.Errorf("count accounts: %w", err)
	}
	page := listutil.NewPageInfo(query.Page.Page, query.Page.PerPage, total)
	filter.Limit = page.PerPage
	filter.Offset = page.Offset()

	accounts, err := deps.Accounts.List(ctx, filter)
	if err != nil {
		return GetUserListResult{}, fmt.Errorf("list accounts: %w", err)
	}
	initials, err := deps.Accounts.Initials(ctx)
	if err != nil {
		return GetUserListResult{}, fmt.Errorf("list initials: %w", err)
	}

	res := GetUserListResult{Initials: initials, Initial: query.Initial, PageInfo: page}
	for _, a := range accounts {
		owing, err := userOwesFees(ctx, deps.Bookings, a.ID)
		if err != nil {
			return GetUserListResult{}, err
		}
		res.Users = append(res.Users, UserListRow{Account: a, Name: a.DisplayName(), HasOutstandingFees: owing})
	}
	return res, nil
}
