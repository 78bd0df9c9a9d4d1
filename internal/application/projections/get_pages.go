package projections

import (
	"context"
	"errors"
	"fmt"

	domainWebsite "studio/internal/domain/website"
)

var (
	ErrPageNotFound  = errors.New("page not found")
	ErrLoginRequired = errors.New("page is only available to logged in users")
)

// QueryGetPage loads a public page by name.
// POST: inactive pages report ErrPageNotFound; restricted pages need a logged in user
func QueryGetPage(ctx context.Context, name string, loggedIn bool, store WebsiteStore) (domainWebsite.Page, error) {
	page, err := store.GetPageByName(ctx, name)
	if err != nil {
		return domainWebsite.Page{}, fmt.Errorf("%w: %w", ErrPageNotFound, err)
	}
	if !page.Active {
		return domainWebsite.Page{}, ErrPageNotFound
	}
	if page.Restricted && !loggedIn {
		return domainWebsite.Page{}, ErrLoginRequired
	}
	return page, nil
}

// MenuItem is a page link in the site navigation.
type MenuItem struct {
	Name  string
	Title string
}

// QueryGetMenu lists the active pages shown in the navigation, in menu order.
func QueryGetMenu(ctx context.Context, store WebsiteStore) ([]MenuItem, error) {
	pages, err := store.ListPages(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("list menu pages: %w", err)
	}
	items := make([]MenuItem, 0, len(pages))
	for _, p := range pages {
		items = append(items, MenuItem{Name: p.Name, Title: p.Title})
	}
	return items, nil
}

// QueryGetAbout returns the about page sections in display order.
func QueryGetAbout(ctx context.Context, store WebsiteStore) ([]domainWebsite.AboutInfo, error) {
	sections, err := store.ListAbout(ctx)
	if err != nil {
		return nil, fmt.Errorf("list about info: %w", err)
	}
	return sections, nil
}
