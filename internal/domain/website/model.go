package website

import (
	"errors"
	"regexp"
	"strings"
)

// Domain errors
var (
	ErrEmptyName    = errors.New("page name cannot be empty")
	ErrInvalidName  = errors.New("page name may only contain lowercase letters, numbers and dashes")
	ErrEmptyTitle   = errors.New("page title cannot be empty")
	ErrEmptyContent = errors.New("content cannot be empty")
	ErrReservedName = errors.New("page name is reserved")
)

var pageNamePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9-]*$`)

// reservedNames are top-level routes that pages cannot shadow in the menu.
var reservedNames = map[string]bool{"about": true, "gallery": true, "timetable": true, "events": true}

// Page is a markdown page served at /page/{name}.
type Page struct {
	ID            string
	Name          string
	Title         string
	Content       string // markdown
	Active        bool
	Restricted    bool // visible to logged-in users only
	DisplayInMenu bool
	MenuOrder     int
}

// Validate checks if the Page has valid data.
// PRE: Page struct is populated
// POST: Returns nil if valid, error otherwise
func (p *Page) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return ErrEmptyName
	}
	if !pageNamePattern.MatchString(p.Name) {
		return ErrInvalidName
	}
	if reservedNames[p.Name] {
		return ErrReservedName
	}
	if strings.TrimSpace(p.Title) == "" {
		return ErrEmptyTitle
	}
	return nil
}

// AboutInfo is a markdown section on the about page.
type AboutInfo struct {
	ID         string
	Heading    string
	Subheading string
	Content    string // markdown
	Order      int
}

// Validate checks if the AboutInfo has valid data.
func (a *AboutInfo) Validate() error {
	if strings.TrimSpace(a.Content) == "" {
		return ErrEmptyContent
	}
	return nil
}
