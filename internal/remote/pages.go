package remote

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/vonshlovens/docsync/internal/model"
)

// PageList is one page of a page listing
type PageList struct {
	Pages []model.Page `json:"pages"`
	Total int          `json:"total"`
}

// PageService talks to the page endpoints
type PageService struct {
	c *Client
}

// AllTitles returns the title of every remote page
func (s *PageService) AllTitles(ctx context.Context) ([]string, error) {
	var titles []string
	err := s.c.do(ctx, request{op: "list page titles", method: http.MethodGet, path: "/api/pages/all"}, &titles)
	return titles, err
}

// ByTitle fetches a single page
func (s *PageService) ByTitle(ctx context.Context, title string) (*model.Page, error) {
	var page model.Page
	err := s.c.do(ctx, request{op: "get page", method: http.MethodGet, path: "/api/pages/" + escape(title)}, &page)
	if err != nil {
		return nil, err
	}
	return &page, nil
}

// Create stores a new page
func (s *PageService) Create(ctx context.Context, page *model.Page) error {
	req, err := jsonRequest("create page", http.MethodPost, "/api/admin/pages/", page)
	if err != nil {
		return err
	}
	return s.c.do(ctx, req, nil)
}

// Update replaces the page carrying the same title. The backend keys page
// updates on the body, so title is only checked against it.
func (s *PageService) Update(ctx context.Context, title string, page *model.Page) error {
	if title != page.Title {
		body := *page
		body.Title = title
		page = &body
	}
	req, err := jsonRequest("update page", http.MethodPut, "/api/admin/pages/", page)
	if err != nil {
		return err
	}
	return s.c.do(ctx, req, nil)
}

// Delete removes a page
func (s *PageService) Delete(ctx context.Context, title string) error {
	return s.c.do(ctx, request{op: "delete page", method: http.MethodDelete, path: "/api/admin/pages/" + escape(title)}, nil)
}

// List returns one page of pages. A nil isActive lists both states.
func (s *PageService) List(ctx context.Context, page, size int, isActive *bool) (*PageList, error) {
	if page <= 0 {
		page = 1
	}
	if size <= 0 {
		size = 10
	}
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("size", strconv.Itoa(size))
	if isActive != nil {
		q.Set("is_active", strconv.FormatBool(*isActive))
	}

	var list PageList
	err := s.c.do(ctx, request{op: "list pages", method: http.MethodGet, path: "/api/admin/pages/", query: q}, &list)
	if err != nil {
		return nil, err
	}
	return &list, nil
}

// Toggle flips the active flag of a page
func (s *PageService) Toggle(ctx context.Context, title string) error {
	return s.c.do(ctx, request{op: "toggle page", method: http.MethodPatch, path: "/api/admin/pages/" + escape(title) + "/toggle"}, nil)
}
