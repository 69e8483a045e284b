package remote

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/vonshlovens/docsync/internal/model"
)

// ListOptions filters a post listing. Nil filters are not sent.
type ListOptions struct {
	Page     int
	Size     int
	Category string
	IsLocked *bool
	IsTop    *bool
}

func (o ListOptions) values() url.Values {
	v := url.Values{}
	page, size := o.Page, o.Size
	if page <= 0 {
		page = 1
	}
	if size <= 0 {
		size = 10
	}
	v.Set("page", strconv.Itoa(page))
	v.Set("size", strconv.Itoa(size))
	if o.Category != "" {
		v.Set("category", o.Category)
	}
	if o.IsLocked != nil {
		v.Set("is_locked", strconv.FormatBool(*o.IsLocked))
	}
	if o.IsTop != nil {
		v.Set("is_top", strconv.FormatBool(*o.IsTop))
	}
	return v
}

// PostList is one page of a post listing
type PostList struct {
	Posts []model.Post `json:"posts"`
	Total int          `json:"total"`
}

// PostService talks to the post endpoints
type PostService struct {
	c *Client
}

// AllTitles returns the title of every remote post
func (s *PostService) AllTitles(ctx context.Context) ([]string, error) {
	var titles []string
	err := s.c.do(ctx, request{op: "list post titles", method: http.MethodGet, path: "/api/posts/all"}, &titles)
	return titles, err
}

// ByTitle fetches a single post. A missing post yields an error matching
// ErrNotFound.
func (s *PostService) ByTitle(ctx context.Context, title string) (*model.Post, error) {
	var post model.Post
	err := s.c.do(ctx, request{op: "get post", method: http.MethodGet, path: "/api/posts/title/" + escape(title)}, &post)
	if err != nil {
		return nil, err
	}
	return &post, nil
}

// Create stores a new post
func (s *PostService) Create(ctx context.Context, post *model.Post) error {
	req, err := jsonRequest("create post", http.MethodPost, "/api/admin/posts/", post)
	if err != nil {
		return err
	}
	return s.c.do(ctx, req, nil)
}

// Update replaces the post stored under title
func (s *PostService) Update(ctx context.Context, title string, post *model.Post) error {
	req, err := jsonRequest("update post", http.MethodPut, "/api/admin/posts/"+escape(title), post)
	if err != nil {
		return err
	}
	return s.c.do(ctx, req, nil)
}

// Delete removes a post
func (s *PostService) Delete(ctx context.Context, title string) error {
	return s.c.do(ctx, request{op: "delete post", method: http.MethodDelete, path: "/api/admin/posts/" + escape(title)}, nil)
}

// List returns one page of posts
func (s *PostService) List(ctx context.Context, opts ListOptions) (*PostList, error) {
	var list PostList
	err := s.c.do(ctx, request{op: "list posts", method: http.MethodGet, path: "/api/posts/", query: opts.values()}, &list)
	if err != nil {
		return nil, err
	}
	return &list, nil
}

// SetTop pins or unpins a post
func (s *PostService) SetTop(ctx context.Context, title string, top bool) error {
	q := url.Values{"is_top": {strconv.FormatBool(top)}}
	return s.c.do(ctx, request{op: "set post top", method: http.MethodPatch, path: "/api/admin/posts/" + escape(title) + "/top", query: q}, nil)
}

// SetLocked locks or unlocks a post
func (s *PostService) SetLocked(ctx context.Context, title string, locked bool) error {
	q := url.Values{"is_locked": {strconv.FormatBool(locked)}}
	return s.c.do(ctx, request{op: "set post lock", method: http.MethodPatch, path: "/api/admin/posts/" + escape(title) + "/lock", query: q}, nil)
}
