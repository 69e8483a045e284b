package sync

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/vonshlovens/docsync/internal/model"
	"github.com/vonshlovens/docsync/internal/remote"
)

func notFound(op string) error {
	return &remote.StatusError{Op: op, Code: http.StatusNotFound}
}

// calls records remote calls shared by every fake service
type calls []string

func (c *calls) add(format string, args ...any) {
	*c = append(*c, fmt.Sprintf(format, args...))
}

type fakePosts struct {
	log       *calls
	items     map[string]model.Post
	order     []string
	lookupErr error
}

func (f *fakePosts) put(p model.Post) {
	if _, ok := f.items[p.Title]; !ok {
		f.order = append(f.order, p.Title)
	}
	p.FilePath = ""
	p.Attach = nil
	p.Extra = nil
	f.items[p.Title] = p
}

func (f *fakePosts) AllTitles(ctx context.Context) ([]string, error) {
	f.log.add("posts.all")
	return append([]string(nil), f.order...), nil
}

func (f *fakePosts) ByTitle(ctx context.Context, title string) (*model.Post, error) {
	f.log.add("posts.get %s", title)
	if f.lookupErr != nil {
		return nil, f.lookupErr
	}
	p, ok := f.items[title]
	if !ok {
		return nil, notFound("get post")
	}
	return &p, nil
}

func (f *fakePosts) Create(ctx context.Context, post *model.Post) error {
	f.log.add("posts.create %s", post.Title)
	f.put(*post)
	return nil
}

func (f *fakePosts) Update(ctx context.Context, title string, post *model.Post) error {
	f.log.add("posts.update %s", title)
	f.put(*post)
	return nil
}

func (f *fakePosts) Delete(ctx context.Context, title string) error {
	f.log.add("posts.delete %s", title)
	if _, ok := f.items[title]; !ok {
		return notFound("delete post")
	}
	delete(f.items, title)
	for i, t := range f.order {
		if t == title {
			f.order = append(f.order[:i], f.order[i+1:]...)
			break
		}
	}
	return nil
}

func (f *fakePosts) List(ctx context.Context, opts remote.ListOptions) (*remote.PostList, error) {
	f.log.add("posts.list size=%d", opts.Size)
	list := &remote.PostList{}
	for _, t := range f.order {
		list.Posts = append(list.Posts, f.items[t])
	}
	list.Total = len(list.Posts)
	return list, nil
}

type fakePages struct {
	log   *calls
	items map[string]model.Page
	order []string
}

func (f *fakePages) put(p model.Page) {
	if _, ok := f.items[p.Title]; !ok {
		f.order = append(f.order, p.Title)
	}
	p.FilePath = ""
	p.Attach = nil
	p.Extra = nil
	f.items[p.Title] = p
}

func (f *fakePages) AllTitles(ctx context.Context) ([]string, error) {
	f.log.add("pages.all")
	return append([]string(nil), f.order...), nil
}

func (f *fakePages) ByTitle(ctx context.Context, title string) (*model.Page, error) {
	f.log.add("pages.get %s", title)
	p, ok := f.items[title]
	if !ok {
		return nil, notFound("get page")
	}
	return &p, nil
}

func (f *fakePages) Create(ctx context.Context, page *model.Page) error {
	f.log.add("pages.create %s", page.Title)
	f.put(*page)
	return nil
}

func (f *fakePages) Update(ctx context.Context, title string, page *model.Page) error {
	f.log.add("pages.update %s", title)
	f.put(*page)
	return nil
}

func (f *fakePages) Delete(ctx context.Context, title string) error {
	f.log.add("pages.delete %s", title)
	delete(f.items, title)
	for i, t := range f.order {
		if t == title {
			f.order = append(f.order[:i], f.order[i+1:]...)
			break
		}
	}
	return nil
}

func (f *fakePages) List(ctx context.Context, page, size int, isActive *bool) (*remote.PageList, error) {
	f.log.add("pages.list size=%d", size)
	list := &remote.PageList{}
	for _, t := range f.order {
		list.Pages = append(list.Pages, f.items[t])
	}
	list.Total = len(list.Pages)
	return list, nil
}

type fakeFiles struct {
	log       *calls
	failNames map[string]bool
	compress  bool
	remote    map[string]string // remote path -> content
	uploaded  []string
}

func (f *fakeFiles) UploadSingle(ctx context.Context, path string) (*remote.UploadResult, error) {
	name := filepath.Base(path)
	f.log.add("files.upload %s", name)
	if f.failNames[name] {
		return nil, errors.New("upload refused")
	}
	f.uploaded = append(f.uploaded, path)
	res := &remote.UploadResult{Success: true, URL: "/static/uploads/" + name}
	if f.compress {
		res.Compressed = true
		res.CompressedURL = "/static/compressed/" + strings.TrimSuffix(name, filepath.Ext(name)) + ".webp"
	}
	return res, nil
}

func (f *fakeFiles) Download(ctx context.Context, remotePath, localPath string) (int64, error) {
	f.log.add("files.download %s", remotePath)
	data, ok := f.remote[remotePath]
	if !ok {
		return 0, notFound("download file")
	}
	if err := os.MkdirAll(filepath.Dir(localPath), 0755); err != nil {
		return 0, err
	}
	if err := os.WriteFile(localPath, []byte(data), 0644); err != nil {
		return 0, err
	}
	return int64(len(data)), nil
}

func (f *fakeFiles) CleanExtra(ctx context.Context) (map[string]any, error) {
	f.log.add("files.clean")
	return map[string]any{"deleted": 2}, nil
}

type fakeRoot struct {
	log   *calls
	valid bool
}

func (f *fakeRoot) ExportData(ctx context.Context, path string) (int64, error) {
	f.log.add("root.export_data %s", filepath.Base(path))
	data := []byte(`{"posts":[]}`)
	return int64(len(data)), os.WriteFile(path, data, 0644)
}

func (f *fakeRoot) ExportStatic(ctx context.Context, path string) (int64, error) {
	f.log.add("root.export_static %s", filepath.Base(path))
	data := []byte("PK")
	return int64(len(data)), os.WriteFile(path, data, 0644)
}

func (f *fakeRoot) ValidateImport(ctx context.Context, path string) (bool, error) {
	f.log.add("root.validate %s", filepath.Base(path))
	return f.valid, nil
}

func (f *fakeRoot) ImportData(ctx context.Context, path string) (map[string]any, error) {
	f.log.add("root.import_data %s", filepath.Base(path))
	return map[string]any{"success": true}, nil
}

func (f *fakeRoot) ImportStatic(ctx context.Context, path string) (map[string]any, error) {
	f.log.add("root.import_static %s", filepath.Base(path))
	return map[string]any{"success": true}, nil
}

// backend is an in-memory remote
type backend struct {
	log   *calls
	posts *fakePosts
	pages *fakePages
	files *fakeFiles
	root  *fakeRoot
}

func newBackend() *backend {
	log := &calls{}
	return &backend{
		log:   log,
		posts: &fakePosts{log: log, items: map[string]model.Post{}},
		pages: &fakePages{log: log, items: map[string]model.Page{}},
		files: &fakeFiles{log: log, failNames: map[string]bool{}, remote: map[string]string{}},
		root:  &fakeRoot{log: log, valid: true},
	}
}

func (b *backend) services() Services {
	return Services{Posts: b.posts, Pages: b.pages, Files: b.files, Root: b.root}
}

func (b *backend) reset() {
	*b.log = nil
}
