package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/vonshlovens/docsync/internal/model"
	"github.com/vonshlovens/docsync/internal/remote"
	"github.com/vonshlovens/docsync/internal/scanner"
)

var (
	// ErrPrecondition wraps failures detected before anything is changed
	ErrPrecondition = errors.New("precondition failed")

	// ErrItemsFailed is returned when a run completed but some items failed
	ErrItemsFailed = errors.New("some items failed")
)

// Backup file names inside a backup directory
const (
	BackupDataFile   = "blog_data.json"
	BackupStaticFile = "blog_static.zip"
)

// DefaultPullPageSize is large enough to fetch a whole collection at once
const DefaultPullPageSize = 100000

// Conflict modes
const (
	ModeShow   = "show"
	ModePull   = "pull"
	ModeDelete = "delete"
)

// PostService is the remote post collection
type PostService interface {
	AllTitles(ctx context.Context) ([]string, error)
	ByTitle(ctx context.Context, title string) (*model.Post, error)
	Create(ctx context.Context, post *model.Post) error
	Update(ctx context.Context, title string, post *model.Post) error
	Delete(ctx context.Context, title string) error
	List(ctx context.Context, opts remote.ListOptions) (*remote.PostList, error)
}

// PageService is the remote page collection
type PageService interface {
	AllTitles(ctx context.Context) ([]string, error)
	ByTitle(ctx context.Context, title string) (*model.Page, error)
	Create(ctx context.Context, page *model.Page) error
	Update(ctx context.Context, title string, page *model.Page) error
	Delete(ctx context.Context, title string) error
	List(ctx context.Context, page, size int, isActive *bool) (*remote.PageList, error)
}

// FileService stores attachments
type FileService interface {
	Uploader
	Downloader
	CleanExtra(ctx context.Context) (map[string]any, error)
}

// RootService exports and imports the whole backend
type RootService interface {
	ExportData(ctx context.Context, path string) (int64, error)
	ExportStatic(ctx context.Context, path string) (int64, error)
	ValidateImport(ctx context.Context, path string) (bool, error)
	ImportData(ctx context.Context, path string) (map[string]any, error)
	ImportStatic(ctx context.Context, path string) (map[string]any, error)
}

// Services bundles the remote collaborators of an Engine
type Services struct {
	Posts PostService
	Pages PageService
	Files FileService
	Root  RootService
}

// ClientServices returns the services of a remote client
func ClientServices(c *remote.Client) Services {
	return Services{
		Posts: c.Posts(),
		Pages: c.Pages(),
		Files: c.Files(),
		Root:  c.Root(),
	}
}

// Options tunes an Engine
type Options struct {
	StaticDir    string
	PullPageSize int
	Journal      *Journal
	Reporter     *Reporter
}

// Summary counts the per-item results of one run
type Summary struct {
	Created      int
	Updated      int
	Ignored      int
	Written      int
	Deleted      int
	Failed       int
	AttachFailed int
}

func (s *Summary) count(a model.Action) {
	switch a {
	case model.ActionCreate:
		s.Created++
	case model.ActionUpdate:
		s.Updated++
	case model.ActionIgnore:
		s.Ignored++
	}
}

func (s Summary) err() error {
	if s.Failed > 0 {
		return fmt.Errorf("%w: %d failed", ErrItemsFailed, s.Failed)
	}
	return nil
}

// Engine reconciles a local docs tree with the remote collections
type Engine struct {
	svc          Services
	scanner      *scanner.Scanner
	relocator    *Relocator
	journal      *Journal
	report       *Reporter
	staticDir    string
	pullPageSize int
}

// NewEngine creates a new sync engine
func NewEngine(svc Services, sc *scanner.Scanner, opts Options) *Engine {
	if opts.PullPageSize <= 0 {
		opts.PullPageSize = DefaultPullPageSize
	}
	if opts.StaticDir == "" {
		opts.StaticDir = DefaultStaticDir
	}
	if opts.Reporter == nil {
		opts.Reporter = NewReporter(nil)
	}
	if sc == nil {
		sc = scanner.New(nil, nil)
	}

	var up Uploader
	var down Downloader
	if svc.Files != nil {
		up, down = svc.Files, svc.Files
	}

	return &Engine{
		svc:          svc,
		scanner:      sc,
		relocator:    NewRelocator(up, down, opts.StaticDir, opts.Journal),
		journal:      opts.Journal,
		report:       opts.Reporter,
		staticDir:    opts.StaticDir,
		pullPageSize: opts.PullPageSize,
	}
}

// Push scans root and upserts every post, then every page
func (e *Engine) Push(ctx context.Context, root string) (Summary, error) {
	if err := requireDir(root); err != nil {
		return Summary{}, err
	}

	start := time.Now()
	posts, pages, err := e.scanner.Scan(root)
	if err != nil {
		return Summary{}, fmt.Errorf("%w: %v", ErrPrecondition, err)
	}

	var sum Summary
	total := len(posts) + len(pages)
	i := 0

	for _, post := range posts {
		i++
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		e.pushPost(ctx, root, &post, i, total, &sum)
	}
	for _, page := range pages {
		i++
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		e.pushPage(ctx, root, &page, i, total, &sum)
	}

	if e.journal != nil {
		e.journal.SetLastPush(time.Now())
		if err := e.journal.Save(); err != nil {
			slog.Warn("failed to save journal", "error", err)
		}
	}

	slog.Info("push completed",
		"created", sum.Created,
		"updated", sum.Updated,
		"ignored", sum.Ignored,
		"failed", sum.Failed,
		"duration_s", time.Since(start).Seconds())

	return sum, sum.err()
}

// PushFile pushes the single document at path. It is used by watch mode.
func (e *Engine) PushFile(ctx context.Context, root, path string) (Summary, error) {
	var sum Summary

	post, page, err := e.scanner.ScanFile(root, path)
	if err != nil {
		return sum, fmt.Errorf("failed to scan %s: %w", path, err)
	}

	switch {
	case post != nil:
		e.pushPost(ctx, root, post, 1, 1, &sum)
	case page != nil:
		e.pushPage(ctx, root, page, 1, 1, &sum)
	}

	if e.journal != nil {
		if err := e.journal.Save(); err != nil {
			slog.Warn("failed to save journal", "error", err)
		}
	}
	return sum, sum.err()
}

func (e *Engine) pushPost(ctx context.Context, root string, post *model.Post, i, total int, sum *Summary) {
	content, moved, failures := e.relocator.Outbound(ctx, post.Content, post.Attach)
	post.Content = content
	if target, ok := moved[post.Cover]; ok {
		post.Cover = target
	}
	sum.AttachFailed += len(failures)

	outcome, err := e.UpsertPost(ctx, post)
	if err != nil {
		sum.Failed++
		e.report.Item(i, total, "PUSH", post.Title, "type", model.TypePost, "error", err, "attach_failed", nonZero(len(failures)))
		return
	}

	sum.count(outcome.Action)
	e.report.Item(i, total, "PUSH", post.Title,
		"type", model.TypePost,
		"action", outcome.Action,
		"diff", outcome.DiffString(),
		"attach_failed", nonZero(len(failures)))
	e.record(root, post.FilePath, post.Title, model.TypePost)
}

func (e *Engine) pushPage(ctx context.Context, root string, page *model.Page, i, total int, sum *Summary) {
	content, _, failures := e.relocator.Outbound(ctx, page.Content, page.Attach)
	page.Content = content
	sum.AttachFailed += len(failures)

	outcome, err := e.UpsertPage(ctx, page)
	if err != nil {
		sum.Failed++
		e.report.Item(i, total, "PUSH", page.Title, "type", model.TypePage, "error", err, "attach_failed", nonZero(len(failures)))
		return
	}

	sum.count(outcome.Action)
	e.report.Item(i, total, "PUSH", page.Title,
		"type", model.TypePage,
		"action", outcome.Action,
		"diff", outcome.DiffString(),
		"attach_failed", nonZero(len(failures)))
	e.record(root, page.FilePath, page.Title, model.TypePage)
}

// record remembers a pushed file in the journal
func (e *Engine) record(root, path, title string, typ model.DocType) {
	if e.journal == nil || path == "" {
		return
	}
	hash, err := HashFile(path)
	if err != nil {
		slog.Debug("failed to hash pushed file", "path", path, "error", err)
		return
	}
	rel, err := relPath(root, path)
	if err != nil {
		return
	}
	e.journal.Record(rel, &Entry{Title: title, Type: typ, Hash: hash, PushedAt: time.Now()})
}

// UpsertPost creates the post when the remote has no post with its title,
// updates it when any compared field differs and leaves it alone otherwise
func (e *Engine) UpsertPost(ctx context.Context, post *model.Post) (model.Outcome, error) {
	if post.Title == "" {
		return model.Outcome{}, errors.New("post has no title")
	}

	existing, err := e.svc.Posts.ByTitle(ctx, post.Title)
	if errors.Is(err, remote.ErrNotFound) {
		if err := e.svc.Posts.Create(ctx, post); err != nil {
			return model.Outcome{}, fmt.Errorf("failed to create post: %w", err)
		}
		return model.Outcome{Action: model.ActionCreate}, nil
	}
	if err != nil {
		return model.Outcome{}, fmt.Errorf("failed to look up post: %w", err)
	}

	diff := Diff(post.Fields(), existing.Fields())
	if len(diff) == 0 {
		return model.Outcome{Action: model.ActionIgnore}, nil
	}

	if err := e.svc.Posts.Update(ctx, post.Title, post); err != nil {
		return model.Outcome{}, fmt.Errorf("failed to update post: %w", err)
	}
	return model.Outcome{Action: model.ActionUpdate, Diff: diff}, nil
}

// UpsertPage is UpsertPost for pages
func (e *Engine) UpsertPage(ctx context.Context, page *model.Page) (model.Outcome, error) {
	if page.Title == "" {
		return model.Outcome{}, errors.New("page has no title")
	}

	existing, err := e.svc.Pages.ByTitle(ctx, page.Title)
	if errors.Is(err, remote.ErrNotFound) {
		if err := e.svc.Pages.Create(ctx, page); err != nil {
			return model.Outcome{}, fmt.Errorf("failed to create page: %w", err)
		}
		return model.Outcome{Action: model.ActionCreate}, nil
	}
	if err != nil {
		return model.Outcome{}, fmt.Errorf("failed to look up page: %w", err)
	}

	diff := Diff(page.Fields(), existing.Fields())
	if len(diff) == 0 {
		return model.Outcome{Action: model.ActionIgnore}, nil
	}

	if err := e.svc.Pages.Update(ctx, page.Title, page); err != nil {
		return model.Outcome{}, fmt.Errorf("failed to update page: %w", err)
	}
	return model.Outcome{Action: model.ActionUpdate, Diff: diff}, nil
}

// Pull writes remote documents below root. A nil posts or pages slice
// fetches the whole remote collection; an empty one pulls nothing.
func (e *Engine) Pull(ctx context.Context, root string, posts []model.Post, pages []model.Page) (Summary, error) {
	start := time.Now()

	if posts == nil {
		list, err := e.svc.Posts.List(ctx, remote.ListOptions{Page: 1, Size: e.pullPageSize})
		if err != nil {
			return Summary{}, fmt.Errorf("failed to list posts: %w", err)
		}
		posts = list.Posts
	}
	if pages == nil {
		list, err := e.svc.Pages.List(ctx, 1, e.pullPageSize, nil)
		if err != nil {
			return Summary{}, fmt.Errorf("failed to list pages: %w", err)
		}
		pages = list.Pages
	}

	if err := os.MkdirAll(root, 0755); err != nil {
		return Summary{}, fmt.Errorf("failed to create docs root: %w", err)
	}
	e.relocator.ResetClaims()

	var sum Summary
	total := len(posts) + len(pages)
	i := 0

	for _, post := range posts {
		i++
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		content, failures := e.relocator.Inbound(ctx, post.Content, root)
		post.Content = content
		sum.AttachFailed += len(failures)

		path, err := WritePost(root, &post)
		if err != nil {
			sum.Failed++
			e.report.Item(i, total, "PULL", post.Title, "type", model.TypePost, "error", err)
			continue
		}
		sum.Written++
		e.report.Item(i, total, "PULL", post.Title,
			"type", model.TypePost,
			"category", post.Category,
			"tag", post.Tag,
			"path", path,
			"attach_failed", nonZero(len(failures)))
	}

	for _, page := range pages {
		i++
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		content, failures := e.relocator.Inbound(ctx, page.Content, root)
		page.Content = content
		sum.AttachFailed += len(failures)

		path, err := WritePage(root, &page)
		if err != nil {
			sum.Failed++
			e.report.Item(i, total, "PULL", page.Title, "type", model.TypePage, "error", err)
			continue
		}
		sum.Written++
		e.report.Item(i, total, "PULL", page.Title,
			"type", model.TypePage,
			"path", path,
			"attach_failed", nonZero(len(failures)))
	}

	if e.journal != nil {
		e.journal.SetLastPull(time.Now())
		if err := e.journal.Save(); err != nil {
			slog.Warn("failed to save journal", "error", err)
		}
	}

	slog.Info("pull completed",
		"written", sum.Written,
		"failed", sum.Failed,
		"duration_s", time.Since(start).Seconds())

	return sum, sum.err()
}

// WritePost serializes post to <root>/<category>[/<tag>]/<title>.md and
// returns the written path
func WritePost(root string, post *model.Post) (string, error) {
	if post.Title == "" {
		return "", errors.New("post has no title")
	}
	dir := root
	if post.Category != "" {
		dir = filepath.Join(dir, post.Category)
		if post.Tag != "" {
			dir = filepath.Join(dir, post.Tag)
		}
	}
	return writeDocument(dir, post.Title, post.Metadata(), post.Content)
}

// WritePage serializes page to <root>/<title>.md
func WritePage(root string, page *model.Page) (string, error) {
	if page.Title == "" {
		return "", errors.New("page has no title")
	}
	return writeDocument(root, page.Title, page.Metadata(), page.Content)
}

// FormatDocument renders meta as a YAML frontmatter block followed by body
func FormatDocument(meta any, body string) (string, error) {
	header, err := yaml.Marshal(meta)
	if err != nil {
		return "", fmt.Errorf("failed to encode metadata: %w", err)
	}
	return "---\n" + string(header) + "---\n" + body, nil
}

func writeDocument(dir, title string, meta any, body string) (string, error) {
	content, err := FormatDocument(meta, body)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}

	path := filepath.Join(dir, model.FileName(title))
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return "", fmt.Errorf("failed to write document: %w", err)
	}
	return path, nil
}

// ValidConflictMode reports whether mode is one Conflict accepts
func ValidConflictMode(mode string) bool {
	switch mode {
	case ModeShow, ModePull, ModeDelete:
		return true
	}
	return false
}

// Conflicts returns the remote titles that have no local counterpart, per
// collection, in remote order
func (e *Engine) Conflicts(ctx context.Context, root string) (model.ConflictSet, error) {
	if err := requireDir(root); err != nil {
		return model.ConflictSet{}, err
	}

	posts, pages, err := e.scanner.Scan(root)
	if err != nil {
		return model.ConflictSet{}, fmt.Errorf("%w: %v", ErrPrecondition, err)
	}

	remotePosts, err := e.svc.Posts.AllTitles(ctx)
	if err != nil {
		return model.ConflictSet{}, fmt.Errorf("failed to list post titles: %w", err)
	}
	remotePages, err := e.svc.Pages.AllTitles(ctx)
	if err != nil {
		return model.ConflictSet{}, fmt.Errorf("failed to list page titles: %w", err)
	}

	localPosts := make(map[string]bool, len(posts))
	for _, p := range posts {
		localPosts[p.Title] = true
	}
	localPages := make(map[string]bool, len(pages))
	for _, p := range pages {
		localPages[p.Title] = true
	}

	return model.ConflictSet{
		Posts: subtract(remotePosts, localPosts),
		Pages: subtract(remotePages, localPages),
	}, nil
}

// Conflict resolves the conflict set of root according to mode: show lists
// it, pull writes those documents locally and delete removes them remotely
func (e *Engine) Conflict(ctx context.Context, mode, root string) (model.ConflictSet, Summary, error) {
	if !ValidConflictMode(mode) {
		return model.ConflictSet{}, Summary{}, fmt.Errorf("%w: unknown conflict mode %q", ErrPrecondition, mode)
	}

	set, err := e.Conflicts(ctx, root)
	if err != nil {
		return set, Summary{}, err
	}
	if set.Empty() {
		e.report.Event("CONFLICT", "no conflicts", "mode", mode)
		return set, Summary{}, nil
	}

	var sum Summary
	switch mode {
	case ModeShow:
		i := 0
		for _, title := range set.Posts {
			i++
			e.report.Item(i, set.Len(), "CONFLICT", title, "type", model.TypePost)
		}
		for _, title := range set.Pages {
			i++
			e.report.Item(i, set.Len(), "CONFLICT", title, "type", model.TypePage)
		}

	case ModePull:
		posts := make([]model.Post, 0, len(set.Posts))
		for _, title := range set.Posts {
			post, err := e.svc.Posts.ByTitle(ctx, title)
			if err != nil {
				sum.Failed++
				e.report.Event("CONFLICT", "fetch failed", "title", title, "type", model.TypePost, "error", err)
				continue
			}
			posts = append(posts, *post)
		}
		pages := make([]model.Page, 0, len(set.Pages))
		for _, title := range set.Pages {
			page, err := e.svc.Pages.ByTitle(ctx, title)
			if err != nil {
				sum.Failed++
				e.report.Event("CONFLICT", "fetch failed", "title", title, "type", model.TypePage, "error", err)
				continue
			}
			pages = append(pages, *page)
		}

		pulled, err := e.Pull(ctx, root, posts, pages)
		pulled.Failed += sum.Failed
		if err != nil && !errors.Is(err, ErrItemsFailed) {
			return set, pulled, err
		}
		sum = pulled

	case ModeDelete:
		sum = e.deleteAll(ctx, set.Posts, set.Pages)
	}

	e.report.Event("CONFLICT", "done",
		"mode", mode,
		"post", len(set.Posts),
		"page", len(set.Pages))

	return set, sum, sum.err()
}

// Clear deletes every remote post and page, then removes orphaned files
func (e *Engine) Clear(ctx context.Context) (Summary, error) {
	posts, err := e.svc.Posts.AllTitles(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("failed to list post titles: %w", err)
	}
	pages, err := e.svc.Pages.AllTitles(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("failed to list page titles: %w", err)
	}

	sum := e.deleteAll(ctx, posts, pages)
	e.report.Event("CLEAR", "done", "post", len(posts), "page", len(pages), "failed", nonZero(sum.Failed))

	if _, err := e.Clean(ctx); err != nil {
		return sum, err
	}
	if e.journal != nil {
		e.journal.Clear()
		if err := e.journal.Save(); err != nil {
			slog.Warn("failed to save journal", "error", err)
		}
	}
	return sum, sum.err()
}

func (e *Engine) deleteAll(ctx context.Context, posts, pages []string) Summary {
	var sum Summary
	total := len(posts) + len(pages)
	i := 0

	for _, title := range posts {
		i++
		if err := e.svc.Posts.Delete(ctx, title); err != nil {
			sum.Failed++
			e.report.Item(i, total, "DELETE", title, "type", model.TypePost, "error", err)
			continue
		}
		sum.Deleted++
		e.report.Item(i, total, "DELETE", title, "type", model.TypePost)
	}
	for _, title := range pages {
		i++
		if err := e.svc.Pages.Delete(ctx, title); err != nil {
			sum.Failed++
			e.report.Item(i, total, "DELETE", title, "type", model.TypePage, "error", err)
			continue
		}
		sum.Deleted++
		e.report.Item(i, total, "DELETE", title, "type", model.TypePage)
	}
	return sum
}

// Clean asks the remote to remove files no document references
func (e *Engine) Clean(ctx context.Context) (map[string]any, error) {
	result, err := e.svc.Files.CleanExtra(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to clean files: %w", err)
	}
	e.report.Map("CLEAN", "done", result)
	return result, nil
}

// BackupResult describes the files a backup produced
type BackupResult struct {
	DataPath   string
	DataSize   int64
	StaticPath string
	StaticSize int64
}

// Backup exports the remote data and static files into dir
func (e *Engine) Backup(ctx context.Context, dir string) (*BackupResult, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create backup directory: %w", err)
	}

	res := &BackupResult{
		DataPath:   filepath.Join(dir, BackupDataFile),
		StaticPath: filepath.Join(dir, BackupStaticFile),
	}

	var err error
	if res.DataSize, err = e.svc.Root.ExportData(ctx, res.DataPath); err != nil {
		return nil, fmt.Errorf("failed to export data: %w", err)
	}
	if res.StaticSize, err = e.svc.Root.ExportStatic(ctx, res.StaticPath); err != nil {
		return nil, fmt.Errorf("failed to export static files: %w", err)
	}

	return res, nil
}

// RestoreResult holds the remote import reports
type RestoreResult struct {
	DataPath   string
	StaticPath string
	Data       map[string]any
	Static     map[string]any
}

// Restore imports a backup directory. The directory must hold exactly one
// .json data file and one .zip archive, and the data file must pass remote
// validation before anything is imported.
func (e *Engine) Restore(ctx context.Context, dir string) (*RestoreResult, error) {
	dataPath, staticPath, err := BackupFiles(dir)
	if err != nil {
		return nil, err
	}

	valid, err := e.svc.Root.ValidateImport(ctx, dataPath)
	if err != nil {
		return nil, fmt.Errorf("failed to validate backup data: %w", err)
	}
	if !valid {
		return nil, fmt.Errorf("%w: %s failed remote validation", ErrPrecondition, dataPath)
	}

	res := &RestoreResult{DataPath: dataPath, StaticPath: staticPath}
	if res.Data, err = e.svc.Root.ImportData(ctx, dataPath); err != nil {
		return nil, fmt.Errorf("failed to import data: %w", err)
	}
	if res.Static, err = e.svc.Root.ImportStatic(ctx, staticPath); err != nil {
		return res, fmt.Errorf("failed to import static files: %w", err)
	}

	return res, nil
}

// BackupFiles returns the data file and archive of a backup directory
func BackupFiles(dir string) (string, string, error) {
	if err := requireDir(dir); err != nil {
		return "", "", err
	}

	jsons, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return "", "", fmt.Errorf("failed to list backup directory: %w", err)
	}
	zips, err := filepath.Glob(filepath.Join(dir, "*.zip"))
	if err != nil {
		return "", "", fmt.Errorf("failed to list backup directory: %w", err)
	}

	if len(jsons) != 1 || len(zips) != 1 {
		return "", "", fmt.Errorf("%w: %s must contain exactly one .json and one .zip file, found %d and %d",
			ErrPrecondition, dir, len(jsons), len(zips))
	}
	return jsons[0], zips[0], nil
}

// FileState is the push state of one local document
type FileState string

const (
	StateNew       FileState = "new"
	StateModified  FileState = "modified"
	StateUnchanged FileState = "unchanged"
	StateMissing   FileState = "missing"
)

// FileStatus pairs a document path with its push state
type FileStatus struct {
	Path  string
	Title string
	Type  model.DocType
	State FileState
}

// Status compares the documents below root with the journal
func (e *Engine) Status(root string) ([]FileStatus, error) {
	if e.journal == nil {
		return nil, errors.New("no journal configured")
	}
	if err := requireDir(root); err != nil {
		return nil, err
	}

	posts, pages, err := e.scanner.Scan(root)
	if err != nil {
		return nil, err
	}

	var out []FileStatus
	seen := make(map[string]bool)
	add := func(path, title string, typ model.DocType) {
		rel, err := relPath(root, path)
		if err != nil {
			return
		}
		seen[rel] = true

		st := FileStatus{Path: rel, Title: title, Type: typ, State: StateUnchanged}
		hash, err := HashFile(path)
		switch {
		case e.journal.Entry(rel) == nil:
			st.State = StateNew
		case err != nil || e.journal.Changed(rel, hash):
			st.State = StateModified
		}
		out = append(out, st)
	}

	for _, p := range posts {
		add(p.FilePath, p.Title, model.TypePost)
	}
	for _, p := range pages {
		add(p.FilePath, p.Title, model.TypePage)
	}

	for _, rel := range e.journal.Paths() {
		if seen[rel] {
			continue
		}
		entry := e.journal.Entry(rel)
		out = append(out, FileStatus{Path: rel, Title: entry.Title, Type: entry.Type, State: StateMissing})
	}

	slices.SortFunc(out, func(a, b FileStatus) int {
		switch {
		case a.Path < b.Path:
			return -1
		case a.Path > b.Path:
			return 1
		}
		return 0
	})
	return out, nil
}

func requireDir(dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPrecondition, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", ErrPrecondition, dir)
	}
	return nil
}

func relPath(root, path string) (string, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return "", err
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	rel, err := filepath.Rel(absRoot, absPath)
	if err != nil {
		return "", err
	}
	return filepath.ToSlash(rel), nil
}

// subtract returns the titles of remote missing from local, de-duplicated
func subtract(remoteTitles []string, local map[string]bool) []string {
	var out []string
	seen := make(map[string]bool)
	for _, t := range remoteTitles {
		if t == "" || local[t] || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

func nonZero(n int) any {
	if n == 0 {
		return ""
	}
	return n
}
