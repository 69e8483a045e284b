package sync

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/vonshlovens/docsync/internal/model"
)

// Entry is what the journal remembers about a document at its last push
type Entry struct {
	Title    string        `json:"title"`
	Type     model.DocType `json:"type"`
	Hash     string        `json:"hash"`
	PushedAt time.Time     `json:"pushed_at"`
}

// StaticEntry maps a downloaded attachment back to its remote reference
type StaticEntry struct {
	Ref  string `json:"ref"`
	Hash string `json:"hash"`
}

type journalState struct {
	Root     string                  `json:"root"`
	LastPush *time.Time              `json:"last_push,omitempty"`
	LastPull *time.Time              `json:"last_pull,omitempty"`
	Files    map[string]*Entry       `json:"files"`
	Statics  map[string]*StaticEntry `json:"statics,omitempty"`
}

// Journal persists per-root run history as JSON. It is keyed by
// root-relative document paths.
type Journal struct {
	state    *journalState
	filePath string
	mu       sync.RWMutex
	dirty    bool
}

// OpenJournal loads the journal for root from dir, starting empty when none
// exists or it belongs to another root
func OpenJournal(dir, root string) (*Journal, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve docs root: %w", err)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create journal directory: %w", err)
	}

	j := &Journal{
		filePath: filepath.Join(dir, "journal-"+HashString(absRoot)[:12]+".json"),
		state:    newJournalState(absRoot),
	}

	if err := j.load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read journal: %w", err)
	}
	if j.state.Root != absRoot {
		j.state = newJournalState(absRoot)
	}

	return j, nil
}

func newJournalState(root string) *journalState {
	return &journalState{
		Root:    root,
		Files:   make(map[string]*Entry),
		Statics: make(map[string]*StaticEntry),
	}
}

// Path returns the journal file location
func (j *Journal) Path() string {
	return j.filePath
}

// Root returns the absolute docs root the journal belongs to
func (j *Journal) Root() string {
	return j.state.Root
}

func (j *Journal) load() error {
	data, err := os.ReadFile(j.filePath)
	if err != nil {
		return err
	}

	state := &journalState{}
	if err := json.Unmarshal(data, state); err != nil {
		return err
	}
	if state.Files == nil {
		state.Files = make(map[string]*Entry)
	}
	if state.Statics == nil {
		state.Statics = make(map[string]*StaticEntry)
	}

	j.state = state
	return nil
}

// Save writes the journal if it changed since the last save
func (j *Journal) Save() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if !j.dirty {
		return nil
	}

	data, err := json.MarshalIndent(j.state, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(j.filePath, data, 0644); err != nil {
		return err
	}

	j.dirty = false
	return nil
}

// Entry returns the entry recorded for relPath, or nil
func (j *Journal) Entry(relPath string) *Entry {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.state.Files[relPath]
}

// Record stores the entry for relPath
func (j *Journal) Record(relPath string, e *Entry) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.state.Files[relPath] = e
	j.dirty = true
}

// Forget drops the entry for relPath
func (j *Journal) Forget(relPath string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	delete(j.state.Files, relPath)
	j.dirty = true
}

// Paths returns every recorded path in lexical order
func (j *Journal) Paths() []string {
	j.mu.RLock()
	defer j.mu.RUnlock()

	paths := make([]string, 0, len(j.state.Files))
	for p := range j.state.Files {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Changed reports whether relPath was never pushed or had another hash
func (j *Journal) Changed(relPath, hash string) bool {
	j.mu.RLock()
	defer j.mu.RUnlock()

	e, ok := j.state.Files[relPath]
	if !ok {
		return true
	}
	return e.Hash != hash
}

// RecordStatic remembers that the file at absPath was downloaded for ref
func (j *Journal) RecordStatic(absPath, ref string) {
	hash, err := HashFile(absPath)
	if err != nil {
		return
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	j.state.Statics[absPath] = &StaticEntry{Ref: ref, Hash: hash}
	j.dirty = true
}

// StaticRef returns the remote reference absPath was downloaded from, as
// long as the file is unchanged since
func (j *Journal) StaticRef(absPath string) (string, bool) {
	j.mu.RLock()
	e, ok := j.state.Statics[absPath]
	j.mu.RUnlock()
	if !ok {
		return "", false
	}

	hash, err := HashFile(absPath)
	if err != nil || hash != e.Hash {
		return "", false
	}
	return e.Ref, true
}

// SetLastPush records the time of the last push run
func (j *Journal) SetLastPush(t time.Time) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.state.LastPush = &t
	j.dirty = true
}

// LastPush returns the time of the last push run
func (j *Journal) LastPush() *time.Time {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.state.LastPush
}

// SetLastPull records the time of the last pull run
func (j *Journal) SetLastPull(t time.Time) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.state.LastPull = &t
	j.dirty = true
}

// LastPull returns the time of the last pull run
func (j *Journal) LastPull() *time.Time {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.state.LastPull
}

// Clear removes all recorded entries
func (j *Journal) Clear() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.state.Files = make(map[string]*Entry)
	j.state.Statics = make(map[string]*StaticEntry)
	j.state.LastPush = nil
	j.state.LastPull = nil
	j.dirty = true
}

// HashFile computes the SHA256 hash of a file
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}

// HashString computes the SHA256 hash of a string
func HashString(content string) string {
	h := sha256.Sum256([]byte(content))
	return hex.EncodeToString(h[:])
}
