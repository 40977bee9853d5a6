// Package session implements the document-session store. The filesystem is
// the store: every read rebuilds the page list from the session's directory,
// and every mutation is applied to the underlying files first. In-memory
// state only preserves the page ordering and ids between rebuilds.
package session

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/scandock/scandock/internal/models"
)

// DefaultID is the implicit primary session every deployment has.
const DefaultID = "default"

var (
	// ErrEmptyPage means the candidate page file was zero bytes; the file has
	// already been deleted by the time this is returned.
	ErrEmptyPage = errors.New("page file is empty")

	// ErrPageNotFound means no page matched the given id or path.
	ErrPageNotFound = errors.New("page not found in session")

	// ErrUnknownPageID rejects a reorder naming an id the session does not
	// have. The existing order is left untouched.
	ErrUnknownPageID = errors.New("unknown page id in requested order")

	// ErrOutsideOutputDir rejects page paths that do not resolve under the
	// configured output directory.
	ErrOutsideOutputDir = errors.New("page path is outside the output directory")

	// ErrInvalidSessionID rejects ids that are not a single clean path
	// segment; anything else could resolve outside the output directory.
	ErrInvalidSessionID = errors.New("invalid session id")
)

var pageExtensions = map[string]bool{
	".pdf":  true,
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".tiff": true,
	".tif":  true,
	".pnm":  true,
}

// Store owns all sessions under one output directory. The default session
// lives in the directory root; named sessions each get a subdirectory.
type Store struct {
	baseDir string
	now     func() time.Time

	mu       sync.Mutex
	sessions map[string]*sessionState
}

type sessionState struct {
	mu      sync.Mutex
	id      string
	name    string
	created time.Time
	// order holds the authoritative page sequence between rebuilds; entries
	// whose files vanished are dropped on the next rebuild.
	order []models.Page
}

// NewStore returns a store rooted at baseDir.
func NewStore(baseDir string) *Store {
	return &Store{
		baseDir:  baseDir,
		now:      time.Now,
		sessions: make(map[string]*sessionState),
	}
}

// Dir reports the directory that holds a session's pages.
func (s *Store) Dir(sessionID string) (string, error) {
	id, err := normalizeID(sessionID)
	if err != nil {
		return "", err
	}
	return s.dir(id), nil
}

// dir assumes id has already passed normalizeID.
func (s *Store) dir(id string) string {
	if id == DefaultID {
		return s.baseDir
	}
	return filepath.Join(s.baseDir, id)
}

// normalizeID maps the empty id to the default session and rejects any id
// that is not exactly one path segment.
func normalizeID(sessionID string) (string, error) {
	if sessionID == "" {
		return DefaultID, nil
	}
	if sessionID == "." || sessionID == ".." || filepath.Base(sessionID) != sessionID {
		return "", fmt.Errorf("%w: %q", ErrInvalidSessionID, sessionID)
	}
	return sessionID, nil
}

// List returns every known session, each rebuilt from disk.
func (s *Store) List() ([]models.Session, error) {
	ids := map[string]bool{DefaultID: true}

	entries, err := os.ReadDir(s.baseDir)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read output directory: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() {
			ids[entry.Name()] = true
		}
	}

	s.mu.Lock()
	for id := range s.sessions {
		ids[id] = true
	}
	s.mu.Unlock()

	sorted := make([]string, 0, len(ids))
	for id := range ids {
		sorted = append(sorted, id)
	}
	sort.Strings(sorted)

	sessions := make([]models.Session, 0, len(sorted))
	for _, id := range sorted {
		sess, err := s.Get(id)
		if err != nil {
			slog.Warn("Skipping unreadable session", "session", id, "err", err)
			continue
		}
		sessions = append(sessions, sess)
	}
	return sessions, nil
}

// Get materializes a session, rebuilding its page list from the filesystem.
// Sessions do not need explicit creation; an unknown id yields an empty one.
func (s *Store) Get(sessionID string) (models.Session, error) {
	st, err := s.state(sessionID)
	if err != nil {
		return models.Session{}, err
	}
	st.mu.Lock()
	defer st.mu.Unlock()

	if err := s.rebuild(st); err != nil {
		return models.Session{}, err
	}
	return st.snapshot(), nil
}

// AddPage registers a captured file as the session's next page. The file must
// exist under the output directory and be non-empty; zero-byte files are
// deleted and reported as ErrEmptyPage.
func (s *Store) AddPage(sessionID, path string) (models.Page, error) {
	if !s.underBase(path) {
		return models.Page{}, fmt.Errorf("%w: %s", ErrOutsideOutputDir, path)
	}

	info, err := os.Stat(path)
	if err != nil {
		return models.Page{}, fmt.Errorf("page file does not exist: %w", err)
	}
	if info.Size() == 0 {
		removeQuietly(path)
		return models.Page{}, fmt.Errorf("%w: %s", ErrEmptyPage, path)
	}

	st, err := s.state(sessionID)
	if err != nil {
		return models.Page{}, err
	}
	st.mu.Lock()
	defer st.mu.Unlock()

	if err := s.rebuild(st); err != nil {
		return models.Page{}, err
	}

	// The rebuild discovers files in the session directory on its own; adding
	// an already-tracked file is a no-op that returns the existing record.
	for _, p := range st.order {
		if p.Filepath == path {
			return p, nil
		}
	}

	page := models.Page{
		ID:         uuid.NewString(),
		Filename:   filepath.Base(path),
		Filepath:   path,
		CapturedAt: info.ModTime(),
		SizeBytes:  info.Size(),
		Number:     len(st.order) + 1,
	}
	st.order = append(st.order, page)
	return page, nil
}

// RemovePage deletes a page and its file, matching by id first and falling
// back to a path or filename match. Remaining pages are renumbered so the
// sequence stays contiguous.
func (s *Store) RemovePage(sessionID, idOrPath string) error {
	st, err := s.state(sessionID)
	if err != nil {
		return err
	}
	st.mu.Lock()
	defer st.mu.Unlock()

	if err := s.rebuild(st); err != nil {
		return err
	}

	idx := -1
	for i, p := range st.order {
		if p.ID == idOrPath {
			idx = i
			break
		}
	}
	if idx < 0 {
		for i, p := range st.order {
			if p.Filepath == idOrPath || p.Filename == idOrPath {
				idx = i
				break
			}
		}
	}
	if idx < 0 {
		return fmt.Errorf("%w: %s", ErrPageNotFound, idOrPath)
	}

	page := st.order[idx]
	if err := os.Remove(page.Filepath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete page file: %w", err)
	}

	st.order = append(st.order[:idx], st.order[idx+1:]...)
	renumber(st.order)
	slog.Info("Removed page", "session", st.id, "file", page.Filename)
	return nil
}

// Clear deletes every page file in the session, best-effort, and reports how
// many were actually removed. A file that refuses to delete is logged and the
// clear continues.
func (s *Store) Clear(sessionID string) (int, error) {
	st, err := s.state(sessionID)
	if err != nil {
		return 0, err
	}
	st.mu.Lock()
	defer st.mu.Unlock()

	if err := s.rebuild(st); err != nil {
		return 0, err
	}

	deleted := 0
	for _, p := range st.order {
		if err := os.Remove(p.Filepath); err != nil && !os.IsNotExist(err) {
			slog.Warn("Failed to delete page file", "file", p.Filepath, "err", err)
			continue
		}
		deleted++
	}
	st.order = nil
	slog.Info("Cleared session", "session", st.id, "deleted", deleted)
	return deleted, nil
}

// Reorder applies a new page order given as page ids. The order must name
// every page exactly once; any unknown id rejects the whole operation and
// leaves the current order unchanged.
func (s *Store) Reorder(sessionID string, orderedIDs []string) error {
	st, err := s.state(sessionID)
	if err != nil {
		return err
	}
	st.mu.Lock()
	defer st.mu.Unlock()

	if err := s.rebuild(st); err != nil {
		return err
	}

	byID := make(map[string]models.Page, len(st.order))
	for _, p := range st.order {
		byID[p.ID] = p
	}

	if len(orderedIDs) != len(st.order) {
		return fmt.Errorf("%w: order names %d pages, session has %d", ErrUnknownPageID, len(orderedIDs), len(st.order))
	}

	reordered := make([]models.Page, 0, len(orderedIDs))
	seen := make(map[string]bool, len(orderedIDs))
	for _, id := range orderedIDs {
		page, ok := byID[id]
		if !ok || seen[id] {
			return fmt.Errorf("%w: %s", ErrUnknownPageID, id)
		}
		seen[id] = true
		reordered = append(reordered, page)
	}

	st.order = reordered
	renumber(st.order)
	return nil
}

// Rename sets the session's display name. Names are presentation state only
// and do not survive a process restart.
func (s *Store) Rename(sessionID, name string) error {
	st, err := s.state(sessionID)
	if err != nil {
		return err
	}
	st.mu.Lock()
	st.name = name
	st.mu.Unlock()
	return nil
}

func (s *Store) state(sessionID string) (*sessionState, error) {
	id, err := normalizeID(sessionID)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.sessions[id]
	if !ok {
		st = &sessionState{id: id, name: id, created: s.now()}
		s.sessions[id] = st
	}
	return st, nil
}

// rebuild reconciles the cached ordering with the directory contents: files
// that vanished are dropped, new scan artifacts are appended in modification
// order, zero-byte files are deleted on sight, and numbering is made
// contiguous again. Callers must hold st.mu.
func (s *Store) rebuild(st *sessionState) error {
	dir := s.dir(st.id)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			st.order = nil
			return nil
		}
		return fmt.Errorf("failed to read session directory: %w", err)
	}

	onDisk := make(map[string]models.Page)
	for _, entry := range entries {
		if entry.IsDir() || !isScanArtifact(entry.Name()) {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.Size() == 0 {
			slog.Warn("Deleting empty scan artifact", "file", path)
			removeQuietly(path)
			continue
		}
		onDisk[path] = models.Page{
			Filename:   entry.Name(),
			Filepath:   path,
			CapturedAt: info.ModTime(),
			SizeBytes:  info.Size(),
		}
	}

	// Keep the established ordering for files that still exist, refreshing
	// their metadata from disk.
	var pages []models.Page
	for _, p := range st.order {
		f, ok := onDisk[p.Filepath]
		if !ok {
			continue
		}
		p.CapturedAt = f.CapturedAt
		p.SizeBytes = f.SizeBytes
		pages = append(pages, p)
		delete(onDisk, p.Filepath)
	}

	// New files get appended in capture (modification-time) order.
	var fresh []models.Page
	for _, page := range onDisk {
		page.ID = uuid.NewString()
		fresh = append(fresh, page)
	}
	sort.Slice(fresh, func(i, j int) bool {
		if fresh[i].CapturedAt.Equal(fresh[j].CapturedAt) {
			return fresh[i].Filename < fresh[j].Filename
		}
		return fresh[i].CapturedAt.Before(fresh[j].CapturedAt)
	})
	pages = append(pages, fresh...)

	renumber(pages)
	st.order = pages
	return nil
}

func (st *sessionState) snapshot() models.Session {
	pages := make([]models.Page, len(st.order))
	copy(pages, st.order)

	modified := st.created
	for _, p := range pages {
		if p.CapturedAt.After(modified) {
			modified = p.CapturedAt
		}
	}

	return models.Session{
		ID:       st.id,
		Name:     st.name,
		Pages:    pages,
		Created:  st.created,
		Modified: modified,
	}
}

func (s *Store) underBase(path string) bool {
	rel, err := filepath.Rel(s.baseDir, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// isScanArtifact recognizes capture output by the canonical naming pattern.
// Combined documents and in-flight temp files are not pages.
func isScanArtifact(name string) bool {
	if !strings.HasPrefix(name, "scan-") {
		return false
	}
	if strings.HasSuffix(name, ".part") {
		return false
	}
	return pageExtensions[strings.ToLower(filepath.Ext(name))]
}

func renumber(pages []models.Page) {
	for i := range pages {
		pages[i].Number = i + 1
	}
}

func removeQuietly(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		slog.Warn("Failed to remove file", "file", path, "err", err)
	}
}
