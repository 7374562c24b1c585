package task

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/charmbracelet/log"
)

// projectDocVersion is the schema version written into every project document.
const projectDocVersion = 1

// projectGlob matches project documents anywhere under the store directory.
const projectGlob = "**/*.json"

// projectDoc is the on-disk shape of a single project document.
type projectDoc struct {
	Version      int          `json:"version"`
	ProjectID    string       `json:"project_id"`
	Tasks        []Task       `json:"tasks"`
	Dependencies []Dependency `json:"dependencies"`
}

// LoadValidator checks a project's tasks and edges after they are read from
// disk. A non-nil error aborts OpenFileStore.
type LoadValidator func(projectID string, tasks []Task, edges []Dependency) error

// FileStoreOption configures a FileStore.
type FileStoreOption func(*FileStore)

// WithLoadValidator installs a validator run against every project document
// when the store is opened.
func WithLoadValidator(v LoadValidator) FileStoreOption {
	return func(s *FileStore) { s.validate = v }
}

// WithStoreLogger sets the logger used for load and flush diagnostics.
func WithStoreLogger(l *log.Logger) FileStoreOption {
	return func(s *FileStore) { s.logger = l }
}

// FileStore persists each project as one JSON document under a directory
// (<dir>/<project_id>.json). All documents are loaded into an embedded
// MemoryStore at open time; every mutation rewrites the affected project's
// document using an atomic write pattern (write to temp file then rename). A
// failed write rolls the in-memory change back so the store never reports a
// mutation it did not persist.
type FileStore struct {
	mem      *MemoryStore
	dir      string
	flushMu  sync.Mutex
	validate LoadValidator
	logger   *log.Logger
}

// OpenFileStore loads every project document under dir. A missing directory is
// treated as an empty store; it is created on the first write.
func OpenFileStore(dir string, opts ...FileStoreOption) (*FileStore, error) {
	s := &FileStore{mem: NewMemoryStore(), dir: dir}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

// Dir returns the directory the store reads and writes.
func (s *FileStore) Dir() string { return s.dir }

// load discovers and decodes every project document.
func (s *FileStore) load() error {
	info, err := os.Stat(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("opening store directory %q: %w", s.dir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("opening store directory %q: not a directory", s.dir)
	}

	matches, err := doublestar.Glob(os.DirFS(s.dir), projectGlob)
	if err != nil {
		return fmt.Errorf("discovering project documents in %q: %w", s.dir, err)
	}

	owner := make(map[string]string) // task ID -> project ID
	for _, rel := range matches {
		doc, err := readProjectDoc(s.dir, rel)
		if err != nil {
			return err
		}

		for i := range doc.Tasks {
			t := &doc.Tasks[i]
			if t.ProjectID == "" {
				t.ProjectID = doc.ProjectID
			}
			if t.ProjectID != doc.ProjectID {
				return fmt.Errorf("loading %s: task %s belongs to project %q, document is %q", rel, t.ID, t.ProjectID, doc.ProjectID)
			}
			if prev, dup := owner[t.ID]; dup {
				return fmt.Errorf("loading %s: task ID %s already defined in project %s", rel, t.ID, prev)
			}
			owner[t.ID] = doc.ProjectID
			t.Normalize()
		}
		for i := range doc.Dependencies {
			e := &doc.Dependencies[i]
			if e.ProjectID == "" {
				e.ProjectID = doc.ProjectID
			}
			e.LagDays = ClampLag(e.LagDays)
			if e.Type == "" {
				e.Type = FinishToStart
			}
		}

		if s.validate != nil {
			if err := s.validate(doc.ProjectID, doc.Tasks, doc.Dependencies); err != nil {
				return fmt.Errorf("validating project %s (%s): %w", doc.ProjectID, rel, err)
			}
		}

		s.mem.replaceProject(doc.ProjectID, doc.Tasks, doc.Dependencies)
		if s.logger != nil {
			s.logger.Debug("loaded project", "project", doc.ProjectID, "tasks", len(doc.Tasks), "dependencies", len(doc.Dependencies))
		}
	}
	return nil
}

// readProjectDoc reads and decodes a single document. rel is slash-separated
// and relative to dir.
func readProjectDoc(dir, rel string) (*projectDoc, error) {
	data, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(rel)))
	if err != nil {
		return nil, fmt.Errorf("reading project document %s: %w", rel, err)
	}
	var doc projectDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decoding project document %s: %w", rel, err)
	}
	if doc.ProjectID == "" {
		doc.ProjectID = strings.TrimSuffix(rel, ".json")
	}
	return &doc, nil
}

// GetTask implements Store.
func (s *FileStore) GetTask(ctx context.Context, id string) (*Task, error) {
	return s.mem.GetTask(ctx, id)
}

// GetTasksForProject implements Store.
func (s *FileStore) GetTasksForProject(ctx context.Context, projectID string) ([]Task, error) {
	return s.mem.GetTasksForProject(ctx, projectID)
}

// GetEdgesForProject implements Store.
func (s *FileStore) GetEdgesForProject(ctx context.Context, projectID string) ([]Dependency, error) {
	return s.mem.GetEdgesForProject(ctx, projectID)
}

// GetEdge implements EdgeGetter.
func (s *FileStore) GetEdge(ctx context.Context, id string) (*Dependency, error) {
	return s.mem.GetEdge(ctx, id)
}

// ProjectIDs implements ProjectLister.
func (s *FileStore) ProjectIDs(ctx context.Context) ([]string, error) {
	return s.mem.ProjectIDs(ctx)
}

// SaveTask implements Store. The project document is rewritten before
// returning.
func (s *FileStore) SaveTask(ctx context.Context, t Task) (*Task, error) {
	if err := checkProjectID(t.ProjectID); err != nil {
		return nil, fmt.Errorf("saving task %s: %w", t.ID, err)
	}

	s.flushMu.Lock()
	defer s.flushMu.Unlock()

	prev, prevErr := s.mem.GetTask(ctx, t.ID)
	saved, err := s.mem.SaveTask(ctx, t)
	if err != nil {
		return nil, err
	}
	if err := s.flush(ctx, t.ProjectID); err != nil {
		s.mem.mu.Lock()
		if prevErr == nil {
			s.mem.tasks[t.ID] = *prev
		} else {
			delete(s.mem.tasks, t.ID)
		}
		s.mem.mu.Unlock()
		return nil, err
	}
	return saved, nil
}

// SaveEdge implements Store. The project document is rewritten before
// returning.
func (s *FileStore) SaveEdge(ctx context.Context, d Dependency) (*Dependency, error) {
	if err := checkProjectID(d.ProjectID); err != nil {
		return nil, fmt.Errorf("saving dependency %s: %w", d.ID, err)
	}

	s.flushMu.Lock()
	defer s.flushMu.Unlock()

	prev, err := s.mem.GetEdge(ctx, d.ID)
	if err != nil {
		return nil, err
	}
	saved, err := s.mem.SaveEdge(ctx, d)
	if err != nil {
		return nil, err
	}
	if err := s.flush(ctx, d.ProjectID); err != nil {
		s.mem.mu.Lock()
		if prev != nil {
			s.mem.edges[d.ID] = *prev
		} else {
			delete(s.mem.edges, d.ID)
		}
		s.mem.mu.Unlock()
		return nil, err
	}
	return saved, nil
}

// DeleteEdge implements Store. The owning project document is rewritten when
// an edge was removed.
func (s *FileStore) DeleteEdge(ctx context.Context, id string) (bool, error) {
	s.flushMu.Lock()
	defer s.flushMu.Unlock()

	prev, err := s.mem.GetEdge(ctx, id)
	if err != nil {
		return false, err
	}
	if prev == nil {
		return false, nil
	}
	if _, err := s.mem.DeleteEdge(ctx, id); err != nil {
		return false, err
	}
	if err := s.flush(ctx, prev.ProjectID); err != nil {
		s.mem.mu.Lock()
		s.mem.edges[id] = *prev
		s.mem.mu.Unlock()
		return false, err
	}
	return true, nil
}

// flush rewrites the document for projectID from the in-memory state.
// Callers must hold s.flushMu.
func (s *FileStore) flush(ctx context.Context, projectID string) error {
	tasks, err := s.mem.GetTasksForProject(ctx, projectID)
	if err != nil {
		return err
	}
	edges, err := s.mem.GetEdgesForProject(ctx, projectID)
	if err != nil {
		return err
	}

	doc := projectDoc{
		Version:      projectDocVersion,
		ProjectID:    projectID,
		Tasks:        tasks,
		Dependencies: edges,
	}
	path := s.projectPath(projectID)
	if err := writeJSONAtomic(path, doc); err != nil {
		return fmt.Errorf("persisting project %s: %w", projectID, err)
	}
	if s.logger != nil {
		s.logger.Debug("flushed project", "project", projectID, "path", path)
	}
	return nil
}

// projectPath maps a project ID to its document path.
func (s *FileStore) projectPath(projectID string) string {
	return filepath.Join(s.dir, filepath.FromSlash(projectID)+".json")
}

// checkProjectID rejects IDs that cannot be mapped safely onto a path under
// the store directory.
func checkProjectID(id string) error {
	if id == "" {
		return fmt.Errorf("project ID must not be empty")
	}
	if !fs.ValidPath(id) {
		return fmt.Errorf("project ID %q is not a valid relative path", id)
	}
	return nil
}

// writeJSONAtomic writes v as indented JSON to a temporary file in the same
// directory as path, then renames it over path. File permissions are 0644.
func writeJSONAtomic(path string, v any) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating store directory %q: %w", dir, err)
	}

	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("creating temp file %q: %w", tmp, err)
	}

	w := bufio.NewWriter(f)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		f.Close()      //nolint:errcheck
		os.Remove(tmp) //nolint:errcheck
		return fmt.Errorf("encoding %q: %w", path, err)
	}

	if err := w.Flush(); err != nil {
		f.Close()      //nolint:errcheck
		os.Remove(tmp) //nolint:errcheck
		return fmt.Errorf("flushing %q: %w", tmp, err)
	}

	if err := f.Close(); err != nil {
		os.Remove(tmp) //nolint:errcheck
		return fmt.Errorf("closing temp file %q: %w", tmp, err)
	}

	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp) //nolint:errcheck
		return fmt.Errorf("renaming temp file to %q: %w", path, err)
	}

	return nil
}
