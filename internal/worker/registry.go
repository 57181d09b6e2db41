package worker

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/kestrelrun/genie/internal/log"
)

// snapshot is the on-disk shape of workers.json.
type snapshot struct {
	Workers     map[string]Worker `json:"workers"`
	LastUpdated time.Time         `json:"lastUpdated"`
}

// Registry persists worker metadata to a single workers.json file with a
// full-file rewrite on every mutation. Readers always perform a fresh read
// from disk — per spec, the registry is never cached in memory — so that
// an external writer replacing workers.json is observed on the next call
// (testable property 7).
//
// A single mutex serializes writers within this process; the on-disk file
// is still a shared resource and concurrent orchestrator processes against
// the same repository are unsupported, matching spec §5.
type Registry struct {
	path string
	mu   sync.Mutex
}

// NewRegistry returns a Registry backed by the workers.json file at path.
func NewRegistry(path string) *Registry {
	return &Registry{path: path}
}

func (r *Registry) read() (snapshot, error) {
	data, err := os.ReadFile(r.path) //nolint:gosec // path is operator-controlled state dir
	if os.IsNotExist(err) {
		return snapshot{Workers: map[string]Worker{}}, nil
	}
	if err != nil {
		// RegistryIO: return empty registry on read failure (spec §7).
		log.ErrorErr(log.CatRegistry, "failed to read workers.json, treating as empty", err, "path", r.path)
		return snapshot{Workers: map[string]Worker{}}, nil
	}
	if len(data) == 0 {
		return snapshot{Workers: map[string]Worker{}}, nil
	}

	var s snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		log.ErrorErr(log.CatRegistry, "failed to parse workers.json, treating as empty", err, "path", r.path)
		return snapshot{Workers: map[string]Worker{}}, nil
	}
	if s.Workers == nil {
		s.Workers = map[string]Worker{}
	}
	return s, nil
}

// write performs an atomic full-file rewrite: write to a temp file in the
// same directory, then rename over the target.
func (r *Registry) write(s snapshot) error {
	s.LastUpdated = time.Now().UTC()

	if err := os.MkdirAll(filepath.Dir(r.path), 0o755); err != nil {
		return fmt.Errorf("creating registry directory: %w", err)
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling registry: %w", err)
	}

	tmp := r.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil { //nolint:gosec // registry is non-secret state
		return fmt.Errorf("writing registry temp file: %w", err)
	}
	if err := os.Rename(tmp, r.path); err != nil {
		return fmt.Errorf("renaming registry temp file: %w", err)
	}
	return nil
}

// Register adds a new worker to the registry. Returns an error if the id
// is already registered or fails Worker.Validate.
func (r *Registry) Register(w Worker) error {
	if err := w.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	s, err := r.read()
	if err != nil {
		return err
	}
	if _, exists := s.Workers[w.ID]; exists {
		return fmt.Errorf("worker %q: %w", w.ID, ErrAlreadyRegistered)
	}
	if w.StartedAt.IsZero() {
		w.StartedAt = time.Now().UTC()
	}
	if w.LastStateChangeAt.IsZero() {
		w.LastStateChangeAt = w.StartedAt
	}
	s.Workers[w.ID] = w
	return r.write(s)
}

// Unregister removes a worker from the registry. It is a no-op (no error)
// if the worker does not exist.
func (r *Registry) Unregister(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, err := r.read()
	if err != nil {
		return err
	}
	delete(s.Workers, id)
	return r.write(s)
}

// Get returns the worker with the given id.
func (r *Registry) Get(id string) (Worker, bool) {
	s, err := r.read()
	if err != nil {
		return Worker{}, false
	}
	w, ok := s.Workers[id]
	return w, ok
}

// List returns all workers, sorted by id for deterministic output.
func (r *Registry) List() []Worker {
	s, err := r.read()
	if err != nil {
		return nil
	}
	out := make([]Worker, 0, len(s.Workers))
	for _, w := range s.Workers {
		out = append(out, w)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// UpdateState sets a worker's run state and bumps LastStateChangeAt.
func (r *Registry) UpdateState(id string, state RunState) error {
	return r.mutate(id, func(w *Worker) error {
		w.State = state
		w.LastStateChangeAt = time.Now().UTC()
		return nil
	})
}

// Update applies partial to the worker's stored fields via fn, then
// persists the result.
func (r *Registry) Update(id string, fn func(w *Worker)) error {
	return r.mutate(id, func(w *Worker) error {
		fn(w)
		return nil
	})
}

func (r *Registry) mutate(id string, fn func(w *Worker) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, err := r.read()
	if err != nil {
		return err
	}
	w, ok := s.Workers[id]
	if !ok {
		return fmt.Errorf("worker %q: %w", id, ErrNotFound)
	}
	if err := fn(&w); err != nil {
		return err
	}
	if err := w.Validate(); err != nil {
		return err
	}
	s.Workers[id] = w
	return r.write(s)
}

// AddSubPane appends a sub-pane handle to the worker's SubPanes list.
func (r *Registry) AddSubPane(id, paneID string) error {
	if !IsValidPaneID(paneID) {
		return fmt.Errorf("sub-pane %q does not match ^%%\\d+$", paneID)
	}
	return r.mutate(id, func(w *Worker) error {
		w.SubPanes = append(w.SubPanes, paneID)
		return nil
	})
}

// RemoveSubPane removes the sub-pane at 1-based index (index 1 is
// SubPanes[0]) from the worker.
func (r *Registry) RemoveSubPane(id string, index int) error {
	return r.mutate(id, func(w *Worker) error {
		i := index - 1
		if i < 0 || i >= len(w.SubPanes) {
			return fmt.Errorf("worker %s has no sub-pane at index %d", id, index)
		}
		w.SubPanes = append(w.SubPanes[:i], w.SubPanes[i+1:]...)
		return nil
	})
}

// GetPane resolves the pane handle for worker id at the given index.
func (r *Registry) GetPane(id string, index int) (string, error) {
	w, ok := r.Get(id)
	if !ok {
		return "", fmt.Errorf("worker %q: %w", id, ErrNotFound)
	}
	pane, ok := w.Pane(index)
	if !ok {
		return "", fmt.Errorf("worker %s has no pane at index %d", id, index)
	}
	return pane, nil
}

// FindByPane returns the worker whose primary pane or any sub-pane matches
// paneID.
func (r *Registry) FindByPane(paneID string) (Worker, bool) {
	for _, w := range r.List() {
		if w.PaneID == paneID {
			return w, true
		}
		for _, sp := range w.SubPanes {
			if sp == paneID {
				return w, true
			}
		}
	}
	return Worker{}, false
}

// FindByWindow returns the worker whose WindowID matches windowID.
func (r *Registry) FindByWindow(windowID string) (Worker, bool) {
	for _, w := range r.List() {
		if w.WindowID == windowID {
			return w, true
		}
	}
	return Worker{}, false
}

// FindByTask returns the first worker (in id order) with the given task id.
func (r *Registry) FindByTask(taskID string) (Worker, bool) {
	for _, w := range r.List() {
		if w.TaskID == taskID {
			return w, true
		}
	}
	return Worker{}, false
}

// FindAllByTask returns every worker with the given task id.
func (r *Registry) FindAllByTask(taskID string) []Worker {
	var out []Worker
	for _, w := range r.List() {
		if w.TaskID == taskID {
			out = append(out, w)
		}
	}
	return out
}

// FindByWish returns every worker with the given wish slug.
func (r *Registry) FindByWish(wishSlug string) []Worker {
	var out []Worker
	for _, w := range r.List() {
		if w.WishSlug == wishSlug {
			out = append(out, w)
		}
	}
	return out
}

// FindByTeam returns every worker on the given team.
func (r *Registry) FindByTeam(team string) []Worker {
	var out []Worker
	for _, w := range r.List() {
		if w.Team == team {
			out = append(out, w)
		}
	}
	return out
}

// FindByProvider returns every worker using the given provider.
func (r *Registry) FindByProvider(p Provider) []Worker {
	var out []Worker
	for _, w := range r.List() {
		if w.Provider == p {
			out = append(out, w)
		}
	}
	return out
}

// FindBySessionID returns the worker with the given external session id.
func (r *Registry) FindBySessionID(sessionID string) (Worker, bool) {
	for _, w := range r.List() {
		if w.ExternalSessionID == sessionID {
			return w, true
		}
	}
	return Worker{}, false
}

// CountByTask returns the number of workers currently registered for a
// task id.
func (r *Registry) CountByTask(taskID string) int {
	return len(r.FindAllByTask(taskID))
}

// GenerateWorkerID derives a worker id for a new worker on taskID. If
// customName is non-empty it is used verbatim. Otherwise: if no existing
// worker shares taskID, taskID itself is returned; else "<taskID>-N" for
// the smallest N >= existingCount+1 not already in use.
func (r *Registry) GenerateWorkerID(taskID, customName string) string {
	if customName != "" {
		return customName
	}

	existing := r.FindAllByTask(taskID)
	if len(existing) == 0 {
		return taskID
	}

	used := make(map[string]bool, len(existing))
	for _, w := range existing {
		used[w.ID] = true
	}

	for n := len(existing) + 1; ; n++ {
		candidate := taskID + "-" + strconv.Itoa(n)
		if !used[candidate] {
			return candidate
		}
	}
}
