// Package store persists label projects and their datasets
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/flanksource/commons/logger"
	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/thereceipt/label-engine/pkg/labelformat"
)

// ErrNotFound is returned for unknown project or dataset ids.
var ErrNotFound = errors.New("not found")

// Project is a template together with the dataset and quantity plan it is
// exported with.
type Project struct {
	ID        string                   `json:"id"`
	Name      string                   `json:"name"`
	Template  *labelformat.Template    `json:"template"`
	DatasetID string                   `json:"datasetId,omitempty"`
	Dataset   *DatasetInfo             `json:"dataset,omitempty"`
	Quantity  labelformat.QuantityPlan `json:"quantity"`
	CreatedAt time.Time                `json:"createdAt"`
	UpdatedAt time.Time                `json:"updatedAt"`
}

// DatasetInfo describes an uploaded dataset without its rows.
type DatasetInfo struct {
	FileName string   `json:"fileName"`
	Columns  []string `json:"columns"`
	Rows     int      `json:"rows"`
}

// Store keeps projects in memory and mirrors them to dir: projects.json for
// the project list and datasets/<id>.msgpack per dataset. An empty dir keeps
// everything in memory.
type Store struct {
	dir      string
	projects map[string]*Project
	datasets map[string][]byte // in-memory mode only
	mu       sync.RWMutex
}

// New opens the store in dir, creating it when missing.
func New(dir string) (*Store, error) {
	s := &Store{
		dir:      dir,
		projects: make(map[string]*Project),
		datasets: make(map[string][]byte),
	}
	if dir == "" {
		return s, nil
	}

	if err := os.MkdirAll(filepath.Join(dir, "datasets"), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}
	if err := s.load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load projects: %w", err)
	}
	return s, nil
}

// CreateProject stores tpl as a new project printing every row once.
func (s *Store) CreateProject(name string, tpl *labelformat.Template) (*Project, error) {
	if tpl == nil {
		return nil, errors.New("template is required")
	}
	snapshot, err := tpl.Clone()
	if err != nil {
		return nil, err
	}
	if name == "" {
		name = tpl.Name
	}

	now := time.Now().UTC()
	p := &Project{
		ID:        uuid.New().String(),
		Name:      name,
		Template:  snapshot,
		Quantity:  labelformat.DefaultQuantity(),
		CreatedAt: now,
		UpdatedAt: now,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.projects[p.ID] = p
	if err := s.save(); err != nil {
		delete(s.projects, p.ID)
		return nil, err
	}
	return copyProject(p)
}

// GetProject returns a copy of the project that the caller may modify freely.
func (s *Store) GetProject(id string) (*Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.projects[id]
	if !ok {
		return nil, fmt.Errorf("project %s: %w", id, ErrNotFound)
	}
	return copyProject(p)
}

// ListProjects returns copies of all projects, newest first.
func (s *Store) ListProjects() ([]*Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Project, 0, len(s.projects))
	for _, p := range s.projects {
		cp, err := copyProject(p)
		if err != nil {
			return nil, err
		}
		out = append(out, cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// UpdateTemplate applies fn to a copy of the project's template and stores
// the result only when fn succeeds.
func (s *Store) UpdateTemplate(id string, fn func(t *labelformat.Template) error) (*labelformat.Template, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.projects[id]
	if !ok {
		return nil, fmt.Errorf("project %s: %w", id, ErrNotFound)
	}
	draft, err := p.Template.Clone()
	if err != nil {
		return nil, err
	}
	if err := fn(draft); err != nil {
		return nil, err
	}

	prev, prevTime := p.Template, p.UpdatedAt
	p.Template, p.UpdatedAt = draft, time.Now().UTC()
	if err := s.save(); err != nil {
		p.Template, p.UpdatedAt = prev, prevTime
		return nil, err
	}
	return draft.Clone()
}

// SetQuantity replaces the project's quantity plan.
func (s *Store) SetQuantity(id string, plan labelformat.QuantityPlan) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.projects[id]
	if !ok {
		return fmt.Errorf("project %s: %w", id, ErrNotFound)
	}
	p.Quantity = plan
	p.Quantity.Manual = maps.Clone(plan.Manual)
	p.UpdatedAt = time.Now().UTC()
	return s.save()
}

// DeleteProject removes the project and its dataset.
func (s *Store) DeleteProject(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.projects[id]
	if !ok {
		return fmt.Errorf("project %s: %w", id, ErrNotFound)
	}
	delete(s.projects, id)
	if p.DatasetID != "" {
		s.removeDataset(p.DatasetID)
	}
	return s.save()
}

// PutDataset attaches ds to the project, replacing any previous dataset.
func (s *Store) PutDataset(projectID, fileName string, ds *labelformat.Dataset) (*DatasetInfo, error) {
	data, err := msgpack.Marshal(ds)
	if err != nil {
		return nil, fmt.Errorf("failed to encode dataset: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.projects[projectID]
	if !ok {
		return nil, fmt.Errorf("project %s: %w", projectID, ErrNotFound)
	}

	id := uuid.New().String()
	if err := s.writeDataset(id, data); err != nil {
		return nil, err
	}
	if p.DatasetID != "" {
		s.removeDataset(p.DatasetID)
	}

	info := &DatasetInfo{FileName: fileName, Columns: append([]string(nil), ds.Columns...), Rows: len(ds.Rows)}
	p.DatasetID, p.Dataset, p.UpdatedAt = id, info, time.Now().UTC()
	if err := s.save(); err != nil {
		return nil, err
	}
	cp := *info
	return &cp, nil
}

// GetDataset returns the project's dataset. A project without one has an
// empty dataset.
func (s *Store) GetDataset(projectID string) (*labelformat.Dataset, error) {
	s.mu.RLock()
	p, ok := s.projects[projectID]
	var id string
	if ok {
		id = p.DatasetID
	}
	s.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("project %s: %w", projectID, ErrNotFound)
	}
	if id == "" {
		return &labelformat.Dataset{}, nil
	}

	data, err := s.readDataset(id)
	if err != nil {
		return nil, err
	}
	ds := &labelformat.Dataset{}
	if err := msgpack.Unmarshal(data, ds); err != nil {
		return nil, fmt.Errorf("failed to decode dataset %s: %w", id, err)
	}
	return ds, nil
}

func (s *Store) datasetPath(id string) string {
	return filepath.Join(s.dir, "datasets", id+".msgpack")
}

func (s *Store) writeDataset(id string, data []byte) error {
	if s.dir == "" {
		s.datasets[id] = data
		return nil
	}
	return writeFileAtomic(s.datasetPath(id), data)
}

func (s *Store) readDataset(id string) ([]byte, error) {
	if s.dir == "" {
		s.mu.RLock()
		defer s.mu.RUnlock()
		data, ok := s.datasets[id]
		if !ok {
			return nil, fmt.Errorf("dataset %s: %w", id, ErrNotFound)
		}
		return data, nil
	}
	data, err := os.ReadFile(s.datasetPath(id))
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("dataset %s: %w", id, ErrNotFound)
	}
	return data, err
}

func (s *Store) removeDataset(id string) {
	if s.dir == "" {
		delete(s.datasets, id)
		return
	}
	if err := os.Remove(s.datasetPath(id)); err != nil && !os.IsNotExist(err) {
		logger.Warnf("failed to remove dataset %s: %v", id, err)
	}
}

func (s *Store) load() error {
	data, err := os.ReadFile(filepath.Join(s.dir, "projects.json"))
	if err != nil {
		return err
	}
	return json.Unmarshal(data, &s.projects)
}

func (s *Store) save() error {
	if s.dir == "" {
		return nil
	}
	data, err := json.MarshalIndent(s.projects, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode projects: %w", err)
	}
	return writeFileAtomic(filepath.Join(s.dir, "projects.json"), data)
}

// writeFileAtomic replaces path so readers never see a partial file.
func writeFileAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", filepath.Base(path), err)
	}
	return nil
}

func copyProject(p *Project) (*Project, error) {
	cp := *p
	tpl, err := p.Template.Clone()
	if err != nil {
		return nil, err
	}
	cp.Template = tpl
	cp.Quantity.Manual = maps.Clone(p.Quantity.Manual)
	if p.Dataset != nil {
		info := *p.Dataset
		info.Columns = append([]string(nil), p.Dataset.Columns...)
		cp.Dataset = &info
	}
	return &cp, nil
}
