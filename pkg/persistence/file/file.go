// Package file provides file-based persistence for templates, submissions and
// documents. Each record is one JSON file; a single mutex serialises every
// read-modify-write so Update and the submission creation check are atomic
// within one process.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/dukex/signoff/pkg/models"
	"github.com/dukex/signoff/pkg/persistence"
	"github.com/google/uuid"
)

// Persistence implements the persistence.Persistence interface using the file system.
type Persistence struct {
	root        string
	mu          sync.Mutex
	templates   *TemplateRepository
	submissions *SubmissionRepository
	documents   *DocumentRepository
}

// NewPersistence creates a new instance of Persistence with the specified root directory.
func NewPersistence(root string) persistence.Persistence {
	cleanRoot := strings.Replace(root, "file://", "", 1)

	fp := &Persistence{root: cleanRoot}
	fp.templates = &TemplateRepository{fp: fp, store: newStore[models.WorkflowTemplate](cleanRoot, "templates")}
	fp.submissions = &SubmissionRepository{fp: fp, store: newStore[models.Submission](cleanRoot, "submissions")}
	fp.documents = &DocumentRepository{fp: fp, store: newStore[models.Document](cleanRoot, "documents")}

	return fp
}

func (fp *Persistence) Templates() persistence.TemplateRepository {
	return fp.templates
}

func (fp *Persistence) Submissions() persistence.SubmissionRepository {
	return fp.submissions
}

func (fp *Persistence) Documents() persistence.DocumentRepository {
	return fp.documents
}

// Close performs any necessary cleanup. For file-based persistence, there is nothing to clean up.
func (fp *Persistence) Close(_ context.Context) error {
	return nil
}

// HealthCheck checks if the file persistence layer is healthy by verifying the root directory exists.
func (fp *Persistence) HealthCheck(_ context.Context) error {
	if _, err := os.Stat(fp.root); os.IsNotExist(err) {
		return os.ErrNotExist
	}

	return nil
}

func newID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("failed to generate ID: %w", err)
	}

	return id.String(), nil
}

var errRecordNotFound = errors.New("record file not found")

// store reads and writes one directory of JSON records.
type store[T any] struct {
	dir string
}

func newStore[T any](root, name string) *store[T] {
	return &store[T]{dir: filepath.Join(root, name)}
}

func (s *store[T]) path(id string) (string, error) {
	if id == "" || filepath.Base(id) != id || strings.HasPrefix(id, ".") {
		return "", errRecordNotFound
	}

	return filepath.Join(s.dir, id+".json"), nil
}

func (s *store[T]) exists(id string) bool {
	path, err := s.path(id)
	if err != nil {
		return false
	}

	_, err = os.Stat(path)

	return err == nil
}

func (s *store[T]) read(id string) (*T, error) {
	path, err := s.path(id)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errRecordNotFound
		}

		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var record T

	err = json.Unmarshal(data, &record)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal %s: %w", path, err)
	}

	return &record, nil
}

// write replaces the record file atomically through a temp file rename.
func (s *store[T]) write(id string, record *T) error {
	path, err := s.path(id)
	if err != nil {
		return err
	}

	err = os.MkdirAll(s.dir, 0o750)
	if err != nil {
		return fmt.Errorf("failed to create directory %s: %w", s.dir, err)
	}

	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal record %s: %w", id, err)
	}

	tmp, err := os.CreateTemp(s.dir, id+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}

	_, err = tmp.Write(data)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}

	if err != nil {
		_ = os.Remove(tmp.Name())

		return fmt.Errorf("failed to write record %s: %w", id, err)
	}

	err = os.Rename(tmp.Name(), path)
	if err != nil {
		_ = os.Remove(tmp.Name())

		return fmt.Errorf("failed to replace record %s: %w", id, err)
	}

	return nil
}

func (s *store[T]) all() ([]*T, error) {
	files, err := fs.Glob(os.DirFS(s.dir), "*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", s.dir, err)
	}

	records := make([]*T, 0, len(files))

	for _, file := range files {
		record, err := s.read(strings.TrimSuffix(file, ".json"))
		if err != nil {
			if errors.Is(err, errRecordNotFound) {
				continue
			}

			return nil, err
		}

		records = append(records, record)
	}

	return records, nil
}
