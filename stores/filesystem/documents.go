package filesystem

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"people-store/core"
	"strings"
	"sync"

	"github.com/natefinch/atomic"
	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"
)

const extension = ".json"

type documentStore struct {
	mu       sync.RWMutex
	basePath string // Directory where documents are stored.
}

func NewDocumentStore(basePath string) (core.PersonStore, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}

	return &documentStore{basePath: basePath}, nil
}

func (s *documentStore) path(id string) string {
	return filepath.Join(s.basePath, id+extension)
}

func (s *documentStore) Create(ctx context.Context, person *core.Person) (*core.Person, error) {
	if err := person.Validate(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	saved := person.Normalize(ulid.Make().String())
	if err := s.write(saved); err != nil {
		return nil, err
	}
	return &saved, nil
}

func (s *documentStore) CreateMany(ctx context.Context, people []core.Person) ([]core.Person, error) {
	if err := core.ValidateAll(people); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]core.Person, 0, len(people))
	for _, p := range people {
		saved := p.Normalize(ulid.Make().String())
		if err := s.write(saved); err != nil {
			s.rollback(out)
			return nil, err
		}
		out = append(out, saved)
	}
	return out, nil
}

func (s *documentStore) FindID(ctx context.Context, id string) (*core.Person, error) {
	if !validID(id) {
		return nil, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.read(id)
}

func (s *documentStore) Find(ctx context.Context, query core.Query) ([]core.Person, error) {
	if err := query.Validate(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	all, err := s.readAll()
	if err != nil {
		return nil, err
	}
	return query.Apply(all), nil
}

func (s *documentStore) FindOne(ctx context.Context, query core.Query) (*core.Person, error) {
	query.Limit = 1
	found, err := s.Find(ctx, query)
	if err != nil || len(found) == 0 {
		return nil, err
	}
	return &found[0], nil
}

func (s *documentStore) Save(ctx context.Context, person *core.Person) (*core.Person, error) {
	if err := person.Validate(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.readIfValid(person.ID)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, fmt.Errorf("save person with id %s: %w", person.ID, core.ErrNotFound)
	}
	saved := person.Normalize(person.ID)
	if err := s.write(saved); err != nil {
		return nil, err
	}
	return &saved, nil
}

func (s *documentStore) FindOneAndUpdate(ctx context.Context, query core.Query, update core.Update) (*core.Person, error) {
	if err := query.Validate(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.readAll()
	if err != nil {
		return nil, err
	}
	query.Limit = 1
	found := query.Apply(all)
	if len(found) == 0 {
		return nil, nil
	}
	target := found[0]
	update.Apply(&target)
	if err := s.write(target); err != nil {
		return nil, err
	}
	return &target, nil
}

func (s *documentStore) DeleteID(ctx context.Context, id string) (*core.Person, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.readIfValid(id)
	if err != nil || existing == nil {
		return nil, err
	}
	if err := os.Remove(s.path(id)); err != nil {
		logrus.WithFields(logrus.Fields{"person_id": id, "error": err}).Error("Failed to delete person")
		return nil, err
	}
	return existing, nil
}

func (s *documentStore) DeleteMany(ctx context.Context, query core.Query) (*core.DeleteResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.readAll()
	if err != nil {
		return nil, err
	}
	res := &core.DeleteResult{}
	for _, p := range all {
		if !query.Matches(p) {
			continue
		}
		if err := os.Remove(s.path(p.ID)); err != nil {
			return res, fmt.Errorf("failed to delete person %s: %w", p.ID, err)
		}
		res.DeletedCount++
	}
	return res, nil
}

func (s *documentStore) Close(ctx context.Context) error {
	return nil
}

func (s *documentStore) write(person core.Person) error {
	filePath := s.path(person.ID)
	log := logrus.WithFields(logrus.Fields{
		"person_id": person.ID,
		"file_path": filePath,
	})

	data, err := json.Marshal(person)
	if err != nil {
		return fmt.Errorf("failed to encode person: %w", err)
	}
	if err := atomic.WriteFile(filePath, bytes.NewReader(data)); err != nil {
		log.WithField("error", err).Error("Failed to write person")
		return err
	}
	log.Debug("Person written")
	return nil
}

func (s *documentStore) read(id string) (*core.Person, error) {
	filePath := s.path(id)
	log := logrus.WithField("person_id", id)

	log.WithField("file_path", filePath).Debug("Retrieving person by ID")
	data, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			log.Debug("Person with specified ID not found")
			return nil, nil
		}
		log.WithField("error", err).Error("Failed to retrieve person")
		return nil, err
	}

	var person core.Person
	if err := json.Unmarshal(data, &person); err != nil {
		return nil, fmt.Errorf("failed to decode person %s: %w", id, err)
	}
	person = person.Clone()
	return &person, nil
}

func (s *documentStore) readIfValid(id string) (*core.Person, error) {
	if !validID(id) {
		return nil, nil
	}
	return s.read(id)
}

func (s *documentStore) readAll() ([]core.Person, error) {
	entries, err := os.ReadDir(s.basePath)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", s.basePath, err)
	}
	people := make([]core.Person, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, extension) {
			continue
		}
		p, err := s.read(strings.TrimSuffix(name, extension))
		if err != nil {
			return nil, err
		}
		if p != nil {
			people = append(people, *p)
		}
	}
	return people, nil
}

func (s *documentStore) rollback(written []core.Person) {
	for _, p := range written {
		_ = os.Remove(s.path(p.ID))
	}
}

// Ids are ULIDs; anything else cannot name a file in this store.
func validID(id string) bool {
	_, err := ulid.ParseStrict(id)
	return err == nil
}
