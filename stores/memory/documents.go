package memory

import (
	"context"
	"fmt"
	"people-store/core"
	"sync"

	"github.com/oklog/ulid/v2"
)

type documentStore struct {
	mu     sync.RWMutex
	people map[string]core.Person
}

func NewDocumentStore() core.PersonStore {
	return &documentStore{people: make(map[string]core.Person)}
}

func (s *documentStore) Create(ctx context.Context, person *core.Person) (*core.Person, error) {
	if err := person.Validate(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	saved := person.Normalize(ulid.Make().String())
	s.people[saved.ID] = saved
	out := saved.Clone()
	return &out, nil
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
		s.people[saved.ID] = saved
		out = append(out, saved.Clone())
	}
	return out, nil
}

func (s *documentStore) FindID(ctx context.Context, id string) (*core.Person, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if val, ok := s.people[id]; ok {
		out := val.Clone()
		return &out, nil
	}
	return nil, nil
}

func (s *documentStore) Find(ctx context.Context, query core.Query) ([]core.Person, error) {
	if err := query.Validate(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return query.Apply(s.snapshot()), nil
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

	if _, ok := s.people[person.ID]; !ok {
		return nil, fmt.Errorf("save person with id %s: %w", person.ID, core.ErrNotFound)
	}
	saved := person.Normalize(person.ID)
	s.people[saved.ID] = saved
	out := saved.Clone()
	return &out, nil
}

func (s *documentStore) FindOneAndUpdate(ctx context.Context, query core.Query, update core.Update) (*core.Person, error) {
	if err := query.Validate(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	query.Limit = 1
	found := query.Apply(s.snapshot())
	if len(found) == 0 {
		return nil, nil
	}
	target := s.people[found[0].ID]
	update.Apply(&target)
	s.people[target.ID] = target
	out := target.Clone()
	return &out, nil
}

func (s *documentStore) DeleteID(ctx context.Context, id string) (*core.Person, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	val, ok := s.people[id]
	if !ok {
		return nil, nil
	}
	delete(s.people, id)
	return &val, nil
}

func (s *documentStore) DeleteMany(ctx context.Context, query core.Query) (*core.DeleteResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for id, p := range s.people {
		if query.Matches(p) {
			delete(s.people, id)
			n++
		}
	}
	return &core.DeleteResult{DeletedCount: n}, nil
}

func (s *documentStore) Close(ctx context.Context) error {
	return nil
}

// snapshot must be called with the lock held.
func (s *documentStore) snapshot() []core.Person {
	all := make([]core.Person, 0, len(s.people))
	for _, p := range s.people {
		all = append(all, p)
	}
	return all
}
