// Package people implements the person repository: ten operations, each
// translated to a single call on a core.PersonStore.
package people

import (
	"context"
	"fmt"
	"people-store/core"

	"github.com/sirupsen/logrus"
)

const (
	DefaultAddedFood   = "hamburger"
	DefaultUpdatedAge  = 20
	DefaultRemovedName = "Mary"
	DefaultChainFood   = "burritos"
	DefaultChainLimit  = 2
)

type Repository struct {
	store core.PersonStore

	addedFood   string
	updatedAge  int
	removedName string
	chainFood   string
	chainLimit  int
}

type Option func(*Repository)

// WithAddedFood sets the food FindEditThenSave appends.
func WithAddedFood(food string) Option {
	return func(r *Repository) { r.addedFood = food }
}

// WithUpdatedAge sets the age FindAndUpdate assigns.
func WithUpdatedAge(age int) Option {
	return func(r *Repository) { r.updatedAge = age }
}

// WithRemovedName sets the name RemoveManyPeople deletes.
func WithRemovedName(name string) Option {
	return func(r *Repository) { r.removedName = name }
}

func WithChainFood(food string) Option {
	return func(r *Repository) { r.chainFood = food }
}

func WithChainLimit(limit int) Option {
	return func(r *Repository) { r.chainLimit = limit }
}

func NewRepository(store core.PersonStore, opts ...Option) *Repository {
	r := &Repository{
		store:       store,
		addedFood:   DefaultAddedFood,
		updatedAge:  DefaultUpdatedAge,
		removedName: DefaultRemovedName,
		chainFood:   DefaultChainFood,
		chainLimit:  DefaultChainLimit,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// fail logs err with the operation's fields and returns it wrapped.
func fail(op string, fields logrus.Fields, err error) error {
	logrus.WithFields(fields).WithField("operation", op).WithField("error", err).Error("Person repository operation failed")
	return fmt.Errorf("%s: %w", op, err)
}

// CreatePerson persists one person; age may be nil.
func (r *Repository) CreatePerson(ctx context.Context, name string, age *int, favoriteFoods []string) (*core.Person, error) {
	person := &core.Person{Name: name, Age: age, FavoriteFoods: favoriteFoods}
	saved, err := r.store.Create(ctx, person)
	if err != nil {
		return nil, fail("create person", logrus.Fields{"name": name}, err)
	}
	logrus.WithFields(logrus.Fields{"person_id": saved.ID, "name": saved.Name}).Info("Person created")
	return saved, nil
}

func (r *Repository) CreatePeople(ctx context.Context, people []core.Person) ([]core.Person, error) {
	saved, err := r.store.CreateMany(ctx, people)
	if err != nil {
		return nil, fail("create people", logrus.Fields{"count": len(people)}, err)
	}
	logrus.WithField("count", len(saved)).Info("People created")
	return saved, nil
}

func (r *Repository) FindPeopleByName(ctx context.Context, name string) ([]core.Person, error) {
	found, err := r.store.Find(ctx, core.Query{Name: core.StringPtr(name)})
	if err != nil {
		return nil, fail("find people by name", logrus.Fields{"name": name}, err)
	}
	return found, nil
}

func (r *Repository) FindOneByFood(ctx context.Context, food string) (*core.Person, error) {
	found, err := r.store.FindOne(ctx, core.Query{Food: core.StringPtr(food)})
	if err != nil {
		return nil, fail("find one by food", logrus.Fields{"food": food}, err)
	}
	return found, nil
}

func (r *Repository) FindPersonByID(ctx context.Context, id string) (*core.Person, error) {
	found, err := r.store.FindID(ctx, id)
	if err != nil {
		return nil, fail("find person by id", logrus.Fields{"person_id": id}, err)
	}
	return found, nil
}

// FindEditThenSave appends the configured food to the person's favorites
// and persists the whole document. An unknown id yields nil.
func (r *Repository) FindEditThenSave(ctx context.Context, id string) (*core.Person, error) {
	fields := logrus.Fields{"person_id": id}
	person, err := r.store.FindID(ctx, id)
	if err != nil {
		return nil, fail("find edit then save", fields, err)
	}
	if person == nil {
		logrus.WithFields(fields).Warn("Person with specified ID not found")
		return nil, nil
	}

	person.FavoriteFoods = append(person.FavoriteFoods, r.addedFood)
	saved, err := r.store.Save(ctx, person)
	if err != nil {
		return nil, fail("find edit then save", fields, err)
	}
	logrus.WithFields(fields).WithField("food", r.addedFood).Info("Favorite food added")
	return saved, nil
}

// FindAndUpdate sets the configured age on the first person with the given
// name and returns the document as it is after the update.
func (r *Repository) FindAndUpdate(ctx context.Context, name string) (*core.Person, error) {
	updated, err := r.store.FindOneAndUpdate(ctx, core.Query{Name: core.StringPtr(name)}, core.Update{Age: core.IntPtr(r.updatedAge)})
	if err != nil {
		return nil, fail("find and update", logrus.Fields{"name": name}, err)
	}
	if updated != nil {
		logrus.WithFields(logrus.Fields{"person_id": updated.ID, "age": r.updatedAge}).Info("Person age updated")
	}
	return updated, nil
}

// RemoveByID returns the person as it was before deletion, or nil.
func (r *Repository) RemoveByID(ctx context.Context, id string) (*core.Person, error) {
	removed, err := r.store.DeleteID(ctx, id)
	if err != nil {
		return nil, fail("remove by id", logrus.Fields{"person_id": id}, err)
	}
	if removed != nil {
		logrus.WithField("person_id", id).Info("Person removed")
	}
	return removed, nil
}

func (r *Repository) RemoveManyPeople(ctx context.Context) (*core.DeleteResult, error) {
	return r.RemoveManyByName(ctx, r.removedName)
}

func (r *Repository) RemoveManyByName(ctx context.Context, name string) (*core.DeleteResult, error) {
	if name == "" {
		return nil, fail("remove many people", nil, fmt.Errorf("%w: name is required", core.ErrValidation))
	}
	res, err := r.store.DeleteMany(ctx, core.Query{Name: core.StringPtr(name)})
	if err != nil {
		return nil, fail("remove many people", logrus.Fields{"name": name}, err)
	}
	logrus.WithFields(logrus.Fields{"name": name, "deleted": res.DeletedCount}).Info("People removed")
	return res, nil
}

// QueryChain finds people who like the configured food, sorted by name,
// limited, and without their age.
func (r *Repository) QueryChain(ctx context.Context) ([]core.Person, error) {
	return r.QueryChainFor(ctx, r.chainFood, r.chainLimit)
}

func (r *Repository) QueryChainFor(ctx context.Context, food string, limit int) ([]core.Person, error) {
	query := core.Query{
		Food:       core.StringPtr(food),
		SortBy:     core.SortByName,
		Limit:      limit,
		ExcludeAge: true,
	}
	found, err := r.store.Find(ctx, query)
	if err != nil {
		return nil, fail("query chain", logrus.Fields{"food": food, "limit": limit}, err)
	}
	return found, nil
}
