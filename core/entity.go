package core

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrValidation = errors.New("validation failed")
	ErrNotFound   = errors.New("person not found")
)

type (
	Person struct {
		ID            string   `json:"_id" bson:"_id"`
		Name          string   `json:"name" bson:"name"`
		Age           *int     `json:"age,omitempty" bson:"age,omitempty"`
		FavoriteFoods []string `json:"favoriteFoods" bson:"favoriteFoods"`
	}

	// Update lists the fields to set; nil fields are left untouched.
	Update struct {
		Age *int
	}

	DeleteResult struct {
		DeletedCount int64 `json:"deletedCount"`
	}

	// PersonStore persists Person documents. Lookups that match nothing
	// return a nil Person and a nil error.
	PersonStore interface {
		Create(ctx context.Context, person *Person) (*Person, error)
		CreateMany(ctx context.Context, people []Person) ([]Person, error)
		FindID(ctx context.Context, id string) (*Person, error)
		Find(ctx context.Context, query Query) ([]Person, error)
		FindOne(ctx context.Context, query Query) (*Person, error)
		Save(ctx context.Context, person *Person) (*Person, error)
		FindOneAndUpdate(ctx context.Context, query Query, update Update) (*Person, error)
		DeleteID(ctx context.Context, id string) (*Person, error)
		DeleteMany(ctx context.Context, query Query) (*DeleteResult, error)
		Close(ctx context.Context) error
	}
)

func IntPtr(v int) *int {
	return &v
}

func StringPtr(v string) *string {
	return &v
}

func (p *Person) Validate() error {
	if p == nil {
		return fmt.Errorf("%w: person is nil", ErrValidation)
	}
	if p.Name == "" {
		return fmt.Errorf("%w: name is required", ErrValidation)
	}
	return nil
}

// Clone returns a deep copy so callers never share slices or pointers with
// a store's internal state.
func (p Person) Clone() Person {
	out := p
	if p.Age != nil {
		out.Age = IntPtr(*p.Age)
	}
	out.FavoriteFoods = append(make([]string, 0, len(p.FavoriteFoods)), p.FavoriteFoods...)
	return out
}

// Normalize prepares a person for insertion under the given id.
func (p Person) Normalize(id string) Person {
	out := p.Clone()
	out.ID = id
	return out
}

func (p Person) HasFood(food string) bool {
	for _, f := range p.FavoriteFoods {
		if f == food {
			return true
		}
	}
	return false
}

func (u Update) Apply(p *Person) {
	if u.Age != nil {
		p.Age = IntPtr(*u.Age)
	}
}

func (u Update) IsEmpty() bool {
	return u.Age == nil
}
