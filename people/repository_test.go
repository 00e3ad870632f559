package people

import (
	"context"
	"errors"
	"testing"

	"people-store/core"
	"people-store/stores/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRepo(t *testing.T, opts ...Option) *Repository {
	t.Helper()
	return NewRepository(memory.NewDocumentStore(), opts...)
}

func TestCreatePersonIsRetrievable(t *testing.T) {
	ctx := context.Background()
	r := newRepo(t)

	saved, err := r.CreatePerson(ctx, "Ada", core.IntPtr(36), []string{"tea"})
	require.NoError(t, err)
	require.NotEmpty(t, saved.ID)

	got, err := r.FindPersonByID(ctx, saved.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Ada", got.Name)
	assert.Equal(t, 36, *got.Age)
	assert.Equal(t, []string{"tea"}, got.FavoriteFoods)
}

func TestCreatePersonWithoutNameFails(t *testing.T) {
	ctx := context.Background()
	r := newRepo(t)

	_, err := r.CreatePerson(ctx, "", core.IntPtr(3), nil)
	require.ErrorIs(t, err, core.ErrValidation)
	assert.Contains(t, err.Error(), "create person")

	all, err := r.store.Find(ctx, core.Query{})
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestEmptyCriteriaTouchNobody(t *testing.T) {
	ctx := context.Background()
	r := newRepo(t)
	ada, err := r.CreatePerson(ctx, "Ada", core.IntPtr(36), []string{"tea"})
	require.NoError(t, err)
	_, err = r.CreatePerson(ctx, "Bob", nil, nil)
	require.NoError(t, err)

	byName, err := r.FindPeopleByName(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, byName)

	byFood, err := r.FindOneByFood(ctx, "")
	require.NoError(t, err)
	assert.Nil(t, byFood)

	updated, err := r.FindAndUpdate(ctx, "")
	require.NoError(t, err)
	assert.Nil(t, updated)

	chain, err := r.QueryChainFor(ctx, "", 0)
	require.NoError(t, err)
	assert.Empty(t, chain)

	stored, err := r.FindPersonByID(ctx, ada.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, 36, *stored.Age)
}

func TestCreatePeople(t *testing.T) {
	ctx := context.Background()
	r := newRepo(t)

	saved, err := r.CreatePeople(ctx, []core.Person{
		{Name: "Maria", Age: core.IntPtr(30)},
		{Name: "Maria", FavoriteFoods: []string{"arepas"}},
		{Name: "Jose"},
	})
	require.NoError(t, err)
	require.Len(t, saved, 3)

	_, err = r.CreatePeople(ctx, []core.Person{{Name: "ok"}, {}})
	require.ErrorIs(t, err, core.ErrValidation)

	found, err := r.FindPeopleByName(ctx, "ok")
	require.NoError(t, err)
	assert.Empty(t, found)
}

func TestFindPeopleByName(t *testing.T) {
	ctx := context.Background()
	r := newRepo(t)
	_, err := r.CreatePeople(ctx, []core.Person{{Name: "Maria"}, {Name: "Marta"}, {Name: "Maria"}})
	require.NoError(t, err)

	found, err := r.FindPeopleByName(ctx, "Maria")
	require.NoError(t, err)
	require.Len(t, found, 2)
	for _, p := range found {
		assert.Equal(t, "Maria", p.Name)
	}

	none, err := r.FindPeopleByName(ctx, "Nadie")
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func TestFindOneByFood(t *testing.T) {
	ctx := context.Background()
	r := newRepo(t)

	none, err := r.FindOneByFood(ctx, "burritos")
	require.NoError(t, err)
	assert.Nil(t, none)

	_, err = r.CreatePeople(ctx, []core.Person{
		{Name: "A", FavoriteFoods: []string{"pizza"}},
		{Name: "B", FavoriteFoods: []string{"sushi", "burritos"}},
	})
	require.NoError(t, err)

	got, err := r.FindOneByFood(ctx, "burritos")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "B", got.Name)
	assert.Contains(t, got.FavoriteFoods, "burritos")
}

func TestFindPersonByIDUnknown(t *testing.T) {
	got, err := newRepo(t).FindPersonByID(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestFindEditThenSave(t *testing.T) {
	ctx := context.Background()
	r := newRepo(t)
	saved, err := r.CreatePerson(ctx, "Ada", core.IntPtr(36), []string{"pizza"})
	require.NoError(t, err)

	updated, err := r.FindEditThenSave(ctx, saved.ID)
	require.NoError(t, err)
	require.NotNil(t, updated)
	assert.Equal(t, []string{"pizza", "hamburger"}, updated.FavoriteFoods)

	stored, err := r.FindPersonByID(ctx, saved.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"pizza", "hamburger"}, stored.FavoriteFoods)

	missing, err := r.FindEditThenSave(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestFindEditThenSaveWithCustomFood(t *testing.T) {
	ctx := context.Background()
	r := newRepo(t, WithAddedFood("salad"))
	saved, err := r.CreatePerson(ctx, "Ada", core.IntPtr(36), nil)
	require.NoError(t, err)

	updated, err := r.FindEditThenSave(ctx, saved.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"salad"}, updated.FavoriteFoods)
}

func TestFindAndUpdateReturnsNewAge(t *testing.T) {
	ctx := context.Background()
	r := newRepo(t)
	saved, err := r.CreatePerson(ctx, "Rob", core.IntPtr(41), nil)
	require.NoError(t, err)

	updated, err := r.FindAndUpdate(ctx, "Rob")
	require.NoError(t, err)
	require.NotNil(t, updated)
	assert.Equal(t, saved.ID, updated.ID)
	assert.Equal(t, 20, *updated.Age)

	stored, err := r.FindPersonByID(ctx, saved.ID)
	require.NoError(t, err)
	assert.Equal(t, 20, *stored.Age)

	none, err := r.FindAndUpdate(ctx, "Nobody")
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestFindAndUpdateWithCustomAge(t *testing.T) {
	ctx := context.Background()
	r := newRepo(t, WithUpdatedAge(65))
	_, err := r.CreatePerson(ctx, "Rob", core.IntPtr(41), nil)
	require.NoError(t, err)

	updated, err := r.FindAndUpdate(ctx, "Rob")
	require.NoError(t, err)
	assert.Equal(t, 65, *updated.Age)
}

func TestRemoveByID(t *testing.T) {
	ctx := context.Background()
	r := newRepo(t)
	saved, err := r.CreatePerson(ctx, "Ada", core.IntPtr(36), []string{"tea"})
	require.NoError(t, err)

	removed, err := r.RemoveByID(ctx, saved.ID)
	require.NoError(t, err)
	require.NotNil(t, removed)
	assert.Equal(t, *saved, *removed)

	got, err := r.FindPersonByID(ctx, saved.ID)
	require.NoError(t, err)
	assert.Nil(t, got)

	again, err := r.RemoveByID(ctx, saved.ID)
	require.NoError(t, err)
	assert.Nil(t, again)
}

func TestRemoveManyPeople(t *testing.T) {
	ctx := context.Background()
	r := newRepo(t)
	_, err := r.CreatePeople(ctx, []core.Person{{Name: "Mary"}, {Name: "Mary"}, {Name: "John"}})
	require.NoError(t, err)

	res, err := r.RemoveManyPeople(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, res.DeletedCount)

	left, err := r.FindPeopleByName(ctx, "Mary")
	require.NoError(t, err)
	assert.Empty(t, left)

	john, err := r.FindPeopleByName(ctx, "John")
	require.NoError(t, err)
	assert.Len(t, john, 1)
}

func TestRemoveManyByNameRequiresName(t *testing.T) {
	ctx := context.Background()
	r := newRepo(t, WithRemovedName(""))
	_, err := r.CreatePerson(ctx, "Ada", core.IntPtr(1), nil)
	require.NoError(t, err)

	_, err = r.RemoveManyPeople(ctx)
	require.ErrorIs(t, err, core.ErrValidation)

	all, err := r.FindPeopleByName(ctx, "Ada")
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestQueryChain(t *testing.T) {
	ctx := context.Background()
	r := newRepo(t)
	_, err := r.CreatePeople(ctx, []core.Person{
		{Name: "C", Age: core.IntPtr(3), FavoriteFoods: []string{"burritos"}},
		{Name: "A", Age: core.IntPtr(1), FavoriteFoods: []string{"burritos"}},
		{Name: "B", Age: core.IntPtr(2), FavoriteFoods: []string{"tacos", "burritos"}},
		{Name: "0", Age: core.IntPtr(0), FavoriteFoods: []string{"pizza"}},
	})
	require.NoError(t, err)

	got, err := r.QueryChain(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "A", got[0].Name)
	assert.Equal(t, "B", got[1].Name)
	for _, p := range got {
		assert.Nil(t, p.Age)
	}
}

func TestQueryChainWithOptions(t *testing.T) {
	ctx := context.Background()
	r := newRepo(t, WithChainFood("tacos"), WithChainLimit(5))
	_, err := r.CreatePeople(ctx, []core.Person{
		{Name: "B", FavoriteFoods: []string{"tacos"}},
		{Name: "A", FavoriteFoods: []string{"tacos"}},
		{Name: "C", FavoriteFoods: []string{"tacos"}},
	})
	require.NoError(t, err)

	got, err := r.QueryChain(ctx)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "A", got[0].Name)
	assert.Equal(t, "C", got[2].Name)
}

var errBackend = errors.New("connection refused")

// brokenStore fails every call.
type brokenStore struct{}

func (brokenStore) Create(context.Context, *core.Person) (*core.Person, error) { return nil, errBackend }
func (brokenStore) CreateMany(context.Context, []core.Person) ([]core.Person, error) {
	return nil, errBackend
}
func (brokenStore) FindID(context.Context, string) (*core.Person, error)      { return nil, errBackend }
func (brokenStore) Find(context.Context, core.Query) ([]core.Person, error)   { return nil, errBackend }
func (brokenStore) FindOne(context.Context, core.Query) (*core.Person, error) { return nil, errBackend }
func (brokenStore) Save(context.Context, *core.Person) (*core.Person, error)  { return nil, errBackend }
func (brokenStore) FindOneAndUpdate(context.Context, core.Query, core.Update) (*core.Person, error) {
	return nil, errBackend
}
func (brokenStore) DeleteID(context.Context, string) (*core.Person, error) { return nil, errBackend }
func (brokenStore) DeleteMany(context.Context, core.Query) (*core.DeleteResult, error) {
	return nil, errBackend
}
func (brokenStore) Close(context.Context) error { return nil }

func TestErrorsArePropagated(t *testing.T) {
	ctx := context.Background()
	r := NewRepository(brokenStore{})

	calls := map[string]func() error{
		"CreatePerson":     func() error { _, err := r.CreatePerson(ctx, "a", core.IntPtr(1), nil); return err },
		"CreatePeople":     func() error { _, err := r.CreatePeople(ctx, []core.Person{{Name: "a"}}); return err },
		"FindPeopleByName": func() error { _, err := r.FindPeopleByName(ctx, "a"); return err },
		"FindOneByFood":    func() error { _, err := r.FindOneByFood(ctx, "a"); return err },
		"FindPersonByID":   func() error { _, err := r.FindPersonByID(ctx, "a"); return err },
		"FindEditThenSave": func() error { _, err := r.FindEditThenSave(ctx, "a"); return err },
		"FindAndUpdate":    func() error { _, err := r.FindAndUpdate(ctx, "a"); return err },
		"RemoveByID":       func() error { _, err := r.RemoveByID(ctx, "a"); return err },
		"RemoveManyPeople": func() error { _, err := r.RemoveManyPeople(ctx); return err },
		"QueryChain":       func() error { _, err := r.QueryChain(ctx); return err },
	}
	for name, call := range calls {
		t.Run(name, func(t *testing.T) {
			assert.ErrorIs(t, call(), errBackend)
		})
	}
}
