// Package storetest holds the behaviour every core.PersonStore must share.
// Backend packages call Run from their own tests.
package storetest

import (
	"context"
	"sync"
	"testing"

	"people-store/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Factory returns an empty store. Run closes it when the subtest ends.
type Factory func(t *testing.T) core.PersonStore

func Run(t *testing.T, newStore Factory) {
	tests := []struct {
		name string
		fn   func(t *testing.T, s core.PersonStore)
	}{
		{"CreateAssignsID", testCreateAssignsID},
		{"CreateRejectsMissingName", testCreateRejectsMissingName},
		{"CreateIgnoresCallerID", testCreateIgnoresCallerID},
		{"CreateManyKeepsOrder", testCreateManyKeepsOrder},
		{"CreateManyIsAllOrNothing", testCreateManyIsAllOrNothing},
		{"FindIDMissing", testFindIDMissing},
		{"FindByName", testFindByName},
		{"FindOneByFood", testFindOneByFood},
		{"FindSortLimitProject", testFindSortLimitProject},
		{"FindSortByAge", testFindSortByAge},
		{"SaveAppendsFood", testSaveAppendsFood},
		{"SaveMissing", testSaveMissing},
		{"SaveRejectsEmptyName", testSaveRejectsEmptyName},
		{"FindOneAndUpdateReturnsNewState", testFindOneAndUpdate},
		{"FindOneAndUpdateNoMatch", testFindOneAndUpdateNoMatch},
		{"EmptyCriteriaMatchExactly", testEmptyCriteriaMatchExactly},
		{"DeleteIDReturnsSnapshot", testDeleteID},
		{"DeleteMany", testDeleteMany},
		{"ReturnedValuesAreCopies", testReturnedValuesAreCopies},
		{"ConcurrentCreates", testConcurrentCreates},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newStore(t)
			t.Cleanup(func() { _ = s.Close(context.Background()) })
			tt.fn(t, s)
		})
	}
}

func mustCreate(t *testing.T, s core.PersonStore, p core.Person) core.Person {
	t.Helper()
	saved, err := s.Create(context.Background(), &p)
	require.NoError(t, err)
	require.NotNil(t, saved)
	return *saved
}

func names(people []core.Person) []string {
	out := make([]string, 0, len(people))
	for _, p := range people {
		out = append(out, p.Name)
	}
	return out
}

func testCreateAssignsID(t *testing.T, s core.PersonStore) {
	ctx := context.Background()
	saved := mustCreate(t, s, core.Person{Name: "Ada", Age: core.IntPtr(36), FavoriteFoods: []string{"tea", "tea"}})
	assert.NotEmpty(t, saved.ID)

	got, err := s.FindID(ctx, saved.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, saved, *got)
	assert.Equal(t, []string{"tea", "tea"}, got.FavoriteFoods)
}

func testCreateRejectsMissingName(t *testing.T, s core.PersonStore) {
	ctx := context.Background()
	_, err := s.Create(ctx, &core.Person{Age: core.IntPtr(3)})
	require.ErrorIs(t, err, core.ErrValidation)

	all, err := s.Find(ctx, core.Query{})
	require.NoError(t, err)
	assert.Empty(t, all)
}

func testCreateIgnoresCallerID(t *testing.T, s core.PersonStore) {
	saved := mustCreate(t, s, core.Person{ID: "mine", Name: "Ada"})
	assert.NotEqual(t, "mine", saved.ID)
}

func testCreateManyKeepsOrder(t *testing.T, s core.PersonStore) {
	ctx := context.Background()
	saved, err := s.CreateMany(ctx, []core.Person{{Name: "Z"}, {Name: "Y", Age: core.IntPtr(1)}, {Name: "X"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"Z", "Y", "X"}, names(saved))
	for _, p := range saved {
		assert.NotEmpty(t, p.ID)
	}

	all, err := s.Find(ctx, core.Query{})
	require.NoError(t, err)
	assert.Equal(t, []string{"Z", "Y", "X"}, names(all))
}

func testCreateManyIsAllOrNothing(t *testing.T, s core.PersonStore) {
	ctx := context.Background()
	_, err := s.CreateMany(ctx, []core.Person{{Name: "ok"}, {Name: ""}})
	require.ErrorIs(t, err, core.ErrValidation)

	all, err := s.Find(ctx, core.Query{})
	require.NoError(t, err)
	assert.Empty(t, all)
}

func testFindIDMissing(t *testing.T, s core.PersonStore) {
	got, err := s.FindID(context.Background(), "01HZZZZZZZZZZZZZZZZZZZZZZZ")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func testFindByName(t *testing.T, s core.PersonStore) {
	ctx := context.Background()
	mustCreate(t, s, core.Person{Name: "Maria"})
	mustCreate(t, s, core.Person{Name: "Mario"})
	mustCreate(t, s, core.Person{Name: "Maria"})

	got, err := s.Find(ctx, core.Query{Name: core.StringPtr("Maria")})
	require.NoError(t, err)
	assert.Equal(t, []string{"Maria", "Maria"}, names(got))

	got, err = s.Find(ctx, core.Query{Name: core.StringPtr("Nobody")})
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func testFindOneByFood(t *testing.T, s core.PersonStore) {
	ctx := context.Background()
	none, err := s.FindOne(ctx, core.Query{Food: core.StringPtr("burritos")})
	require.NoError(t, err)
	assert.Nil(t, none)

	mustCreate(t, s, core.Person{Name: "first", FavoriteFoods: []string{"pizza"}})
	want := mustCreate(t, s, core.Person{Name: "second", FavoriteFoods: []string{"tacos", "burritos"}})
	mustCreate(t, s, core.Person{Name: "third", FavoriteFoods: []string{"burritos"}})

	got, err := s.FindOne(ctx, core.Query{Food: core.StringPtr("burritos")})
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, want.ID, got.ID)
	assert.True(t, got.HasFood("burritos"))
}

func testFindSortLimitProject(t *testing.T, s core.PersonStore) {
	ctx := context.Background()
	for _, name := range []string{"C", "A", "B"} {
		mustCreate(t, s, core.Person{Name: name, Age: core.IntPtr(30), FavoriteFoods: []string{"burritos"}})
	}
	mustCreate(t, s, core.Person{Name: "0", FavoriteFoods: []string{"pizza"}})

	got, err := s.Find(ctx, core.Query{Food: core.StringPtr("burritos"), SortBy: core.SortByName, Limit: 2, ExcludeAge: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, names(got))
	for _, p := range got {
		assert.Nil(t, p.Age)
		assert.NotEmpty(t, p.ID)
		assert.Equal(t, []string{"burritos"}, p.FavoriteFoods)
	}

	got, err = s.Find(ctx, core.Query{Food: core.StringPtr("burritos"), SortBy: core.SortByName, Descending: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"C", "B", "A"}, names(got))

	_, err = s.Find(ctx, core.Query{SortBy: "favoriteFoods"})
	assert.ErrorIs(t, err, core.ErrValidation)
}

func testFindSortByAge(t *testing.T, s core.PersonStore) {
	ctx := context.Background()
	mustCreate(t, s, core.Person{Name: "old", Age: core.IntPtr(80)})
	mustCreate(t, s, core.Person{Name: "unknown"})
	mustCreate(t, s, core.Person{Name: "young", Age: core.IntPtr(8)})

	got, err := s.Find(ctx, core.Query{SortBy: core.SortByAge})
	require.NoError(t, err)
	assert.Equal(t, []string{"unknown", "young", "old"}, names(got))

	got, err = s.Find(ctx, core.Query{SortBy: core.SortByAge, Descending: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"old", "young", "unknown"}, names(got))
}

func testSaveAppendsFood(t *testing.T, s core.PersonStore) {
	ctx := context.Background()
	saved := mustCreate(t, s, core.Person{Name: "Ada", Age: core.IntPtr(36), FavoriteFoods: []string{"pizza"}})

	saved.FavoriteFoods = append(saved.FavoriteFoods, "hamburger")
	updated, err := s.Save(ctx, &saved)
	require.NoError(t, err)
	assert.Equal(t, []string{"pizza", "hamburger"}, updated.FavoriteFoods)

	got, err := s.FindID(ctx, saved.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, []string{"pizza", "hamburger"}, got.FavoriteFoods)
	require.NotNil(t, got.Age)
	assert.Equal(t, 36, *got.Age)
}

func testSaveMissing(t *testing.T, s core.PersonStore) {
	_, err := s.Save(context.Background(), &core.Person{ID: "01HZZZZZZZZZZZZZZZZZZZZZZZ", Name: "ghost"})
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func testSaveRejectsEmptyName(t *testing.T, s core.PersonStore) {
	ctx := context.Background()
	saved := mustCreate(t, s, core.Person{Name: "Ada"})
	saved.Name = ""
	_, err := s.Save(ctx, &saved)
	require.ErrorIs(t, err, core.ErrValidation)

	got, err := s.FindID(ctx, saved.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Ada", got.Name)
}

func testFindOneAndUpdate(t *testing.T, s core.PersonStore) {
	ctx := context.Background()
	first := mustCreate(t, s, core.Person{Name: "Rob", Age: core.IntPtr(41), FavoriteFoods: []string{"soup"}})
	second := mustCreate(t, s, core.Person{Name: "Rob", Age: core.IntPtr(50)})

	got, err := s.FindOneAndUpdate(ctx, core.Query{Name: core.StringPtr("Rob")}, core.Update{Age: core.IntPtr(20)})
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, first.ID, got.ID)
	require.NotNil(t, got.Age)
	assert.Equal(t, 20, *got.Age)
	assert.Equal(t, []string{"soup"}, got.FavoriteFoods)

	stored, err := s.FindID(ctx, second.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, 50, *stored.Age)
}

func testFindOneAndUpdateNoMatch(t *testing.T, s core.PersonStore) {
	got, err := s.FindOneAndUpdate(context.Background(), core.Query{Name: core.StringPtr("nobody")}, core.Update{Age: core.IntPtr(20)})
	require.NoError(t, err)
	assert.Nil(t, got)
}

func testEmptyCriteriaMatchExactly(t *testing.T, s core.PersonStore) {
	ctx := context.Background()
	ada := mustCreate(t, s, core.Person{Name: "Ada", Age: core.IntPtr(36), FavoriteFoods: []string{"tea"}})
	mustCreate(t, s, core.Person{Name: "Bob"})
	empty := core.StringPtr("")

	found, err := s.Find(ctx, core.Query{Name: empty})
	require.NoError(t, err)
	assert.Empty(t, found)

	one, err := s.FindOne(ctx, core.Query{Food: empty})
	require.NoError(t, err)
	assert.Nil(t, one)

	updated, err := s.FindOneAndUpdate(ctx, core.Query{Name: empty}, core.Update{Age: core.IntPtr(20)})
	require.NoError(t, err)
	assert.Nil(t, updated)

	res, err := s.DeleteMany(ctx, core.Query{Name: empty})
	require.NoError(t, err)
	assert.EqualValues(t, 0, res.DeletedCount)

	stored, err := s.FindID(ctx, ada.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, 36, *stored.Age)

	all, err := s.Find(ctx, core.Query{})
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func testDeleteID(t *testing.T, s core.PersonStore) {
	ctx := context.Background()
	saved := mustCreate(t, s, core.Person{Name: "Ada", Age: core.IntPtr(36), FavoriteFoods: []string{"tea"}})

	removed, err := s.DeleteID(ctx, saved.ID)
	require.NoError(t, err)
	require.NotNil(t, removed)
	assert.Equal(t, saved, *removed)

	got, err := s.FindID(ctx, saved.ID)
	require.NoError(t, err)
	assert.Nil(t, got)

	again, err := s.DeleteID(ctx, saved.ID)
	require.NoError(t, err)
	assert.Nil(t, again)
}

func testDeleteMany(t *testing.T, s core.PersonStore) {
	ctx := context.Background()
	mustCreate(t, s, core.Person{Name: "Mary"})
	mustCreate(t, s, core.Person{Name: "John"})
	mustCreate(t, s, core.Person{Name: "Mary"})

	res, err := s.DeleteMany(ctx, core.Query{Name: core.StringPtr("Mary")})
	require.NoError(t, err)
	assert.EqualValues(t, 2, res.DeletedCount)

	left, err := s.Find(ctx, core.Query{Name: core.StringPtr("Mary")})
	require.NoError(t, err)
	assert.Empty(t, left)

	res, err = s.DeleteMany(ctx, core.Query{Name: core.StringPtr("Mary")})
	require.NoError(t, err)
	assert.EqualValues(t, 0, res.DeletedCount)

	all, err := s.Find(ctx, core.Query{})
	require.NoError(t, err)
	assert.Equal(t, []string{"John"}, names(all))
}

func testReturnedValuesAreCopies(t *testing.T, s core.PersonStore) {
	ctx := context.Background()
	saved := mustCreate(t, s, core.Person{Name: "Ada", FavoriteFoods: []string{"tea"}})

	got, err := s.FindID(ctx, saved.ID)
	require.NoError(t, err)
	got.FavoriteFoods[0] = "coffee"
	got.Name = "changed"

	again, err := s.FindID(ctx, saved.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ada", again.Name)
	assert.Equal(t, []string{"tea"}, again.FavoriteFoods)
}

func testConcurrentCreates(t *testing.T, s core.PersonStore) {
	ctx := context.Background()
	const n = 16
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Create(ctx, &core.Person{Name: "parallel"})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	all, err := s.Find(ctx, core.Query{Name: core.StringPtr("parallel")})
	require.NoError(t, err)
	assert.Len(t, all, n)
}
