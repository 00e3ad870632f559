package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func names(people []Person) []string {
	out := make([]string, 0, len(people))
	for _, p := range people {
		out = append(out, p.Name)
	}
	return out
}

func TestPersonValidate(t *testing.T) {
	tests := []struct {
		name    string
		person  *Person
		wantErr bool
	}{
		{"valid", &Person{Name: "Ada"}, false},
		{"empty name", &Person{}, true},
		{"whitespace name", &Person{Name: "   "}, false},
		{"nil", nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.person.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrValidation)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateAllReportsIndex(t *testing.T) {
	err := ValidateAll([]Person{{Name: "a"}, {Name: ""}})
	require.ErrorIs(t, err, ErrValidation)
	assert.Contains(t, err.Error(), "person 1")
}

func TestCloneIsDeep(t *testing.T) {
	p := Person{Name: "a", Age: IntPtr(3), FavoriteFoods: []string{"x"}}
	c := p.Clone()
	*c.Age = 4
	c.FavoriteFoods[0] = "y"
	assert.Equal(t, 3, *p.Age)
	assert.Equal(t, []string{"x"}, p.FavoriteFoods)
}

func TestCloneNilFoodsBecomesEmpty(t *testing.T) {
	c := Person{Name: "a"}.Clone()
	assert.NotNil(t, c.FavoriteFoods)
	assert.Empty(t, c.FavoriteFoods)
}

func TestQueryApply(t *testing.T) {
	people := []Person{
		{ID: "01", Name: "C", Age: IntPtr(30), FavoriteFoods: []string{"burritos"}},
		{ID: "02", Name: "A", Age: IntPtr(10), FavoriteFoods: []string{"burritos", "tacos"}},
		{ID: "03", Name: "B", FavoriteFoods: []string{"burritos"}},
		{ID: "04", Name: "A", Age: IntPtr(20), FavoriteFoods: []string{"pizza"}},
	}

	tests := []struct {
		name  string
		query Query
		want  []string
	}{
		{"empty query keeps natural order", Query{}, []string{"C", "A", "B", "A"}},
		{"name filter", Query{Name: StringPtr("A")}, []string{"A", "A"}},
		{"food filter", Query{Food: StringPtr("burritos")}, []string{"C", "A", "B"}},
		{"name and food", Query{Name: StringPtr("A"), Food: StringPtr("burritos")}, []string{"A"}},
		{"sort by name", Query{SortBy: SortByName}, []string{"A", "A", "B", "C"}},
		{"sort by name descending", Query{SortBy: SortByName, Descending: true}, []string{"C", "B", "A", "A"}},
		{"sort by age puts missing first", Query{SortBy: SortByAge}, []string{"B", "A", "A", "C"}},
		{"chain", Query{Food: StringPtr("burritos"), SortBy: SortByName, Limit: 2}, []string{"A", "B"}},
		{"no match", Query{Name: StringPtr("Z")}, []string{}},
		{"empty name is exact", Query{Name: StringPtr("")}, []string{}},
		{"empty food is exact", Query{Food: StringPtr("")}, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, names(tt.query.Apply(people)))
		})
	}
}

func TestQueryApplyTieBreaksByID(t *testing.T) {
	people := []Person{{ID: "02", Name: "A"}, {ID: "01", Name: "A"}}
	got := Query{SortBy: SortByName}.Apply(people)
	assert.Equal(t, "01", got[0].ID)
	assert.Equal(t, "02", got[1].ID)
}

func TestQueryApplyExcludeAge(t *testing.T) {
	people := []Person{{ID: "01", Name: "A", Age: IntPtr(5)}}
	got := Query{ExcludeAge: true}.Apply(people)
	require.Len(t, got, 1)
	assert.Nil(t, got[0].Age)
	assert.NotNil(t, people[0].Age)
}

func TestQueryValidate(t *testing.T) {
	assert.NoError(t, Query{SortBy: SortByAge}.Validate())
	assert.ErrorIs(t, Query{SortBy: "favoriteFoods"}.Validate(), ErrValidation)
}

func TestUpdateApply(t *testing.T) {
	p := Person{Name: "a"}
	Update{}.Apply(&p)
	assert.Nil(t, p.Age)
	Update{Age: IntPtr(20)}.Apply(&p)
	require.NotNil(t, p.Age)
	assert.Equal(t, 20, *p.Age)
}
