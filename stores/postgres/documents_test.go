package postgres

import (
	"context"
	"math"
	"os"
	"testing"

	"people-store/core"
	"people-store/stores/storetest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDocumentStore(t *testing.T) {
	url := os.Getenv("TEST_POSTGRES_URL")
	if url == "" {
		t.Skip("TEST_POSTGRES_URL not set")
	}
	storetest.Run(t, func(t *testing.T) core.PersonStore {
		ctx := context.Background()
		s, err := NewDocumentStore(ctx, url)
		require.NoError(t, err)
		_, err = s.(*documentStore).pool.Exec(ctx, "TRUNCATE people")
		require.NoError(t, err)
		return s
	})
}

func TestBuilderNumbersParameters(t *testing.T) {
	b := &builder{}
	where := b.where(core.Query{Name: core.StringPtr("Mary"), Food: core.StringPtr("burritos")})
	tail := b.tail(core.Query{SortBy: core.SortByName, Limit: 2})

	assert.Equal(t, " WHERE name = $1 AND $2 = ANY(favorite_foods)", where)
	assert.Equal(t, ` ORDER BY name COLLATE "C" ASC, id ASC LIMIT $3`, tail)
	assert.Equal(t, []any{"Mary", "burritos", 2}, b.args)
}

func TestBuilderKeepsEmptyCriteria(t *testing.T) {
	b := &builder{}
	assert.Equal(t, " WHERE $1 = ANY(favorite_foods)", b.where(core.Query{Food: core.StringPtr("")}))
	assert.Equal(t, []any{""}, b.args)
	assert.Empty(t, (&builder{}).where(core.Query{}))
}

func TestBuilderAgeOrdering(t *testing.T) {
	b := &builder{}
	assert.Equal(t, " ORDER BY age DESC NULLS LAST, id ASC", b.tail(core.Query{SortBy: core.SortByAge, Descending: true}))
	assert.Equal(t, "", b.where(core.Query{}))
	assert.Empty(t, b.args)
}

func TestAgeValueKeepsWideAges(t *testing.T) {
	wide := math.MaxInt32
	wide++
	got := ageValue(core.Person{Age: core.IntPtr(wide)})
	require.NotNil(t, got)
	assert.Equal(t, int64(wide), *got)
	assert.Nil(t, ageValue(core.Person{}))
}
