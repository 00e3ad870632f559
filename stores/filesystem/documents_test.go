package filesystem

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"people-store/core"
	"people-store/stores/storetest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) core.PersonStore {
	s, err := NewDocumentStore(t.TempDir())
	require.NoError(t, err)
	return s
}

func TestDocumentStore(t *testing.T) {
	storetest.Run(t, newStore)
}

func TestFindIDRejectsPathLikeIDs(t *testing.T) {
	s := newStore(t)
	got, err := s.FindID(context.Background(), "../etc/passwd")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestPersonsSurviveReopen(t *testing.T) {
	dir := t.TempDir()
	s, err := NewDocumentStore(dir)
	require.NoError(t, err)
	saved, err := s.Create(context.Background(), &core.Person{Name: "Ada", FavoriteFoods: []string{"tea"}})
	require.NoError(t, err)

	reopened, err := NewDocumentStore(dir)
	require.NoError(t, err)
	got, err := reopened.FindID(context.Background(), saved.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, *saved, *got)

	_, err = os.Stat(filepath.Join(dir, saved.ID+".json"))
	assert.NoError(t, err)
}

func TestFindIgnoresForeignFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.txt"), []byte("hi"), 0644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested"), 0755))

	s, err := NewDocumentStore(dir)
	require.NoError(t, err)
	all, err := s.Find(context.Background(), core.Query{})
	require.NoError(t, err)
	assert.Empty(t, all)
}
