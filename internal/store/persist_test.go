package store_test

import (
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/calvinalkan/xdg-document-portal/internal/store"
)

func TestSaveLoad_RoundTrip(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "main")

	s := store.New()

	id, err := s.CreateDoc("file:///tmp/report.pdf", "")
	require.NoError(t, err)

	require.NoError(t, s.SetPermissions(id, "com.example.App", store.PermRead|store.PermWrite, false))

	require.NoError(t, s.Save(path))
	require.False(t, s.IsDirty())

	reloaded, err := store.Load(path)
	require.NoError(t, err)

	doc, ok := reloaded.LookupDoc(id)
	require.True(t, ok)

	wantDoc := store.Document{ID: id, URI: "file:///tmp/report.pdf", Title: ""}
	if diff := cmp.Diff(wantDoc, doc); diff != "" {
		t.Fatalf("reloaded document mismatch (-want +got):\n%s", diff)
	}

	bits, err := reloaded.LookupPermissions(id, "com.example.App")
	require.NoError(t, err)
	require.True(t, bits.Has(store.PermRead))
	require.True(t, bits.Has(store.PermWrite))
}

func TestLoad_MissingFileYieldsEmptyStore(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "does-not-exist")

	s, err := store.Load(path)
	require.NoError(t, err)
	require.Empty(t, s.ListDocs())
}

func TestSave_DeletedDocumentsAreNotPersisted(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "main")

	s := store.New()

	id, err := s.CreateDoc("file:///tmp/x", "")
	require.NoError(t, err)
	require.NoError(t, s.DeleteDoc(id))
	require.NoError(t, s.Save(path))

	reloaded, err := store.Load(path)
	require.NoError(t, err)

	_, ok := reloaded.LookupDoc(id)
	require.False(t, ok)
}
