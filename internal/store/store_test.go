package store_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/calvinalkan/xdg-document-portal/internal/store"
)

func TestCreateDoc_TitlelessIsIdempotentForSameURI(t *testing.T) {
	t.Parallel()

	s := store.New()

	id1, err := s.CreateDoc("file:///home/user/report.pdf", "")
	require.NoError(t, err)

	id2, err := s.CreateDoc("file:///home/user/report.pdf", "")
	require.NoError(t, err)

	require.Equal(t, id1, id2)
}

func TestCreateDoc_TitledNeverDeduplicates(t *testing.T) {
	t.Parallel()

	s := store.New()

	id1, err := s.CreateDoc("", "report.pdf")
	require.NoError(t, err)

	id2, err := s.CreateDoc("", "report.pdf")
	require.NoError(t, err)

	require.NotEqual(t, id1, id2)
}

func TestLookupDoc_UnknownIDNotFound(t *testing.T) {
	t.Parallel()

	s := store.New()

	_, ok := s.LookupDoc("ZZZZZZ")
	require.False(t, ok)
}

func TestDeleteDoc_RemovesDocAndPermissions(t *testing.T) {
	t.Parallel()

	s := store.New()

	id, err := s.CreateDoc("file:///tmp/x", "")
	require.NoError(t, err)

	require.NoError(t, s.SetPermissions(id, "com.example.App", store.PermRead, false))

	require.NoError(t, s.DeleteDoc(id))

	_, ok := s.LookupDoc(id)
	require.False(t, ok)

	bits, err := s.LookupPermissions(id, "com.example.App")
	require.ErrorIs(t, err, store.ErrDocumentNotFound)
	require.Zero(t, bits)

	require.NotContains(t, s.LookupApp("com.example.App"), id)
}

func TestDeleteDoc_UnknownIDReturnsNotFound(t *testing.T) {
	t.Parallel()

	s := store.New()

	require.ErrorIs(t, s.DeleteDoc("ZZZZZZ"), store.ErrDocumentNotFound)
}

func TestLookupPermissions_EmptyAppIDIsAlwaysFull(t *testing.T) {
	t.Parallel()

	s := store.New()

	id, err := s.CreateDoc("file:///tmp/x", "")
	require.NoError(t, err)

	bits, err := s.LookupPermissions(id, "")
	require.NoError(t, err)
	require.Equal(t, store.AllPermissions, bits)
}

func TestSetPermissions_MergeOrsBits(t *testing.T) {
	t.Parallel()

	s := store.New()

	id, err := s.CreateDoc("file:///tmp/x", "")
	require.NoError(t, err)

	require.NoError(t, s.SetPermissions(id, "app", store.PermRead, false))
	require.NoError(t, s.SetPermissions(id, "app", store.PermWrite, true))

	bits, err := s.LookupPermissions(id, "app")
	require.NoError(t, err)
	require.True(t, bits.Has(store.PermRead))
	require.True(t, bits.Has(store.PermWrite))
}

func TestSetPermissions_NoMergeReplacesBits(t *testing.T) {
	t.Parallel()

	s := store.New()

	id, err := s.CreateDoc("file:///tmp/x", "")
	require.NoError(t, err)

	require.NoError(t, s.SetPermissions(id, "app", store.PermRead|store.PermWrite, false))
	require.NoError(t, s.SetPermissions(id, "app", store.PermRead, false))

	bits, err := s.LookupPermissions(id, "app")
	require.NoError(t, err)
	require.True(t, bits.Has(store.PermRead))
	require.False(t, bits.Has(store.PermWrite))
}

func TestSetPermissions_ZeroBitsRemovesRow(t *testing.T) {
	t.Parallel()

	s := store.New()

	id, err := s.CreateDoc("file:///tmp/x", "")
	require.NoError(t, err)

	require.NoError(t, s.SetPermissions(id, "app", store.PermRead, false))
	require.NoError(t, s.SetPermissions(id, "app", 0, false))

	require.NotContains(t, s.LookupApp("app"), id)
}

func TestRevokePermissions_ClearsOnlyGivenBits(t *testing.T) {
	t.Parallel()

	s := store.New()

	id, err := s.CreateDoc("file:///tmp/x", "")
	require.NoError(t, err)

	require.NoError(t, s.SetPermissions(id, "app", store.PermRead|store.PermWrite, false))
	require.NoError(t, s.RevokePermissions(id, "app", store.PermWrite))

	bits, err := s.LookupPermissions(id, "app")
	require.NoError(t, err)
	require.True(t, bits.Has(store.PermRead))
	require.False(t, bits.Has(store.PermWrite))
}

func TestLookupUri_OnlyMatchesTitlelessDocs(t *testing.T) {
	t.Parallel()

	s := store.New()

	_, err := s.CreateDoc("", "promise.txt")
	require.NoError(t, err)

	id, err := s.CreateDoc("file:///tmp/real", "")
	require.NoError(t, err)

	found, ok := s.LookupUri("file:///tmp/real")
	require.True(t, ok)
	require.Equal(t, id, found)

	_, ok = s.LookupUri("promise.txt")
	require.False(t, ok)
}

func TestUpdateDoc_UnknownIDReturnsNotFound(t *testing.T) {
	t.Parallel()

	s := store.New()

	require.ErrorIs(t, s.UpdateDoc("ZZZZZZ", "file:///x", ""), store.ErrDocumentNotFound)
}

func TestIsDirty_TracksPendingMutations(t *testing.T) {
	t.Parallel()

	s := store.New()
	require.False(t, s.IsDirty())

	_, err := s.CreateDoc("file:///tmp/x", "")
	require.NoError(t, err)
	require.True(t, s.IsDirty())
}
