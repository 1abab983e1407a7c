package engine

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/calvinalkan/xdg-document-portal/internal/store"
)

func newTestEngine(t *testing.T) (*Engine, *store.Store) {
	t.Helper()

	s := store.New()

	return New(s), s
}

func TestRead_FailsNotWrittenForPromise(t *testing.T) {
	t.Parallel()

	e, s := newTestEngine(t)

	id, err := s.CreateDoc("", "draft.md")
	require.NoError(t, err)

	_, err = e.Read(id, "")
	require.ErrorContains(t, err, "not yet materialized")
}

func TestRead_FailsNotAllowedWithoutPermission(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "a.txt")
	require.NoError(t, os.WriteFile(path, []byte("hi"), 0o644))

	e, s := newTestEngine(t)

	id, err := s.CreateDoc(uriFromPath(path), "")
	require.NoError(t, err)

	_, err = e.Read(id, "org.example.App")
	require.ErrorContains(t, err, "lacks read permission")
}

func TestRead_OwnerAlwaysAllowed(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "a.txt")
	require.NoError(t, os.WriteFile(path, []byte("hi"), 0o644))

	e, s := newTestEngine(t)

	id, err := s.CreateDoc(uriFromPath(path), "")
	require.NoError(t, err)

	f, err := e.Read(id, "")
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	content, err := io.ReadAll(f)
	require.NoError(t, err)
	require.Equal(t, "hi", string(content))
}

func TestStagedWrite_TitledDocument_MaterializesOnFinish(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	e, s := newTestEngine(t)

	id, err := s.CreateDoc(uriFromPath(dir), "draft.md")
	require.NoError(t, err)

	updateID, writable, err := e.PrepareUpdate(id, "", "sender-a", nil)
	require.NoError(t, err)

	_, err = writable.WriteString("hello")
	require.NoError(t, err)
	require.NoError(t, writable.Close())

	require.NoError(t, e.FinishUpdate(id, "sender-a", updateID))

	doc, ok := s.LookupDoc(id)
	require.True(t, ok)
	require.Empty(t, doc.Title)
	require.Equal(t, uriFromPath(filepath.Join(dir, "draft.md")), doc.URI)

	content, err := os.ReadFile(filepath.Join(dir, "draft.md"))
	require.NoError(t, err)
	require.Equal(t, "hello", string(content))

	f, err := e.Read(id, "")
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	read, err := io.ReadAll(f)
	require.NoError(t, err)
	require.Equal(t, "hello", string(read))
}

func TestEnsureCreate_CollisionOnAlreadyMaterializedFailsExists(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "a.txt")
	require.NoError(t, os.WriteFile(path, []byte("existing"), 0o644))

	e, s := newTestEngine(t)

	id, err := s.CreateDoc(uriFromPath(path), "")
	require.NoError(t, err)

	_, _, err = e.PrepareUpdate(id, "", "sender-a", []string{ensureCreateFlag})
	require.ErrorContains(t, err, "already materialized")
}

func TestForeignFinish_FailsNotFound(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	e, s := newTestEngine(t)

	id, err := s.CreateDoc(uriFromPath(dir), "draft.md")
	require.NoError(t, err)

	updateID, writable, err := e.PrepareUpdate(id, "", "sender-a", nil)
	require.NoError(t, err)
	require.NoError(t, writable.Close())

	err = e.FinishUpdate(id, "sender-b", updateID)
	require.ErrorContains(t, err, "unknown update")

	require.NoError(t, e.FinishUpdate(id, "sender-a", updateID))
}

func TestAbortUpdate_LeavesDestinationUntouched(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "a.txt")
	require.NoError(t, os.WriteFile(path, []byte("original"), 0o644))

	e, s := newTestEngine(t)

	id, err := s.CreateDoc(uriFromPath(path), "")
	require.NoError(t, err)

	updateID, writable, err := e.PrepareUpdate(id, "", "sender-a", nil)
	require.NoError(t, err)

	_, err = writable.WriteString("overwritten")
	require.NoError(t, err)
	require.NoError(t, writable.Close())

	require.NoError(t, e.AbortUpdate(id, "sender-a", updateID))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "original", string(content))
}

func TestDelete_FailsWithPendingUpdate(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	e, s := newTestEngine(t)

	id, err := s.CreateDoc(uriFromPath(dir), "draft.md")
	require.NoError(t, err)

	_, writable, err := e.PrepareUpdate(id, "", "sender-a", nil)
	require.NoError(t, err)
	defer func() { _ = writable.Close() }()

	err = e.Delete(id)
	require.ErrorContains(t, err, "pending")
}

func TestGrantThenRevokePermissions(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "a.txt")
	require.NoError(t, os.WriteFile(path, []byte("hi"), 0o644))

	e, s := newTestEngine(t)

	id, err := s.CreateDoc(uriFromPath(path), "")
	require.NoError(t, err)

	require.NoError(t, e.GrantPermissions(id, "", "org.x.App", []string{"read", "write"}))

	bits, err := s.LookupPermissions(id, "org.x.App")
	require.NoError(t, err)
	require.True(t, bits.Has(store.PermRead))
	require.True(t, bits.Has(store.PermWrite))

	require.NoError(t, e.RevokePermissions(id, "", "org.x.App", []string{"write"}))

	bits, err = s.LookupPermissions(id, "org.x.App")
	require.NoError(t, err)
	require.True(t, bits.Has(store.PermRead))
	require.False(t, bits.Has(store.PermWrite))
}

func TestGrantPermissions_RequiresGrantBitOnCaller(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "a.txt")
	require.NoError(t, os.WriteFile(path, []byte("hi"), 0o644))

	e, s := newTestEngine(t)

	id, err := s.CreateDoc(uriFromPath(path), "")
	require.NoError(t, err)

	require.NoError(t, s.SetPermissions(id, "org.a.App", store.PermRead|store.PermWrite, false))

	err = e.GrantPermissions(id, "org.a.App", "org.b.App", []string{"read"})
	require.ErrorContains(t, err, "may not grant")
}

func TestRevokePermissions_CallerMayRevokeOwnPermissions(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "a.txt")
	require.NoError(t, os.WriteFile(path, []byte("hi"), 0o644))

	e, s := newTestEngine(t)

	id, err := s.CreateDoc(uriFromPath(path), "")
	require.NoError(t, err)

	require.NoError(t, s.SetPermissions(id, "org.a.App", store.PermRead, false))

	require.NoError(t, e.RevokePermissions(id, "org.a.App", "org.a.App", []string{"read"}))

	bits, err := s.LookupPermissions(id, "org.a.App")
	require.NoError(t, err)
	require.False(t, bits.Has(store.PermRead))
}
