package engine

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/natefinch/atomic"

	"github.com/calvinalkan/xdg-document-portal/internal/fsutil"
	"github.com/calvinalkan/xdg-document-portal/internal/store"
	"github.com/calvinalkan/xdg-document-portal/internal/xdgerr"
)

// ensureCreateFlag is the only update flag defined by spec.md §6.
const ensureCreateFlag = "ensure-create"

// maxSuffixAttempts bounds the ".1", ".2", ... collision-retry loop in
// FinishUpdate for titled (promise) documents. The source leaves this
// unbounded; an implementation needs a ceiling to avoid spinning forever
// against a directory that never yields a free name.
const maxSuffixAttempts = 1000

// Update is the transient entity from spec.md §3: an in-flight staged
// write, identified by the service's own read-only fd into the (unlinked)
// staging file. Owned by exactly one bus name until FinishUpdate or
// AbortUpdate.
type Update struct {
	DocID        string
	Owner        string
	ROFile       *os.File
	EnsureCreate bool
}

// ID is the update-id handed to the caller: the integer value of the
// service-side read-only staging fd (spec.md §4.D).
func (u *Update) ID() int {
	return int(u.ROFile.Fd())
}

func hasFlag(flags []string, want string) bool {
	for _, f := range flags {
		if f == want {
			return true
		}
	}

	return false
}

// PrepareUpdate stages a new write for docID and returns the update id (the
// service's read-only staging fd) plus the writable fd handed to the
// caller. The caller owns the returned *os.File and must close its local
// copy once the fd has crossed the bus.
func (e *Engine) PrepareUpdate(docID, appID, sender string, flags []string) (int, *os.File, error) {
	doc, ok := e.store.LookupDoc(docID)
	if !ok {
		return 0, nil, xdgerr.Wrap(xdgerr.KindNotFound, "unknown document", store.ErrDocumentNotFound)
	}

	allowed, err := e.hasPermissions(docID, appID, store.PermWrite)
	if err != nil {
		return 0, nil, xdgerr.Wrap(xdgerr.KindFailed, "check write permission", err)
	}

	if !allowed {
		return 0, nil, xdgerr.New(xdgerr.KindNotAllowed, "caller lacks write permission")
	}

	ensureCreate := hasFlag(flags, ensureCreateFlag)
	if ensureCreate && !doc.IsPromise() {
		return 0, nil, xdgerr.New(xdgerr.KindExists, "document is already materialized")
	}

	dir, base := stagingLocation(doc)

	rw, ro, err := createStagingFiles(dir, base)
	if err != nil {
		return 0, nil, xdgerr.Wrap(xdgerr.KindFailed, "create staging file", err)
	}

	u := &Update{DocID: docID, Owner: sender, ROFile: ro, EnsureCreate: ensureCreate}

	e.mu.Lock()
	e.updates[u.ID()] = u
	e.mu.Unlock()

	return u.ID(), rw, nil
}

// stagingLocation computes the directory and basename PrepareUpdate stages
// the new content under, per spec.md §4.D: the document's own directory for
// a promise, the parent of its file for a materialized document.
func stagingLocation(doc store.Document) (dir, base string) {
	if doc.IsPromise() {
		return pathFromURI(doc.URI), doc.Title
	}

	path := pathFromURI(doc.URI)

	return filepath.Dir(path), filepath.Base(path)
}

// createStagingFiles creates "<dir>/.<base>.XXXXXX" (rw, mode 0600), reopens
// it read-only, then unlinks the name immediately - the read-only fd is the
// update's identity and the only remaining reference to the staging data.
func createStagingFiles(dir, base string) (rw, ro *os.File, err error) {
	pattern := "." + base + ".*"

	rw, err = os.CreateTemp(dir, pattern)
	if err != nil {
		return nil, nil, fmt.Errorf("mkstemp: %w", err)
	}

	ro, err = os.Open(rw.Name())
	if err != nil {
		_ = rw.Close()
		_ = os.Remove(rw.Name())

		return nil, nil, fmt.Errorf("reopen staging file read-only: %w", err)
	}

	if err := os.Remove(rw.Name()); err != nil {
		_ = rw.Close()
		_ = ro.Close()

		return nil, nil, fmt.Errorf("unlink staging file: %w", err)
	}

	return rw, ro, nil
}

// lookupUpdate finds and validates ownership of an update, per spec.md
// §4.D/§5: only the bus name that invoked PrepareUpdate may finish or abort
// it; anyone else gets NotFound, not NotAllowed, so as not to confirm the
// update-id's existence to an unrelated caller.
func (e *Engine) lookupUpdate(docID, sender string, updateID int) (*Update, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	u, ok := e.updates[updateID]
	if !ok || u.DocID != docID || u.Owner != sender {
		return nil, xdgerr.New(xdgerr.KindNotFound, "unknown update")
	}

	return u, nil
}

func (e *Engine) removeUpdate(updateID int) {
	e.mu.Lock()
	delete(e.updates, updateID)
	e.mu.Unlock()
}

// AbortUpdate drops a pending update without touching the destination.
func (e *Engine) AbortUpdate(docID, sender string, updateID int) error {
	u, err := e.lookupUpdate(docID, sender, updateID)
	if err != nil {
		return err
	}

	e.removeUpdate(updateID)

	_ = u.ROFile.Close()

	return nil
}

// FinishUpdate materializes (promise doc) or atomically replaces (existing
// doc) the destination file with the staged content, per spec.md §4.D.
func (e *Engine) FinishUpdate(docID, sender string, updateID int) error {
	u, err := e.lookupUpdate(docID, sender, updateID)
	if err != nil {
		return err
	}

	e.removeUpdate(updateID)
	defer func() { _ = u.ROFile.Close() }()

	doc, ok := e.store.LookupDoc(docID)
	if !ok {
		return xdgerr.Wrap(xdgerr.KindNotFound, "unknown document", store.ErrDocumentNotFound)
	}

	if doc.IsPromise() {
		return e.finishPromise(doc, u)
	}

	return e.finishReplace(doc, u)
}

// finishPromise materializes a titled document: try "<dir>/<title>", then
// "<dir>/<title>.1", ".2", ... until an exclusive create succeeds.
func (e *Engine) finishPromise(doc store.Document, u *Update) error {
	dir := pathFromURI(doc.URI)

	var (
		dest string
		f    *os.File
	)

	for attempt := 0; attempt <= maxSuffixAttempts; attempt++ {
		name := doc.Title
		if attempt > 0 {
			name = fmt.Sprintf("%s.%d", doc.Title, attempt)
		}

		dest = filepath.Join(dir, name)

		var err error

		f, err = os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err == nil {
			break
		}

		if !os.IsExist(err) {
			return xdgerr.Wrap(xdgerr.KindFailed, "create materialized file", err)
		}

		f = nil
	}

	if f == nil {
		return xdgerr.New(xdgerr.KindFailed, "exhausted suffix attempts materializing document")
	}

	defer func() { _ = f.Close() }()

	// A failure here leaves the partially written candidate file in place;
	// the source neither removes nor documents it and this implementation
	// matches that (spec.md §9 Open Questions).
	if _, err := fsutil.CopyFdToStream(int(u.ROFile.Fd()), f); err != nil {
		return xdgerr.Wrap(xdgerr.KindFailed, "write materialized file", err)
	}

	if err := e.store.UpdateDoc(doc.ID, uriFromPath(dest), ""); err != nil {
		return xdgerr.Wrap(xdgerr.KindFailed, "update document row", err)
	}

	return nil
}

// finishReplace atomically replaces an already-materialized document's
// backing file with the staged content.
func (e *Engine) finishReplace(doc store.Document, u *Update) error {
	path := pathFromURI(doc.URI)

	if u.EnsureCreate {
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err != nil {
			if os.IsExist(err) {
				return xdgerr.New(xdgerr.KindExists, "document already exists")
			}

			return xdgerr.Wrap(xdgerr.KindFailed, "create document", err)
		}
		defer func() { _ = f.Close() }()

		if _, err := fsutil.CopyFdToStream(int(u.ROFile.Fd()), f); err != nil {
			return xdgerr.Wrap(xdgerr.KindFailed, "write document", err)
		}

		return nil
	}

	if _, err := u.ROFile.Seek(0, io.SeekStart); err != nil {
		return xdgerr.Wrap(xdgerr.KindFailed, "rewind staging file", err)
	}

	if err := atomic.WriteFile(path, u.ROFile); err != nil {
		return xdgerr.Wrap(xdgerr.KindFailed, "replace document", err)
	}

	return nil
}
