// Package portal implements the Portal Frontend (spec.md §4.E) and the
// Request Dispatch Shell (§4.F): the five top-level bus methods, the
// per-document subtree, and the session-bus integration that wires them to
// a Store/Engine/app-id Cache.
package portal

import (
	"fmt"
	"path/filepath"

	"github.com/calvinalkan/xdg-document-portal/internal/engine"
	"github.com/calvinalkan/xdg-document-portal/internal/fsutil"
	"github.com/calvinalkan/xdg-document-portal/internal/store"
	"github.com/calvinalkan/xdg-document-portal/internal/xdgerr"
)

const fileScheme = "file://"

func uriFromPath(path string) string { return fileScheme + path }

// Frontend implements the five top-level portal operations over a Store and
// Engine, enforcing the app-id privilege checks spec.md §4.E describes.
type Frontend struct {
	store     *store.Store
	engine    *engine.Engine
	pendingAdd *Coalescer
}

// NewFrontend builds a Frontend over s/e.
func NewFrontend(s *store.Store, e *engine.Engine) *Frontend {
	return &Frontend{store: s, engine: e, pendingAdd: NewCoalescer()}
}

// Add registers (or reuses) a titleless document for uri. Only an
// unsandboxed caller may call it.
func (f *Frontend) Add(appID, uri string) (string, error) {
	if appID != "" {
		return "", xdgerr.New(xdgerr.KindNotAllowed, "sandboxed caller may not call Add")
	}

	v, err := f.pendingAdd.Do(uri, func() (interface{}, error) {
		return f.store.CreateDoc(uri, "")
	})
	if err != nil {
		return "", xdgerr.Wrap(xdgerr.KindFailed, "create document", err)
	}

	return v.(string), nil
}

// AddLocal validates fd as a readable regular file, registers (or reuses) a
// titleless document for its resolved path, and - if the caller is
// sandboxed - implicitly grants it grant-permissions|read (and write if fd
// was opened read-write).
func (f *Frontend) AddLocal(appID string, fd int) (string, error) {
	path, err := fsutil.ValidateLocalFd(fd, fsutil.KindRegular, true)
	if err != nil {
		return "", xdgerr.Wrap(xdgerr.KindInvalidArgument, "invalid fd", err)
	}

	uri := uriFromPath(path)

	v, err := f.pendingAdd.Do(uri, func() (interface{}, error) {
		return f.store.CreateDoc(uri, "")
	})
	if err != nil {
		return "", xdgerr.Wrap(xdgerr.KindFailed, "create document", err)
	}

	id := v.(string)

	if err := f.grantImplicit(appID, id, fd); err != nil {
		return "", err
	}

	return id, nil
}

// New creates a titled document (a promise) rooted at baseURI. Only an
// unsandboxed caller may call it, and title must be non-empty.
func (f *Frontend) New(appID, baseURI, title string) (string, error) {
	if appID != "" {
		return "", xdgerr.New(xdgerr.KindNotAllowed, "sandboxed caller may not call New")
	}

	if title == "" {
		return "", xdgerr.New(xdgerr.KindInvalidArgument, "title must not be empty")
	}

	id, err := f.store.CreateDoc(baseURI, title)
	if err != nil {
		return "", xdgerr.Wrap(xdgerr.KindFailed, "create document", err)
	}

	return id, nil
}

// NewLocal validates dirFd as a readable directory, creates a titled
// document rooted at its URI, and grants the same implicit permissions
// AddLocal does if the caller is sandboxed.
func (f *Frontend) NewLocal(appID string, dirFd int, title string) (string, error) {
	if title == "" {
		return "", xdgerr.New(xdgerr.KindInvalidArgument, "title must not be empty")
	}

	path, err := fsutil.ValidateLocalFd(dirFd, fsutil.KindDirectory, true)
	if err != nil {
		return "", xdgerr.Wrap(xdgerr.KindInvalidArgument, "invalid fd", err)
	}

	id, err := f.store.CreateDoc(uriFromPath(path), title)
	if err != nil {
		return "", xdgerr.Wrap(xdgerr.KindFailed, "create document", err)
	}

	if err := f.grantImplicit(appID, id, dirFd); err != nil {
		return "", err
	}

	return id, nil
}

// Remove deletes a document via the engine. Only an unsandboxed caller may
// call it.
func (f *Frontend) Remove(appID, id string) error {
	if appID != "" {
		return xdgerr.New(xdgerr.KindNotAllowed, "sandboxed caller may not call Remove")
	}

	return f.engine.Delete(id)
}

// grantImplicit grants grant-permissions|read (and write, if fd is
// read-write) to appID when it is sandboxed, per spec.md §4.E.
func (f *Frontend) grantImplicit(appID, docID string, fd int) error {
	if appID == "" {
		return nil
	}

	bits := store.PermGrant | store.PermRead

	writable, err := fsutil.IsWritable(fd)
	if err != nil {
		return xdgerr.Wrap(xdgerr.KindFailed, "check fd access mode", err)
	}

	if writable {
		bits |= store.PermWrite
	}

	if err := f.store.SetPermissions(docID, appID, bits, true); err != nil {
		return xdgerr.Wrap(xdgerr.KindFailed, "grant implicit permissions", fmt.Errorf("%s: %w", filepath.Base(docID), err))
	}

	return nil
}
