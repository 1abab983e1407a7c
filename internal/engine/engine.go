// Package engine is the Document Engine (spec.md §4.D): per-document
// request dispatch - permission checks, fd work, and store mutation - for
// Read, GetInfo, PrepareUpdate, FinishUpdate, AbortUpdate,
// Grant/RevokePermissions, and Delete.
package engine

import (
	"os"
	"sync"

	"github.com/calvinalkan/xdg-document-portal/internal/store"
	"github.com/calvinalkan/xdg-document-portal/internal/xdgerr"
)

// Engine dispatches per-document operations against a single Store.
type Engine struct {
	store *store.Store

	mu      sync.Mutex
	updates map[int]*Update
}

// New builds an Engine over s.
func New(s *store.Store) *Engine {
	return &Engine{
		store:   s,
		updates: make(map[int]*Update),
	}
}

// Read opens the document's file read-only, per spec.md §4.D. The caller
// owns the returned *os.File and is responsible for closing it once its
// descriptor has been handed across the bus.
func (e *Engine) Read(docID, appID string) (*os.File, error) {
	doc, ok := e.store.LookupDoc(docID)
	if !ok {
		return nil, xdgerr.Wrap(xdgerr.KindNotFound, "unknown document", store.ErrDocumentNotFound)
	}

	if doc.IsPromise() {
		return nil, xdgerr.New(xdgerr.KindNotWritten, "document is not yet materialized")
	}

	allowed, err := e.hasPermissions(docID, appID, store.PermRead)
	if err != nil {
		return nil, xdgerr.Wrap(xdgerr.KindFailed, "check read permission", err)
	}

	if !allowed {
		return nil, xdgerr.New(xdgerr.KindNotAllowed, "caller lacks read permission")
	}

	f, err := os.Open(pathFromURI(doc.URI))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, xdgerr.Wrap(xdgerr.KindNoFile, "backing file missing", err)
		}

		return nil, xdgerr.Wrap(xdgerr.KindFailed, "open document", err)
	}

	return f, nil
}

// Delete removes a document, refusing if any update (by any app) is still
// pending against it.
func (e *Engine) Delete(docID string) error {
	if _, ok := e.store.LookupDoc(docID); !ok {
		return xdgerr.Wrap(xdgerr.KindNotFound, "unknown document", store.ErrDocumentNotFound)
	}

	e.mu.Lock()
	pending := e.hasPendingUpdateLocked(docID)
	e.mu.Unlock()

	if pending {
		return xdgerr.New(xdgerr.KindOperationsPending, "an update is pending on this document")
	}

	if err := e.store.DeleteDoc(docID); err != nil {
		return xdgerr.Wrap(xdgerr.KindFailed, "delete document", err)
	}

	return nil
}

func (e *Engine) hasPendingUpdateLocked(docID string) bool {
	for _, u := range e.updates {
		if u.DocID == docID {
			return true
		}
	}

	return false
}
