package engine

import (
	"fmt"
	"mime"
	"os"
	"path/filepath"

	"github.com/calvinalkan/xdg-document-portal/internal/store"
	"github.com/calvinalkan/xdg-document-portal/internal/xdgerr"
)

// GetInfo returns the allow-listed attribute dict for docID, per spec.md
// §4.D. Keys match the wire names exactly; internal/portal's dispatch
// boundary wraps each value in a dbus.Variant.
func (e *Engine) GetInfo(docID, appID string) (map[string]interface{}, error) {
	doc, ok := e.store.LookupDoc(docID)
	if !ok {
		return nil, xdgerr.Wrap(xdgerr.KindNotFound, "unknown document", store.ErrDocumentNotFound)
	}

	if doc.IsPromise() {
		return nil, xdgerr.New(xdgerr.KindNotWritten, "document is not yet materialized")
	}

	allowedRead, err := e.hasPermissions(docID, appID, store.PermRead)
	if err != nil {
		return nil, xdgerr.Wrap(xdgerr.KindFailed, "check read permission", err)
	}

	if !allowedRead {
		return nil, xdgerr.New(xdgerr.KindNotAllowed, "caller lacks read permission")
	}

	path := pathFromURI(doc.URI)

	st, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, xdgerr.Wrap(xdgerr.KindNoFile, "backing file missing", err)
		}

		return nil, xdgerr.Wrap(xdgerr.KindFailed, "stat document", err)
	}

	bits, err := e.store.LookupPermissions(docID, appID)
	if err != nil {
		return nil, xdgerr.Wrap(xdgerr.KindFailed, "lookup permissions", err)
	}

	name := filepath.Base(path)
	contentType := mime.TypeByExtension(filepath.Ext(path))

	info := map[string]interface{}{
		"name":             name,
		"display-name":     name,
		"edit-name":        name,
		"copy-name":        name,
		"icon":             "text-x-generic",
		"symbolic-icon":    "text-x-generic-symbolic",
		"size":             uint64(st.Size()),
		"allocated-size":   uint64(st.Size()),
		"etag:value":       fmt.Sprintf("%x-%x", st.ModTime().UnixNano(), st.Size()),
		"access:can-read":  bits.Has(store.PermRead),
		"access:can-write": bits.Has(store.PermWrite),
		"time::modified":   uint64(st.ModTime().Unix()),
	}

	if contentType != "" {
		info["content-type"] = contentType
	}

	return info, nil
}
