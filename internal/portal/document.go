package portal

import (
	"context"
	"path"

	"github.com/godbus/dbus/v5"

	"github.com/calvinalkan/xdg-document-portal/internal/appid"
	"github.com/calvinalkan/xdg-document-portal/internal/engine"
)

// documentInterface is the D-Bus interface name exposed at
// /org/freedesktop/portal/document/<id> for any live document id.
const documentInterface = "org.freedesktop.portal.Document"

// documentHandler implements the Document interface's method table. It is
// registered once as a subtree handler rooted at the document path, per
// spec.md §4.E's "subtree dispatcher routing doc-id path components" -
// godbus's ExportSubtreeMethodTable dispatches every sub-path under the
// root to the same handler, which recovers the targeted id from the
// message's own path header rather than from a per-path closure.
type documentHandler struct {
	engine   *engine.Engine
	resolver *appid.Cache
}

// docIDFromMessage extracts the trailing path component - the document id -
// from the method call's own object path.
func docIDFromMessage(msg dbus.Message) string {
	p, ok := msg.Headers[dbus.FieldPath]
	if !ok {
		return ""
	}

	op, ok := p.Value().(dbus.ObjectPath)
	if !ok {
		return ""
	}

	return path.Base(string(op))
}

func (h *documentHandler) appIDOf(sender dbus.Sender) string {
	appID, err := h.resolver.Resolve(context.Background(), string(sender))
	if err != nil {
		return ""
	}

	return appID
}

func (h *documentHandler) Read(sender dbus.Sender, msg dbus.Message) (dbus.UnixFD, *dbus.Error) {
	docID := docIDFromMessage(msg)

	f, err := h.engine.Read(docID, h.appIDOf(sender))
	if err != nil {
		return 0, toDBusError(err)
	}
	defer func() { _ = f.Close() }()

	return dbus.UnixFD(f.Fd()), nil
}

func (h *documentHandler) GetInfo(sender dbus.Sender, msg dbus.Message) (map[string]dbus.Variant, *dbus.Error) {
	docID := docIDFromMessage(msg)

	info, err := h.engine.GetInfo(docID, h.appIDOf(sender))
	if err != nil {
		return nil, toDBusError(err)
	}

	out := make(map[string]dbus.Variant, len(info))
	for k, v := range info {
		out[k] = dbus.MakeVariant(v)
	}

	return out, nil
}

func (h *documentHandler) PrepareUpdate(etag string, flags []string, sender dbus.Sender, msg dbus.Message) (uint32, dbus.UnixFD, *dbus.Error) {
	docID := docIDFromMessage(msg)

	updateID, writable, err := h.engine.PrepareUpdate(docID, h.appIDOf(sender), string(sender), flags)
	if err != nil {
		return 0, 0, toDBusError(err)
	}
	defer func() { _ = writable.Close() }()

	return uint32(updateID), dbus.UnixFD(writable.Fd()), nil
}

func (h *documentHandler) FinishUpdate(updateID uint32, sender dbus.Sender, msg dbus.Message) *dbus.Error {
	docID := docIDFromMessage(msg)

	if err := h.engine.FinishUpdate(docID, string(sender), int(updateID)); err != nil {
		return toDBusError(err)
	}

	return nil
}

func (h *documentHandler) AbortUpdate(updateID uint32, sender dbus.Sender, msg dbus.Message) *dbus.Error {
	docID := docIDFromMessage(msg)

	if err := h.engine.AbortUpdate(docID, string(sender), int(updateID)); err != nil {
		return toDBusError(err)
	}

	return nil
}

func (h *documentHandler) GrantPermissions(targetApp string, perms []string, sender dbus.Sender, msg dbus.Message) *dbus.Error {
	docID := docIDFromMessage(msg)

	if err := h.engine.GrantPermissions(docID, h.appIDOf(sender), targetApp, perms); err != nil {
		return toDBusError(err)
	}

	return nil
}

func (h *documentHandler) RevokePermissions(targetApp string, perms []string, sender dbus.Sender, msg dbus.Message) *dbus.Error {
	docID := docIDFromMessage(msg)

	if err := h.engine.RevokePermissions(docID, h.appIDOf(sender), targetApp, perms); err != nil {
		return toDBusError(err)
	}

	return nil
}

func (h *documentHandler) Delete(msg dbus.Message) *dbus.Error {
	docID := docIDFromMessage(msg)

	if err := h.engine.Delete(docID); err != nil {
		return toDBusError(err)
	}

	return nil
}

// methodTable returns the map ExportSubtreeMethodTable expects.
func (h *documentHandler) methodTable() map[string]interface{} {
	return map[string]interface{}{
		"Read":              h.Read,
		"GetInfo":           h.GetInfo,
		"PrepareUpdate":     h.PrepareUpdate,
		"FinishUpdate":      h.FinishUpdate,
		"AbortUpdate":       h.AbortUpdate,
		"GrantPermissions":  h.GrantPermissions,
		"RevokePermissions": h.RevokePermissions,
		"Delete":            h.Delete,
	}
}
