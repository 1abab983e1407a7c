package portal

import (
	"errors"

	"github.com/godbus/dbus/v5"

	"github.com/calvinalkan/xdg-document-portal/internal/xdgerr"
)

// errNameTaken is returned by Shell.Start when the well-known name is
// already owned by another process (no-queueing request, per spec.md §4.F).
var errNameTaken = errors.New("well-known name already owned, not queueing")

// errNameLost is sent on Shell.Fatal when the well-known name is lost after
// acquisition; per spec.md §4.F this is deliberately fatal.
var errNameLost = errors.New("lost well-known bus name")

// errorNamePrefix is the bus error namespace all document-portal errors
// live under (spec.md §6).
const errorNamePrefix = "org.freedesktop.portal.document."

// toDBusError classifies err via xdgerr and renders it as the matching
// dbus.Error. This is the only place in the service that turns an internal
// Kind into a wire error name - everything else stays free of the bus
// library import.
func toDBusError(err error) *dbus.Error {
	if err == nil {
		return nil
	}

	kind := xdgerr.KindOf(err)

	return dbus.NewError(errorNamePrefix+kind.Name(), []interface{}{err.Error()})
}
