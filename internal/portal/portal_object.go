package portal

import (
	"context"

	"github.com/godbus/dbus/v5"

	"github.com/calvinalkan/xdg-document-portal/internal/appid"
)

// portalInterface is the D-Bus interface name for the five top-level
// operations exposed at /org/freedesktop/portal/document.
const portalInterface = "org.freedesktop.portal.DocumentPortal"

// portalObject implements the top-level Add/AddLocal/New/NewLocal/Remove
// method table.
type portalObject struct {
	frontend *Frontend
	resolver *appid.Cache
}

func (p *portalObject) appIDOf(sender dbus.Sender) string {
	appID, err := p.resolver.Resolve(context.Background(), string(sender))
	if err != nil {
		return ""
	}

	return appID
}

func (p *portalObject) Add(uri string, sender dbus.Sender) (string, *dbus.Error) {
	id, err := p.frontend.Add(p.appIDOf(sender), uri)
	if err != nil {
		return "", toDBusError(err)
	}

	return id, nil
}

func (p *portalObject) AddLocal(fd dbus.UnixFD, sender dbus.Sender) (string, *dbus.Error) {
	id, err := p.frontend.AddLocal(p.appIDOf(sender), int(fd))
	if err != nil {
		return "", toDBusError(err)
	}

	return id, nil
}

func (p *portalObject) New(baseURI, title string, sender dbus.Sender) (string, *dbus.Error) {
	id, err := p.frontend.New(p.appIDOf(sender), baseURI, title)
	if err != nil {
		return "", toDBusError(err)
	}

	return id, nil
}

func (p *portalObject) NewLocal(dirFd dbus.UnixFD, title string, sender dbus.Sender) (string, *dbus.Error) {
	id, err := p.frontend.NewLocal(p.appIDOf(sender), int(dirFd), title)
	if err != nil {
		return "", toDBusError(err)
	}

	return id, nil
}

func (p *portalObject) Remove(id string, sender dbus.Sender) *dbus.Error {
	if err := p.frontend.Remove(p.appIDOf(sender), id); err != nil {
		return toDBusError(err)
	}

	return nil
}
