// Package busconn wraps the small slice of github.com/godbus/dbus/v5 that
// this service needs behind an interface, so internal/portal and
// internal/appid can be tested against a fake bus instead of a live session
// bus daemon.
package busconn

import (
	"context"
	"fmt"

	"github.com/godbus/dbus/v5"
)

// Conn is the bus operations the dispatch shell and app-id resolver need.
type Conn interface {
	// RequestName requests a well-known name and returns the bus's reply
	// code; with dbus.NameFlagDoNotQueue a contended name yields a reply
	// other than RequestNameReplyPrimaryOwner instead of a queued request.
	RequestName(name string, flags dbus.RequestNameFlags) (dbus.RequestNameReply, error)
	// Export publishes v's exported methods at path under interfaceName.
	Export(v interface{}, path dbus.ObjectPath, interfaceName string) error
	// ExportSubtreeMethodTable registers a subtree handler rooted at path.
	ExportSubtreeMethodTable(methods map[string]interface{}, path dbus.ObjectPath, interfaceName string) error
	// AddMatchSignal subscribes to bus signals matching the given options.
	AddMatchSignal(options ...dbus.MatchOption) error
	// Signal registers ch to receive delivered signals.
	Signal(ch chan<- *dbus.Signal)
	// GetConnectionUnixProcessID resolves a bus-unique-name to its PID.
	GetConnectionUnixProcessID(ctx context.Context, sender string) (uint32, error)
	// Close tears down the connection.
	Close() error
}

// Real wraps a live *dbus.Conn.
type Real struct {
	conn *dbus.Conn
}

// Connect opens the per-user session bus at the address
// dbus.ConnectSessionBus resolves from $DBUS_SESSION_BUS_ADDRESS. It adds no
// transport restriction of its own and sets no process-wide file-access mode.
func Connect() (*Real, error) {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, fmt.Errorf("connect session bus: %w", err)
	}

	return &Real{conn: conn}, nil
}

func (r *Real) RequestName(name string, flags dbus.RequestNameFlags) (dbus.RequestNameReply, error) {
	return r.conn.RequestName(name, flags)
}

func (r *Real) Export(v interface{}, path dbus.ObjectPath, interfaceName string) error {
	return r.conn.Export(v, path, interfaceName)
}

func (r *Real) ExportSubtreeMethodTable(methods map[string]interface{}, path dbus.ObjectPath, interfaceName string) error {
	r.conn.ExportSubtreeMethodTable(methods, path, interfaceName)

	return nil
}

func (r *Real) AddMatchSignal(options ...dbus.MatchOption) error {
	return r.conn.AddMatchSignal(options...)
}

func (r *Real) Signal(ch chan<- *dbus.Signal) {
	r.conn.Signal(ch)
}

func (r *Real) GetConnectionUnixProcessID(ctx context.Context, sender string) (uint32, error) {
	obj := r.conn.BusObject()

	var pid uint32

	call := obj.CallWithContext(ctx, "org.freedesktop.DBus.GetConnectionUnixProcessID", 0, sender)
	if call.Err != nil {
		return 0, fmt.Errorf("GetConnectionUnixProcessID(%s): %w", sender, call.Err)
	}

	if err := call.Store(&pid); err != nil {
		return 0, fmt.Errorf("decode GetConnectionUnixProcessID(%s) reply: %w", sender, err)
	}

	return pid, nil
}

func (r *Real) Close() error {
	return r.conn.Close()
}
