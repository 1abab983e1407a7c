package busconn

import (
	"context"

	"github.com/godbus/dbus/v5"
)

// Fake is an in-memory Conn for tests, grounded on the teacher's pattern of
// faking narrow collaborator interfaces (pkg/fs.Chaos, jra3-linear-fuse's
// fake sync.APIClient) rather than standing up the real dependency.
type Fake struct {
	NameReply dbus.RequestNameReply
	NameErr   error

	Exported         map[dbus.ObjectPath]map[string]interface{}
	ExportedSubtrees map[dbus.ObjectPath]map[string]interface{}

	PIDs map[string]uint32

	sigCh chan<- *dbus.Signal
}

// NewFake returns a ready-to-use Fake.
func NewFake() *Fake {
	return &Fake{
		NameReply:        dbus.RequestNameReplyPrimaryOwner,
		Exported:         make(map[dbus.ObjectPath]map[string]interface{}),
		ExportedSubtrees: make(map[dbus.ObjectPath]map[string]interface{}),
		PIDs:             make(map[string]uint32),
	}
}

func (f *Fake) RequestName(name string, flags dbus.RequestNameFlags) (dbus.RequestNameReply, error) {
	return f.NameReply, f.NameErr
}

func (f *Fake) Export(v interface{}, path dbus.ObjectPath, interfaceName string) error {
	if f.Exported[path] == nil {
		f.Exported[path] = make(map[string]interface{})
	}

	f.Exported[path][interfaceName] = v

	return nil
}

func (f *Fake) ExportSubtreeMethodTable(methods map[string]interface{}, path dbus.ObjectPath, interfaceName string) error {
	if f.ExportedSubtrees[path] == nil {
		f.ExportedSubtrees[path] = make(map[string]interface{})
	}

	f.ExportedSubtrees[path][interfaceName] = methods

	return nil
}

func (f *Fake) AddMatchSignal(options ...dbus.MatchOption) error {
	return nil
}

func (f *Fake) Signal(ch chan<- *dbus.Signal) {
	f.sigCh = ch
}

// Emit delivers sig to whatever channel was last registered via Signal.
func (f *Fake) Emit(sig *dbus.Signal) {
	if f.sigCh != nil {
		f.sigCh <- sig
	}
}

func (f *Fake) GetConnectionUnixProcessID(ctx context.Context, sender string) (uint32, error) {
	return f.PIDs[sender], nil
}

func (f *Fake) Close() error {
	return nil
}
