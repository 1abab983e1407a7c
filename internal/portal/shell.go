package portal

import (
	"sync"
	"time"

	"github.com/godbus/dbus/v5"

	"github.com/calvinalkan/xdg-document-portal/internal/appid"
	"github.com/calvinalkan/xdg-document-portal/internal/busconn"
	"github.com/calvinalkan/xdg-document-portal/internal/engine"
	"github.com/calvinalkan/xdg-document-portal/internal/log"
	"github.com/calvinalkan/xdg-document-portal/internal/store"
)

const (
	// wellKnownName is the bus name this service owns with no queueing
	// (spec.md §4.F): losing it is fatal.
	wellKnownName = "org.freedesktop.portal.DocumentPortal"
	portalPath    = dbus.ObjectPath("/org/freedesktop/portal/document")
)

// Shell is the Request Dispatch Shell (spec.md §4.F): bus name ownership,
// object export, and the NameOwnerChanged subscription that invalidates the
// app-id cache on client exit.
type Shell struct {
	conn     busconn.Conn
	store    *store.Store
	resolver *appid.Cache
	dbPath   string
	debounce time.Duration

	flushMu    sync.Mutex
	flushTimer *time.Timer

	// Fatal receives exactly one error if the well-known name is lost
	// after acquisition; the caller should exit the process on receipt,
	// per spec.md §4.F ("losing the name terminates the process").
	Fatal chan error
}

// New wires a Shell over conn/store/engine/resolver. dbPath is where the
// debounced flush timer saves the store; debounce is normally 10s
// (internal/config.Config.FlushDebounce).
func New(conn busconn.Conn, s *store.Store, e *engine.Engine, resolver *appid.Cache, dbPath string, debounce time.Duration) *Shell {
	sh := &Shell{
		conn:     conn,
		store:    s,
		resolver: resolver,
		dbPath:   dbPath,
		debounce: debounce,
		Fatal:    make(chan error, 1),
	}

	s.OnDirty(sh.armFlush)

	frontend := NewFrontend(s, e)

	obj := &portalObject{frontend: frontend, resolver: resolver}
	doc := &documentHandler{engine: e, resolver: resolver}

	if err := conn.Export(obj, portalPath, portalInterface); err != nil {
		log.Logger.Error().Err(err).Msg("export portal object")
	}

	if err := conn.ExportSubtreeMethodTable(doc.methodTable(), portalPath, documentInterface); err != nil {
		log.Logger.Error().Err(err).Msg("export document subtree")
	}

	return sh
}

// Start acquires the well-known name (no queueing) and subscribes to
// NameOwnerChanged. It returns once the name is owned; losing it afterward
// is reported on Fatal. If replace is true, an existing non-queueing owner
// that itself allows replacement is evicted instead of causing errNameTaken.
func (sh *Shell) Start(replace bool) error {
	flags := dbus.NameFlagDoNotQueue
	if replace {
		flags |= dbus.NameFlagReplaceExisting
	}

	reply, err := sh.conn.RequestName(wellKnownName, flags)
	if err != nil {
		return err
	}

	if reply != dbus.RequestNameReplyPrimaryOwner {
		return errNameTaken
	}

	if err := sh.conn.AddMatchSignal(
		dbus.WithMatchInterface("org.freedesktop.DBus"),
		dbus.WithMatchMember("NameOwnerChanged"),
	); err != nil {
		return err
	}

	signals := make(chan *dbus.Signal, 32)
	sh.conn.Signal(signals)

	go sh.watchSignals(signals)

	return nil
}

func (sh *Shell) watchSignals(signals <-chan *dbus.Signal) {
	for sig := range signals {
		if sig.Name != "org.freedesktop.DBus.NameOwnerChanged" {
			continue
		}

		sh.handleNameOwnerChanged(sig)
	}
}

func (sh *Shell) handleNameOwnerChanged(sig *dbus.Signal) {
	if len(sig.Body) != 3 {
		return
	}

	name, _ := sig.Body[0].(string)
	newOwner, _ := sig.Body[2].(string)

	if name == wellKnownName && newOwner == "" {
		select {
		case sh.Fatal <- errNameLost:
		default:
		}

		return
	}

	if newOwner == "" {
		sh.resolver.NameLost(name)
	}
}

// armFlush schedules a one-shot Save after the debounce interval. Per
// spec.md §4.A, further dirty mutations before it fires do not re-arm it -
// Store.OnDirty only calls this on the clean→dirty transition, so natural
// dedup already holds; the mutex here just protects flushTimer itself.
func (sh *Shell) armFlush() {
	sh.flushMu.Lock()
	defer sh.flushMu.Unlock()

	if sh.flushTimer != nil {
		return
	}

	sh.flushTimer = time.AfterFunc(sh.debounce, sh.flush)
}

func (sh *Shell) flush() {
	sh.flushMu.Lock()
	sh.flushTimer = nil
	sh.flushMu.Unlock()

	if err := sh.store.Save(sh.dbPath); err != nil {
		log.Logger.Error().Err(err).Msg("save document store")
	}
}

// Shutdown performs the final Save spec.md §5 requires on clean bus-closed
// shutdown.
func (sh *Shell) Shutdown() {
	if sh.store.IsDirty() {
		if err := sh.store.Save(sh.dbPath); err != nil {
			log.Logger.Error().Err(err).Msg("final save on shutdown")
		}
	}

	_ = sh.conn.Close()
}
