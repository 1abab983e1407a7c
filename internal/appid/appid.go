// Package appid resolves a D-Bus caller's unique bus name to its sandbox
// app-id, per spec.md §4.C: read the caller's cgroup scope and match the
// xdg-app-<APPID>-*.scope pattern flatpak's bubblewrap launcher assigns.
//
// Lookups are cached per bus-unique-name with a lifetime tied to the name's
// ownership: a NameOwnerChanged(name, _, "") signal marks the cache entry as
// exited, and it is evicted once every coalesced waiter has been served.
package appid

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
)

const (
	cgroupPrefix = "1:name=systemd:"
	scopePrefix  = "xdg-app-"
	scopeSuffix  = ".scope"
)

// ProcessResolver looks up the unix process id owning a bus-unique-name.
// Satisfied by any busconn.Conn (*busconn.Real in production); faked in tests.
type ProcessResolver interface {
	GetConnectionUnixProcessID(ctx context.Context, sender string) (uint32, error)
}

// info is the AppIdInfo transient entity from spec.md §3.
type info struct {
	resolved bool
	appID    string
	exited   bool
	waiters  []chan result
}

type result struct {
	appID string
	err   error
}

// Cache maps bus-unique-names to their resolved app-id, coalescing
// concurrent lookups for the same sender.
type Cache struct {
	mu        sync.Mutex
	resolver  ProcessResolver
	entries   map[string]*info
	cgroupFmt string
}

// New builds a Cache that queries resolver for unix process ids.
func New(resolver ProcessResolver) *Cache {
	return &Cache{
		resolver:  resolver,
		entries:   make(map[string]*info),
		cgroupFmt: "/proc/%d/cgroup",
	}
}

// Resolve returns the app-id for sender, consulting the cache first and
// coalescing concurrent first-lookups for the same sender onto a single
// GetConnectionUnixProcessID + cgroup read.
func (c *Cache) Resolve(ctx context.Context, sender string) (string, error) {
	c.mu.Lock()

	e, ok := c.entries[sender]
	if ok && e.resolved {
		appID := e.appID
		c.mu.Unlock()

		return appID, nil
	}

	wait := make(chan result, 1)

	if ok {
		e.waiters = append(e.waiters, wait)
		c.mu.Unlock()
	} else {
		e = &info{waiters: []chan result{wait}}
		c.entries[sender] = e
		c.mu.Unlock()

		go c.lookup(sender, e)
	}

	select {
	case r := <-wait:
		return r.appID, r.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// lookup performs the actual PID + cgroup resolution for sender and
// delivers the result to every coalesced waiter.
func (c *Cache) lookup(sender string, e *info) {
	appID, err := c.resolveAppID(sender)

	c.mu.Lock()

	waiters := e.waiters
	e.waiters = nil

	if e.exited {
		// Caller disappeared mid-lookup, and every waiter it owed a result
		// to is about to be served below - discard the result instead of
		// caching it and evict now that the pending list has drained
		// (spec.md §4.C.4).
		delete(c.entries, sender)
	} else if err == nil {
		e.resolved = true
		e.appID = appID
	} else {
		// A failed lookup is not cached: drop the entry so the next Resolve
		// starts a fresh lookup instead of waiting on one that never runs.
		delete(c.entries, sender)
	}

	c.mu.Unlock()

	for _, w := range waiters {
		w <- result{appID: appID, err: err}
	}
}

func (c *Cache) resolveAppID(sender string) (string, error) {
	pid, err := c.resolver.GetConnectionUnixProcessID(context.Background(), sender)
	if err != nil {
		return "", fmt.Errorf("get unix process id for %s: %w", sender, err)
	}

	return appIDFromCgroup(fmt.Sprintf(c.cgroupFmt, pid))
}

// appIDFromCgroup reads the named cgroup file and extracts the app-id, per
// spec.md §4.C.2.
func appIDFromCgroup(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, cgroupPrefix) {
			continue
		}

		return appIDFromScopeLine(line), nil
	}

	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}

	return "", nil
}

// appIDFromScopeLine extracts <APPID> from a cgroup line whose last path
// component matches xdg-app-<APPID>-*.scope; returns "" (unsandboxed) if it
// doesn't match.
func appIDFromScopeLine(line string) string {
	idx := strings.LastIndexByte(line, '/')
	scope := line
	if idx >= 0 {
		scope = line[idx+1:]
	}

	if !strings.HasPrefix(scope, scopePrefix) || !strings.HasSuffix(scope, scopeSuffix) {
		return ""
	}

	rest := scope[len(scopePrefix):]

	dash := strings.IndexByte(rest, '-')
	if dash < 0 {
		return ""
	}

	return rest[:dash]
}

// NameLost marks sender as having exited, per the NameOwnerChanged(name, _,
// "") signal the dispatch shell subscribes to (spec.md §4.F). The entry is
// evicted immediately if no lookup is outstanding.
func (c *Cache) NameLost(sender string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[sender]
	if !ok {
		return
	}

	e.exited = true

	if len(e.waiters) == 0 {
		delete(c.entries, sender)
	}
}
