package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/natefinch/atomic"
)

// diskFormat is the on-disk schema for the single database file (spec.md
// §6): one map of documents and a permissions list per document. Apps/Uris
// are not persisted as separate indices — they are cheap to rebuild from
// Docs/Perms on load, and keeping only one authoritative source avoids the
// index ever drifting from the data it's derived from.
type diskFormat struct {
	Docs  map[string]diskDoc    `json:"docs"`
	Perms map[string][]diskPerm `json:"perms"`
}

type diskDoc struct {
	URI   string `json:"uri"`
	Title string `json:"title,omitempty"`
}

type diskPerm struct {
	AppID string `json:"app_id"`
	Bits  Bits   `json:"bits"`
}

// Load reads the database file at path and returns a Store with its
// persisted snapshot populated. A missing file is not an error — it means
// this is the first run — and yields an empty store.
func Load(path string) (*Store, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return New(), nil
		}

		return nil, fmt.Errorf("read database %s: %w", path, err)
	}

	var disk diskFormat
	if err := json.Unmarshal(raw, &disk); err != nil {
		return nil, fmt.Errorf("decode database %s: %w", path, err)
	}

	s := New()

	for id, d := range disk.Docs {
		s.persistedDocs[id] = Document{ID: id, URI: d.URI, Title: d.Title}
	}

	for docID, perms := range disk.Perms {
		for _, p := range perms {
			if s.persistedPerms[docID] == nil {
				s.persistedPerms[docID] = make(map[string]Permission)
			}

			permID, err := newPermissionID()
			if err != nil {
				return nil, err
			}

			s.persistedPerms[docID][p.AppID] = Permission{
				ID:         permID,
				DocumentID: docID,
				AppID:      p.AppID,
				Bits:       p.Bits,
			}
		}
	}

	return s, nil
}

// Save flattens the merged (staged over persisted) view into the disk
// schema and writes it atomically (temp file + rename, via
// github.com/natefinch/atomic — the same library the teacher uses for its
// ticket/cache writes). On success the in-memory staging overlay becomes the
// new persisted snapshot and dirty is cleared.
func (s *Store) Save(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	docs, perms := s.snapshotLocked()

	disk := diskFormat{
		Docs:  make(map[string]diskDoc, len(docs)),
		Perms: make(map[string][]diskPerm, len(perms)),
	}

	for id, d := range docs {
		disk.Docs[id] = diskDoc{URI: d.URI, Title: d.Title}
	}

	for id, byApp := range perms {
		for app, row := range byApp {
			disk.Perms[id] = append(disk.Perms[id], diskPerm{AppID: app, Bits: row.Bits})
		}
	}

	raw, err := json.MarshalIndent(disk, "", "  ")
	if err != nil {
		return fmt.Errorf("encode database: %w", err)
	}

	if err := atomic.WriteFile(path, bytes.NewReader(raw)); err != nil {
		return fmt.Errorf("write database %s: %w", path, err)
	}

	s.persistedDocs = docs
	s.persistedPerms = perms
	s.stagingDocs = make(map[string]*Document)
	s.stagingPerms = make(map[string]map[string]*Permission)
	s.dirty = false

	return nil
}

// snapshotLocked flattens the staging overlay over the persisted snapshot
// into plain maps, dropping tombstones. Used both to build the disk
// encoding and, on success, to become the new persisted snapshot — so the
// just-written file and the in-memory state it replaces are always in sync.
func (s *Store) snapshotLocked() (map[string]Document, map[string]map[string]Permission) {
	ids := s.mergedDocIDsLocked()

	docs := make(map[string]Document, len(ids))
	perms := make(map[string]map[string]Permission, len(ids))

	for _, id := range ids {
		d, _ := s.lookupDocLocked(id)
		docs[id] = d

		apps := make(map[string]bool)
		for app := range s.persistedPerms[id] {
			apps[app] = true
		}

		for app := range s.stagingPerms[id] {
			apps[app] = true
		}

		for app := range apps {
			if row, ok := s.lookupPermRowLocked(id, app); ok {
				if perms[id] == nil {
					perms[id] = make(map[string]Permission)
				}

				perms[id][app] = row
			}
		}
	}

	return docs, perms
}
