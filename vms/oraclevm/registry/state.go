// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package registry

import (
	"encoding/json"
	"fmt"

	"github.com/luxfi/database"
	"github.com/luxfi/database/prefixdb"
)

var (
	oraclePrefix    = []byte("oracle")
	blacklistPrefix = []byte("blacklist")
	whitelistPrefix = []byte("whitelist")
)

// state persists entries and access lists. Entries are stored as JSON keyed
// by oracle id, access lists as id -> note.
type state struct {
	oracles   database.Database
	blacklist database.Database
	whitelist database.Database
}

func newState(db database.Database) *state {
	return &state{
		oracles:   prefixdb.New(oraclePrefix, db),
		blacklist: prefixdb.New(blacklistPrefix, db),
		whitelist: prefixdb.New(whitelistPrefix, db),
	}
}

func (s *state) putEntry(e *Entry) error {
	b, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to marshal oracle %q: %w", e.ID, err)
	}
	return s.oracles.Put([]byte(e.ID), b)
}

// putEntries writes all entries in a single batch.
func (s *state) putEntries(entries []*Entry) error {
	if len(entries) == 0 {
		return nil
	}
	batch := s.oracles.NewBatch()
	for _, e := range entries {
		b, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("failed to marshal oracle %q: %w", e.ID, err)
		}
		if err := batch.Put([]byte(e.ID), b); err != nil {
			return err
		}
	}
	return batch.Write()
}

func (s *state) loadEntries() (map[string]*Entry, error) {
	entries := make(map[string]*Entry)

	it := s.oracles.NewIterator()
	defer it.Release()

	for it.Next() {
		e := &Entry{}
		if err := json.Unmarshal(it.Value(), e); err != nil {
			return nil, fmt.Errorf("failed to unmarshal oracle %q: %w", it.Key(), err)
		}
		entries[e.ID] = e
	}
	return entries, it.Error()
}

func (s *state) putAccess(db database.Database, id, note string) error {
	return db.Put([]byte(id), []byte(note))
}

func (s *state) deleteAccess(db database.Database, id string) error {
	return db.Delete([]byte(id))
}

func (s *state) loadAccess(db database.Database) (map[string]string, error) {
	notes := make(map[string]string)

	it := db.NewIterator()
	defer it.Release()

	for it.Next() {
		notes[string(it.Key())] = string(it.Value())
	}
	return notes, it.Error()
}
