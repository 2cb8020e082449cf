// Copyright 2022 Molecula Corp. (DBA FeatureBase).
// SPDX-License-Identifier: Apache-2.0
package pvdb

import (
	"sort"
	"sync"

	"github.com/molecula/pvdb/logger"
)

// DB is a registry of records by name. Records are created and destroyed
// independently of any DB; the DB only resolves names, rejects
// collisions, and tears down whatever it still holds at Close.
type DB struct {
	mu      sync.RWMutex
	records map[string]*Record

	logger logger.Logger
	stats  StatsClient
}

// DBOption is a functional option type for NewDB.
type DBOption func(db *DB)

// OptDBLogger sets the database logger.
func OptDBLogger(l logger.Logger) DBOption {
	return func(db *DB) {
		db.logger = l
	}
}

// OptDBStats sets the database stats client.
func OptDBStats(s StatsClient) DBOption {
	return func(db *DB) {
		db.stats = s
	}
}

// NewDB returns a new, empty database.
func NewDB(opts ...DBOption) *DB {
	db := &DB{
		records: make(map[string]*Record),
		logger:  logger.NopLogger,
		stats:   NopStatsClient,
	}
	for _, opt := range opts {
		opt(db)
	}
	return db
}

// FindRecord returns the record registered under name, or nil.
func (db *DB) FindRecord(name string) *Record {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.records[name]
}

// AddRecord registers record under its name. It returns false on a name
// collision or when the record is already destroyed; the registry is
// unchanged in either case.
func (db *DB) AddRecord(record *Record) bool {
	if record == nil || record.Destroyed() {
		return false
	}
	db.mu.Lock()
	defer db.mu.Unlock()
	if _, ok := db.records[record.Name()]; ok {
		return false
	}
	db.records[record.Name()] = record
	db.stats.Count("recordsAdded", 1, 1.0)
	db.logger.Debugf("added record %s", record.Name())
	return true
}

// RemoveRecord drops record from the registry. It returns false if the
// record is not the one registered under its name. The record itself is
// not destroyed.
func (db *DB) RemoveRecord(record *Record) bool {
	if record == nil {
		return false
	}
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.records[record.Name()] != record {
		return false
	}
	delete(db.records, record.Name())
	db.stats.Count("recordsRemoved", 1, 1.0)
	return true
}

// RecordNames returns the registered names, sorted.
func (db *DB) RecordNames() []string {
	db.mu.RLock()
	defer db.mu.RUnlock()
	names := make([]string, 0, len(db.records))
	for name := range db.records {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Close destroys every record still registered and empties the registry.
func (db *DB) Close() {
	db.mu.Lock()
	records := db.records
	db.records = make(map[string]*Record)
	db.mu.Unlock()

	for _, r := range records {
		r.Destroy()
	}
}

// RequesterName makes the DB usable as a Requester.
func (db *DB) RequesterName() string { return "pvdb" }

// Message logs a diagnostic routed to the database.
func (db *DB) Message(message string, messageType MessageType) {
	switch messageType {
	case WarningMessage:
		db.logger.Warnf("%s", message)
	case ErrorMessage, FatalMessage:
		db.logger.Errorf("%s", message)
	default:
		db.logger.Infof("%s", message)
	}
}

// master holds the process-wide database. It is explicit state behind an
// accessor rather than an implicit global: created once on first use,
// torn down deterministically by CloseMaster.
var master struct {
	mu sync.Mutex
	db *DB
}

// Master returns the process-wide master database, creating it on first
// use.
func Master() *DB {
	master.mu.Lock()
	defer master.mu.Unlock()
	if master.db == nil {
		master.db = NewDB()
	}
	return master.db
}

// CloseMaster closes the master database, destroying every record it
// still holds. A later Master call builds a fresh instance.
func CloseMaster() {
	master.mu.Lock()
	db := master.db
	master.db = nil
	master.mu.Unlock()
	if db != nil {
		db.Close()
	}
}
