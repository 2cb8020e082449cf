// Copyright 2022 Molecula Corp. (DBA FeatureBase).
// SPDX-License-Identifier: Apache-2.0
package pvdb

import (
	"sync"
	"sync/atomic"

	"github.com/molecula/pvdb/logger"
	"github.com/pkg/errors"
)

// recordSeq hands out creation sequence numbers. The sequence defines
// the canonical total order used by LockOtherRecord, so it must be
// unique for the life of the process.
var recordSeq uint64

// Behavior supplies record specific logic at construction: extra
// initialization run by the factory, and the action run by Process. It
// replaces what would otherwise be a subclass per record kind.
type Behavior interface {
	// Init runs after the node tree is built. Returning an error aborts
	// the factory, typically because a required subfield is absent.
	Init(r *Record) error

	// Process is the record's periodic action, run via Record.Process
	// with the record lock held.
	Process(r *Record)
}

// NopBehavior is the default Behavior: no extra initialization, Process
// does nothing.
var NopBehavior Behavior = nopBehavior{}

type nopBehavior struct{}

func (nopBehavior) Init(*Record) error { return nil }
func (nopBehavior) Process(*Record)    {}

// Record is a named, lockable unit owning one structured document plus
// the node tree mirroring it, its clients, and its requesters. All
// reads, writes, and notifications for a record happen with its lock
// held; listener callbacks run inline inside the locked region.
type Record struct {
	mu  sync.Mutex // the record lock
	seq uint64     // creation sequence, canonical cross-lock order

	name     string
	document Document

	// nodes is the record-owned arena holding every node of the tree in
	// construction order; nodes refer to each other by arena slot. The
	// root is always slot 0.
	nodes []*FieldNode
	root  *StructureNode

	requesters []Requester
	clients    []Client

	depthGroupPut int
	destroyed     uint32 // set once, read atomically

	behavior Behavior
	logger   logger.Logger
	stats    StatsClient
}

// RecordOption is a functional option type for NewRecord.
type RecordOption func(r *Record) error

// OptRecordLogger sets the logger used for fallback diagnostics.
func OptRecordLogger(l logger.Logger) RecordOption {
	return func(r *Record) error {
		r.logger = l
		return nil
	}
}

// OptRecordStats sets the stats client.
func OptRecordStats(s StatsClient) RecordOption {
	return func(r *Record) error {
		r.stats = s
		return nil
	}
}

// OptRecordBehavior sets the record's behavior.
func OptRecordBehavior(b Behavior) RecordOption {
	return func(r *Record) error {
		if b == nil {
			return errors.New("behavior is nil")
		}
		r.behavior = b
		return nil
	}
}

// NewRecord returns a new record named name mirroring document. The node
// tree is built once here; the document's schema must not change
// afterwards. Construction fails if the document has no root or the
// behavior's Init fails (e.g. a required subfield is absent); a failed
// record must never be added to a DB.
func NewRecord(name string, document Document, opts ...RecordOption) (*Record, error) {
	if name == "" {
		return nil, errors.New("record name required")
	}
	if document == nil {
		return nil, errors.Errorf("record %s: document is nil", name)
	}
	rootValue := document.Root()
	if rootValue == nil {
		return nil, errors.Errorf("record %s: document has no root structure", name)
	}

	r := &Record{
		seq:      atomic.AddUint64(&recordSeq, 1),
		name:     name,
		document: document,
		behavior: NopBehavior,
		logger:   logger.NopLogger,
		stats:    NopStatsClient,
	}
	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, errors.Wrap(err, "applying option")
		}
	}

	root := r.attach(rootValue, -1)
	r.root = root.structure

	if err := r.behavior.Init(r); err != nil {
		return nil, errors.Wrapf(err, "initializing record %s", name)
	}
	return r, nil
}

// attach adds the node for value (and, depth first, its children) to the
// arena and registers the node as the value's post handler.
func (r *Record) attach(value Value, parent int) *FieldNode {
	var f *FieldNode
	if sv, ok := value.(StructValue); ok {
		sn := &StructureNode{}
		f = &sn.FieldNode
		f.structure = sn
		r.initNode(f, value, parent)
		for _, child := range sv.Fields() {
			cf := r.attach(child, f.index)
			sn.children = append(sn.children, cf.index)
		}
	} else {
		f = &FieldNode{}
		r.initNode(f, value, parent)
	}
	return f
}

func (r *Record) initNode(f *FieldNode, value Value, parent int) {
	f.rec = r
	f.value = value
	f.parent = parent
	f.index = len(r.nodes)
	f.clearListeners()
	r.nodes = append(r.nodes, f)

	if parent < 0 {
		f.fullName = r.name
	} else {
		p := r.nodes[parent]
		if p.fullFieldName == "" {
			f.fullFieldName = value.Name()
		} else {
			f.fullFieldName = p.fullFieldName + fieldSeparator + value.Name()
		}
		f.fullName = r.name + recordSeparator + f.fullFieldName
	}
	value.SetPostHandler(f)
}

// Name returns the record name.
func (r *Record) Name() string { return r.name }

// Document returns the structured document, or nil once the record has
// been destroyed. Destroy clears the document under the record lock, so
// callers racing a Destroy must hold the lock to read it.
func (r *Record) Document() Document { return r.document }

// Structure returns the root structure node.
func (r *Record) Structure() *StructureNode { return r.root }

// Destroyed reports whether Destroy has completed its teardown.
func (r *Record) Destroyed() bool { return atomic.LoadUint32(&r.destroyed) != 0 }

// Lock acquires the record lock. Any code must lock while accessing a
// record.
func (r *Record) Lock() { r.mu.Lock() }

// Unlock releases the record lock.
func (r *Record) Unlock() { r.mu.Unlock() }

// TryLock acquires the record lock if it is free and reports whether it
// did. It never blocks.
func (r *Record) TryLock() bool { return r.mu.TryLock() }

// LockOtherRecord locks other while this record's lock is already held.
// The caller must hold this record's lock and no other record's lock:
// the system supports holding at most two record locks per goroutine.
//
// Two goroutines locking records A then B and B then A must not
// deadlock, so a plain blocking lock of other is not an option. The
// other lock is first tried without blocking; if that fails, this
// record's lock is released and both locks are re-acquired in ascending
// creation-sequence order, which gives every goroutine the same total
// order over the pair. On return both locks are held.
func (r *Record) LockOtherRecord(other *Record) {
	if other.mu.TryLock() {
		return
	}
	r.mu.Unlock()
	r.stats.Count("lockOrderedRetries", 1, 1.0)

	first, second := r, other
	if other.seq < r.seq {
		first, second = other, r
	}
	first.mu.Lock()
	second.mu.Lock()
}

// BeginGroupPut opens a group of puts. Only the outermost begin (depth
// 0 to 1) notifies listeners; nested groups are transparent. Caller must
// hold the record lock.
func (r *Record) BeginGroupPut() {
	if r.Destroyed() {
		r.usageError("beginGroupPut on destroyed record")
		return
	}
	r.depthGroupPut++
	if r.depthGroupPut != 1 {
		return
	}
	r.stats.Count("groupPuts", 1, 1.0)
	for _, l := range r.treeListeners() {
		l.BeginGroupPut(r)
	}
}

// EndGroupPut closes a group of puts. Only the outermost end (depth 1 to
// 0) notifies listeners. Calling EndGroupPut at depth 0 is a usage
// error: it is reported through the requester channel and delivers no
// events. Caller must hold the record lock.
func (r *Record) EndGroupPut() {
	if r.Destroyed() {
		r.usageError("endGroupPut on destroyed record")
		return
	}
	if r.depthGroupPut == 0 {
		r.usageError("endGroupPut without matching beginGroupPut")
		return
	}
	r.depthGroupPut--
	if r.depthGroupPut != 0 {
		return
	}
	for _, l := range r.treeListeners() {
		l.EndGroupPut(r)
	}
}

// treeListeners returns every listener currently registered anywhere on
// the node tree, deduplicated by identity, ordered by first appearance
// in the arena. Each distinct listener gets exactly one begin and one
// end per group regardless of how many nodes it is registered on.
func (r *Record) treeListeners() []Listener {
	var out []Listener
	for _, f := range r.nodes {
		for itr := f.listeners.Iterator(); !itr.Done(); {
			_, l := itr.Next()
			if listenerIn(out, l) {
				continue
			}
			out = append(out, l)
		}
	}
	return out
}

func listenerIn(listeners []Listener, listener Listener) bool {
	for _, l := range listeners {
		if l == listener {
			return true
		}
	}
	return false
}

// AddRequester registers requester to receive this record's diagnostic
// messages. Registration is by identity; a duplicate add returns false.
func (r *Record) AddRequester(requester Requester) bool {
	if requester == nil || r.Destroyed() {
		return false
	}
	for _, req := range r.requesters {
		if req == requester {
			return false
		}
	}
	r.requesters = append(r.requesters, requester)
	return true
}

// RemoveRequester removes requester. Returns false if it was not
// registered.
func (r *Record) RemoveRequester(requester Requester) bool {
	for i, req := range r.requesters {
		if req == requester {
			r.requesters = append(r.requesters[:i], r.requesters[i+1:]...)
			return true
		}
	}
	return false
}

// AddClient attaches client so it can be notified when the record is
// destroyed. Registration is by identity; a duplicate add returns false,
// as does an add on a destroyed record.
func (r *Record) AddClient(client Client) bool {
	if client == nil || r.Destroyed() {
		return false
	}
	for _, c := range r.clients {
		if c == client {
			return false
		}
	}
	r.clients = append(r.clients, client)
	return true
}

// RemoveClient removes client. Returns false if it was not attached.
func (r *Record) RemoveClient(client Client) bool {
	for i, c := range r.clients {
		if c == client {
			r.clients = append(r.clients[:i], r.clients[i+1:]...)
			return true
		}
	}
	return false
}

// DetachClients invokes every attached client's Detach callback exactly
// once and clears the list. Destroy calls this; it is exposed for
// implementations that need to shed clients without full teardown.
func (r *Record) DetachClients() {
	clients := r.clients
	r.clients = nil
	for _, c := range clients {
		c.Detach(r)
	}
}

// Message forwards a diagnostic message to every requester. With no
// requesters attached the message goes to the record's logger at a level
// matching the severity.
func (r *Record) Message(message string, messageType MessageType) {
	r.stats.Count("messages", 1, 1.0)
	if len(r.requesters) == 0 {
		switch messageType {
		case WarningMessage:
			r.logger.Warnf("%s: %s", r.name, message)
		case ErrorMessage, FatalMessage:
			r.logger.Errorf("%s: %s", r.name, message)
		default:
			r.logger.Infof("%s: %s", r.name, message)
		}
		return
	}
	// Snapshot so a requester removing itself mid-dispatch is safe.
	requesters := make([]Requester, len(r.requesters))
	copy(requesters, r.requesters)
	for _, req := range requesters {
		req.Message(message, messageType)
	}
}

// RequesterName makes the record a Requester itself; messages it
// forwards carry the record name.
func (r *Record) RequesterName() string { return r.name }

// usageError reports a caller contract violation. Usage errors are never
// fatal and never unwind across a held lock.
func (r *Record) usageError(message string) {
	r.Message(message, ErrorMessage)
}

// FindField returns the node wrapping value, or nil if value is not part
// of this record's document. Matching is by value identity.
func (r *Record) FindField(value Value) *FieldNode {
	if value == nil || r.Destroyed() {
		return nil
	}
	for _, f := range r.nodes {
		if f.value == value {
			return f
		}
	}
	return nil
}

// FindFieldByName returns the node whose full field name is
// fullFieldName ("" for the root), or nil.
func (r *Record) FindFieldByName(fullFieldName string) *FieldNode {
	if r.Destroyed() {
		return nil
	}
	for _, f := range r.nodes {
		if f.fullFieldName == fullFieldName {
			return f
		}
	}
	return nil
}

// Process runs the record's behavior action. Caller must hold the record
// lock. On a destroyed record it does nothing.
func (r *Record) Process() {
	if r.Destroyed() {
		return
	}
	r.behavior.Process(r)
}

// Destroy tears the record down: every client is detached exactly once,
// every node's listeners are cleared, the requester list is dropped, and
// the document reference is released. Destroy acquires the record lock
// and holds it for the entire teardown, so no goroutine observes a
// partially destroyed record. It is idempotent; public mutating
// operations on a destroyed record fail predictably.
func (r *Record) Destroy() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Destroyed() {
		return
	}
	atomic.StoreUint32(&r.destroyed, 1)
	r.DetachClients()
	for _, f := range r.nodes {
		f.clearListeners()
	}
	r.requesters = nil
	r.depthGroupPut = 0
	r.document = nil
	r.logger.Debugf("destroyed record %s", r.name)
}
