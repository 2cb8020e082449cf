// Copyright 2022 Molecula Corp. (DBA FeatureBase).
// SPDX-License-Identifier: Apache-2.0
package pvdb

import (
	"github.com/benbjohnson/immutable"
)

// Separators used when building a node's cached names: field names along
// the path from the root are joined with fieldSeparator, and the record
// name is prepended with recordSeparator. A leaf "val" under structure
// "grp" in record "rec1" is therefore "rec1.grp,val".
const (
	fieldSeparator  = ","
	recordSeparator = "."
)

// FieldNode mirrors one value position in a record's document. Nodes are
// built once, when the record is constructed, and the tree shape never
// changes afterwards; full names are computed at attachment and cached.
//
// All node operations require the owning record's lock to be held.
type FieldNode struct {
	rec    *Record
	index  int // this node's slot in the record's arena
	parent int // parent's slot, -1 at the root

	// structure points at the StructureNode wrapping this position, or
	// nil when this position is a leaf. For a StructureNode it is the
	// node itself.
	structure *StructureNode

	value Value

	fullFieldName string
	fullName      string

	// listeners is a persistent list: add and remove produce a new list,
	// so a dispatch pass iterating an earlier snapshot is unaffected by
	// mutation from inside a callback.
	listeners *immutable.List[Listener]
}

// StructureNode is a FieldNode that mirrors a substructure: it
// additionally carries the ordered child set, fixed at construction.
type StructureNode struct {
	FieldNode
	children []int // child slots in the record's arena
}

// Record returns the record this node belongs to.
func (f *FieldNode) Record() *Record { return f.rec }

// Parent returns the parent structure node, or nil at the root.
func (f *FieldNode) Parent() *StructureNode {
	if f.parent < 0 {
		return nil
	}
	return f.rec.nodes[f.parent].structure
}

// Value returns the document value this node mirrors.
func (f *FieldNode) Value() Value { return f.value }

// Structure returns the StructureNode for this position, or nil when the
// position is a leaf.
func (f *FieldNode) Structure() *StructureNode { return f.structure }

// FullFieldName returns the path of field names from the root, joined
// with ",". It is empty at the root.
func (f *FieldNode) FullFieldName() string { return f.fullFieldName }

// FullName returns the record name plus the full field name, e.g.
// "rec1.grp,val". At the root it is the record name alone.
func (f *FieldNode) FullName() string { return f.fullName }

// AddListener registers listener on this node. Registration is by
// identity; adding a listener that is already registered here returns
// false. Returns false on a destroyed record.
func (f *FieldNode) AddListener(listener Listener) bool {
	if listener == nil || f.rec.Destroyed() {
		return false
	}
	if listenerAt(f.listeners, listener) >= 0 {
		return false
	}
	f.listeners = f.listeners.Append(listener)
	return true
}

// RemoveListener removes listener from this node and, when this node is
// a structure, from every descendant node as well, regardless of which
// nodes the listener was originally registered on. Returns true if the
// listener was registered anywhere in the subtree.
func (f *FieldNode) RemoveListener(listener Listener) bool {
	removed := f.removeLocal(listener)
	if f.structure != nil {
		for _, ci := range f.structure.children {
			if f.rec.nodes[ci].RemoveListener(listener) {
				removed = true
			}
		}
	}
	return removed
}

func (f *FieldNode) removeLocal(listener Listener) bool {
	i := listenerAt(f.listeners, listener)
	if i < 0 {
		return false
	}
	b := immutable.NewListBuilder[Listener]()
	for itr := f.listeners.Iterator(); !itr.Done(); {
		j, l := itr.Next()
		if j == i {
			continue
		}
		b.Append(l)
	}
	f.listeners = b.List()
	return true
}

func (f *FieldNode) clearListeners() {
	f.listeners = immutable.NewList[Listener]()
}

// PostPut is the document's write hook, invoked after a successful put
// to this node's value. The node's own listeners receive DataPut, then
// every ancestor structure's listeners receive SubFieldPut with this
// node as the originating field. Propagation walks strictly upward; it
// never visits siblings or other branches.
func (f *FieldNode) PostPut() {
	r := f.rec
	if r.Destroyed() {
		return
	}
	r.stats.Count("puts", 1, 1.0)

	ls := f.listeners
	for itr := ls.Iterator(); !itr.Done(); {
		_, l := itr.Next()
		l.DataPut(f)
	}
	for p := f.Parent(); p != nil; p = p.Parent() {
		pls := p.listeners
		for itr := pls.Iterator(); !itr.Done(); {
			_, l := itr.Next()
			l.SubFieldPut(p, f)
		}
	}
}

// Message reports a field scoped diagnostic: the node's full name is
// prefixed before forwarding to the record's requesters.
func (f *FieldNode) Message(message string, messageType MessageType) {
	f.rec.Message(f.fullName+" "+message, messageType)
}

// Children returns the child nodes in document order.
func (s *StructureNode) Children() []*FieldNode {
	out := make([]*FieldNode, len(s.children))
	for i, ci := range s.children {
		out[i] = s.rec.nodes[ci]
	}
	return out
}

// listenerAt returns the position of listener in list, or -1. Listeners
// are compared by identity.
func listenerAt(list *immutable.List[Listener], listener Listener) int {
	for itr := list.Iterator(); !itr.Done(); {
		i, l := itr.Next()
		if l == listener {
			return i
		}
	}
	return -1
}
