// Copyright 2022 Molecula Corp. (DBA FeatureBase).
// SPDX-License-Identifier: Apache-2.0

// Package memdoc is a minimal in-memory implementation of the document
// collaborator consumed by pvdb. Values hold untyped data; there is no
// schema language and no wire format. Its job is to give records a real
// document whose puts drive the change notification hooks.
//
// A document's shape is fixed at Build time. Access to values follows
// the record locking contract: callers hold the owning record's lock
// around Get/Put, which is also what makes the post handler dispatch
// safe.
package memdoc

import (
	"strings"

	"github.com/molecula/pvdb"
	"github.com/pkg/errors"
)

// pathSeparator splits the field names in a lookup path; it matches the
// separator pvdb uses when caching full field names.
const pathSeparator = ","

// Scalar is a leaf value holding arbitrary data.
type Scalar struct {
	name string
	data interface{}
	post pvdb.PostHandler
}

// Name returns the field name.
func (s *Scalar) Name() string { return s.name }

// SetPostHandler registers the put hook.
func (s *Scalar) SetPostHandler(h pvdb.PostHandler) { s.post = h }

// Get returns the held data.
func (s *Scalar) Get() interface{} { return s.data }

// Put stores data and then invokes the post handler. Caller must hold
// the owning record's lock.
func (s *Scalar) Put(data interface{}) {
	s.data = data
	if s.post != nil {
		s.post.PostPut()
	}
}

// Struct is a value with ordered children, fixed at construction.
type Struct struct {
	name   string
	fields []pvdb.Value
	post   pvdb.PostHandler
}

// Name returns the field name; it is empty at a document root.
func (s *Struct) Name() string { return s.name }

// SetPostHandler registers the put hook.
func (s *Struct) SetPostHandler(h pvdb.PostHandler) { s.post = h }

// Fields returns the immediate children in construction order.
func (s *Struct) Fields() []pvdb.Value { return s.fields }

// Field returns the immediate child with the given name, or nil.
func (s *Struct) Field(name string) pvdb.Value {
	for _, f := range s.fields {
		if f.Name() == name {
			return f
		}
	}
	return nil
}

// Document is an in-memory structured document.
type Document struct {
	root *Struct
}

// Root returns the top level structure.
func (d *Document) Root() pvdb.StructValue { return d.root }

// Lookup resolves a comma separated path ("grp,val") to a value. The
// empty path resolves to the root. Returns nil on a miss.
func (d *Document) Lookup(path string) pvdb.Value {
	if path == "" {
		return d.root
	}
	var v pvdb.Value = d.root
	for _, name := range strings.Split(path, pathSeparator) {
		s, ok := v.(*Struct)
		if !ok {
			return nil
		}
		if v = s.Field(name); v == nil {
			return nil
		}
	}
	return v
}

// ScalarAt resolves path to a scalar. Returns nil when the path misses
// or names a structure.
func (d *Document) ScalarAt(path string) *Scalar {
	s, _ := d.Lookup(path).(*Scalar)
	return s
}

// Builder assembles a document. Scalar is chainable; Struct returns the
// nested structure's builder.
type Builder struct {
	name    string
	entries []builderEntry
}

type builderEntry struct {
	name string
	sub  *Builder    // non-nil for a structure
	data interface{} // initial scalar data
}

// NewBuilder returns an empty document builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// Scalar adds a leaf field holding data. Returns the same builder for
// chaining.
func (b *Builder) Scalar(name string, data interface{}) *Builder {
	b.entries = append(b.entries, builderEntry{name: name, data: data})
	return b
}

// Struct adds a nested structure and returns its builder.
func (b *Builder) Struct(name string) *Builder {
	sub := &Builder{name: name}
	b.entries = append(b.entries, builderEntry{name: name, sub: sub})
	return sub
}

// Build constructs the document. It fails on an empty or duplicate field
// name anywhere in the tree.
func (b *Builder) Build() (*Document, error) {
	root, err := b.build()
	if err != nil {
		return nil, err
	}
	return &Document{root: root}, nil
}

func (b *Builder) build() (*Struct, error) {
	s := &Struct{name: b.name}
	seen := make(map[string]struct{}, len(b.entries))
	for _, e := range b.entries {
		if e.name == "" {
			return nil, errors.New("field name required")
		}
		if _, ok := seen[e.name]; ok {
			return nil, errors.Errorf("duplicate field name %q", e.name)
		}
		seen[e.name] = struct{}{}

		if e.sub != nil {
			child, err := e.sub.build()
			if err != nil {
				return nil, errors.Wrapf(err, "building %q", e.name)
			}
			s.fields = append(s.fields, child)
			continue
		}
		s.fields = append(s.fields, &Scalar{name: e.name, data: e.data})
	}
	return s, nil
}

// FromPaths builds a document out of comma separated leaf paths, e.g.
// ["value", "grp,val"] yields a root with scalar "value" and structure
// "grp" containing scalar "val". Intermediate structures are created on
// first use; a path may not name both a structure and a scalar.
func FromPaths(paths []string) (*Document, error) {
	root := NewBuilder()
	subs := map[string]*Builder{"": root}
	for _, path := range paths {
		if path == "" {
			return nil, errors.New("empty path")
		}
		names := strings.Split(path, pathSeparator)
		prefix := ""
		b := root
		for _, name := range names[:len(names)-1] {
			if prefix == "" {
				prefix = name
			} else {
				prefix = prefix + pathSeparator + name
			}
			sub, ok := subs[prefix]
			if !ok {
				sub = b.Struct(name)
				subs[prefix] = sub
			}
			b = sub
		}
		b.Scalar(names[len(names)-1], nil)
	}
	return root.Build()
}
