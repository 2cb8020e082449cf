// Copyright 2022 Molecula Corp. (DBA FeatureBase).
// SPDX-License-Identifier: Apache-2.0
package pvdb

// PostHandler is invoked by a document after every successful put to one
// of its values. Each record node registers itself as the post handler
// of the value it mirrors, which is how document writes drive change
// notification.
type PostHandler interface {
	PostPut()
}

// Value is one value holder inside a record's document. The core never
// reads or types the data held by a value; it only needs the field name,
// identity comparison (implementations are pointers, compared with ==),
// and somewhere to hang the write hook.
type Value interface {
	// Name returns the field name of this value within its parent.
	Name() string

	// SetPostHandler registers the handler to be invoked after every
	// successful put to this value. A document supports exactly one
	// handler per value; a later call replaces the earlier handler.
	SetPostHandler(h PostHandler)
}

// StructValue is a value with ordered children. The child set and order
// are fixed when the document is constructed.
type StructValue interface {
	Value

	// Fields returns the immediate children in construction order.
	Fields() []Value
}

// Document is the structured value store a record mirrors. Storage,
// typing, and the get/put surface belong to the document implementation;
// the core only walks the structure and receives post handler calls.
type Document interface {
	// Root returns the top level structure.
	Root() StructValue
}
