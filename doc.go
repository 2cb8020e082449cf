// Copyright 2022 Molecula Corp. (DBA FeatureBase).
// SPDX-License-Identifier: Apache-2.0

// Package pvdb implements an in-process database of process variable
// records: named, lockable units that mirror a structured document and
// deliver fine-grained change notifications to listeners.
//
// A Record owns a tree of FieldNode/StructureNode values built once from
// its document. Writers lock the record, mutate values through the
// document, and the document's put hooks drive notification from the
// changed leaf up through every ancestor to the root. Groups of puts can
// be bracketed so listeners see one begin/end pair per logical
// transaction. Records holding one lock may take exactly one more via
// LockOtherRecord, which avoids deadlock by falling back to a canonical
// acquisition order.
//
// The document itself (value storage, typing, get/put) is a collaborator
// behind the Document interface; package memdoc provides a minimal
// in-memory implementation.
package pvdb
