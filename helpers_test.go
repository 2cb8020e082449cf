// Copyright 2022 Molecula Corp. (DBA FeatureBase).
// SPDX-License-Identifier: Apache-2.0
package pvdb_test

import (
	"fmt"
	"testing"

	"github.com/molecula/pvdb"
	"github.com/molecula/pvdb/logger"
	"github.com/molecula/pvdb/memdoc"
)

// mustBuildDocument returns a document with a "value" scalar plus a
// "grp" structure holding a "sub" structure holding leaf "leaf", and a
// sibling structure "other" holding scalar "x". Covers the shapes the
// propagation tests need.
func mustBuildDocument(t testing.TB) *memdoc.Document {
	t.Helper()
	b := memdoc.NewBuilder()
	b.Scalar("value", nil)
	g := b.Struct("grp")
	g.Struct("sub").Scalar("leaf", nil)
	b.Struct("other").Scalar("x", nil)
	doc, err := b.Build()
	if err != nil {
		t.Fatal(err)
	}
	return doc
}

func mustNewRecord(t testing.TB, name string, opts ...pvdb.RecordOption) (*pvdb.Record, *memdoc.Document) {
	t.Helper()
	doc := mustBuildDocument(t)
	opts = append([]pvdb.RecordOption{pvdb.OptRecordLogger(logger.NewLogfLogger(t))}, opts...)
	r, err := pvdb.NewRecord(name, doc, opts...)
	if err != nil {
		t.Fatal(err)
	}
	return r, doc
}

// eventListener records every notification it receives.
type eventListener struct {
	dataPuts []string // full names of changed nodes
	subPuts  []string // "ancestor<-field" full name pairs
	begins   int
	ends     int
}

func (l *eventListener) DataPut(field *pvdb.FieldNode) {
	l.dataPuts = append(l.dataPuts, field.FullName())
}

func (l *eventListener) SubFieldPut(structure *pvdb.StructureNode, field *pvdb.FieldNode) {
	l.subPuts = append(l.subPuts, fmt.Sprintf("%s<-%s", structure.FullName(), field.FullName()))
}

func (l *eventListener) BeginGroupPut(record *pvdb.Record) { l.begins++ }
func (l *eventListener) EndGroupPut(record *pvdb.Record)   { l.ends++ }

func (l *eventListener) events() int {
	return len(l.dataPuts) + len(l.subPuts) + l.begins + l.ends
}

// detachClient counts Detach calls.
type detachClient struct {
	detached int
	from     *pvdb.Record
}

func (c *detachClient) Detach(record *pvdb.Record) {
	c.detached++
	c.from = record
}

// captureRequester records delivered messages.
type captureRequester struct {
	name     string
	messages []string
	types    []pvdb.MessageType
}

func (r *captureRequester) RequesterName() string { return r.name }

func (r *captureRequester) Message(message string, messageType pvdb.MessageType) {
	r.messages = append(r.messages, message)
	r.types = append(r.types, messageType)
}
