// Copyright 2022 Molecula Corp. (DBA FeatureBase).
// SPDX-License-Identifier: Apache-2.0
package pvdb_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/molecula/pvdb"
)

func TestDB_AddFindRemove(t *testing.T) {
	db := pvdb.NewDB()

	r1, _ := mustNewRecord(t, "rec1")
	r2, _ := mustNewRecord(t, "rec2")

	if !db.AddRecord(r1) {
		t.Fatal("expected add")
	}
	if !db.AddRecord(r2) {
		t.Fatal("expected add")
	}

	// Name collision leaves the registry unchanged.
	dup, _ := mustNewRecord(t, "rec1")
	if db.AddRecord(dup) {
		t.Fatal("name collision must fail")
	}
	if got := db.FindRecord("rec1"); got != r1 {
		t.Fatal("collision must not replace the registered record")
	}

	if got := db.FindRecord("nope"); got != nil {
		t.Fatalf("unexpected record: %s", got.Name())
	}

	if diff := cmp.Diff([]string{"rec1", "rec2"}, db.RecordNames()); diff != "" {
		t.Fatalf("names mismatch (-want +got):\n%s", diff)
	}

	if !db.RemoveRecord(r1) {
		t.Fatal("expected remove")
	}
	if db.RemoveRecord(r1) {
		t.Fatal("second remove must fail")
	}
	// Removing a record that is not the registered one fails even when
	// the name matches.
	if db.RemoveRecord(dup) {
		t.Fatal("unregistered record must not remove")
	}
	assert.Nil(t, db.FindRecord("rec1"))
}

func TestDB_AddDestroyedRecord(t *testing.T) {
	db := pvdb.NewDB()
	r, _ := mustNewRecord(t, "rec1")
	r.Destroy()
	if db.AddRecord(r) {
		t.Fatal("destroyed record must not register")
	}
	if db.AddRecord(nil) {
		t.Fatal("nil record must not register")
	}
}

func TestDB_Close(t *testing.T) {
	db := pvdb.NewDB()
	r1, _ := mustNewRecord(t, "rec1")
	r2, _ := mustNewRecord(t, "rec2")
	client := &detachClient{}

	r1.Lock()
	r1.AddClient(client)
	r1.Unlock()

	require.True(t, db.AddRecord(r1))
	require.True(t, db.AddRecord(r2))

	db.Close()

	assert.True(t, r1.Destroyed())
	assert.True(t, r2.Destroyed())
	assert.Equal(t, 1, client.detached)
	assert.Empty(t, db.RecordNames())
}

func TestMaster(t *testing.T) {
	defer pvdb.CloseMaster()

	db := pvdb.Master()
	if db == nil {
		t.Fatal("expected master database")
	}
	if pvdb.Master() != db {
		t.Fatal("master must be process-scoped")
	}

	r, _ := mustNewRecord(t, "master-rec")
	require.True(t, db.AddRecord(r))

	pvdb.CloseMaster()
	assert.True(t, r.Destroyed(), "closing master destroys its records")

	// A fresh master comes back empty.
	db2 := pvdb.Master()
	if db2 == db {
		t.Fatal("expected a fresh master after close")
	}
	assert.Empty(t, db2.RecordNames())
}
