// Copyright 2022 Molecula Corp. (DBA FeatureBase).
// SPDX-License-Identifier: Apache-2.0
package toml_test

import (
	"testing"
	"time"

	"github.com/molecula/pvdb/toml"
)

func TestDuration(t *testing.T) {
	var d toml.Duration
	if err := d.UnmarshalText([]byte("1m30s")); err != nil {
		t.Fatal(err)
	}
	if time.Duration(d) != 90*time.Second {
		t.Fatalf("unexpected duration: %s", d)
	}

	text, err := d.MarshalText()
	if err != nil {
		t.Fatal(err)
	}
	if string(text) != "1m30s" {
		t.Fatalf("unexpected text: %s", text)
	}

	if err := d.UnmarshalText([]byte("bogus")); err == nil {
		t.Fatal("expected error")
	}
}
