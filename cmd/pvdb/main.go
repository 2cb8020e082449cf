// Copyright 2022 Molecula Corp. (DBA FeatureBase).
// SPDX-License-Identifier: Apache-2.0
/*
This is the entrypoint for the pvdb demo binary. It builds a database of
records from a TOML definition, processes them periodically, and reports
what the records did on shutdown.
*/
package main

import (
	"fmt"
	"os"

	"github.com/molecula/pvdb/ctl"
)

func main() {
	rootCmd := ctl.NewRootCommand(os.Stdin, os.Stdout, os.Stderr)
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
