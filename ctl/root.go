// Copyright 2022 Molecula Corp. (DBA FeatureBase).
// SPDX-License-Identifier: Apache-2.0
package ctl

import (
	"io"

	"github.com/spf13/cobra"
)

// NewRootCommand builds the pvdb command tree.
func NewRootCommand(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	rc := &cobra.Command{
		Use:   "pvdb",
		Short: "pvdb is an in-process database of structured process variables.",
		Long: `pvdb holds named records of structured values, serializes access with
per-record locks, and delivers fine-grained change notifications to
listeners. This binary runs a demonstration database from a TOML
definition.`,
		SilenceUsage: true,
	}
	rc.AddCommand(newRunCommand(stdin, stdout, stderr))
	rc.SetOut(stdout)
	rc.SetErr(stderr)
	return rc
}
