// Copyright 2022 Molecula Corp. (DBA FeatureBase).
// SPDX-License-Identifier: Apache-2.0
package ctl

import (
	"context"
	"io"
	"io/ioutil"
	"os"
	"os/signal"
	"time"

	"github.com/google/uuid"
	gotoml "github.com/pelletier/go-toml"
	"github.com/pkg/errors"
	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/molecula/pvdb"
	"github.com/molecula/pvdb/logger"
	"github.com/molecula/pvdb/memdoc"
	"github.com/molecula/pvdb/prometheus"
	"github.com/molecula/pvdb/toml"
)

// Config defines the demo database: which records to create and how
// often to process them.
type Config struct {
	// ProcessInterval is the delay between processing passes over all
	// records.
	ProcessInterval toml.Duration `toml:"process-interval"`

	Records []RecordConfig `toml:"record"`
}

// RecordConfig describes one record. Fields are comma separated leaf
// paths; intermediate structures are created as needed. Every record
// gets a "count" scalar that its processing action increments.
type RecordConfig struct {
	Name   string   `toml:"name"`
	Fields []string `toml:"fields"`
}

func defaultConfig() *Config {
	return &Config{
		ProcessInterval: toml.Duration(time.Second),
		Records: []RecordConfig{
			{Name: "demo01", Fields: []string{"count", "grp,val"}},
		},
	}
}

type runCommand struct {
	configPath string
	verbose    bool

	stdout io.Writer
	stderr io.Writer
}

func newRunCommand(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	run := &runCommand{stdout: stdout, stderr: stderr}
	c := &cobra.Command{
		Use:   "run",
		Short: "Run the demo database until interrupted.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run.run(cmd.Context())
		},
	}
	registerFlags(c.Flags(), run)
	return c
}

func registerFlags(flags *pflag.FlagSet, run *runCommand) {
	flags.StringVarP(&run.configPath, "config", "c", "", "TOML database definition to load.")
	flags.BoolVarP(&run.verbose, "verbose", "v", false, "Enable debug logging.")
}

func (rc *runCommand) loadConfig() (*Config, error) {
	cfg := defaultConfig()
	if rc.configPath == "" {
		return cfg, nil
	}
	data, err := ioutil.ReadFile(rc.configPath)
	if err != nil {
		return nil, errors.Wrap(err, "reading config")
	}
	cfg.Records = nil
	if err := gotoml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrap(err, "parsing config")
	}
	if time.Duration(cfg.ProcessInterval) <= 0 {
		return nil, errors.New("process-interval must be positive")
	}
	return cfg, nil
}

func (rc *runCommand) run(ctx context.Context) error {
	cfg, err := rc.loadConfig()
	if err != nil {
		return err
	}

	log := logger.NewStandardLogger(rc.stderr)
	if rc.verbose {
		log = logger.NewVerboseLogger(rc.stderr)
	}

	runID := uuid.New().String()
	stats := prometheus.NewStatsClient(log).WithTags("run:" + runID)

	db := pvdb.NewDB(pvdb.OptDBLogger(log), pvdb.OptDBStats(stats))
	defer db.Close()

	var records []*pvdb.Record
	for _, recCfg := range cfg.Records {
		r, err := buildRecord(recCfg, log, stats)
		if err != nil {
			return errors.Wrapf(err, "building record %s", recCfg.Name)
		}
		if !db.AddRecord(r) {
			r.Destroy()
			return errors.Errorf("record name collision: %s", recCfg.Name)
		}
		records = append(records, r)
	}
	log.Infof("pvdb run %s: %d record(s), processing every %s",
		runID, len(records), cfg.ProcessInterval)

	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt)
	defer cancel()

	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		ticker := time.NewTicker(time.Duration(cfg.ProcessInterval))
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				for _, r := range records {
					r.Lock()
					r.Process()
					r.Unlock()
				}
			}
		}
	})
	if err := eg.Wait(); err != nil {
		return err
	}

	rc.report(stats, log)
	return nil
}

// report dumps the collected metrics on shutdown.
func (rc *runCommand) report(stats pvdb.StatsClient, log logger.Logger) {
	client, ok := stats.(interface {
		Registry() *prom.Registry
	})
	if !ok {
		return
	}
	families, err := client.Registry().Gather()
	if err != nil {
		log.Errorf("gathering metrics: %s", err)
		return
	}
	for _, fam := range families {
		for _, m := range fam.GetMetric() {
			if c := m.GetCounter(); c != nil {
				log.Infof("%s = %v", fam.GetName(), c.GetValue())
			}
		}
	}
}

// buildRecord assembles one record: a document from the configured field
// paths plus the "count" scalar driven by the processing behavior, and a
// listener that traces change notifications at debug level.
func buildRecord(cfg RecordConfig, log logger.Logger, stats pvdb.StatsClient) (*pvdb.Record, error) {
	if cfg.Name == "" {
		return nil, errors.New("record name required")
	}
	paths := cfg.Fields
	if !containsPath(paths, "count") {
		paths = append([]string{"count"}, paths...)
	}
	doc, err := memdoc.FromPaths(paths)
	if err != nil {
		return nil, errors.Wrap(err, "building document")
	}

	r, err := pvdb.NewRecord(cfg.Name, doc,
		pvdb.OptRecordLogger(log),
		pvdb.OptRecordStats(stats.WithTags("record:"+cfg.Name)),
		pvdb.OptRecordBehavior(&countBehavior{doc: doc}),
	)
	if err != nil {
		return nil, err
	}

	r.Lock()
	r.Structure().AddListener(&traceListener{log: log})
	r.Unlock()
	return r, nil
}

func containsPath(paths []string, path string) bool {
	for _, p := range paths {
		if p == path {
			return true
		}
	}
	return false
}

// countBehavior increments the record's "count" scalar on every
// processing pass, bracketed as one group put.
type countBehavior struct {
	doc   *memdoc.Document
	count *memdoc.Scalar
}

func (b *countBehavior) Init(r *pvdb.Record) error {
	b.count = b.doc.ScalarAt("count")
	if b.count == nil {
		return errors.New(`required field "count" missing`)
	}
	b.count.Put(int64(0))
	return nil
}

func (b *countBehavior) Process(r *pvdb.Record) {
	n, _ := b.count.Get().(int64)
	r.BeginGroupPut()
	b.count.Put(n + 1)
	r.EndGroupPut()
}

// traceListener logs every notification it receives.
type traceListener struct {
	log logger.Logger
}

func (l *traceListener) DataPut(field *pvdb.FieldNode) {
	l.log.Debugf("dataPut %s", field.FullName())
}

func (l *traceListener) SubFieldPut(structure *pvdb.StructureNode, field *pvdb.FieldNode) {
	l.log.Debugf("subFieldPut %s <- %s", structure.FullName(), field.FullName())
}

func (l *traceListener) BeginGroupPut(record *pvdb.Record) {
	l.log.Debugf("beginGroupPut %s", record.Name())
}

func (l *traceListener) EndGroupPut(record *pvdb.Record) {
	l.log.Debugf("endGroupPut %s", record.Name())
}
