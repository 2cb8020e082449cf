// Copyright 2022 Molecula Corp. (DBA FeatureBase).
// SPDX-License-Identifier: Apache-2.0
package prometheus

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/molecula/pvdb"
	"github.com/molecula/pvdb/logger"
	prom "github.com/prometheus/client_golang/prometheus"
)

// namespace is prepended to each metric name.
const namespace = "pvdb"

// Ensure client implements interface.
var _ pvdb.StatsClient = &statsClient{}

// statsClient is a prometheus implementation of pvdb.StatsClient. Tags
// of the form "key:value" become constant labels on the metrics the
// client creates. Clients derived via WithTags share one registry and
// one metric cache.
type statsClient struct {
	state *clientState
	tags  []string
}

// clientState is the registry and metric cache shared by a client and
// everything derived from it via WithTags.
type clientState struct {
	mu         sync.Mutex
	registry   *prom.Registry
	counters   map[string]prom.Counter
	gauges     map[string]prom.Gauge
	histograms map[string]prom.Histogram
	logger     logger.Logger
}

// NewStatsClient returns a new instance of statsClient backed by its own
// registry.
func NewStatsClient(l logger.Logger) *statsClient {
	if l == nil {
		l = logger.NopLogger
	}
	return &statsClient{
		state: &clientState{
			registry:   prom.NewRegistry(),
			counters:   make(map[string]prom.Counter),
			gauges:     make(map[string]prom.Gauge),
			histograms: make(map[string]prom.Histogram),
			logger:     l,
		},
	}
}

// Registry exposes the underlying registry so callers can gather or
// serve the metrics however they like.
func (c *statsClient) Registry() *prom.Registry { return c.state.registry }

// Open no-op.
func (c *statsClient) Open() {}

// Close no-op; the registry has no resources to release.
func (c *statsClient) Close() error { return nil }

// Tags returns a sorted list of tags on the client.
func (c *statsClient) Tags() []string {
	return c.tags
}

// WithTags returns a new client with additional tags appended.
func (c *statsClient) WithTags(tags ...string) pvdb.StatsClient {
	return &statsClient{
		state: c.state,
		tags:  unionStringSlice(c.tags, tags),
	}
}

// Count tracks the number of times something occurs.
func (c *statsClient) Count(name string, value int64, rate float64) {
	s := c.state
	s.mu.Lock()
	ctr, ok := s.counters[c.key(name)]
	if !ok {
		ctr = prom.NewCounter(prom.CounterOpts{
			Namespace:   namespace,
			Name:        sanitize(name),
			ConstLabels: c.labels(),
		})
		if err := s.registry.Register(ctr); err != nil {
			s.mu.Unlock()
			s.logger.Debugf("prometheus: registering counter %s: %s", name, err)
			return
		}
		s.counters[c.key(name)] = ctr
	}
	s.mu.Unlock()
	ctr.Add(float64(value))
}

// Gauge sets the value of a metric.
func (c *statsClient) Gauge(name string, value float64, rate float64) {
	s := c.state
	s.mu.Lock()
	g, ok := s.gauges[c.key(name)]
	if !ok {
		g = prom.NewGauge(prom.GaugeOpts{
			Namespace:   namespace,
			Name:        sanitize(name),
			ConstLabels: c.labels(),
		})
		if err := s.registry.Register(g); err != nil {
			s.mu.Unlock()
			s.logger.Debugf("prometheus: registering gauge %s: %s", name, err)
			return
		}
		s.gauges[c.key(name)] = g
	}
	s.mu.Unlock()
	g.Set(value)
}

// Timing tracks timing information for a metric as a histogram of
// seconds.
func (c *statsClient) Timing(name string, value time.Duration, rate float64) {
	s := c.state
	s.mu.Lock()
	h, ok := s.histograms[c.key(name)]
	if !ok {
		h = prom.NewHistogram(prom.HistogramOpts{
			Namespace:   namespace,
			Name:        sanitize(name),
			ConstLabels: c.labels(),
			Buckets:     prom.DefBuckets,
		})
		if err := s.registry.Register(h); err != nil {
			s.mu.Unlock()
			s.logger.Debugf("prometheus: registering histogram %s: %s", name, err)
			return
		}
		s.histograms[c.key(name)] = h
	}
	s.mu.Unlock()
	h.Observe(value.Seconds())
}

// key distinguishes the same metric name under different tag sets.
func (c *statsClient) key(name string) string {
	if len(c.tags) == 0 {
		return name
	}
	return name + "|" + strings.Join(c.tags, ",")
}

// labels converts "key:value" tags into constant labels. A tag without a
// colon becomes a label with an empty value.
func (c *statsClient) labels() prom.Labels {
	if len(c.tags) == 0 {
		return nil
	}
	labels := make(prom.Labels, len(c.tags))
	for _, tag := range c.tags {
		k, v := tag, ""
		if i := strings.Index(tag, ":"); i >= 0 {
			k, v = tag[:i], tag[i+1:]
		}
		labels[sanitize(k)] = v
	}
	return labels
}

// sanitize rewrites a stat name into a legal prometheus metric name.
func sanitize(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			return r
		default:
			return '_'
		}
	}, name)
}

// unionStringSlice returns a sorted set of tags which combine a & b.
func unionStringSlice(a, b []string) []string {
	m := make(map[string]struct{})
	for _, v := range a {
		m[v] = struct{}{}
	}
	for _, v := range b {
		m[v] = struct{}{}
	}
	other := make([]string, 0, len(m))
	for v := range m {
		other = append(other, v)
	}
	sort.Strings(other)
	return other
}
