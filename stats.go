// Copyright 2022 Molecula Corp. (DBA FeatureBase).
// SPDX-License-Identifier: Apache-2.0
package pvdb

import (
	"expvar"
	"sort"
	"strings"
	"sync"
	"time"
)

// Expvar global expvar map.
var Expvar = expvar.NewMap("pvdb")

// StatsClient represents a client to a stats server.
type StatsClient interface {
	// Returns a sorted list of tags on the client.
	Tags() []string

	// Returns a new client with additional tags appended.
	WithTags(tags ...string) StatsClient

	// Tracks the number of times something occurs per second.
	Count(name string, value int64, rate float64)

	// Sets the value of a metric.
	Gauge(name string, value float64, rate float64)

	// Tracks timing information for a metric.
	Timing(name string, value time.Duration, rate float64)

	// Starts the service
	Open()

	// Closes the client
	Close() error
}

// NopStatsClient represents a client that doesn't do anything.
var NopStatsClient StatsClient = &nopStatsClient{}

type nopStatsClient struct{}

func (c *nopStatsClient) Tags() []string                                  { return nil }
func (c *nopStatsClient) WithTags(tags ...string) StatsClient             { return c }
func (c *nopStatsClient) Count(name string, value int64, rate float64)    {}
func (c *nopStatsClient) Gauge(name string, value float64, rate float64)  {}
func (c *nopStatsClient) Timing(name string, value time.Duration, rate float64) {
}
func (c *nopStatsClient) Open()        {}
func (c *nopStatsClient) Close() error { return nil }

// ExpvarStatsClient writes stats out to expvars.
type ExpvarStatsClient struct {
	mu   sync.Mutex
	m    *expvar.Map
	tags []string
}

// NewExpvarStatsClient returns a new instance of ExpvarStatsClient.
// This client points at the root of the expvar pvdb map.
func NewExpvarStatsClient() *ExpvarStatsClient {
	return &ExpvarStatsClient{
		m: Expvar,
	}
}

// Tags returns a sorted list of tags on the client.
func (c *ExpvarStatsClient) Tags() []string {
	return nil
}

// WithTags returns a new client with additional tags appended.
func (c *ExpvarStatsClient) WithTags(tags ...string) StatsClient {
	m := &expvar.Map{}
	m.Init()
	c.m.Set(strings.Join(tags, ","), m)

	return &ExpvarStatsClient{
		m:    m,
		tags: unionStringSlice(c.tags, tags),
	}
}

// Count tracks the number of times something occurs.
func (c *ExpvarStatsClient) Count(name string, value int64, rate float64) {
	c.m.Add(name, value)
}

// Gauge sets the value of a metric.
func (c *ExpvarStatsClient) Gauge(name string, value float64, rate float64) {
	var f expvar.Float
	f.Set(value)
	c.m.Set(name, &f)
}

// Timing tracks timing information for a metric.
func (c *ExpvarStatsClient) Timing(name string, value time.Duration, rate float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	timing, _ := c.m.Get(name).(*expvar.Int)
	if timing == nil || timing.Value() < int64(value) {
		var v expvar.Int
		v.Set(int64(value))
		c.m.Set(name, &v)
	}
}

// Open no-op.
func (c *ExpvarStatsClient) Open() {}

// Close no-op.
func (c *ExpvarStatsClient) Close() error { return nil }

// unionStringSlice returns a sorted set of tags which combine a & b.
func unionStringSlice(a, b []string) []string {
	// Add all values in a.
	m := make(map[string]struct{})
	for _, v := range a {
		m[v] = struct{}{}
	}

	// Add all values in b.
	for _, v := range b {
		m[v] = struct{}{}
	}

	// Convert to sorted slice.
	other := make([]string, 0, len(m))
	for v := range m {
		other = append(other, v)
	}
	sort.Strings(other)
	return other
}
