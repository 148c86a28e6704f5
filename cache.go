// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package mff

import (
	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// blockKey identifies a decoded block by the opening handle's identity, not
// by path: a file replaced by a Writer gets a fresh identity on reopen, so
// stale entries can never be served.
type blockKey struct {
	file  uuid.UUID
	block int
}

// BlockCache is an LRU over decoded block matrices, shared across any number
// of Readers. Entries are read-only once populated; Readers copy out of them
// and never alias them into results.
type BlockCache struct {
	lru *lru.Cache[blockKey, [][]float64]

	hits      prometheus.Counter
	misses    prometheus.Counter
	evictions prometheus.Counter
}

// NewBlockCache creates a cache holding up to maxBlocks decoded blocks. A
// nil registerer leaves the metrics unregistered but functional.
func NewBlockCache(maxBlocks int, reg prometheus.Registerer) (*BlockCache, error) {
	factory := promauto.With(reg)
	c := &BlockCache{
		hits: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "mff",
			Subsystem: "block_cache",
			Name:      "hits_total",
			Help:      "Number of block decodes served from the cache.",
		}),
		misses: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "mff",
			Subsystem: "block_cache",
			Name:      "misses_total",
			Help:      "Number of block decodes that had to read the file.",
		}),
		evictions: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "mff",
			Subsystem: "block_cache",
			Name:      "evictions_total",
			Help:      "Number of decoded blocks evicted from the cache.",
		}),
	}

	l, err := lru.NewWithEvict(maxBlocks, func(blockKey, [][]float64) {
		c.evictions.Inc()
	})
	if err != nil {
		return nil, errors.Wrap(err, "creating block cache")
	}
	c.lru = l

	return c, nil
}

// Len returns the number of decoded blocks currently held.
func (c *BlockCache) Len() int {
	return c.lru.Len()
}

// Purge drops every entry. Counters are left untouched.
func (c *BlockCache) Purge() {
	c.lru.Purge()
}

func (c *BlockCache) get(key blockKey) ([][]float64, bool) {
	if samples, ok := c.lru.Get(key); ok {
		c.hits.Inc()
		return samples, true
	}
	c.misses.Inc()
	return nil, false
}

func (c *BlockCache) add(key blockKey, samples [][]float64) {
	c.lru.Add(key, samples)
}
