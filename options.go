// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package mff

import "github.com/go-kit/log"

// DefaultMaxBlockSamples is the per-channel sample count at which the writer
// splits an epoch into further blocks.
const DefaultMaxBlockSamples = 16384

// Option configures a Reader or Writer. Options that only apply to one side
// are ignored by the other.
type Option func(*options)

type options struct {
	logger          log.Logger
	cache           *BlockCache
	rateOverride    bool
	maxBlockSamples int
}

func defaultOptions() options {
	return options{
		logger:          log.NewNopLogger(),
		maxBlockSamples: DefaultMaxBlockSamples,
	}
}

// WithLogger attaches a go-kit logger. The default discards everything.
func WithLogger(logger log.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithCache attaches a decoded-block cache to a Reader. The cache may be
// shared between Readers; entries are keyed by handle identity so distinct
// containers never cross-contaminate.
func WithCache(cache *BlockCache) Option {
	return func(o *options) {
		o.cache = cache
	}
}

// WithRateOverride permits per-epoch sample-rate changes within one signal
// file, recorded in each block's header. The default requires a file-global
// rate.
func WithRateOverride() Option {
	return func(o *options) {
		o.rateOverride = true
	}
}

// WithMaxBlockSamples sets the per-channel sample count at which the writer
// splits an epoch into further blocks. Values below one are ignored.
func WithMaxBlockSamples(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxBlockSamples = n
		}
	}
}
