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
	"sort"

	"github.com/pkg/errors"
)

// catalog indexes a signal file's epochs onto its block table. It is built
// once per open handle and immutable afterwards.
type catalog struct {
	epochs      []Epoch
	blocks      []Block // ordered by Number
	epochBlocks [][]int // per epoch: indices into blocks
	prefix      [][]int // per epoch: prefix[j] = samples before block j, len = blocks+1
}

// blockSlice addresses a local sample range [from, to) within one block.
type blockSlice struct {
	block Block
	from  int
	to    int
}

// newCatalog validates the epoch metadata against the block table and builds
// the per-epoch prefix-sum indexes. Epochs must be sorted by BeginTime and
// non-overlapping; block references must be strictly increasing per epoch
// and never shared between epochs.
func newCatalog(epochs []Epoch, blocks []Block, rateOverride bool) (*catalog, error) {
	blockIndex := make(map[int]int, len(blocks))
	for i, blk := range blocks {
		blockIndex[blk.Number] = i
	}

	c := &catalog{
		epochs:      epochs,
		blocks:      blocks,
		epochBlocks: make([][]int, len(epochs)),
		prefix:      make([][]int, len(epochs)),
	}

	claimed := make(map[int]int, len(blocks)) // block number -> claiming epoch
	for i, ep := range epochs {
		if ep.EndTime < ep.BeginTime {
			return nil, errors.Wrapf(ErrInvalidRange, "epoch %d ends at %dµs before it begins at %dµs", i, ep.EndTime, ep.BeginTime)
		}
		if i > 0 && ep.BeginTime < epochs[i-1].EndTime {
			return nil, errors.Wrapf(ErrOverlappingEpochs, "epoch %d begins at %dµs, epoch %d ends at %dµs", i, ep.BeginTime, i-1, epochs[i-1].EndTime)
		}
		if err := validateRate(ep.SampleRate); err != nil {
			return nil, errors.Wrapf(err, "epoch %d", i)
		}
		if !rateOverride && i > 0 && ep.SampleRate != epochs[0].SampleRate {
			return nil, errors.Wrapf(ErrSampleRateMismatch, "epoch %d declares %v Hz, epoch 0 declares %v Hz", i, ep.SampleRate, epochs[0].SampleRate)
		}
		if len(ep.BlockNumbers) == 0 {
			return nil, errors.Wrapf(ErrInvalidRange, "epoch %d references no blocks", i)
		}

		indexes := make([]int, 0, len(ep.BlockNumbers))
		prefix := make([]int, 1, len(ep.BlockNumbers)+1)
		for j, num := range ep.BlockNumbers {
			if j > 0 && num <= ep.BlockNumbers[j-1] {
				return nil, errors.Errorf("epoch %d: block numbers not strictly increasing (%d after %d)", i, num, ep.BlockNumbers[j-1])
			}
			if other, dup := claimed[num]; dup {
				return nil, errors.Errorf("epoch %d: block %d already belongs to epoch %d", i, num, other)
			}
			claimed[num] = i
			idx, ok := blockIndex[num]
			if !ok {
				return nil, errors.Errorf("epoch %d references unknown block %d", i, num)
			}
			blk := blocks[idx]
			if blk.SampleRate != ep.SampleRate {
				return nil, errors.Wrapf(ErrSampleRateMismatch, "epoch %d declares %v Hz, block %d declares %v Hz", i, ep.SampleRate, num, blk.SampleRate)
			}
			indexes = append(indexes, idx)
			prefix = append(prefix, prefix[len(prefix)-1]+blk.NumSamples)
		}

		// The backing blocks must account for the declared time span within
		// a one-sample rounding tolerance.
		total := prefix[len(prefix)-1]
		if declared := ep.NumSamples(); total < declared-1 || total > declared+1 {
			return nil, errors.Errorf("epoch %d: blocks hold %d samples, time span declares %d", i, total, declared)
		}

		c.epochBlocks[i] = indexes
		c.prefix[i] = prefix
	}

	return c, nil
}

// totalSamples returns the number of samples physically backing an epoch.
func (c *catalog) totalSamples(epoch int) int {
	p := c.prefix[epoch]
	return p[len(p)-1]
}

// blocksFor resolves the epoch-local sample range [s0, s1) into ordered
// (block, local range) pairs. The range must already be clamped to the
// epoch's total.
func (c *catalog) blocksFor(epoch, s0, s1 int) []blockSlice {
	prefix := c.prefix[epoch]
	indexes := c.epochBlocks[epoch]

	// First block whose end lies beyond s0.
	i := sort.Search(len(indexes), func(j int) bool { return prefix[j+1] > s0 })

	var out []blockSlice
	for ; i < len(indexes) && prefix[i] < s1; i++ {
		blk := c.blocks[indexes[i]]
		out = append(out, blockSlice{
			block: blk,
			from:  max(0, s0-prefix[i]),
			to:    min(blk.NumSamples, s1-prefix[i]),
		})
	}
	return out
}
