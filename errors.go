// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package mff

import "github.com/pkg/errors"

// Errors surfaced by the codec, reader and writer. They are wrapped with
// epoch, block and offset context where known; classify with errors.Is.
var (
	// ErrMalformedHeader indicates a corrupt or truncated block.
	ErrMalformedHeader = errors.New("malformed block header")
	// ErrOverlappingEpochs indicates unsorted or overlapping epochs, or a
	// negative gap between appended epochs.
	ErrOverlappingEpochs = errors.New("overlapping epochs")
	// ErrChannelCountMismatch indicates a channel count that disagrees with
	// the signal file's fixed channel set.
	ErrChannelCountMismatch = errors.New("channel count mismatch")
	// ErrSampleRateMismatch indicates a sample rate change within a signal
	// file that was opened or created without the rate override option.
	ErrSampleRateMismatch = errors.New("sample rate mismatch")
	// ErrIncompatibleBlockLayout indicates mixed sample depths, payload
	// orders or scale-factor presence within one signal file, or an
	// unsupported depth.
	ErrIncompatibleBlockLayout = errors.New("incompatible block layout")
	// ErrInvalidRange indicates a negative or non-finite time window, or a
	// degenerate epoch or sample matrix.
	ErrInvalidRange = errors.New("invalid range")
	// ErrSampleRangeExceedsEpoch indicates sample index arithmetic that is
	// not representable; it is never raised for reads that merely extend
	// past the end of an epoch, which return short or empty results.
	ErrSampleRangeExceedsEpoch = errors.New("sample range exceeds epoch")
	// ErrEpochNotFound indicates an epoch index outside the catalog.
	ErrEpochNotFound = errors.New("epoch not found")
	// ErrWriterFinalized indicates use of a Writer after Finalize or Abort.
	ErrWriterFinalized = errors.New("writer already finalized")
)
