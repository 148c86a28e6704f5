// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package mff

import "math"

// Precision is the per-sample storage width of a signal file. Its numeric
// value is the byte size written to the wire.
type Precision uint8

const (
	PrecisionInt16   Precision = 2 // int16, two's complement
	PrecisionFloat32 Precision = 4 // IEEE-754 float32
	PrecisionFloat64 Precision = 8 // IEEE-754 float64
)

// ByteSize returns the number of bytes one sample occupies on disk.
func (p Precision) ByteSize() int {
	return int(p)
}

func (p Precision) String() string {
	switch p {
	case PrecisionInt16:
		return "int16"
	case PrecisionFloat32:
		return "float32"
	case PrecisionFloat64:
		return "float64"
	default:
		return "unknown"
	}
}

func precisionFromWire(b byte) (Precision, bool) {
	switch Precision(b) {
	case PrecisionInt16, PrecisionFloat32, PrecisionFloat64:
		return Precision(b), true
	default:
		return 0, false
	}
}

// Layout is the sample ordering of a block payload.
type Layout uint8

const (
	LayoutInterleaved  Layout = 0 // sample 0 of every channel, then sample 1, ...
	LayoutChannelMajor Layout = 1 // every sample of channel 0, then channel 1, ...
)

func (l Layout) String() string {
	switch l {
	case LayoutInterleaved:
		return "interleaved"
	case LayoutChannelMajor:
		return "channel-major"
	default:
		return "unknown"
	}
}

// Block describes one physically contiguous unit of sample payload within a
// signal file. Blocks are immutable once scanned (read path) or staged
// (write path).
type Block struct {
	Number       int       // position within the signal file
	ByteOffset   int64     // offset of the header's first byte
	HeaderSize   int       // 14 bytes, or 14+4C with scale factors
	NumChannels  int       // identical across all blocks of one file
	NumSamples   int       // samples per channel in this block
	SampleRate   float64   // Hz
	Precision    Precision
	Layout       Layout
	ScaleFactors []float32 // nil when the header carries none
}

// PayloadSize returns the byte size of the block's sample payload.
func (b Block) PayloadSize() int64 {
	return int64(b.NumChannels) * int64(b.NumSamples) * int64(b.Precision.ByteSize())
}

// TotalSize returns the byte size of the block including its header.
func (b Block) TotalSize() int64 {
	return int64(b.HeaderSize) + b.PayloadSize()
}

// Epoch is a contiguous, non-overlapping span of the recording timeline
// backed by an ordered run of blocks. Times are microseconds from recording
// start; EndTime is exclusive.
type Epoch struct {
	BeginTime    int64
	EndTime      int64
	SampleRate   float64 // Hz
	BlockNumbers []int   // strictly increasing
}

// Duration returns the epoch's length in microseconds.
func (e Epoch) Duration() int64 {
	return e.EndTime - e.BeginTime
}

// NumSamples returns the per-channel sample count declared by the epoch's
// time span and rate. The backing blocks must agree within one sample.
func (e Epoch) NumSamples() int {
	return int(math.Round(float64(e.Duration()) * e.SampleRate / 1e6))
}

// SignalInfo carries the file-global layout facts shared by every block of
// one signal file.
type SignalInfo struct {
	NumChannels  int
	SampleRate   float64 // Hz; must be an integer representable as uint32
	Precision    Precision
	Layout       Layout
	ScaleFactors []float32 // nil, or one per channel
}
