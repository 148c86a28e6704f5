// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package mff_test

import (
	"errors"
	"testing"

	"github.com/OpenPSG/mff"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBlockRoundTrip(t *testing.T) {
	tests := []struct {
		name    string
		info    mff.SignalInfo
		samples [][]float64
	}{
		{
			name: "int16 interleaved",
			info: mff.SignalInfo{NumChannels: 3, SampleRate: 250, Precision: mff.PrecisionInt16, Layout: mff.LayoutInterleaved},
			samples: [][]float64{
				{-32768, -1, 0, 1, 32767},
				{5, 4, 3, 2, 1},
				{100, 200, 300, 400, 500},
			},
		},
		{
			name: "int16 channel-major",
			info: mff.SignalInfo{NumChannels: 2, SampleRate: 1000, Precision: mff.PrecisionInt16, Layout: mff.LayoutChannelMajor},
			samples: [][]float64{
				{1, 2, 3},
				{-1, -2, -3},
			},
		},
		{
			name: "float32 interleaved",
			info: mff.SignalInfo{NumChannels: 2, SampleRate: 500, Precision: mff.PrecisionFloat32, Layout: mff.LayoutInterleaved},
			samples: [][]float64{
				{0.5, -1.25, 1024, -0.0078125},
				{1.5, 2.75, -4096, 0.015625},
			},
		},
		{
			name: "float64 channel-major",
			info: mff.SignalInfo{NumChannels: 2, SampleRate: 250, Precision: mff.PrecisionFloat64, Layout: mff.LayoutChannelMajor},
			samples: [][]float64{
				{0.1, 0.2, 0.3},
				{-0.1, -0.2, -0.3},
			},
		},
		{
			name: "float32 with scale factors",
			info: mff.SignalInfo{
				NumChannels:  2,
				SampleRate:   250,
				Precision:    mff.PrecisionFloat32,
				Layout:       mff.LayoutInterleaved,
				ScaleFactors: []float32{0.0244140625, 0.048828125},
			},
			samples: [][]float64{
				{1, 2},
				{3, 4},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf, err := mff.EncodeBlock(tt.info, tt.samples)
			require.NoError(t, err)

			blk, decoded, err := mff.DecodeBlock(buf)
			require.NoError(t, err)
			require.Equal(t, tt.samples, decoded)

			assert.Equal(t, tt.info.NumChannels, blk.NumChannels)
			assert.Equal(t, len(tt.samples[0]), blk.NumSamples)
			assert.Equal(t, tt.info.SampleRate, blk.SampleRate)
			assert.Equal(t, tt.info.Precision, blk.Precision)
			assert.Equal(t, tt.info.Layout, blk.Layout)
			assert.Equal(t, tt.info.ScaleFactors, blk.ScaleFactors)
			assert.Equal(t, int64(len(buf)), blk.TotalSize())

			// Encoding is deterministic: identical content, identical bytes.
			again, err := mff.EncodeBlock(tt.info, tt.samples)
			require.NoError(t, err)
			assert.Equal(t, buf, again)
		})
	}
}

func TestEncodeBlockValidation(t *testing.T) {
	info := mff.SignalInfo{NumChannels: 2, SampleRate: 250, Precision: mff.PrecisionFloat32, Layout: mff.LayoutInterleaved}

	tests := []struct {
		name    string
		info    mff.SignalInfo
		samples [][]float64
		want    error
	}{
		{
			name:    "channel count disagrees with matrix",
			info:    info,
			samples: [][]float64{{1, 2}},
			want:    mff.ErrChannelCountMismatch,
		},
		{
			name:    "zero channels",
			info:    mff.SignalInfo{NumChannels: 0, SampleRate: 250, Precision: mff.PrecisionFloat32},
			samples: [][]float64{},
			want:    mff.ErrChannelCountMismatch,
		},
		{
			name:    "ragged matrix",
			info:    info,
			samples: [][]float64{{1, 2, 3}, {1, 2}},
			want:    mff.ErrInvalidRange,
		},
		{
			name:    "empty matrix",
			info:    info,
			samples: [][]float64{{}, {}},
			want:    mff.ErrInvalidRange,
		},
		{
			name:    "fractional sample rate",
			info:    mff.SignalInfo{NumChannels: 2, SampleRate: 250.5, Precision: mff.PrecisionFloat32},
			samples: [][]float64{{1}, {2}},
			want:    mff.ErrSampleRateMismatch,
		},
		{
			name:    "unknown precision",
			info:    mff.SignalInfo{NumChannels: 2, SampleRate: 250, Precision: mff.Precision(3)},
			samples: [][]float64{{1}, {2}},
			want:    mff.ErrIncompatibleBlockLayout,
		},
		{
			name: "scale factor count disagrees with channels",
			info: mff.SignalInfo{
				NumChannels:  2,
				SampleRate:   250,
				Precision:    mff.PrecisionFloat32,
				ScaleFactors: []float32{1},
			},
			samples: [][]float64{{1}, {2}},
			want:    mff.ErrIncompatibleBlockLayout,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := mff.EncodeBlock(tt.info, tt.samples)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want), "got %v, want %v", err, tt.want)
		})
	}
}

func TestDecodeBlockMalformed(t *testing.T) {
	info := mff.SignalInfo{NumChannels: 2, SampleRate: 250, Precision: mff.PrecisionFloat32, Layout: mff.LayoutInterleaved}
	valid, err := mff.EncodeBlock(info, [][]float64{{1, 2, 3}, {4, 5, 6}})
	require.NoError(t, err)

	withScale := info
	withScale.ScaleFactors = []float32{1, 2}
	validScaled, err := mff.EncodeBlock(withScale, [][]float64{{1}, {2}})
	require.NoError(t, err)

	mutate := func(off int, b byte) []byte {
		buf := append([]byte(nil), valid...)
		buf[off] = b
		return buf
	}

	tests := []struct {
		name string
		buf  []byte
		want error
	}{
		{name: "truncated header", buf: valid[:10], want: mff.ErrMalformedHeader},
		{name: "empty buffer", buf: nil, want: mff.ErrMalformedHeader},
		{name: "bad version", buf: mutate(0, 0x20), want: mff.ErrMalformedHeader},
		{name: "reserved flag bits", buf: mutate(0, 0x14), want: mff.ErrMalformedHeader},
		{name: "zero channels", buf: mutate(1, 0), want: mff.ErrMalformedHeader},
		{name: "zero samples", buf: mutate(5, 0), want: mff.ErrMalformedHeader},
		{name: "zero sample rate", buf: mutate(10, 0), want: mff.ErrMalformedHeader},
		{name: "unsupported depth", buf: mutate(9, 3), want: mff.ErrIncompatibleBlockLayout},
		{name: "truncated payload", buf: valid[:len(valid)-1], want: mff.ErrMalformedHeader},
		{name: "truncated scale factors", buf: validScaled[:16], want: mff.ErrMalformedHeader},
		{name: "oversized sample count", buf: mutate(7, 0xff), want: mff.ErrMalformedHeader},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := mff.DecodeBlock(tt.buf)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want), "got %v, want %v", err, tt.want)
		})
	}
}
