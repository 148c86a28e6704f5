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
	"encoding/binary"
	"math"

	"github.com/pkg/errors"
)

const (
	headerBaseSize = 14
	formatVersion  = 0x1

	flagLayoutChannelMajor = 1 << 0
	flagScaleFactors       = 1 << 1
	flagReservedMask       = 1<<2 | 1<<3

	// maxChannels bounds header-declared channel counts before any
	// header-sized allocation happens.
	maxChannels = 1 << 20
)

// EncodeBlock encodes one block from a [channels][samples] matrix. The
// channel and sample counts are taken from the matrix shape; the header is
// written with a stable field order and byte width so that identical logical
// content always produces byte-identical output.
func EncodeBlock(info SignalInfo, samples [][]float64) ([]byte, error) {
	if err := validateInfo(info); err != nil {
		return nil, err
	}
	if len(samples) != info.NumChannels {
		return nil, errors.Wrapf(ErrChannelCountMismatch, "matrix has %d channels, info declares %d", len(samples), info.NumChannels)
	}
	n := len(samples[0])
	if n == 0 {
		return nil, errors.Wrap(ErrInvalidRange, "empty sample matrix")
	}
	for c, row := range samples {
		if len(row) != n {
			return nil, errors.Wrapf(ErrInvalidRange, "ragged sample matrix: channel %d has %d samples, channel 0 has %d", c, len(row), n)
		}
	}

	headerSize := headerSizeFor(info)
	bps := info.Precision.ByteSize()
	buf := make([]byte, headerSize+info.NumChannels*n*bps)

	flags := byte(formatVersion << 4)
	if info.Layout == LayoutChannelMajor {
		flags |= flagLayoutChannelMajor
	}
	if info.ScaleFactors != nil {
		flags |= flagScaleFactors
	}
	buf[0] = flags
	binary.LittleEndian.PutUint32(buf[1:5], uint32(info.NumChannels))
	binary.LittleEndian.PutUint32(buf[5:9], uint32(n))
	buf[9] = byte(bps)
	binary.LittleEndian.PutUint32(buf[10:14], uint32(info.SampleRate))
	for i, sf := range info.ScaleFactors {
		binary.LittleEndian.PutUint32(buf[headerBaseSize+4*i:], math.Float32bits(sf))
	}

	payload := buf[headerSize:]
	switch info.Layout {
	case LayoutInterleaved:
		for s := 0; s < n; s++ {
			for c := 0; c < info.NumChannels; c++ {
				putSample(payload, (s*info.NumChannels+c)*bps, info.Precision, samples[c][s])
			}
		}
	case LayoutChannelMajor:
		for c := 0; c < info.NumChannels; c++ {
			for s := 0; s < n; s++ {
				putSample(payload, (c*n+s)*bps, info.Precision, samples[c][s])
			}
		}
	}

	return buf, nil
}

// DecodeBlock decodes one whole block from the start of buf. The returned
// descriptor has Number and ByteOffset zero; callers scanning a file fill
// them in.
func DecodeBlock(buf []byte) (Block, [][]float64, error) {
	blk, err := decodeHeader(buf)
	if err != nil {
		return Block{}, nil, err
	}
	end := blk.TotalSize()
	if int64(len(buf)) < end {
		return Block{}, nil, errors.Wrapf(ErrMalformedHeader, "declared payload of %d bytes extends past buffer end (%d bytes)", blk.PayloadSize(), len(buf))
	}
	samples, err := decodePayload(blk, buf[blk.HeaderSize:end])
	if err != nil {
		return Block{}, nil, err
	}
	return blk, samples, nil
}

// decodeHeader parses a block header from the start of buf. It never reads
// the payload, so buf may be just the header bytes.
func decodeHeader(buf []byte) (Block, error) {
	if len(buf) < headerBaseSize {
		return Block{}, errors.Wrapf(ErrMalformedHeader, "truncated header: %d bytes", len(buf))
	}
	flags := buf[0]
	if flags>>4 != formatVersion {
		return Block{}, errors.Wrapf(ErrMalformedHeader, "unsupported format version %d", flags>>4)
	}
	if flags&flagReservedMask != 0 {
		return Block{}, errors.Wrap(ErrMalformedHeader, "reserved flag bits set")
	}

	numChannels := binary.LittleEndian.Uint32(buf[1:5])
	numSamples := binary.LittleEndian.Uint32(buf[5:9])
	depth := buf[9]
	sampleRate := binary.LittleEndian.Uint32(buf[10:14])
	if numChannels == 0 || numSamples == 0 {
		return Block{}, errors.Wrapf(ErrMalformedHeader, "zero channel or sample count (%d channels, %d samples)", numChannels, numSamples)
	}
	if numChannels > maxChannels {
		return Block{}, errors.Wrapf(ErrMalformedHeader, "implausible channel count %d", numChannels)
	}
	if sampleRate == 0 {
		return Block{}, errors.Wrap(ErrMalformedHeader, "zero sample rate")
	}
	precision, ok := precisionFromWire(depth)
	if !ok {
		return Block{}, errors.Wrapf(ErrIncompatibleBlockLayout, "unsupported sample depth %d", depth)
	}

	blk := Block{
		HeaderSize:  headerBaseSize,
		NumChannels: int(numChannels),
		NumSamples:  int(numSamples),
		SampleRate:  float64(sampleRate),
		Precision:   precision,
		Layout:      Layout(flags & flagLayoutChannelMajor),
	}
	if flags&flagScaleFactors != 0 {
		blk.HeaderSize += 4 * blk.NumChannels
		if len(buf) < blk.HeaderSize {
			return Block{}, errors.Wrapf(ErrMalformedHeader, "truncated scale factors: header needs %d bytes, have %d", blk.HeaderSize, len(buf))
		}
		blk.ScaleFactors = make([]float32, blk.NumChannels)
		for i := range blk.ScaleFactors {
			blk.ScaleFactors[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[headerBaseSize+4*i:]))
		}
	}
	return blk, nil
}

// decodePayload decodes a block's sample payload using the header facts in
// blk. payload must be exactly PayloadSize bytes.
func decodePayload(blk Block, payload []byte) ([][]float64, error) {
	if int64(len(payload)) != blk.PayloadSize() {
		return nil, errors.Wrapf(ErrMalformedHeader, "payload is %d bytes, header declares %d", len(payload), blk.PayloadSize())
	}
	bps := blk.Precision.ByteSize()
	out := make([][]float64, blk.NumChannels)
	for c := range out {
		out[c] = make([]float64, blk.NumSamples)
	}
	switch blk.Layout {
	case LayoutInterleaved:
		for s := 0; s < blk.NumSamples; s++ {
			for c := 0; c < blk.NumChannels; c++ {
				out[c][s] = sampleAt(payload, (s*blk.NumChannels+c)*bps, blk.Precision)
			}
		}
	case LayoutChannelMajor:
		for c := 0; c < blk.NumChannels; c++ {
			for s := 0; s < blk.NumSamples; s++ {
				out[c][s] = sampleAt(payload, (c*blk.NumSamples+s)*bps, blk.Precision)
			}
		}
	}
	return out, nil
}

func headerSizeFor(info SignalInfo) int {
	if info.ScaleFactors != nil {
		return headerBaseSize + 4*len(info.ScaleFactors)
	}
	return headerBaseSize
}

// validateInfo checks the file-global layout facts a block or file is built
// from.
func validateInfo(info SignalInfo) error {
	if info.NumChannels <= 0 {
		return errors.Wrapf(ErrChannelCountMismatch, "channel count %d", info.NumChannels)
	}
	if info.NumChannels > maxChannels {
		return errors.Wrapf(ErrChannelCountMismatch, "channel count %d exceeds maximum %d", info.NumChannels, maxChannels)
	}
	if err := validateRate(info.SampleRate); err != nil {
		return err
	}
	switch info.Precision {
	case PrecisionInt16, PrecisionFloat32, PrecisionFloat64:
	default:
		return errors.Wrapf(ErrIncompatibleBlockLayout, "unsupported precision %d", uint8(info.Precision))
	}
	switch info.Layout {
	case LayoutInterleaved, LayoutChannelMajor:
	default:
		return errors.Wrapf(ErrIncompatibleBlockLayout, "unsupported layout %d", uint8(info.Layout))
	}
	if info.ScaleFactors != nil && len(info.ScaleFactors) != info.NumChannels {
		return errors.Wrapf(ErrIncompatibleBlockLayout, "%d scale factors for %d channels", len(info.ScaleFactors), info.NumChannels)
	}
	return nil
}

// validateRate rejects rates the wire format cannot carry: the header stores
// the rate as a uint32 Hz field.
func validateRate(rate float64) error {
	if !(rate > 0) || rate != math.Trunc(rate) || rate > math.MaxUint32 {
		return errors.Wrapf(ErrSampleRateMismatch, "sample rate %v Hz is not representable as a positive integer", rate)
	}
	return nil
}

func sampleAt(p []byte, off int, precision Precision) float64 {
	switch precision {
	case PrecisionInt16:
		return float64(int16(binary.LittleEndian.Uint16(p[off:])))
	case PrecisionFloat32:
		return float64(math.Float32frombits(binary.LittleEndian.Uint32(p[off:])))
	default:
		return math.Float64frombits(binary.LittleEndian.Uint64(p[off:]))
	}
}

func putSample(p []byte, off int, precision Precision, v float64) {
	switch precision {
	case PrecisionInt16:
		binary.LittleEndian.PutUint16(p[off:], uint16(int16(math.Round(v))))
	case PrecisionFloat32:
		binary.LittleEndian.PutUint32(p[off:], math.Float32bits(float32(v)))
	default:
		binary.LittleEndian.PutUint64(p[off:], math.Float64bits(v))
	}
}
