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
	"io"
	"math"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Reader reads physical samples from one MFF signal file. Methods are safe
// for concurrent use: reads are stateless ReadAt calls and the catalog is
// immutable after Open. Callers must ensure no writer replaces the
// underlying file while the handle is open.
type Reader struct {
	r      io.ReaderAt
	id     uuid.UUID
	info   SignalInfo
	cat    *catalog
	cache  *BlockCache
	logger log.Logger
}

// Open scans the block headers of a signal file and indexes them against the
// supplied epoch metadata, which normally comes from the container's
// epochs.xml. A nil epochs slice stands in for a recording with a single
// unbroken epoch covering every block.
func Open(r io.ReaderAt, epochs []Epoch, opts ...Option) (*Reader, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	blocks, err := scanBlocks(r)
	if err != nil {
		return nil, err
	}
	if len(blocks) == 0 {
		return nil, errors.Wrap(ErrMalformedHeader, "signal file holds no blocks")
	}

	info, err := fileInfo(blocks, o.rateOverride)
	if err != nil {
		return nil, err
	}

	if epochs == nil {
		epochs = []Epoch{defaultEpoch(blocks)}
	}

	cat, err := newCatalog(epochs, blocks, o.rateOverride)
	if err != nil {
		return nil, err
	}

	level.Debug(o.logger).Log("msg", "opened signal file",
		"blocks", len(blocks), "epochs", len(epochs),
		"channels", info.NumChannels, "rate", info.SampleRate)

	return &Reader{
		r:      r,
		id:     uuid.New(),
		info:   info,
		cat:    cat,
		cache:  o.cache,
		logger: o.logger,
	}, nil
}

// GetPhysicalSamples resolves the epoch-relative time window [t0, t0+dt)
// (seconds) to the half-open sample range [floor(t0*sr), floor((t0+dt)*sr))
// and returns the stored samples as a [channels][samples] matrix. A window
// that never crosses a sample boundary, or lies past the end of the epoch,
// returns an empty matrix; only negative or non-finite inputs are errors.
func (r *Reader) GetPhysicalSamples(epoch int, t0, dt float64) ([][]float64, error) {
	if epoch < 0 || epoch >= len(r.cat.epochs) {
		return nil, errors.Wrapf(ErrEpochNotFound, "epoch %d of %d", epoch, len(r.cat.epochs))
	}
	if math.IsNaN(t0) || math.IsNaN(dt) || t0 < 0 || dt < 0 {
		return nil, errors.Wrapf(ErrInvalidRange, "t0=%v dt=%v", t0, dt)
	}
	if dt == 0 {
		return r.emptyMatrix(), nil
	}

	sr := r.cat.epochs[epoch].SampleRate
	f0 := math.Floor(t0 * sr)
	f1 := math.Floor((t0 + dt) * sr)
	if f1 > math.MaxInt32 || f0 > math.MaxInt32 {
		return nil, errors.Wrapf(ErrSampleRangeExceedsEpoch, "epoch %d: sample index %v not representable", epoch, f1)
	}
	s0, s1 := int(f0), int(f1)
	if s0 < 0 || s1 < 0 {
		return nil, errors.Wrapf(ErrSampleRangeExceedsEpoch, "epoch %d: sample index wrapped negative", epoch)
	}
	if s1 <= s0 {
		return r.emptyMatrix(), nil
	}

	total := r.cat.totalSamples(epoch)
	if s0 >= total {
		return r.emptyMatrix(), nil
	}
	if s1 > total {
		s1 = total
	}

	out := make([][]float64, r.info.NumChannels)
	for c := range out {
		out[c] = make([]float64, 0, s1-s0)
	}
	for _, bs := range r.cat.blocksFor(epoch, s0, s1) {
		samples, err := r.decodeBlock(bs.block)
		if err != nil {
			return nil, errors.Wrapf(err, "epoch %d", epoch)
		}
		for c := range out {
			out[c] = append(out[c], samples[c][bs.from:bs.to]...)
		}
	}
	return out, nil
}

// GetPhysicalSamplesAt reads a window on the recording timeline, t0 seconds
// from recording start. Gaps between epochs contribute no samples; the
// per-epoch slices are concatenated in time order. The second return value
// is the recording-relative time of the first returned sample (t0 when the
// window holds no samples).
func (r *Reader) GetPhysicalSamplesAt(t0, dt float64) ([][]float64, float64, error) {
	if math.IsNaN(t0) || math.IsNaN(dt) || t0 < 0 || dt < 0 {
		return nil, 0, errors.Wrapf(ErrInvalidRange, "t0=%v dt=%v", t0, dt)
	}

	out := r.emptyMatrix()
	startTime := t0
	if dt == 0 {
		return out, startTime, nil
	}

	end := t0 + dt
	first := true
	var rate float64
	for i, ep := range r.cat.epochs {
		epochBegin := float64(ep.BeginTime) / 1e6
		epochEnd := float64(ep.EndTime) / 1e6
		if epochEnd <= t0 || epochBegin >= end {
			continue
		}
		if !first && ep.SampleRate != rate {
			return nil, 0, errors.Wrapf(ErrSampleRateMismatch, "window [%v, %v) spans epochs at %v Hz and %v Hz", t0, end, rate, ep.SampleRate)
		}

		rel0 := math.Max(0, t0-epochBegin)
		relEnd := math.Min(end, epochEnd) - epochBegin
		samples, err := r.GetPhysicalSamples(i, rel0, relEnd-rel0)
		if err != nil {
			return nil, 0, err
		}
		if len(samples[0]) == 0 {
			continue
		}
		if first {
			rate = ep.SampleRate
			startTime = epochBegin + math.Floor(rel0*rate)/rate
			first = false
		}
		for c := range out {
			out[c] = append(out[c], samples[c]...)
		}
	}
	return out, startTime, nil
}

// GetCalibratedSamples reads an epoch-relative window and applies the given
// calibration to the result.
func (r *Reader) GetCalibratedSamples(cal Calibration, epoch int, t0, dt float64) ([][]float64, error) {
	samples, err := r.GetPhysicalSamples(epoch, t0, dt)
	if err != nil {
		return nil, err
	}
	return cal.Apply(samples), nil
}

// NumChannels returns the signal file's fixed channel count.
func (r *Reader) NumChannels() int {
	return r.info.NumChannels
}

// SampleRate returns the file-global sample rate. With the rate override it
// is the rate of the first block.
func (r *Reader) SampleRate() float64 {
	return r.info.SampleRate
}

// Precision returns the file's per-sample storage width.
func (r *Reader) Precision() Precision {
	return r.info.Precision
}

// Layout returns the file's payload sample ordering.
func (r *Reader) Layout() Layout {
	return r.info.Layout
}

// NumEpochs returns the number of epochs in the catalog.
func (r *Reader) NumEpochs() int {
	return len(r.cat.epochs)
}

// Epochs returns a copy of the epoch table.
func (r *Reader) Epochs() []Epoch {
	return append([]Epoch(nil), r.cat.epochs...)
}

// Blocks returns a copy of the block table in file order.
func (r *Reader) Blocks() []Block {
	return append([]Block(nil), r.cat.blocks...)
}

// Duration returns the seconds of recorded data, inter-epoch gaps excluded.
func (r *Reader) Duration() float64 {
	var d float64
	for i, ep := range r.cat.epochs {
		d += float64(r.cat.totalSamples(i)) / ep.SampleRate
	}
	return d
}

func (r *Reader) emptyMatrix() [][]float64 {
	m := make([][]float64, r.info.NumChannels)
	for c := range m {
		m[c] = []float64{}
	}
	return m
}

// decodeBlock reads and decodes one block, consulting the cache when one is
// attached. Cached matrices are read-only; callers copy out of them.
func (r *Reader) decodeBlock(blk Block) ([][]float64, error) {
	key := blockKey{file: r.id, block: blk.Number}
	if r.cache != nil {
		if samples, ok := r.cache.get(key); ok {
			return samples, nil
		}
	}

	buf := make([]byte, blk.TotalSize())
	if n, err := r.r.ReadAt(buf, blk.ByteOffset); n < len(buf) {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return nil, errors.Wrapf(ErrMalformedHeader, "block %d at offset %d: truncated payload", blk.Number, blk.ByteOffset)
		}
		return nil, errors.Wrapf(err, "reading block %d at offset %d", blk.Number, blk.ByteOffset)
	}
	samples, err := decodePayload(blk, buf[blk.HeaderSize:])
	if err != nil {
		return nil, errors.Wrapf(err, "block %d at offset %d", blk.Number, blk.ByteOffset)
	}

	if r.cache != nil {
		r.cache.add(key, samples)
	}
	return samples, nil
}

// scanBlocks walks the file from offset 0, decoding each header and probing
// that its declared payload lies within the file.
func scanBlocks(r io.ReaderAt) ([]Block, error) {
	var blocks []Block
	var offset int64
	var probe [1]byte

	base := make([]byte, headerBaseSize)
	for number := 0; ; number++ {
		n, err := r.ReadAt(base, offset)
		if n < headerBaseSize {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				if n == 0 {
					break
				}
				return nil, errors.Wrapf(ErrMalformedHeader, "block %d at offset %d: truncated header (%d bytes)", number, offset, n)
			}
			return nil, errors.Wrapf(err, "reading block %d header at offset %d", number, offset)
		}

		header := base
		if base[0]&flagScaleFactors != 0 {
			numChannels := int(binary.LittleEndian.Uint32(base[1:5]))
			if numChannels <= 0 || numChannels > maxChannels {
				return nil, errors.Wrapf(ErrMalformedHeader, "block %d at offset %d: implausible channel count %d", number, offset, numChannels)
			}
			header = make([]byte, headerBaseSize+4*numChannels)
			if n, err := r.ReadAt(header, offset); n < len(header) {
				if err == io.EOF || err == io.ErrUnexpectedEOF {
					return nil, errors.Wrapf(ErrMalformedHeader, "block %d at offset %d: truncated scale factors", number, offset)
				}
				return nil, errors.Wrapf(err, "reading block %d header at offset %d", number, offset)
			}
		}

		blk, err := decodeHeader(header)
		if err != nil {
			return nil, errors.Wrapf(err, "block %d at offset %d", number, offset)
		}
		blk.Number = number
		blk.ByteOffset = offset

		end := offset + blk.TotalSize()
		if n, _ := r.ReadAt(probe[:], end-1); n != 1 {
			return nil, errors.Wrapf(ErrMalformedHeader, "block %d at offset %d: declared payload of %d bytes extends past end of file", number, offset, blk.PayloadSize())
		}

		blocks = append(blocks, blk)
		offset = end
	}
	return blocks, nil
}

// fileInfo derives the file-global layout facts from the block table and
// enforces the invariants every block of one signal file must share.
func fileInfo(blocks []Block, rateOverride bool) (SignalInfo, error) {
	first := blocks[0]
	info := SignalInfo{
		NumChannels:  first.NumChannels,
		SampleRate:   first.SampleRate,
		Precision:    first.Precision,
		Layout:       first.Layout,
		ScaleFactors: first.ScaleFactors,
	}
	for _, blk := range blocks[1:] {
		if blk.NumChannels != info.NumChannels {
			return SignalInfo{}, errors.Wrapf(ErrChannelCountMismatch, "block %d declares %d channels, file has %d", blk.Number, blk.NumChannels, info.NumChannels)
		}
		if blk.Precision != info.Precision {
			return SignalInfo{}, errors.Wrapf(ErrIncompatibleBlockLayout, "block %d stores %s samples, file stores %s", blk.Number, blk.Precision, info.Precision)
		}
		if blk.Layout != info.Layout {
			return SignalInfo{}, errors.Wrapf(ErrIncompatibleBlockLayout, "block %d is %s, file is %s", blk.Number, blk.Layout, info.Layout)
		}
		if (blk.ScaleFactors == nil) != (info.ScaleFactors == nil) {
			return SignalInfo{}, errors.Wrapf(ErrIncompatibleBlockLayout, "block %d disagrees with file on scale-factor presence", blk.Number)
		}
		if !rateOverride && blk.SampleRate != info.SampleRate {
			return SignalInfo{}, errors.Wrapf(ErrSampleRateMismatch, "block %d declares %v Hz, file declares %v Hz", blk.Number, blk.SampleRate, info.SampleRate)
		}
	}
	return info, nil
}

// defaultEpoch covers every block as one unbroken span beginning at time 0.
func defaultEpoch(blocks []Block) Epoch {
	rate := blocks[0].SampleRate
	var total int
	numbers := make([]int, len(blocks))
	for i, blk := range blocks {
		numbers[i] = blk.Number
		total += blk.NumSamples
	}
	return Epoch{
		BeginTime:    0,
		EndTime:      int64(math.Round(float64(total) / rate * 1e6)),
		SampleRate:   rate,
		BlockNumbers: numbers,
	}
}
