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
	"math"
	"path/filepath"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/google/renameio/v2"
	"github.com/pkg/errors"
)

// Writer assembles a new signal file block by block. Bytes are staged in a
// pending temp file in the destination directory; the destination path only
// appears (or changes) once Finalize succeeds. Writing is append-only and
// forward-only: amending a committed file means rewriting it through a fresh
// Writer.
//
// Every append is validated in full before any byte is staged, so a failed
// call leaves the staged file, the block table and the epoch list exactly as
// they were.
type Writer struct {
	pending         *renameio.PendingFile
	path            string
	info            SignalInfo
	logger          log.Logger
	rateOverride    bool
	maxBlockSamples int

	blocks    []Block
	epochs    []Epoch
	offset    int64 // staged bytes
	finalized bool
}

// Create stages a new signal file destined for path. The layout facts in
// info are fixed for the file's lifetime.
func Create(path string, info SignalInfo, opts ...Option) (*Writer, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	if err := validateInfo(info); err != nil {
		return nil, err
	}

	pending, err := renameio.NewPendingFile(path,
		renameio.WithTempDir(filepath.Dir(path)),
		renameio.WithStaticPermissions(0o644))
	if err != nil {
		return nil, errors.Wrapf(err, "staging %s", path)
	}

	return &Writer{
		pending:         pending,
		path:            path,
		info:            info,
		logger:          o.logger,
		rateOverride:    o.rateOverride,
		maxBlockSamples: o.maxBlockSamples,
	}, nil
}

// AppendEpoch appends one epoch of samples, gap microseconds after the end
// of the previous epoch (after time 0 for the first). The matrix is split
// into blocks of at most the configured sample count, encoded, and staged;
// the new block descriptors are returned in file order.
func (w *Writer) AppendEpoch(sampleRate float64, samples [][]float64, gap int64) ([]Block, error) {
	if w.finalized {
		return nil, errors.Wrap(ErrWriterFinalized, w.path)
	}
	epoch := len(w.epochs)
	if gap < 0 {
		return nil, errors.Wrapf(ErrOverlappingEpochs, "epoch %d overlaps the previous epoch by %dµs", epoch, -gap)
	}
	if len(samples) != w.info.NumChannels {
		return nil, errors.Wrapf(ErrChannelCountMismatch, "epoch %d has %d channels, file has %d", epoch, len(samples), w.info.NumChannels)
	}
	n := len(samples[0])
	if n == 0 {
		return nil, errors.Wrapf(ErrInvalidRange, "epoch %d holds no samples", epoch)
	}
	for c, row := range samples {
		if len(row) != n {
			return nil, errors.Wrapf(ErrInvalidRange, "epoch %d: ragged sample matrix, channel %d has %d samples, channel 0 has %d", epoch, c, len(row), n)
		}
	}
	if sampleRate != w.info.SampleRate {
		if !w.rateOverride {
			return nil, errors.Wrapf(ErrSampleRateMismatch, "epoch %d declares %v Hz, file is %v Hz", epoch, sampleRate, w.info.SampleRate)
		}
		if err := validateRate(sampleRate); err != nil {
			return nil, errors.Wrapf(err, "epoch %d", epoch)
		}
	}

	begin := gap
	if epoch > 0 {
		begin += w.epochs[epoch-1].EndTime
	}
	durationUS := int64(math.Round(float64(n) / sampleRate * 1e6))

	blockInfo := w.info
	blockInfo.SampleRate = sampleRate

	// Encode every block before staging any byte so a failed append leaves
	// the pending file untouched.
	var encoded [][]byte
	var blocks []Block
	offset := w.offset
	for s := 0; s < n; s += w.maxBlockSamples {
		e := min(n, s+w.maxBlockSamples)
		part := make([][]float64, len(samples))
		for c := range samples {
			part[c] = samples[c][s:e]
		}
		buf, err := EncodeBlock(blockInfo, part)
		if err != nil {
			return nil, errors.Wrapf(err, "epoch %d", epoch)
		}
		blocks = append(blocks, Block{
			Number:       len(w.blocks) + len(blocks),
			ByteOffset:   offset,
			HeaderSize:   headerSizeFor(blockInfo),
			NumChannels:  blockInfo.NumChannels,
			NumSamples:   e - s,
			SampleRate:   sampleRate,
			Precision:    blockInfo.Precision,
			Layout:       blockInfo.Layout,
			ScaleFactors: blockInfo.ScaleFactors,
		})
		encoded = append(encoded, buf)
		offset += int64(len(buf))
	}

	for _, buf := range encoded {
		if _, err := w.pending.Write(buf); err != nil {
			return nil, errors.Wrapf(err, "writing block to %s", w.path)
		}
	}

	numbers := make([]int, len(blocks))
	for i, blk := range blocks {
		numbers[i] = blk.Number
	}
	w.offset = offset
	w.blocks = append(w.blocks, blocks...)
	w.epochs = append(w.epochs, Epoch{
		BeginTime:    begin,
		EndTime:      begin + durationUS,
		SampleRate:   sampleRate,
		BlockNumbers: numbers,
	})

	level.Debug(w.logger).Log("msg", "appended epoch",
		"epoch", epoch, "samples", n, "blocks", len(blocks), "gap_us", gap)

	return blocks, nil
}

// Finalize flushes and fsyncs the staged bytes and atomically renames them
// onto the destination path. The file is not valid until Finalize returns
// nil; the Writer is unusable afterwards.
func (w *Writer) Finalize() error {
	if w.finalized {
		return errors.Wrap(ErrWriterFinalized, w.path)
	}
	if err := w.pending.CloseAtomicallyReplace(); err != nil {
		return errors.Wrapf(err, "finalizing %s", w.path)
	}
	w.finalized = true

	level.Debug(w.logger).Log("msg", "finalized signal file",
		"path", w.path, "epochs", len(w.epochs), "blocks", len(w.blocks), "bytes", w.offset)

	return nil
}

// Abort drops the staged bytes. The destination path is left as it was.
// Aborting a finalized Writer is a no-op.
func (w *Writer) Abort() error {
	if w.finalized {
		return nil
	}
	w.finalized = true
	return w.pending.Cleanup()
}

// Info returns the file-global layout facts the Writer was created with.
func (w *Writer) Info() SignalInfo {
	return w.info
}

// Epochs returns a copy of the epochs appended so far, for the metadata
// layer to persist alongside the signal file.
func (w *Writer) Epochs() []Epoch {
	return append([]Epoch(nil), w.epochs...)
}

// Blocks returns a copy of the staged block table in file order.
func (w *Writer) Blocks() []Block {
	return append([]Block(nil), w.blocks...)
}
