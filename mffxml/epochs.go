// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

// Package mffxml parses the XML metadata documents that carry an MFF
// container's epoch and calibration facts into the forms the mff package
// consumes. Schema validation, sensor layouts, categories and the rest of
// the container's XML surface are out of scope.
package mffxml

import (
	"encoding/xml"
	"io"

	"github.com/pkg/errors"

	"github.com/OpenPSG/mff"
)

const epochsNamespace = "http://www.egi.com/epochs_mff"

// EpochList mirrors the epochs.xml document: the container's record of how
// the recording timeline partitions onto block runs.
type EpochList struct {
	XMLName xml.Name     `xml:"epochs"`
	Xmlns   string       `xml:"xmlns,attr"`
	Epochs  []EpochEntry `xml:"epoch"`
}

// EpochEntry is one <epoch> element. Times are microseconds from recording
// start; block references are 1-based and inclusive.
type EpochEntry struct {
	BeginTime  int64 `xml:"beginTime"`
	EndTime    int64 `xml:"endTime"`
	FirstBlock int   `xml:"firstBlock"`
	LastBlock  int   `xml:"lastBlock"`
}

// ParseEpochs decodes an epochs.xml document.
func ParseEpochs(r io.Reader) (EpochList, error) {
	var list EpochList
	if err := xml.NewDecoder(r).Decode(&list); err != nil {
		return EpochList{}, errors.Wrap(err, "parsing epochs.xml")
	}
	return list, nil
}

// Marshal renders the document with the XML header and EGI namespace.
// Marshalling a parsed list reproduces the same logical document.
func (el EpochList) Marshal() ([]byte, error) {
	el.Xmlns = epochsNamespace
	body, err := xml.MarshalIndent(el, "", "    ")
	if err != nil {
		return nil, errors.Wrap(err, "marshalling epochs.xml")
	}
	return append([]byte(xml.Header), append(body, '\n')...), nil
}

// WriteTo writes the marshalled document to w.
func (el EpochList) WriteTo(w io.Writer) (int64, error) {
	b, err := el.Marshal()
	if err != nil {
		return 0, err
	}
	n, err := w.Write(b)
	return int64(n), err
}

// Bind resolves the 1-based inclusive block ranges against a signal file's
// block table, taking each epoch's sample rate from its first block — the
// container keeps rates in the binary file, not in epochs.xml.
func (el EpochList) Bind(blocks []mff.Block) ([]mff.Epoch, error) {
	epochs := make([]mff.Epoch, 0, len(el.Epochs))
	for i, entry := range el.Epochs {
		if entry.FirstBlock < 1 || entry.LastBlock < entry.FirstBlock || entry.LastBlock > len(blocks) {
			return nil, errors.Errorf("epoch %d: block range [%d, %d] outside 1..%d", i, entry.FirstBlock, entry.LastBlock, len(blocks))
		}
		numbers := make([]int, 0, entry.LastBlock-entry.FirstBlock+1)
		for b := entry.FirstBlock - 1; b < entry.LastBlock; b++ {
			numbers = append(numbers, blocks[b].Number)
		}
		epochs = append(epochs, mff.Epoch{
			BeginTime:    entry.BeginTime,
			EndTime:      entry.EndTime,
			SampleRate:   blocks[entry.FirstBlock-1].SampleRate,
			BlockNumbers: numbers,
		})
	}
	return epochs, nil
}

// BuildEpochList converts a Writer's epoch table into the epochs.xml shape
// for persisting alongside a finalized signal file.
func BuildEpochList(epochs []mff.Epoch) EpochList {
	list := EpochList{Xmlns: epochsNamespace}
	for _, ep := range epochs {
		entry := EpochEntry{BeginTime: ep.BeginTime, EndTime: ep.EndTime}
		if len(ep.BlockNumbers) > 0 {
			entry.FirstBlock = ep.BlockNumbers[0] + 1
			entry.LastBlock = ep.BlockNumbers[len(ep.BlockNumbers)-1] + 1
		}
		list.Epochs = append(list.Epochs, entry)
	}
	return list
}
