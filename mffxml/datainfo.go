// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package mffxml

import (
	"encoding/xml"
	"io"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/OpenPSG/mff"
)

// DataInfo mirrors the calibration and filter sections of a signal file's
// dataInfo document (info1.xml and siblings).
type DataInfo struct {
	XMLName      xml.Name           `xml:"dataInfo"`
	Xmlns        string             `xml:"xmlns,attr"`
	Calibrations []CalibrationEntry `xml:"calibrations>calibration"`
	Filters      []FilterEntry      `xml:"filters>filter"`
}

// CalibrationEntry is one <calibration> element: a named set of per-channel
// gains effective from BeginTime.
type CalibrationEntry struct {
	Type      string        `xml:"type"`
	BeginTime int64         `xml:"beginTime"`
	Channels  []ChannelGain `xml:"channels>ch"`
}

// ChannelGain is one <ch n="i"> element. Channel numbers are 1-based.
type ChannelGain struct {
	N    int    `xml:"n,attr"`
	Gain string `xml:",chardata"`
}

// FilterEntry is one <filter> element, carried through verbatim for
// downstream display.
type FilterEntry struct {
	BeginTime       int64           `xml:"beginTime"`
	Method          string          `xml:"method"`
	Type            string          `xml:"type"`
	CutoffFrequency CutoffFrequency `xml:"cutoffFrequency"`
}

// CutoffFrequency is a filter's corner frequency with its unit attribute.
type CutoffFrequency struct {
	Value string `xml:",chardata"`
	Units string `xml:"units,attr"`
}

// ParseDataInfo decodes a dataInfo document.
func ParseDataInfo(r io.Reader) (DataInfo, error) {
	var info DataInfo
	if err := xml.NewDecoder(r).Decode(&info); err != nil {
		return DataInfo{}, errors.Wrap(err, "parsing dataInfo")
	}
	return info, nil
}

// Calibration extracts the named calibration (e.g. "GCAL") as an
// mff.Calibration over numChannels channels. Only calibrations effective
// from recording start are usable.
func (d DataInfo) Calibration(typ string, numChannels int) (mff.Calibration, error) {
	for _, entry := range d.Calibrations {
		if entry.Type != typ {
			continue
		}
		if entry.BeginTime != 0 {
			return mff.Calibration{}, errors.Errorf("calibration %q begins at %dµs, not at recording start", typ, entry.BeginTime)
		}
		gains := make(map[int]float64, len(entry.Channels))
		for _, ch := range entry.Channels {
			gain, err := strconv.ParseFloat(strings.TrimSpace(ch.Gain), 64)
			if err != nil {
				return mff.Calibration{}, errors.Wrapf(err, "calibration %q channel %d", typ, ch.N)
			}
			gains[ch.N] = gain
		}
		return mff.NewCalibration(numChannels, gains), nil
	}
	names := make([]string, 0, len(d.Calibrations))
	for _, entry := range d.Calibrations {
		names = append(names, entry.Type)
	}
	return mff.Calibration{}, errors.Errorf("no %q calibration; available: %v", typ, names)
}
