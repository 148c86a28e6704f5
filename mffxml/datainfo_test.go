// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package mffxml_test

import (
	"strings"
	"testing"

	"github.com/OpenPSG/mff/mffxml"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const dataInfoFixture = `<?xml version="1.0" encoding="UTF-8"?>
<dataInfo xmlns="http://www.egi.com/info_n_mff">
    <fileDataType>
        <EEG/>
    </fileDataType>
    <calibrations>
        <calibration>
            <beginTime>0</beginTime>
            <type>GCAL</type>
            <channels>
                <ch n="1">407.0</ch>
                <ch n="2">406.5</ch>
                <ch n="3">408.25</ch>
            </channels>
        </calibration>
        <calibration>
            <beginTime>5000</beginTime>
            <type>ICAL</type>
            <channels>
                <ch n="1">1.0</ch>
            </channels>
        </calibration>
    </calibrations>
    <filters>
        <filter>
            <beginTime>0</beginTime>
            <method>Hardware</method>
            <type>highpass</type>
            <cutoffFrequency units="Hz">0.1</cutoffFrequency>
        </filter>
    </filters>
</dataInfo>
`

func TestParseDataInfo(t *testing.T) {
	info, err := mffxml.ParseDataInfo(strings.NewReader(dataInfoFixture))
	require.NoError(t, err)

	require.Len(t, info.Calibrations, 2)
	assert.Equal(t, "GCAL", info.Calibrations[0].Type)
	assert.Equal(t, int64(0), info.Calibrations[0].BeginTime)
	require.Len(t, info.Calibrations[0].Channels, 3)
	assert.Equal(t, 2, info.Calibrations[0].Channels[1].N)

	require.Len(t, info.Filters, 1)
	assert.Equal(t, "Hardware", info.Filters[0].Method)
	assert.Equal(t, "highpass", info.Filters[0].Type)
	assert.Equal(t, "Hz", info.Filters[0].CutoffFrequency.Units)
	assert.Equal(t, "0.1", strings.TrimSpace(info.Filters[0].CutoffFrequency.Value))
}

func TestDataInfoCalibration(t *testing.T) {
	info, err := mffxml.ParseDataInfo(strings.NewReader(dataInfoFixture))
	require.NoError(t, err)

	cal, err := info.Calibration("GCAL", 4)
	require.NoError(t, err)

	got := cal.Apply([][]float64{{1}, {1}, {1}, {1}})
	assert.Equal(t, 407.0, got[0][0])
	assert.Equal(t, 406.5, got[1][0])
	assert.Equal(t, 408.25, got[2][0])
	assert.Equal(t, 1.0, got[3][0]) // no entry, unity gain

	// Calibrations that do not start at recording begin are unusable.
	_, err = info.Calibration("ICAL", 4)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "recording start")

	// Unknown calibration names report what is available.
	_, err = info.Calibration("ZCAL", 4)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GCAL")
}
