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
	"bytes"
	"strings"
	"testing"

	"github.com/OpenPSG/mff"
	"github.com/OpenPSG/mff/mffxml"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const epochsFixture = `<?xml version="1.0" encoding="UTF-8"?>
<epochs xmlns="http://www.egi.com/epochs_mff">
    <epoch>
        <beginTime>0</beginTime>
        <endTime>400000</endTime>
        <firstBlock>1</firstBlock>
        <lastBlock>2</lastBlock>
    </epoch>
    <epoch>
        <beginTime>600000</beginTime>
        <endTime>1000000</endTime>
        <firstBlock>3</firstBlock>
        <lastBlock>3</lastBlock>
    </epoch>
</epochs>
`

func TestParseEpochs(t *testing.T) {
	list, err := mffxml.ParseEpochs(strings.NewReader(epochsFixture))
	require.NoError(t, err)

	require.Len(t, list.Epochs, 2)
	assert.Equal(t, mffxml.EpochEntry{BeginTime: 0, EndTime: 400000, FirstBlock: 1, LastBlock: 2}, list.Epochs[0])
	assert.Equal(t, mffxml.EpochEntry{BeginTime: 600000, EndTime: 1000000, FirstBlock: 3, LastBlock: 3}, list.Epochs[1])
}

func TestEpochListRoundTrip(t *testing.T) {
	list, err := mffxml.ParseEpochs(strings.NewReader(epochsFixture))
	require.NoError(t, err)

	var buf bytes.Buffer
	n, err := list.WriteTo(&buf)
	require.NoError(t, err)
	assert.Equal(t, int64(buf.Len()), n)

	again, err := mffxml.ParseEpochs(&buf)
	require.NoError(t, err)
	assert.Equal(t, list.Epochs, again.Epochs)
}

func TestEpochListBind(t *testing.T) {
	blocks := []mff.Block{
		{Number: 0, NumSamples: 64, SampleRate: 250},
		{Number: 1, NumSamples: 36, SampleRate: 250},
		{Number: 2, NumSamples: 100, SampleRate: 250},
	}

	list, err := mffxml.ParseEpochs(strings.NewReader(epochsFixture))
	require.NoError(t, err)

	epochs, err := list.Bind(blocks)
	require.NoError(t, err)
	require.Len(t, epochs, 2)
	assert.Equal(t, mff.Epoch{BeginTime: 0, EndTime: 400000, SampleRate: 250, BlockNumbers: []int{0, 1}}, epochs[0])
	assert.Equal(t, mff.Epoch{BeginTime: 600000, EndTime: 1000000, SampleRate: 250, BlockNumbers: []int{2}}, epochs[1])

	// Out-of-range block references.
	list.Epochs[1].LastBlock = 9
	_, err = list.Bind(blocks)
	require.Error(t, err)

	list.Epochs[1].FirstBlock, list.Epochs[1].LastBlock = 0, 1
	_, err = list.Bind(blocks)
	require.Error(t, err)
}

func TestBuildEpochList(t *testing.T) {
	epochs := []mff.Epoch{
		{BeginTime: 0, EndTime: 400000, SampleRate: 250, BlockNumbers: []int{0, 1}},
		{BeginTime: 600000, EndTime: 1000000, SampleRate: 250, BlockNumbers: []int{2}},
	}

	list := mffxml.BuildEpochList(epochs)
	require.Len(t, list.Epochs, 2)
	assert.Equal(t, 1, list.Epochs[0].FirstBlock)
	assert.Equal(t, 2, list.Epochs[0].LastBlock)
	assert.Equal(t, 3, list.Epochs[1].FirstBlock)
	assert.Equal(t, 3, list.Epochs[1].LastBlock)

	out, err := list.Marshal()
	require.NoError(t, err)
	assert.Contains(t, string(out), `xmlns="http://www.egi.com/epochs_mff"`)

	again, err := mffxml.ParseEpochs(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, list.Epochs, again.Epochs)
}
