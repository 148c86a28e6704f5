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

// unitScale converts between the voltage units EEG containers record in.
// Keys are the source unit followed by the target unit.
var unitScale = map[string]float64{
	"VV":   1.0,
	"mVmV": 1.0,
	"uVuV": 1.0,
	"VmV":  1e3,
	"mVV":  1e-3,
	"VuV":  1e6,
	"uVV":  1e-6,
	"mVuV": 1e3,
	"uVmV": 1e-3,
}

// Calibration scales stored physical samples into calibrated values: one
// gain per channel plus a unit conversion factor applied uniformly. The zero
// value applies no scaling.
type Calibration struct {
	gains []float64
	scale float64
}

// NewCalibration builds a calibration for numChannels channels. Gains are
// keyed by 1-based channel number, matching the container's XML; channels
// without an entry keep a gain of 1.
func NewCalibration(numChannels int, gains map[int]float64) Calibration {
	g := make([]float64, numChannels)
	for i := range g {
		g[i] = 1.0
	}
	for n, gain := range gains {
		if n >= 1 && n <= numChannels {
			g[n-1] = gain
		}
	}
	return Calibration{gains: g, scale: 1.0}
}

// WithUnit returns a copy converting samples recorded in unit from into unit
// to, e.g. ("uV", "mV"). Unknown unit pairs are an error.
func (c Calibration) WithUnit(from, to string) (Calibration, error) {
	scale, ok := unitScale[from+to]
	if !ok {
		return Calibration{}, errors.Errorf("no unit conversion from %q to %q", from, to)
	}
	c.scale = scale
	return c, nil
}

// Apply returns a fresh matrix with every sample multiplied by its channel
// gain and the unit scale. The input is left untouched.
func (c Calibration) Apply(samples [][]float64) [][]float64 {
	scale := c.scale
	if scale == 0 {
		scale = 1.0
	}
	out := make([][]float64, len(samples))
	for ch, row := range samples {
		gain := 1.0
		if ch < len(c.gains) {
			gain = c.gains[ch]
		}
		out[ch] = make([]float64, len(row))
		for s, v := range row {
			out[ch][s] = gain * scale * v
		}
	}
	return out
}
