// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

/*
Package mff reads and writes the raw signal files of an MFF-style EEG
recording container: binary files partitioned into time-ordered epochs, each
epoch stored as a run of fixed-layout blocks of per-channel samples.

A signal file is a dense sequence of blocks with no padding between them,
from offset 0 to end of file. Every block is a fixed-size header followed
immediately by its sample payload. All integers are little-endian:

	offset  size  field
	0       1     version/flag byte
	              bits 7..4  format version, currently 1
	              bit  0     payload order: 0 interleaved, 1 channel-major
	              bit  1     scale-factor array present
	              bits 2..3  reserved, must be zero
	1       4     channel count (uint32, > 0)
	5       4     samples per channel (uint32, > 0)
	9       1     bytes per sample: 2 (int16), 4 (float32), 8 (float64)
	10      4     sample rate in Hz (uint32, > 0)
	14      4*C   per-channel float32 scale factors, present iff flag bit 1

An interleaved payload stores sample 0 of every channel, then sample 1 of
every channel, and so on; a channel-major payload stores every sample of
channel 0, then channel 1, and so on. Sample values are int16 two's
complement or IEEE-754 float32/float64, little-endian. Scale factors are
carried verbatim for downstream calibration and never applied by the codec.

Epoch metadata (begin/end times in microseconds, sample rate, block runs)
arrives from the container's XML layer; the mffxml subpackage parses the
relevant documents. A Reader resolves time windows through an epoch catalog
onto the block table; a Writer stages blocks in a pending temp file and
publishes the destination path atomically on Finalize.
*/
package mff
