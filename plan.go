/*
Copyright © 2026 the VectorBatch authors.
This file is part of VectorBatch.

VectorBatch is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

VectorBatch is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with VectorBatch.  If not, see <http://www.gnu.org/licenses/>.
*/

package vectorbatch

import "runtime"

// batch is one partition of an operation's input: a half-open rowid
// interval plus the total batch count it belongs to, the latter needed
// by the binder to know whether a batch_filter fragment is needed at
// all.
type batch struct {
	id         int
	lowerRowID int64
	upperRowID int64 // meaningless when openEnded is true
	openEnded  bool
	count      int
}

// processingPlan is the output of planBatches: the tuned parallelism,
// the batch list, and the span they were carved from.
type processingPlan struct {
	parallelism  int
	batches      []batch
	featureCount int64
	minRowID     int64
	maxRowID     int64
	width        int64
}

// cpuCount is the raw CPU count used for auto-tuning parallelism
// (planBatches applies the headroom); a var so tests can pin it.
var cpuCount = runtime.NumCPU

// planBatches implements the batch planner (spec.md §4.4): it tunes
// parallelism from featureCount when hint is -1, picks a batch count
// B from P and whether the operation is two-layer, and carves
// [minRowID, maxRowID] into B half-open intervals.
func planBatches(layer string, featureCount int64, minRowID, maxRowID int64, hint int, twoLayer bool) (processingPlan, error) {
	if featureCount == 0 {
		return processingPlan{
			parallelism:  1,
			batches:      []batch{{id: 0, lowerRowID: 0, upperRowID: 0, openEnded: true, count: 1}},
			featureCount: 0,
		}, nil
	}

	p := hint
	if hint == -1 {
		maxParallel := int(featureCount / 100)
		p = cpuCount()
		if maxParallel < p {
			p = maxParallel
		}
		if p > 4 {
			p--
		}
		if p < 1 {
			p = 1
		}
	}

	b := p
	if twoLayer {
		b = 4 * p
		if cap := int(featureCount / 10); b > cap {
			if cap < 1 {
				cap = 1
			}
			b = cap
		}
	}
	if p == 1 {
		b = 1
	}
	if b < p {
		p = b
	}

	span := maxRowID - minRowID
	width := span / int64(b)

	batches := make([]batch, b)
	for i := 0; i < b; i++ {
		lower := minRowID + int64(i)*width
		if i == b-1 {
			batches[i] = batch{id: i, lowerRowID: lower, openEnded: true, count: b}
			continue
		}
		upper := minRowID + int64(i+1)*width
		batches[i] = batch{id: i, lowerRowID: lower, upperRowID: upper, count: b}
	}

	return processingPlan{
		parallelism:  p,
		batches:      batches,
		featureCount: featureCount,
		minRowID:     minRowID,
		maxRowID:     maxRowID,
		width:        width,
	}, nil
}
