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

import "testing"

func TestPlanBatchesEmptyLayer(t *testing.T) {
	plan, err := planBatches("t", 0, 0, 0, -1, false)
	if err != nil {
		t.Fatal(err)
	}
	if plan.parallelism != 1 || len(plan.batches) != 1 {
		t.Fatalf("want one batch at parallelism 1, got %+v", plan)
	}
	if !plan.batches[0].openEnded {
		t.Error("sole batch of an empty layer must be open-ended")
	}
}

func TestPlanBatchesAutoTuneParallelism(t *testing.T) {
	restore := cpuCount
	defer func() { cpuCount = restore }()

	tests := []struct {
		name         string
		cpus         int
		featureCount int64
		twoLayer     bool
		wantP        int
		wantB        int
	}{
		{"single-layer, plenty of cpus and features", 8, 100000, false, 7, 7},
		{"single-layer, cpu-bound small input", 8, 300, false, 3, 3},
		{"single-layer, one cpu", 1, 100000, false, 1, 1},
		{"two-layer, plenty of cpus and features", 8, 100000, true, 7, 28},
		{"two-layer, small input stays under the batch cap", 8, 300, true, 3, 12},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cpuCount = func() int { return tt.cpus }
			plan, err := planBatches("t", tt.featureCount, 1, 1000000, -1, tt.twoLayer)
			if err != nil {
				t.Fatal(err)
			}
			if plan.parallelism != tt.wantP {
				t.Errorf("parallelism: want %d, got %d", tt.wantP, plan.parallelism)
			}
			if len(plan.batches) != tt.wantB {
				t.Errorf("batch count: want %d, got %d", tt.wantB, len(plan.batches))
			}
		})
	}
}

func TestPlanBatchesHintOverridesAutoTune(t *testing.T) {
	plan, err := planBatches("t", 500000, 1, 1000000, 2, false)
	if err != nil {
		t.Fatal(err)
	}
	if plan.parallelism != 2 {
		t.Errorf("want parallelism 2 from explicit hint, got %d", plan.parallelism)
	}
	if len(plan.batches) != 2 {
		t.Errorf("want 2 batches, got %d", len(plan.batches))
	}
}

func TestPlanBatchesIntervalsCoverRange(t *testing.T) {
	plan, err := planBatches("t", 500000, 10, 1010, 4, false)
	if err != nil {
		t.Fatal(err)
	}
	if plan.batches[0].lowerRowID != 10 {
		t.Errorf("first batch should start at minRowID, got %d", plan.batches[0].lowerRowID)
	}
	last := plan.batches[len(plan.batches)-1]
	if !last.openEnded {
		t.Error("last batch must be open-ended so no row past maxRowID is dropped")
	}
	for i := 1; i < len(plan.batches); i++ {
		if plan.batches[i].lowerRowID != plan.batches[i-1].upperRowID {
			t.Errorf("batch %d does not start where batch %d ends: %d != %d",
				i, i-1, plan.batches[i].lowerRowID, plan.batches[i-1].upperRowID)
		}
	}
	for _, b := range plan.batches {
		if b.count != len(plan.batches) {
			t.Errorf("batch %d carries count %d, want %d", b.id, b.count, len(plan.batches))
		}
	}
}

func TestPlanBatchesSingleBatchForOneCPU(t *testing.T) {
	restore := cpuCount
	defer func() { cpuCount = restore }()
	cpuCount = func() int { return 1 }

	plan, err := planBatches("t", 100000, 0, 100000, -1, true)
	if err != nil {
		t.Fatal(err)
	}
	if len(plan.batches) != 1 {
		t.Errorf("a single CPU must force a single batch even for a two-layer op, got %d", len(plan.batches))
	}
}
