// +build spatialite

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

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/spatialmodel/vectorbatch/internal/engine"
)

// TestCoordinatorConsolidatesFakeWorkerOutput swaps executeBatch for a
// fake worker that writes a handful of rows per batch directly, so
// dispatch and consolidate are exercised without any operation
// template or SpatiaLite geometry function ever running. Still needs
// the SpatiaLite extension loadable, since engine.Open always verifies
// it; the "spatialite" build tag keeps this out of the default suite.
func TestCoordinatorConsolidatesFakeWorkerOutput(t *testing.T) {
	restore := executeBatch
	defer func() { executeBatch = restore }()

	rowsPerBatch := map[int]int64{0: 2, 1: 3}
	executeBatch = func(ctx context.Context, job batchJob) batchResult {
		partialPath := filepath.Join(job.scratchDir, fmt.Sprintf("fake-batch-%d.gpkg", job.batch.id))
		conn, err := engine.Open(partialPath, true, engine.ProfileSpeed)
		if err != nil {
			return batchResult{batchID: job.batch.id, err: err}
		}
		defer conn.Close()

		if _, err := conn.Exec(ctx, `CREATE TABLE out (geom BLOB, "name" TEXT)`); err != nil {
			return batchResult{batchID: job.batch.id, err: err}
		}
		n := rowsPerBatch[job.batch.id]
		for i := int64(0); i < n; i++ {
			if _, err := conn.Exec(ctx, `INSERT INTO out (geom, "name") VALUES (NULL, 'row')`); err != nil {
				return batchResult{batchID: job.batch.id, err: err}
			}
		}
		return batchResult{batchID: job.batch.id, partialPath: partialPath, rowCount: n}
	}

	scratchDir, err := os.MkdirTemp("", "vectorbatch-coordinator-test-")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(scratchDir)

	plan := processingPlan{
		parallelism: 2,
		batches: []batch{
			{id: 0, lowerRowID: 0, upperRowID: 2, count: 2},
			{id: 1, lowerRowID: 2, openEnded: true, count: 2},
		},
	}
	req := OperationRequest{OutputLayer: "out"}
	c := newCoordinator(nil)

	results, err := c.dispatch(context.Background(), operationTemplate{}, req, plan, scratchDir, "out", GeometryType{})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Fatalf("want 2 batch results, got %d", len(results))
	}

	consolidated, err := c.consolidate(context.Background(), scratchDir, req, results, GeometryType{})
	if err != nil {
		t.Fatal(err)
	}
	if consolidated == "" {
		t.Fatal("want a non-empty consolidated path")
	}

	out, err := engine.Open(consolidated, false, engine.ProfileSafe)
	if err != nil {
		t.Fatal(err)
	}
	defer out.Close()
	count, err := out.FeatureCount(context.Background(), "out")
	if err != nil {
		t.Fatal(err)
	}
	if count != 5 {
		t.Errorf("want 5 total rows across both batches, got %d", count)
	}
}
