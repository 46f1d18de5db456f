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
	"path/filepath"

	"github.com/spatialmodel/vectorbatch/internal/engine"
)

// batchJob is everything executeBatch needs to run one batch in
// isolation: its own engine handle, attached to no other worker's
// state.
type batchJob struct {
	batch       batch
	tmpl        operationTemplate
	req         OperationRequest
	scratchDir  string
	outputLayer string
	outputType  GeometryType
}

// batchResult is what a worker reports back to the coordinator.
type batchResult struct {
	batchID     int
	partialPath string
	rowCount    int64
	err         error
}

// executeBatch implements the worker executor contract (spec.md §4.5):
// open a fresh engine handle, attach the input container(s) under their
// logical names, bind the template to this batch, run it as a
// CREATE TABLE ... AS SELECT against a scratch output with the speed
// durability profile, and report the row count produced. No spatial
// index is built on the partial output. A package var, not a plain
// func, so coordinator tests can swap in a fake worker that runs no
// operation template or geometry function.
var executeBatch = func(ctx context.Context, job batchJob) batchResult {
	partialPath := filepath.Join(job.scratchDir, fmt.Sprintf("batch-%04d.gpkg", job.batch.id))

	conn, err := engine.Open(partialPath, true, engine.ProfileSpeed)
	if err != nil {
		return batchResult{batchID: job.batch.id, err: &WorkerError{BatchID: job.batch.id, Err: err}}
	}
	defer conn.Close()

	input1Path := job.req.Input1.Path
	if err := conn.AttachDatabase(ctx, input1Path, "input1"); err != nil {
		return batchResult{batchID: job.batch.id, err: &WorkerError{BatchID: job.batch.id, Err: err}}
	}
	if job.tmpl.twoLayer && job.req.Input2 != nil {
		if err := conn.AttachDatabase(ctx, job.req.Input2.Path, "input2"); err != nil {
			return batchResult{batchID: job.batch.id, err: &WorkerError{BatchID: job.batch.id, Err: err}}
		}
	}

	selectSQL, err := bind(job.tmpl, job.req, job.batch)
	if err != nil {
		return batchResult{batchID: job.batch.id, err: err}
	}

	createSQL := fmt.Sprintf(`CREATE TABLE %s AS %s`, quoteColumn(job.outputLayer), selectSQL)
	if _, err := conn.Exec(ctx, createSQL); err != nil {
		return batchResult{batchID: job.batch.id, partialPath: partialPath, err: &WorkerError{BatchID: job.batch.id, SQL: createSQL, Err: err}}
	}

	if err := coerceOutputGeometryType(ctx, conn, job.outputLayer, job.outputType, job.req.ExplodeCollections); err != nil {
		return batchResult{batchID: job.batch.id, partialPath: partialPath, err: &WorkerError{BatchID: job.batch.id, SQL: createSQL, Err: err}}
	}

	count, err := conn.FeatureCount(ctx, job.outputLayer)
	if err != nil {
		return batchResult{batchID: job.batch.id, partialPath: partialPath, err: &WorkerError{BatchID: job.batch.id, SQL: createSQL, Err: err}}
	}

	return batchResult{batchID: job.batch.id, partialPath: partialPath, rowCount: count}
}

// coerceOutputGeometryType casts layer's geom column to outputType and,
// if explode is set, rewrites layer so that every row holding an
// N-member geometry collection becomes N rows, each holding one
// member and a copy of the original row's other columns.
func coerceOutputGeometryType(ctx context.Context, conn *engine.Conn, layer string, outputType GeometryType, explode bool) error {
	castSQL := fmt.Sprintf(
		`UPDATE %s SET geom = CastToMulti(geom) WHERE GeometryType(geom) NOT LIKE 'MULTI%%'`,
		quoteColumn(layer),
	)
	if !outputType.Multi {
		castSQL = fmt.Sprintf(`UPDATE %s SET geom = CastToSingle(geom) WHERE GeometryType(geom) LIKE 'MULTI%%'`, quoteColumn(layer))
	}
	if _, err := conn.Exec(ctx, castSQL); err != nil {
		return fmt.Errorf("coercing output geometry type: %w", err)
	}

	if explode {
		if err := explodeCollections(ctx, conn, layer); err != nil {
			return fmt.Errorf("exploding collections: %w", err)
		}
	}
	return nil
}

// explodeCollections replaces layer with a version where each row's
// geometry has been split into its elementary members via a recursive
// walk over ST_NumGeometries/ST_GeometryN, one output row per member,
// every other column copied unchanged from the source row.
func explodeCollections(ctx context.Context, conn *engine.Conn, layer string) error {
	cols, err := conn.Columns(ctx, layer)
	if err != nil {
		return err
	}

	otherCols := ""
	for _, c := range cols {
		otherCols += fmt.Sprintf(", t.%s", quoteColumn(c))
	}

	tmpLayer := quoteColumn(layer + "__exploded")
	layerQ := quoteColumn(layer)

	explodeSQL := fmt.Sprintf(`
		CREATE TABLE %s AS
		WITH RECURSIVE members(rid, n, geom) AS (
			SELECT rowid, 1, ST_GeometryN(geom, 1) FROM %s
			UNION ALL
			SELECT rid, n + 1, ST_GeometryN((SELECT geom FROM %s WHERE rowid = rid), n + 1)
			  FROM members
			 WHERE n < (SELECT ST_NumGeometries(geom) FROM %s WHERE rowid = rid)
		)
		SELECT members.geom AS geom%s
		  FROM members JOIN %s t ON t.rowid = members.rid`,
		tmpLayer, layerQ, layerQ, layerQ, otherCols, layerQ,
	)
	if _, err := conn.Exec(ctx, explodeSQL); err != nil {
		return err
	}
	if _, err := conn.Exec(ctx, fmt.Sprintf("DROP TABLE %s", layerQ)); err != nil {
		return err
	}
	if _, err := conn.Exec(ctx, fmt.Sprintf("ALTER TABLE %s RENAME TO %s", tmpLayer, layerQ)); err != nil {
		return err
	}
	return nil
}
