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
	"strings"

	"github.com/spatialmodel/vectorbatch/internal/engine"
)

// Select runs the caller's own SQL against req.Input1, one batch only:
// spec.md §4.7 forces nb_parallel=1 for select because the query's
// aggregate semantics and row order are the caller's to define, not
// something the batch planner is allowed to fragment. filterNullGeoms
// defaults to false, also per spec.md §4.7.
func Select(ctx context.Context, req OperationRequest, sqlStmt string) error {
	c := newCoordinator(nil)
	req.ParallelismHint = 1
	tmpl := operationTemplate{
		name:               "select",
		sql:                sqlStmt,
		outputGeometryType: input1GeometryType,
	}
	_, err := c.runTemplate(ctx, tmpl, req, false)
	return err
}

// SelectTwoLayers is select's two-layer sibling (the original
// geofileops select_two_layers operation, dropped from the
// distillation but supplemented per SPEC_FULL.md §11): the caller's
// SQL runs once against both attached inputs, again forced to a
// single batch.
func SelectTwoLayers(ctx context.Context, req OperationRequest, sqlStmt string) error {
	c := newCoordinator(nil)
	req.ParallelismHint = 1
	tmpl := operationTemplate{
		name:               "select_two_layers",
		sql:                sqlStmt,
		twoLayer:           true,
		outputGeometryType: input1GeometryType,
	}
	_, err := c.runTemplate(ctx, tmpl, req, true)
	return err
}

// Dissolve unions every feature of req.Input1 grouped by
// groupByColumns (or a single constant group if groupByColumns is
// empty), in a single query with no batching, per spec.md §4.7.
func Dissolve(ctx context.Context, req OperationRequest, groupByColumns []string) error {
	cols, err := resolveColumns(req.Input1, groupByColumns)
	if err != nil {
		return err
	}

	groupExpr := "1"
	selectCols := ""
	if len(cols) > 0 {
		quoted := make([]string, len(cols))
		for i, col := range cols {
			quoted[i] = quoteColumn(col)
		}
		groupExpr = strings.Join(quoted, ", ")
		selectCols = ", " + groupExpr
	}

	sql := fmt.Sprintf(
		`SELECT ST_Union(t.%s) AS geom%s FROM %s t{batch_filter} GROUP BY %s`,
		quoteColumn(req.Input1.GeometryColumn), selectCols, quoteColumn(req.Input1.Layer), groupExpr,
	)

	c := newCoordinator(nil)
	req.ParallelismHint = 1
	tmpl := operationTemplate{
		name:               "dissolve",
		sql:                sql,
		filterNullGeoms:    true,
		outputGeometryType: input1MultiGeometryType,
	}
	_, err = c.runTemplate(ctx, tmpl, req, false)
	return err
}

// DissolveCardSheets is the bounded variant of Dissolve from
// SPEC_FULL.md §11: instead of one global union, it partitions the
// work along an externally supplied polygon grid (gridLayer), unions
// req.Input1 against each cell in turn, and appends the per-cell
// partials serially into the output. It is single-threaded, matching
// Dissolve and the caller-ordering constraints select shares.
func DissolveCardSheets(ctx context.Context, req OperationRequest, gridLayer LayerDescriptor, groupByColumns []string) error {
	if !req.Force {
		if _, err := os.Stat(req.OutputPath); err == nil {
			return &PreconditionError{Op: "dissolve_cardsheets", Reason: "output already exists", Details: req.OutputPath}
		}
	}

	cols, err := resolveColumns(req.Input1, groupByColumns)
	if err != nil {
		return err
	}
	groupExpr := "1"
	selectCols := ""
	if len(cols) > 0 {
		quoted := make([]string, len(cols))
		for i, c := range cols {
			quoted[i] = quoteColumn(c)
		}
		groupExpr = strings.Join(quoted, ", ")
		selectCols = ", " + groupExpr
	}

	scratchDir, err := os.MkdirTemp("", "vectorbatch-cardsheets-")
	if err != nil {
		return &IOError{Op: "dissolve_cardsheets", Path: scratchDir, Err: err}
	}
	defer os.RemoveAll(scratchDir)

	grid, err := engine.Open(gridLayer.Path, false, engine.ProfileSafe)
	if err != nil {
		return &IOError{Op: "dissolve_cardsheets", Path: gridLayer.Path, Err: err}
	}
	defer grid.Close()

	rows, err := grid.Query(ctx, fmt.Sprintf("SELECT rowid FROM %s", quoteColumn(gridLayer.Layer)))
	if err != nil {
		return &IOError{Op: "dissolve_cardsheets", Path: gridLayer.Path, Err: err}
	}
	var cellIDs []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return &IOError{Op: "dissolve_cardsheets", Path: gridLayer.Path, Err: err}
		}
		cellIDs = append(cellIDs, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return &IOError{Op: "dissolve_cardsheets", Path: gridLayer.Path, Err: err}
	}

	outputPath := scratchDir + "/consolidated.gpkg"
	out, err := engine.Open(outputPath, true, engine.ProfileSafe)
	if err != nil {
		return &IOError{Op: "dissolve_cardsheets", Path: outputPath, Err: err}
	}
	defer out.Close()
	if err := out.AttachDatabase(ctx, gridLayer.Path, "grid"); err != nil {
		return &IOError{Op: "dissolve_cardsheets", Path: gridLayer.Path, Err: err}
	}
	if err := out.AttachDatabase(ctx, req.Input1.Path, "input1"); err != nil {
		return &IOError{Op: "dissolve_cardsheets", Path: req.Input1.Path, Err: err}
	}

	var schemaInitialized bool
	var totalRows int64
	for _, cellID := range cellIDs {
		cellSQL := fmt.Sprintf(`
			SELECT ST_Union(ST_Intersection(t.%s, cell.%s)) AS geom%s
			  FROM input1.%s t, grid.%s cell
			 WHERE cell.rowid = %d
			   AND ST_Intersects(t.%s, cell.%s) = 1
			 GROUP BY %s`,
			quoteColumn(req.Input1.GeometryColumn), quoteColumn(gridLayer.GeometryColumn), selectCols,
			quoteColumn(req.Input1.Layer), quoteColumn(gridLayer.Layer),
			cellID,
			quoteColumn(req.Input1.GeometryColumn), quoteColumn(gridLayer.GeometryColumn),
			groupExpr,
		)
		cellSQL = filterNullGeoms(cellSQL)

		if !schemaInitialized {
			if _, err := out.Exec(ctx, fmt.Sprintf("CREATE TABLE %s AS %s", quoteColumn(req.OutputLayer), cellSQL)); err != nil {
				return &WorkerError{BatchID: int(cellID), SQL: cellSQL, Err: err}
			}
			n, err := out.FeatureCount(ctx, req.OutputLayer)
			if err != nil {
				return &IOError{Op: "dissolve_cardsheets", Path: outputPath, Err: err}
			}
			totalRows += n
			schemaInitialized = true
			continue
		}

		insertSQL := fmt.Sprintf("INSERT INTO %s %s", quoteColumn(req.OutputLayer), cellSQL)
		res, err := out.Exec(ctx, insertSQL)
		if err != nil {
			return &WorkerError{BatchID: int(cellID), SQL: insertSQL, Err: err}
		}
		if n, err := res.RowsAffected(); err == nil {
			totalRows += n
		}
	}

	if !schemaInitialized {
		return nil
	}
	if err := createSpatialIndex(ctx, out, req.OutputLayer, "geom"); err != nil {
		return err
	}
	return move(ctx, outputPath, req.OutputPath)
}

// unionAppend implements the union public operation's finalization
// step: append every row of eraseOutputPath's sole layer into
// splitOutputPath's output layer, re-index, and move the combined
// container to req.OutputPath.
func unionAppend(ctx context.Context, splitOutputPath, eraseOutputPath string, req OperationRequest) error {
	conn, err := engine.Open(splitOutputPath, false, engine.ProfileSafe)
	if err != nil {
		return &IOError{Op: "union", Path: splitOutputPath, Err: err}
	}
	defer conn.Close()

	if err := appendPartial(ctx, conn, req.OutputLayer, eraseOutputPath, req.OutputLayer, "eraseresult"); err != nil {
		return fmt.Errorf("union: appending erase phase: %w", err)
	}
	if err := createSpatialIndex(ctx, conn, req.OutputLayer, "geom"); err != nil {
		return fmt.Errorf("union: indexing: %w", err)
	}
	return move(ctx, splitOutputPath, req.OutputPath)
}
