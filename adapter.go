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
	"strings"

	geomshp "github.com/ctessum/geom/encoding/shp"

	"github.com/spatialmodel/vectorbatch/internal/blobstore"
	"github.com/spatialmodel/vectorbatch/internal/engine"
)

// shapefileExtensions are the file-format families spec.md §3's
// "layer name == file stem" invariant applies to.
var shapefileExtensions = []string{".shp"}

func isShapefile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range shapefileExtensions {
		if ext == e {
			return true
		}
	}
	return false
}

// ensureNative returns a container path holding layer as a native
// SpatiaLite table, translating from a shapefile first if necessary.
// cleanup removes any scratch file it created and must always be
// called. For an already-native container, cleanup is a no-op.
func ensureNative(ctx context.Context, scratchDir, path, layer string) (nativePath, nativeLayer string, cleanup func(), err error) {
	if !isShapefile(path) {
		return path, layer, func() {}, nil
	}

	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	if layer != "" && !strings.EqualFold(layer, stem) {
		return "", "", nil, &PreconditionError{
			Op:      "ensureNative",
			Reason:  "shapefile layer name must match the file stem",
			Details: fmt.Sprintf("file %q, requested layer %q", stem, layer),
		}
	}

	out := filepath.Join(scratchDir, stem+".gpkg")
	if err := translateShapefile(ctx, path, out, stem); err != nil {
		return "", "", nil, &IOError{Op: "translate", Path: path, Err: err}
	}
	return out, stem, func() { os.Remove(out) }, nil
}

// translateShapefile reads a shapefile with the ctessum/geom shapefile
// decoder (itself a wrapper around jonas-p/go-shp) and writes its
// features into a fresh SpatiaLite container as layer.
func translateShapefile(ctx context.Context, shpPath, outPath, layer string) error {
	dec, err := geomshp.NewDecoder(shpPath)
	if err != nil {
		return fmt.Errorf("opening shapefile %s: %w", shpPath, err)
	}
	defer dec.Close()

	conn, err := engine.Open(outPath, true, engine.ProfileSpeed)
	if err != nil {
		return fmt.Errorf("creating container %s: %w", outPath, err)
	}
	defer conn.Close()

	columns := make([]string, 0)
	for _, f := range dec.Fields() {
		columns = append(columns, f.String())
	}

	if err := createFeatureTable(ctx, conn, layer, columns); err != nil {
		return err
	}

	insertCols := append([]string{"geom"}, columns...)
	placeholders := "GeomFromWKB(?, 4326)" + strings.Repeat(",?", len(insertCols)-1)
	insertSQL := fmt.Sprintf(
		`INSERT INTO %s (%s) VALUES (%s)`,
		quoteColumn(layer), quotedColumnList(insertCols), placeholders,
	)

	for {
		geom, rowFields, more := dec.DecodeRowFields(columns...)
		if !more {
			break
		}
		wkb, err := encodeWKB(geom)
		if err != nil {
			return fmt.Errorf("encoding shapefile geometry: %w", err)
		}
		args := make([]interface{}, 0, len(insertCols))
		args = append(args, wkb)
		for _, c := range columns {
			args = append(args, rowFields[c])
		}
		if _, err := conn.Exec(ctx, insertSQL, args...); err != nil {
			return fmt.Errorf("inserting shapefile row: %w", err)
		}
	}
	if err := dec.Error(); err != nil {
		return fmt.Errorf("decoding shapefile: %w", err)
	}
	return nil
}

func quotedColumnList(cols []string) string {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = quoteColumn(c)
	}
	return strings.Join(quoted, ", ")
}

// normalizeInput ensures in's container is native, translating it via
// ensureNative if necessary and re-describing the result so the
// returned LayerDescriptor's geometry column, column list, and feature
// count reflect the translated container rather than the stale values
// (if any) the caller passed in. cleanup removes any scratch file
// created and must always be called.
func normalizeInput(ctx context.Context, scratchDir string, in LayerDescriptor) (LayerDescriptor, func(), error) {
	nativePath, nativeLayer, cleanup, err := ensureNative(ctx, scratchDir, in.Path, in.Layer)
	if err != nil {
		return LayerDescriptor{}, nil, err
	}
	if nativePath == in.Path {
		return in, cleanup, nil
	}

	conn, err := engine.Open(nativePath, false, engine.ProfileSafe)
	if err != nil {
		cleanup()
		return LayerDescriptor{}, nil, &IOError{Op: "normalize", Path: nativePath, Err: err}
	}
	defer conn.Close()

	desc, err := Describe(ctx, conn, nativeLayer)
	if err != nil {
		cleanup()
		return LayerDescriptor{}, nil, err
	}
	return desc, cleanup, nil
}

// createFeatureTable creates layer plus the gpkg_contents /
// gpkg_geometry_columns metadata rows a GeoPackage-family reader
// expects to find.
func createFeatureTable(ctx context.Context, conn *engine.Conn, layer string, columns []string) error {
	cols := "geom BLOB"
	for _, c := range columns {
		cols += fmt.Sprintf(", %s TEXT", quoteColumn(c))
	}
	if _, err := conn.Exec(ctx, fmt.Sprintf("CREATE TABLE %s (%s)", quoteColumn(layer), cols)); err != nil {
		return fmt.Errorf("creating feature table: %w", err)
	}
	if _, err := conn.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS gpkg_contents (
			table_name TEXT NOT NULL PRIMARY KEY, data_type TEXT NOT NULL, identifier TEXT)`); err != nil {
		return fmt.Errorf("creating gpkg_contents: %w", err)
	}
	if _, err := conn.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS gpkg_geometry_columns (
			table_name TEXT NOT NULL, column_name TEXT NOT NULL, geometry_type_name TEXT NOT NULL)`); err != nil {
		return fmt.Errorf("creating gpkg_geometry_columns: %w", err)
	}
	if _, err := conn.Exec(ctx, `
		INSERT INTO gpkg_contents (table_name, data_type, identifier)
		VALUES (?, 'features', ?)`, layer, layer); err != nil {
		return fmt.Errorf("registering gpkg_contents: %w", err)
	}
	if _, err := conn.Exec(ctx, `
		INSERT INTO gpkg_geometry_columns (table_name, column_name, geometry_type_name)
		VALUES (?, 'geom', 'GEOMETRY')`, layer); err != nil {
		return fmt.Errorf("registering gpkg_geometry_columns: %w", err)
	}
	return nil
}

// appendPartial attaches a worker's partial-output container and
// copies its rows into dest's output layer, in the order batches were
// produced. It is always called serially by the coordinator; this is
// the one adapter operation spec.md §5 does not allow to run
// concurrently, since SQLite permits only one writer.
func appendPartial(ctx context.Context, dest *engine.Conn, outputLayer string, partialPath, partialLayer string, attachName string) error {
	if err := dest.AttachDatabase(ctx, partialPath, attachName); err != nil {
		return &IOError{Op: "append", Path: partialPath, Err: err}
	}
	insertSQL := fmt.Sprintf(`INSERT INTO %s SELECT * FROM %s.%s`, quoteColumn(outputLayer), attachName, quoteColumn(partialLayer))
	if _, err := dest.Exec(ctx, insertSQL); err != nil {
		return &IOError{Op: "append", Path: partialPath, Err: err}
	}
	if _, err := dest.Exec(ctx, fmt.Sprintf("DETACH DATABASE %s", attachName)); err != nil {
		return &IOError{Op: "append", Path: partialPath, Err: err}
	}
	return nil
}

// createSpatialIndex builds and registers the rtree_<layer>_<geomcol>
// side table on the consolidated output. It is never run against
// partial (per-batch) outputs, per spec.md §4.5.
func createSpatialIndex(ctx context.Context, conn *engine.Conn, layer, geomCol string) error {
	if err := conn.CreateRTree(ctx, layer, geomCol); err != nil {
		return &IOError{Op: "index", Path: layer, Err: err}
	}
	return nil
}

// move finalizes a scratch container to its destination: a local
// rename if dest is a filesystem path, or an upload through
// internal/blobstore if dest is a blob URL (gs://, s3:// or file://).
func move(ctx context.Context, scratchPath, dest string) error {
	if blobstore.IsBlobURL(dest) {
		if err := blobstore.Upload(ctx, scratchPath, dest); err != nil {
			return &IOError{Op: "move", Path: dest, Err: err}
		}
		return os.Remove(scratchPath)
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return &IOError{Op: "move", Path: dest, Err: err}
	}
	if err := os.Rename(scratchPath, dest); err != nil {
		return &IOError{Op: "move", Path: dest, Err: err}
	}
	return nil
}

// removeScratchDir removes an operation's scratch directory and
// everything under it, ignoring a missing directory.
func removeScratchDir(dir string) error {
	if dir == "" {
		return nil
	}
	if err := os.RemoveAll(dir); err != nil {
		return &IOError{Op: "cleanup", Path: dir, Err: err}
	}
	return nil
}
