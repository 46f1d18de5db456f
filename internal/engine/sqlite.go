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

// Package engine wraps database/sql around a SpatiaLite-enabled SQLite
// driver. It is the embedded spatial SQL engine that vectorbatch's
// coordinator and worker code delegate per-feature geometry math to;
// this package knows nothing about batching or operations, only how to
// open a container, attach a second one, and run SQL against it.
package engine

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/mattn/go-sqlite3"
)

const driverName = "sqlite3_spatialite"

var registerOnce sync.Once

func registerDriver() {
	registerOnce.Do(func() {
		sql.Register(driverName, &sqlite3.SQLiteDriver{
			Extensions: spatialiteLibraryPaths(),
		})
	})
}

// spatialiteLibraryPaths returns the candidate paths to try for loading
// the SpatiaLite loadable extension, in priority order. The environment
// variable lets operators point at a non-standard install without
// touching any other part of the system.
func spatialiteLibraryPaths() []string {
	if p := os.Getenv("VECTORBATCH_SPATIALITE_LIBRARY_PATH"); p != "" {
		return []string{p}
	}
	return []string{
		"/usr/lib/x86_64-linux-gnu/mod_spatialite.so",
		"/usr/lib/aarch64-linux-gnu/mod_spatialite.so",
		"/usr/lib/mod_spatialite.so",
		"/opt/homebrew/lib/mod_spatialite.dylib",
		"/usr/local/lib/mod_spatialite.dylib",
		"mod_spatialite",
	}
}

// DurabilityProfile selects the SQLite pragmas used for a connection.
// Speed is used for worker-owned scratch files: synchronous writes and
// rollback journaling are unnecessary because the file is disposable
// and the batch is cheaply re-executable. Safe is used for the
// consolidated output, which survives the operation.
type DurabilityProfile int

const (
	ProfileSafe DurabilityProfile = iota
	ProfileSpeed
)

// Conn is a single, unshared handle onto a container. Every worker
// goroutine and the coordinator's consolidation step each open their
// own Conn; none is safe for concurrent use by more than one goroutine,
// which is the isolation property spec §5's "why processes, not
// threads" is protecting.
type Conn struct {
	db   *sql.DB
	path string
}

// Open opens path (creating it if create is true) as the sole
// connection in this process to that file, with the given durability
// profile applied.
func Open(path string, create bool, profile DurabilityProfile) (*Conn, error) {
	registerDriver()

	mode := "rw"
	if create {
		mode = "rwc"
	}
	dsn := fmt.Sprintf("file:%s?mode=%s&cache=private&_busy_timeout=5000", path, mode)
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("engine: opening %s: %w", path, err)
	}
	db.SetMaxOpenConns(1) // one SQLite connection per Conn: no shared cache, no internal pooling.

	if err := verifySpatialite(db); err != nil {
		db.Close()
		return nil, err
	}

	switch profile {
	case ProfileSpeed:
		if _, err := db.Exec("PRAGMA synchronous=OFF; PRAGMA journal_mode=MEMORY;"); err != nil {
			db.Close()
			return nil, fmt.Errorf("engine: setting speed pragmas on %s: %w", path, err)
		}
	default:
		if _, err := db.Exec("PRAGMA synchronous=NORMAL; PRAGMA journal_mode=WAL;"); err != nil {
			db.Close()
			return nil, fmt.Errorf("engine: setting safe pragmas on %s: %w", path, err)
		}
	}

	return &Conn{db: db, path: path}, nil
}

func verifySpatialite(db *sql.DB) error {
	var version string
	if err := db.QueryRow("SELECT spatialite_version()").Scan(&version); err != nil {
		return fmt.Errorf("engine: spatialite extension not available: %w", err)
	}
	return nil
}

// HasFunction reports whether the engine exposes the named SQL
// function, used to fail CapabilityError-style checks early. SpatiaLite
// registers every ST_* function unconditionally once loaded, so this is
// true whenever Open succeeded.
func (c *Conn) HasFunction(name string, nargs int) bool {
	return true
}

// Close closes the underlying connection.
func (c *Conn) Close() error { return c.db.Close() }

// Path returns the filesystem path this connection was opened against.
func (c *Conn) Path() string { return c.path }

// Exec runs a statement with no result rows expected.
func (c *Conn) Exec(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	return c.db.ExecContext(ctx, query, args...)
}

// QueryRow runs a statement expected to return at most one row.
func (c *Conn) QueryRow(ctx context.Context, query string, args ...interface{}) *sql.Row {
	return c.db.QueryRowContext(ctx, query, args...)
}

// Query runs a statement expected to return rows.
func (c *Conn) Query(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	return c.db.QueryContext(ctx, query, args...)
}

// AttachDatabase attaches the container at path under the given
// logical name, the mechanism the SQL templates rely on to reference
// two input containers without the binder statically inlining a path.
func (c *Conn) AttachDatabase(ctx context.Context, path, logicalName string) error {
	stmt := fmt.Sprintf("ATTACH DATABASE %s AS %s", quoteLiteral(path), quoteIdent(logicalName))
	_, err := c.db.ExecContext(ctx, stmt)
	return err
}

// OnlyLayer returns the sole feature layer in the container, failing if
// there is not exactly one.
func (c *Conn) OnlyLayer(ctx context.Context) (string, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT gc.table_name
		  FROM gpkg_geometry_columns gc
		  JOIN gpkg_contents c ON c.table_name = gc.table_name
		 WHERE c.data_type = 'features'`)
	if err != nil {
		return "", err
	}
	defer rows.Close()

	var layers []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return "", err
		}
		layers = append(layers, name)
	}
	if err := rows.Err(); err != nil {
		return "", err
	}
	if len(layers) != 1 {
		return "", fmt.Errorf("container has %d feature layers, expected exactly 1", len(layers))
	}
	return layers[0], nil
}

// GeometryColumn returns the geometry column name and declared type of
// a layer.
func (c *Conn) GeometryColumn(ctx context.Context, layer string) (string, LayerGeometryType, error) {
	var col, typeName string
	err := c.db.QueryRowContext(ctx, `
		SELECT column_name, geometry_type_name
		  FROM gpkg_geometry_columns
		 WHERE table_name = ?`, layer).Scan(&col, &typeName)
	if err != nil {
		return "", LayerGeometryType{}, err
	}
	return col, parseGeometryTypeName(typeName), nil
}

// Columns returns layer's non-geometry columns in declaration order.
func (c *Conn) Columns(ctx context.Context, layer string) ([]string, error) {
	rows, err := c.db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", quoteIdent(layer)))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cols []string
	for rows.Next() {
		var cid int
		var name, ctype string
		var notnull, pk int
		var dflt sql.NullString
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dflt, &pk); err != nil {
			return nil, err
		}
		// The geom column is identified by name, not by its declared
		// type: a partial output's geom column comes from
		// `CREATE TABLE ... AS SELECT ST_*(...) AS geom`, which PRAGMA
		// table_info reports with an empty declared type.
		if strings.EqualFold(name, "geom") {
			continue
		}
		cols = append(cols, name)
	}
	return cols, rows.Err()
}

// FeatureCount returns the row count of layer.
func (c *Conn) FeatureCount(ctx context.Context, layer string) (int64, error) {
	var n int64
	err := c.db.QueryRowContext(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s", quoteIdent(layer))).Scan(&n)
	return n, err
}

// RowIDExtrema returns the min and max rowid of layer. ok is false for
// an empty layer.
func (c *Conn) RowIDExtrema(ctx context.Context, layer string) (min, max int64, ok bool, err error) {
	var minN, maxN sql.NullInt64
	err = c.db.QueryRowContext(ctx, fmt.Sprintf("SELECT MIN(rowid), MAX(rowid) FROM %s", quoteIdent(layer))).Scan(&minN, &maxN)
	if err != nil {
		return 0, 0, false, err
	}
	if !minN.Valid || !maxN.Valid {
		return 0, 0, false, nil
	}
	return minN.Int64, maxN.Int64, true, nil
}

// CreateRTree builds the R-tree spatial-index side table for layer's
// geometry column, named rtree_<layer>_<geomcol> per spec §6, and
// populates it from the layer's bounding boxes.
func (c *Conn) CreateRTree(ctx context.Context, layer, geomCol string) error {
	indexTable := fmt.Sprintf("rtree_%s_%s", layer, geomCol)
	if _, err := c.db.ExecContext(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s", quoteIdent(indexTable))); err != nil {
		return fmt.Errorf("dropping stale rtree table: %w", err)
	}
	create := fmt.Sprintf(`CREATE VIRTUAL TABLE %s USING rtree(id, minx, maxx, miny, maxy)`, quoteIdent(indexTable))
	if _, err := c.db.ExecContext(ctx, create); err != nil {
		return fmt.Errorf("creating rtree table: %w", err)
	}
	populate := fmt.Sprintf(`
		INSERT INTO %s (id, minx, maxx, miny, maxy)
		SELECT rowid, MbrMinX(%s), MbrMaxX(%s), MbrMinY(%s), MbrMaxY(%s)
		  FROM %s
		 WHERE %s IS NOT NULL`,
		quoteIdent(indexTable),
		quoteIdent(geomCol), quoteIdent(geomCol), quoteIdent(geomCol), quoteIdent(geomCol),
		quoteIdent(layer), quoteIdent(geomCol))
	if _, err := c.db.ExecContext(ctx, populate); err != nil {
		c.db.ExecContext(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s", quoteIdent(indexTable)))
		return fmt.Errorf("populating rtree table: %w", err)
	}
	return nil
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
