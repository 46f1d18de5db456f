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
	"os"
	"path/filepath"
	"testing"

	"github.com/ctessum/geom"
	geomshp "github.com/ctessum/geom/encoding/shp"

	"github.com/spatialmodel/vectorbatch/internal/engine"
)

type parcelRecord struct {
	Name    string
	Polygon geom.Polygon
}

// writeTestShapefile writes a two-feature polygon shapefile at
// dir/stem.shp, the fixture translateShapefile is exercised against
// below.
func writeTestShapefile(t *testing.T, dir, stem string) string {
	t.Helper()
	path := filepath.Join(dir, stem+".shp")
	enc, err := geomshp.NewEncoder(path, parcelRecord{})
	if err != nil {
		t.Fatalf("creating fixture shapefile: %v", err)
	}
	defer enc.Close()

	square := func(x, y float64) geom.Polygon {
		return geom.Polygon{{
			{X: x, Y: y}, {X: x + 1, Y: y}, {X: x + 1, Y: y + 1}, {X: x, Y: y + 1}, {X: x, Y: y},
		}}
	}
	records := []parcelRecord{
		{Name: "parcel-a", Polygon: square(0, 0)},
		{Name: "parcel-b", Polygon: square(10, 10)},
	}
	for _, r := range records {
		if err := enc.Encode(&r); err != nil {
			t.Fatalf("encoding fixture record: %v", err)
		}
	}
	return path
}

func TestEnsureNativeTranslatesShapefile(t *testing.T) {
	dir := t.TempDir()
	shpPath := writeTestShapefile(t, dir, "parcels")

	nativePath, nativeLayer, cleanup, err := ensureNative(context.Background(), dir, shpPath, "")
	if err != nil {
		t.Fatal(err)
	}
	defer cleanup()

	if nativeLayer != "parcels" {
		t.Errorf("want native layer name to match the file stem, got %q", nativeLayer)
	}
	if _, err := os.Stat(nativePath); err != nil {
		t.Fatalf("translated container was not created: %v", err)
	}

	conn, err := engine.Open(nativePath, false, engine.ProfileSafe)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	count, err := conn.FeatureCount(context.Background(), "parcels")
	if err != nil {
		t.Fatal(err)
	}
	if count != 2 {
		t.Errorf("want 2 translated features, got %d", count)
	}

	desc, err := Describe(context.Background(), conn, "parcels")
	if err != nil {
		t.Fatal(err)
	}
	if !desc.HasColumn("Name") {
		t.Errorf("want translated Name field to survive as a column, got %v", desc.Columns)
	}
}

func TestAppendPartialAndCreateSpatialIndexRoundTrip(t *testing.T) {
	dir := t.TempDir()

	destPath := filepath.Join(dir, "dest.gpkg")
	dest, err := engine.Open(destPath, true, engine.ProfileSafe)
	if err != nil {
		t.Fatal(err)
	}
	defer dest.Close()
	if _, err := dest.Exec(context.Background(), `CREATE TABLE "out" (geom BLOB, "name" TEXT)`); err != nil {
		t.Fatal(err)
	}

	partialPath := filepath.Join(dir, "partial.gpkg")
	partial, err := engine.Open(partialPath, true, engine.ProfileSpeed)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := partial.Exec(context.Background(), `CREATE TABLE "out" (geom BLOB, "name" TEXT)`); err != nil {
		t.Fatal(err)
	}
	if _, err := partial.Exec(context.Background(),
		`INSERT INTO "out" (geom, "name") VALUES (GeomFromText('POLYGON((0 0,1 0,1 1,0 1,0 0))', 4326), 'p1')`); err != nil {
		t.Fatal(err)
	}
	partial.Close()

	if err := appendPartial(context.Background(), dest, "out", partialPath, "out", "partial0"); err != nil {
		t.Fatal(err)
	}
	if err := createSpatialIndex(context.Background(), dest, "out", "geom"); err != nil {
		t.Fatal(err)
	}

	count, err := dest.FeatureCount(context.Background(), "out")
	if err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Errorf("want 1 appended row, got %d", count)
	}

	var rtreeRows int
	if err := dest.QueryRow(context.Background(), `SELECT COUNT(*) FROM rtree_out_geom`).Scan(&rtreeRows); err != nil {
		t.Fatal(err)
	}
	if rtreeRows != 1 {
		t.Errorf("want 1 row in the rtree side table, got %d", rtreeRows)
	}
}

func TestMoveRenamesLocalFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "scratch.gpkg")
	if err := os.WriteFile(src, []byte("fixture"), 0o644); err != nil {
		t.Fatal(err)
	}
	dest := filepath.Join(dir, "nested", "out.gpkg")

	if err := move(context.Background(), src, dest); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(dest); err != nil {
		t.Fatalf("want moved file at destination: %v", err)
	}
	if _, err := os.Stat(src); !os.IsNotExist(err) {
		t.Error("want scratch file gone after move")
	}
}
