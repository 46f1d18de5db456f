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
	"testing"
)

func TestIsShapefile(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"/data/parcels.shp", true},
		{"/data/PARCELS.SHP", true},
		{"/data/parcels.gpkg", false},
		{"/data/parcels", false},
	}
	for _, tt := range tests {
		if got := isShapefile(tt.path); got != tt.want {
			t.Errorf("isShapefile(%q): want %v, got %v", tt.path, tt.want, got)
		}
	}
}

func TestEnsureNativeNonShapefilePassesThrough(t *testing.T) {
	path, layer, cleanup, err := ensureNative(context.Background(), "/tmp", "/data/parcels.gpkg", "parcels")
	if err != nil {
		t.Fatal(err)
	}
	if path != "/data/parcels.gpkg" || layer != "parcels" {
		t.Errorf("want passthrough for a native container, got path=%q layer=%q", path, layer)
	}
	cleanup() // must be a harmless no-op
}

func TestEnsureNativeRejectsStemMismatch(t *testing.T) {
	_, _, _, err := ensureNative(context.Background(), "/tmp", "/data/parcels.shp", "zoning")
	if err == nil {
		t.Fatal("want error when the requested layer does not match the shapefile's stem")
	}
	if _, ok := err.(*PreconditionError); !ok {
		t.Fatalf("want *PreconditionError, got %T: %v", err, err)
	}
}

func TestNormalizeInputPassthroughForNativeContainer(t *testing.T) {
	in := LayerDescriptor{Path: "/data/parcels.gpkg", Layer: "parcels", GeometryColumn: "geom"}
	got, cleanup, err := normalizeInput(context.Background(), "/tmp", in)
	if err != nil {
		t.Fatal(err)
	}
	defer cleanup()
	if got.Path != in.Path || got.Layer != in.Layer || got.GeometryColumn != in.GeometryColumn {
		t.Errorf("want descriptor unchanged for an already-native container, got %+v", got)
	}
}
