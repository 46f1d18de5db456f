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
	"strings"
	"testing"
)

func TestSmallerPrimitive(t *testing.T) {
	tests := []struct {
		a, b Primitive
		want Primitive
	}{
		{PrimitivePoint, PrimitivePolygon, PrimitivePoint},
		{PrimitiveLine, PrimitivePoint, PrimitivePoint},
		{PrimitivePolygon, PrimitiveLine, PrimitiveLine},
		{PrimitivePolygon, PrimitivePolygon, PrimitivePolygon},
	}
	for _, tt := range tests {
		if got := smallerPrimitive(tt.a, tt.b); got != tt.want {
			t.Errorf("smallerPrimitive(%v, %v): want %v, got %v", tt.a, tt.b, tt.want, got)
		}
	}
}

func TestPrimitiveCode(t *testing.T) {
	tests := []struct {
		p    Primitive
		want int
	}{
		{PrimitivePoint, 1},
		{PrimitiveLine, 2},
		{PrimitivePolygon, 3},
	}
	for _, tt := range tests {
		if got := primitiveCode(tt.p); got != tt.want {
			t.Errorf("primitiveCode(%v): want %d, got %d", tt.p, tt.want, got)
		}
	}
}

func TestIntersectGeometryType(t *testing.T) {
	req := OperationRequest{
		Input1: LayerDescriptor{GeometryType: GeometryType{Primitive: PrimitivePolygon}},
		Input2: &LayerDescriptor{GeometryType: GeometryType{Primitive: PrimitiveLine}},
	}
	got := intersectGeometryType(req)
	if got.Primitive != PrimitiveLine || !got.Multi {
		t.Errorf("want multi-line (the smaller primitive), got %+v", got)
	}
}

func TestLookupTemplateUnknownOperation(t *testing.T) {
	_, err := lookupTemplate("not-a-real-op")
	if err == nil {
		t.Fatal("want error for unknown operation name")
	}
}

func TestResolveOutputGeometryTypeCallerOverride(t *testing.T) {
	tmpl := operationTemplates["buffer"]
	req := OperationRequest{
		Input1:             LayerDescriptor{GeometryType: GeometryType{Primitive: PrimitivePolygon}},
		OutputGeometryType: GeometryType{Primitive: PrimitiveLine, Multi: true},
	}
	got := resolveOutputGeometryType(tmpl, req)
	if got.Primitive != PrimitiveLine {
		t.Errorf("caller-specified output geometry type must win, got %+v", got)
	}
}

func TestResolveOutputGeometryTypeDefault(t *testing.T) {
	tmpl := operationTemplates["buffer"]
	req := OperationRequest{Input1: LayerDescriptor{GeometryType: GeometryType{Primitive: PrimitivePoint}}}
	got := resolveOutputGeometryType(tmpl, req)
	if got.Primitive != PrimitivePolygon || !got.Multi {
		t.Errorf("buffer always outputs multi-polygon regardless of input, got %+v", got)
	}
}

func TestAreaFilterPostProcessRenamesColumn(t *testing.T) {
	req := OperationRequest{Params: map[string]interface{}{"area_inters_column": "overlap_area"}}
	got := areaFilterPostProcess("SELECT x, area_inters FROM t", req)
	if strings.Contains(got, "area_inters") {
		t.Errorf("want area_inters renamed throughout, got %q", got)
	}
	if !strings.Contains(got, "overlap_area") {
		t.Errorf("want renamed column present, got %q", got)
	}
}

func TestAreaFilterPostProcessAppliesThreshold(t *testing.T) {
	req := OperationRequest{Params: map[string]interface{}{"min_area_intersect": 10.0}}
	got := areaFilterPostProcess("SELECT x, area_inters FROM t", req)
	if !strings.Contains(got, `sub."area_inters" IS NULL OR sub."area_inters" >= 10`) {
		t.Errorf("want threshold wrapper with null-passthrough for outer-join misses, got %q", got)
	}
}

func TestAreaFilterPostProcessNoopWithoutParams(t *testing.T) {
	query := "SELECT x, area_inters FROM t"
	got := areaFilterPostProcess(query, OperationRequest{})
	if got != query {
		t.Errorf("want query unchanged when no area params are set, got %q", got)
	}
}

func TestSplitTemplateUnionsMatchAndNonMatchBranches(t *testing.T) {
	tmpl := operationTemplates["split"]
	if !tmpl.twoLayer {
		t.Fatal("split must be a two-layer template")
	}
	if !strings.Contains(tmpl.sql, "UNION ALL") {
		t.Error("split must union the matching and non-matching branches")
	}
	if strings.Count(tmpl.sql, "ST_CollectionExtract") != 2 {
		t.Error("both branches of split must collection-extract to the caller's primitive")
	}
}

func TestUnionEraseTemplateMirrorsSplitColumnOrder(t *testing.T) {
	// unionEraseTemplate plays split's difference branch with the two
	// layers swapped; its projection fragments must land in the same
	// l1_-then-l2_ slot order split's own difference branch uses, since
	// unionAppend joins the two phases together positionally.
	if !strings.Contains(unionEraseTemplate.sql, "{layer2_columns_prefix_alias_null_str}{layer1_columns_prefix_alias_str}") {
		t.Error("union erase phase must place the null-filled slot before the populated slot, matching split's schema")
	}
}
