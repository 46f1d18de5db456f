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

func TestResolveColumnsAllWhenNil(t *testing.T) {
	layer := LayerDescriptor{Columns: []string{"id", "name", "area"}}
	got, err := resolveColumns(layer, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 || got[0] != "id" || got[2] != "area" {
		t.Errorf("want all columns in declared order, got %v", got)
	}
}

func TestResolveColumnsCaseInsensitive(t *testing.T) {
	layer := LayerDescriptor{Columns: []string{"ID", "Name"}}
	got, err := resolveColumns(layer, []string{"id", "NAME"})
	if err != nil {
		t.Fatal(err)
	}
	if got[0] != "ID" || got[1] != "Name" {
		t.Errorf("want declared casing preserved, got %v", got)
	}
}

func TestResolveColumnsUnknownColumn(t *testing.T) {
	layer := LayerDescriptor{Columns: []string{"id"}}
	_, err := resolveColumns(layer, []string{"id", "bogus"})
	if err == nil {
		t.Fatal("want error for unknown column")
	}
	pe, ok := err.(*PreconditionError)
	if !ok {
		t.Fatalf("want *PreconditionError, got %T: %v", err, err)
	}
	if !strings.Contains(pe.Details, "bogus") {
		t.Errorf("want unknown column named in details, got %q", pe.Details)
	}
}

func TestProjectionFragments(t *testing.T) {
	alias, null, sub, plain := projectionFragments([]string{"name", "area"}, "l1_", "layer1")

	wantAlias := `, layer1."name" AS "l1_name", layer1."area" AS "l1_area"`
	if alias != wantAlias {
		t.Errorf("alias: want %q, got %q", wantAlias, alias)
	}
	wantNull := `, NULL AS "l1_name", NULL AS "l1_area"`
	if null != wantNull {
		t.Errorf("null: want %q, got %q", wantNull, null)
	}
	wantSub := `, sub."l1_name", sub."l1_area"`
	if sub != wantSub {
		t.Errorf("sub: want %q, got %q", wantSub, sub)
	}
	wantPlain := `, "name", "area"`
	if plain != wantPlain {
		t.Errorf("plain: want %q, got %q", wantPlain, plain)
	}
}

func TestBatchFilterFragment(t *testing.T) {
	tests := []struct {
		name   string
		alias  string
		lower  int64
		upper  int64
		open   bool
		single bool
		want   string
	}{
		{"single batch needs no filter", "layer1", 0, 100, false, true, ""},
		{"closed interval qualified by alias", "layer1", 10, 20, false, false, " AND layer1.rowid >= 10 AND layer1.rowid < 20"},
		{"open-ended final batch", "layer1", 90, 0, true, false, " AND layer1.rowid >= 90"},
		{"unqualified single-table template", "", 10, 20, false, false, " AND rowid >= 10 AND rowid < 20"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := batchFilterFragment(tt.alias, tt.lower, tt.upper, tt.open, tt.single)
			if got != tt.want {
				t.Errorf("want %q, got %q", tt.want, got)
			}
		})
	}
}

func TestBindParams(t *testing.T) {
	query := "SELECT ST_Buffer(geom, :distance, :quadrantsegments) FROM t"
	got := bindParams(query, map[string]interface{}{"distance": 5.5, "quadrantsegments": 8})
	want := "SELECT ST_Buffer(geom, 5.5, 8) FROM t"
	if got != want {
		t.Errorf("want %q, got %q", want, got)
	}
}

func TestFilterNullGeoms(t *testing.T) {
	got := filterNullGeoms("SELECT geom FROM t")
	want := `SELECT sub.* FROM (SELECT geom FROM t) sub WHERE sub.geom IS NOT NULL`
	if got != want {
		t.Errorf("want %q, got %q", want, got)
	}
}

func TestBindSingleLayerTemplate(t *testing.T) {
	tmpl := operationTemplate{
		name:               "simplify",
		sql:                `SELECT ST_Simplify(t.{geometrycolumn}, :tolerance) AS geom{columns_to_select_str} FROM "{input_layer}" t WHERE 1=1{batch_filter}`,
		filterNullGeoms:    true,
		outputGeometryType: input1GeometryType,
	}
	req := OperationRequest{
		Input1:      LayerDescriptor{Layer: "parcels", GeometryColumn: "geom", Columns: []string{"id", "owner"}},
		Projection1: ColumnProjection{},
		Params:      map[string]interface{}{"tolerance": 1.5},
	}
	b := batch{id: 0, lowerRowID: 0, upperRowID: 100, count: 2}

	got, err := bind(tmpl, req, b)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(got, `FROM "parcels" t`) {
		t.Errorf("want bound layer name, got %q", got)
	}
	if !strings.Contains(got, "1.5") {
		t.Errorf("want tolerance literal substituted, got %q", got)
	}
	if !strings.Contains(got, "AND rowid >= 0 AND rowid < 100") {
		t.Errorf("want batch filter substituted, got %q", got)
	}
	if !strings.HasPrefix(got, "SELECT sub.* FROM (") {
		t.Errorf("want filter_null_geoms wrapper applied, got %q", got)
	}
}

func TestBindTwoLayerTemplateDefaultsPrefixes(t *testing.T) {
	tmpl := operationTemplates["split"]
	req := OperationRequest{
		Input1: LayerDescriptor{Layer: "parcels", GeometryColumn: "geom", Columns: []string{"id"}, GeometryType: GeometryType{Primitive: PrimitivePolygon}},
		Input2: &LayerDescriptor{Layer: "zoning", GeometryColumn: "geom", Columns: []string{"zone"}, GeometryType: GeometryType{Primitive: PrimitivePolygon}},
		Params: map[string]interface{}{"input1_primitive_code": 3},
	}
	b := batch{id: 0, count: 1}

	got, err := bind(tmpl, req, b)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(got, `AS "l1_id"`) {
		t.Errorf("want default l1_ prefix applied, got %q", got)
	}
	if !strings.Contains(got, `AS "l2_zone"`) {
		t.Errorf("want default l2_ prefix applied, got %q", got)
	}
	if !strings.Contains(got, `NULL AS "l2_zone"`) {
		t.Errorf("want non-matching branch to null out layer2 columns, got %q", got)
	}
}

func TestBindTwoLayerTemplateMissingSecondInput(t *testing.T) {
	tmpl := operationTemplates["split"]
	req := OperationRequest{
		Input1: LayerDescriptor{Layer: "parcels", GeometryColumn: "geom", Columns: []string{"id"}},
	}
	_, err := bind(tmpl, req, batch{id: 0, count: 1})
	if err == nil {
		t.Fatal("want error binding a two-layer template with no Input2")
	}
}
