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
	"fmt"
	"strings"
)

// operationTemplate binds one named operation to its SQL template and
// the three knobs spec.md §4.7 assigns every operation: an output
// geometry-type policy, whether null geometries are filtered out of
// the bound result, and whether the template references a second
// input layer.
type operationTemplate struct {
	name            string
	sql             string
	twoLayer        bool
	filterNullGeoms bool
	// outputGeometryType computes the default output geometry type
	// from the request's input(s), before any caller override.
	outputGeometryType func(req OperationRequest) GeometryType
	// postProcess implements the "post-processing wrappers" spec.md
	// §4.7 assigns C7 beyond the NULL-geom filter: renaming the
	// synthetic intersection-area column and applying an
	// area-threshold wrapper, driven by req.Params.
	postProcess func(query string, req OperationRequest) string
}

// areaFilterPostProcess renames the "area_inters" column produced by
// a join_by_location/export_by_location template to
// req.Params["area_inters_column"] (default unchanged) and, when
// req.Params["min_area_intersect"] is a positive float, wraps the
// query so only rows meeting that threshold (or lacking a match at
// all, in the outer-join case) survive.
func areaFilterPostProcess(query string, req OperationRequest) string {
	col := "area_inters"
	if v, ok := req.Params["area_inters_column"].(string); ok && v != "" {
		col = v
	}
	if col != "area_inters" {
		query = strings.ReplaceAll(query, "area_inters", col)
	}
	if minArea, ok := req.Params["min_area_intersect"].(float64); ok && minArea > 0 {
		quoted := quoteColumn(col)
		query = fmt.Sprintf(
			`SELECT sub.* FROM (%s) sub WHERE sub.%s IS NULL OR sub.%s >= %s`,
			query, quoted, quoted, paramLiteral(minArea),
		)
	}
	return query
}

func samePrimitive(g GeometryType) func(OperationRequest) GeometryType {
	return func(req OperationRequest) GeometryType { return g }
}

func input1GeometryType(req OperationRequest) GeometryType { return req.Input1.GeometryType }

func input1MultiGeometryType(req OperationRequest) GeometryType {
	return req.Input1.GeometryType.ToMulti()
}

// smallerPrimitive returns the "smaller" of two families in the
// point < line < polygon ordering ST_CollectionExtract / intersect
// rely on.
func smallerPrimitive(a, b Primitive) Primitive {
	if a < b {
		return a
	}
	return b
}

func intersectGeometryType(req OperationRequest) GeometryType {
	p1, p2 := req.Input1.GeometryType.Primitive, req.Input1.GeometryType.Primitive
	if req.Input2 != nil {
		p2 = req.Input2.GeometryType.Primitive
	}
	return GeometryType{Primitive: smallerPrimitive(p1, p2), Multi: true}
}

// operationTemplates is the closed operation table (C7). select and
// dissolve are handled specially in ops_extra.go and are not driven through
// this table.
var operationTemplates = map[string]operationTemplate{
	"isvalid": {
		name: "isvalid",
		sql: `
			SELECT t.{geometrycolumn} AS geom{columns_to_select_str},
			       ST_IsValid(t.{geometrycolumn}) AS isvalid,
			       ST_IsValidReason(t.{geometrycolumn}) AS isvalidreason
			  FROM "{input_layer}" t
			 WHERE 1=1{batch_filter}`,
		filterNullGeoms:    false,
		outputGeometryType: input1GeometryType,
	},
	"convexhull": {
		name: "convexhull",
		sql: `
			SELECT ST_ConvexHull(t.{geometrycolumn}) AS geom{columns_to_select_str}
			  FROM "{input_layer}" t
			 WHERE 1=1{batch_filter}`,
		filterNullGeoms:    true,
		outputGeometryType: input1GeometryType,
	},
	"simplify": {
		name: "simplify",
		sql: `
			SELECT ST_Simplify(t.{geometrycolumn}, :tolerance) AS geom{columns_to_select_str}
			  FROM "{input_layer}" t
			 WHERE 1=1{batch_filter}`,
		filterNullGeoms:    true,
		outputGeometryType: input1GeometryType,
	},
	"makevalid": {
		name: "makevalid",
		sql: `
			SELECT ST_MakeValid(t.{geometrycolumn}) AS geom{columns_to_select_str}
			  FROM "{input_layer}" t
			 WHERE 1=1{batch_filter}`,
		filterNullGeoms:    true,
		outputGeometryType: input1GeometryType,
	},
	"buffer": {
		name: "buffer",
		sql: `
			SELECT ST_Buffer(t.{geometrycolumn}, :distance, :quadrantsegments) AS geom{columns_to_select_str}
			  FROM "{input_layer}" t
			 WHERE 1=1{batch_filter}`,
		filterNullGeoms:    true,
		outputGeometryType: samePrimitive(GeometryType{Primitive: PrimitivePolygon, Multi: true}),
	},
	"buffer_negative": {
		name: "buffer_negative",
		sql: `
			SELECT ST_CollectionExtract(ST_Buffer(t.{geometrycolumn}, :distance, :quadrantsegments), 3) AS geom{columns_to_select_str}
			  FROM "{input_layer}" t
			 WHERE 1=1{batch_filter}`,
		filterNullGeoms:    true,
		outputGeometryType: samePrimitive(GeometryType{Primitive: PrimitivePolygon, Multi: true}),
	},
	"erase": {
		name:     "erase",
		twoLayer: true,
		sql: `
			SELECT ST_CollectionExtract(
			         ST_Difference(layer1.{input1_geometrycolumn}, ST_Union(layer2.{input2_geometrycolumn})),
			         :input1_primitive_code
			       ) AS geom{layer1_columns_prefix_alias_str}
			  FROM "{input1_tmp_layer}" layer1
			  JOIN rtree_{input1_tmp_layer}_{input1_geometrycolumn} index1
			       ON index1.id = layer1.rowid
			  JOIN {input2_databasename}."{input2_tmp_layer}" layer2
			  JOIN rtree_{input2_tmp_layer}_{input2_geometrycolumn} index2
			       ON index2.id = layer2.rowid
			       AND index1.minx <= index2.maxx AND index1.maxx >= index2.minx
			       AND index1.miny <= index2.maxy AND index1.maxy >= index2.miny
			 WHERE ST_Touches(layer1.{input1_geometrycolumn}, layer2.{input2_geometrycolumn}) = 0{batch_filter}
			 GROUP BY layer1.rowid`,
		filterNullGeoms:    true,
		outputGeometryType: input1MultiGeometryType,
	},
	"intersect": {
		name:     "intersect",
		twoLayer: true,
		sql: `
			SELECT ST_CollectionExtract(
			         ST_Intersection(layer1.{input1_geometrycolumn}, layer2.{input2_geometrycolumn}),
			         :collectionextract_code
			       ) AS geom{layer1_columns_prefix_alias_str}{layer2_columns_prefix_alias_str}
			  FROM "{input1_tmp_layer}" layer1
			  JOIN rtree_{input1_tmp_layer}_{input1_geometrycolumn} index1
			       ON index1.id = layer1.rowid
			  JOIN {input2_databasename}."{input2_tmp_layer}" layer2
			  JOIN rtree_{input2_tmp_layer}_{input2_geometrycolumn} index2
			       ON index2.id = layer2.rowid
			       AND index1.minx <= index2.maxx AND index1.maxx >= index2.minx
			       AND index1.miny <= index2.maxy AND index1.maxy >= index2.miny
			 WHERE ST_Touches(layer1.{input1_geometrycolumn}, layer2.{input2_geometrycolumn}) = 0{batch_filter}`,
		filterNullGeoms:    true,
		outputGeometryType: intersectGeometryType,
	},
	"join_by_location_inner": {
		name:     "join_by_location_inner",
		twoLayer: true,
		sql: `
			SELECT layer1.{input1_geometrycolumn} AS geom{layer1_columns_prefix_alias_str}{layer2_columns_prefix_alias_str},
			       ST_Area(ST_Intersection(layer1.{input1_geometrycolumn}, layer2.{input2_geometrycolumn})) AS area_inters
			  FROM "{input1_tmp_layer}" layer1
			  JOIN rtree_{input1_tmp_layer}_{input1_geometrycolumn} index1
			       ON index1.id = layer1.rowid
			  JOIN {input2_databasename}."{input2_tmp_layer}" layer2
			  JOIN rtree_{input2_tmp_layer}_{input2_geometrycolumn} index2
			       ON index2.id = layer2.rowid
			       AND index1.minx <= index2.maxx AND index1.maxx >= index2.minx
			       AND index1.miny <= index2.maxy AND index1.maxy >= index2.miny
			 WHERE ST_Touches(layer1.{input1_geometrycolumn}, layer2.{input2_geometrycolumn}) = 0{batch_filter}`,
		filterNullGeoms:    true,
		outputGeometryType: input1GeometryType,
		postProcess:        areaFilterPostProcess,
	},
	"join_by_location_outer": {
		name:     "join_by_location_outer",
		twoLayer: true,
		sql: `
			SELECT layer1.{input1_geometrycolumn} AS geom{layer1_columns_prefix_alias_str}{layer2_columns_prefix_alias_str},
			       ST_Area(ST_Intersection(layer1.{input1_geometrycolumn}, layer2.{input2_geometrycolumn})) AS area_inters
			  FROM "{input1_tmp_layer}" layer1
			  JOIN rtree_{input1_tmp_layer}_{input1_geometrycolumn} index1
			       ON index1.id = layer1.rowid
			  JOIN {input2_databasename}."{input2_tmp_layer}" layer2
			  JOIN rtree_{input2_tmp_layer}_{input2_geometrycolumn} index2
			       ON index2.id = layer2.rowid
			       AND index1.minx <= index2.maxx AND index1.maxx >= index2.minx
			       AND index1.miny <= index2.maxy AND index1.maxy >= index2.miny
			 WHERE ST_Touches(layer1.{input1_geometrycolumn}, layer2.{input2_geometrycolumn}) = 0{batch_filter}
			UNION ALL
			SELECT layer1.{input1_geometrycolumn} AS geom{layer1_columns_prefix_alias_str}{layer2_columns_prefix_alias_null_str},
			       NULL AS area_inters
			  FROM "{input1_tmp_layer}" layer1
			 WHERE NOT EXISTS (
			         SELECT 1
			           FROM {input2_databasename}."{input2_tmp_layer}" layer2
			          WHERE ST_Intersects(layer1.{input1_geometrycolumn}, layer2.{input2_geometrycolumn}) = 1
			            AND ST_Touches(layer1.{input1_geometrycolumn}, layer2.{input2_geometrycolumn}) = 0
			       ){batch_filter}`,
		filterNullGeoms:    true,
		outputGeometryType: input1GeometryType,
		postProcess:        areaFilterPostProcess,
	},
	"export_by_location": {
		name:     "export_by_location",
		twoLayer: true,
		sql: `
			SELECT DISTINCT layer1.{input1_geometrycolumn} AS geom{layer1_columns_prefix_alias_str}
			  FROM "{input1_tmp_layer}" layer1
			  JOIN rtree_{input1_tmp_layer}_{input1_geometrycolumn} index1
			       ON index1.id = layer1.rowid
			  JOIN {input2_databasename}."{input2_tmp_layer}" layer2
			  JOIN rtree_{input2_tmp_layer}_{input2_geometrycolumn} index2
			       ON index2.id = layer2.rowid
			       AND index1.minx <= index2.maxx AND index1.maxx >= index2.minx
			       AND index1.miny <= index2.maxy AND index1.maxy >= index2.miny
			 WHERE ST_Touches(layer1.{input1_geometrycolumn}, layer2.{input2_geometrycolumn}) = 0{batch_filter}`,
		filterNullGeoms:    true,
		outputGeometryType: input1GeometryType,
	},
	"export_by_location_area": {
		name:     "export_by_location_area",
		twoLayer: true,
		sql: `
			SELECT layer1.{input1_geometrycolumn} AS geom{layer1_columns_prefix_alias_str},
			       MAX(ST_Area(ST_Intersection(layer1.{input1_geometrycolumn}, layer2.{input2_geometrycolumn}))) AS area_inters
			  FROM "{input1_tmp_layer}" layer1
			  JOIN rtree_{input1_tmp_layer}_{input1_geometrycolumn} index1
			       ON index1.id = layer1.rowid
			  JOIN {input2_databasename}."{input2_tmp_layer}" layer2
			  JOIN rtree_{input2_tmp_layer}_{input2_geometrycolumn} index2
			       ON index2.id = layer2.rowid
			       AND index1.minx <= index2.maxx AND index1.maxx >= index2.minx
			       AND index1.miny <= index2.maxy AND index1.maxy >= index2.miny
			 WHERE ST_Touches(layer1.{input1_geometrycolumn}, layer2.{input2_geometrycolumn}) = 0{batch_filter}
			 GROUP BY layer1.rowid`,
		filterNullGeoms:    true,
		outputGeometryType: input1GeometryType,
		postProcess:        areaFilterPostProcess,
	},
	"export_by_distance": {
		name:     "export_by_distance",
		twoLayer: true,
		sql: `
			SELECT DISTINCT layer1.{input1_geometrycolumn} AS geom{layer1_columns_prefix_alias_str}
			  FROM "{input1_tmp_layer}" layer1
			  JOIN rtree_{input1_tmp_layer}_{input1_geometrycolumn} index1
			       ON index1.id = layer1.rowid
			  JOIN {input2_databasename}."{input2_tmp_layer}" layer2
			  JOIN rtree_{input2_tmp_layer}_{input2_geometrycolumn} index2
			       ON index2.id = layer2.rowid
			       AND index1.minx - :max_distance <= index2.maxx AND index1.maxx + :max_distance >= index2.minx
			       AND index1.miny - :max_distance <= index2.maxy AND index1.maxy + :max_distance >= index2.miny
			 WHERE ST_Distance(layer1.{input1_geometrycolumn}, layer2.{input2_geometrycolumn}) <= :max_distance{batch_filter}`,
		filterNullGeoms:    true,
		outputGeometryType: input1GeometryType,
	},
	"split": {
		name:     "split",
		twoLayer: true,
		sql: `
			SELECT ST_CollectionExtract(
			         ST_Intersection(layer1.{input1_geometrycolumn}, ST_Union(layer2.{input2_geometrycolumn})),
			         :input1_primitive_code
			       ) AS geom{layer1_columns_prefix_alias_str}{layer2_columns_prefix_alias_str}
			  FROM "{input1_tmp_layer}" layer1
			  JOIN rtree_{input1_tmp_layer}_{input1_geometrycolumn} index1
			       ON index1.id = layer1.rowid
			  JOIN {input2_databasename}."{input2_tmp_layer}" layer2
			  JOIN rtree_{input2_tmp_layer}_{input2_geometrycolumn} index2
			       ON index2.id = layer2.rowid
			       AND index1.minx <= index2.maxx AND index1.maxx >= index2.minx
			       AND index1.miny <= index2.maxy AND index1.maxy >= index2.miny
			 WHERE ST_Touches(layer1.{input1_geometrycolumn}, layer2.{input2_geometrycolumn}) = 0{batch_filter}
			 GROUP BY layer1.rowid
			UNION ALL
			SELECT ST_CollectionExtract(
			         ST_Difference(layer1.{input1_geometrycolumn}, ST_Union(layer2.{input2_geometrycolumn})),
			         :input1_primitive_code
			       ) AS geom{layer1_columns_prefix_alias_str}{layer2_columns_prefix_alias_null_str}
			  FROM "{input1_tmp_layer}" layer1
			  JOIN rtree_{input1_tmp_layer}_{input1_geometrycolumn} index1
			       ON index1.id = layer1.rowid
			  JOIN {input2_databasename}."{input2_tmp_layer}" layer2
			  JOIN rtree_{input2_tmp_layer}_{input2_geometrycolumn} index2
			       ON index2.id = layer2.rowid
			       AND index1.minx <= index2.maxx AND index1.maxx >= index2.minx
			       AND index1.miny <= index2.maxy AND index1.maxy >= index2.miny
			 WHERE ST_Touches(layer1.{input1_geometrycolumn}, layer2.{input2_geometrycolumn}) = 0{batch_filter}
			 GROUP BY layer1.rowid`,
		filterNullGeoms:    true,
		outputGeometryType: input1MultiGeometryType,
	},
}

// unionEraseTemplate is the erase phase of the Union public operation
// (ops.go): it mirrors the "split" template's difference branch with
// layer1 and layer2 swapped, so its column aliases — which the caller
// overrides explicitly via Projection1/Projection2 rather than relying
// on the binder's defaults — land in the same l1_/l2_ slots split's
// output uses, in spite of layer1 here being the original req.Input2.
var unionEraseTemplate = operationTemplate{
	name:     "union_erase",
	twoLayer: true,
	sql: `
		SELECT ST_CollectionExtract(
		         ST_Difference(layer1.{input1_geometrycolumn}, ST_Union(layer2.{input2_geometrycolumn})),
		         :input1_primitive_code
		       ) AS geom{layer2_columns_prefix_alias_null_str}{layer1_columns_prefix_alias_str}
		  FROM "{input1_tmp_layer}" layer1
		  JOIN rtree_{input1_tmp_layer}_{input1_geometrycolumn} index1
		       ON index1.id = layer1.rowid
		  JOIN {input2_databasename}."{input2_tmp_layer}" layer2
		  JOIN rtree_{input2_tmp_layer}_{input2_geometrycolumn} index2
		       ON index2.id = layer2.rowid
		       AND index1.minx <= index2.maxx AND index1.maxx >= index2.minx
		       AND index1.miny <= index2.maxy AND index1.maxy >= index2.miny
		 WHERE ST_Touches(layer1.{input1_geometrycolumn}, layer2.{input2_geometrycolumn}) = 0{batch_filter}
		 GROUP BY layer1.rowid`,
	filterNullGeoms:    true,
	outputGeometryType: input1MultiGeometryType,
}

// primitiveCode maps a Primitive to the ST_CollectionExtract type code
// SpatiaLite expects: 1 point, 2 line, 3 polygon.
func primitiveCode(p Primitive) int {
	switch p {
	case PrimitivePoint:
		return 1
	case PrimitiveLine:
		return 2
	default:
		return 3
	}
}

// lookupTemplate returns the named template, choosing buffer's
// negative-distance variant and join_by_location's inner/outer variant
// by name convention rather than by a runtime branch inside bind.
func lookupTemplate(name string) (operationTemplate, error) {
	tmpl, ok := operationTemplates[name]
	if !ok {
		return operationTemplate{}, &PreconditionError{Op: name, Reason: "unknown operation"}
	}
	return tmpl, nil
}

func resolveOutputGeometryType(tmpl operationTemplate, req OperationRequest) GeometryType {
	if req.OutputGeometryType != (GeometryType{}) {
		return req.OutputGeometryType
	}
	return tmpl.outputGeometryType(req)
}

func unknownOperationError(op string) error {
	return fmt.Errorf("vectorbatch: %s: %w", op, &PreconditionError{Op: op, Reason: "unknown operation"})
}
