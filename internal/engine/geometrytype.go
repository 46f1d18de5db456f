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

package engine

import "strings"

// LayerGeometryType is the geometry type declared in
// gpkg_geometry_columns.geometry_type_name, decomposed into a
// primitive family name and a single/multi flag. It is engine's own
// type so this package has no dependency on vectorbatch's GeometryType;
// callers convert.
type LayerGeometryType struct {
	PrimitiveName string // "point", "line", or "polygon"
	Multi         bool
}

// parseGeometryTypeName decodes a GeoPackage geometry_type_name such as
// "POINT", "MULTIPOLYGON", or "LINESTRING" into a LayerGeometryType.
func parseGeometryTypeName(name string) LayerGeometryType {
	upper := strings.ToUpper(strings.TrimSpace(name))
	multi := strings.HasPrefix(upper, "MULTI")
	if multi {
		upper = strings.TrimPrefix(upper, "MULTI")
	}
	var primitive string
	switch {
	case strings.HasPrefix(upper, "POINT"):
		primitive = "point"
	case strings.HasPrefix(upper, "LINESTRING"), strings.HasPrefix(upper, "CURVE"):
		primitive = "line"
	case strings.HasPrefix(upper, "POLYGON"), strings.HasPrefix(upper, "SURFACE"):
		primitive = "polygon"
	default:
		primitive = "polygon"
	}
	return LayerGeometryType{PrimitiveName: primitive, Multi: multi}
}
