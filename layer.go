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
	"strings"

	"github.com/spatialmodel/vectorbatch/internal/engine"
)

// Primitive is the geometry primitive family, independent of
// single/multi multiplicity.
type Primitive int

// Primitive families, ordered so that min(a, b) picks the "smaller" of
// two families the way intersect and collection-extract require.
const (
	PrimitivePoint Primitive = iota + 1
	PrimitiveLine
	PrimitivePolygon
)

func (p Primitive) String() string {
	switch p {
	case PrimitivePoint:
		return "point"
	case PrimitiveLine:
		return "line"
	case PrimitivePolygon:
		return "polygon"
	default:
		return "unknown"
	}
}

// GeometryType is a declared column geometry type: a primitive family
// crossed with single/multi multiplicity.
type GeometryType struct {
	Primitive Primitive
	Multi     bool
}

// ToMulti returns the multi-variant of g.
func (g GeometryType) ToMulti() GeometryType { return GeometryType{Primitive: g.Primitive, Multi: true} }

// SQLName returns the SpatiaLite geometry type name of g, e.g.
// "MULTIPOLYGON".
func (g GeometryType) SQLName() string {
	names := map[Primitive]string{
		PrimitivePoint:   "POINT",
		PrimitiveLine:    "LINESTRING",
		PrimitivePolygon: "POLYGON",
	}
	n := names[g.Primitive]
	if g.Multi {
		n = "MULTI" + n
	}
	return n
}

func primitiveFromName(name string) Primitive {
	switch name {
	case "point":
		return PrimitivePoint
	case "line":
		return PrimitiveLine
	default:
		return PrimitivePolygon
	}
}

// LayerDescriptor describes a layer in a container: its geometry
// column, declared type, column list, and feature count. It is
// immutable within the lifetime of one operation.
type LayerDescriptor struct {
	Path           string
	Layer          string
	GeometryColumn string
	GeometryType   GeometryType
	Columns        []string
	FeatureCount   int64
}

// HasColumn reports whether name (case-insensitive) is one of l's
// declared columns.
func (l LayerDescriptor) HasColumn(name string) bool {
	for _, c := range l.Columns {
		if strings.EqualFold(c, name) {
			return true
		}
	}
	return false
}

// Describe reports the feature count, column list, geometry column,
// and declared geometry type of a layer in a native container. If
// layer is empty and the container holds exactly one layer, that layer
// is used; otherwise describe fails with a PreconditionError.
func Describe(ctx context.Context, conn *engine.Conn, layer string) (LayerDescriptor, error) {
	if layer == "" {
		only, err := conn.OnlyLayer(ctx)
		if err != nil {
			return LayerDescriptor{}, &PreconditionError{Op: "describe", Reason: "ambiguous layer", Details: err.Error()}
		}
		layer = only
	}

	geomCol, engineType, err := conn.GeometryColumn(ctx, layer)
	if err != nil {
		return LayerDescriptor{}, &PreconditionError{Op: "describe", Reason: fmt.Sprintf("layer %q not found", layer), Details: err.Error()}
	}
	geomType := GeometryType{Primitive: primitiveFromName(engineType.PrimitiveName), Multi: engineType.Multi}

	cols, err := conn.Columns(ctx, layer)
	if err != nil {
		return LayerDescriptor{}, &IOError{Op: "describe", Path: layer, Err: err}
	}

	count, err := conn.FeatureCount(ctx, layer)
	if err != nil {
		return LayerDescriptor{}, &IOError{Op: "describe", Path: layer, Err: err}
	}

	return LayerDescriptor{
		Path:           conn.Path(),
		Layer:          layer,
		GeometryColumn: geomCol,
		GeometryType:   geomType,
		Columns:        cols,
		FeatureCount:   count,
	}, nil
}
