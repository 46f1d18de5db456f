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

	"github.com/sirupsen/logrus"
)

// Buffer computes ST_Buffer(geom, distance, quadrantSegments) for every
// feature in req.Input1. A negative distance is legal and is run
// through a collection-extract restricted to polygons to discard the
// empty/line-like artifacts a negative buffer can produce; the output
// geometry type is always multi-polygon.
func Buffer(ctx context.Context, req OperationRequest, distance float64, quadrantSegments int) error {
	name := "buffer"
	if distance < 0 {
		name = "buffer_negative"
	}
	c := newCoordinator(nil)
	req = withParams(req, "buffer", map[string]interface{}{"distance": distance, "quadrantsegments": quadrantSegments})
	_, err := c.run(ctx, name, req, false)
	return err
}

// IsValid checks every feature in req.Input1 for geometric validity.
// If onlyInvalid is true, only invalid rows are projected to the
// output. It returns true iff no output file was produced, i.e. no
// rows matched (every geometry was valid, when onlyInvalid is set).
func IsValid(ctx context.Context, req OperationRequest, onlyInvalid bool) (bool, error) {
	log := logrus.StandardLogger()
	c := newCoordinator(log)
	tmpl, err := lookupTemplate("isvalid")
	if err != nil {
		return false, err
	}
	if onlyInvalid {
		tmpl.postProcess = func(query string, req OperationRequest) string {
			return fmt.Sprintf(`SELECT sub.* FROM (%s) sub WHERE sub.isvalid <> 1`, query)
		}
	}
	path, err := c.runTemplate(ctx, tmpl, req, false)
	if err != nil {
		return false, err
	}
	if onlyInvalid {
		log.WithField("layer", req.Input1.Layer).Info("vectorbatch: counted invalid geometries")
	}
	return path == "", nil
}

// ConvexHull computes ST_ConvexHull(geom) for every feature in
// req.Input1.
func ConvexHull(ctx context.Context, req OperationRequest) error {
	c := newCoordinator(nil)
	_, err := c.run(ctx, "convexhull", req, false)
	return err
}

// Simplify computes ST_Simplify(geom, tolerance) for every feature in
// req.Input1.
func Simplify(ctx context.Context, req OperationRequest, tolerance float64) error {
	c := newCoordinator(nil)
	req = withParams(req, "simplify", map[string]interface{}{"tolerance": tolerance})
	_, err := c.run(ctx, "simplify", req, false)
	return err
}

// MakeValid computes ST_MakeValid(geom) for every feature in
// req.Input1.
func MakeValid(ctx context.Context, req OperationRequest) error {
	c := newCoordinator(nil)
	_, err := c.run(ctx, "makevalid", req, false)
	return err
}

// Erase computes req.Input1 minus the union of every req.Input2
// feature it non-trivially intersects.
func Erase(ctx context.Context, req OperationRequest) error {
	c := newCoordinator(nil)
	req = withParams(req, "erase", map[string]interface{}{"input1_primitive_code": primitiveCode(req.Input1.GeometryType.Primitive)})
	_, err := c.run(ctx, "erase", req, true)
	return err
}

// Intersect computes the pairwise intersection of req.Input1 and
// req.Input2 features whose bounding boxes overlap and that are not
// merely touching, keeping the smaller of the two primitive families.
func Intersect(ctx context.Context, req OperationRequest) error {
	c := newCoordinator(nil)
	p1 := req.Input1.GeometryType.Primitive
	p2 := p1
	if req.Input2 != nil {
		p2 = req.Input2.GeometryType.Primitive
	}
	req = withParams(req, "intersect", map[string]interface{}{"collectionextract_code": primitiveCode(smallerPrimitive(p1, p2))})
	_, err := c.run(ctx, "intersect", req, true)
	return err
}

// JoinByLocation spatially joins req.Input1 to req.Input2. When
// discardNonmatching is false, unmatched left rows are kept with null
// right-side columns. minAreaIntersect, if non-zero, filters matches
// by minimum intersection area; areaInterColumn names the synthetic
// intersection-area column (default "area_inters").
func JoinByLocation(ctx context.Context, req OperationRequest, discardNonmatching bool, minAreaIntersect float64, areaInterColumn string) error {
	if areaInterColumn == "" {
		areaInterColumn = "area_inters"
	}
	name := "join_by_location_outer"
	if discardNonmatching {
		name = "join_by_location_inner"
	}
	c := newCoordinator(nil)
	req = withParams(req, name, map[string]interface{}{
		"min_area_intersect": minAreaIntersect,
		"area_inters_column": areaInterColumn,
	})
	_, err := c.run(ctx, name, req, true)
	return err
}

// ExportByLocation writes every distinct req.Input1 feature that
// non-trivially intersects at least one req.Input2 feature.
// minAreaIntersect, if non-zero, additionally requires the
// intersection area to meet that threshold.
func ExportByLocation(ctx context.Context, req OperationRequest, minAreaIntersect float64, areaInterColumn string) error {
	if areaInterColumn == "" {
		areaInterColumn = "area_inters"
	}
	name := "export_by_location"
	if minAreaIntersect > 0 {
		name = "export_by_location_area"
	}
	c := newCoordinator(nil)
	req = withParams(req, name, map[string]interface{}{
		"min_area_intersect": minAreaIntersect,
		"area_inters_column": areaInterColumn,
	})
	_, err := c.run(ctx, name, req, true)
	return err
}

// ExportByDistance writes every distinct req.Input1 feature within
// maxDistance of some req.Input2 feature.
func ExportByDistance(ctx context.Context, req OperationRequest, maxDistance float64) error {
	c := newCoordinator(nil)
	req = withParams(req, "export_by_distance", map[string]interface{}{"max_distance": maxDistance})
	_, err := c.run(ctx, "export_by_distance", req, true)
	return err
}

// Split partitions req.Input1 into features that intersect the union
// of req.Input2 (carrying req.Input2's columns) and features that do
// not (with null req.Input2 columns).
func Split(ctx context.Context, req OperationRequest) error {
	c := newCoordinator(nil)
	req = withParams(req, "split", map[string]interface{}{"input1_primitive_code": primitiveCode(req.Input1.GeometryType.Primitive)})
	_, err := c.run(ctx, "split", req, true)
	return err
}

// Union computes the full geometric union of req.Input1 and
// req.Input2: every split(input1, input2) row plus every
// erase(input2, input1) row, appended into one output. It is not a
// single template; the coordinator runs split and erase to separate
// scratch outputs and appends erase's rows into split's before
// indexing and moving the result.
//
// The erase phase cannot reuse the public Erase operation directly:
// Erase's template only ever projects the subject layer's own columns,
// while split's output schema carries both sides' columns (the
// non-matching side filled with NULL, see the "split" template's
// second branch). unionEraseTemplate mirrors that branch with layer1
// and layer2 swapped, so the two phases' partial outputs line up
// column-for-column before they are appended.
func Union(ctx context.Context, req OperationRequest) error {
	prefix1 := req.Projection1.Prefix
	if prefix1 == "" {
		prefix1 = "l1_"
	}
	prefix2 := req.Projection2.Prefix
	if prefix2 == "" {
		prefix2 = "l2_"
	}

	splitReq := req
	splitReq.Projection1.Prefix = prefix1
	splitReq.Projection2.Prefix = prefix2
	splitReq.OutputPath = req.OutputPath + ".split.scratch"
	if err := Split(ctx, splitReq); err != nil {
		return fmt.Errorf("union: split phase: %w", err)
	}
	defer os.Remove(splitReq.OutputPath)

	eraseReq := OperationRequest{
		Operation:          "union_erase",
		Input1:             *req.Input2,
		Input2:             &req.Input1,
		Projection1:        ColumnProjection{Columns: req.Projection2.Columns, Prefix: prefix2},
		Projection2:        ColumnProjection{Columns: req.Projection1.Columns, Prefix: prefix1},
		OutputPath:         req.OutputPath + ".erase.scratch",
		OutputLayer:        req.OutputLayer,
		OutputGeometryType: req.OutputGeometryType,
		ExplodeCollections: req.ExplodeCollections,
		ParallelismHint:    req.ParallelismHint,
		Force:              true,
		Verbosity:          req.Verbosity,
		Params:             map[string]interface{}{"input1_primitive_code": primitiveCode(req.Input2.GeometryType.Primitive)},
	}
	c := newCoordinator(nil)
	if _, err := c.runTemplate(ctx, unionEraseTemplate, eraseReq, true); err != nil {
		return fmt.Errorf("union: erase phase: %w", err)
	}
	defer os.Remove(eraseReq.OutputPath)

	return unionAppend(ctx, splitReq.OutputPath, eraseReq.OutputPath, req)
}

// withParams replaces req.Params with the operation-specific SQL bind
// values in params, leaving every other field untouched. op is accepted for readability
// at call sites but does not affect the result.
func withParams(req OperationRequest, op string, params map[string]interface{}) OperationRequest {
	req.Params = params
	return req
}
