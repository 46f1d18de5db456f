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

// ColumnProjection describes which columns of an input layer carry
// through to the output, and (for two-layer operations) the prefix
// used to disambiguate identically-named columns from the two sides.
type ColumnProjection struct {
	// Columns lists the explicit columns to keep. A nil slice means
	// "all columns of the input layer".
	Columns []string
	// Prefix is prepended as-is to each kept column name in the
	// output, e.g. "l1_" gives "l1_area". Empty means "l1_"/"l2_" for
	// two-layer operations and no prefix for single-layer ones.
	Prefix string
}

// all reports whether p selects every column of the input layer.
func (p ColumnProjection) all() bool { return p.Columns == nil }

// OperationRequest is the input to every public operation in ops.go: an
// operation name, one or two input layer descriptors, an output
// destination, and the knobs that apply across all operations.
type OperationRequest struct {
	Operation string

	Input1 LayerDescriptor
	Input2 *LayerDescriptor // nil for single-layer operations

	Projection1 ColumnProjection
	Projection2 ColumnProjection // ignored for single-layer operations

	OutputPath  string
	OutputLayer string

	// OutputGeometryType overrides the declared output geometry type
	// when non-zero; otherwise the operation's default policy applies.
	OutputGeometryType GeometryType
	ExplodeCollections bool

	// ParallelismHint is the nb_parallel_hint of the batch planner;
	// -1 requests auto-tuning.
	ParallelismHint int

	Force     bool
	Verbosity int

	// Params carries operation-specific SQL bind values (distance,
	// tolerance, quadrantsegments, max_distance, min_area_intersect,
	// input1_primitive_code, collectionextract_code) referenced as
	// `:name` placeholders in the operation's template. Each public
	// operation function in ops.go populates this from its own typed
	// parameters before the coordinator binds and executes the
	// template.
	Params map[string]interface{}
}

// validate checks the structural preconditions common to every
// operation: a non-empty operation name, a present first input, a second
// input exactly when the operation needs one, and a non-empty output
// destination. Operation-specific checks live alongside each
// operation's template in operations.go.
func (r OperationRequest) validate(needsSecondInput bool) error {
	if r.Operation == "" {
		return &PreconditionError{Op: "validate", Reason: "operation name is empty"}
	}
	if r.Input1.Layer == "" {
		return &PreconditionError{Op: r.Operation, Reason: "input1 layer descriptor is empty"}
	}
	if needsSecondInput && r.Input2 == nil {
		return &PreconditionError{Op: r.Operation, Reason: "operation requires a second input layer"}
	}
	if !needsSecondInput && r.Input2 != nil {
		return &PreconditionError{Op: r.Operation, Reason: "operation accepts only one input layer"}
	}
	if r.OutputPath == "" {
		return &PreconditionError{Op: r.Operation, Reason: "output path is empty"}
	}
	if !r.Projection1.all() {
		for _, c := range r.Projection1.Columns {
			if !r.Input1.HasColumn(c) {
				return &PreconditionError{Op: r.Operation, Reason: "unknown column in input1 projection", Details: c}
			}
		}
	}
	if needsSecondInput && r.Input2 != nil && !r.Projection2.all() {
		for _, c := range r.Projection2.Columns {
			if !r.Input2.HasColumn(c) {
				return &PreconditionError{Op: r.Operation, Reason: "unknown column in input2 projection", Details: c}
			}
		}
	}
	return nil
}
